package assembler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-application-engine/internal/models"
	"rental-application-engine/internal/services/database"
)

var testNow = time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC)

type fakeAccounts struct {
	calls    int
	email    string
	metadata map[string]string
	err      error
}

func (f *fakeAccounts) SignUp(_ context.Context, email, _ string, metadata map[string]string) (string, error) {
	f.calls++
	f.email = email
	f.metadata = metadata
	if f.err != nil {
		return "", f.err
	}
	return "user-1", nil
}

type fakeProperties struct {
	err error
}

func (f *fakeProperties) GetSummary(_ context.Context, id string) (*models.PropertySummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.PropertySummary{ID: id, Title: "T2 lumineux", Price: 950, Location: "Lyon"}, nil
}

type fakeStore struct {
	calls  int
	record *models.ApplicationRecord
	err    error

	review database.DocumentReview
}

func (f *fakeStore) Insert(_ context.Context, app *models.ApplicationRecord) (string, error) {
	f.calls++
	f.record = app
	if f.err != nil {
		return "", f.err
	}
	return "app-42", nil
}

func (f *fakeStore) UpdateDocumentStatus(_ context.Context, review database.DocumentReview) (string, error) {
	f.review = review
	if f.err != nil {
		return "", f.err
	}
	return "jean@example.com", nil
}

type fakeNotifier struct {
	submitted []string
	rejected  []string
	err       error
}

func (f *fakeNotifier) SendApplicationSubmitted(_ context.Context, applicationID, recipient string, property models.PropertySummary) error {
	f.submitted = append(f.submitted, applicationID+"|"+recipient+"|"+property.Title)
	return f.err
}

func (f *fakeNotifier) SendDocumentRejection(_ context.Context, applicationID, recipient, documentKey, comment string) error {
	f.rejected = append(f.rejected, applicationID+"|"+recipient+"|"+documentKey+"|"+comment)
	return f.err
}

type fixture struct {
	accounts   *fakeAccounts
	properties *fakeProperties
	store      *fakeStore
	notifier   *fakeNotifier
	assembler  *Assembler
}

func newFixture() *fixture {
	f := &fixture{
		accounts:   &fakeAccounts{},
		properties: &fakeProperties{},
		store:      &fakeStore{},
		notifier:   &fakeNotifier{},
	}
	f.assembler = New(f.accounts, f.properties, f.store, f.notifier).WithClock(func() time.Time { return testNow })
	return f
}

func doc(docType models.DocumentType, data models.ExtractedData) models.DocumentAnalysisResult {
	return models.DocumentAnalysisResult{
		DocumentType:  docType,
		IsValid:       true,
		Confidence:    0.9,
		ExtractedData: data,
		FileURL:       "https://files.example.com/" + string(docType),
		Status:        models.AnalysisStatusCompleted,
	}
}

func completeBundle() models.ApplicationBundle {
	payslip := func(period string) models.DocumentAnalysisResult {
		return doc(models.DocumentTypePayslip, &models.PayslipData{EmployeeName: "Jean Dupont", PayPeriod: period})
	}
	return models.ApplicationBundle{
		"identity":            doc(models.DocumentTypeIdentity, &models.IdentityData{Surname: "Dupont", GivenNames: "Jean"}),
		"payslip_1":           payslip("06/2024"),
		"payslip_2":           payslip("05/2024"),
		"payslip_3":           payslip("04/2024"),
		"employment_contract": doc(models.DocumentTypeEmploymentContract, &models.EmploymentContractData{ContractType: "CDI"}),
		"proof_of_address":    doc(models.DocumentTypeProofOfAddress, &models.ProofOfAddressData{BillType: "electricity"}),
	}
}

func applicant() models.ApplicantInfo {
	return models.ApplicantInfo{
		PropertyID: "prop-1",
		Email:      " jean@example.com ",
		Phone:      "06 12 34 56 78",
		Message:    "Disponible pour une visite",
	}
}

func TestAssemble_WithoutAccount(t *testing.T) {
	f := newFixture()

	record, err := f.assembler.Assemble(context.Background(), completeBundle(), applicant(), models.AccountChoice{})
	require.NoError(t, err)

	assert.Equal(t, "app-42", record.ID)
	assert.Nil(t, record.UserID)
	assert.Equal(t, "Jean", record.FirstName)
	assert.Equal(t, "Dupont", record.LastName)
	assert.Equal(t, "jean@example.com", record.Email)
	assert.Equal(t, models.ApplicationStatusPending, record.Status)
	assert.Len(t, record.DocumentStatus, 6)
	assert.Zero(t, f.accounts.calls)
	assert.Equal(t, []string{"app-42|jean@example.com|T2 lumineux"}, f.notifier.submitted)

	entry := record.DocumentStatus["payslip_2"]
	assert.Equal(t, models.DocumentStatusVerified, entry.Status)
	require.NotNil(t, entry.VerifiedAt)
	assert.Equal(t, testNow, *entry.VerifiedAt)
	assert.Equal(t, 0.9, entry.Confidence)
	require.NotNil(t, entry.FileURL)
	assert.Equal(t, "https://files.example.com/payslip", *entry.FileURL)
}

func TestAssemble_WithAccount(t *testing.T) {
	f := newFixture()

	record, err := f.assembler.Assemble(context.Background(), completeBundle(), applicant(), models.AccountChoice{CreateAccount: true, Password: "s3cret!"})
	require.NoError(t, err)

	require.NotNil(t, record.UserID)
	assert.Equal(t, "user-1", *record.UserID)
	assert.Equal(t, "jean@example.com", f.accounts.email)
	assert.Equal(t, map[string]string{"phone": "06 12 34 56 78"}, f.accounts.metadata)
}

func TestAssemble_RejectsBeforePersistence(t *testing.T) {
	incomplete := completeBundle()
	delete(incomplete, "payslip_3")

	tests := []struct {
		name      string
		bundle    models.ApplicationBundle
		info      func(models.ApplicantInfo) models.ApplicantInfo
		choice    models.AccountChoice
		wantStage string
		wantErr   error
	}{
		{
			name:      "incomplete bundle",
			bundle:    incomplete,
			wantStage: StageValidation,
		},
		{
			name:      "bad email",
			bundle:    completeBundle(),
			info:      func(i models.ApplicantInfo) models.ApplicantInfo { i.Email = "jean.example.com"; return i },
			choice:    models.AccountChoice{CreateAccount: true, Password: "x"},
			wantStage: StageContact,
			wantErr:   models.ErrInvalidEmail,
		},
		{
			name:      "bad phone",
			bundle:    completeBundle(),
			info:      func(i models.ApplicantInfo) models.ApplicantInfo { i.Phone = "12345"; return i },
			wantStage: StageContact,
			wantErr:   models.ErrInvalidPhone,
		},
		{
			name:      "missing password",
			bundle:    completeBundle(),
			choice:    models.AccountChoice{CreateAccount: true},
			wantStage: StageContact,
			wantErr:   models.ErrMissingPassword,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			info := applicant()
			if tt.info != nil {
				info = tt.info(info)
			}

			_, err := f.assembler.Assemble(context.Background(), tt.bundle, info, tt.choice)
			require.Error(t, err)

			var assemblyErr *AssemblyError
			require.True(t, errors.As(err, &assemblyErr))
			assert.Equal(t, tt.wantStage, assemblyErr.Stage)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Zero(t, f.accounts.calls)
			assert.Zero(t, f.store.calls)
			assert.Empty(t, f.notifier.submitted)
		})
	}
}

func TestAssemble_ValidationIssues(t *testing.T) {
	bundle := completeBundle()
	delete(bundle, "proof_of_address")

	_, err := newFixture().assembler.Assemble(context.Background(), bundle, applicant(), models.AccountChoice{})

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, []string{"Document manquant : justificatif de domicile"}, validationErr.Issues)
	assert.Equal(t, "Document manquant : justificatif de domicile", UserMessage(err))
}

func TestAssemble_DownstreamFailures(t *testing.T) {
	t.Run("account exists", func(t *testing.T) {
		f := newFixture()
		f.accounts.err = models.ErrAccountExists

		_, err := f.assembler.Assemble(context.Background(), completeBundle(), applicant(), models.AccountChoice{CreateAccount: true, Password: "x"})
		assert.ErrorIs(t, err, models.ErrAccountExists)
		assert.Zero(t, f.store.calls)
		assert.Equal(t, "Un compte existe déjà pour cette adresse email", UserMessage(err))
	})

	t.Run("insert fails after account creation", func(t *testing.T) {
		f := newFixture()
		f.store.err = errors.New("connection reset")

		_, err := f.assembler.Assemble(context.Background(), completeBundle(), applicant(), models.AccountChoice{CreateAccount: true, Password: "x"})
		var assemblyErr *AssemblyError
		require.True(t, errors.As(err, &assemblyErr))
		assert.Equal(t, StagePersistence, assemblyErr.Stage)
		assert.Equal(t, 1, f.accounts.calls, "account is kept")
		assert.Empty(t, f.notifier.submitted)
	})

	t.Run("unknown property", func(t *testing.T) {
		f := newFixture()
		f.properties.err = models.ErrPropertyNotFound

		_, err := f.assembler.Assemble(context.Background(), completeBundle(), applicant(), models.AccountChoice{})
		assert.ErrorIs(t, err, models.ErrPropertyNotFound)
		assert.Zero(t, f.store.calls)
	})

	t.Run("email failure is not fatal", func(t *testing.T) {
		f := newFixture()
		f.notifier.err = errors.New("ses throttled")

		record, err := f.assembler.Assemble(context.Background(), completeBundle(), applicant(), models.AccountChoice{})
		require.NoError(t, err)
		assert.Equal(t, "app-42", record.ID)
	})
}

func TestDocumentStatus(t *testing.T) {
	bundle := models.ApplicationBundle{
		"identity":  {DocumentType: models.DocumentTypeIdentity, IsValid: true, ExtractedData: &models.IdentityData{}},
		"payslip_1": {DocumentType: models.DocumentTypePayslip, IsValid: false, ExtractedData: &models.PayslipData{}},
	}

	status := DocumentStatus(bundle, testNow)
	require.Len(t, status, 1)
	entry := status["identity"]
	assert.Equal(t, 1.0, entry.Confidence)
	assert.Nil(t, entry.FileURL)
}

func TestReviewer(t *testing.T) {
	t.Run("rejection sends email", func(t *testing.T) {
		store := &fakeStore{}
		notifier := &fakeNotifier{}
		review := database.DocumentReview{
			ApplicationID: "app-42",
			DocumentKey:   "payslip_2",
			Status:        models.DocumentStatusRejected,
			Comment:       "Illisible",
		}

		require.NoError(t, NewReviewer(store, notifier).Review(context.Background(), review))
		assert.Equal(t, review, store.review)
		assert.Equal(t, []string{"app-42|jean@example.com|payslip_2|Illisible"}, notifier.rejected)
	})

	t.Run("verification is silent", func(t *testing.T) {
		notifier := &fakeNotifier{}
		err := NewReviewer(&fakeStore{}, notifier).Review(context.Background(), database.DocumentReview{
			ApplicationID: "app-42", DocumentKey: "identity", Status: models.DocumentStatusVerified,
		})
		require.NoError(t, err)
		assert.Empty(t, notifier.rejected)
	})

	t.Run("pending is not a decision", func(t *testing.T) {
		err := NewReviewer(&fakeStore{}, nil).Review(context.Background(), database.DocumentReview{Status: models.DocumentStatusPending})
		assert.Error(t, err)
	})

	t.Run("missing document", func(t *testing.T) {
		err := NewReviewer(&fakeStore{err: models.ErrDocumentNotFound}, nil).Review(context.Background(), database.DocumentReview{Status: models.DocumentStatusRejected})
		assert.ErrorIs(t, err, models.ErrDocumentNotFound)
	})
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "L'adresse email n'est pas valide", UserMessage(&AssemblyError{Stage: StageContact, Err: &models.FieldError{Field: "email", Err: models.ErrInvalidEmail}}))
	assert.Equal(t, "Une erreur est survenue lors de l'envoi de votre dossier", UserMessage(errors.New("boom")))
}
