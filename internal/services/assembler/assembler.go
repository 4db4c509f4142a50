// Package assembler turns a completed document bundle and the applicant's
// contact details into a stored rental application.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"rental-application-engine/internal/models"
	"rental-application-engine/internal/services/intake"
	"rental-application-engine/internal/utils"
)

// Assembly stages, reported in AssemblyError.
const (
	StageValidation   = "validation"
	StageContact      = "contact"
	StageAccount      = "account"
	StageProperty     = "property"
	StagePersistence  = "persistence"
	StageNotification = "notification"
)

// AccountProvider provisions applicant accounts.
type AccountProvider interface {
	SignUp(ctx context.Context, email, password string, metadata map[string]string) (string, error)
}

// PropertyLookup resolves the listing an application targets.
type PropertyLookup interface {
	GetSummary(ctx context.Context, id string) (*models.PropertySummary, error)
}

// ApplicationStore persists application records.
type ApplicationStore interface {
	Insert(ctx context.Context, app *models.ApplicationRecord) (string, error)
}

// Notifier sends applicant emails.
type Notifier interface {
	SendApplicationSubmitted(ctx context.Context, applicationID, recipient string, property models.PropertySummary) error
	SendDocumentRejection(ctx context.Context, applicationID, recipient, documentKey, comment string) error
}

// ValidationError is returned when the bundle fails the submission checks.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "application documents are not valid: " + strings.Join(e.Issues, "; ")
}

// AssemblyError wraps the failure of one assembly stage.
type AssemblyError struct {
	Stage string
	Err   error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("assembly failed at %s: %v", e.Stage, e.Err)
}

func (e *AssemblyError) Unwrap() error {
	return e.Err
}

// Assembler builds and stores applications.
type Assembler struct {
	accounts     AccountProvider
	properties   PropertyLookup
	applications ApplicationStore
	notifier     Notifier
	now          func() time.Time
}

// New creates an assembler. notifier may be nil to skip emails.
func New(accounts AccountProvider, properties PropertyLookup, applications ApplicationStore, notifier Notifier) *Assembler {
	return &Assembler{
		accounts:     accounts,
		properties:   properties,
		applications: applications,
		notifier:     notifier,
		now:          time.Now,
	}
}

// WithClock overrides the verification timestamp source.
func (a *Assembler) WithClock(now func() time.Time) *Assembler {
	a.now = now
	return a
}

// Assemble validates bundle, optionally creates an account, stores the
// application and sends the confirmation email.
//
// Nothing is persisted unless the bundle and the contact fields are valid.
// A created account is not removed when a later stage fails.
func (a *Assembler) Assemble(ctx context.Context, bundle models.ApplicationBundle, info models.ApplicantInfo, choice models.AccountChoice) (*models.ApplicationRecord, error) {
	logger := utils.GetLogger().With(zap.String("property_id", info.PropertyID))

	if check := intake.ValidateSet(bundle); !check.IsValid {
		logger.Info("Application bundle rejected", zap.Strings("issues", check.Issues))
		return nil, &AssemblyError{Stage: StageValidation, Err: &ValidationError{Issues: check.Issues}}
	}

	info.Email = strings.TrimSpace(info.Email)
	info.Phone = strings.TrimSpace(info.Phone)
	if err := models.ValidateApplicantInfo(info); err != nil {
		return nil, &AssemblyError{Stage: StageContact, Err: err}
	}
	if err := models.ValidateAccountChoice(choice); err != nil {
		return nil, &AssemblyError{Stage: StageContact, Err: err}
	}

	var userID *string
	if choice.CreateAccount {
		id, err := a.accounts.SignUp(ctx, info.Email, choice.Password, map[string]string{"phone": info.Phone})
		if err != nil {
			logger.Error("Failed to create account", zap.Error(err))
			return nil, &AssemblyError{Stage: StageAccount, Err: err}
		}
		userID = &id
		logger.Info("Account created", zap.String("user_id", id))
	}

	property, err := a.properties.GetSummary(ctx, info.PropertyID)
	if err != nil {
		logger.Error("Failed to load property", zap.Error(err))
		return nil, &AssemblyError{Stage: StageProperty, Err: err}
	}

	record := &models.ApplicationRecord{
		PropertyID:     info.PropertyID,
		UserID:         userID,
		Email:          info.Email,
		Phone:          info.Phone,
		Message:        strings.TrimSpace(info.Message),
		Status:         models.ApplicationStatusPending,
		DocumentStatus: DocumentStatus(bundle, a.now().UTC()),
		CreatedAt:      a.now().UTC(),
	}
	if identity, ok := bundle.Identity(); ok {
		record.FirstName = identity.GivenNames
		record.LastName = identity.Surname
	}

	id, err := a.applications.Insert(ctx, record)
	if err != nil {
		logger.Error("Failed to store application", zap.Error(err))
		return nil, &AssemblyError{Stage: StagePersistence, Err: err}
	}
	record.ID = id
	logger.Info("Application stored",
		zap.String("application_id", id),
		zap.Int("documents", len(record.DocumentStatus)),
	)

	if a.notifier != nil {
		if err := a.notifier.SendApplicationSubmitted(ctx, id, info.Email, *property); err != nil {
			logger.Error("Failed to send confirmation email",
				zap.String("application_id", id),
				zap.Error(err),
			)
		}
	}

	return record, nil
}

// DocumentStatus re-keys the valid documents of bundle into stored review entries.
func DocumentStatus(bundle models.ApplicationBundle, verifiedAt time.Time) models.DocumentStatusMap {
	out := make(models.DocumentStatusMap, len(bundle))
	for key, doc := range bundle {
		if !doc.IsValid {
			continue
		}
		at := verifiedAt
		confidence := doc.Confidence
		if confidence == 0 {
			confidence = 1
		}
		var fileURL *string
		if doc.FileURL != "" {
			u := doc.FileURL
			fileURL = &u
		}
		out[key] = models.DocumentStatusEntry{
			Status:        models.DocumentStatusVerified,
			VerifiedAt:    &at,
			Confidence:    confidence,
			ExtractedData: doc.ExtractedData,
			FileURL:       fileURL,
		}
	}
	return out
}

// UserMessage returns the applicant-facing text for an assembly failure.
func UserMessage(err error) string {
	var fieldErr *models.FieldError
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		return strings.Join(validationErr.Issues, "\n")
	case errors.Is(err, models.ErrMissingContact):
		return "Veuillez renseigner votre email et votre téléphone"
	case errors.Is(err, models.ErrInvalidEmail):
		return "L'adresse email n'est pas valide"
	case errors.Is(err, models.ErrInvalidPhone):
		return "Le numéro de téléphone n'est pas valide"
	case errors.Is(err, models.ErrMissingPassword):
		return "Veuillez choisir un mot de passe pour créer votre compte"
	case errors.Is(err, models.ErrAccountExists):
		return "Un compte existe déjà pour cette adresse email"
	case errors.Is(err, models.ErrPropertyNotFound):
		return "Ce bien n'est plus disponible"
	case errors.As(err, &fieldErr):
		return "Le champ " + fieldErr.Field + " n'est pas valide"
	default:
		return "Une erreur est survenue lors de l'envoi de votre dossier"
	}
}
