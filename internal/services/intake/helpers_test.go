package intake

import (
	"context"
	"errors"
	"sync"
	"time"

	"rental-application-engine/internal/models"
)

func validDoc(docType models.DocumentType) models.DocumentAnalysisResult {
	return models.DocumentAnalysisResult{
		DocumentType:    docType,
		IsValid:         true,
		Confidence:      0.9,
		ExtractedData:   models.NewExtractedData(docType),
		PotentialIssues: []string{},
		Status:          models.AnalysisStatusCompleted,
	}
}

func invalidDoc(docType models.DocumentType, issue string) models.DocumentAnalysisResult {
	doc := validDoc(docType)
	doc.IsValid = false
	doc.PotentialIssues = []string{issue}
	return doc
}

func payslip(period, employee string) models.DocumentAnalysisResult {
	doc := validDoc(models.DocumentTypePayslip)
	doc.ExtractedData = &models.PayslipData{EmployeeName: employee, PayPeriod: period}
	return doc
}

func identity(surname, given string) models.DocumentAnalysisResult {
	doc := validDoc(models.DocumentTypeIdentity)
	doc.ExtractedData = &models.IdentityData{Surname: surname, GivenNames: given}
	return doc
}

type fakeStorage struct {
	mu        sync.Mutex
	keys      []string
	failOn    string
	urlErr    error
	fractions []float64
}

func (s *fakeStorage) UploadObject(_ context.Context, key string, _ []byte, _ string, progress func(float64)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn != "" && len(key) >= len(s.failOn) && key[len(key)-len(s.failOn):] == s.failOn {
		return errors.New("storage unavailable")
	}
	s.keys = append(s.keys, key)
	for _, f := range []float64{0.25, 0.5, 1} {
		s.fractions = append(s.fractions, f)
		if progress != nil {
			progress(f)
		}
	}
	return nil
}

func (s *fakeStorage) PublicURL(_ context.Context, key string) (string, error) {
	if s.urlErr != nil {
		return "", s.urlErr
	}
	return "https://files.example.com/" + key, nil
}

// fakeAnalyzer returns queued results in order.
type fakeAnalyzer struct {
	results []models.DocumentAnalysisResult
	calls   []string
}

func (a *fakeAnalyzer) Analyze(_ context.Context, imageURL string, _ models.DocumentType) models.DocumentAnalysisResult {
	a.calls = append(a.calls, imageURL)
	if len(a.results) == 0 {
		return models.DocumentAnalysisResult{
			DocumentType:    models.DocumentTypeUnknown,
			ExtractedData:   models.RawData{},
			PotentialIssues: []string{"Error analyzing document"},
			Status:          models.AnalysisStatusError,
			Error:           "no result queued",
		}
	}
	next := a.results[0]
	a.results = a.results[1:]
	return next
}

type fakeRasterizer struct {
	err   error
	calls int
}

func (r *fakeRasterizer) FirstPageToImage(_ []byte) (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	return "data:image/jpeg;base64,AAAA", nil
}

type fakeRecorder struct {
	uploads     map[string]int
	extractions int
}

func (r *fakeRecorder) ObserveUpload(_ models.DocumentType, outcome string) {
	if r.uploads == nil {
		r.uploads = map[string]int{}
	}
	r.uploads[outcome]++
}

func (r *fakeRecorder) ObserveExtraction(models.DocumentType, models.AnalysisStatus, time.Duration) {
	r.extractions++
}

func file(name, contentType string) FileUpload {
	data := []byte("content of " + name)
	return FileUpload{Name: name, ContentType: contentType, Size: int64(len(data)), Data: data}
}
