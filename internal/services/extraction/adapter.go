package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"rental-application-engine/internal/models"
	"rental-application-engine/internal/services/intake"
	"rental-application-engine/internal/utils"
)

// Confidence reported for every structured response. The model is not asked
// for a calibrated score.
const DefaultConfidence = 0.9

// IssueAnalysisError is the single issue reported when extraction fails.
const IssueAnalysisError = "Error analyzing document"

// Extractor performs the raw model call.
type Extractor interface {
	Extract(ctx context.Context, imageURL, prompt string) (*RawAnalysis, error)
}

// Adapter normalizes raw model output into analysis results.
type Adapter struct {
	extractor Extractor
	now       func() time.Time
}

// NewAdapter creates an adapter over extractor.
func NewAdapter(extractor Extractor) *Adapter {
	return &Adapter{extractor: extractor, now: time.Now}
}

// WithClock overrides the reference time used for payslip periods.
func (a *Adapter) WithClock(now func() time.Time) *Adapter {
	a.now = now
	return a
}

// Analyze extracts imageURL. When expected is set and the detected type differs,
// the result is invalid with a single mismatch issue. Failures never escape as
// errors: they come back as a result with status error.
func (a *Adapter) Analyze(ctx context.Context, imageURL string, expected models.DocumentType) models.DocumentAnalysisResult {
	logger := utils.GetLogger()

	prompt := BuildPrompt(intake.ValidPayslipPeriods(a.now()))
	raw, err := a.extractor.Extract(ctx, imageURL, prompt)
	if err != nil {
		logger.Error("Error analyzing document",
			zap.String("url", redactURL(imageURL)),
			zap.String("expected_type", string(expected)),
			zap.Error(err),
		)
		return failedResult(err)
	}

	result, err := normalize(raw)
	if err != nil {
		logger.Error("Error decoding extracted information",
			zap.String("url", redactURL(imageURL)),
			zap.Error(err),
		)
		return failedResult(err)
	}

	if expected != "" && result.DocumentType != expected {
		logger.Info("Document type mismatch",
			zap.String("expected", string(expected)),
			zap.String("detected", string(result.DocumentType)),
		)
		return models.DocumentAnalysisResult{
			DocumentType:    result.DocumentType,
			IsValid:         false,
			Confidence:      DefaultConfidence,
			ExtractedData:   models.RawData{},
			PotentialIssues: []string{MismatchIssue(result.DocumentType, expected)},
			Status:          models.AnalysisStatusCompleted,
		}
	}

	logger.Info("Document analyzed",
		zap.String("type", string(result.DocumentType)),
		zap.Bool("valid", result.IsValid),
		zap.Int("issues", len(result.PotentialIssues)),
	)
	return result
}

// MismatchIssue is the issue reported when a document of the wrong type is uploaded.
func MismatchIssue(detected, expected models.DocumentType) string {
	return fmt.Sprintf("Ce document semble être un %s. Veuillez fournir un %s.", detected.Label(), expected.Label())
}

func normalize(raw *RawAnalysis) (models.DocumentAnalysisResult, error) {
	docType := models.ParseDocumentType(raw.DocumentType)
	data, err := models.DecodeExtractedData(docType, raw.ExtractedInformation)
	if err != nil {
		return models.DocumentAnalysisResult{}, err
	}

	if identity, ok := data.(*models.IdentityData); ok {
		identity.Surname = utils.FormatName(identity.Surname)
		identity.GivenNames = utils.FormatName(identity.GivenNames)
	}

	issues := make([]string, 0, len(raw.PotentialIssues))
	for _, issue := range raw.PotentialIssues {
		if s := strings.TrimSpace(issue); s != "" {
			issues = append(issues, s)
		}
	}

	return models.DocumentAnalysisResult{
		DocumentType:    docType,
		IsValid:         strings.TrimSpace(raw.ValidityAssessment) == "Valid",
		Confidence:      DefaultConfidence,
		ExtractedData:   data,
		PotentialIssues: issues,
		Status:          models.AnalysisStatusCompleted,
	}, nil
}

func failedResult(err error) models.DocumentAnalysisResult {
	return models.DocumentAnalysisResult{
		DocumentType:    models.DocumentTypeUnknown,
		IsValid:         false,
		Confidence:      0,
		ExtractedData:   models.RawData{},
		PotentialIssues: []string{IssueAnalysisError},
		Status:          models.AnalysisStatusError,
		Error:           err.Error(),
	}
}

// redactURL drops query parameters (signatures) and inline image payloads from logs.
func redactURL(u string) string {
	if strings.HasPrefix(u, "data:") {
		if i := strings.Index(u, ","); i > 0 {
			return u[:i] + ",..."
		}
		return "data:..."
	}
	if i := strings.Index(u, "?"); i >= 0 {
		return u[:i]
	}
	return u
}
