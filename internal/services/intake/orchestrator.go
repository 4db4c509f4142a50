package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"rental-application-engine/internal/config"
	"rental-application-engine/internal/models"
	"rental-application-engine/internal/utils"
)

// BlobStorage persists uploaded files and resolves their public URL.
type BlobStorage interface {
	UploadObject(ctx context.Context, key string, data []byte, contentType string, progress func(fraction float64)) error
	PublicURL(ctx context.Context, key string) (string, error)
}

// Analyzer extracts structured data from a document image.
// Failures are reported in the result, never as a Go error.
type Analyzer interface {
	Analyze(ctx context.Context, imageURL string, expected models.DocumentType) models.DocumentAnalysisResult
}

// Rasterizer converts the first page of a PDF to an image data URI.
type Rasterizer interface {
	FirstPageToImage(pdf []byte) (string, error)
}

// Recorder receives upload and extraction observations.
type Recorder interface {
	ObserveUpload(step models.DocumentType, outcome string)
	ObserveExtraction(step models.DocumentType, status models.AnalysisStatus, elapsed time.Duration)
}

// FileUpload is one file selected by the applicant.
type FileUpload struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}

// UploadRequest is a batch of files for one step.
type UploadRequest struct {
	PropertyID string
	StepID     models.DocumentType
	Files      []FileUpload
}

// Outcome of one file of a batch.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// Upload stages reported in FileError.
const (
	StageUpload     = "upload"
	StagePublicURL  = "public_url"
	StageConversion = "pdf_conversion"
	StageExtraction = "extraction"
)

// FileOutcome reports what happened to one file.
type FileOutcome struct {
	FileName string                         `json:"fileName"`
	Outcome  string                         `json:"outcome"`
	Reason   string                         `json:"reason,omitempty"`
	Result   *models.DocumentAnalysisResult `json:"result,omitempty"`
}

// UploadReport lists the outcome of every processed file, in order.
type UploadReport struct {
	StepID   models.DocumentType `json:"stepId"`
	Outcomes []FileOutcome       `json:"outcomes"`
}

// Count returns how many files ended with the given outcome.
func (r *UploadReport) Count(outcome string) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Outcome == outcome {
			n++
		}
	}
	return n
}

// PreflightError rejects a whole batch before any file is uploaded.
type PreflightError struct {
	File string
	Err  error
}

func (e *PreflightError) Error() string {
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *PreflightError) Unwrap() error {
	return e.Err
}

// FileError stops a batch at the file that failed. Earlier files stay recorded.
type FileError struct {
	File  string
	Stage string
	Err   error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("failed to process %s at %s: %v", e.File, e.Stage, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// ErrExtractionFailed is wrapped by FileError when the analyzer reports an error.
var ErrExtractionFailed = errors.New("document analysis failed")

// OrchestratorConfig tunes an Orchestrator.
type OrchestratorConfig struct {
	MaxFileBytes int64
	Recorder     Recorder
	Now          func() time.Time
}

// Orchestrator runs uploaded files through storage and extraction and records
// the results on a wizard.
type Orchestrator struct {
	storage    BlobStorage
	analyzer   Analyzer
	rasterizer Rasterizer
	recorder   Recorder
	maxBytes   int64
	now        func() time.Time
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(storage BlobStorage, analyzer Analyzer, rasterizer Rasterizer, cfg OrchestratorConfig) *Orchestrator {
	o := &Orchestrator{
		storage:    storage,
		analyzer:   analyzer,
		rasterizer: rasterizer,
		recorder:   cfg.Recorder,
		maxBytes:   cfg.MaxFileBytes,
		now:        cfg.Now,
	}
	if o.maxBytes <= 0 {
		o.maxBytes = config.DefaultMaxUploadBytes
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// Preflight checks size and type of every file. Any failure rejects the batch.
func (o *Orchestrator) Preflight(files []FileUpload) error {
	if len(files) == 0 {
		return models.ErrNoFiles
	}
	for _, f := range files {
		size := f.Size
		if size == 0 {
			size = int64(len(f.Data))
		}
		if size > o.maxBytes {
			return &PreflightError{File: f.Name, Err: models.ErrFileTooLarge}
		}
		if !IsAcceptedContentType(f.ContentType) {
			return &PreflightError{File: f.Name, Err: models.ErrUnsupportedFileType}
		}
	}
	return nil
}

// Upload processes a batch sequentially and records results on w. progress, if
// set, receives a monotonic 0-100 value blended across the batch.
func (o *Orchestrator) Upload(ctx context.Context, w *Wizard, req UploadRequest, progress func(percent float64)) (*UploadReport, error) {
	logger := utils.GetLogger()

	if w.Submitted() {
		return nil, models.ErrWizardSubmitted
	}
	step, ok := w.Catalog().Step(req.StepID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownStep, req.StepID)
	}
	if err := o.Preflight(req.Files); err != nil {
		logger.Warn("Upload batch rejected",
			zap.String("step", string(step.ID)),
			zap.Error(err),
		)
		return nil, err
	}

	report := &UploadReport{StepID: step.ID, Outcomes: make([]FileOutcome, 0, len(req.Files))}
	meter := newProgressMeter(len(req.Files), progress)

	logger.Info("Processing upload batch",
		zap.String("step", string(step.ID)),
		zap.String("property_id", req.PropertyID),
		zap.Int("files", len(req.Files)),
	)

	for i, file := range req.Files {
		outcome, err := o.processFile(ctx, w, step, req.PropertyID, i, file, meter)
		if err != nil {
			report.Outcomes = append(report.Outcomes, FileOutcome{
				FileName: file.Name,
				Outcome:  OutcomeFailed,
				Reason:   err.Error(),
			})
			o.observeUpload(step.ID, OutcomeFailed)
			logger.Error("Upload stopped",
				zap.String("step", string(step.ID)),
				zap.String("file", file.Name),
				zap.Error(err),
			)
			return report, err
		}
		report.Outcomes = append(report.Outcomes, outcome)
		o.observeUpload(step.ID, outcome.Outcome)
		meter.file(i, 1)
	}

	logger.Info("Upload batch processed",
		zap.String("step", string(step.ID)),
		zap.Int("accepted", report.Count(OutcomeAccepted)),
		zap.Int("rejected", report.Count(OutcomeRejected)),
		zap.Int("skipped", report.Count(OutcomeSkipped)),
	)
	return report, nil
}

func (o *Orchestrator) processFile(ctx context.Context, w *Wizard, step models.DocumentStep, propertyID string, i int, file FileUpload, meter *progressMeter) (FileOutcome, error) {
	logger := utils.GetLogger()
	uploadedAt := o.now()

	key := utils.StorageKey(propertyID, uploadedAt, i, file.Name)
	err := o.storage.UploadObject(ctx, key, file.Data, file.ContentType, func(fraction float64) {
		meter.file(i, 0.6*fraction)
	})
	if err != nil {
		return FileOutcome{}, &FileError{File: file.Name, Stage: StageUpload, Err: err}
	}
	meter.file(i, 0.6)

	fileURL, err := o.storage.PublicURL(ctx, key)
	if err != nil {
		return FileOutcome{}, &FileError{File: file.Name, Stage: StagePublicURL, Err: err}
	}
	meter.file(i, 0.7)

	imageURL := fileURL
	if file.ContentType == MimePDF {
		if o.rasterizer == nil {
			return FileOutcome{}, &FileError{File: file.Name, Stage: StageConversion, Err: errors.New("no pdf rasterizer configured")}
		}
		imageURL, err = o.rasterizer.FirstPageToImage(file.Data)
		if err != nil {
			return FileOutcome{}, &FileError{File: file.Name, Stage: StageConversion, Err: err}
		}
	}

	started := time.Now()
	result := o.analyzer.Analyze(ctx, imageURL, step.ID)
	o.observeExtraction(step.ID, result, time.Since(started))
	meter.file(i, 0.9)

	if result.Failed() || (!result.IsValid && len(result.PotentialIssues) == 0) {
		reason := result.Error
		if reason == "" {
			reason = strings.Join(result.PotentialIssues, "; ")
		}
		return FileOutcome{}, &FileError{
			File:  file.Name,
			Stage: StageExtraction,
			Err:   fmt.Errorf("%w: %s", ErrExtractionFailed, reason),
		}
	}

	result.FileURL = fileURL
	result.FileName = file.Name
	result.UploadedAt = &uploadedAt
	if result.Status == "" {
		result.Status = models.AnalysisStatusCompleted
	}

	if step.ID == models.DocumentTypePayslip && result.DocumentType == models.DocumentTypePayslip {
		period := result.PayPeriod()
		if hasValidPeriod(w.Documents(step.ID), period) {
			logger.Warn("Skipping payslip with duplicate period",
				zap.String("file", file.Name),
				zap.String("period", period),
			)
			return FileOutcome{
				FileName: file.Name,
				Outcome:  OutcomeSkipped,
				Reason:   fmt.Sprintf("duplicate pay period %s", period),
			}, nil
		}
		applyPeriodWindow(&result, o.now())
	}

	if err := w.RecordDocument(step.ID, result); err != nil {
		return FileOutcome{}, &FileError{File: file.Name, Stage: StageExtraction, Err: err}
	}

	outcome := FileOutcome{FileName: file.Name, Outcome: OutcomeAccepted, Result: &result}
	if !result.IsValid {
		outcome.Outcome = OutcomeRejected
		outcome.Reason = strings.Join(result.PotentialIssues, "; ")
	}

	logger.Info("Document recorded",
		zap.String("step", string(step.ID)),
		zap.String("file", file.Name),
		zap.String("key", key),
		zap.Bool("valid", result.IsValid),
	)
	return outcome, nil
}

// hasValidPeriod reports whether a valid document already covers period.
func hasValidPeriod(docs []models.DocumentAnalysisResult, period string) bool {
	if period == "" {
		return false
	}
	for _, doc := range docs {
		if doc.IsValid && doc.PayPeriod() == period {
			return true
		}
	}
	return false
}

// applyPeriodWindow invalidates a payslip whose period is unreadable or outside the window.
func applyPeriodWindow(result *models.DocumentAnalysisResult, ref time.Time) {
	period := result.PayPeriod()
	if IsValidPeriod(period, ref) {
		return
	}
	result.IsValid = false
	if !IsWellFormedPeriod(period) {
		result.AddIssue(fmt.Sprintf("Période de paie illisible ou mal formée : %q", period))
		return
	}
	result.AddIssue(fmt.Sprintf("La période %s est hors de la fenêtre de validité (%s)",
		period, strings.Join(ValidPayslipPeriods(ref), ", ")))
}

func (o *Orchestrator) observeUpload(step models.DocumentType, outcome string) {
	if o.recorder != nil {
		o.recorder.ObserveUpload(step, outcome)
	}
}

func (o *Orchestrator) observeExtraction(step models.DocumentType, result models.DocumentAnalysisResult, elapsed time.Duration) {
	if o.recorder == nil {
		return
	}
	status := result.Status
	if status == "" {
		status = models.AnalysisStatusCompleted
	}
	o.recorder.ObserveExtraction(step, status, elapsed)
}

// progressMeter blends per-file progress into a batch percentage that never decreases.
type progressMeter struct {
	total  int
	last   float64
	report func(float64)
}

func newProgressMeter(total int, report func(float64)) *progressMeter {
	return &progressMeter{total: total, report: report}
}

func (m *progressMeter) file(index int, fraction float64) {
	if m.report == nil || m.total == 0 {
		return
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	value := (float64(index) + fraction) / float64(m.total) * 100
	if value <= m.last {
		return
	}
	m.last = value
	m.report(value)
}
