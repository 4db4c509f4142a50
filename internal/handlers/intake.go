package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"rental-application-engine/internal/config"
	"rental-application-engine/internal/models"
	"rental-application-engine/internal/services/extraction"
	"rental-application-engine/internal/services/intake"
	"rental-application-engine/internal/utils"
)

// Multipart form field holding the uploaded files.
const filesField = "files"

// Uploader runs a batch of files through storage and extraction.
type Uploader interface {
	Upload(ctx context.Context, w *intake.Wizard, req intake.UploadRequest, progress func(percent float64)) (*intake.UploadReport, error)
}

// Submitter turns a completed bundle into a stored application.
type Submitter interface {
	Assemble(ctx context.Context, bundle models.ApplicationBundle, info models.ApplicantInfo, choice models.AccountChoice) (*models.ApplicationRecord, error)
}

// BlobRemover deletes stored files of removed documents.
type BlobRemover interface {
	KeyFromURL(url string) (string, bool)
	DeleteObject(ctx context.Context, key string) error
}

// SubmissionRecorder counts submission attempts.
type SubmissionRecorder interface {
	ObserveSubmission(result string)
}

// IntakeHandler serves the document intake wizard API.
type IntakeHandler struct {
	sessions  *SessionStore
	uploader  Uploader
	submitter Submitter
	blobs     BlobRemover
	recorder  SubmissionRecorder
	maxBytes  int64
}

// IntakeOptions holds the optional parts of an IntakeHandler.
type IntakeOptions struct {
	Blobs          BlobRemover
	Recorder       SubmissionRecorder
	MaxUploadBytes int64
}

// NewIntakeHandler creates the intake API.
func NewIntakeHandler(sessions *SessionStore, uploader Uploader, submitter Submitter, opts IntakeOptions) *IntakeHandler {
	maxBytes := opts.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = config.DefaultMaxUploadBytes
	}
	return &IntakeHandler{
		sessions:  sessions,
		uploader:  uploader,
		submitter: submitter,
		blobs:     opts.Blobs,
		recorder:  opts.Recorder,
		maxBytes:  maxBytes,
	}
}

// Register adds the intake routes to mux.
func (h *IntakeHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/steps", h.listSteps)
	mux.HandleFunc("POST /api/sessions", h.createSession)
	mux.HandleFunc("GET /api/sessions/{id}", h.getSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.deleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/steps/{step}/files", h.uploadFiles)
	mux.HandleFunc("DELETE /api/sessions/{id}/steps/{step}/documents/{n}", h.removeDocument)
	mux.HandleFunc("POST /api/sessions/{id}/next", h.navigate(func(w *intake.Wizard, _ *http.Request) error { return w.GoNext() }))
	mux.HandleFunc("POST /api/sessions/{id}/previous", h.navigate(func(w *intake.Wizard, _ *http.Request) error { return w.GoPrevious() }))
	mux.HandleFunc("POST /api/sessions/{id}/jump", h.navigate(jumpTo))
	mux.HandleFunc("POST /api/sessions/{id}/submit", h.submit)
}

// SessionResponse is the wizard state returned by session endpoints.
type SessionResponse struct {
	SessionID  string          `json:"sessionId"`
	PropertyID string          `json:"propertyId"`
	State      intake.Snapshot `json:"state"`
}

// UploadedFile is one file outcome with its display message.
type UploadedFile struct {
	intake.FileOutcome
	Message string `json:"message,omitempty"`
}

// UploadResponse reports an upload batch and the resulting wizard state.
type UploadResponse struct {
	StepID models.DocumentType `json:"stepId"`
	Files  []UploadedFile      `json:"files"`
	State  intake.Snapshot     `json:"state"`
}

// SubmitRequest carries the summary form.
type SubmitRequest struct {
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Message       string `json:"message"`
	CreateAccount bool   `json:"create_account"`
	Password      string `json:"password"`
}

// SubmitResponse identifies the stored application.
type SubmitResponse struct {
	ApplicationID string  `json:"applicationId"`
	UserID        *string `json:"userId"`
}

func (h *IntakeHandler) listSteps(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, h.sessions.Catalog().Steps())
}

func (h *IntakeHandler) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PropertyID string `json:"property_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, badRequest(err), nil)
		return
	}
	if strings.TrimSpace(req.PropertyID) == "" {
		writeError(w, badRequest(errors.New("property_id is required")), nil)
		return
	}

	session := h.sessions.Create(strings.TrimSpace(req.PropertyID))
	writeOK(w, http.StatusCreated, h.sessionResponse(session))
}

func (h *IntakeHandler) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeOK(w, http.StatusOK, h.sessionResponse(session))
}

func (h *IntakeHandler) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.PathValue("id")); err != nil {
		writeError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *IntakeHandler) uploadFiles(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	stepID := models.DocumentType(r.PathValue("step"))
	logger := utils.GetLogger().With(
		zap.String("session_id", session.ID),
		zap.String("step", string(stepID)),
	)

	files, err := h.readFiles(w, r)
	if err != nil {
		writeError(w, err, nil)
		return
	}

	var resp *UploadResponse
	err = session.Do(func(wz *intake.Wizard) error {
		report, uploadErr := h.uploader.Upload(r.Context(), wz, intake.UploadRequest{
			PropertyID: session.PropertyID,
			StepID:     stepID,
			Files:      files,
		}, func(percent float64) {
			logger.Debug("Upload progress", zap.Float64("percent", percent))
		})
		if report != nil {
			resp = uploadResponse(report, wz.Snapshot())
		}
		return uploadErr
	})
	if err != nil {
		var partial interface{}
		if resp != nil {
			partial = resp
		}
		writeError(w, err, partial)
		return
	}
	writeOK(w, http.StatusOK, resp)
}

// readFiles reads the multipart files. Oversized parts are not read so
// preflight can reject them by declared size.
func (h *IntakeHandler) readFiles(w http.ResponseWriter, r *http.Request) ([]intake.FileUpload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, 10*h.maxBytes+(1<<20))
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		return nil, badRequest(err)
	}

	headers := r.MultipartForm.File[filesField]
	files := make([]intake.FileUpload, 0, len(headers))
	for _, header := range headers {
		file := intake.FileUpload{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
		}
		if header.Size <= h.maxBytes {
			data, err := readPart(header)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", header.Filename, err)
			}
			file.Data = data
			if file.ContentType == "" || file.ContentType == "application/octet-stream" {
				file.ContentType = http.DetectContentType(data)
			}
		}
		files = append(files, file)
	}
	return files, nil
}

func readPart(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func uploadResponse(report *intake.UploadReport, state intake.Snapshot) *UploadResponse {
	resp := &UploadResponse{StepID: report.StepID, Files: make([]UploadedFile, 0, len(report.Outcomes)), State: state}
	for _, outcome := range report.Outcomes {
		file := UploadedFile{FileOutcome: outcome}
		if outcome.Result != nil {
			file.Message = extraction.ValidationMessage(*outcome.Result)
		}
		resp.Files = append(resp.Files, file)
	}
	return resp
}

func (h *IntakeHandler) removeDocument(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	// n is 1-based, like the payslip_n bundle keys.
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n < 1 {
		writeError(w, models.ErrDocumentNotFound, nil)
		return
	}

	stepID := models.DocumentType(r.PathValue("step"))
	var state intake.Snapshot
	var removed models.DocumentAnalysisResult
	err = session.Do(func(wz *intake.Wizard) error {
		docs := wz.Documents(stepID)
		if n <= len(docs) {
			removed = docs[n-1]
		}
		if err := wz.RemoveDocument(stepID, n-1); err != nil {
			return err
		}
		state = wz.Snapshot()
		return nil
	})
	if err != nil {
		writeError(w, err, nil)
		return
	}
	h.deleteBlob(r.Context(), removed.FileURL)
	writeOK(w, http.StatusOK, SessionResponse{SessionID: session.ID, PropertyID: session.PropertyID, State: state})
}

// deleteBlob removes the stored file of a removed document. Failures only leave
// an orphan object behind and are logged.
func (h *IntakeHandler) deleteBlob(ctx context.Context, fileURL string) {
	if h.blobs == nil || fileURL == "" {
		return
	}
	key, ok := h.blobs.KeyFromURL(fileURL)
	if !ok {
		return
	}
	if err := h.blobs.DeleteObject(ctx, key); err != nil {
		utils.GetLogger().Warn("Failed to delete removed document", zap.String("key", key), zap.Error(err))
	}
}

func jumpTo(wz *intake.Wizard, r *http.Request) error {
	var req struct {
		Index *int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return badRequest(err)
	}
	if req.Index == nil {
		return badRequest(errors.New("index is required"))
	}
	return wz.JumpTo(*req.Index)
}

func (h *IntakeHandler) navigate(move func(w *intake.Wizard, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := h.sessions.Get(r.PathValue("id"))
		if err != nil {
			writeError(w, err, nil)
			return
		}

		var state intake.Snapshot
		err = session.Do(func(wz *intake.Wizard) error {
			if err := move(wz, r); err != nil {
				return err
			}
			state = wz.Snapshot()
			return nil
		})
		if err != nil {
			writeError(w, err, nil)
			return
		}
		writeOK(w, http.StatusOK, SessionResponse{SessionID: session.ID, PropertyID: session.PropertyID, State: state})
	}
}

func (h *IntakeHandler) submit(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err, nil)
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, badRequest(err), nil)
		return
	}

	var record *models.ApplicationRecord
	err = session.Do(func(wz *intake.Wizard) error {
		if session.record != nil {
			return models.ErrWizardSubmitted
		}

		// A submitted wizard without a record means assembly failed; the
		// applicant may correct the form and retry with the same bundle.
		bundle := wz.Bundle()
		if !wz.Submitted() {
			var submitErr error
			if bundle, submitErr = wz.Submit(); submitErr != nil {
				return submitErr
			}
		}

		stored, assembleErr := h.submitter.Assemble(r.Context(), bundle, models.ApplicantInfo{
			PropertyID: session.PropertyID,
			Email:      req.Email,
			Phone:      req.Phone,
			Message:    req.Message,
		}, models.AccountChoice{
			CreateAccount: req.CreateAccount,
			Password:      req.Password,
		})
		if assembleErr != nil {
			return assembleErr
		}
		session.record = stored
		record = stored
		return nil
	})
	if err != nil {
		h.observeSubmission(submissionResult(err))
		writeError(w, err, nil)
		return
	}

	h.observeSubmission("success")
	utils.GetLogger().Info("Application submitted",
		zap.String("session_id", session.ID),
		zap.String("application_id", record.ID),
	)
	writeOK(w, http.StatusCreated, SubmitResponse{ApplicationID: record.ID, UserID: record.UserID})
}

func submissionResult(err error) string {
	status, _ := describeError(err)
	switch {
	case status == http.StatusConflict:
		return "conflict"
	case status < http.StatusInternalServerError:
		return "rejected"
	default:
		return "failed"
	}
}

func (h *IntakeHandler) observeSubmission(result string) {
	if h.recorder != nil {
		h.recorder.ObserveSubmission(result)
	}
}

func (h *IntakeHandler) sessionResponse(session *Session) SessionResponse {
	var state intake.Snapshot
	_ = session.Do(func(wz *intake.Wizard) error {
		state = wz.Snapshot()
		return nil
	})
	return SessionResponse{SessionID: session.ID, PropertyID: session.PropertyID, State: state}
}
