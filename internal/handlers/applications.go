package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"rental-application-engine/internal/models"
	"rental-application-engine/internal/services/database"
	"rental-application-engine/internal/utils"
)

// ApplicationReader loads and updates stored applications.
type ApplicationReader interface {
	GetByID(ctx context.Context, id string) (*models.ApplicationRecord, error)
	ListByProperty(ctx context.Context, propertyID string) ([]*models.ApplicationRecord, error)
	UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus) error
}

// DocumentReviewer applies agent decisions to stored documents.
type DocumentReviewer interface {
	Review(ctx context.Context, review database.DocumentReview) error
}

// BlobReader fetches stored document files.
type BlobReader interface {
	KeyFromURL(url string) (string, bool)
	DownloadObject(ctx context.Context, key string) ([]byte, error)
}

// ApplicationsHandler serves the agent side of submitted applications.
type ApplicationsHandler struct {
	applications ApplicationReader
	reviewer     DocumentReviewer
	blobs        BlobReader
}

// NewApplicationsHandler creates the agent API.
func NewApplicationsHandler(applications ApplicationReader, reviewer DocumentReviewer, blobs BlobReader) *ApplicationsHandler {
	return &ApplicationsHandler{applications: applications, reviewer: reviewer, blobs: blobs}
}

// Register adds the agent routes to mux.
func (h *ApplicationsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/properties/{id}/applications", h.listByProperty)
	mux.HandleFunc("GET /api/applications/{id}", h.get)
	mux.HandleFunc("PATCH /api/applications/{id}/status", h.updateStatus)
	mux.HandleFunc("POST /api/applications/{id}/documents/{key}/review", h.reviewDocument)
	mux.HandleFunc("GET /api/applications/{id}/documents/{key}/file", h.documentFile)
}

func (h *ApplicationsHandler) listByProperty(w http.ResponseWriter, r *http.Request) {
	apps, err := h.applications.ListByProperty(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	if apps == nil {
		apps = []*models.ApplicationRecord{}
	}
	writeOK(w, http.StatusOK, apps)
}

func (h *ApplicationsHandler) get(w http.ResponseWriter, r *http.Request) {
	app, err := h.applications.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeOK(w, http.StatusOK, app)
}

func (h *ApplicationsHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status models.ApplicationStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, badRequest(err), nil)
		return
	}
	if !req.Status.IsValid() {
		writeError(w, badRequest(fmt.Errorf("invalid status %q", req.Status)), nil)
		return
	}

	id := r.PathValue("id")
	if err := h.applications.UpdateStatus(r.Context(), id, req.Status); err != nil {
		writeError(w, err, nil)
		return
	}
	utils.GetLogger().Info("Application status updated",
		zap.String("application_id", id),
		zap.String("status", string(req.Status)),
	)
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "Dossier mis à jour"})
}

func (h *ApplicationsHandler) reviewDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status  models.DocumentStatus `json:"status"`
		Comment string                `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, badRequest(err), nil)
		return
	}
	if req.Status != models.DocumentStatusVerified && req.Status != models.DocumentStatusRejected {
		writeError(w, badRequest(fmt.Errorf("invalid status %q", req.Status)), nil)
		return
	}

	err := h.reviewer.Review(r.Context(), database.DocumentReview{
		ApplicationID: r.PathValue("id"),
		DocumentKey:   r.PathValue("key"),
		Status:        req.Status,
		Comment:       strings.TrimSpace(req.Comment),
	})
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "Document mis à jour"})
}

func (h *ApplicationsHandler) documentFile(w http.ResponseWriter, r *http.Request) {
	app, err := h.applications.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	entry, ok := app.DocumentStatus[r.PathValue("key")]
	if !ok || entry.FileURL == nil {
		writeError(w, models.ErrDocumentNotFound, nil)
		return
	}
	key, ok := h.blobs.KeyFromURL(*entry.FileURL)
	if !ok {
		writeError(w, fmt.Errorf("file url is not a stored object: %w", models.ErrDocumentNotFound), nil)
		return
	}

	data, err := h.blobs.DownloadObject(r.Context(), key)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
