// Package handlers implements the thin external HTTP surface (§6): upload
// init/complete, document CRUD, and job get. It is explicitly out-of-scope
// glue — a façade over internal/services.DocumentService, which holds the
// actual upload/versioning protocol (C9's entry point).
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	appMiddleware "github.com/markdave123-py/Contexta/internal/api/middlewares"
	"github.com/markdave123-py/Contexta/internal/services"
)

// DocumentHandler implements the Init Upload / Complete Upload / document
// CRUD / Job Get operations of §6.
type DocumentHandler struct {
	docs *services.DocumentService
}

func NewDocumentHandler(docs *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{docs: docs}
}

type initUploadRequest struct {
	Title       string `json:"title"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

type initUploadResponse struct {
	DocumentID string `json:"documentId"`
	VersionID  string `json:"versionId"`
	JobID      string `json:"jobId"`
	ObjectKey  string `json:"objectKey"`
	UploadURL  string `json:"uploadUrl"`
	ExpiresIn  int    `json:"expiresIn"`
}

// InitUpload handles POST /api/documents (§6 "Upload init").
func (h *DocumentHandler) InitUpload(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := appMiddleware.TenantID(r.Context())
	if !ok {
		http.Error(w, "tenant_id not found in context", http.StatusUnauthorized)
		return
	}
	uploaderID, _ := appMiddleware.UserID(r.Context())

	var req initUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.Filename == "" || req.ContentType == "" {
		http.Error(w, "filename and contentType are required", http.StatusBadRequest)
		return
	}

	result, err := h.docs.InitUpload(r.Context(), tenantID, uploaderID, req.Title, req.Filename, req.ContentType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, initUploadResponse{
		DocumentID: result.DocumentID,
		VersionID:  result.VersionID,
		JobID:      result.JobID,
		ObjectKey:  result.ObjectKey,
		UploadURL:  result.UploadURL,
		ExpiresIn:  result.ExpiresIn,
	})
}

type completeUploadRequest struct {
	VersionID   string `json:"versionId"`
	FileSize    int64  `json:"fileSize"`
	ContentHash string `json:"contentHash"`
}

// CompleteUpload handles POST /api/versions/{versionID}/complete (§6
// "Upload complete").
func (h *DocumentHandler) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := appMiddleware.TenantID(r.Context())
	if !ok {
		http.Error(w, "tenant_id not found in context", http.StatusUnauthorized)
		return
	}

	var req completeUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	versionID := chi.URLParam(r, "versionID")
	if versionID == "" {
		versionID = req.VersionID
	}

	if err := h.docs.CompleteUpload(r.Context(), tenantID, versionID, req.FileSize, req.ContentHash); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "queued"})
}

// ListDocuments handles GET /api/documents.
func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := appMiddleware.TenantID(r.Context())
	if !ok {
		http.Error(w, "tenant_id not found in context", http.StatusUnauthorized)
		return
	}

	docs, err := h.docs.List(r.Context(), tenantID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// GetDocument handles GET /api/documents/{documentID}.
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := appMiddleware.TenantID(r.Context())
	if !ok {
		http.Error(w, "tenant_id not found in context", http.StatusUnauthorized)
		return
	}

	doc, err := h.docs.Get(r.Context(), tenantID, chi.URLParam(r, "documentID"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type deleteDocumentRequest struct {
	VersionID string `json:"versionId"`
}

// DeleteDocument handles DELETE /api/documents/{documentID}: marks the
// document deleted_pending and cancels the non-terminal jobs of the version
// named by versionId in the body, if one is given (§6).
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := appMiddleware.TenantID(r.Context())
	if !ok {
		http.Error(w, "tenant_id not found in context", http.StatusUnauthorized)
		return
	}

	var req deleteDocumentRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := h.docs.Delete(r.Context(), tenantID, chi.URLParam(r, "documentID"), req.VersionID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetJob handles GET /api/jobs/{jobID} (§6 "Job get").
func (h *DocumentHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := appMiddleware.TenantID(r.Context())
	if !ok {
		http.Error(w, "tenant_id not found in context", http.StatusUnauthorized)
		return
	}

	job, err := h.docs.GetJob(r.Context(), tenantID, chi.URLParam(r, "jobID"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
