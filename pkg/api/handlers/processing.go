package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gottino/rmirror-cloud/pkg/api/middleware"
	"github.com/gottino/rmirror-cloud/pkg/ingest"
	"github.com/gottino/rmirror-cloud/pkg/models"
)

// maxUploadBytes bounds one multipart upload (source + pdf).
const maxUploadBytes = 64 << 20

// ProcessingHandler handles device upload endpoints.
type ProcessingHandler struct {
	ingest *ingest.Service
}

// NewProcessingHandler creates a new ProcessingHandler.
func NewProcessingHandler(ing *ingest.Service) *ProcessingHandler {
	return &ProcessingHandler{ingest: ing}
}

// Upload handles POST /v1/processing/rm-file.
//
// Multipart form fields:
//   - file: the raw page source blob (required)
//   - pdf: the rendered PDF for OCR (optional, falls back to file)
//   - notebook_uuid, page_uuid: device identifiers (required)
//   - notebook_name, parent_uuid, document_type, page_number: metadata
//
// Quota exhaustion is not an error: the response is 200 with
// status=pending_quota and the blob stays stored server-side.
func (h *ProcessingHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		Unauthorized(w, "Authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		BadRequest(w, "Invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	source, ok := readFormFile(w, r, "file", true)
	if !ok {
		return
	}
	pdf, ok := readFormFile(w, r, "pdf", false)
	if !ok {
		return
	}

	pageNumber, _ := strconv.Atoi(r.FormValue("page_number"))

	up := &ingest.Upload{
		NotebookUUID: r.FormValue("notebook_uuid"),
		NotebookName: r.FormValue("notebook_name"),
		DocumentType: r.FormValue("document_type"),
		PageUUID:     r.FormValue("page_uuid"),
		PageNumber:   pageNumber,
		Source:       source,
		PDF:          pdf,
	}
	if parent := r.FormValue("parent_uuid"); parent != "" {
		up.ParentUUID = &parent
	}

	result, err := h.ingest.HandleUpload(r.Context(), userID, up)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrPendingQuotaCap):
			Conflict(w, "Too many pages awaiting quota; wait for the next billing period")
		case errors.Is(err, ingest.ErrInvalidUpload):
			BadRequest(w, err.Error())
		default:
			InternalServerError(w, "Upload processing failed")
		}
		return
	}

	WriteJSONOK(w, result)
}

// MetadataRequest is the request body for POST /v1/processing/metadata/update.
type MetadataRequest struct {
	NotebookUUID string     `json:"notebook_uuid"`
	VisibleName  string     `json:"visible_name"`
	ParentUUID   *string    `json:"parent_uuid,omitempty"`
	DocumentType string     `json:"document_type,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
}

// MetadataResponse reports whether a metadata sync was scheduled.
type MetadataResponse struct {
	SyncType string `json:"sync_type"` // queued or skipped
}

// Metadata handles POST /v1/processing/metadata/update.
// Never touches quota; skipped entirely for never-synced notebooks.
func (h *ProcessingHandler) Metadata(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		Unauthorized(w, "Authentication required")
		return
	}

	var req MetadataRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.NotebookUUID == "" {
		BadRequest(w, "notebook_uuid is required")
		return
	}

	update := &ingest.MetadataUpdate{
		NotebookUUID: req.NotebookUUID,
		VisibleName:  req.VisibleName,
		ParentUUID:   req.ParentUUID,
		DocumentType: req.DocumentType,
	}
	if req.LastModified != nil {
		update.LastModified = *req.LastModified
	}

	status, err := h.ingest.HandleMetadata(r.Context(), userID, update)
	if err != nil {
		InternalServerError(w, "Metadata processing failed")
		return
	}

	WriteJSONOK(w, MetadataResponse{SyncType: string(status)})
}

// readFormFile reads one multipart file field. Returns (nil, true) when an
// optional field is absent.
func readFormFile(w http.ResponseWriter, r *http.Request, field string, required bool) ([]byte, bool) {
	file, _, err := r.FormFile(field)
	if err != nil {
		if required {
			BadRequest(w, "Missing file field: "+field)
			return nil, false
		}
		return nil, true
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		BadRequest(w, "Failed to read file field: "+field)
		return nil, false
	}
	return data, true
}
