package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gottino/rmirror-cloud/pkg/api/middleware"
	"github.com/gottino/rmirror-cloud/pkg/models"
	"github.com/gottino/rmirror-cloud/pkg/store"
)

// NotebookPurger removes a notebook's delivered objects from external
// destinations before local deletion.
type NotebookPurger interface {
	PurgeNotebook(ctx context.Context, userID, notebookUUID string) (int, error)
}

// NotebookHandler exposes the mirrored notebook tree.
type NotebookHandler struct {
	store  store.Store
	purger NotebookPurger
}

// NewNotebookHandler creates a new NotebookHandler. purger may be nil, in
// which case purge requests are rejected.
func NewNotebookHandler(st store.Store, purger NotebookPurger) *NotebookHandler {
	return &NotebookHandler{store: st, purger: purger}
}

// NotebookResponse is one notebook in list/get responses.
type NotebookResponse struct {
	ID           string  `json:"id"`
	NotebookUUID string  `json:"notebook_uuid"`
	VisibleName  string  `json:"visible_name"`
	ParentUUID   *string `json:"parent_uuid,omitempty"`
	DocumentType string  `json:"document_type,omitempty"`
	PageCount    int     `json:"page_count"`
}

// PageResponse is one page in page listings. OCR text is included only on
// completed pages.
type PageResponse struct {
	ID          string   `json:"id"`
	PageUUID    string   `json:"page_uuid"`
	PageNumber  int      `json:"page_number"`
	OCRStatus   string   `json:"ocr_status"`
	OCRText     *string  `json:"ocr_text,omitempty"`
	Confidence  *float64 `json:"ocr_confidence,omitempty"`
	ContentHash string   `json:"content_hash,omitempty"`
}

// List handles GET /v1/notebooks/.
func (h *NotebookHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		Unauthorized(w, "Authentication required")
		return
	}

	notebooks, err := h.store.ListNotebooks(r.Context(), userID)
	if err != nil {
		InternalServerError(w, "Failed to list notebooks")
		return
	}

	out := make([]NotebookResponse, 0, len(notebooks))
	for _, nb := range notebooks {
		pages, err := h.store.ListPages(r.Context(), nb.ID)
		if err != nil {
			InternalServerError(w, "Failed to list pages")
			return
		}
		out = append(out, NotebookResponse{
			ID:           nb.ID,
			NotebookUUID: nb.NotebookUUID,
			VisibleName:  nb.VisibleName,
			ParentUUID:   nb.ParentUUID,
			DocumentType: nb.DocumentType,
			PageCount:    len(pages),
		})
	}

	WriteJSONOK(w, out)
}

// Pages handles GET /v1/notebooks/{uuid}/pages.
func (h *NotebookHandler) Pages(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		Unauthorized(w, "Authentication required")
		return
	}

	notebookUUID := chi.URLParam(r, "uuid")
	notebook, err := h.store.GetNotebook(r.Context(), userID, notebookUUID)
	if err != nil {
		if errors.Is(err, models.ErrNotebookNotFound) {
			NotFound(w, "Notebook not found")
			return
		}
		InternalServerError(w, "Failed to get notebook")
		return
	}

	pages, err := h.store.ListPages(r.Context(), notebook.ID)
	if err != nil {
		InternalServerError(w, "Failed to list pages")
		return
	}

	out := make([]PageResponse, 0, len(pages))
	for _, p := range pages {
		resp := PageResponse{
			ID:          p.ID,
			PageUUID:    p.PageUUID,
			PageNumber:  p.PageNumber,
			OCRStatus:   p.OCRStatus,
			ContentHash: p.ContentHash,
		}
		if p.Status() == models.OCRCompleted {
			resp.OCRText = p.OCRText
			resp.Confidence = p.OCRConfidence
		}
		out = append(out, resp)
	}

	WriteJSONOK(w, out)
}

// Delete handles DELETE /v1/notebooks/{uuid}. Cascades to pages, sync
// records and open work items. With ?purge=true, delivered objects are
// first removed from destinations that support deletion; a purge failure
// leaves the notebook in place so the purge can be retried.
func (h *NotebookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		Unauthorized(w, "Authentication required")
		return
	}

	notebookUUID := chi.URLParam(r, "uuid")

	if r.URL.Query().Get("purge") == "true" {
		if h.purger == nil {
			BadRequest(w, "Purge is not available")
			return
		}
		if _, err := h.purger.PurgeNotebook(r.Context(), userID, notebookUUID); err != nil {
			if errors.Is(err, models.ErrNotebookNotFound) {
				NotFound(w, "Notebook not found")
				return
			}
			InternalServerError(w, "Failed to purge destination copies")
			return
		}
	}

	if err := h.store.DeleteNotebook(r.Context(), userID, notebookUUID); err != nil {
		if errors.Is(err, models.ErrNotebookNotFound) {
			NotFound(w, "Notebook not found")
			return
		}
		InternalServerError(w, "Failed to delete notebook")
		return
	}

	WriteJSON(w, http.StatusNoContent, nil)
}
