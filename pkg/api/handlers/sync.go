package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gottino/rmirror-cloud/internal/logger"
	"github.com/gottino/rmirror-cloud/pkg/api/middleware"
	"github.com/gottino/rmirror-cloud/pkg/models"
	"github.com/gottino/rmirror-cloud/pkg/store"
)

// SyncHandler exposes manual sync triggers.
type SyncHandler struct {
	store store.Store
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(st store.Store) *SyncHandler {
	return &SyncHandler{store: st}
}

// SyncTriggerRequest tunes the initial bootstrap. The body is optional;
// omitted fields default to an unbounded, non-forced run.
type SyncTriggerRequest struct {
	// PageLimit caps how many pages this trigger schedules. Zero means all.
	PageLimit int `json:"page_limit"`

	// Force reruns the bootstrap even when sync records already exist.
	Force bool `json:"force"`
}

// SyncTriggerResponse reports how much work a trigger scheduled.
type SyncTriggerResponse struct {
	PagesQueued     int `json:"pages_queued"`
	NotebooksQueued int `json:"notebooks_queued"`
}

// Initial handles POST /v1/sync/initial: schedules container items for the
// user's notebooks and a full sync for every transcribed page, up to
// page_limit. A second run is rejected with 409 unless force is set; pages
// already at their destinations are skipped cheaply by the workers via
// sync-record hashes.
func (h *SyncHandler) Initial(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		Unauthorized(w, "Authentication required")
		return
	}

	var req SyncTriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "Invalid request body")
		return
	}
	if req.PageLimit < 0 {
		BadRequest(w, "page_limit must not be negative")
		return
	}

	if !req.Force {
		synced, err := h.store.UserEverSynced(r.Context(), userID)
		if err != nil {
			InternalServerError(w, "Failed to check sync state")
			return
		}
		if synced {
			Conflict(w, "Initial sync already ran; set force to rerun")
			return
		}
	}

	notebooks, err := h.store.ListNotebooks(r.Context(), userID)
	if err != nil {
		InternalServerError(w, "Failed to list notebooks")
		return
	}

	resp := SyncTriggerResponse{}
	for _, nb := range notebooks {
		limit := -1
		if req.PageLimit > 0 {
			limit = req.PageLimit - resp.PagesQueued
			if limit <= 0 {
				break
			}
		}
		n, err := h.enqueueNotebook(r, userID, nb, limit)
		if err != nil {
			InternalServerError(w, "Failed to schedule sync")
			return
		}
		resp.PagesQueued += n
		resp.NotebooksQueued++
	}

	logger.InfoCtx(r.Context(), "initial sync scheduled",
		logger.KeyUserID, userID,
		"notebooks", resp.NotebooksQueued,
		"pages", resp.PagesQueued,
		"page_limit", req.PageLimit,
		"force", req.Force,
	)
	WriteJSONOK(w, resp)
}

// Notebook handles POST /v1/sync/notebook/{uuid}: schedules a full sync for
// one notebook's transcribed pages.
func (h *SyncHandler) Notebook(w http.ResponseWriter, r *http.Request) {
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

	queued, err := h.enqueueNotebook(r, userID, notebook, -1)
	if err != nil {
		InternalServerError(w, "Failed to schedule sync")
		return
	}

	WriteJSONOK(w, SyncTriggerResponse{PagesQueued: queued, NotebooksQueued: 1})
}

// enqueueNotebook schedules one notebook: a priority-0 container item first,
// then one full item per transcribed page, at most limit of them (negative
// means unbounded). The queue's per-user container lease keeps container
// creation single-writer even when several triggers overlap.
func (h *SyncHandler) enqueueNotebook(r *http.Request, userID string, notebook *models.Notebook, limit int) (int, error) {
	if _, err := h.store.EnqueueWorkItem(r.Context(), &models.WorkItem{
		ID:           uuid.New().String(),
		UserID:       userID,
		Kind:         string(models.WorkContainer),
		TargetRef:    notebook.NotebookUUID,
		Destinations: models.DestinationsAll,
		Priority:     models.PriorityContainer,
		Status:       string(models.WorkQueued),
		RunAt:        time.Now().UTC(),
	}); err != nil {
		return 0, err
	}

	pages, err := h.store.ListPages(r.Context(), notebook.ID)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, page := range pages {
		if page.Status() != models.OCRCompleted {
			continue
		}
		if limit >= 0 && queued >= limit {
			break
		}
		_, err := h.store.EnqueueWorkItem(r.Context(), &models.WorkItem{
			ID:           uuid.New().String(),
			UserID:       userID,
			Kind:         string(models.WorkFull),
			TargetRef:    page.PageUUID,
			ContentHash:  page.ContentHash,
			Destinations: models.DestinationsAll,
			Priority:     models.PriorityFull,
			Status:       string(models.WorkQueued),
			RunAt:        time.Now().UTC(),
		})
		if err != nil {
			return queued, err
		}
		queued++
	}
	return queued, nil
}
