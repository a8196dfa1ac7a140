package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gottino/rmirror-cloud/internal/logger"
	"github.com/gottino/rmirror-cloud/pkg/api/middleware"
	"github.com/gottino/rmirror-cloud/pkg/ingest"
	"github.com/gottino/rmirror-cloud/pkg/models"
	"github.com/gottino/rmirror-cloud/pkg/quota"
	"github.com/gottino/rmirror-cloud/pkg/store"
)

// QuotaHandler exposes the quota ledger and admin quota operations.
type QuotaHandler struct {
	store  store.Store
	quota  *quota.Service
	ingest *ingest.Service
}

// NewQuotaHandler creates a new QuotaHandler.
func NewQuotaHandler(st store.Store, qs *quota.Service, ing *ingest.Service) *QuotaHandler {
	return &QuotaHandler{store: st, quota: qs, ingest: ing}
}

// QuotaStatusResponse is the response body for GET /v1/quota/status.
type QuotaStatusResponse struct {
	models.QuotaSnapshot
	Tier         string `json:"tier"`
	PendingQuota int64  `json:"pending_quota_pages"`
}

// Status handles GET /v1/quota/status.
func (h *QuotaHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		Unauthorized(w, "Authentication required")
		return
	}

	snap, err := h.quota.Observe(r.Context(), userID)
	if err != nil {
		InternalServerError(w, "Failed to read quota")
		return
	}

	sub, err := h.store.GetSubscription(r.Context(), userID)
	if err != nil {
		InternalServerError(w, "Failed to read subscription")
		return
	}

	pending, err := h.store.CountPendingQuota(r.Context(), userID)
	if err != nil {
		InternalServerError(w, "Failed to count deferred pages")
		return
	}

	WriteJSONOK(w, QuotaStatusResponse{
		QuotaSnapshot: snap,
		Tier:          sub.Tier,
		PendingQuota:  pending,
	})
}

// TierRequest is the request body for PUT /v1/admin/users/{id}/tier.
type TierRequest struct {
	Tier string `json:"tier"`
}

// SetTier handles PUT /v1/admin/users/{id}/tier (admin only).
// An upgrade immediately frees headroom and schedules deferred pages.
func (h *QuotaHandler) SetTier(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req TierRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	tier := models.Tier(req.Tier)
	if !tier.IsValid() {
		BadRequest(w, "Unknown tier: "+req.Tier)
		return
	}

	if err := h.quota.SetTier(r.Context(), userID, tier); err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			NotFound(w, "User not found")
			return
		}
		InternalServerError(w, "Failed to change tier")
		return
	}

	scheduled, err := h.ingest.ProcessDeferred(r.Context(), userID)
	if err != nil {
		// Tier change is committed; deferred scheduling will be retried by
		// the next rollover sweep.
		logger.WarnCtx(r.Context(), "retroactive processing after tier change failed",
			logger.KeyUserID, userID, "error", err)
	}

	WriteJSONOK(w, map[string]any{
		"tier":            req.Tier,
		"pages_scheduled": scheduled,
	})
}

// ResetQuota handles POST /v1/admin/users/{id}/quota/reset (admin only).
// Starts a fresh billing period immediately and runs retroactive processing.
func (h *QuotaHandler) ResetQuota(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	now := time.Now().UTC()
	err := h.store.ResetLedger(r.Context(), userID, models.QuotaOCRPages, now, now.AddDate(0, 1, 0))
	if err != nil {
		if errors.Is(err, models.ErrLedgerNotFound) {
			NotFound(w, "User not found")
			return
		}
		InternalServerError(w, "Failed to reset quota")
		return
	}

	scheduled, err := h.ingest.ProcessDeferred(r.Context(), userID)
	if err != nil {
		logger.WarnCtx(r.Context(), "retroactive processing after reset failed",
			logger.KeyUserID, userID, "error", err)
	}

	snap, err := h.quota.Observe(r.Context(), userID)
	if err != nil {
		InternalServerError(w, "Failed to read quota")
		return
	}

	WriteJSONOK(w, map[string]any{
		"quota":           snap,
		"pages_scheduled": scheduled,
	})
}
