package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gottino/rmirror-cloud/internal/logger"
	"github.com/gottino/rmirror-cloud/pkg/api/middleware"
	"github.com/gottino/rmirror-cloud/pkg/destination"
	"github.com/gottino/rmirror-cloud/pkg/models"
	"github.com/gottino/rmirror-cloud/pkg/store"
)

// IntegrationHandler manages per-user destination credentials.
type IntegrationHandler struct {
	store    store.Store
	resolver *destination.Resolver
}

// NewIntegrationHandler creates a new IntegrationHandler.
func NewIntegrationHandler(st store.Store, resolver *destination.Resolver) *IntegrationHandler {
	return &IntegrationHandler{store: st, resolver: resolver}
}

// IntegrationResponse is one configured integration. Credentials are never
// echoed back.
type IntegrationResponse struct {
	Destination  string     `json:"destination"`
	Enabled      bool       `json:"enabled"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	SyncCount    int        `json:"sync_count"`
	FailureCount int        `json:"failure_count"`
}

// PutIntegrationRequest is the request body for PUT /v1/integrations/{name}.
type PutIntegrationRequest struct {
	Enabled  *bool             `json:"enabled,omitempty"`
	Settings map[string]string `json:"settings"`
	Validate bool              `json:"validate,omitempty"`
}

// List handles GET /v1/integrations.
func (h *IntegrationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		Unauthorized(w, "Authentication required")
		return
	}

	configs, err := h.store.ListIntegrations(r.Context(), userID)
	if err != nil {
		InternalServerError(w, "Failed to list integrations")
		return
	}

	out := make([]IntegrationResponse, 0, len(configs))
	for _, cfg := range configs {
		out = append(out, integrationToResponse(cfg))
	}
	WriteJSONOK(w, out)
}

// Put handles PUT /v1/integrations/{name}: stores sealed credentials for a
// known destination, optionally validating the connection first.
func (h *IntegrationHandler) Put(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		Unauthorized(w, "Authentication required")
		return
	}

	name := chi.URLParam(r, "name")
	if !h.resolver.Registry().Known(name) {
		NotFound(w, "Unknown destination: "+name)
		return
	}

	var req PutIntegrationRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if len(req.Settings) == 0 {
		BadRequest(w, "settings are required")
		return
	}

	// Build the adapter from plaintext settings first so malformed
	// credentials are rejected before anything is stored.
	adapter, err := h.resolver.Registry().Build(name, req.Settings)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	if req.Validate {
		ctx, cancel := contextWithDestinationTimeout(r)
		err := adapter.ValidateConnection(ctx)
		cancel()
		if err != nil {
			BadRequest(w, "Connection validation failed: "+err.Error())
			return
		}
	}

	blob, salt, err := h.resolver.Seal(req.Settings)
	if err != nil {
		InternalServerError(w, "Failed to seal credentials")
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	cfg := &models.IntegrationConfig{
		ID:            uuid.New().String(),
		UserID:        userID,
		Destination:   name,
		Enabled:       enabled,
		EncryptedBlob: blob,
		Salt:          salt,
	}
	if err := h.store.UpsertIntegration(r.Context(), cfg); err != nil {
		InternalServerError(w, "Failed to store integration")
		return
	}

	logger.InfoCtx(r.Context(), "integration configured",
		logger.KeyUserID, userID,
		logger.KeyDestination, name,
		"enabled", enabled,
	)
	WriteJSONOK(w, integrationToResponse(cfg))
}

// Delete handles DELETE /v1/integrations/{name}.
func (h *IntegrationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		Unauthorized(w, "Authentication required")
		return
	}

	name := chi.URLParam(r, "name")
	if err := h.store.DeleteIntegration(r.Context(), userID, name); err != nil {
		if errors.Is(err, models.ErrIntegrationNotFound) {
			NotFound(w, "Integration not found")
			return
		}
		InternalServerError(w, "Failed to delete integration")
		return
	}

	WriteJSON(w, http.StatusNoContent, nil)
}

// Destinations handles GET /v1/integrations/destinations: the shipped
// destination names and their capabilities.
func (h *IntegrationHandler) Destinations(w http.ResponseWriter, _ *http.Request) {
	names := h.resolver.Registry().Names()
	WriteJSONOK(w, map[string]any{"destinations": names})
}

func integrationToResponse(cfg *models.IntegrationConfig) IntegrationResponse {
	return IntegrationResponse{
		Destination:  cfg.Destination,
		Enabled:      cfg.Enabled,
		LastSyncedAt: cfg.LastSyncedAt,
		SyncCount:    cfg.SyncCount,
		FailureCount: cfg.FailureCount,
	}
}

func contextWithDestinationTimeout(r *http.Request) (ctx context.Context, cancel context.CancelFunc) {
	return context.WithTimeout(r.Context(), destination.DefaultTimeout)
}
