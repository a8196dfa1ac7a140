package handlers

import (
	"net/http"
	"time"

	"github.com/gottino/rmirror-cloud/pkg/blobstore"
	"github.com/gottino/rmirror-cloud/pkg/store"
)

// HealthHandler handles health check API endpoints.
type HealthHandler struct {
	store store.Store
	blobs blobstore.Store
}

// NewHealthHandler creates a new HealthHandler. Either dependency may be nil
// in tests; nil stores are reported as "not configured".
func NewHealthHandler(st store.Store, blobs blobstore.Store) *HealthHandler {
	return &HealthHandler{store: st, blobs: blobs}
}

// HealthResponse is the health probe envelope.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Liveness handles GET /health.
// Always returns 200 while the process is serving requests.
func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	WriteJSONOK(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	})
}

// Readiness handles GET /health/ready.
// Verifies the database is reachable; 503 when it is not.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	healthy := true

	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			checks["database"] = "unreachable: " + err.Error()
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not configured"
		healthy = false
	}

	if h.blobs != nil {
		checks["blobstore"] = "ok"
	}

	status := http.StatusOK
	label := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		label = "unhealthy"
	}

	WriteJSON(w, status, HealthResponse{
		Status:    label,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	})
}
