package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/gottino/rmirror-cloud/internal/logger"
	"github.com/gottino/rmirror-cloud/pkg/api/auth"
	"github.com/gottino/rmirror-cloud/pkg/api/handlers"
	"github.com/gottino/rmirror-cloud/pkg/api/middleware"
	"github.com/gottino/rmirror-cloud/pkg/blobstore"
	"github.com/gottino/rmirror-cloud/pkg/destination"
	"github.com/gottino/rmirror-cloud/pkg/ingest"
	"github.com/gottino/rmirror-cloud/pkg/metrics"
	"github.com/gottino/rmirror-cloud/pkg/quota"
	"github.com/gottino/rmirror-cloud/pkg/store"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Store    store.Store
	Blobs    blobstore.Store
	Ingest   *ingest.Service
	Quota    *quota.Service
	Resolver *destination.Resolver
	JWT      *auth.JWTService

	// Purger backs DELETE /v1/notebooks/{uuid}?purge=true. Optional.
	Purger handlers.NotebookPurger
}

// NewRouter creates and configures the chi router with all middleware and
// routes.
//
// Routes:
//   - GET  /health, /health/ready - probes, unauthenticated
//   - GET  /metrics - prometheus scrape endpoint (when metrics are enabled)
//   - POST /v1/auth/login, /v1/auth/refresh - unauthenticated
//   - GET  /v1/auth/me, POST /v1/auth/agent-token - authenticated
//   - POST /v1/processing/rm-file - page upload (rate limited)
//   - POST /v1/processing/metadata/update - notebook metadata
//   - GET  /v1/quota/status
//   - GET  /v1/notebooks/, GET /v1/notebooks/{uuid}/pages, DELETE /v1/notebooks/{uuid}
//   - POST /v1/sync/initial, POST /v1/sync/notebook/{uuid}
//   - GET/PUT/DELETE /v1/integrations...
//   - PUT  /v1/admin/users/{id}/tier, POST /v1/admin/users/{id}/quota/reset - admin
func NewRouter(deps Deps, cfg APIConfig) http.Handler {
	cfg.applyDefaults()

	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(cfg.RequestTimeout))

	healthHandler := handlers.NewHealthHandler(deps.Store, deps.Blobs)

	// Health routes - unauthenticated
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	if metrics.IsEnabled() {
		r.Handle("/metrics", metrics.Handler())
	}

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	authHandler := handlers.NewAuthHandler(deps.Store, deps.JWT)
	processingHandler := handlers.NewProcessingHandler(deps.Ingest)
	quotaHandler := handlers.NewQuotaHandler(deps.Store, deps.Quota, deps.Ingest)
	notebookHandler := handlers.NewNotebookHandler(deps.Store, deps.Purger)
	syncHandler := handlers.NewSyncHandler(deps.Store)
	integrationHandler := handlers.NewIntegrationHandler(deps.Store, deps.Resolver)

	uploadLimiter := middleware.NewRateLimiter(cfg.UploadRateLimit, time.Minute)

	r.Route("/v1", func(r chi.Router) {
		// Auth routes - mostly unauthenticated
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(middleware.JWTAuth(deps.JWT))
				r.Get("/me", authHandler.Me)
				r.Post("/agent-token", authHandler.AgentToken)
			})
		})

		// Everything else requires a bearer token.
		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTAuth(deps.JWT))

			r.Route("/processing", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(uploadLimiter.Middleware)
					r.Post("/rm-file", processingHandler.Upload)
				})
				r.Post("/metadata/update", processingHandler.Metadata)
			})

			r.Get("/quota/status", quotaHandler.Status)

			r.Route("/notebooks", func(r chi.Router) {
				r.Get("/", notebookHandler.List)
				r.Get("/{uuid}/pages", notebookHandler.Pages)
				r.Delete("/{uuid}", notebookHandler.Delete)
			})

			r.Route("/sync", func(r chi.Router) {
				r.Post("/initial", syncHandler.Initial)
				r.Post("/notebook/{uuid}", syncHandler.Notebook)
			})

			r.Route("/integrations", func(r chi.Router) {
				r.Get("/", integrationHandler.List)
				r.Get("/destinations", integrationHandler.Destinations)
				r.Put("/{name}", integrationHandler.Put)
				r.Delete("/{name}", integrationHandler.Delete)
			})

			// Admin operations
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin())

				r.Put("/users/{id}/tier", quotaHandler.SetTier)
				r.Post("/users/{id}/quota/reset", quotaHandler.ResetQuota)
			})
		})
	})

	return r
}

// requestLogger is a custom middleware that logs requests using the internal
// logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := chimiddleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		// Wrap response writer to capture status code
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Info("API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
