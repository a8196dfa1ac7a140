package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gottino/rmirror-cloud/internal/logger"
	"github.com/gottino/rmirror-cloud/internal/telemetry"
	"github.com/gottino/rmirror-cloud/pkg/api"
	"github.com/gottino/rmirror-cloud/pkg/api/auth"
	"github.com/gottino/rmirror-cloud/pkg/blobstore"
	"github.com/gottino/rmirror-cloud/pkg/config"
	"github.com/gottino/rmirror-cloud/pkg/destination"
	"github.com/gottino/rmirror-cloud/pkg/ingest"
	"github.com/gottino/rmirror-cloud/pkg/metrics"
	"github.com/gottino/rmirror-cloud/pkg/models"
	"github.com/gottino/rmirror-cloud/pkg/ocr"
	"github.com/gottino/rmirror-cloud/pkg/quota"
	"github.com/gottino/rmirror-cloud/pkg/store"
	"github.com/gottino/rmirror-cloud/pkg/syncer"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the rmirror server",
	Long: `Start the rmirror server with the specified configuration.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/rmirror/config.yaml.

Examples:
  # Start with default config location
  rmirror start

  # Start with custom config file
  rmirror start --config /etc/rmirror/config.yaml

  # Start with environment variable overrides
  RMIRROR_LOGGING_LEVEL=DEBUG rmirror start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry (if enabled)
	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "rmirror",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	// Initialize Pyroscope profiling (if enabled)
	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "rmirror",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	logger.Info("Configuration loaded",
		"source", getConfigSource(GetConfigFile()),
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint)
	}

	// Metrics before any instrumented component is constructed, so the
	// constructors see an initialized registry.
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics enabled", "path", "/metrics")
	} else {
		logger.Info("Metrics collection disabled")
	}

	// Persistence layer (runs schema migration on open)
	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() { _ = st.Close() }()
	logger.Info("Store initialized", "type", cfg.Database.Type)

	if err := bootstrapAdmin(ctx, st, cfg); err != nil {
		return err
	}

	// Blob storage for raw page data and rendered PDFs
	blobs, err := newBlobstore(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Info("Blobstore initialized", "type", cfg.Blobstore.Type)

	// OCR provider
	extractor := newExtractor(cfg)
	logger.Info("OCR provider configured", "provider", cfg.OCR.Provider)

	// Core services
	quotaSvc := quota.NewService(st)
	ingestSvc := ingest.NewService(st, blobs, extractor, quotaSvc, metrics.NewIngestMetrics(), cfg.Ingest)

	// Destination registry and credential sealing
	sealer, err := destination.NewSealer([]byte(cfg.Destinations.MasterSecret))
	if err != nil {
		return fmt.Errorf("failed to initialize credential sealer: %w", err)
	}
	resolver := destination.NewResolver(destination.DefaultRegistry(), sealer)

	jwtService, err := auth.NewJWTService(auth.JWTConfig{
		Secret:               cfg.Auth.JWTSecret,
		Issuer:               cfg.Auth.Issuer,
		AccessTokenDuration:  cfg.Auth.AccessTokenDuration,
		RefreshTokenDuration: cfg.Auth.RefreshTokenDuration,
		AgentTokenDuration:   cfg.Auth.AgentTokenDuration,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	// Sync worker pool delivering pages to destinations
	pool := syncer.NewPool(st, ingestSvc, resolver, metrics.NewSyncMetrics(), cfg.Syncer)

	apiServer := api.NewServer(cfg.API, api.Deps{
		Store:    st,
		Blobs:    blobs,
		Ingest:   ingestSvc,
		Quota:    quotaSvc,
		Resolver: resolver,
		JWT:      jwtService,
		Purger:   pool,
	})

	pool.Start(ctx)

	// Quota rollover: when a billing period resets, pages deferred for
	// quota are scheduled retroactively.
	rollover := quota.NewRollover(st, cfg.Quota.RolloverInterval, func(ctx context.Context, userID string) {
		n, err := ingestSvc.ProcessDeferred(ctx, userID)
		if err != nil {
			logger.Error("deferred page processing failed", logger.KeyUserID, userID, "error", err)
			return
		}
		if n > 0 {
			logger.Info("deferred pages scheduled", logger.KeyUserID, userID, "pages", n)
		}
	})
	go rollover.Run(ctx)

	// Quota threshold notifications
	drainer := quota.NewDrainer(st, quota.LogNotifier{}, cfg.Quota.NotifyInterval, cfg.Quota.NotifyBatch)
	go drainer.Run(ctx)

	// Start API server in background
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- apiServer.Start(ctx)
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.", "port", apiServer.Port())

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		pool.Stop(cfg.ShutdownTimeout)
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		pool.Stop(cfg.ShutdownTimeout)
		if err != nil {
			logger.Error("Server error", "error", err)
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}

// bootstrapAdmin creates the configured admin account on first start.
func bootstrapAdmin(ctx context.Context, st store.Store, cfg *config.Config) error {
	if cfg.Admin.PasswordHash == "" {
		return nil
	}

	_, err := st.GetUser(ctx, cfg.Admin.Email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrUserNotFound) {
		return fmt.Errorf("failed to look up admin user: %w", err)
	}

	_, err = st.CreateUser(ctx, &models.User{
		Email:        cfg.Admin.Email,
		PasswordHash: cfg.Admin.PasswordHash,
		Role:         string(models.RoleAdmin),
	}, models.TierPro)
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("Admin user created", "email", cfg.Admin.Email)
	return nil
}

// newBlobstore builds the configured blob storage backend.
func newBlobstore(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	switch cfg.Blobstore.Type {
	case "s3":
		s3Store, err := blobstore.NewS3Store(ctx, cfg.Blobstore.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 blobstore: %w", err)
		}
		return s3Store, nil
	default:
		logger.Warn("Using in-memory blobstore; uploads do not survive restarts")
		return blobstore.NewMemoryStore(), nil
	}
}

// newExtractor builds the configured OCR provider.
func newExtractor(cfg *config.Config) ocr.Extractor {
	switch cfg.OCR.Provider {
	case "http":
		return ocr.NewClient(cfg.OCR.HTTP)
	default:
		return ocr.NewFake()
	}
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
