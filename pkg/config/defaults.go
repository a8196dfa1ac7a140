package config

import (
	"strings"
	"time"

	"github.com/gottino/rmirror-cloud/pkg/store"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields.
//
// Zero values (0, "", false, nil) are replaced with defaults; explicit
// values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	cfg.Database.ApplyDefaults()
	applyBlobstoreDefaults(&cfg.Blobstore)
	applyOCRDefaults(&cfg.OCR)
	applyAuthDefaults(&cfg.Auth)
	applyQuotaDefaults(&cfg.Quota)
	applyAdminDefaults(&cfg.Admin)
	cfg.Syncer.ApplyDefaults()
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyBlobstoreDefaults(cfg *BlobstoreConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	if cfg.S3.Timeout == 0 {
		cfg.S3.Timeout = 30 * time.Second
	}
}

func applyOCRDefaults(cfg *OCRConfig) {
	if cfg.Provider == "" {
		cfg.Provider = "fake"
	}
	if cfg.HTTP.Timeout == 0 {
		cfg.HTTP.Timeout = 60 * time.Second
	}
}

func applyAuthDefaults(cfg *AuthConfig) {
	if cfg.Issuer == "" {
		cfg.Issuer = "rmirror"
	}
	if cfg.AccessTokenDuration == 0 {
		cfg.AccessTokenDuration = 15 * time.Minute
	}
	if cfg.RefreshTokenDuration == 0 {
		cfg.RefreshTokenDuration = 7 * 24 * time.Hour
	}
	if cfg.AgentTokenDuration == 0 {
		cfg.AgentTokenDuration = 30 * 24 * time.Hour
	}
}

func applyQuotaDefaults(cfg *QuotaConfig) {
	if cfg.RolloverInterval == 0 {
		cfg.RolloverInterval = time.Hour
	}
	if cfg.NotifyInterval == 0 {
		cfg.NotifyInterval = 30 * time.Second
	}
	if cfg.NotifyBatch <= 0 {
		cfg.NotifyBatch = 100
	}
}

func applyAdminDefaults(cfg *AdminConfig) {
	if cfg.Email == "" {
		cfg.Email = "admin@localhost"
	}
	// PasswordHash has no default - it is set during init
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// Secrets are not defaulted; Validate rejects the result until they are
// filled in.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Database: store.Config{
			Type: store.DatabaseTypeSQLite, // Default to SQLite for single-node
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
