// Package config loads and validates the rmirror server configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (RMIRROR_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/gottino/rmirror-cloud/pkg/api"
	"github.com/gottino/rmirror-cloud/pkg/blobstore"
	"github.com/gottino/rmirror-cloud/pkg/ingest"
	"github.com/gottino/rmirror-cloud/pkg/ocr"
	"github.com/gottino/rmirror-cloud/pkg/store"
	"github.com/gottino/rmirror-cloud/pkg/syncer"
)

// Config represents the rmirror server configuration.
//
// Static aspects only: logging, telemetry, database, blob storage, OCR
// provider, API server, sync workers, quota sweeps, credential sealing and
// admin bootstrap. Per-user state (subscriptions, integrations, notebooks)
// is managed through the REST API and lives in the database.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Database configures the persistence layer (SQLite or PostgreSQL)
	Database store.Config `mapstructure:"database" yaml:"database"`

	// Blobstore configures where raw page blobs and PDFs live
	Blobstore BlobstoreConfig `mapstructure:"blobstore" yaml:"blobstore"`

	// OCR configures the transcription provider
	OCR OCRConfig `mapstructure:"ocr" yaml:"ocr"`

	// Metrics contains Prometheus metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API contains REST API server configuration
	API api.APIConfig `mapstructure:"api" yaml:"api"`

	// Auth contains JWT signing configuration
	Auth AuthConfig `mapstructure:"auth" yaml:"auth"`

	// Ingest tunes the upload pipeline
	Ingest ingest.Config `mapstructure:"ingest" yaml:"ingest"`

	// Syncer tunes the destination sync worker pool
	Syncer syncer.Config `mapstructure:"syncer" yaml:"syncer"`

	// Quota tunes the billing-period rollover and notification sweeps
	Quota QuotaConfig `mapstructure:"quota" yaml:"quota"`

	// Destinations holds the credential-sealing master secret
	Destinations DestinationsConfig `mapstructure:"destinations" yaml:"destinations"`

	// Admin contains initial admin user configuration for bootstrap
	Admin AdminConfig `mapstructure:"admin" yaml:"admin"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
// When enabled, trace data is exported to an OTLP-compatible collector.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	// Default: true (for local development)
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	// Default: false (opt-in for profiling)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040" (standard Pyroscope port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	// Enabled controls whether metrics collection is enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// BlobstoreConfig selects and configures the blob storage backend.
type BlobstoreConfig struct {
	// Type selects the backend.
	// Valid values: s3, memory (memory is for tests and local development)
	// Default: memory
	Type string `mapstructure:"type" validate:"omitempty,oneof=s3 memory" yaml:"type"`

	// S3 configures the S3-compatible backend when Type is "s3"
	S3 blobstore.S3Config `mapstructure:"s3" yaml:"s3"`
}

// OCRConfig selects and configures the transcription provider.
type OCRConfig struct {
	// Provider selects the extractor.
	// Valid values: http, fake (fake is for tests and local development)
	// Default: fake
	Provider string `mapstructure:"provider" validate:"omitempty,oneof=http fake" yaml:"provider"`

	// HTTP configures the HTTP vision provider when Provider is "http"
	HTTP ocr.Config `mapstructure:"http" yaml:"http"`
}

// AuthConfig contains JWT signing configuration.
type AuthConfig struct {
	// JWTSecret signs all tokens. Must be at least 32 characters.
	// Override: RMIRROR_AUTH_JWT_SECRET
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32" yaml:"jwt_secret"`

	// Issuer is the iss claim. Default: "rmirror"
	Issuer string `mapstructure:"issuer" yaml:"issuer"`

	// AccessTokenDuration is the session token lifetime. Default: 15m
	AccessTokenDuration time.Duration `mapstructure:"access_token_duration" yaml:"access_token_duration"`

	// RefreshTokenDuration is the refresh token lifetime. Default: 168h
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration" yaml:"refresh_token_duration"`

	// AgentTokenDuration is the device agent token lifetime. Default: 720h
	AgentTokenDuration time.Duration `mapstructure:"agent_token_duration" yaml:"agent_token_duration"`
}

// QuotaConfig tunes the periodic quota sweeps.
type QuotaConfig struct {
	// RolloverInterval is how often ledgers past reset_at are rolled over.
	// Default: 1h
	RolloverInterval time.Duration `mapstructure:"rollover_interval" yaml:"rollover_interval"`

	// NotifyInterval is how often undelivered quota events are drained.
	// Default: 30s
	NotifyInterval time.Duration `mapstructure:"notify_interval" yaml:"notify_interval"`

	// NotifyBatch bounds one drain pass. Default: 100
	NotifyBatch int `mapstructure:"notify_batch" yaml:"notify_batch"`
}

// DestinationsConfig holds the credential-sealing secret.
type DestinationsConfig struct {
	// MasterSecret derives per-user sealing keys for integration
	// credentials. Must be at least 32 characters and kept stable: rotating
	// it invalidates every stored integration.
	// Override: RMIRROR_DESTINATIONS_MASTER_SECRET
	MasterSecret string `mapstructure:"master_secret" validate:"required,min=32" yaml:"master_secret"`
}

// AdminConfig contains initial admin user configuration for bootstrap.
// This is used by 'rmirror init' to pre-configure the first admin user.
type AdminConfig struct {
	// Email is the admin account email
	// Default: "admin@localhost"
	Email string `mapstructure:"email" yaml:"email"`

	// PasswordHash is the bcrypt hash of the admin password
	// Generated during 'rmirror init' or can be set manually
	PasswordHash string `mapstructure:"password_hash" yaml:"password_hash,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if configFileFound {
		if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	// Secrets may arrive via environment only, with no config file at all.
	applyEnvSecrets(v, &cfg)

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages when the config
// file is missing.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  rmirror init\n\n"+
				"Or specify a custom config file:\n"+
				"  rmirror <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  rmirror init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Config files carry the JWT secret and sealing secret; owner-only.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper configures viper with environment variables and config file
// settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use RMIRROR_ prefix and underscores.
	// Example: RMIRROR_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("RMIRROR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/rmirror/config.yaml
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// applyEnvSecrets pulls secrets from the environment even when viper never
// saw the corresponding config-file keys.
func applyEnvSecrets(v *viper.Viper, cfg *Config) {
	if s := v.GetString("auth.jwt_secret"); s != "" {
		cfg.Auth.JWTSecret = s
	}
	if s := v.GetString("destinations.master_secret"); s != "" {
		cfg.Destinations.MasterSecret = s
	}
	if s := v.GetString("ocr.http.api_key"); s != "" {
		cfg.OCR.HTTP.APIKey = s
	}
	if s := v.GetString("blobstore.s3.secret_access_key"); s != "" {
		cfg.Blobstore.S3.SecretAccessKey = s
	}
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
	)
}

// durationDecodeHook converts strings like "30s", "5m", "1h" to
// time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "rmirror")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "rmirror")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for the
// init command).
func GetConfigDir() string {
	return getConfigDir()
}
