package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration against the struct validation tags plus
// the cross-field rules the tags cannot express.
func Validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.Struct(cfg); err != nil {
		return err
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if cfg.Blobstore.Type == "s3" {
		if cfg.Blobstore.S3.Bucket == "" {
			return fmt.Errorf("blobstore: s3 backend requires a bucket")
		}
	}
	if cfg.OCR.Provider == "http" {
		if cfg.OCR.HTTP.BaseURL == "" {
			return fmt.Errorf("ocr: http provider requires a base_url")
		}
		if cfg.OCR.HTTP.APIKey == "" {
			return fmt.Errorf("ocr: http provider requires an api_key")
		}
	}

	return nil
}
