package models

import (
	"fmt"
	"time"
)

// IntegrationConfig holds a user's credentials and settings for one
// destination. The credential payload is sealed with AES-256-GCM under a
// key derived from the server master secret and the per-row salt; plaintext
// credentials are never persisted.
type IntegrationConfig struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	UserID        string     `gorm:"uniqueIndex:idx_user_destination;not null;size:36" json:"user_id"`
	Destination   string     `gorm:"uniqueIndex:idx_user_destination;not null;size:50" json:"destination"`
	// No column default: GORM omits zero-valued fields on insert when one
	// is set, which would silently store a disabled config as enabled.
	Enabled       bool       `gorm:"not null" json:"enabled"`
	EncryptedBlob []byte     `gorm:"not null" json:"-"`
	Salt          []byte     `gorm:"not null" json:"-"`
	LastSyncedAt  *time.Time `json:"last_synced_at,omitempty"`
	SyncCount     int        `gorm:"not null;default:0" json:"sync_count"`
	FailureCount  int        `gorm:"not null;default:0" json:"failure_count"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for IntegrationConfig.
func (IntegrationConfig) TableName() string {
	return "integration_configs"
}

// Validate checks if the integration config has valid configuration.
func (c *IntegrationConfig) Validate() error {
	if c.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if c.Destination == "" {
		return fmt.Errorf("destination is required")
	}
	if len(c.EncryptedBlob) == 0 {
		return fmt.Errorf("credentials are required")
	}
	return nil
}
