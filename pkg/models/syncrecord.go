package models

import (
	"fmt"
	"time"
)

// SyncItemKind distinguishes what the external object represents.
type SyncItemKind string

const (
	// SyncItemPage is a page-level external object.
	SyncItemPage SyncItemKind = "page"
	// SyncItemContainer is the notebook container object at the destination.
	SyncItemContainer SyncItemKind = "notebook_container"
)

// SyncRecordStatus is the outcome of the last sync attempt.
type SyncRecordStatus string

const (
	SyncSuccess      SyncRecordStatus = "success"
	SyncFailedStatus SyncRecordStatus = "failed"
	SyncRetry        SyncRecordStatus = "retry"
)

// SyncRecord maps a (user, page, destination) triple to the external object
// it produced. The unique index over the triple is the deduplication source
// of truth: concurrent workers racing to create the same external object
// are arbitrated by the constraint, and the loser re-reads the winning row.
//
// For notebook containers, PageUUID carries the notebook UUID and ItemKind
// is notebook_container.
type SyncRecord struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	UserID      string    `gorm:"uniqueIndex:idx_sync_dedup;not null;size:36" json:"user_id"`
	PageUUID    string    `gorm:"uniqueIndex:idx_sync_dedup;not null;size:64" json:"page_uuid"`
	Destination string    `gorm:"uniqueIndex:idx_sync_dedup;not null;size:50" json:"destination"`
	ItemKind    string    `gorm:"not null;default:page;size:30" json:"item_kind"`
	ExternalID  string    `gorm:"index;size:255" json:"external_id"`
	ContentHash string    `gorm:"size:64" json:"content_hash"`
	Status      string    `gorm:"not null;default:success;size:20" json:"status"`
	Error       string    `json:"error,omitempty"`
	RetryCount  int       `gorm:"not null;default:0" json:"retry_count"`
	SyncedAt    time.Time `json:"synced_at"`
	Metadata    []byte    `json:"-"` // destination-specific handles, opaque JSON
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for SyncRecord.
func (SyncRecord) TableName() string {
	return "sync_records"
}

// Validate checks if the sync record has valid configuration.
func (r *SyncRecord) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if r.PageUUID == "" {
		return fmt.Errorf("page uuid is required")
	}
	if r.Destination == "" {
		return fmt.Errorf("destination is required")
	}
	return nil
}
