package models

import (
	"fmt"
	"strings"
	"time"
)

// WorkKind identifies what a work item propagates.
type WorkKind string

const (
	// WorkFull propagates page content (creating/updating external objects).
	WorkFull WorkKind = "full"
	// WorkMetadata propagates only notebook-level properties; it never
	// touches quota or page content.
	WorkMetadata WorkKind = "metadata"
	// WorkContainer creates the destination-side container for a notebook.
	// Container items run at priority 0 with at most one in flight per user.
	WorkContainer WorkKind = "container"
)

// IsValid checks if the kind is known.
func (k WorkKind) IsValid() bool {
	return k == WorkFull || k == WorkMetadata || k == WorkContainer
}

// WorkStatus is the queue state of a work item.
type WorkStatus string

const (
	WorkQueued WorkStatus = "queued"
	WorkLeased WorkStatus = "leased"
	WorkDone   WorkStatus = "done"
	WorkFailed WorkStatus = "failed"
)

// Terminal reports whether the status is final.
func (s WorkStatus) Terminal() bool {
	return s == WorkDone || s == WorkFailed
}

// Priorities. Lower runs sooner.
const (
	PriorityContainer = 0
	PriorityFull      = 10
	PriorityMetadata  = 20
)

// DestinationsAll targets every enabled destination of the user.
const DestinationsAll = "all"

// WorkItem is one scheduled sync action in the persistent queue.
//
// Items are claimed with lease-and-claim semantics: a conditional update
// moves queued rows to leased with an owner and expiry, and a background
// sweep requeues rows whose lease expired so a crashed worker cannot hold
// work indefinitely. At most one non-terminal item exists per
// (user, target_ref, kind); Enqueue folds duplicates into the open row.
type WorkItem struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	UserID         string     `gorm:"index;not null;size:36" json:"user_id"`
	Kind           string     `gorm:"index:idx_work_target;not null;size:20" json:"kind"`
	TargetRef      string     `gorm:"index:idx_work_target;not null;size:64" json:"target_ref"`
	ContentHash    string     `gorm:"size:64" json:"content_hash,omitempty"`
	Destinations   string     `gorm:"not null;default:all;size:255" json:"destinations"`
	Priority       int        `gorm:"index:idx_work_claim;not null;default:10" json:"priority"`
	Status         string     `gorm:"index:idx_work_claim;not null;default:queued;size:20" json:"status"`
	LeaseOwner     *string    `gorm:"size:64" json:"lease_owner,omitempty"`
	LeaseExpiresAt *time.Time `gorm:"index" json:"lease_expires_at,omitempty"`
	Attempts       int        `gorm:"not null;default:0" json:"attempts"`
	LastError      string     `json:"last_error,omitempty"`
	RunAt          time.Time  `gorm:"index:idx_work_claim" json:"run_at"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for WorkItem.
func (WorkItem) TableName() string {
	return "work_items"
}

// DestinationList splits the Destinations field. Returns nil for "all".
func (w *WorkItem) DestinationList() []string {
	if w.Destinations == "" || w.Destinations == DestinationsAll {
		return nil
	}
	parts := strings.Split(w.Destinations, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks if the work item has valid configuration.
func (w *WorkItem) Validate() error {
	if w.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if w.TargetRef == "" {
		return fmt.Errorf("target ref is required")
	}
	if !WorkKind(w.Kind).IsValid() {
		return fmt.Errorf("invalid work kind %q", w.Kind)
	}
	if WorkStatus(w.Status) == WorkLeased && (w.LeaseOwner == nil || w.LeaseExpiresAt == nil) {
		return fmt.Errorf("leased item must carry owner and expiry")
	}
	return nil
}
