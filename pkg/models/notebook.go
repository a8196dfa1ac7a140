package models

import (
	"fmt"
	"time"
)

// Notebook is a logical container of pages mirrored from the device.
// ParentUUID (when set) refers to another notebook of the same user,
// forming a folder tree.
type Notebook struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	UserID       string    `gorm:"uniqueIndex:idx_user_notebook;not null;size:36" json:"user_id"`
	NotebookUUID string    `gorm:"uniqueIndex:idx_user_notebook;not null;size:64" json:"notebook_uuid"`
	VisibleName  string    `gorm:"size:512" json:"visible_name"`
	ParentUUID   *string   `gorm:"size:64" json:"parent_uuid,omitempty"`
	DocumentType string    `gorm:"size:50" json:"document_type"`
	LastModified time.Time `json:"last_modified"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Pages []Page `gorm:"foreignKey:NotebookID;constraint:OnDelete:CASCADE" json:"pages,omitempty"`
}

// TableName returns the table name for Notebook.
func (Notebook) TableName() string {
	return "notebooks"
}

// Validate checks if the notebook has valid configuration.
func (n *Notebook) Validate() error {
	if n.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if n.NotebookUUID == "" {
		return fmt.Errorf("notebook uuid is required")
	}
	return nil
}

// OCRStatus is the transcription state of a page.
type OCRStatus string

const (
	// OCRNotSynced means the page has never been through ingestion.
	OCRNotSynced OCRStatus = "not_synced"
	// OCRPending means the blob is stored and transcription is in flight.
	OCRPending OCRStatus = "pending"
	// OCRCompleted means transcription succeeded and text is persisted.
	OCRCompleted OCRStatus = "completed"
	// OCRFailed means transcription failed permanently or retries ran out.
	OCRFailed OCRStatus = "failed"
	// OCRPendingQuota means the blob was accepted while the ledger was
	// exhausted; transcription is deferred to a later quota reset.
	OCRPendingQuota OCRStatus = "pending_quota"
)

// IsValid checks if the status is known.
func (s OCRStatus) IsValid() bool {
	switch s {
	case OCRNotSynced, OCRPending, OCRCompleted, OCRFailed, OCRPendingQuota:
		return true
	}
	return false
}

// Page is the smallest transcribable unit, identified by PageUUID within
// its notebook.
//
// Status invariants:
//   - completed  => OCRText non-nil
//   - pending_quota => PDFKey non-empty (blob already stored) and the
//     ledger was not debited for this page
//   - ContentHash changes only when the source bytes change
type Page struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	NotebookID     string     `gorm:"uniqueIndex:idx_notebook_page;not null;size:36" json:"notebook_id"`
	PageUUID       string     `gorm:"uniqueIndex:idx_notebook_page;not null;size:64" json:"page_uuid"`
	UserID         string     `gorm:"index;not null;size:36" json:"user_id"`
	PageNumber     int        `gorm:"not null;default:0" json:"page_number"`
	ContentHash    string     `gorm:"size:64" json:"content_hash,omitempty"`
	OCRStatus      string     `gorm:"index;not null;default:not_synced;size:20" json:"ocr_status"`
	OCRText        *string    `json:"ocr_text,omitempty"`
	OCRConfidence  *float64   `json:"ocr_confidence,omitempty"`
	PDFKey         string     `gorm:"size:512" json:"pdf_key,omitempty"`
	SourceKey      string     `gorm:"size:512" json:"source_key,omitempty"`
	OCRCompletedAt *time.Time `json:"ocr_completed_at,omitempty"`
	CreatedAt      time.Time  `gorm:"index;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Page.
func (Page) TableName() string {
	return "pages"
}

// Status returns the page's OCR status as a typed value.
func (p *Page) Status() OCRStatus {
	return OCRStatus(p.OCRStatus)
}

// Validate checks if the page has valid configuration.
func (p *Page) Validate() error {
	if p.NotebookID == "" {
		return fmt.Errorf("notebook id is required")
	}
	if p.PageUUID == "" {
		return fmt.Errorf("page uuid is required")
	}
	if p.OCRStatus != "" && !OCRStatus(p.OCRStatus).IsValid() {
		return fmt.Errorf("invalid ocr status %q", p.OCRStatus)
	}
	return nil
}
