package models

import (
	"fmt"
	"time"
)

// QuotaKind identifies a metered resource.
type QuotaKind string

const (
	// QuotaOCRPages meters OCR transcription, charged per page.
	QuotaOCRPages QuotaKind = "ocr_pages"
)

// UnlimitedQuota marks a ledger with no ceiling.
const UnlimitedQuota = -1

// Notification thresholds (percent of limit).
const (
	ThresholdNone    = 0
	ThresholdWarning = 90
	ThresholdFull    = 100

	// NearLimitPercent is where observe() starts reporting is_near_limit.
	NearLimitPercent = 80
)

// QuotaLedger tracks per-user consumption of a metered resource within a
// billing period. One row exists per (user, kind).
//
// The Used counter is only ever advanced through a conditional UPDATE that
// re-checks the ceiling, so concurrent consumers can never push Used past
// Limit (when Limit >= 0).
type QuotaLedger struct {
	UserID                string    `gorm:"primaryKey;size:36" json:"user_id"`
	Kind                  string    `gorm:"primaryKey;size:50" json:"kind"`
	Limit                 int       `gorm:"column:quota_limit;not null;default:0" json:"limit"`
	Used                  int       `gorm:"not null;default:0" json:"used"`
	PeriodStart           time.Time `json:"period_start"`
	ResetAt               time.Time `json:"reset_at"`
	LastNotifiedThreshold int       `gorm:"not null;default:0" json:"last_notified_threshold"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for QuotaLedger.
func (QuotaLedger) TableName() string {
	return "quota_ledgers"
}

// Unlimited reports whether the ledger has no ceiling.
func (l *QuotaLedger) Unlimited() bool {
	return l.Limit < 0
}

// Remaining returns the remaining allowance, or UnlimitedQuota.
func (l *QuotaLedger) Remaining() int {
	if l.Unlimited() {
		return UnlimitedQuota
	}
	if l.Used >= l.Limit {
		return 0
	}
	return l.Limit - l.Used
}

// Percent returns used/limit as a percentage, 0 for unlimited ledgers.
func (l *QuotaLedger) Percent() float64 {
	if l.Unlimited() || l.Limit == 0 {
		return 0
	}
	return float64(l.Used) / float64(l.Limit) * 100
}

// IsExhausted reports whether no allowance remains.
func (l *QuotaLedger) IsExhausted() bool {
	return !l.Unlimited() && l.Used >= l.Limit
}

// Validate checks ledger invariants that hold outside of transitions.
func (l *QuotaLedger) Validate() error {
	if l.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if l.Used < 0 {
		return fmt.Errorf("used must be non-negative")
	}
	return nil
}

// QuotaSnapshot is the read-model returned by observe().
type QuotaSnapshot struct {
	Kind        string    `json:"kind"`
	Used        int       `json:"used"`
	Limit       int       `json:"limit"`
	Percent     float64   `json:"percent"`
	ResetAt     time.Time `json:"reset_at"`
	IsExhausted bool      `json:"is_exhausted"`
	IsNearLimit bool      `json:"is_near_limit"`
}

// Snapshot builds a QuotaSnapshot from the ledger row.
func (l *QuotaLedger) Snapshot() QuotaSnapshot {
	pct := l.Percent()
	return QuotaSnapshot{
		Kind:        l.Kind,
		Used:        l.Used,
		Limit:       l.Limit,
		Percent:     pct,
		ResetAt:     l.ResetAt,
		IsExhausted: l.IsExhausted(),
		IsNearLimit: !l.Unlimited() && pct >= NearLimitPercent,
	}
}

// QuotaEvent is a durable record of a threshold crossing, written in the
// same transaction as the consume that crossed it. A notification transport
// drains undelivered rows later; a transport failure can therefore never
// silently drop a crossing.
type QuotaEvent struct {
	ID          uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      string     `gorm:"index;not null;size:36" json:"user_id"`
	Kind        string     `gorm:"not null;size:50" json:"kind"`
	Threshold   int        `gorm:"not null" json:"threshold"`
	Used        int        `gorm:"not null" json:"used"`
	Limit       int        `gorm:"column:quota_limit;not null" json:"limit"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// TableName returns the table name for QuotaEvent.
func (QuotaEvent) TableName() string {
	return "quota_events"
}
