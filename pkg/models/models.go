// Package models defines the persistent domain model for rmirror:
// users, subscriptions, quota ledgers, notebooks, pages, the sync work
// queue, per-destination sync records and integration credentials.
package models

// AllModels returns all GORM models for auto-migration.
func AllModels() []any {
	return []any{
		&User{},
		&Subscription{},
		&QuotaLedger{},
		&QuotaEvent{},
		&Notebook{},
		&Page{},
		&WorkItem{},
		&SyncRecord{},
		&IntegrationConfig{},
	}
}
