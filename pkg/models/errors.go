package models

import "errors"

// Common errors for domain operations.
var (
	// User errors
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user already exists")
	ErrUserDisabled  = errors.New("user account is disabled")

	// Notebook / page errors
	ErrNotebookNotFound = errors.New("notebook not found")
	ErrPageNotFound     = errors.New("page not found")

	// Quota errors
	ErrLedgerNotFound   = errors.New("quota ledger not found")
	ErrQuotaExhausted   = errors.New("quota exhausted")
	ErrPendingQuotaCap  = errors.New("too many pages awaiting quota")
	ErrInvalidTransition = errors.New("invalid page status transition")

	// Work queue errors
	ErrWorkItemNotFound = errors.New("work item not found")

	// Sync record errors
	ErrSyncRecordNotFound  = errors.New("sync record not found")
	ErrDuplicateSyncRecord = errors.New("sync record already exists")

	// Integration errors
	ErrIntegrationNotFound = errors.New("integration not found")
)
