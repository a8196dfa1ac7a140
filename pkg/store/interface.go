package store

import (
	"context"
	"time"

	"github.com/gottino/rmirror-cloud/pkg/models"
)

// Store provides the server persistence interface.
//
// Thread safety: implementations must be safe for concurrent use from
// multiple goroutines. Mutations that arbitrate races (quota consume, page
// status transitions, work-item claims, sync-record inserts) are implemented
// as conditional updates or rely on unique constraints, never as
// read-then-write across a network call.
type Store interface {
	// ============================================
	// USERS AND SUBSCRIPTIONS
	// ============================================

	// GetUser returns a user by email.
	// Returns models.ErrUserNotFound if the user doesn't exist.
	GetUser(ctx context.Context, email string) (*models.User, error)

	// GetUserByID returns a user by their unique ID.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// ListUsers returns all users.
	ListUsers(ctx context.Context) ([]*models.User, error)

	// CreateUser creates a new user together with its subscription and
	// quota ledger rows. The user ID is generated if empty.
	// Returns models.ErrDuplicateUser if a user with the same email exists.
	CreateUser(ctx context.Context, user *models.User, tier models.Tier) (string, error)

	// DeleteUser deletes a user by id, cascading to every owned row.
	DeleteUser(ctx context.Context, id string) error

	// UpdateLastLogin updates the user's last login timestamp.
	UpdateLastLogin(ctx context.Context, id string, timestamp time.Time) error

	// ValidateCredentials verifies email/password credentials.
	// Returns models.ErrInvalidCredentials or models.ErrUserDisabled.
	ValidateCredentials(ctx context.Context, email, password string) (*models.User, error)

	// GetSubscription returns the user's subscription.
	GetSubscription(ctx context.Context, userID string) (*models.Subscription, error)

	// UpdateSubscription replaces tier and billing period for a user.
	UpdateSubscription(ctx context.Context, sub *models.Subscription) error

	// ============================================
	// QUOTA LEDGER
	// ============================================

	// GetLedger returns the (user, kind) ledger row.
	// Returns models.ErrLedgerNotFound if it doesn't exist.
	GetLedger(ctx context.Context, userID string, kind models.QuotaKind) (*models.QuotaLedger, error)

	// ConsumeQuota atomically advances Used by n, re-checking the ceiling in
	// the UPDATE itself. Returns models.ErrQuotaExhausted when fewer than n
	// remain. When notify is true and the consume crosses the 90 or 100
	// percent boundary for the first time this period, a durable QuotaEvent
	// is written in the same transaction.
	ConsumeQuota(ctx context.Context, userID string, kind models.QuotaKind, n int, notify bool) (*models.QuotaLedger, error)

	// ResetLedger zeroes Used, advances the billing period and clears the
	// notification threshold.
	ResetLedger(ctx context.Context, userID string, kind models.QuotaKind, periodStart, resetAt time.Time) error

	// SetLedgerLimit changes the ceiling (tier change).
	SetLedgerLimit(ctx context.Context, userID string, kind models.QuotaKind, limit int) error

	// ListDueLedgerResets returns ledgers whose reset_at has passed.
	ListDueLedgerResets(ctx context.Context, now time.Time) ([]*models.QuotaLedger, error)

	// ListUndeliveredQuotaEvents returns quota events awaiting delivery.
	ListUndeliveredQuotaEvents(ctx context.Context, limit int) ([]*models.QuotaEvent, error)

	// MarkQuotaEventDelivered stamps a quota event as delivered.
	MarkQuotaEventDelivered(ctx context.Context, id uint, at time.Time) error

	// ============================================
	// NOTEBOOKS
	// ============================================

	// UpsertNotebook creates or updates the (user, notebook_uuid) row.
	UpsertNotebook(ctx context.Context, notebook *models.Notebook) (*models.Notebook, error)

	// GetNotebook returns a notebook by (user, notebook_uuid).
	GetNotebook(ctx context.Context, userID, notebookUUID string) (*models.Notebook, error)

	// GetNotebookByID returns a notebook by primary key.
	GetNotebookByID(ctx context.Context, id string) (*models.Notebook, error)

	// ListNotebooks returns all notebooks owned by the user.
	ListNotebooks(ctx context.Context, userID string) ([]*models.Notebook, error)

	// DeleteNotebook deletes a notebook, its pages, and their sync records
	// and open work items.
	DeleteNotebook(ctx context.Context, userID, notebookUUID string) error

	// ============================================
	// PAGES
	// ============================================

	// GetOrCreatePage locates the (notebook, page_uuid) row, creating it in
	// not_synced status if absent.
	GetOrCreatePage(ctx context.Context, notebookID, userID, pageUUID string, pageNumber int) (*models.Page, error)

	// GetPage returns a page by (notebook, page_uuid).
	GetPage(ctx context.Context, notebookID, pageUUID string) (*models.Page, error)

	// GetPageByID returns a page by primary key.
	GetPageByID(ctx context.Context, id string) (*models.Page, error)

	// GetPageByUUID returns the user's page by device UUID.
	GetPageByUUID(ctx context.Context, userID, pageUUID string) (*models.Page, error)

	// ListPages returns the pages of a notebook ordered by page number.
	ListPages(ctx context.Context, notebookID string) ([]*models.Page, error)

	// MarkPagePending stores blob keys and hash and moves the page to
	// pending ahead of an OCR attempt.
	MarkPagePending(ctx context.Context, pageID, sourceKey, pdfKey, contentHash string) error

	// MarkPagePendingQuota moves the page to pending_quota, enforcing the
	// per-user deferred-page cap inside the same transaction.
	// Returns models.ErrPendingQuotaCap when the cap is reached.
	MarkPagePendingQuota(ctx context.Context, pageID, userID, sourceKey, pdfKey, contentHash string, maxPending int) error

	// CompletePageOCR persists text, confidence and hash and moves the page
	// to completed.
	CompletePageOCR(ctx context.Context, pageID, text string, confidence float64, contentHash string) error

	// FailPageOCR moves the page to failed.
	FailPageOCR(ctx context.Context, pageID string) error

	// RetryPageOCR moves a failed page back to pending (manual retry).
	RetryPageOCR(ctx context.Context, pageID string) error

	// CountPendingQuota returns the user's deferred-page count.
	CountPendingQuota(ctx context.Context, userID string) (int64, error)

	// ClaimDeferredPages atomically transitions up to limit pending_quota
	// pages to pending, newest first, and returns the claimed rows.
	ClaimDeferredPages(ctx context.Context, userID string, limit int) ([]*models.Page, error)

	// ============================================
	// WORK QUEUE
	// ============================================

	// EnqueueWorkItem schedules a sync action. If a non-terminal item
	// already exists for (user, target_ref, kind) the open row is refreshed
	// instead of inserting a duplicate.
	EnqueueWorkItem(ctx context.Context, item *models.WorkItem) (*models.WorkItem, error)

	// ClaimWorkItems leases up to limit runnable queued items to workerID,
	// lowest priority first, oldest first. Container items are skipped while
	// another container item of the same user is leased.
	ClaimWorkItems(ctx context.Context, workerID string, limit int, lease time.Duration) ([]*models.WorkItem, error)

	// ExtendLease pushes out the lease expiry of a leased item.
	ExtendLease(ctx context.Context, id, workerID string, lease time.Duration) error

	// CompleteWorkItem marks a leased item done.
	CompleteWorkItem(ctx context.Context, id string) error

	// FailWorkItem records a failure: requeues with the given delay while
	// attempts remain, else marks the item failed.
	FailWorkItem(ctx context.Context, id, errMsg string, maxRetries int, retryDelay time.Duration) (*models.WorkItem, error)

	// RequeueExpiredLeases returns leased items whose lease expired to the
	// queue. Returns the number of items reclaimed.
	RequeueExpiredLeases(ctx context.Context, now time.Time) (int64, error)

	// GetWorkItem returns a work item by id.
	GetWorkItem(ctx context.Context, id string) (*models.WorkItem, error)

	// QueueDepth returns item counts grouped by status.
	QueueDepth(ctx context.Context) (map[string]int64, error)

	// ============================================
	// SYNC RECORDS
	// ============================================

	// GetSyncRecord returns the (user, page_uuid, destination) record.
	// Returns models.ErrSyncRecordNotFound if absent.
	GetSyncRecord(ctx context.Context, userID, pageUUID, destination string) (*models.SyncRecord, error)

	// CreateSyncRecord inserts a record. A concurrent insert of the same
	// triple surfaces as models.ErrDuplicateSyncRecord; the caller re-reads
	// the winning row.
	CreateSyncRecord(ctx context.Context, record *models.SyncRecord) error

	// UpdateSyncRecord updates hash, status, error and metadata of a record.
	UpdateSyncRecord(ctx context.Context, record *models.SyncRecord) error

	// DeleteSyncRecord removes a record (external object vanished).
	DeleteSyncRecord(ctx context.Context, userID, pageUUID, destination string) error

	// ListSyncRecords returns the user's records for one destination.
	ListSyncRecords(ctx context.Context, userID, destination string) ([]*models.SyncRecord, error)

	// NotebookEverSynced reports whether any sync record exists for the
	// notebook container or any of its pages at any destination.
	NotebookEverSynced(ctx context.Context, userID, notebookUUID string, pageUUIDs []string) (bool, error)

	// UserEverSynced reports whether the user has any sync record at all.
	UserEverSynced(ctx context.Context, userID string) (bool, error)

	// ============================================
	// INTEGRATIONS
	// ============================================

	// GetIntegration returns the user's config for one destination.
	GetIntegration(ctx context.Context, userID, destination string) (*models.IntegrationConfig, error)

	// ListIntegrations returns all of the user's integrations.
	ListIntegrations(ctx context.Context, userID string) ([]*models.IntegrationConfig, error)

	// ListEnabledIntegrations returns the user's enabled integrations.
	ListEnabledIntegrations(ctx context.Context, userID string) ([]*models.IntegrationConfig, error)

	// UpsertIntegration creates or replaces the (user, destination) config.
	UpsertIntegration(ctx context.Context, config *models.IntegrationConfig) error

	// DeleteIntegration removes the (user, destination) config.
	DeleteIntegration(ctx context.Context, userID, destination string) error

	// RecordIntegrationSync bumps usage counters after a sync attempt.
	RecordIntegrationSync(ctx context.Context, userID, destination string, ok bool) error

	// ============================================
	// LIFECYCLE
	// ============================================

	// Transaction runs fn inside a database transaction. The Store passed
	// to fn operates on the transaction connection.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close() error
}

// compile-time check
var _ Store = (*GORMStore)(nil)
