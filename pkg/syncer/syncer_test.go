package syncer

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gottino/rmirror-cloud/pkg/blobstore"
	"github.com/gottino/rmirror-cloud/pkg/destination"
	"github.com/gottino/rmirror-cloud/pkg/ingest"
	"github.com/gottino/rmirror-cloud/pkg/models"
	"github.com/gottino/rmirror-cloud/pkg/ocr"
	"github.com/gottino/rmirror-cloud/pkg/quota"
	"github.com/gottino/rmirror-cloud/pkg/store"
)

type testEnv struct {
	store  *store.GORMStore
	quota  *quota.Service
	ingest *ingest.Service
	fake   *destination.Fake
	pool   *Pool
	userID string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	hash, err := models.HashPassword("password123")
	require.NoError(t, err)
	userID, err := st.CreateUser(context.Background(), &models.User{
		Email:        "user@example.com",
		PasswordHash: hash,
	}, models.TierFree)
	require.NoError(t, err)

	qs := quota.NewService(st)
	ing := ingest.NewService(st, blobstore.NewMemoryStore(), ocr.NewFake(), qs, nil, ingest.Config{})

	fake := destination.NewFake()
	registry := destination.NewRegistry()
	require.NoError(t, registry.Register("fake", func(map[string]string) (destination.Adapter, error) {
		return fake, nil
	}))

	sealer, err := destination.NewSealer(bytes.Repeat([]byte("s"), 32))
	require.NoError(t, err)
	resolver := destination.NewResolver(registry, sealer)

	blob, salt, err := resolver.Seal(map[string]string{"token": "t"})
	require.NoError(t, err)
	require.NoError(t, st.UpsertIntegration(context.Background(), &models.IntegrationConfig{
		ID:            uuid.New().String(),
		UserID:        userID,
		Destination:   "fake",
		Enabled:       true,
		EncryptedBlob: blob,
		Salt:          salt,
	}))

	// Short poll interval: deferred page items requeue with it, and tests
	// drain the queue synchronously.
	pool := NewPool(st, ing, resolver, nil, Config{
		ClaimBatch:   10,
		MaxRetries:   3,
		PollInterval: 25 * time.Millisecond,
	})

	return &testEnv{
		store:  st,
		quota:  qs,
		ingest: ing,
		fake:   fake,
		pool:   pool,
		userID: userID,
	}
}

func (env *testEnv) upload(t *testing.T, n int, source string) *ingest.UploadResult {
	t.Helper()
	res, err := env.ingest.HandleUpload(context.Background(), env.userID, &ingest.Upload{
		NotebookUUID: "nb-1",
		NotebookName: "Journal",
		PageUUID:     fmt.Sprintf("page-%d", n),
		PageNumber:   n,
		Source:       []byte(source),
	})
	require.NoError(t, err)
	return res
}

func (env *testEnv) openItems(t *testing.T) int64 {
	t.Helper()
	depth, err := env.store.QueueDepth(context.Background())
	require.NoError(t, err)
	return depth[string(models.WorkQueued)] + depth[string(models.WorkLeased)]
}

// drain runs batches until the queue has no open items left. Page items
// deferred behind a container item become runnable again after one poll
// interval, so draining may take a few passes.
func (env *testEnv) drain(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, err := env.pool.RunOnce(context.Background())
		require.NoError(t, err)
		return env.openItems(t) == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestFullItemSyncsPage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.upload(t, 1, "page one")
	env.drain(t)

	// Container created first, then the page.
	assert.Equal(t, 1, env.fake.ContainerCalls)
	assert.Equal(t, 1, env.fake.SyncCalls)
	assert.Len(t, env.fake.Items, 1)

	rec, err := env.store.GetSyncRecord(ctx, env.userID, "page-1", "fake")
	require.NoError(t, err)
	assert.Equal(t, string(models.SyncSuccess), rec.Status)
	assert.NotEmpty(t, rec.ExternalID)
	assert.Equal(t, string(models.SyncItemPage), rec.ItemKind)

	crec, err := env.store.GetSyncRecord(ctx, env.userID, "nb-1", "fake")
	require.NoError(t, err)
	assert.Equal(t, string(models.SyncItemContainer), crec.ItemKind)

	assert.Zero(t, env.openItems(t))
}

func TestContainerCreationSingleWriter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.upload(t, 1, "page one")
	env.upload(t, 2, "page two")

	// First pass claims both page items before any container exists. Page
	// workers never call CreateContainer themselves: each queues the
	// notebook's container item (folded into one open row) and steps aside.
	n, err := env.pool.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	assert.Zero(t, env.fake.ContainerCalls)
	assert.Zero(t, env.fake.SyncCalls)

	depth, err := env.store.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), depth[string(models.WorkQueued)])

	env.drain(t)

	// Exactly one container, no matter how many pages raced to need it.
	assert.Equal(t, 1, env.fake.ContainerCalls)
	assert.Len(t, env.fake.Containers, 1)
	assert.Equal(t, 2, env.fake.SyncCalls)

	crec, err := env.store.GetSyncRecord(ctx, env.userID, "nb-1", "fake")
	require.NoError(t, err)
	assert.Equal(t, string(models.SyncItemContainer), crec.ItemKind)
}

func TestFullItemIdempotent(t *testing.T) {
	env := newTestEnv(t)

	env.upload(t, 1, "page one")
	env.drain(t)

	// Same content again: fresh work item, but the sync record's hash makes
	// the destination call unnecessary.
	env.upload(t, 1, "page one")
	env.drain(t)

	assert.Equal(t, 1, env.fake.SyncCalls)
	assert.Zero(t, env.fake.UpdateCalls)
}

func TestFullItemUpdatesChangedContent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.upload(t, 1, "page one")
	env.drain(t)

	res := env.upload(t, 1, "page one revised")
	env.drain(t)

	assert.Equal(t, 1, env.fake.SyncCalls)
	assert.Equal(t, 1, env.fake.UpdateCalls)

	rec, err := env.store.GetSyncRecord(ctx, env.userID, "page-1", "fake")
	require.NoError(t, err)
	assert.Equal(t, res.ContentHash, rec.ContentHash)
}

func TestGoneObjectRecreated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.upload(t, 1, "page one")
	env.drain(t)

	before, err := env.store.GetSyncRecord(ctx, env.userID, "page-1", "fake")
	require.NoError(t, err)

	env.upload(t, 1, "page one revised")
	env.fake.Gone = true
	env.drain(t)

	// Update hit a vanished object; a fresh one was created.
	assert.Equal(t, 2, env.fake.SyncCalls)
	after, err := env.store.GetSyncRecord(ctx, env.userID, "page-1", "fake")
	require.NoError(t, err)
	assert.NotEqual(t, before.ExternalID, after.ExternalID)
	assert.Equal(t, string(models.SyncSuccess), after.Status)
}

func TestExternalIDRecoveredByHash(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.upload(t, 1, "page one")
	env.drain(t)

	rec, err := env.store.GetSyncRecord(ctx, env.userID, "page-1", "fake")
	require.NoError(t, err)

	// Simulate a record lost after the destination call succeeded.
	require.NoError(t, env.store.DeleteSyncRecord(ctx, env.userID, "page-1", "fake"))

	env.upload(t, 1, "page one")
	env.drain(t)

	// The hash lookup found the object; no duplicate was created.
	assert.Equal(t, 1, env.fake.SyncCalls)
	recovered, err := env.store.GetSyncRecord(ctx, env.userID, "page-1", "fake")
	require.NoError(t, err)
	assert.Equal(t, rec.ExternalID, recovered.ExternalID)
}

func TestRetryableFailureRequeues(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.upload(t, 1, "page one")
	env.drain(t)

	env.fake.NextErr = &destination.Error{Retryable: true, Err: assert.AnError}
	env.upload(t, 1, "page one revised")

	n, err := env.pool.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// Requeued with backoff, not runnable yet.
	var items []*models.WorkItem
	items, err = env.store.ClaimWorkItems(ctx, "other-worker", 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, items)

	depth, err := env.store.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth[string(models.WorkQueued)])
}

func TestPermanentFailureFailsItem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.upload(t, 1, "page one")
	env.drain(t)

	env.fake.NextErr = &destination.Error{Retryable: false, Err: assert.AnError}
	env.upload(t, 1, "page one revised")

	n, err := env.pool.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	depth, err := env.store.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth[string(models.WorkFailed)])
	assert.Zero(t, depth[string(models.WorkQueued)])
}

func TestMetadataUpdatesContainer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.upload(t, 1, "page one")
	env.drain(t)

	crec, err := env.store.GetSyncRecord(ctx, env.userID, "nb-1", "fake")
	require.NoError(t, err)
	env.fake.Items[crec.ExternalID] = &destination.Item{NotebookName: "Journal"}

	status, err := env.ingest.HandleMetadata(ctx, env.userID, &ingest.MetadataUpdate{
		NotebookUUID: "nb-1",
		VisibleName:  "Journal renamed",
	})
	require.NoError(t, err)
	require.Equal(t, ingest.MetadataQueued, status)

	_, err = env.pool.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, env.fake.UpdateCalls)
	assert.Equal(t, "Journal renamed", env.fake.Items[crec.ExternalID].NotebookName)

	// Metadata propagation never touches the quota ledger.
	snap, err := env.quota.Observe(ctx, env.userID)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Used)
}

func TestMetadataGoneContainerDropsRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.upload(t, 1, "page one")
	env.drain(t)

	// The container external id is unknown to the destination now.
	status, err := env.ingest.HandleMetadata(ctx, env.userID, &ingest.MetadataUpdate{
		NotebookUUID: "nb-1",
		VisibleName:  "Journal renamed",
	})
	require.NoError(t, err)
	require.Equal(t, ingest.MetadataQueued, status)

	_, err = env.pool.RunOnce(ctx)
	require.NoError(t, err)

	_, err = env.store.GetSyncRecord(ctx, env.userID, "nb-1", "fake")
	assert.ErrorIs(t, err, models.ErrSyncRecordNotFound)
}

func TestDeferredPageTranscribedOnSync(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.quota.Consume(ctx, env.userID, 30)
	require.NoError(t, err)

	res := env.upload(t, 1, "deferred page")
	require.Equal(t, ingest.StatusPendingQuota, res.Status)

	now := time.Now().UTC()
	require.NoError(t, env.store.ResetLedger(ctx, env.userID, models.QuotaOCRPages, now, now.AddDate(0, 1, 0)))

	scheduled, err := env.ingest.ProcessDeferred(ctx, env.userID)
	require.NoError(t, err)
	require.Equal(t, 1, scheduled)

	env.drain(t)

	page, err := env.store.GetPageByID(ctx, res.PageID)
	require.NoError(t, err)
	assert.Equal(t, models.OCRCompleted, page.Status())

	assert.Equal(t, 1, env.fake.SyncCalls)
	snap, err := env.quota.Observe(ctx, env.userID)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Used)
}

func TestPendingQuotaItemCompletesQuietly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.quota.Consume(ctx, env.userID, 30)
	require.NoError(t, err)

	res := env.upload(t, 1, "deferred page")
	require.Equal(t, ingest.StatusPendingQuota, res.Status)

	// A stray full item for a still-deferred page completes without calling
	// the destination or debiting anything.
	_, err = env.store.EnqueueWorkItem(ctx, &models.WorkItem{
		UserID:       env.userID,
		Kind:         string(models.WorkFull),
		TargetRef:    "page-1",
		Destinations: models.DestinationsAll,
		Priority:     models.PriorityFull,
	})
	require.NoError(t, err)

	n, err := env.pool.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Zero(t, env.fake.SyncCalls)
	assert.Zero(t, env.openItems(t))

	page, err := env.store.GetPageByID(ctx, res.PageID)
	require.NoError(t, err)
	assert.Equal(t, models.OCRPendingQuota, page.Status())
}

func TestMissingPageFailsPermanently(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.store.EnqueueWorkItem(ctx, &models.WorkItem{
		UserID:       env.userID,
		Kind:         string(models.WorkFull),
		TargetRef:    "no-such-page",
		Destinations: models.DestinationsAll,
		Priority:     models.PriorityFull,
	})
	require.NoError(t, err)

	n, err := env.pool.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	depth, err := env.store.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth[string(models.WorkFailed)])
}

func TestRetryDelaySchedule(t *testing.T) {
	assert.Equal(t, 30*time.Second, retryDelay(0))
	assert.Equal(t, 60*time.Second, retryDelay(1))
	assert.Equal(t, 240*time.Second, retryDelay(3))
	assert.Equal(t, time.Hour, retryDelay(10))
}

func TestStartStop(t *testing.T) {
	env := newTestEnv(t)

	env.pool.config.PollInterval = 10 * time.Millisecond
	env.pool.config.SweepInterval = 10 * time.Millisecond

	env.upload(t, 1, "page one")

	env.pool.Start(context.Background())
	require.Eventually(t, func() bool {
		return env.openItems(t) == 0
	}, 5*time.Second, 20*time.Millisecond)
	env.pool.Stop(2 * time.Second)

	assert.Equal(t, 1, env.fake.SyncCalls)
}
