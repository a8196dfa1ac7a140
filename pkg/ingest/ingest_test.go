package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gottino/rmirror-cloud/pkg/blobstore"
	"github.com/gottino/rmirror-cloud/pkg/models"
	"github.com/gottino/rmirror-cloud/pkg/ocr"
	"github.com/gottino/rmirror-cloud/pkg/quota"
	"github.com/gottino/rmirror-cloud/pkg/store"
)

type testEnv struct {
	store   *store.GORMStore
	blobs   *blobstore.MemoryStore
	ocr     *ocr.Fake
	quota   *quota.Service
	service *Service
	userID  string
}

func newTestEnv(t *testing.T, tier models.Tier) *testEnv {
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
	}, tier)
	require.NoError(t, err)

	blobs := blobstore.NewMemoryStore()
	fake := ocr.NewFake()
	qs := quota.NewService(st)

	return &testEnv{
		store:   st,
		blobs:   blobs,
		ocr:     fake,
		quota:   qs,
		service: NewService(st, blobs, fake, qs, nil, Config{}),
		userID:  userID,
	}
}

func testUpload(n int) *Upload {
	return &Upload{
		NotebookUUID: "nb-1",
		NotebookName: "Journal",
		PageUUID:     fmt.Sprintf("page-%d", n),
		PageNumber:   n,
		Source:       []byte(fmt.Sprintf("source bytes %d", n)),
	}
}

func TestUploadCompletes(t *testing.T) {
	env := newTestEnv(t, models.TierFree)
	ctx := context.Background()

	res, err := env.service.HandleUpload(ctx, env.userID, testUpload(1))
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.NotEmpty(t, res.Text)
	assert.Equal(t, 1, res.PagesUsed)
	assert.False(t, res.CacheHit)

	// Blobs stored under the derived keys.
	_, err = env.blobs.Get(ctx, blobstore.SourceKey(env.userID, "page-1"))
	assert.NoError(t, err)
	_, err = env.blobs.Get(ctx, blobstore.PDFKey(env.userID, "page-1"))
	assert.NoError(t, err)

	// Ledger debited once.
	snap, err := env.quota.Observe(ctx, env.userID)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Used)

	// A full sync work item is queued for the page.
	depth, err := env.store.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth[string(models.WorkQueued)])
}

func TestUploadDeduplicated(t *testing.T) {
	env := newTestEnv(t, models.TierFree)
	ctx := context.Background()

	up := testUpload(1)
	first, err := env.service.HandleUpload(ctx, env.userID, up)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, first.Status)

	again, err := env.service.HandleUpload(ctx, env.userID, up)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, again.Status)
	assert.True(t, again.CacheHit)
	assert.Equal(t, first.Text, again.Text)

	// OCR ran exactly once and quota was charged exactly once.
	assert.Equal(t, 1, env.ocr.CallCount())
	snap, err := env.quota.Observe(ctx, env.userID)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Used)

	// No second work item: the open one was folded.
	depth, err := env.store.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth[string(models.WorkQueued)])
}

func TestUploadChangedContentIsNewWork(t *testing.T) {
	env := newTestEnv(t, models.TierFree)
	ctx := context.Background()

	up := testUpload(1)
	first, err := env.service.HandleUpload(ctx, env.userID, up)
	require.NoError(t, err)

	up.Source = []byte("revised source bytes")
	second, err := env.service.HandleUpload(ctx, env.userID, up)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, second.Status)
	assert.False(t, second.CacheHit)
	assert.NotEqual(t, first.ContentHash, second.ContentHash)
	assert.Equal(t, 2, env.ocr.CallCount())
}

func TestUploadDeferredWhenExhausted(t *testing.T) {
	env := newTestEnv(t, models.TierFree)
	ctx := context.Background()

	_, err := env.quota.Consume(ctx, env.userID, 30)
	require.NoError(t, err)

	res, err := env.service.HandleUpload(ctx, env.userID, testUpload(1))
	require.NoError(t, err)
	assert.Equal(t, StatusPendingQuota, res.Status)

	// No OCR, no debit, no sync work.
	assert.Zero(t, env.ocr.CallCount())
	snap, err := env.quota.Observe(ctx, env.userID)
	require.NoError(t, err)
	assert.Equal(t, 30, snap.Used)

	depth, err := env.store.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth[string(models.WorkQueued)])

	// Blob is stored so the device never re-uploads.
	page, err := env.store.GetPageByID(ctx, res.PageID)
	require.NoError(t, err)
	assert.Equal(t, models.OCRPendingQuota, page.Status())
	assert.NotEmpty(t, page.PDFKey)
}

func TestUploadPendingQuotaCap(t *testing.T) {
	env := newTestEnv(t, models.TierFree)
	env.service.maxPending = 3
	ctx := context.Background()

	_, err := env.quota.Consume(ctx, env.userID, 30)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		res, err := env.service.HandleUpload(ctx, env.userID, testUpload(i))
		require.NoError(t, err)
		require.Equal(t, StatusPendingQuota, res.Status)
	}

	_, err = env.service.HandleUpload(ctx, env.userID, testUpload(99))
	assert.ErrorIs(t, err, models.ErrPendingQuotaCap)
}

func TestUploadOCRFailure(t *testing.T) {
	env := newTestEnv(t, models.TierFree)
	ctx := context.Background()

	env.ocr.NextErr = &ocr.PermanentError{Err: assert.AnError}

	res, err := env.service.HandleUpload(ctx, env.userID, testUpload(1))
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.NotEmpty(t, res.Error)

	// A failed extraction never charges the user.
	snap, err := env.quota.Observe(ctx, env.userID)
	require.NoError(t, err)
	assert.Zero(t, snap.Used)

	page, err := env.store.GetPageByID(ctx, res.PageID)
	require.NoError(t, err)
	assert.Equal(t, models.OCRFailed, page.Status())

	// Retrying the same bytes runs OCR again (hash equal but not completed).
	res, err = env.service.HandleUpload(ctx, env.userID, testUpload(1))
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
}

func TestUploadValidation(t *testing.T) {
	env := newTestEnv(t, models.TierFree)

	_, err := env.service.HandleUpload(context.Background(), env.userID, &Upload{PageUUID: "p"})
	assert.Error(t, err)
}

func TestUploadAtQuotaCeiling(t *testing.T) {
	env := newTestEnv(t, models.TierFree)
	ctx := context.Background()

	_, err := env.quota.Consume(ctx, env.userID, 29)
	require.NoError(t, err)

	// The last page within budget completes.
	res, err := env.service.HandleUpload(ctx, env.userID, testUpload(30))
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)

	// The next one defers with the ledger untouched at the ceiling.
	res, err = env.service.HandleUpload(ctx, env.userID, testUpload(31))
	require.NoError(t, err)
	assert.Equal(t, StatusPendingQuota, res.Status)

	snap, err := env.quota.Observe(ctx, env.userID)
	require.NoError(t, err)
	assert.Equal(t, 30, snap.Used)
	assert.True(t, snap.IsExhausted)
}

func TestMetadataSkippedWhenNeverSynced(t *testing.T) {
	env := newTestEnv(t, models.TierFree)
	ctx := context.Background()

	status, err := env.service.HandleMetadata(ctx, env.userID, &MetadataUpdate{
		NotebookUUID: "nb-1",
		VisibleName:  "Journal",
	})
	require.NoError(t, err)
	assert.Equal(t, MetadataSkipped, status)

	depth, err := env.store.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth[string(models.WorkQueued)])
}

func TestMetadataQueuedWhenSynced(t *testing.T) {
	env := newTestEnv(t, models.TierFree)
	ctx := context.Background()

	res, err := env.service.HandleUpload(ctx, env.userID, testUpload(1))
	require.NoError(t, err)

	page, err := env.store.GetPageByID(ctx, res.PageID)
	require.NoError(t, err)

	// A sync record for the page marks the notebook as synced.
	require.NoError(t, env.store.CreateSyncRecord(ctx, &models.SyncRecord{
		UserID:      env.userID,
		PageUUID:    page.PageUUID,
		Destination: "notes",
		ItemKind:    string(models.SyncItemPage),
		ExternalID:  "note-1",
		ContentHash: res.ContentHash,
		Status:      string(models.SyncSuccess),
	}))

	status, err := env.service.HandleMetadata(ctx, env.userID, &MetadataUpdate{
		NotebookUUID: "nb-1",
		VisibleName:  "Journal renamed",
	})
	require.NoError(t, err)
	assert.Equal(t, MetadataQueued, status)
}

func TestProcessDeferredNewestFirst(t *testing.T) {
	env := newTestEnv(t, models.TierFree)
	ctx := context.Background()

	_, err := env.quota.Consume(ctx, env.userID, 30)
	require.NoError(t, err)

	// Ten deferred pages with strictly increasing created_at.
	for i := 0; i < 10; i++ {
		res, err := env.service.HandleUpload(ctx, env.userID, testUpload(i))
		require.NoError(t, err)
		require.Equal(t, StatusPendingQuota, res.Status)
		time.Sleep(2 * time.Millisecond)
	}

	// Fresh period with headroom 4.
	now := time.Now().UTC()
	require.NoError(t, env.store.ResetLedger(ctx, env.userID, models.QuotaOCRPages, now, now.AddDate(0, 1, 0)))
	require.NoError(t, env.store.SetLedgerLimit(ctx, env.userID, models.QuotaOCRPages, 4))

	scheduled, err := env.service.ProcessDeferred(ctx, env.userID)
	require.NoError(t, err)
	assert.Equal(t, 4, scheduled)

	// The four newest pages were claimed, the six oldest stay deferred.
	notebook, err := env.store.GetNotebook(ctx, env.userID, "nb-1")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		page, err := env.store.GetPage(ctx, notebook.ID, fmt.Sprintf("page-%d", i))
		require.NoError(t, err)
		if i >= 6 {
			assert.Equal(t, models.OCRPending, page.Status(), "page-%d", i)
		} else {
			assert.Equal(t, models.OCRPendingQuota, page.Status(), "page-%d", i)
		}
	}

	remaining, err := env.store.CountPendingQuota(ctx, env.userID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), remaining)
}

func TestProcessDeferredSpansClaimBatches(t *testing.T) {
	env := newTestEnv(t, models.TierFree)
	env.service.maxPending = retroactiveBatch + 50
	ctx := context.Background()

	_, err := env.quota.Consume(ctx, env.userID, 30)
	require.NoError(t, err)

	deferred := retroactiveBatch + 20
	for i := 0; i < deferred; i++ {
		res, err := env.service.HandleUpload(ctx, env.userID, testUpload(i))
		require.NoError(t, err)
		require.Equal(t, StatusPendingQuota, res.Status)
	}

	// Fresh period whose headroom exceeds one claim batch: scheduling must
	// keep claiming until the allowance is filled, not stop after a batch.
	now := time.Now().UTC()
	require.NoError(t, env.store.ResetLedger(ctx, env.userID, models.QuotaOCRPages, now, now.AddDate(0, 1, 0)))
	require.NoError(t, env.store.SetLedgerLimit(ctx, env.userID, models.QuotaOCRPages, retroactiveBatch+10))

	scheduled, err := env.service.ProcessDeferred(ctx, env.userID)
	require.NoError(t, err)
	assert.Equal(t, retroactiveBatch+10, scheduled)

	remaining, err := env.store.CountPendingQuota(ctx, env.userID)
	require.NoError(t, err)
	assert.EqualValues(t, 10, remaining)

	// Every claimed page got its work item in the same commit.
	depth, err := env.store.QueueDepth(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, scheduled, depth[string(models.WorkQueued)])
}

func TestProcessDeferredUnlimited(t *testing.T) {
	env := newTestEnv(t, models.TierFree)
	ctx := context.Background()

	_, err := env.quota.Consume(ctx, env.userID, 30)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		res, err := env.service.HandleUpload(ctx, env.userID, testUpload(i))
		require.NoError(t, err)
		require.Equal(t, StatusPendingQuota, res.Status)
	}

	require.NoError(t, env.quota.SetTier(ctx, env.userID, models.TierPro))

	scheduled, err := env.service.ProcessDeferred(ctx, env.userID)
	require.NoError(t, err)
	assert.Equal(t, 5, scheduled)

	remaining, err := env.store.CountPendingQuota(ctx, env.userID)
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestTranscribePending(t *testing.T) {
	env := newTestEnv(t, models.TierFree)
	ctx := context.Background()

	_, err := env.quota.Consume(ctx, env.userID, 30)
	require.NoError(t, err)

	res, err := env.service.HandleUpload(ctx, env.userID, testUpload(1))
	require.NoError(t, err)
	require.Equal(t, StatusPendingQuota, res.Status)

	now := time.Now().UTC()
	require.NoError(t, env.store.ResetLedger(ctx, env.userID, models.QuotaOCRPages, now, now.AddDate(0, 1, 0)))

	_, err = env.service.ProcessDeferred(ctx, env.userID)
	require.NoError(t, err)

	page, err := env.store.GetPageByID(ctx, res.PageID)
	require.NoError(t, err)
	require.Equal(t, models.OCRPending, page.Status())

	require.NoError(t, env.service.TranscribePending(ctx, page))

	page, err = env.store.GetPageByID(ctx, res.PageID)
	require.NoError(t, err)
	assert.Equal(t, models.OCRCompleted, page.Status())
	require.NotNil(t, page.OCRText)

	snap, err := env.quota.Observe(ctx, env.userID)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Used)
}

func TestTranscribePendingQuotaRace(t *testing.T) {
	env := newTestEnv(t, models.TierFree)
	ctx := context.Background()

	_, err := env.quota.Consume(ctx, env.userID, 30)
	require.NoError(t, err)

	res, err := env.service.HandleUpload(ctx, env.userID, testUpload(1))
	require.NoError(t, err)
	require.Equal(t, StatusPendingQuota, res.Status)

	page, err := env.store.GetPageByID(ctx, res.PageID)
	require.NoError(t, err)

	// Still exhausted: the page returns to pending_quota undebited.
	require.NoError(t, env.service.TranscribePending(ctx, page))

	page, err = env.store.GetPageByID(ctx, res.PageID)
	require.NoError(t, err)
	assert.Equal(t, models.OCRPendingQuota, page.Status())

	snap, err := env.quota.Observe(ctx, env.userID)
	require.NoError(t, err)
	assert.Equal(t, 30, snap.Used)
}
