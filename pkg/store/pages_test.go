package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gottino/rmirror-cloud/pkg/models"
)

func TestGetOrCreatePageIdempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	userID := seedUser(t, st, models.TierFree)
	nb := seedNotebook(t, st, userID, "nb-1")

	first, err := st.GetOrCreatePage(ctx, nb.ID, userID, "page-1", 1)
	require.NoError(t, err)
	assert.Equal(t, string(models.OCRNotSynced), first.OCRStatus)

	second, err := st.GetOrCreatePage(ctx, nb.ID, userID, "page-1", 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	pages, err := st.ListPages(ctx, nb.ID)
	require.NoError(t, err)
	assert.Len(t, pages, 1)
}

func TestGetOrCreatePageRenumbers(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	userID := seedUser(t, st, models.TierFree)
	nb := seedNotebook(t, st, userID, "nb-1")

	_, err := st.GetOrCreatePage(ctx, nb.ID, userID, "page-1", 3)
	require.NoError(t, err)

	// Pages shift when earlier pages are inserted on the device.
	page, err := st.GetOrCreatePage(ctx, nb.ID, userID, "page-1", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, page.PageNumber)
}

func TestPageOCRLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	userID := seedUser(t, st, models.TierFree)
	nb := seedNotebook(t, st, userID, "nb-1")
	page, err := st.GetOrCreatePage(ctx, nb.ID, userID, "page-1", 1)
	require.NoError(t, err)

	require.NoError(t, st.MarkPagePending(ctx, page.ID, "src-key", "pdf-key", "hash-1"))

	got, err := st.GetPageByID(ctx, page.ID)
	require.NoError(t, err)
	assert.Equal(t, string(models.OCRPending), got.OCRStatus)
	assert.Equal(t, "src-key", got.SourceKey)

	require.NoError(t, st.CompletePageOCR(ctx, page.ID, "transcribed text", 0.97, "hash-1"))

	got, err = st.GetPageByID(ctx, page.ID)
	require.NoError(t, err)
	assert.Equal(t, string(models.OCRCompleted), got.OCRStatus)
	require.NotNil(t, got.OCRText)
	assert.Equal(t, "transcribed text", *got.OCRText)
	require.NotNil(t, got.OCRConfidence)
	assert.InDelta(t, 0.97, *got.OCRConfidence, 0.001)
	assert.NotNil(t, got.OCRCompletedAt)
}

func TestRetryPageOCROnlyFromFailed(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	userID := seedUser(t, st, models.TierFree)
	nb := seedNotebook(t, st, userID, "nb-1")
	page, err := st.GetOrCreatePage(ctx, nb.ID, userID, "page-1", 1)
	require.NoError(t, err)

	// not_synced -> retry is not a legal transition.
	assert.ErrorIs(t, st.RetryPageOCR(ctx, page.ID), models.ErrInvalidTransition)

	require.NoError(t, st.MarkPagePending(ctx, page.ID, "src", "pdf", "h1"))
	require.NoError(t, st.FailPageOCR(ctx, page.ID))
	require.NoError(t, st.RetryPageOCR(ctx, page.ID))

	got, err := st.GetPageByID(ctx, page.ID)
	require.NoError(t, err)
	assert.Equal(t, string(models.OCRPending), got.OCRStatus)
}

func TestMarkPagePendingQuotaCap(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	userID := seedUser(t, st, models.TierFree)
	nb := seedNotebook(t, st, userID, "nb-1")

	const maxPending = 3
	for i := 0; i < maxPending; i++ {
		page, err := st.GetOrCreatePage(ctx, nb.ID, userID, fmt.Sprintf("page-%d", i), i+1)
		require.NoError(t, err)
		require.NoError(t, st.MarkPagePendingQuota(ctx, page.ID, userID, "src", "pdf", "h", maxPending))
	}

	over, err := st.GetOrCreatePage(ctx, nb.ID, userID, "page-over", maxPending+1)
	require.NoError(t, err)
	err = st.MarkPagePendingQuota(ctx, over.ID, userID, "src", "pdf", "h", maxPending)
	assert.ErrorIs(t, err, models.ErrPendingQuotaCap)

	count, err := st.CountPendingQuota(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, maxPending, count)
}

func TestClaimDeferredPagesNewestFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	userID := seedUser(t, st, models.TierFree)
	nb := seedNotebook(t, st, userID, "nb-1")

	var ids []string
	for i := 0; i < 3; i++ {
		page, err := st.GetOrCreatePage(ctx, nb.ID, userID, fmt.Sprintf("page-%d", i), i+1)
		require.NoError(t, err)
		require.NoError(t, st.MarkPagePendingQuota(ctx, page.ID, userID, "src", "pdf", "h", 0))
		ids = append(ids, page.ID)
		// created_at ordering needs distinct timestamps on SQLite.
		time.Sleep(5 * time.Millisecond)
	}

	claimed, err := st.ClaimDeferredPages(ctx, userID, 2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, ids[2], claimed[0].ID)
	assert.Equal(t, ids[1], claimed[1].ID)
	for _, p := range claimed {
		assert.Equal(t, string(models.OCRPending), p.OCRStatus)
	}

	// The claimed pages no longer count against the deferred cap.
	count, err := st.CountPendingQuota(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	// A second run picks up only the remainder.
	claimed, err = st.ClaimDeferredPages(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, ids[0], claimed[0].ID)
}

func TestClaimDeferredPagesRollsBack(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	userID := seedUser(t, st, models.TierFree)
	nb := seedNotebook(t, st, userID, "nb-1")
	page, err := st.GetOrCreatePage(ctx, nb.ID, userID, "page-1", 1)
	require.NoError(t, err)
	require.NoError(t, st.MarkPagePendingQuota(ctx, page.ID, userID, "src", "pdf", "h", 0))

	// A claim whose surrounding transaction aborts must leave the page
	// deferred, so a later run can still pick it up.
	err = st.Transaction(ctx, func(tx Store) error {
		claimed, err := tx.ClaimDeferredPages(ctx, userID, 10)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	count, err := st.CountPendingQuota(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestClaimDeferredPagesZeroLimit(t *testing.T) {
	st := newTestStore(t)

	claimed, err := st.ClaimDeferredPages(context.Background(), "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestGetPageByUUID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	userID := seedUser(t, st, models.TierFree)
	nb := seedNotebook(t, st, userID, "nb-1")
	page, err := st.GetOrCreatePage(ctx, nb.ID, userID, "page-1", 1)
	require.NoError(t, err)

	got, err := st.GetPageByUUID(ctx, userID, "page-1")
	require.NoError(t, err)
	assert.Equal(t, page.ID, got.ID)

	_, err = st.GetPageByUUID(ctx, userID, "missing")
	assert.ErrorIs(t, err, models.ErrPageNotFound)
}
