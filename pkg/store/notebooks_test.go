package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gottino/rmirror-cloud/pkg/models"
)

func TestUpsertNotebookCreatesThenUpdates(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	userID := seedUser(t, st, models.TierFree)

	nb := seedNotebook(t, st, userID, "nb-1")
	assert.NotEmpty(t, nb.ID)
	assert.Equal(t, "Journal", nb.VisibleName)

	// Second upsert with the same UUID refreshes in place.
	modified := time.Now().Add(-time.Minute)
	updated, err := st.UpsertNotebook(ctx, &models.Notebook{
		UserID:       userID,
		NotebookUUID: "nb-1",
		VisibleName:  "Renamed",
		DocumentType: "notebook",
		LastModified: modified,
	})
	require.NoError(t, err)
	assert.Equal(t, nb.ID, updated.ID)
	assert.Equal(t, "Renamed", updated.VisibleName)

	all, err := st.ListNotebooks(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpsertNotebookRequiresUUID(t *testing.T) {
	st := newTestStore(t)

	_, err := st.UpsertNotebook(context.Background(), &models.Notebook{UserID: "u1"})
	assert.Error(t, err)
}

func TestNotebooksScopedPerUser(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, st, models.TierFree)
	bob := seedUser(t, st, models.TierFree)

	seedNotebook(t, st, alice, "nb-1")
	seedNotebook(t, st, bob, "nb-1")

	aliceNBs, err := st.ListNotebooks(ctx, alice)
	require.NoError(t, err)
	bobNBs, err := st.ListNotebooks(ctx, bob)
	require.NoError(t, err)

	require.Len(t, aliceNBs, 1)
	require.Len(t, bobNBs, 1)
	assert.NotEqual(t, aliceNBs[0].ID, bobNBs[0].ID)
}

func TestDeleteNotebookCascades(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	userID := seedUser(t, st, models.TierFree)
	nb := seedNotebook(t, st, userID, "nb-1")

	page, err := st.GetOrCreatePage(ctx, nb.ID, userID, "page-1", 1)
	require.NoError(t, err)

	// Container record plus a page record, and an open work item.
	require.NoError(t, st.CreateSyncRecord(ctx, &models.SyncRecord{
		UserID: userID, PageUUID: "nb-1", Destination: "notes", ItemKind: "container",
	}))
	require.NoError(t, st.CreateSyncRecord(ctx, &models.SyncRecord{
		UserID: userID, PageUUID: "page-1", Destination: "notes",
	}))
	item, err := st.EnqueueWorkItem(ctx, &models.WorkItem{
		UserID: userID, TargetRef: page.ID, Kind: string(models.WorkFull),
	})
	require.NoError(t, err)

	require.NoError(t, st.DeleteNotebook(ctx, userID, "nb-1"))

	_, err = st.GetNotebook(ctx, userID, "nb-1")
	assert.ErrorIs(t, err, models.ErrNotebookNotFound)
	_, err = st.GetPageByID(ctx, page.ID)
	assert.ErrorIs(t, err, models.ErrPageNotFound)
	_, err = st.GetSyncRecord(ctx, userID, "nb-1", "notes")
	assert.ErrorIs(t, err, models.ErrSyncRecordNotFound)
	_, err = st.GetSyncRecord(ctx, userID, "page-1", "notes")
	assert.ErrorIs(t, err, models.ErrSyncRecordNotFound)
	_, err = st.GetWorkItem(ctx, item.ID)
	assert.ErrorIs(t, err, models.ErrWorkItemNotFound)
}

func TestDeleteNotebookKeepsCompletedWork(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	userID := seedUser(t, st, models.TierFree)
	nb := seedNotebook(t, st, userID, "nb-1")

	page, err := st.GetOrCreatePage(ctx, nb.ID, userID, "page-1", 1)
	require.NoError(t, err)

	item, err := st.EnqueueWorkItem(ctx, &models.WorkItem{
		UserID: userID, TargetRef: page.ID, Kind: string(models.WorkFull),
	})
	require.NoError(t, err)
	require.NoError(t, st.CompleteWorkItem(ctx, item.ID))

	require.NoError(t, st.DeleteNotebook(ctx, userID, "nb-1"))

	// Terminal queue rows stay for the audit trail.
	got, err := st.GetWorkItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, string(models.WorkDone), got.Status)
}

func TestDeleteNotebookNotFound(t *testing.T) {
	st := newTestStore(t)

	userID := seedUser(t, st, models.TierFree)
	err := st.DeleteNotebook(context.Background(), userID, "missing")
	assert.ErrorIs(t, err, models.ErrNotebookNotFound)
}
