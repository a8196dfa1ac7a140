package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gottino/rmirror-cloud/pkg/models"
)

func TestCreateUserProvisionsSubscriptionAndLedger(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	userID := seedUser(t, st, models.TierFree)

	sub, err := st.GetSubscription(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, string(models.TierFree), sub.Tier)
	assert.True(t, sub.PeriodEnd.After(sub.PeriodStart))

	ledger, err := st.GetLedger(ctx, userID, models.QuotaOCRPages)
	require.NoError(t, err)
	assert.Equal(t, 30, ledger.Limit)
	assert.Equal(t, 0, ledger.Used)
}

func TestCreateUserProLedgerUnlimited(t *testing.T) {
	st := newTestStore(t)

	userID := seedUser(t, st, models.TierPro)

	ledger, err := st.GetLedger(context.Background(), userID, models.QuotaOCRPages)
	require.NoError(t, err)
	assert.True(t, ledger.Unlimited())
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	hash, err := models.HashPassword("password123")
	require.NoError(t, err)

	_, err = st.CreateUser(ctx, &models.User{Email: "dup@example.com", PasswordHash: hash}, models.TierFree)
	require.NoError(t, err)

	_, err = st.CreateUser(ctx, &models.User{Email: "dup@example.com", PasswordHash: hash}, models.TierFree)
	assert.ErrorIs(t, err, models.ErrDuplicateUser)
}

func TestValidateCredentials(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	hash, err := models.HashPassword("hunter2hunter2")
	require.NoError(t, err)
	_, err = st.CreateUser(ctx, &models.User{Email: "login@example.com", PasswordHash: hash}, models.TierFree)
	require.NoError(t, err)

	user, err := st.ValidateCredentials(ctx, "login@example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, "login@example.com", user.Email)

	_, err = st.ValidateCredentials(ctx, "login@example.com", "wrong")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	// Unknown user yields the same error as a bad password.
	_, err = st.ValidateCredentials(ctx, "nobody@example.com", "hunter2hunter2")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestUpdateLastLogin(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	userID := seedUser(t, st, models.TierFree)

	now := time.Now()
	require.NoError(t, st.UpdateLastLogin(ctx, userID, now))

	user, err := st.GetUserByID(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, user.LastLogin)
	assert.WithinDuration(t, now, *user.LastLogin, time.Second)

	assert.ErrorIs(t, st.UpdateLastLogin(ctx, "missing", now), models.ErrUserNotFound)
}

func TestDeleteUserCascades(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	userID := seedUser(t, st, models.TierFree)
	nb := seedNotebook(t, st, userID, "nb-1")

	page, err := st.GetOrCreatePage(ctx, nb.ID, userID, "page-1", 1)
	require.NoError(t, err)
	require.NotEmpty(t, page.ID)

	require.NoError(t, st.CreateSyncRecord(ctx, &models.SyncRecord{
		UserID: userID, PageUUID: "page-1", Destination: "notes",
	}))
	_, err = st.EnqueueWorkItem(ctx, &models.WorkItem{
		UserID: userID, TargetRef: page.ID, Kind: string(models.WorkFull),
	})
	require.NoError(t, err)

	require.NoError(t, st.DeleteUser(ctx, userID))

	_, err = st.GetUserByID(ctx, userID)
	assert.ErrorIs(t, err, models.ErrUserNotFound)
	_, err = st.GetLedger(ctx, userID, models.QuotaOCRPages)
	assert.ErrorIs(t, err, models.ErrLedgerNotFound)
	_, err = st.GetNotebook(ctx, userID, "nb-1")
	assert.ErrorIs(t, err, models.ErrNotebookNotFound)
	_, err = st.GetSyncRecord(ctx, userID, "page-1", "notes")
	assert.ErrorIs(t, err, models.ErrSyncRecordNotFound)
}

func TestUpdateSubscription(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	userID := seedUser(t, st, models.TierFree)

	sub, err := st.GetSubscription(ctx, userID)
	require.NoError(t, err)

	sub.Tier = string(models.TierPro)
	require.NoError(t, st.UpdateSubscription(ctx, sub))

	got, err := st.GetSubscription(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, string(models.TierPro), got.Tier)
}
