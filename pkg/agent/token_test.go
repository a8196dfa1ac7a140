package agent

import (
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenStoreRoundTrip(t *testing.T) {
	store := NewTokenStore(t.TempDir())

	saved := &StoredToken{
		ServerURL: "https://rmirror.example.com",
		Email:     "user@example.com",
		Token:     "agent-token",
		ExpiresAt: time.Now().Add(30 * 24 * time.Hour).UTC(),
	}
	require.NoError(t, store.Save(saved))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, saved.Token, loaded.Token)
	assert.Equal(t, saved.ServerURL, loaded.ServerURL)
	assert.False(t, loaded.Expired())
}

func TestTokenStorePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not meaningful on windows")
	}

	store := NewTokenStore(t.TempDir())
	require.NoError(t, store.Save(&StoredToken{Token: "x", ExpiresAt: time.Now().Add(time.Hour)}))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestTokenStoreMissing(t *testing.T) {
	store := NewTokenStore(t.TempDir())

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestTokenStoreClear(t *testing.T) {
	store := NewTokenStore(t.TempDir())
	require.NoError(t, store.Save(&StoredToken{Token: "x", ExpiresAt: time.Now().Add(time.Hour)}))

	require.NoError(t, store.Clear())
	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	// Clearing twice is fine.
	require.NoError(t, store.Clear())
}

func TestStoredTokenExpired(t *testing.T) {
	assert.True(t, (&StoredToken{}).Expired())
	assert.True(t, (&StoredToken{ExpiresAt: time.Now().Add(-time.Hour)}).Expired())
	assert.True(t, (&StoredToken{ExpiresAt: time.Now().Add(30 * time.Second)}).Expired())
	assert.False(t, (&StoredToken{ExpiresAt: time.Now().Add(time.Hour)}).Expired())
}
