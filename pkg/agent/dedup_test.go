package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T) *DedupCache {
	t.Helper()
	cache, err := OpenDedupCache(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestDedupFirstSightChanged(t *testing.T) {
	cache := openTestCache(t)

	changed, err := cache.Changed("/dev/nb/page.rm", time.Unix(100, 0), 4, []byte("abcd"))
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestDedupUnchangedStat(t *testing.T) {
	cache := openTestCache(t)
	mtime := time.Unix(100, 0)

	_, err := cache.Changed("/dev/nb/page.rm", mtime, 4, []byte("abcd"))
	require.NoError(t, err)

	changed, err := cache.Changed("/dev/nb/page.rm", mtime, 4, []byte("abcd"))
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestDedupTouchWithoutEdit(t *testing.T) {
	cache := openTestCache(t)

	_, err := cache.Changed("/dev/nb/page.rm", time.Unix(100, 0), 4, []byte("abcd"))
	require.NoError(t, err)

	// New mtime, same bytes: the hash arbitrates.
	changed, err := cache.Changed("/dev/nb/page.rm", time.Unix(200, 0), 4, []byte("abcd"))
	require.NoError(t, err)
	assert.False(t, changed)

	// And the refreshed stat pair is remembered.
	changed, err = cache.Changed("/dev/nb/page.rm", time.Unix(200, 0), 4, []byte("abcd"))
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestDedupContentChange(t *testing.T) {
	cache := openTestCache(t)

	_, err := cache.Changed("/dev/nb/page.rm", time.Unix(100, 0), 4, []byte("abcd"))
	require.NoError(t, err)

	changed, err := cache.Changed("/dev/nb/page.rm", time.Unix(200, 0), 4, []byte("wxyz"))
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestDedupForget(t *testing.T) {
	cache := openTestCache(t)
	mtime := time.Unix(100, 0)

	_, err := cache.Changed("/dev/nb/page.rm", mtime, 4, []byte("abcd"))
	require.NoError(t, err)
	require.NoError(t, cache.Forget("/dev/nb/page.rm"))

	changed, err := cache.Changed("/dev/nb/page.rm", mtime, 4, []byte("abcd"))
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestDedupSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Unix(100, 0)

	cache, err := OpenDedupCache(dir)
	require.NoError(t, err)
	_, err = cache.Changed("/dev/nb/page.rm", mtime, 4, []byte("abcd"))
	require.NoError(t, err)
	require.NoError(t, cache.Close())

	reopened, err := OpenDedupCache(dir)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	changed, err := reopened.Changed("/dev/nb/page.rm", mtime, 4, []byte("abcd"))
	require.NoError(t, err)
	assert.False(t, changed)
}
