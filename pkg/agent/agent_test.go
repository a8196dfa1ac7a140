package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gottino/rmirror-cloud/pkg/apiclient"
)

// fakeServer is a minimal rmirror server for agent tests.
type fakeServer struct {
	mu            sync.Mutex
	uploads       []string // page uuids in arrival order
	metadataCalls int
	failuresLeft  int
	deferAll      bool

	srv *httptest.Server
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "session-token",
			"refresh_token": "refresh-token",
			"token_type":    "Bearer",
		})
	})
	mux.HandleFunc("/v1/auth/agent-token", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer session-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "bad token"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token":      "agent-token",
			"token_type": "Bearer",
			"expires_at": time.Now().Add(30 * 24 * time.Hour).UTC(),
		})
	})
	mux.HandleFunc("/v1/processing/rm-file", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		defer fs.mu.Unlock()

		if fs.failuresLeft > 0 {
			fs.failuresLeft--
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "boom"})
			return
		}

		require.NoError(t, r.ParseMultipartForm(1<<20))
		fs.uploads = append(fs.uploads, r.FormValue("page_uuid"))

		status := "completed"
		if fs.deferAll {
			status = "pending_quota"
		}
		_ = json.NewEncoder(w).Encode(apiclient.UploadResult{Status: status, PageID: "p"})
	})
	mux.HandleFunc("/v1/processing/metadata/update", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.metadataCalls++
		fs.mu.Unlock()
		_ = json.NewEncoder(w).Encode(apiclient.MetadataResult{SyncType: "queued"})
	})
	mux.HandleFunc("/v1/quota/status", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(apiclient.QuotaStatus{Used: 3, Limit: 30, Tier: "free"})
	})

	fs.srv = httptest.NewServer(mux)
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeServer) uploadedPages() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.uploads...)
}

// writeDeviceTree lays out one notebook with one page in the device format.
func writeDeviceTree(t *testing.T, root string) {
	t.Helper()

	require.NoError(t, os.WriteFile(filepath.Join(root, "nb-1.metadata"),
		[]byte(`{"visibleName":"Journal","parent":"","type":"DocumentType"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "nb-1.content"),
		[]byte(`{"pages":["page-1","page-2"]}`), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "nb-1"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "nb-1", "page-1.rm"),
		[]byte("stroke data"), 0644))
}

func newTestAgent(t *testing.T, fs *fakeServer, watchDir string) *Agent {
	t.Helper()
	stateDir := t.TempDir()

	_, err := Login(fs.srv.URL, "user@example.com", "password123", NewTokenStore(stateDir))
	require.NoError(t, err)

	a, err := New(Config{
		ServerURL: fs.srv.URL,
		WatchDir:  watchDir,
		StateDir:  stateDir,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.cache.Close() })

	token, err := a.tokens.Load()
	require.NoError(t, err)
	a.client.SetToken(token.Token)
	a.setAuthenticated(true)
	a.retryInterval = 10 * time.Millisecond
	return a
}

func TestLoginStoresAgentToken(t *testing.T) {
	fs := newFakeServer(t)
	store := NewTokenStore(t.TempDir())

	stored, err := Login(fs.srv.URL, "user@example.com", "password123", store)
	require.NoError(t, err)
	assert.Equal(t, "agent-token", stored.Token)
	assert.False(t, stored.Expired())

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "agent-token", loaded.Token)
}

func TestProcessPathUploadsPage(t *testing.T) {
	fs := newFakeServer(t)
	root := t.TempDir()
	writeDeviceTree(t, root)
	a := newTestAgent(t, fs, root)

	err := a.processPath(context.Background(), filepath.Join(root, "nb-1", "page-1.rm"))
	require.NoError(t, err)
	assert.Equal(t, []string{"page-1"}, fs.uploadedPages())

	status := a.Status()
	assert.True(t, status.Connected)
	assert.NotNil(t, status.LastSyncAt)
	require.NotNil(t, status.Quota)
	assert.Equal(t, 3, status.Quota.Used)
}

func TestProcessPathDedupsUnchangedFile(t *testing.T) {
	fs := newFakeServer(t)
	root := t.TempDir()
	writeDeviceTree(t, root)
	a := newTestAgent(t, fs, root)

	path := filepath.Join(root, "nb-1", "page-1.rm")
	require.NoError(t, a.processPath(context.Background(), path))
	require.NoError(t, a.processPath(context.Background(), path))

	assert.Len(t, fs.uploadedPages(), 1)
}

func TestProcessPathRetriesServerErrors(t *testing.T) {
	fs := newFakeServer(t)
	fs.failuresLeft = 2
	root := t.TempDir()
	writeDeviceTree(t, root)
	a := newTestAgent(t, fs, root)

	err := a.processPath(context.Background(), filepath.Join(root, "nb-1", "page-1.rm"))
	require.NoError(t, err)
	assert.Equal(t, []string{"page-1"}, fs.uploadedPages())
}

func TestProcessPathQuotaDeferral(t *testing.T) {
	fs := newFakeServer(t)
	fs.deferAll = true
	root := t.TempDir()
	writeDeviceTree(t, root)
	a := newTestAgent(t, fs, root)

	err := a.processPath(context.Background(), filepath.Join(root, "nb-1", "page-1.rm"))
	require.NoError(t, err)

	// Server accepted the blob; exactly one upload, no retries.
	assert.Len(t, fs.uploadedPages(), 1)
	assert.Equal(t, 1, a.Status().Deferred)
}

func TestProcessPathMetadataUpdate(t *testing.T) {
	fs := newFakeServer(t)
	root := t.TempDir()
	writeDeviceTree(t, root)
	a := newTestAgent(t, fs, root)

	err := a.processPath(context.Background(), filepath.Join(root, "nb-1.metadata"))
	require.NoError(t, err)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	assert.Equal(t, 1, fs.metadataCalls)
}

func TestRunScanEnqueuesDeviceFiles(t *testing.T) {
	fs := newFakeServer(t)
	root := t.TempDir()
	writeDeviceTree(t, root)
	a := newTestAgent(t, fs, root)

	queued, err := a.RunScan(context.Background())
	require.NoError(t, err)

	// page-1.rm, nb-1.metadata, nb-1.content
	assert.Equal(t, 3, queued)
	assert.Equal(t, 3, a.QueueDepth())
}

func TestPageNumberFromManifest(t *testing.T) {
	root := t.TempDir()
	writeDeviceTree(t, root)

	assert.Equal(t, 1, pageNumber(root, "nb-1", "page-1"))
	assert.Equal(t, 2, pageNumber(root, "nb-1", "page-2"))
	assert.Equal(t, 0, pageNumber(root, "nb-1", "page-unknown"))
	assert.Equal(t, 0, pageNumber(root, "nb-missing", "page-1"))
}

func TestWatcherDebouncesBursts(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "nb-1"), 0755))

	w, err := NewWatcher(root, 50*time.Millisecond)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	path := filepath.Join(root, "nb-1", "page-1.rm")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("stroke data"), 0644))
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case got := <-w.Paths():
		assert.Equal(t, path, got)
	case <-time.After(2 * time.Second):
		t.Fatal("no debounced event")
	}

	// The burst collapses to one notification.
	select {
	case got := <-w.Paths():
		t.Fatalf("unexpected second event for %s", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherIgnoresIrrelevantFiles(t *testing.T) {
	root := t.TempDir()

	w, err := NewWatcher(root, 20*time.Millisecond)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	require.NoError(t, os.WriteFile(filepath.Join(root, "thumbnail.png"), []byte("img"), 0644))

	select {
	case got := <-w.Paths():
		t.Fatalf("unexpected event for %s", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestAgentStartStop(t *testing.T) {
	fs := newFakeServer(t)
	root := t.TempDir()
	writeDeviceTree(t, root)

	stateDir := t.TempDir()
	_, err := Login(fs.srv.URL, "user@example.com", "password123", NewTokenStore(stateDir))
	require.NoError(t, err)

	a, err := New(Config{
		ServerURL:  fs.srv.URL,
		WatchDir:   root,
		StateDir:   stateDir,
		Debounce:   20 * time.Millisecond,
		StatusAddr: "127.0.0.1:0",
	})
	require.NoError(t, err)
	a.retryInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))

	assert.Eventually(t, func() bool {
		return len(fs.uploadedPages()) >= 1
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, a.Stop(5*time.Second))
}
