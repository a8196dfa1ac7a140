// Package agent implements the on-device mirroring agent: a file-system
// watcher feeding a deduplicated upload queue drained by a worker pool.
//
// The agent is single-host, single-user. It holds a long-lived bearer token
// and uploads changed device files to the rmirror server; the server owns
// all further processing.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/gottino/rmirror-cloud/internal/logger"
	"github.com/gottino/rmirror-cloud/pkg/apiclient"
)

// Config tunes the agent.
type Config struct {
	// ServerURL is the rmirror server base URL.
	ServerURL string `mapstructure:"server_url" validate:"required,url" yaml:"server_url"`

	// WatchDir is the device file tree to mirror.
	WatchDir string `mapstructure:"watch_dir" validate:"required" yaml:"watch_dir"`

	// StateDir holds the token file and the dedup cache.
	// Default: ~/.local/share/rmirror-agent
	StateDir string `mapstructure:"state_dir" yaml:"state_dir"`

	// Debounce is how long a path must stay quiet before uploading.
	// Default: 500ms
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`

	// QueueSize bounds the in-memory upload queue.
	// Default: 256
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`

	// BatchSize is the upload worker pool size.
	// Default: 10
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size"`

	// MaxRetries bounds upload attempts per file.
	// Default: 5
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`

	// StatusAddr is the local status endpoint listen address.
	// Default: 127.0.0.1:8712
	StatusAddr string `mapstructure:"status_addr" yaml:"status_addr"`
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.StateDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.StateDir = filepath.Join(home, ".local", "share", "rmirror-agent")
		}
	}
	if c.Debounce == 0 {
		c.Debounce = 500 * time.Millisecond
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.StatusAddr == "" {
		c.StatusAddr = "127.0.0.1:8712"
	}
}

// Agent watches the device tree and uploads changed files.
type Agent struct {
	config Config
	client *apiclient.Client
	tokens *TokenStore
	cache  *DedupCache

	queue chan string

	// retryInterval seeds the backoff schedule; tests shrink it.
	retryInterval time.Duration

	mu            sync.Mutex
	started       bool
	connected     bool
	authenticated bool
	lastSyncAt    *time.Time
	deferred      int

	watcher   *Watcher
	status    *StatusServer
	wg        sync.WaitGroup
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// New creates an agent. The dedup cache is opened under the state dir.
func New(config Config) (*Agent, error) {
	config.ApplyDefaults()
	if config.ServerURL == "" {
		return nil, fmt.Errorf("server_url is required")
	}
	if config.WatchDir == "" {
		return nil, fmt.Errorf("watch_dir is required")
	}

	cache, err := OpenDedupCache(filepath.Join(config.StateDir, "dedup"))
	if err != nil {
		return nil, err
	}

	return &Agent{
		config:        config,
		client:        apiclient.New(config.ServerURL),
		tokens:        NewTokenStore(config.StateDir),
		cache:         cache,
		queue:         make(chan string, config.QueueSize),
		retryInterval: 2 * time.Second,
		stopCh:        make(chan struct{}),
		stoppedCh:     make(chan struct{}),
	}, nil
}

// Login authenticates with email/password, mints a long-lived agent token
// and stores it in the state dir.
func Login(serverURL, email, password string, tokens *TokenStore) (*StoredToken, error) {
	client := apiclient.New(serverURL)

	pair, err := client.Login(email, password)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	agentToken, err := client.WithToken(pair.AccessToken).AgentToken()
	if err != nil {
		return nil, fmt.Errorf("minting agent token: %w", err)
	}

	stored := &StoredToken{
		ServerURL: serverURL,
		Email:     email,
		Token:     agentToken.Token,
		ExpiresAt: agentToken.ExpiresAt,
	}
	if err := tokens.Save(stored); err != nil {
		return nil, fmt.Errorf("saving token: %w", err)
	}
	return stored, nil
}

// Start begins watching and uploading. Returns an error when no valid token
// is stored.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return fmt.Errorf("agent already started")
	}
	a.started = true
	a.mu.Unlock()

	token, err := a.tokens.Load()
	if err != nil {
		return err
	}
	if token.Expired() {
		return fmt.Errorf("agent token expired %s ago: %w",
			time.Since(token.ExpiresAt).Round(time.Second), ErrNotLoggedIn)
	}
	a.client.SetToken(token.Token)
	a.setAuthenticated(true)

	watcher, err := NewWatcher(a.config.WatchDir, a.config.Debounce)
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	a.watcher = watcher

	a.status = NewStatusServer(a, a.config.StatusAddr)
	if err := a.status.Start(); err != nil {
		_ = watcher.Close()
		return err
	}

	for i := 0; i < a.config.BatchSize; i++ {
		a.wg.Add(1)
		go a.worker(ctx)
	}

	a.wg.Add(1)
	go a.feed(ctx)

	go func() {
		a.wg.Wait()
		close(a.stoppedCh)
	}()

	// Catch up on anything that changed while the agent was down.
	queued, err := a.RunScan(ctx)
	if err != nil {
		logger.Warn("initial scan failed", "error", err)
	}

	logger.Info("agent started",
		"watch_dir", a.config.WatchDir,
		"workers", a.config.BatchSize,
		"status_addr", a.config.StatusAddr,
		"initial_queue", queued,
	)
	return nil
}

// Stop drains the agent within the timeout.
func (a *Agent) Stop(timeout time.Duration) error {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	close(a.stopCh)

	var stopErr error
	select {
	case <-a.stoppedCh:
		logger.Info("agent stopped")
	case <-time.After(timeout):
		stopErr = fmt.Errorf("agent did not stop within %s", timeout)
	}

	if a.status != nil {
		_ = a.status.Stop()
	}
	if err := a.cache.Close(); err != nil && stopErr == nil {
		stopErr = err
	}
	return stopErr
}

// RunScan walks the watch dir once and enqueues every changed file. Returns
// the number of paths enqueued.
func (a *Agent) RunScan(ctx context.Context) (int, error) {
	queued := 0
	err := filepath.WalkDir(a.config.WatchDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !relevantPath(path) {
			return nil
		}
		if a.enqueue(path) {
			queued++
		}
		return nil
	})
	return queued, err
}

// QueueDepth returns the current upload backlog.
func (a *Agent) QueueDepth() int {
	return len(a.queue)
}

// feed moves debounced watcher events onto the upload queue.
func (a *Agent) feed(ctx context.Context) {
	defer a.wg.Done()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ctx.Done():
			return
		case path, ok := <-a.watcher.Paths():
			if !ok {
				return
			}
			a.enqueue(path)
		}
	}
}

// enqueue adds path to the queue unless it is full. Returns whether the path
// was accepted; a dropped path is picked up by the next scan.
func (a *Agent) enqueue(path string) bool {
	select {
	case a.queue <- path:
		return true
	default:
		logger.Warn("upload queue full, dropping", "path", path)
		return false
	}
}

func (a *Agent) worker(ctx context.Context) {
	defer a.wg.Done()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ctx.Done():
			return
		case path := <-a.queue:
			if err := a.processPath(ctx, path); err != nil {
				logger.Warn("upload failed", "path", path, "error", err)
			}
		}
	}
}

// processPath uploads one changed file, consulting the dedup cache first.
func (a *Agent) processPath(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Deleted between event and upload; drop the cache entry so a
			// recreate uploads again.
			return a.cache.Forget(path)
		}
		return err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	changed, err := a.cache.Changed(path, info.ModTime(), info.Size(), content)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	switch filepath.Ext(path) {
	case ".rm":
		return a.uploadPage(ctx, path, content)
	case ".metadata", ".content":
		return a.uploadMetadata(ctx, path)
	default:
		return nil
	}
}

func (a *Agent) uploadPage(ctx context.Context, path string, content []byte) error {
	notebookUUID := notebookUUIDFromPagePath(path)
	pageUUID := pageUUIDFromPath(path)

	up := &apiclient.PageUpload{
		NotebookUUID: notebookUUID,
		NotebookName: notebookUUID,
		PageUUID:     pageUUID,
		PageNumber:   pageNumber(a.config.WatchDir, notebookUUID, pageUUID),
		Source:       content,
	}
	meta, err := loadNotebookMeta(a.config.WatchDir, notebookUUID)
	if err != nil {
		logger.Warn("unreadable notebook metadata", "notebook", notebookUUID, "error", err)
	}
	if meta != nil {
		up.NotebookName = meta.VisibleName
		up.ParentUUID = meta.Parent
		up.DocumentType = meta.Type
	}

	var result *apiclient.UploadResult
	err = a.retry(ctx, func() error {
		var err error
		result, err = a.client.UploadPage(up)
		return err
	})
	if err != nil {
		return err
	}

	a.markSynced()
	if result.Deferred() {
		// Server stored the blob; it will transcribe when allowance frees
		// up. Re-uploading would be wasted work.
		a.mu.Lock()
		a.deferred++
		a.mu.Unlock()
		logger.Info("page deferred awaiting quota", "page", pageUUID)
		return nil
	}

	logger.Info("page uploaded",
		"page", pageUUID,
		"status", result.Status,
		"cache_hit", result.CacheHit,
	)
	return nil
}

func (a *Agent) uploadMetadata(ctx context.Context, path string) error {
	notebookUUID := pageUUIDFromPath(path)

	meta, err := loadNotebookMeta(a.config.WatchDir, notebookUUID)
	if err != nil {
		return err
	}
	if meta == nil || meta.VisibleName == "" {
		return nil
	}

	update := &apiclient.MetadataUpdate{
		NotebookUUID: notebookUUID,
		VisibleName:  meta.VisibleName,
		DocumentType: meta.Type,
	}
	if meta.Parent != "" {
		update.ParentUUID = &meta.Parent
	}

	var result *apiclient.MetadataResult
	err = a.retry(ctx, func() error {
		var err error
		result, err = a.client.UpdateMetadata(update)
		return err
	})
	if err != nil {
		return err
	}

	a.markSynced()
	logger.Debug("metadata pushed", "notebook", notebookUUID, "sync_type", result.SyncType)
	return nil
}

// retry runs op with exponential backoff capped at one minute. Auth and
// other client-side rejections are permanent; transport and server errors
// retry up to MaxRetries.
func (a *Agent) retry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = a.retryInterval
	bo.MaxInterval = 60 * time.Second
	bo.MaxElapsedTime = 0

	wrapped := func() error {
		err := op()
		if err == nil {
			a.setConnected(true)
			return nil
		}

		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) {
			a.setConnected(true)
			if apiErr.IsAuthError() {
				a.setAuthenticated(false)
				return backoff.Permanent(err)
			}
			if apiErr.IsRateLimited() || apiErr.IsServerError() {
				return err
			}
			return backoff.Permanent(err)
		}

		a.setConnected(false)
		return err
	}

	return backoff.Retry(wrapped,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(a.config.MaxRetries)), ctx))
}

func (a *Agent) markSynced() {
	now := time.Now().UTC()
	a.mu.Lock()
	a.lastSyncAt = &now
	a.connected = true
	a.mu.Unlock()
}

func (a *Agent) setConnected(v bool) {
	a.mu.Lock()
	a.connected = v
	a.mu.Unlock()
}

func (a *Agent) setAuthenticated(v bool) {
	a.mu.Lock()
	a.authenticated = v
	a.mu.Unlock()
}
