// Package syncer runs the background sync workers: it claims work items
// from the persistent queue with lease-and-claim semantics, propagates page
// content and notebook metadata to the user's destinations and reclaims
// leases from crashed workers.
package syncer

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gottino/rmirror-cloud/internal/logger"
	"github.com/gottino/rmirror-cloud/pkg/destination"
	"github.com/gottino/rmirror-cloud/pkg/ingest"
	"github.com/gottino/rmirror-cloud/pkg/metrics"
	"github.com/gottino/rmirror-cloud/pkg/store"
)

// Config tunes the worker pool.
type Config struct {
	// Workers is the number of concurrent sync workers. Default: 4
	Workers int `mapstructure:"workers" yaml:"workers"`

	// PollInterval is how often an idle worker polls the queue.
	// Default: 2s
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`

	// ClaimBatch is how many items one poll claims. Default: 8
	ClaimBatch int `mapstructure:"claim_batch" yaml:"claim_batch"`

	// LeaseDuration is how long a claim holds before the sweeper may
	// reclaim it. Default: 2m
	LeaseDuration time.Duration `mapstructure:"lease_duration" yaml:"lease_duration"`

	// MaxRetries bounds attempts per work item. Default: 5
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`

	// SweepInterval is how often expired leases are reclaimed and queue
	// depth published. Default: 30s
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.ClaimBatch <= 0 {
		c.ClaimBatch = 8
	}
	if c.LeaseDuration <= 0 {
		c.LeaseDuration = 2 * time.Minute
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 30 * time.Second
	}
}

// Pool is the sync worker pool.
type Pool struct {
	store    store.Store
	ingest   *ingest.Service
	resolver *destination.Resolver
	metrics  *metrics.SyncMetrics
	config   Config

	workerPrefix string

	wg        sync.WaitGroup
	stopCh    chan struct{}
	stoppedCh chan struct{}

	mu      sync.Mutex
	started bool
}

// NewPool creates a sync worker pool. metrics may be nil.
func NewPool(st store.Store, ing *ingest.Service, resolver *destination.Resolver, m *metrics.SyncMetrics, cfg Config) *Pool {
	cfg.ApplyDefaults()

	host, _ := os.Hostname()
	if host == "" {
		host = "rmirror"
	}

	return &Pool{
		store:        st,
		ingest:       ing,
		resolver:     resolver,
		metrics:      m,
		config:       cfg,
		workerPrefix: fmt.Sprintf("%s-%s", host, uuid.New().String()[:8]),
		stopCh:       make(chan struct{}),
		stoppedCh:    make(chan struct{}),
	}
}

// Start launches the workers and the lease sweeper.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	logger.Info("starting sync workers",
		"workers", p.config.Workers,
		"lease", p.config.LeaseDuration,
	)

	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, fmt.Sprintf("%s-w%d", p.workerPrefix, i))
	}

	p.wg.Add(1)
	go p.sweeper(ctx)

	go func() {
		p.wg.Wait()
		close(p.stoppedCh)
	}()
}

// Stop shuts the pool down, waiting up to timeout for in-flight items.
func (p *Pool) Stop(timeout time.Duration) {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.stoppedCh:
		logger.Info("sync workers stopped")
	case <-time.After(timeout):
		logger.Warn("sync worker stop timed out")
	}
}

// worker polls the queue and processes claimed items until stopped.
func (p *Pool) worker(ctx context.Context, workerID string) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx, workerID)
		}
	}
}

func (p *Pool) poll(ctx context.Context, workerID string) {
	items, err := p.store.ClaimWorkItems(ctx, workerID, p.config.ClaimBatch, p.config.LeaseDuration)
	if err != nil {
		logger.Error("claiming work items failed",
			logger.KeyWorker, workerID, "error", err)
		return
	}

	for _, item := range items {
		select {
		case <-p.stopCh:
			// Leave the lease to expire; the sweeper requeues it.
			return
		default:
		}
		p.processItem(ctx, workerID, item)
	}
}

// RunOnce claims and processes one batch synchronously. Used by tests and
// the manual sync trigger.
func (p *Pool) RunOnce(ctx context.Context) (int, error) {
	workerID := p.workerPrefix + "-once"
	items, err := p.store.ClaimWorkItems(ctx, workerID, p.config.ClaimBatch, p.config.LeaseDuration)
	if err != nil {
		return 0, err
	}
	for _, item := range items {
		p.processItem(ctx, workerID, item)
	}
	return len(items), nil
}

// sweeper reclaims expired leases and publishes queue depth.
func (p *Pool) sweeper(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			reclaimed, err := p.store.RequeueExpiredLeases(ctx, time.Now().UTC())
			if err != nil {
				logger.Error("lease sweep failed", "error", err)
			} else if reclaimed > 0 {
				p.metrics.RecordLeaseExpired(reclaimed)
				logger.Warn("expired leases requeued", "count", reclaimed)
			}

			if depth, err := p.store.QueueDepth(ctx); err == nil {
				p.metrics.SetQueueDepth(depth)
			}
		}
	}
}

// retryDelay implements the sync backoff schedule: 30s doubling per
// attempt, capped at one hour.
func retryDelay(attempt int) time.Duration {
	secs := 30 * math.Pow(2, float64(attempt))
	if secs > 3600 {
		secs = 3600
	}
	return time.Duration(secs) * time.Second
}
