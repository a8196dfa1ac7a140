package quota

import (
	"context"
	"time"

	"github.com/gottino/rmirror-cloud/internal/logger"
	"github.com/gottino/rmirror-cloud/pkg/models"
	"github.com/gottino/rmirror-cloud/pkg/store"
)

// RolloverHook runs after a user's ledger has been reset for a new billing
// period. The sync worker wires the retroactive processor in here so
// deferred pages are picked up as soon as allowance returns.
type RolloverHook func(ctx context.Context, userID string)

// Rollover periodically resets ledgers whose billing period elapsed.
type Rollover struct {
	store    store.Store
	interval time.Duration
	hook     RolloverHook
}

// DefaultRolloverInterval is how often the sweep runs.
const DefaultRolloverInterval = time.Minute

// NewRollover creates the rollover sweeper. hook may be nil.
func NewRollover(st store.Store, interval time.Duration, hook RolloverHook) *Rollover {
	if interval <= 0 {
		interval = DefaultRolloverInterval
	}
	return &Rollover{store: st, interval: interval, hook: hook}
}

// Run sweeps until ctx is cancelled.
func (r *Rollover) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := r.Sweep(ctx, time.Now().UTC()); err != nil {
				logger.Error("quota rollover sweep failed", "error", err)
			} else if n > 0 {
				logger.Info("quota rollover sweep", "reset", n)
			}
		}
	}
}

// Sweep resets every due ledger and returns how many were rolled over.
// Each reset starts a fresh period at now and schedules the next reset one
// month out, matching the billing cycle.
func (r *Rollover) Sweep(ctx context.Context, now time.Time) (int, error) {
	due, err := r.store.ListDueLedgerResets(ctx, now)
	if err != nil {
		return 0, err
	}

	reset := 0
	for _, ledger := range due {
		nextReset := now.AddDate(0, 1, 0)
		if err := r.store.ResetLedger(ctx, ledger.UserID, models.QuotaKind(ledger.Kind), now, nextReset); err != nil {
			logger.Error("ledger reset failed",
				logger.KeyUserID, ledger.UserID,
				"kind", ledger.Kind,
				"error", err,
			)
			continue
		}
		reset++

		logger.Info("ledger reset",
			logger.KeyUserID, ledger.UserID,
			"kind", ledger.Kind,
			"next_reset", nextReset,
		)

		if r.hook != nil {
			r.hook(ctx, ledger.UserID)
		}
	}
	return reset, nil
}
