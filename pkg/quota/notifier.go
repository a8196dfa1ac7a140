package quota

import (
	"context"
	"time"

	"github.com/gottino/rmirror-cloud/internal/logger"
	"github.com/gottino/rmirror-cloud/pkg/models"
	"github.com/gottino/rmirror-cloud/pkg/store"
)

// Notifier delivers one threshold-crossing notification. Returning an error
// leaves the event undelivered; the drainer retries it on the next pass.
type Notifier interface {
	Notify(ctx context.Context, event *models.QuotaEvent) error
}

// LogNotifier writes notifications to the structured log. It stands in for
// an email or push transport in deployments that have none configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, event *models.QuotaEvent) error {
	logger.Warn("quota threshold crossed",
		logger.KeyUserID, event.UserID,
		"kind", event.Kind,
		"threshold", event.Threshold,
		logger.KeyQuotaUsed, event.Used,
		logger.KeyQuotaLimit, event.Limit,
	)
	return nil
}

// Drainer delivers durable quota events written by ConsumeQuota. Events are
// written in the consume transaction and drained here, so a transport outage
// delays notifications instead of dropping them.
type Drainer struct {
	store    store.Store
	notifier Notifier
	interval time.Duration
	batch    int
}

// Drain defaults.
const (
	DefaultDrainInterval = 15 * time.Second
	DefaultDrainBatch    = 100
)

// NewDrainer creates a quota event drainer.
func NewDrainer(st store.Store, notifier Notifier, interval time.Duration, batch int) *Drainer {
	if interval <= 0 {
		interval = DefaultDrainInterval
	}
	if batch <= 0 {
		batch = DefaultDrainBatch
	}
	return &Drainer{store: st, notifier: notifier, interval: interval, batch: batch}
}

// Run drains until ctx is cancelled.
func (d *Drainer) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.DrainOnce(ctx); err != nil {
				logger.Error("quota event drain failed", "error", err)
			}
		}
	}
}

// DrainOnce delivers up to one batch of undelivered events and returns the
// number delivered. A failed delivery stops the pass; earlier events stay
// marked, the failed one is retried next time.
func (d *Drainer) DrainOnce(ctx context.Context) (int, error) {
	events, err := d.store.ListUndeliveredQuotaEvents(ctx, d.batch)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, event := range events {
		if err := d.notifier.Notify(ctx, event); err != nil {
			return delivered, err
		}
		if err := d.store.MarkQuotaEventDelivered(ctx, event.ID, time.Now().UTC()); err != nil {
			return delivered, err
		}
		delivered++
	}
	return delivered, nil
}
