// Package quota implements the per-user OCR page allowance: atomic
// consumption against the ledger, billing-period rollover and threshold
// notification delivery.
package quota

import (
	"context"
	"fmt"

	"github.com/gottino/rmirror-cloud/internal/logger"
	"github.com/gottino/rmirror-cloud/pkg/models"
	"github.com/gottino/rmirror-cloud/pkg/store"
)

// Service mediates quota decisions between ingestion, the retroactive
// processor and the HTTP API. All arbitration lives in the store's
// conditional updates; the service layers tier policy on top.
type Service struct {
	store store.Store
}

// NewService creates a quota service.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Observe returns the user's current OCR quota snapshot.
func (s *Service) Observe(ctx context.Context, userID string) (models.QuotaSnapshot, error) {
	ledger, err := s.store.GetLedger(ctx, userID, models.QuotaOCRPages)
	if err != nil {
		return models.QuotaSnapshot{}, err
	}
	return ledger.Snapshot(), nil
}

// Headroom returns the remaining OCR page allowance, or
// models.UnlimitedQuota for unlimited tiers.
func (s *Service) Headroom(ctx context.Context, userID string) (int, error) {
	ledger, err := s.store.GetLedger(ctx, userID, models.QuotaOCRPages)
	if err != nil {
		return 0, err
	}
	return ledger.Remaining(), nil
}

// Consume debits n OCR pages from the user's ledger. The ceiling is
// re-checked atomically inside the store; models.ErrQuotaExhausted means no
// allowance was spent. Threshold notifications are suppressed for exempt
// tiers.
func (s *Service) Consume(ctx context.Context, userID string, n int) (*models.QuotaLedger, error) {
	if n <= 0 {
		return nil, fmt.Errorf("consume amount must be positive, got %d", n)
	}

	notify, err := s.notificationsEnabled(ctx, userID)
	if err != nil {
		return nil, err
	}

	ledger, err := s.store.ConsumeQuota(ctx, userID, models.QuotaOCRPages, n, notify)
	if err != nil {
		return nil, err
	}

	logger.DebugCtx(ctx, "quota consumed",
		logger.KeyUserID, userID,
		logger.KeyQuotaUsed, ledger.Used,
		"limit", ledger.Limit,
		"pages", n,
	)
	return ledger, nil
}

// SetTier moves the user to a new tier: the subscription row is updated and
// the ledger ceiling follows the tier default. Used is left untouched, so an
// upgrade immediately frees headroom and a downgrade below current usage
// blocks further consumption without clawing anything back.
func (s *Service) SetTier(ctx context.Context, userID string, tier models.Tier) error {
	if !tier.IsValid() {
		return fmt.Errorf("unknown tier %q", tier)
	}

	sub, err := s.store.GetSubscription(ctx, userID)
	if err != nil {
		return err
	}
	sub.Tier = string(tier)

	if err := s.store.UpdateSubscription(ctx, sub); err != nil {
		return err
	}
	if err := s.store.SetLedgerLimit(ctx, userID, models.QuotaOCRPages, tier.DefaultOCRPageLimit()); err != nil {
		return err
	}

	logger.InfoCtx(ctx, "tier changed",
		logger.KeyUserID, userID,
		"tier", string(tier),
		"ocr_page_limit", tier.DefaultOCRPageLimit(),
	)
	return nil
}

func (s *Service) notificationsEnabled(ctx context.Context, userID string) (bool, error) {
	sub, err := s.store.GetSubscription(ctx, userID)
	if err != nil {
		return false, err
	}
	return !sub.GetTier().NotificationsExempt(), nil
}
