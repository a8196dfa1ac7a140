package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/gottino/rmirror-cloud/pkg/models"
)

// ============================================
// QUOTA LEDGER OPERATIONS
// ============================================

func (s *GORMStore) GetLedger(ctx context.Context, userID string, kind models.QuotaKind) (*models.QuotaLedger, error) {
	var ledger models.QuotaLedger
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND kind = ?", userID, string(kind)).
		First(&ledger).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrLedgerNotFound)
	}
	return &ledger, nil
}

// ConsumeQuota advances Used by n with the ceiling re-checked inside the
// UPDATE, so concurrent consumers can never exceed the limit. Threshold
// crossings are detected from the post-update row and recorded as durable
// QuotaEvent rows in the same transaction, at most once per boundary per
// billing period.
func (s *GORMStore) ConsumeQuota(ctx context.Context, userID string, kind models.QuotaKind, n int, notify bool) (*models.QuotaLedger, error) {
	if n <= 0 {
		return s.GetLedger(ctx, userID, kind)
	}

	var out *models.QuotaLedger
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.QuotaLedger{}).
			Where("user_id = ? AND kind = ? AND (quota_limit < 0 OR used + ? <= quota_limit)",
				userID, string(kind), n).
			Update("used", gorm.Expr("used + ?", n))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Either the ledger is missing or the ceiling would be exceeded.
			var ledger models.QuotaLedger
			if err := tx.Where("user_id = ? AND kind = ?", userID, string(kind)).First(&ledger).Error; err != nil {
				return convertNotFoundError(err, models.ErrLedgerNotFound)
			}
			return models.ErrQuotaExhausted
		}

		var ledger models.QuotaLedger
		if err := tx.Where("user_id = ? AND kind = ?", userID, string(kind)).First(&ledger).Error; err != nil {
			return err
		}

		if notify && !ledger.Unlimited() && ledger.Limit > 0 {
			crossed := crossedThreshold(ledger.Used-n, ledger.Used, ledger.Limit)
			if crossed > ledger.LastNotifiedThreshold {
				if err := tx.Model(&models.QuotaLedger{}).
					Where("user_id = ? AND kind = ?", userID, string(kind)).
					Update("last_notified_threshold", crossed).Error; err != nil {
					return err
				}
				ledger.LastNotifiedThreshold = crossed

				event := &models.QuotaEvent{
					UserID:    userID,
					Kind:      string(kind),
					Threshold: crossed,
					Used:      ledger.Used,
					Limit:     ledger.Limit,
				}
				if err := tx.Create(event).Error; err != nil {
					return err
				}
			}
		}

		out = &ledger
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// crossedThreshold returns the highest notification boundary (90 or 100)
// crossed by moving from oldUsed to newUsed, or 0 when none was crossed.
func crossedThreshold(oldUsed, newUsed, limit int) int {
	oldPct := float64(oldUsed) / float64(limit) * 100
	newPct := float64(newUsed) / float64(limit) * 100

	switch {
	case oldPct < models.ThresholdFull && newPct >= models.ThresholdFull:
		return models.ThresholdFull
	case oldPct < models.ThresholdWarning && newPct >= models.ThresholdWarning:
		return models.ThresholdWarning
	default:
		return models.ThresholdNone
	}
}

func (s *GORMStore) ResetLedger(ctx context.Context, userID string, kind models.QuotaKind, periodStart, resetAt time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.QuotaLedger{}).
		Where("user_id = ? AND kind = ?", userID, string(kind)).
		Updates(map[string]any{
			"used":                    0,
			"period_start":            periodStart,
			"reset_at":                resetAt,
			"last_notified_threshold": models.ThresholdNone,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrLedgerNotFound
	}
	return nil
}

func (s *GORMStore) SetLedgerLimit(ctx context.Context, userID string, kind models.QuotaKind, limit int) error {
	result := s.db.WithContext(ctx).
		Model(&models.QuotaLedger{}).
		Where("user_id = ? AND kind = ?", userID, string(kind)).
		Update("quota_limit", limit)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrLedgerNotFound
	}
	return nil
}

func (s *GORMStore) ListDueLedgerResets(ctx context.Context, now time.Time) ([]*models.QuotaLedger, error) {
	var ledgers []*models.QuotaLedger
	err := s.db.WithContext(ctx).
		Where("reset_at <= ?", now).
		Find(&ledgers).Error
	if err != nil {
		return nil, err
	}
	return ledgers, nil
}

func (s *GORMStore) ListUndeliveredQuotaEvents(ctx context.Context, limit int) ([]*models.QuotaEvent, error) {
	var events []*models.QuotaEvent
	q := s.db.WithContext(ctx).
		Where("delivered_at IS NULL").
		Order("created_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (s *GORMStore) MarkQuotaEventDelivered(ctx context.Context, id uint, at time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.QuotaEvent{}).
		Where("id = ?", id).
		Update("delivered_at", at).Error
}
