package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gottino/rmirror-cloud/pkg/models"
)

// ============================================
// WORK QUEUE OPERATIONS
// ============================================
//
// The queue lives in the primary database; no broker is involved. Claims
// are lease-and-claim: a candidate scan followed by a per-row conditional
// UPDATE keyed on status='queued', which is portable across SQLite and
// PostgreSQL and arbitrates racing workers by affected-row count.

// EnqueueWorkItem schedules a sync action, folding duplicates into the
// existing open row so at most one non-terminal item exists per
// (user, target_ref, kind).
func (s *GORMStore) EnqueueWorkItem(ctx context.Context, item *models.WorkItem) (*models.WorkItem, error) {
	if item.Status == "" {
		item.Status = string(models.WorkQueued)
	}
	if item.RunAt.IsZero() {
		item.RunAt = time.Now()
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}

	var out *models.WorkItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.WorkItem
		err := tx.Where("user_id = ? AND target_ref = ? AND kind = ? AND status IN ?",
			item.UserID, item.TargetRef, item.Kind,
			[]string{string(models.WorkQueued), string(models.WorkLeased)}).
			First(&existing).Error

		switch {
		case err == nil:
			// Refresh the open item with the newest snapshot; a leased item
			// keeps running, the fresh hash makes the eventual retry correct.
			updates := map[string]any{
				"content_hash": item.ContentHash,
				"destinations": item.Destinations,
				"priority":     item.Priority,
			}
			if existing.Status == string(models.WorkQueued) {
				updates["run_at"] = item.RunAt
			}
			if err := tx.Model(&existing).Updates(updates).Error; err != nil {
				return err
			}
			out = &existing
			return nil

		case err == gorm.ErrRecordNotFound:
			if item.ID == "" {
				item.ID = uuid.New().String()
			}
			if err := tx.Create(item).Error; err != nil {
				return err
			}
			out = item
			return nil

		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ClaimWorkItems leases up to limit runnable items to workerID. Candidates
// are ordered lowest priority first, then oldest. Container items are
// claimed with an additional guard that no other container item of the same
// user is currently leased, enforcing the single-writer rule for Phase 1.
func (s *GORMStore) ClaimWorkItems(ctx context.Context, workerID string, limit int, lease time.Duration) ([]*models.WorkItem, error) {
	if limit <= 0 {
		return nil, nil
	}
	now := time.Now()
	expiry := now.Add(lease)

	var candidates []models.WorkItem
	err := s.db.WithContext(ctx).
		Where("status = ? AND run_at <= ?", string(models.WorkQueued), now).
		Order("priority asc, created_at asc").
		Limit(limit * 2). // headroom for rows lost to races or the container guard
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	claimed := make([]*models.WorkItem, 0, limit)
	for i := range candidates {
		if len(claimed) >= limit {
			break
		}
		item := candidates[i]

		q := s.db.WithContext(ctx).
			Model(&models.WorkItem{}).
			Where("id = ? AND status = ?", item.ID, string(models.WorkQueued))

		if item.Kind == string(models.WorkContainer) {
			q = q.Where(
				"NOT EXISTS (SELECT 1 FROM work_items w2 WHERE w2.user_id = ? AND w2.kind = ? AND w2.status = ? AND w2.id <> ?)",
				item.UserID, string(models.WorkContainer), string(models.WorkLeased), item.ID)
		}

		result := q.Updates(map[string]any{
			"status":           string(models.WorkLeased),
			"lease_owner":      workerID,
			"lease_expires_at": expiry,
		})
		if result.Error != nil {
			return claimed, result.Error
		}
		if result.RowsAffected == 1 {
			item.Status = string(models.WorkLeased)
			item.LeaseOwner = &workerID
			item.LeaseExpiresAt = &expiry
			claimed = append(claimed, &item)
		}
	}
	return claimed, nil
}

func (s *GORMStore) ExtendLease(ctx context.Context, id, workerID string, lease time.Duration) error {
	result := s.db.WithContext(ctx).
		Model(&models.WorkItem{}).
		Where("id = ? AND status = ? AND lease_owner = ?", id, string(models.WorkLeased), workerID).
		Update("lease_expires_at", time.Now().Add(lease))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrWorkItemNotFound
	}
	return nil
}

func (s *GORMStore) CompleteWorkItem(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).
		Model(&models.WorkItem{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":           string(models.WorkDone),
			"lease_owner":      nil,
			"lease_expires_at": nil,
			"last_error":       "",
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrWorkItemNotFound
	}
	return nil
}

// FailWorkItem requeues the item with the given delay while attempts
// remain, else marks it failed. Returns the updated row.
func (s *GORMStore) FailWorkItem(ctx context.Context, id, errMsg string, maxRetries int, retryDelay time.Duration) (*models.WorkItem, error) {
	var out *models.WorkItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.WorkItem
		if err := tx.Where("id = ?", id).First(&item).Error; err != nil {
			return convertNotFoundError(err, models.ErrWorkItemNotFound)
		}

		item.Attempts++
		updates := map[string]any{
			"attempts":         item.Attempts,
			"last_error":       errMsg,
			"lease_owner":      nil,
			"lease_expires_at": nil,
		}
		if item.Attempts < maxRetries {
			updates["status"] = string(models.WorkQueued)
			updates["run_at"] = time.Now().Add(retryDelay)
			item.Status = string(models.WorkQueued)
		} else {
			updates["status"] = string(models.WorkFailed)
			item.Status = string(models.WorkFailed)
		}

		if err := tx.Model(&models.WorkItem{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		item.LastError = errMsg
		out = &item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RequeueExpiredLeases returns expired leases to the queue so a crashed
// worker cannot hold work indefinitely. now is only the expiry horizon;
// requeued items are runnable immediately.
func (s *GORMStore) RequeueExpiredLeases(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&models.WorkItem{}).
		Where("status = ? AND lease_expires_at < ?", string(models.WorkLeased), now).
		Updates(map[string]any{
			"status":           string(models.WorkQueued),
			"lease_owner":      nil,
			"lease_expires_at": nil,
			"run_at":           time.Now(),
		})
	return result.RowsAffected, result.Error
}

func (s *GORMStore) GetWorkItem(ctx context.Context, id string) (*models.WorkItem, error) {
	return getByField[models.WorkItem](s.db, ctx, "id", id, models.ErrWorkItemNotFound)
}

func (s *GORMStore) QueueDepth(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		N      int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&models.WorkItem{}).
		Select("status, count(*) as n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	depth := make(map[string]int64, len(rows))
	for _, r := range rows {
		depth[r.Status] = r.N
	}
	return depth, nil
}
