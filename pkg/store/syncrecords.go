package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gottino/rmirror-cloud/pkg/models"
)

// ============================================
// SYNC RECORD OPERATIONS
// ============================================
//
// The unique index over (user_id, page_uuid, destination) is the
// deduplication source of truth. Insert races between workers surface as
// ErrDuplicateSyncRecord and the loser re-reads the winning row.

func (s *GORMStore) GetSyncRecord(ctx context.Context, userID, pageUUID, destination string) (*models.SyncRecord, error) {
	var record models.SyncRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND page_uuid = ? AND destination = ?", userID, pageUUID, destination).
		First(&record).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrSyncRecordNotFound)
	}
	return &record, nil
}

func (s *GORMStore) CreateSyncRecord(ctx context.Context, record *models.SyncRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.SyncedAt.IsZero() {
		record.SyncedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.ErrDuplicateSyncRecord
		}
		return err
	}
	return nil
}

func (s *GORMStore) UpdateSyncRecord(ctx context.Context, record *models.SyncRecord) error {
	result := s.db.WithContext(ctx).
		Model(&models.SyncRecord{}).
		Where("user_id = ? AND page_uuid = ? AND destination = ?",
			record.UserID, record.PageUUID, record.Destination).
		Updates(map[string]any{
			"external_id":  record.ExternalID,
			"content_hash": record.ContentHash,
			"status":       record.Status,
			"error":        record.Error,
			"retry_count":  record.RetryCount,
			"synced_at":    record.SyncedAt,
			"metadata":     record.Metadata,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrSyncRecordNotFound
	}
	return nil
}

func (s *GORMStore) DeleteSyncRecord(ctx context.Context, userID, pageUUID, destination string) error {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND page_uuid = ? AND destination = ?", userID, pageUUID, destination).
		Delete(&models.SyncRecord{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrSyncRecordNotFound
	}
	return nil
}

func (s *GORMStore) ListSyncRecords(ctx context.Context, userID, destination string) ([]*models.SyncRecord, error) {
	var records []*models.SyncRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND destination = ?", userID, destination).
		Order("synced_at desc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// NotebookEverSynced reports whether the notebook container or any of its
// pages has a sync record at any destination. Used by metadata-only
// ingestion: a never-synced notebook is SKIPPED.
func (s *GORMStore) NotebookEverSynced(ctx context.Context, userID, notebookUUID string, pageUUIDs []string) (bool, error) {
	uuids := append([]string{notebookUUID}, pageUUIDs...)
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.SyncRecord{}).
		Where("user_id = ? AND page_uuid IN ?", userID, uuids).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UserEverSynced reports whether the user holds any sync record at all. A
// completed initial bootstrap always leaves at least one behind.
func (s *GORMStore) UserEverSynced(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.SyncRecord{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
