package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gottino/rmirror-cloud/pkg/models"
)

// ============================================
// PAGE OPERATIONS
// ============================================
//
// Page status transitions are conditional updates keyed on the current
// status so concurrent ingestion, sync workers and the retroactive
// processor serialize per page without long transactions.

func (s *GORMStore) GetOrCreatePage(ctx context.Context, notebookID, userID, pageUUID string, pageNumber int) (*models.Page, error) {
	var page models.Page
	err := s.db.WithContext(ctx).
		Where("notebook_id = ? AND page_uuid = ?", notebookID, pageUUID).
		First(&page).Error
	if err == nil {
		if pageNumber > 0 && page.PageNumber != pageNumber {
			if err := s.db.WithContext(ctx).Model(&page).
				Update("page_number", pageNumber).Error; err != nil {
				return nil, err
			}
			page.PageNumber = pageNumber
		}
		return &page, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	page = models.Page{
		ID:         uuid.New().String(),
		NotebookID: notebookID,
		UserID:     userID,
		PageUUID:   pageUUID,
		PageNumber: pageNumber,
		OCRStatus:  string(models.OCRNotSynced),
	}
	if err := s.db.WithContext(ctx).Create(&page).Error; err != nil {
		if isUniqueConstraintError(err) {
			return s.GetPage(ctx, notebookID, pageUUID)
		}
		return nil, err
	}
	return &page, nil
}

func (s *GORMStore) GetPage(ctx context.Context, notebookID, pageUUID string) (*models.Page, error) {
	var page models.Page
	err := s.db.WithContext(ctx).
		Where("notebook_id = ? AND page_uuid = ?", notebookID, pageUUID).
		First(&page).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrPageNotFound)
	}
	return &page, nil
}

func (s *GORMStore) GetPageByID(ctx context.Context, id string) (*models.Page, error) {
	return getByField[models.Page](s.db, ctx, "id", id, models.ErrPageNotFound)
}

func (s *GORMStore) GetPageByUUID(ctx context.Context, userID, pageUUID string) (*models.Page, error) {
	var page models.Page
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND page_uuid = ?", userID, pageUUID).
		First(&page).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrPageNotFound)
	}
	return &page, nil
}

func (s *GORMStore) ListPages(ctx context.Context, notebookID string) ([]*models.Page, error) {
	var pages []*models.Page
	err := s.db.WithContext(ctx).
		Where("notebook_id = ?", notebookID).
		Order("page_number asc").
		Find(&pages).Error
	if err != nil {
		return nil, err
	}
	return pages, nil
}

func (s *GORMStore) MarkPagePending(ctx context.Context, pageID, sourceKey, pdfKey, contentHash string) error {
	result := s.db.WithContext(ctx).
		Model(&models.Page{}).
		Where("id = ?", pageID).
		Updates(map[string]any{
			"source_key":   sourceKey,
			"pdf_key":      pdfKey,
			"content_hash": contentHash,
			"ocr_status":   string(models.OCRPending),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrPageNotFound
	}
	return nil
}

// MarkPagePendingQuota defers the page. The per-user cap is checked inside
// the transaction so concurrent uploads cannot blow past it.
func (s *GORMStore) MarkPagePendingQuota(ctx context.Context, pageID, userID, sourceKey, pdfKey, contentHash string, maxPending int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if maxPending > 0 {
			var pending int64
			if err := tx.Model(&models.Page{}).
				Where("user_id = ? AND ocr_status = ?", userID, string(models.OCRPendingQuota)).
				Count(&pending).Error; err != nil {
				return err
			}
			if pending >= int64(maxPending) {
				return models.ErrPendingQuotaCap
			}
		}

		result := tx.Model(&models.Page{}).
			Where("id = ?", pageID).
			Updates(map[string]any{
				"source_key":   sourceKey,
				"pdf_key":      pdfKey,
				"content_hash": contentHash,
				"ocr_status":   string(models.OCRPendingQuota),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrPageNotFound
		}
		return nil
	})
}

func (s *GORMStore) CompletePageOCR(ctx context.Context, pageID, text string, confidence float64, contentHash string) error {
	now := time.Now()
	result := s.db.WithContext(ctx).
		Model(&models.Page{}).
		Where("id = ?", pageID).
		Updates(map[string]any{
			"ocr_status":       string(models.OCRCompleted),
			"ocr_text":         text,
			"ocr_confidence":   confidence,
			"content_hash":     contentHash,
			"ocr_completed_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrPageNotFound
	}
	return nil
}

func (s *GORMStore) FailPageOCR(ctx context.Context, pageID string) error {
	result := s.db.WithContext(ctx).
		Model(&models.Page{}).
		Where("id = ?", pageID).
		Update("ocr_status", string(models.OCRFailed))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrPageNotFound
	}
	return nil
}

func (s *GORMStore) RetryPageOCR(ctx context.Context, pageID string) error {
	result := s.db.WithContext(ctx).
		Model(&models.Page{}).
		Where("id = ? AND ocr_status = ?", pageID, string(models.OCRFailed)).
		Update("ocr_status", string(models.OCRPending))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrInvalidTransition
	}
	return nil
}

func (s *GORMStore) CountPendingQuota(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Page{}).
		Where("user_id = ? AND ocr_status = ?", userID, string(models.OCRPendingQuota)).
		Count(&count).Error
	return count, err
}

// ClaimDeferredPages selects up to limit pending_quota pages newest-first
// and transitions each with a conditional update, so a concurrent upload or
// a second retroactive run cannot claim the same page twice. Pages that
// lose the race are skipped, not retried, which preserves newest-first
// order over the claimed set.
func (s *GORMStore) ClaimDeferredPages(ctx context.Context, userID string, limit int) ([]*models.Page, error) {
	if limit <= 0 {
		return nil, nil
	}

	var candidates []models.Page
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND ocr_status = ?", userID, string(models.OCRPendingQuota)).
		Order("created_at desc").
		Limit(limit).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	claimed := make([]*models.Page, 0, len(candidates))
	for i := range candidates {
		page := candidates[i]
		result := s.db.WithContext(ctx).
			Model(&models.Page{}).
			Where("id = ? AND ocr_status = ?", page.ID, string(models.OCRPendingQuota)).
			Update("ocr_status", string(models.OCRPending))
		if result.Error != nil {
			return claimed, result.Error
		}
		if result.RowsAffected == 1 {
			page.OCRStatus = string(models.OCRPending)
			claimed = append(claimed, &page)
		}
	}
	return claimed, nil
}
