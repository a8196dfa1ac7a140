package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gottino/rmirror-cloud/pkg/models"
)

// ============================================
// NOTEBOOK OPERATIONS
// ============================================

// UpsertNotebook creates or refreshes the (user, notebook_uuid) row.
func (s *GORMStore) UpsertNotebook(ctx context.Context, notebook *models.Notebook) (*models.Notebook, error) {
	if err := notebook.Validate(); err != nil {
		return nil, err
	}

	var existing models.Notebook
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND notebook_uuid = ?", notebook.UserID, notebook.NotebookUUID).
		First(&existing).Error

	switch {
	case err == nil:
		updates := map[string]any{
			"visible_name":  notebook.VisibleName,
			"document_type": notebook.DocumentType,
			"last_modified": notebook.LastModified,
			"parent_uuid":   notebook.ParentUUID,
		}
		if err := s.db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
			return nil, err
		}
		return s.GetNotebookByID(ctx, existing.ID)

	case err == gorm.ErrRecordNotFound:
		if notebook.ID == "" {
			notebook.ID = uuid.New().String()
		}
		if err := s.db.WithContext(ctx).Create(notebook).Error; err != nil {
			if isUniqueConstraintError(err) {
				// Lost a concurrent insert race; the winning row is current.
				return s.GetNotebook(ctx, notebook.UserID, notebook.NotebookUUID)
			}
			return nil, err
		}
		return notebook, nil

	default:
		return nil, err
	}
}

func (s *GORMStore) GetNotebook(ctx context.Context, userID, notebookUUID string) (*models.Notebook, error) {
	var notebook models.Notebook
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND notebook_uuid = ?", userID, notebookUUID).
		First(&notebook).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrNotebookNotFound)
	}
	return &notebook, nil
}

func (s *GORMStore) GetNotebookByID(ctx context.Context, id string) (*models.Notebook, error) {
	return getByField[models.Notebook](s.db, ctx, "id", id, models.ErrNotebookNotFound)
}

func (s *GORMStore) ListNotebooks(ctx context.Context, userID string) ([]*models.Notebook, error) {
	var notebooks []*models.Notebook
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("visible_name asc").
		Find(&notebooks).Error
	if err != nil {
		return nil, err
	}
	return notebooks, nil
}

// DeleteNotebook removes the notebook, its pages, their sync records and
// any open work items. Queue rows are weakly referenced so dropping them
// here is safe.
func (s *GORMStore) DeleteNotebook(ctx context.Context, userID, notebookUUID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var notebook models.Notebook
		if err := tx.Where("user_id = ? AND notebook_uuid = ?", userID, notebookUUID).
			First(&notebook).Error; err != nil {
			return convertNotFoundError(err, models.ErrNotebookNotFound)
		}

		var pages []models.Page
		if err := tx.Where("notebook_id = ?", notebook.ID).Find(&pages).Error; err != nil {
			return err
		}

		pageUUIDs := make([]string, 0, len(pages)+1)
		for _, p := range pages {
			pageUUIDs = append(pageUUIDs, p.PageUUID)
		}
		pageUUIDs = append(pageUUIDs, notebookUUID) // container record

		if len(pageUUIDs) > 0 {
			if err := tx.Where("user_id = ? AND page_uuid IN ?", userID, pageUUIDs).
				Delete(&models.SyncRecord{}).Error; err != nil {
				return err
			}
		}

		targetRefs := append([]string{notebook.ID, notebookUUID}, pageIDs(pages)...)
		if err := tx.Where("user_id = ? AND target_ref IN ? AND status IN ?",
			userID, targetRefs, []string{string(models.WorkQueued), string(models.WorkLeased)}).
			Delete(&models.WorkItem{}).Error; err != nil {
			return err
		}

		if err := tx.Where("notebook_id = ?", notebook.ID).Delete(&models.Page{}).Error; err != nil {
			return err
		}

		return tx.Delete(&notebook).Error
	})
}

func pageIDs(pages []models.Page) []string {
	ids := make([]string, len(pages))
	for i, p := range pages {
		ids[i] = p.ID
	}
	return ids
}
