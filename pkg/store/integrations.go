package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gottino/rmirror-cloud/pkg/models"
)

// ============================================
// INTEGRATION OPERATIONS
// ============================================

func (s *GORMStore) GetIntegration(ctx context.Context, userID, destination string) (*models.IntegrationConfig, error) {
	var config models.IntegrationConfig
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND destination = ?", userID, destination).
		First(&config).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrIntegrationNotFound)
	}
	return &config, nil
}

func (s *GORMStore) ListIntegrations(ctx context.Context, userID string) ([]*models.IntegrationConfig, error) {
	var configs []*models.IntegrationConfig
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("destination asc").
		Find(&configs).Error
	if err != nil {
		return nil, err
	}
	return configs, nil
}

func (s *GORMStore) ListEnabledIntegrations(ctx context.Context, userID string) ([]*models.IntegrationConfig, error) {
	var configs []*models.IntegrationConfig
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND enabled = ?", userID, true).
		Order("destination asc").
		Find(&configs).Error
	if err != nil {
		return nil, err
	}
	return configs, nil
}

func (s *GORMStore) UpsertIntegration(ctx context.Context, config *models.IntegrationConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}

	var existing models.IntegrationConfig
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND destination = ?", config.UserID, config.Destination).
		First(&existing).Error

	switch {
	case err == nil:
		return s.db.WithContext(ctx).Model(&existing).Updates(map[string]any{
			"enabled":        config.Enabled,
			"encrypted_blob": config.EncryptedBlob,
			"salt":           config.Salt,
		}).Error

	case err == gorm.ErrRecordNotFound:
		if config.ID == "" {
			config.ID = uuid.New().String()
		}
		return s.db.WithContext(ctx).Create(config).Error

	default:
		return err
	}
}

func (s *GORMStore) DeleteIntegration(ctx context.Context, userID, destination string) error {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND destination = ?", userID, destination).
		Delete(&models.IntegrationConfig{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrIntegrationNotFound
	}
	return nil
}

func (s *GORMStore) RecordIntegrationSync(ctx context.Context, userID, destination string, ok bool) error {
	updates := map[string]any{
		"last_synced_at": time.Now(),
		"sync_count":     gorm.Expr("sync_count + 1"),
	}
	if !ok {
		updates["failure_count"] = gorm.Expr("failure_count + 1")
	}
	return s.db.WithContext(ctx).
		Model(&models.IntegrationConfig{}).
		Where("user_id = ? AND destination = ?", userID, destination).
		Updates(updates).Error
}

// ============================================
// LIFECYCLE
// ============================================

// Transaction runs fn on a transactional copy of the store.
func (s *GORMStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(txdb *gorm.DB) error {
		return fn(&GORMStore{db: txdb, config: s.config})
	})
}

// Ping verifies database connectivity.
func (s *GORMStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
