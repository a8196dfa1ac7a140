package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gottino/rmirror-cloud/pkg/models"
)

// ============================================
// USER AND SUBSCRIPTION OPERATIONS
// ============================================

func (s *GORMStore) GetUser(ctx context.Context, email string) (*models.User, error) {
	return getByField[models.User](s.db, ctx, "email", email, models.ErrUserNotFound)
}

func (s *GORMStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return getByField[models.User](s.db, ctx, "id", id, models.ErrUserNotFound)
}

func (s *GORMStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	if err := s.db.WithContext(ctx).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUser creates the user together with its subscription and quota
// ledger rows so the "a ledger row exists for every user" invariant holds
// from the first request on.
func (s *GORMStore) CreateUser(ctx context.Context, user *models.User, tier models.Tier) (string, error) {
	if !tier.IsValid() {
		tier = models.TierFree
	}
	user.CreatedAt = time.Now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := createWithID(tx, ctx, user, func(u *models.User, id string) { u.ID = id }, user.ID, models.ErrDuplicateUser); err != nil {
			return err
		}

		now := time.Now().UTC()
		periodEnd := now.AddDate(0, 1, 0)

		sub := &models.Subscription{
			ID:          uuid.New().String(),
			UserID:      user.ID,
			Tier:        string(tier),
			PeriodStart: now,
			PeriodEnd:   periodEnd,
		}
		if err := tx.Create(sub).Error; err != nil {
			return err
		}

		ledger := &models.QuotaLedger{
			UserID:      user.ID,
			Kind:        string(models.QuotaOCRPages),
			Limit:       tier.DefaultOCRPageLimit(),
			Used:        0,
			PeriodStart: now,
			ResetAt:     periodEnd,
		}
		return tx.Create(ledger).Error
	})
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

func (s *GORMStore) DeleteUser(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("id = ?", id).First(&user).Error; err != nil {
			return convertNotFoundError(err, models.ErrUserNotFound)
		}

		// Cascade to every owned row. Pages ride on notebook deletion.
		for _, m := range []any{
			&models.SyncRecord{}, &models.WorkItem{}, &models.IntegrationConfig{},
			&models.Page{}, &models.Notebook{}, &models.QuotaEvent{},
			&models.QuotaLedger{}, &models.Subscription{},
		} {
			if err := tx.Where("user_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}

		return tx.Delete(&user).Error
	})
}

func (s *GORMStore) UpdateLastLogin(ctx context.Context, id string, timestamp time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("last_login", timestamp)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

func (s *GORMStore) ValidateCredentials(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.GetUser(ctx, email)
	if err != nil {
		// Uniform error so callers can't distinguish unknown users.
		return nil, models.ErrInvalidCredentials
	}
	if !user.Enabled {
		return nil, models.ErrUserDisabled
	}
	if err := user.CheckPassword(password); err != nil {
		return nil, models.ErrInvalidCredentials
	}
	return user, nil
}

func (s *GORMStore) GetSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	return getByField[models.Subscription](s.db, ctx, "user_id", userID, models.ErrUserNotFound)
}

func (s *GORMStore) UpdateSubscription(ctx context.Context, sub *models.Subscription) error {
	result := s.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("user_id = ?", sub.UserID).
		Updates(map[string]any{
			"tier":         sub.Tier,
			"period_start": sub.PeriodStart,
			"period_end":   sub.PeriodEnd,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}
