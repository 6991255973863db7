package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Papyszoo/ImmichVR-sub001/pkg/store/models"
)

// GetSettings returns the preference record for a user id (nil = global).
// A default record is returned, not persisted, when none exists.
func (s *GORMStore) GetSettings(ctx context.Context, userID *string) (*models.UserSetting, error) {
	var setting models.UserSetting
	q := s.db.WithContext(ctx)
	if userID == nil {
		q = q.Where("user_id IS NULL")
	} else {
		q = q.Where("user_id = ?", *userID)
	}
	if err := q.First(&setting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.UserSetting{
				UserID:          userID,
				DefaultModelKey: "small",
			}, nil
		}
		return nil, err
	}
	return &setting, nil
}

// SaveSettings upserts the singleton preference record for a user id.
func (s *GORMStore) SaveSettings(ctx context.Context, setting *models.UserSetting) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.UserSetting
		q := tx.Model(&models.UserSetting{})
		if setting.UserID == nil {
			q = q.Where("user_id IS NULL")
		} else {
			q = q.Where("user_id = ?", *setting.UserID)
		}
		err := q.First(&existing).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if setting.ID == "" {
				setting.ID = uuid.New().String()
			}
			return tx.Create(setting).Error
		case err == nil:
			setting.ID = existing.ID
			return tx.Model(&existing).Updates(map[string]any{
				"default_model_key":     setting.DefaultModelKey,
				"auto_generate_on_view": setting.AutoGenerateOnView,
			}).Error
		default:
			return err
		}
	})
}
