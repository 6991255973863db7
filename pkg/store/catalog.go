package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Papyszoo/ImmichVR-sub001/pkg/store/models"
)

// SeedCatalog inserts the default model descriptors when the models table
// is empty. Safe to call on every boot.
func (s *GORMStore) SeedCatalog(ctx context.Context) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Model{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, m := range models.DefaultCatalog() {
		m.ID = uuid.New().String()
		m.DownloadStatus = models.ModelNotDownloaded
		if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *GORMStore) GetModel(ctx context.Context, key string) (*models.Model, error) {
	return getByField[models.Model](s.db, ctx, "key", key, models.ErrModelNotFound)
}

func (s *GORMStore) ListModels(ctx context.Context) ([]*models.Model, error) {
	var results []*models.Model
	if err := s.db.WithContext(ctx).Order("key ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// SetModelDownloadStatus updates the download state for a model. When the
// status reaches downloaded, downloaded_at is stamped and progress pinned
// to 100.
func (s *GORMStore) SetModelDownloadStatus(ctx context.Context, key string, status models.ModelDownloadStatus, progress int) error {
	updates := map[string]any{
		"download_status":   status,
		"download_progress": progress,
	}
	if status == models.ModelDownloaded {
		updates["download_progress"] = 100
		updates["downloaded_at"] = time.Now()
	}
	if status == models.ModelNotDownloaded {
		updates["download_progress"] = 0
		updates["downloaded_at"] = nil
	}

	result := s.db.WithContext(ctx).
		Model(&models.Model{}).
		Where("key = ?", key).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrModelNotFound
	}
	return nil
}

// SetModelSize records the on-disk size reported by the inference service.
func (s *GORMStore) SetModelSize(ctx context.Context, key string, sizeBytes int64) error {
	result := s.db.WithContext(ctx).
		Model(&models.Model{}).
		Where("key = ?", key).
		Update("size_bytes", sizeBytes)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrModelNotFound
	}
	return nil
}
