package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Papyszoo/ImmichVR-sub001/pkg/store/models"
)

func (s *GORMStore) GetMedia(ctx context.Context, id string) (*models.Media, error) {
	return getByField[models.Media](s.db, ctx, "id", id, models.ErrMediaNotFound)
}

func (s *GORMStore) GetMediaByExternalID(ctx context.Context, externalID string) (*models.Media, error) {
	return getByField[models.Media](s.db, ctx, "external_id", externalID, models.ErrMediaNotFound)
}

func (s *GORMStore) ListMedia(ctx context.Context, limit, offset int) ([]*models.Media, error) {
	var results []*models.Media
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *GORMStore) CreateMedia(ctx context.Context, media *models.Media) (string, error) {
	media.CreatedAt = time.Now()
	return createWithID(s.db, ctx, media, func(m *models.Media, id string) { m.ID = id }, media.ID, models.ErrDuplicateMedia)
}

// EnsureExternalMedia returns the media row for an external id, creating a
// minimal stub if none exists. Used by the on-demand path, where the caller
// may race with itself; the loser of the unique-index race re-reads the row.
func (s *GORMStore) EnsureExternalMedia(ctx context.Context, externalID string, stub *models.Media) (*models.Media, error) {
	existing, err := s.GetMediaByExternalID(ctx, externalID)
	if err == nil {
		return existing, nil
	}
	if err != models.ErrMediaNotFound {
		return nil, err
	}

	stub.ExternalID = &externalID
	stub.Source = models.MediaSourceExternal
	if _, err := s.CreateMedia(ctx, stub); err != nil {
		if err == models.ErrDuplicateMedia {
			return s.GetMediaByExternalID(ctx, externalID)
		}
		return nil, err
	}
	return stub, nil
}

// BackfillMediaMetadata updates dimension and capture metadata on a media
// row without touching identity fields.
func (s *GORMStore) BackfillMediaMetadata(ctx context.Context, id string, updates map[string]any) error {
	result := s.db.WithContext(ctx).
		Model(&models.Media{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrMediaNotFound
	}
	return nil
}

// DeleteMedia removes a media row. Jobs and artifacts cascade via the
// foreign key constraints; artifact files on disk are the artifact store's
// concern.
func (s *GORMStore) DeleteMedia(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var media models.Media
		if err := tx.Where("id = ?", id).First(&media).Error; err != nil {
			return convertNotFoundError(err, models.ErrMediaNotFound)
		}
		if err := tx.Where("media_id = ?", id).Delete(&models.Job{}).Error; err != nil {
			return err
		}
		if err := tx.Where("media_id = ?", id).Delete(&models.Artifact{}).Error; err != nil {
			return err
		}
		return tx.Delete(&media).Error
	})
}
