package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Papyszoo/ImmichVR-sub001/pkg/store/models"
)

// GetArtifact returns the artifact row for the unique
// (media_id, kind, model_key, format-agnostic) tuple. modelKey "" means
// "no model". When multiple formats exist the most recent wins.
func (s *GORMStore) GetArtifact(ctx context.Context, mediaID string, kind models.ArtifactKind, modelKey string) (*models.Artifact, error) {
	var artifact models.Artifact
	err := s.db.WithContext(ctx).
		Where("media_id = ? AND kind = ? AND model_key = ?", mediaID, kind, modelKey).
		Order("generated_at DESC").
		First(&artifact).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrArtifactNotFound)
	}
	return &artifact, nil
}

func (s *GORMStore) GetArtifactByID(ctx context.Context, id string) (*models.Artifact, error) {
	return getByField[models.Artifact](s.db, ctx, "id", id, models.ErrArtifactNotFound)
}

// UpsertArtifact inserts or replaces the artifact row keyed by
// (media_id, kind, model_key, format). The last writer wins on body
// metadata; generated_at always moves forward.
func (s *GORMStore) UpsertArtifact(ctx context.Context, artifact *models.Artifact) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Artifact
		err := tx.Where("media_id = ? AND kind = ? AND model_key = ? AND format = ?",
			artifact.MediaID, artifact.Kind, artifact.ModelKey, artifact.Format).
			First(&existing).Error

		switch {
		case err == nil:
			artifact.ID = existing.ID
			generatedAt := artifact.GeneratedAt
			if !generatedAt.After(existing.GeneratedAt) {
				generatedAt = existing.GeneratedAt.Add(time.Millisecond)
			}
			return tx.Model(&existing).Updates(map[string]any{
				"file_path":    artifact.FilePath,
				"size_bytes":   artifact.SizeBytes,
				"width":        artifact.Width,
				"height":       artifact.Height,
				"metadata":     artifact.Metadata,
				"generated_at": generatedAt,
			}).Error

		case errors.Is(err, gorm.ErrRecordNotFound):
			if artifact.ID == "" {
				artifact.ID = uuid.New().String()
			}
			if artifact.GeneratedAt.IsZero() {
				artifact.GeneratedAt = time.Now()
			}
			if err := tx.Create(artifact).Error; err != nil {
				// Concurrent upsert for the same tuple: retry as update.
				if isUniqueConstraintError(err) {
					return tx.Model(&models.Artifact{}).
						Where("media_id = ? AND kind = ? AND model_key = ? AND format = ?",
							artifact.MediaID, artifact.Kind, artifact.ModelKey, artifact.Format).
						Updates(map[string]any{
							"file_path":    artifact.FilePath,
							"size_bytes":   artifact.SizeBytes,
							"metadata":     artifact.Metadata,
							"generated_at": artifact.GeneratedAt,
						}).Error
				}
				return err
			}
			return nil

		default:
			return err
		}
	})
}

func (s *GORMStore) DeleteArtifact(ctx context.Context, id string) error {
	return deleteByField[models.Artifact](s.db, ctx, "id", id, models.ErrArtifactNotFound)
}

func (s *GORMStore) ListArtifactsByMedia(ctx context.Context, mediaID string) ([]*models.Artifact, error) {
	var artifacts []*models.Artifact
	err := s.db.WithContext(ctx).
		Where("media_id = ?", mediaID).
		Order("generated_at DESC").
		Find(&artifacts).Error
	if err != nil {
		return nil, err
	}
	return artifacts, nil
}
