// Package artifacts implements the artifact store: the single authority on
// whether a generated 3D asset exists for a (media, kind, model) triple.
//
// State is split between a relational table and a filesystem directory and
// the two can drift (files deleted out-of-band, rows left behind by a
// crashed writer). Lookup treats a row whose file is unreadable as absent
// and deletes it, so the caller regenerates.
package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Papyszoo/ImmichVR-sub001/internal/logger"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/store"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/store/models"
)

// Store persists generated artifacts on disk and in the database.
type Store struct {
	db   *store.GORMStore
	root string
}

// NewStore creates an artifact store rooted at dir, creating it if needed.
func NewStore(db *store.GORMStore, dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact root: %w", err)
	}
	return &Store{db: db, root: dir}, nil
}

// Root returns the artifact root directory.
func (s *Store) Root() string {
	return s.root
}

// Lookup returns the artifact for (media, kind, model) or
// models.ErrArtifactNotFound. A row whose file no longer exists or is
// unreadable is deleted and reported as absent so callers regenerate.
func (s *Store) Lookup(ctx context.Context, mediaID string, kind models.ArtifactKind, modelKey string) (*models.Artifact, error) {
	artifact, err := s.db.GetArtifact(ctx, mediaID, kind, modelKey)
	if err != nil {
		return nil, err
	}

	if artifact.FilePath != "" {
		if _, err := os.Stat(artifact.FilePath); err != nil {
			logger.Warn("Artifact file missing on disk, dropping stale row",
				"artifact_id", artifact.ID,
				"path", artifact.FilePath,
			)
			if delErr := s.db.DeleteArtifact(ctx, artifact.ID); delErr != nil {
				logger.Error("Failed to delete stale artifact row", "artifact_id", artifact.ID, "error", delErr)
			}
			return nil, models.ErrArtifactNotFound
		}
	}
	return artifact, nil
}

// Read returns the artifact's bytes after a successful Lookup.
func (s *Store) Read(artifact *models.Artifact) ([]byte, error) {
	data, err := os.ReadFile(artifact.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", artifact.ID, err)
	}
	return data, nil
}

// Put writes the artifact bytes to the deterministic path under the root
// and upserts the row keyed by (media, kind, model, format). The write
// goes to a temp file first and is renamed into place, so a concurrent or
// repeated Put for the same tuple never leaves a torn file.
func (s *Store) Put(ctx context.Context, media *models.Media, kind models.ArtifactKind, modelKey, format string, data []byte, metadata map[string]any) (*models.Artifact, error) {
	path := artifactPath(s.root, media.OriginalFileName, media.ID, modelKey, kind, format)

	tmp, err := os.CreateTemp(s.root, ".artifact-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to write artifact bytes: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to move artifact into place: %w", err)
	}

	artifact := &models.Artifact{
		MediaID:     media.ID,
		Kind:        kind,
		ModelKey:    modelKey,
		Format:      format,
		FilePath:    path,
		SizeBytes:   int64(len(data)),
		GeneratedAt: time.Now(),
	}
	if err := artifact.SetMetadata(metadata); err != nil {
		return nil, fmt.Errorf("failed to encode artifact metadata: %w", err)
	}

	if err := s.db.UpsertArtifact(ctx, artifact); err != nil {
		return nil, fmt.Errorf("failed to upsert artifact row: %w", err)
	}

	logger.Debug("Artifact stored",
		"media_id", media.ID,
		"kind", kind,
		"model", modelKey,
		"bytes", len(data),
	)
	return artifact, nil
}

// Delete removes the artifact row and attempts to unlink its file.
// A failed unlink is logged, not fatal: Lookup self-heals either way.
func (s *Store) Delete(ctx context.Context, artifactID string) error {
	artifact, err := s.db.GetArtifactByID(ctx, artifactID)
	if err != nil {
		return err
	}
	if err := s.db.DeleteArtifact(ctx, artifactID); err != nil {
		return err
	}
	if artifact.FilePath != "" {
		if err := os.Remove(artifact.FilePath); err != nil && !os.IsNotExist(err) {
			logger.Warn("Failed to unlink artifact file", "path", artifact.FilePath, "error", err)
		}
	}
	return nil
}

// ListByMedia returns all artifact rows for a media, newest first.
func (s *Store) ListByMedia(ctx context.Context, mediaID string) ([]*models.Artifact, error) {
	return s.db.ListArtifactsByMedia(ctx, mediaID)
}

// IsManagedPath reports whether a path lies under the artifact root.
func (s *Store) IsManagedPath(path string) bool {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return false
	}
	return rel == filepath.Base(path)
}
