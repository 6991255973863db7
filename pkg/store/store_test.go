package store

import (
	"context"
	"testing"
	"time"

	"github.com/Papyszoo/ImmichVR-sub001/pkg/store/models"
)

// createTestStore creates an in-memory SQLite store for testing.
func createTestStore(t *testing.T) *GORMStore {
	t.Helper()
	store, err := New(&Config{
		Type: DatabaseTypeSQLite,
		SQLite: SQLiteConfig{
			Path: ":memory:",
		},
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func createTestMedia(t *testing.T, s *GORMStore, name string, kind models.MediaKind, size int64) *models.Media {
	t.Helper()
	media := &models.Media{
		OriginalFileName: name,
		MimeType:         "image/jpeg",
		Kind:             kind,
		SizeBytes:        size,
	}
	if _, err := s.CreateMedia(context.Background(), media); err != nil {
		t.Fatalf("failed to create media: %v", err)
	}
	return media
}

func TestNew(t *testing.T) {
	t.Run("default config uses sqlite", func(t *testing.T) {
		config := &Config{}
		config.ApplyDefaults()

		if config.Type != DatabaseTypeSQLite {
			t.Errorf("expected sqlite, got %s", config.Type)
		}
	})

	t.Run("invalid config returns error", func(t *testing.T) {
		_, err := New(&Config{Type: "invalid"})
		if err == nil {
			t.Error("expected error for invalid config")
		}
	})

	t.Run("seeds model catalog", func(t *testing.T) {
		store := createTestStore(t)

		catalog, err := store.ListModels(context.Background())
		if err != nil {
			t.Fatalf("failed to list models: %v", err)
		}
		if len(catalog) != len(models.DefaultCatalog()) {
			t.Errorf("expected %d seeded models, got %d", len(models.DefaultCatalog()), len(catalog))
		}
		for _, m := range catalog {
			if m.DownloadStatus != models.ModelNotDownloaded {
				t.Errorf("model %s should start not_downloaded, got %s", m.Key, m.DownloadStatus)
			}
		}
	})

	t.Run("seeding is idempotent", func(t *testing.T) {
		store := createTestStore(t)
		ctx := context.Background()

		if err := store.SeedCatalog(ctx); err != nil {
			t.Fatalf("second seed failed: %v", err)
		}
		catalog, _ := store.ListModels(ctx)
		if len(catalog) != len(models.DefaultCatalog()) {
			t.Errorf("re-seeding duplicated the catalog: %d rows", len(catalog))
		}
	})
}

func TestMediaOperations(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	t.Run("create and get media", func(t *testing.T) {
		media := createTestMedia(t, store, "sunset.jpg", models.MediaKindPhoto, 1024)

		got, err := store.GetMedia(ctx, media.ID)
		if err != nil {
			t.Fatalf("GetMedia failed: %v", err)
		}
		if got.OriginalFileName != "sunset.jpg" {
			t.Errorf("expected sunset.jpg, got %s", got.OriginalFileName)
		}
	})

	t.Run("get missing media returns not found", func(t *testing.T) {
		_, err := store.GetMedia(ctx, "no-such-id")
		if err != models.ErrMediaNotFound {
			t.Errorf("expected ErrMediaNotFound, got %v", err)
		}
	})

	t.Run("external id is unique", func(t *testing.T) {
		ext := "immich-asset-1"
		first := &models.Media{OriginalFileName: "a.jpg", ExternalID: &ext}
		if _, err := store.CreateMedia(ctx, first); err != nil {
			t.Fatalf("first create failed: %v", err)
		}
		second := &models.Media{OriginalFileName: "b.jpg", ExternalID: &ext}
		if _, err := store.CreateMedia(ctx, second); err != models.ErrDuplicateMedia {
			t.Errorf("expected ErrDuplicateMedia, got %v", err)
		}
	})

	t.Run("ensure external media is idempotent", func(t *testing.T) {
		ext := "immich-asset-2"
		stub := &models.Media{OriginalFileName: "ext.jpg"}
		first, err := store.EnsureExternalMedia(ctx, ext, stub)
		if err != nil {
			t.Fatalf("first ensure failed: %v", err)
		}
		again, err := store.EnsureExternalMedia(ctx, ext, &models.Media{OriginalFileName: "other.jpg"})
		if err != nil {
			t.Fatalf("second ensure failed: %v", err)
		}
		if first.ID != again.ID {
			t.Errorf("ensure created a second row: %s vs %s", first.ID, again.ID)
		}
	})

	t.Run("delete media cascades jobs and artifacts", func(t *testing.T) {
		media := createTestMedia(t, store, "doomed.jpg", models.MediaKindPhoto, 10)
		jobID, err := store.EnqueueJob(ctx, media.ID, 1, 3)
		if err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
		artifact := &models.Artifact{
			MediaID:  media.ID,
			Kind:     models.ArtifactKindDepth,
			ModelKey: "small",
			Format:   "png",
			FilePath: "/tmp/doomed.png",
		}
		if err := store.UpsertArtifact(ctx, artifact); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}

		if err := store.DeleteMedia(ctx, media.ID); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if _, err := store.GetJob(ctx, jobID); err != models.ErrJobNotFound {
			t.Errorf("job should cascade, got %v", err)
		}
		if _, err := store.GetArtifactByID(ctx, artifact.ID); err != models.ErrArtifactNotFound {
			t.Errorf("artifact should cascade, got %v", err)
		}
	})
}

func TestArtifactOperations(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()
	media := createTestMedia(t, store, "photo.jpg", models.MediaKindPhoto, 2048)

	t.Run("upsert then get", func(t *testing.T) {
		artifact := &models.Artifact{
			MediaID:   media.ID,
			Kind:      models.ArtifactKindDepth,
			ModelKey:  "small",
			Format:    "png",
			FilePath:  "/artifacts/photo_depth.png",
			SizeBytes: 100,
		}
		if err := store.UpsertArtifact(ctx, artifact); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}

		got, err := store.GetArtifact(ctx, media.ID, models.ArtifactKindDepth, "small")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.FilePath != "/artifacts/photo_depth.png" {
			t.Errorf("unexpected file path %s", got.FilePath)
		}
	})

	t.Run("second upsert replaces row and advances generated_at", func(t *testing.T) {
		first, err := store.GetArtifact(ctx, media.ID, models.ArtifactKindDepth, "small")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}

		updated := &models.Artifact{
			MediaID:   media.ID,
			Kind:      models.ArtifactKindDepth,
			ModelKey:  "small",
			Format:    "png",
			FilePath:  "/artifacts/photo_depth_v2.png",
			SizeBytes: 200,
		}
		if err := store.UpsertArtifact(ctx, updated); err != nil {
			t.Fatalf("second upsert failed: %v", err)
		}

		all, err := store.ListArtifactsByMedia(ctx, media.ID)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(all) != 1 {
			t.Fatalf("expected a single row after upsert, got %d", len(all))
		}
		if all[0].FilePath != "/artifacts/photo_depth_v2.png" {
			t.Errorf("last writer should win, got %s", all[0].FilePath)
		}
		if !all[0].GeneratedAt.After(first.GeneratedAt) {
			t.Error("generated_at should be monotonic across upserts")
		}
	})

	t.Run("empty model key is a distinct artifact", func(t *testing.T) {
		noModel := &models.Artifact{
			MediaID:  media.ID,
			Kind:     models.ArtifactKindDepth,
			ModelKey: "",
			Format:   "png",
			FilePath: "/artifacts/photo_depth_nomodel.png",
		}
		if err := store.UpsertArtifact(ctx, noModel); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}

		got, err := store.GetArtifact(ctx, media.ID, models.ArtifactKindDepth, "")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.FilePath != "/artifacts/photo_depth_nomodel.png" {
			t.Errorf("unexpected row %s", got.FilePath)
		}
	})

	t.Run("metadata round trip", func(t *testing.T) {
		artifact := &models.Artifact{
			MediaID:  media.ID,
			Kind:     models.ArtifactKindDepth,
			ModelKey: "base",
			Format:   "png",
		}
		if err := artifact.SetMetadata(map[string]any{"variant": "thumbnail"}); err != nil {
			t.Fatalf("set metadata failed: %v", err)
		}
		if err := store.UpsertArtifact(ctx, artifact); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}

		got, err := store.GetArtifact(ctx, media.ID, models.ArtifactKindDepth, "base")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		meta, err := got.GetMetadata()
		if err != nil {
			t.Fatalf("get metadata failed: %v", err)
		}
		if meta["variant"] != "thumbnail" {
			t.Errorf("expected variant thumbnail, got %v", meta["variant"])
		}
	})
}

func TestCatalogOperations(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	t.Run("download status transitions", func(t *testing.T) {
		if err := store.SetModelDownloadStatus(ctx, "small", models.ModelDownloading, 42); err != nil {
			t.Fatalf("set downloading failed: %v", err)
		}
		m, _ := store.GetModel(ctx, "small")
		if m.DownloadStatus != models.ModelDownloading || m.DownloadProgress != 42 {
			t.Errorf("unexpected state %s/%d", m.DownloadStatus, m.DownloadProgress)
		}

		if err := store.SetModelDownloadStatus(ctx, "small", models.ModelDownloaded, 100); err != nil {
			t.Fatalf("set downloaded failed: %v", err)
		}
		m, _ = store.GetModel(ctx, "small")
		if !m.IsDownloaded() {
			t.Error("model should be downloaded")
		}
		if m.DownloadedAt == nil {
			t.Error("downloaded_at should be stamped")
		}
	})

	t.Run("unknown model returns not found", func(t *testing.T) {
		if err := store.SetModelDownloadStatus(ctx, "nope", models.ModelDownloaded, 100); err != models.ErrModelNotFound {
			t.Errorf("expected ErrModelNotFound, got %v", err)
		}
	})
}

func TestSettingsOperations(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	t.Run("defaults when unset", func(t *testing.T) {
		s, err := store.GetSettings(ctx, nil)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if s.DefaultModelKey != "small" {
			t.Errorf("expected default model small, got %s", s.DefaultModelKey)
		}
	})

	t.Run("save and reload", func(t *testing.T) {
		err := store.SaveSettings(ctx, &models.UserSetting{
			DefaultModelKey:    "large",
			AutoGenerateOnView: true,
		})
		if err != nil {
			t.Fatalf("save failed: %v", err)
		}

		s, err := store.GetSettings(ctx, nil)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if s.DefaultModelKey != "large" || !s.AutoGenerateOnView {
			t.Errorf("unexpected settings %+v", s)
		}
	})

	t.Run("save twice keeps one row", func(t *testing.T) {
		err := store.SaveSettings(ctx, &models.UserSetting{DefaultModelKey: "base"})
		if err != nil {
			t.Fatalf("second save failed: %v", err)
		}
		var count int64
		store.DB().Model(&models.UserSetting{}).Count(&count)
		if count != 1 {
			t.Errorf("expected a singleton row, got %d", count)
		}
	})
}

func TestPing(t *testing.T) {
	store := createTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := store.Ping(ctx); err != nil {
		t.Errorf("ping failed: %v", err)
	}
}
