package artifacts

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/Papyszoo/ImmichVR-sub001/pkg/store"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/store/models"
)

func createTestStore(t *testing.T) (*Store, *store.GORMStore) {
	t.Helper()
	db, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := NewStore(db, t.TempDir())
	if err != nil {
		t.Fatalf("failed to create artifact store: %v", err)
	}
	return s, db
}

func createTestMedia(t *testing.T, db *store.GORMStore) *models.Media {
	t.Helper()
	media := &models.Media{
		OriginalFileName: "sunset.jpg",
		Kind:             models.MediaKindPhoto,
		SizeBytes:        2 << 20,
	}
	if _, err := db.CreateMedia(context.Background(), media); err != nil {
		t.Fatalf("failed to create media: %v", err)
	}
	return media
}

func TestPutAndLookup(t *testing.T) {
	s, db := createTestStore(t)
	ctx := context.Background()
	media := createTestMedia(t, db)

	data := []byte("depth-map-bytes")
	artifact, err := s.Put(ctx, media, models.ArtifactKindDepth, "small", "png", data, map[string]any{"width": 640})
	if err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if artifact.SizeBytes != int64(len(data)) {
		t.Errorf("size mismatch: %d", artifact.SizeBytes)
	}

	found, err := s.Lookup(ctx, media.ID, models.ArtifactKindDepth, "small")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	got, err := s.Read(found)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("read back different bytes")
	}

	meta, err := found.GetMetadata()
	if err != nil {
		t.Fatalf("metadata decode failed: %v", err)
	}
	if meta["width"] != float64(640) {
		t.Errorf("metadata lost: %v", meta)
	}
}

func TestLookupMiss(t *testing.T) {
	s, db := createTestStore(t)
	media := createTestMedia(t, db)

	_, err := s.Lookup(context.Background(), media.ID, models.ArtifactKindDepth, "small")
	if err != models.ErrArtifactNotFound {
		t.Errorf("expected ErrArtifactNotFound, got %v", err)
	}
}

// A row whose backing file was removed out-of-band must be treated as a
// cache miss and the stale row dropped, so the next lookup is clean.
func TestLookupDropsStaleRow(t *testing.T) {
	s, db := createTestStore(t)
	ctx := context.Background()
	media := createTestMedia(t, db)

	artifact, err := s.Put(ctx, media, models.ArtifactKindDepth, "small", "png", []byte("x"), nil)
	if err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := os.Remove(artifact.FilePath); err != nil {
		t.Fatalf("failed to remove artifact file: %v", err)
	}

	if _, err := s.Lookup(ctx, media.ID, models.ArtifactKindDepth, "small"); err != models.ErrArtifactNotFound {
		t.Errorf("expected ErrArtifactNotFound after file removal, got %v", err)
	}

	rows, err := s.ListByMedia(ctx, media.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("stale row should be gone, found %d rows", len(rows))
	}
}

// Repeated Put for the same tuple overwrites in place: one file, one row,
// latest bytes.
func TestPutIdempotent(t *testing.T) {
	s, db := createTestStore(t)
	ctx := context.Background()
	media := createTestMedia(t, db)

	first, err := s.Put(ctx, media, models.ArtifactKindDepth, "small", "png", []byte("v1"), nil)
	if err != nil {
		t.Fatalf("first put failed: %v", err)
	}
	second, err := s.Put(ctx, media, models.ArtifactKindDepth, "small", "png", []byte("v2-longer"), nil)
	if err != nil {
		t.Fatalf("second put failed: %v", err)
	}
	if first.FilePath != second.FilePath {
		t.Errorf("path must be deterministic: %s vs %s", first.FilePath, second.FilePath)
	}

	rows, _ := s.ListByMedia(ctx, media.ID)
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	data, err := s.Read(rows[0])
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "v2-longer" {
		t.Errorf("expected latest bytes, got %q", data)
	}
}

func TestDelete(t *testing.T) {
	s, db := createTestStore(t)
	ctx := context.Background()
	media := createTestMedia(t, db)

	artifact, err := s.Put(ctx, media, models.ArtifactKindSplat, "splat-base", "ply", []byte("splat"), nil)
	if err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := s.Delete(ctx, artifact.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := os.Stat(artifact.FilePath); !os.IsNotExist(err) {
		t.Error("artifact file should be unlinked")
	}
	if _, err := s.Lookup(ctx, media.ID, models.ArtifactKindSplat, "splat-base"); err != models.ErrArtifactNotFound {
		t.Errorf("expected ErrArtifactNotFound after delete, got %v", err)
	}

	t.Run("already unlinked file is not fatal", func(t *testing.T) {
		a, _ := s.Put(ctx, media, models.ArtifactKindDepth, "small", "png", []byte("y"), nil)
		os.Remove(a.FilePath)
		if err := s.Delete(ctx, a.ID); err != nil {
			t.Errorf("delete should tolerate missing file: %v", err)
		}
	})
}

func TestWatcherDropsRowOnRemove(t *testing.T) {
	s, db := createTestStore(t)
	ctx := context.Background()
	media := createTestMedia(t, db)

	w, err := NewWatcher(s)
	if err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	defer w.Close()

	artifact, err := s.Put(ctx, media, models.ArtifactKindDepth, "small", "png", []byte("z"), nil)
	if err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := os.Remove(artifact.FilePath); err != nil {
		t.Fatalf("failed to remove file: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rows, err := s.ListByMedia(ctx, media.ID)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(rows) == 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("watcher did not drop row for removed file")
}
