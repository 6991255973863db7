package queue

import (
	"context"
	"testing"

	"github.com/Papyszoo/ImmichVR-sub001/pkg/store"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/store/models"
)

func createTestQueue(t *testing.T) (*Queue, *store.GORMStore) {
	t.Helper()
	s, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s), s
}

func addMedia(t *testing.T, s *store.GORMStore, kind models.MediaKind, size int64) *models.Media {
	t.Helper()
	media := &models.Media{
		OriginalFileName: "test.jpg",
		Kind:             kind,
		SizeBytes:        size,
	}
	if _, err := s.CreateMedia(context.Background(), media); err != nil {
		t.Fatalf("failed to create media: %v", err)
	}
	return media
}

func TestEnqueueComputesPriority(t *testing.T) {
	q, s := createTestQueue(t)
	ctx := context.Background()

	media := addMedia(t, s, models.MediaKindVideo, 1<<20)
	jobID, err := q.Enqueue(ctx, media.ID, 0)
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	job, err := q.Get(ctx, jobID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if job.Priority != PriorityFor(models.MediaKindVideo, 1<<20) {
		t.Errorf("priority not derived from media: %d", job.Priority)
	}
	if job.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("expected default max attempts, got %d", job.MaxAttempts)
	}
}

func TestEnqueueUnknownMedia(t *testing.T) {
	q, _ := createTestQueue(t)
	if _, err := q.Enqueue(context.Background(), "missing", 3); err != models.ErrMediaNotFound {
		t.Errorf("expected ErrMediaNotFound, got %v", err)
	}
}

// The literal ordering scenario: A = photo 2MB, B = photo 50MB, C = video 1MB,
// all enqueued at the same moment. Claims must return A, B, C.
func TestClaimOrderScenario(t *testing.T) {
	q, s := createTestQueue(t)
	ctx := context.Background()

	a := addMedia(t, s, models.MediaKindPhoto, 2<<20)
	b := addMedia(t, s, models.MediaKindPhoto, 50<<20)
	c := addMedia(t, s, models.MediaKindVideo, 1<<20)

	for _, m := range []*models.Media{a, b, c} {
		if _, err := q.Enqueue(ctx, m.ID, 3); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}

	want := []string{a.ID, b.ID, c.ID}
	for i, wantMedia := range want {
		job, err := q.ClaimNext(ctx)
		if err != nil {
			t.Fatalf("claim %d failed: %v", i, err)
		}
		if job.MediaID != wantMedia {
			t.Errorf("claim %d returned media %s, want %s", i, job.MediaID, wantMedia)
		}
	}
}

func TestRoundTripIdempotence(t *testing.T) {
	q, s := createTestQueue(t)
	ctx := context.Background()

	media := addMedia(t, s, models.MediaKindPhoto, 1<<20)
	jobID, _ := q.Enqueue(ctx, media.ID, 3)

	job, err := q.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if job.ID != jobID {
		t.Fatalf("claimed unexpected job %s", job.ID)
	}

	for i := 0; i < 2; i++ {
		if err := q.MarkCompleted(ctx, jobID, 0); err != nil {
			t.Fatalf("mark completed (call %d) failed: %v", i+1, err)
		}
	}

	got, _ := q.Get(ctx, jobID)
	if got.Status != models.JobStatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
}
