//go:build integration

package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Papyszoo/ImmichVR-sub001/pkg/store/models"
)

// createPostgresStore spins up a throwaway PostgreSQL container and opens
// a store against it. Exercises the FOR UPDATE SKIP LOCKED claim path that
// the SQLite unit tests cannot reach.
func createPostgresStore(t *testing.T) *GORMStore {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("immichvr_test"),
		tcpostgres.WithUsername("immichvr"),
		tcpostgres.WithPassword("immichvr"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}

	store, err := New(&Config{
		Type: DatabaseTypePostgres,
		Postgres: PostgresConfig{
			Host:     host,
			Port:     port.Int(),
			Database: "immichvr_test",
			User:     "immichvr",
			Password: "immichvr",
			SSLMode:  "disable",
		},
	})
	if err != nil {
		t.Fatalf("failed to create postgres store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestConcurrentClaimsPostgres(t *testing.T) {
	store := createPostgresStore(t)
	ctx := context.Background()

	const jobs = 20
	for i := 0; i < jobs; i++ {
		media := &models.Media{OriginalFileName: "m.jpg", Kind: models.MediaKindPhoto, SizeBytes: 100}
		if _, err := store.CreateMedia(ctx, media); err != nil {
			t.Fatalf("create media failed: %v", err)
		}
		if _, err := store.EnqueueJob(ctx, media.ID, 1, 3); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}

	// More claimants than jobs: every job must be claimed exactly once and
	// the surplus claimants must see an empty queue.
	const claimants = 30
	var (
		mu       sync.Mutex
		claimed  = make(map[string]int)
		notFound int
	)
	var wg sync.WaitGroup
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := store.ClaimNextJob(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err == models.ErrJobNotFound {
				notFound++
				return
			}
			if err != nil {
				t.Errorf("claim failed: %v", err)
				return
			}
			claimed[job.ID]++
		}()
	}
	wg.Wait()

	if len(claimed) != jobs {
		t.Errorf("expected %d distinct claims, got %d", jobs, len(claimed))
	}
	for id, count := range claimed {
		if count > 1 {
			t.Errorf("job %s claimed %d times", id, count)
		}
	}
	if notFound != claimants-jobs {
		t.Errorf("expected %d empty claims, got %d", claimants-jobs, notFound)
	}
}

func TestArtifactUpsertRacePostgres(t *testing.T) {
	store := createPostgresStore(t)
	ctx := context.Background()

	media := &models.Media{OriginalFileName: "race.jpg", Kind: models.MediaKindPhoto}
	if _, err := store.CreateMedia(ctx, media); err != nil {
		t.Fatalf("create media failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			artifact := &models.Artifact{
				MediaID:  media.ID,
				Kind:     models.ArtifactKindDepth,
				ModelKey: "small",
				Format:   "png",
				FilePath: "/artifacts/race.png",
			}
			if err := store.UpsertArtifact(ctx, artifact); err != nil {
				t.Errorf("upsert failed: %v", err)
			}
		}()
	}
	wg.Wait()

	all, err := store.ListArtifactsByMedia(ctx, media.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("concurrent upserts must collapse to one row, got %d", len(all))
	}
}
