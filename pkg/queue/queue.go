// Package queue implements the priority-ordered processing queue on top of
// the orchestrator store.
//
// Ordering is deterministic: photos before videos, smaller files first
// within a kind, queued_at ascending as the tie-break. The queue owns all
// job-row mutations; retry accounting lives entirely in MarkFailed.
package queue

import (
	"context"
	"time"

	"github.com/Papyszoo/ImmichVR-sub001/pkg/store"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/store/models"
)

// DefaultMaxAttempts is the attempts cap applied when the caller does not
// specify one.
const DefaultMaxAttempts = 3

// Queue is the priority-ordered job queue.
type Queue struct {
	store *store.GORMStore
}

// New creates a queue backed by the given store.
func New(s *store.GORMStore) *Queue {
	return &Queue{store: s}
}

// Enqueue creates (or revives) a job for the media. The priority is
// computed from the media's kind and size. Returns the job id.
//
// Fails with models.ErrAlreadyQueued while an active job exists and with
// models.ErrAlreadyProcessed once a completed one does.
func (q *Queue) Enqueue(ctx context.Context, mediaID string, maxAttempts int) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	media, err := q.store.GetMedia(ctx, mediaID)
	if err != nil {
		return "", err
	}

	priority := PriorityFor(media.Kind, media.SizeBytes)
	return q.store.EnqueueJob(ctx, mediaID, priority, maxAttempts)
}

// ClaimNext atomically claims the highest-ranked queued job, or returns
// models.ErrJobNotFound when the queue is empty.
func (q *Queue) ClaimNext(ctx context.Context) (*models.Job, error) {
	return q.store.ClaimNextJob(ctx)
}

// RequeueInterrupted returns orphaned processing jobs to the queue with
// the interrupted attempt refunded. Run once at startup, before the
// worker claims anything.
func (q *Queue) RequeueInterrupted(ctx context.Context) (int64, error) {
	return q.store.RequeueInterruptedJobs(ctx)
}

// MarkCompleted finalizes a successful job. Idempotent on repeat calls.
func (q *Queue) MarkCompleted(ctx context.Context, jobID string, duration time.Duration) error {
	return q.store.MarkJobCompleted(ctx, jobID, duration)
}

// MarkFailed records a retryable failure. The job re-enters the queue
// while attempts < max_attempts, otherwise it lands in failed.
func (q *Queue) MarkFailed(ctx context.Context, jobID, errMsg string) (*store.MarkJobResult, error) {
	return q.store.MarkJobFailed(ctx, jobID, errMsg, false)
}

// MarkFailedPermanent fails the job immediately regardless of remaining
// attempts. Used for non-retryable errors such as a 4xx from inference.
func (q *Queue) MarkFailedPermanent(ctx context.Context, jobID, errMsg string) (*store.MarkJobResult, error) {
	return q.store.MarkJobFailed(ctx, jobID, errMsg, true)
}

// Cancel cancels a job still waiting in the queue. Processing jobs cannot
// be interrupted and return models.ErrInvalidTransition.
func (q *Queue) Cancel(ctx context.Context, jobID string) error {
	return q.store.CancelJob(ctx, jobID)
}

// RetryFailed resets a failed job to queued with attempts zeroed.
func (q *Queue) RetryFailed(ctx context.Context, jobID string) error {
	return q.store.RetryJob(ctx, jobID)
}

// Get returns one job with its media preloaded.
func (q *Queue) Get(ctx context.Context, jobID string) (*models.Job, error) {
	return q.store.GetJob(ctx, jobID)
}

// List returns jobs filtered by status (empty = all), newest first.
func (q *Queue) List(ctx context.Context, status models.JobStatus, limit, offset int) ([]*models.Job, error) {
	return q.store.ListJobs(ctx, status, limit, offset)
}

// Stats summarizes the queue by status.
func (q *Queue) Stats(ctx context.Context) (*store.JobStats, error) {
	return q.store.JobStats(ctx)
}
