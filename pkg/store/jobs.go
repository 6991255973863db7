package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Papyszoo/ImmichVR-sub001/pkg/store/models"
)

// EnqueueJob inserts or revives a job for a media inside one transaction.
//
// Preconditions, checked against the most recent job for the media:
//   - queued/pending/processing -> ErrAlreadyQueued
//   - completed                 -> ErrAlreadyProcessed
//   - failed/cancelled          -> the row is revived: status queued,
//     attempts reset, fresh priority and queued_at
//
// priority is computed by the caller (see pkg/queue) from media kind and size.
func (s *GORMStore) EnqueueJob(ctx context.Context, mediaID string, priority, maxAttempts int) (string, error) {
	var jobID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Job
		err := tx.Where("media_id = ?", mediaID).
			Order("created_at DESC").
			First(&existing).Error

		switch {
		case err == nil:
			switch {
			case existing.Status.IsActive():
				return models.ErrAlreadyQueued
			case existing.Status == models.JobStatusCompleted:
				return models.ErrAlreadyProcessed
			default:
				// failed or cancelled: revive the row
				now := time.Now()
				updates := map[string]any{
					"status":       models.JobStatusQueued,
					"priority":     priority,
					"attempts":     0,
					"max_attempts": maxAttempts,
					"last_error":   "",
					"queued_at":    now,
					"started_at":   nil,
					"completed_at": nil,
				}
				if err := tx.Model(&existing).Updates(updates).Error; err != nil {
					return err
				}
				jobID = existing.ID
				return nil
			}

		case errors.Is(err, gorm.ErrRecordNotFound):
			job := models.Job{
				ID:          uuid.New().String(),
				MediaID:     mediaID,
				Status:      models.JobStatusQueued,
				Priority:    priority,
				MaxAttempts: maxAttempts,
				QueuedAt:    time.Now(),
			}
			if err := tx.Create(&job).Error; err != nil {
				return err
			}
			jobID = job.ID
			return nil

		default:
			return err
		}
	})
	if err != nil {
		return "", err
	}
	return jobID, nil
}

// ClaimNextJob atomically selects the lowest-priority queued job, marks it
// processing, sets started_at and increments attempts. Returns
// ErrJobNotFound when the queue is empty.
//
// On PostgreSQL the row is locked with FOR UPDATE SKIP LOCKED so concurrent
// claimants never return the same job. On SQLite the transaction itself
// serializes claimants (single writer, WAL).
func (s *GORMStore) ClaimNextJob(ctx context.Context) (*models.Job, error) {
	var claimed *models.Job
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("status = ?", models.JobStatusQueued).
			Order("priority ASC, queued_at ASC")
		if s.IsPostgres() {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		var job models.Job
		if err := q.First(&job).Error; err != nil {
			return convertNotFoundError(err, models.ErrJobNotFound)
		}

		now := time.Now()
		updates := map[string]any{
			"status":     models.JobStatusProcessing,
			"started_at": now,
			"attempts":   job.Attempts + 1,
		}
		if err := tx.Model(&job).Updates(updates).Error; err != nil {
			return err
		}

		job.Status = models.JobStatusProcessing
		job.StartedAt = &now
		job.Attempts++
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// RequeueInterruptedJobs resets every processing job back to queued.
// Called once at boot: with a single worker process, any processing row
// found on startup was orphaned by a crash or an unclean stop, and nothing
// else would ever pick it up again. The interrupted attempt is refunded so
// a crash does not burn retries.
func (s *GORMStore) RequeueInterruptedJobs(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("status = ?", models.JobStatusProcessing).
		Updates(map[string]any{
			"status":     models.JobStatusQueued,
			"started_at": nil,
			"attempts":   gorm.Expr("CASE WHEN attempts > 0 THEN attempts - 1 ELSE 0 END"),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// MarkJobCompleted transitions a processing job to completed. Marking an
// already-completed job again is a no-op, not an error.
func (s *GORMStore) MarkJobCompleted(ctx context.Context, jobID string, duration time.Duration) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job models.Job
		if err := tx.Where("id = ?", jobID).First(&job).Error; err != nil {
			return convertNotFoundError(err, models.ErrJobNotFound)
		}
		if job.Status == models.JobStatusCompleted {
			return nil
		}

		now := time.Now()
		return tx.Model(&job).Updates(map[string]any{
			"status":              models.JobStatusCompleted,
			"completed_at":        now,
			"processing_duration": duration.Seconds(),
			"last_error":          "",
		}).Error
	})
}

// MarkJobResult describes the outcome of MarkJobFailed.
type MarkJobResult struct {
	Retry       bool `json:"retry"`
	Attempts    int  `json:"attempts"`
	MaxAttempts int  `json:"max_attempts"`
}

// MarkJobFailed records a failure. If attempts < max_attempts the job
// re-enters the queue (started_at cleared); otherwise it lands in failed.
// When permanent is true the job fails immediately regardless of attempts
// (used for non-retryable inference errors). Marking a job already in a
// terminal state is a no-op.
func (s *GORMStore) MarkJobFailed(ctx context.Context, jobID, errMsg string, permanent bool) (*MarkJobResult, error) {
	var result *MarkJobResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job models.Job
		if err := tx.Where("id = ?", jobID).First(&job).Error; err != nil {
			return convertNotFoundError(err, models.ErrJobNotFound)
		}
		if job.Status.IsTerminal() {
			result = &MarkJobResult{Retry: false, Attempts: job.Attempts, MaxAttempts: job.MaxAttempts}
			return nil
		}

		retry := !permanent && job.Attempts < job.MaxAttempts
		updates := map[string]any{
			"last_error": errMsg,
		}
		if retry {
			updates["status"] = models.JobStatusQueued
			updates["started_at"] = nil
		} else {
			now := time.Now()
			updates["status"] = models.JobStatusFailed
			updates["completed_at"] = now
		}
		if err := tx.Model(&job).Updates(updates).Error; err != nil {
			return err
		}

		result = &MarkJobResult{Retry: retry, Attempts: job.Attempts, MaxAttempts: job.MaxAttempts}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CancelJob transitions a queued or pending job to cancelled. Jobs in any
// other state return ErrInvalidTransition: a processing job cannot be
// interrupted mid-inference.
func (s *GORMStore) CancelJob(ctx context.Context, jobID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job models.Job
		if err := tx.Where("id = ?", jobID).First(&job).Error; err != nil {
			return convertNotFoundError(err, models.ErrJobNotFound)
		}
		if job.Status != models.JobStatusQueued && job.Status != models.JobStatusPending {
			return models.ErrInvalidTransition
		}
		now := time.Now()
		return tx.Model(&job).Updates(map[string]any{
			"status":       models.JobStatusCancelled,
			"completed_at": now,
		}).Error
	})
}

// RetryJob resets a failed job back to queued with attempts zeroed and the
// error cleared.
func (s *GORMStore) RetryJob(ctx context.Context, jobID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job models.Job
		if err := tx.Where("id = ?", jobID).First(&job).Error; err != nil {
			return convertNotFoundError(err, models.ErrJobNotFound)
		}
		if job.Status != models.JobStatusFailed {
			return models.ErrInvalidTransition
		}
		return tx.Model(&job).Updates(map[string]any{
			"status":       models.JobStatusQueued,
			"attempts":     0,
			"last_error":   "",
			"queued_at":    time.Now(),
			"started_at":   nil,
			"completed_at": nil,
		}).Error
	})
}

func (s *GORMStore) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	return getByField[models.Job](s.db, ctx, "id", jobID, models.ErrJobNotFound, "Media")
}

// ListJobs returns jobs filtered by status (empty = all), newest first.
func (s *GORMStore) ListJobs(ctx context.Context, status models.JobStatus, limit, offset int) ([]*models.Job, error) {
	var jobs []*models.Job
	q := s.db.WithContext(ctx).Preload("Media").Order("queued_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// JobStats summarizes the queue by status.
type JobStats struct {
	Queued     int64 `json:"queued"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	Cancelled  int64 `json:"cancelled"`
	Total      int64 `json:"total"`
}

func (s *GORMStore) JobStats(ctx context.Context) (*JobStats, error) {
	type row struct {
		Status models.JobStatus
		Count  int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &JobStats{}
	for _, r := range rows {
		switch r.Status {
		case models.JobStatusQueued, models.JobStatusPending:
			stats.Queued += r.Count
		case models.JobStatusProcessing:
			stats.Processing += r.Count
		case models.JobStatusCompleted:
			stats.Completed += r.Count
		case models.JobStatusFailed:
			stats.Failed += r.Count
		case models.JobStatusCancelled:
			stats.Cancelled += r.Count
		}
		stats.Total += r.Count
	}
	return stats, nil
}
