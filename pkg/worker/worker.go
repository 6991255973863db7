// Package worker runs the single-flight processing loop: claim one job,
// make sure the right model is resident, run inference, store the result,
// report the outcome. Exactly one job is in flight per worker.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Papyszoo/ImmichVR-sub001/internal/logger"
	"github.com/Papyszoo/ImmichVR-sub001/internal/telemetry"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/artifacts"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/events"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/inference"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/library"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/metrics"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/modelmanager"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/queue"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/store"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/store/models"
)

// DefaultTick is the idle poll interval when the queue is empty.
const DefaultTick = 5 * time.Second

// Variant labels recorded in artifact metadata.
const (
	variantThumbnail      = "thumbnail"
	variantFullResolution = "full_resolution"
)

// Config holds worker settings.
type Config struct {
	// Tick is the sleep between claims when the queue is empty.
	Tick time.Duration `mapstructure:"tick" yaml:"tick"`
	// EnableVideo gates the experimental video path. Off by default;
	// video jobs fail immediately while disabled.
	EnableVideo bool `mapstructure:"enable_video" yaml:"enable_video"`
}

// ApplyDefaults fills in the tick interval.
func (c *Config) ApplyDefaults() {
	if c.Tick == 0 {
		c.Tick = DefaultTick
	}
}

// Worker drains the job queue one job at a time.
type Worker struct {
	cfg       Config
	queue     *queue.Queue
	db        *store.GORMStore
	manager   *modelmanager.Manager
	client    *inference.Client
	artifacts *artifacts.Store
	lib       *library.Client
	bus       *events.Bus

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	current string
}

// New creates a worker. The library client may be nil when no external
// media library is configured; externally sourced jobs then fail.
func New(cfg Config, q *queue.Queue, db *store.GORMStore, manager *modelmanager.Manager, client *inference.Client, store *artifacts.Store, lib *library.Client, bus *events.Bus) *Worker {
	cfg.ApplyDefaults()
	return &Worker{
		cfg:       cfg,
		queue:     q,
		db:        db,
		manager:   manager,
		client:    client,
		artifacts: store,
		lib:       lib,
		bus:       bus,
	}
}

// Start launches the processing loop. Starting a running worker is a
// no-op.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(ctx)
	logger.Info("Worker started", "tick", w.cfg.Tick)
}

// Stop halts the loop after the in-flight job finishes. Stopping a
// stopped worker is a no-op.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel = nil
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	logger.Info("Worker stopped")
}

// Status describes the worker's current activity.
type Status struct {
	Running      bool   `json:"running"`
	CurrentJobID string `json:"currentJobId,omitempty"`
}

// Status returns whether the loop is running and which job is in flight.
func (w *Worker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Status{Running: w.cancel != nil, CurrentJobID: w.current}
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	for {
		job, err := w.queue.ClaimNext(ctx)
		switch {
		case errors.Is(err, models.ErrJobNotFound):
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.Tick):
			}
			continue
		case err != nil:
			logger.Error("Claim failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.Tick):
			}
			continue
		}

		w.mu.Lock()
		w.current = job.ID
		w.mu.Unlock()

		w.processJob(ctx, job)

		w.mu.Lock()
		w.current = ""
		w.mu.Unlock()

		w.publishQueueUpdate(context.WithoutCancel(ctx))

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (w *Worker) publishQueueUpdate(ctx context.Context) {
	stats, err := w.queue.Stats(ctx)
	if err != nil {
		return
	}
	metrics.SetQueueDepth(stats.Queued)
	w.bus.Publish(events.ChannelQueueUpdate, events.QueueUpdatePayload{
		Length:     stats.Queued,
		Processing: stats.Processing > 0,
	})
}

// variant is one renderable form of the source media.
type variant struct {
	label string
	bytes []byte
}

// sourceVariants fetches the image bytes to process. External media get a
// thumbnail variant first, then the original; uploads have only the
// stored file.
func (w *Worker) sourceVariants(ctx context.Context, media *models.Media) ([]variant, error) {
	if media.IsExternal() {
		if w.lib == nil {
			return nil, fmt.Errorf("media %s references an external library but none is configured", media.ID)
		}
		var variants []variant
		thumb, err := w.lib.Thumbnail(ctx, *media.ExternalID, library.ThumbnailOptions{Size: "preview"})
		if err != nil {
			logger.Warn("Thumbnail fetch failed, continuing with original only",
				"media_id", media.ID, "error", err)
		} else {
			variants = append(variants, variant{label: variantThumbnail, bytes: thumb})
		}
		original, err := w.lib.Original(ctx, *media.ExternalID)
		if err != nil {
			if len(variants) == 0 {
				return nil, fmt.Errorf("failed to fetch source bytes: %w", err)
			}
			logger.Warn("Original fetch failed, continuing with thumbnail only",
				"media_id", media.ID, "error", err)
		} else {
			variants = append(variants, variant{label: variantFullResolution, bytes: original})
		}
		return variants, nil
	}

	data, err := os.ReadFile(media.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read media file: %w", err)
	}
	return []variant{{label: variantFullResolution, bytes: data}}, nil
}

func (w *Worker) processJob(ctx context.Context, job *models.Job) {
	ctx, span := telemetry.StartJobSpan(ctx, job.ID, job.MediaID, job.Attempts)
	defer span.End()
	start := time.Now()

	w.bus.Publish(events.ChannelJobProgress, events.JobProgressPayload{
		JobID:   job.ID,
		MediaID: job.MediaID,
		Stage:   "claimed",
		Status:  string(models.JobStatusProcessing),
	})

	media := job.Media
	if media == nil {
		var err error
		media, err = w.db.GetMedia(ctx, job.MediaID)
		if err != nil {
			w.fail(ctx, job, fmt.Sprintf("media lookup failed: %v", err), false)
			return
		}
	}

	if media.Kind == models.MediaKindVideo && !w.cfg.EnableVideo {
		w.fail(ctx, job, "video processing disabled", true)
		return
	}

	settings, err := w.db.GetSettings(ctx, nil)
	if err != nil {
		w.fail(ctx, job, fmt.Sprintf("settings lookup failed: %v", err), false)
		return
	}
	modelKey := settings.DefaultModelKey

	if err := w.manager.EnsureLoaded(ctx, modelKey, modelmanager.TriggerAuto); err != nil {
		retryable := !modelmanager.IsNotDownloaded(err)
		w.fail(ctx, job, fmt.Sprintf("model load failed: %v", err), !retryable)
		return
	}

	variants, err := w.sourceVariants(ctx, media)
	if err != nil {
		w.fail(ctx, job, err.Error(), false)
		return
	}

	// Variants are independent. Any one success completes the job; a 4xx
	// on every variant means the input is bad and retries cannot help.
	var (
		succeeded   int
		failures    []string
		sawRemote4x bool
	)
	for i, v := range variants {
		w.bus.Publish(events.ChannelJobProgress, events.JobProgressPayload{
			JobID:    job.ID,
			MediaID:  media.ID,
			Stage:    v.label,
			Progress: i * 100 / len(variants),
			Status:   string(models.JobStatusProcessing),
		})

		inferStart := time.Now()
		depth, err := w.client.ProcessDepth(ctx, v.bytes, modelKey)
		metrics.ObserveInference("depth", time.Since(inferStart), err == nil)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", v.label, err))
			if !inference.IsRetryable(err) {
				sawRemote4x = true
			}
			continue
		}

		if _, err := w.artifacts.Put(ctx, media, models.ArtifactKindDepth, modelKey, "png", depth, map[string]any{
			"variant": v.label,
		}); err != nil {
			failures = append(failures, fmt.Sprintf("%s: store: %v", v.label, err))
			continue
		}
		succeeded++
	}

	w.manager.RegisterActivity(modelmanager.TriggerAuto)

	duration := time.Since(start)
	if succeeded > 0 {
		// The outcome write must land even if Stop cancelled the loop
		// context mid-job; otherwise the row is stuck in processing.
		if err := w.queue.MarkCompleted(context.WithoutCancel(ctx), job.ID, duration); err != nil {
			logger.Error("Failed to mark job completed", "job_id", job.ID, "error", err)
			return
		}
		metrics.IncJobsProcessed(true)
		logger.Info("Job completed",
			"job_id", job.ID,
			"media_id", media.ID,
			"variants", succeeded,
			"duration", duration,
		)
		w.bus.Publish(events.ChannelJobComplete, events.JobCompletePayload{
			JobID:        job.ID,
			MediaID:      media.ID,
			Success:      true,
			ArtifactKind: string(models.ArtifactKindDepth),
			ModelKey:     modelKey,
		})
		return
	}

	permanent := sawRemote4x && len(failures) == len(variants)
	w.fail(ctx, job, strings.Join(failures, "; "), permanent)
}

// fail records the failure, routing through the retry accounting unless
// permanent. The DB write is shielded from loop cancellation so a Stop
// during inference still requeues the aborted job.
func (w *Worker) fail(ctx context.Context, job *models.Job, msg string, permanent bool) {
	ctx = context.WithoutCancel(ctx)
	var (
		result *store.MarkJobResult
		err    error
	)
	if permanent {
		result, err = w.queue.MarkFailedPermanent(ctx, job.ID, msg)
	} else {
		result, err = w.queue.MarkFailed(ctx, job.ID, msg)
	}
	if err != nil {
		logger.Error("Failed to mark job failed", "job_id", job.ID, "error", err)
		return
	}
	metrics.IncJobsProcessed(false)

	if result.Retry {
		logger.Warn("Job failed, requeued",
			"job_id", job.ID,
			"attempts", result.Attempts,
			"max_attempts", result.MaxAttempts,
			"error", msg,
		)
		return
	}
	logger.Error("Job failed permanently", "job_id", job.ID, "attempts", result.Attempts, "error", msg)
	w.bus.Publish(events.ChannelJobComplete, events.JobCompletePayload{
		JobID:   job.ID,
		MediaID: job.MediaID,
		Success: false,
	})
}
