// Package orchestrator ties the pipeline together and exposes the
// operations the REST facade and the realtime bridge call into. It owns
// no business rules of its own; it sequences the queue, the model
// manager, the inference client and the artifact store.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/Papyszoo/ImmichVR-sub001/internal/logger"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/artifacts"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/events"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/inference"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/library"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/modelmanager"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/queue"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/store"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/store/models"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/worker"
)

// Config holds orchestrator-level settings.
type Config struct {
	// UploadDir stores uploaded source files.
	UploadDir string `mapstructure:"upload_dir" yaml:"upload_dir"`
	// AutoStartWorker launches the worker loop on Start.
	AutoStartWorker bool `mapstructure:"auto_start_worker" yaml:"auto_start_worker"`
}

// Orchestrator is the composition root of the processing pipeline.
type Orchestrator struct {
	cfg       Config
	db        *store.GORMStore
	queue     *queue.Queue
	artifacts *artifacts.Store
	manager   *modelmanager.Manager
	client    *inference.Client
	lib       *library.Client
	bus       *events.Bus
	worker    *worker.Worker
	writer    *cacheWriter
}

// New wires the orchestrator. The library client may be nil when no
// external media library is configured.
func New(cfg Config, db *store.GORMStore, q *queue.Queue, artifactStore *artifacts.Store, manager *modelmanager.Manager, client *inference.Client, lib *library.Client, bus *events.Bus, w *worker.Worker) (*Orchestrator, error) {
	if err := os.MkdirAll(cfg.UploadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &Orchestrator{
		cfg:       cfg,
		db:        db,
		queue:     q,
		artifacts: artifactStore,
		manager:   manager,
		client:    client,
		lib:       lib,
		bus:       bus,
		worker:    w,
		writer:    newCacheWriter(artifactStore, db),
	}, nil
}

// Start runs boot-time reconciliation and, when configured, the worker.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.manager.SyncWithService(ctx); err != nil {
		return fmt.Errorf("catalog sync failed: %w", err)
	}
	requeued, err := o.queue.RequeueInterrupted(ctx)
	if err != nil {
		return fmt.Errorf("failed to requeue interrupted jobs: %w", err)
	}
	if requeued > 0 {
		logger.Warn("Requeued jobs interrupted by a previous shutdown", "count", requeued)
	}
	o.writer.start()
	if o.cfg.AutoStartWorker {
		o.worker.Start()
	}
	return nil
}

// Stop shuts the pipeline down: worker first so no new cache writes are
// produced, then the async writer, then the model manager's timer.
func (o *Orchestrator) Stop() {
	o.worker.Stop()
	o.writer.stop()
	o.manager.Close()
}

// UploadResult reports a stored upload and its queued job.
type UploadResult struct {
	MediaID string `json:"mediaId"`
	JobID   string `json:"jobId"`
}

// Upload stores the stream under the upload directory, creates a Media
// record and enqueues a processing job.
func (o *Orchestrator) Upload(ctx context.Context, r io.Reader, filename, mimeType string) (*UploadResult, error) {
	mediaID := uuid.New().String()
	path := filepath.Join(o.cfg.UploadDir, mediaID+filepath.Ext(filename))

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload file: %w", err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	media := &models.Media{
		ID:               mediaID,
		OriginalFileName: filename,
		MimeType:         mimeType,
		Kind:             kindForMime(mimeType),
		Source:           models.MediaSourceUpload,
		FilePath:         path,
		SizeBytes:        size,
	}
	if _, err := o.db.CreateMedia(ctx, media); err != nil {
		os.Remove(path)
		return nil, err
	}

	jobID, err := o.queue.Enqueue(ctx, media.ID, 0)
	if err != nil {
		return nil, err
	}
	logger.Info("Upload accepted", "media_id", media.ID, "job_id", jobID, "bytes", size)
	o.publishQueueUpdate(ctx)
	return &UploadResult{MediaID: media.ID, JobID: jobID}, nil
}

// kindForMime maps a MIME type onto the media kind; anything that is not
// a video counts as a photo.
func kindForMime(mimeType string) models.MediaKind {
	base, _, err := mime.ParseMediaType(mimeType)
	if err == nil && strings.HasPrefix(base, "video/") {
		return models.MediaKindVideo
	}
	return models.MediaKindPhoto
}

// ImportExternal registers a library asset and enqueues it. Idempotent
// per external id: repeated calls reuse the Media row, and an already
// queued or completed job surfaces through the usual enqueue errors.
func (o *Orchestrator) ImportExternal(ctx context.Context, externalID string) (*UploadResult, error) {
	media, err := o.ensureExternalMedia(ctx, externalID)
	if err != nil {
		return nil, err
	}
	jobID, err := o.queue.Enqueue(ctx, media.ID, 0)
	if err != nil {
		return nil, err
	}
	o.publishQueueUpdate(ctx)
	return &UploadResult{MediaID: media.ID, JobID: jobID}, nil
}

// ensureExternalMedia finds or creates the Media row for an external id,
// backfilling metadata from the library when reachable.
func (o *Orchestrator) ensureExternalMedia(ctx context.Context, externalID string) (*models.Media, error) {
	if media, err := o.db.GetMediaByExternalID(ctx, externalID); err == nil {
		return media, nil
	} else if err != models.ErrMediaNotFound {
		return nil, err
	}

	media := &models.Media{
		ExternalID:       &externalID,
		OriginalFileName: externalID,
		Kind:             models.MediaKindPhoto,
		Source:           models.MediaSourceExternal,
	}
	if o.lib != nil {
		if info, err := o.lib.Info(ctx, externalID); err == nil {
			media.OriginalFileName = info.OriginalFileName
			media.MimeType = info.OriginalMimeType
			media.CapturedAt = info.FileCreatedAt
			if strings.EqualFold(info.Type, "video") {
				media.Kind = models.MediaKindVideo
			}
			if info.ExifInfo != nil {
				media.Width = info.ExifInfo.ExifImageWidth
				media.Height = info.ExifInfo.ExifImageHeight
				if info.ExifInfo.FileSizeInByte != nil {
					media.SizeBytes = *info.ExifInfo.FileSizeInByte
				}
			}
		} else {
			logger.Warn("Library metadata unavailable, creating stub media",
				"external_id", externalID, "error", err)
		}
	}
	return o.db.EnsureExternalMedia(ctx, externalID, media)
}

// Enqueue queues a processing job for an existing media.
func (o *Orchestrator) Enqueue(ctx context.Context, mediaID string, maxAttempts int) (string, error) {
	jobID, err := o.queue.Enqueue(ctx, mediaID, maxAttempts)
	if err != nil {
		return "", err
	}
	o.publishQueueUpdate(ctx)
	return jobID, nil
}

// Cancel cancels a queued job.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) error {
	if err := o.queue.Cancel(ctx, jobID); err != nil {
		return err
	}
	o.publishQueueUpdate(ctx)
	return nil
}

// Retry requeues a failed job with attempts reset.
func (o *Orchestrator) Retry(ctx context.Context, jobID string) error {
	if err := o.queue.RetryFailed(ctx, jobID); err != nil {
		return err
	}
	o.publishQueueUpdate(ctx)
	return nil
}

// WorkerStart launches the worker loop.
func (o *Orchestrator) WorkerStart() { o.worker.Start() }

// WorkerStop halts the worker loop after the in-flight job.
func (o *Orchestrator) WorkerStop() { o.worker.Stop() }

// WorkerStatus reports the worker loop's state.
func (o *Orchestrator) WorkerStatus() worker.Status { return o.worker.Status() }

// Subscribe attaches a realtime subscriber to the event bus.
func (o *Orchestrator) Subscribe() *events.Subscription { return o.bus.Subscribe() }

// ModelStatus reports the model manager's runtime state.
func (o *Orchestrator) ModelStatus() modelmanager.Status { return o.manager.Status() }

// Queue exposes read and control operations for the REST surface.
func (o *Orchestrator) Queue() *queue.Queue { return o.queue }

// Artifacts exposes artifact lookups for the REST surface.
func (o *Orchestrator) Artifacts() *artifacts.Store { return o.artifacts }

// Store exposes the relational store for the REST surface.
func (o *Orchestrator) Store() *store.GORMStore { return o.db }

// Models exposes model lifecycle control.
func (o *Orchestrator) Models() *modelmanager.Manager { return o.manager }

// InferenceHealth proxies the inference service's health report.
func (o *Orchestrator) InferenceHealth(ctx context.Context) (*inference.HealthStatus, error) {
	return o.client.Health(ctx)
}

// SetPreferences updates the global user settings.
func (o *Orchestrator) SetPreferences(ctx context.Context, defaultModel string, autoGenerate bool) error {
	if defaultModel != "" {
		if _, err := o.db.GetModel(ctx, defaultModel); err != nil {
			return err
		}
	}
	settings, err := o.db.GetSettings(ctx, nil)
	if err != nil {
		return err
	}
	if defaultModel != "" {
		settings.DefaultModelKey = defaultModel
	}
	settings.AutoGenerateOnView = autoGenerate
	return o.db.SaveSettings(ctx, settings)
}

func (o *Orchestrator) publishQueueUpdate(ctx context.Context) {
	stats, err := o.queue.Stats(ctx)
	if err != nil {
		return
	}
	o.bus.Publish(events.ChannelQueueUpdate, events.QueueUpdatePayload{
		Length:     stats.Queued,
		Processing: stats.Processing > 0,
	})
}
