package orchestrator

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Papyszoo/ImmichVR-sub001/internal/logger"
	"github.com/Papyszoo/ImmichVR-sub001/internal/telemetry"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/artifacts"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/events"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/library"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/metrics"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/modelmanager"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/store"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/store/models"
)

// GenerateResult is the synchronous answer of the on-demand path.
type GenerateResult struct {
	Data     []byte
	Format   string
	CacheHit bool
}

// GenerateOnDemand serves the interactive path: return the cached
// artifact when present, otherwise run inference now with a manual
// trigger and hand the bytes back before the cache write lands.
//
// The id may be an external library id or an internal media id; external
// ids win when both would match, and an id matching neither is treated as
// a not-yet-imported external asset.
func (o *Orchestrator) GenerateOnDemand(ctx context.Context, id string, kind models.ArtifactKind, modelKey string) (*GenerateResult, error) {
	if kind != models.ArtifactKindDepth && kind != models.ArtifactKindSplat {
		return nil, fmt.Errorf("unsupported artifact kind %q", kind)
	}
	if modelKey == "" {
		settings, err := o.db.GetSettings(ctx, nil)
		if err != nil {
			return nil, err
		}
		modelKey = settings.DefaultModelKey
	}

	media, err := o.db.GetMediaByExternalID(ctx, id)
	if err == models.ErrMediaNotFound {
		media, err = o.db.GetMedia(ctx, id)
	}
	if err != nil && err != models.ErrMediaNotFound {
		return nil, err
	}

	// Cache check goes through the media row when one exists; an unknown
	// id is simply a miss.
	if media != nil {
		if artifact, err := o.artifacts.Lookup(ctx, media.ID, kind, modelKey); err == nil {
			data, err := o.artifacts.Read(artifact)
			if err == nil {
				metrics.IncCacheLookup(true)
				return &GenerateResult{Data: data, Format: artifact.Format, CacheHit: true}, nil
			}
			logger.Warn("Cached artifact unreadable, regenerating", "artifact_id", artifact.ID, "error", err)
		}
	}
	metrics.IncCacheLookup(false)

	source, err := o.sourceBytes(ctx, id, media)
	if err != nil {
		return nil, err
	}

	if err := o.manager.EnsureLoaded(ctx, modelKey, modelmanager.TriggerManual); err != nil {
		return nil, err
	}

	_, span := telemetry.StartInferenceSpan(ctx, string(kind), modelKey)
	start := time.Now()
	var (
		data   []byte
		format string
	)
	switch kind {
	case models.ArtifactKindSplat:
		data, err = o.client.ProcessSplat(ctx, source, modelKey)
		format = "ply"
	default:
		data, err = o.client.ProcessDepth(ctx, source, modelKey)
		format = "png"
	}
	metrics.ObserveInference(string(kind), time.Since(start), err == nil)
	if err != nil {
		span.RecordError(err)
		span.End()
		return nil, err
	}
	span.End()
	o.manager.RegisterActivity(modelmanager.TriggerManual)

	// The caller gets the bytes now; persistence is fire and forget.
	// Library sources run on the preview thumbnail; uploads use the
	// stored original.
	write := cacheWrite{kind: kind, modelKey: modelKey, format: format, data: data, variant: "thumbnail"}
	if media != nil {
		write.mediaID = media.ID
		if !media.IsExternal() {
			write.variant = "full_resolution"
		}
	} else {
		write.externalID = id
	}
	o.writer.submit(write)

	o.bus.Publish(events.ChannelJobComplete, events.JobCompletePayload{
		MediaID:      id,
		Success:      true,
		ArtifactKind: string(kind),
		ModelKey:     modelKey,
		Cached:       false,
	})
	return &GenerateResult{Data: data, Format: format, CacheHit: false}, nil
}

// sourceBytes picks the inference input: upload-sourced media read from
// disk, everything else fetched from the library by external id.
func (o *Orchestrator) sourceBytes(ctx context.Context, id string, media *models.Media) ([]byte, error) {
	if media != nil && !media.IsExternal() {
		data, err := os.ReadFile(media.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read media file: %w", err)
		}
		return data, nil
	}
	externalID := id
	if media != nil && media.ExternalID != nil {
		externalID = *media.ExternalID
	}
	if o.lib == nil {
		return nil, fmt.Errorf("no media library configured for external id %s", externalID)
	}
	source, err := o.lib.Thumbnail(ctx, externalID, library.ThumbnailOptions{Size: "preview"})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch source bytes: %w", err)
	}
	return source, nil
}

// cacheWrite is one pending artifact persistence task. Exactly one of
// mediaID and externalID is set.
type cacheWrite struct {
	mediaID    string
	externalID string
	kind       models.ArtifactKind
	modelKey   string
	format     string
	variant    string
	data       []byte
}

// cacheWriter persists on-demand results off the request path. The queue
// is bounded; when it is full the write is dropped, which only costs a
// repeat inference on a later call.
type cacheWriter struct {
	artifacts *artifacts.Store
	db        *store.GORMStore
	tasks     chan cacheWrite
	done      chan struct{}
}

func newCacheWriter(artifactStore *artifacts.Store, db *store.GORMStore) *cacheWriter {
	return &cacheWriter{
		artifacts: artifactStore,
		db:        db,
		tasks:     make(chan cacheWrite, 32),
	}
}

func (w *cacheWriter) start() {
	if w.done != nil {
		return
	}
	w.done = make(chan struct{})
	go w.run()
}

func (w *cacheWriter) run() {
	defer close(w.done)
	for task := range w.tasks {
		w.write(task)
	}
}

func (w *cacheWriter) submit(task cacheWrite) {
	select {
	case w.tasks <- task:
	default:
		logger.Warn("Cache write queue full, dropping artifact persistence",
			"media_id", task.mediaID, "external_id", task.externalID, "kind", task.kind)
	}
}

func (w *cacheWriter) stop() {
	if w.done == nil {
		return
	}
	close(w.tasks)
	<-w.done
	w.done = nil
}

// write resolves or creates the media row and upserts the artifact.
// Failures are logged, never surfaced; the synchronous response already
// went out.
func (w *cacheWriter) write(task cacheWrite) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var (
		media *models.Media
		err   error
	)
	if task.mediaID != "" {
		media, err = w.db.GetMedia(ctx, task.mediaID)
	} else {
		stub := &models.Media{
			OriginalFileName: task.externalID,
			Kind:             models.MediaKindPhoto,
			Source:           models.MediaSourceExternal,
		}
		media, err = w.db.EnsureExternalMedia(ctx, task.externalID, stub)
	}
	if err != nil {
		logger.Warn("Async cache write: media row unavailable",
			"media_id", task.mediaID, "external_id", task.externalID, "error", err)
		return
	}
	if _, err := w.artifacts.Put(ctx, media, task.kind, task.modelKey, task.format, task.data, map[string]any{
		"variant":  task.variant,
		"onDemand": true,
	}); err != nil {
		logger.Warn("Async cache write failed", "media_id", media.ID, "error", err)
	}
}
