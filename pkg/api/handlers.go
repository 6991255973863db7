package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Papyszoo/ImmichVR-sub001/internal/logger"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/modelmanager"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/orchestrator"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/store/models"
)

type handler struct {
	cfg  Config
	orch *orchestrator.Orchestrator
}

// health reports reachability of the database and the inference service.
// An unreachable inference service only degrades the payload; a dead
// database makes the orchestrator unable to serve anything, so that one
// answers 503.
func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	detail := map[string]any{
		"database":  "ok",
		"inference": "ok",
	}
	status := "ok"
	code := http.StatusOK

	if err := h.orch.Store().Ping(ctx); err != nil {
		detail["database"] = err.Error()
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	if report, err := h.orch.InferenceHealth(ctx); err != nil {
		detail["inference"] = err.Error()
		if status == "ok" {
			status = "degraded"
		}
	} else {
		detail["model_status"] = report.ModelStatus
	}
	detail["worker"] = h.orch.WorkerStatus()

	writeJSON(w, code, Response{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Data:      detail,
	})
}

func (h *handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize.Int64())
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	result, err := h.orch.Upload(r.Context(), file, header.Filename, mimeType)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusCreated, result)
}

// contentTypeForFormat maps artifact formats onto response types.
func contentTypeForFormat(format string) string {
	switch format {
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// getArtifact serves a cached artifact for an internal media id. 404 when
// absent; it never triggers generation.
func (h *handler) getArtifact(w http.ResponseWriter, r *http.Request) {
	mediaID := chi.URLParam(r, "id")
	kind := models.ArtifactKind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = models.ArtifactKindDepth
	}
	modelKey := r.URL.Query().Get("model")

	artifact, err := h.orch.Artifacts().Lookup(r.Context(), mediaID, kind, modelKey)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	data, err := h.orch.Artifacts().Read(artifact)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentTypeForFormat(artifact.Format))
	w.Header().Set("cache", "hit")
	w.Write(data)
}

type generateRequest struct {
	Type     string `json:"type"`
	ModelKey string `json:"modelKey"`
}

// generate is the on-demand path. The id is an external asset id or an
// internal media id; the bytes stream back with a cache header and
// persistence happens off-path.
func (h *handler) generate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	kind := models.ArtifactKind(req.Type)
	if kind == "" {
		kind = models.ArtifactKindDepth
	}

	result, err := h.orch.GenerateOnDemand(r.Context(), id, kind, req.ModelKey)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentTypeForFormat(result.Format))
	if result.CacheHit {
		w.Header().Set("cache", "hit")
	} else {
		w.Header().Set("cache", "miss")
	}
	w.Write(result.Data)
}

// listFiles lists artifact rows for an asset, accepting either an
// internal media id or an external library id.
func (h *handler) listFiles(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	mediaID := id
	if media, err := h.orch.Store().GetMediaByExternalID(ctx, id); err == nil {
		mediaID = media.ID
	}

	files, err := h.orch.Artifacts().ListByMedia(ctx, mediaID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, files)
}

func (h *handler) deleteFile(w http.ResponseWriter, r *http.Request) {
	if err := h.orch.Artifacts().Delete(r.Context(), chi.URLParam(r, "fileId")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, nil)
}

func (h *handler) listJobs(w http.ResponseWriter, r *http.Request) {
	status := models.JobStatus(r.URL.Query().Get("status"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	jobs, err := h.orch.Queue().List(r.Context(), status, limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, jobs)
}

func (h *handler) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.orch.Queue().Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, job)
}

func (h *handler) cancelJob(w http.ResponseWriter, r *http.Request) {
	if err := h.orch.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, nil)
}

func (h *handler) retryJob(w http.ResponseWriter, r *http.Request) {
	if err := h.orch.Retry(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, nil)
}

func (h *handler) queueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orch.Queue().Stats(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

func (h *handler) workerStart(w http.ResponseWriter, r *http.Request) {
	h.orch.WorkerStart()
	writeData(w, http.StatusOK, h.orch.WorkerStatus())
}

func (h *handler) workerStop(w http.ResponseWriter, r *http.Request) {
	h.orch.WorkerStop()
	writeData(w, http.StatusOK, h.orch.WorkerStatus())
}

func (h *handler) workerStatus(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, h.orch.WorkerStatus())
}

func (h *handler) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.orch.Store().GetSettings(r.Context(), nil)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, settings)
}

type settingsRequest struct {
	DefaultModelKey    string `json:"defaultModelKey"`
	AutoGenerateOnView bool   `json:"autoGenerateOnView"`
}

func (h *handler) putSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.orch.SetPreferences(r.Context(), req.DefaultModelKey, req.AutoGenerateOnView); err != nil {
		writeDomainError(w, err)
		return
	}
	settings, err := h.orch.Store().GetSettings(r.Context(), nil)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, settings)
}

func (h *handler) listModels(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.orch.Store().ListModels(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"models":  catalog,
		"runtime": h.orch.ModelStatus(),
	})
}

// downloadModel starts the weight download and returns immediately; the
// progress streams over the websocket.
func (h *handler) downloadModel(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if _, err := h.orch.Store().GetModel(r.Context(), key); err != nil {
		writeDomainError(w, err)
		return
	}
	ctx := context.WithoutCancel(r.Context())
	go func() {
		if err := h.orch.Models().Download(ctx, key); err != nil {
			logger.Error("Model download failed", "model", key, "error", err)
		}
	}()
	writeData(w, http.StatusAccepted, map[string]string{"model": key})
}

func (h *handler) loadModel(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := h.orch.Models().EnsureLoaded(r.Context(), key, modelmanager.TriggerManual); err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, h.orch.ModelStatus())
}

func (h *handler) unloadModel(w http.ResponseWriter, r *http.Request) {
	if err := h.orch.Models().Unload(r.Context(), chi.URLParam(r, "key")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, h.orch.ModelStatus())
}
