package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Papyszoo/ImmichVR-sub001/internal/logger"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/metrics"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/orchestrator"
)

// NewRouter creates and configures the chi router with all middleware and
// routes.
//
// The middleware stack:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Custom request logging using the internal logger
//   - Panic recovery to prevent server crashes
func NewRouter(cfg Config, orch *orchestrator.Orchestrator) http.Handler {
	cfg.applyDefaults()
	h := &handler{cfg: cfg, orch: orch}

	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	r.Get("/metrics", metrics.Handler().ServeHTTP)
	r.Get("/ws", h.websocket)

	r.Route("/api", func(r chi.Router) {
		r.Route("/media", func(r chi.Router) {
			r.Post("/upload", h.upload)
			r.Get("/{id}/artifact", h.getArtifact)
		})

		r.Route("/assets", func(r chi.Router) {
			r.Post("/{id}/generate", h.generate)
			r.Get("/{id}/files", h.listFiles)
			r.Delete("/{id}/files/{fileId}", h.deleteFile)
		})

		r.Route("/queue", func(r chi.Router) {
			r.Get("/items", h.listJobs)
			r.Get("/items/{id}", h.getJob)
			r.Post("/items/{id}/cancel", h.cancelJob)
			r.Post("/items/{id}/retry", h.retryJob)
			r.Get("/stats", h.queueStats)

			r.Route("/worker", func(r chi.Router) {
				r.Post("/start", h.workerStart)
				r.Post("/stop", h.workerStop)
				r.Get("/status", h.workerStatus)
			})
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.getSettings)
			r.Put("/", h.putSettings)
			r.Get("/models", h.listModels)
			r.Post("/models/{key}/download", h.downloadModel)
			r.Post("/models/{key}/load", h.loadModel)
			r.Delete("/models/{key}/load", h.unloadModel)
		})
	})

	return r
}

// requestLogger logs requests using the internal logger: start at DEBUG,
// completion at INFO with status and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
