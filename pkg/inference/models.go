package inference

import (
	"context"
	"net/http"
	"net/url"
)

// HealthStatus is the inference service's health report.
type HealthStatus struct {
	Status      string `json:"status"`
	ModelStatus string `json:"model_status"`
}

// Healthy reports whether the service considers itself up.
func (h *HealthStatus) Healthy() bool {
	return h.Status == "ok" || h.Status == "healthy"
}

// ModelInfo describes one model as the inference service sees it.
type ModelInfo struct {
	Key              string `json:"key"`
	IsDownloaded     bool   `json:"is_downloaded"`
	IsLoaded         bool   `json:"is_loaded"`
	SizeBytes        int64  `json:"size_bytes,omitempty"`
	DownloadProgress int    `json:"download_progress,omitempty"`
}

// Health checks service liveness.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ListModels returns every model known to the inference service with its
// on-disk and in-memory state.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var resp struct {
		Models []ModelInfo `json:"models"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/models", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Models, nil
}

// CurrentLoaded returns the key of the resident model, or "" when none.
func (c *Client) CurrentLoaded(ctx context.Context) (string, error) {
	var resp struct {
		CurrentModel string `json:"current_model"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/models/current", nil, &resp); err != nil {
		return "", err
	}
	return resp.CurrentModel, nil
}

// Download asks the service to fetch a model's weights. The service
// answers 202 and reports progress through its model listing.
func (c *Client) Download(ctx context.Context, modelKey string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/models/"+url.PathEscape(modelKey)+"/download", nil, nil)
}

// Load makes a model resident, implicitly downloading if missing. The
// device hint ("cuda", "cpu") is advisory and may be empty.
func (c *Client) Load(ctx context.Context, modelKey, device string) error {
	var body any
	if device != "" {
		body = map[string]string{"device": device}
	}
	return c.doJSON(ctx, http.MethodPost, "/api/models/"+url.PathEscape(modelKey)+"/load", body, nil)
}

// Unload evicts a model from memory. Unloading a model that is not
// resident is not an error on the service side.
func (c *Client) Unload(ctx context.Context, modelKey string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/models/"+url.PathEscape(modelKey)+"/unload", nil, nil)
}
