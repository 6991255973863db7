package apiclient

import (
	"net/url"
	"time"
)

// Settings holds the orchestrator's user preferences.
type Settings struct {
	DefaultModelKey    string `json:"default_model_key"`
	AutoGenerateOnView bool   `json:"auto_generate_on_view"`
}

// UpdateSettingsRequest is the request to change preferences.
type UpdateSettingsRequest struct {
	DefaultModelKey    string `json:"defaultModelKey"`
	AutoGenerateOnView bool   `json:"autoGenerateOnView"`
}

// ModelEntry is one catalog model with its download state.
type ModelEntry struct {
	Key              string     `json:"key"`
	Name             string     `json:"name"`
	Kind             string     `json:"kind"`
	Parameters       string     `json:"parameters,omitempty"`
	VRAMEstimate     string     `json:"vram_estimate,omitempty"`
	DownloadStatus   string     `json:"download_status"`
	DownloadProgress int        `json:"download_progress"`
	SizeBytes        int64      `json:"size_bytes"`
	DownloadedAt     *time.Time `json:"downloaded_at,omitempty"`
}

// ModelRuntime is the loaded-model snapshot.
type ModelRuntime struct {
	CurrentModelKey string     `json:"currentModelKey,omitempty"`
	LoadedAt        *time.Time `json:"loadedAt,omitempty"`
	LastUsedAt      *time.Time `json:"lastUsedAt,omitempty"`
	LoadTrigger     string     `json:"loadTrigger,omitempty"`
}

// ModelList pairs the catalog with the runtime snapshot.
type ModelList struct {
	Models  []ModelEntry `json:"models"`
	Runtime ModelRuntime `json:"runtime"`
}

// GetSettings returns the current preferences.
func (c *Client) GetSettings() (*Settings, error) {
	var settings Settings
	if err := c.get("/api/settings/", &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpdateSettings changes preferences and returns the stored state.
func (c *Client) UpdateSettings(req *UpdateSettingsRequest) (*Settings, error) {
	var settings Settings
	if err := c.put("/api/settings/", req, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// ListModels returns the model catalog and the runtime snapshot.
func (c *Client) ListModels() (*ModelList, error) {
	var list ModelList
	if err := c.get("/api/settings/models", &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// DownloadModel starts an async weight download.
func (c *Client) DownloadModel(key string) error {
	return c.post("/api/settings/models/"+url.PathEscape(key)+"/download", nil, nil)
}

// LoadModel makes a model resident.
func (c *Client) LoadModel(key string) (*ModelRuntime, error) {
	var list ModelList
	if err := c.post("/api/settings/models/"+url.PathEscape(key)+"/load", nil, &list.Runtime); err != nil {
		return nil, err
	}
	return &list.Runtime, nil
}

// UnloadModel evicts a model from memory.
func (c *Client) UnloadModel(key string) error {
	return c.delete("/api/settings/models/"+url.PathEscape(key)+"/load", nil)
}
