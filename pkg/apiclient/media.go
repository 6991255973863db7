package apiclient

import (
	"io"
	"net/http"
	"net/url"
	"time"
)

// UploadResult reports a stored upload and its queued job.
type UploadResult struct {
	MediaID string `json:"mediaId"`
	JobID   string `json:"jobId"`
}

// ArtifactFile is one cached artifact row.
type ArtifactFile struct {
	ID        string    `json:"id"`
	MediaID   string    `json:"media_id"`
	Kind      string    `json:"kind"`
	ModelKey  string    `json:"model_key"`
	Format    string    `json:"format"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// GenerateResult carries on-demand generation output.
type GenerateResult struct {
	Data     []byte
	Format   string
	CacheHit bool
}

// Upload streams a media file to the orchestrator and returns the queued
// job reference.
func (c *Client) Upload(filename string, r io.Reader) (*UploadResult, error) {
	var result UploadResult
	if err := c.postMultipart("/api/media/upload", "file", filename, r, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetArtifact fetches a cached artifact for an internal media id. A 404
// means nothing is cached; generation is never triggered.
func (c *Client) GetArtifact(mediaID, kind, modelKey string) ([]byte, error) {
	query := url.Values{}
	if kind != "" {
		query.Set("kind", kind)
	}
	if modelKey != "" {
		query.Set("model", modelKey)
	}
	path := "/api/media/" + url.PathEscape(mediaID) + "/artifact"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	data, _, err := c.doRaw(http.MethodGet, path, nil)
	return data, err
}

// Generate runs on-demand generation for an external asset id or an
// internal media id, blocking until the bytes are available.
func (c *Client) Generate(id, kind, modelKey string) (*GenerateResult, error) {
	body := map[string]string{"type": kind, "modelKey": modelKey}
	data, header, err := c.doRaw(http.MethodPost, "/api/assets/"+url.PathEscape(id)+"/generate", body)
	if err != nil {
		return nil, err
	}
	return &GenerateResult{
		Data:     data,
		Format:   header.Get("Content-Type"),
		CacheHit: header.Get("cache") == "hit",
	}, nil
}

// ListFiles lists artifact rows for an asset. Accepts an internal media
// id or an external library id.
func (c *Client) ListFiles(id string) ([]ArtifactFile, error) {
	var files []ArtifactFile
	if err := c.get("/api/assets/"+url.PathEscape(id)+"/files", &files); err != nil {
		return nil, err
	}
	return files, nil
}

// DeleteFile removes a cached artifact.
func (c *Client) DeleteFile(id, fileID string) error {
	return c.delete("/api/assets/"+url.PathEscape(id)+"/files/"+url.PathEscape(fileID), nil)
}
