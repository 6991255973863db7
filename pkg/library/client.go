// Package library adapts the external media library's HTTP API. It is the
// source of truth for externally referenced photos: metadata, thumbnails
// and original bytes all come through here.
package library

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout bounds metadata calls. Thumbnail and original fetches
// share it; they are small compared to inference work.
const DefaultTimeout = 30 * time.Second

// ErrUnreachable wraps network-level failures reaching the library.
var ErrUnreachable = errors.New("media library unreachable")

// APIError is a non-2xx response from the media library.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("media library returned %d: %s", e.Status, e.Message)
}

// IsAuthError reports a rejected API key.
func (e *APIError) IsAuthError() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// IsNotFound reports an unknown asset id.
func (e *APIError) IsNotFound() bool {
	return e.Status == http.StatusNotFound
}

// Config holds media library connection settings.
type Config struct {
	// BaseURL is the library API root, e.g. http://immich:2283/api.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// APIKey is the shared-secret header value.
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
}

// Client is the media library API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a library client.
func New(cfg Config) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// doJSON performs a request and decodes the JSON response into result.
func (c *Client) doJSON(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode, Message: string(respBody)}
	}
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// doBytes performs a GET and buffers the raw response body.
func (c *Client) doBytes(ctx context.Context, path string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if resp.StatusCode >= 400 {
		return nil, &APIError{Status: resp.StatusCode, Message: string(data)}
	}
	return data, nil
}

// Ping verifies connectivity and credentials.
func (c *Client) Ping(ctx context.Context) error {
	var resp struct {
		Res string `json:"res"`
	}
	return c.doJSON(ctx, http.MethodGet, "/server/ping", nil, &resp)
}

// Version returns the library server version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	var resp struct {
		Major int `json:"major"`
		Minor int `json:"minor"`
		Patch int `json:"patch"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/server/version", nil, &resp); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d.%d.%d", resp.Major, resp.Minor, resp.Patch), nil
}

// Statistics holds library-wide asset counts.
type Statistics struct {
	Photos int64 `json:"photos"`
	Videos int64 `json:"videos"`
	Usage  int64 `json:"usage"`
}

// Statistics returns library-wide counts.
func (c *Client) Statistics(ctx context.Context) (*Statistics, error) {
	var stats Statistics
	if err := c.doJSON(ctx, http.MethodGet, "/server/statistics", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// AssetInfo is the library's metadata for one asset.
type AssetInfo struct {
	ID               string     `json:"id"`
	Type             string     `json:"type"`
	OriginalFileName string     `json:"originalFileName"`
	OriginalMimeType string     `json:"originalMimeType"`
	FileCreatedAt    *time.Time `json:"fileCreatedAt"`
	ExifInfo         *struct {
		ExifImageWidth  *int   `json:"exifImageWidth"`
		ExifImageHeight *int   `json:"exifImageHeight"`
		FileSizeInByte  *int64 `json:"fileSizeInByte"`
	} `json:"exifInfo"`
}

// Info fetches metadata for an external asset id.
func (c *Client) Info(ctx context.Context, externalID string) (*AssetInfo, error) {
	var info AssetInfo
	path := "/assets/" + url.PathEscape(externalID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ThumbnailOptions selects the thumbnail rendition.
type ThumbnailOptions struct {
	Format string // "webp" or "jpeg"
	Size   string // "preview" or "thumbnail"
}

// Thumbnail fetches a reduced rendition of the asset. Preferred by the
// on-demand path for latency.
func (c *Client) Thumbnail(ctx context.Context, externalID string, opts ThumbnailOptions) ([]byte, error) {
	path := "/assets/" + url.PathEscape(externalID) + "/thumbnail"
	q := url.Values{}
	if opts.Format != "" {
		q.Set("format", opts.Format)
	}
	if opts.Size != "" {
		q.Set("size", opts.Size)
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return c.doBytes(ctx, path)
}

// Original fetches the full-resolution bytes of the asset.
func (c *Client) Original(ctx context.Context, externalID string) ([]byte, error) {
	return c.doBytes(ctx, "/assets/"+url.PathEscape(externalID)+"/original")
}
