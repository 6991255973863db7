// Package inference is the single place that knows how to talk to the
// inference service. It exposes typed operations and classifies failures;
// retry policy belongs to the callers, never to this client.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"time"
)

const (
	// DefaultDepthTimeout bounds single-image depth processing.
	DefaultDepthTimeout = 2 * time.Minute
	// DefaultVideoTimeout bounds side-by-side video conversion.
	DefaultVideoTimeout = 15 * time.Minute
	// DefaultControlTimeout bounds health and model control calls.
	DefaultControlTimeout = 30 * time.Second
)

// Config holds inference client settings.
type Config struct {
	// BaseURL is the inference service root, e.g. http://localhost:8001.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// DepthTimeout overrides the depth processing deadline.
	DepthTimeout time.Duration `mapstructure:"depth_timeout" yaml:"depth_timeout"`
	// VideoTimeout overrides the video processing deadline.
	VideoTimeout time.Duration `mapstructure:"video_timeout" yaml:"video_timeout"`
}

// ApplyDefaults fills in unset timeouts.
func (c *Config) ApplyDefaults() {
	if c.DepthTimeout == 0 {
		c.DepthTimeout = DefaultDepthTimeout
	}
	if c.VideoTimeout == 0 {
		c.VideoTimeout = DefaultVideoTimeout
	}
}

// Client talks to the inference service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cfg        Config
}

// New creates an inference client. Per-request deadlines are set through
// contexts, so the embedded http.Client carries no global timeout.
func New(cfg Config) *Client {
	cfg.ApplyDefaults()
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{},
		cfg:        cfg,
	}
}

// classify maps transport-level errors onto the client's sentinels.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

// doJSON performs a request with a JSON body (may be nil) and decodes a
// JSON response into result (may be nil).
func (c *Client) doJSON(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultControlTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classify(err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return classify(err)
	}

	if resp.StatusCode >= 400 {
		return &RemoteError{Status: resp.StatusCode, Message: string(respBody)}
	}
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// process posts an image as a multipart upload and buffers the binary
// response. Used by both the depth and splat paths.
func (c *Client) process(ctx context.Context, path, modelKey string, image []byte, timeout time.Duration) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", "input.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("failed to write image part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	endpoint := c.baseURL + path
	if modelKey != "" {
		endpoint += "?model=" + url.QueryEscape(modelKey)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(err)
	}
	if resp.StatusCode >= 400 {
		return nil, &RemoteError{Status: resp.StatusCode, Message: string(data)}
	}
	return data, nil
}

// ProcessDepth uploads an image and returns the depth map PNG bytes.
func (c *Client) ProcessDepth(ctx context.Context, image []byte, modelKey string) ([]byte, error) {
	return c.process(ctx, "/api/depth", modelKey, image, c.cfg.DepthTimeout)
}

// ProcessSplat uploads an image and returns the splat PLY bytes.
func (c *Client) ProcessSplat(ctx context.Context, image []byte, modelKey string) ([]byte, error) {
	return c.process(ctx, "/api/splat", modelKey, image, c.cfg.DepthTimeout)
}
