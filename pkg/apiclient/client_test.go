package apiclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wrap(data any) map[string]any {
	return map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"data":      data,
	}
}

func TestNew(t *testing.T) {
	client := New("http://localhost:3003")
	assert.NotNil(t, client)
	assert.Equal(t, "http://localhost:3003", client.baseURL)
}

func TestDoUnwrapsEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_ = json.NewEncoder(w).Encode(wrap(map[string]string{"message": "success"}))
	}))
	defer server.Close()

	client := New(server.URL)

	var resp struct {
		Message string `json:"message"`
	}
	err := client.get("/test", &resp)
	require.NoError(t, err)
	assert.Equal(t, "success", resp.Message)
}

func TestDoWithAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "error",
			"error":  "media not found",
		})
	}))
	defer server.Close()

	client := New(server.URL)
	err := client.get("/test", nil)
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "media not found", apiErr.Message)
	assert.True(t, apiErr.IsNotFound())
}

func TestQueueEndpoints(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/queue/items" && r.Method == http.MethodGet:
			assert.Equal(t, "failed", r.URL.Query().Get("status"))
			_ = json.NewEncoder(w).Encode(wrap([]map[string]any{
				{"id": "j1", "status": "failed", "attempts": 3},
			}))
		case r.URL.Path == "/api/queue/items/j1/retry" && r.Method == http.MethodPost:
			_ = json.NewEncoder(w).Encode(wrap(nil))
		case r.URL.Path == "/api/queue/stats":
			_ = json.NewEncoder(w).Encode(wrap(map[string]any{"queued": 2, "total": 5}))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := New(server.URL)

	jobs, err := client.ListJobs("failed", 0, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "j1", jobs[0].ID)
	assert.Equal(t, 3, jobs[0].Attempts)

	require.NoError(t, client.RetryJob("j1"))

	stats, err := client.QueueStats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Queued)
	assert.Equal(t, int64(5), stats.Total)
}

func TestUpload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "pic.jpg", header.Filename)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(wrap(map[string]string{
			"mediaId": "m1",
			"jobId":   "j1",
		}))
	}))
	defer server.Close()

	client := New(server.URL)
	result, err := client.Upload("pic.jpg", strings.NewReader("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "m1", result.MediaID)
	assert.Equal(t, "j1", result.JobID)
}

func TestGenerateRawResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/assets/ext-1/generate", r.URL.Path)

		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "depth", body["type"])

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("cache", "hit")
		w.Write([]byte("depth-bytes"))
	}))
	defer server.Close()

	client := New(server.URL)
	result, err := client.Generate("ext-1", "depth", "small")
	require.NoError(t, err)
	assert.Equal(t, []byte("depth-bytes"), result.Data)
	assert.Equal(t, "image/png", result.Format)
	assert.True(t, result.CacheHit)
}

func TestGenerateErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "error",
			"error":  "inference service unreachable",
		})
	}))
	defer server.Close()

	client := New(server.URL)
	_, err := client.Generate("ext-1", "depth", "")
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.True(t, apiErr.IsUnavailable())
	assert.Contains(t, apiErr.Message, "unreachable")
}

func TestSettingsRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			var req UpdateSettingsRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			assert.Equal(t, "base", req.DefaultModelKey)
			_ = json.NewEncoder(w).Encode(wrap(map[string]any{
				"default_model_key":     "base",
				"auto_generate_on_view": true,
			}))
		default:
			_ = json.NewEncoder(w).Encode(wrap(map[string]any{
				"default_model_key": "small",
			}))
		}
	}))
	defer server.Close()

	client := New(server.URL)

	settings, err := client.GetSettings()
	require.NoError(t, err)
	assert.Equal(t, "small", settings.DefaultModelKey)

	updated, err := client.UpdateSettings(&UpdateSettingsRequest{
		DefaultModelKey:    "base",
		AutoGenerateOnView: true,
	})
	require.NoError(t, err)
	assert.True(t, updated.AutoGenerateOnView)
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "degraded",
			"data":   map[string]any{"inference": "connection refused"},
		})
	}))
	defer server.Close()

	client := New(server.URL)
	report, err := client.Health()
	require.NoError(t, err)
	assert.Equal(t, "degraded", report.Status)
	assert.Equal(t, "connection refused", report.Detail["inference"])
}
