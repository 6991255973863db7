package inference

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	return New(Config{BaseURL: server.URL}), server
}

func TestHealth(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"status":"ok","model_status":"loaded"}`))
	}))
	defer server.Close()

	status, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("health failed: %v", err)
	}
	if !status.Healthy() {
		t.Error("expected healthy")
	}
	if status.ModelStatus != "loaded" {
		t.Errorf("unexpected model status %q", status.ModelStatus)
	}
}

func TestListModels(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[{"key":"small","is_downloaded":true,"is_loaded":false},{"key":"large","is_downloaded":false,"is_loaded":false}]}`))
	}))
	defer server.Close()

	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("list models failed: %v", err)
	}
	if len(models) != 2 || models[0].Key != "small" || !models[0].IsDownloaded {
		t.Errorf("unexpected models: %+v", models)
	}
}

func TestCurrentLoaded(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/models/current" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"current_model":"base"}`))
	}))
	defer server.Close()

	key, err := client.CurrentLoaded(context.Background())
	if err != nil {
		t.Fatalf("current loaded failed: %v", err)
	}
	if key != "base" {
		t.Errorf("expected base, got %q", key)
	}
}

func TestLoadSendsDeviceHint(t *testing.T) {
	var gotBody []byte
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/models/small/load" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"current_model":"small"}`))
	}))
	defer server.Close()

	if err := client.Load(context.Background(), "small", "cuda"); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !bytes.Contains(gotBody, []byte(`"cuda"`)) {
		t.Errorf("device hint not sent: %s", gotBody)
	}
}

func TestProcessDepth(t *testing.T) {
	image := []byte("fake-jpeg")
	depth := []byte("fake-png")
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/depth" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("model") != "small" {
			t.Errorf("model query missing: %s", r.URL.RawQuery)
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			t.Errorf("missing multipart image: %v", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		defer file.Close()
		got, _ := io.ReadAll(file)
		if !bytes.Equal(got, image) {
			t.Error("image bytes mangled in transit")
		}
		w.Write(depth)
	}))
	defer server.Close()

	out, err := client.ProcessDepth(context.Background(), image, "small")
	if err != nil {
		t.Fatalf("process depth failed: %v", err)
	}
	if !bytes.Equal(out, depth) {
		t.Errorf("unexpected depth bytes: %q", out)
	}
}

func TestRemoteErrorOn4xx(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad image", http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := client.ProcessDepth(context.Background(), []byte("junk"), "small")
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remote.Status != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", remote.Status)
	}
	if IsRetryable(err) {
		t.Error("4xx must not be retryable")
	}
}

func TestRemoteErrorOn5xxIsRetryable(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := client.ProcessDepth(context.Background(), []byte("x"), "small")
	if !IsRetryable(err) {
		t.Errorf("5xx should be retryable, got %v", err)
	}
}

func TestUnreachable(t *testing.T) {
	// A closed server makes the connect fail outright.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := New(Config{BaseURL: server.URL})
	server.Close()

	_, err := client.Health(context.Background())
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("expected ErrUnreachable, got %v", err)
	}
	if !IsRetryable(err) {
		t.Error("unreachable should be retryable")
	}
}

func TestTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer slow.Close()
	client := New(Config{BaseURL: slow.URL, DepthTimeout: 20 * time.Millisecond})

	_, err := client.ProcessDepth(context.Background(), []byte("x"), "")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
	if !IsRetryable(err) {
		t.Error("timeout should be retryable")
	}
}
