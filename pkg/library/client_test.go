package library

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	return New(Config{BaseURL: server.URL, APIKey: "secret"}), server
}

func TestPingSendsAPIKey(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"res":"pong"}`))
	}))
	defer server.Close()

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}

func TestAuthError(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid key", http.StatusUnauthorized)
	}))
	defer server.Close()

	err := client.Ping(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !apiErr.IsAuthError() {
		t.Errorf("expected auth error, got status %d", apiErr.Status)
	}
}

func TestInfoNotFound(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "asset not found", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := client.Info(context.Background(), "missing-id")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.IsNotFound() {
		t.Errorf("expected not found APIError, got %v", err)
	}
}

func TestInfo(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/assets/abc" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"id": "abc",
			"type": "IMAGE",
			"originalFileName": "beach.jpg",
			"originalMimeType": "image/jpeg",
			"exifInfo": {"exifImageWidth": 4032, "exifImageHeight": 3024, "fileSizeInByte": 2097152}
		}`))
	}))
	defer server.Close()

	info, err := client.Info(context.Background(), "abc")
	if err != nil {
		t.Fatalf("info failed: %v", err)
	}
	if info.OriginalFileName != "beach.jpg" || info.ExifInfo == nil || *info.ExifInfo.ExifImageWidth != 4032 {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestThumbnail(t *testing.T) {
	thumb := []byte("webp-bytes")
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/assets/abc/thumbnail" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("size") != "preview" {
			t.Errorf("size query missing: %s", r.URL.RawQuery)
		}
		w.Write(thumb)
	}))
	defer server.Close()

	got, err := client.Thumbnail(context.Background(), "abc", ThumbnailOptions{Format: "webp", Size: "preview"})
	if err != nil {
		t.Fatalf("thumbnail failed: %v", err)
	}
	if !bytes.Equal(got, thumb) {
		t.Error("thumbnail bytes mangled")
	}
}

func TestUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := New(Config{BaseURL: server.URL})
	server.Close()

	if err := client.Ping(context.Background()); !errors.Is(err, ErrUnreachable) {
		t.Errorf("expected ErrUnreachable, got %v", err)
	}
}
