package library

import (
	"context"
	"net/http"
	"testing"
)

func TestListTimeline(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/timeline/buckets" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`[{"timeBucket":"2024-06-01","count":12},{"timeBucket":"2024-05-01","count":3}]`))
	}))
	defer server.Close()

	buckets, err := client.ListTimeline(context.Background())
	if err != nil {
		t.Fatalf("list timeline failed: %v", err)
	}
	if len(buckets) != 2 || buckets[0].Count != 12 {
		t.Errorf("unexpected buckets: %+v", buckets)
	}
}

// The bucket endpoint answers columnar JSON: parallel arrays keyed by
// field. The client must hand back row records.
func TestListBucketTransposesColumns(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"id": ["a", "b"],
			"isImage": [true, false],
			"originalFileName": ["one.jpg", "two.mp4"],
			"localDateTime": ["2024-06-01T10:00:00Z", null],
			"width": [100, null],
			"height": [200, null]
		}`))
	}))
	defer server.Close()

	assets, err := client.ListBucket(context.Background(), "2024-06-01")
	if err != nil {
		t.Fatalf("list bucket failed: %v", err)
	}
	if len(assets) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(assets))
	}
	first := assets[0]
	if first.ID != "a" || !first.IsImage || first.OriginalFileName != "one.jpg" {
		t.Errorf("first row mistransposed: %+v", first)
	}
	if first.CapturedAt == nil || first.Width == nil || *first.Width != 100 {
		t.Errorf("first row lost columns: %+v", first)
	}
	second := assets[1]
	if second.ID != "b" || second.IsImage || second.CapturedAt != nil || second.Width != nil {
		t.Errorf("second row mistransposed: %+v", second)
	}
}

// Columns shorter than the id column must not panic; missing cells stay zero.
func TestListBucketRaggedColumns(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": ["a", "b", "c"], "isImage": [true]}`))
	}))
	defer server.Close()

	assets, err := client.ListBucket(context.Background(), "2024-06-01")
	if err != nil {
		t.Fatalf("list bucket failed: %v", err)
	}
	if len(assets) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(assets))
	}
	if !assets[0].IsImage || assets[1].IsImage {
		t.Errorf("ragged columns mishandled: %+v", assets)
	}
}
