package library

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// TimelineBucket is one time bucket in the library's timeline.
type TimelineBucket struct {
	TimeBucket string `json:"timeBucket"`
	Count      int    `json:"count"`
}

// TimelineAsset is one row of a transposed bucket listing.
type TimelineAsset struct {
	ID               string
	IsImage          bool
	OriginalFileName string
	CapturedAt       *time.Time
	Width            *int
	Height           *int
}

// columnarBucket is the wire shape of a bucket listing: parallel arrays,
// one per field, all the same length.
type columnarBucket struct {
	ID       []string  `json:"id"`
	IsImage  []bool    `json:"isImage"`
	FileName []string  `json:"originalFileName"`
	LocalAt  []*string `json:"localDateTime"`
	Width    []*int    `json:"width"`
	Height   []*int    `json:"height"`
}

// transpose converts the columnar listing into row records. Missing
// columns simply leave their fields zero; the id column drives length.
func (c *columnarBucket) transpose() []TimelineAsset {
	assets := make([]TimelineAsset, len(c.ID))
	for i := range c.ID {
		assets[i].ID = c.ID[i]
		if i < len(c.IsImage) {
			assets[i].IsImage = c.IsImage[i]
		}
		if i < len(c.FileName) {
			assets[i].OriginalFileName = c.FileName[i]
		}
		if i < len(c.LocalAt) && c.LocalAt[i] != nil {
			if ts, err := time.Parse(time.RFC3339, *c.LocalAt[i]); err == nil {
				assets[i].CapturedAt = &ts
			}
		}
		if i < len(c.Width) {
			assets[i].Width = c.Width[i]
		}
		if i < len(c.Height) {
			assets[i].Height = c.Height[i]
		}
	}
	return assets
}

// ListTimeline returns the library's time buckets.
func (c *Client) ListTimeline(ctx context.Context) ([]TimelineBucket, error) {
	var buckets []TimelineBucket
	if err := c.doJSON(ctx, http.MethodGet, "/timeline/buckets?visibility=timeline", nil, &buckets); err != nil {
		return nil, err
	}
	return buckets, nil
}

// ListBucket returns the assets in one time bucket as row records.
func (c *Client) ListBucket(ctx context.Context, bucket string) ([]TimelineAsset, error) {
	var columnar columnarBucket
	path := "/timeline/bucket?visibility=timeline&timeBucket=" + url.QueryEscape(bucket)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &columnar); err != nil {
		return nil, err
	}
	return columnar.transpose(), nil
}
