package models

import "time"

// MediaKind distinguishes photos from videos.
type MediaKind string

const (
	MediaKindPhoto MediaKind = "photo"
	MediaKindVideo MediaKind = "video"
)

// MediaSource records where the original bytes came from.
type MediaSource string

const (
	// MediaSourceUpload means the file was uploaded directly and lives
	// under the upload directory.
	MediaSourceUpload MediaSource = "upload"

	// MediaSourceExternal means the bytes live in the external media
	// library and are fetched on demand via the library adapter.
	MediaSourceExternal MediaSource = "external"
)

// Media is an imported or externally referenced photo or video.
//
// At most one Media exists per external id. Media created by the on-demand
// path for an external asset carries minimal metadata (a stub) that is
// backfilled later; it is never otherwise mutated.
type Media struct {
	ID         string  `gorm:"primaryKey;size:36" json:"id"`
	ExternalID *string `gorm:"uniqueIndex;size:64" json:"external_id,omitempty"`

	OriginalFileName string      `gorm:"not null;size:512" json:"original_file_name"`
	MimeType         string      `gorm:"size:128" json:"mime_type"`
	Kind             MediaKind   `gorm:"not null;size:16;default:photo" json:"kind"`
	Source           MediaSource `gorm:"not null;size:16;default:upload" json:"source"`

	// FilePath is set for uploaded media; empty for external media.
	FilePath  string `gorm:"size:1024" json:"file_path,omitempty"`
	SizeBytes int64  `gorm:"default:0" json:"size_bytes"`

	Width      *int       `json:"width,omitempty"`
	Height     *int       `json:"height,omitempty"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Media.
func (Media) TableName() string {
	return "media"
}

// IsExternal reports whether the media bytes live in the external library.
func (m *Media) IsExternal() bool {
	return m.Source == MediaSourceExternal
}
