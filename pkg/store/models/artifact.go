package models

import (
	"encoding/json"
	"time"
)

// ArtifactKind identifies the type of derived asset.
type ArtifactKind string

const (
	ArtifactKindDepth ArtifactKind = "depth"
	ArtifactKindSplat ArtifactKind = "splat"
)

// Artifact is a generated 3D derivative of a Media (depth map or splat).
//
// (MediaID, Kind, ModelKey, Format) is unique. ModelKey uses the empty
// string for "no model" so that the uniqueness constraint treats two
// model-less artifacts as the same row (SQL NULLs would compare distinct).
type Artifact struct {
	ID      string       `gorm:"primaryKey;size:36" json:"id"`
	MediaID string       `gorm:"not null;index;uniqueIndex:idx_artifact_key;size:36" json:"media_id"`
	Media   *Media       `gorm:"foreignKey:MediaID;constraint:OnDelete:CASCADE" json:"-"`
	Kind    ArtifactKind `gorm:"not null;uniqueIndex:idx_artifact_key;size:16" json:"kind"`

	// ModelKey is the model that produced the artifact; "" means no model.
	ModelKey string `gorm:"uniqueIndex:idx_artifact_key;size:64" json:"model_key,omitempty"`

	// Format is the file format: png/jpg/webp for images, ply/splat/ksplat
	// for gaussian splats.
	Format string `gorm:"not null;uniqueIndex:idx_artifact_key;size:16" json:"format"`

	FilePath  string `gorm:"size:1024" json:"file_path"`
	SizeBytes int64  `gorm:"default:0" json:"size_bytes"`
	Width     *int   `json:"width,omitempty"`
	Height    *int   `json:"height,omitempty"`

	// Metadata is a free-form JSON blob (e.g. the source variant label).
	Metadata string `gorm:"type:text" json:"-"`

	GeneratedAt time.Time `gorm:"not null" json:"generated_at"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`

	// ParsedMetadata is the decoded Metadata blob (not stored in DB).
	ParsedMetadata map[string]any `gorm:"-" json:"metadata,omitempty"`
}

// TableName returns the table name for Artifact.
func (Artifact) TableName() string {
	return "generated_assets_3d"
}

// GetMetadata returns the parsed metadata map.
func (a *Artifact) GetMetadata() (map[string]any, error) {
	if a.ParsedMetadata != nil {
		return a.ParsedMetadata, nil
	}
	if a.Metadata == "" {
		return make(map[string]any), nil
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(a.Metadata), &meta); err != nil {
		return nil, err
	}
	a.ParsedMetadata = meta
	return meta, nil
}

// SetMetadata serializes the metadata map into the stored blob.
func (a *Artifact) SetMetadata(meta map[string]any) error {
	if len(meta) == 0 {
		a.Metadata = ""
		a.ParsedMetadata = nil
		return nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	a.Metadata = string(data)
	a.ParsedMetadata = meta
	return nil
}

// ExtensionForFormat maps an artifact format to its file extension.
// Unknown formats fall back to png.
func ExtensionForFormat(format string) string {
	switch format {
	case "png", "jpg", "webp", "ply", "splat", "ksplat":
		return format
	case "jpeg":
		return "jpg"
	default:
		return "png"
	}
}
