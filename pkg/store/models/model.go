package models

import "time"

// ModelDownloadStatus tracks whether a model's weights are on the
// inference service's disk.
type ModelDownloadStatus string

const (
	ModelNotDownloaded ModelDownloadStatus = "not_downloaded"
	ModelDownloading   ModelDownloadStatus = "downloading"
	ModelDownloaded    ModelDownloadStatus = "downloaded"
)

// Model is a catalog entry describing an inference model.
//
// The catalog is mostly static: rows are seeded at first boot and the
// download status is reconciled against the inference service's disk
// state on every start. Only downloaded models may be loaded.
type Model struct {
	ID  string `gorm:"primaryKey;size:36" json:"id"`
	Key string `gorm:"uniqueIndex;not null;size:64" json:"key"`

	// Kind is the artifact kind this model produces (depth or splat).
	Kind ArtifactKind `gorm:"not null;size:16;default:depth" json:"kind"`

	Name         string `gorm:"size:128" json:"name"`
	Parameters   string `gorm:"size:32" json:"parameters,omitempty"`    // e.g. "25M"
	VRAMEstimate string `gorm:"size:32" json:"vram_estimate,omitempty"` // e.g. "2GB"

	// RepositoryID is the external model-hub identifier used for downloads.
	RepositoryID string `gorm:"size:256" json:"repository_id,omitempty"`

	DownloadStatus   ModelDownloadStatus `gorm:"not null;size:20;default:not_downloaded" json:"download_status"`
	DownloadProgress int                 `gorm:"default:0" json:"download_progress"`
	SizeBytes        int64               `gorm:"default:0" json:"size_bytes"`
	DownloadedAt     *time.Time          `json:"downloaded_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Model.
func (Model) TableName() string {
	return "models"
}

// IsDownloaded reports whether the model can be loaded.
func (m *Model) IsDownloaded() bool {
	return m.DownloadStatus == ModelDownloaded
}
