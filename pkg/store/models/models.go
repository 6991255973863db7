// Package models defines the GORM models and domain errors for the
// orchestrator's persistent state: media, jobs, generated artifacts,
// the model catalog, and user settings.
package models

// AllModels returns all GORM models for auto-migration.
func AllModels() []any {
	return []any{
		&Media{},
		&Job{},
		&Artifact{},
		&Model{},
		&UserSetting{},
	}
}

// DefaultCatalog returns the static model descriptors seeded into the
// catalog when the models table is empty. Download status starts at
// not_downloaded and is reconciled against the inference service on boot.
func DefaultCatalog() []Model {
	return []Model{
		{
			Key:          "small",
			Kind:         ArtifactKindDepth,
			Name:         "Depth Anything V2 Small",
			Parameters:   "25M",
			VRAMEstimate: "2GB",
			RepositoryID: "depth-anything/Depth-Anything-V2-Small",
		},
		{
			Key:          "base",
			Kind:         ArtifactKindDepth,
			Name:         "Depth Anything V2 Base",
			Parameters:   "98M",
			VRAMEstimate: "4GB",
			RepositoryID: "depth-anything/Depth-Anything-V2-Base",
		},
		{
			Key:          "large",
			Kind:         ArtifactKindDepth,
			Name:         "Depth Anything V2 Large",
			Parameters:   "335M",
			VRAMEstimate: "8GB",
			RepositoryID: "depth-anything/Depth-Anything-V2-Large",
		},
		{
			Key:          "sharp",
			Kind:         ArtifactKindDepth,
			Name:         "Depth Pro Sharp",
			Parameters:   "504M",
			VRAMEstimate: "12GB",
			RepositoryID: "apple/DepthPro",
		},
		{
			Key:          "splat",
			Kind:         ArtifactKindSplat,
			Name:         "Gaussian Splat Generator",
			Parameters:   "1.1B",
			VRAMEstimate: "16GB",
			RepositoryID: "stabilityai/stable-point-aware-3d",
		},
	}
}
