package models

import "errors"

// Common errors for orchestrator store operations.
var (
	// Media errors
	ErrMediaNotFound  = errors.New("media not found")
	ErrDuplicateMedia = errors.New("media already exists")

	// Job errors
	ErrJobNotFound = errors.New("job not found")

	// AlreadyQueued is returned by enqueue when an active job exists
	// for the same media.
	ErrAlreadyQueued = errors.New("media already has an active job")

	// AlreadyProcessed is returned by enqueue when a completed job
	// exists for the same media.
	ErrAlreadyProcessed = errors.New("media already processed")

	// ErrInvalidTransition is returned when a job state change is not
	// permitted from the current status (e.g. cancelling a processing job).
	ErrInvalidTransition = errors.New("invalid job state transition")

	// Artifact errors
	ErrArtifactNotFound = errors.New("artifact not found")

	// Model catalog errors
	ErrModelNotFound = errors.New("model not found")

	// ErrModelNotDownloaded is returned when a load is attempted for a
	// model that is not on the inference service's disk.
	ErrModelNotDownloaded = errors.New("model is not downloaded")

	// Setting errors
	ErrSettingNotFound = errors.New("setting not found")
)
