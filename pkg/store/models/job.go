package models

import "time"

// JobStatus is the closed set of processing job states.
type JobStatus string

const (
	// JobStatusPending is reserved; no code path currently produces it.
	JobStatusPending    JobStatus = "pending"
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions
// other than an explicit revive (failed/cancelled can be re-enqueued).
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// IsActive reports whether the job occupies the queue (waiting or running).
func (s JobStatus) IsActive() bool {
	return s == JobStatusPending || s == JobStatusQueued || s == JobStatusProcessing
}

// Job is a request to produce artifacts for a Media.
//
// Lower Priority values are claimed earlier. Attempts is incremented on every
// claim; when a failure occurs with Attempts < MaxAttempts the job re-enters
// the queue, otherwise it lands in failed.
type Job struct {
	ID      string    `gorm:"primaryKey;size:36" json:"id"`
	MediaID string    `gorm:"not null;index;size:36" json:"media_id"`
	Media   *Media    `gorm:"foreignKey:MediaID;constraint:OnDelete:CASCADE" json:"media,omitempty"`
	Status  JobStatus `gorm:"not null;index;size:16;default:queued" json:"status"`

	Priority    int `gorm:"not null;index;default:100" json:"priority"`
	Attempts    int `gorm:"default:0" json:"attempts"`
	MaxAttempts int `gorm:"default:3" json:"max_attempts"`

	LastError string `gorm:"type:text" json:"last_error,omitempty"`

	QueuedAt    time.Time  `gorm:"not null;index" json:"queued_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ProcessingDuration is the wall-clock duration of the successful
	// attempt, in seconds.
	ProcessingDuration float64 `gorm:"default:0" json:"processing_duration,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Job.
func (Job) TableName() string {
	return "jobs"
}
