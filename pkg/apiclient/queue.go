package apiclient

import (
	"fmt"
	"net/url"
	"time"
)

// Job is one processing job as the API reports it.
type Job struct {
	ID          string     `json:"id"`
	MediaID     string     `json:"media_id"`
	Status      string     `json:"status"`
	Priority    int        `json:"priority"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	LastError   string     `json:"last_error,omitempty"`
	QueuedAt    time.Time  `json:"queued_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// QueueStats aggregates job counts per status.
type QueueStats struct {
	Queued     int64 `json:"queued"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	Cancelled  int64 `json:"cancelled"`
	Total      int64 `json:"total"`
}

// WorkerStatus reports the background worker's state.
type WorkerStatus struct {
	Running      bool   `json:"running"`
	CurrentJobID string `json:"current_job_id,omitempty"`
}

// ListJobs returns jobs, optionally filtered by status.
func (c *Client) ListJobs(status string, limit, offset int) ([]Job, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}
	if limit > 0 {
		query.Set("limit", fmt.Sprintf("%d", limit))
	}
	if offset > 0 {
		query.Set("offset", fmt.Sprintf("%d", offset))
	}
	path := "/api/queue/items"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var jobs []Job
	if err := c.get(path, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// GetJob returns a job by id.
func (c *Client) GetJob(id string) (*Job, error) {
	var job Job
	if err := c.get("/api/queue/items/"+url.PathEscape(id), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// CancelJob cancels a queued or processing job.
func (c *Client) CancelJob(id string) error {
	return c.post("/api/queue/items/"+url.PathEscape(id)+"/cancel", nil, nil)
}

// RetryJob requeues a failed or cancelled job.
func (c *Client) RetryJob(id string) error {
	return c.post("/api/queue/items/"+url.PathEscape(id)+"/retry", nil, nil)
}

// QueueStats returns aggregate queue counters.
func (c *Client) QueueStats() (*QueueStats, error) {
	var stats QueueStats
	if err := c.get("/api/queue/stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// StartWorker starts the background worker.
func (c *Client) StartWorker() (*WorkerStatus, error) {
	var status WorkerStatus
	if err := c.post("/api/queue/worker/start", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// StopWorker stops the background worker.
func (c *Client) StopWorker() (*WorkerStatus, error) {
	var status WorkerStatus
	if err := c.post("/api/queue/worker/stop", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// WorkerStatus returns the worker's current state.
func (c *Client) WorkerStatus() (*WorkerStatus, error) {
	var status WorkerStatus
	if err := c.get("/api/queue/worker/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}
