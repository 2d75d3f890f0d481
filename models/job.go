package models

import "time"

// Job status
const (
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// ScrapeJob is one trace row for a scrape run (one URL, one subscriber).
type ScrapeJob struct {
	ID           int64      `json:"id" db:"id"`
	URL          string     `json:"url" db:"url"`
	LineUserID   string     `json:"line_user_id" db:"line_user_id"`
	Status       string     `json:"status" db:"status"`
	ErrorMessage string     `json:"error_message" db:"error_message"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	FinishedAt   *time.Time `json:"finished_at" db:"finished_at"`
}
