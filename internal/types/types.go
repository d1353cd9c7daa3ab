package types

import "time"

// Status is the coarse lifecycle tag of a job.
type Status string

const (
	StatusQueued       Status = "queued"
	StatusDownloading  Status = "downloading"
	StatusTranscribing Status = "transcribing"
	StatusSummarizing  Status = "summarizing"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusCancelled    Status = "cancelled"
)

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Phase returns the human-facing label for a status.
func (s Status) Phase() string {
	switch s {
	case StatusQueued:
		return "Queued"
	case StatusDownloading:
		return "Downloading"
	case StatusTranscribing:
		return "Transcribing"
	case StatusSummarizing:
		return "Summarizing"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	case StatusCancelled:
		return "Cancelled"
	}
	return string(s)
}

// Result holds the output of a successfully completed job.
type Result struct {
	Transcript string `json:"transcript"`
	Summary    string `json:"summary"`
}

// JobSnapshot is the full current state of a job as exposed to external
// readers. It is always a copy; mutating it never affects the registry.
type JobSnapshot struct {
	ID              string    `json:"id"`
	Status          Status    `json:"status"`
	Phase           string    `json:"phase"`
	PhaseProgress   int       `json:"phaseProgress"`
	OverallProgress int       `json:"overallProgress"`
	Result          *Result   `json:"result"`
	Error           string    `json:"error,omitempty"`
	Canceled        bool      `json:"canceled"`
	CreatedAt       time.Time `json:"createdAt"`
}

// RegistryStats summarizes the live job table.
type RegistryStats struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"byStatus"`
}
