package domain

import "time"

// LogLevel is the severity of an outcome log entry
type LogLevel string

// Log levels
const (
	LogLevelInfo  LogLevel = "info"
	LogLevelError LogLevel = "error"
)

// LogEntry is an append-only record of one processing event
type LogEntry struct {
	ID          int64
	CreatedAt   time.Time
	PostingID   string
	RunID       *string
	Level       LogLevel
	Message     string
	DurationMS  *int64
	JobTitle    *string
	CompanyName *string
	Details     map[string]any
}

// LogFilter narrows a log listing
type LogFilter struct {
	PostingID string
	RunID     string
	Limit     int
}

// RunStatus is the state of a batch run
type RunStatus string

// Run statuses
const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusPartial RunStatus = "partial"
	RunStatusError   RunStatus = "error"
)

// Run is the aggregate record of one batch invocation
type Run struct {
	ID            string
	Status        RunStatus
	StartedAt     time.Time
	FinishedAt    *time.Time
	TotalSelected int
	TotalSuccess  int
	TotalError    int
	Notes         *string
}

// RunSummary is what a batch reports when it closes its run
type RunSummary struct {
	Status        RunStatus
	TotalSelected int
	TotalSuccess  int
	TotalError    int
	Notes         *string
	FinishedAt    time.Time
}

// RunStatusFor derives the final batch status from its counters. A batch
// that attempted nothing counts as a success.
func RunStatusFor(success, failed int) RunStatus {
	switch {
	case failed == 0:
		return RunStatusSuccess
	case success == 0:
		return RunStatusError
	default:
		return RunStatusPartial
	}
}

// Stats is the dashboard view over all postings
type Stats struct {
	Total      int  `json:"total_postings"`
	Completed  int  `json:"total_processed"`
	Pending    int  `json:"total_pending"`
	Processing int  `json:"total_processing"`
	Failed     int  `json:"total_failed"`
	LastRun    *Run `json:"last_run"`
}
