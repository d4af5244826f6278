package domain

import "fmt"

// Status is the processing state of a job posting
type Status string

// Posting status constants
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Statuses lists every valid status in lifecycle order
var Statuses = []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Claimable reports whether a posting in this status may be claimed without
// looking at the claim timestamp
func (s Status) Claimable() bool {
	return s == StatusPending || s == StatusFailed
}

func (s Status) String() string {
	return string(s)
}

// ParseStatus converts a raw value into a Status
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown posting status %q", raw)
	}
	return s, nil
}
