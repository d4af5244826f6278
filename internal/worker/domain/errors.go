package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMessage is returned when a delivery body cannot be decoded
	ErrInvalidMessage = errors.New("invalid trigger message")

	// ErrPostingGone is returned when the posting named by a message no longer exists
	ErrPostingGone = errors.New("job posting no longer exists")
)

// RequeueError marks a trigger that never reached an attempt, or whose
// attempt could not be recorded, so the message goes back on the queue
type RequeueError struct {
	PostingID string
	Err       error
}

func (e *RequeueError) Error() string {
	return fmt.Sprintf("requeue posting %s: %v", e.PostingID, e.Err)
}

func (e *RequeueError) Unwrap() error {
	return e.Err
}

// Requeue wraps err for postingID
func Requeue(postingID string, err error) error {
	return &RequeueError{PostingID: postingID, Err: err}
}
