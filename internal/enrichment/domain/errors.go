package domain

import "errors"

var (
	// ErrPostingNotFound is returned when a posting does not exist
	ErrPostingNotFound = errors.New("job posting not found")

	// ErrClaimConflict is returned when the conditional claim update matched no row
	ErrClaimConflict = errors.New("job posting is not claimable")

	// ErrReleaseSkipped is returned when a release found the posting no longer processing
	ErrReleaseSkipped = errors.New("job posting is no longer processing")

	// ErrEmptyExtraction is returned when the enrichment service produced no data
	ErrEmptyExtraction = errors.New("enrichment returned no data")

	// ErrDuplicatePosting is returned when a posting with the same URL already exists
	ErrDuplicatePosting = errors.New("job posting with this url already exists")

	// ErrPostingBusy is returned when a posting cannot be changed while an attempt holds it
	ErrPostingBusy = errors.New("job posting is being processed")

	// ErrRunNotFound is returned when no batch run exists
	ErrRunNotFound = errors.New("processing run not found")
)

// EnrichmentError wraps a failure of the enrichment call itself
type EnrichmentError struct {
	Err error
}

func (e *EnrichmentError) Error() string {
	return "enrichment failed: " + e.Err.Error()
}

func (e *EnrichmentError) Unwrap() error {
	return e.Err
}

// StoreError wraps a record store failure. These are transient from the
// caller's point of view and worth retrying later.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError wraps err as a store failure of operation op
func NewStoreError(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
