package processor

import (
	"context"
	"log/slog"
	"time"

	"github.com/cuongbtq/job-enricher/internal/enrichment/domain"
)

// DefaultClaimTimeout is how long a claim stays exclusive before it may be taken over
const DefaultClaimTimeout = 5 * time.Minute

// ClaimManager owns the processing-state transitions of a posting. All
// exclusivity lives in the store's conditional updates; there are no
// in-process locks.
//
// A release is conditional on the posting still being processing but carries
// no claim token. An attempt that outlived its timeout can therefore overwrite
// the result of the attempt that reclaimed the posting if it finishes last.
type ClaimManager struct {
	store   Store
	clock   Clock
	timeout time.Duration
	logger  *slog.Logger
}

// NewClaimManager creates a ClaimManager. A non-positive timeout uses DefaultClaimTimeout.
func NewClaimManager(store Store, clock Clock, timeout time.Duration, logger *slog.Logger) *ClaimManager {
	if timeout <= 0 {
		timeout = DefaultClaimTimeout
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &ClaimManager{
		store:   store,
		clock:   clock,
		timeout: timeout,
		logger:  logger,
	}
}

// StaleBefore returns the instant before which a processing claim is stale
func (m *ClaimManager) StaleBefore() time.Time {
	return m.clock.Now().Add(-m.timeout)
}

// IsLive reports whether p is held by an unexpired claim
func (m *ClaimManager) IsLive(p *domain.JobPosting) bool {
	return p.ClaimLive(m.clock.Now(), m.timeout)
}

// TryClaim atomically moves the posting into processing. It returns
// domain.ErrClaimConflict when another attempt holds a live claim or the
// posting is already completed.
func (m *ClaimManager) TryClaim(ctx context.Context, id string) (*domain.JobPosting, error) {
	now := m.clock.Now()

	p, err := m.store.ClaimPosting(ctx, id, now, now.Add(-m.timeout))
	if err != nil {
		return nil, err
	}

	m.logger.Debug("Job posting claimed",
		slog.String("posting_id", id),
		slog.Time("claimed_at", now),
	)

	return p, nil
}

// ReleaseSuccess completes the posting with the extracted fields. A posting
// that already left processing is logged and left untouched.
func (m *ClaimManager) ReleaseSuccess(ctx context.Context, id string, fields *domain.Extraction, modelVersion, note string) error {
	return m.skipReleased(id, m.store.CompletePosting(ctx, id, fields, modelVersion, note))
}

// ReleaseFailure marks the posting failed with note
func (m *ClaimManager) ReleaseFailure(ctx context.Context, id, note string) error {
	return m.skipReleased(id, m.store.FailPosting(ctx, id, note))
}

func (m *ClaimManager) skipReleased(id string, err error) error {
	if err == nil {
		return nil
	}
	if isReleaseSkipped(err) {
		m.logger.Warn("Release ignored, job posting is no longer processing",
			slog.String("posting_id", id),
		)
		return nil
	}
	return err
}
