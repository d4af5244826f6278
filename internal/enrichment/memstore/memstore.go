// Package memstore is an in-memory record store with the same conditional
// update semantics as the Postgres store. It backs local runs without a
// database and the processor tests.
package memstore

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cuongbtq/job-enricher/internal/enrichment/domain"
	"github.com/cuongbtq/job-enricher/internal/enrichment/storage"
	"github.com/google/uuid"
)

// Store keeps postings, runs and logs in memory behind one mutex
type Store struct {
	mu        sync.Mutex
	postings  map[string]*domain.JobPosting
	runs      []*domain.Run
	logs      []*domain.LogEntry
	nextLogID int64
}

// New creates an empty store
func New() *Store {
	return &Store{
		postings: make(map[string]*domain.JobPosting),
	}
}

func clonePosting(p *domain.JobPosting) *domain.JobPosting {
	c := *p
	c.Fields = cloneExtraction(&p.Fields)
	return &c
}

func cloneExtraction(e *domain.Extraction) domain.Extraction {
	c := *e
	c.SkillsRequired = append([]string(nil), e.SkillsRequired...)
	c.SkillsNiceToHave = append([]string(nil), e.SkillsNiceToHave...)
	c.Tags = append([]string(nil), e.Tags...)
	return c
}

func cloneRun(r *domain.Run) *domain.Run {
	c := *r
	return &c
}

// Put inserts or replaces a posting as given
func (s *Store) Put(p *domain.JobPosting) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.postings[p.ID] = clonePosting(p)
}

func eligible(p *domain.JobPosting, staleBefore time.Time) bool {
	if p.Status.Claimable() {
		return true
	}
	return p.Status == domain.StatusProcessing && p.ClaimedAt != nil && p.ClaimedAt.Before(staleBefore)
}

// GetPosting retrieves a posting by its ID
func (s *Store) GetPosting(_ context.Context, id string) (*domain.JobPosting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.postings[id]
	if !ok {
		return nil, domain.ErrPostingNotFound
	}
	return clonePosting(p), nil
}

// ClaimPosting moves an eligible posting into processing
func (s *Store) ClaimPosting(_ context.Context, id string, now, staleBefore time.Time) (*domain.JobPosting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.postings[id]
	if !ok || !eligible(p, staleBefore) {
		return nil, domain.ErrClaimConflict
	}

	claimedAt := now
	p.Status = domain.StatusProcessing
	p.ClaimedAt = &claimedAt
	return clonePosting(p), nil
}

// CompletePosting stores the enriched fields if the posting is still processing
func (s *Store) CompletePosting(_ context.Context, id string, fields *domain.Extraction, modelVersion, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.postings[id]
	if !ok || p.Status != domain.StatusProcessing {
		return domain.ErrReleaseSkipped
	}

	platform := p.PlatformName
	url := p.URL
	p.Fields = cloneExtraction(fields)
	p.Fields.PlatformName = &platform
	p.Fields.URL = &url
	p.Status = domain.StatusCompleted
	p.ClaimedAt = nil
	p.ModelVersion = &modelVersion
	p.Notes = &note
	return nil
}

// FailPosting marks a processing posting as failed
func (s *Store) FailPosting(_ context.Context, id, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.postings[id]
	if !ok || p.Status != domain.StatusProcessing {
		return domain.ErrReleaseSkipped
	}

	p.Status = domain.StatusFailed
	p.ClaimedAt = nil
	p.Notes = &note
	return nil
}

func (s *Store) sortedAsc(keep func(*domain.JobPosting) bool) []*domain.JobPosting {
	var out []*domain.JobPosting
	for _, p := range s.postings {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScrapedAt.Equal(out[j].ScrapedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ScrapedAt.Before(out[j].ScrapedAt)
	})
	return out
}

func limitClone(in []*domain.JobPosting, limit int) []*domain.JobPosting {
	if limit >= 0 && len(in) > limit {
		in = in[:limit]
	}
	out := make([]*domain.JobPosting, len(in))
	for i, p := range in {
		out[i] = clonePosting(p)
	}
	return out
}

// ListEligible returns claimable postings, oldest scraped first
func (s *Store) ListEligible(_ context.Context, staleBefore time.Time, limit int) ([]*domain.JobPosting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return limitClone(s.sortedAsc(func(p *domain.JobPosting) bool {
		return eligible(p, staleBefore)
	}), limit), nil
}

// ListPending returns postings that are not completed yet, oldest first
func (s *Store) ListPending(_ context.Context, limit int) ([]*domain.JobPosting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return limitClone(s.sortedAsc(func(p *domain.JobPosting) bool {
		return p.Status != domain.StatusCompleted
	}), limit), nil
}

// CreatePosting inserts a new pending posting
func (s *Store) CreatePosting(_ context.Context, in *domain.NewPosting, now time.Time) (*domain.JobPosting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.postings {
		if p.URL == in.URL {
			return nil, domain.ErrDuplicatePosting
		}
	}

	platform := in.PlatformName
	url := in.URL
	p := &domain.JobPosting{
		ID:           uuid.New().String(),
		PlatformName: in.PlatformName,
		URL:          in.URL,
		RawText:      in.RawText,
		ScrapedAt:    now,
		Status:       domain.StatusPending,
		Fields: domain.Extraction{
			PlatformName: &platform,
			URL:          &url,
			JobTitle:     in.JobTitle,
			CompanyName:  in.CompanyName,
			LocationText: in.LocationText,
		},
	}
	s.postings[p.ID] = p

	return clonePosting(p), nil
}

// DeletePosting removes a posting unless an attempt currently holds it
func (s *Store) DeletePosting(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.postings[id]
	if !ok {
		return domain.ErrPostingNotFound
	}
	if p.Status == domain.StatusProcessing {
		return domain.ErrPostingBusy
	}

	delete(s.postings, id)
	return nil
}

func containsFold(field *string, needle string) bool {
	if field == nil {
		return false
	}
	return strings.Contains(strings.ToLower(*field), strings.ToLower(needle))
}

// ListPostings returns postings newest first, one more than the page size
func (s *Store) ListPostings(_ context.Context, filter storage.PostingFilter) ([]*domain.JobPosting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.JobPosting
	for _, p := range s.postings {
		if len(filter.Platforms) > 0 && !slices.Contains(filter.Platforms, p.PlatformName) {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, string(p.Status)) {
			continue
		}
		if filter.JobTitle != "" && !containsFold(p.Fields.JobTitle, filter.JobTitle) {
			continue
		}
		if filter.CompanyName != "" && !containsFold(p.Fields.CompanyName, filter.CompanyName) {
			continue
		}
		if c := filter.Cursor; c != nil {
			if p.ScrapedAt.After(c.ScrapedAt) || (p.ScrapedAt.Equal(c.ScrapedAt) && p.ID >= c.ID) {
				continue
			}
		}
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ScrapedAt.Equal(out[j].ScrapedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].ScrapedAt.After(out[j].ScrapedAt)
	})

	return limitClone(out, filter.PageSize+1), nil
}

// ListPlatforms returns the distinct platform names
func (s *Store) ListPlatforms(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	var platforms []string
	for _, p := range s.postings {
		if _, ok := seen[p.PlatformName]; ok {
			continue
		}
		seen[p.PlatformName] = struct{}{}
		platforms = append(platforms, p.PlatformName)
	}
	sort.Strings(platforms)
	return platforms, nil
}

// BackfillStatuses assigns pending to postings without a valid status
func (s *Store) BackfillStatuses(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, p := range s.postings {
		if !p.Status.Valid() {
			p.Status = domain.StatusPending
			p.ClaimedAt = nil
			n++
		}
	}
	return n, nil
}

// ResetAll puts every posting back into pending and clears notes
func (s *Store) ResetAll(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.postings {
		p.Status = domain.StatusPending
		p.ClaimedAt = nil
		p.Notes = nil
	}
	return int64(len(s.postings)), nil
}

// Stats counts postings per status and attaches the most recent run
func (s *Store) Stats(_ context.Context) (*domain.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &domain.Stats{Total: len(s.postings)}
	for _, p := range s.postings {
		switch p.Status {
		case domain.StatusCompleted:
			stats.Completed++
		case domain.StatusProcessing:
			stats.Processing++
		case domain.StatusFailed:
			stats.Failed++
		default:
			stats.Pending++
		}
	}
	if len(s.runs) > 0 {
		stats.LastRun = cloneRun(s.runs[len(s.runs)-1])
	}
	return stats, nil
}

// InsertLog appends an outcome log entry
func (s *Store) InsertLog(_ context.Context, entry *domain.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextLogID++
	c := *entry
	c.ID = s.nextLogID
	s.logs = append(s.logs, &c)
	return nil
}

// ListLogs returns log entries newest first
func (s *Store) ListLogs(_ context.Context, filter domain.LogFilter) ([]*domain.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = storage.DefaultLogLimit
	}

	var out []*domain.LogEntry
	for i := len(s.logs) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.logs[i]
		if filter.PostingID != "" && e.PostingID != filter.PostingID {
			continue
		}
		if filter.RunID != "" && (e.RunID == nil || *e.RunID != filter.RunID) {
			continue
		}
		c := *e
		out = append(out, &c)
	}
	return out, nil
}

// CreateRun records the start of a batch
func (s *Store) CreateRun(_ context.Context, startedAt time.Time) (*domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := &domain.Run{
		ID:        uuid.New().String(),
		Status:    domain.RunStatusRunning,
		StartedAt: startedAt,
	}
	s.runs = append(s.runs, run)
	return cloneRun(run), nil
}

// FinishRun closes a batch with its final counters
func (s *Store) FinishRun(_ context.Context, runID string, summary *domain.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.runs {
		if r.ID != runID {
			continue
		}
		finished := summary.FinishedAt
		r.Status = summary.Status
		r.FinishedAt = &finished
		r.TotalSelected = summary.TotalSelected
		r.TotalSuccess = summary.TotalSuccess
		r.TotalError = summary.TotalError
		r.Notes = summary.Notes
		return nil
	}
	return domain.ErrRunNotFound
}

// LatestRun returns the most recently started run
func (s *Store) LatestRun(_ context.Context) (*domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.runs) == 0 {
		return nil, domain.ErrRunNotFound
	}
	return cloneRun(s.runs[len(s.runs)-1]), nil
}

// Logs returns a copy of every log entry in insertion order
func (s *Store) Logs() []*domain.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.LogEntry, len(s.logs))
	for i, e := range s.logs {
		c := *e
		out[i] = &c
	}
	return out
}

// Runs returns a copy of every run in creation order
func (s *Store) Runs() []*domain.Run {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Run, len(s.runs))
	for i, r := range s.runs {
		out[i] = cloneRun(r)
	}
	return out
}
