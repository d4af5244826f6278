package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/job-enricher/internal/enrichment/domain"
	"github.com/cuongbtq/job-enricher/internal/enrichment/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }

type fakeEnricher struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
	fn    func(ctx context.Context, in domain.Input) (*domain.Extraction, error)
}

func newFakeEnricher() *fakeEnricher {
	return &fakeEnricher{
		calls: make(map[string]int),
		fail:  make(map[string]error),
	}
}

func (f *fakeEnricher) Extract(ctx context.Context, in domain.Input) (*domain.Extraction, error) {
	f.mu.Lock()
	f.calls[in.URL]++
	failErr := f.fail[in.URL]
	fn := f.fn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, in)
	}
	if failErr != nil {
		return nil, failErr
	}
	return &domain.Extraction{
		JobTitle:       strPtr("Go Engineer"),
		CompanyName:    strPtr("ACME"),
		SkillsRequired: []string{"go"},
	}, nil
}

func (f *fakeEnricher) ModelVersion() string { return "test-model" }

func (f *fakeEnricher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type fixture struct {
	store    *memstore.Store
	enricher *fakeEnricher
	clock    *FixedClock
	proc     *Processor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memstore.New()
	enricher := newFakeEnricher()
	clock := NewFixedClock(testNow)
	proc := New(store, enricher, clock, Config{
		ClaimTimeout:  5 * time.Minute,
		FetchAttempts: 3,
		FetchBackoff:  time.Millisecond,
	}, discardLogger())

	return &fixture{store: store, enricher: enricher, clock: clock, proc: proc}
}

func (f *fixture) withStore(s Store) *Processor {
	return New(s, f.enricher, f.clock, Config{
		ClaimTimeout:  5 * time.Minute,
		FetchAttempts: 3,
		FetchBackoff:  time.Millisecond,
	}, discardLogger())
}

func (f *fixture) put(id string, status domain.Status, claimedAt *time.Time, scrapedOffset time.Duration) *domain.JobPosting {
	p := &domain.JobPosting{
		ID:           id,
		PlatformName: "linkedin",
		URL:          "https://example.com/jobs/" + id,
		RawText:      "raw text for " + id,
		ScrapedAt:    testNow.Add(-time.Hour + scrapedOffset),
		Status:       status,
		ClaimedAt:    claimedAt,
	}
	f.store.Put(p)
	return p
}

func (f *fixture) get(t *testing.T, id string) *domain.JobPosting {
	t.Helper()
	p, err := f.store.GetPosting(context.Background(), id)
	require.NoError(t, err)
	return p
}

func ago(d time.Duration) *time.Time {
	t := testNow.Add(-d)
	return &t
}

func TestProcessOne_Success(t *testing.T) {
	f := newFixture(t)
	f.put("p1", domain.StatusPending, nil, 0)

	res, err := f.proc.ProcessOne(context.Background(), "p1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, OutcomeProcessed, res.Outcome)

	p := f.get(t, "p1")
	assert.Equal(t, domain.StatusCompleted, p.Status)
	assert.True(t, p.Processed())
	assert.Nil(t, p.ClaimedAt)
	require.NotNil(t, p.ModelVersion)
	assert.Equal(t, "test-model", *p.ModelVersion)
	require.NotNil(t, p.Notes)
	assert.True(t, strings.HasPrefix(*p.Notes, "Processed successfully at "))
	assert.Equal(t, "Go Engineer", *p.Fields.JobTitle)

	logs := f.store.Logs()
	require.Len(t, logs, 2)
	assert.Equal(t, "Processing job posting", logs[0].Message)
	assert.Equal(t, domain.LogLevelInfo, logs[1].Level)
	assert.Equal(t, "Processed successfully", logs[1].Message)
	require.NotNil(t, logs[1].DurationMS)
	assert.Equal(t, "ACME", *logs[1].CompanyName)
}

func TestProcessOne_TriggerSourceTexts(t *testing.T) {
	f := newFixture(t)
	f.put("p1", domain.StatusPending, nil, 0)

	_, err := f.proc.ProcessOne(context.Background(), "p1", WithSource(SourceTrigger))
	require.NoError(t, err)

	p := f.get(t, "p1")
	assert.True(t, strings.HasPrefix(*p.Notes, "Auto-processed from extension at "))

	logs := f.store.Logs()
	require.Len(t, logs, 2)
	assert.Equal(t, "Auto-processing started (from extension)", logs[0].Message)
	assert.Equal(t, "extension", logs[0].Details["trigger"])
	assert.Equal(t, "Auto-processed successfully (from extension)", logs[1].Message)
}

func TestProcessOne_AlreadyProcessed(t *testing.T) {
	f := newFixture(t)
	f.put("p1", domain.StatusCompleted, nil, 0)

	for i := 0; i < 3; i++ {
		res, err := f.proc.ProcessOne(context.Background(), "p1")
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, OutcomeAlreadyProcessed, res.Outcome)
	}

	assert.Equal(t, 0, f.enricher.totalCalls())
	assert.Empty(t, f.store.Logs())
}

func TestProcessOne_ClaimTimeoutBoundary(t *testing.T) {
	timeout := 5 * time.Minute

	tests := []struct {
		name      string
		claimedAt *time.Time
		want      Outcome
		calls     int
	}{
		{"claim one second short of timeout is live", ago(timeout - time.Second), OutcomeAlreadyProcessing, 0},
		{"claim exactly at timeout is live", ago(timeout), OutcomeAlreadyProcessing, 0},
		{"claim one second past timeout is reclaimed", ago(timeout + time.Second), OutcomeProcessed, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.put("p1", domain.StatusProcessing, tt.claimedAt, 0)

			res, err := f.proc.ProcessOne(context.Background(), "p1")
			require.NoError(t, err)
			assert.True(t, res.Success)
			assert.Equal(t, tt.want, res.Outcome)
			assert.Equal(t, tt.calls, f.enricher.totalCalls())

			if tt.want == OutcomeAlreadyProcessing {
				p := f.get(t, "p1")
				assert.Equal(t, domain.StatusProcessing, p.Status)
				assert.True(t, tt.claimedAt.Equal(*p.ClaimedAt))
			}
		})
	}
}

func TestProcessOne_FailureLeavesPostingRetryable(t *testing.T) {
	f := newFixture(t)
	posting := f.put("p1", domain.StatusPending, nil, 0)
	f.enricher.fail[posting.URL] = errors.New("model timed out")

	res, err := f.proc.ProcessOne(context.Background(), "p1")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, "model timed out", res.Error)

	p := f.get(t, "p1")
	assert.Equal(t, domain.StatusFailed, p.Status)
	assert.Nil(t, p.ClaimedAt)
	assert.Equal(t, "Parsing failed: model timed out", *p.Notes)

	logs := f.store.Logs()
	require.Len(t, logs, 2)
	assert.Equal(t, domain.LogLevelError, logs[1].Level)
	assert.Equal(t, "model timed out", logs[1].Details["error"])

	delete(f.enricher.fail, posting.URL)

	batch, err := f.proc.ProcessPending(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 1, batch.TotalSelected)
	assert.Equal(t, 1, batch.TotalSuccess)
	assert.Equal(t, domain.StatusCompleted, f.get(t, "p1").Status)
}

func TestProcessOne_EmptyExtractionFails(t *testing.T) {
	f := newFixture(t)
	f.put("p1", domain.StatusPending, nil, 0)
	f.enricher.fn = func(context.Context, domain.Input) (*domain.Extraction, error) {
		return &domain.Extraction{PlatformName: strPtr("linkedin")}, nil
	}

	res, err := f.proc.ProcessOne(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, domain.ErrEmptyExtraction.Error(), res.Error)
	assert.Equal(t, domain.StatusFailed, f.get(t, "p1").Status)
}

// countingStore lets tests intercept individual store calls
type countingStore struct {
	*memstore.Store

	mu          sync.Mutex
	gets        int
	hideFor     int
	completeErr error
	logErr      error
	listErr     error
}

func (s *countingStore) GetPosting(ctx context.Context, id string) (*domain.JobPosting, error) {
	s.mu.Lock()
	s.gets++
	hidden := s.gets <= s.hideFor
	s.mu.Unlock()

	if hidden {
		return nil, domain.ErrPostingNotFound
	}
	return s.Store.GetPosting(ctx, id)
}

func (s *countingStore) CompletePosting(ctx context.Context, id string, fields *domain.Extraction, modelVersion, note string) error {
	if s.completeErr != nil {
		return s.completeErr
	}
	return s.Store.CompletePosting(ctx, id, fields, modelVersion, note)
}

func (s *countingStore) InsertLog(ctx context.Context, entry *domain.LogEntry) error {
	if s.logErr != nil {
		return s.logErr
	}
	return s.Store.InsertLog(ctx, entry)
}

func (s *countingStore) ListEligible(ctx context.Context, staleBefore time.Time, limit int) ([]*domain.JobPosting, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.Store.ListEligible(ctx, staleBefore, limit)
}

func TestProcessOne_NotFoundAfterRetries(t *testing.T) {
	f := newFixture(t)
	store := &countingStore{Store: f.store}
	proc := f.withStore(store)

	res, err := proc.ProcessOne(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrPostingNotFound)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, OutcomeNotFound, res.Outcome)
	assert.Equal(t, 3, store.gets)
	assert.Empty(t, f.store.Logs())
	assert.Equal(t, 0, f.enricher.totalCalls())
}

func TestProcessOne_ToleratesReadAfterWriteLag(t *testing.T) {
	f := newFixture(t)
	f.put("p1", domain.StatusPending, nil, 0)
	store := &countingStore{Store: f.store, hideFor: 2}
	proc := f.withStore(store)

	res, err := proc.ProcessOne(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.Equal(t, 3, store.gets)
}

func TestProcessOne_StoreFailureOnReleasePropagates(t *testing.T) {
	f := newFixture(t)
	f.put("p1", domain.StatusPending, nil, 0)
	store := &countingStore{Store: f.store, completeErr: domain.NewStoreError("complete", errors.New("connection lost"))}
	proc := f.withStore(store)

	res, err := proc.ProcessOne(context.Background(), "p1")
	require.Error(t, err)
	assert.Nil(t, res)

	var storeErr *domain.StoreError
	assert.True(t, errors.As(err, &storeErr))

	// the claim stays in place until it goes stale
	p := f.get(t, "p1")
	assert.Equal(t, domain.StatusProcessing, p.Status)
	assert.NotNil(t, p.ClaimedAt)
}

func TestProcessOne_LogFailureDoesNotFailAttempt(t *testing.T) {
	f := newFixture(t)
	f.put("p1", domain.StatusPending, nil, 0)
	store := &countingStore{Store: f.store, logErr: errors.New("log table locked")}
	proc := f.withStore(store)

	res, err := proc.ProcessOne(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.Equal(t, domain.StatusCompleted, f.get(t, "p1").Status)
}

func TestProcessOne_ReleaseAfterTakeoverIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.put("p1", domain.StatusPending, nil, 0)

	// another attempt finishes the posting while this one is still enriching
	f.enricher.fn = func(ctx context.Context, in domain.Input) (*domain.Extraction, error) {
		require.NoError(t, f.store.CompletePosting(ctx, "p1", &domain.Extraction{JobTitle: strPtr("Other")}, "other-model", "other attempt"))
		return &domain.Extraction{JobTitle: strPtr("Mine")}, nil
	}

	res, err := f.proc.ProcessOne(context.Background(), "p1")
	require.NoError(t, err)
	assert.True(t, res.Success)

	p := f.get(t, "p1")
	assert.Equal(t, "Other", *p.Fields.JobTitle)
	assert.Equal(t, "other attempt", *p.Notes)
}

func TestProcessOne_MutualExclusion(t *testing.T) {
	f := newFixture(t)
	f.put("p1", domain.StatusPending, nil, 0)

	release := make(chan struct{})
	f.enricher.fn = func(ctx context.Context, in domain.Input) (*domain.Extraction, error) {
		<-release
		return &domain.Extraction{JobTitle: strPtr("Go Engineer")}, nil
	}

	const workers = 10
	results := make(chan *Result, workers)
	for i := 0; i < workers; i++ {
		go func() {
			res, err := f.proc.ProcessOne(context.Background(), "p1")
			if err != nil {
				res = &Result{Outcome: Outcome("error: " + err.Error())}
			}
			results <- res
		}()
	}

	counts := make(map[Outcome]int)
	for i := 0; i < workers-1; i++ {
		counts[(<-results).Outcome]++
	}
	close(release)
	counts[(<-results).Outcome]++

	assert.Equal(t, 1, counts[OutcomeProcessed])
	assert.Equal(t, workers-1, counts[OutcomeAlreadyProcessing])
	assert.Equal(t, 1, f.enricher.totalCalls())
}

func TestProcessPending_Accounting(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		p := f.put(fmt.Sprintf("p%d", i), domain.StatusPending, nil, time.Duration(i)*time.Minute)
		if i == 1 || i == 3 {
			f.enricher.fail[p.URL] = errors.New("bad json")
		}
	}

	res, err := f.proc.ProcessPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 5, res.TotalSelected)
	assert.Equal(t, 3, res.TotalSuccess)
	assert.Equal(t, 2, res.TotalError)
	assert.Equal(t, "partial", res.Status)

	runs := f.store.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].ID)
	assert.Equal(t, domain.RunStatusPartial, runs[0].Status)
	assert.Equal(t, 5, runs[0].TotalSelected)
	assert.Equal(t, 3, runs[0].TotalSuccess)
	assert.Equal(t, 2, runs[0].TotalError)
	assert.NotNil(t, runs[0].FinishedAt)

	for _, entry := range f.store.Logs() {
		require.NotNil(t, entry.RunID)
		assert.Equal(t, res.RunID, *entry.RunID)
	}
}

func TestProcessPending_Statuses(t *testing.T) {
	tests := []struct {
		name  string
		total int
		fail  int
		want  string
	}{
		{"all succeed", 3, 0, "success"},
		{"all fail", 2, 2, "error"},
		{"mixed", 3, 1, "partial"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			for i := 0; i < tt.total; i++ {
				p := f.put(fmt.Sprintf("p%d", i), domain.StatusPending, nil, time.Duration(i)*time.Minute)
				if i < tt.fail {
					f.enricher.fail[p.URL] = errors.New("boom")
				}
			}

			res, err := f.proc.ProcessPending(context.Background(), 10)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Status)
		})
	}
}

func TestProcessPending_EmptyShortCircuit(t *testing.T) {
	f := newFixture(t)
	f.put("done", domain.StatusCompleted, nil, 0)
	f.put("busy", domain.StatusProcessing, ago(time.Minute), 0)

	res, err := f.proc.ProcessPending(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, res.Status)
	assert.Equal(t, 0, res.TotalSelected)
	assert.Empty(t, res.RunID)

	assert.Empty(t, f.store.Logs())
	assert.Empty(t, f.store.Runs())
	assert.Equal(t, 0, f.enricher.totalCalls())
}

func TestProcessPending_RespectsLimitAndOrder(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.put(fmt.Sprintf("p%d", i), domain.StatusPending, nil, time.Duration(i)*time.Minute)
	}

	res, err := f.proc.ProcessPending(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalSelected)

	assert.Equal(t, domain.StatusCompleted, f.get(t, "p0").Status)
	assert.Equal(t, domain.StatusCompleted, f.get(t, "p1").Status)
	assert.Equal(t, domain.StatusPending, f.get(t, "p2").Status)
}

func TestProcessPending_ClaimLossIsNotCounted(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.put(fmt.Sprintf("p%d", i), domain.StatusPending, nil, time.Duration(i)*time.Minute)
	}

	// while p0 is enriched a concurrent worker claims p1
	f.enricher.fn = func(ctx context.Context, in domain.Input) (*domain.Extraction, error) {
		if strings.HasSuffix(in.URL, "/p0") {
			_, err := f.store.ClaimPosting(ctx, "p1", testNow, testNow.Add(-5*time.Minute))
			require.NoError(t, err)
		}
		return &domain.Extraction{JobTitle: strPtr("x")}, nil
	}

	res, err := f.proc.ProcessPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalSelected)
	assert.Equal(t, 2, res.TotalSuccess)
	assert.Equal(t, 1, res.TotalSkipped)
	assert.Equal(t, "success", res.Status)
}

func TestProcessPending_ListFailureAborts(t *testing.T) {
	f := newFixture(t)
	store := &countingStore{Store: f.store, listErr: errors.New("db down")}
	proc := f.withStore(store)

	_, err := proc.ProcessPending(context.Background(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Empty(t, f.store.Runs())
}

func TestResetAndProcess(t *testing.T) {
	f := newFixture(t)
	f.put("p0", domain.StatusCompleted, nil, 0)
	f.put("p1", domain.StatusFailed, nil, time.Minute)

	n, res, err := f.proc.ResetAndProcess(context.Background(), f.store, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 2, res.TotalSuccess)
	assert.Equal(t, 2, f.enricher.totalCalls())
}

// ctxStore rejects writes on a finished context, as database/sql does
type ctxStore struct {
	*memstore.Store
}

func (s *ctxStore) CompletePosting(ctx context.Context, id string, fields *domain.Extraction, modelVersion, note string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Store.CompletePosting(ctx, id, fields, modelVersion, note)
}

func (s *ctxStore) FailPosting(ctx context.Context, id, note string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Store.FailPosting(ctx, id, note)
}

func (s *ctxStore) InsertLog(ctx context.Context, entry *domain.LogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Store.InsertLog(ctx, entry)
}

func TestProcessOne_TimedOutAttemptIsReleased(t *testing.T) {
	f := newFixture(t)
	f.put("p1", domain.StatusPending, nil, 0)
	proc := f.withStore(&ctxStore{Store: f.store})

	f.enricher.fn = func(ctx context.Context, in domain.Input) (*domain.Extraction, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res, err := proc.ProcessOne(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Contains(t, res.Error, context.DeadlineExceeded.Error())

	p := f.get(t, "p1")
	assert.Equal(t, domain.StatusFailed, p.Status)
	assert.Nil(t, p.ClaimedAt)

	logs := f.store.Logs()
	require.Len(t, logs, 2)
	assert.Equal(t, "Processing failed", logs[1].Message)
}

func TestProcessOne_CancelledAfterEnrichmentStillCompletes(t *testing.T) {
	f := newFixture(t)
	f.put("p1", domain.StatusPending, nil, 0)
	proc := f.withStore(&ctxStore{Store: f.store})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.enricher.fn = func(context.Context, domain.Input) (*domain.Extraction, error) {
		cancel()
		return &domain.Extraction{JobTitle: strPtr("Go Engineer")}, nil
	}

	res, err := proc.ProcessOne(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, res.Outcome)

	p := f.get(t, "p1")
	assert.Equal(t, domain.StatusCompleted, p.Status)
	assert.Nil(t, p.ClaimedAt)
	assert.Len(t, f.store.Logs(), 2)
}

func TestProcessPending_CancelFinishesCurrentPosting(t *testing.T) {
	f := newFixture(t)
	f.put("p1", domain.StatusPending, nil, 0)
	f.put("p2", domain.StatusPending, nil, time.Minute)
	proc := f.withStore(&ctxStore{Store: f.store})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.enricher.fn = func(ctx context.Context, in domain.Input) (*domain.Extraction, error) {
		cancel()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &domain.Extraction{JobTitle: strPtr("Go Engineer")}, nil
	}

	res, err := proc.ProcessPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalSuccess)
	assert.Equal(t, string(domain.RunStatusError), res.Status)
	assert.Contains(t, res.Message, "Interrupted")

	assert.Equal(t, domain.StatusCompleted, f.get(t, "p1").Status)
	assert.Nil(t, f.get(t, "p1").ClaimedAt)
	assert.Equal(t, domain.StatusPending, f.get(t, "p2").Status)
}
