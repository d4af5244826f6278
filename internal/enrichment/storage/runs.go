package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/cuongbtq/job-enricher/internal/enrichment/domain"
	"github.com/google/uuid"
)

const runColumns = `id, status, started_at, finished_at, total_selected, total_success, total_error, notes`

type runRow struct {
	ID            string     `db:"id"`
	Status        string     `db:"status"`
	StartedAt     time.Time  `db:"started_at"`
	FinishedAt    *time.Time `db:"finished_at"`
	TotalSelected int        `db:"total_selected"`
	TotalSuccess  int        `db:"total_success"`
	TotalError    int        `db:"total_error"`
	Notes         *string    `db:"notes"`
}

func (r *runRow) toDomain() *domain.Run {
	return &domain.Run{
		ID:            r.ID,
		Status:        domain.RunStatus(r.Status),
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
		TotalSelected: r.TotalSelected,
		TotalSuccess:  r.TotalSuccess,
		TotalError:    r.TotalError,
		Notes:         r.Notes,
	}
}

// CreateRun records the start of a batch
func (s *Storage) CreateRun(ctx context.Context, startedAt time.Time) (*domain.Run, error) {
	query := `
		INSERT INTO llm_runs (id, status, started_at)
		VALUES ($1, $2, $3)
		RETURNING ` + runColumns

	var row runRow
	if err := s.db.GetContext(ctx, &row, query, uuid.New().String(), domain.RunStatusRunning, startedAt); err != nil {
		return nil, domain.NewStoreError("failed to create run", err)
	}

	s.logger.Info("Processing run started",
		slog.String("run_id", row.ID),
	)

	return row.toDomain(), nil
}

// FinishRun closes a batch with its final counters
func (s *Storage) FinishRun(ctx context.Context, runID string, summary *domain.RunSummary) error {
	query := `
		UPDATE llm_runs
		SET status = $2,
		    finished_at = $3,
		    total_selected = $4,
		    total_success = $5,
		    total_error = $6,
		    notes = $7
		WHERE id = $1
	`

	_, err := s.db.ExecContext(ctx, query,
		runID,
		summary.Status,
		summary.FinishedAt,
		summary.TotalSelected,
		summary.TotalSuccess,
		summary.TotalError,
		summary.Notes,
	)
	if err != nil {
		return domain.NewStoreError("failed to finish run", err)
	}

	s.logger.Info("Processing run finished",
		slog.String("run_id", runID),
		slog.String("status", string(summary.Status)),
		slog.Int("total_selected", summary.TotalSelected),
		slog.Int("total_success", summary.TotalSuccess),
		slog.Int("total_error", summary.TotalError),
	)

	return nil
}

// LatestRun returns the most recently started run
func (s *Storage) LatestRun(ctx context.Context) (*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM llm_runs ORDER BY started_at DESC LIMIT 1`

	var row runRow
	if err := s.db.GetContext(ctx, &row, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, domain.NewStoreError("failed to get latest run", err)
	}

	return row.toDomain(), nil
}
