package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/job-enricher/internal/enrichment/domain"
)

// DefaultLogLimit is used when a log listing does not set a limit
const DefaultLogLimit = 100

type logRow struct {
	ID          int64     `db:"id"`
	CreatedAt   time.Time `db:"created_at"`
	PostingID   *string   `db:"job_posting_id"`
	RunID       *string   `db:"run_id"`
	Level       string    `db:"level"`
	Message     string    `db:"message"`
	DurationMS  *int64    `db:"duration_ms"`
	JobTitle    *string   `db:"job_title"`
	CompanyName *string   `db:"company_name"`
	Details     []byte    `db:"details"`
}

// toDomain converts the row. Undecodable details are returned as an error
// alongside the entry, which is still usable without them.
func (r *logRow) toDomain() (*domain.LogEntry, error) {
	entry := &domain.LogEntry{
		ID:          r.ID,
		CreatedAt:   r.CreatedAt,
		RunID:       r.RunID,
		Level:       domain.LogLevel(r.Level),
		Message:     r.Message,
		DurationMS:  r.DurationMS,
		JobTitle:    r.JobTitle,
		CompanyName: r.CompanyName,
	}
	if r.PostingID != nil {
		entry.PostingID = *r.PostingID
	}
	if len(r.Details) > 0 {
		if err := json.Unmarshal(r.Details, &entry.Details); err != nil {
			return entry, err
		}
	}
	return entry, nil
}

// InsertLog appends an outcome log entry
func (s *Storage) InsertLog(ctx context.Context, entry *domain.LogEntry) error {
	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to marshal log details: %w", err)
	}

	query := `
		INSERT INTO llm_logs (
			created_at, job_posting_id, run_id, level, message,
			duration_ms, job_title, company_name, details
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9
		)
	`

	_, err = s.db.ExecContext(ctx, query,
		entry.CreatedAt,
		entry.PostingID,
		entry.RunID,
		entry.Level,
		entry.Message,
		entry.DurationMS,
		entry.JobTitle,
		entry.CompanyName,
		detailsJSON,
	)
	if err != nil {
		return domain.NewStoreError("failed to insert log entry", err)
	}

	return nil
}

// ListLogs returns log entries newest first
func (s *Storage) ListLogs(ctx context.Context, filter domain.LogFilter) ([]*domain.LogEntry, error) {
	query := `
		SELECT id, created_at, job_posting_id, run_id, level, message,
		       duration_ms, job_title, company_name, details
		FROM llm_logs
		WHERE 1=1
	`
	args := []interface{}{}
	argIdx := 1

	if filter.PostingID != "" {
		query += fmt.Sprintf(" AND job_posting_id = $%d", argIdx)
		args = append(args, filter.PostingID)
		argIdx++
	}

	if filter.RunID != "" {
		query += fmt.Sprintf(" AND run_id = $%d", argIdx)
		args = append(args, filter.RunID)
		argIdx++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultLogLimit
	}

	query += " ORDER BY created_at DESC, id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	var rows []logRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, domain.NewStoreError("failed to list log entries", err)
	}

	entries := make([]*domain.LogEntry, len(rows))
	for i := range rows {
		entry, err := rows[i].toDomain()
		if err != nil {
			s.logger.Warn("Failed to decode log details",
				slog.Int64("log_id", rows[i].ID),
				slog.String("error", err.Error()),
			)
		}
		entries[i] = entry
	}

	return entries, nil
}
