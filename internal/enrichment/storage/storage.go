package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/job-enricher/internal/enrichment/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Storage handles all database operations for job postings, runs and logs
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

const postingColumns = `
	id, platform_name, url, raw_text, scraped_at,
	COALESCE(llm_status, 'pending') AS llm_status, claimed_at, llm_model_version, llm_notes,
	platform_job_id, job_title, company_name, location_text, work_mode,
	employment_type, seniority_level, domain,
	description_full, responsibilities_text, requirements_text, nice_to_have_text, benefits_text,
	years_of_experience_min, years_of_experience_max, education_level,
	salary_min, salary_max, salary_currency, salary_period,
	skills_required, skills_nice_to_have, tags, posted_at`

type postingRow struct {
	ID           string    `db:"id"`
	PlatformName string    `db:"platform_name"`
	URL          string    `db:"url"`
	RawText      string    `db:"raw_text"`
	ScrapedAt    time.Time `db:"scraped_at"`

	Status       string     `db:"llm_status"`
	ClaimedAt    *time.Time `db:"claimed_at"`
	ModelVersion *string    `db:"llm_model_version"`
	Notes        *string    `db:"llm_notes"`

	PlatformJobID        *string        `db:"platform_job_id"`
	JobTitle             *string        `db:"job_title"`
	CompanyName          *string        `db:"company_name"`
	LocationText         *string        `db:"location_text"`
	WorkMode             *string        `db:"work_mode"`
	EmploymentType       *string        `db:"employment_type"`
	SeniorityLevel       *string        `db:"seniority_level"`
	Domain               *string        `db:"domain"`
	DescriptionFull      *string        `db:"description_full"`
	ResponsibilitiesText *string        `db:"responsibilities_text"`
	RequirementsText     *string        `db:"requirements_text"`
	NiceToHaveText       *string        `db:"nice_to_have_text"`
	BenefitsText         *string        `db:"benefits_text"`
	YearsOfExperienceMin *int           `db:"years_of_experience_min"`
	YearsOfExperienceMax *int           `db:"years_of_experience_max"`
	EducationLevel       *string        `db:"education_level"`
	SalaryMin            *float64       `db:"salary_min"`
	SalaryMax            *float64       `db:"salary_max"`
	SalaryCurrency       *string        `db:"salary_currency"`
	SalaryPeriod         *string        `db:"salary_period"`
	SkillsRequired       pq.StringArray `db:"skills_required"`
	SkillsNiceToHave     pq.StringArray `db:"skills_nice_to_have"`
	Tags                 pq.StringArray `db:"tags"`
	PostedAt             *time.Time     `db:"posted_at"`
}

func (r *postingRow) toDomain() (*domain.JobPosting, error) {
	status, err := domain.ParseStatus(r.Status)
	if err != nil {
		return nil, err
	}

	var postedAt *string
	if r.PostedAt != nil {
		v := r.PostedAt.UTC().Format(time.RFC3339)
		postedAt = &v
	}

	platform := r.PlatformName
	url := r.URL

	return &domain.JobPosting{
		ID:           r.ID,
		PlatformName: r.PlatformName,
		URL:          r.URL,
		RawText:      r.RawText,
		ScrapedAt:    r.ScrapedAt,
		Status:       status,
		ClaimedAt:    r.ClaimedAt,
		ModelVersion: r.ModelVersion,
		Notes:        r.Notes,
		Fields: domain.Extraction{
			PlatformName:         &platform,
			PlatformJobID:        r.PlatformJobID,
			URL:                  &url,
			JobTitle:             r.JobTitle,
			CompanyName:          r.CompanyName,
			LocationText:         r.LocationText,
			WorkMode:             r.WorkMode,
			EmploymentType:       r.EmploymentType,
			SeniorityLevel:       r.SeniorityLevel,
			Domain:               r.Domain,
			DescriptionFull:      r.DescriptionFull,
			ResponsibilitiesText: r.ResponsibilitiesText,
			RequirementsText:     r.RequirementsText,
			NiceToHaveText:       r.NiceToHaveText,
			BenefitsText:         r.BenefitsText,
			YearsOfExperienceMin: r.YearsOfExperienceMin,
			YearsOfExperienceMax: r.YearsOfExperienceMax,
			EducationLevel:       r.EducationLevel,
			SalaryMin:            r.SalaryMin,
			SalaryMax:            r.SalaryMax,
			SalaryCurrency:       r.SalaryCurrency,
			SalaryPeriod:         r.SalaryPeriod,
			SkillsRequired:       []string(r.SkillsRequired),
			SkillsNiceToHave:     []string(r.SkillsNiceToHave),
			Tags:                 []string(r.Tags),
			PostedAt:             postedAt,
		},
	}, nil
}

func rowsToDomain(rows []postingRow) ([]*domain.JobPosting, error) {
	postings := make([]*domain.JobPosting, 0, len(rows))
	for i := range rows {
		p, err := rows[i].toDomain()
		if err != nil {
			return nil, fmt.Errorf("failed to decode posting %s: %w", rows[i].ID, err)
		}
		postings = append(postings, p)
	}
	return postings, nil
}

// textArray never returns nil so NOT NULL array columns get '{}' instead of NULL
func textArray(values []string) pq.StringArray {
	if values == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(values)
}

func pgErrorCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// GetPosting retrieves a posting by its ID
func (s *Storage) GetPosting(ctx context.Context, id string) (*domain.JobPosting, error) {
	query := `SELECT` + postingColumns + `
		FROM job_postings
		WHERE id = $1
	`

	var row postingRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || pgErrorCode(err) == pgerrcode.InvalidTextRepresentation {
			return nil, domain.ErrPostingNotFound
		}
		return nil, domain.NewStoreError("failed to get job posting", err)
	}

	return row.toDomain()
}

// ClaimPosting moves a posting into processing with a single conditional
// update. The update matches only pending/failed postings or processing
// postings whose claim is older than staleBefore.
func (s *Storage) ClaimPosting(ctx context.Context, id string, now, staleBefore time.Time) (*domain.JobPosting, error) {
	query := `
		UPDATE job_postings
		SET llm_status = $2,
		    claimed_at = $3
		WHERE id = $1
		  AND (llm_status IN ($4, $5) OR (llm_status = $2 AND claimed_at < $6))
		RETURNING` + postingColumns

	var row postingRow
	err := s.db.GetContext(ctx, &row, query,
		id,
		domain.StatusProcessing,
		now,
		domain.StatusPending,
		domain.StatusFailed,
		staleBefore,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Debug("Claim update matched no row",
				slog.String("posting_id", id),
			)
			return nil, domain.ErrClaimConflict
		}
		return nil, domain.NewStoreError("failed to claim job posting", err)
	}

	return row.toDomain()
}

// CompletePosting stores the enriched fields and marks the posting completed.
// It only applies while the posting is still processing.
func (s *Storage) CompletePosting(ctx context.Context, id string, fields *domain.Extraction, modelVersion, note string) error {
	query := `
		UPDATE job_postings
		SET llm_status = $2,
		    claimed_at = NULL,
		    llm_model_version = $3,
		    llm_notes = $4,
		    platform_job_id = $5,
		    job_title = $6,
		    company_name = $7,
		    location_text = $8,
		    work_mode = $9,
		    employment_type = $10,
		    seniority_level = $11,
		    domain = $12,
		    description_full = $13,
		    responsibilities_text = $14,
		    requirements_text = $15,
		    nice_to_have_text = $16,
		    benefits_text = $17,
		    years_of_experience_min = $18,
		    years_of_experience_max = $19,
		    education_level = $20,
		    salary_min = $21,
		    salary_max = $22,
		    salary_currency = $23,
		    salary_period = $24,
		    skills_required = $25,
		    skills_nice_to_have = $26,
		    tags = $27,
		    posted_at = $28
		WHERE id = $1 AND llm_status = $29
	`

	result, err := s.db.ExecContext(ctx, query,
		id,
		domain.StatusCompleted,
		modelVersion,
		note,
		fields.PlatformJobID,
		fields.JobTitle,
		fields.CompanyName,
		fields.LocationText,
		fields.WorkMode,
		fields.EmploymentType,
		fields.SeniorityLevel,
		fields.Domain,
		fields.DescriptionFull,
		fields.ResponsibilitiesText,
		fields.RequirementsText,
		fields.NiceToHaveText,
		fields.BenefitsText,
		fields.YearsOfExperienceMin,
		fields.YearsOfExperienceMax,
		fields.EducationLevel,
		fields.SalaryMin,
		fields.SalaryMax,
		fields.SalaryCurrency,
		fields.SalaryPeriod,
		textArray(fields.SkillsRequired),
		textArray(fields.SkillsNiceToHave),
		textArray(fields.Tags),
		fields.PostedAtTime(),
		domain.StatusProcessing,
	)
	if err != nil {
		return domain.NewStoreError("failed to complete job posting", err)
	}

	return s.checkReleased(result, id, domain.StatusCompleted)
}

// FailPosting marks a processing posting as failed with a note
func (s *Storage) FailPosting(ctx context.Context, id, note string) error {
	query := `
		UPDATE job_postings
		SET llm_status = $2,
		    claimed_at = NULL,
		    llm_notes = $3
		WHERE id = $1 AND llm_status = $4
	`

	result, err := s.db.ExecContext(ctx, query, id, domain.StatusFailed, note, domain.StatusProcessing)
	if err != nil {
		return domain.NewStoreError("failed to mark job posting failed", err)
	}

	return s.checkReleased(result, id, domain.StatusFailed)
}

func (s *Storage) checkReleased(result sql.Result, id string, status domain.Status) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return domain.NewStoreError("failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		s.logger.Warn("Release matched no processing row",
			slog.String("posting_id", id),
			slog.String("status", status.String()),
		)
		return domain.ErrReleaseSkipped
	}

	return nil
}

// ListEligible returns claimable postings, oldest scraped first
func (s *Storage) ListEligible(ctx context.Context, staleBefore time.Time, limit int) ([]*domain.JobPosting, error) {
	query := `SELECT` + postingColumns + `
		FROM job_postings
		WHERE llm_status IN ($1, $2)
		   OR (llm_status = $3 AND claimed_at < $4)
		ORDER BY scraped_at ASC, id ASC
		LIMIT $5
	`

	var rows []postingRow
	err := s.db.SelectContext(ctx, &rows, query,
		domain.StatusPending,
		domain.StatusFailed,
		domain.StatusProcessing,
		staleBefore,
		limit,
	)
	if err != nil {
		return nil, domain.NewStoreError("failed to list eligible job postings", err)
	}

	return rowsToDomain(rows)
}

// ListPending returns postings that are not completed yet, oldest first
func (s *Storage) ListPending(ctx context.Context, limit int) ([]*domain.JobPosting, error) {
	query := `SELECT` + postingColumns + `
		FROM job_postings
		WHERE llm_status IS DISTINCT FROM $1
		ORDER BY scraped_at ASC, id ASC
		LIMIT $2
	`

	var rows []postingRow
	if err := s.db.SelectContext(ctx, &rows, query, domain.StatusCompleted, limit); err != nil {
		return nil, domain.NewStoreError("failed to list pending job postings", err)
	}

	return rowsToDomain(rows)
}

// CreatePosting inserts a new pending posting
func (s *Storage) CreatePosting(ctx context.Context, in *domain.NewPosting, now time.Time) (*domain.JobPosting, error) {
	query := `
		INSERT INTO job_postings (
			id, platform_name, url, raw_text, scraped_at,
			llm_status, job_title, company_name, location_text
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9
		)
		RETURNING` + postingColumns

	var row postingRow
	err := s.db.GetContext(ctx, &row, query,
		uuid.New().String(),
		in.PlatformName,
		in.URL,
		in.RawText,
		now,
		domain.StatusPending,
		in.JobTitle,
		in.CompanyName,
		in.LocationText,
	)
	if err != nil {
		if pgErrorCode(err) == pgerrcode.UniqueViolation {
			return nil, domain.ErrDuplicatePosting
		}
		return nil, domain.NewStoreError("failed to create job posting", err)
	}

	s.logger.Info("Job posting created",
		slog.String("posting_id", row.ID),
		slog.String("platform", row.PlatformName),
	)

	return row.toDomain()
}

// DeletePosting removes a posting unless an attempt currently holds it
func (s *Storage) DeletePosting(ctx context.Context, id string) error {
	query := `
		DELETE FROM job_postings
		WHERE id = $1 AND llm_status IS DISTINCT FROM $2
	`

	result, err := s.db.ExecContext(ctx, query, id, domain.StatusProcessing)
	if err != nil {
		if pgErrorCode(err) == pgerrcode.InvalidTextRepresentation {
			return domain.ErrPostingNotFound
		}
		return domain.NewStoreError("failed to delete job posting", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return domain.NewStoreError("failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		if _, err := s.GetPosting(ctx, id); err != nil {
			return err
		}
		return domain.ErrPostingBusy
	}

	return nil
}

// PostingFilter narrows a posting listing. A posting matches when its
// platform is any of Platforms and its status is any of Statuses.
type PostingFilter struct {
	Platforms   []string
	Statuses    []string
	JobTitle    string
	CompanyName string
	PageSize    int
	Cursor      *PostingCursor
}

// PostingCursor is the keyset position of the last posting on a page
type PostingCursor struct {
	ScrapedAt time.Time
	ID        string
}

// ListPostings returns postings newest first. It fetches one row more than
// the page size so callers can tell whether another page exists.
func (s *Storage) ListPostings(ctx context.Context, filter PostingFilter) ([]*domain.JobPosting, error) {
	query := `SELECT` + postingColumns + `
		FROM job_postings
		WHERE 1=1
	`
	args := []interface{}{}
	argIdx := 1

	if len(filter.Platforms) > 0 {
		query += fmt.Sprintf(" AND platform_name = ANY($%d)", argIdx)
		args = append(args, pq.StringArray(filter.Platforms))
		argIdx++
	}

	if len(filter.Statuses) > 0 {
		query += fmt.Sprintf(" AND COALESCE(llm_status, 'pending') = ANY($%d)", argIdx)
		args = append(args, pq.StringArray(filter.Statuses))
		argIdx++
	}

	if filter.JobTitle != "" {
		query += fmt.Sprintf(" AND job_title ILIKE $%d", argIdx)
		args = append(args, "%"+escapeLike(filter.JobTitle)+"%")
		argIdx++
	}

	if filter.CompanyName != "" {
		query += fmt.Sprintf(" AND company_name ILIKE $%d", argIdx)
		args = append(args, "%"+escapeLike(filter.CompanyName)+"%")
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (scraped_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.ScrapedAt, filter.Cursor.ID)
		argIdx += 2
	}

	query += " ORDER BY scraped_at DESC, id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var rows []postingRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, domain.NewStoreError("failed to list job postings", err)
	}

	return rowsToDomain(rows)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// ListPlatforms returns the distinct platform names seen so far
func (s *Storage) ListPlatforms(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT platform_name FROM job_postings ORDER BY platform_name`

	var platforms []string
	if err := s.db.SelectContext(ctx, &platforms, query); err != nil {
		return nil, domain.NewStoreError("failed to list platforms", err)
	}

	return platforms, nil
}

// BackfillStatuses assigns pending to postings created before the status
// column existed
func (s *Storage) BackfillStatuses(ctx context.Context) (int64, error) {
	query := `UPDATE job_postings SET llm_status = $1, claimed_at = NULL WHERE llm_status IS NULL`

	result, err := s.db.ExecContext(ctx, query, domain.StatusPending)
	if err != nil {
		return 0, domain.NewStoreError("failed to backfill statuses", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, domain.NewStoreError("failed to get rows affected", err)
	}

	if n > 0 {
		s.logger.Info("Backfilled posting statuses",
			slog.Int64("count", n),
		)
	}

	return n, nil
}

// ResetAll puts every posting back into pending and clears notes
func (s *Storage) ResetAll(ctx context.Context) (int64, error) {
	query := `UPDATE job_postings SET llm_status = $1, claimed_at = NULL, llm_notes = NULL`

	result, err := s.db.ExecContext(ctx, query, domain.StatusPending)
	if err != nil {
		return 0, domain.NewStoreError("failed to reset job postings", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, domain.NewStoreError("failed to get rows affected", err)
	}

	s.logger.Info("Reset job postings to pending",
		slog.Int64("count", n),
	)

	return n, nil
}

type statsRow struct {
	Total      int `db:"total"`
	Completed  int `db:"completed"`
	Pending    int `db:"pending"`
	Processing int `db:"processing"`
	Failed     int `db:"failed"`
}

// Stats counts postings per status and attaches the most recent run
func (s *Storage) Stats(ctx context.Context) (*domain.Stats, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE llm_status = $1) AS completed,
			COUNT(*) FILTER (WHERE llm_status = $2 OR llm_status IS NULL) AS pending,
			COUNT(*) FILTER (WHERE llm_status = $3) AS processing,
			COUNT(*) FILTER (WHERE llm_status = $4) AS failed
		FROM job_postings
	`

	var row statsRow
	err := s.db.GetContext(ctx, &row, query,
		domain.StatusCompleted,
		domain.StatusPending,
		domain.StatusProcessing,
		domain.StatusFailed,
	)
	if err != nil {
		return nil, domain.NewStoreError("failed to count job postings", err)
	}

	stats := &domain.Stats{
		Total:      row.Total,
		Completed:  row.Completed,
		Pending:    row.Pending,
		Processing: row.Processing,
		Failed:     row.Failed,
	}

	lastRun, err := s.LatestRun(ctx)
	if err != nil && !errors.Is(err, domain.ErrRunNotFound) {
		return nil, err
	}
	stats.LastRun = lastRun

	return stats, nil
}
