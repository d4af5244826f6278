package dto

import (
	"time"

	"github.com/cuongbtq/job-enricher/internal/enrichment/domain"
)

type ProcessOnceRequest struct {
	Limit int `json:"limit" form:"limit"`
}

type ListLogsRequest struct {
	PostingID string `form:"posting_id"`
	RunID     string `form:"run_id"`
	Limit     int    `form:"limit"`
}

type RunDTO struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	StartedAt     string  `json:"started_at"`
	FinishedAt    *string `json:"finished_at"`
	TotalSelected int     `json:"total_selected"`
	TotalSuccess  int     `json:"total_success"`
	TotalError    int     `json:"total_error"`
	Notes         *string `json:"notes"`
}

func NewRunDTO(r *domain.Run) *RunDTO {
	if r == nil {
		return nil
	}
	return &RunDTO{
		ID:            r.ID,
		Status:        string(r.Status),
		StartedAt:     r.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt:    formatTime(r.FinishedAt),
		TotalSelected: r.TotalSelected,
		TotalSuccess:  r.TotalSuccess,
		TotalError:    r.TotalError,
		Notes:         r.Notes,
	}
}

type StatusResponse struct {
	TotalPostings   int     `json:"total_postings"`
	TotalProcessed  int     `json:"total_processed"`
	TotalPending    int     `json:"total_pending"`
	TotalProcessing int     `json:"total_processing"`
	TotalFailed     int     `json:"total_failed"`
	LastRun         *RunDTO `json:"last_run"`
}

func NewStatusResponse(s *domain.Stats) StatusResponse {
	return StatusResponse{
		TotalPostings:   s.Total,
		TotalProcessed:  s.Completed,
		TotalPending:    s.Pending,
		TotalProcessing: s.Processing,
		TotalFailed:     s.Failed,
		LastRun:         NewRunDTO(s.LastRun),
	}
}

type LogDTO struct {
	ID          int64          `json:"id"`
	CreatedAt   string         `json:"created_at"`
	PostingID   string         `json:"job_posting_id"`
	RunID       *string        `json:"run_id"`
	Level       string         `json:"level"`
	Message     string         `json:"message"`
	DurationMS  *int64         `json:"duration_ms"`
	JobTitle    *string        `json:"job_title"`
	CompanyName *string        `json:"company_name"`
	Details     map[string]any `json:"details"`
}

func NewLogDTO(e *domain.LogEntry) LogDTO {
	return LogDTO{
		ID:          e.ID,
		CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339),
		PostingID:   e.PostingID,
		RunID:       e.RunID,
		Level:       string(e.Level),
		Message:     e.Message,
		DurationMS:  e.DurationMS,
		JobTitle:    e.JobTitle,
		CompanyName: e.CompanyName,
		Details:     e.Details,
	}
}

type ListLogsResponse struct {
	Logs []LogDTO `json:"logs"`
}

type ResetResponse struct {
	Message string `json:"message"`
	Count   int64  `json:"count"`
}

type AutoProcessingSetting struct {
	Enabled bool `json:"auto_processing_enabled"`
}

type UpdateAutoProcessingRequest struct {
	Enabled *bool `json:"auto_processing_enabled" binding:"required"`
}
