package dto

import (
	"time"

	"github.com/cuongbtq/job-enricher/internal/enrichment/domain"
)

type CreatePostingRequest struct {
	PlatformName string  `json:"platform_name" binding:"required"`
	URL          string  `json:"url" binding:"required"`
	RawText      string  `json:"raw_text" binding:"required"`
	JobTitle     *string `json:"job_title"`
	CompanyName  *string `json:"company_name"`
	LocationText *string `json:"location_text"`
}

type CreatePostingResponse struct {
	ID         string `json:"id"`
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Processing string `json:"processing,omitempty"`
}

type ListPostingsRequest struct {
	Platform string `form:"platform"`
	Status   string `form:"status"`
	JobTitle string `form:"job_title"`
	Company  string `form:"company"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListPostingsResponse struct {
	Postings   []PostingDTO `json:"postings"`
	NextCursor string       `json:"next_cursor,omitempty"`
	Platforms  []string     `json:"platforms"`
}

type PostingDTO struct {
	ID              string  `json:"id"`
	PlatformName    string  `json:"platform_name"`
	URL             string  `json:"url"`
	RawText         string  `json:"raw_text,omitempty"`
	ScrapedAt       string  `json:"scraped_at"`
	LLMStatus       string  `json:"llm_status"`
	LLMProcessed    bool    `json:"llm_processed"`
	ClaimedAt       *string `json:"claimed_at"`
	LLMModelVersion *string `json:"llm_model_version"`
	LLMNotes        *string `json:"llm_notes"`

	domain.Extraction
}

// NewPostingDTO converts a posting; raw text is only included when withRaw is set
func NewPostingDTO(p *domain.JobPosting, withRaw bool) PostingDTO {
	out := PostingDTO{
		ID:              p.ID,
		PlatformName:    p.PlatformName,
		URL:             p.URL,
		ScrapedAt:       p.ScrapedAt.UTC().Format(time.RFC3339),
		LLMStatus:       string(p.Status),
		LLMProcessed:    p.Processed(),
		ClaimedAt:       formatTime(p.ClaimedAt),
		LLMModelVersion: p.ModelVersion,
		LLMNotes:        p.Notes,
		Extraction:      p.Fields,
	}
	if withRaw {
		out.RawText = p.RawText
	}
	return out
}

type PendingPostingsResponse struct {
	Postings []PostingDTO `json:"postings"`
	Count    int          `json:"count"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
