package domain

import (
	"strings"
	"time"
)

// JobPosting is a scraped job posting and its enrichment state
type JobPosting struct {
	ID           string
	PlatformName string
	URL          string
	RawText      string
	ScrapedAt    time.Time

	Status       Status
	ClaimedAt    *time.Time
	ModelVersion *string
	Notes        *string

	Fields Extraction
}

// Processed is the legacy boolean view of the status
func (p *JobPosting) Processed() bool {
	return p.Status == StatusCompleted
}

// ClaimLive reports whether the posting is held by an attempt whose claim has
// not yet expired at now
func (p *JobPosting) ClaimLive(now time.Time, timeout time.Duration) bool {
	if p.Status != StatusProcessing {
		return false
	}
	if p.ClaimedAt == nil {
		return false
	}
	return !p.ClaimedAt.Before(now.Add(-timeout))
}

// NewPosting holds the source fields needed to create a posting
type NewPosting struct {
	PlatformName string
	URL          string
	RawText      string
	JobTitle     *string
	CompanyName  *string
	LocationText *string
}

// Input is what the enrichment client receives for one posting
type Input struct {
	PlatformName string `json:"platform_name"`
	URL          string `json:"url"`
	RawText      string `json:"raw_text"`
}

// InputFor builds the enrichment input from a posting's source fields
func InputFor(p *JobPosting) Input {
	return Input{
		PlatformName: p.PlatformName,
		URL:          p.URL,
		RawText:      p.RawText,
	}
}

// Extraction is the structured data returned by the enrichment service.
// Nullable fields are pointers so that JSON null survives decoding.
type Extraction struct {
	PlatformName  *string `json:"platform_name"`
	PlatformJobID *string `json:"platform_job_id"`
	URL           *string `json:"url"`

	JobTitle       *string `json:"job_title"`
	CompanyName    *string `json:"company_name"`
	LocationText   *string `json:"location_text"`
	WorkMode       *string `json:"work_mode"`
	EmploymentType *string `json:"employment_type"`
	SeniorityLevel *string `json:"seniority_level"`
	Domain         *string `json:"domain"`

	DescriptionFull      *string `json:"description_full"`
	ResponsibilitiesText *string `json:"responsibilities_text"`
	RequirementsText     *string `json:"requirements_text"`
	NiceToHaveText       *string `json:"nice_to_have_text"`
	BenefitsText         *string `json:"benefits_text"`

	YearsOfExperienceMin *int    `json:"years_of_experience_min"`
	YearsOfExperienceMax *int    `json:"years_of_experience_max"`
	EducationLevel       *string `json:"education_level"`

	SalaryMin      *float64 `json:"salary_min"`
	SalaryMax      *float64 `json:"salary_max"`
	SalaryCurrency *string  `json:"salary_currency"`
	SalaryPeriod   *string  `json:"salary_period"`

	SkillsRequired   []string `json:"skills_required"`
	SkillsNiceToHave []string `json:"skills_nice_to_have"`
	Tags             []string `json:"tags"`

	PostedAt *string `json:"posted_at"`
}

// IsEmpty reports whether the extraction carries no enriched data at all.
// The echoed source fields (platform_name, url) do not count.
func (e *Extraction) IsEmpty() bool {
	strs := []*string{
		e.PlatformJobID, e.JobTitle, e.CompanyName, e.LocationText, e.WorkMode,
		e.EmploymentType, e.SeniorityLevel, e.Domain, e.DescriptionFull,
		e.ResponsibilitiesText, e.RequirementsText, e.NiceToHaveText,
		e.BenefitsText, e.EducationLevel, e.SalaryCurrency, e.SalaryPeriod,
		e.PostedAt,
	}
	for _, s := range strs {
		if s != nil && strings.TrimSpace(*s) != "" {
			return false
		}
	}

	if e.YearsOfExperienceMin != nil || e.YearsOfExperienceMax != nil {
		return false
	}
	if e.SalaryMin != nil || e.SalaryMax != nil {
		return false
	}

	return len(e.SkillsRequired) == 0 && len(e.SkillsNiceToHave) == 0 && len(e.Tags) == 0
}

var postedAtLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// PostedAtTime parses posted_at. Values in an unknown layout yield nil rather
// than failing the whole extraction.
func (e *Extraction) PostedAtTime() *time.Time {
	if e.PostedAt == nil {
		return nil
	}

	raw := strings.TrimSpace(*e.PostedAt)
	for _, layout := range postedAtLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
