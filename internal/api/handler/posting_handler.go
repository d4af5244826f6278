package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cuongbtq/job-enricher/internal/api/dto"
	"github.com/cuongbtq/job-enricher/internal/enrichment/domain"
	"github.com/cuongbtq/job-enricher/internal/enrichment/processor"
	"github.com/cuongbtq/job-enricher/internal/enrichment/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Page sizes
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	PendingLimit    = 50
)

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

// newPostingFromRequest trims the request and checks the required fields
func newPostingFromRequest(req *dto.CreatePostingRequest) (*domain.NewPosting, string) {
	in := &domain.NewPosting{
		PlatformName: strings.TrimSpace(req.PlatformName),
		URL:          strings.TrimSpace(req.URL),
		RawText:      strings.TrimSpace(req.RawText),
		JobTitle:     trimOptional(req.JobTitle),
		CompanyName:  trimOptional(req.CompanyName),
		LocationText: trimOptional(req.LocationText),
	}

	switch {
	case in.PlatformName == "":
		return nil, "platform_name is required"
	case in.URL == "":
		return nil, "url is required"
	case in.RawText == "":
		return nil, "raw_text is required"
	}
	return in, ""
}

func (h *PostingHandler) create(c *gin.Context) (*domain.JobPosting, bool) {
	var req dto.CreatePostingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return nil, false
	}

	in, problem := newPostingFromRequest(&req)
	if problem != "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": problem,
		})
		return nil, false
	}

	posting, err := h.store.CreatePosting(c.Request.Context(), in, h.clock.Now())
	if err != nil {
		if errors.Is(err, domain.ErrDuplicatePosting) {
			c.JSON(http.StatusConflict, gin.H{
				"error":     "A job posting with this URL already exists",
				"duplicate": true,
			})
			return nil, false
		}
		h.logger.Error("Failed to create job posting", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create job posting",
		})
		return nil, false
	}

	h.logger.Info("Job posting created",
		slog.String("posting_id", posting.ID),
		slog.String("platform", posting.PlatformName),
	)

	return posting, true
}

// CreatePosting handles POST /api/v1/postings
func (h *PostingHandler) CreatePosting(c *gin.Context) {
	posting, ok := h.create(c)
	if !ok {
		return
	}

	c.JSON(http.StatusCreated, dto.CreatePostingResponse{
		ID:      posting.ID,
		Success: true,
		Message: "Job posting saved successfully",
	})
}

// FromExtension handles POST /api/v1/postings/from-extension.
// The posting is stored and then handed to the trigger; a dispatch failure
// does not undo the insert.
func (h *PostingHandler) FromExtension(c *gin.Context) {
	posting, ok := h.create(c)
	if !ok {
		return
	}

	resp := dto.CreatePostingResponse{
		ID:      posting.ID,
		Success: true,
		Message: "Job posting saved successfully",
	}

	res, err := h.trigger.Fire(c.Request.Context(), posting.ID)
	if err != nil {
		h.logger.Error("Failed to trigger processing",
			slog.String("posting_id", posting.ID),
			slog.String("error", err.Error()),
		)
		resp.Processing = "dispatch_failed"
	} else {
		resp.Processing = res.Status
	}

	c.JSON(http.StatusCreated, resp)
}

// GetPosting handles GET /api/v1/postings/:id
func (h *PostingHandler) GetPosting(c *gin.Context) {
	id, ok := postingID(c, h.logger)
	if !ok {
		return
	}

	posting, err := h.store.GetPosting(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrPostingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job posting not found",
			})
			return
		}
		h.logger.Error("Failed to get job posting", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job posting",
		})
		return
	}

	c.JSON(http.StatusOK, dto.NewPostingDTO(posting, true))
}

// ListPostings handles GET /api/v1/postings
func (h *PostingHandler) ListPostings(c *gin.Context) {
	var req dto.ListPostingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = DefaultPageSize
	}
	if req.PageSize > MaxPageSize {
		req.PageSize = MaxPageSize
	}

	statuses := splitList(req.Status)
	for _, status := range statuses {
		if _, err := domain.ParseStatus(status); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
			})
			return
		}
	}

	cursor, err := DecodePostingCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	ctx := c.Request.Context()
	postings, err := h.store.ListPostings(ctx, storage.PostingFilter{
		Platforms:   splitList(req.Platform),
		Statuses:    statuses,
		JobTitle:    req.JobTitle,
		CompanyName: req.Company,
		PageSize:    req.PageSize,
		Cursor:      cursor,
	})
	if err != nil {
		h.logger.Error("Failed to list job postings", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list job postings",
		})
		return
	}

	platforms, err := h.store.ListPlatforms(ctx)
	if err != nil {
		h.logger.Error("Failed to list platforms", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list platforms",
		})
		return
	}

	hasMore := len(postings) > req.PageSize
	if hasMore {
		postings = postings[:req.PageSize]
	}

	resp := dto.ListPostingsResponse{
		Postings:  make([]dto.PostingDTO, len(postings)),
		Platforms: platforms,
	}
	for i, p := range postings {
		resp.Postings[i] = dto.NewPostingDTO(p, false)
	}
	if resp.Platforms == nil {
		resp.Platforms = []string{}
	}

	if hasMore {
		last := postings[len(postings)-1]
		resp.NextCursor = EncodePostingCursor(&storage.PostingCursor{
			ScrapedAt: last.ScrapedAt,
			ID:        last.ID,
		})
	}

	c.JSON(http.StatusOK, resp)
}

// ListPending handles GET /api/v1/postings/pending
func (h *PostingHandler) ListPending(c *gin.Context) {
	postings, err := h.store.ListPending(c.Request.Context(), PendingLimit)
	if err != nil {
		h.logger.Error("Failed to list pending job postings", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list pending job postings",
		})
		return
	}

	resp := dto.PendingPostingsResponse{
		Postings: make([]dto.PostingDTO, len(postings)),
		Count:    len(postings),
	}
	for i, p := range postings {
		resp.Postings[i] = dto.NewPostingDTO(p, false)
	}

	c.JSON(http.StatusOK, resp)
}

// ProcessPosting handles POST /api/v1/postings/:id/process.
// It returns as soon as the posting is dispatched.
func (h *PostingHandler) ProcessPosting(c *gin.Context) {
	id, ok := postingID(c, h.logger)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.GetPosting(ctx, id); err != nil {
		if errors.Is(err, domain.ErrPostingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job posting not found",
			})
			return
		}
		h.logger.Error("Failed to get job posting", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job posting",
		})
		return
	}

	res, err := h.trigger.Fire(ctx, id)
	if err != nil {
		h.logger.Error("Failed to trigger processing",
			slog.String("posting_id", id),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to start processing",
		})
		return
	}

	status := http.StatusAccepted
	if res.Status == processor.TriggerSkipped {
		status = http.StatusOK
	}

	c.JSON(status, gin.H{
		"success":    true,
		"posting_id": res.PostingID,
		"status":     res.Status,
		"reason":     res.Reason,
	})
}

// DeletePosting handles DELETE /api/v1/postings/:id
func (h *PostingHandler) DeletePosting(c *gin.Context) {
	id, ok := postingID(c, h.logger)
	if !ok {
		return
	}

	err := h.store.DeletePosting(c.Request.Context(), id)
	switch {
	case err == nil:
		h.logger.Info("Job posting deleted", slog.String("posting_id", id))
		c.Status(http.StatusNoContent)
	case errors.Is(err, domain.ErrPostingNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Job posting not found",
		})
	case errors.Is(err, domain.ErrPostingBusy):
		c.JSON(http.StatusConflict, gin.H{
			"error": "Job posting is being processed",
		})
	default:
		h.logger.Error("Failed to delete job posting", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to delete job posting",
		})
	}
}

func postingID(c *gin.Context, logger *slog.Logger) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		logger.Error("Invalid posting id format", slog.String("posting_id", id), slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "id must be a valid UUID",
		})
		return "", false
	}
	return id, true
}

// splitList parses a comma-separated query value, dropping blank entries
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
