package handler

import (
	"log/slog"
	"net/http"

	"github.com/cuongbtq/job-enricher/internal/api/dto"
	"github.com/cuongbtq/job-enricher/internal/enrichment/domain"
	"github.com/cuongbtq/job-enricher/internal/enrichment/processor"
	"github.com/gin-gonic/gin"
)

// Status handles GET /api/v1/enrichment/status
func (h *EnrichmentHandler) Status(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to load stats", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, dto.NewStatusResponse(stats))
}

// Logs handles GET /api/v1/enrichment/logs
func (h *EnrichmentHandler) Logs(c *gin.Context) {
	var req dto.ListLogsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	entries, err := h.store.ListLogs(c.Request.Context(), domain.LogFilter{
		PostingID: req.PostingID,
		RunID:     req.RunID,
		Limit:     req.Limit,
	})
	if err != nil {
		h.logger.Error("Failed to list logs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	resp := dto.ListLogsResponse{Logs: make([]dto.LogDTO, len(entries))}
	for i, e := range entries {
		resp.Logs[i] = dto.NewLogDTO(e)
	}

	c.JSON(http.StatusOK, resp)
}

func (h *EnrichmentHandler) limit(c *gin.Context) (int, bool) {
	var req dto.ProcessOnceRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request body",
			})
			return 0, false
		}
	} else if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return 0, false
	}

	if req.Limit <= 0 {
		req.Limit = h.batchLimit
	}
	if req.Limit > processor.MaxBatchLimit {
		req.Limit = processor.MaxBatchLimit
	}
	return req.Limit, true
}

// ProcessOnce handles POST /api/v1/enrichment/process-once.
// The batch runs inside the request.
func (h *EnrichmentHandler) ProcessOnce(c *gin.Context) {
	limit, ok := h.limit(c)
	if !ok {
		return
	}

	result, err := h.batch.ProcessPending(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Batch failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Reset handles POST /api/v1/enrichment/reset
func (h *EnrichmentHandler) Reset(c *gin.Context) {
	count, err := h.store.ResetAll(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to reset job postings", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	h.logger.Warn("All job postings reset to pending", slog.Int64("count", count))

	c.JSON(http.StatusOK, dto.ResetResponse{
		Message: "All jobs reset successfully",
		Count:   count,
	})
}
