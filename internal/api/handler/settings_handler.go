package handler

import (
	"log/slog"
	"net/http"

	"github.com/cuongbtq/job-enricher/internal/api/dto"
	"github.com/gin-gonic/gin"
)

// GetAutoProcessing handles GET /api/v1/settings/auto-processing
func (h *SettingsHandler) GetAutoProcessing(c *gin.Context) {
	enabled, err := h.settings.AutoProcessingEnabled(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to read auto-processing setting", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to read setting",
		})
		return
	}

	c.JSON(http.StatusOK, dto.AutoProcessingSetting{Enabled: enabled})
}

// SetAutoProcessing handles PUT /api/v1/settings/auto-processing
func (h *SettingsHandler) SetAutoProcessing(c *gin.Context) {
	var req dto.UpdateAutoProcessingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "auto_processing_enabled is required",
		})
		return
	}

	if err := h.settings.SetAutoProcessing(c.Request.Context(), *req.Enabled); err != nil {
		h.logger.Error("Failed to store auto-processing setting", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to store setting",
		})
		return
	}

	c.JSON(http.StatusOK, dto.AutoProcessingSetting{Enabled: *req.Enabled})
}
