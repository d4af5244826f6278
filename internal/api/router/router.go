package router

import (
	"context"
	"net/http"
	"time"

	"github.com/cuongbtq/job-enricher/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.GET("/health", healthHandler(deps.HealthChecks))

	postingHandler := handler.NewPostingHandler(deps)
	enrichmentHandler := handler.NewEnrichmentHandler(deps)
	settingsHandler := handler.NewSettingsHandler(deps)

	v1 := r.Group("/api/v1")
	{
		postings := v1.Group("/postings")
		{
			postings.POST("", postingHandler.CreatePosting)
			postings.GET("", postingHandler.ListPostings)
			postings.GET("/pending", postingHandler.ListPending)

			// browser extension ingestion, authenticated by shared secret
			postings.POST("/from-extension",
				ExtensionAuthMiddleware(deps.ExtensionSecret, deps.Logger),
				postingHandler.FromExtension,
			)

			postings.GET("/:id", postingHandler.GetPosting)
			postings.POST("/:id/process", postingHandler.ProcessPosting)
			postings.DELETE("/:id", postingHandler.DeletePosting)
		}

		enrichment := v1.Group("/enrichment")
		{
			enrichment.GET("/status", enrichmentHandler.Status)
			enrichment.GET("/logs", enrichmentHandler.Logs)
			enrichment.POST("/process-once", enrichmentHandler.ProcessOnce)
			enrichment.POST("/reset", enrichmentHandler.Reset)
		}

		settings := v1.Group("/settings")
		{
			settings.GET("/auto-processing", settingsHandler.GetAutoProcessing)
			settings.PUT("/auto-processing", settingsHandler.SetAutoProcessing)
		}
	}

	return r
}

func healthHandler(checks map[string]func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		results := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}

		health := "healthy"
		if status != http.StatusOK {
			health = "unhealthy"
		}

		c.JSON(status, gin.H{
			"status":  health,
			"service": "job-enricher-api",
			"checks":  results,
		})
	}
}
