package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/chateval/models"
)

// SummarySource provides the latest run summary, or nil before the first
// run finishes.
type SummarySource interface {
	Latest() *models.RunSummary
}

// Run returns a handler for GET /api/v1/run: the latest run summary
// without the per-example detail.
func Run(src SummarySource) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary := src.Latest()
		if summary == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": models.ErrorDetail{
				Code:    "NO_RUN",
				Message: "no evaluation run has finished yet",
			}})
			return
		}

		trimmed := *summary
		trimmed.Results = nil
		c.JSON(http.StatusOK, trimmed)
	}
}

// Results returns a handler for GET /api/v1/run/results: the per-example
// results of the latest run.
func Results(src SummarySource) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary := src.Latest()
		if summary == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": models.ErrorDetail{
				Code:    "NO_RUN",
				Message: "no evaluation run has finished yet",
			}})
			return
		}
		c.JSON(http.StatusOK, summary.Results)
	}
}
