package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/chateval/models"
)

// PoolStatsFunc reports the browser page pool state; nil when the viewer
// is serving after the browser has already been torn down.
type PoolStatsFunc func() models.PoolStats

// Health returns a handler for GET /api/v1/health.
func Health(stats PoolStatsFunc, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		var pool models.PoolStats
		if stats != nil {
			pool = stats()
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    "healthy",
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			PoolStats: pool,
			Version:   "0.1.0",
		})
	}
}
