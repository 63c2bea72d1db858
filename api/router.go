// Package api serves the local results viewer: run health plus the latest
// run's summary and per-example results.
package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/chateval/api/handler"
)

// NewRouter creates a configured Gin engine for the results viewer.
// Everything is read-only; there is no auth — the viewer binds to
// localhost by default.
func NewRouter(store handler.SummarySource, stats handler.PoolStatsFunc, startTime time.Time) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(stats, startTime))
	v1.GET("/run", handler.Run(store))
	v1.GET("/run/results", handler.Results(store))

	return r
}
