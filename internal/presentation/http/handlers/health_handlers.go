package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arzani/roledetect-go/internal/infrastructure/observability/performance"
	"github.com/arzani/roledetect-go/internal/infrastructure/persistence/database"
)

// HealthHandlers contains liveness and readiness handlers
type HealthHandlers struct {
	db          *database.DB
	perfTracker *performance.Tracker
	startedAt   time.Time
}

// NewHealthHandlers creates health handlers with injected dependencies
func NewHealthHandlers(db *database.DB, perfTracker *performance.Tracker) *HealthHandlers {
	return &HealthHandlers{
		db:          db,
		perfTracker: perfTracker,
		startedAt:   time.Now().UTC(),
	}
}

// GetHealth handles GET /health - reports process and database health
func (h *HealthHandlers) GetHealth(c *gin.Context) {
	status := "ok"
	dbStatus := "ok"
	httpStatus := http.StatusOK

	if err := h.db.PingContext(c.Request.Context()); err != nil {
		status = "degraded"
		dbStatus = err.Error()
		httpStatus = http.StatusServiceUnavailable
	}

	snapshot := h.perfTracker.TakeSnapshot()

	c.JSON(httpStatus, gin.H{
		"status":   status,
		"database": dbStatus,
		"health":   snapshot.OverallHealth,
		"uptime":   time.Since(h.startedAt).String(),
	})
}
