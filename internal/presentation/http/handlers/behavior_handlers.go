package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arzani/roledetect-go/internal/application/services"
	"github.com/arzani/roledetect-go/internal/domain/behavior"
	"github.com/arzani/roledetect-go/internal/infrastructure/observability/logging"
	"github.com/arzani/roledetect-go/internal/infrastructure/observability/performance"
	"github.com/arzani/roledetect-go/internal/presentation/http/middleware"
)

// BehaviorHandlers contains the event ingestion HTTP handlers
type BehaviorHandlers struct {
	recorder    *services.RecorderService
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewBehaviorHandlers creates behavior handlers with injected dependencies
func NewBehaviorHandlers(recorder *services.RecorderService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *BehaviorHandlers {
	return &BehaviorHandlers{
		recorder:    recorder,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// BehaviorEventRequest is one observed action reported by the client
type BehaviorEventRequest struct {
	Type    string           `json:"type" binding:"required"`
	Payload behavior.Payload `json:"payload"`
	Weight  float64          `json:"weight,omitempty"`
}

// BehaviorBatchRequest carries multiple events in one call
type BehaviorBatchRequest struct {
	Events []BehaviorEventRequest `json:"events" binding:"required"`
}

// PostEvent handles POST /api/v1/behavior - ingests a single event
func (h *BehaviorHandlers) PostEvent(c *gin.Context) {
	start := time.Now()
	identityID, sessionID := middleware.IdentityFrom(c)

	if sessionID == "" && identityID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session ID required"})
		return
	}

	var req BehaviorEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Behavior().Error("Behavior event binding failed", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	result := h.recorder.Record(c.Request.Context(), toEvent(&req, identityID, sessionID))
	if !result.OK {
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}

	h.logger.Behavior().Debug("Behavior event ingested",
		"sessionId", sessionID,
		"type", req.Type,
		"duration", time.Since(start))

	c.JSON(http.StatusAccepted, result)
}

// PostBatch handles POST /api/v1/behavior/batch - ingests a batch of
// events and reports per-event outcomes.
func (h *BehaviorHandlers) PostBatch(c *gin.Context) {
	start := time.Now()
	identityID, sessionID := middleware.IdentityFrom(c)

	if sessionID == "" && identityID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session ID required"})
		return
	}

	var req BehaviorBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Behavior().Error("Behavior batch binding failed", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if len(req.Events) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Empty batch"})
		return
	}

	events := make([]*behavior.Event, len(req.Events))
	for i := range req.Events {
		events[i] = toEvent(&req.Events[i], identityID, sessionID)
	}

	results := h.recorder.RecordBatch(c.Request.Context(), events)

	accepted := 0
	for _, result := range results {
		if result.OK {
			accepted++
		}
	}

	h.logger.Behavior().Debug("Behavior batch ingested",
		"sessionId", sessionID,
		"batchSize", len(req.Events),
		"accepted", accepted,
		"duration", time.Since(start))

	c.JSON(http.StatusAccepted, gin.H{
		"results":  results,
		"accepted": accepted,
	})
}

func toEvent(req *BehaviorEventRequest, identityID, sessionID string) *behavior.Event {
	return &behavior.Event{
		IdentityID: identityID,
		SessionID:  sessionID,
		Type:       behavior.EventType(req.Type),
		Payload:    req.Payload,
		Weight:     req.Weight,
	}
}
