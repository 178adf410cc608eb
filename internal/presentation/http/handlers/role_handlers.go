// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arzani/roledetect-go/internal/application/services"
	"github.com/arzani/roledetect-go/internal/domain/roles"
	"github.com/arzani/roledetect-go/internal/infrastructure/caching/manager"
	"github.com/arzani/roledetect-go/internal/infrastructure/observability/logging"
	"github.com/arzani/roledetect-go/internal/infrastructure/observability/performance"
	"github.com/arzani/roledetect-go/internal/presentation/http/middleware"
)

// RoleHandlers contains all role-detection HTTP handlers
type RoleHandlers struct {
	resolver     *services.ResolverService
	writer       *services.WriterService
	recorder     *services.RecorderService
	cacheManager *manager.Manager
	logger       *logging.ChanneledLogger
	perfTracker  *performance.Tracker
}

// NewRoleHandlers creates role handlers with injected dependencies
func NewRoleHandlers(resolver *services.ResolverService, writer *services.WriterService, recorder *services.RecorderService, cacheManager *manager.Manager, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *RoleHandlers {
	return &RoleHandlers{
		resolver:     resolver,
		writer:       writer,
		recorder:     recorder,
		cacheManager: cacheManager,
		logger:       logger,
		perfTracker:  perfTracker,
	}
}

// SelectRoleRequest represents an explicit role choice by the user
type SelectRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// GetDetect handles GET /api/v1/role/detect - returns the resolution
// already attached by the detection middleware.
func (h *RoleHandlers) GetDetect(c *gin.Context) {
	start := time.Now()
	identityID, sessionID := middleware.IdentityFrom(c)

	resolution, exists := middleware.ResolutionFrom(c)
	if !exists {
		// Detection middleware not on this route; resolve inline.
		resolution = h.resolver.Resolve(c.Request.Context(), identityID, sessionID, c.Query("path"))
		if resolution.ShouldCache {
			h.writer.PropagateAsync(resolution)
		}
	}

	h.logger.System().Debug("Role detection request served",
		"sessionId", sessionID,
		"role", string(resolution.Profile.Role),
		"method", resolution.Profile.Method,
		"duration", time.Since(start))

	c.JSON(http.StatusOK, resolution)
}

// PostSelect handles POST /api/v1/role/select - records an explicit
// role choice, which overrides any inferred role.
func (h *RoleHandlers) PostSelect(c *gin.Context) {
	start := time.Now()
	identityID, sessionID := middleware.IdentityFrom(c)

	marker := h.perfTracker.StartOperation("post_role_select_request", sessionID)
	defer marker.Complete()

	if sessionID == "" && identityID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session ID required"})
		return
	}

	var req SelectRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.System().Error("Role select request binding failed", "error", err.Error())
		marker.SetSuccess(false)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	role := roles.ParseRole(req.Role)
	if role == roles.RoleUnknown {
		marker.SetSuccess(false)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown role"})
		return
	}

	resolution := h.resolver.SelectRole(identityID, sessionID, role)
	h.writer.Propagate(c.Request.Context(), resolution)

	h.logger.System().Info("Explicit role selection recorded",
		"sessionId", sessionID,
		"role", string(role),
		"duration", time.Since(start))
	marker.SetSuccess(true)

	c.JSON(http.StatusOK, resolution)
}

// DeleteCache handles DELETE /api/v1/role/cache - clears every cache
// tier for the requesting actor.
func (h *RoleHandlers) DeleteCache(c *gin.Context) {
	start := time.Now()
	identityID, sessionID := middleware.IdentityFrom(c)

	marker := h.perfTracker.StartOperation("delete_role_cache_request", sessionID)
	defer marker.Complete()

	if sessionID == "" && identityID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session ID required"})
		return
	}

	if err := h.writer.Invalidate(c.Request.Context(), identityID, sessionID); err != nil {
		h.logger.System().Error("Role cache invalidation failed",
			"sessionId", sessionID,
			"error", err.Error(),
			"duration", time.Since(start))
		marker.SetSuccess(false)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear cached role"})
		return
	}

	h.logger.System().Info("Role cache cleared", "sessionId", sessionID, "duration", time.Since(start))
	marker.SetSuccess(true)

	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// GetStats handles GET /api/v1/role/stats - returns cache and pipeline
// diagnostics.
func (h *RoleHandlers) GetStats(c *gin.Context) {
	snapshot := h.perfTracker.TakeSnapshot()

	c.JSON(http.StatusOK, gin.H{
		"cache":       h.cacheManager.GetSummary(),
		"queueDepth":  h.recorder.QueueDepth(),
		"performance": snapshot,
		"stats":       h.perfTracker.GetOverallStats(),
	})
}
