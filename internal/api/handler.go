package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"alpha-volume-bot/internal/engine"
	"alpha-volume-bot/internal/logger"
	"alpha-volume-bot/internal/store"
	"alpha-volume-bot/internal/volume"
)

// HealthCheck handles GET /health requests
func (s *Server) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"service":   ServiceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"state":     s.engine.Status().State,
	})
}

// GetStatus handles GET /status requests
func (s *Server) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Status())
}

// StartRun handles POST /run/start requests
func (s *Server) StartRun(c *gin.Context) {
	runID, err := s.engine.Start(s.baseCtx)
	if errors.Is(err, engine.ErrAlreadyRunning) {
		s.handleError(c, err, http.StatusConflict, "a run is already in progress")
		return
	}
	if err != nil {
		s.handleError(c, err, http.StatusInternalServerError, "failed to start run")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run_id": runID})
}

// StopRun handles POST /run/stop requests. The run halts at its next round
// boundary.
func (s *Server) StopRun(c *gin.Context) {
	s.engine.Stop()
	c.JSON(http.StatusAccepted, s.engine.Status())
}

// GetConfig handles GET /config requests
func (s *Server) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.settings.Snapshot())
}

// PatchConfig handles PATCH /config requests. The patched settings are
// validated as a whole; nothing is stored when any field is invalid.
func (s *Server) PatchConfig(c *gin.Context) {
	var p store.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		s.handleError(c, err, http.StatusBadRequest, "malformed settings patch")
		return
	}

	t, err := s.settings.Apply(p)
	if errors.Is(err, store.ErrInvalidSetting) {
		s.handleError(c, err, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.handleError(c, err, http.StatusInternalServerError, "failed to apply settings")
		return
	}
	logger.Info(c.Request.Context(), "Settings updated", "request_id", c.GetString(RequestIDContextKey))
	c.JSON(http.StatusOK, t)
}

// GetStats handles GET /stats requests
func (s *Server) GetStats(c *gin.Context) {
	stats, at, lastErr := s.stats.Last()
	if stats == nil {
		body := gin.H{"error": "no statistics collected yet"}
		if lastErr != nil {
			body["last_error"] = lastErr.Error()
		}
		c.JSON(http.StatusNotFound, body)
		return
	}

	body := gin.H{
		"summary":    volume.Summarize(stats, s.opts.PointsMultiplier),
		"updated_at": at.UTC().Format(time.RFC3339),
	}
	if lastErr != nil {
		body["last_error"] = lastErr.Error()
	}
	c.JSON(http.StatusOK, body)
}

// RefreshStats handles POST /stats/refresh requests. It refuses to wait
// while a round or another scan holds the page.
func (s *Server) RefreshStats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	stats, err := s.stats.TryRefresh(ctx)
	if errors.Is(err, volume.ErrBusy) {
		s.handleError(c, err, http.StatusConflict, "page busy, try again later")
		return
	}
	if err != nil {
		s.handleError(c, err, http.StatusInternalServerError, "statistics refresh failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": volume.Summarize(stats, s.opts.PointsMultiplier)})
}

// handleError logs the error and sends appropriate HTTP response
func (s *Server) handleError(c *gin.Context, err error, statusCode int, userMessage string) {
	requestID := c.GetString(RequestIDContextKey)
	if requestID == "" {
		requestID = "unknown"
	}

	_ = c.Error(err)
	logger.ErrorWithErr(c.Request.Context(), "API error", err,
		"request_id", requestID,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status_code", statusCode,
	)

	c.JSON(statusCode, gin.H{
		"error":      userMessage,
		"request_id": requestID,
	})
}
