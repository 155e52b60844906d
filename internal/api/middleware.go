package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"alpha-volume-bot/internal/logger"
)

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeaderKey)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeaderKey, requestID)
		c.Set(RequestIDContextKey, requestID)
		c.Next()
	}
}

func loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"request_id", c.GetString(RequestIDContextKey),
		}
		if len(c.Errors) > 0 {
			logger.Warn(c.Request.Context(), "HTTP request failed", append(args, "errors", c.Errors.String())...)
			return
		}
		logger.Debug(c.Request.Context(), "HTTP request", args...)
	}
}
