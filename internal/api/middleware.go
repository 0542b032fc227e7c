package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/glefebvre/listcatalog/internal/logger"
)

// requestIDMiddleware adds a unique request ID to each request and its context
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

// errorHandlerMiddleware handles panics
func errorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.AppLogger().WithFields(map[string]interface{}{
					"route": c.FullPath(),
					"panic": rec,
				}).ErrorContext(c.Request.Context(), "Recovered from panic", nil)

				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Error:   "internal server error",
					Message: "an unexpected error occurred",
				})
			}
		}()
		c.Next()
	}
}

// corsMiddleware allows every origin: the catalog client fetches from arbitrary hosts
func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders:   []string{"X-Request-ID"},
		MaxAge:          12 * time.Hour,
	})
}

// requestLogMiddleware logs the route template, never the raw path, since the path
// carries the configuration token
func requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := map[string]interface{}{
			"method":   c.Request.Method,
			"route":    c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}
		log := logger.AppLogger().WithFields(fields)
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.WarnContext(c.Request.Context(), "Request failed")
			return
		}
		log.DebugContext(c.Request.Context(), "Request served")
	}
}
