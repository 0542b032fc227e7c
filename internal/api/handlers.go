package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func (s *Server) healthCheck(c *gin.Context) {
	if p, ok := s.cache.(pinger); ok {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, HealthResponse{
				Status:  "unhealthy",
				Version: s.info.Version,
				Error:   err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: s.info.Version,
	})
}
