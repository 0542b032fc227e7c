package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/glefebvre/listcatalog/internal/codec"
	apperrors "github.com/glefebvre/listcatalog/internal/errors"
	"github.com/glefebvre/listcatalog/internal/logger"
	"github.com/glefebvre/listcatalog/internal/models"
)

const (
	manifestKeyPrefix = "manifest:"
	overlayKeyPrefix  = "overlay:"
)

// tokenKey derives a bounded cache key from a token
func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:16])
}

// overlay returns the refreshed configuration stored for a token, if any. Tokens are
// immutable, so composition learned while serving one lives here until the client
// adopts a newer token.
func (s *Server) overlay(ctx context.Context, key string) (*models.UserConfig, bool) {
	var cfg models.UserConfig
	hit, err := s.cache.Get(ctx, overlayKeyPrefix+key, &cfg)
	s.metrics.CacheLookup("overlay", hit)
	if err != nil || !hit {
		return nil, false
	}
	cfg.ApplyDefaults()
	return &cfg, true
}

// remember stores a refreshed configuration for a token and drops its cached manifest
func (s *Server) remember(ctx context.Context, key string, cfg *models.UserConfig) {
	if err := s.cache.Set(ctx, overlayKeyPrefix+key, cfg); err != nil {
		logger.AppLogger().WithFields(map[string]interface{}{
			"error": err,
		}).WarnContext(ctx, "Failed to store refreshed config")
	}
	s.forget(ctx, key, false)
}

// forget drops the cached manifest and optionally the overlay of a token
func (s *Server) forget(ctx context.Context, key string, overlay bool) {
	_ = s.cache.Delete(ctx, manifestKeyPrefix+key)
	if overlay {
		_ = s.cache.Delete(ctx, overlayKeyPrefix+key)
	}
}

// session loads the configuration of a catalog-protocol request. An unreadable token
// is served as the default configuration.
func (s *Server) session(c *gin.Context) (*models.UserConfig, string) {
	ctx := c.Request.Context()
	token := c.Param("token")
	key := tokenKey(token)

	if cfg, ok := s.overlay(ctx, key); ok {
		return cfg, key
	}

	cfg, err := codec.Decode(token)
	s.metrics.TokenDecode(err == nil)
	if err != nil {
		logger.AppLogger().WithFields(map[string]interface{}{
			"token_length": len(token),
			"error":        err,
		}).WarnContext(ctx, "Falling back to default config")
		return models.DefaultConfig(), key
	}
	return cfg, key
}

// strictSession loads the configuration of a config-management request. Mutating the
// default configuration would silently discard the user's state, so an unreadable token
// is rejected instead.
func (s *Server) strictSession(c *gin.Context) (*models.UserConfig, string, bool) {
	ctx := c.Request.Context()
	token := c.Param("token")
	key := tokenKey(token)

	if cfg, ok := s.overlay(ctx, key); ok {
		return cfg, key, true
	}

	cfg, err := codec.Decode(token)
	s.metrics.TokenDecode(err == nil)
	if err != nil {
		respondError(c, err)
		return nil, key, false
	}
	return cfg, key, true
}

// respondToken encodes cfg and writes it as a TokenResponse
func (s *Server) respondToken(c *gin.Context, cfg *models.UserConfig) {
	token, err := codec.Compress(cfg)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, TokenResponse{Token: token})
}

// respondError maps an error to an HTTP status by its code
func respondError(c *gin.Context, err error) {
	status := errorStatus(err)
	code := apperrors.GetErrorCode(err)

	if status >= http.StatusInternalServerError {
		logger.AppLogger().WithFields(map[string]interface{}{
			"route": c.FullPath(),
			"code":  string(code),
		}).ErrorContext(c.Request.Context(), "Request failed", err)
	}

	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: string(code), Message: message})
}

func errorStatus(err error) int {
	switch apperrors.GetErrorCode(err) {
	case apperrors.CodeValidation, apperrors.CodeInvalidInput, apperrors.CodeConfigDecode:
		return http.StatusBadRequest
	case apperrors.CodeNotFound, apperrors.CodeResolutionMiss:
		return http.StatusNotFound
	case apperrors.CodeUnauthorized, apperrors.CodeRateLimited, apperrors.CodeServiceTimeout,
		apperrors.CodeServiceUnavailable, apperrors.CodeExternalService,
		apperrors.CodeMalformedData, apperrors.CodeParse:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
