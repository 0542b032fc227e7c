package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/glefebvre/listcatalog/internal/codec"
	apperrors "github.com/glefebvre/listcatalog/internal/errors"
	"github.com/glefebvre/listcatalog/internal/logger"
	"github.com/glefebvre/listcatalog/internal/models"
)

// bind decodes the JSON body, answering 400 on failure
func bind(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		respondError(c, apperrors.ValidationError(err.Error()))
		return false
	}
	return true
}

// mutateConfig is the shape of every preference endpoint: load, bind, apply, re-encode
func mutateConfig[T any](s *Server, c *gin.Context, apply func(cfg *models.UserConfig, req T) (*models.UserConfig, error)) {
	cfg, _, ok := s.strictSession(c)
	if !ok {
		return
	}
	var req T
	if !bind(c, &req) {
		return
	}
	next, err := apply(cfg, req)
	if err != nil {
		respondError(c, err)
		return
	}
	s.respondToken(c, next)
}

func (s *Server) createConfig(c *gin.Context) {
	var req CreateConfigRequest
	if !bind(c, &req) {
		return
	}
	cfg := models.DefaultConfig().WithCredentials(req.Credentials)
	if req.RandomListEnabled {
		if !s.randomEnabled {
			respondError(c, apperrors.ValidationError("random catalog is disabled on this server"))
			return
		}
		cfg = cfg.WithRandomList(true)
	}
	s.respondToken(c, cfg)
}

func (s *Server) getConfig(c *gin.Context) {
	cfg, _, ok := s.strictSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newConfigResponse(cfg))
}

func (s *Server) listStates(c *gin.Context) {
	cfg, key, ok := s.strictSession(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	states, next, changed := s.synth.States(ctx, cfg)
	resp := ListsResponse{Lists: states}
	if changed {
		s.remember(ctx, key, next)
		token, err := codec.Compress(next)
		if err != nil {
			respondError(c, err)
			return
		}
		resp.Token = token
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) setOrder(c *gin.Context) {
	mutateConfig(s, c, func(cfg *models.UserConfig, req OrderRequest) (*models.UserConfig, error) {
		return cfg.WithOrder(req.Order), nil
	})
}

func (s *Server) setHidden(c *gin.Context) {
	mutateConfig(s, c, func(cfg *models.UserConfig, req HiddenRequest) (*models.UserConfig, error) {
		return cfg.WithHidden(req.ID, req.Hidden), nil
	})
}

func (s *Server) setName(c *gin.Context) {
	mutateConfig(s, c, func(cfg *models.UserConfig, req NameRequest) (*models.UserConfig, error) {
		return cfg.WithName(req.ID, strings.TrimSpace(req.Name)), nil
	})
}

func (s *Server) setMediaType(c *gin.Context) {
	mutateConfig(s, c, func(cfg *models.UserConfig, req MediaTypeRequest) (*models.UserConfig, error) {
		mediaType := strings.TrimSpace(req.MediaType)
		if len(mediaType) > 64 {
			return nil, apperrors.ValidationError("mediaType must be at most 64 characters")
		}
		return cfg.WithMediaType(req.ID, mediaType), nil
	})
}

func (s *Server) setSort(c *gin.Context) {
	mutateConfig(s, c, func(cfg *models.UserConfig, req SortRequest) (*models.UserConfig, error) {
		order := strings.ToLower(req.Order)
		if order != "" && order != "asc" && order != "desc" {
			return nil, apperrors.ValidationError("order must be asc or desc")
		}
		return cfg.WithSort(req.ID, models.SortPreference{Sort: req.Sort, Order: order}), nil
	})
}

func (s *Server) setMerge(c *gin.Context) {
	mutateConfig(s, c, func(cfg *models.UserConfig, req MergeRequest) (*models.UserConfig, error) {
		return cfg.WithMerged(req.ID, req.Merged), nil
	})
}

func (s *Server) removeLists(c *gin.Context) {
	mutateConfig(s, c, func(cfg *models.UserConfig, req IDsRequest) (*models.UserConfig, error) {
		return cfg.WithRemoved(req.IDs...), nil
	})
}

func (s *Server) restoreLists(c *gin.Context) {
	mutateConfig(s, c, func(cfg *models.UserConfig, req IDsRequest) (*models.UserConfig, error) {
		return cfg.WithRestored(req.IDs...), nil
	})
}

func (s *Server) setRandom(c *gin.Context) {
	mutateConfig(s, c, func(cfg *models.UserConfig, req RandomRequest) (*models.UserConfig, error) {
		if req.Enabled && !s.randomEnabled {
			return nil, apperrors.ValidationError("random catalog is disabled on this server")
		}
		return cfg.WithRandomList(req.Enabled), nil
	})
}

func (s *Server) importAddon(c *gin.Context) {
	cfg, _, ok := s.strictSession(c)
	if !ok {
		return
	}
	var req ImportAddonRequest
	if !bind(c, &req) {
		return
	}
	if s.importer == nil {
		respondError(c, apperrors.New(apperrors.CodeMissingConfig, "addon import is not available"))
		return
	}

	rec, err := s.importer.Import(c.Request.Context(), req.ManifestURL)
	if err != nil {
		respondError(c, err)
		return
	}
	s.respondImport(c, cfg.WithImportedAddon(rec), rec)
}

func (s *Server) importURL(c *gin.Context) {
	cfg, _, ok := s.strictSession(c)
	if !ok {
		return
	}
	var req URLImportRequest
	if !bind(c, &req) {
		return
	}

	resolver, found := s.registry.URLResolver(req.URL)
	if !found {
		respondError(c, apperrors.ValidationError("no provider can import this URL"))
		return
	}
	rec, err := resolver.ResolveURL(c.Request.Context(), cfg, req.URL)
	if err != nil {
		respondError(c, err)
		return
	}
	s.respondImport(c, cfg.WithImportedAddon(rec), rec)
}

func (s *Server) respondImport(c *gin.Context, cfg *models.UserConfig, rec models.ImportedAddonRecord) {
	token, err := codec.Compress(cfg)
	if err != nil {
		respondError(c, err)
		return
	}
	logger.AppLogger().WithFields(map[string]interface{}{
		"addon_id": rec.ID,
		"kind":     string(rec.Kind),
		"catalogs": len(rec.Catalogs),
	}).InfoContext(c.Request.Context(), "Imported addon")
	c.JSON(http.StatusOK, ImportResponse{Token: token, Addon: rec})
}

func (s *Server) deleteAddon(c *gin.Context) {
	cfg, _, ok := s.strictSession(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if _, exists := cfg.ImportedAddons[id]; !exists {
		respondError(c, apperrors.NotFoundError("imported addon", id))
		return
	}
	s.respondToken(c, cfg.WithoutImportedAddon(id))
}

// refresh discards every cached composition and re-probes immediately
func (s *Server) refresh(c *gin.Context) {
	cfg, key, ok := s.strictSession(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	s.forget(ctx, key, true)

	result := s.synth.Synthesize(ctx, cfg.WithoutListsMetadata())
	s.respondToken(c, result.Config)
}

func (s *Server) share(c *gin.Context) {
	cfg, _, ok := s.strictSession(c)
	if !ok {
		return
	}
	token, err := codec.CompressShareable(cfg)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, TokenResponse{Token: token})
}
