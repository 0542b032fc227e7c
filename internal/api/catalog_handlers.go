package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/glefebvre/listcatalog/internal/catalog"
	"github.com/glefebvre/listcatalog/internal/dispatch"
	apperrors "github.com/glefebvre/listcatalog/internal/errors"
	"github.com/glefebvre/listcatalog/internal/logger"
	"github.com/glefebvre/listcatalog/internal/models"
)

func (s *Server) defaultManifest(c *gin.Context) {
	c.JSON(http.StatusOK, catalog.BuildManifest(nil, s.info, nil))
}

func (s *Server) manifest(c *gin.Context) {
	cfg, key := s.session(c)
	entry := s.manifestFor(c, cfg, key)
	c.JSON(http.StatusOK, entry.Manifest)
}

// manifestFor returns the cached manifest of a token, synthesizing it on a miss
func (s *Server) manifestFor(c *gin.Context, cfg *models.UserConfig, key string) cachedManifest {
	ctx := c.Request.Context()

	var entry cachedManifest
	hit, err := s.cache.Get(ctx, manifestKeyPrefix+key, &entry)
	s.metrics.CacheLookup("manifest", hit)
	if err == nil && hit {
		return entry
	}

	result := s.synth.Synthesize(ctx, cfg)
	if result.ConfigChanged {
		s.remember(ctx, key, result.Config)
	}

	entry = cachedManifest{
		Manifest: catalog.BuildManifest(result, s.info, result.Config),
		Refs:     result.Refs,
	}
	if err := s.cache.Set(ctx, manifestKeyPrefix+key, entry); err != nil {
		logger.AppLogger().WithFields(map[string]interface{}{
			"error": err,
		}).WarnContext(ctx, "Failed to cache manifest")
	}
	return entry
}

func (s *Server) catalog(c *gin.Context) {
	ctx := c.Request.Context()

	catalogType, id, extra, err := parseResourcePath(c)
	if err != nil {
		respondError(c, err)
		return
	}

	cfg, key := s.session(c)

	req := dispatch.Request{
		CatalogID: id,
		Type:      catalogType,
		Skip:      extraInt(extra, c.Query("skip"), "skip"),
		Genre:     extraString(extra, c.Query("genre"), "genre"),
	}

	var cached cachedManifest
	if hit, err := s.cache.Get(ctx, manifestKeyPrefix+key, &cached); err == nil && hit {
		if ref, ok := cached.Refs[catalog.RefKey(catalogType, id)]; ok {
			req.Ref = &ref
		}
	}

	result := s.dispatcher.Dispatch(ctx, cfg, req)
	if result.ConfigChanged {
		s.remember(ctx, key, result.Config)
	}

	items := result.Items
	if s.enricher != nil && len(items) > 0 {
		items = s.enricher.Enrich(ctx, items)
	}

	metas := make([]models.Meta, 0, len(items))
	for _, item := range items {
		metas = append(metas, item.ToMeta())
	}
	c.JSON(http.StatusOK, models.CatalogResponse{Metas: metas})
}

func (s *Server) meta(c *gin.Context) {
	itemType, id, _, err := parseResourcePath(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MetaResponse{Meta: models.Meta{ID: id, Type: itemType}})
}

// parseResourcePath reads :type and the id plus optional extra segment of
// /{type}/{id}.json and /{type}/{id}/{extra}.json. Path values arrive still escaped.
func parseResourcePath(c *gin.Context) (string, string, url.Values, error) {
	itemType, err := url.PathUnescape(c.Param("type"))
	if err != nil || itemType == "" {
		return "", "", nil, apperrors.New(apperrors.CodeInvalidInput, "invalid type segment")
	}

	rest := strings.TrimPrefix(c.Param("rest"), "/")
	if !strings.HasSuffix(rest, ".json") {
		return "", "", nil, apperrors.NotFoundError("resource", rest)
	}
	rest = strings.TrimSuffix(rest, ".json")

	rawID, rawExtra, _ := strings.Cut(rest, "/")
	id, err := url.PathUnescape(rawID)
	if err != nil || id == "" {
		return "", "", nil, apperrors.New(apperrors.CodeInvalidInput, "invalid id segment")
	}

	extra, err := url.ParseQuery(rawExtra)
	if err != nil {
		extra = url.Values{}
	}
	return itemType, id, extra, nil
}

func extraString(extra url.Values, fallback, name string) string {
	if v := extra.Get(name); v != "" {
		return v
	}
	return fallback
}

func extraInt(extra url.Values, fallback, name string) int {
	n, err := strconv.Atoi(extraString(extra, fallback, name))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
