package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/glefebvre/listcatalog/internal/cache"
	"github.com/glefebvre/listcatalog/internal/catalog"
	"github.com/glefebvre/listcatalog/internal/dispatch"
	"github.com/glefebvre/listcatalog/internal/enrich"
	"github.com/glefebvre/listcatalog/internal/metrics"
	"github.com/glefebvre/listcatalog/internal/models"
	"github.com/glefebvre/listcatalog/internal/provider"
)

// AddonImporter turns a catalog addon manifest URL into an imported record
type AddonImporter interface {
	Import(ctx context.Context, manifestURL string) (models.ImportedAddonRecord, error)
}

// Options wires the engine into the HTTP surface
type Options struct {
	Synthesizer *catalog.Synthesizer
	Dispatcher  *dispatch.Dispatcher
	Registry    *provider.Registry
	Importer    AddonImporter
	// Enricher is optional
	Enricher *enrich.Enricher
	// Cache backs the manifest cache and the refreshed-config overlay, both keyed by token
	Cache    cache.Store
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Info     catalog.AddonInfo

	RandomEnabled bool
}

// Server represents the API server
type Server struct {
	router        *gin.Engine
	synth         *catalog.Synthesizer
	dispatcher    *dispatch.Dispatcher
	registry      *provider.Registry
	importer      AddonImporter
	enricher      *enrich.Enricher
	cache         cache.Store
	metrics       *metrics.Metrics
	gatherer      prometheus.Gatherer
	info          catalog.AddonInfo
	randomEnabled bool
}

// NewServer creates a new API server instance
func NewServer(opts Options) *Server {
	router := gin.New()
	// tokens and catalog ids are matched and decoded by the handlers themselves
	router.UseRawPath = true
	router.UnescapePathValues = false

	if opts.Cache == nil {
		opts.Cache = cache.NewMemoryStore(5*time.Minute, 10000, nil, "")
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		router:        router,
		synth:         opts.Synthesizer,
		dispatcher:    opts.Dispatcher,
		registry:      opts.Registry,
		importer:      opts.Importer,
		enricher:      opts.Enricher,
		cache:         opts.Cache,
		metrics:       opts.Metrics,
		gatherer:      opts.Gatherer,
		info:          opts.Info,
		randomEnabled: opts.RandomEnabled,
	}

	router.Use(requestIDMiddleware(), errorHandlerMiddleware(), corsMiddleware(), requestLogMiddleware())
	s.setupRoutes()

	return s
}

// Handler exposes the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// HTTPServer wraps the router in an http.Server listening on addr
func (s *Server) HTTPServer(addr string, readTimeout, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      writeTimeout,
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	// Catalog protocol
	s.router.GET("/manifest.json", s.defaultManifest)
	s.router.GET("/:token/manifest.json", s.manifest)
	s.router.GET("/:token/catalog/:type/*rest", s.catalog)
	s.router.GET("/:token/meta/:type/*rest", s.meta)

	// Config management
	cfg := s.router.Group("/api/config")
	{
		cfg.POST("", s.createConfig)
		cfg.GET("/:token", s.getConfig)
		cfg.GET("/:token/lists", s.listStates)
		cfg.POST("/:token/order", s.setOrder)
		cfg.POST("/:token/hidden", s.setHidden)
		cfg.POST("/:token/name", s.setName)
		cfg.POST("/:token/mediatype", s.setMediaType)
		cfg.POST("/:token/sort", s.setSort)
		cfg.POST("/:token/merge", s.setMerge)
		cfg.POST("/:token/remove", s.removeLists)
		cfg.POST("/:token/restore", s.restoreLists)
		cfg.POST("/:token/random", s.setRandom)
		cfg.POST("/:token/addons", s.importAddon)
		cfg.DELETE("/:token/addons/:id", s.deleteAddon)
		cfg.POST("/:token/url-import", s.importURL)
		cfg.POST("/:token/refresh", s.refresh)
		cfg.POST("/:token/share", s.share)
	}
}
