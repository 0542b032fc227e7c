package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/glefebvre/listcatalog/internal/api"
	"github.com/glefebvre/listcatalog/internal/cache"
	"github.com/glefebvre/listcatalog/internal/catalog"
	"github.com/glefebvre/listcatalog/internal/circuitbreaker"
	"github.com/glefebvre/listcatalog/internal/config"
	"github.com/glefebvre/listcatalog/internal/dispatch"
	"github.com/glefebvre/listcatalog/internal/enrich"
	"github.com/glefebvre/listcatalog/internal/external/addon"
	"github.com/glefebvre/listcatalog/internal/external/tmdb"
	"github.com/glefebvre/listcatalog/internal/logger"
	"github.com/glefebvre/listcatalog/internal/metrics"
	"github.com/glefebvre/listcatalog/internal/probe"
	"github.com/glefebvre/listcatalog/internal/provider"
	"github.com/glefebvre/listcatalog/internal/retry"
	"github.com/glefebvre/listcatalog/internal/shutdown"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the catalog HTTP server",
	Long: `Start the HTTP server exposing the catalog protocol, the configuration
management API, /health and /metrics.

Caches are in-memory unless cache.redis_url is set. With cache.nats_url, in-memory
caches of several instances invalidate each other.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.Get()

	logger.InitializeLoggers(cfg.GetAppLogLevel(), cfg.GetProviderLogLevel())
	log := logger.AppLogger()
	if cfg.IsUsingLegacyLogging() {
		log.Warn("logging.level is deprecated, use logging.app.level and logging.provider.level")
	}
	if cfg.GetAppLogLevel() != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	handler := shutdown.New(cfg.ShutdownTimeout())

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	nc, err := connectNATS(cfg)
	if err != nil {
		return err
	}
	if nc != nil {
		handler.RegisterCloser("nats", func() error {
			return nc.Drain()
		})
	}

	sessions, err := cache.New(cache.Options{
		TTL:        cfg.ManifestTTL(),
		MaxEntries: cfg.Cache.MaxEntries,
		RedisURL:   cfg.Cache.RedisURL,
		Prefix:     cfg.Cache.Prefix + "session:",
		NATS:       nc,
		Subject:    cfg.Cache.NATSSubject + ".session",
	})
	if err != nil {
		return fmt.Errorf("failed to create session cache: %w", err)
	}
	registerStore(handler, "session-cache", sessions)

	providerRetry := retry.ProviderConfig()
	if cfg.Providers.RetryAttempts > 0 {
		providerRetry.MaxAttempts = cfg.Providers.RetryAttempts
	}
	breaker := circuitbreaker.Config{
		MaxFailures:         uint32(cfg.Providers.BreakerMaxFailures),
		Timeout:             cfg.BreakerTimeout(),
		MaxHalfOpenRequests: circuitbreaker.DefaultConfig().MaxHalfOpenRequests,
	}

	addonClient := addon.New(addon.Config{
		Timeout:     cfg.ProviderTimeout(),
		RetryConfig: providerRetry,
		Breaker:     breaker,
		UserAgent:   cfg.Providers.UserAgent,
	})
	adapters := provider.NewRegistry(addonClient)

	probeCfg := probe.DefaultConfig()
	probeCfg.TTL = cfg.ProbeTTL()
	probeCfg.Delay = cfg.ProbeDelay()
	if cfg.Probe.PageSize > 0 {
		probeCfg.PageSize = cfg.Probe.PageSize
	}
	prober := probe.New(adapters, probeCfg, m)

	dispatcher := dispatch.New(adapters, prober, dispatch.Config{
		PageSize:      cfg.Dispatch.PageSize,
		MaxGenrePages: cfg.Dispatch.MaxGenrePages,
		Retry:         providerRetry,
	}, m)

	enricher, err := newEnricher(cfg, nc, handler, breaker, m)
	if err != nil {
		return err
	}

	server := api.NewServer(api.Options{
		Synthesizer: catalog.NewSynthesizer(adapters, prober),
		Dispatcher:  dispatcher,
		Registry:    adapters,
		Importer:    addonClient,
		Enricher:    enricher,
		Cache:       sessions,
		Metrics:     m,
		Gatherer:    registry,
		Info: catalog.AddonInfo{
			ID:           cfg.Addon.ID,
			Name:         cfg.Addon.Name,
			Description:  cfg.Addon.Description,
			Version:      cfg.Addon.Version,
			Logo:         cfg.Addon.Logo,
			Configurable: cfg.Addon.Configurable,
		},
		RandomEnabled: cfg.Random.Enabled,
	})

	httpServer := server.HTTPServer(
		cfg.Addr(),
		time.Duration(cfg.API.ReadTimeoutSeconds)*time.Second,
		time.Duration(cfg.API.WriteTimeoutSeconds)*time.Second,
	)
	handler.Register("http", httpServer.Shutdown)

	serveErr := make(chan error, 1)
	go func() {
		log.WithFields(map[string]interface{}{
			"addr":       cfg.Addr(),
			"version":    version,
			"enrichment": enricher != nil,
			"redis":      cfg.Cache.RedisURL != "",
			"nats":       nc != nil,
		}).Info("Starting catalog server")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			handler.TriggerShutdown()
		}
		close(serveErr)
	}()

	go func() {
		<-ctx.Done()
		handler.TriggerShutdown()
	}()

	shutdownErr := handler.Wait()
	if err := <-serveErr; err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	if shutdownErr != nil {
		return fmt.Errorf("shutdown incomplete: %w", shutdownErr)
	}
	log.Info("Server stopped")
	return nil
}

// connectNATS returns nil when no NATS URL is configured
func connectNATS(cfg *config.Config) (*nats.Conn, error) {
	if cfg.Cache.NATSURL == "" {
		return nil, nil
	}

	nc, err := nats.Connect(cfg.Cache.NATSURL,
		nats.Name("listcatalog"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.AppLogger().Error("NATS disconnected", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.AppLogger().WithFields(map[string]interface{}{
				"url": c.ConnectedUrl(),
			}).Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// newEnricher returns nil when enrichment is disabled or has no API key
func newEnricher(cfg *config.Config, nc *nats.Conn, handler *shutdown.Handler, breaker circuitbreaker.Config, m *metrics.Metrics) (*enrich.Enricher, error) {
	if !cfg.Enrichment.Enabled {
		return nil, nil
	}
	if cfg.TMDB.APIKey == "" {
		logger.AppLogger().Warn("Enrichment enabled without tmdb.api_key, items are served as listed")
		return nil, nil
	}

	metadata, err := cache.New(cache.Options{
		TTL:        cfg.MetadataTTL(),
		MaxEntries: cfg.Cache.MaxEntries,
		RedisURL:   cfg.Cache.RedisURL,
		Prefix:     cfg.Cache.Prefix,
		NATS:       nc,
		Subject:    cfg.Cache.NATSSubject + ".metadata",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata cache: %w", err)
	}
	registerStore(handler, "metadata-cache", metadata)

	source := tmdb.NewClient(tmdb.Config{
		APIKey:      cfg.TMDB.APIKey,
		Language:    cfg.TMDB.Language,
		BaseURL:     cfg.TMDB.BaseURL,
		Timeout:     cfg.ProviderTimeout(),
		RetryConfig: retry.ProviderConfig(),
		Breaker:     breaker,
	})

	return enrich.New(source, metadata, enrich.Config{
		Concurrency: cfg.Enrichment.Concurrency,
		Timeout:     cfg.EnrichmentTimeout(),
	}, m), nil
}

func registerStore(handler *shutdown.Handler, name string, store cache.Store) {
	if closer, ok := store.(io.Closer); ok {
		handler.RegisterCloser(name, closer.Close)
	}
}
