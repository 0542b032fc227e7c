package probe

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/glefebvre/listcatalog/internal/logger"
	"github.com/glefebvre/listcatalog/internal/metrics"
	"github.com/glefebvre/listcatalog/internal/models"
	"github.com/glefebvre/listcatalog/internal/normalizer"
	"github.com/glefebvre/listcatalog/internal/provider"
	"github.com/glefebvre/listcatalog/internal/retry"
)

// Config controls probing
type Config struct {
	// TTL is how long cached composition stays fresh
	TTL time.Duration
	// Delay spaces consecutive probes against the same provider
	Delay time.Duration
	// PageSize is the number of items fetched by a probe
	PageSize int
	Retry    retry.Config
}

// DefaultConfig returns the default probing policy
func DefaultConfig() Config {
	return Config{
		TTL:      24 * time.Hour,
		Delay:    500 * time.Millisecond,
		PageSize: provider.DefaultPageSize,
		Retry:    retry.ProbeConfig(),
	}
}

// Prober determines and caches the movie/series composition of lists
type Prober struct {
	registry   *provider.Registry
	normalizer *normalizer.Normalizer
	cfg        Config
	metrics    *metrics.Metrics
	now        func() time.Time

	mu       sync.Mutex
	limiters map[models.Provider]*rate.Limiter
}

// New creates a Prober over the adapters of the registry
func New(registry *provider.Registry, cfg Config, m *metrics.Metrics) *Prober {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = provider.DefaultPageSize
	}

	return &Prober{
		registry:   registry,
		normalizer: normalizer.Default(),
		cfg:        cfg,
		metrics:    m,
		now:        time.Now,
		limiters:   make(map[models.Provider]*rate.Limiter),
	}
}

// Composition returns the effective composition of a list. When it had to probe, the
// result is written to cfg.ListsMetadata and changed is true; the caller owns cfg and is
// expected to re-encode it.
func (p *Prober) Composition(ctx context.Context, cfg *models.UserConfig, list models.ListDescriptor) (models.Composition, bool) {
	if list.Static {
		p.metrics.ProbeOutcome("static")
		if list.Hint != nil {
			return *list.Hint, false
		}
		return models.Composition{HasMovies: true, HasShows: true}, false
	}

	cached, hasCached := cfg.ListsMetadata[list.ID]
	if hasCached && p.fresh(cached) {
		p.metrics.ProbeOutcome("fresh")
		return cached.Composition(), false
	}

	comp, err := p.probe(ctx, cfg, list)
	if err != nil {
		p.metrics.ProbeOutcome("failed")
		comp = fallback(cached, hasCached, list)

		logger.AppLogger().WithFields(map[string]interface{}{
			"catalog_id": list.ID,
			"provider":   string(list.Provider),
			"has_movies": comp.HasMovies,
			"has_shows":  comp.HasShows,
			"error":      err,
		}).Warn("Type probe failed, keeping list with fallback composition")

		p.store(cfg, list, cached, comp, true)
		return comp, true
	}

	p.metrics.ProbeOutcome("probed")
	p.store(cfg, list, cached, comp, false)
	return comp, true
}

// Observe records a composition seen while serving a page, returning whether the cached
// entry changed.
func (p *Prober) Observe(cfg *models.UserConfig, list models.ListDescriptor, comp models.Composition) bool {
	if list.Static {
		return false
	}
	cached, ok := cfg.ListsMetadata[list.ID]
	if ok && p.fresh(cached) && cached.Composition() == comp {
		return false
	}
	p.store(cfg, list, cached, comp, false)
	return true
}

// Cached returns the composition recorded for list when that entry is still fresh.
func (p *Prober) Cached(cfg *models.UserConfig, list models.ListDescriptor) (models.Composition, bool) {
	meta, ok := cfg.ListsMetadata[list.ID]
	if !ok || !p.fresh(meta) {
		return models.Composition{}, false
	}
	return meta.Composition(), true
}

func (p *Prober) fresh(meta models.ListMetadata) bool {
	if meta.ErrorFetching || meta.LastChecked == 0 {
		return false
	}
	age := p.now().Sub(time.UnixMilli(meta.LastChecked))
	return age >= 0 && age < p.cfg.TTL
}

func (p *Prober) probe(ctx context.Context, cfg *models.UserConfig, list models.ListDescriptor) (models.Composition, error) {
	adapter, err := p.registry.MustGet(list.Provider)
	if err != nil {
		return models.Composition{}, err
	}

	if err := p.limiter(list.Provider).Wait(ctx); err != nil {
		return models.Composition{}, err
	}

	retryCfg := p.cfg.Retry
	retryCfg.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.ProviderLogger().WithFields(map[string]interface{}{
			"catalog_id": list.ID,
			"provider":   string(list.Provider),
			"attempt":    attempt,
			"wait_ms":    wait.Milliseconds(),
			"error":      err,
		}).Warn("Retrying type probe")
	}

	start := time.Now()
	page, err := retry.DoWithResult(ctx, retryCfg, func() (*provider.Page, error) {
		return adapter.FetchPage(ctx, cfg, provider.PageRequest{
			Ref:   list.Ref,
			Limit: p.cfg.PageSize,
		})
	}, provider.IsRetryable(adapter))
	p.metrics.ObserveProviderRequest(string(list.Provider), err, time.Since(start))
	if err != nil {
		return models.Composition{}, err
	}

	items, _ := p.normalizer.NormalizePage(page.Items, "")
	return CompositionOf(items), nil
}

func (p *Prober) store(cfg *models.UserConfig, list models.ListDescriptor, prev models.ListMetadata, comp models.Composition, failed bool) {
	if cfg.ListsMetadata == nil {
		cfg.ListsMetadata = make(map[string]models.ListMetadata)
	}

	listType := prev.ListType
	if list.Provider == models.ProviderListHost && list.Ref.SubKind != "" {
		listType = list.Ref.SubKind
	}

	cfg.ListsMetadata[list.ID] = models.ListMetadata{
		HasMovies:     comp.HasMovies,
		HasShows:      comp.HasShows,
		LastChecked:   p.now().UnixMilli(),
		ErrorFetching: failed,
		ListType:      listType,
	}
}

func (p *Prober) limiter(name models.Provider) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	lim, ok := p.limiters[name]
	if !ok {
		limit := rate.Inf
		if p.cfg.Delay > 0 {
			limit = rate.Every(p.cfg.Delay)
		}
		lim = rate.NewLimiter(limit, 1)
		p.limiters[name] = lim
	}
	return lim
}

// fallback picks the composition used when a probe fails: last cached flags, then the
// provider hint, then both.
func fallback(cached models.ListMetadata, hasCached bool, list models.ListDescriptor) models.Composition {
	if hasCached && (cached.HasMovies || cached.HasShows) {
		return cached.Composition()
	}
	if list.Hint != nil && (list.Hint.HasMovies || list.Hint.HasShows) {
		return *list.Hint
	}
	return models.Composition{HasMovies: true, HasShows: true}
}

// CompositionOf derives composition flags from normalized items
func CompositionOf(items []models.CanonicalItem) models.Composition {
	var comp models.Composition
	for _, item := range items {
		switch item.Type {
		case models.TypeMovie:
			comp.HasMovies = true
		case models.TypeSeries:
			comp.HasShows = true
		}
		if comp.Both() {
			break
		}
	}
	return comp
}
