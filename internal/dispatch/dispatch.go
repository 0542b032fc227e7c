package dispatch

import (
	"context"
	"time"

	apperrors "github.com/glefebvre/listcatalog/internal/errors"
	"github.com/glefebvre/listcatalog/internal/logger"
	"github.com/glefebvre/listcatalog/internal/metrics"
	"github.com/glefebvre/listcatalog/internal/models"
	"github.com/glefebvre/listcatalog/internal/normalizer"
	"github.com/glefebvre/listcatalog/internal/probe"
	"github.com/glefebvre/listcatalog/internal/provider"
	"github.com/glefebvre/listcatalog/internal/retry"
)

// Config controls dispatching
type Config struct {
	PageSize int
	// MaxGenrePages bounds the upstream pages walked when filtering genres locally
	MaxGenrePages int
	Retry         retry.Config
}

// DefaultConfig returns the default dispatch policy
func DefaultConfig() Config {
	return Config{
		PageSize:      provider.DefaultPageSize,
		MaxGenrePages: 5,
		Retry:         retry.ProviderConfig(),
	}
}

// Request is one catalog page request
type Request struct {
	CatalogID string
	Type      string
	Skip      int
	Genre     string
	// Ref, when known from a synthesized manifest, skips id resolution
	Ref *models.CatalogRef
}

// Result is a normalized catalog page. Empty distinguishes "nothing can be served for
// this catalog" from a page that simply has no items.
type Result struct {
	Items     []models.CanonicalItem
	HasMovies bool
	HasShows  bool
	Empty     bool
	Reason    apperrors.ErrorCode

	// Config carries refreshed composition metadata when ConfigChanged is true
	Config        *models.UserConfig
	ConfigChanged bool
}

// Metas renders the page for the wire
func (r *Result) Metas() []models.Meta {
	metas := make([]models.Meta, 0, len(r.Items))
	for _, item := range r.Items {
		metas = append(metas, item.ToMeta())
	}
	return metas
}

func emptyResult(err error) *Result {
	return &Result{Items: []models.CanonicalItem{}, Empty: true, Reason: apperrors.GetErrorCode(err)}
}

// Dispatcher resolves catalog ids to adapters and serves normalized pages
type Dispatcher struct {
	registry   *provider.Registry
	prober     *probe.Prober
	normalizer *normalizer.Normalizer
	cfg        Config
	metrics    *metrics.Metrics
}

// New creates a Dispatcher
func New(registry *provider.Registry, prober *probe.Prober, cfg Config, m *metrics.Metrics) *Dispatcher {
	defaults := DefaultConfig()
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaults.PageSize
	}
	if cfg.MaxGenrePages <= 0 {
		cfg.MaxGenrePages = defaults.MaxGenrePages
	}

	return &Dispatcher{
		registry:   registry,
		prober:     prober,
		normalizer: normalizer.Default(),
		cfg:        cfg,
		metrics:    m,
	}
}

// Dispatch serves one catalog page. Provider failures never escape: they degrade to an
// Empty result.
func (d *Dispatcher) Dispatch(ctx context.Context, cfg *models.UserConfig, req Request) *Result {
	ctx = logger.ContextWithCatalogID(ctx, req.CatalogID)
	if req.Skip < 0 {
		req.Skip = 0
	}

	list, err := d.resolve(ctx, cfg, req)
	if err != nil {
		d.metrics.Dispatch("unresolved", string(apperrors.GetErrorCode(err)))
		logger.AppLogger().WithFields(map[string]interface{}{
			"type":  req.Type,
			"error": err,
		}).WarnContext(ctx, "Catalog could not be resolved")
		return emptyResult(err)
	}

	adapter, err := d.registry.MustGet(list.Ref.Provider)
	if err != nil {
		miss := apperrors.ResolutionMiss(req.CatalogID)
		miss.Err = err
		d.metrics.Dispatch(string(list.Ref.Kind), string(miss.Code))
		logger.AppLogger().WithFields(map[string]interface{}{
			"provider": string(list.Ref.Provider),
			"error":    err,
		}).WarnContext(ctx, "No adapter for resolved catalog")
		return emptyResult(miss)
	}

	var items []models.CanonicalItem
	var observed models.Composition
	if req.Genre != "" && !provider.FiltersGenres(adapter) {
		items, observed, err = d.fetchGenre(ctx, cfg, adapter, list, req)
	} else {
		items, observed, err = d.fetchPage(ctx, cfg, adapter, list, req)
	}
	if err != nil {
		d.metrics.Dispatch(string(list.Ref.Kind), string(apperrors.GetErrorCode(err)))
		logger.ProviderLogger().WithFields(map[string]interface{}{
			"provider":    string(adapter.Name()),
			"skip":        req.Skip,
			"genre":       req.Genre,
			"empty_cause": string(apperrors.GetErrorCode(err)),
			"error":       err,
		}).WarnContext(ctx, "Serving empty catalog page")
		return emptyResult(err)
	}

	result := &Result{
		Items:     items,
		HasMovies: observed.HasMovies,
		HasShows:  observed.HasShows,
	}

	if req.Skip == 0 && req.Genre == "" && len(items) > 0 && !list.Static {
		if work, changed := d.observe(cfg, list, req.Type, observed); changed {
			result.Config = work
			result.ConfigChanged = true
		}
	}

	d.metrics.Dispatch(string(list.Ref.Kind), "ok")
	return result
}

// observe folds the composition seen on a first page into a copy of cfg. A typed page
// only proves presence, never absence, so it may only add flags to a fresh cached entry;
// without one the probe stays authoritative.
func (d *Dispatcher) observe(cfg *models.UserConfig, list models.ListDescriptor, catalogType string, seen models.Composition) (*models.UserConfig, bool) {
	comp := seen
	if narrows(catalogType) {
		prev, ok := d.prober.Cached(cfg, list)
		if !ok {
			return nil, false
		}
		comp.HasMovies = comp.HasMovies || prev.HasMovies
		comp.HasShows = comp.HasShows || prev.HasShows
	}

	work := cfg.Clone()
	if !d.prober.Observe(work, list, comp) {
		return nil, false
	}
	return work, true
}

// fetchPage serves a page the adapter can produce directly
func (d *Dispatcher) fetchPage(ctx context.Context, cfg *models.UserConfig, adapter provider.Adapter, list models.ListDescriptor, req Request) ([]models.CanonicalItem, models.Composition, error) {
	page, err := d.fetch(ctx, cfg, adapter, list, req, req.Skip, req.Genre)
	if err != nil {
		return nil, models.Composition{}, err
	}

	items, _ := d.normalizer.NormalizePage(page.Items, hintFor(req.Type))
	observed := probe.CompositionOf(items)
	items = filterType(items, req.Type)
	if len(items) > d.cfg.PageSize {
		items = items[:d.cfg.PageSize]
	}
	return items, observed, nil
}

// fetchGenre walks upstream pages from the start, filtering locally, until the requested
// window is filled, the list ends or MaxGenrePages is reached.
func (d *Dispatcher) fetchGenre(ctx context.Context, cfg *models.UserConfig, adapter provider.Adapter, list models.ListDescriptor, req Request) ([]models.CanonicalItem, models.Composition, error) {
	want := req.Skip + d.cfg.PageSize
	var matched []models.CanonicalItem
	var observed models.Composition

	offset := 0
	for pageNum := 0; pageNum < d.cfg.MaxGenrePages && len(matched) < want; pageNum++ {
		page, err := d.fetch(ctx, cfg, adapter, list, req, offset, "")
		if err != nil {
			if pageNum == 0 {
				return nil, models.Composition{}, err
			}
			// keep what earlier pages produced
			break
		}

		items, _ := d.normalizer.NormalizePage(page.Items, hintFor(req.Type))
		seen := probe.CompositionOf(items)
		observed.HasMovies = observed.HasMovies || seen.HasMovies
		observed.HasShows = observed.HasShows || seen.HasShows

		for _, item := range filterType(items, req.Type) {
			if item.HasGenre(req.Genre) {
				matched = append(matched, item)
			}
		}

		if !page.HasMore || len(page.Items) == 0 {
			break
		}
		offset += len(page.Items)
	}

	if req.Skip >= len(matched) {
		return []models.CanonicalItem{}, observed, nil
	}
	end := min(req.Skip+d.cfg.PageSize, len(matched))
	return matched[req.Skip:end], observed, nil
}

// fetch performs one retried adapter call
func (d *Dispatcher) fetch(ctx context.Context, cfg *models.UserConfig, adapter provider.Adapter, list models.ListDescriptor, req Request, skip int, genre string) (*provider.Page, error) {
	pageReq := provider.PageRequest{
		Ref:   list.Ref,
		Skip:  skip,
		Limit: d.cfg.PageSize,
		Genre: genre,
		Sort:  sortPreference(cfg, list),
	}
	if narrows(req.Type) {
		pageReq.Type = req.Type
	}

	retryCfg := d.cfg.Retry
	retryCfg.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.ProviderLogger().WithFields(map[string]interface{}{
			"provider": string(adapter.Name()),
			"attempt":  attempt,
			"wait_ms":  wait.Milliseconds(),
			"error":    err,
		}).WarnContext(ctx, "Retrying catalog fetch")
	}

	start := time.Now()
	page, err := retry.DoWithResult(ctx, retryCfg, func() (*provider.Page, error) {
		return adapter.FetchPage(ctx, cfg, pageReq)
	}, provider.IsRetryable(adapter))
	d.metrics.ObserveProviderRequest(string(adapter.Name()), err, time.Since(start))
	if err != nil {
		return nil, err
	}
	if page == nil {
		page = &provider.Page{}
	}
	return page, nil
}

func sortPreference(cfg *models.UserConfig, list models.ListDescriptor) *models.SortPreference {
	key := list.Ref.SortKey
	if key == "" {
		key = list.ID
	}
	if pref, ok := cfg.SortPreferences[key]; ok {
		return &pref
	}
	return nil
}

func narrows(catalogType string) bool {
	return catalogType == models.TypeMovie || catalogType == models.TypeSeries
}

func hintFor(catalogType string) string {
	if narrows(catalogType) {
		return catalogType
	}
	return ""
}

func filterType(items []models.CanonicalItem, catalogType string) []models.CanonicalItem {
	if !narrows(catalogType) {
		return items
	}
	out := items[:0:0]
	for _, item := range items {
		if item.Type == catalogType {
			out = append(out, item)
		}
	}
	return out
}
