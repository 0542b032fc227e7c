// Package enrich fills display fields missing from normalized items using a metadata
// source, with a bounded worker pool and a metadata cache keyed by item id.
package enrich

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/glefebvre/listcatalog/internal/cache"
	"github.com/glefebvre/listcatalog/internal/logger"
	"github.com/glefebvre/listcatalog/internal/metrics"
	"github.com/glefebvre/listcatalog/internal/models"
)

// Concurrency bounds of the worker pool
const (
	MinConcurrency     = 5
	MaxConcurrency     = 20
	DefaultConcurrency = 8
)

// Metadata is what a source knows about one item
type Metadata struct {
	Found       bool     `json:"found"`
	Name        string   `json:"name,omitempty"`
	Year        int      `json:"year,omitempty"`
	Poster      string   `json:"poster,omitempty"`
	Background  string   `json:"background,omitempty"`
	Description string   `json:"description,omitempty"`
	Rating      float64  `json:"rating,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	Runtime     int      `json:"runtime,omitempty"`
}

// Source looks up metadata by item id (tt…, tmdb:<n>) and type.
// An unknown item is a nil error with Found false.
type Source interface {
	Lookup(ctx context.Context, id, itemType string) (Metadata, error)
}

// Config tunes the pool
type Config struct {
	Concurrency int
	// Timeout bounds one Enrich call; items not done by then are returned as they were
	Timeout time.Duration
}

// DefaultConfig returns the pool defaults
func DefaultConfig() Config {
	return Config{Concurrency: DefaultConcurrency, Timeout: 5 * time.Second}
}

// Enricher fills missing poster and description fields
type Enricher struct {
	source      Source
	store       cache.Store
	concurrency int
	timeout     time.Duration
	metrics     *metrics.Metrics
}

// New creates an Enricher. store may be nil to disable metadata caching.
func New(source Source, store cache.Store, cfg Config, m *metrics.Metrics) *Enricher {
	return &Enricher{
		source:      source,
		store:       store,
		concurrency: clampConcurrency(cfg.Concurrency),
		timeout:     cfg.Timeout,
		metrics:     m,
	}
}

// Concurrency returns the worker count in use
func (e *Enricher) Concurrency() int {
	return e.concurrency
}

func clampConcurrency(n int) int {
	switch {
	case n <= 0:
		return DefaultConcurrency
	case n < MinConcurrency:
		return MinConcurrency
	case n > MaxConcurrency:
		return MaxConcurrency
	}
	return n
}

// Enrich returns a copy of items with missing display fields filled in. Order is
// preserved and lookup failures leave the item untouched.
func (e *Enricher) Enrich(ctx context.Context, items []models.CanonicalItem) []models.CanonicalItem {
	out := make([]models.CanonicalItem, len(items))
	copy(out, items)
	if e == nil || e.source == nil {
		return out
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i := range out {
		if !out[i].NeedsEnrichment() {
			continue
		}
		i := i
		g.Go(func() error {
			meta, ok := e.lookup(gctx, out[i])
			if ok {
				out[i] = apply(out[i], meta)
			}
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (e *Enricher) lookup(ctx context.Context, item models.CanonicalItem) (Metadata, bool) {
	key := cacheKey(item)

	if e.store != nil {
		var cached Metadata
		hit, err := e.store.Get(ctx, key, &cached)
		e.metrics.CacheLookup("metadata", hit)
		if err == nil && hit {
			e.metrics.Enrichment("cached")
			return cached, cached.Found
		}
	}

	meta, err := e.source.Lookup(ctx, item.ID, item.Type)
	if err != nil {
		e.metrics.Enrichment("error")
		logger.AppLogger().WithFields(map[string]interface{}{
			"item_id": item.ID,
			"type":    item.Type,
			"error":   err,
		}).DebugContext(ctx, "Metadata lookup failed")
		return Metadata{}, false
	}

	if meta.Found {
		e.metrics.Enrichment("found")
	} else {
		e.metrics.Enrichment("unknown")
	}

	if e.store != nil {
		if err := e.store.Set(ctx, key, meta); err != nil {
			logger.AppLogger().WithFields(map[string]interface{}{
				"key":   key,
				"error": err,
			}).Warn("Failed to cache metadata")
		}
	}
	return meta, meta.Found
}

func cacheKey(item models.CanonicalItem) string {
	return "meta:" + item.Type + ":" + item.ID
}

// apply copies metadata into fields the item does not already have
func apply(item models.CanonicalItem, meta Metadata) models.CanonicalItem {
	if item.Name == "" {
		item.Name = meta.Name
	}
	if item.Year == 0 {
		item.Year = meta.Year
	}
	if item.Poster == "" {
		item.Poster = meta.Poster
	}
	if item.Background == "" {
		item.Background = meta.Background
	}
	if item.Description == "" {
		item.Description = meta.Description
	}
	if item.Rating == 0 {
		item.Rating = meta.Rating
	}
	if len(item.Genres) == 0 && len(meta.Genres) > 0 {
		item.Genres = append([]string(nil), meta.Genres...)
	}
	if item.Runtime == 0 {
		item.Runtime = meta.Runtime
	}
	return item
}
