package probe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/glefebvre/listcatalog/internal/errors"
	"github.com/glefebvre/listcatalog/internal/logger"
	"github.com/glefebvre/listcatalog/internal/models"
	"github.com/glefebvre/listcatalog/internal/provider"
	"github.com/glefebvre/listcatalog/internal/retry"
	testhelpers "github.com/glefebvre/listcatalog/internal/testing"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		TTL:      time.Hour,
		PageSize: 100,
		Retry: retry.Config{
			MaxAttempts:       3,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        5 * time.Millisecond,
			BackoffMultiplier: 2,
		},
	}
}

func newProber(t *testing.T, adapters ...provider.Adapter) *Prober {
	t.Helper()
	logger.SetAppLogger(logger.Nop())
	logger.SetProviderLogger(logger.Nop())
	t.Cleanup(func() {
		logger.SetAppLogger(nil)
		logger.SetProviderLogger(nil)
	})

	p := New(provider.NewRegistry(adapters...), testConfig(), nil)
	p.now = func() time.Time { return fixedNow }
	return p
}

func TestCompositionFreshCacheSkipsProbe(t *testing.T) {
	fake := testhelpers.NewFakeAdapter(models.ProviderListHost)
	p := newProber(t, fake)

	list := testhelpers.ListHostList("42", "Mixed")
	cfg := testhelpers.Config()
	cfg.ListsMetadata[list.ID] = models.ListMetadata{
		HasMovies:   true,
		LastChecked: fixedNow.Add(-10 * time.Minute).UnixMilli(),
	}

	comp, changed := p.Composition(context.Background(), cfg, list)

	assert.False(t, changed)
	assert.Equal(t, models.Composition{HasMovies: true}, comp)
	assert.Empty(t, fake.FetchCalls())
}

func TestCompositionProbesStaleEntry(t *testing.T) {
	fake := testhelpers.NewFakeAdapter(models.ProviderListHost)
	fake.Items["42"] = append(testhelpers.MovieItems("1", 5), testhelpers.SeriesItems("2", 5)...)
	p := newProber(t, fake)

	list := testhelpers.ListHostList("42", "Mixed")
	cfg := testhelpers.Config()
	cfg.ListsMetadata[list.ID] = models.ListMetadata{
		HasMovies:   true,
		LastChecked: fixedNow.Add(-2 * time.Hour).UnixMilli(),
	}

	comp, changed := p.Composition(context.Background(), cfg, list)

	assert.True(t, changed)
	assert.Equal(t, models.Composition{HasMovies: true, HasShows: true}, comp)
	require.Len(t, fake.FetchCalls(), 1)
	assert.Equal(t, 0, fake.FetchCalls()[0].Skip)

	meta := cfg.ListsMetadata[list.ID]
	assert.True(t, meta.HasMovies)
	assert.True(t, meta.HasShows)
	assert.False(t, meta.ErrorFetching)
	assert.Equal(t, fixedNow.UnixMilli(), meta.LastChecked)
	assert.Equal(t, models.SubKindInternal, meta.ListType)
}

func TestCompositionStaticListUsesHint(t *testing.T) {
	fake := testhelpers.NewFakeAdapter(models.ProviderAddon)
	p := newProber(t, fake)

	list := models.ListDescriptor{
		ID:       "cinema.top",
		Provider: models.ProviderAddon,
		Static:   true,
		Hint:     &models.Composition{HasMovies: true},
	}
	cfg := testhelpers.Config()

	comp, changed := p.Composition(context.Background(), cfg, list)

	assert.False(t, changed)
	assert.Equal(t, models.Composition{HasMovies: true}, comp)
	assert.Empty(t, fake.FetchCalls())
	assert.NotContains(t, cfg.ListsMetadata, list.ID)
}

func TestCompositionFailureFallbacks(t *testing.T) {
	timeout := apperrors.New(apperrors.CodeServiceTimeout, "upstream timed out")

	tests := []struct {
		name          string
		errors        []error
		cached        *models.ListMetadata
		hint          *models.Composition
		expected      models.Composition
		expectedCalls int
	}{
		{
			name:          "retries exhausted keep cached flags",
			errors:        []error{timeout, timeout, timeout},
			cached:        &models.ListMetadata{HasShows: true, LastChecked: 1},
			expected:      models.Composition{HasShows: true},
			expectedCalls: 3,
		},
		{
			name:          "hint used without cache",
			errors:        []error{timeout, timeout, timeout},
			hint:          &models.Composition{HasMovies: true},
			expected:      models.Composition{HasMovies: true},
			expectedCalls: 3,
		},
		{
			name:          "assume both without cache or hint",
			errors:        []error{apperrors.UnauthorizedError("listhost")},
			expected:      models.Composition{HasMovies: true, HasShows: true},
			expectedCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := testhelpers.NewFakeAdapter(models.ProviderListHost)
			fake.FetchErrors = tt.errors
			p := newProber(t, fake)

			list := testhelpers.ListHostList("7", "Broken", func(d *models.ListDescriptor) {
				d.Hint = tt.hint
			})
			cfg := testhelpers.Config()
			if tt.cached != nil {
				cfg.ListsMetadata[list.ID] = *tt.cached
			}

			comp, changed := p.Composition(context.Background(), cfg, list)

			assert.True(t, changed)
			assert.Equal(t, tt.expected, comp)
			assert.Len(t, fake.FetchCalls(), tt.expectedCalls)

			meta := cfg.ListsMetadata[list.ID]
			assert.True(t, meta.ErrorFetching)
			assert.Equal(t, tt.expected, meta.Composition())
		})
	}
}

func TestCompositionErrorEntryIsReprobed(t *testing.T) {
	fake := testhelpers.NewFakeAdapter(models.ProviderListHost)
	fake.Items["7"] = testhelpers.SeriesItems("3", 2)
	p := newProber(t, fake)

	list := testhelpers.ListHostList("7", "Recovering")
	cfg := testhelpers.Config()
	cfg.ListsMetadata[list.ID] = models.ListMetadata{
		HasMovies:     true,
		HasShows:      true,
		LastChecked:   fixedNow.UnixMilli(),
		ErrorFetching: true,
	}

	comp, changed := p.Composition(context.Background(), cfg, list)

	assert.True(t, changed)
	assert.Equal(t, models.Composition{HasShows: true}, comp)
	assert.False(t, cfg.ListsMetadata[list.ID].ErrorFetching)
}

func TestCompositionRateLimitedThenSuccess(t *testing.T) {
	fake := testhelpers.NewFakeAdapter(models.ProviderTracker)
	fake.FetchErrors = []error{apperrors.FromHTTPStatus("tracker", 429, "slow down")}
	fake.Items["watched"] = testhelpers.MovieItems("4", 3)
	p := newProber(t, fake)

	list := testhelpers.TrackerList("watched", "Watched")
	cfg := testhelpers.Config()

	comp, changed := p.Composition(context.Background(), cfg, list)

	assert.True(t, changed)
	assert.Equal(t, models.Composition{HasMovies: true}, comp)
	assert.Len(t, fake.FetchCalls(), 2)
	assert.False(t, cfg.ListsMetadata[list.ID].ErrorFetching)
	assert.Empty(t, cfg.ListsMetadata[list.ID].ListType)
}

func TestProbesAreSpacedPerProvider(t *testing.T) {
	fake := testhelpers.NewFakeAdapter(models.ProviderListHost)
	fake.Items["1"] = testhelpers.MovieItems("5", 1)
	fake.Items["2"] = testhelpers.MovieItems("6", 1)

	logger.SetAppLogger(logger.Nop())
	t.Cleanup(func() { logger.SetAppLogger(nil) })

	cfg := testConfig()
	cfg.Delay = 60 * time.Millisecond
	p := New(provider.NewRegistry(fake), cfg, nil)

	userCfg := testhelpers.Config()
	start := time.Now()
	p.Composition(context.Background(), userCfg, testhelpers.ListHostList("1", "One"))
	p.Composition(context.Background(), userCfg, testhelpers.ListHostList("2", "Two"))

	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Len(t, fake.FetchCalls(), 2)
}

func TestCompositionMissingAdapterFallsBack(t *testing.T) {
	p := newProber(t)

	list := testhelpers.TrackerList("orphan", "Orphan")
	cfg := testhelpers.Config()

	comp, changed := p.Composition(context.Background(), cfg, list)

	assert.True(t, changed)
	assert.True(t, comp.Both())
	assert.True(t, cfg.ListsMetadata[list.ID].ErrorFetching)
}

func TestObserve(t *testing.T) {
	p := newProber(t)
	list := testhelpers.ListHostList("9", "Observed")
	cfg := testhelpers.Config()

	assert.True(t, p.Observe(cfg, list, models.Composition{HasMovies: true}))
	assert.False(t, p.Observe(cfg, list, models.Composition{HasMovies: true}))
	assert.True(t, p.Observe(cfg, list, models.Composition{HasMovies: true, HasShows: true}))

	static := list
	static.Static = true
	assert.False(t, p.Observe(cfg, static, models.Composition{HasShows: true}))
}

func TestCached(t *testing.T) {
	p := newProber(t)
	list := testhelpers.ListHostList("7", "Cached")
	cfg := testhelpers.Config()

	_, ok := p.Cached(cfg, list)
	assert.False(t, ok)

	cfg.ListsMetadata[list.ID] = models.ListMetadata{HasShows: true, LastChecked: fixedNow.Add(-2 * time.Hour).UnixMilli()}
	_, ok = p.Cached(cfg, list)
	assert.False(t, ok, "stale entry")

	cfg.ListsMetadata[list.ID] = models.ListMetadata{HasShows: true, LastChecked: fixedNow.Add(-time.Minute).UnixMilli(), ErrorFetching: true}
	_, ok = p.Cached(cfg, list)
	assert.False(t, ok, "failed probe")

	cfg.ListsMetadata[list.ID] = models.ListMetadata{HasShows: true, LastChecked: fixedNow.Add(-time.Minute).UnixMilli()}
	comp, ok := p.Cached(cfg, list)
	assert.True(t, ok)
	assert.Equal(t, models.Composition{HasShows: true}, comp)
}

func TestCompositionOf(t *testing.T) {
	assert.Equal(t, models.Composition{}, CompositionOf(nil))
	assert.Equal(t, models.Composition{HasMovies: true, HasShows: true}, CompositionOf([]models.CanonicalItem{
		{Type: models.TypeSeries}, {Type: models.TypeMovie},
	}))
}
