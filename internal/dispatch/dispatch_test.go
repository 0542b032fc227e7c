package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/glefebvre/listcatalog/internal/errors"
	"github.com/glefebvre/listcatalog/internal/logger"
	"github.com/glefebvre/listcatalog/internal/models"
	"github.com/glefebvre/listcatalog/internal/probe"
	"github.com/glefebvre/listcatalog/internal/provider"
	"github.com/glefebvre/listcatalog/internal/retry"
	testhelpers "github.com/glefebvre/listcatalog/internal/testing"
)

func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        4 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

func newDispatcher(t *testing.T, adapters ...provider.Adapter) *Dispatcher {
	t.Helper()
	logger.SetAppLogger(logger.Nop())
	logger.SetProviderLogger(logger.Nop())
	t.Cleanup(func() {
		logger.SetAppLogger(nil)
		logger.SetProviderLogger(nil)
	})

	registry := provider.NewRegistry(adapters...)
	prober := probe.New(registry, probe.Config{TTL: time.Hour, Retry: fastRetry()}, nil)
	return New(registry, prober, Config{Retry: fastRetry()}, nil)
}

func ids(items []models.CanonicalItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func TestDispatchSkipPastEndIsNotAnError(t *testing.T) {
	fake := testhelpers.NewFakeAdapter(models.ProviderListHost)
	fake.Items["15"] = testhelpers.MovieItems("1", 15)
	d := newDispatcher(t, fake)

	result := d.Dispatch(context.Background(), testhelpers.Config(), Request{
		CatalogID: "lh-15-L",
		Type:      models.TypeMovie,
		Skip:      20,
	})

	assert.False(t, result.Empty)
	assert.Empty(t, result.Items)
	assert.NotNil(t, result.Metas())
	assert.Len(t, result.Metas(), 0)
}

func TestDispatchPaging(t *testing.T) {
	fake := testhelpers.NewFakeAdapter(models.ProviderListHost)
	fake.Items["big"] = testhelpers.MovieItems("2", 150)
	d := newDispatcher(t, fake)
	cfg := testhelpers.Config()

	first := d.Dispatch(context.Background(), cfg, Request{CatalogID: "lh-big-L", Type: models.TypeMovie})
	second := d.Dispatch(context.Background(), cfg, Request{CatalogID: "lh-big-L", Type: models.TypeMovie, Skip: 100})

	assert.Len(t, first.Items, 100)
	assert.Len(t, second.Items, 50)
	assert.Equal(t, "tt200100", second.Items[0].ID)

	calls := fake.FetchCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, 100, calls[1].Skip)
	assert.Equal(t, provider.DefaultPageSize, calls[1].Limit)
	assert.Equal(t, models.SubKindInternal, calls[0].Ref.SubKind)
}

func TestDispatchFiltersRequestedType(t *testing.T) {
	fake := testhelpers.NewFakeAdapter(models.ProviderListHost)
	fake.Items["mix"] = append(testhelpers.MovieItems("3", 2), testhelpers.SeriesItems("4", 3)...)
	d := newDispatcher(t, fake)

	result := d.Dispatch(context.Background(), testhelpers.Config(), Request{CatalogID: "lh-mix-L", Type: models.TypeSeries})

	assert.Equal(t, []string{"tt400000", "tt400001", "tt400002"}, ids(result.Items))
	assert.True(t, result.HasMovies)
	assert.True(t, result.HasShows)
	assert.Equal(t, models.TypeSeries, fake.FetchCalls()[0].Type)

	all := d.Dispatch(context.Background(), testhelpers.Config(), Request{CatalogID: "lh-mix-L", Type: models.TypeAll})
	assert.Len(t, all.Items, 5)
}

func TestDispatchEmptyResults(t *testing.T) {
	tests := []struct {
		name          string
		catalogID     string
		errors        []error
		expectedCode  apperrors.ErrorCode
		expectedCalls int
	}{
		{
			name:          "auth error is not retried",
			catalogID:     "lh-1-L",
			errors:        []error{apperrors.FromHTTPStatus("listhost", 401, "bad key")},
			expectedCode:  apperrors.CodeUnauthorized,
			expectedCalls: 1,
		},
		{
			name:          "not found is not retried",
			catalogID:     "lh-1-L",
			errors:        []error{apperrors.FromHTTPStatus("listhost", 404, "")},
			expectedCode:  apperrors.CodeNotFound,
			expectedCalls: 1,
		},
		{
			name:      "timeouts exhaust retries",
			catalogID: "lh-1-L",
			errors: []error{
				apperrors.FromTransport("listhost", context.DeadlineExceeded),
				apperrors.FromTransport("listhost", context.DeadlineExceeded),
				apperrors.FromTransport("listhost", context.DeadlineExceeded),
			},
			expectedCode:  apperrors.CodeServiceTimeout,
			expectedCalls: 3,
		},
		{
			name:          "unknown id is a resolution miss",
			catalogID:     "somewhere.else",
			expectedCode:  apperrors.CodeResolutionMiss,
			expectedCalls: 0,
		},
		{
			name:          "orphan url import is a resolution miss",
			catalogID:     "urlimport_listhost_99",
			expectedCode:  apperrors.CodeResolutionMiss,
			expectedCalls: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := testhelpers.NewFakeAdapter(models.ProviderListHost)
			fake.Items["1"] = testhelpers.MovieItems("5", 3)
			fake.FetchErrors = tt.errors
			d := newDispatcher(t, fake)

			result := d.Dispatch(context.Background(), testhelpers.Config(), Request{CatalogID: tt.catalogID, Type: models.TypeMovie})

			assert.True(t, result.Empty)
			assert.Equal(t, tt.expectedCode, result.Reason)
			assert.Empty(t, result.Metas())
			assert.Len(t, fake.FetchCalls(), tt.expectedCalls)
		})
	}
}

func TestDispatchRateLimitedThenSuccess(t *testing.T) {
	fake := testhelpers.NewFakeAdapter(models.ProviderTracker)
	fake.FetchErrors = []error{apperrors.FromHTTPStatus("tracker", 429, "")}
	fake.Items["favorites"] = testhelpers.MovieItems("6", 4)
	d := newDispatcher(t, fake)

	result := d.Dispatch(context.Background(), testhelpers.Config(), Request{CatalogID: "trakt_favorites", Type: models.TypeMovie})

	assert.False(t, result.Empty)
	assert.Len(t, result.Items, 4)
	assert.Len(t, fake.FetchCalls(), 2)
}

func TestDispatchTrackerSortPreference(t *testing.T) {
	fake := testhelpers.NewFakeAdapter(models.ProviderTracker)
	fake.Items["watchlist"] = testhelpers.MovieItems("7", 1)
	d := newDispatcher(t, fake)

	cfg := testhelpers.Config().WithSort("watchlist", models.SortPreference{Sort: "added", Order: "asc"})
	d.Dispatch(context.Background(), cfg, Request{CatalogID: "trakt_watchlist", Type: models.TypeMovie})

	calls := fake.FetchCalls()
	require.Len(t, calls, 1)
	require.NotNil(t, calls[0].Sort)
	assert.Equal(t, "added", calls[0].Sort.Sort)
	assert.Equal(t, "asc", calls[0].Sort.Order)
	assert.Equal(t, "watchlist", calls[0].Ref.NativeID)
}

func TestDispatchImportedAddonCatalog(t *testing.T) {
	addon := testhelpers.NewFakeAdapter(models.ProviderAddon)
	addon.Items["top"] = testhelpers.SeriesItems("8", 2)
	d := newDispatcher(t, addon)

	cfg := testhelpers.Config().WithImportedAddon(models.ImportedAddonRecord{
		ID:   "addon_cinema",
		Kind: models.AddonKindGroup,
		Catalogs: []models.AddonCatalog{
			{ID: "cinema.top", Type: models.TypeSeries, Name: "Top", OriginalID: "top", OriginalType: models.TypeSeries},
		},
	})

	result := d.Dispatch(context.Background(), cfg, Request{CatalogID: "cinema.top", Type: models.TypeSeries})

	assert.Len(t, result.Items, 2)
	assert.False(t, result.ConfigChanged)

	calls := addon.FetchCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, models.RefAddonCatalog, calls[0].Ref.Kind)
	assert.Equal(t, "addon_cinema", calls[0].Ref.AddonID)
	assert.Equal(t, models.TypeSeries, calls[0].Ref.OriginalType)
}

func TestDispatchURLImport(t *testing.T) {
	lh := testhelpers.NewFakeAdapter(models.ProviderListHost)
	lh.Items["4242"] = testhelpers.MovieItems("9", 3)
	d := newDispatcher(t, lh)

	cfg := testhelpers.Config().WithImportedAddon(models.ImportedAddonRecord{
		ID:       "urlimport_listhost_4242",
		Name:     "Shared",
		Kind:     models.AddonKindURLListHost,
		NativeID: "4242",
	})

	result := d.Dispatch(context.Background(), cfg, Request{CatalogID: "urlimport_listhost_4242", Type: models.TypeMovie})

	assert.Len(t, result.Items, 3)
	call := lh.FetchCalls()[0]
	assert.Equal(t, models.RefURLImport, call.Ref.Kind)
	assert.Equal(t, models.SubKindExternal, call.Ref.SubKind)
}

func TestDispatchRemovedListsAreNotServed(t *testing.T) {
	addon := testhelpers.NewFakeAdapter(models.ProviderAddon)
	addon.Items["top"] = testhelpers.MovieItems("8", 2)
	lh := testhelpers.NewFakeAdapter(models.ProviderListHost)
	lh.Items["1"] = testhelpers.MovieItems("1", 2)
	lh.Items["4242"] = testhelpers.MovieItems("9", 2)
	d := newDispatcher(t, addon, lh)

	base := testhelpers.Config().
		WithImportedAddon(models.ImportedAddonRecord{
			ID:   "addon_cinema",
			Kind: models.AddonKindGroup,
			Catalogs: []models.AddonCatalog{
				{ID: "cinema.top", Type: models.TypeMovie, Name: "Top", OriginalID: "top", OriginalType: models.TypeMovie},
			},
		}).
		WithImportedAddon(models.ImportedAddonRecord{
			ID:       "urlimport_listhost_4242",
			Kind:     models.AddonKindURLListHost,
			NativeID: "4242",
		})

	tests := []struct {
		name      string
		removed   string
		catalogID string
	}{
		{"addon group", "addon_cinema", "cinema.top"},
		{"addon sub-catalog", "cinema.top", "cinema.top"},
		{"url import", "urlimport_listhost_4242", "urlimport_listhost_4242"},
		{"native list", "lh-1-L", "lh-1-L"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := Request{CatalogID: tt.catalogID, Type: models.TypeMovie}
			require.False(t, d.Dispatch(context.Background(), base, req).Empty)

			result := d.Dispatch(context.Background(), base.WithRemoved(tt.removed), req)

			assert.True(t, result.Empty)
			assert.Equal(t, apperrors.CodeResolutionMiss, result.Reason)
		})
	}
}

func TestDispatchListHostSubKindResolution(t *testing.T) {
	t.Run("from cached metadata", func(t *testing.T) {
		lh := testhelpers.NewFakeAdapter(models.ProviderListHost)
		lh.Items["legacy"] = testhelpers.MovieItems("1", 1)
		d := newDispatcher(t, lh)

		cfg := testhelpers.Config()
		cfg.ListsMetadata["lh-legacy"] = models.ListMetadata{HasMovies: true, ListType: models.SubKindExternal}

		result := d.Dispatch(context.Background(), cfg, Request{CatalogID: "lh-legacy", Type: models.TypeMovie})

		assert.Len(t, result.Items, 1)
		assert.Equal(t, models.SubKindExternal, lh.FetchCalls()[0].Ref.SubKind)
		assert.Zero(t, lh.EnumerateCalls())
	})

	t.Run("from enumeration", func(t *testing.T) {
		lh := testhelpers.NewFakeAdapter(models.ProviderListHost)
		lh.Lists = []models.ListDescriptor{testhelpers.ListHostList("legacy", "Legacy", func(l *models.ListDescriptor) {
			l.Ref.SubKind = models.SubKindWatchlist
		})}
		lh.Items["legacy"] = testhelpers.MovieItems("1", 1)
		d := newDispatcher(t, lh)

		d.Dispatch(context.Background(), testhelpers.Config(), Request{CatalogID: "lh-legacy", Type: models.TypeMovie})

		assert.Equal(t, 1, lh.EnumerateCalls())
		assert.Equal(t, models.SubKindWatchlist, lh.FetchCalls()[0].Ref.SubKind)
	})

	t.Run("unknown list", func(t *testing.T) {
		lh := testhelpers.NewFakeAdapter(models.ProviderListHost)
		d := newDispatcher(t, lh)

		result := d.Dispatch(context.Background(), testhelpers.Config(), Request{CatalogID: "lh-ghost", Type: models.TypeMovie})

		assert.True(t, result.Empty)
		assert.Equal(t, apperrors.CodeResolutionMiss, result.Reason)
	})
}

func TestDispatchGenreOverFetchStopsAtCeiling(t *testing.T) {
	fake := testhelpers.NewFakeAdapter(models.ProviderListHost)
	items := make([]models.RawItem, 0, 1000)
	for i := 0; i < 1000; i++ {
		genre := "Drama"
		if i%10 == 9 {
			genre = "Comedy"
		}
		items = append(items, models.RawItem{
			"imdb_id":   fmt.Sprintf("tt%07d", i),
			"mediatype": "movie",
			"genres":    []any{genre},
		})
	}
	fake.Items["long"] = items
	d := newDispatcher(t, fake)

	result := d.Dispatch(context.Background(), testhelpers.Config(), Request{
		CatalogID: "lh-long-L",
		Type:      models.TypeMovie,
		Genre:     "Comedy",
	})

	assert.False(t, result.Empty)
	assert.Len(t, result.Items, 50)
	assert.Len(t, fake.FetchCalls(), 5)
	for _, call := range fake.FetchCalls() {
		assert.Empty(t, call.Genre)
	}
	assert.False(t, result.ConfigChanged)
}

func TestDispatchGenreOverFetchSlicesWindow(t *testing.T) {
	fake := testhelpers.NewFakeAdapter(models.ProviderListHost)
	fake.Items["short"] = append(testhelpers.MovieItems("1", 30, "Horror"), testhelpers.MovieItems("2", 30, "Drama")...)
	d := newDispatcher(t, fake)

	result := d.Dispatch(context.Background(), testhelpers.Config(), Request{
		CatalogID: "lh-short-L",
		Type:      models.TypeMovie,
		Genre:     "horror",
		Skip:      20,
	})

	assert.Len(t, result.Items, 10)
	assert.Equal(t, "tt100020", result.Items[0].ID)
	assert.Len(t, fake.FetchCalls(), 1)
}

func TestDispatchServerSideGenre(t *testing.T) {
	fake := testhelpers.NewFakeAdapter(models.ProviderListHost)
	fake.ServerGenres = true
	fake.Items["g"] = append(testhelpers.MovieItems("1", 3, "Horror"), testhelpers.MovieItems("2", 3, "Drama")...)
	d := newDispatcher(t, fake)

	result := d.Dispatch(context.Background(), testhelpers.Config(), Request{CatalogID: "lh-g-L", Type: models.TypeMovie, Genre: "Horror"})

	assert.Len(t, result.Items, 3)
	require.Len(t, fake.FetchCalls(), 1)
	assert.Equal(t, "Horror", fake.FetchCalls()[0].Genre)
}

func TestDispatchRefreshesProbeCache(t *testing.T) {
	fake := testhelpers.NewFakeAdapter(models.ProviderListHost)
	fake.Items["obs"] = append(testhelpers.MovieItems("1", 2), testhelpers.SeriesItems("2", 2)...)
	d := newDispatcher(t, fake)
	cfg := testhelpers.Config()

	first := d.Dispatch(context.Background(), cfg, Request{CatalogID: "lh-obs-L", Type: models.TypeAll})
	require.True(t, first.ConfigChanged)
	meta := first.Config.ListsMetadata["lh-obs-L"]
	assert.True(t, meta.HasMovies)
	assert.True(t, meta.HasShows)
	assert.Equal(t, models.SubKindInternal, meta.ListType)
	assert.Empty(t, cfg.ListsMetadata)

	later := d.Dispatch(context.Background(), cfg, Request{CatalogID: "lh-obs-L", Type: models.TypeAll, Skip: 100})
	assert.False(t, later.ConfigChanged)
}

func TestDispatchTypedPageOnlyAddsFlags(t *testing.T) {
	fake := testhelpers.NewFakeAdapter(models.ProviderListHost)
	fake.Items["typed"] = testhelpers.MovieItems("1", 2)
	d := newDispatcher(t, fake)

	cfg := testhelpers.Config()
	cfg.ListsMetadata["lh-typed-L"] = models.ListMetadata{HasShows: true, LastChecked: time.Now().UnixMilli()}

	result := d.Dispatch(context.Background(), cfg, Request{CatalogID: "lh-typed-L", Type: models.TypeMovie})

	require.True(t, result.ConfigChanged)
	meta := result.Config.ListsMetadata["lh-typed-L"]
	assert.True(t, meta.HasMovies)
	assert.True(t, meta.HasShows)
}

func TestDispatchTypedPageKeepsSplitListWithoutCache(t *testing.T) {
	fake := testhelpers.NewFakeAdapter(models.ProviderListHost)
	fake.ServerTypes = true
	fake.Items["3"] = append(testhelpers.MovieItems("1", 3), testhelpers.SeriesItems("2", 3)...)
	d := newDispatcher(t, fake)

	cases := map[string]*models.UserConfig{
		"no entry": testhelpers.Config(),
		"stale entry": testhelpers.Config(func(c *models.UserConfig) {
			c.ListsMetadata["lh-3-L"] = models.ListMetadata{HasMovies: true, HasShows: true, LastChecked: 1}
		}),
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			for _, catalogType := range []string{models.TypeMovie, models.TypeSeries} {
				result := d.Dispatch(context.Background(), cfg, Request{CatalogID: "lh-3-L", Type: catalogType})

				assert.Len(t, result.Items, 3)
				assert.False(t, result.ConfigChanged, catalogType)
				assert.Nil(t, result.Config)
			}
		})
	}
}

func TestDispatchRandomCatalog(t *testing.T) {
	random := &testhelpers.FakeRandomAdapter{
		FakeAdapter: testhelpers.NewFakeAdapter(models.ProviderListHost),
		Pick:        models.CatalogRef{Kind: models.RefListHost, NativeID: "public-1", SubKind: models.SubKindExternal},
	}
	random.Items["public-1"] = testhelpers.MovieItems("1", 7)
	d := newDispatcher(t, random)

	result := d.Dispatch(context.Background(), testhelpers.Config(), Request{CatalogID: "random_list_catalog", Type: models.TypeAll})

	assert.Len(t, result.Items, 7)
	assert.False(t, result.ConfigChanged)
	assert.Equal(t, models.ProviderListHost, random.FetchCalls()[0].Ref.Provider)
}

func TestDispatchRandomWithoutSource(t *testing.T) {
	d := newDispatcher(t, testhelpers.NewFakeAdapter(models.ProviderTracker))

	result := d.Dispatch(context.Background(), testhelpers.Config(), Request{CatalogID: "random_list_catalog", Type: models.TypeAll})

	assert.True(t, result.Empty)
	assert.Equal(t, apperrors.CodeResolutionMiss, result.Reason)
}

func TestDispatchUsesKnownRef(t *testing.T) {
	fake := testhelpers.NewFakeAdapter(models.ProviderTracker)
	fake.Items["custom"] = testhelpers.MovieItems("1", 1)
	d := newDispatcher(t, fake)

	ref := models.CatalogRef{Kind: models.RefTracker, Provider: models.ProviderTracker, NativeID: "custom", SortKey: "custom"}
	result := d.Dispatch(context.Background(), testhelpers.Config(), Request{
		CatalogID: "renamed-elsewhere",
		Type:      models.TypeMovie,
		Ref:       &ref,
	})

	assert.Len(t, result.Items, 1)
}

func TestDispatchPlainErrorDegradesToEmpty(t *testing.T) {
	fake := testhelpers.NewFakeAdapter(models.ProviderListHost)
	fake.FetchErrors = []error{errors.New("unexpected payload")}
	d := newDispatcher(t, fake)

	result := d.Dispatch(context.Background(), testhelpers.Config(), Request{CatalogID: "lh-1-L", Type: models.TypeMovie})

	assert.True(t, result.Empty)
	assert.Equal(t, apperrors.CodeUnknown, result.Reason)
	assert.Len(t, fake.FetchCalls(), 1)
}
