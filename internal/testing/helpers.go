package testing

import (
	"context"
	"fmt"
	"strings"
	"sync"

	apperrors "github.com/glefebvre/listcatalog/internal/errors"
	"github.com/glefebvre/listcatalog/internal/models"
	"github.com/glefebvre/listcatalog/internal/provider"
)

// FakeAdapter is an in-memory provider.Adapter. Items are keyed by the native id of the
// list, or by the original id for addon sub-catalogs.
type FakeAdapter struct {
	mu sync.Mutex

	Provider     models.Provider
	Lists        []models.ListDescriptor
	EnumerateErr error
	Items        map[string][]models.RawItem
	// FetchErrors are returned, in order, by the next FetchPage calls
	FetchErrors  []error
	ServerGenres bool
	// ServerTypes filters items by the requested type before paging
	ServerTypes bool
	Resolver     func(rawURL string) (models.ImportedAddonRecord, error)

	enumerateCalls int
	fetchCalls     []provider.PageRequest
}

// NewFakeAdapter creates an empty fake for the provider family
func NewFakeAdapter(name models.Provider) *FakeAdapter {
	return &FakeAdapter{
		Provider: name,
		Items:    make(map[string][]models.RawItem),
	}
}

// Name implements provider.Adapter
func (f *FakeAdapter) Name() models.Provider {
	return f.Provider
}

// Enumerate implements provider.Adapter
func (f *FakeAdapter) Enumerate(ctx context.Context, cfg *models.UserConfig) ([]models.ListDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.enumerateCalls++
	if f.EnumerateErr != nil {
		return nil, f.EnumerateErr
	}
	out := make([]models.ListDescriptor, len(f.Lists))
	copy(out, f.Lists)
	return out, nil
}

// FetchPage implements provider.Adapter
func (f *FakeAdapter) FetchPage(ctx context.Context, cfg *models.UserConfig, req provider.PageRequest) (*provider.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fetchCalls = append(f.fetchCalls, req)
	if len(f.FetchErrors) > 0 {
		err := f.FetchErrors[0]
		f.FetchErrors = f.FetchErrors[1:]
		return nil, err
	}

	key := req.Ref.NativeID
	if key == "" {
		key = req.Ref.OriginalID
	}
	items, ok := f.Items[key]
	if !ok {
		return nil, apperrors.NotFoundError("list", key)
	}

	if f.ServerGenres && req.Genre != "" {
		filtered := make([]models.RawItem, 0, len(items))
		for _, item := range items {
			if hasGenre(item, req.Genre) {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}

	if f.ServerTypes && req.Type != "" {
		filtered := make([]models.RawItem, 0, len(items))
		for _, item := range items {
			if mediaTypeOf(item) == req.Type {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}

	limit := req.Limit
	if limit <= 0 {
		limit = provider.DefaultPageSize
	}
	start := min(req.Skip, len(items))
	end := min(start+limit, len(items))

	return &provider.Page{Items: items[start:end], HasMore: end < len(items)}, nil
}

// FiltersGenres implements provider.GenreFilterer
func (f *FakeAdapter) FiltersGenres() bool {
	return f.ServerGenres
}

// CanResolve implements provider.URLResolver
func (f *FakeAdapter) CanResolve(rawURL string) bool {
	return f.Resolver != nil
}

// ResolveURL implements provider.URLResolver
func (f *FakeAdapter) ResolveURL(ctx context.Context, cfg *models.UserConfig, rawURL string) (models.ImportedAddonRecord, error) {
	return f.Resolver(rawURL)
}

// EnumerateCalls returns how many times Enumerate ran
func (f *FakeAdapter) EnumerateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enumerateCalls
}

// FetchCalls returns a copy of every FetchPage request received
func (f *FakeAdapter) FetchCalls() []provider.PageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]provider.PageRequest, len(f.fetchCalls))
	copy(out, f.fetchCalls)
	return out
}

// FakeRandomAdapter adds the random-discovery capability to FakeAdapter
type FakeRandomAdapter struct {
	*FakeAdapter
	Pick    models.CatalogRef
	PickErr error
}

// RandomList implements provider.RandomSource
func (f *FakeRandomAdapter) RandomList(ctx context.Context, cfg *models.UserConfig) (models.CatalogRef, error) {
	return f.Pick, f.PickErr
}

func mediaTypeOf(item models.RawItem) string {
	if item["mediatype"] == "show" {
		return models.TypeSeries
	}
	return models.TypeMovie
}

func hasGenre(item models.RawItem, genre string) bool {
	genres, _ := item["genres"].([]any)
	for _, g := range genres {
		if s, ok := g.(string); ok && strings.EqualFold(s, genre) {
			return true
		}
	}
	return false
}

// MovieItems builds n raw movie items with ids tt<prefix><i>
func MovieItems(prefix string, n int, genres ...string) []models.RawItem {
	return rawItems(prefix, n, "movie", genres)
}

// SeriesItems builds n raw series items with ids tt<prefix><i>
func SeriesItems(prefix string, n int, genres ...string) []models.RawItem {
	return rawItems(prefix, n, "show", genres)
}

func rawItems(prefix string, n int, mediaType string, genres []string) []models.RawItem {
	items := make([]models.RawItem, 0, n)
	for i := 0; i < n; i++ {
		item := models.RawItem{
			"imdb_id":   fmt.Sprintf("tt%s%05d", prefix, i),
			"title":     fmt.Sprintf("%s %s %d", strings.ToUpper(prefix), mediaType, i),
			"mediatype": mediaType,
		}
		if len(genres) > 0 {
			gs := make([]any, len(genres))
			for j, g := range genres {
				gs[j] = g
			}
			item["genres"] = gs
		}
		items = append(items, item)
	}
	return items
}

// ListHostList creates a list-hosting native list descriptor
func ListHostList(nativeID, name string, overrides ...func(*models.ListDescriptor)) models.ListDescriptor {
	list := models.ListDescriptor{
		ID:         fmt.Sprintf("lh-%s-L", nativeID),
		NativeID:   nativeID,
		Name:       name,
		Source:     models.SourceNative,
		Provider:   models.ProviderListHost,
		Splittable: true,
		Ref: models.CatalogRef{
			Kind:     models.RefListHost,
			Provider: models.ProviderListHost,
			NativeID: nativeID,
			SubKind:  models.SubKindInternal,
		},
	}

	for _, override := range overrides {
		override(&list)
	}
	return list
}

// TrackerList creates a tracker native list descriptor
func TrackerList(slug, name string, overrides ...func(*models.ListDescriptor)) models.ListDescriptor {
	list := models.ListDescriptor{
		ID:         "trakt_" + slug,
		NativeID:   slug,
		Name:       name,
		Source:     models.SourceNative,
		Provider:   models.ProviderTracker,
		Splittable: true,
		Ref: models.CatalogRef{
			Kind:     models.RefTracker,
			Provider: models.ProviderTracker,
			NativeID: slug,
			SortKey:  slug,
		},
	}

	for _, override := range overrides {
		override(&list)
	}
	return list
}

// Config creates a user configuration with credentials for both provider families
func Config(overrides ...func(*models.UserConfig)) *models.UserConfig {
	cfg := models.DefaultConfig()
	cfg.ListHostAPIKey = "test-listhost-key"
	cfg.TrackerAccessToken = "test-tracker-token"

	for _, override := range overrides {
		override(cfg)
	}
	return cfg
}
