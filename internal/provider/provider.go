package provider

import (
	"context"

	apperrors "github.com/glefebvre/listcatalog/internal/errors"
	"github.com/glefebvre/listcatalog/internal/models"
)

// DefaultPageSize is the number of items in one catalog page
const DefaultPageSize = 100

// PageRequest asks an adapter for one page of a list
type PageRequest struct {
	Ref   models.CatalogRef
	Type  string // movie, series or empty for any
	Skip  int
	Limit int
	Genre string // only set when the adapter filters server-side
	Sort  *models.SortPreference
}

// Page is one raw upstream page
type Page struct {
	Items   []models.RawItem
	HasMore bool
}

// Adapter is the contract between the engine and one provider family. Concrete
// list-hosting and tracker clients live outside this module.
type Adapter interface {
	// Name identifies the provider family served by the adapter
	Name() models.Provider

	// Enumerate reports every list the configured user owns on the provider
	Enumerate(ctx context.Context, cfg *models.UserConfig) ([]models.ListDescriptor, error)

	// FetchPage returns one raw page for the referenced list
	FetchPage(ctx context.Context, cfg *models.UserConfig, req PageRequest) (*Page, error)
}

// GenreFilterer is implemented by adapters that filter by genre upstream
type GenreFilterer interface {
	FiltersGenres() bool
}

// RandomSource is implemented by adapters able to pick a random public list of a random
// user for the discovery catalog.
type RandomSource interface {
	RandomList(ctx context.Context, cfg *models.UserConfig) (models.CatalogRef, error)
}

// URLResolver is implemented by adapters that can import a single list from its URL
type URLResolver interface {
	CanResolve(rawURL string) bool
	ResolveURL(ctx context.Context, cfg *models.UserConfig, rawURL string) (models.ImportedAddonRecord, error)
}

// RetryClassifier lets an adapter override which of its errors are worth retrying
type RetryClassifier interface {
	IsRetryable(err error) bool
}

// IsRetryable returns the retry predicate for an adapter
func IsRetryable(a Adapter) func(error) bool {
	if rc, ok := a.(RetryClassifier); ok {
		return rc.IsRetryable
	}
	return apperrors.IsRetryable
}

// FiltersGenres reports whether the adapter applies genre filters itself
func FiltersGenres(a Adapter) bool {
	gf, ok := a.(GenreFilterer)
	return ok && gf.FiltersGenres()
}
