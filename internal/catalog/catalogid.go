package catalog

import (
	"strings"

	"github.com/glefebvre/listcatalog/internal/models"
)

// Catalog id grammar. Imported addon sub-catalog ids keep the source addon's id and do
// not follow any of these forms.
const (
	ListHostPrefix  = "lh-"
	TrackerPrefix   = "trakt_"
	URLImportPrefix = "urlimport_"
	RandomCatalogID = "random_list_catalog"

	// WatchlistNativeID is the native id of the list-hosting watchlist
	WatchlistNativeID = "watchlist"
)

// ListHostID formats a list-hosting catalog id, e.g. lh-1234-L
func ListHostID(nativeID, subKind string) string {
	return ListHostPrefix + nativeID + "-" + subKind
}

// WatchlistID is the catalog id of the list-hosting watchlist
func WatchlistID() string {
	return ListHostID(WatchlistNativeID, models.SubKindWatchlist)
}

// TrackerID formats a tracker catalog id, e.g. trakt_favorites
func TrackerID(slug string) string {
	return TrackerPrefix + slug
}

// URLImportID formats the id of a list imported by URL
func URLImportID(p models.Provider, nativeID string) string {
	return URLImportPrefix + string(p) + "_" + nativeID
}

// ParseID recognizes the structured forms of the grammar and returns the reference they
// describe. A list-hosting id without a sub-kind suffix yields an empty SubKind. Ids
// that match no form, such as addon sub-catalog ids, return false.
func ParseID(id string) (models.CatalogRef, bool) {
	switch {
	case id == RandomCatalogID:
		return models.CatalogRef{Kind: models.RefRandom}, true

	case strings.HasPrefix(id, URLImportPrefix):
		rest := strings.TrimPrefix(id, URLImportPrefix)
		p, nativeID, ok := strings.Cut(rest, "_")
		if !ok || nativeID == "" {
			return models.CatalogRef{}, false
		}
		ref := models.CatalogRef{
			Kind:     models.RefURLImport,
			Provider: models.Provider(p),
			NativeID: nativeID,
		}
		switch ref.Provider {
		case models.ProviderListHost:
			ref.SubKind = models.SubKindExternal
		case models.ProviderTracker:
			ref.SortKey = nativeID
		default:
			return models.CatalogRef{}, false
		}
		return ref, true

	case strings.HasPrefix(id, TrackerPrefix):
		slug := strings.TrimPrefix(id, TrackerPrefix)
		if slug == "" {
			return models.CatalogRef{}, false
		}
		return models.CatalogRef{
			Kind:     models.RefTracker,
			Provider: models.ProviderTracker,
			NativeID: slug,
			SortKey:  slug,
		}, true

	case strings.HasPrefix(id, ListHostPrefix):
		nativeID, subKind := splitSubKind(strings.TrimPrefix(id, ListHostPrefix))
		if nativeID == "" {
			return models.CatalogRef{}, false
		}
		return models.CatalogRef{
			Kind:     models.RefListHost,
			Provider: models.ProviderListHost,
			NativeID: nativeID,
			SubKind:  subKind,
		}, true
	}

	return models.CatalogRef{}, false
}

func splitSubKind(rest string) (string, string) {
	if i := strings.LastIndexByte(rest, '-'); i >= 0 {
		switch suffix := rest[i+1:]; suffix {
		case models.SubKindInternal, models.SubKindExternal, models.SubKindWatchlist:
			return rest[:i], suffix
		}
	}
	return rest, ""
}

// RefKey is the key under which a synthesized reference is stored. Two imported
// sub-catalogs may share an id under different types.
func RefKey(catalogType, id string) string {
	return catalogType + "/" + id
}
