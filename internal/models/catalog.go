package models

import "slices"

// Content types understood by the catalog client
const (
	TypeMovie  = "movie"
	TypeSeries = "series"
	TypeAll    = "all"
)

// Provider identifies one provider family
type Provider string

const (
	ProviderListHost Provider = "listhost"
	ProviderTracker  Provider = "tracker"
	ProviderAddon    Provider = "addon"
)

// SourceKind tells where a list came from
type SourceKind string

const (
	SourceNative       SourceKind = "native"
	SourceWatchlist    SourceKind = "watchlist"
	SourceURLImport    SourceKind = "url-import"
	SourceAddonCatalog SourceKind = "addon-catalog"
	SourceRandom       SourceKind = "random"
)

// Composition holds which content types a list contains
type Composition struct {
	HasMovies bool `json:"hasMovies"`
	HasShows  bool `json:"hasShows"`
}

// Both reports whether the list mixes movies and series
func (c Composition) Both() bool {
	return c.HasMovies && c.HasShows
}

// Type derives the emitted type from the flags, empty when neither is set
func (c Composition) Type() string {
	switch {
	case c.Both():
		return TypeAll
	case c.HasMovies:
		return TypeMovie
	case c.HasShows:
		return TypeSeries
	}
	return ""
}

// RefKind is the tag of the CatalogRef union
type RefKind string

const (
	RefRandom       RefKind = "random"
	RefURLImport    RefKind = "url-import"
	RefAddonCatalog RefKind = "addon-catalog"
	RefTracker      RefKind = "tracker"
	RefListHost     RefKind = "listhost"
)

// List-hosting sub-kinds carried in native catalog ids
const (
	SubKindInternal  = "L"
	SubKindExternal  = "E"
	SubKindWatchlist = "W"
)

// CatalogRef says how to fetch a catalog. Only the fields relevant to Kind are set.
type CatalogRef struct {
	Kind         RefKind  `json:"kind"`
	Provider     Provider `json:"provider,omitempty"`
	NativeID     string   `json:"nativeId,omitempty"`
	SubKind      string   `json:"subKind,omitempty"`
	AddonID      string   `json:"addonId,omitempty"`
	OriginalID   string   `json:"originalId,omitempty"`
	OriginalType string   `json:"originalType,omitempty"`
	SortKey      string   `json:"sortKey,omitempty"`
}

// ListDescriptor is one list as reported by a provider during enumeration
type ListDescriptor struct {
	ID           string
	NativeID     string
	Name         string
	Source       SourceKind
	Provider     Provider
	Hint         *Composition
	Static       bool // Hint is authoritative, never probe
	Splittable   bool
	FallbackType string
	AddonID      string
	Genres       []string
	Ref          CatalogRef
}

// Mergeable reports whether the list can be shown either merged or split
func (d ListDescriptor) Mergeable(c Composition) bool {
	return c.Both() && d.Splittable
}

// ExtraField declares one extra request parameter of a catalog
type ExtraField struct {
	Name       string   `json:"name"`
	Options    []string `json:"options,omitempty"`
	IsRequired bool     `json:"isRequired,omitempty"`
}

// CatalogDescriptor is one manifest entry
type CatalogDescriptor struct {
	ID             string       `json:"id"`
	Type           string       `json:"type"`
	Name           string       `json:"name"`
	Extra          []ExtraField `json:"extra"`
	ExtraSupported []string     `json:"extraSupported"`
	Rank           int          `json:"-"`
	Ref            CatalogRef   `json:"-"`
}

// SupportsGenre reports whether the descriptor declares a genre filter
func (d CatalogDescriptor) SupportsGenre() bool {
	return slices.Contains(d.ExtraSupported, "genre")
}
