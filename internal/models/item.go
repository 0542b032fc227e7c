package models

import (
	"strconv"
	"strings"
)

// CanonicalItem is the normalized form of one provider item. It is rebuilt on every
// request and never persisted.
type CanonicalItem struct {
	ID          string
	Type        string
	Name        string
	Year        int
	ReleaseInfo string
	Poster      string
	Background  string
	Logo        string
	Description string
	Rating      float64
	Genres      []string
	Cast        []string
	Director    []string
	Writer      []string
	Runtime     int // minutes
	Status      string
}

// HasGenre reports whether the item carries the genre, case-insensitively
func (i CanonicalItem) HasGenre(genre string) bool {
	for _, g := range i.Genres {
		if strings.EqualFold(g, genre) {
			return true
		}
	}
	return false
}

// IMDbID returns the tt-prefixed id when the item uses one
func (i CanonicalItem) IMDbID() string {
	if strings.HasPrefix(i.ID, "tt") {
		return i.ID
	}
	return ""
}

// NeedsEnrichment reports whether display fields are missing
func (i CanonicalItem) NeedsEnrichment() bool {
	return i.Poster == "" || i.Description == ""
}

// Meta is the catalog-protocol rendering of an item
type Meta struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Name        string   `json:"name,omitempty"`
	Poster      string   `json:"poster,omitempty"`
	Background  string   `json:"background,omitempty"`
	Logo        string   `json:"logo,omitempty"`
	Description string   `json:"description,omitempty"`
	ReleaseInfo string   `json:"releaseInfo,omitempty"`
	Year        int      `json:"year,omitempty"`
	IMDbRating  string   `json:"imdbRating,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	Cast        []string `json:"cast,omitempty"`
	Director    []string `json:"director,omitempty"`
	Writer      []string `json:"writer,omitempty"`
	Runtime     string   `json:"runtime,omitempty"`
	Status      string   `json:"status,omitempty"`
}

// ToMeta renders the item for the wire, omitting undefined fields
func (i CanonicalItem) ToMeta() Meta {
	m := Meta{
		ID:          i.ID,
		Type:        i.Type,
		Name:        i.Name,
		Poster:      i.Poster,
		Background:  i.Background,
		Logo:        i.Logo,
		Description: i.Description,
		ReleaseInfo: i.ReleaseInfo,
		Year:        i.Year,
		Genres:      i.Genres,
		Cast:        i.Cast,
		Director:    i.Director,
		Writer:      i.Writer,
	}
	if m.ReleaseInfo == "" && i.Year > 0 {
		m.ReleaseInfo = strconv.Itoa(i.Year)
	}
	if i.Rating > 0 {
		m.IMDbRating = strconv.FormatFloat(i.Rating, 'f', 1, 64)
	}
	if i.Runtime > 0 {
		m.Runtime = strconv.Itoa(i.Runtime) + " min"
	}
	if i.Type == TypeSeries {
		m.Status = i.Status
	}
	return m
}

// CatalogResponse is the body of a catalog request
type CatalogResponse struct {
	Metas []Meta `json:"metas"`
}

// MetaResponse is the body of a meta request
type MetaResponse struct {
	Meta Meta `json:"meta"`
}

// Manifest is the top-level document describing all catalogs offered to the client
type Manifest struct {
	ID            string              `json:"id"`
	Version       string              `json:"version"`
	Name          string              `json:"name"`
	Description   string              `json:"description"`
	Logo          string              `json:"logo,omitempty"`
	Resources     []string            `json:"resources"`
	Types         []string            `json:"types"`
	IDPrefixes    []string            `json:"idPrefixes,omitempty"`
	Catalogs      []CatalogDescriptor `json:"catalogs"`
	BehaviorHints map[string]bool     `json:"behaviorHints,omitempty"`
}

// RawItem is one provider item as decoded from the upstream JSON body
type RawItem map[string]any
