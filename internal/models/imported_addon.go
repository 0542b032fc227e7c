package models

import "slices"

// AddonKind distinguishes imported addon groups from single imported lists
type AddonKind string

const (
	AddonKindGroup       AddonKind = "addon"
	AddonKindURLListHost AddonKind = "url-listhost"
	AddonKindURLTracker  AddonKind = "url-tracker"
)

// AddonCatalog is one sub-catalog of an imported addon group
type AddonCatalog struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	Name         string   `json:"name"`
	OriginalID   string   `json:"originalId"`
	OriginalType string   `json:"originalType"`
	Genres       []string `json:"genres"`
}

// ImportedAddonRecord is created when the user imports an addon or a list URL
type ImportedAddonRecord struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Kind        AddonKind      `json:"kind"`
	ManifestURL string         `json:"manifestUrl,omitempty"`
	NativeID    string         `json:"nativeId,omitempty"`
	Composition *Composition   `json:"composition,omitempty"`
	Catalogs    []AddonCatalog `json:"catalogs"`
}

// IsURLImport reports whether the record is a single list imported by URL
func (r ImportedAddonRecord) IsURLImport() bool {
	return r.Kind == AddonKindURLListHost || r.Kind == AddonKindURLTracker
}

// Provider returns the provider family serving this record
func (r ImportedAddonRecord) Provider() Provider {
	switch r.Kind {
	case AddonKindURLListHost:
		return ProviderListHost
	case AddonKindURLTracker:
		return ProviderTracker
	}
	return ProviderAddon
}

// Catalog finds a sub-catalog by id and, when given, type
func (r ImportedAddonRecord) Catalog(id, typ string) (AddonCatalog, bool) {
	for _, cat := range r.Catalogs {
		if cat.ID == id && (typ == "" || cat.Type == typ) {
			return cat, true
		}
	}
	return AddonCatalog{}, false
}

// Clone returns a deep copy
func (r ImportedAddonRecord) Clone() ImportedAddonRecord {
	out := r
	if r.Composition != nil {
		c := *r.Composition
		out.Composition = &c
	}
	if r.Catalogs != nil {
		out.Catalogs = make([]AddonCatalog, len(r.Catalogs))
		for i, cat := range r.Catalogs {
			cat.Genres = slices.Clone(cat.Genres)
			out.Catalogs[i] = cat
		}
	}
	return out
}
