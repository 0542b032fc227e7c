package models

import (
	"maps"
	"slices"
	"time"
)

// SortPreference is the per-list upstream sort requested by the user
type SortPreference struct {
	Sort  string `json:"sort"`
	Order string `json:"order"`
}

// ListMetadata caches a list's content composition inside the token
type ListMetadata struct {
	HasMovies     bool   `json:"hasMovies"`
	HasShows      bool   `json:"hasShows"`
	LastChecked   int64  `json:"lastChecked"` // unix millis
	ErrorFetching bool   `json:"errorFetching,omitempty"`
	ListType      string `json:"listType,omitempty"` // list-hosting sub-kind: L, E or W
}

// Composition returns the cached flags
func (m ListMetadata) Composition() Composition {
	return Composition{HasMovies: m.HasMovies, HasShows: m.HasShows}
}

// UserConfig is the whole mutable state of one user. It only ever lives inside a
// configuration token, so every mutation returns a fresh value.
type UserConfig struct {
	ListHostAPIKey      string `json:"listHostApiKey,omitempty"`
	TrackerAccessToken  string `json:"trackerAccessToken,omitempty"`
	TrackerRefreshToken string `json:"trackerRefreshToken,omitempty"`
	TrackerExpiresAt    int64  `json:"trackerExpiresAt,omitempty"`
	MetadataAPIKey      string `json:"metadataApiKey,omitempty"`

	ListOrder            []string                       `json:"listOrder"`
	HiddenLists          []string                       `json:"hiddenLists"`
	RemovedLists         []string                       `json:"removedLists"`
	CustomListNames      map[string]string              `json:"customListNames"`
	CustomMediaTypeNames map[string]string              `json:"customMediaTypeNames"`
	MergedLists          map[string]bool                `json:"mergedLists"`
	SortPreferences      map[string]SortPreference      `json:"sortPreferences"`
	ListsMetadata        map[string]ListMetadata        `json:"listsMetadata"`
	ImportedAddons       map[string]ImportedAddonRecord `json:"importedAddons"`
	RandomListEnabled    bool                           `json:"randomListEnabled,omitempty"`
	LastUpdated          int64                          `json:"lastUpdated,omitempty"`
}

// DefaultConfig returns the empty configuration used for new users and broken tokens
func DefaultConfig() *UserConfig {
	cfg := &UserConfig{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults replaces nil collections with empty ones
func (c *UserConfig) ApplyDefaults() {
	if c.ListOrder == nil {
		c.ListOrder = []string{}
	}
	if c.HiddenLists == nil {
		c.HiddenLists = []string{}
	}
	if c.RemovedLists == nil {
		c.RemovedLists = []string{}
	}
	if c.CustomListNames == nil {
		c.CustomListNames = map[string]string{}
	}
	if c.CustomMediaTypeNames == nil {
		c.CustomMediaTypeNames = map[string]string{}
	}
	if c.MergedLists == nil {
		c.MergedLists = map[string]bool{}
	}
	if c.SortPreferences == nil {
		c.SortPreferences = map[string]SortPreference{}
	}
	if c.ListsMetadata == nil {
		c.ListsMetadata = map[string]ListMetadata{}
	}
	if c.ImportedAddons == nil {
		c.ImportedAddons = map[string]ImportedAddonRecord{}
	}
}

// Clone returns a deep copy with defaults applied
func (c *UserConfig) Clone() *UserConfig {
	out := *c
	out.ListOrder = slices.Clone(c.ListOrder)
	out.HiddenLists = slices.Clone(c.HiddenLists)
	out.RemovedLists = slices.Clone(c.RemovedLists)
	out.CustomListNames = maps.Clone(c.CustomListNames)
	out.CustomMediaTypeNames = maps.Clone(c.CustomMediaTypeNames)
	out.MergedLists = maps.Clone(c.MergedLists)
	out.SortPreferences = maps.Clone(c.SortPreferences)
	out.ListsMetadata = maps.Clone(c.ListsMetadata)
	if c.ImportedAddons != nil {
		out.ImportedAddons = make(map[string]ImportedAddonRecord, len(c.ImportedAddons))
		for id, rec := range c.ImportedAddons {
			out.ImportedAddons[id] = rec.Clone()
		}
	}
	out.ApplyDefaults()
	return &out
}

// HasCredentials reports whether any provider credential is present
func (c *UserConfig) HasCredentials() bool {
	return c.ListHostAPIKey != "" || c.TrackerAccessToken != "" || c.MetadataAPIKey != ""
}

// Sanitized returns a copy with every credential-bearing field stripped
func (c *UserConfig) Sanitized() *UserConfig {
	out := c.Clone()
	out.ListHostAPIKey = ""
	out.TrackerAccessToken = ""
	out.TrackerRefreshToken = ""
	out.TrackerExpiresAt = 0
	out.MetadataAPIKey = ""
	return out
}

// IsHidden reports whether the list is hidden from the manifest
func (c *UserConfig) IsHidden(id string) bool {
	return slices.Contains(c.HiddenLists, id)
}

// IsRemoved reports whether the list was removed by the user
func (c *UserConfig) IsRemoved(id string) bool {
	return slices.Contains(c.RemovedLists, id)
}

// IsMerged reports the merge preference, true unless explicitly disabled
func (c *UserConfig) IsMerged(id string) bool {
	merged, ok := c.MergedLists[id]
	return !ok || merged
}

// OrderIndex returns the position of id in listOrder, or -1
func (c *UserConfig) OrderIndex(id string) int {
	return slices.Index(c.ListOrder, id)
}

// touch bumps LastUpdated, keeping it strictly increasing
func (c *UserConfig) touch() {
	now := time.Now().UnixMilli()
	if now <= c.LastUpdated {
		now = c.LastUpdated + 1
	}
	c.LastUpdated = now
}

func (c *UserConfig) mutate(fn func(*UserConfig)) *UserConfig {
	out := c.Clone()
	fn(out)
	out.touch()
	return out
}

// Credentials are the provider secrets a user supplies when creating a config
type Credentials struct {
	ListHostAPIKey      string `json:"listHostApiKey,omitempty"`
	TrackerAccessToken  string `json:"trackerAccessToken,omitempty"`
	TrackerRefreshToken string `json:"trackerRefreshToken,omitempty"`
	TrackerExpiresAt    int64  `json:"trackerExpiresAt,omitempty"`
	MetadataAPIKey      string `json:"metadataApiKey,omitempty"`
}

// WithCredentials replaces every provider credential
func (c *UserConfig) WithCredentials(creds Credentials) *UserConfig {
	return c.mutate(func(out *UserConfig) {
		out.ListHostAPIKey = creds.ListHostAPIKey
		out.TrackerAccessToken = creds.TrackerAccessToken
		out.TrackerRefreshToken = creds.TrackerRefreshToken
		out.TrackerExpiresAt = creds.TrackerExpiresAt
		out.MetadataAPIKey = creds.MetadataAPIKey
	})
}

// WithOrder sets listOrder, dropping duplicates and blanks
func (c *UserConfig) WithOrder(order []string) *UserConfig {
	return c.mutate(func(out *UserConfig) {
		out.ListOrder = dedupe(order)
	})
}

// WithHidden hides or shows one list
func (c *UserConfig) WithHidden(id string, hidden bool) *UserConfig {
	return c.mutate(func(out *UserConfig) {
		out.HiddenLists = toggle(out.HiddenLists, id, hidden)
	})
}

// WithName sets a custom display name; an empty name restores the provider's
func (c *UserConfig) WithName(id, name string) *UserConfig {
	return c.mutate(func(out *UserConfig) {
		if name == "" {
			delete(out.CustomListNames, id)
			return
		}
		out.CustomListNames[id] = name
	})
}

// WithMediaType sets a custom emitted type; empty restores the derived type
func (c *UserConfig) WithMediaType(id, mediaType string) *UserConfig {
	return c.mutate(func(out *UserConfig) {
		if mediaType == "" {
			delete(out.CustomMediaTypeNames, id)
			return
		}
		out.CustomMediaTypeNames[id] = mediaType
	})
}

// WithMerged records the merge/split preference
func (c *UserConfig) WithMerged(id string, merged bool) *UserConfig {
	return c.mutate(func(out *UserConfig) {
		out.MergedLists[id] = merged
	})
}

// WithSort records the upstream sort preference
func (c *UserConfig) WithSort(id string, pref SortPreference) *UserConfig {
	return c.mutate(func(out *UserConfig) {
		if pref.Sort == "" {
			delete(out.SortPreferences, id)
			return
		}
		if pref.Order == "" {
			pref.Order = "desc"
		}
		out.SortPreferences[id] = pref
	})
}

// WithRemoved marks lists as removed
func (c *UserConfig) WithRemoved(ids ...string) *UserConfig {
	return c.mutate(func(out *UserConfig) {
		for _, id := range ids {
			out.RemovedLists = toggle(out.RemovedLists, id, true)
		}
	})
}

// WithRestored brings removed lists back
func (c *UserConfig) WithRestored(ids ...string) *UserConfig {
	return c.mutate(func(out *UserConfig) {
		for _, id := range ids {
			out.RemovedLists = toggle(out.RemovedLists, id, false)
		}
	})
}

// WithRandomList enables or disables the random-discovery catalog
func (c *UserConfig) WithRandomList(enabled bool) *UserConfig {
	return c.mutate(func(out *UserConfig) {
		out.RandomListEnabled = enabled
	})
}

// WithImportedAddon stores an imported addon group or URL import
func (c *UserConfig) WithImportedAddon(rec ImportedAddonRecord) *UserConfig {
	return c.mutate(func(out *UserConfig) {
		out.ImportedAddons[rec.ID] = rec.Clone()
		out.RemovedLists = toggle(out.RemovedLists, rec.ID, false)
	})
}

// WithoutImportedAddon removes an imported record and every preference keyed by its
// id or any of its sub-catalog ids.
func (c *UserConfig) WithoutImportedAddon(id string) *UserConfig {
	return c.mutate(func(out *UserConfig) {
		rec, ok := out.ImportedAddons[id]
		keys := []string{id}
		if ok {
			for _, cat := range rec.Catalogs {
				keys = append(keys, cat.ID)
			}
		}
		delete(out.ImportedAddons, id)
		out.purge(keys)
	})
}

// WithoutListsMetadata drops the composition cache so the next synthesis re-probes
func (c *UserConfig) WithoutListsMetadata() *UserConfig {
	return c.mutate(func(out *UserConfig) {
		out.ListsMetadata = map[string]ListMetadata{}
	})
}

func (c *UserConfig) purge(keys []string) {
	for _, k := range keys {
		delete(c.CustomListNames, k)
		delete(c.CustomMediaTypeNames, k)
		delete(c.SortPreferences, k)
		delete(c.MergedLists, k)
		delete(c.ListsMetadata, k)
	}
	drop := func(ids []string) []string {
		return slices.DeleteFunc(ids, func(id string) bool {
			return slices.Contains(keys, id)
		})
	}
	c.HiddenLists = drop(c.HiddenLists)
	c.RemovedLists = drop(c.RemovedLists)
	c.ListOrder = drop(c.ListOrder)
}

func toggle(set []string, id string, present bool) []string {
	idx := slices.Index(set, id)
	switch {
	case present && idx < 0:
		return append(set, id)
	case !present && idx >= 0:
		return slices.Delete(set, idx, idx+1)
	}
	return set
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
