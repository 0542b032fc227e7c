package catalog

import (
	"context"
	"sort"

	"github.com/glefebvre/listcatalog/internal/logger"
	"github.com/glefebvre/listcatalog/internal/models"
	"github.com/glefebvre/listcatalog/internal/probe"
	"github.com/glefebvre/listcatalog/internal/provider"
)

// RandomCatalogName is the display name of the random-discovery catalog
const RandomCatalogName = "Random List"

// DefaultGenres are offered as the genre filter of provider lists
var DefaultGenres = []string{
	"Action", "Adventure", "Animation", "Comedy", "Crime", "Documentary", "Drama",
	"Family", "Fantasy", "History", "Horror", "Music", "Mystery", "Romance",
	"Science Fiction", "Thriller", "War", "Western",
}

// Result is the outcome of one synthesis pass
type Result struct {
	Catalogs []models.CatalogDescriptor
	Types    []string
	// Refs maps RefKey(type, id) to the reference used by the dispatcher
	Refs map[string]models.CatalogRef
	// Config is a copy of the input carrying any composition probed during the pass
	Config *models.UserConfig
	// ConfigChanged is true when Config differs from the input and needs a new token
	ConfigChanged bool
}

// Ref returns the reference of a synthesized catalog
func (r *Result) Ref(catalogType, id string) (models.CatalogRef, bool) {
	if r == nil {
		return models.CatalogRef{}, false
	}
	ref, ok := r.Refs[RefKey(catalogType, id)]
	return ref, ok
}

// Synthesizer turns enumerated lists and user overrides into manifest catalogs
type Synthesizer struct {
	registry *provider.Registry
	prober   *probe.Prober
}

// NewSynthesizer creates a Synthesizer
func NewSynthesizer(registry *provider.Registry, prober *probe.Prober) *Synthesizer {
	return &Synthesizer{registry: registry, prober: prober}
}

// Enumerate collects lists from every adapter, then imported records, then the random
// catalog. A failing adapter contributes no lists.
func (s *Synthesizer) Enumerate(ctx context.Context, cfg *models.UserConfig) []models.ListDescriptor {
	var lists []models.ListDescriptor

	for _, adapter := range s.registry.All() {
		found, err := adapter.Enumerate(ctx, cfg)
		if err != nil {
			logger.AppLogger().WithFields(map[string]interface{}{
				"provider": string(adapter.Name()),
				"error":    err,
			}).WarnContext(ctx, "Provider enumeration failed")
			continue
		}
		lists = append(lists, found...)
	}

	lists = append(lists, importedLists(cfg)...)

	if cfg.RandomListEnabled {
		if adapter, _, ok := s.registry.RandomSource(); ok {
			lists = append(lists, models.ListDescriptor{
				ID:           RandomCatalogID,
				Name:         RandomCatalogName,
				Source:       models.SourceRandom,
				Provider:     adapter.Name(),
				Static:       true,
				FallbackType: models.TypeAll,
				Ref:          models.CatalogRef{Kind: models.RefRandom, Provider: adapter.Name()},
			})
		}
	}

	return lists
}

// Synthesize builds the ordered catalog descriptors for cfg. cfg is not modified.
func (s *Synthesizer) Synthesize(ctx context.Context, cfg *models.UserConfig) *Result {
	work := cfg.Clone()
	lists := s.Enumerate(ctx, work)

	result := &Result{
		Catalogs: []models.CatalogDescriptor{},
		Refs:     make(map[string]models.CatalogRef),
		Config:   work,
	}

	seen := make(map[string]models.ListDescriptor, len(lists))
	for discovery, list := range lists {
		if list.ID == "" {
			continue
		}
		key := listKey(list)
		if kept, dup := seen[key]; dup {
			if kept.AddonID != list.AddonID || kept.Source != list.Source {
				logger.AppLogger().WithFields(map[string]interface{}{
					"catalog_id": list.ID,
					"type":       list.FallbackType,
					"kept_from":  kept.AddonID,
					"dropped":    list.AddonID,
				}).WarnContext(ctx, "Catalog id collision, dropping later list")
			}
			continue
		}
		seen[key] = list

		if !visible(work, list) {
			continue
		}

		comp, changed := s.prober.Composition(ctx, work, list)
		if changed {
			result.ConfigChanged = true
		}

		rank := work.OrderIndex(list.ID)
		if rank < 0 {
			rank = len(work.ListOrder) + discovery
		}

		for _, typ := range emittedTypes(work, list, comp) {
			key := RefKey(typ, list.ID)
			if _, exists := result.Refs[key]; exists {
				continue
			}
			desc := describe(work, list, typ, rank)
			result.Catalogs = append(result.Catalogs, desc)
			result.Refs[key] = desc.Ref
		}
	}

	// Descriptors are appended in discovery order with movie before series, so a stable
	// sort on rank alone gives the full ordering.
	sort.SliceStable(result.Catalogs, func(i, j int) bool {
		return result.Catalogs[i].Rank < result.Catalogs[j].Rank
	})

	result.Types = declaredTypes(result.Catalogs)
	return result
}

// listKey identifies a list during one pass. Imported sub-catalogs may reuse an id
// under another type.
func listKey(list models.ListDescriptor) string {
	if list.Source == models.SourceAddonCatalog {
		return RefKey(list.FallbackType, list.ID)
	}
	return list.ID
}

// visible applies the removal and hiding rules
func visible(cfg *models.UserConfig, list models.ListDescriptor) bool {
	return !Removed(cfg, list) && !cfg.IsHidden(list.ID)
}

// Removed reports whether list was removed, directly or through the imported group
// that carries it. Removed lists are neither listed nor served.
func Removed(cfg *models.UserConfig, list models.ListDescriptor) bool {
	if cfg.IsRemoved(list.ID) {
		return true
	}
	addonID := list.AddonID
	if addonID == "" {
		addonID = list.Ref.AddonID
	}
	if addonID != "" {
		if _, ok := cfg.ImportedAddons[addonID]; !ok || cfg.IsRemoved(addonID) {
			return true
		}
	}
	return false
}

// emittedTypes applies the merge decision. A custom type always yields one descriptor.
func emittedTypes(cfg *models.UserConfig, list models.ListDescriptor, comp models.Composition) []string {
	if custom := cfg.CustomMediaTypeNames[list.ID]; custom != "" {
		return []string{custom}
	}
	if list.Mergeable(comp) && !cfg.IsMerged(list.ID) {
		return []string{models.TypeMovie, models.TypeSeries}
	}
	return []string{effectiveType(list, comp)}
}

// effectiveType derives the single emitted type of a list
func effectiveType(list models.ListDescriptor, comp models.Composition) string {
	if list.Static && list.FallbackType != "" {
		return list.FallbackType
	}
	if t := comp.Type(); t != "" {
		return t
	}
	if list.FallbackType != "" {
		return list.FallbackType
	}
	return models.TypeAll
}

func describe(cfg *models.UserConfig, list models.ListDescriptor, typ string, rank int) models.CatalogDescriptor {
	name := list.Name
	if custom := cfg.CustomListNames[list.ID]; custom != "" {
		name = custom
	}

	extra := []models.ExtraField{{Name: "skip"}}
	if genres := genresFor(list); len(genres) > 0 {
		extra = append(extra, models.ExtraField{Name: "genre", Options: genres})
	}
	supported := make([]string, 0, len(extra))
	for _, e := range extra {
		supported = append(supported, e.Name)
	}

	ref := list.Ref
	if ref.Provider == "" {
		ref.Provider = list.Provider
	}

	return models.CatalogDescriptor{
		ID:             list.ID,
		Type:           typ,
		Name:           name,
		Extra:          extra,
		ExtraSupported: supported,
		Rank:           rank,
		Ref:            ref,
	}
}

func genresFor(list models.ListDescriptor) []string {
	switch list.Source {
	case models.SourceRandom:
		return nil
	case models.SourceAddonCatalog:
		return list.Genres
	}
	if len(list.Genres) > 0 {
		return list.Genres
	}
	return DefaultGenres
}

// declaredTypes lists movie and series first, then other tags by first appearance
func declaredTypes(catalogs []models.CatalogDescriptor) []string {
	types := []string{}
	var hasMovie, hasSeries bool
	var others []string
	seen := map[string]struct{}{}

	for _, c := range catalogs {
		switch c.Type {
		case models.TypeMovie:
			hasMovie = true
		case models.TypeSeries:
			hasSeries = true
		default:
			if _, ok := seen[c.Type]; !ok {
				seen[c.Type] = struct{}{}
				others = append(others, c.Type)
			}
		}
	}

	if hasMovie {
		types = append(types, models.TypeMovie)
	}
	if hasSeries {
		types = append(types, models.TypeSeries)
	}
	return append(types, others...)
}
