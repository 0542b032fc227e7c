package catalog

import (
	"sort"

	"github.com/glefebvre/listcatalog/internal/models"
)

// importedLists turns the imported records of cfg into descriptors, ordered by record id
func importedLists(cfg *models.UserConfig) []models.ListDescriptor {
	ids := make([]string, 0, len(cfg.ImportedAddons))
	for id := range cfg.ImportedAddons {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var lists []models.ListDescriptor
	for _, id := range ids {
		rec := cfg.ImportedAddons[id]
		if rec.IsURLImport() {
			lists = append(lists, urlImportList(rec))
			continue
		}
		for _, cat := range rec.Catalogs {
			lists = append(lists, addonCatalogList(rec, cat))
		}
	}
	return lists
}

func urlImportList(rec models.ImportedAddonRecord) models.ListDescriptor {
	p := rec.Provider()
	ref := models.CatalogRef{
		Kind:     models.RefURLImport,
		Provider: p,
		NativeID: rec.NativeID,
	}
	switch p {
	case models.ProviderListHost:
		ref.SubKind = models.SubKindExternal
	case models.ProviderTracker:
		ref.SortKey = rec.NativeID
	}

	return models.ListDescriptor{
		ID:         rec.ID,
		NativeID:   rec.NativeID,
		Name:       rec.Name,
		Source:     models.SourceURLImport,
		Provider:   p,
		Hint:       rec.Composition,
		Splittable: true,
		Ref:        ref,
	}
}

func addonCatalogList(rec models.ImportedAddonRecord, cat models.AddonCatalog) models.ListDescriptor {
	var hint *models.Composition
	switch cat.Type {
	case models.TypeMovie:
		hint = &models.Composition{HasMovies: true}
	case models.TypeSeries:
		hint = &models.Composition{HasShows: true}
	}

	originalType := cat.OriginalType
	if originalType == "" {
		originalType = cat.Type
	}
	originalID := cat.OriginalID
	if originalID == "" {
		originalID = cat.ID
	}

	return models.ListDescriptor{
		ID:           cat.ID,
		NativeID:     originalID,
		Name:         cat.Name,
		Source:       models.SourceAddonCatalog,
		Provider:     models.ProviderAddon,
		Hint:         hint,
		Static:       true,
		FallbackType: cat.Type,
		AddonID:      rec.ID,
		Genres:       cat.Genres,
		Ref: models.CatalogRef{
			Kind:         models.RefAddonCatalog,
			Provider:     models.ProviderAddon,
			AddonID:      rec.ID,
			OriginalID:   originalID,
			OriginalType: originalType,
		},
	}
}

// LookupImported finds the imported record and sub-catalog serving a catalog id
func LookupImported(cfg *models.UserConfig, id, catalogType string) (models.ListDescriptor, bool) {
	if rec, ok := cfg.ImportedAddons[id]; ok && rec.IsURLImport() {
		return urlImportList(rec), true
	}

	ids := make([]string, 0, len(cfg.ImportedAddons))
	for recID := range cfg.ImportedAddons {
		ids = append(ids, recID)
	}
	sort.Strings(ids)

	for _, recID := range ids {
		rec := cfg.ImportedAddons[recID]
		if rec.IsURLImport() {
			continue
		}
		if cat, ok := rec.Catalog(id, catalogType); ok {
			return addonCatalogList(rec, cat), true
		}
		// custom media types rename the emitted type, so fall back to the id alone
		if cat, ok := rec.Catalog(id, ""); ok {
			return addonCatalogList(rec, cat), true
		}
	}
	return models.ListDescriptor{}, false
}
