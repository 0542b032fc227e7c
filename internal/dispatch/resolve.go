package dispatch

import (
	"context"

	"github.com/glefebvre/listcatalog/internal/catalog"
	apperrors "github.com/glefebvre/listcatalog/internal/errors"
	"github.com/glefebvre/listcatalog/internal/logger"
	"github.com/glefebvre/listcatalog/internal/models"
)

// resolve maps a catalog id to the list to fetch. Removed lists resolve to a miss.
func (d *Dispatcher) resolve(ctx context.Context, cfg *models.UserConfig, req Request) (models.ListDescriptor, error) {
	list, err := d.lookup(ctx, cfg, req)
	if err != nil {
		return models.ListDescriptor{}, err
	}
	if catalog.Removed(cfg, list) {
		return models.ListDescriptor{}, apperrors.ResolutionMiss(req.CatalogID)
	}
	return list, nil
}

// lookup finds the list behind a catalog id. First match wins: known reference,
// random sentinel, URL import, addon sub-catalog, tracker id, list-hosting id.
func (d *Dispatcher) lookup(ctx context.Context, cfg *models.UserConfig, req Request) (models.ListDescriptor, error) {
	if req.Ref != nil && req.Ref.Kind != "" && req.Ref.Kind != models.RefRandom {
		return fromRef(req.CatalogID, *req.Ref), nil
	}

	if req.CatalogID == catalog.RandomCatalogID {
		return d.resolveRandom(ctx, cfg)
	}

	if list, ok := catalog.LookupImported(cfg, req.CatalogID, req.Type); ok {
		return list, nil
	}

	ref, ok := catalog.ParseID(req.CatalogID)
	if !ok {
		return models.ListDescriptor{}, apperrors.ResolutionMiss(req.CatalogID)
	}

	switch ref.Kind {
	case models.RefTracker:
		return fromRef(req.CatalogID, ref), nil

	case models.RefListHost:
		if ref.SubKind == "" {
			subKind, err := d.listHostSubKind(ctx, cfg, req.CatalogID, ref.NativeID)
			if err != nil {
				return models.ListDescriptor{}, err
			}
			ref.SubKind = subKind
		}
		return fromRef(req.CatalogID, ref), nil
	}

	// URL imports whose record is gone
	return models.ListDescriptor{}, apperrors.ResolutionMiss(req.CatalogID)
}

// resolveRandom asks the random source for a public list and serves it through the
// adapter of that list's provider.
func (d *Dispatcher) resolveRandom(ctx context.Context, cfg *models.UserConfig) (models.ListDescriptor, error) {
	adapter, source, ok := d.registry.RandomSource()
	if !ok {
		return models.ListDescriptor{}, apperrors.ResolutionMiss(catalog.RandomCatalogID)
	}

	ref, err := source.RandomList(ctx, cfg)
	if err != nil {
		return models.ListDescriptor{}, err
	}
	if ref.Provider == "" {
		ref.Provider = adapter.Name()
	}

	logger.AppLogger().WithFields(map[string]interface{}{
		"provider":  string(ref.Provider),
		"native_id": ref.NativeID,
	}).DebugContext(ctx, "Random catalog picked a list")

	return models.ListDescriptor{
		ID:       catalog.RandomCatalogID,
		NativeID: ref.NativeID,
		Source:   models.SourceRandom,
		Provider: ref.Provider,
		Static:   true,
		Ref:      ref,
	}, nil
}

// listHostSubKind finds the internal/external/watchlist sub-kind of a list-hosting id
// without suffix: cached metadata first, then a full enumeration.
func (d *Dispatcher) listHostSubKind(ctx context.Context, cfg *models.UserConfig, catalogID, nativeID string) (string, error) {
	if meta, ok := cfg.ListsMetadata[catalogID]; ok && meta.ListType != "" {
		return meta.ListType, nil
	}

	adapter, ok := d.registry.Get(models.ProviderListHost)
	if !ok {
		return "", apperrors.ResolutionMiss(catalogID)
	}

	lists, err := adapter.Enumerate(ctx, cfg)
	if err != nil {
		return "", err
	}
	for _, list := range lists {
		if list.NativeID == nativeID && list.Ref.SubKind != "" {
			return list.Ref.SubKind, nil
		}
	}
	return "", apperrors.ResolutionMiss(catalogID)
}

func fromRef(id string, ref models.CatalogRef) models.ListDescriptor {
	list := models.ListDescriptor{
		ID:       id,
		NativeID: ref.NativeID,
		Provider: ref.Provider,
		Ref:      ref,
	}
	switch ref.Kind {
	case models.RefAddonCatalog:
		list.Source = models.SourceAddonCatalog
		list.NativeID = ref.OriginalID
		list.Static = true
	case models.RefURLImport:
		list.Source = models.SourceURLImport
	case models.RefListHost:
		list.Source = models.SourceNative
		if ref.SubKind == models.SubKindWatchlist {
			list.Source = models.SourceWatchlist
		}
	default:
		list.Source = models.SourceNative
	}
	return list
}
