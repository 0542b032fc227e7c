package catalog

import (
	"strconv"

	"github.com/glefebvre/listcatalog/internal/models"
)

// AddonInfo is the static identity of the addon
type AddonInfo struct {
	ID          string
	Name        string
	Description string
	Version     string
	Logo        string

	// Configurable advertises the settings page to the client
	Configurable bool
}

// BuildManifest renders a synthesis result. The version carries the config's
// lastUpdated stamp so clients refetch after every change.
func BuildManifest(result *Result, info AddonInfo, cfg *models.UserConfig) models.Manifest {
	catalogs := []models.CatalogDescriptor{}
	types := []string{}
	if result != nil {
		catalogs = append(catalogs, result.Catalogs...)
		types = append(types, result.Types...)
	}

	return models.Manifest{
		ID:            info.ID,
		Version:       ManifestVersion(info.Version, cfg),
		Name:          info.Name,
		Description:   info.Description,
		Logo:          info.Logo,
		Resources:     []string{"catalog", "meta"},
		Types:         types,
		Catalogs:      catalogs,
		BehaviorHints: map[string]bool{"configurable": info.Configurable},
	}
}

// ManifestVersion returns <base>-<lastUpdated>, or base for a never-modified config
func ManifestVersion(base string, cfg *models.UserConfig) string {
	if cfg == nil || cfg.LastUpdated == 0 {
		return base
	}
	return base + "-" + strconv.FormatInt(cfg.LastUpdated, 10)
}
