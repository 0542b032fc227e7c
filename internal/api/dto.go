package api

import (
	"github.com/glefebvre/listcatalog/internal/catalog"
	"github.com/glefebvre/listcatalog/internal/models"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// TokenResponse is returned by every config mutation
type TokenResponse struct {
	Token string `json:"token"`
}

// CreateConfigRequest carries the credentials of a new configuration
type CreateConfigRequest struct {
	models.Credentials
	RandomListEnabled bool `json:"randomListEnabled"`
}

// ConfigResponse is a configuration with credentials reduced to presence flags
type ConfigResponse struct {
	*models.UserConfig
	HasListHostKey   bool `json:"hasListHostKey"`
	HasTrackerToken  bool `json:"hasTrackerToken"`
	HasMetadataKey   bool `json:"hasMetadataKey"`
	HasAnyCredential bool `json:"hasAnyCredential"`
}

// ListsResponse describes every list for a settings UI. Token is set when probing
// refreshed the cached compositions.
type ListsResponse struct {
	Lists []catalog.ListState `json:"lists"`
	Token string              `json:"token,omitempty"`
}

// OrderRequest sets the manifest order
type OrderRequest struct {
	Order []string `json:"order"`
}

// HiddenRequest hides or shows a list
type HiddenRequest struct {
	ID     string `json:"id" binding:"required"`
	Hidden bool   `json:"hidden"`
}

// NameRequest renames a list, an empty name restores the provider's
type NameRequest struct {
	ID   string `json:"id" binding:"required"`
	Name string `json:"name"`
}

// MediaTypeRequest sets a custom type label, an empty label restores the default
type MediaTypeRequest struct {
	ID        string `json:"id" binding:"required"`
	MediaType string `json:"mediaType"`
}

// SortRequest sets the upstream sort of a list
type SortRequest struct {
	ID    string `json:"id" binding:"required"`
	Sort  string `json:"sort"`
	Order string `json:"order"`
}

// MergeRequest merges or splits a mixed list
type MergeRequest struct {
	ID     string `json:"id" binding:"required"`
	Merged bool   `json:"merged"`
}

// IDsRequest names the lists of a remove or restore
type IDsRequest struct {
	IDs []string `json:"ids" binding:"required,min=1"`
}

// RandomRequest toggles the random discovery catalog
type RandomRequest struct {
	Enabled bool `json:"enabled"`
}

// ImportAddonRequest imports a catalog addon from its manifest URL
type ImportAddonRequest struct {
	ManifestURL string `json:"manifestUrl" binding:"required"`
}

// URLImportRequest imports a single list from its public URL
type URLImportRequest struct {
	URL string `json:"url" binding:"required"`
}

// ImportResponse returns the new token and the imported record
type ImportResponse struct {
	Token string                     `json:"token"`
	Addon models.ImportedAddonRecord `json:"addon"`
}

// HealthResponse reports liveness
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Error   string `json:"error,omitempty"`
}

// cachedManifest is what the manifest cache holds per token
type cachedManifest struct {
	Manifest models.Manifest              `json:"manifest"`
	Refs     map[string]models.CatalogRef `json:"refs"`
}

func newConfigResponse(cfg *models.UserConfig) ConfigResponse {
	return ConfigResponse{
		UserConfig:       cfg.Sanitized(),
		HasListHostKey:   cfg.ListHostAPIKey != "",
		HasTrackerToken:  cfg.TrackerAccessToken != "",
		HasMetadataKey:   cfg.MetadataAPIKey != "",
		HasAnyCredential: cfg.HasCredentials(),
	}
}
