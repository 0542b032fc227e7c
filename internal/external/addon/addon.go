// Package addon is the provider adapter for imported catalog addons. It fetches addon
// manifests on import and serves their sub-catalogs page by page over the catalog protocol.
package addon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/glefebvre/listcatalog/internal/circuitbreaker"
	apperrors "github.com/glefebvre/listcatalog/internal/errors"
	"github.com/glefebvre/listcatalog/internal/models"
	"github.com/glefebvre/listcatalog/internal/provider"
	"github.com/glefebvre/listcatalog/internal/retry"
)

const (
	serviceName    = "addon"
	manifestSuffix = "/manifest.json"
	maxBodyBytes   = 4 << 20
	defaultTimeout = 12 * time.Second
)

// Client fetches manifests and catalog pages from third-party addons
type Client struct {
	httpClient  *http.Client
	retryConfig retry.Config
	breakers    *circuitbreaker.Set
	userAgent   string
}

// Config holds addon client configuration
type Config struct {
	Timeout     time.Duration
	RetryConfig retry.Config
	Breaker     circuitbreaker.Config
	UserAgent   string
}

// Manifest is the subset of an addon manifest needed to import it
type Manifest struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Description string            `json:"description"`
	Catalogs    []ManifestCatalog `json:"catalogs"`
}

// ManifestCatalog is one catalog declared by an addon
type ManifestCatalog struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Name   string          `json:"name"`
	Extra  []ManifestExtra `json:"extra"`
	Genres []string        `json:"genres"`
}

// ManifestExtra is one extra parameter declared by a catalog
type ManifestExtra struct {
	Name       string   `json:"name"`
	Options    []string `json:"options"`
	IsRequired bool     `json:"isRequired"`
}

type catalogBody struct {
	Metas []models.RawItem `json:"metas"`
}

// New creates an addon client
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.ProviderConfig()
	}
	if cfg.Breaker.Timeout == 0 {
		cfg.Breaker = circuitbreaker.DefaultConfig()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "listcatalog"
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		retryConfig: cfg.RetryConfig,
		breakers:    circuitbreaker.NewSet(serviceName, cfg.Breaker),
		userAgent:   cfg.UserAgent,
	}
}

// Name implements provider.Adapter
func (c *Client) Name() models.Provider {
	return models.ProviderAddon
}

// Enumerate implements provider.Adapter. Imported sub-catalogs are carried by the
// configuration itself, so the addon family reports no lists of its own.
func (c *Client) Enumerate(ctx context.Context, cfg *models.UserConfig) ([]models.ListDescriptor, error) {
	return nil, nil
}

// FiltersGenres implements provider.GenreFilterer: genre is passed to the addon as an extra
func (c *Client) FiltersGenres() bool {
	return true
}

// FetchPage implements provider.Adapter
func (c *Client) FetchPage(ctx context.Context, cfg *models.UserConfig, req provider.PageRequest) (*provider.Page, error) {
	rec, ok := cfg.ImportedAddons[req.Ref.AddonID]
	if !ok || rec.ManifestURL == "" {
		return nil, apperrors.NotFoundError("imported addon", req.Ref.AddonID)
	}

	base, err := BaseURL(rec.ManifestURL)
	if err != nil {
		return nil, err
	}

	catalogType := req.Ref.OriginalType
	if catalogType == "" {
		catalogType = req.Type
	}
	pageURL := CatalogURL(base, catalogType, req.Ref.OriginalID, req.Skip, req.Genre)

	// one attempt: the dispatcher and prober own retries for page fetches
	var body catalogBody
	if err := c.fetchJSON(ctx, pageURL, &body); err != nil {
		return nil, err
	}

	return &provider.Page{
		Items:   body.Metas,
		HasMore: len(body.Metas) > 0,
	}, nil
}

// FetchManifest downloads and validates an addon manifest
func (c *Client) FetchManifest(ctx context.Context, manifestURL string) (*Manifest, error) {
	normalized, err := NormalizeManifestURL(manifestURL)
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := c.getJSON(ctx, normalized, &manifest); err != nil {
		return nil, err
	}
	if manifest.ID == "" || len(manifest.Catalogs) == 0 {
		return nil, apperrors.New(apperrors.CodeMalformedData, "addon manifest declares no catalogs").
			WithContext("url", normalized)
	}
	return &manifest, nil
}

// Import fetches a manifest and turns it into an imported addon group
func (c *Client) Import(ctx context.Context, manifestURL string) (models.ImportedAddonRecord, error) {
	normalized, err := NormalizeManifestURL(manifestURL)
	if err != nil {
		return models.ImportedAddonRecord{}, err
	}
	manifest, err := c.FetchManifest(ctx, normalized)
	if err != nil {
		return models.ImportedAddonRecord{}, err
	}
	return RecordFromManifest(normalized, *manifest), nil
}

// RecordFromManifest keeps the catalogs the engine can serve: those whose only required
// extras are paging and genre.
func RecordFromManifest(manifestURL string, m Manifest) models.ImportedAddonRecord {
	rec := models.ImportedAddonRecord{
		ID:          RecordID(m.ID),
		Name:        m.Name,
		Kind:        models.AddonKindGroup,
		ManifestURL: manifestURL,
		Catalogs:    []models.AddonCatalog{},
	}
	if rec.Name == "" {
		rec.Name = m.ID
	}

	for _, cat := range m.Catalogs {
		if cat.ID == "" || cat.Type == "" || requiresUnsupportedExtra(cat) {
			continue
		}
		name := cat.Name
		if name == "" {
			name = cat.ID
		}
		rec.Catalogs = append(rec.Catalogs, models.AddonCatalog{
			ID:           cat.ID,
			Type:         cat.Type,
			Name:         name,
			OriginalID:   cat.ID,
			OriginalType: cat.Type,
			Genres:       catalogGenres(cat),
		})
	}
	return rec
}

func requiresUnsupportedExtra(cat ManifestCatalog) bool {
	for _, extra := range cat.Extra {
		if extra.IsRequired && extra.Name != "genre" && extra.Name != "skip" {
			return true
		}
	}
	return false
}

func catalogGenres(cat ManifestCatalog) []string {
	for _, extra := range cat.Extra {
		if extra.Name == "genre" && len(extra.Options) > 0 {
			return append([]string(nil), extra.Options...)
		}
	}
	if len(cat.Genres) > 0 {
		return append([]string(nil), cat.Genres...)
	}
	return nil
}

// RecordID derives the imported record id from the addon's manifest id
func RecordID(manifestID string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(manifestID) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return "addon_" + strings.Trim(b.String(), "_")
}

// NormalizeManifestURL accepts http(s) and stremio:// manifest URLs and returns the
// https form ending in /manifest.json
func NormalizeManifestURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "stremio://") {
		raw = "https://" + strings.TrimPrefix(raw, "stremio://")
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", apperrors.New(apperrors.CodeInvalidInput, "manifest URL must be an http(s) URL").
			WithContext("url", raw)
	}

	u.RawQuery = ""
	u.Fragment = ""
	if !strings.HasSuffix(u.Path, manifestSuffix) {
		u.Path = strings.TrimRight(u.Path, "/") + manifestSuffix
	}
	return u.String(), nil
}

// BaseURL strips the manifest file from a manifest URL
func BaseURL(manifestURL string) (string, error) {
	normalized, err := NormalizeManifestURL(manifestURL)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(normalized, manifestSuffix), nil
}

// CatalogURL builds catalog/{type}/{id}[/extra].json with skip and genre extras
func CatalogURL(base, catalogType, id string, skip int, genre string) string {
	var extras []string
	if genre != "" {
		extras = append(extras, "genre="+url.QueryEscape(genre))
	}
	if skip > 0 {
		extras = append(extras, "skip="+strconv.Itoa(skip))
	}

	u := fmt.Sprintf("%s/catalog/%s/%s", base, url.PathEscape(catalogType), url.PathEscape(id))
	if len(extras) > 0 {
		u += "/" + strings.Join(extras, "&")
	}
	return u + ".json"
}

// getJSON retries fetchJSON on transient failures
func (c *Client) getJSON(ctx context.Context, target string, result interface{}) error {
	return retry.Do(ctx, c.retryConfig, func() error {
		return c.fetchJSON(ctx, target, result)
	}, apperrors.IsRetryable)
}

// fetchJSON performs one GET through the breaker of the target's host
func (c *Client) fetchJSON(ctx context.Context, target string, result interface{}) error {
	u, err := url.Parse(target)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidInput, "invalid addon URL")
	}
	_, err = circuitbreaker.Execute(c.breakers.For(u.Host), func() (struct{}, error) {
		return struct{}{}, c.get(ctx, target, result)
	})
	return err
}

func (c *Client) get(ctx context.Context, target string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidInput, "failed to build addon request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.FromTransport(serviceName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return apperrors.FromTransport(serviceName, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.FromHTTPStatus(serviceName, resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, result); err != nil {
		return apperrors.ParseError("failed to decode addon response", err)
	}
	return nil
}
