package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the server configuration. Per-user state never lives here; it travels in
// the configuration token.
type Config struct {
	Addon      AddonConfig      `mapstructure:"addon"`
	API        APIConfig        `mapstructure:"api"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Probe      ProbeConfig      `mapstructure:"probe"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
	TMDB       TMDBConfig       `mapstructure:"tmdb"`
	Random     RandomConfig     `mapstructure:"random"`
}

// AddonConfig describes the addon in its manifest
type AddonConfig struct {
	ID           string `mapstructure:"id"`
	Name         string `mapstructure:"name"`
	Description  string `mapstructure:"description"`
	Version      string `mapstructure:"version"`
	Logo         string `mapstructure:"logo"`
	Configurable bool   `mapstructure:"configurable"`
}

// APIConfig holds API server settings
type APIConfig struct {
	Host                string `mapstructure:"host"`
	Port                int    `mapstructure:"port"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
	ShutdownSeconds     int    `mapstructure:"shutdown_seconds"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	// Legacy field (deprecated but supported)
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`

	App      LogLevelConfig `mapstructure:"app"`
	Provider LogLevelConfig `mapstructure:"provider"`
}

// LogLevelConfig represents log level configuration for a specific component
type LogLevelConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
}

// ProvidersConfig holds settings shared by every outbound provider client
type ProvidersConfig struct {
	TimeoutSeconds       int    `mapstructure:"timeout_seconds"`
	RetryAttempts        int    `mapstructure:"retry_attempts"`
	UserAgent            string `mapstructure:"user_agent"`
	BreakerMaxFailures   int    `mapstructure:"breaker_max_failures"`
	BreakerTimeoutSecond int    `mapstructure:"breaker_timeout_seconds"`
}

// ProbeConfig holds content-composition probe settings
type ProbeConfig struct {
	TTLHours int `mapstructure:"ttl_hours"`
	DelayMS  int `mapstructure:"delay_ms"`
	PageSize int `mapstructure:"page_size"`
}

// DispatchConfig holds catalog request settings
type DispatchConfig struct {
	PageSize      int `mapstructure:"page_size"`
	MaxGenrePages int `mapstructure:"max_genre_pages"`
}

// CacheConfig holds manifest and metadata cache settings
type CacheConfig struct {
	ManifestTTLSeconds int    `mapstructure:"manifest_ttl_seconds"`
	MetadataTTLHours   int    `mapstructure:"metadata_ttl_hours"`
	MaxEntries         int    `mapstructure:"max_entries"`
	RedisURL           string `mapstructure:"redis_url"`
	Prefix             string `mapstructure:"prefix"`
	NATSURL            string `mapstructure:"nats_url"`
	NATSSubject        string `mapstructure:"nats_subject"`
}

// EnrichmentConfig holds metadata enrichment settings
type EnrichmentConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Concurrency int  `mapstructure:"concurrency"`
	TimeoutMS   int  `mapstructure:"timeout_ms"`
}

// TMDBConfig holds TMDB API settings
type TMDBConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Language string `mapstructure:"language"`
	BaseURL  string `mapstructure:"base_url"`
}

// RandomConfig controls the random discovery catalog
type RandomConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

var cfg *Config

// bindEnvWithAlternatives binds a viper key to environment variables with alternative names
// This allows supporting both LISTCATALOG_API_PORT and PORT for the same config key
func bindEnvWithAlternatives(key string, alternatives ...string) {
	viper.BindEnv(key)
	for _, alt := range alternatives {
		if value := os.Getenv(alt); value != "" {
			viper.Set(key, value)
			break
		}
	}
}

// Load reads configuration from file and environment variables
func Load() error {
	return load("")
}

// LoadFile is Load with an explicit config file, which must exist. An empty path
// searches the default locations.
func LoadFile(path string) error {
	return load(path)
}

func load(path string) error {
	// SetConfigName clears an explicit file, so only search when none is given
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/listcatalog")
	}

	setDefaults()

	viper.SetEnvPrefix("LISTCATALOG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Support both LISTCATALOG_ prefix and Docker-style env vars
	viper.BindEnv("addon.id")
	viper.BindEnv("addon.name")
	viper.BindEnv("addon.description")
	viper.BindEnv("addon.version")
	viper.BindEnv("addon.logo")
	viper.BindEnv("addon.configurable")

	viper.BindEnv("api.host")
	bindEnvWithAlternatives("api.port", "PORT", "API_PORT")
	viper.BindEnv("api.read_timeout_seconds")
	viper.BindEnv("api.write_timeout_seconds")
	viper.BindEnv("api.shutdown_seconds")

	bindEnvWithAlternatives("logging.level", "LOG_LEVEL")
	viper.BindEnv("logging.format")
	viper.BindEnv("logging.app.level")
	viper.BindEnv("logging.provider.level")

	viper.BindEnv("providers.timeout_seconds")
	viper.BindEnv("providers.retry_attempts")
	viper.BindEnv("providers.user_agent")
	viper.BindEnv("providers.breaker_max_failures")
	viper.BindEnv("providers.breaker_timeout_seconds")

	viper.BindEnv("probe.ttl_hours")
	viper.BindEnv("probe.delay_ms")
	viper.BindEnv("probe.page_size")

	viper.BindEnv("dispatch.page_size")
	viper.BindEnv("dispatch.max_genre_pages")

	viper.BindEnv("cache.manifest_ttl_seconds")
	viper.BindEnv("cache.metadata_ttl_hours")
	viper.BindEnv("cache.max_entries")
	bindEnvWithAlternatives("cache.redis_url", "REDIS_URL")
	viper.BindEnv("cache.prefix")
	bindEnvWithAlternatives("cache.nats_url", "NATS_URL")
	viper.BindEnv("cache.nats_subject")

	viper.BindEnv("enrichment.enabled")
	viper.BindEnv("enrichment.concurrency")
	viper.BindEnv("enrichment.timeout_ms")

	bindEnvWithAlternatives("tmdb.api_key", "TMDB_API_KEY")
	viper.BindEnv("tmdb.language")
	viper.BindEnv("tmdb.base_url")

	viper.BindEnv("random.enabled")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	loaded := &Config{}
	if err := viper.Unmarshal(loaded); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	cfg = loaded
	return nil
}

// Get returns the current configuration
func Get() *Config {
	if cfg == nil {
		return &Config{}
	}
	return cfg
}

// Reload reloads the configuration from file
func Reload() error {
	return Load()
}

func setDefaults() {
	viper.SetDefault("addon.id", "community.listcatalog")
	viper.SetDefault("addon.name", "List Catalog")
	viper.SetDefault("addon.description", "Your movie and series lists as catalogs")
	viper.SetDefault("addon.version", "1.0.0")
	viper.SetDefault("addon.configurable", true)

	viper.SetDefault("api.host", "0.0.0.0")
	viper.SetDefault("api.port", 7000)
	viper.SetDefault("api.read_timeout_seconds", 30)
	viper.SetDefault("api.write_timeout_seconds", 60)
	viper.SetDefault("api.shutdown_seconds", 15)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("providers.timeout_seconds", 12)
	viper.SetDefault("providers.retry_attempts", 3)
	viper.SetDefault("providers.user_agent", "listcatalog")
	viper.SetDefault("providers.breaker_max_failures", 5)
	viper.SetDefault("providers.breaker_timeout_seconds", 60)

	viper.SetDefault("probe.ttl_hours", 24)
	viper.SetDefault("probe.delay_ms", 500)
	viper.SetDefault("probe.page_size", 100)

	viper.SetDefault("dispatch.page_size", 100)
	viper.SetDefault("dispatch.max_genre_pages", 5)

	viper.SetDefault("cache.manifest_ttl_seconds", 300)
	viper.SetDefault("cache.metadata_ttl_hours", 24)
	viper.SetDefault("cache.max_entries", 10000)
	viper.SetDefault("cache.prefix", "listcatalog:")
	viper.SetDefault("cache.nats_subject", "listcatalog.cache.invalidate")

	viper.SetDefault("enrichment.enabled", true)
	viper.SetDefault("enrichment.concurrency", 8)
	viper.SetDefault("enrichment.timeout_ms", 5000)

	viper.SetDefault("tmdb.language", "en-US")

	viper.SetDefault("random.enabled", true)
}

// Validate checks value ranges
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validFormats := map[string]bool{"json": true, "text": true}

	if c.Logging.Format != "" && !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if c.Logging.App.Level != "" && !validLevels[c.Logging.App.Level] {
		return fmt.Errorf("logging.app.level must be one of: debug, info, warn, error")
	}
	if c.Logging.Provider.Level != "" && !validLevels[c.Logging.Provider.Level] {
		return fmt.Errorf("logging.provider.level must be one of: debug, info, warn, error")
	}

	if c.API.Port < 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port must be between 0 and 65535")
	}
	if c.Dispatch.PageSize < 0 || c.Dispatch.PageSize > 500 {
		return fmt.Errorf("dispatch.page_size must be between 1 and 500")
	}
	if c.Dispatch.MaxGenrePages < 0 {
		return fmt.Errorf("dispatch.max_genre_pages must not be negative")
	}
	if c.Probe.PageSize < 0 || c.Probe.PageSize > 500 {
		return fmt.Errorf("probe.page_size must be between 1 and 500")
	}
	if c.Enrichment.Concurrency != 0 && (c.Enrichment.Concurrency < 5 || c.Enrichment.Concurrency > 20) {
		return fmt.Errorf("enrichment.concurrency must be between 5 and 20")
	}

	return nil
}

// GetAppLogLevel returns the log level for application logging
// Priority: logging.app.level → logging.level → "info"
func (c *Config) GetAppLogLevel() string {
	if c.Logging.App.Level != "" {
		return c.Logging.App.Level
	}
	if c.Logging.Level != "" {
		return c.Logging.Level
	}
	return "info"
}

// GetProviderLogLevel returns the log level for provider call logging
// Priority: logging.provider.level → logging.level → "info"
func (c *Config) GetProviderLogLevel() string {
	if c.Logging.Provider.Level != "" {
		return c.Logging.Provider.Level
	}
	if c.Logging.Level != "" {
		return c.Logging.Level
	}
	return "info"
}

// IsUsingLegacyLogging returns true if using deprecated logging.level
func (c *Config) IsUsingLegacyLogging() bool {
	return c.Logging.Level != "" && c.Logging.App.Level == "" && c.Logging.Provider.Level == ""
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// ShutdownTimeout returns the graceful shutdown budget
func (c *Config) ShutdownTimeout() time.Duration {
	return seconds(c.API.ShutdownSeconds, 15)
}

// ProviderTimeout returns the outbound HTTP client timeout
func (c *Config) ProviderTimeout() time.Duration {
	return seconds(c.Providers.TimeoutSeconds, 12)
}

// BreakerTimeout returns how long a breaker stays open
func (c *Config) BreakerTimeout() time.Duration {
	return seconds(c.Providers.BreakerTimeoutSecond, 60)
}

// ProbeTTL returns how long a probed composition stays fresh
func (c *Config) ProbeTTL() time.Duration {
	if c.Probe.TTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Probe.TTLHours) * time.Hour
}

// ProbeDelay returns the minimum spacing between probes of one provider
func (c *Config) ProbeDelay() time.Duration {
	if c.Probe.DelayMS < 0 {
		return 0
	}
	return time.Duration(c.Probe.DelayMS) * time.Millisecond
}

// ManifestTTL returns the manifest cache entry lifetime
func (c *Config) ManifestTTL() time.Duration {
	return seconds(c.Cache.ManifestTTLSeconds, 300)
}

// MetadataTTL returns the metadata cache entry lifetime
func (c *Config) MetadataTTL() time.Duration {
	if c.Cache.MetadataTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Cache.MetadataTTLHours) * time.Hour
}

// EnrichmentTimeout returns the budget of one enrichment pass
func (c *Config) EnrichmentTimeout() time.Duration {
	if c.Enrichment.TimeoutMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Enrichment.TimeoutMS) * time.Millisecond
}

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}
