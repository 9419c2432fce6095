// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Site      SiteConfig      `mapstructure:"site"`
	Selectors SelectorsConfig `mapstructure:"selectors"`
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Store     StoreConfig     `mapstructure:"store"`
	Embedder  EmbedderConfig  `mapstructure:"embedder"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// SiteConfig identifies the crawl target and the metadata stamped on saved records.
type SiteConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	CategoryPath  string `mapstructure:"category_path"`
	CategoryLabel string `mapstructure:"category_label"`
	StoreLocation string `mapstructure:"store_location"`
	Currency      string `mapstructure:"currency"`
}

// SelectorsConfig optionally overrides individual selector fallback chains.
// An empty chain keeps the built-in candidates for that field.
type SelectorsConfig struct {
	Card          []string `mapstructure:"card"`
	Title         []string `mapstructure:"title"`
	FinalPrice    []string `mapstructure:"final_price"`
	OriginalPrice []string `mapstructure:"original_price"`
	Link          []string `mapstructure:"link"`
	Image         []string `mapstructure:"image"`
	ArticleNumber []string `mapstructure:"article_number"`
}

// CrawlConfig governs the pagination loop.
type CrawlConfig struct {
	MaxPages       int    `mapstructure:"max_pages"`
	UserAgent      string `mapstructure:"user_agent"`
	AcceptLanguage string `mapstructure:"accept_language"`
	PageDelayMinMs int    `mapstructure:"page_delay_min_ms"`
	PageDelayMaxMs int    `mapstructure:"page_delay_max_ms"`
}

// HTTPConfig configures transport timeouts and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// StoreConfig controls access to the record store. The DSN is expected via
// environment (CATALOG_STORE_DSN) and is never given a default.
type StoreConfig struct {
	DSN string `mapstructure:"dsn"`
}

// EmbedderConfig points at the image embedding inference service.
type EmbedderConfig struct {
	URL            string  `mapstructure:"url"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RPS            float64 `mapstructure:"rps"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// MetricsConfig enables the optional Prometheus listener when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.base_url", "https://www.ikea.com/ae/en")
	v.SetDefault("site.category_path", "/cat/sofas-10660/")
	v.SetDefault("site.category_label", "Living Room / Sofas")
	v.SetDefault("site.store_location", "UAE")
	v.SetDefault("site.currency", "AED")
	v.SetDefault("crawl.max_pages", 5)
	v.SetDefault("crawl.user_agent",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	v.SetDefault("crawl.accept_language", "en-US,en;q=0.9")
	v.SetDefault("crawl.page_delay_min_ms", 1000)
	v.SetDefault("crawl.page_delay_max_ms", 2500)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("embedder.timeout_seconds", 30)
	v.SetDefault("embedder.rps", 4)
	v.SetDefault("logging.development", true)
	// Keys without a usable default still need registering: AutomaticEnv only
	// resolves keys viper already knows about.
	v.SetDefault("store.dsn", "")
	v.SetDefault("embedder.url", "")
	v.SetDefault("metrics.addr", "")
}

// Validate enforces required values and reasonable limits. Missing store
// credentials or embedder endpoint are startup-time failures, not per-record ones.
func (c Config) Validate() error {
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url must be set")
	}
	if _, err := url.Parse(c.Site.BaseURL); err != nil {
		return fmt.Errorf("site.base_url is not a valid URL: %w", err)
	}
	if c.Site.CategoryPath == "" {
		return fmt.Errorf("site.category_path must be set")
	}
	if c.Crawl.MaxPages <= 0 {
		return fmt.Errorf("crawl.max_pages must be > 0")
	}
	if c.Crawl.PageDelayMaxMs < c.Crawl.PageDelayMinMs {
		return fmt.Errorf("crawl.page_delay_max_ms must be >= crawl.page_delay_min_ms")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Store.DSN == "" {
		return fmt.Errorf("store.dsn must be set (CATALOG_STORE_DSN)")
	}
	if c.Embedder.URL == "" {
		return fmt.Errorf("embedder.url must be set (CATALOG_EMBEDDER_URL)")
	}
	return nil
}

// CategoryURL joins the base URL and category path.
func (c Config) CategoryURL() string {
	return strings.TrimRight(c.Site.BaseURL, "/") + c.Site.CategoryPath
}

// RequestTimeout converts the HTTP timeout config into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// PageDelayBounds returns the politeness delay range applied between pages.
func (c Config) PageDelayBounds() (time.Duration, time.Duration) {
	return time.Duration(c.Crawl.PageDelayMinMs) * time.Millisecond,
		time.Duration(c.Crawl.PageDelayMaxMs) * time.Millisecond
}
