package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the full configuration required to run one scrape.
type Config struct {
	Source     SourceConfig     `yaml:"source"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Rendering  RenderingConfig  `yaml:"rendering"`
	Politeness PolitenessConfig `yaml:"politeness"`
	Robots     RobotsConfig     `yaml:"robots"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
	Debug      DebugConfig      `yaml:"debug"`
}

// SourceConfig addresses the trade listing and its pagination scheme.
type SourceConfig struct {
	BaseURL string `yaml:"base_url"`
	// ListingPath is appended to BaseURL for the paginated trade listing.
	ListingPath string `yaml:"listing_path"`
	// PageParam is the zero-based page index query parameter.
	PageParam string `yaml:"page_param"`
	// MaxPage is the last known page index, used as a hard bound when the
	// caller supplies no page limit.
	MaxPage int `yaml:"max_page"`
	// PageLimit caps the number of pages scraped; 0 means all pages.
	PageLimit int `yaml:"page_limit"`
}

// FetchConfig controls the HTTP client and retry behaviour.
type FetchConfig struct {
	UserAgent      string            `yaml:"user_agent"`
	Headers        map[string]string `yaml:"headers"`
	SendReferer    bool              `yaml:"send_referer"`
	Timeout        Duration          `yaml:"timeout"`
	MaxBodyBytes   int64             `yaml:"max_body_bytes"`
	ProxyURL       string            `yaml:"proxy_url"`
	MaxAttempts    int               `yaml:"max_attempts"`
	BackoffInitial Duration          `yaml:"backoff_initial"`
}

// RenderingConfig controls the optional headless-browser fallback.
type RenderingConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Engine          string   `yaml:"engine"`
	Timeout         Duration `yaml:"timeout"`
	WaitForSelector string   `yaml:"wait_for_selector"`
	DisableHeadless bool     `yaml:"disable_headless"`
}

// PolitenessConfig throttles page-to-page pacing.
type PolitenessConfig struct {
	PageDelay Duration        `yaml:"page_delay"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig applies a token bucket to the target host.
type RateLimitConfig struct {
	Requests int      `yaml:"requests"`
	Window   Duration `yaml:"window"`
}

// RobotsConfig configures robots.txt handling.
type RobotsConfig struct {
	Respect   bool     `yaml:"respect"`
	Overrides []string `yaml:"overrides"`
	UserAgent string   `yaml:"user_agent"`
	CacheTTL  Duration `yaml:"cache_ttl"`
}

// OutputConfig selects where and how trade records are written.
type OutputConfig struct {
	Format string    `yaml:"format"`
	Path   string    `yaml:"path"`
	SQL    SQLConfig `yaml:"sql"`
}

// SQLConfig describes an optional relational sink.
type SQLConfig struct {
	Driver          string   `yaml:"driver"`
	DSN             string   `yaml:"dsn"`
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
	AutoMigrate     bool     `yaml:"auto_migrate"`
	CreateIfMissing bool     `yaml:"create_if_missing"`
}

// LoggingConfig selects log verbosity and format.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Structured bool   `yaml:"structured"`
}

// DebugConfig enables raw HTML capture for offline inspection.
type DebugConfig struct {
	SaveHTML  bool   `yaml:"save_html"`
	Directory string `yaml:"directory"`
}

// Default returns a Config populated with sensible defaults for the
// puckpedia trade listing.
func Default() Config {
	return Config{
		Source: SourceConfig{
			BaseURL:     "https://puckpedia.com",
			ListingPath: "/trades",
			PageParam:   "page",
			MaxPage:     46,
			PageLimit:   0,
		},
		Fetch: FetchConfig{
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
			Headers:        map[string]string{},
			SendReferer:    true,
			Timeout:        DurationFrom(30 * time.Second),
			MaxBodyBytes:   6 * 1024 * 1024,
			MaxAttempts:    3,
			BackoffInitial: DurationFrom(2 * time.Second),
		},
		Rendering: RenderingConfig{
			Enabled: false,
			Engine:  "chromedp",
			Timeout: DurationFrom(60 * time.Second),
		},
		Politeness: PolitenessConfig{
			PageDelay: DurationFrom(1500 * time.Millisecond),
		},
		Robots: RobotsConfig{
			Respect:   true,
			Overrides: []string{},
			UserAgent: "trade-scraper/1.0",
			CacheTTL:  DurationFrom(6 * time.Hour),
		},
		Output: OutputConfig{
			Format: "csv",
			Path:   "puckpedia_trades.csv",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Structured: false,
		},
		Debug: DebugConfig{
			SaveHTML:  false,
			Directory: "debug_html",
		},
	}
}

// Load reads, merges, and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer fh.Close()
	return LoadFromReader(fh)
}

// LoadFromReader decodes configuration from an arbitrary reader.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces required invariants for the scraper configuration.
func (c Config) Validate() error {
	if c.Source.BaseURL == "" {
		return errors.New("source.base_url must be set")
	}
	base, err := url.Parse(c.Source.BaseURL)
	if err != nil {
		return fmt.Errorf("source.base_url invalid: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return fmt.Errorf("source.base_url %q must be absolute", c.Source.BaseURL)
	}
	if c.Source.PageParam == "" {
		return errors.New("source.page_param must be set")
	}
	if c.Source.MaxPage < 0 {
		return fmt.Errorf("source.max_page must be >= 0 (got %d)", c.Source.MaxPage)
	}
	if c.Source.PageLimit < 0 {
		return fmt.Errorf("source.page_limit must be >= 0 (got %d)", c.Source.PageLimit)
	}
	if c.Fetch.MaxAttempts <= 0 {
		return fmt.Errorf("fetch.max_attempts must be > 0 (got %d)", c.Fetch.MaxAttempts)
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		return fmt.Errorf("fetch.max_body_bytes must be > 0 (got %d)", c.Fetch.MaxBodyBytes)
	}
	if strings.TrimSpace(c.Fetch.UserAgent) == "" {
		return errors.New("fetch.user_agent must be set")
	}
	if c.Robots.Respect && strings.TrimSpace(c.Robots.UserAgent) == "" {
		return errors.New("robots.user_agent must be set")
	}
	switch c.Output.Format {
	case "csv", "json":
	default:
		return fmt.Errorf("output.format must be csv or json (got %q)", c.Output.Format)
	}
	if c.Output.Path == "" {
		return errors.New("output.path must be set")
	}
	if rl := c.Politeness.RateLimit; rl.Requests < 0 {
		return fmt.Errorf("politeness.rate_limit.requests must be >= 0 (got %d)", rl.Requests)
	}
	if c.Debug.SaveHTML && strings.TrimSpace(c.Debug.Directory) == "" {
		return errors.New("debug.directory must be set when debug.save_html is true")
	}
	return nil
}

// ListingURL builds the absolute URL of the given zero-based listing page.
func (c Config) ListingURL(page int) (*url.URL, error) {
	base, err := url.Parse(c.Source.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	listing := base.JoinPath(c.Source.ListingPath)
	q := listing.Query()
	q.Set(c.Source.PageParam, fmt.Sprintf("%d", page))
	listing.RawQuery = q.Encode()
	return listing, nil
}

func (c *Config) normalise() {
	c.Source.BaseURL = strings.TrimSpace(strings.TrimSuffix(c.Source.BaseURL, "/"))
	c.Source.ListingPath = strings.TrimSpace(c.Source.ListingPath)
	c.Fetch.UserAgent = strings.TrimSpace(c.Fetch.UserAgent)
	c.Robots.UserAgent = strings.TrimSpace(c.Robots.UserAgent)
	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))
	c.Output.Path = strings.TrimSpace(c.Output.Path)
	if c.Fetch.Headers == nil {
		c.Fetch.Headers = map[string]string{}
	}
}
