package store

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RelayConfig describes one relay endpoint.
// URL must contain the {url} placeholder for the escaped target address.
type RelayConfig struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	Format string `yaml:"format"` // raw or json
	Field  string `yaml:"field"`  // payload field for json envelopes
}

type Config struct {
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Fetch struct {
		TargetURL      string        `yaml:"target_url"`
		TimeoutSeconds int           `yaml:"timeout_seconds"`
		MinBodyLength  int           `yaml:"min_body_length"`
		UserAgent      string        `yaml:"user_agent"`
		RatePerSecond  float64       `yaml:"rate_per_second"`
		Relays         []RelayConfig `yaml:"relays"`
	} `yaml:"fetch"`
	Cache struct {
		Backend    string `yaml:"backend"` // file, sqlite, badger or memory
		Path       string `yaml:"path"`
		Prefix     string `yaml:"prefix"`
		TTLHours   int    `yaml:"ttl_hours"`
		MaxEntries int    `yaml:"max_entries"`
		Version    string `yaml:"version"`
	} `yaml:"cache"`
	Analysis struct {
		DefaultSource string `yaml:"default_source"`
		ReportFormat  string `yaml:"report_format"`
		OutputDir     string `yaml:"output_dir"`
	} `yaml:"analysis"`
}

const (
	DefaultTargetURL = "https://kabutan.jp/stock/finance?code={code}"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// DefaultRelays returns the public relays in the order they are tried
func DefaultRelays() []RelayConfig {
	return []RelayConfig{
		{Name: "codetabs", URL: "https://api.codetabs.com/v1/proxy?quest={url}", Format: "raw"},
		{Name: "allorigins-raw", URL: "https://api.allorigins.win/raw?url={url}", Format: "raw"},
		{Name: "allorigins-json", URL: "https://api.allorigins.win/get?url={url}", Format: "json", Field: "contents"},
	}
}

// Default returns a config with every default applied
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "INFO"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if c.Fetch.TargetURL == "" {
		c.Fetch.TargetURL = DefaultTargetURL
	}
	if c.Fetch.TimeoutSeconds == 0 {
		c.Fetch.TimeoutSeconds = 20
	}
	if c.Fetch.MinBodyLength == 0 {
		c.Fetch.MinBodyLength = 1000
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = DefaultUserAgent
	}
	if c.Fetch.RatePerSecond == 0 {
		c.Fetch.RatePerSecond = 1
	}
	if len(c.Fetch.Relays) == 0 {
		c.Fetch.Relays = DefaultRelays()
	}
	for i := range c.Fetch.Relays {
		if c.Fetch.Relays[i].Format == "" {
			c.Fetch.Relays[i].Format = "raw"
		}
		if c.Fetch.Relays[i].Format == "json" && c.Fetch.Relays[i].Field == "" {
			c.Fetch.Relays[i].Field = "contents"
		}
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = "file"
	}
	if c.Cache.Path == "" {
		c.Cache.Path = ".cache/dividend-analyzer"
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = "stock_data_"
	}
	if c.Cache.TTLHours == 0 {
		c.Cache.TTLHours = 24
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = 30
	}
	if c.Cache.Version == "" {
		c.Cache.Version = "2.1"
	}

	if c.Analysis.DefaultSource == "" {
		c.Analysis.DefaultSource = "online"
	}
	if c.Analysis.ReportFormat == "" {
		c.Analysis.ReportFormat = "text"
	}
	if c.Analysis.OutputDir == "" {
		c.Analysis.OutputDir = "reports"
	}
}

func (c *Config) Validate() error {
	if !strings.Contains(c.Fetch.TargetURL, "{code}") {
		return fmt.Errorf("fetch.target_url must contain {code}, got '%s'", c.Fetch.TargetURL)
	}
	if c.Fetch.TimeoutSeconds < 0 {
		return fmt.Errorf("fetch.timeout_seconds must be positive, got %d", c.Fetch.TimeoutSeconds)
	}
	if c.Fetch.RatePerSecond < 0 {
		return fmt.Errorf("fetch.rate_per_second must be positive, got %.2f", c.Fetch.RatePerSecond)
	}
	seen := make(map[string]bool)
	for _, r := range c.Fetch.Relays {
		if r.Name == "" {
			return errors.New("fetch.relays: every relay needs a name")
		}
		if seen[r.Name] {
			return fmt.Errorf("fetch.relays: duplicate relay '%s'", r.Name)
		}
		seen[r.Name] = true
		if !strings.Contains(r.URL, "{url}") {
			return fmt.Errorf("fetch.relays[%s]: url must contain {url}", r.Name)
		}
		if r.Format != "raw" && r.Format != "json" {
			return fmt.Errorf("fetch.relays[%s]: format must be 'raw' or 'json', got '%s'", r.Name, r.Format)
		}
	}

	switch c.Cache.Backend {
	case "file", "sqlite", "badger", "memory":
	default:
		return fmt.Errorf("cache.backend must be 'file', 'sqlite', 'badger' or 'memory', got '%s'", c.Cache.Backend)
	}
	if c.Cache.TTLHours < 0 {
		return fmt.Errorf("cache.ttl_hours must be positive, got %d", c.Cache.TTLHours)
	}
	if c.Cache.MaxEntries < 1 {
		return fmt.Errorf("cache.max_entries must be at least 1, got %d", c.Cache.MaxEntries)
	}

	switch c.Analysis.DefaultSource {
	case "online", "cache", "local":
	default:
		return fmt.Errorf("analysis.default_source must be 'online', 'cache' or 'local', got '%s'", c.Analysis.DefaultSource)
	}
	switch c.Analysis.ReportFormat {
	case "text", "json", "csv":
	default:
		return fmt.Errorf("analysis.report_format must be 'text', 'json' or 'csv', got '%s'", c.Analysis.ReportFormat)
	}
	return nil
}

// FetchTimeout is the per-relay attempt timeout
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// CacheTTL is how long a cached record stays readable
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLHours) * time.Hour
}

// LoadConfig reads path, applies defaults and validates.
// A missing file is not an error; defaults are returned instead.
func LoadConfig(path string) (*Config, error) {
	var c Config
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
