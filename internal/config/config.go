package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the full configuration required to initialise the analyzer engine.
type Config struct {
	Fetch    FetchConfig    `yaml:"fetch"`
	TLS      TLSConfig      `yaml:"tls"`
	Analyze  AnalyzeConfig  `yaml:"analyze"`
	Probe    ProbeConfig    `yaml:"probe"`
	Batch    BatchConfig    `yaml:"batch"`
	Storage  StorageConfig  `yaml:"storage"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// FetchConfig controls page retrieval.
type FetchConfig struct {
	UserAgent    string            `yaml:"user_agent"`
	Headers      map[string]string `yaml:"headers"`
	Timeout      Duration          `yaml:"timeout"`
	MaxBodyBytes int64             `yaml:"max_body_bytes"`
}

// TLSConfig controls the certificate check performed alongside each fetch.
type TLSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Timeout Duration `yaml:"timeout"`
}

// AnalyzeConfig tunes the text analysis stage.
type AnalyzeConfig struct {
	TopKeywords    int      `yaml:"top_keywords"`
	ExtraStopWords []string `yaml:"extra_stop_words"`
	DetectLanguage bool     `yaml:"detect_language"`
}

// ProbeConfig controls optional reachability checks of discovered links.
type ProbeConfig struct {
	Enabled         bool            `yaml:"enabled"`
	Concurrency     int             `yaml:"concurrency"`
	Timeout         Duration        `yaml:"timeout"`
	MaxLinksPerPage int             `yaml:"max_links_per_page"`
	RatePerHost     RateLimitConfig `yaml:"rate_per_host"`
	RespectRobots   bool            `yaml:"respect_robots"`
	RobotsCacheTTL  Duration        `yaml:"robots_cache_ttl"`
}

// BatchConfig bounds the orchestrator.
type BatchConfig struct {
	MaxURLs     int `yaml:"max_urls"`
	Concurrency int `yaml:"concurrency"`
}

// StorageConfig describes the optional relational sink for analysis results.
type StorageConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Driver          string   `yaml:"driver"`
	DSN             string   `yaml:"dsn"`
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
	CreateIfMissing bool     `yaml:"create_if_missing"`
	AutoMigrate     bool     `yaml:"auto_migrate"`
}

// SnapshotConfig controls markdown snapshots of analyzed pages.
type SnapshotConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Directory string `yaml:"directory"`
}

// RateLimitConfig applies a token bucket per host.
type RateLimitConfig struct {
	Requests int      `yaml:"requests"`
	Window   Duration `yaml:"window"`
}

// LoggingConfig selects log verbosity and format.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Structured bool   `yaml:"structured"`
}

// Default returns a Config populated with sensible defaults.
func Default() Config {
	return Config{
		Fetch: FetchConfig{
			UserAgent:    "seo-url-analyzer-bot/1.0",
			Headers:      map[string]string{},
			Timeout:      DurationFrom(10 * time.Second),
			MaxBodyBytes: 5 * 1024 * 1024,
		},
		TLS: TLSConfig{
			Enabled: true,
			Timeout: DurationFrom(5 * time.Second),
		},
		Analyze: AnalyzeConfig{
			TopKeywords:    20,
			DetectLanguage: true,
		},
		Probe: ProbeConfig{
			Enabled:         false,
			Concurrency:     8,
			Timeout:         DurationFrom(5 * time.Second),
			MaxLinksPerPage: 100,
			RatePerHost: RateLimitConfig{
				Requests: 4,
				Window:   DurationFrom(time.Second),
			},
			RespectRobots:  false,
			RobotsCacheTTL: DurationFrom(6 * time.Hour),
		},
		Batch: BatchConfig{
			MaxURLs:     10,
			Concurrency: 4,
		},
		Storage: StorageConfig{
			AutoMigrate: true,
		},
		Snapshot: SnapshotConfig{
			Enabled:   false,
			Directory: "",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Structured: true,
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

	cfg := Default()
	if err := decodeYAML(fh, &cfg); err != nil {
		return nil, err
	}
	cfg.normalise()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromReader decodes configuration from an arbitrary reader.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decodeYAML(r, &cfg); err != nil {
		return nil, err
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Validate enforces required invariants for the analyzer configuration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Fetch.UserAgent) == "" {
		return errors.New("fetch.user_agent must be set")
	}
	if c.Fetch.Timeout.IsZero() {
		return errors.New("fetch.timeout must be > 0")
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		return fmt.Errorf("fetch.max_body_bytes must be > 0 (got %d)", c.Fetch.MaxBodyBytes)
	}
	if c.TLS.Enabled && c.TLS.Timeout.IsZero() {
		return errors.New("tls.timeout must be > 0 when tls.enabled is true")
	}
	if c.Analyze.TopKeywords <= 0 {
		return fmt.Errorf("analyze.top_keywords must be > 0 (got %d)", c.Analyze.TopKeywords)
	}
	if c.Batch.MaxURLs <= 0 {
		return fmt.Errorf("batch.max_urls must be > 0 (got %d)", c.Batch.MaxURLs)
	}
	if c.Batch.Concurrency <= 0 || c.Batch.Concurrency > 10 {
		return fmt.Errorf("batch.concurrency must be between 1 and 10 (got %d)", c.Batch.Concurrency)
	}
	if c.Probe.Enabled {
		if c.Probe.Concurrency <= 0 || c.Probe.Concurrency > 100 {
			return fmt.Errorf("probe.concurrency must be between 1 and 100 (got %d)", c.Probe.Concurrency)
		}
		if c.Probe.Timeout.IsZero() {
			return errors.New("probe.timeout must be > 0 when probe.enabled is true")
		}
		if c.Probe.MaxLinksPerPage <= 0 {
			return fmt.Errorf("probe.max_links_per_page must be > 0 (got %d)", c.Probe.MaxLinksPerPage)
		}
		if c.Probe.RatePerHost.Requests < 0 {
			return fmt.Errorf("probe.rate_per_host.requests must be >= 0 (got %d)", c.Probe.RatePerHost.Requests)
		}
	}
	if c.Storage.Enabled {
		switch c.Storage.Driver {
		case "postgres", "sqlite":
		default:
			return fmt.Errorf("storage.driver must be postgres or sqlite (got %q)", c.Storage.Driver)
		}
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return errors.New("storage.dsn must be set when storage.enabled is true")
		}
	}
	if c.Snapshot.Enabled && strings.TrimSpace(c.Snapshot.Directory) == "" {
		return errors.New("snapshot.directory must be set when snapshot.enabled is true")
	}
	return nil
}

func (c *Config) normalise() {
	c.Fetch.UserAgent = strings.TrimSpace(c.Fetch.UserAgent)
	if c.Fetch.Headers == nil {
		c.Fetch.Headers = map[string]string{}
	}
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Storage.DSN = strings.TrimSpace(c.Storage.DSN)
	c.Snapshot.Directory = strings.TrimSpace(c.Snapshot.Directory)

	// Extra stop words are folded and de-duplicated once here so the
	// analyzer can treat its set as immutable.
	if len(c.Analyze.ExtraStopWords) > 0 {
		c.Analyze.ExtraStopWords = dedupeLower(c.Analyze.ExtraStopWords)
	}
}

func dedupeLower(values []string) []string {
	unique := make(map[string]struct{}, len(values))
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := unique[v]; ok {
			continue
		}
		unique[v] = struct{}{}
		cleaned = append(cleaned, v)
	}
	sort.Strings(cleaned)
	return cleaned
}

// Enabled reports whether per-host rate limiting is active.
func (r RateLimitConfig) Enabled() bool {
	return r.Requests > 0 && !r.Window.IsZero()
}
