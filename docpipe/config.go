package docpipe

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/speakdown/cache"
	"github.com/hazyhaar/speakdown/chunk"
	"github.com/hazyhaar/speakdown/observability"
)

// Config configures the speech pipeline.
type Config struct {
	// Platform is the default SSML dialect: azure, google, amazon or
	// generic (default).
	Platform string `yaml:"platform"`
	// Language is the xml:lang of Azure documents (default "en-US").
	Language string `yaml:"language"`
	// Voice optionally names the Azure voice.
	Voice string `yaml:"voice"`

	Cache   CacheConfig   `yaml:"cache"`
	Chunk   ChunkConfig   `yaml:"chunk"`
	Journal JournalConfig `yaml:"journal"`
	HTTP    HTTPConfig    `yaml:"http"`

	// Logger for debug/error messages.
	Logger *slog.Logger `yaml:"-"`
	// Metrics receives stage timings and cache counters. A private set is
	// created when nil.
	Metrics *observability.Metrics `yaml:"-"`
}

// CacheConfig configures the element cache.
type CacheConfig struct {
	Dir        string        `yaml:"dir"`
	TTL        time.Duration `yaml:"ttl"`
	MaxSizeMB  int           `yaml:"max_size_mb"`
	FlushDelay time.Duration `yaml:"flush_delay"`
	Disabled   bool          `yaml:"disabled"`
}

// ChunkConfig configures splitting of large documents.
type ChunkConfig struct {
	MaxChars int `yaml:"max_chars"`
}

// JournalConfig configures the SQLite conversion journal. An empty Path
// disables it.
type JournalConfig struct {
	Path          string        `yaml:"path"`
	BufferSize    int           `yaml:"buffer_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// HTTPConfig configures the HTTP API middleware.
type HTTPConfig struct {
	MaxBodyMB int `yaml:"max_body_mb"`
	// RatePerMinute is the per-client budget on /v1 routes; 0 disables it.
	RatePerMinute int `yaml:"rate_per_minute"`
	// RequestTimeout bounds each HTTP or MCP call (default 60s).
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

func (c *Config) defaults() {
	if c.Platform == "" {
		c.Platform = "generic"
	}
	if c.Language == "" {
		c.Language = "en-US"
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = cache.DefaultDir()
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = cache.DefaultTTL
	}
	if c.Cache.MaxSizeMB <= 0 {
		c.Cache.MaxSizeMB = cache.DefaultMaxSize >> 20
	}
	if c.Cache.FlushDelay <= 0 {
		c.Cache.FlushDelay = cache.DefaultFlushDelay
	}
	if c.Chunk.MaxChars <= 0 {
		c.Chunk.MaxChars = chunk.DefaultMaxChars
	}
	if c.HTTP.MaxBodyMB <= 0 {
		c.HTTP.MaxBodyMB = 32
	}
	if c.HTTP.RequestTimeout <= 0 {
		c.HTTP.RequestTimeout = time.Minute
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Metrics == nil {
		c.Metrics = observability.NewMetrics()
	}
}

// LoadConfigFile reads a YAML configuration file. Durations are written
// as Go duration strings ("24h", "5s").
func LoadConfigFile(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("docpipe: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("docpipe: parse config %s: %w", path, err)
	}
	return cfg, nil
}
