// Package config holds all configuration types and loading logic for
// replayconsole. Config structure never shrinks: fields are only added, never
// renamed or removed.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/snehjoshi/replayconsole/internal/types"
)

// Config is the root configuration for a replayconsole server instance.
type Config struct {
	Node      NodeConfig      `yaml:"node"`
	HTTP      HTTPConfig      `yaml:"http"`
	Console   ConsoleConfig   `yaml:"console"`
	Storage   StorageConfig   `yaml:"storage"`
	Auth      AuthConfig      `yaml:"auth"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// NodeConfig holds identity and network settings for this server.
type NodeConfig struct {
	// ID is a ULID string. Use "auto" to generate and persist one on first start.
	ID      string `yaml:"id"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

// HTTPConfig tunes the REST and WebSocket front end.
type HTTPConfig struct {
	// AllowedOrigins lists the browser origins allowed to call the API.
	// "*" allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
	// MaxBodyBytes caps every request body, message batches included.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// ConsoleConfig tunes every console store the server hosts.
type ConsoleConfig struct {
	// LogLimit is the number of top-level messages kept per session.
	LogLimit int `yaml:"log_limit"`
	// GroupWarnings moves warning-group members next to their header when the
	// projection is rebuilt after a filter change.
	GroupWarnings bool `yaml:"group_warnings"`
	// Filters is the filter state new sessions start with.
	Filters FilterDefaults `yaml:"filters"`
}

// FilterDefaults mirrors the filter bar. Level fields are true when messages
// of that level are shown.
type FilterDefaults struct {
	Error       bool `yaml:"error"`
	Warn        bool `yaml:"warn"`
	Info        bool `yaml:"info"`
	Debug       bool `yaml:"debug"`
	Log         bool `yaml:"log"`
	NodeModules bool `yaml:"nodemodules"`
}

// Value returns the filter state new sessions start with. The search text
// always starts empty.
func (f FilterDefaults) Value() types.Filters {
	return types.Filters{
		Error:       f.Error,
		Warn:        f.Warn,
		Info:        f.Info,
		Debug:       f.Debug,
		Log:         f.Log,
		NodeModules: f.NodeModules,
	}
}

// FsyncPolicy controls when the archive is flushed to physical disk.
type FsyncPolicy string

const (
	FsyncAlways FsyncPolicy = "always" // safest, default
	FsyncNever  FsyncPolicy = "never"  // fastest, unsafe (dev/test only)
)

// StorageConfig controls how session journals are persisted.
type StorageConfig struct {
	// Enabled keeps journals in DataDir/archive.db. When false sessions live
	// only in memory.
	Enabled bool        `yaml:"enabled"`
	Fsync   FsyncPolicy `yaml:"fsync"`
	// CompactOnClear drops journal entries made obsolete by a clear.
	CompactOnClear bool `yaml:"compact_on_clear"`
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// RateLimitConfig sets the per-client-IP token bucket.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

// Default returns a Config populated with safe, sensible defaults.
// It is the canonical source of truth for default values.
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			ID:      "auto",
			Host:    "0.0.0.0",
			Port:    8080,
			DataDir: "./data",
		},
		HTTP: HTTPConfig{
			AllowedOrigins: []string{"*"},
			MaxBodyBytes:   32 << 20,
		},
		Console: ConsoleConfig{
			LogLimit:      1000,
			GroupWarnings: false,
			Filters: FilterDefaults{
				Error:       true,
				Warn:        true,
				Info:        true,
				Debug:       true,
				Log:         true,
				NodeModules: true,
			},
		},
		Storage: StorageConfig{
			Enabled:        true,
			Fsync:          FsyncAlways,
			CompactOnClear: true,
		},
		Auth: AuthConfig{
			Enabled: false,
			APIKey:  "",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			RPS:     100,
			Burst:   200,
		},
	}
}

// Load reads a YAML config file at path and overlays it on top of Default().
// If the file does not exist the default config is returned without error,
// making it easy to run replayconsole with no config file at all.
//
// After loading the file, environment variables are applied as overrides:
//
//	REPLAYCONSOLE_AUTH_API_KEY   sets auth.api_key and enables auth (auth.enabled = true)
//	REPLAYCONSOLE_DATA_DIR       sets node.data_dir
//	REPLAYCONSOLE_PORT           sets node.port
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("REPLAYCONSOLE_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
		cfg.Auth.Enabled = true
	}
	if v := os.Getenv("REPLAYCONSOLE_DATA_DIR"); v != "" {
		cfg.Node.DataDir = v
	}
	if v := os.Getenv("REPLAYCONSOLE_PORT"); v != "" {
		var p int
		if _, err := fmt.Sscanf(v, "%d", &p); err == nil && p > 0 {
			cfg.Node.Port = p
		}
	}
}

// Validate checks that the config values are consistent and within acceptable
// ranges. It returns the first error found.
func (c *Config) Validate() error {
	if c.Node.Port < 1 || c.Node.Port > 65535 {
		return errors.New("node.port must be between 1 and 65535")
	}
	if c.Node.DataDir == "" {
		return errors.New("node.data_dir must not be empty")
	}
	if c.HTTP.MaxBodyBytes < 1 {
		return errors.New("http.max_body_bytes must be positive")
	}
	if c.Console.LogLimit < 1 {
		return errors.New("console.log_limit must be at least 1")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return errors.New("auth.api_key must be set when auth is enabled")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst < 1) {
		return errors.New("rate_limit.rps must be positive and rate_limit.burst at least 1")
	}
	switch c.Storage.Fsync {
	case FsyncAlways, FsyncNever:
		// valid
	default:
		return errors.New(`storage.fsync must be one of "always", "never"`)
	}
	return nil
}
