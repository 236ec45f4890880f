// Package config loads the espalier.yaml server configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the conventional config file name, resolved relative to
// the project directory.
const DefaultFile = "espalier.yaml"

// Duration wraps time.Duration so yaml values like "30s" or "1h" parse.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration '%s': %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped standard duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full server configuration.
type Config struct {
	// Addr is the HTTP listen address, e.g. ":8080".
	Addr string `yaml:"addr"`

	// ViewsDir is the directory holding the template repository.
	ViewsDir string `yaml:"views_dir"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	Store    StoreConfig    `yaml:"store"`
	Lock     LockConfig     `yaml:"lock"`
	Security SecurityConfig `yaml:"security"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// StoreConfig selects and configures the session state backend.
type StoreConfig struct {
	// Backend is "memory" or "redis".
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	Prefix   string   `yaml:"prefix"`
	TTL      Duration `yaml:"ttl"`
}

// LockConfig configures per-session serialization.
type LockConfig struct {
	// Distributed enables the redis lock on top of the local mutex.
	// Requires the redis backend.
	Distributed bool     `yaml:"distributed"`
	TTL         Duration `yaml:"ttl"`
}

// SecurityConfig configures the persistence middleware chain.
type SecurityConfig struct {
	// EncryptionKey is a base64-encoded 32 byte key. Empty disables
	// encryption at rest.
	EncryptionKey string `yaml:"encryption_key"`

	// PIIPatterns are regular expressions matched against assign keys;
	// matching values are masked before persistence.
	PIIPatterns []string `yaml:"pii_patterns"`
}

// MetricsConfig configures the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Addr:     ":8080",
		ViewsDir: ".",
		LogLevel: "info",
		Store: StoreConfig{
			Backend: "memory",
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "espalier:session:",
			},
		},
		Lock: LockConfig{
			TTL: Duration(30 * time.Second),
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load reads the config file at path, applying defaults for absent fields.
// A missing file is not an error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Store.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown store backend '%s' (expected memory or redis)", c.Store.Backend)
	}
	if c.Lock.Distributed && c.Store.Backend != "redis" {
		return fmt.Errorf("distributed locking requires the redis backend")
	}
	return nil
}
