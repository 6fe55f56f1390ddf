package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/neurospin/epac/pkg/ports"
	"github.com/neurospin/epac/pkg/store"
	"github.com/neurospin/epac/pkg/store/redisstore"
)

// Config is the worker configuration file.
type Config struct {
	Store StoreConfig `yaml:"store"`
}

// Duration parses YAML scalars like "90s" or "1h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// StoreConfig selects and parameterizes the shared store backend.
type StoreConfig struct {
	// Type is "fs", "redis" or "mem".
	Type string `yaml:"type"`

	// Path is the base directory of an fs store.
	Path string `yaml:"path"`

	// Redis connection settings.
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	Prefix   string   `yaml:"prefix"`
	TTL      Duration `yaml:"ttl"`

	// BlobThreshold overrides the row count above which array fields are
	// segregated into the blob region.
	BlobThreshold int `yaml:"blob_threshold"`
}

// DefaultConfig is used when no configuration file is given.
func DefaultConfig() *Config {
	return &Config{Store: StoreConfig{Type: "fs", Path: "./epac-store"}}
}

// LoadConfig reads a YAML configuration file. An empty path yields the
// defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %q: %w", path, err)
	}
	return cfg, nil
}

// OpenStore builds the configured store backend.
func (c *Config) OpenStore() (ports.Store, error) {
	sc := c.Store
	switch sc.Type {
	case "", "fs":
		var opts []store.FSOption
		if sc.BlobThreshold > 0 {
			opts = append(opts, store.WithBlobThreshold(sc.BlobThreshold))
		}
		return store.NewFSStore(sc.Path, opts...)
	case "redis":
		var opts []redisstore.Option
		if sc.Prefix != "" {
			opts = append(opts, redisstore.WithPrefix(sc.Prefix))
		}
		if sc.TTL > 0 {
			opts = append(opts, redisstore.WithTTL(time.Duration(sc.TTL)))
		}
		if sc.BlobThreshold > 0 {
			opts = append(opts, redisstore.WithBlobThreshold(sc.BlobThreshold))
		}
		return redisstore.New(sc.Addr, sc.Password, sc.DB, opts...), nil
	case "mem":
		return store.NewMemStore(), nil
	default:
		return nil, fmt.Errorf("unknown store type %q", sc.Type)
	}
}

func openConfiguredStore(path string) (ports.Store, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return cfg.OpenStore()
}
