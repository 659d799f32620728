// Package config loads the flowscope configuration file.
//
// Configuration is one TOML file with a section per subsystem; every
// section and field is optional and zero values mean "use the default".
// Validation happens at load time so a bad file fails startup instead of
// the first request.
package config

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/flowscope/flowscope/pkg/errors"
	"github.com/flowscope/flowscope/pkg/layout"
)

// Cache backends for [cache].backend.
const (
	CacheNone  = "none"
	CacheFile  = "file"
	CacheRedis = "redis"
)

// DefaultAddr is where the server listens when [server].addr is not set.
const DefaultAddr = "127.0.0.1:4141"

// Config is the complete flowscope configuration.
type Config struct {
	Server  Server        `toml:"server"`
	Cache   Cache         `toml:"cache"`
	Runs    Runs          `toml:"runs"`
	Archive Archive       `toml:"archive"`
	Layout  layout.Params `toml:"layout"`
}

// Server configures the HTTP API.
type Server struct {
	Addr        string   `toml:"addr"`
	CORSOrigins []string `toml:"cors_origins"`
}

// Cache selects and configures the cache backend. Dir applies to the file
// backend; an empty dir falls back to the XDG cache directory.
type Cache struct {
	Backend string `toml:"backend"`
	Dir     string `toml:"dir"`
	Redis   Redis  `toml:"redis"`
}

// Redis configures the redis cache backend.
type Redis struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// Runs configures the experiment-run store. An empty path disables it.
type Runs struct {
	Path string `toml:"path"`
}

// Archive configures the publish registry. An empty uri disables it.
type Archive struct {
	URI      string `toml:"uri"`
	Database string `toml:"database"`
}

// Default returns the configuration used when no file is given. Layout
// params are left zero; Validate fills them in.
func Default() Config {
	return Config{
		Server: Server{Addr: DefaultAddr},
		Cache:  Cache{Backend: CacheFile},
	}
}

// Load reads and validates a configuration file. File values override the
// defaults; sections left out keep them.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "reading config")
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parsing config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration and fills in layout defaults.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "server addr must not be empty")
	}

	switch c.Cache.Backend {
	case "", CacheNone, CacheFile:
	case CacheRedis:
		if c.Cache.Redis.Addr == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "redis cache backend needs an addr")
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown cache backend %q", c.Cache.Backend)
	}

	if c.Archive.URI != "" && c.Archive.Database == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "archive needs a database name")
	}

	if err := c.Layout.ValidateAndSetDefaults(); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "layout section rejected")
	}
	return nil
}
