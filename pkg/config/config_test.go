package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/flowscope/flowscope/pkg/config"
	"github.com/flowscope/flowscope/pkg/errors"
	"github.com/flowscope/flowscope/pkg/layout"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flowscope.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
addr = ":9999"
cors_origins = ["http://localhost:3000"]

[cache]
backend = "redis"

[cache.redis]
addr = "localhost:6379"
db = 2

[runs]
path = "/var/lib/flowscope/runs.db"

[archive]
uri = "mongodb://localhost:27017"
database = "flowscope"

[layout]
rank_sep = 200.0
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("Addr = %q, want :9999", cfg.Server.Addr)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "http://localhost:3000" {
		t.Errorf("CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Cache.Backend != config.CacheRedis || cfg.Cache.Redis.DB != 2 {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Runs.Path != "/var/lib/flowscope/runs.db" {
		t.Errorf("runs path = %q", cfg.Runs.Path)
	}
	if cfg.Archive.Database != "flowscope" {
		t.Errorf("archive = %+v", cfg.Archive)
	}
	if cfg.Layout.RankSep != 200.0 {
		t.Errorf("RankSep = %v, want 200", cfg.Layout.RankSep)
	}
	// Untouched layout knobs get their defaults during validation.
	if cfg.Layout.NodeHeight != layout.DefaultNodeHeight {
		t.Errorf("NodeHeight = %v, want default %v", cfg.Layout.NodeHeight, layout.DefaultNodeHeight)
	}
}

func TestLoadMinimalFile(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != config.DefaultAddr {
		t.Errorf("Addr = %q, want %q", cfg.Server.Addr, config.DefaultAddr)
	}
	if cfg.Cache.Backend != config.CacheFile {
		t.Errorf("Backend = %q, want file", cfg.Cache.Backend)
	}
	if cfg.Layout.RankSep != layout.DefaultRankSep {
		t.Errorf("RankSep = %v, want default", cfg.Layout.RankSep)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown backend", "[cache]\nbackend = \"memcached\"\n"},
		{"redis without addr", "[cache]\nbackend = \"redis\"\n"},
		{"archive without database", "[archive]\nuri = \"mongodb://localhost\"\n"},
		{"negative layout param", "[layout]\nrank_sep = -10.0\n"},
		{"malformed toml", "[server\naddr = :80\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.content))
			if !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("Load() error = %v, want %s", err, errors.ErrCodeInvalidConfig)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("Load(absent) error = %v, want %s", err, errors.ErrCodeInvalidConfig)
	}
}

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Layout.RankSep != layout.DefaultRankSep {
		t.Errorf("RankSep = %v, want default filled in", cfg.Layout.RankSep)
	}
}
