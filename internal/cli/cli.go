// Package cli implements the flowscope command-line interface.
//
// The commands wrap the same session, layout and render packages the HTTP
// server uses, so a drawing produced on the command line matches what the
// server would serve. Besides the server itself the CLI covers one-shot
// layout and export, an interactive terminal explorer, the run history
// store and the artifact cache.
//
// All commands support --verbose (-v) for debug-level logging and
// --config (-c) to point at a config file; without the flag a
// flowscope.toml in the working directory is picked up automatically.
package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/flowscope/flowscope/pkg/buildinfo"
	"github.com/flowscope/flowscope/pkg/cache"
	"github.com/flowscope/flowscope/pkg/config"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "flowscope"

	// defaultConfigFile is picked up from the working directory when no
	// --config flag is given.
	defaultConfigFile = "flowscope.toml"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "flowscope",
		Short:        "Flowscope visualizes pipeline graphs",
		Long:         `Flowscope loads pipeline snapshots and draws them as layered graphs, one-shot on the command line or served over HTTP for interactive exploration.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default: ./flowscope.toml if present)")

	// Register all subcommands
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.exploreCommand())
	root.AddCommand(c.runsCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Config
// =============================================================================

// loadConfig resolves the effective configuration: the --config flag if
// given, otherwise a flowscope.toml in the working directory, otherwise the
// built-in defaults.
func (c *CLI) loadConfig() (*config.Config, error) {
	if c.configPath != "" {
		return config.Load(c.configPath)
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return config.Load(defaultConfigFile)
	}
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// =============================================================================
// Cache Factory
// =============================================================================

// newCache builds the cache backend the config selects. An unset file
// backend dir falls back to the XDG cache directory; when even that is
// unavailable caching is silently disabled.
func newCache(cfg config.Cache, noCache bool) (cache.Cache, error) {
	if noCache || cfg.Backend == config.CacheNone {
		return cache.NewNullCache(), nil
	}
	if cfg.Backend == config.CacheRedis {
		return cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	}
	dir := cfg.Dir
	if dir == "" {
		d, err := cacheDir()
		if err != nil {
			return cache.NewNullCache(), nil
		}
		dir = d
	}
	return cache.NewFileCache(dir)
}

// newKeyer namespaces cache keys when the backend is shared. A Redis
// database may hold keys from other tools, so flowscope prefixes its own;
// the file backend has a directory to itself. nil selects the default keyer.
func newKeyer(cfg config.Cache) cache.Keyer {
	if cfg.Backend == config.CacheRedis {
		return cache.NewScopedKeyer(nil, appName+":")
	}
	return nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/flowscope/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
