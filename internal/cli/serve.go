package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowscope/flowscope/internal/server"
	"github.com/flowscope/flowscope/pkg/archive"
	"github.com/flowscope/flowscope/pkg/render"
	"github.com/flowscope/flowscope/pkg/runs"
	"github.com/flowscope/flowscope/pkg/view"
)

// shutdownTimeout bounds the drain of in-flight requests on Ctrl+C.
const shutdownTimeout = 10 * time.Second

// serveCommand creates the serve command for running the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr     string
		snapshot string
		noCache  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline view over HTTP",
		Long: `Serve the pipeline view over HTTP.

The server holds one shared view session: every connected client sees the
same graph, filters and focus, and each change is broadcast to all of them
over the /api/events websocket. Load a snapshot at startup with --snapshot
or POST one to /api/snapshot at any time; a rejected snapshot never takes
down the graph already being served.

The run history store and the publish archive are attached when the config
enables them ([runs].path, [archive].uri).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), addr, snapshot, noCache)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides [server].addr)")
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "snapshot file to load at startup")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

// runServe wires the session, stores and HTTP server together and blocks
// until ctx is cancelled or the listener fails.
func (c *CLI) runServe(ctx context.Context, addr, snapshot string, noCache bool) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	ch, err := newCache(cfg.Cache, noCache)
	if err != nil {
		return fmt.Errorf("initialize cache: %w", err)
	}
	defer ch.Close()

	sess, err := view.NewSession(ch, newKeyer(cfg.Cache), c.Logger, cfg.Layout)
	if err != nil {
		return err
	}

	var runStore *runs.Store
	if cfg.Runs.Path != "" {
		runStore, err = runs.Open(cfg.Runs.Path)
		if err != nil {
			return fmt.Errorf("open run store %s: %w", cfg.Runs.Path, err)
		}
		defer runStore.Close()
		c.Logger.Debug("run store open", "path", cfg.Runs.Path)
	}

	var archiveStore archive.Store
	if cfg.Archive.URI != "" {
		mongoStore, err := archive.NewMongoStore(ctx, cfg.Archive.URI, cfg.Archive.Database)
		if err != nil {
			return fmt.Errorf("connect archive: %w", err)
		}
		defer mongoStore.Close(context.Background())
		archiveStore = mongoStore
		c.Logger.Debug("archive connected", "database", cfg.Archive.Database)
	}

	srv := server.New(server.Config{
		Addr:        cfg.Server.Addr,
		CORSOrigins: cfg.Server.CORSOrigins,
	}, sess, runStore, archiveStore, render.NewExporter(ch, newKeyer(cfg.Cache), c.Logger), c.Logger)

	if snapshot != "" {
		data, err := os.ReadFile(snapshot)
		if err != nil {
			return fmt.Errorf("read snapshot %s: %w", snapshot, err)
		}
		if _, err := sess.Load(ctx, data); err != nil {
			printWarning("Snapshot rejected, serving without a graph")
			printDetail("%v", err)
		} else {
			if runStore != nil {
				if snap := sess.Snapshot(); snap != nil && len(snap.Runs) > 0 {
					if n, err := runStore.Import(ctx, snap.Runs); err != nil {
						c.Logger.Warn("importing snapshot runs", "err", err)
					} else if n > 0 {
						c.Logger.Info("imported runs", "count", n)
					}
				}
			}
			st := sess.State(ctx)
			printSuccess("Loaded %s", snapshot)
			printStats(st.Stats.TotalNodes, st.Stats.TotalEdges, st.Stats.Pipelines)
		}
	}

	printInfo("Serving at %s", StyleLink.Render("http://"+cfg.Server.Addr))
	printDetail("Press Ctrl+C to stop")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
