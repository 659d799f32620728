package cli

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/flowscope/flowscope/pkg/view"
)

// exploreCommand creates the interactive terminal explorer.
func (c *CLI) exploreCommand() *cobra.Command {
	var noCache bool

	cmd := &cobra.Command{
		Use:   "explore [snapshot.json]",
		Short: "Explore a snapshot interactively in the terminal",
		Long: `Explore a snapshot interactively in the terminal.

The explorer walks the same view session the server serves: collapse and
expand modular pipelines, filter by name and focus a node to trace its
neighborhood, without leaving the terminal.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runExplore(cmd.Context(), args[0], noCache)
		},
	}

	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

// runExplore loads the snapshot and hands the session to the explorer UI.
func (c *CLI) runExplore(ctx context.Context, input string, noCache bool) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("read snapshot %s: %w", input, err)
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
	if _, err := sess.Load(ctx, data); err != nil {
		return err
	}

	p := tea.NewProgram(newExplorerModel(sess))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("explorer: %w", err)
	}
	return nil
}
