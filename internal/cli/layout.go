package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flowscope/flowscope/pkg/view"
)

// layoutCommand creates the layout command for computing drawings offline.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		output      string
		noCache     bool
		collapseAll bool
	)

	cmd := &cobra.Command{
		Use:   "layout [snapshot.json]",
		Short: "Compute the layered drawing for a snapshot",
		Long: `Compute the layered drawing for a snapshot.

The layout command loads a snapshot file and runs the same layered layout
the server uses: ranking, crossing reduction, coordinate assignment and
edge routing. The output is a layout.json with per-node geometry and the
routed edge paths.

Results are cached locally for faster subsequent runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLayout(cmd.Context(), args[0], output, noCache, collapseAll)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.layout.json)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&collapseAll, "collapse-all", false, "collapse every modular pipeline first")

	return cmd
}

// runLayout loads the snapshot, computes the drawing, and writes output.
func (c *CLI) runLayout(ctx context.Context, input, output string, noCache, collapseAll bool) error {
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

	prog := newProgress(c.Logger)
	st, err := sess.Load(ctx, data)
	if err != nil {
		return err
	}
	if collapseAll {
		if st, err = sess.SetAllCollapsed(ctx, true); err != nil {
			return err
		}
	}
	prog.done("Computed layout")

	out, err := json.MarshalIndent(sess.Drawing(), "", "  ")
	if err != nil {
		return err
	}

	outputPath := output
	if outputPath == "" {
		base := strings.TrimSuffix(input, filepath.Ext(input))
		outputPath = base + ".layout.json"
	}
	if err := os.WriteFile(outputPath, out, 0644); err != nil {
		return fmt.Errorf("write output %s: %w", outputPath, err)
	}

	if st.Fallback {
		printWarning("Layout fell back to a single column")
	}
	printSuccess("Layout complete")
	printFile(outputPath)
	printStats(st.Stats.TotalNodes, st.Stats.TotalEdges, st.Stats.Pipelines)
	printNewline()
	printNextStep("Render", appName+" render "+input)

	return nil
}
