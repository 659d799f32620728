package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flowscope/flowscope/pkg/render"
	"github.com/flowscope/flowscope/pkg/view"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output      string   // output file path (single format) or base path (multiple)
	formats     []string // artifact formats: svg, dot, json
	theme       string   // svg color theme
	hideLabels  bool     // svg: draw shapes and edges only
	smooth      bool     // svg: curved edge bends
	detailed    bool     // dot: rank/order/tags in labels
	collapseAll bool     // collapse every modular pipeline first
	noCache     bool
}

// renderCommand creates the render command for exporting artifacts.
func (c *CLI) renderCommand() *cobra.Command {
	var formatsStr string
	opts := renderOpts{}

	cmd := &cobra.Command{
		Use:   "render [snapshot.json]",
		Short: "Render a snapshot to SVG, DOT or JSON",
		Long: `Render a snapshot to SVG, DOT or JSON.

The render command loads a snapshot, computes the drawing and writes export
artifacts: an SVG of the drawing, a Graphviz DOT file of the effective
graph, or the full view state as JSON. Several formats can be produced in
one invocation with a comma-separated --format.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.formats = parseFormats(formatsStr)
			return c.runRender(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): svg (default), dot, json (comma-separated)")
	cmd.Flags().StringVar(&opts.theme, "theme", "", "svg color theme: light (default), dark")
	cmd.Flags().BoolVar(&opts.hideLabels, "hide-labels", false, "svg: draw shapes and edges only")
	cmd.Flags().BoolVar(&opts.smooth, "smooth", false, "svg: curve edge bends")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "dot: include rank, order and tags in labels")
	cmd.Flags().BoolVar(&opts.collapseAll, "collapse-all", false, "collapse every modular pipeline first")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")

	return cmd
}

// runRender loads the snapshot and writes one artifact per format.
func (c *CLI) runRender(ctx context.Context, input string, opts renderOpts) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("read snapshot %s: %w", input, err)
	}

	ch, err := newCache(cfg.Cache, opts.noCache)
	if err != nil {
		return fmt.Errorf("initialize cache: %w", err)
	}
	defer ch.Close()

	sess, err := view.NewSession(ch, newKeyer(cfg.Cache), c.Logger, cfg.Layout)
	if err != nil {
		return err
	}

	st, err := sess.Load(ctx, data)
	if err != nil {
		return err
	}
	if opts.collapseAll {
		if st, err = sess.SetAllCollapsed(ctx, true); err != nil {
			return err
		}
	}

	exporter := render.NewExporter(ch, newKeyer(cfg.Cache), c.Logger)

	prog := newProgress(c.Logger)
	written := make([]string, 0, len(opts.formats))
	for _, format := range opts.formats {
		artifact, err := exporter.Export(ctx, st, render.ExportOptions{
			Format:     format,
			Theme:      opts.theme,
			HideLabels: opts.hideLabels,
			Smooth:     opts.smooth,
			Detailed:   opts.detailed,
		})
		if err != nil {
			return err
		}

		path := outputPath(input, opts.output, format, len(opts.formats) > 1)
		if err := os.WriteFile(path, artifact, 0644); err != nil {
			return fmt.Errorf("write output %s: %w", path, err)
		}
		written = append(written, path)
	}
	prog.done("Render complete")

	if st.Fallback {
		printWarning("Layout fell back to a single column")
	}
	printSuccess("Render complete")
	for _, path := range written {
		printFile(path)
	}
	printStats(st.Stats.TotalNodes, st.Stats.TotalEdges, st.Stats.Pipelines)
	printNewline()
	printNextStep("Explore", appName+" explore "+input)

	return nil
}

// parseFormats parses a comma-separated format string into a slice.
// If empty, defaults to ["svg"].
func parseFormats(s string) []string {
	if s == "" {
		return []string{render.FormatSVG}
	}
	return strings.Split(s, ",")
}

// outputPath picks the artifact path for one format. An explicit output is
// used as-is for a single format and as a base path for several.
func outputPath(input, output, format string, multi bool) string {
	if output != "" {
		if multi {
			return output + "." + format
		}
		return output
	}
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + "." + format
}
