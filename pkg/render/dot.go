package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/flowscope/flowscope/pkg/flow"
	"github.com/flowscope/flowscope/pkg/view"
)

// DOTOptions configures DOT export.
type DOTOptions struct {
	// Detailed includes rank, order and tags in node labels. When false,
	// only the display name is shown.
	Detailed bool
}

// DOT converts a state to Graphviz DOT. Graphviz does its own placement,
// so this export carries the effective graph rather than the computed
// geometry; it exists for debugging and for piping into external tooling.
// The resulting document can be rasterized in-process with [DOTToSVG].
func DOT(st *view.State, opts DOTOptions) string {
	var buf bytes.Buffer
	buf.WriteString("digraph flowscope {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [style=filled, fillcolor=white, fontsize=12];\n")
	buf.WriteString("  ranksep=0.6;\n")
	buf.WriteString("  nodesep=0.4;\n")
	buf.WriteString("\n")

	for _, n := range st.Nodes {
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(dotAttrs(n, opts.Detailed), ", "))
	}

	buf.WriteString("\n")
	for _, e := range st.Edges {
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.Source, e.Target)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func dotLabel(n view.StateNode, detailed bool) string {
	if !detailed {
		return n.Name
	}
	parts := []string{fmt.Sprintf("rank: %d", n.Rank), fmt.Sprintf("order: %d", n.Order)}
	if len(n.Tags) > 0 {
		parts = append(parts, "tags: "+strings.Join(n.Tags, ","))
	}
	return n.Name + "\n" + strings.Join(parts, "\n")
}

func dotAttrs(n view.StateNode, detailed bool) []string {
	attrs := []string{fmt.Sprintf("label=%q", dotLabel(n, detailed))}
	switch n.Kind {
	case flow.KindDataset:
		attrs = append(attrs, "shape=ellipse")
	case flow.KindParameters:
		attrs = append(attrs, "shape=hexagon")
	case flow.KindPipeline:
		attrs = append(attrs, "shape=box", "style=\"rounded,filled,bold\"")
	default:
		attrs = append(attrs, "shape=box")
	}
	if n.Highlighted {
		attrs = append(attrs, "penwidth=2.5", "color=darkorange")
	}
	if n.Faded {
		attrs = append(attrs, "fontcolor=grey", "color=grey")
	}
	return attrs
}

// DOTToSVG rasterizes a DOT document to SVG using the embedded Graphviz.
func DOTToSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites Graphviz's svg element so the document is
// origin-anchored with explicit pixel dimensions.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
