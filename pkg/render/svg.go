package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/flowscope/flowscope/pkg/flow"
	"github.com/flowscope/flowscope/pkg/view"
)

const svgCSS = `
    .node { transition: stroke-width 0.15s ease; }
    .node:hover { stroke-width: 3; }
    .node.highlight { stroke-width: 3; }
    .label { font-family: ui-sans-serif, system-ui, sans-serif; pointer-events: none; }`

const (
	labelFontSize  = 12.0
	labelCharRatio = 0.55
	labelFillRatio = 0.85
	hexInsetMax    = 12.0
)

// SVGOption configures the SVG sink.
type SVGOption func(*svgRenderer)

type svgRenderer struct {
	theme      Theme
	hideLabels bool
	smooth     bool
}

// WithTheme selects the color palette. Default is ThemeLight.
func WithTheme(t Theme) SVGOption { return func(r *svgRenderer) { r.theme = t } }

// WithSmoothEdges renders waypoint bends as quadratic curves instead of
// corners.
func WithSmoothEdges() SVGOption { return func(r *svgRenderer) { r.smooth = true } }

// WithoutLabels omits node labels, leaving shapes and edges only.
func WithoutLabels() SVGOption { return func(r *svgRenderer) { r.hideLabels = true } }

// SVG renders a state as a standalone SVG document. Nodes are drawn with
// kind-specific shapes (rectangle task, ellipse dataset, hexagon
// parameters, rounded rectangle collapsed pipeline); focus highlights and
// fades carry over from the state. The render contract is validated first.
func SVG(st *view.State, opts ...SVGOption) ([]byte, error) {
	if err := Check(st); err != nil {
		return nil, err
	}

	r := svgRenderer{theme: ThemeLight}
	for _, opt := range opts {
		opt(&r)
	}

	flags := make(map[string]view.StateNode, len(st.Nodes))
	for _, n := range st.Nodes {
		flags[n.ID] = n
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.1f %.1f" width="%.0f" height="%.0f">`+"\n",
		st.Bounds.Width, st.Bounds.Height, st.Bounds.Width, st.Bounds.Height)
	fmt.Fprintf(&buf, "  <style>%s\n  </style>\n", svgCSS)
	renderDefs(&buf, r.theme)
	fmt.Fprintf(&buf, `  <rect width="100%%" height="100%%" fill="%s"/>`+"\n", r.theme.Background)

	for _, e := range st.Edges {
		renderEdge(&buf, &r, e, flags)
	}
	for _, n := range st.Nodes {
		renderNode(&buf, &r, n)
	}
	if !r.hideLabels {
		for _, n := range st.Nodes {
			renderLabel(&buf, &r, n)
		}
	}
	if st.Fallback {
		fmt.Fprintf(&buf, `  <text x="8" y="14" font-size="11" fill="%s">layout fallback: single column</text>`+"\n",
			r.theme.Highlight)
	}

	buf.WriteString("</svg>\n")
	return buf.Bytes(), nil
}

func renderDefs(buf *bytes.Buffer, t Theme) {
	buf.WriteString("  <defs>\n")
	fmt.Fprintf(buf, `    <marker id="arrow" viewBox="0 0 10 10" refX="9" refY="5" markerWidth="7" markerHeight="7" orient="auto-start-reverse"><path d="M 0 0 L 10 5 L 0 10 z" fill="%s"/></marker>`+"\n", t.EdgeStroke)
	fmt.Fprintf(buf, `    <marker id="arrow-highlight" viewBox="0 0 10 10" refX="9" refY="5" markerWidth="7" markerHeight="7" orient="auto-start-reverse"><path d="M 0 0 L 10 5 L 0 10 z" fill="%s"/></marker>`+"\n", t.Highlight)
	buf.WriteString("  </defs>\n")
}

func renderEdge(buf *bytes.Buffer, r *svgRenderer, e view.StateEdge, nodes map[string]view.StateNode) {
	stroke, marker := r.theme.EdgeStroke, "arrow"
	if nodes[e.Source].Highlighted && nodes[e.Target].Highlighted {
		stroke, marker = r.theme.Highlight, "arrow-highlight"
	}
	opacity := ""
	if nodes[e.Source].Faded || nodes[e.Target].Faded {
		opacity = fmt.Sprintf(` opacity="%.2f"`, r.theme.FadeOpacity)
	}
	fmt.Fprintf(buf, `  <path class="edge" d="%s" fill="none" stroke="%s" stroke-width="1.5" marker-end="url(#%s)"%s/>`+"\n",
		edgePath(e, r.smooth), stroke, marker, opacity)
}

func renderNode(buf *bytes.Buffer, r *svgRenderer, n view.StateNode) {
	class := "node"
	if n.Highlighted {
		class += " highlight"
	}
	stroke := r.theme.Stroke
	if n.Highlighted {
		stroke = r.theme.Highlight
	}
	opacity := ""
	if n.Faded {
		opacity = fmt.Sprintf(` opacity="%.2f"`, r.theme.FadeOpacity)
	}

	fmt.Fprintf(buf, `  <g id="node-%s">`+"\n", escapeXML(n.ID))
	common := fmt.Sprintf(`class="%s" fill="%s" stroke="%s" stroke-width="1.5"%s`, class, r.fill(n.Kind), stroke, opacity)
	left, top := n.X-n.Width/2, n.Y-n.Height/2
	switch n.Kind {
	case flow.KindDataset:
		fmt.Fprintf(buf, `    <ellipse %s cx="%.1f" cy="%.1f" rx="%.1f" ry="%.1f"/>`+"\n",
			common, n.X, n.Y, n.Width/2, n.Height/2)
	case flow.KindParameters:
		fmt.Fprintf(buf, `    <polygon %s points="%s"/>`+"\n", common, hexagonPoints(n))
	case flow.KindPipeline:
		fmt.Fprintf(buf, `    <rect %s x="%.1f" y="%.1f" width="%.1f" height="%.1f" rx="10"/>`+"\n",
			common, left, top, n.Width, n.Height)
	default:
		fmt.Fprintf(buf, `    <rect %s x="%.1f" y="%.1f" width="%.1f" height="%.1f" rx="4"/>`+"\n",
			common, left, top, n.Width, n.Height)
	}
	fmt.Fprintf(buf, "    <title>%s</title>\n", escapeXML(nodeTooltip(n)))
	buf.WriteString("  </g>\n")
}

func renderLabel(buf *bytes.Buffer, r *svgRenderer, n view.StateNode) {
	opacity := ""
	if n.Faded {
		opacity = fmt.Sprintf(` opacity="%.2f"`, r.theme.FadeOpacity)
	}
	weight := ""
	if n.Highlighted {
		weight = ` font-weight="bold"`
	}
	fmt.Fprintf(buf, `  <text class="label" x="%.1f" y="%.1f" text-anchor="middle" dominant-baseline="central" font-size="%.0f" fill="%s"%s%s>%s</text>`+"\n",
		n.X, n.Y, labelFontSize, r.theme.LabelColor, weight, opacity, escapeXML(fitLabel(n.Name, n.Width)))
}

func (r *svgRenderer) fill(kind flow.Kind) string {
	switch kind {
	case flow.KindDataset:
		return r.theme.DataFill
	case flow.KindParameters:
		return r.theme.ParamsFill
	case flow.KindPipeline:
		return r.theme.PipeFill
	}
	return r.theme.TaskFill
}

func hexagonPoints(n view.StateNode) string {
	left, right := n.X-n.Width/2, n.X+n.Width/2
	top, bottom := n.Y-n.Height/2, n.Y+n.Height/2
	inset := min(n.Height/2, hexInsetMax)
	pts := [][2]float64{
		{left + inset, top},
		{right - inset, top},
		{right, n.Y},
		{right - inset, bottom},
		{left + inset, bottom},
		{left, n.Y},
	}
	parts := make([]string, len(pts))
	for i, p := range pts {
		parts[i] = fmt.Sprintf("%.1f,%.1f", p[0], p[1])
	}
	return strings.Join(parts, " ")
}

func nodeTooltip(n view.StateNode) string {
	s := fmt.Sprintf("%s (%s)", n.Name, n.Kind)
	if len(n.Tags) > 0 {
		s += " tags: " + strings.Join(n.Tags, ", ")
	}
	return s
}

// fitLabel truncates a label that cannot fit its node box at the fixed
// label font size.
func fitLabel(label string, width float64) string {
	maxChars := int(width * labelFillRatio / (labelFontSize * labelCharRatio))
	if maxChars < 3 {
		maxChars = 3
	}
	if len(label) <= maxChars {
		return label
	}
	return label[:maxChars-2] + ".."
}
