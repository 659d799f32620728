// Package render turns a session state into export artifacts.
//
// Three formats ship: a hand-written SVG of the drawing (the primary
// export), Graphviz DOT for debugging and external tooling, and the raw
// state as indented JSON for data interchange. The SVG sink validates the
// render contract before emitting: every node carries geometry and every
// edge is a polyline whose ends snap to its endpoints' anchors.
//
// An [Exporter] wraps the sinks with caching keyed by state content and
// render options.
package render

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math"
	"strings"

	"github.com/flowscope/flowscope/pkg/errors"
	"github.com/flowscope/flowscope/pkg/view"
)

// anchorTolerance is the allowed distance between an edge end and its
// node anchor before the contract is considered broken.
const anchorTolerance = 1e-6

// Check validates the render contract on a state: nodes have non-degenerate
// geometry, edges reference present nodes, and every polyline has at least
// two points with the first on the source's bottom anchor and the last on
// the target's top anchor.
func Check(st *view.State) error {
	if st == nil {
		return errors.New(errors.ErrCodeInternal, "render of nil state")
	}

	nodes := make(map[string]view.StateNode, len(st.Nodes))
	for _, n := range st.Nodes {
		if n.Width <= 0 || n.Height <= 0 {
			return errors.New(errors.ErrCodeInternal, "node %q has degenerate geometry %gx%g", n.ID, n.Width, n.Height)
		}
		nodes[n.ID] = n
	}

	for _, e := range st.Edges {
		src, ok := nodes[e.Source]
		if !ok {
			return errors.New(errors.ErrCodeInternal, "edge %s -> %s references unplaced source", e.Source, e.Target)
		}
		dst, ok := nodes[e.Target]
		if !ok {
			return errors.New(errors.ErrCodeInternal, "edge %s -> %s references unplaced target", e.Source, e.Target)
		}
		if len(e.Points) < 2 {
			return errors.New(errors.ErrCodeInternal, "edge %s -> %s has %d points", e.Source, e.Target, len(e.Points))
		}
		first, last := e.Points[0], e.Points[len(e.Points)-1]
		if math.Abs(first.X-src.X) > anchorTolerance || math.Abs(first.Y-(src.Y+src.Height/2)) > anchorTolerance {
			return errors.New(errors.ErrCodeInternal, "edge %s -> %s does not start on the source anchor", e.Source, e.Target)
		}
		if math.Abs(last.X-dst.X) > anchorTolerance || math.Abs(last.Y-(dst.Y-dst.Height/2)) > anchorTolerance {
			return errors.New(errors.ErrCodeInternal, "edge %s -> %s does not end on the target anchor", e.Source, e.Target)
		}
	}
	return nil
}

// edgePath builds the SVG path for an edge polyline. With smooth set,
// interior waypoints become quadratic control points so dummy-chain bends
// render as curves instead of corners.
func edgePath(e view.StateEdge, smooth bool) string {
	pts := e.Points
	var b strings.Builder
	fmt.Fprintf(&b, "M %.1f,%.1f", pts[0].X, pts[0].Y)
	if !smooth || len(pts) == 2 {
		for _, p := range pts[1:] {
			fmt.Fprintf(&b, " L %.1f,%.1f", p.X, p.Y)
		}
		return b.String()
	}

	for i := 1; i < len(pts)-1; i++ {
		midX := (pts[i].X + pts[i+1].X) / 2
		midY := (pts[i].Y + pts[i+1].Y) / 2
		if i == len(pts)-2 {
			midX, midY = pts[i+1].X, pts[i+1].Y
		}
		fmt.Fprintf(&b, " Q %.1f,%.1f %.1f,%.1f", pts[i].X, pts[i].Y, midX, midY)
	}
	return b.String()
}

// escapeXML escapes text for embedding in SVG and DOT labels.
func escapeXML(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
