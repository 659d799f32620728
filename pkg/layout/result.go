package layout

import (
	"slices"

	"github.com/flowscope/flowscope/pkg/flow"
)

// Point is a coordinate in drawing space. The origin is the top-left
// corner; y grows downward.
type Point struct {
	X float64 `json:"x" bson:"x"`
	Y float64 `json:"y" bson:"y"`
}

// NodeGeometry is the computed placement of one visible node. X and Y are
// the node's center; Rank is its layer and Order its index within the
// layer.
type NodeGeometry struct {
	ID     string  `json:"id" bson:"id"`
	Rank   int     `json:"rank" bson:"rank"`
	Order  int     `json:"order" bson:"order"`
	X      float64 `json:"x" bson:"x"`
	Y      float64 `json:"y" bson:"y"`
	Width  float64 `json:"width" bson:"width"`
	Height float64 `json:"height" bson:"height"`
}

// Left returns the x coordinate of the node's left border.
func (n NodeGeometry) Left() float64 { return n.X - n.Width/2 }

// Right returns the x coordinate of the node's right border.
func (n NodeGeometry) Right() float64 { return n.X + n.Width/2 }

// Top returns the y coordinate of the node's upper border.
func (n NodeGeometry) Top() float64 { return n.Y - n.Height/2 }

// Bottom returns the y coordinate of the node's lower border.
func (n NodeGeometry) Bottom() float64 { return n.Y + n.Height/2 }

// EdgeGeometry is the routed polyline of one effective edge. Points always
// holds at least two entries: the first snaps to the source node's bottom
// anchor, the last to the target node's top anchor, and any interior points
// are the waypoints the edge was threaded through.
type EdgeGeometry struct {
	Source string  `json:"source" bson:"source"`
	Target string  `json:"target" bson:"target"`
	Points []Point `json:"points" bson:"points"`
}

// Bounds is the bounding box of a drawing.
type Bounds struct {
	Width  float64 `json:"width" bson:"width"`
	Height float64 `json:"height" bson:"height"`
}

// Result is a complete layered drawing of one effective graph.
//
// Nodes is keyed by node id and covers exactly the visible nodes of the
// input view; Edges is aligned with the view's effective edge order. A
// Result is immutable once computed and safe to share between readers.
type Result struct {
	Nodes  map[string]NodeGeometry `json:"nodes" bson:"nodes"`
	Edges  []EdgeGeometry          `json:"edges" bson:"edges"`
	Bounds Bounds                  `json:"bounds" bson:"bounds"`
}

// Ranks returns node ids grouped by rank in left-to-right order. Ranks are
// contiguous from 0; an empty result returns nil.
func (r *Result) Ranks() [][]string {
	maxRank := -1
	for _, n := range r.Nodes {
		if n.Rank > maxRank {
			maxRank = n.Rank
		}
	}
	if maxRank < 0 {
		return nil
	}
	ranks := make([][]string, maxRank+1)
	for _, n := range r.Nodes {
		ranks[n.Rank] = append(ranks[n.Rank], n.ID)
	}
	for _, ids := range ranks {
		slices.SortFunc(ids, func(a, b string) int {
			return r.Nodes[a].Order - r.Nodes[b].Order
		})
	}
	return ranks
}

// computeBounds derives the drawing's bounding box from node extents and
// edge points, with a margin on every side.
func computeBounds(nodes map[string]NodeGeometry, edges []EdgeGeometry, margin float64) Bounds {
	var maxX, maxY float64
	for _, n := range nodes {
		if n.Right() > maxX {
			maxX = n.Right()
		}
		if n.Bottom() > maxY {
			maxY = n.Bottom()
		}
	}
	for _, e := range edges {
		for _, p := range e.Points {
			if p.X > maxX {
				maxX = p.X
			}
			if p.Y > maxY {
				maxY = p.Y
			}
		}
	}
	return Bounds{Width: maxX + margin, Height: maxY + margin}
}

// shift translates all geometry so no coordinate is below the margin.
// Relaxation works in an unanchored coordinate space; shifting afterwards
// keeps the drawing in the positive quadrant. Edge waypoints count too,
// since a dummy chain can swing left of every node box.
func shift(nodes map[string]NodeGeometry, edges []EdgeGeometry, margin float64) {
	minX := 0.0
	first := true
	for _, n := range nodes {
		if first || n.Left() < minX {
			minX = n.Left()
			first = false
		}
	}
	for _, e := range edges {
		for _, p := range e.Points {
			if first || p.X < minX {
				minX = p.X
				first = false
			}
		}
	}
	dx := margin - minX
	for id, n := range nodes {
		n.X += dx
		nodes[id] = n
	}
	for i := range edges {
		for j := range edges[i].Points {
			edges[i].Points[j].X += dx
		}
	}
}

// SingleColumn produces the degenerate fallback drawing: every visible node
// in one vertical column in snapshot order, every effective edge a straight
// segment between its endpoints' anchors. It never fails and is used when
// Compute reports an internal inconsistency.
func SingleColumn(view *flow.View, params Params) *Result {
	if err := params.ValidateAndSetDefaults(); err != nil {
		params = DefaultParams()
	}

	nodes := make(map[string]NodeGeometry, len(view.Nodes))
	var maxWidth float64
	for _, n := range view.Nodes {
		if w := params.nodeWidth(n); w > maxWidth {
			maxWidth = w
		}
	}
	x := params.Margin + maxWidth/2
	for i, n := range view.Nodes {
		nodes[n.ID] = NodeGeometry{
			ID:     n.ID,
			Rank:   i,
			Order:  0,
			X:      x,
			Y:      params.Margin + float64(i)*params.RankSep + params.NodeHeight/2,
			Width:  params.nodeWidth(n),
			Height: params.NodeHeight,
		}
	}

	edges := make([]EdgeGeometry, 0, len(view.Edges))
	for _, e := range view.Edges {
		src, dst := nodes[e.Source], nodes[e.Target]
		edges = append(edges, EdgeGeometry{
			Source: e.Source,
			Target: e.Target,
			Points: []Point{
				{X: src.X, Y: src.Bottom()},
				{X: dst.X, Y: dst.Top()},
			},
		})
	}

	return &Result{Nodes: nodes, Edges: edges, Bounds: computeBounds(nodes, edges, params.Margin)}
}
