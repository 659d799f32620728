package layout

import "github.com/flowscope/flowscope/pkg/flow"

// routeEdges threads every effective edge through the dummy chain recorded
// for it during subdivision. The polyline starts at the source's bottom
// anchor, visits each waypoint center in rank order and ends at the
// target's top anchor. Single-rank edges get a straight two-point segment.
// Smoothing is a renderer concern; the engine only emits waypoints.
//
// Output order follows the view's edge order so repeated layouts of the
// same view agree point for point.
func routeEdges(g *graph, view *flow.View, params Params) []EdgeGeometry {
	edges := make([]EdgeGeometry, 0, len(view.Edges))
	for _, e := range view.Edges {
		src, dst := g.nodes[e.Source], g.nodes[e.Target]
		chain := g.chains[e]

		points := make([]Point, 0, len(chain)+2)
		points = append(points, Point{X: src.x, Y: src.y + params.NodeHeight/2})
		for _, id := range chain {
			d := g.nodes[id]
			points = append(points, Point{X: d.x, Y: d.y})
		}
		points = append(points, Point{X: dst.x, Y: dst.y - params.NodeHeight/2})

		edges = append(edges, EdgeGeometry{Source: e.Source, Target: e.Target, Points: points})
	}
	return edges
}
