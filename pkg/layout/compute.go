package layout

import (
	"github.com/flowscope/flowscope/pkg/errors"
	"github.com/flowscope/flowscope/pkg/flow"
)

// Compute produces a layered drawing of one effective graph.
//
// The phases run in fixed order: rank assignment, edge subdivision,
// crossing reduction, coordinate relaxation, edge routing. Passing the
// previous drawing seeds the ordering phase so nodes that stay in their
// rank keep their relative position across a collapse, expand or filter
// change; pass nil for a fresh drawing.
//
// Compute fails only when the view violates the engine's preconditions,
// for example a cycle that slipped through graph validation. Every error
// carries [errors.ErrCodeLayout]; callers are expected to fall back to
// [SingleColumn] rather than surface the error to users.
func Compute(view *flow.View, prev *Result, params Params) (*Result, error) {
	if view == nil {
		return nil, errors.New(errors.ErrCodeLayout, "layout of nil view")
	}
	if err := params.ValidateAndSetDefaults(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeLayout, err, "layout params rejected")
	}

	g, err := newGraph(view, params)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLayout, err, "view is internally inconsistent")
	}
	if err := assignRanks(g); err != nil {
		return nil, errors.Wrap(errors.ErrCodeLayout, err, "effective graph is not acyclic")
	}
	subdivide(g, params)
	buildRanks(g, prevOrders(prev))
	orderRanks(g, params)
	assignCoords(g, params)

	// Exposed order indices count visible nodes only; dummies stay internal.
	order := make(map[string]int, len(view.Nodes))
	for _, rank := range g.ranks {
		i := 0
		for _, id := range rank {
			if !g.nodes[id].dummy {
				order[id] = i
				i++
			}
		}
	}

	nodes := make(map[string]NodeGeometry, len(view.Nodes))
	for _, vn := range view.Nodes {
		n := g.nodes[vn.ID]
		nodes[vn.ID] = NodeGeometry{
			ID:     vn.ID,
			Rank:   n.rank,
			Order:  order[vn.ID],
			X:      n.x,
			Y:      n.y,
			Width:  n.width,
			Height: params.NodeHeight,
		}
	}
	edges := routeEdges(g, view, params)
	shift(nodes, edges, params.Margin)

	return &Result{Nodes: nodes, Edges: edges, Bounds: computeBounds(nodes, edges, params.Margin)}, nil
}

// prevOrders flattens a previous drawing into the seed consumed by
// buildRanks. Order indices are per rank, so comparing them across ranks
// is arbitrary but stable, which is all the seed needs.
func prevOrders(prev *Result) map[string]int {
	if prev == nil {
		return nil
	}
	orders := make(map[string]int, len(prev.Nodes))
	for id, n := range prev.Nodes {
		orders[id] = n.Order
	}
	return orders
}
