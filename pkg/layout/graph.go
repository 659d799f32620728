package layout

import (
	"fmt"

	"github.com/flowscope/flowscope/pkg/flow"
)

// node is the engine's working copy of one drawable box. Dummy nodes are
// synthetic waypoints inserted by subdivision to break edges that span more
// than one rank; they carry no label and reserve only DummyWidth pixels.
type node struct {
	id    string
	seq   int // snapshot position, used for deterministic tie-breaks
	rank  int
	order int
	dummy bool
	width float64
	x, y  float64
}

// graph is the mutable structure threaded through the layout phases. It
// starts as a copy of one effective graph and is destructively rewritten:
// subdivision replaces long edges with dummy chains, ordering fills ranks,
// relaxation assigns coordinates.
//
// graph is not safe for concurrent use; each Compute call builds its own.
type graph struct {
	nodes    map[string]*node
	seq      []string            // insertion order: view order first, dummies appended
	outgoing map[string][]string // node id -> successor ids
	incoming map[string][]string // node id -> predecessor ids
	chains   map[flow.Edge][]string
	ranks    [][]string // node ids per rank, left to right
}

// newGraph copies the view into a working graph. It fails only when the
// view is internally inconsistent, which callers treat as an engine bug
// and answer with the single-column fallback.
func newGraph(view *flow.View, params Params) (*graph, error) {
	g := &graph{
		nodes:    make(map[string]*node, len(view.Nodes)),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
		chains:   make(map[flow.Edge][]string),
	}
	for i, n := range view.Nodes {
		if _, ok := g.nodes[n.ID]; ok {
			return nil, fmt.Errorf("duplicate node %q in view", n.ID)
		}
		g.addNode(&node{id: n.ID, seq: i, width: params.nodeWidth(n)})
	}
	for _, e := range view.Edges {
		if _, ok := g.nodes[e.Source]; !ok {
			return nil, fmt.Errorf("edge %s -> %s references unknown source", e.Source, e.Target)
		}
		if _, ok := g.nodes[e.Target]; !ok {
			return nil, fmt.Errorf("edge %s -> %s references unknown target", e.Source, e.Target)
		}
		if e.Source == e.Target {
			return nil, fmt.Errorf("self edge on %s", e.Source)
		}
		g.addEdge(e.Source, e.Target)
	}
	return g, nil
}

func (g *graph) addNode(n *node) {
	g.nodes[n.id] = n
	g.seq = append(g.seq, n.id)
}

func (g *graph) addEdge(src, dst string) {
	g.outgoing[src] = append(g.outgoing[src], dst)
	g.incoming[dst] = append(g.incoming[dst], src)
}

// removeEdge deletes one src -> dst arc from both adjacency maps.
func (g *graph) removeEdge(src, dst string) {
	g.outgoing[src] = deleteFirst(g.outgoing[src], dst)
	g.incoming[dst] = deleteFirst(g.incoming[dst], src)
}

func deleteFirst(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
