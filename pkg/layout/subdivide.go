package layout

import (
	"fmt"

	"github.com/flowscope/flowscope/pkg/flow"
)

// subdivide breaks edges that span multiple ranks into sequences of
// single-rank edges connected by synthetic dummy nodes.
//
// After subdivision every arc in the working graph connects consecutive
// ranks (src.rank + 1 == dst.rank), which is what the crossing counters and
// the barycenter sweeps assume. An edge spanning three ranks becomes:
//
//	Before: clean (rank 0) -> report (rank 3)
//	After:  clean -> clean_dummy_1 -> clean_dummy_2 -> report
//
// The interior dummy ids of every broken edge are recorded in g.chains so
// routing can later thread the original edge through its waypoints.
//
// Dummy ids take the form "source_dummy_rank"; on collision with an
// existing id a numeric suffix is appended ("source_dummy_1__2"). All
// generated ids are tracked to guarantee uniqueness.
func subdivide(g *graph, params Params) {
	gen := newIDGen(g.seq)

	type span struct {
		src, dst string
	}
	var long []span
	for _, id := range g.seq {
		src := g.nodes[id]
		for _, dstID := range g.outgoing[id] {
			if g.nodes[dstID].rank > src.rank+1 {
				long = append(long, span{id, dstID})
			}
		}
	}

	for _, e := range long {
		src, dst := g.nodes[e.src], g.nodes[e.dst]
		g.removeEdge(e.src, e.dst)

		interior := make([]string, 0, dst.rank-src.rank-1)
		prev := e.src
		for rank := src.rank + 1; rank < dst.rank; rank++ {
			id := gen.next(e.src, rank)
			g.addNode(&node{
				id:    id,
				seq:   len(g.seq),
				rank:  rank,
				dummy: true,
				width: params.DummyWidth,
			})
			g.addEdge(prev, id)
			interior = append(interior, id)
			prev = id
		}
		g.addEdge(prev, e.dst)
		g.chains[flow.Edge{Source: e.src, Target: e.dst}] = interior
	}
}

type idGen struct {
	used map[string]struct{}
}

func newIDGen(ids []string) *idGen {
	m := make(map[string]struct{}, len(ids)*2)
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return &idGen{used: m}
}

func (gen *idGen) next(base string, rank int) string {
	prefix := fmt.Sprintf("%s_dummy_%d", base, rank)
	id := prefix
	for i := 1; ; i++ {
		if _, exists := gen.used[id]; !exists {
			gen.used[id] = struct{}{}
			return id
		}
		id = fmt.Sprintf("%s__%d", prefix, i)
	}
}
