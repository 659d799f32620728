package layout

import (
	"reflect"
	"testing"

	"github.com/flowscope/flowscope/pkg/flow"
)

// testGraph builds a working graph directly, bypassing flow, so the phases
// can be exercised in isolation.
func testGraph(t *testing.T, ids []string, edges [][2]string) *graph {
	t.Helper()
	g := &graph{
		nodes:    make(map[string]*node),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
		chains:   make(map[flow.Edge][]string),
	}
	for i, id := range ids {
		g.addNode(&node{id: id, seq: i, width: 100})
	}
	for _, e := range edges {
		g.addEdge(e[0], e[1])
	}
	return g
}

func TestAssignRanks_Chain(t *testing.T) {
	g := testGraph(t, []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}})

	if err := assignRanks(g); err != nil {
		t.Fatalf("assignRanks() error = %v", err)
	}

	want := map[string]int{"a": 0, "b": 1, "c": 2}
	for id, rank := range want {
		if got := g.nodes[id].rank; got != rank {
			t.Errorf("rank[%s] = %d, want %d", id, got, rank)
		}
	}
}

func TestAssignRanks_LongestPath(t *testing.T) {
	// a -> b -> c plus shortcut a -> c; c must sit below b, not beside it.
	g := testGraph(t, []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}, {"a", "c"}})

	if err := assignRanks(g); err != nil {
		t.Fatalf("assignRanks() error = %v", err)
	}

	if got := g.nodes["c"].rank; got != 2 {
		t.Errorf("rank[c] = %d, want 2", got)
	}
}

func TestAssignRanks_Cycle(t *testing.T) {
	g := testGraph(t, []string{"a", "b"}, [][2]string{{"a", "b"}, {"b", "a"}})

	if err := assignRanks(g); err == nil {
		t.Fatal("assignRanks() = nil error, want cycle error")
	}
}

func TestSubdivide_BreaksLongEdge(t *testing.T) {
	g := testGraph(t, []string{"a", "b", "c", "d"},
		[][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}, {"a", "d"}})
	if err := assignRanks(g); err != nil {
		t.Fatalf("assignRanks() error = %v", err)
	}

	subdivide(g, DefaultParams())

	chain := g.chains[flow.Edge{Source: "a", Target: "d"}]
	if len(chain) != 2 {
		t.Fatalf("chain for a->d has %d dummies, want 2", len(chain))
	}
	for i, id := range chain {
		n, ok := g.nodes[id]
		if !ok {
			t.Fatalf("dummy %q missing from graph", id)
		}
		if !n.dummy {
			t.Errorf("node %q not flagged as dummy", id)
		}
		if wantRank := i + 1; n.rank != wantRank {
			t.Errorf("rank[%s] = %d, want %d", id, n.rank, wantRank)
		}
	}

	// Every remaining arc must connect consecutive ranks.
	for src, dsts := range g.outgoing {
		for _, dst := range dsts {
			if g.nodes[dst].rank != g.nodes[src].rank+1 {
				t.Errorf("edge %s -> %s spans ranks %d -> %d", src, dst, g.nodes[src].rank, g.nodes[dst].rank)
			}
		}
	}
}

func TestSubdivide_IDCollision(t *testing.T) {
	// A real node already owns the first id the generator would pick.
	g := testGraph(t, []string{"a", "a_dummy_1", "c", "d"},
		[][2]string{{"a", "a_dummy_1"}, {"a_dummy_1", "c"}, {"c", "d"}, {"a", "d"}})
	if err := assignRanks(g); err != nil {
		t.Fatalf("assignRanks() error = %v", err)
	}

	subdivide(g, DefaultParams())

	chain := g.chains[flow.Edge{Source: "a", Target: "d"}]
	if len(chain) != 2 {
		t.Fatalf("chain for a->d has %d dummies, want 2", len(chain))
	}
	if chain[0] != "a_dummy_1__1" {
		t.Errorf("first dummy = %q, want a_dummy_1__1", chain[0])
	}
}

func TestCountLayerCrossings(t *testing.T) {
	tests := []struct {
		name  string
		edges [][2]string
		upper []string
		lower []string
		want  int
	}{
		{
			name:  "Parallel",
			edges: [][2]string{{"u1", "v1"}, {"u2", "v2"}},
			upper: []string{"u1", "u2"},
			lower: []string{"v1", "v2"},
			want:  0,
		},
		{
			name:  "Crossed",
			edges: [][2]string{{"u1", "v2"}, {"u2", "v1"}},
			upper: []string{"u1", "u2"},
			lower: []string{"v1", "v2"},
			want:  1,
		},
		{
			name:  "CompleteBipartite",
			edges: [][2]string{{"u1", "v1"}, {"u1", "v2"}, {"u2", "v1"}, {"u2", "v2"}},
			upper: []string{"u1", "u2"},
			lower: []string{"v1", "v2"},
			want:  1,
		},
		{
			name:  "EmptyLower",
			edges: nil,
			upper: []string{"u1"},
			lower: nil,
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := testGraph(t, []string{"u1", "u2", "v1", "v2"}, tt.edges)
			if got := countLayerCrossings(g, tt.upper, tt.lower); got != tt.want {
				t.Errorf("countLayerCrossings() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCountCrossings_SumsRankPairs(t *testing.T) {
	g := testGraph(t, []string{"a1", "a2", "b1", "b2", "c1", "c2"},
		[][2]string{{"a1", "b2"}, {"a2", "b1"}, {"b1", "c2"}, {"b2", "c1"}})
	g.ranks = [][]string{{"a1", "a2"}, {"b1", "b2"}, {"c1", "c2"}}

	if got := countCrossings(g); got != 2 {
		t.Errorf("countCrossings() = %d, want 2", got)
	}
}

func TestOrderRanks_RemovesCrossings(t *testing.T) {
	g := testGraph(t, []string{"u1", "u2", "v1", "v2"},
		[][2]string{{"u1", "v2"}, {"u2", "v1"}})
	if err := assignRanks(g); err != nil {
		t.Fatalf("assignRanks() error = %v", err)
	}
	buildRanks(g, nil)
	if before := countCrossings(g); before != 1 {
		t.Fatalf("seed ordering has %d crossings, want 1", before)
	}

	orderRanks(g, DefaultParams())

	if after := countCrossings(g); after != 0 {
		t.Errorf("countCrossings() after ordering = %d, want 0", after)
	}
}

func TestOrderRanks_Deterministic(t *testing.T) {
	build := func() *graph {
		g := testGraph(t, []string{"s1", "s2", "s3", "m1", "m2", "m3", "m4", "t1", "t2"},
			[][2]string{
				{"s1", "m2"}, {"s1", "m4"}, {"s2", "m1"}, {"s2", "m3"},
				{"s3", "m1"}, {"s3", "m4"}, {"m1", "t2"}, {"m2", "t1"},
				{"m3", "t2"}, {"m4", "t1"},
			})
		if err := assignRanks(g); err != nil {
			t.Fatalf("assignRanks() error = %v", err)
		}
		buildRanks(g, nil)
		orderRanks(g, DefaultParams())
		return g
	}

	first, second := build(), build()
	if !reflect.DeepEqual(first.ranks, second.ranks) {
		t.Errorf("orderRanks() not deterministic:\n first = %v\nsecond = %v", first.ranks, second.ranks)
	}
}

func TestBuildRanks_PrevOrderSeedsTies(t *testing.T) {
	g := testGraph(t, []string{"x", "y"}, nil)
	if err := assignRanks(g); err != nil {
		t.Fatalf("assignRanks() error = %v", err)
	}

	buildRanks(g, nil)
	if !reflect.DeepEqual(g.ranks[0], []string{"x", "y"}) {
		t.Errorf("unseeded rank 0 = %v, want [x y]", g.ranks[0])
	}

	buildRanks(g, map[string]int{"y": 0, "x": 1})
	if !reflect.DeepEqual(g.ranks[0], []string{"y", "x"}) {
		t.Errorf("seeded rank 0 = %v, want [y x]", g.ranks[0])
	}
}

func TestAssignCoords_SeparationHeld(t *testing.T) {
	// One root fanning out to five children pulls every child toward the
	// same x; separation must keep them apart anyway.
	ids := []string{"root", "c1", "c2", "c3", "c4", "c5"}
	edges := [][2]string{{"root", "c1"}, {"root", "c2"}, {"root", "c3"}, {"root", "c4"}, {"root", "c5"}}
	g := testGraph(t, ids, edges)
	if err := assignRanks(g); err != nil {
		t.Fatalf("assignRanks() error = %v", err)
	}
	params := DefaultParams()
	subdivide(g, params)
	buildRanks(g, nil)
	orderRanks(g, params)

	assignCoords(g, params)

	const eps = 1e-9
	for _, rank := range g.ranks {
		for i := 0; i+1 < len(rank); i++ {
			left, right := g.nodes[rank[i]], g.nodes[rank[i+1]]
			gap := right.x - left.x
			if min := g.gap(rank[i], rank[i+1], params); gap < min-eps {
				t.Errorf("gap %s..%s = %v, want >= %v", rank[i], rank[i+1], gap, min)
			}
		}
	}
}

func TestAssignCoords_YFromRank(t *testing.T) {
	g := testGraph(t, []string{"a", "b"}, [][2]string{{"a", "b"}})
	if err := assignRanks(g); err != nil {
		t.Fatalf("assignRanks() error = %v", err)
	}
	params := DefaultParams()
	buildRanks(g, nil)
	orderRanks(g, params)

	assignCoords(g, params)

	wantA := params.Margin + params.NodeHeight/2
	wantB := wantA + params.RankSep
	if g.nodes["a"].y != wantA {
		t.Errorf("y[a] = %v, want %v", g.nodes["a"].y, wantA)
	}
	if g.nodes["b"].y != wantB {
		t.Errorf("y[b] = %v, want %v", g.nodes["b"].y, wantB)
	}
}
