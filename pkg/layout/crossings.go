package layout

import "slices"

// countCrossings returns the total number of edge crossings for the current
// rank orderings, summed over each pair of consecutive ranks. Ordering uses
// it to compare candidate orderings; the reported value for the final
// ordering is also what tests assert on.
func countCrossings(g *graph) int {
	total := 0
	for r := 0; r+1 < len(g.ranks); r++ {
		total += countLayerCrossings(g, g.ranks[r], g.ranks[r+1])
	}
	return total
}

// countLayerCrossings counts edge crossings between two adjacent ranks using
// a Fenwick tree (binary indexed tree) for O(E log V) performance where E is
// the number of edges between the ranks and V is the number of nodes in the
// lower rank.
//
// Two edges (u1,v1) and (u2,v2) cross if and only if:
//
//	pos(u1) < pos(u2) AND pos(v1) > pos(v2)
//
// This is equivalent to counting inversions in the sequence of target
// positions when edges are sorted by source position.
func countLayerCrossings(g *graph, upper, lower []string) int {
	if len(upper) == 0 || len(lower) == 0 {
		return 0
	}

	lowerPos := posMap(lower)

	type edge struct{ upper, lower int }
	edges := make([]edge, 0, len(upper)*2)
	for i, id := range upper {
		for _, child := range g.outgoing[id] {
			if pos, ok := lowerPos[child]; ok {
				edges = append(edges, edge{i, pos})
			}
		}
	}
	if len(edges) < 2 {
		return 0
	}

	// Sort edges by source position, then by target position
	slices.SortFunc(edges, func(a, b edge) int {
		if a.upper != b.upper {
			return a.upper - b.upper
		}
		return a.lower - b.lower
	})

	// Count inversions using Fenwick tree
	fenwick := make([]int, len(lower)+1)
	crossings, total := 0, 0
	for _, e := range edges {
		// Query: count edges seen so far with target <= e.lower
		lessOrEqual := 0
		for q := e.lower + 1; q > 0; q -= q & (-q) {
			lessOrEqual += fenwick[q]
		}
		// Crossings = edges seen so far with target > e.lower
		crossings += total - lessOrEqual

		// Update: increment count at target position
		total++
		for idx := e.lower + 1; idx < len(fenwick); idx += idx & (-idx) {
			fenwick[idx]++
		}
	}
	return crossings
}

// countPairCrossings counts the crossings produced by two nodes (left and
// right, in that order) against one adjacent rank. If useParents is true the
// rank above is consulted, otherwise the rank below. The transpose pass
// compares this value before and after swapping the pair.
func countPairCrossings(g *graph, left, right string, adjPos map[string]int, useParents bool) int {
	var lnbr, rnbr []string
	if useParents {
		lnbr = g.incoming[left]
		rnbr = g.incoming[right]
	} else {
		lnbr = g.outgoing[left]
		rnbr = g.outgoing[right]
	}

	crossings := 0
	for _, ln := range lnbr {
		lp, ok := adjPos[ln]
		if !ok {
			continue
		}
		for _, rn := range rnbr {
			// If left's neighbor is to the right of right's neighbor, they cross
			if rp, ok := adjPos[rn]; ok && lp > rp {
				crossings++
			}
		}
	}
	return crossings
}

// posMap maps each id to its index in the given order.
func posMap(order []string) map[string]int {
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	return pos
}
