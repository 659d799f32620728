package layout

import "math"

// assignCoords turns ranks and orders into center coordinates.
//
// Y is rigid: rank tops sit at Margin + rank*RankSep and every box is
// NodeHeight tall, so all centers within a rank share one line. Dummy
// waypoints sit on that same line.
//
// X starts from dense left-to-right packing and is then relaxed: each pass
// pulls every node toward the mean x of its neighbors in one adjacent rank,
// alternating between the rank above and the rank below, and re-establishes
// the minimum separation without ever reordering a rank. The loop stops when
// no node moved farther than RelaxTolerance or after RelaxIterations passes.
func assignCoords(g *graph, params Params) {
	for _, id := range g.seq {
		n := g.nodes[id]
		n.y = params.Margin + float64(n.rank)*params.RankSep + params.NodeHeight/2
	}

	for _, rank := range g.ranks {
		x := 0.0
		for _, id := range rank {
			n := g.nodes[id]
			n.x = x + n.width/2
			x += n.width + params.MinSeparation
		}
	}

	for iter := 0; iter < params.RelaxIterations; iter++ {
		moved := 0.0
		if iter%2 == 0 {
			for r := 1; r < len(g.ranks); r++ {
				moved = math.Max(moved, relaxRank(g, g.ranks[r], params, true))
			}
		} else {
			for r := len(g.ranks) - 2; r >= 0; r-- {
				moved = math.Max(moved, relaxRank(g, g.ranks[r], params, false))
			}
		}
		if moved < params.RelaxTolerance {
			break
		}
	}
}

// relaxRank moves one rank toward its neighbors and returns the largest
// absolute movement. Desired positions are the mean of each node's neighbor
// centers (nodes without neighbors stay put). Overlaps are resolved by two
// constraint sweeps, pushing right then pushing left, whose average honors
// every pairwise gap while keeping clusters centered.
func relaxRank(g *graph, rank []string, params Params, useParents bool) float64 {
	if len(rank) == 0 {
		return 0
	}

	desired := make([]float64, len(rank))
	for i, id := range rank {
		var nbr []string
		if useParents {
			nbr = g.incoming[id]
		} else {
			nbr = g.outgoing[id]
		}
		if len(nbr) == 0 {
			desired[i] = g.nodes[id].x
			continue
		}
		sum := 0.0
		for _, a := range nbr {
			sum += g.nodes[a].x
		}
		desired[i] = sum / float64(len(nbr))
	}

	ltr := make([]float64, len(rank))
	for i := range rank {
		ltr[i] = desired[i]
		if i > 0 {
			if min := ltr[i-1] + g.gap(rank[i-1], rank[i], params); ltr[i] < min {
				ltr[i] = min
			}
		}
	}
	rtl := make([]float64, len(rank))
	for i := len(rank) - 1; i >= 0; i-- {
		rtl[i] = desired[i]
		if i+1 < len(rank) {
			if max := rtl[i+1] - g.gap(rank[i], rank[i+1], params); rtl[i] > max {
				rtl[i] = max
			}
		}
	}

	moved := 0.0
	for i, id := range rank {
		n := g.nodes[id]
		x := (ltr[i] + rtl[i]) / 2
		if d := math.Abs(x - n.x); d > moved {
			moved = d
		}
		n.x = x
	}
	return moved
}

// gap is the minimum center-to-center distance between two boxes in the
// same rank.
func (g *graph) gap(left, right string, params Params) float64 {
	return g.nodes[left].width/2 + params.MinSeparation + g.nodes[right].width/2
}
