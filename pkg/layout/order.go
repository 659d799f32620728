package layout

import "slices"

// buildRanks groups nodes into per-rank slices and seeds the initial
// left-to-right order. Nodes keep their relative order from the previous
// drawing when one is supplied; newcomers slot in behind them in snapshot
// order. With no previous drawing the seed is pure snapshot order, so the
// whole phase is deterministic either way.
func buildRanks(g *graph, prevOrder map[string]int) {
	maxRank := -1
	for _, id := range g.seq {
		if r := g.nodes[id].rank; r > maxRank {
			maxRank = r
		}
	}
	if maxRank < 0 {
		g.ranks = nil
		return
	}

	ranks := make([][]string, maxRank+1)
	for _, id := range g.seq {
		n := g.nodes[id]
		ranks[n.rank] = append(ranks[n.rank], id)
	}
	for _, rank := range ranks {
		slices.SortStableFunc(rank, func(a, b string) int {
			pa, aok := prevOrder[a]
			pb, bok := prevOrder[b]
			switch {
			case aok && bok && pa != pb:
				return pa - pb
			case aok && !bok:
				return -1
			case !aok && bok:
				return 1
			}
			return g.nodes[a].seq - g.nodes[b].seq
		})
	}
	g.ranks = ranks
}

// orderRanks reduces edge crossings with the classic barycenter method:
//
//  1. Sweep downward, sorting each rank by its parents' average positions
//  2. Apply transpose passes that swap adjacent pairs when that helps
//  3. Alternate sweep direction and repeat
//  4. Keep the best ordering seen across all passes
//
// Sorts are stable and ties fall back to the incoming order, so repeated
// runs over the same seeded ranks produce identical results. The final
// per-rank indices are written back to the nodes.
func orderRanks(g *graph, params Params) {
	if len(g.ranks) > 1 {
		best := cloneRanks(g.ranks)
		bestCrossings := countCrossings(g)

		for pass := 0; pass < params.OrderingPasses && bestCrossings > 0; pass++ {
			if pass%2 == 0 {
				sweepDown(g)
			} else {
				sweepUp(g)
			}
			for t := 0; t < params.TransposePasses; t++ {
				if !transpose(g) {
					break
				}
			}
			if c := countCrossings(g); c < bestCrossings {
				bestCrossings = c
				best = cloneRanks(g.ranks)
			}
		}
		g.ranks = best
	}

	for _, rank := range g.ranks {
		for i, id := range rank {
			g.nodes[id].order = i
		}
	}
}

func sweepDown(g *graph) {
	for r := 1; r < len(g.ranks); r++ {
		reorderByBarycenter(g, g.ranks[r], posMap(g.ranks[r-1]), true)
	}
}

func sweepUp(g *graph) {
	for r := len(g.ranks) - 2; r >= 0; r-- {
		reorderByBarycenter(g, g.ranks[r], posMap(g.ranks[r+1]), false)
	}
}

// reorderByBarycenter sorts one rank by the average position of each node's
// neighbors in the adjacent rank. Nodes without neighbors keep their current
// position as their barycenter so they do not drift.
func reorderByBarycenter(g *graph, rank []string, adjPos map[string]int, useParents bool) {
	bary := make(map[string]float64, len(rank))
	for i, id := range rank {
		var nbr []string
		if useParents {
			nbr = g.incoming[id]
		} else {
			nbr = g.outgoing[id]
		}
		sum, count := 0.0, 0
		for _, a := range nbr {
			if p, ok := adjPos[a]; ok {
				sum += float64(p)
				count++
			}
		}
		if count == 0 {
			bary[id] = float64(i)
		} else {
			bary[id] = sum / float64(count)
		}
	}
	slices.SortStableFunc(rank, func(a, b string) int {
		switch {
		case bary[a] < bary[b]:
			return -1
		case bary[a] > bary[b]:
			return 1
		default:
			return 0
		}
	})
}

// transpose swaps adjacent pairs within each rank whenever the swap strictly
// reduces crossings against the neighboring ranks. Reports whether any swap
// was made so callers can stop once a pass changes nothing.
func transpose(g *graph) bool {
	improved := false
	for r := range g.ranks {
		rank := g.ranks[r]
		var abovePos, belowPos map[string]int
		if r > 0 {
			abovePos = posMap(g.ranks[r-1])
		}
		if r+1 < len(g.ranks) {
			belowPos = posMap(g.ranks[r+1])
		}
		for i := 0; i+1 < len(rank); i++ {
			left, right := rank[i], rank[i+1]
			current, swapped := 0, 0
			if abovePos != nil {
				current += countPairCrossings(g, left, right, abovePos, true)
				swapped += countPairCrossings(g, right, left, abovePos, true)
			}
			if belowPos != nil {
				current += countPairCrossings(g, left, right, belowPos, false)
				swapped += countPairCrossings(g, right, left, belowPos, false)
			}
			if swapped < current {
				rank[i], rank[i+1] = right, left
				improved = true
			}
		}
	}
	return improved
}

func cloneRanks(ranks [][]string) [][]string {
	out := make([][]string, len(ranks))
	for i, r := range ranks {
		out[i] = slices.Clone(r)
	}
	return out
}
