package layout

import "fmt"

// assignRanks assigns every node to a rank based on its depth in the graph.
//
// Ranks come from a longest-path pass via topological sort (Kahn's
// algorithm). Each node lands at one plus the maximum rank of any of its
// predecessors, so that:
//   - Source nodes (no incoming edges) are at rank 0
//   - Every edge points strictly downward
//   - Each node sits as deep as its longest incoming path requires
//
// The walk processes nodes in insertion order, which keeps the result
// independent of map iteration. A cycle would leave part of the graph
// unprocessed; the caller guarantees acyclic input, so hitting that case
// is reported as an internal error rather than worked around.
func assignRanks(g *graph) error {
	inDegree := make(map[string]int, len(g.nodes))
	queue := make([]string, 0, len(g.nodes))

	for _, id := range g.seq {
		degree := len(g.incoming[id])
		inDegree[id] = degree
		if degree == 0 {
			queue = append(queue, id)
		}
	}

	processed := 0
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		processed++

		for _, child := range g.outgoing[curr] {
			if rank := g.nodes[curr].rank + 1; rank > g.nodes[child].rank {
				g.nodes[child].rank = rank
			}
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if processed != len(g.nodes) {
		return fmt.Errorf("ranking left %d of %d nodes unprocessed", len(g.nodes)-processed, len(g.nodes))
	}
	return nil
}
