package flow

// SetFocus focuses a node or container; pass "" to clear. At most one node
// is focused at a time. Focusing an unknown or currently hidden id is a
// no-op, so stale ids issued after a snapshot swap or collapse are safe.
func (g *Graph) SetFocus(nodeID string) {
	if nodeID == "" {
		g.focus = ""
		return
	}
	if !g.Visible(nodeID) {
		return
	}
	g.focus = nodeID
}

// Focused returns the focused node id, "" when focus mode is off.
func (g *Graph) Focused() string { return g.focus }

// Highlights returns the highlight set for the current focus: the focused
// node plus everything upstream and downstream of it in the effective
// graph. Returns nil when focus mode is off.
//
// Reachability runs over effective edges, not snapshot edges, so a
// collapsed container highlights as a unit and hidden nodes never
// highlight.
func (g *Graph) Highlights() map[string]bool {
	if g.focus == "" {
		return nil
	}

	view := g.View()
	out := make(map[string][]string, len(view.Nodes))
	in := make(map[string][]string, len(view.Nodes))
	for _, e := range view.Edges {
		out[e.Source] = append(out[e.Source], e.Target)
		in[e.Target] = append(in[e.Target], e.Source)
	}

	marks := map[string]bool{g.focus: true}
	for _, adj := range []map[string][]string{out, in} {
		queue := []string{g.focus}
		seen := map[string]bool{g.focus: true}
		for len(queue) > 0 {
			curr := queue[0]
			queue = queue[1:]
			for _, next := range adj[curr] {
				if !seen[next] {
					seen[next] = true
					marks[next] = true
					queue = append(queue, next)
				}
			}
		}
	}
	return marks
}
