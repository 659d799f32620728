package flow

import "slices"

// View is the effective graph projection: the nodes currently visible and
// the edge set after collapse substitution. Nodes are in snapshot order and
// Edges in first-contribution order, so identical interaction state always
// yields an identical view.
//
// Views are produced by [Graph.View] and shared until the next mutation;
// treat them as read-only.
type View struct {
	Nodes []*Node
	Edges []Edge
}

// NodeIDs returns the IDs of the view's nodes in order.
func (v *View) NodeIDs() []string {
	ids := make([]string, len(v.Nodes))
	for i, n := range v.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// View returns the current effective graph projection. The projection is
// memoized; mutating operations drop it, so repeated reads between
// interactions are free.
func (g *Graph) View() *View {
	if g.view != nil {
		return g.view
	}

	visible := make(map[string]bool, len(g.seq))
	var nodes []*Node
	for _, id := range g.seq {
		if g.deriveVisible(id) {
			visible[id] = true
			nodes = append(nodes, g.nodes[id])
		}
	}

	g.visSet = visible
	g.view = &View{Nodes: nodes, Edges: g.effectiveEdges(visible)}
	return g.view
}

// Visible reports the derived visibility of a node or container. Unknown
// ids are never visible.
func (g *Graph) Visible(id string) bool {
	g.View()
	return g.visSet[id]
}

// deriveVisible computes visibility from scratch: explicit flags, kind
// toggles, collapse state of enclosing pipelines, and active filters.
// Containers are the inverse of their members: visible exactly when their
// own pipeline is collapsed but no enclosing one is.
func (g *Graph) deriveVisible(id string) bool {
	n := g.nodes[id]
	if g.collapsedAway(id) {
		return false
	}
	if n.IsContainer() {
		if !g.pipelines[id].Collapsed {
			return false
		}
	} else {
		if n.hidden || g.hiddenKinds[n.Kind] {
			return false
		}
	}
	return g.passesFilters(n)
}

// collapsedAway reports whether any pipeline strictly enclosing id is
// collapsed.
func (g *Graph) collapsedAway(id string) bool {
	for curr := g.parent[id]; curr != ""; curr = g.parent[curr] {
		if g.pipelines[curr].Collapsed {
			return true
		}
	}
	return false
}

func (g *Graph) passesFilters(n *Node) bool {
	if len(g.tagFilter) > 0 {
		match := false
		for _, tag := range n.Tags {
			if _, ok := g.tagFilter[tag]; ok {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	return n.MatchesName(g.search)
}

// effectiveEdges rewrites each snapshot edge onto the nearest visible
// representative of its endpoints, drops edges that lose an endpoint or
// collapse into a self-edge, and deduplicates the rest preserving first
// occurrence.
func (g *Graph) effectiveEdges(visible map[string]bool) []Edge {
	var out []Edge
	seen := make(map[Edge]bool)
	for _, e := range g.edges {
		src, ok := g.representative(e.Source, visible)
		if !ok {
			continue
		}
		dst, ok := g.representative(e.Target, visible)
		if !ok {
			continue
		}
		if src == dst {
			continue
		}
		sub := Edge{Source: src, Target: dst}
		if !seen[sub] {
			seen[sub] = true
			out = append(out, sub)
		}
	}
	return out
}

// representative resolves an endpoint to itself when visible, otherwise to
// the nearest visible enclosing container. Reports false when nothing along
// the membership chain is visible.
func (g *Graph) representative(id string, visible map[string]bool) (string, bool) {
	for curr := id; curr != ""; curr = g.parent[curr] {
		if visible[curr] {
			return curr, true
		}
	}
	return "", false
}

// refresh drops the memoized view and clears focus if the focused node is
// no longer visible, so a stale focus never outlives the state change that
// hid it.
func (g *Graph) refresh() {
	g.view = nil
	g.visSet = nil
	if g.focus != "" && !g.Visible(g.focus) {
		g.focus = ""
	}
}

// SetVisibility sets a node's explicit visibility flag and returns the new
// effective edge set. Unknown ids and container ids are no-ops that return
// the current set unchanged.
func (g *Graph) SetVisibility(nodeID string, visible bool) []Edge {
	n, ok := g.nodes[nodeID]
	if !ok || n.IsContainer() || n.hidden == !visible {
		return slices.Clone(g.View().Edges)
	}
	n.hidden = !visible
	g.refresh()
	return slices.Clone(g.View().Edges)
}

// SetCollapsed sets a pipeline's collapsed state and returns the new
// effective edge set. Member pipelines keep their own collapsed flags, so
// expanding a parent restores each child to its prior state. Unknown ids
// are no-ops.
func (g *Graph) SetCollapsed(pipelineID string, collapsed bool) []Edge {
	p, ok := g.pipelines[pipelineID]
	if !ok || p.Collapsed == collapsed {
		return slices.Clone(g.View().Edges)
	}
	p.Collapsed = collapsed
	g.refresh()
	return slices.Clone(g.View().Edges)
}

// ToggleCollapsed flips a pipeline between collapsed and expanded and
// returns the new effective edge set. Unknown ids are no-ops.
func (g *Graph) ToggleCollapsed(pipelineID string) []Edge {
	p, ok := g.pipelines[pipelineID]
	if !ok {
		return slices.Clone(g.View().Edges)
	}
	return g.SetCollapsed(pipelineID, !p.Collapsed)
}

// SetTagFilter replaces the active tag filter and returns the new effective
// edge set. While a filter is active only nodes carrying at least one of
// the given tags stay visible; a nil or empty set clears the filter and
// restores the prior visible set exactly.
func (g *Graph) SetTagFilter(tags []string) []Edge {
	if len(tags) == 0 {
		g.tagFilter = nil
	} else {
		g.tagFilter = make(map[string]struct{}, len(tags))
		for _, tag := range tags {
			g.tagFilter[tag] = struct{}{}
		}
	}
	g.refresh()
	return slices.Clone(g.View().Edges)
}

// TagFilter returns the active tag filter, sorted, or nil when inactive.
func (g *Graph) TagFilter() []string {
	if len(g.tagFilter) == 0 {
		return nil
	}
	tags := make([]string, 0, len(g.tagFilter))
	for tag := range g.tagFilter {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	return tags
}

// SetSearchFilter replaces the active search query and returns the new
// effective edge set. Matching is a case-insensitive substring test against
// node names; an empty query clears the filter.
func (g *Graph) SetSearchFilter(query string) []Edge {
	if g.search == query {
		return slices.Clone(g.View().Edges)
	}
	g.search = query
	g.refresh()
	return slices.Clone(g.View().Edges)
}

// SearchFilter returns the active search query, "" when inactive.
func (g *Graph) SearchFilter() string { return g.search }

// SetKindVisible toggles visibility for a whole node kind, the way a
// sidebar hides all parameters or all datasets at once. Returns the new
// effective edge set. Only snapshot kinds can be toggled; others are
// no-ops.
func (g *Graph) SetKindVisible(kind Kind, visible bool) []Edge {
	if !kind.Valid() || g.hiddenKinds[kind] == !visible {
		return slices.Clone(g.View().Edges)
	}
	g.hiddenKinds[kind] = !visible
	g.refresh()
	return slices.Clone(g.View().Edges)
}

// HiddenKinds returns the kinds currently hidden, in a fixed order.
func (g *Graph) HiddenKinds() []Kind {
	var out []Kind
	for _, kind := range []Kind{KindTask, KindDataset, KindParameters} {
		if g.hiddenKinds[kind] {
			out = append(out, kind)
		}
	}
	return out
}
