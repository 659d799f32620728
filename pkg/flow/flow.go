package flow

import (
	"slices"
	"strings"
)

// Kind identifies what a node represents in the pipeline.
type Kind string

const (
	// KindTask is a processing step: a function consuming and producing data.
	KindTask Kind = "task"
	// KindDataset is data flowing between tasks.
	KindDataset Kind = "data"
	// KindParameters is a configuration input to a task.
	KindParameters Kind = "parameters"
	// KindPipeline is the synthesized container node drawn in place of a
	// collapsed modular pipeline. Containers are created by Build, never by
	// snapshots.
	KindPipeline Kind = "pipeline"
)

// Valid reports whether k is a kind a snapshot may declare.
// KindPipeline is excluded: containers are synthesized, not loaded.
func (k Kind) Valid() bool {
	switch k {
	case KindTask, KindDataset, KindParameters:
		return true
	}
	return false
}

// Node is a vertex in the pipeline graph. Regular nodes come from the
// snapshot; one container node per modular pipeline is synthesized at build
// time and shares the pipeline's identifier.
//
// Seq is the node's position in the snapshot and is the deterministic
// tiebreak for every ordering downstream. Interaction state (the explicit
// hidden flag) is private; mutate it through [Graph.SetVisibility].
type Node struct {
	ID       string
	Name     string
	Kind     Kind
	Tags     []string // sorted, deduplicated
	Pipeline string   // direct parent modular pipeline, "" at root
	Seq      int

	hidden bool
}

// IsContainer reports whether the node stands in for a collapsed modular
// pipeline rather than an entity from the snapshot.
func (n *Node) IsContainer() bool { return n.Kind == KindPipeline }

// HasTag reports whether the node carries the given tag.
func (n *Node) HasTag(tag string) bool { return slices.Contains(n.Tags, tag) }

// MatchesName reports whether the node's display name contains the query as
// a case-insensitive substring. An empty query matches everything.
func (n *Node) MatchesName(query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(n.Name), strings.ToLower(query))
}

// Edge is a directed connection between two nodes. Source and Target always
// reference nodes present in the graph; in effective edge sets they may
// reference container nodes after collapse substitution.
type Edge struct {
	Source string `json:"source" bson:"source"`
	Target string `json:"target" bson:"target"`
}

// Pipeline is a modular pipeline: a named, collapsible grouping of nodes and
// nested pipelines. Members holds the direct members only, in snapshot
// order; transitive membership is reached through the forest.
//
// Collapsed is the pipeline's own flag. It survives a parent collapse, so
// expanding the parent restores each child to its own prior state. Mutate it
// through [Graph.SetCollapsed] so derived state stays consistent.
type Pipeline struct {
	ID        string
	Name      string
	Collapsed bool
	Members   []string
}

// Graph is the pipeline graph model. It holds every node and edge from the
// loaded snapshot regardless of interaction state; visibility is derived.
//
// The zero value is not usable: graphs are produced by [Build]. Graph is not
// safe for concurrent use without external synchronization.
type Graph struct {
	nodes     map[string]*Node
	seq       []string // node then container ids, snapshot order
	edges     []Edge   // snapshot edges between regular nodes, wire order
	outgoing  map[string][]string
	incoming  map[string][]string
	pipelines map[string]*Pipeline
	pipeSeq   []string          // pipeline ids, snapshot order
	parent    map[string]string // member id -> direct parent pipeline id
	tags      []string          // sorted distinct tags across regular nodes

	hiddenKinds map[Kind]bool
	tagFilter   map[string]struct{} // nil when no tag filter is active
	search      string
	focus       string

	// memoized projection and its visibility set, dropped on every mutation
	view   *View
	visSet map[string]bool
}

// Node returns the node with the given ID and true, or nil and false if not
// found. Container nodes are addressable by their pipeline's identifier.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Pipeline returns the modular pipeline with the given ID and true, or nil
// and false if not found.
func (g *Graph) Pipeline(id string) (*Pipeline, bool) {
	p, ok := g.pipelines[id]
	return p, ok
}

// Nodes returns all regular nodes in snapshot order. Container nodes are
// excluded; they surface through [Graph.View] when their pipeline collapses.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.seq)-len(g.pipeSeq))
	for _, id := range g.seq {
		if n := g.nodes[id]; !n.IsContainer() {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// Edges returns a copy of the snapshot edge set in wire order, before any
// collapse substitution. Use [Graph.View] for the effective set.
func (g *Graph) Edges() []Edge { return slices.Clone(g.edges) }

// Pipelines returns all modular pipelines in snapshot order.
func (g *Graph) Pipelines() []*Pipeline {
	ps := make([]*Pipeline, len(g.pipeSeq))
	for i, id := range g.pipeSeq {
		ps[i] = g.pipelines[id]
	}
	return ps
}

// NodeCount returns the number of regular nodes in the graph.
func (g *Graph) NodeCount() int { return len(g.seq) - len(g.pipeSeq) }

// EdgeCount returns the number of snapshot edges in the graph.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// PipelineCount returns the number of modular pipelines in the graph.
func (g *Graph) PipelineCount() int { return len(g.pipeSeq) }

// Tags returns the distinct tags across all regular nodes, sorted.
func (g *Graph) Tags() []string { return slices.Clone(g.tags) }

// Children returns the IDs of nodes this node has edges to (downstream
// neighbors), in edge insertion order. Returns nil for unknown ids. The
// returned slice is a read-only view.
func (g *Graph) Children(id string) []string { return g.outgoing[id] }

// Parents returns the IDs of nodes with edges to this node (upstream
// neighbors), in edge insertion order. Returns nil for unknown ids. The
// returned slice is a read-only view.
func (g *Graph) Parents(id string) []string { return g.incoming[id] }

// Ancestors returns every node reachable by walking edges upstream from id,
// in snapshot order. The node itself is excluded. Returns nil for unknown
// ids.
func (g *Graph) Ancestors(id string) []string {
	return g.reach(id, g.incoming)
}

// Descendants returns every node reachable by walking edges downstream from
// id, in snapshot order. The node itself is excluded. Returns nil for
// unknown ids.
func (g *Graph) Descendants(id string) []string {
	return g.reach(id, g.outgoing)
}

func (g *Graph) reach(id string, adj map[string][]string) []string {
	if _, ok := g.nodes[id]; !ok {
		return nil
	}
	seen := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for _, next := range adj[curr] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	delete(seen, id)
	out := make([]string, 0, len(seen))
	for _, sid := range g.seq {
		if seen[sid] {
			out = append(out, sid)
		}
	}
	return out
}

// PipelineNodes returns the IDs of all regular nodes contained in the given
// modular pipeline, including nodes of nested pipelines, in snapshot order.
// Returns nil for unknown pipeline ids.
func (g *Graph) PipelineNodes(pid string) []string {
	if _, ok := g.pipelines[pid]; !ok {
		return nil
	}
	var out []string
	for _, id := range g.seq {
		n := g.nodes[id]
		if n.IsContainer() {
			continue
		}
		if g.inSubtree(id, pid) {
			out = append(out, id)
		}
	}
	return out
}

// inSubtree reports whether id sits under pipeline pid in the membership
// forest. A pipeline is in its own subtree.
func (g *Graph) inSubtree(id, pid string) bool {
	for curr := id; curr != ""; curr = g.parent[curr] {
		if curr == pid {
			return true
		}
	}
	return false
}

// Parent returns the direct parent pipeline of a node or pipeline id, or ""
// when it sits at the root of the membership forest.
func (g *Graph) Parent(id string) string { return g.parent[id] }
