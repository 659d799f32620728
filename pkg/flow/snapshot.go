package flow

import (
	"encoding/json"
	"slices"

	"github.com/flowscope/flowscope/pkg/errors"
)

// Snapshot is the wire structure a pipeline exporter produces. It is an
// immutable input: Build validates it and converts it into a [Graph], and a
// malformed snapshot is a load error that leaves the caller's current graph
// untouched.
type Snapshot struct {
	Nodes     []SnapshotNode     `json:"nodes" bson:"nodes"`
	Edges     []Edge             `json:"edges" bson:"edges"`
	Pipelines []SnapshotPipeline `json:"pipelines,omitempty" bson:"pipelines,omitempty"`
	Runs      []RunEntry         `json:"runs,omitempty" bson:"runs,omitempty"`
}

// SnapshotNode describes one node on the wire.
type SnapshotNode struct {
	ID   string   `json:"id" bson:"id"`
	Name string   `json:"name,omitempty" bson:"name,omitempty"`
	Kind Kind     `json:"kind" bson:"kind"`
	Tags []string `json:"tags,omitempty" bson:"tags,omitempty"`
}

// SnapshotPipeline describes one modular pipeline on the wire. Members lists
// direct members only: node ids and nested pipeline ids.
type SnapshotPipeline struct {
	ID        string   `json:"id" bson:"id"`
	Name      string   `json:"name,omitempty" bson:"name,omitempty"`
	Members   []string `json:"members,omitempty" bson:"members,omitempty"`
	Collapsed bool     `json:"collapsed,omitempty" bson:"collapsed,omitempty"`
}

// RunEntry is one recorded experiment run carried alongside a snapshot.
// Runs are not part of the graph model; Build ignores them. The runs store
// imports them so recorded metrics can be layered onto nodes.
type RunEntry struct {
	ID        string                        `json:"id" bson:"id"`
	Timestamp string                        `json:"timestamp,omitempty" bson:"timestamp,omitempty"`
	GitSHA    string                        `json:"git_sha,omitempty" bson:"git_sha,omitempty"`
	Metrics   map[string]map[string]float64 `json:"metrics,omitempty" bson:"metrics,omitempty"` // node id -> metric name -> value
}

// ParseSnapshot decodes a JSON snapshot. It only checks that the payload is
// well-formed JSON of the right shape; semantic validation happens in Build.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSnapshot, err, "snapshot is not valid JSON")
	}
	return &snap, nil
}

// Build validates a snapshot and converts it into a Graph.
//
// Validation covers, in order: node identifiers and kinds, duplicate ids
// (across nodes and pipelines), pipeline membership (unknown members, more
// than one direct parent, containment cycles), edge endpoints, cycles in the
// node graph, and cycles that any combination of collapsed pipelines would
// produce in the effective graph. The first violation is returned as a
// structured load error and no graph is produced.
//
// Build is a pure constructor: it never mutates the snapshot and a failure
// leaves no partial state behind.
func Build(snap *Snapshot) (*Graph, error) {
	if snap == nil {
		return nil, errors.New(errors.ErrCodeInvalidSnapshot, "snapshot is nil")
	}

	g := &Graph{
		nodes:       make(map[string]*Node, len(snap.Nodes)+len(snap.Pipelines)),
		outgoing:    make(map[string][]string),
		incoming:    make(map[string][]string),
		pipelines:   make(map[string]*Pipeline, len(snap.Pipelines)),
		parent:      make(map[string]string),
		hiddenKinds: make(map[Kind]bool),
	}

	if err := g.loadNodes(snap.Nodes); err != nil {
		return nil, err
	}
	if err := g.loadPipelines(snap.Pipelines); err != nil {
		return nil, err
	}
	if err := g.loadEdges(snap.Edges); err != nil {
		return nil, err
	}

	if cycle := findCycle(g.seq, g.outgoing); cycle != nil {
		return nil, errors.Wrap(errors.ErrCodeGraphCycle, &errors.CycleError{Path: cycle},
			"pipeline graph is not acyclic")
	}
	if err := g.checkCollapseCycles(); err != nil {
		return nil, err
	}

	g.addContainers()
	g.collectTags()
	return g, nil
}

func (g *Graph) loadNodes(nodes []SnapshotNode) error {
	for i, sn := range nodes {
		if err := errors.ValidateNodeID(sn.ID); err != nil {
			return err
		}
		if !sn.Kind.Valid() {
			return errors.New(errors.ErrCodeInvalidNode, "node %s has unknown kind %q", sn.ID, sn.Kind)
		}
		if _, exists := g.nodes[sn.ID]; exists {
			return errors.New(errors.ErrCodeDuplicateNode, "duplicate node id %s", sn.ID)
		}
		tags := slices.Clone(sn.Tags)
		for _, tag := range tags {
			if err := errors.ValidateTag(tag); err != nil {
				return errors.Wrap(errors.ErrCodeInvalidNode, err, "node %s", sn.ID)
			}
		}
		slices.Sort(tags)
		tags = slices.Compact(tags)

		name := sn.Name
		if name == "" {
			name = sn.ID
		}
		n := &Node{ID: sn.ID, Name: name, Kind: sn.Kind, Tags: tags, Seq: i}
		g.nodes[n.ID] = n
		g.seq = append(g.seq, n.ID)
	}
	return nil
}

func (g *Graph) loadPipelines(pipelines []SnapshotPipeline) error {
	for _, sp := range pipelines {
		if err := errors.ValidatePipelineID(sp.ID); err != nil {
			return err
		}
		if _, exists := g.nodes[sp.ID]; exists {
			return errors.New(errors.ErrCodeDuplicateNode, "pipeline id %s collides with a node id", sp.ID)
		}
		if _, exists := g.pipelines[sp.ID]; exists {
			return errors.New(errors.ErrCodeDuplicateNode, "duplicate pipeline id %s", sp.ID)
		}
		name := sp.Name
		if name == "" {
			name = sp.ID
		}
		p := &Pipeline{ID: sp.ID, Name: name, Collapsed: sp.Collapsed, Members: slices.Clone(sp.Members)}
		g.pipelines[p.ID] = p
		g.pipeSeq = append(g.pipeSeq, p.ID)
	}

	// Membership wiring is a second pass so forward references between
	// pipelines are legal on the wire.
	for _, sp := range pipelines {
		for _, member := range sp.Members {
			_, isNode := g.nodes[member]
			_, isPipe := g.pipelines[member]
			if !isNode && !isPipe {
				return errors.New(errors.ErrCodeUnknownMember, "pipeline %s lists unknown member %s", sp.ID, member)
			}
			if member == sp.ID {
				return errors.New(errors.ErrCodeMembership, "pipeline %s contains itself", sp.ID)
			}
			if prev, claimed := g.parent[member]; claimed {
				return errors.New(errors.ErrCodeMembership,
					"member %s belongs to both %s and %s", member, prev, sp.ID)
			}
			g.parent[member] = sp.ID
		}
	}

	// With at most one parent each, a containment cycle is a parent chain
	// that returns to its start.
	for _, pid := range g.pipeSeq {
		for curr := g.parent[pid]; curr != ""; curr = g.parent[curr] {
			if curr == pid {
				return errors.New(errors.ErrCodeMembership, "pipeline %s is contained in itself", pid)
			}
		}
	}
	return nil
}

func (g *Graph) loadEdges(edges []Edge) error {
	seen := make(map[Edge]bool, len(edges))
	for _, e := range edges {
		if _, ok := g.pipelines[e.Source]; ok {
			return errors.New(errors.ErrCodeInvalidEdge, "edge source %s is a pipeline, not a node", e.Source)
		}
		if _, ok := g.pipelines[e.Target]; ok {
			return errors.New(errors.ErrCodeInvalidEdge, "edge target %s is a pipeline, not a node", e.Target)
		}
		if _, ok := g.nodes[e.Source]; !ok {
			return errors.New(errors.ErrCodeDanglingEdge, "edge %s -> %s references unknown node %s", e.Source, e.Target, e.Source)
		}
		if _, ok := g.nodes[e.Target]; !ok {
			return errors.New(errors.ErrCodeDanglingEdge, "edge %s -> %s references unknown node %s", e.Source, e.Target, e.Target)
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		g.edges = append(g.edges, e)
		g.outgoing[e.Source] = append(g.outgoing[e.Source], e.Target)
		g.incoming[e.Target] = append(g.incoming[e.Target], e.Source)
	}
	return nil
}

// checkCollapseCycles verifies that no combination of collapsed pipelines
// can turn the effective graph cyclic.
//
// It is sufficient to check one contraction per membership scope: for every
// pipeline (and the forest root), take its direct children, contract each
// child pipeline's whole subtree to a single vertex, and require the
// resulting graph to be acyclic. Any cycle reachable by some collapse
// combination projects onto a cycle in exactly one of these scope graphs,
// and each scope cycle is realizable by collapsing that scope's children.
func (g *Graph) checkCollapseCycles() error {
	scoped := make(map[string]map[string][]string)
	for _, e := range g.edges {
		srcChain := g.rootChain(e.Source)
		dstChain := g.rootChain(e.Target)
		i := 0
		for i < len(srcChain) && i < len(dstChain) && srcChain[i] == dstChain[i] {
			i++
		}
		scope := ""
		if i > 0 {
			scope = srcChain[i-1]
		}
		src, dst := srcChain[i], dstChain[i]
		adj := scoped[scope]
		if adj == nil {
			adj = make(map[string][]string)
			scoped[scope] = adj
		}
		if !slices.Contains(adj[src], dst) {
			adj[src] = append(adj[src], dst)
		}
	}

	scopes := append([]string{""}, g.pipeSeq...)
	for _, scope := range scopes {
		adj := scoped[scope]
		if adj == nil {
			continue
		}
		ids := make([]string, 0, len(adj))
		for _, sid := range g.seq {
			if _, ok := adj[sid]; ok {
				ids = append(ids, sid)
			}
		}
		for _, pid := range g.pipeSeq {
			if _, ok := adj[pid]; ok {
				ids = append(ids, pid)
			}
		}
		if cycle := findCycle(ids, adj); cycle != nil {
			return errors.Wrap(errors.ErrCodeGraphCycle, &errors.CycleError{Path: cycle},
				"collapsing pipelines in scope %q creates a cycle", scopeName(scope))
		}
	}
	return nil
}

func scopeName(scope string) string {
	if scope == "" {
		return "root"
	}
	return scope
}

// rootChain returns the path from the membership-forest root down to id:
// outermost pipeline first, id last.
func (g *Graph) rootChain(id string) []string {
	chain := []string{id}
	for curr := g.parent[id]; curr != ""; curr = g.parent[curr] {
		chain = append(chain, curr)
	}
	slices.Reverse(chain)
	return chain
}

// addContainers synthesizes one container node per pipeline. Containers
// carry the union of their transitive members' tags so tag filtering treats
// a collapsed pipeline like its contents.
func (g *Graph) addContainers() {
	tagSets := make(map[string]map[string]bool, len(g.pipelines))
	for _, pid := range g.pipeSeq {
		tagSets[pid] = make(map[string]bool)
	}
	for _, id := range g.seq {
		n := g.nodes[id]
		for curr := g.parent[id]; curr != ""; curr = g.parent[curr] {
			for _, tag := range n.Tags {
				tagSets[curr][tag] = true
			}
		}
	}

	base := len(g.seq)
	for i, pid := range g.pipeSeq {
		p := g.pipelines[pid]
		g.nodes[pid] = &Node{
			ID:   pid,
			Name: p.Name,
			Kind: KindPipeline,
			Tags: sortedKeys(tagSets[pid]),
			Seq:  base + i,
		}
		g.seq = append(g.seq, pid)
	}

	// Record direct parents now that membership is final.
	for _, id := range g.seq {
		g.nodes[id].Pipeline = g.parent[id]
	}
}

func (g *Graph) collectTags() {
	set := make(map[string]bool)
	for _, id := range g.seq {
		if n := g.nodes[id]; !n.IsContainer() {
			for _, tag := range n.Tags {
				set[tag] = true
			}
		}
	}
	g.tags = sortedKeys(set)
}

// sortedKeys returns the keys of m as a sorted slice, nil when m is empty.
func sortedKeys(m map[string]bool) []string {
	var keys []string
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// findCycle runs a depth-first search with white/gray/black coloring over
// the given adjacency and returns one cycle as a node path (first node
// repeated last), or nil when the graph is acyclic. Roots are tried in the
// order given so results are deterministic.
func findCycle(ids []string, adj map[string][]string) []string {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(ids))
	var stack []string
	var cycle []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		color[id] = gray
		stack = append(stack, id)
		for _, child := range adj[id] {
			switch color[child] {
			case white:
				if dfs(child) {
					return true
				}
			case gray:
				start := slices.Index(stack, child)
				cycle = append(slices.Clone(stack[start:]), child)
				return true
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, id := range ids {
		if color[id] == white && dfs(id) {
			return cycle
		}
	}
	return nil
}
