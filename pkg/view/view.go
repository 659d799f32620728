// Package view implements the interactive viewer session: one loaded
// pipeline snapshot, its interaction state, and a drawing kept in sync with
// every change.
//
// A Session ties the graph model to the layout engine and the cache. Every
// mutation (collapse, filter, focus) recomputes the effective graph's
// drawing, seeding the ordering pass with the previous drawing so regions
// the change did not touch keep their positions, and serves cached drawings
// when the same state has been seen before. Internal layout failures
// degrade to the single-column fallback instead of failing the interaction.
//
// Sessions are safe for concurrent use; the HTTP server shares one across
// handlers.
package view

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/flowscope/flowscope/pkg/cache"
	"github.com/flowscope/flowscope/pkg/errors"
	"github.com/flowscope/flowscope/pkg/flow"
	"github.com/flowscope/flowscope/pkg/layout"
	"github.com/flowscope/flowscope/pkg/observability"
	"github.com/flowscope/flowscope/pkg/runs"
)

// RunReader supplies recorded metric series for node detail views. The
// runs store implements it; a session without one shows no metrics.
type RunReader interface {
	NodeMetrics(ctx context.Context, nodeID string) (map[string][]runs.MetricPoint, error)
}

// Session is one viewer session: the current graph, its interaction state,
// and the drawing for it. All methods that change state return the full
// resulting State so callers never observe a graph and a drawing from
// different moments.
type Session struct {
	mu     sync.Mutex
	cache  cache.Cache
	keyer  cache.Keyer
	logger *log.Logger
	params layout.Params
	runs   RunReader

	graph     *flow.Graph
	snap      *flow.Snapshot
	graphHash string
	drawing   *layout.Result
	lastView  *flow.View
	fallback  bool
	loadErr   error
}

// NewSession creates a session with the given cache, keyer and layout
// params. If c is nil a NullCache is used (caching disabled), if keyer is
// nil a DefaultKeyer, if logger is nil the default logger. Params are
// validated up front so interactions never fail on them later.
func NewSession(c cache.Cache, keyer cache.Keyer, logger *log.Logger, params layout.Params) (*Session, error) {
	if err := params.ValidateAndSetDefaults(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "layout params rejected")
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Session{
		cache:  c,
		keyer:  keyer,
		logger: logger,
		params: params,
	}, nil
}

// AttachRuns connects a runs store so node details carry recorded metric
// series. Passing nil detaches it.
func (s *Session) AttachRuns(r RunReader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = r
}

// Load parses and installs a snapshot from raw JSON. On failure the
// previously loaded graph and drawing stay current and the error is kept
// for [State.LoadError] until the next successful load.
func (s *Session) Load(ctx context.Context, data []byte) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	observability.Session().OnLoadStart(ctx)

	snap, err := flow.ParseSnapshot(data)
	if err != nil {
		return nil, s.rejectLoad(ctx, start, err)
	}
	return s.install(ctx, snap, start)
}

// LoadSnapshot installs an already parsed snapshot. Validation and failure
// semantics match [Session.Load].
func (s *Session) LoadSnapshot(ctx context.Context, snap *flow.Snapshot) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	observability.Session().OnLoadStart(ctx)
	return s.install(ctx, snap, time.Now())
}

func (s *Session) install(ctx context.Context, snap *flow.Snapshot, start time.Time) (*State, error) {
	g, err := flow.Build(snap)
	if err != nil {
		return nil, s.rejectLoad(ctx, start, err)
	}

	// Hash the normalized snapshot, not the raw bytes, so formatting
	// differences between uploads of the same content share cache entries.
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, s.rejectLoad(ctx, start, errors.Wrap(errors.ErrCodeInvalidSnapshot, err, "snapshot not serializable"))
	}

	s.graph = g
	s.snap = snap
	s.graphHash = cache.Hash(data)
	s.drawing = nil
	s.lastView = nil
	s.fallback = false
	s.loadErr = nil

	observability.Session().OnLoadComplete(ctx, g.NodeCount(), g.EdgeCount(), time.Since(start), nil)
	s.logger.Info("snapshot loaded",
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"pipelines", g.PipelineCount())

	s.relayout(ctx)
	return s.state(), nil
}

func (s *Session) rejectLoad(ctx context.Context, start time.Time, err error) error {
	observability.Session().OnLoadComplete(ctx, 0, 0, time.Since(start), err)
	s.loadErr = err
	s.logger.Error("snapshot rejected", "err", err)
	return err
}

// State returns the current state without mutating anything. Before the
// first successful load it returns an empty state, carrying the load error
// if one is pending.
func (s *Session) State(ctx context.Context) *State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.graph != nil {
		s.relayout(ctx)
	}
	return s.state()
}

// SetParams replaces the layout params and redraws. With no graph loaded
// the params are stored for the next load.
func (s *Session) SetParams(ctx context.Context, params layout.Params) (*State, error) {
	if err := params.ValidateAndSetDefaults(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "layout params rejected")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.params = params
	if s.graph == nil {
		return s.state(), nil
	}
	s.lastView = nil // force a recompute, the view alone does not key the drawing
	return s.mutate(ctx)
}

// ToggleCollapsed flips a modular pipeline between collapsed and expanded.
// Unknown ids are no-ops, so a stale click issued around a snapshot swap is
// safe.
func (s *Session) ToggleCollapsed(ctx context.Context, pipelineID string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.graph == nil {
		return nil, errNotLoaded()
	}
	s.graph.ToggleCollapsed(pipelineID)
	return s.mutate(ctx)
}

// SetCollapsed sets a modular pipeline's collapse state. Unknown ids are
// no-ops.
func (s *Session) SetCollapsed(ctx context.Context, pipelineID string, collapsed bool) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.graph == nil {
		return nil, errNotLoaded()
	}
	s.graph.SetCollapsed(pipelineID, collapsed)
	return s.mutate(ctx)
}

// SetAllCollapsed collapses or expands every modular pipeline at once.
func (s *Session) SetAllCollapsed(ctx context.Context, collapsed bool) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.graph == nil {
		return nil, errNotLoaded()
	}
	for _, p := range s.graph.Pipelines() {
		s.graph.SetCollapsed(p.ID, collapsed)
	}
	return s.mutate(ctx)
}

// SetTagFilter replaces the active tag filter; nil or empty clears it.
func (s *Session) SetTagFilter(ctx context.Context, tags []string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.graph == nil {
		return nil, errNotLoaded()
	}
	s.graph.SetTagFilter(tags)
	return s.mutate(ctx)
}

// SetSearchFilter replaces the active name search; "" clears it.
func (s *Session) SetSearchFilter(ctx context.Context, query string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.graph == nil {
		return nil, errNotLoaded()
	}
	s.graph.SetSearchFilter(query)
	return s.mutate(ctx)
}

// SetKindVisible hides or shows a whole node kind, the way the sidebar
// toggles all parameters at once.
func (s *Session) SetKindVisible(ctx context.Context, kind flow.Kind, visible bool) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.graph == nil {
		return nil, errNotLoaded()
	}
	s.graph.SetKindVisible(kind, visible)
	return s.mutate(ctx)
}

// SetVisibility sets a single node's explicit visibility flag. Unknown ids
// are no-ops.
func (s *Session) SetVisibility(ctx context.Context, nodeID string, visible bool) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.graph == nil {
		return nil, errNotLoaded()
	}
	s.graph.SetVisibility(nodeID, visible)
	return s.mutate(ctx)
}

// Focus highlights a node and everything upstream and downstream of it in
// the effective graph; "" clears focus. Focus changes highlights only, the
// drawing stays put. Unknown or hidden ids are no-ops.
func (s *Session) Focus(ctx context.Context, nodeID string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.graph == nil {
		return nil, errNotLoaded()
	}
	s.graph.SetFocus(nodeID)
	return s.mutate(ctx)
}

// mutate redraws after a graph mutation and returns the resulting state.
// Callers hold s.mu.
func (s *Session) mutate(ctx context.Context) (*State, error) {
	s.relayout(ctx)
	return s.state(), nil
}

// relayout brings the drawing in line with the current view: serves the
// memoized drawing when the view did not change, then the cache, then
// computes. Compute failures degrade to the single-column fallback; the
// fallback is never cached. Callers hold s.mu.
func (s *Session) relayout(ctx context.Context) {
	view := s.graph.View()
	if s.drawing != nil && view == s.lastView {
		return
	}

	key := s.layoutKey(view)
	if data, hit, err := s.cache.Get(ctx, key); err == nil && hit {
		var cached layout.Result
		if err := json.Unmarshal(data, &cached); err == nil {
			observability.Cache().OnCacheHit(ctx, "layout")
			s.drawing, s.lastView, s.fallback = &cached, view, false
			return
		}
		// Corrupt entry, fall through to recompute.
	}
	observability.Cache().OnCacheMiss(ctx, "layout")

	start := time.Now()
	observability.Session().OnLayoutStart(ctx, len(view.Nodes))
	res, err := layout.Compute(view, s.drawing, s.params)
	observability.Session().OnLayoutComplete(ctx, len(view.Nodes), time.Since(start), err)
	if err != nil {
		s.logger.Error("layout failed, serving single column", "err", err)
		observability.Session().OnLayoutFallback(ctx, err)
		s.drawing, s.lastView, s.fallback = layout.SingleColumn(view, s.params), view, true
		return
	}

	s.drawing, s.lastView, s.fallback = res, view, false
	s.logger.Debug("computed layout",
		"nodes", len(view.Nodes),
		"edges", len(view.Edges),
		"duration", time.Since(start))

	if data, err := json.Marshal(res); err == nil {
		_ = s.cache.Set(ctx, key, data, cache.TTLLayout)
		observability.Cache().OnCacheSet(ctx, "layout", len(data))
	}
}

// layoutKey derives the cache key for the current view's drawing. The view
// state digest covers visible node ids and effective edges; the previous
// drawing used for seeding is deliberately left out, so a hit restores the
// exact drawing last shown for this state.
func (s *Session) layoutKey(view *flow.View) string {
	state := struct {
		Nodes []string    `json:"nodes"`
		Edges []flow.Edge `json:"edges"`
	}{view.NodeIDs(), view.Edges}
	data, _ := json.Marshal(state)

	return s.keyer.LayoutKey(s.graphHash, cache.LayoutKeyOpts{
		StateHash:       cache.Hash(data),
		RankSep:         s.params.RankSep,
		NodeHeight:      s.params.NodeHeight,
		MinNodeWidth:    s.params.MinNodeWidth,
		MaxNodeWidth:    s.params.MaxNodeWidth,
		LabelCharWidth:  s.params.LabelCharWidth,
		LabelPadding:    s.params.LabelPadding,
		DummyWidth:      s.params.DummyWidth,
		MinSeparation:   s.params.MinSeparation,
		Margin:          s.params.Margin,
		OrderingPasses:  s.params.OrderingPasses,
		TransposePasses: s.params.TransposePasses,
		RelaxIterations: s.params.RelaxIterations,
		RelaxTolerance:  s.params.RelaxTolerance,
	})
}

// state assembles the wire payload from the current graph, drawing and
// interaction state. Callers hold s.mu.
func (s *Session) state() *State {
	st := &State{}
	if s.loadErr != nil {
		st.LoadError = errors.UserMessage(s.loadErr)
	}
	if s.graph == nil {
		return st
	}

	view := s.graph.View()
	highlights := s.graph.Highlights()
	focus := s.graph.Focused()

	st.Nodes = make([]StateNode, 0, len(view.Nodes))
	for _, n := range view.Nodes {
		sn := StateNode{
			ID:       n.ID,
			Name:     n.Name,
			Kind:     n.Kind,
			Tags:     n.Tags,
			Pipeline: n.Pipeline,
		}
		if geo, ok := s.drawing.Nodes[n.ID]; ok {
			sn.Rank = geo.Rank
			sn.Order = geo.Order
			sn.X = geo.X
			sn.Y = geo.Y
			sn.Width = geo.Width
			sn.Height = geo.Height
		}
		if focus != "" {
			if highlights[n.ID] {
				sn.Highlighted = true
			} else {
				sn.Faded = true
			}
		}
		st.Nodes = append(st.Nodes, sn)
	}

	st.Edges = make([]StateEdge, 0, len(s.drawing.Edges))
	for _, e := range s.drawing.Edges {
		st.Edges = append(st.Edges, StateEdge{Source: e.Source, Target: e.Target, Points: e.Points})
	}

	for _, p := range s.graph.Pipelines() {
		st.Pipelines = append(st.Pipelines, StatePipeline{
			ID:        p.ID,
			Name:      p.Name,
			Parent:    s.graph.Parent(p.ID),
			Collapsed: p.Collapsed,
		})
	}

	st.Tags = s.graph.Tags()
	st.Filters = Filters{
		Tags:        s.graph.TagFilter(),
		Search:      s.graph.SearchFilter(),
		HiddenKinds: s.graph.HiddenKinds(),
	}
	st.Focus = focus
	st.Bounds = s.drawing.Bounds
	st.Fallback = s.fallback
	st.GraphHash = s.graphHash
	st.Stats = Stats{
		TotalNodes:   s.graph.NodeCount(),
		TotalEdges:   s.graph.EdgeCount(),
		Pipelines:    s.graph.PipelineCount(),
		VisibleNodes: len(view.Nodes),
		VisibleEdges: len(view.Edges),
	}
	return st
}

// NodeDetail returns the expanded metadata for one node or container:
// direct neighbors in the full graph, the chain of enclosing modular
// pipelines innermost first, and recorded metric series when a runs store
// is attached.
func (s *Session) NodeDetail(ctx context.Context, id string) (*NodeDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.graph == nil {
		return nil, errNotLoaded()
	}
	n, ok := s.graph.Node(id)
	if !ok {
		return nil, errors.New(errors.ErrCodeNodeNotFound, "node %q not found", id)
	}

	d := &NodeDetail{
		StateNode: StateNode{
			ID:       n.ID,
			Name:     n.Name,
			Kind:     n.Kind,
			Tags:     n.Tags,
			Pipeline: n.Pipeline,
		},
		Inputs:  s.graph.Parents(id),
		Outputs: s.graph.Children(id),
		Visible: s.graph.Visible(id),
	}
	if n.IsContainer() {
		// Containers have no snapshot edges of their own; their neighbors
		// are whatever the collapse substitution currently connects them to.
		for _, e := range s.graph.View().Edges {
			if e.Target == id {
				d.Inputs = append(d.Inputs, e.Source)
			}
			if e.Source == id {
				d.Outputs = append(d.Outputs, e.Target)
			}
		}
	}
	for pid := n.Pipeline; pid != ""; pid = s.graph.Parent(pid) {
		d.PipelinePath = append(d.PipelinePath, pid)
	}
	if s.drawing != nil {
		if geo, ok := s.drawing.Nodes[id]; ok {
			d.Rank = geo.Rank
			d.Order = geo.Order
			d.X = geo.X
			d.Y = geo.Y
			d.Width = geo.Width
			d.Height = geo.Height
		}
	}
	if s.runs != nil {
		metrics, err := s.runs.NodeMetrics(ctx, id)
		if err != nil {
			s.logger.Warn("run metrics unavailable", "node", id, "err", err)
		} else {
			d.Metrics = metrics
		}
	}
	return d, nil
}

// Drawing returns the current drawing, nil before the first load. The
// result is shared; treat it as read-only.
func (s *Session) Drawing() *layout.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drawing
}

// Snapshot returns the currently loaded snapshot, nil before the first
// load.
func (s *Session) Snapshot() *flow.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// GraphHash returns the content hash of the loaded snapshot, "" before the
// first load. Clients use it to detect snapshot swaps between polls.
func (s *Session) GraphHash() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graphHash
}

// Loaded reports whether a snapshot has been successfully loaded.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph != nil
}

// Params returns the active layout params.
func (s *Session) Params() layout.Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

func errNotLoaded() error {
	return errors.New(errors.ErrCodeNotFound, "no snapshot loaded")
}
