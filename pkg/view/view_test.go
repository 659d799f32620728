package view_test

import (
	"context"
	"io"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/flowscope/flowscope/pkg/cache"
	"github.com/flowscope/flowscope/pkg/errors"
	"github.com/flowscope/flowscope/pkg/flow"
	"github.com/flowscope/flowscope/pkg/layout"
	"github.com/flowscope/flowscope/pkg/runs"
	"github.com/flowscope/flowscope/pkg/view"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func newSession(t *testing.T) *view.Session {
	t.Helper()
	s, err := view.NewSession(nil, nil, quietLogger(), layout.DefaultParams())
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	return s
}

// pipelineSnapshot is a small but complete fixture: a linear pipeline with
// one modular pipeline ("proc") around its middle, a parameters input, and
// tags on the processing and modeling steps.
func pipelineSnapshot() *flow.Snapshot {
	return &flow.Snapshot{
		Nodes: []flow.SnapshotNode{
			{ID: "raw", Name: "raw", Kind: flow.KindDataset},
			{ID: "split", Name: "split", Kind: flow.KindTask, Tags: []string{"prep"}},
			{ID: "train_x", Name: "train_x", Kind: flow.KindDataset, Tags: []string{"prep"}},
			{ID: "model", Name: "model", Kind: flow.KindTask, Tags: []string{"model"}},
			{ID: "lr", Name: "lr", Kind: flow.KindParameters},
		},
		Edges: []flow.Edge{
			{Source: "raw", Target: "split"},
			{Source: "split", Target: "train_x"},
			{Source: "train_x", Target: "model"},
			{Source: "lr", Target: "model"},
		},
		Pipelines: []flow.SnapshotPipeline{
			{ID: "proc", Name: "Processing", Members: []string{"split", "train_x"}},
		},
	}
}

func loadFixture(t *testing.T, s *view.Session) *view.State {
	t.Helper()
	st, err := s.LoadSnapshot(context.Background(), pipelineSnapshot())
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	return st
}

func visibleIDs(st *view.State) []string {
	ids := make([]string, len(st.Nodes))
	for i, n := range st.Nodes {
		ids[i] = n.ID
	}
	return ids
}

func TestSession_LoadSnapshot(t *testing.T) {
	s := newSession(t)
	st := loadFixture(t, s)

	want := view.Stats{TotalNodes: 5, TotalEdges: 4, Pipelines: 1, VisibleNodes: 5, VisibleEdges: 4}
	if st.Stats != want {
		t.Errorf("Stats = %+v, want %+v", st.Stats, want)
	}
	for _, n := range st.Nodes {
		if n.Width <= 0 || n.Height <= 0 {
			t.Errorf("node %s has no geometry: %+v", n.ID, n)
		}
	}
	if st.GraphHash == "" {
		t.Error("GraphHash is empty")
	}
	if st.Fallback {
		t.Error("Fallback set on a healthy layout")
	}
	if st.LoadError != "" {
		t.Errorf("LoadError = %q, want empty", st.LoadError)
	}
	if got := len(st.Pipelines); got != 1 {
		t.Fatalf("got %d pipelines, want 1", got)
	}
	if p := st.Pipelines[0]; p.ID != "proc" || p.Name != "Processing" || p.Collapsed {
		t.Errorf("pipeline = %+v, want expanded proc/Processing", p)
	}
	if got := st.Tags; !reflect.DeepEqual(got, []string{"model", "prep"}) {
		t.Errorf("Tags = %v, want [model prep]", got)
	}
	if !s.Loaded() {
		t.Error("Loaded() = false after successful load")
	}
}

func TestSession_LoadRejectsInvalid(t *testing.T) {
	s := newSession(t)

	if _, err := s.Load(context.Background(), []byte("{not json")); !errors.Is(err, errors.ErrCodeInvalidSnapshot) {
		t.Errorf("Load(malformed) error = %v, want %s", err, errors.ErrCodeInvalidSnapshot)
	}
	cyclic := []byte(`{
		"nodes": [{"id": "a", "kind": "task"}, {"id": "b", "kind": "data"}],
		"edges": [{"source": "a", "target": "b"}, {"source": "b", "target": "a"}]
	}`)
	if _, err := s.Load(context.Background(), cyclic); !errors.Is(err, errors.ErrCodeGraphCycle) {
		t.Errorf("Load(cyclic) error = %v, want %s", err, errors.ErrCodeGraphCycle)
	}

	if s.Loaded() {
		t.Error("Loaded() = true after only failed loads")
	}
	st := s.State(context.Background())
	if len(st.Nodes) != 0 {
		t.Errorf("got %d nodes, want none", len(st.Nodes))
	}
	if st.LoadError == "" {
		t.Error("LoadError is empty after a rejected snapshot")
	}
}

func TestSession_LoadFailureKeepsCurrent(t *testing.T) {
	s := newSession(t)
	loadFixture(t, s)
	hash := s.GraphHash()

	bad := []byte(`{
		"nodes": [{"id": "a", "kind": "task"}],
		"edges": [{"source": "a", "target": "ghost"}]
	}`)
	if _, err := s.Load(context.Background(), bad); err == nil {
		t.Fatal("Load(dangling edge) succeeded, want error")
	}

	st := s.State(context.Background())
	if got := st.Stats.VisibleNodes; got != 5 {
		t.Errorf("visible nodes after failed load = %d, want 5", got)
	}
	if st.LoadError == "" {
		t.Error("LoadError not carried after failed load")
	}
	if s.GraphHash() != hash {
		t.Errorf("GraphHash changed across a failed load")
	}

	// A successful load clears the pending error.
	st = loadFixture(t, s)
	if st.LoadError != "" {
		t.Errorf("LoadError = %q after successful reload, want empty", st.LoadError)
	}
}

func TestSession_ToggleCollapsed(t *testing.T) {
	s := newSession(t)
	loadFixture(t, s)

	st, err := s.ToggleCollapsed(context.Background(), "proc")
	if err != nil {
		t.Fatalf("ToggleCollapsed() error = %v", err)
	}
	if got, want := visibleIDs(st), []string{"raw", "model", "lr", "proc"}; !reflect.DeepEqual(got, want) {
		t.Errorf("visible after collapse = %v, want %v", got, want)
	}
	for _, n := range st.Nodes {
		if n.ID == "proc" && n.Kind != flow.KindPipeline {
			t.Errorf("container kind = %s, want %s", n.Kind, flow.KindPipeline)
		}
	}
	wantEdges := map[[2]string]bool{
		{"raw", "proc"}:   true,
		{"proc", "model"}: true,
		{"lr", "model"}:   true,
	}
	if len(st.Edges) != len(wantEdges) {
		t.Fatalf("got %d edges after collapse, want %d", len(st.Edges), len(wantEdges))
	}
	for _, e := range st.Edges {
		if !wantEdges[[2]string{e.Source, e.Target}] {
			t.Errorf("unexpected edge %s -> %s", e.Source, e.Target)
		}
	}

	st, err = s.ToggleCollapsed(context.Background(), "proc")
	if err != nil {
		t.Fatalf("ToggleCollapsed() error = %v", err)
	}
	if got := st.Stats.VisibleNodes; got != 5 {
		t.Errorf("visible after expand = %d, want 5", got)
	}
}

func TestSession_SetAllCollapsed(t *testing.T) {
	s := newSession(t)
	loadFixture(t, s)

	st, err := s.SetAllCollapsed(context.Background(), true)
	if err != nil {
		t.Fatalf("SetAllCollapsed(true) error = %v", err)
	}
	if got, want := visibleIDs(st), []string{"raw", "model", "lr", "proc"}; !reflect.DeepEqual(got, want) {
		t.Errorf("visible after collapse all = %v, want %v", got, want)
	}

	st, err = s.SetAllCollapsed(context.Background(), false)
	if err != nil {
		t.Fatalf("SetAllCollapsed(false) error = %v", err)
	}
	if got := st.Stats.VisibleNodes; got != 5 {
		t.Errorf("visible after expand all = %d, want 5", got)
	}
}

func TestSession_MutationsBeforeLoad(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()

	calls := []struct {
		name string
		call func() error
	}{
		{"ToggleCollapsed", func() error { _, err := s.ToggleCollapsed(ctx, "p"); return err }},
		{"SetCollapsed", func() error { _, err := s.SetCollapsed(ctx, "p", true); return err }},
		{"SetAllCollapsed", func() error { _, err := s.SetAllCollapsed(ctx, true); return err }},
		{"SetTagFilter", func() error { _, err := s.SetTagFilter(ctx, []string{"t"}); return err }},
		{"SetSearchFilter", func() error { _, err := s.SetSearchFilter(ctx, "q"); return err }},
		{"SetKindVisible", func() error { _, err := s.SetKindVisible(ctx, flow.KindTask, false); return err }},
		{"SetVisibility", func() error { _, err := s.SetVisibility(ctx, "n", false); return err }},
		{"Focus", func() error { _, err := s.Focus(ctx, "n"); return err }},
	}
	for _, c := range calls {
		if err := c.call(); !errors.Is(err, errors.ErrCodeNotFound) {
			t.Errorf("%s before load: error = %v, want %s", c.name, err, errors.ErrCodeNotFound)
		}
	}
	if _, err := s.NodeDetail(ctx, "n"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("NodeDetail before load: error = %v, want %s", err, errors.ErrCodeNotFound)
	}
}

func TestSession_StaleIDsNoOp(t *testing.T) {
	s := newSession(t)
	loadFixture(t, s)
	ctx := context.Background()

	st, err := s.ToggleCollapsed(ctx, "ghost")
	if err != nil {
		t.Fatalf("ToggleCollapsed(unknown) error = %v", err)
	}
	if got := st.Stats.VisibleNodes; got != 5 {
		t.Errorf("visible after unknown toggle = %d, want 5", got)
	}

	st, err = s.SetVisibility(ctx, "ghost", false)
	if err != nil {
		t.Fatalf("SetVisibility(unknown) error = %v", err)
	}
	if got := st.Stats.VisibleNodes; got != 5 {
		t.Errorf("visible after unknown hide = %d, want 5", got)
	}

	st, err = s.Focus(ctx, "ghost")
	if err != nil {
		t.Fatalf("Focus(unknown) error = %v", err)
	}
	if st.Focus != "" {
		t.Errorf("Focus = %q after focusing unknown id, want empty", st.Focus)
	}
}

func TestSession_Focus(t *testing.T) {
	s := newSession(t)
	loadFixture(t, s)

	st, err := s.Focus(context.Background(), "split")
	if err != nil {
		t.Fatalf("Focus() error = %v", err)
	}
	if st.Focus != "split" {
		t.Errorf("Focus = %q, want split", st.Focus)
	}
	wantLit := map[string]bool{"raw": true, "split": true, "train_x": true, "model": true}
	for _, n := range st.Nodes {
		if wantLit[n.ID] != n.Highlighted {
			t.Errorf("node %s: Highlighted = %v, want %v", n.ID, n.Highlighted, wantLit[n.ID])
		}
		if wantLit[n.ID] == n.Faded {
			t.Errorf("node %s: Faded = %v with Highlighted = %v", n.ID, n.Faded, n.Highlighted)
		}
	}

	st, err = s.Focus(context.Background(), "")
	if err != nil {
		t.Fatalf("Focus(clear) error = %v", err)
	}
	if st.Focus != "" {
		t.Errorf("Focus = %q after clear, want empty", st.Focus)
	}
	for _, n := range st.Nodes {
		if n.Highlighted || n.Faded {
			t.Errorf("node %s still flagged after clearing focus", n.ID)
		}
	}
}

func TestSession_TagFilter(t *testing.T) {
	s := newSession(t)
	loadFixture(t, s)

	st, err := s.SetTagFilter(context.Background(), []string{"prep"})
	if err != nil {
		t.Fatalf("SetTagFilter() error = %v", err)
	}
	if got, want := visibleIDs(st), []string{"split", "train_x"}; !reflect.DeepEqual(got, want) {
		t.Errorf("visible with tag filter = %v, want %v", got, want)
	}
	if got := st.Filters.Tags; !reflect.DeepEqual(got, []string{"prep"}) {
		t.Errorf("Filters.Tags = %v, want [prep]", got)
	}

	st, err = s.SetTagFilter(context.Background(), nil)
	if err != nil {
		t.Fatalf("SetTagFilter(nil) error = %v", err)
	}
	if got := st.Stats.VisibleNodes; got != 5 {
		t.Errorf("visible after clearing tag filter = %d, want 5", got)
	}
}

func TestSession_SearchFilter(t *testing.T) {
	s := newSession(t)
	loadFixture(t, s)

	st, err := s.SetSearchFilter(context.Background(), "mod")
	if err != nil {
		t.Fatalf("SetSearchFilter() error = %v", err)
	}
	if got, want := visibleIDs(st), []string{"model"}; !reflect.DeepEqual(got, want) {
		t.Errorf("visible with search = %v, want %v", got, want)
	}
	if st.Filters.Search != "mod" {
		t.Errorf("Filters.Search = %q, want mod", st.Filters.Search)
	}
}

func TestSession_KindFilter(t *testing.T) {
	s := newSession(t)
	loadFixture(t, s)

	st, err := s.SetKindVisible(context.Background(), flow.KindParameters, false)
	if err != nil {
		t.Fatalf("SetKindVisible() error = %v", err)
	}
	if got := st.Stats.VisibleNodes; got != 4 {
		t.Errorf("visible without parameters = %d, want 4", got)
	}
	if got := st.Stats.VisibleEdges; got != 3 {
		t.Errorf("edges without parameters = %d, want 3", got)
	}
	if got := st.Filters.HiddenKinds; !reflect.DeepEqual(got, []flow.Kind{flow.KindParameters}) {
		t.Errorf("Filters.HiddenKinds = %v, want [parameters]", got)
	}
}

func TestSession_SetParams(t *testing.T) {
	s := newSession(t)
	loadFixture(t, s)

	st, err := s.SetParams(context.Background(), layout.Params{RankSep: 200})
	if err != nil {
		t.Fatalf("SetParams() error = %v", err)
	}
	var rawY, splitY float64
	for _, n := range st.Nodes {
		switch n.ID {
		case "raw":
			rawY = n.Y
		case "split":
			splitY = n.Y
		}
	}
	if got := splitY - rawY; got != 200 {
		t.Errorf("rank separation = %v, want 200", got)
	}

	if _, err := s.SetParams(context.Background(), layout.Params{RankSep: -5}); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("SetParams(negative) error = %v, want %s", err, errors.ErrCodeInvalidConfig)
	}
	if got := s.Params().RankSep; got != 200 {
		t.Errorf("RankSep after rejected params = %v, want 200", got)
	}
}

func TestSession_SetParamsBeforeLoad(t *testing.T) {
	s := newSession(t)

	st, err := s.SetParams(context.Background(), layout.Params{RankSep: 150})
	if err != nil {
		t.Fatalf("SetParams() before load error = %v", err)
	}
	if len(st.Nodes) != 0 {
		t.Errorf("got %d nodes before load, want none", len(st.Nodes))
	}
	if got := s.Params().RankSep; got != 150 {
		t.Errorf("RankSep = %v, want the stored 150", got)
	}

	loadFixture(t, s)
	var rawY, splitY float64
	for _, n := range s.State(context.Background()).Nodes {
		switch n.ID {
		case "raw":
			rawY = n.Y
		case "split":
			splitY = n.Y
		}
	}
	if got := splitY - rawY; got != 150 {
		t.Errorf("rank separation after load = %v, want the stored 150", got)
	}
}

func TestSession_NodeDetail(t *testing.T) {
	s := newSession(t)
	loadFixture(t, s)

	d, err := s.NodeDetail(context.Background(), "model")
	if err != nil {
		t.Fatalf("NodeDetail(model) error = %v", err)
	}
	if got, want := d.Inputs, []string{"train_x", "lr"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Inputs = %v, want %v", got, want)
	}
	if len(d.Outputs) != 0 {
		t.Errorf("Outputs = %v, want none", d.Outputs)
	}
	if !d.Visible {
		t.Error("Visible = false for a shown node")
	}

	d, err = s.NodeDetail(context.Background(), "split")
	if err != nil {
		t.Fatalf("NodeDetail(split) error = %v", err)
	}
	if got, want := d.PipelinePath, []string{"proc"}; !reflect.DeepEqual(got, want) {
		t.Errorf("PipelinePath = %v, want %v", got, want)
	}

	if _, err := s.NodeDetail(context.Background(), "ghost"); !errors.Is(err, errors.ErrCodeNodeNotFound) {
		t.Errorf("NodeDetail(unknown) error = %v, want %s", err, errors.ErrCodeNodeNotFound)
	}
}

func TestSession_NodeDetailCollapsedContainer(t *testing.T) {
	s := newSession(t)
	loadFixture(t, s)
	if _, err := s.SetCollapsed(context.Background(), "proc", true); err != nil {
		t.Fatalf("SetCollapsed() error = %v", err)
	}

	d, err := s.NodeDetail(context.Background(), "proc")
	if err != nil {
		t.Fatalf("NodeDetail(proc) error = %v", err)
	}
	if got, want := d.Inputs, []string{"raw"}; !reflect.DeepEqual(got, want) {
		t.Errorf("container Inputs = %v, want %v", got, want)
	}
	if got, want := d.Outputs, []string{"model"}; !reflect.DeepEqual(got, want) {
		t.Errorf("container Outputs = %v, want %v", got, want)
	}
	if !d.Visible {
		t.Error("collapsed container reported invisible")
	}
}

// fakeRunReader serves a fixed metrics map, or fails.
type fakeRunReader struct {
	metrics map[string][]runs.MetricPoint
	err     error
}

func (f fakeRunReader) NodeMetrics(context.Context, string) (map[string][]runs.MetricPoint, error) {
	return f.metrics, f.err
}

func TestSession_NodeDetailMetrics(t *testing.T) {
	s := newSession(t)
	loadFixture(t, s)
	ctx := context.Background()

	s.AttachRuns(fakeRunReader{metrics: map[string][]runs.MetricPoint{
		"accuracy": {{RunID: "r1", Value: 0.7}, {RunID: "r2", Value: 0.85}},
	}})

	d, err := s.NodeDetail(ctx, "model")
	if err != nil {
		t.Fatalf("NodeDetail() error = %v", err)
	}
	if got := d.Metrics["accuracy"]; len(got) != 2 || got[1].Value != 0.85 {
		t.Errorf("Metrics[accuracy] = %+v, want two points ending 0.85", got)
	}

	// A failing store degrades to a detail without metrics.
	s.AttachRuns(fakeRunReader{err: errors.New(errors.ErrCodeStore, "store offline")})
	d, err = s.NodeDetail(ctx, "model")
	if err != nil {
		t.Fatalf("NodeDetail() with failing store error = %v", err)
	}
	if d.Metrics != nil {
		t.Errorf("Metrics = %+v, want none", d.Metrics)
	}

	s.AttachRuns(nil)
	d, err = s.NodeDetail(ctx, "model")
	if err != nil {
		t.Fatalf("NodeDetail() detached error = %v", err)
	}
	if d.Metrics != nil {
		t.Errorf("detached Metrics = %+v, want none", d.Metrics)
	}
}

// spyCache wraps an in-memory store with hit and miss counters.
type spyCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	hits   int
	misses int
	sets   int
}

func newSpyCache() *spyCache {
	return &spyCache{data: make(map[string][]byte)}
}

func (c *spyCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok, nil
}

func (c *spyCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.data[key] = data
	return nil
}

func (c *spyCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *spyCache) Close() error { return nil }

var _ cache.Cache = (*spyCache)(nil)

func TestSession_LayoutCacheRoundTrip(t *testing.T) {
	spy := newSpyCache()
	s, err := view.NewSession(spy, nil, quietLogger(), layout.DefaultParams())
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	first, err := s.LoadSnapshot(context.Background(), pipelineSnapshot())
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if spy.misses != 1 || spy.sets != 1 {
		t.Fatalf("after load: misses = %d sets = %d, want 1 and 1", spy.misses, spy.sets)
	}

	if _, err := s.ToggleCollapsed(context.Background(), "proc"); err != nil {
		t.Fatalf("ToggleCollapsed() error = %v", err)
	}
	if spy.misses != 2 || spy.sets != 2 {
		t.Fatalf("after collapse: misses = %d sets = %d, want 2 and 2", spy.misses, spy.sets)
	}

	// Toggling back reproduces a state already drawn: served from cache,
	// geometry identical to the first drawing.
	again, err := s.ToggleCollapsed(context.Background(), "proc")
	if err != nil {
		t.Fatalf("ToggleCollapsed() error = %v", err)
	}
	if spy.hits != 1 {
		t.Errorf("hits = %d after returning to a known state, want 1", spy.hits)
	}
	if spy.sets != 2 {
		t.Errorf("sets = %d, cached states must not be written again", spy.sets)
	}
	if !reflect.DeepEqual(again.Nodes, first.Nodes) {
		t.Errorf("geometry differs after cache round trip:\n got %+v\nwant %+v", again.Nodes, first.Nodes)
	}
}

func TestSession_StateBeforeLoad(t *testing.T) {
	s := newSession(t)
	st := s.State(context.Background())
	if len(st.Nodes) != 0 || st.GraphHash != "" || st.LoadError != "" {
		t.Errorf("empty session state = %+v, want zero state", st)
	}
}
