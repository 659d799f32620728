package render

import (
	"strings"
	"testing"

	"github.com/flowscope/flowscope/pkg/errors"
	"github.com/flowscope/flowscope/pkg/flow"
	"github.com/flowscope/flowscope/pkg/layout"
	"github.com/flowscope/flowscope/pkg/view"
)

// testState is a hand-built state exercising every node kind, with anchors
// consistent so the render contract holds.
func testState() *view.State {
	return &view.State{
		Nodes: []view.StateNode{
			{ID: "a", Name: "clean", Kind: flow.KindTask, Rank: 0, X: 100, Y: 44, Width: 100, Height: 40},
			{ID: "b", Name: "table", Kind: flow.KindDataset, Rank: 1, X: 100, Y: 154, Width: 100, Height: 40},
			{ID: "c", Name: "alpha", Kind: flow.KindParameters, Rank: 0, X: 240, Y: 44, Width: 90, Height: 40},
			{ID: "p", Name: "Prep", Kind: flow.KindPipeline, Rank: 1, Order: 1, X: 240, Y: 154, Width: 120, Height: 40},
		},
		Edges: []view.StateEdge{
			{Source: "a", Target: "b", Points: []layout.Point{{X: 100, Y: 64}, {X: 100, Y: 134}}},
			{Source: "c", Target: "p", Points: []layout.Point{{X: 240, Y: 64}, {X: 200, Y: 99}, {X: 240, Y: 134}}},
		},
		Bounds: layout.Bounds{Width: 500, Height: 250},
	}
}

func TestSVG_ShapesPerKind(t *testing.T) {
	data, err := SVG(testState())
	if err != nil {
		t.Fatalf("SVG() error = %v", err)
	}
	svg := string(data)

	checks := []struct {
		name string
		want string
	}{
		{"task rect", `rx="4"`},
		{"dataset ellipse", "<ellipse"},
		{"parameters hexagon", "<polygon"},
		{"container rounded rect", `rx="10"`},
		{"arrow marker", `marker-end="url(#arrow)"`},
		{"label", `>clean</text>`},
		{"tooltip", "<title>table (data)</title>"},
	}
	for _, c := range checks {
		if !strings.Contains(svg, c.want) {
			t.Errorf("SVG missing %s (%q)", c.name, c.want)
		}
	}
	if !strings.HasPrefix(svg, `<svg xmlns="http://www.w3.org/2000/svg"`) {
		t.Errorf("SVG does not start with an svg element: %.60s", svg)
	}
}

func TestSVG_HighlightAndFade(t *testing.T) {
	st := testState()
	st.Focus = "a"
	st.Nodes[0].Highlighted = true
	st.Nodes[1].Highlighted = true
	st.Nodes[2].Faded = true
	st.Nodes[3].Faded = true

	data, err := SVG(st)
	if err != nil {
		t.Fatalf("SVG() error = %v", err)
	}
	svg := string(data)

	if !strings.Contains(svg, `class="node highlight"`) {
		t.Error("highlighted node missing highlight class")
	}
	if !strings.Contains(svg, `opacity="0.25"`) {
		t.Error("faded node missing opacity")
	}
	// Edge a->b connects two highlighted nodes, edge c->p two faded ones.
	if !strings.Contains(svg, `marker-end="url(#arrow-highlight)"`) {
		t.Error("edge between highlighted nodes missing highlight marker")
	}
	if !strings.Contains(svg, `font-weight="bold"`) {
		t.Error("highlighted label missing bold weight")
	}
}

func TestSVG_EscapesLabels(t *testing.T) {
	st := testState()
	st.Nodes[0].Name = `<b&"w">`

	data, err := SVG(st)
	if err != nil {
		t.Fatalf("SVG() error = %v", err)
	}
	svg := string(data)

	if strings.Contains(svg, `<b&`) {
		t.Error("label emitted unescaped markup")
	}
	if !strings.Contains(svg, "&lt;b&amp;") {
		t.Error("label not XML-escaped")
	}
}

func TestSVG_SmoothEdges(t *testing.T) {
	st := testState()

	plain, err := SVG(st)
	if err != nil {
		t.Fatalf("SVG() error = %v", err)
	}
	if !strings.Contains(string(plain), " L ") {
		t.Error("straight rendering missing line segments")
	}
	if strings.Contains(string(plain), " Q ") {
		t.Error("straight rendering contains curves")
	}

	smooth, err := SVG(st, WithSmoothEdges())
	if err != nil {
		t.Fatalf("SVG(WithSmoothEdges) error = %v", err)
	}
	if !strings.Contains(string(smooth), " Q ") {
		t.Error("smooth rendering missing curve through waypoint")
	}
}

func TestSVG_WithoutLabels(t *testing.T) {
	data, err := SVG(testState(), WithoutLabels())
	if err != nil {
		t.Fatalf("SVG() error = %v", err)
	}
	if strings.Contains(string(data), `class="label"`) {
		t.Error("labels rendered despite WithoutLabels")
	}
}

func TestSVG_FallbackNotice(t *testing.T) {
	st := testState()
	st.Fallback = true

	data, err := SVG(st)
	if err != nil {
		t.Fatalf("SVG() error = %v", err)
	}
	if !strings.Contains(string(data), "layout fallback") {
		t.Error("fallback drawing missing notice")
	}

	st.Fallback = false
	data, err = SVG(st)
	if err != nil {
		t.Fatalf("SVG() error = %v", err)
	}
	if strings.Contains(string(data), "layout fallback") {
		t.Error("healthy drawing carries fallback notice")
	}
}

func TestSVG_DarkTheme(t *testing.T) {
	data, err := SVG(testState(), WithTheme(ThemeDark))
	if err != nil {
		t.Fatalf("SVG() error = %v", err)
	}
	if !strings.Contains(string(data), ThemeDark.Background) {
		t.Error("dark theme background not applied")
	}
}

func TestCheck_Violations(t *testing.T) {
	base := testState

	tests := []struct {
		name  string
		wreck func(st *view.State)
	}{
		{"degenerate node", func(st *view.State) { st.Nodes[0].Width = 0 }},
		{"unknown edge source", func(st *view.State) { st.Edges[0].Source = "ghost" }},
		{"unknown edge target", func(st *view.State) { st.Edges[0].Target = "ghost" }},
		{"short polyline", func(st *view.State) { st.Edges[0].Points = st.Edges[0].Points[:1] }},
		{"detached source anchor", func(st *view.State) { st.Edges[0].Points[0].X += 5 }},
		{"detached target anchor", func(st *view.State) { st.Edges[0].Points[1].Y += 5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := base()
			tt.wreck(st)
			err := Check(st)
			if !errors.Is(err, errors.ErrCodeInternal) {
				t.Errorf("Check() error = %v, want %s", err, errors.ErrCodeInternal)
			}
			if _, err := SVG(st); err == nil {
				t.Error("SVG() rendered a state that fails the contract")
			}
		})
	}

	if err := Check(nil); !errors.Is(err, errors.ErrCodeInternal) {
		t.Errorf("Check(nil) error = %v, want %s", err, errors.ErrCodeInternal)
	}
	if err := Check(base()); err != nil {
		t.Errorf("Check(valid) error = %v", err)
	}
}

func TestFitLabel(t *testing.T) {
	if got := fitLabel("short", 100); got != "short" {
		t.Errorf("fitLabel(short) = %q, want unchanged", got)
	}
	long := strings.Repeat("x", 60)
	got := fitLabel(long, 100)
	if !strings.HasSuffix(got, "..") {
		t.Errorf("fitLabel(long) = %q, want .. suffix", got)
	}
	if len(got) >= len(long) {
		t.Errorf("fitLabel(long) did not shorten: %d chars", len(got))
	}
}

func TestEdgePath(t *testing.T) {
	e := view.StateEdge{Points: []layout.Point{{X: 10, Y: 20}, {X: 10, Y: 80}}}
	if got, want := edgePath(e, false), "M 10.0,20.0 L 10.0,80.0"; got != want {
		t.Errorf("edgePath() = %q, want %q", got, want)
	}

	e3 := view.StateEdge{Points: []layout.Point{{X: 0, Y: 0}, {X: 10, Y: 50}, {X: 0, Y: 100}}}
	if got, want := edgePath(e3, true), "M 0.0,0.0 Q 10.0,50.0 0.0,100.0"; got != want {
		t.Errorf("edgePath(smooth) = %q, want %q", got, want)
	}
}
