package flow

import "testing"

func TestFocusHighlights(t *testing.T) {
	g := mustBuild(t, pipelineSnapshot())

	g.SetFocus("train")
	marks := g.Highlights()

	want := []string{"raw", "clean", "features", "params", "train", "model", "eval", "report"}
	for _, id := range want {
		if !marks[id] {
			t.Errorf("expected %s highlighted", id)
		}
	}
	if len(marks) != len(want) {
		t.Errorf("highlight count = %d, want %d", len(marks), len(want))
	}
}

func TestFocusPartialReach(t *testing.T) {
	g := mustBuild(t, pipelineSnapshot())

	// params has no ancestors and everything from train on downstream.
	g.SetFocus("params")
	marks := g.Highlights()

	for _, id := range []string{"params", "train", "model", "eval", "report"} {
		if !marks[id] {
			t.Errorf("expected %s highlighted", id)
		}
	}
	for _, id := range []string{"raw", "clean", "features"} {
		if marks[id] {
			t.Errorf("did not expect %s highlighted", id)
		}
	}
}

func TestFocusOverEffectiveGraph(t *testing.T) {
	g := mustBuild(t, pipelineSnapshot())
	g.SetCollapsed("modeling", true)

	g.SetFocus("modeling")
	marks := g.Highlights()

	for _, id := range []string{"modeling", "features", "clean", "raw", "params", "report"} {
		if !marks[id] {
			t.Errorf("expected %s highlighted", id)
		}
	}
	if marks["train"] || marks["eval"] {
		t.Error("hidden members must not highlight")
	}
}

func TestFocusStaleAndClear(t *testing.T) {
	g := mustBuild(t, pipelineSnapshot())

	// Unknown ids are no-ops.
	g.SetFocus("ghost")
	if g.Focused() != "" {
		t.Errorf("Focused = %q, want empty", g.Focused())
	}

	g.SetFocus("train")
	if g.Focused() != "train" {
		t.Errorf("Focused = %q, want train", g.Focused())
	}

	// Collapsing away the focused node clears focus.
	g.SetCollapsed("modeling", true)
	if g.Focused() != "" {
		t.Errorf("Focused = %q, want empty after collapse", g.Focused())
	}
	if g.Highlights() != nil {
		t.Error("Highlights should be nil without focus")
	}

	// Hidden nodes cannot take focus.
	g.SetFocus("train")
	if g.Focused() != "" {
		t.Errorf("Focused = %q, want empty for hidden node", g.Focused())
	}

	// Clearing is always allowed.
	g.SetCollapsed("modeling", false)
	g.SetFocus("train")
	g.SetFocus("")
	if g.Focused() != "" {
		t.Errorf("Focused = %q, want empty after clear", g.Focused())
	}
}

func TestFocusClearedByFilter(t *testing.T) {
	g := mustBuild(t, pipelineSnapshot())

	g.SetFocus("params")
	g.SetTagFilter([]string{"ingest"})
	if g.Focused() != "" {
		t.Errorf("Focused = %q, want empty after filtering it out", g.Focused())
	}
}
