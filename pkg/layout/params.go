package layout

import (
	"fmt"
	"unicode/utf8"

	"github.com/flowscope/flowscope/pkg/flow"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI, API, and Config
// =============================================================================

const (
	// DefaultRankSep is the vertical distance in pixels between the tops of
	// consecutive ranks.
	DefaultRankSep = 110.0

	// DefaultNodeHeight is the height in pixels of every regular node box.
	DefaultNodeHeight = 40.0

	// DefaultMinNodeWidth is the narrowest a node box may be, regardless of
	// how short its label is.
	DefaultMinNodeWidth = 50.0

	// DefaultMaxNodeWidth caps node width so extreme labels cannot blow up
	// the drawing. Labels wider than this are expected to be truncated by
	// the renderer.
	DefaultMaxNodeWidth = 280.0

	// DefaultLabelCharWidth is the estimated width in pixels of one label
	// character. Node widths are estimated from label length rather than
	// measured, so layout stays font independent.
	DefaultLabelCharWidth = 8.0

	// DefaultLabelPadding is the horizontal padding in pixels on each side
	// of a node label.
	DefaultLabelPadding = 16.0

	// DefaultDummyWidth is the width in pixels reserved for a dummy node on
	// a subdivided edge. Small but nonzero so parallel long edges keep a
	// visible gap.
	DefaultDummyWidth = 8.0

	// DefaultMinSeparation is the minimum horizontal gap in pixels between
	// adjacent node boxes in the same rank.
	DefaultMinSeparation = 40.0

	// DefaultMargin is the blank border in pixels around the drawing.
	DefaultMargin = 24.0

	// DefaultOrderingPasses is the number of barycenter sweeps over the
	// ranks during crossing reduction.
	DefaultOrderingPasses = 8

	// DefaultTransposePasses is the number of adjacent-swap refinement
	// passes after each barycenter sweep.
	DefaultTransposePasses = 4

	// DefaultRelaxIterations caps the horizontal relaxation loop.
	DefaultRelaxIterations = 32

	// DefaultRelaxTolerance stops horizontal relaxation early once no node
	// moved farther than this many pixels in a full pass.
	DefaultRelaxTolerance = 0.5
)

// Quality represents the desired trade-off between layout speed and quality.
type Quality int

const (
	QualityFast Quality = iota
	QualityBalanced
	QualityOptimal
)

// =============================================================================
// Params - Layout Configuration
// =============================================================================

// Params contains all tunables for layout computation. The zero value of any
// field means "use the default"; use DefaultParams for a fully populated set.
// This struct supports JSON serialization for API requests and TOML for the
// [layout] config section.
type Params struct {
	// Geometry
	RankSep        float64 `json:"rank_sep,omitempty" toml:"rank_sep"`
	NodeHeight     float64 `json:"node_height,omitempty" toml:"node_height"`
	MinNodeWidth   float64 `json:"min_node_width,omitempty" toml:"min_node_width"`
	MaxNodeWidth   float64 `json:"max_node_width,omitempty" toml:"max_node_width"`
	LabelCharWidth float64 `json:"label_char_width,omitempty" toml:"label_char_width"`
	LabelPadding   float64 `json:"label_padding,omitempty" toml:"label_padding"`
	DummyWidth     float64 `json:"dummy_width,omitempty" toml:"dummy_width"`
	MinSeparation  float64 `json:"min_separation,omitempty" toml:"min_separation"`
	Margin         float64 `json:"margin,omitempty" toml:"margin"`

	// Iteration budgets
	OrderingPasses  int     `json:"ordering_passes,omitempty" toml:"ordering_passes"`
	TransposePasses int     `json:"transpose_passes,omitempty" toml:"transpose_passes"`
	RelaxIterations int     `json:"relax_iterations,omitempty" toml:"relax_iterations"`
	RelaxTolerance  float64 `json:"relax_tolerance,omitempty" toml:"relax_tolerance"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-" toml:"-"`
}

// DefaultParams returns a Params with every field set to its default.
func DefaultParams() Params {
	p := Params{}
	p.setDefaults()
	p.validated = true
	return p
}

// ParamsForQuality returns defaults tuned for the given speed/quality
// trade-off. Fast cuts the iteration budgets for interactive use on large
// graphs; Optimal raises them for final exports.
func ParamsForQuality(q Quality) Params {
	p := DefaultParams()
	switch q {
	case QualityFast:
		p.OrderingPasses = 2
		p.TransposePasses = 1
		p.RelaxIterations = 8
	case QualityOptimal:
		p.OrderingPasses = 24
		p.TransposePasses = 8
		p.RelaxIterations = 128
		p.RelaxTolerance = 0.1
	}
	return p
}

// ValidateAndSetDefaults checks all fields and applies defaults for zero
// values. Negative values are rejected rather than silently clamped.
// This method is idempotent - calling it multiple times has the same effect
// as calling it once.
func (p *Params) ValidateAndSetDefaults() error {
	if p.validated {
		return nil
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"rank_sep", p.RankSep},
		{"node_height", p.NodeHeight},
		{"min_node_width", p.MinNodeWidth},
		{"max_node_width", p.MaxNodeWidth},
		{"label_char_width", p.LabelCharWidth},
		{"label_padding", p.LabelPadding},
		{"dummy_width", p.DummyWidth},
		{"min_separation", p.MinSeparation},
		{"margin", p.Margin},
		{"relax_tolerance", p.RelaxTolerance},
		{"ordering_passes", float64(p.OrderingPasses)},
		{"transpose_passes", float64(p.TransposePasses)},
		{"relax_iterations", float64(p.RelaxIterations)},
	} {
		if f.value < 0 {
			return fmt.Errorf("invalid layout param: %s must not be negative", f.name)
		}
	}
	p.setDefaults()
	if p.MaxNodeWidth < p.MinNodeWidth {
		return fmt.Errorf("invalid layout param: max_node_width (%v) below min_node_width (%v)", p.MaxNodeWidth, p.MinNodeWidth)
	}
	p.validated = true
	return nil
}

func (p *Params) setDefaults() {
	if p.RankSep == 0 {
		p.RankSep = DefaultRankSep
	}
	if p.NodeHeight == 0 {
		p.NodeHeight = DefaultNodeHeight
	}
	if p.MinNodeWidth == 0 {
		p.MinNodeWidth = DefaultMinNodeWidth
	}
	if p.MaxNodeWidth == 0 {
		p.MaxNodeWidth = DefaultMaxNodeWidth
	}
	if p.LabelCharWidth == 0 {
		p.LabelCharWidth = DefaultLabelCharWidth
	}
	if p.LabelPadding == 0 {
		p.LabelPadding = DefaultLabelPadding
	}
	if p.DummyWidth == 0 {
		p.DummyWidth = DefaultDummyWidth
	}
	if p.MinSeparation == 0 {
		p.MinSeparation = DefaultMinSeparation
	}
	if p.Margin == 0 {
		p.Margin = DefaultMargin
	}
	if p.OrderingPasses == 0 {
		p.OrderingPasses = DefaultOrderingPasses
	}
	if p.TransposePasses == 0 {
		p.TransposePasses = DefaultTransposePasses
	}
	if p.RelaxIterations == 0 {
		p.RelaxIterations = DefaultRelaxIterations
	}
	if p.RelaxTolerance == 0 {
		p.RelaxTolerance = DefaultRelaxTolerance
	}
}

// labelWidth estimates the pixel width of a node box for the given label.
func (p *Params) labelWidth(label string) float64 {
	w := float64(utf8.RuneCountInString(label))*p.LabelCharWidth + 2*p.LabelPadding
	if w < p.MinNodeWidth {
		return p.MinNodeWidth
	}
	if w > p.MaxNodeWidth {
		return p.MaxNodeWidth
	}
	return w
}

// nodeWidth returns the box width used for a node. Widths depend only on
// the label, so two layouts of the same view agree on geometry.
func (p *Params) nodeWidth(n *flow.Node) float64 {
	return p.labelWidth(n.Name)
}
