// Package cache provides pluggable byte caches and the key scheme used to
// memoize expensive pipeline artifacts.
//
// Two things get cached: computed drawings keyed by snapshot content plus
// view state, and rendered exports keyed by drawing content plus render
// options. Keys are built by a [Keyer] so every component derives them the
// same way, and backends are interchangeable behind [Cache]: files for a
// single machine, Redis for a shared deployment, null to disable caching.
package cache

import (
	"context"
	"time"
)

// Default expirations per cached artifact family.
const (
	TTLLayout = 24 * time.Hour
	TTLExport = 7 * 24 * time.Hour
)

// Cache is a byte store with optional expiry. Implementations must be safe
// for concurrent use.
type Cache interface {
	// Get retrieves a value. The second return reports whether the key was
	// present; absence is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A ttl of zero means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}

// LayoutKeyOpts captures everything besides graph content that changes a
// computed drawing. StateHash digests the view state (collapsed pipelines,
// filters, search, hidden nodes); the remaining fields mirror the layout
// tunables so a param change never serves a stale drawing.
type LayoutKeyOpts struct {
	StateHash       string  `json:"state_hash"`
	RankSep         float64 `json:"rank_sep,omitempty"`
	NodeHeight      float64 `json:"node_height,omitempty"`
	MinNodeWidth    float64 `json:"min_node_width,omitempty"`
	MaxNodeWidth    float64 `json:"max_node_width,omitempty"`
	LabelCharWidth  float64 `json:"label_char_width,omitempty"`
	LabelPadding    float64 `json:"label_padding,omitempty"`
	DummyWidth      float64 `json:"dummy_width,omitempty"`
	MinSeparation   float64 `json:"min_separation,omitempty"`
	Margin          float64 `json:"margin,omitempty"`
	OrderingPasses  int     `json:"ordering_passes,omitempty"`
	TransposePasses int     `json:"transpose_passes,omitempty"`
	RelaxIterations int     `json:"relax_iterations,omitempty"`
	RelaxTolerance  float64 `json:"relax_tolerance,omitempty"`
}

// ExportKeyOpts captures the render options that change an exported
// artifact for a fixed drawing.
type ExportKeyOpts struct {
	Format     string `json:"format"`
	Theme      string `json:"theme,omitempty"`
	HideLabels bool   `json:"hide_labels,omitempty"`
	Smooth     bool   `json:"smooth,omitempty"`
	Detailed   bool   `json:"detailed,omitempty"`
}

// Keyer generates cache keys. Implementations must be deterministic: the
// same inputs always produce the same key.
type Keyer interface {
	// LayoutKey generates a key for a computed drawing. The graphHash is
	// the content hash of the loaded snapshot.
	LayoutKey(graphHash string, opts LayoutKeyOpts) string

	// ExportKey generates a key for a rendered artifact. The layoutHash is
	// the content hash of the serialized drawing.
	ExportKey(layoutHash string, opts ExportKeyOpts) string
}

// DefaultKeyer builds keys as prefix:sha256(inputs). Collisions would serve
// a wrong drawing, so the full 256-bit digest is kept.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// LayoutKey generates a key for a computed drawing.
func (k *DefaultKeyer) LayoutKey(graphHash string, opts LayoutKeyOpts) string {
	return hashKey("layout", graphHash, opts)
}

// ExportKey generates a key for a rendered artifact.
func (k *DefaultKeyer) ExportKey(layoutHash string, opts ExportKeyOpts) string {
	return hashKey("export", layoutHash, opts)
}

// Ensure DefaultKeyer implements Keyer.
var _ Keyer = (*DefaultKeyer)(nil)
