package render

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/flowscope/flowscope/pkg/cache"
	"github.com/flowscope/flowscope/pkg/errors"
	"github.com/flowscope/flowscope/pkg/view"
)

type countingCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	hits    int
	misses  int
	sets    int
}

var _ cache.Cache = (*countingCache)(nil)

func newCountingCache() *countingCache {
	return &countingCache{entries: make(map[string][]byte)}
}

func (c *countingCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok, nil
}

func (c *countingCache) Set(_ context.Context, key string, data []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = data
	c.sets++
	return nil
}

func (c *countingCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *countingCache) Close() error { return nil }

func newTestExporter(c cache.Cache) *Exporter {
	return NewExporter(c, nil, log.NewWithOptions(io.Discard, log.Options{}))
}

func TestExporter_Formats(t *testing.T) {
	exp := newTestExporter(nil)
	ctx := context.Background()
	st := testState()

	svg, err := exp.Export(ctx, st, ExportOptions{Format: FormatSVG})
	if err != nil {
		t.Fatalf("Export(svg) error = %v", err)
	}
	if !strings.HasPrefix(string(svg), "<svg") {
		t.Error("svg export is not an SVG document")
	}

	dot, err := exp.Export(ctx, st, ExportOptions{Format: FormatDOT})
	if err != nil {
		t.Fatalf("Export(dot) error = %v", err)
	}
	if !strings.HasPrefix(string(dot), "digraph flowscope") {
		t.Error("dot export is not a DOT document")
	}

	data, err := exp.Export(ctx, st, ExportOptions{Format: FormatJSON})
	if err != nil {
		t.Fatalf("Export(json) error = %v", err)
	}
	var decoded view.State
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("json export does not decode: %v", err)
	}
	if got, want := len(decoded.Nodes), len(st.Nodes); got != want {
		t.Errorf("json export nodes = %d, want %d", got, want)
	}
}

func TestExporter_RejectsUnknownOptions(t *testing.T) {
	exp := newTestExporter(nil)
	ctx := context.Background()

	tests := []struct {
		name string
		opts ExportOptions
	}{
		{"unknown format", ExportOptions{Format: "png"}},
		{"unknown theme", ExportOptions{Format: FormatSVG, Theme: "sepia"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := exp.Export(ctx, testState(), tt.opts)
			if !errors.Is(err, errors.ErrCodeInvalidFormat) {
				t.Errorf("Export() error = %v, want %s", err, errors.ErrCodeInvalidFormat)
			}
		})
	}
}

func TestExporter_CacheRoundTrip(t *testing.T) {
	cc := newCountingCache()
	exp := newTestExporter(cc)
	ctx := context.Background()
	st := testState()
	opts := ExportOptions{Format: FormatSVG, Theme: "dark"}

	first, err := exp.Export(ctx, st, opts)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if cc.misses != 1 || cc.sets != 1 {
		t.Fatalf("first export: misses = %d sets = %d, want 1 and 1", cc.misses, cc.sets)
	}

	second, err := exp.Export(ctx, st, opts)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if cc.hits != 1 || cc.sets != 1 {
		t.Errorf("second export: hits = %d sets = %d, want 1 and 1", cc.hits, cc.sets)
	}
	if string(first) != string(second) {
		t.Error("cached export differs from rendered export")
	}

	// Different options miss the first entry.
	if _, err := exp.Export(ctx, st, ExportOptions{Format: FormatSVG}); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if cc.sets != 2 {
		t.Errorf("option change did not produce a new entry: sets = %d", cc.sets)
	}
}

func TestExporter_BrokenDrawing(t *testing.T) {
	exp := newTestExporter(nil)
	ctx := context.Background()

	st := testState()
	st.Edges[0].Points = nil

	if _, err := exp.Export(ctx, st, ExportOptions{Format: FormatSVG}); !errors.Is(err, errors.ErrCodeInternal) {
		t.Errorf("svg export of broken state: error = %v, want %s", err, errors.ErrCodeInternal)
	}

	// DOT and JSON carry no geometry, so a broken drawing still exports.
	if _, err := exp.Export(ctx, st, ExportOptions{Format: FormatDOT}); err != nil {
		t.Errorf("dot export of broken state: error = %v", err)
	}
	if _, err := exp.Export(ctx, st, ExportOptions{Format: FormatJSON}); err != nil {
		t.Errorf("json export of broken state: error = %v", err)
	}
}
