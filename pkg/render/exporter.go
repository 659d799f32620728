package render

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"

	"github.com/flowscope/flowscope/pkg/cache"
	"github.com/flowscope/flowscope/pkg/errors"
	"github.com/flowscope/flowscope/pkg/observability"
	"github.com/flowscope/flowscope/pkg/view"
)

// Formats accepted by [Exporter.Export].
const (
	FormatSVG  = "svg"
	FormatDOT  = "dot"
	FormatJSON = "json"
)

// ExportOptions selects the artifact format and its render options.
type ExportOptions struct {
	Format     string `json:"format"`                // svg, dot or json
	Theme      string `json:"theme,omitempty"`       // svg palette, "" means light
	HideLabels bool   `json:"hide_labels,omitempty"` // svg: shapes and edges only
	Smooth     bool   `json:"smooth,omitempty"`      // svg: curved waypoint bends
	Detailed   bool   `json:"detailed,omitempty"`    // dot: rank/order/tags in labels
}

// Validate rejects unknown formats and themes.
func (o ExportOptions) Validate() error {
	switch o.Format {
	case FormatSVG, FormatDOT, FormatJSON:
	default:
		return errors.New(errors.ErrCodeInvalidFormat, "unknown export format %q", o.Format)
	}
	if _, ok := ThemeByName(o.Theme); !ok {
		return errors.New(errors.ErrCodeInvalidFormat, "unknown theme %q", o.Theme)
	}
	return nil
}

func (o ExportOptions) keyOpts() cache.ExportKeyOpts {
	return cache.ExportKeyOpts{
		Format:     o.Format,
		Theme:      o.Theme,
		HideLabels: o.HideLabels,
		Smooth:     o.Smooth,
		Detailed:   o.Detailed,
	}
}

// Exporter renders export artifacts with caching. Artifacts are keyed by
// state content and render options, so repeated exports of an unchanged
// view are served without re-rendering.
type Exporter struct {
	cache  cache.Cache
	keyer  cache.Keyer
	logger *log.Logger
}

// NewExporter creates an exporter. If c is nil a NullCache is used, if
// keyer is nil a DefaultKeyer, if logger is nil the default logger.
func NewExporter(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Exporter {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Exporter{cache: c, keyer: keyer, logger: logger}
}

// Export renders a state in the requested format, serving from the cache
// when the same state and options were rendered before.
func (e *Exporter) Export(ctx context.Context, st *view.State, opts ExportOptions) ([]byte, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	stateData, err := json.Marshal(st)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "state not serializable")
	}
	key := e.keyer.ExportKey(cache.Hash(stateData), opts.keyOpts())
	if data, hit, err := e.cache.Get(ctx, key); err == nil && hit {
		observability.Cache().OnCacheHit(ctx, "export")
		return data, nil
	}
	observability.Cache().OnCacheMiss(ctx, "export")

	start := time.Now()
	observability.Session().OnExportStart(ctx, opts.Format)
	artifact, err := render(st, opts)
	observability.Session().OnExportComplete(ctx, opts.Format, len(artifact), time.Since(start), err)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("rendered export",
		"format", opts.Format,
		"bytes", len(artifact),
		"duration", time.Since(start))

	_ = e.cache.Set(ctx, key, artifact, cache.TTLExport)
	observability.Cache().OnCacheSet(ctx, "export", len(artifact))
	return artifact, nil
}

func render(st *view.State, opts ExportOptions) ([]byte, error) {
	switch opts.Format {
	case FormatSVG:
		theme, _ := ThemeByName(opts.Theme)
		svgOpts := []SVGOption{WithTheme(theme)}
		if opts.HideLabels {
			svgOpts = append(svgOpts, WithoutLabels())
		}
		if opts.Smooth {
			svgOpts = append(svgOpts, WithSmoothEdges())
		}
		return SVG(st, svgOpts...)
	case FormatDOT:
		return []byte(DOT(st, DOTOptions{Detailed: opts.Detailed})), nil
	default:
		return json.MarshalIndent(st, "", "  ")
	}
}
