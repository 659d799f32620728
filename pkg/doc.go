// Package pkg provides the core libraries for Flowscope pipeline visualization.
//
// # Overview
//
// Flowscope turns a data-pipeline description (tasks, datasets, parameters,
// nested modular pipelines) into an interactive layered flowchart and layers
// recorded experiment-run metrics on top of it. The pkg directory is
// organized into three main areas:
//
//  1. Domain logic ([flow], [layout], [render])
//  2. Session orchestration ([view])
//  3. Stores and supporting infrastructure ([cache], [runs], [archive],
//     [config], [errors], [observability])
//
// # Architecture
//
// The typical data flow through Flowscope:
//
//	Snapshot JSON (exported by the pipeline producer)
//	         ↓
//	    [flow] package (validate, graph model, collapse/filter/focus state)
//	         ↓
//	    [layout] package (layered drawing: rank, order, coordinates, routes)
//	         ↓
//	    [render] package (SVG / DOT / JSON artifacts)
//
// The [view] package wraps the three into a Session that keeps graph and
// drawing consistent through every interaction; the CLI and the HTTP server
// both drive that one surface.
//
// # Quick Start
//
// Load a snapshot and export an SVG:
//
//	import (
//	    "context"
//	    "os"
//
//	    "github.com/flowscope/flowscope/pkg/layout"
//	    "github.com/flowscope/flowscope/pkg/render"
//	    "github.com/flowscope/flowscope/pkg/view"
//	)
//
//	data, _ := os.ReadFile("pipeline.json")
//
//	sess, _ := view.NewSession(nil, nil, nil, layout.Params{})
//	st, _ := sess.Load(context.Background(), data)
//
//	svg, _ := render.SVG(st)
//	os.WriteFile("pipeline.svg", svg, 0644)
//
// # Main Packages
//
// ## Domain Logic
//
// [flow] - The pipeline graph model. Validates snapshots into an immutable
// node/edge/pipeline structure, synthesizes container nodes for collapsed
// modular pipelines, and derives the effective graph (visible nodes plus
// substituted edges) from collapse, tag, search, and kind filters. Focus
// highlighting walks ancestors and descendants of one node.
//
// [layout] - Layered drawing engine. Longest-path ranking, dummy-waypoint
// subdivision, barycenter ordering with transpose refinement, coordinate
// relaxation, and polyline edge routing. Deterministic for a given input
// and seed; a single-column fallback covers internal failures.
//
// [render] - Export sinks over a session state: hand-written SVG, Graphviz
// DOT (rasterizable in-process), and indented JSON. An Exporter adds
// content-keyed caching.
//
// ## Session Orchestration
//
// [view] - The viewer session. One mutex-guarded surface owning the loaded
// graph, its interaction state, and the current drawing; every command
// returns a full State payload so readers never mix graph and drawing from
// different moments. Rejected loads keep the previous graph serving.
//
// ## Stores
//
// [cache] - Byte cache for computed drawings and export artifacts with
// file, Redis, and null backends.
//
// [runs] - Experiment-run store over SQLite: recorded metric blobs per run,
// user annotations in their own table, metric series per node, and merging
// of foreign runs databases.
//
// [archive] - Published-view registry with MongoDB and in-memory backends:
// a snapshot plus the exact state it was viewed in, under a shareable id.
//
// ## Supporting Infrastructure
//
// [config] - flowscope.toml loading and validation: server address, cache
// backend, runs database, archive connection, layout tunables.
//
// [errors] - Coded structured errors shared across packages.
//
// [observability] - Pluggable lifecycle hooks (loads, layouts, cache
// traffic, HTTP, event-stream drops) with no-op defaults.
//
// [buildinfo] - Version metadata injected at build time.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...           # All tests
//	go test ./pkg/layout/...    # Specific package
//	go test -run Example        # Examples only
//
// [flow]: https://pkg.go.dev/github.com/flowscope/flowscope/pkg/flow
// [layout]: https://pkg.go.dev/github.com/flowscope/flowscope/pkg/layout
// [render]: https://pkg.go.dev/github.com/flowscope/flowscope/pkg/render
// [view]: https://pkg.go.dev/github.com/flowscope/flowscope/pkg/view
// [cache]: https://pkg.go.dev/github.com/flowscope/flowscope/pkg/cache
// [runs]: https://pkg.go.dev/github.com/flowscope/flowscope/pkg/runs
// [archive]: https://pkg.go.dev/github.com/flowscope/flowscope/pkg/archive
// [config]: https://pkg.go.dev/github.com/flowscope/flowscope/pkg/config
// [errors]: https://pkg.go.dev/github.com/flowscope/flowscope/pkg/errors
// [observability]: https://pkg.go.dev/github.com/flowscope/flowscope/pkg/observability
// [buildinfo]: https://pkg.go.dev/github.com/flowscope/flowscope/pkg/buildinfo
package pkg
