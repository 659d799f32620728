// Package flow provides the pipeline graph model: typed nodes, edges, and
// nested modular pipelines, with collapse, filter, and focus state layered
// on top.
//
// # Overview
//
// Flowscope renders data pipelines as layered flowcharts. This package owns
// the model those flowcharts are computed from: the full node/edge set as
// loaded from a snapshot, the modular-pipeline membership forest, and the
// interaction state (collapsed pipelines, tag and search filters, kind
// visibility, focus) that together determine which nodes and edges are
// currently visible.
//
// # Building a Graph
//
// A [Graph] is built in full from a [Snapshot] with [Build]. Build validates
// the snapshot and fails with a structured load error on duplicate
// identifiers, dangling edges, membership that is not a strict forest, or
// cycles; a failed Build leaves no partial state, so callers keep their
// previous graph:
//
//	snap, err := flow.ParseSnapshot(data)
//	if err != nil { ... }
//	g, err := flow.Build(snap)
//	if err != nil { ... }
//
// # Effective Graph
//
// The effective graph is the projection the layout engine consumes: visible
// nodes plus effective edges. When a modular pipeline is collapsed its
// members are hidden and edges touching them are rewritten to the nearest
// visible enclosing container; parallel duplicates are deduplicated and
// self-edges dropped. [Graph.View] returns the current projection, and every
// mutating operation ([Graph.SetCollapsed], [Graph.SetVisibility],
// [Graph.SetTagFilter], [Graph.SetSearchFilter], [Graph.SetKindVisible])
// returns the new effective edge set so callers never recompute the
// substitution themselves.
//
// Build guarantees that the effective graph is acyclic for every combination
// of collapse states, so downstream layered layout never observes a cycle.
//
// # Concurrency
//
// Graph instances are not safe for concurrent use. The view package
// serializes commands and layout passes behind a single mutex; use it when
// multiple goroutines interact with the same graph.
package flow
