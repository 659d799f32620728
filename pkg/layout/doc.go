// Package layout computes layered drawings of pipeline graphs.
//
// # Overview
//
// Given an effective graph projection (visible nodes and substituted edges
// from the flow package), [Compute] produces a [Result] assigning every node
// a rank, an order within its rank, and pixel geometry, and every edge a
// polyline routed through the layer structure. The drawing follows the
// classic Sugiyama pipeline:
//
//  1. Rank assignment: longest path from the sources via a topological
//     sweep, so every edge points from a strictly lower rank to a strictly
//     higher one.
//  2. Subdivision: edges spanning more than one rank are broken into
//     single-rank segments through synthetic waypoint nodes.
//  3. Ordering: barycenter sweeps alternate top-down and bottom-up, followed
//     by adjacent-transpose refinement scored with a Fenwick-tree crossing
//     count. The pass budget is fixed, so worst-case latency is bounded.
//  4. Horizontal placement: iterative relaxation pulls nodes toward the mean
//     of their neighbors while keeping a minimum separation, until movement
//     falls below a tolerance or the iteration cap is reached.
//  5. Vertical placement: rank index times the configured rank separation.
//  6. Routing: each edge becomes a polyline through its waypoint chain, with
//     endpoints snapped to node boundary anchors.
//
// # Determinism
//
// Every phase is deterministic. Ties in the ordering heuristic fall back to
// the previous layout's order when a seed is supplied, and to snapshot
// sequence otherwise, so recomputing an unchanged graph reproduces the
// drawing exactly and a relayout after a collapse stays visually close to
// its predecessor.
//
// # Failure
//
// Compute fails only when the input is not a DAG, which a validated flow
// graph cannot produce; treat it as an internal consistency signal. The
// [SingleColumn] fallback always succeeds and renders every node in one
// vertical column.
package layout
