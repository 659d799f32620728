package view

import (
	"github.com/flowscope/flowscope/pkg/flow"
	"github.com/flowscope/flowscope/pkg/layout"
	"github.com/flowscope/flowscope/pkg/runs"
)

// State is the wire payload describing everything a client needs to draw
// the current view: the visible nodes with their geometry, the routed
// effective edges, pipeline and filter state, and any banner conditions
// (load failure, fallback drawing). It is what the HTTP API serves and
// what the render sinks consume.
type State struct {
	Nodes     []StateNode     `json:"nodes" bson:"nodes"`
	Edges     []StateEdge     `json:"edges" bson:"edges"`
	Pipelines []StatePipeline `json:"pipelines,omitempty" bson:"pipelines,omitempty"`
	Tags      []string        `json:"tags,omitempty" bson:"tags,omitempty"`
	Filters   Filters         `json:"filters" bson:"filters"`
	Focus     string          `json:"focus,omitempty" bson:"focus,omitempty"`
	Bounds    layout.Bounds   `json:"bounds" bson:"bounds"`
	Stats     Stats           `json:"stats" bson:"stats"`
	GraphHash string          `json:"graph_hash,omitempty" bson:"graph_hash,omitempty"`

	// Fallback reports that the drawing came from the single-column
	// fallback after an internal layout failure.
	Fallback bool `json:"fallback,omitempty" bson:"fallback,omitempty"`

	// LoadError carries the user message of the most recent rejected
	// snapshot. The rest of the state still describes the last good graph.
	LoadError string `json:"load_error,omitempty" bson:"load_error,omitempty"`
}

// StateNode is one visible node with its computed geometry. X and Y are
// the node's center. When a focus is active, exactly one of Highlighted or
// Faded is set on every node.
type StateNode struct {
	ID          string    `json:"id" bson:"id"`
	Name        string    `json:"name" bson:"name"`
	Kind        flow.Kind `json:"kind" bson:"kind"`
	Tags        []string  `json:"tags,omitempty" bson:"tags,omitempty"`
	Pipeline    string    `json:"pipeline,omitempty" bson:"pipeline,omitempty"`
	Rank        int       `json:"rank" bson:"rank"`
	Order       int       `json:"order" bson:"order"`
	X           float64   `json:"x" bson:"x"`
	Y           float64   `json:"y" bson:"y"`
	Width       float64   `json:"width" bson:"width"`
	Height      float64   `json:"height" bson:"height"`
	Highlighted bool      `json:"highlighted,omitempty" bson:"highlighted,omitempty"`
	Faded       bool      `json:"faded,omitempty" bson:"faded,omitempty"`
}

// StateEdge is one routed effective edge.
type StateEdge struct {
	Source string         `json:"source" bson:"source"`
	Target string         `json:"target" bson:"target"`
	Points []layout.Point `json:"points" bson:"points"`
}

// StatePipeline is one modular pipeline with its collapse state, listed
// whether or not its container is currently visible.
type StatePipeline struct {
	ID        string `json:"id" bson:"id"`
	Name      string `json:"name" bson:"name"`
	Parent    string `json:"parent,omitempty" bson:"parent,omitempty"`
	Collapsed bool   `json:"collapsed" bson:"collapsed"`
}

// Filters is the active filter set.
type Filters struct {
	Tags        []string    `json:"tags,omitempty" bson:"tags,omitempty"`
	Search      string      `json:"search,omitempty" bson:"search,omitempty"`
	HiddenKinds []flow.Kind `json:"hidden_kinds,omitempty" bson:"hidden_kinds,omitempty"`
}

// Stats summarizes graph and view sizes for UI chrome.
type Stats struct {
	TotalNodes   int `json:"total_nodes" bson:"total_nodes"`
	TotalEdges   int `json:"total_edges" bson:"total_edges"`
	Pipelines    int `json:"pipelines" bson:"pipelines"`
	VisibleNodes int `json:"visible_nodes" bson:"visible_nodes"`
	VisibleEdges int `json:"visible_edges" bson:"visible_edges"`
}

// NodeDetail is the expanded metadata for one node, served on demand when
// a client selects it.
type NodeDetail struct {
	StateNode
	Inputs       []string                      `json:"inputs,omitempty"`
	Outputs      []string                      `json:"outputs,omitempty"`
	PipelinePath []string                      `json:"pipeline_path,omitempty"`
	Visible      bool                          `json:"visible"`
	Metrics      map[string][]runs.MetricPoint `json:"metrics,omitempty"`
}
