// Package runs persists recorded experiment runs in a SQLite database.
//
// A run is a point-in-time recording of metric values per node, captured by
// whatever executed the pipeline. Runs arrive either embedded in a snapshot
// or from another runs database via [Store.Merge]; the store keeps them so
// metric series can be layered onto node detail views. The graph model
// itself stays stateless, rebuilt from each snapshot.
package runs

import "time"

// Run is one recorded experiment run.
type Run struct {
	ID        string                        `json:"id"`
	Timestamp time.Time                     `json:"timestamp"`
	GitSHA    string                        `json:"git_sha,omitempty"`
	Metrics   map[string]map[string]float64 `json:"metrics,omitempty"` // node id -> metric name -> value
	Details   Details                       `json:"details"`
}

// Details is the user-editable annotation on a run. It lives in its own
// table so re-importing a run never clobbers it.
type Details struct {
	Bookmarked bool   `json:"bookmarked"`
	Title      string `json:"title,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// MetricPoint is one observation of a metric, ordered by run time.
type MetricPoint struct {
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}
