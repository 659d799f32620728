package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/flowscope/flowscope/pkg/errors"
	"github.com/flowscope/flowscope/pkg/flow"
)

// schema contains the full store schema. Blobs hold the run payload as
// JSON; user annotations live in their own table keyed by run id.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    blob TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);

CREATE TABLE IF NOT EXISTS user_run_details (
    run_id TEXT PRIMARY KEY,
    bookmarked INTEGER NOT NULL DEFAULT 0,
    title TEXT NOT NULL DEFAULT '',
    notes TEXT NOT NULL DEFAULT ''
);
`

// runBlob is the JSON stored in the blob column. The timestamp lives in
// its own column so listing can order without decoding.
type runBlob struct {
	GitSHA  string                        `json:"git_sha,omitempty"`
	Metrics map[string]map[string]float64 `json:"metrics,omitempty"`
}

// Store is a runs database. It is safe for concurrent use; all methods
// take a context and return coded errors.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens a runs database at the given path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "creating runs directory")
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "opening runs database")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.ErrCodeStore, err, "pinging runs database")
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenMemory creates an in-memory runs database for testing. The pool is
// pinned to one connection; each connection would otherwise get its own
// empty database.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "opening in-memory database")
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: ":memory:"}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "running migrations")
	}
	return nil
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Save inserts a run. An empty id gets a fresh UUID, a zero timestamp the
// current time. Saving an id that already exists is a conflict.
func (s *Store) Save(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now().UTC()
	}

	blob, err := json.Marshal(runBlob{GitSHA: run.GitSHA, Metrics: run.Metrics})
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeStore, err, "marshalling run %s", run.ID)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO runs (id, blob, created_at) VALUES (?, ?, ?)`,
		run.ID, string(blob), run.Timestamp.UTC().Format(time.RFC3339))
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeStore, err, "inserting run %s", run.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", errors.New(errors.ErrCodeConflict, "run %q already recorded", run.ID)
	}
	return run.ID, nil
}

// Get retrieves a single run with its annotations.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT r.id, r.blob, r.created_at, d.bookmarked, d.title, d.notes
		FROM runs r
		LEFT JOIN user_run_details d ON d.run_id = r.id
		WHERE r.id = ?`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeRunNotFound, "run %q not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "reading run %s", id)
	}
	return run, nil
}

// List returns runs newest first. A limit of zero or less returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT r.id, r.blob, r.created_at, d.bookmarked, d.title, d.notes
		FROM runs r
		LEFT JOIN user_run_details d ON d.run_id = r.id
		ORDER BY r.created_at DESC, r.rowid DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "listing runs")
	}
	defer rows.Close()

	var list []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStore, err, "reading run row")
		}
		list = append(list, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "listing runs")
	}
	return list, nil
}

// SetDetails stores the user annotations for a run, replacing previous
// ones.
func (s *Store) SetDetails(ctx context.Context, runID string, d Details) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&one)
	if err == sql.ErrNoRows {
		return errors.New(errors.ErrCodeRunNotFound, "run %q not found", runID)
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "reading run %s", runID)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_run_details (run_id, bookmarked, title, notes) VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET bookmarked = excluded.bookmarked, title = excluded.title, notes = excluded.notes`,
		runID, boolInt(d.Bookmarked), d.Title, d.Notes)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "annotating run %s", runID)
	}
	return nil
}

// MetricSeries returns the recorded values of one metric on one node,
// oldest run first. Runs that did not record the metric are skipped.
func (s *Store) MetricSeries(ctx context.Context, nodeID, metric string) ([]MetricPoint, error) {
	var series []MetricPoint
	err := s.scanChronological(ctx, func(id string, ts time.Time, blob runBlob) {
		if v, ok := blob.Metrics[nodeID][metric]; ok {
			series = append(series, MetricPoint{RunID: id, Timestamp: ts, Value: v})
		}
	})
	return series, err
}

// NodeMetrics returns every metric recorded on one node across all runs,
// each series oldest run first.
func (s *Store) NodeMetrics(ctx context.Context, nodeID string) (map[string][]MetricPoint, error) {
	series := make(map[string][]MetricPoint)
	err := s.scanChronological(ctx, func(id string, ts time.Time, blob runBlob) {
		for metric, v := range blob.Metrics[nodeID] {
			series[metric] = append(series[metric], MetricPoint{RunID: id, Timestamp: ts, Value: v})
		}
	})
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, nil
	}
	return series, nil
}

func (s *Store) scanChronological(ctx context.Context, visit func(id string, ts time.Time, blob runBlob)) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, blob, created_at FROM runs ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "scanning runs")
	}
	defer rows.Close()

	for rows.Next() {
		var id, blobJSON, created string
		if err := rows.Scan(&id, &blobJSON, &created); err != nil {
			return errors.Wrap(errors.ErrCodeStore, err, "reading run row")
		}
		var blob runBlob
		if err := json.Unmarshal([]byte(blobJSON), &blob); err != nil {
			// Foreign rows merged from elsewhere may carry blobs this
			// version cannot decode; they contribute no points.
			continue
		}
		visit(id, parseTime(created), blob)
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "scanning runs")
	}
	return nil
}

// Import records the runs carried by a snapshot. Entries whose id is
// already stored are skipped, so reloading a snapshot is idempotent. It
// returns the number of newly recorded runs.
func (s *Store) Import(ctx context.Context, entries []flow.RunEntry) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeStore, err, "starting import")
	}
	defer tx.Rollback()

	imported := 0
	for _, entry := range entries {
		id := entry.ID
		if id == "" {
			id = uuid.New().String()
		}
		ts := parseTime(entry.Timestamp)
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		blob, err := json.Marshal(runBlob{GitSHA: entry.GitSHA, Metrics: entry.Metrics})
		if err != nil {
			return 0, errors.Wrap(errors.ErrCodeStore, err, "marshalling run %s", id)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO runs (id, blob, created_at) VALUES (?, ?, ?)`,
			id, string(blob), ts.UTC().Format(time.RFC3339))
		if err != nil {
			return 0, errors.Wrap(errors.ErrCodeStore, err, "importing run %s", id)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			imported++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(errors.ErrCodeStore, err, "committing import")
	}
	return imported, nil
}

// Merge copies runs from another runs database into this one, skipping
// ids already present, and returns the number copied. Only the runs table
// merges; annotations stay local to each database.
func (s *Store) Merge(ctx context.Context, otherPath string) (int, error) {
	other, err := sql.Open("sqlite", "file:"+otherPath+"?mode=ro")
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeStore, err, "opening %s", otherPath)
	}
	defer other.Close()

	rows, err := other.QueryContext(ctx, `SELECT id, blob, created_at FROM runs`)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeStore, err, "reading runs from %s", otherPath)
	}
	defer rows.Close()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeStore, err, "starting merge")
	}
	defer tx.Rollback()

	merged := 0
	for rows.Next() {
		var id, blob, created string
		if err := rows.Scan(&id, &blob, &created); err != nil {
			return 0, errors.Wrap(errors.ErrCodeStore, err, "reading run row from %s", otherPath)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO runs (id, blob, created_at) VALUES (?, ?, ?)`, id, blob, created)
		if err != nil {
			return 0, errors.Wrap(errors.ErrCodeStore, err, "merging run %s", id)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			merged++
		}
	}
	if err := rows.Err(); err != nil {
		return 0, errors.Wrap(errors.ErrCodeStore, err, "reading runs from %s", otherPath)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(errors.ErrCodeStore, err, "committing merge")
	}
	return merged, nil
}

type runScanner interface {
	Scan(dest ...any) error
}

func scanRun(sc runScanner) (*Run, error) {
	var (
		run        Run
		blobJSON   string
		created    string
		bookmarked sql.NullBool
		title      sql.NullString
		notes      sql.NullString
	)
	if err := sc.Scan(&run.ID, &blobJSON, &created, &bookmarked, &title, &notes); err != nil {
		return nil, err
	}

	var blob runBlob
	if err := json.Unmarshal([]byte(blobJSON), &blob); err == nil {
		run.GitSHA = blob.GitSHA
		run.Metrics = blob.Metrics
	}
	run.Timestamp = parseTime(created)
	run.Details = Details{
		Bookmarked: bookmarked.Valid && bookmarked.Bool,
		Title:      title.String,
		Notes:      notes.String,
	}
	return &run, nil
}

// parseTime accepts the store's own RFC 3339 format and sqlite's
// datetime() format, used by databases merged in from elsewhere.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.DateTime, s); err == nil {
		return t
	}
	return time.Time{}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
