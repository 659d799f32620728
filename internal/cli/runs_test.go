package cli

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/flowscope/flowscope/pkg/runs"
)

func seedRunStore(t *testing.T, path string) {
	t.Helper()

	store, err := runs.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	ctx := t.Context()
	seed := []runs.Run{
		{
			ID:        "run-1",
			Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			GitSHA:    "abc1234def5678",
			Metrics:   map[string]map[string]float64{"train": {"accuracy": 0.91}},
		},
		{
			ID:        "run-2",
			Timestamp: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		},
	}
	for _, r := range seed {
		if _, err := store.Save(ctx, r); err != nil {
			t.Fatalf("Save(%s) error = %v", r.ID, err)
		}
	}
	if err := store.SetDetails(ctx, "run-1", runs.Details{Bookmarked: true, Title: "baseline"}); err != nil {
		t.Fatalf("SetDetails() error = %v", err)
	}
}

func runRunsCommand(t *testing.T, args ...string) error {
	t.Helper()
	root := newTestCLI().RootCommand()
	root.SetArgs(append([]string{"runs"}, args...))
	return root.Execute()
}

func TestRunsListCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	seedRunStore(t, db)

	if err := runRunsCommand(t, "list", "--db", db); err != nil {
		t.Fatalf("runs list: %v", err)
	}
	if err := runRunsCommand(t, "list", "--db", db, "-n", "1"); err != nil {
		t.Fatalf("runs list with limit: %v", err)
	}
}

func TestRunsShowCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	seedRunStore(t, db)

	if err := runRunsCommand(t, "show", "run-1", "--db", db); err != nil {
		t.Fatalf("runs show: %v", err)
	}
	if err := runRunsCommand(t, "show", "ghost", "--db", db); err == nil {
		t.Fatal("expected an error for an unknown run")
	}
}

func TestRunsMergeCommand(t *testing.T) {
	dir := t.TempDir()
	mainDB := filepath.Join(dir, "main.db")
	otherDB := filepath.Join(dir, "other.db")
	seedRunStore(t, mainDB)

	other, err := runs.Open(otherDB)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	ctx := t.Context()
	for _, r := range []runs.Run{
		{ID: "run-2", Timestamp: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)},
		{ID: "run-3", Timestamp: time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)},
	} {
		if _, err := other.Save(ctx, r); err != nil {
			t.Fatalf("Save(%s) error = %v", r.ID, err)
		}
	}
	other.Close()

	if err := runRunsCommand(t, "merge", otherDB, "--db", mainDB); err != nil {
		t.Fatalf("runs merge: %v", err)
	}

	merged, err := runs.Open(mainDB)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer merged.Close()

	list, err := merged.List(ctx, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 3 {
		t.Errorf("after merge the store has %d runs, want 3", len(list))
	}
}

func TestRunsCommandsWithoutStore(t *testing.T) {
	if err := runRunsCommand(t, "list"); err == nil {
		t.Fatal("expected an error when no run store is configured")
	}
}
