package archive_test

import (
	"context"
	"testing"
	"time"

	"github.com/flowscope/flowscope/pkg/archive"
	"github.com/flowscope/flowscope/pkg/errors"
	"github.com/flowscope/flowscope/pkg/flow"
	"github.com/flowscope/flowscope/pkg/view"
)

func published(title string, created time.Time) archive.Published {
	return archive.Published{
		Title:     title,
		CreatedAt: created,
		Snapshot: &flow.Snapshot{
			Nodes: []flow.SnapshotNode{{ID: "train", Kind: flow.KindTask}},
		},
		State: &view.State{
			Nodes: []view.StateNode{{ID: "train", Name: "train", Kind: flow.KindTask}},
		},
	}
}

func TestMemoryStorePutGet(t *testing.T) {
	store := archive.NewMemoryStore()
	ctx := context.Background()

	id, err := store.Put(ctx, published("baseline", time.Time{}))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated id, got empty string")
	}

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "baseline" {
		t.Errorf("Title = %q, want %q", got.Title, "baseline")
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not defaulted")
	}
	if got.Snapshot == nil || len(got.Snapshot.Nodes) != 1 {
		t.Error("snapshot payload not stored")
	}
	if got.State == nil || got.State.Nodes[0].ID != "train" {
		t.Error("state payload not stored")
	}

	if _, err := store.Get(ctx, "ghost"); !errors.Is(err, errors.ErrCodeViewNotFound) {
		t.Errorf("Get(ghost) error = %v, want %s", err, errors.ErrCodeViewNotFound)
	}
}

func TestMemoryStoreReplace(t *testing.T) {
	store := archive.NewMemoryStore()
	ctx := context.Background()

	pub := published("first", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	pub.ID = "fixed"
	if _, err := store.Put(ctx, pub); err != nil {
		t.Fatalf("Put: %v", err)
	}

	pub.Title = "second"
	if _, err := store.Put(ctx, pub); err != nil {
		t.Fatalf("Put(replace): %v", err)
	}

	got, err := store.Get(ctx, "fixed")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "second" {
		t.Errorf("Title after replace = %q, want %q", got.Title, "second")
	}
	list, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("len(List) = %d, want 1", len(list))
	}
}

func TestMemoryStoreListNewestFirst(t *testing.T) {
	store := archive.NewMemoryStore()
	ctx := context.Background()

	day := func(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC) }
	for _, p := range []struct {
		id  string
		day int
	}{{"mid", 2}, {"new", 3}, {"old", 1}} {
		pub := published(p.id, day(p.day))
		pub.ID = p.id
		if _, err := store.Put(ctx, pub); err != nil {
			t.Fatalf("Put(%s): %v", p.id, err)
		}
	}

	list, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var ids []string
	for _, pub := range list {
		ids = append(ids, pub.ID)
	}
	if len(ids) != 3 || ids[0] != "new" || ids[1] != "mid" || ids[2] != "old" {
		t.Errorf("List order = %v, want [new mid old]", ids)
	}
	// Index entries carry no payloads.
	if list[0].Snapshot != nil || list[0].State != nil {
		t.Error("List returned payloads")
	}

	top, err := store.List(ctx, 1)
	if err != nil {
		t.Fatalf("List(1): %v", err)
	}
	if len(top) != 1 || top[0].ID != "new" {
		t.Errorf("List(1) = %v, want [new]", top)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	store := archive.NewMemoryStore()
	ctx := context.Background()

	pub := published("gone soon", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	pub.ID = "doomed"
	if _, err := store.Put(ctx, pub); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := store.Delete(ctx, "doomed"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "doomed"); !errors.Is(err, errors.ErrCodeViewNotFound) {
		t.Errorf("Get after delete error = %v, want %s", err, errors.ErrCodeViewNotFound)
	}
	if err := store.Delete(ctx, "doomed"); !errors.Is(err, errors.ErrCodeViewNotFound) {
		t.Errorf("second Delete error = %v, want %s", err, errors.ErrCodeViewNotFound)
	}
}
