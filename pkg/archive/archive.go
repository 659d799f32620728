// Package archive stores published views: a snapshot together with the
// exact state it was being viewed in, under a stable id that can be
// shared. Unlike the cache, the archive is a registry; entries live until
// deleted.
//
// MongoStore is the production backend, MemoryStore serves tests and
// single-process use.
package archive

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowscope/flowscope/pkg/errors"
	"github.com/flowscope/flowscope/pkg/flow"
	"github.com/flowscope/flowscope/pkg/view"
)

// Published is one archived view.
type Published struct {
	ID        string         `json:"id" bson:"_id"`
	Title     string         `json:"title,omitempty" bson:"title,omitempty"`
	CreatedAt time.Time      `json:"created_at" bson:"created_at"`
	Snapshot  *flow.Snapshot `json:"snapshot,omitempty" bson:"snapshot,omitempty"`
	State     *view.State    `json:"state,omitempty" bson:"state,omitempty"`
}

// Store archives published views.
type Store interface {
	// Put archives a view and returns its id. An empty id gets a fresh
	// UUID; an existing id is replaced.
	Put(ctx context.Context, pub Published) (string, error)

	// Get retrieves one published view with its full payload.
	Get(ctx context.Context, id string) (*Published, error)

	// List returns index entries newest first, without snapshot and state
	// payloads. A limit of zero or less returns all.
	List(ctx context.Context, limit int) ([]Published, error)

	// Delete removes a published view.
	Delete(ctx context.Context, id string) error

	// Close releases any resources held by the store.
	Close(ctx context.Context) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Published
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Published)}
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, pub Published) (string, error) {
	if pub.ID == "" {
		pub.ID = uuid.New().String()
	}
	if pub.CreatedAt.IsZero() {
		pub.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[pub.ID] = pub
	return pub.ID, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*Published, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pub, ok := s.entries[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeViewNotFound, "published view %q not found", id)
	}
	return &pub, nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, limit int) ([]Published, error) {
	s.mu.RLock()
	list := make([]Published, 0, len(s.entries))
	for _, pub := range s.entries {
		pub.Snapshot = nil
		pub.State = nil
		list = append(list, pub)
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return errors.New(errors.ErrCodeViewNotFound, "published view %q not found", id)
	}
	delete(s.entries, id)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close(context.Context) error { return nil }
