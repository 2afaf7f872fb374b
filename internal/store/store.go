// Package store remembers which listing identities have already been
// alerted on, across runs and restarts.
package store

import (
	"context"
	"sort"
	"sync"

	"sjsage522/consoledealworker/logger"
	werrors "sjsage522/consoledealworker/pkg/errors"
)

// Backend persists the seen set
type Backend interface {
	// Load returns every identity persisted so far
	Load(ctx context.Context) ([]string, error)
	// Save persists ids in addition to what is already stored. all is the
	// complete set after the addition, for backends that rewrite in full.
	Save(ctx context.Context, ids []string, all []string) error
	// Clear removes every persisted identity
	Clear(ctx context.Context) error
}

// Store is the in-memory seen set in front of a Backend. Identities are only
// ever added, except by Reset.
type Store struct {
	mu      sync.RWMutex
	backend Backend
	seen    map[string]struct{}
	pending map[string]struct{}
}

// New creates an empty store; call Load before use
func New(backend Backend) *Store {
	return &Store{
		backend: backend,
		seen:    make(map[string]struct{}),
		pending: make(map[string]struct{}),
	}
}

// Load replaces the in-memory set with the persisted one
func (s *Store) Load(ctx context.Context) error {
	ids, err := s.backend.Load(ctx)
	if err != nil {
		return werrors.NewStore("store", "load seen listings", err)
	}

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}

	s.mu.Lock()
	s.seen = seen
	s.pending = make(map[string]struct{})
	s.mu.Unlock()

	logger.ForStore().Info().Int("count", len(seen)).Msg("Loaded seen listings")
	return nil
}

// IsNew reports whether id has neither been persisted nor marked
func (s *Store) IsNew(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.seen[id]; ok {
		return false
	}
	_, ok := s.pending[id]
	return !ok
}

// MarkSeen records id in memory; Flush persists it
func (s *Store) MarkSeen(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		return
	}
	s.pending[id] = struct{}{}
}

// Flush persists every identity marked since the last flush. On failure the
// marks stay pending.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return nil
	}
	ids := keys(s.pending)
	if err := s.persistLocked(ctx, ids); err != nil {
		return err
	}
	s.pending = make(map[string]struct{})
	return nil
}

// Commit persists ids and only then adds them to the in-memory set. If the
// backend fails the store is left exactly as it was.
func (s *Store) Commit(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := make([]string, 0, len(ids))
	dup := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := s.seen[id]; ok || dup[id] {
			continue
		}
		dup[id] = true
		fresh = append(fresh, id)
	}
	if len(fresh) == 0 {
		return nil
	}

	if err := s.persistLocked(ctx, fresh); err != nil {
		return err
	}
	for _, id := range fresh {
		delete(s.pending, id)
	}
	return nil
}

func (s *Store) persistLocked(ctx context.Context, ids []string) error {
	all := make([]string, 0, len(s.seen)+len(ids))
	for id := range s.seen {
		all = append(all, id)
	}
	all = append(all, ids...)
	sort.Strings(all)

	if err := s.backend.Save(ctx, ids, all); err != nil {
		return werrors.NewStore("store", "persist seen listings", err)
	}
	for _, id := range ids {
		s.seen[id] = struct{}{}
	}

	logger.ForStore().Debug().
		Int("added", len(ids)).
		Int("total", len(s.seen)).
		Msg("Persisted seen listings")
	return nil
}

// Snapshot returns the persisted identities in sorted order
func (s *Store) Snapshot() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return keys(s.seen)
}

// Len returns the number of persisted identities
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}

// Reset forgets every identity, persisted or pending
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Clear(ctx); err != nil {
		return werrors.NewStore("store", "clear seen listings", err)
	}
	s.seen = make(map[string]struct{})
	s.pending = make(map[string]struct{})
	logger.ForStore().Info().Msg("Cleared seen listings")
	return nil
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
