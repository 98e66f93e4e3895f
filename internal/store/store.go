package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/profilesync/internal/model"
)

// Snapshot is the persisted form of every pending queue for one namespace.
type Snapshot struct {
	// Merged holds the single merged payload of each non-APPEND kind.
	// Kinds with nothing pending are absent.
	Merged map[model.ActionKind]model.Object

	// Appends holds queued APPEND payloads in enqueue order.
	Appends []model.Object
}

// Backend persists snapshots. Implementations must replace the stored
// snapshot atomically.
type Backend interface {
	Load(ctx context.Context, namespace string) (Snapshot, error)
	Save(ctx context.Context, namespace string, snap Snapshot) error
	Close() error
}

type appendEntry struct {
	hash string
	item model.Object
}

// Store is the pending mutation store for one namespace (usually the
// project token).
//
// Thread-safety: all methods are safe for concurrent use. Every read or
// modification of the queues is atomic with respect to the others.
type Store struct {
	mu        sync.Mutex
	namespace string
	backend   Backend
	logger    *slog.Logger

	merged  map[model.ActionKind]model.Object
	appends []appendEntry
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for queue diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// Open creates a Store for namespace and loads its last persisted snapshot
// from backend.
func Open(ctx context.Context, backend Backend, namespace string, opts ...Option) (*Store, error) {
	s := &Store{
		namespace: namespace,
		backend:   backend,
		logger:    slog.Default(),
		merged:    make(map[model.ActionKind]model.Object, len(model.MergedKinds)),
	}
	for _, opt := range opts {
		opt(s)
	}

	snap, err := backend.Load(ctx, namespace)
	if err != nil {
		return nil, fmt.Errorf("load pending queues: %w", err)
	}
	if err := s.restore(snap); err != nil {
		return nil, fmt.Errorf("restore pending queues: %w", err)
	}

	s.logger.Debug("pending queues loaded",
		"namespace", namespace,
		"merged_kinds", len(s.merged),
		"appends", len(s.appends),
	)
	return s, nil
}

func (s *Store) restore(snap Snapshot) error {
	for kind, obj := range snap.Merged {
		if !kind.Queued() || kind == model.KindAppend {
			return fmt.Errorf("snapshot contains non-mergeable kind %q", kind)
		}
		if len(obj) > 0 {
			s.merged[kind] = obj.Clone()
		}
	}
	for i, item := range snap.Appends {
		h, err := model.AppendHash(item)
		if err != nil {
			return fmt.Errorf("append[%d]: %w", i, err)
		}
		s.appends = append(s.appends, appendEntry{hash: h, item: item.Clone()})
	}
	return nil
}

// Namespace returns the namespace the store was opened for.
func (s *Store) Namespace() string {
	return s.namespace
}

// Enqueue merges m into the queue for its kind and persists the result.
// DELETE mutations are rejected: deleting an unknown profile has no
// defined merge semantics.
func (s *Store) Enqueue(ctx context.Context, m model.Mutation) error {
	if !m.Kind.Queued() {
		return fmt.Errorf("enqueue: %s mutations cannot be queued", m.Kind)
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A mutation is queued only once it is durable.
	prevMerged, prevAppends := s.cloneStateLocked()
	if err := s.merge(m); err != nil {
		s.merged, s.appends = prevMerged, prevAppends
		return fmt.Errorf("enqueue %s: %w", m.Kind, err)
	}
	if err := s.persistLocked(ctx); err != nil {
		s.merged, s.appends = prevMerged, prevAppends
		return fmt.Errorf("enqueue %s: %w", m.Kind, err)
	}

	s.logger.Debug("mutation queued pending identify",
		"action", m.Kind.String(),
		"namespace", s.namespace,
	)
	return nil
}

func (s *Store) cloneStateLocked() (map[model.ActionKind]model.Object, []appendEntry) {
	merged := make(map[model.ActionKind]model.Object, len(s.merged))
	for kind, q := range s.merged {
		merged[kind] = q.Clone()
	}
	appends := make([]appendEntry, len(s.appends))
	for i, e := range s.appends {
		appends[i] = appendEntry{hash: e.hash, item: e.item.Clone()}
	}
	return merged, appends
}

// Current returns a copy of the merged pending payload for kind, or
// ok=false if nothing is pending. UNSET comes back in its queued
// name -> true form.
func (s *Store) Current(kind model.ActionKind) (model.Mutation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.merged[kind]
	if len(q) == 0 {
		return model.Mutation{}, false
	}
	return model.Mutation{Kind: kind, Props: q.Clone()}, true
}

// Appends returns a copy of the pending APPEND list in enqueue order.
func (s *Store) Appends() []model.Object {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Object, len(s.appends))
	for i, e := range s.appends {
		out[i] = e.item.Clone()
	}
	return out
}

// Take removes and returns the merged pending payload for kind in one
// step, or ok=false if nothing is pending. Mutations enqueued afterwards
// start a fresh entry, so a payload is handed out at most once. It does
// not persist; callers persist once after draining.
func (s *Store) Take(kind model.ActionKind) (model.Mutation, bool) {
	if kind == model.KindAppend || !kind.Queued() {
		return model.Mutation{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.merged[kind]
	if len(q) == 0 {
		return model.Mutation{}, false
	}
	delete(s.merged, kind)
	return model.Mutation{Kind: kind, Props: q}, true
}

// TakeAppends removes and returns every pending APPEND payload in enqueue
// order. It does not persist.
func (s *Store) TakeAppends() []model.Object {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Object, len(s.appends))
	for i, e := range s.appends {
		out[i] = e.item
	}
	s.appends = nil
	return out
}

// Persist writes the current queues to the backend.
func (s *Store) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(ctx)
}

// persistLocked saves while holding mu so snapshots reach the backend in
// the order they were taken.
func (s *Store) persistLocked(ctx context.Context) error {
	if err := s.backend.Save(ctx, s.namespace, s.snapshotLocked()); err != nil {
		return fmt.Errorf("persist pending queues: %w", err)
	}
	return nil
}

// Snapshot returns a deep copy of every pending queue.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{Merged: make(map[model.ActionKind]model.Object, len(s.merged))}
	for kind, q := range s.merged {
		if len(q) > 0 {
			snap.Merged[kind] = q.Clone()
		}
	}
	for _, e := range s.appends {
		snap.Appends = append(snap.Appends, e.item.Clone())
	}
	return snap
}

// Empty reports whether nothing is pending.
func (s *Store) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.merged) == 0 && len(s.appends) == 0
}

// Close closes the backend.
func (s *Store) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}
