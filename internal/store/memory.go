package store

import (
	"context"
	"sync"

	"github.com/roach88/profilesync/internal/model"
)

// MemoryBackend keeps snapshots in process memory.
// Snapshots are deep-copied on Save and Load, so callers never share state
// with the backend.
type MemoryBackend struct {
	mu    sync.Mutex
	snaps map[string]Snapshot
	saves int
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{snaps: make(map[string]Snapshot)}
}

// Load returns the last saved snapshot for namespace (empty if none).
func (b *MemoryBackend) Load(_ context.Context, namespace string) (Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cloneSnapshot(b.snaps[namespace]), nil
}

// Save replaces the snapshot for namespace.
func (b *MemoryBackend) Save(_ context.Context, namespace string, snap Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snaps[namespace] = cloneSnapshot(snap)
	b.saves++
	return nil
}

// Saves returns how many times Save has been called.
func (b *MemoryBackend) Saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

// Close is a no-op.
func (b *MemoryBackend) Close() error {
	return nil
}

func cloneSnapshot(snap Snapshot) Snapshot {
	out := Snapshot{Merged: make(map[model.ActionKind]model.Object, len(snap.Merged))}
	for k, v := range snap.Merged {
		out.Merged[k] = v.Clone()
	}
	for _, item := range snap.Appends {
		out.Appends = append(out.Appends, item.Clone())
	}
	return out
}
