package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/roach88/profilesync/internal/model"
)

// BadgerConfig holds configuration for a BadgerDB-backed store.
type BadgerConfig struct {
	// Path is the directory for BadgerDB files.
	// Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence). Useful for tests.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal logs. If nil, they are discarded.
	Logger *slog.Logger
}

// DefaultBadgerConfig returns production defaults for path.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{Path: path, SyncWrites: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// BadgerBackend persists pending queue snapshots in BadgerDB.
//
// Key layout (per namespace):
//
//	pending/<namespace>/queue/<kind>     merged payload (canonical JSON)
//	pending/<namespace>/append/<seq>     one append entry, seq zero-padded
type BadgerBackend struct {
	db *badger.DB
}

// OpenBadger opens a BadgerDB instance with the given configuration.
// Creates the directory if it doesn't exist.
func OpenBadger(cfg BadgerConfig) (*BadgerBackend, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerBackend{db: db}, nil
}

func namespacePrefix(namespace string) []byte {
	return []byte("pending/" + namespace + "/")
}

// Load reads the snapshot for namespace. Zero-padded seq keys iterate in
// enqueue order.
func (b *BadgerBackend) Load(_ context.Context, namespace string) (Snapshot, error) {
	snap := Snapshot{Merged: make(map[model.ActionKind]model.Object)}
	prefix := namespacePrefix(namespace)

	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			rest := strings.TrimPrefix(string(item.Key()), string(prefix))

			raw, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("read %s: %w", item.Key(), err)
			}
			var obj model.Object
			if err := obj.UnmarshalJSON(raw); err != nil {
				return fmt.Errorf("decode %s: %w", item.Key(), err)
			}

			switch {
			case strings.HasPrefix(rest, "queue/"):
				snap.Merged[model.ActionKind(strings.TrimPrefix(rest, "queue/"))] = obj
			case strings.HasPrefix(rest, "append/"):
				snap.Appends = append(snap.Appends, obj)
			default:
				return fmt.Errorf("unexpected key %q", item.Key())
			}
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("load badger snapshot: %w", err)
	}
	return snap, nil
}

// Save replaces the snapshot for namespace in a single transaction.
func (b *BadgerBackend) Save(_ context.Context, namespace string, snap Snapshot) error {
	prefix := namespacePrefix(namespace)

	err := b.db.Update(func(txn *badger.Txn) error {
		var stale [][]byte
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return fmt.Errorf("delete %s: %w", k, err)
			}
		}

		for _, kind := range model.MergedKinds {
			obj := snap.Merged[kind]
			if len(obj) == 0 {
				continue
			}
			payload, err := model.MarshalCanonical(obj)
			if err != nil {
				return fmt.Errorf("kind %s: %w", kind, err)
			}
			key := append(append([]byte{}, prefix...), []byte("queue/"+string(kind))...)
			if err := txn.Set(key, payload); err != nil {
				return fmt.Errorf("set %s: %w", key, err)
			}
		}

		for i, item := range snap.Appends {
			payload, err := model.MarshalCanonical(item)
			if err != nil {
				return fmt.Errorf("append[%d]: %w", i, err)
			}
			key := append(append([]byte{}, prefix...), []byte(fmt.Sprintf("append/%010d", i+1))...)
			if err := txn.Set(key, payload); err != nil {
				return fmt.Errorf("set %s: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save badger snapshot: %w", err)
	}
	return nil
}

// Close closes the database.
func (b *BadgerBackend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}
