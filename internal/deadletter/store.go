// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

// Package deadletter keeps fanout envelopes that could not be published after
// all retries, so that an operator can inspect or replay them.
//
// The store is local to one instance and backed by BadgerDB. Entries expire
// through Badger's TTL support.
package deadletter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/murmur/internal/logging"
)

var (
	// ErrNotFound is returned by Get and Delete for unknown ids.
	ErrNotFound = errors.New("dead letter entry not found")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("dead letter store is closed")
)

const keyPrefix = "dlq:"

// Entry is one failed envelope.
type Entry struct {
	ID           string          `json:"id"`
	Mode         string          `json:"mode"`
	Type         string          `json:"type"`
	PartitionKey string          `json:"partition_key,omitempty"`
	Envelope     json.RawMessage `json:"envelope"`
	Error        string          `json:"error"`
	Attempts     int             `json:"attempts"`
	FailedAt     time.Time       `json:"failed_at"`
}

// Store persists dead letter entries.
type Store interface {
	Save(ctx context.Context, entry *Entry) error
	Get(ctx context.Context, id string) (*Entry, error)
	List(ctx context.Context, limit int) ([]*Entry, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
	Close() error
}

// Config configures a BadgerStore.
type Config struct {
	Path string
	TTL  time.Duration

	// InMemory keeps everything in RAM; Path is ignored. Used by tests.
	InMemory bool
}

// BadgerStore is a Store on BadgerDB.
type BadgerStore struct {
	db     *badger.DB
	ttl    time.Duration
	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the store.
func Open(cfg Config) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("dead letter path is required")
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Dur("ttl", cfg.TTL).
		Msg("Dead letter store opened")

	return &BadgerStore{db: db, ttl: cfg.TTL}, nil
}

// Save writes entry, assigning an id and timestamp when missing.
func (s *BadgerStore) Save(_ context.Context, entry *Entry) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.FailedAt.IsZero() {
		entry.FailedAt = time.Now()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal dead letter entry: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(keyPrefix+entry.ID), data)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		return txn.SetEntry(e)
	})
}

// Get returns the entry with the given id.
func (s *BadgerStore) Get(_ context.Context, id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var entry Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns up to limit entries, oldest first. limit <= 0 returns all.
func (s *BadgerStore) List(ctx context.Context, limit int) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var entries []*Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var entry Entry
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("Skipping unreadable dead letter entry")
				continue
			}
			entries = append(entries, &entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate dead letters: %w", err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].FailedAt.Before(entries[j].FailedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Delete removes the entry with the given id.
func (s *BadgerStore) Delete(_ context.Context, id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte(keyPrefix + id)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return txn.Delete(key)
	})
}

// Count returns the number of live entries.
func (s *BadgerStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}

	var n int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Close flushes and closes the database. Safe to call twice.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// NopStore discards everything. It is used when dead letters are disabled.
type NopStore struct{}

// Save implements Store.
func (NopStore) Save(context.Context, *Entry) error { return nil }

// Get implements Store.
func (NopStore) Get(context.Context, string) (*Entry, error) { return nil, ErrNotFound }

// List implements Store.
func (NopStore) List(context.Context, int) ([]*Entry, error) { return nil, nil }

// Delete implements Store.
func (NopStore) Delete(context.Context, string) error { return ErrNotFound }

// Count implements Store.
func (NopStore) Count(context.Context) (int64, error) { return 0, nil }

// Close implements Store.
func (NopStore) Close() error { return nil }
