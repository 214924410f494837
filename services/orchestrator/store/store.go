// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists conversation state in BadgerDB.
//
// BadgerDB gives local embedded storage with low-latency access. Sessions
// are stored as versioned JSON envelopes under "session/<id>"; writers must
// present the version they loaded, so concurrent turns for the same session
// cannot silently overwrite each other.
//
// Thread Safety: the returned store is safe for concurrent use; conflicting
// writers are rejected with ErrVersionConflict.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/autofinlabs/autofinance/services/orchestrator/datatypes"
	"github.com/dgraph-io/badger/v4"
)

var (
	// ErrNotFound is returned when no state exists for a session id.
	ErrNotFound = errors.New("session state not found")

	// ErrVersionConflict is returned when the expected version does not
	// match the stored version, i.e. another writer committed first.
	ErrVersionConflict = errors.New("session state version conflict")
)

const sessionKeyPrefix = "session/"

// VersionedState is a session state together with its storage version.
// Version 0 means "not yet stored"; the first successful save writes
// version 1.
type VersionedState struct {
	Version int64                    `json:"version"`
	State   *datatypes.SessionState `json:"state"`
}

// StateStore is the durable session state contract used by the controller.
type StateStore interface {
	// Load returns the current versioned state, or ErrNotFound.
	Load(ctx context.Context, sessionID string) (*VersionedState, error)

	// CompareAndSave writes state if and only if the stored version still
	// equals expectedVersion (0 for a brand-new session). Returns
	// ErrVersionConflict otherwise.
	CompareAndSave(ctx context.Context, sessionID string, expectedVersion int64, state *datatypes.SessionState) error

	// Delete removes a session. Deleting a missing session is a no-op.
	Delete(ctx context.Context, sessionID string) error

	// ListSessionIDs returns the ids of all stored sessions.
	ListSessionIDs(ctx context.Context) ([]string, error)
}

// BadgerStore implements StateStore on a BadgerDB instance.
type BadgerStore struct {
	db *badger.DB
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Open opens a persistent BadgerStore at path, creating the directory if
// needed. SyncWrites is enabled: a committed turn must survive a crash.
func Open(path string, logger *slog.Logger) (*BadgerStore, error) {
	if path == "" {
		return nil, errors.New("path is required for persistent store")
	}
	if err := os.MkdirAll(path, 0750); err != nil {
		return nil, fmt.Errorf("create store directory %s: %w", path, err)
	}

	opts := badger.DefaultOptions(path).
		WithSyncWrites(true).
		WithNumVersionsToKeep(1)
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// OpenInMemory opens an in-memory store for testing. Data is lost on Close.
func OpenInMemory() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// RunGC triggers one value-log garbage collection pass. ErrNoRewrite (no
// work to do) is not an error.
func (s *BadgerStore) RunGC(ratio float64) {
	err := s.db.RunValueLogGC(ratio)
	if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		slog.Warn("badger value log GC error", "error", err)
	}
}

// StartGCLoop runs periodic GC until ctx is cancelled.
func (s *BadgerStore) StartGCLoop(ctx context.Context, interval time.Duration, ratio float64) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunGC(ratio)
			}
		}
	}()
}

// Load implements StateStore.
func (s *BadgerStore) Load(ctx context.Context, sessionID string) (*VersionedState, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	var envelope VersionedState
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(sessionKeyPrefix + sessionID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &envelope)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	return &envelope, nil
}

// CompareAndSave implements StateStore. The version check and the write
// happen inside one Badger transaction; Badger's own conflict detection
// additionally rejects racing transactions, which is mapped to
// ErrVersionConflict as well.
func (s *BadgerStore) CompareAndSave(ctx context.Context, sessionID string,
	expectedVersion int64, state *datatypes.SessionState) error {

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	key := []byte(sessionKeyPrefix + sessionID)
	err := s.db.Update(func(txn *badger.Txn) error {
		var current int64
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			current = 0
		case err != nil:
			return err
		default:
			var envelope VersionedState
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &envelope)
			}); err != nil {
				return err
			}
			current = envelope.Version
		}

		if current != expectedVersion {
			return ErrVersionConflict
		}

		payload, err := json.Marshal(VersionedState{Version: expectedVersion + 1, State: state})
		if err != nil {
			return err
		}
		return txn.Set(key, payload)
	})
	if errors.Is(err, badger.ErrConflict) {
		return ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("save session %s: %w", sessionID, err)
	}
	return nil
}

// Delete implements StateStore.
func (s *BadgerStore) Delete(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(sessionKeyPrefix + sessionID))
	})
	if err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

// ListSessionIDs implements StateStore.
func (s *BadgerStore) ListSessionIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(sessionKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			ids = append(ids, strings.TrimPrefix(key, sessionKeyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return ids, nil
}

var _ StateStore = (*BadgerStore)(nil)
