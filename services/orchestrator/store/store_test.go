// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"testing"

	"github.com/autofinlabs/autofinance/services/orchestrator/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBadgerStore_LoadMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerStore_SaveAndLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	state := datatypes.NewSessionState("sess-1")
	state.AppendMessage(datatypes.RoleUser, "hello")

	require.NoError(t, s.CompareAndSave(ctx, "sess-1", 0, state))

	loaded, err := s.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), loaded.Version)
	assert.Equal(t, "sess-1", loaded.State.SessionID)
	assert.Equal(t, datatypes.PhaseOnboarding, loaded.State.Phase)
	require.Len(t, loaded.State.Messages, 1)
	assert.Equal(t, "hello", loaded.State.Messages[0].Content)
}

func TestBadgerStore_VersionIncrements(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	state := datatypes.NewSessionState("sess-1")
	require.NoError(t, s.CompareAndSave(ctx, "sess-1", 0, state))

	state.Phase = datatypes.PhaseAwaitingSearchConfirmation
	require.NoError(t, s.CompareAndSave(ctx, "sess-1", 1, state))

	loaded, err := s.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), loaded.Version)
	assert.Equal(t, datatypes.PhaseAwaitingSearchConfirmation, loaded.State.Phase)
}

func TestBadgerStore_VersionConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	state := datatypes.NewSessionState("sess-1")
	require.NoError(t, s.CompareAndSave(ctx, "sess-1", 0, state))

	t.Run("stale writer rejected", func(t *testing.T) {
		err := s.CompareAndSave(ctx, "sess-1", 0, state)
		assert.ErrorIs(t, err, ErrVersionConflict)
	})

	t.Run("create over existing rejected", func(t *testing.T) {
		err := s.CompareAndSave(ctx, "sess-1", 5, state)
		assert.ErrorIs(t, err, ErrVersionConflict)
	})

	t.Run("state unchanged after rejected write", func(t *testing.T) {
		loaded, err := s.Load(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), loaded.Version)
	})
}

func TestBadgerStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CompareAndSave(ctx, "sess-1", 0, datatypes.NewSessionState("sess-1")))
	require.NoError(t, s.Delete(ctx, "sess-1"))

	_, err := s.Load(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting again is a no-op.
	assert.NoError(t, s.Delete(ctx, "sess-1"))
}

func TestBadgerStore_ListSessionIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ids, err := s.ListSessionIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, s.CompareAndSave(ctx, "a", 0, datatypes.NewSessionState("a")))
	require.NoError(t, s.CompareAndSave(ctx, "b", 0, datatypes.NewSessionState("b")))

	ids, err = s.ListSessionIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}
