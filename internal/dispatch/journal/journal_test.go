// Copyright 2025 OpenClaw Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/openclaw/internal/dispatch"
	"github.com/openclaw/openclaw/internal/dispatch/state"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndHistory(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Record(ctx, dispatch.JournalEntry{
		Identifier: "OC-1",
		From:       state.StatusDispatched,
		To:         state.StatusWorking,
	}))
	require.NoError(t, j.Record(ctx, dispatch.JournalEntry{
		Identifier: "OC-1",
		From:       state.StatusWorking,
		To:         state.StatusAuditing,
	}))
	require.NoError(t, j.Record(ctx, dispatch.JournalEntry{
		Identifier: "OC-2",
		From:       state.StatusDispatched,
		To:         state.StatusWorking,
	}))

	entries, err := j.History(ctx, "OC-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "dispatched", entries[0].From)
	assert.Equal(t, "working", entries[0].To)
	assert.Equal(t, "auditing", entries[1].To)
	assert.NotEmpty(t, entries[0].ID)
	assert.False(t, entries[0].RecordedAt.IsZero())
}

func TestHistoryUnknownIdentifier(t *testing.T) {
	j := newTestJournal(t)

	entries, err := j.History(context.Background(), "OC-404")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecordCarriesAttemptAndReason(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Record(ctx, dispatch.JournalEntry{
		Identifier: "OC-3",
		From:       state.StatusAuditing,
		To:         state.StatusStuck,
		Attempt:    2,
		Reason:     state.ReasonAuditMaxAttempts,
	}))

	entries, err := j.History(ctx, "OC-3")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].Attempt)
	assert.Equal(t, state.ReasonAuditMaxAttempts, entries[0].Reason)
}

func TestPrune(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Record(ctx, dispatch.JournalEntry{
		Identifier: "OC-1",
		From:       state.StatusDispatched,
		To:         state.StatusWorking,
	}))

	// Nothing is old enough yet.
	n, err := j.Prune(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	// A future cutoff sweeps everything.
	n, err = j.Prune(ctx, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	entries, err := j.History(ctx, "OC-1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j1, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, j1.Record(context.Background(), dispatch.JournalEntry{
		Identifier: "OC-1",
		From:       state.StatusDispatched,
		To:         state.StatusWorking,
	}))
	require.NoError(t, j1.Close())

	// Reopening migrates in place and keeps existing rows.
	j2, err := Open(path, nil)
	require.NoError(t, err)
	defer j2.Close()

	entries, err := j2.History(context.Background(), "OC-1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
