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

// Package journal keeps an append-only SQLite log of dispatch state
// transitions. The JSON state file holds only the current picture; the
// journal answers "what happened to OC-123" after the fact. Writes are
// best-effort and never gate pipeline progress.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/openclaw/openclaw/internal/dispatch"
	"github.com/openclaw/openclaw/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS transitions (
	id          TEXT PRIMARY KEY,
	identifier  TEXT NOT NULL,
	from_status TEXT NOT NULL,
	to_status   TEXT NOT NULL,
	attempt     INTEGER NOT NULL DEFAULT 0,
	reason      TEXT NOT NULL DEFAULT '',
	recorded_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transitions_identifier ON transitions(identifier);
CREATE INDEX IF NOT EXISTS idx_transitions_recorded_at ON transitions(recorded_at);
`

// Entry is one journaled transition as read back from the log.
type Entry struct {
	ID         string
	Identifier string
	From       string
	To         string
	Attempt    int
	Reason     string
	RecordedAt time.Time
}

// Journal is a SQLite-backed transition log.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (and if needed creates) the journal database at path.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.Wrapf(err, "creating journal directory %s", filepath.Dir(path))
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening journal database %s", path)
	}

	// Single writer at a time keeps SQLite happy under WAL.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "applying %s", pragma)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrating journal schema")
	}

	return &Journal{
		db:     db,
		logger: logger.With(slog.String("component", "journal")),
	}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends one transition.
func (j *Journal) Record(ctx context.Context, e dispatch.JournalEntry) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO transitions (id, identifier, from_status, to_status, attempt, reason, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), e.Identifier, string(e.From), string(e.To), e.Attempt, e.Reason,
		time.Now().UTC())
	if err != nil {
		return errors.Wrapf(err, "journaling transition for %s", e.Identifier)
	}
	return nil
}

// History returns the journaled transitions for one identifier, oldest
// first.
func (j *Journal) History(ctx context.Context, identifier string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, identifier, from_status, to_status, attempt, reason, recorded_at
		 FROM transitions WHERE identifier = ? ORDER BY recorded_at, id`,
		identifier)
	if err != nil {
		return nil, errors.Wrapf(err, "querying journal for %s", identifier)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Identifier, &e.From, &e.To, &e.Attempt, &e.Reason, &e.RecordedAt); err != nil {
			return nil, errors.Wrap(err, "scanning journal row")
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating journal rows")
	}
	return entries, nil
}

// Prune deletes entries recorded before the cutoff and returns how many
// were removed.
func (j *Journal) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx,
		`DELETE FROM transitions WHERE recorded_at < ?`, olderThan.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "pruning journal")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading pruned row count: %w", err)
	}
	if n > 0 {
		j.logger.Debug("journal pruned", slog.Int64("rows", n))
	}
	return n, nil
}
