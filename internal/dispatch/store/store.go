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

// Package store persists the dispatch state document to a single JSON
// file, serializing read-modify-write sequences across processes on the
// same host through an advisory lock file.
package store

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/openclaw/openclaw/internal/dispatch/state"
	"github.com/openclaw/openclaw/pkg/errors"
)

// DefaultStateFile is the state file name under the OpenClaw home dir.
const DefaultStateFile = "linear-dispatch-state.json"

// Store is the locked persistent store for the dispatch state.
type Store struct {
	path   string
	logger *slog.Logger
}

// Config contains store configuration.
type Config struct {
	// Path is the state file location.
	// Default: ~/.openclaw/linear-dispatch-state.json
	Path string

	// Logger is the structured logger to use. If nil, uses slog.Default().
	Logger *slog.Logger
}

// New creates a store. The state file itself is created lazily on the
// first mutation.
func New(cfg Config) (*Store, error) {
	path := cfg.Path
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "resolving home directory")
		}
		path = filepath.Join(home, ".openclaw", DefaultStateFile)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		path:   path,
		logger: logger.With(slog.String("component", "store")),
	}, nil
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// Read returns the current document without taking the lock. Callers that
// intend to mutate must use Mutate; unlocked readers accept a read-skew
// risk bounded by the atomic-rename write protocol.
func (s *Store) Read() (*state.Document, error) {
	return s.load()
}

// Mutate acquires the store lock, reads the document, applies fn, and
// writes the result atomically. If fn returns an error the document is
// not written and the error is returned unchanged. The lock is released
// on every exit path.
func (s *Store) Mutate(fn func(doc *state.Document) error) error {
	lock := newFileLock(s.path, s.logger)
	if err := lock.acquire(); err != nil {
		return err
	}
	defer lock.release()

	doc, err := s.load()
	if err != nil {
		return err
	}

	if err := fn(doc); err != nil {
		return err
	}

	return s.write(doc)
}

// load reads and migrates the state file. A missing file is an empty
// document, not an error. Corrupt JSON or an unknown status surfaces as
// CorruptError; the store never silently overwrites a corrupt document.
func (s *Store) load() (*state.Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return state.NewDocument(), nil
		}
		return nil, errors.Wrapf(err, "reading state file %s", s.path)
	}

	var doc state.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &CorruptError{Path: s.path, Cause: err}
	}
	doc.EnsureTables()

	if err := state.Migrate(&doc); err != nil {
		return nil, &CorruptError{Path: s.path, Cause: err}
	}

	return &doc, nil
}

// write serializes the document to a sibling temp file, syncs it, and
// renames it over the state file so readers never observe a torn write.
func (s *Store) write(doc *state.Document) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.Wrapf(err, "creating state directory %s", dir)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling dispatch state")
	}

	tmpPath := s.path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrapf(err, "creating temp state file %s", tmpPath)
	}
	defer os.Remove(tmpPath)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return errors.Wrap(err, "writing state file")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.Wrap(err, "syncing state file")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "closing state file")
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return errors.Wrapf(err, "replacing state file %s", s.path)
	}
	return nil
}
