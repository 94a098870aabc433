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

package store

import (
	"fmt"
	"time"
)

// LockError is returned when the store lock could not be acquired within
// the deadline, even after forced takeover of a stale lock.
type LockError struct {
	// Path is the lock file path.
	Path string

	// Waited is how long acquisition was attempted.
	Waited time.Duration

	// Cause is the last underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *LockError) Error() string {
	return fmt.Sprintf("could not acquire store lock %s after %v", e.Path, e.Waited)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *LockError) Unwrap() error {
	return e.Cause
}

// CorruptError is returned when the state file exists but cannot be
// understood. The store never silently overwrites a corrupt document.
type CorruptError struct {
	// Path is the state file path.
	Path string

	// Cause is the parse or migration error.
	Cause error
}

// Error implements the error interface.
func (e *CorruptError) Error() string {
	return fmt.Sprintf("dispatch state at %s is corrupt: %v", e.Path, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CorruptError) Unwrap() error {
	return e.Cause
}
