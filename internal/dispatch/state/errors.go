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

package state

import (
	"errors"
	"fmt"
)

// ErrAlreadyActive is returned by Register when the identifier is in flight.
var ErrAlreadyActive = errors.New("dispatch already active")

// TransitionError reports a failed CAS transition. The document is left
// unchanged when this is returned.
type TransitionError struct {
	// Identifier is the issue identifier the transition targeted.
	Identifier string

	// Expected is the status the caller expected to find.
	Expected Status

	// Actual is the status actually present, or empty when the record
	// is missing.
	Actual Status

	// Target is the status the caller tried to move to.
	Target Status
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	if e.Actual == "" {
		return fmt.Sprintf("transition %s: no active dispatch (wanted %s -> %s)",
			e.Identifier, e.Expected, e.Target)
	}
	return fmt.Sprintf("transition %s: expected status %s, found %s (target %s)",
		e.Identifier, e.Expected, e.Actual, e.Target)
}

// UnknownStatusError reports a persisted status the engine does not know.
// The store surfaces this as corruption rather than guessing.
type UnknownStatusError struct {
	Identifier string
	Value      string
}

// Error implements the error interface.
func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("dispatch %s has unknown status %q", e.Identifier, e.Value)
}
