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
	"fmt"
	"time"
)

// legalTransitions is the dispatch status graph. A transition is allowed
// only if the (from, to) pair appears here.
var legalTransitions = map[Status][]Status{
	StatusDispatched: {StatusWorking, StatusStuck},
	StatusWorking:    {StatusAuditing, StatusStuck},
	StatusAuditing:   {StatusDone, StatusWorking, StatusStuck},
}

// Legal reports whether from -> to is a permitted transition.
func Legal(from, to Status) bool {
	for _, t := range legalTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Patch carries optional field updates bundled with a transition.
// Nil pointers leave the field untouched; a pointer to the zero value
// clears it.
type Patch struct {
	Attempt          *int
	StuckReason      *string
	WorkerSessionKey *string
	AuditSessionKey  *string
	AgentSessionID   *string
}

// Completion describes the terminal record written by Complete.
type Completion struct {
	Status      Status
	CompletedAt time.Time
	PRURL       string
}

// Register adds a new active dispatch with status dispatched and attempt 0.
// Fails with ErrAlreadyActive if the identifier is already in flight.
func Register(doc *Document, identifier string, draft *ActiveDispatch) error {
	if _, exists := doc.Dispatches.Active[identifier]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyActive, identifier)
	}

	d := draft.Clone()
	d.IssueIdentifier = identifier
	d.Status = StatusDispatched
	d.Attempt = 0
	if d.DispatchedAt.IsZero() {
		d.DispatchedAt = time.Now().UTC()
	}
	doc.Dispatches.Active[identifier] = d
	return nil
}

// Transition performs a CAS status change. It fails with a TransitionError
// if the record is missing, the current status differs from expectedFrom,
// or the edge is not in the graph. The patch, when present, is applied in
// the same operation.
func Transition(doc *Document, identifier string, expectedFrom, to Status, patch *Patch) error {
	d, ok := doc.Dispatches.Active[identifier]
	if !ok {
		return &TransitionError{Identifier: identifier, Expected: expectedFrom, Target: to}
	}
	if d.Status != expectedFrom {
		return &TransitionError{Identifier: identifier, Expected: expectedFrom, Actual: d.Status, Target: to}
	}
	if !Legal(expectedFrom, to) {
		return &TransitionError{Identifier: identifier, Expected: expectedFrom, Actual: d.Status, Target: to}
	}

	d.Status = to
	applyPatch(d, patch)
	return nil
}

func applyPatch(d *ActiveDispatch, patch *Patch) {
	if patch == nil {
		return
	}
	if patch.Attempt != nil {
		d.Attempt = *patch.Attempt
	}
	if patch.StuckReason != nil {
		d.StuckReason = *patch.StuckReason
	}
	if patch.WorkerSessionKey != nil {
		d.WorkerSessionKey = *patch.WorkerSessionKey
	}
	if patch.AuditSessionKey != nil {
		d.AuditSessionKey = *patch.AuditSessionKey
	}
	if patch.AgentSessionID != nil {
		d.AgentSessionID = *patch.AgentSessionID
	}
}

// Complete moves a dispatch from active to completed, preserving tier and
// project, and purges every session mapping that points at it.
func Complete(doc *Document, identifier string, c Completion) error {
	d, ok := doc.Dispatches.Active[identifier]
	if !ok {
		return fmt.Errorf("complete %s: no active dispatch", identifier)
	}
	if c.Status != StatusDone && c.Status != StatusFailed {
		return fmt.Errorf("complete %s: terminal status must be done or failed, got %s", identifier, c.Status)
	}

	completedAt := c.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}

	doc.Dispatches.Completed[identifier] = &CompletedDispatch{
		IssueIdentifier: identifier,
		Tier:            d.Tier,
		Status:          c.Status,
		CompletedAt:     completedAt,
		TotalAttempts:   d.Attempt + 1,
		PRURL:           c.PRURL,
		Project:         d.Project,
	}
	delete(doc.Dispatches.Active, identifier)
	purgeSessions(doc, identifier)
	return nil
}

// UpdateStatus sets the status without a CAS check. This is an out-of-band
// repair primitive; the pipeline must not use it.
func UpdateStatus(doc *Document, identifier string, status Status) error {
	d, ok := doc.Dispatches.Active[identifier]
	if !ok {
		return fmt.Errorf("update status %s: no active dispatch", identifier)
	}
	d.Status = status
	return nil
}

// RemoveActive drops a dispatch and its session mappings without completing
// it. Used by retry and cancel paths. Removing a missing record is a no-op.
func RemoveActive(doc *Document, identifier string) {
	delete(doc.Dispatches.Active, identifier)
	purgeSessions(doc, identifier)
}

func purgeSessions(doc *Document, dispatchID string) {
	for key, m := range doc.SessionMap {
		if m.DispatchID == dispatchID {
			delete(doc.SessionMap, key)
		}
	}
}

// Migrate normalizes statuses written by older releases. The historical
// status "running" reads as working; any other unknown status is reported
// as an UnknownStatusError so the caller can surface corruption instead of
// guessing.
func Migrate(doc *Document) error {
	for id, d := range doc.Dispatches.Active {
		switch d.Status {
		case StatusDispatched, StatusWorking, StatusAuditing, StatusStuck:
			// current vocabulary
		case legacyStatusRunning:
			d.Status = StatusWorking
		default:
			return &UnknownStatusError{Identifier: id, Value: string(d.Status)}
		}
	}
	return nil
}
