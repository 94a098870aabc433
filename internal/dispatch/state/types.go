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

// Package state defines the dispatch state document and the typed state
// machine over it. All operations here are pure transformers; durability
// and locking live in the store package.
package state

import "time"

// Tier is the externally-chosen complexity label for an issue.
// The engine carries it for reporting only.
type Tier string

const (
	TierJunior Tier = "junior"
	TierMedior Tier = "medior"
	TierSenior Tier = "senior"
)

// Status is the lifecycle status of a dispatch.
type Status string

const (
	StatusDispatched Status = "dispatched"
	StatusWorking    Status = "working"
	StatusAuditing   Status = "auditing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
	StatusStuck      Status = "stuck"
)

// legacyStatusRunning was written by older releases and reads as working.
const legacyStatusRunning Status = "running"

// Phase identifies which pipeline phase an agent session belongs to.
type Phase string

const (
	PhaseWorker Phase = "worker"
	PhaseAudit  Phase = "audit"
)

// Stuck reasons recorded when the engine gives up on a dispatch.
const (
	ReasonWatchdogKill     = "watchdog_kill_2x"
	ReasonWorkerFailed     = "worker_failed"
	ReasonAuditFailed      = "audit_failed"
	ReasonAuditMaxAttempts = "audit_failed_max_attempts"
	ReasonStaleNoProgress  = "stale_no_progress"
)

// MaxProcessedEvents bounds the processed-event FIFO used for
// at-least-once delivery deduplication.
const MaxProcessedEvents = 200

// ActiveDispatch is one issue currently in flight through the pipeline.
type ActiveDispatch struct {
	// IssueID is the tracker's stable internal ID.
	IssueID string `json:"issueId"`

	// IssueIdentifier is the human-readable identifier (e.g. "CT-100").
	IssueIdentifier string `json:"issueIdentifier"`

	// Branch is the git branch the worker operates on.
	Branch string `json:"branch,omitempty"`

	// WorktreePath points at the workspace. Opaque to the engine; may
	// encode a multi-repo mapping.
	WorktreePath string `json:"worktreePath,omitempty"`

	// Tier is the complexity tier selected externally.
	Tier Tier `json:"tier,omitempty"`

	// Model is the display name of the model in use.
	Model string `json:"model,omitempty"`

	Status       Status    `json:"status"`
	Attempt      int       `json:"attempt"`
	DispatchedAt time.Time `json:"dispatchedAt"`
	StuckReason  string    `json:"stuckReason,omitempty"`

	WorkerSessionKey string `json:"workerSessionKey,omitempty"`
	AuditSessionKey  string `json:"auditSessionKey,omitempty"`
	AgentSessionID   string `json:"agentSessionId,omitempty"`

	Project string `json:"project,omitempty"`
}

// Clone returns a copy with no aliasing to the receiver.
func (d *ActiveDispatch) Clone() *ActiveDispatch {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// CompletedDispatch is the terminal snapshot of a dispatch.
type CompletedDispatch struct {
	IssueIdentifier string    `json:"issueIdentifier"`
	Tier            Tier      `json:"tier,omitempty"`
	Status          Status    `json:"status"`
	CompletedAt     time.Time `json:"completedAt"`
	TotalAttempts   int       `json:"totalAttempts"`
	PRURL           string    `json:"prUrl,omitempty"`
	Project         string    `json:"project,omitempty"`
}

// SessionMapping joins an agent session key back to its dispatch and phase.
type SessionMapping struct {
	DispatchID string `json:"dispatchId"`
	Phase      Phase  `json:"phase"`
	Attempt    int    `json:"attempt"`
}

// Dispatches groups the active and completed tables.
type Dispatches struct {
	Active    map[string]*ActiveDispatch    `json:"active"`
	Completed map[string]*CompletedDispatch `json:"completed"`
}

// Document is the top-level persisted state.
type Document struct {
	Dispatches Dispatches `json:"dispatches"`

	// SessionMap maps session keys to their dispatch and phase so that
	// out-of-band completion events can resume the pipeline.
	SessionMap map[string]SessionMapping `json:"sessionMap"`

	// ProcessedEvents is a bounded FIFO of event keys already handled.
	ProcessedEvents []string `json:"processedEvents"`
}

// NewDocument returns an empty document with all tables initialized.
func NewDocument() *Document {
	return &Document{
		Dispatches: Dispatches{
			Active:    make(map[string]*ActiveDispatch),
			Completed: make(map[string]*CompletedDispatch),
		},
		SessionMap:      make(map[string]SessionMapping),
		ProcessedEvents: nil,
	}
}

// EnsureTables initializes any nil maps. Called after deserialization so
// the rest of the code never checks for nil.
func (doc *Document) EnsureTables() {
	if doc.Dispatches.Active == nil {
		doc.Dispatches.Active = make(map[string]*ActiveDispatch)
	}
	if doc.Dispatches.Completed == nil {
		doc.Dispatches.Completed = make(map[string]*CompletedDispatch)
	}
	if doc.SessionMap == nil {
		doc.SessionMap = make(map[string]SessionMapping)
	}
}
