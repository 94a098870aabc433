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

// Package dispatch orchestrates the worker/audit/verdict pipeline over
// issue dispatches. It owns the state machine progression; the issue
// tracker, agent runners, and notification channels are consumed as
// ports.
package dispatch

import (
	"context"

	"github.com/openclaw/openclaw/internal/dispatch/agentrun"
	"github.com/openclaw/openclaw/internal/dispatch/state"
)

// StateStore is the persistence port the pipeline depends on. The locked
// file store implements it.
type StateStore interface {
	// Read returns the current document without taking the lock.
	Read() (*state.Document, error)

	// Mutate applies fn under the store lock and persists the result
	// atomically. fn returning an error aborts the write.
	Mutate(fn func(doc *state.Document) error) error
}

// Issue is the tracker's view of an issue.
type Issue struct {
	ID          string
	Identifier  string
	Title       string
	Description string
	Comments    []string
}

// IssueTracker is the port over the issue tracker backend. The engine
// never speaks the tracker protocol itself.
type IssueTracker interface {
	FetchIssue(ctx context.Context, issueID string) (*Issue, error)
	PostComment(ctx context.Context, issueID, markdown string) error
	EmitActivity(ctx context.Context, sessionID string, activity agentrun.Activity) error
}

// NotifyKind enumerates pipeline notifications.
type NotifyKind string

const (
	NotifyDispatch     NotifyKind = "dispatch"
	NotifyWorking      NotifyKind = "working"
	NotifyAuditing     NotifyKind = "auditing"
	NotifyAuditPass    NotifyKind = "audit_pass"
	NotifyAuditFail    NotifyKind = "audit_fail"
	NotifyEscalation   NotifyKind = "escalation"
	NotifyStuck        NotifyKind = "stuck"
	NotifyWatchdogKill NotifyKind = "watchdog_kill"
)

// Notification is the payload delivered to notifier backends.
type Notification struct {
	Kind       NotifyKind
	Identifier string
	Title      string
	Status     state.Status
	Attempt    int
	Reason     string
	Verdict    *Verdict
}

// Notifier delivers notifications to a channel (Slack, log, ...).
// Failures never affect dispatch state; the engine logs and moves on.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// PromptSection selects which prompt template to render.
type PromptSection string

const (
	PromptWorker PromptSection = "worker"
	PromptAudit  PromptSection = "audit"
	PromptRework PromptSection = "rework"
)

// PromptVars are the variables the engine supplies to the prompt
// builder. Rendering itself is out of scope for the engine.
type PromptVars struct {
	Identifier   string
	Title        string
	Description  string
	WorktreePath string
	Tier         state.Tier
	Attempt      int
	Gaps         []string
}

// PromptBuilder renders the final prompt text for a pipeline phase.
type PromptBuilder interface {
	Render(section PromptSection, vars PromptVars) (string, error)
}
