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

// Package agentrun wraps agent runner backends with an inactivity
// watchdog and a uniform retry policy.
package agentrun

import (
	"context"
	"time"
)

// Request describes one agent run.
type Request struct {
	// AgentID selects the agent profile (e.g. "worker", "auditor").
	AgentID string

	// SessionID is the opaque session key for this run.
	SessionID string

	// Message is the fully rendered prompt.
	Message string

	// Timeout caps the wall-clock duration of the run. Zero means the
	// watchdog profile's max-total applies.
	Timeout time.Duration
}

// ResultKind tags the outcome variant of an agent run.
type ResultKind int

const (
	// ResultSuccess means the run completed and produced output.
	ResultSuccess ResultKind = iota
	// ResultFailure means the run failed for a non-watchdog reason.
	ResultFailure
	// ResultKilled means the watchdog killed the run for inactivity
	// on every attempt.
	ResultKilled
)

// Result is the tagged outcome of an agent run. Exactly one variant
// applies; the pipeline switches on Kind.
type Result struct {
	Kind ResultKind

	// Output is the aggregated agent output. Present on success and
	// sometimes on failure or kill (partial output).
	Output string

	// Reason describes a failure. Set only for ResultFailure.
	Reason string

	// Silence is how long the run was quiet before the kill. Set only
	// for ResultKilled.
	Silence time.Duration

	// WatchdogKilled reports whether any attempt was killed, including
	// runs that eventually succeeded on retry.
	WatchdogKilled bool
}

// Runner is the port over a coding agent backend: a CLI subprocess or an
// in-process agent loop. Run consumes the backend's aggregated output.
type Runner interface {
	Run(ctx context.Context, req Request) (Result, error)

	// Abort tears down the backend process or loop for a session.
	// Called on watchdog kill in addition to context cancellation.
	Abort(sessionID string)
}

// StreamingRunner is the optional capability of runners that can deliver
// activity callbacks during the run. The wrapper prefers this entry point
// when the runner provides it.
type StreamingRunner interface {
	Runner

	RunStreaming(ctx context.Context, req Request, stream StreamFunc) (Result, error)
}

// EventType classifies a streamed activity chunk from the runner.
type EventType string

const (
	// EventReasoning is a chunk of model reasoning text.
	EventReasoning EventType = "reasoning"
	// EventToolResult is the output of a finished tool call.
	EventToolResult EventType = "tool-result"
	// EventToolStart announces a tool call about to execute.
	EventToolStart EventType = "tool-start"
	// EventPartialReply is an incremental piece of the final reply.
	EventPartialReply EventType = "partial-reply"
)

// StreamEvent is one streamed activity callback.
type StreamEvent struct {
	Type EventType

	// Text carries reasoning or partial-reply chunks.
	Text string

	// Tool is the tool name for tool-start and tool-result events.
	Tool string

	// Metadata carries tool-start parameters in display form.
	Metadata string

	// Output carries tool-result output.
	Output string
}

// StreamFunc receives streamed events from the runner.
type StreamFunc func(ev StreamEvent)
