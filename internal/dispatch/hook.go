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

package dispatch

import (
	"context"
	"log/slog"

	"github.com/openclaw/openclaw/internal/dispatch/state"
)

// HandleAgentCompletion is the hook-side entry point, invoked when an
// agent session finishes outside the synchronous pipeline (host restart,
// out-of-band completion delivery). The persisted session map decides
// what the session was; unknown sessions and stale attempts are ignored
// so the hook can be safely wired to every agent completion.
func (e *Engine) HandleAgentCompletion(ctx context.Context, sessionKey, output string, success bool) error {
	doc, err := e.store.Read()
	if err != nil {
		return err
	}

	mapping, ok := doc.SessionMap[sessionKey]
	if !ok {
		e.logger.Debug("completion for unmapped session, ignoring",
			slog.String("session_key", sessionKey))
		return nil
	}

	d, ok := doc.Dispatches.Active[mapping.DispatchID]
	if !ok {
		e.logger.Debug("completion for finished dispatch, ignoring",
			slog.String("session_key", sessionKey),
			slog.String("issue", mapping.DispatchID))
		return nil
	}

	// A completion from a superseded attempt must not drive the current
	// one; rework bumps the attempt counter before any new run starts.
	if d.Attempt != mapping.Attempt {
		e.logger.Info("completion from stale attempt, ignoring",
			slog.String("session_key", sessionKey),
			slog.String("issue", mapping.DispatchID),
			slog.Int("attempt", mapping.Attempt),
			slog.Int("current_attempt", d.Attempt))
		return nil
	}

	switch mapping.Phase {
	case state.PhaseWorker:
		if !success {
			return e.escalate(ctx, mapping.DispatchID, nil, state.StatusWorking, state.ReasonWorkerFailed)
		}
		return e.TriggerAudit(ctx, mapping.DispatchID, nil, output)
	case state.PhaseAudit:
		// Failed auditor runs still flow through verdict parsing; an
		// unreadable verdict takes the fail branch there.
		return e.ProcessVerdict(ctx, mapping.DispatchID, nil, output)
	default:
		e.logger.Warn("session mapped to unknown phase, ignoring",
			slog.String("session_key", sessionKey),
			slog.String("phase", string(mapping.Phase)))
		return nil
	}
}
