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

// Package notify delivers pipeline notifications to outbound channels.
// Delivery is fire-and-forget from the pipeline's point of view; a dead
// channel never stalls a dispatch.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openclaw/openclaw/internal/dispatch"
)

// Text renders the human-readable message for a notification. All
// backends share one rendering so Slack and the log tell the same story.
func Text(n dispatch.Notification) string {
	label := n.Identifier
	if n.Title != "" {
		label = fmt.Sprintf("%s — %s", n.Identifier, n.Title)
	}

	switch n.Kind {
	case dispatch.NotifyDispatch:
		return fmt.Sprintf("📋 Dispatched %s", label)
	case dispatch.NotifyWorking:
		if n.Attempt > 0 {
			return fmt.Sprintf("🔧 Rework attempt %d started on %s", n.Attempt, label)
		}
		return fmt.Sprintf("🔧 Worker started on %s", label)
	case dispatch.NotifyAuditing:
		return fmt.Sprintf("🔍 Auditing %s (attempt %d)", label, n.Attempt)
	case dispatch.NotifyAuditPass:
		msg := fmt.Sprintf("✅ Audit passed for %s", label)
		if n.Verdict != nil && n.Verdict.PRURL != "" {
			msg += fmt.Sprintf(" — %s", n.Verdict.PRURL)
		}
		return msg
	case dispatch.NotifyAuditFail:
		msg := fmt.Sprintf("❌ Audit failed for %s, reworking (attempt %d)", label, n.Attempt)
		if n.Verdict != nil && len(n.Verdict.Gaps) > 0 {
			msg += "\nGaps:\n• " + strings.Join(n.Verdict.Gaps, "\n• ")
		}
		return msg
	case dispatch.NotifyEscalation:
		return fmt.Sprintf("🚨 %s escalated to a human (%s)", label, n.Reason)
	case dispatch.NotifyStuck:
		return fmt.Sprintf("⚠️ %s marked stuck (%s)", label, n.Reason)
	case dispatch.NotifyWatchdogKill:
		return fmt.Sprintf("⏱️ Watchdog killed an agent run for %s (attempt %d)", label, n.Attempt)
	default:
		return fmt.Sprintf("%s: %s", n.Kind, label)
	}
}

// Log is the always-available notifier backend: it writes notifications
// to the structured log.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a log notifier.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger.With(slog.String("component", "notify"))}
}

// Notify implements dispatch.Notifier.
func (l *Log) Notify(ctx context.Context, n dispatch.Notification) error {
	l.logger.Info(Text(n),
		slog.String("kind", string(n.Kind)),
		slog.String("issue", n.Identifier),
		slog.String("status", string(n.Status)),
		slog.Int("attempt", n.Attempt))
	return nil
}

// Multi fans one notification out to every backend. Every backend gets a
// delivery attempt even when an earlier one fails; the failures come back
// joined.
type Multi struct {
	backends []dispatch.Notifier
}

// NewMulti creates a fan-out notifier. Nil backends are dropped.
func NewMulti(backends ...dispatch.Notifier) *Multi {
	kept := make([]dispatch.Notifier, 0, len(backends))
	for _, b := range backends {
		if b != nil {
			kept = append(kept, b)
		}
	}
	return &Multi{backends: kept}
}

// Notify implements dispatch.Notifier.
func (m *Multi) Notify(ctx context.Context, n dispatch.Notification) error {
	var errs []error
	for _, b := range m.backends {
		if err := b.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
