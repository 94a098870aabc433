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

package daemon

import (
	"context"
	"log/slog"

	"github.com/openclaw/openclaw/internal/dispatch"
	"github.com/openclaw/openclaw/internal/dispatch/agentrun"
)

// logTracker is the fallback issue tracker used when no real tracker
// integration is injected. Comments and activities land in the log;
// issue fetches return what the dispatch request already carried.
type logTracker struct {
	logger *slog.Logger
}

func newLogTracker(logger *slog.Logger) *logTracker {
	return &logTracker{logger: logger.With(slog.String("component", "tracker"))}
}

func (t *logTracker) FetchIssue(ctx context.Context, issueID string) (*dispatch.Issue, error) {
	return &dispatch.Issue{ID: issueID}, nil
}

func (t *logTracker) PostComment(ctx context.Context, issueID, markdown string) error {
	t.logger.Info("issue comment",
		slog.String("issue_id", issueID),
		slog.String("comment", markdown))
	return nil
}

func (t *logTracker) EmitActivity(ctx context.Context, sessionID string, activity agentrun.Activity) error {
	t.logger.Debug("session activity",
		slog.String("session_key", sessionID),
		slog.String("type", activity.Type),
		slog.String("action", activity.Action))
	return nil
}
