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

package agentrun

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/openclaw/openclaw/internal/dispatch/watchdog"
)

// Truncation limits for activities emitted to the external sink.
const (
	maxThoughtLen   = 500
	maxResultLen    = 300
	maxMetadataLen  = 200
	minThoughtChars = 10
)

// Activity is a single entry emitted to the external activity sink
// (typically the issue tracker's session timeline).
type Activity struct {
	// Type is "thought" for reasoning or "action" for tool activity.
	Type string

	// Body carries thought text or a free-form notice.
	Body string

	// Action is the tool name for action activities.
	Action string

	// Parameter carries truncated tool output or metadata.
	Parameter string
}

// ActivitySink receives translated activities. Sink errors are the
// sink's problem; the wrapper never fails a run over them.
type ActivitySink func(activity Activity)

// Wrapper executes agent runs uniformly: it feeds streamed activity into
// the watchdog and the sink, aborts stalled runs, and retries exactly
// once when the failure cause was a watchdog kill.
type Wrapper struct {
	runner   Runner
	cfg      watchdog.Config
	profiles watchdog.ProfileLookup
	logger   *slog.Logger
}

// NewWrapper creates a run wrapper around the given runner backend.
func NewWrapper(runner Runner, cfg watchdog.Config, profiles watchdog.ProfileLookup, logger *slog.Logger) *Wrapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Wrapper{
		runner:   runner,
		cfg:      cfg,
		profiles: profiles,
		logger:   logger.With(slog.String("component", "agentrun")),
	}
}

// Execute runs the request with up to two attempts. Only a watchdog kill
// is retried; any other failure surfaces immediately. The returned result
// records whether any attempt was killed even when a retry succeeded.
func (w *Wrapper) Execute(ctx context.Context, req Request, sink ActivitySink) Result {
	cfg := watchdog.Resolve(req.AgentID, w.cfg, w.profiles, w.logger)
	anyKilled := false

	for attempt := 0; attempt < 2; attempt++ {
		result := w.runOnce(ctx, req, cfg, sink)
		if result.Kind == ResultKilled {
			anyKilled = true
			if attempt == 0 {
				w.logger.Warn("watchdog killed run, retrying once",
					slog.String("session_key", req.SessionID),
					slog.Duration("silence", result.Silence))
				if sink != nil {
					sink(Activity{
						Type: "thought",
						Body: fmt.Sprintf("Agent went silent for %s; killed and retrying.", result.Silence.Round(time.Second)),
					})
				}
				continue
			}
		}
		result.WatchdogKilled = anyKilled
		return result
	}

	// Unreachable: the loop always returns by the second iteration.
	return Result{Kind: ResultKilled, WatchdogKilled: true}
}

// runOnce performs a single attempt with its own watchdog instance.
func (w *Wrapper) runOnce(ctx context.Context, req Request, cfg watchdog.Config, sink ActivitySink) Result {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = cfg.MaxTotal
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	wd := watchdog.New(cfg, func(reason string) {
		// Kill propagation: cooperative cancellation plus the runner's
		// own abort entry point.
		cancel()
		w.runner.Abort(req.SessionID)
	}, w.logger)

	var result Result
	var err error

	if sr, ok := w.runner.(StreamingRunner); ok {
		wd.Start()
		result, err = sr.RunStreaming(runCtx, req, func(ev StreamEvent) {
			wd.Tick()
			emitActivity(sink, ev)
		})
		wd.Stop()
	} else {
		// No streaming capability: aggregated output only. Without
		// mid-run ticks an inactivity check would kill every long run,
		// so only the run deadline bounds total time here.
		result, err = w.runner.Run(runCtx, req)
	}

	if wd.WasKilled() {
		return Result{Kind: ResultKilled, Output: result.Output, Silence: wd.Silence()}
	}
	if err != nil {
		return Result{Kind: ResultFailure, Reason: err.Error(), Output: result.Output}
	}
	return result
}

// emitActivity translates one streamed event into at most one sink
// emission, applying the per-class truncation limits.
func emitActivity(sink ActivitySink, ev StreamEvent) {
	if sink == nil {
		return
	}
	switch ev.Type {
	case EventReasoning:
		text := strings.TrimSpace(ev.Text)
		if len(text) < minThoughtChars {
			return
		}
		sink(Activity{Type: "thought", Body: truncate(text, maxThoughtLen)})
	case EventToolResult:
		sink(Activity{
			Type:      "action",
			Action:    ev.Tool,
			Parameter: truncate(ev.Output, maxResultLen),
		})
	case EventToolStart:
		sink(Activity{
			Type:      "action",
			Action:    ev.Tool,
			Parameter: truncate(ev.Metadata, maxMetadataLen),
		})
	case EventPartialReply:
		// Tick only; partial replies are not worth a timeline entry.
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Never cut through a multi-byte rune.
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
