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

// Package watchdog detects absence of progress from a long-running agent
// and invokes a kill callback exactly once.
package watchdog

import (
	"log/slog"
	"sync"
	"time"
)

// Default limits applied when neither a per-agent profile nor the caller
// supplies a value.
const (
	// DefaultInactivity is the silence threshold before the kill fires.
	DefaultInactivity = 2 * time.Minute

	// DefaultMaxTotal caps the wall-clock duration of a whole session.
	// Enforced by the caller via its run deadline, not by the watchdog.
	DefaultMaxTotal = 2 * time.Hour

	// DefaultToolTimeout caps a single tool call. Used by tool runners.
	DefaultToolTimeout = 10 * time.Minute

	// minRecheck is the floor for a rescheduled check.
	minRecheck = time.Second
)

// Config carries the watchdog tunables.
type Config struct {
	Inactivity  time.Duration
	MaxTotal    time.Duration
	ToolTimeout time.Duration
}

// WithDefaults fills in missing config values with defaults.
func (c Config) WithDefaults() Config {
	result := c
	if result.Inactivity <= 0 {
		result.Inactivity = DefaultInactivity
	}
	if result.MaxTotal <= 0 {
		result.MaxTotal = DefaultMaxTotal
	}
	if result.ToolTimeout <= 0 {
		result.ToolTimeout = DefaultToolTimeout
	}
	return result
}

// KillFunc is invoked when the silence threshold elapses. Errors and
// panics from the callback are logged, never propagated.
type KillFunc func(reason string)

// Watchdog is a per-run inactivity timer. Activity ticks push the
// deadline forward; the deferred check fires the kill callback at most
// once per instance.
type Watchdog struct {
	mu           sync.Mutex
	inactivity   time.Duration
	onKill       KillFunc
	logger       *slog.Logger
	timer        *time.Timer
	lastActivity time.Time
	started      bool
	stopped      bool
	killed       bool
}

// New creates a watchdog. It does not start counting until Start.
func New(cfg Config, onKill KillFunc, logger *slog.Logger) *Watchdog {
	cfg = cfg.WithDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Watchdog{
		inactivity: cfg.Inactivity,
		onKill:     onKill,
		logger:     logger.With(slog.String("component", "watchdog")),
	}
}

// Start arms the watchdog. Idempotent; a second Start while armed is a
// no-op. A stopped watchdog can be re-armed.
func (w *Watchdog) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started && !w.stopped {
		return
	}
	w.started = true
	w.stopped = false
	w.lastActivity = time.Now()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.inactivity, w.check)
}

// Tick records activity. It moves the silence baseline forward but never
// touches the timer directly; the pending check reschedules itself.
func (w *Watchdog) Tick() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started || w.stopped {
		return
	}
	w.lastActivity = time.Now()
}

// Stop cancels the pending check. Subsequent ticks are no-ops until the
// watchdog is re-armed with Start.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
}

// WasKilled reports whether the kill callback has fired. Monotonic: once
// true it stays true for the lifetime of the instance.
func (w *Watchdog) WasKilled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.killed
}

// Silence returns the time since the last recorded activity.
func (w *Watchdog) Silence() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastActivity.IsZero() {
		return 0
	}
	return time.Since(w.lastActivity)
}

// check runs when the deferred timer fires. If the observed silence has
// reached the threshold it fires the kill exactly once; otherwise it
// reschedules for the remaining silence budget, clamped to at least one
// second.
func (w *Watchdog) check() {
	w.mu.Lock()
	if w.killed || w.stopped {
		w.mu.Unlock()
		return
	}

	silence := time.Since(w.lastActivity)
	if silence < w.inactivity {
		delay := w.inactivity - silence
		if delay < minRecheck {
			delay = minRecheck
		}
		w.timer.Reset(delay)
		w.mu.Unlock()
		return
	}

	w.killed = true
	onKill := w.onKill
	logger := w.logger
	w.mu.Unlock()

	logger.Warn("inactivity threshold elapsed, killing run",
		slog.Duration("silence", silence))

	if onKill == nil {
		return
	}
	func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("kill callback panicked", slog.Any("panic", r))
			}
		}()
		onKill("inactivity")
	}()
}
