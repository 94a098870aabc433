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

// Package monitor is the background sweep over dispatch state: it marks
// stale dispatches stuck, recovers audits whose trigger was lost, and
// prunes old completed records.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/openclaw/openclaw/internal/dispatch"
	"github.com/openclaw/openclaw/internal/dispatch/state"
)

// Defaults for the sweep cadence and thresholds.
const (
	DefaultTick          = 5 * time.Minute
	DefaultStaleAfter    = 2 * time.Hour
	DefaultRetention     = 7 * 24 * time.Hour
	DefaultRecoveryGrace = 10 * time.Minute
)

// Pipeline is the slice of the engine the monitor drives.
type Pipeline interface {
	TriggerAudit(ctx context.Context, identifier string, issue *dispatch.Issue, workerOutput string) error
}

// Journal is the optional journal maintenance hook.
type Journal interface {
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

// Config tunes the sweep.
type Config struct {
	// Tick is the sweep interval. Default 5m.
	Tick time.Duration

	// StaleAfter is how long a dispatch may sit in a non-terminal status
	// before the sweep marks it stuck. Default 2h.
	StaleAfter time.Duration

	// Retention is how long completed records are kept. Default 7d.
	Retention time.Duration

	// RecoveryGrace is the minimum dispatch age before the sweep treats
	// a working dispatch with no audit session as a lost trigger.
	// Default 10m.
	RecoveryGrace time.Duration
}

// WithDefaults fills zero fields.
func (c Config) WithDefaults() Config {
	result := c
	if result.Tick <= 0 {
		result.Tick = DefaultTick
	}
	if result.StaleAfter <= 0 {
		result.StaleAfter = DefaultStaleAfter
	}
	if result.Retention <= 0 {
		result.Retention = DefaultRetention
	}
	if result.RecoveryGrace <= 0 {
		result.RecoveryGrace = DefaultRecoveryGrace
	}
	return result
}

// Options wires the monitor's collaborators. Store is required; the rest
// may be nil, disabling the corresponding action.
type Options struct {
	Store    dispatch.StateStore
	Pipeline Pipeline
	Notifier dispatch.Notifier
	Journal  Journal
	Logger   *slog.Logger

	// InFlight reports whether a session currently has a live run in
	// this process. When set, audit recovery skips sessions that are
	// still running; the grace period alone guards restarts without it.
	InFlight func(sessionKey string) bool

	Config Config
}

// Result summarizes one sweep.
type Result struct {
	Stale     int
	Recovered int
	Pruned    int
}

// Monitor runs the periodic sweep.
type Monitor struct {
	store    dispatch.StateStore
	pipeline Pipeline
	notifier dispatch.Notifier
	journal  Journal
	inFlight func(string) bool
	logger   *slog.Logger
	cfg      Config

	now func() time.Time
}

// New creates a monitor.
func New(opts Options) *Monitor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		store:    opts.Store,
		pipeline: opts.Pipeline,
		notifier: opts.Notifier,
		journal:  opts.Journal,
		inFlight: opts.InFlight,
		logger:   logger.With(slog.String("component", "monitor")),
		cfg:      opts.Config.WithDefaults(),
		now:      time.Now,
	}
}

// Run sweeps until the context is cancelled. One sweep runs immediately.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Tick)
	defer ticker.Stop()

	m.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Monitor) sweep(ctx context.Context) {
	result, err := m.RunOnce(ctx)
	if err != nil {
		m.logger.Error("sweep failed", slog.Any("error", err))
		return
	}
	if result.Stale > 0 || result.Recovered > 0 || result.Pruned > 0 {
		m.logger.Info("sweep finished",
			slog.Int("stale", result.Stale),
			slog.Int("recovered", result.Recovered),
			slog.Int("pruned", result.Pruned))
	}
}

// RunOnce performs a single sweep: stale marking, audit recovery, and
// pruning, each in its own locked mutation so a failure in one never
// blocks the others.
func (m *Monitor) RunOnce(ctx context.Context) (Result, error) {
	var result Result

	stale, err := m.markStale(ctx)
	if err != nil {
		return result, err
	}
	result.Stale = stale

	result.Recovered = m.recoverAudits(ctx)

	pruned, err := m.pruneCompleted()
	if err != nil {
		return result, err
	}
	result.Pruned = pruned

	if m.journal != nil {
		if _, err := m.journal.Prune(ctx, m.now().Add(-m.cfg.Retention)); err != nil {
			m.logger.Warn("journal prune failed", slog.Any("error", err))
		}
	}
	return result, nil
}

// markStale moves dispatches that have sat in a non-terminal status past
// the threshold to stuck. CAS semantics: a dispatch that progressed
// between the read and the mutation is left alone.
func (m *Monitor) markStale(ctx context.Context) (int, error) {
	doc, err := m.store.Read()
	if err != nil {
		return 0, err
	}

	cutoff := m.now().Add(-m.cfg.StaleAfter)
	marked := 0
	for identifier, d := range doc.Dispatches.Active {
		switch d.Status {
		case state.StatusDispatched, state.StatusWorking, state.StatusAuditing:
		default:
			continue
		}
		if !d.DispatchedAt.Before(cutoff) {
			continue
		}

		from := d.Status
		reason := state.ReasonStaleNoProgress
		err := m.store.Mutate(func(doc *state.Document) error {
			return state.Transition(doc, identifier, from, state.StatusStuck, &state.Patch{
				StuckReason: &reason,
			})
		})
		if err != nil {
			m.logger.Debug("stale mark skipped",
				slog.String("issue", identifier), slog.Any("error", err))
			continue
		}
		marked++
		m.logger.Warn("dispatch marked stale",
			slog.String("issue", identifier),
			slog.String("was", string(from)),
			slog.Time("dispatched_at", d.DispatchedAt))
		m.notify(ctx, dispatch.Notification{
			Kind:       dispatch.NotifyStuck,
			Identifier: identifier,
			Status:     state.StatusStuck,
			Attempt:    d.Attempt,
			Reason:     reason,
		})
	}
	return marked, nil
}

// recoverAudits re-fires the audit trigger for working dispatches whose
// worker finished but whose trigger never landed. The processed-event
// guard in the pipeline absorbs re-fires that raced a real trigger.
func (m *Monitor) recoverAudits(ctx context.Context) int {
	if m.pipeline == nil {
		return 0
	}
	doc, err := m.store.Read()
	if err != nil {
		m.logger.Error("recovery read failed", slog.Any("error", err))
		return 0
	}

	cutoff := m.now().Add(-m.cfg.RecoveryGrace)
	recovered := 0
	for identifier, d := range doc.Dispatches.Active {
		if d.Status != state.StatusWorking || d.WorkerSessionKey == "" || d.AuditSessionKey != "" {
			continue
		}
		if d.DispatchedAt.After(cutoff) {
			continue
		}
		if m.inFlight != nil && m.inFlight(d.WorkerSessionKey) {
			continue
		}

		m.logger.Info("recovering lost audit trigger", slog.String("issue", identifier))
		if err := m.pipeline.TriggerAudit(ctx, identifier, nil, ""); err != nil {
			m.logger.Warn("audit recovery failed",
				slog.String("issue", identifier), slog.Any("error", err))
			continue
		}
		recovered++
	}
	return recovered
}

// pruneCompleted drops completed records older than the retention window.
func (m *Monitor) pruneCompleted() (int, error) {
	cutoff := m.now().Add(-m.cfg.Retention)
	pruned := 0
	err := m.store.Mutate(func(doc *state.Document) error {
		for identifier, d := range doc.Dispatches.Completed {
			if d.CompletedAt.Before(cutoff) {
				delete(doc.Dispatches.Completed, identifier)
				pruned++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return pruned, nil
}

func (m *Monitor) notify(ctx context.Context, n dispatch.Notification) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(ctx, n); err != nil {
		m.logger.Warn("notification failed",
			slog.String("kind", string(n.Kind)), slog.Any("error", err))
	}
}
