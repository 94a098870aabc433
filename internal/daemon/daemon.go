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

// Package daemon assembles the dispatch engine, the background monitor,
// and the HTTP surface into the long-running openclawd process.
package daemon

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/openclaw/openclaw/internal/agent"
	"github.com/openclaw/openclaw/internal/config"
	"github.com/openclaw/openclaw/internal/dispatch"
	"github.com/openclaw/openclaw/internal/dispatch/agentrun"
	"github.com/openclaw/openclaw/internal/dispatch/journal"
	"github.com/openclaw/openclaw/internal/dispatch/monitor"
	"github.com/openclaw/openclaw/internal/dispatch/registry"
	"github.com/openclaw/openclaw/internal/dispatch/store"
	"github.com/openclaw/openclaw/internal/notify"
	"github.com/openclaw/openclaw/internal/prompt"
	"github.com/openclaw/openclaw/pkg/errors"
)

// Options carries build metadata and optional port overrides. Tracker
// and Runner default to the log tracker and the configured agent CLI.
type Options struct {
	Version   string
	Commit    string
	BuildDate string

	Tracker dispatch.IssueTracker
	Runner  agentrun.Runner
	Logger  *slog.Logger
}

// Daemon is the assembled openclawd process.
type Daemon struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger

	store   *store.Store
	journal *journal.Journal
	engine  *dispatch.Engine
	monitor *monitor.Monitor
	server  *http.Server
}

// New wires a daemon from config. Nothing is started yet.
func New(cfg *config.Config, opts Options) (*Daemon, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.New(store.Config{Path: cfg.DispatchStatePath, Logger: logger})
	if err != nil {
		return nil, errors.Wrap(err, "creating state store")
	}

	var jnl *journal.Journal
	if cfg.JournalPath != "" {
		jnl, err = journal.Open(cfg.JournalPath, logger)
		if err != nil {
			return nil, errors.Wrap(err, "opening transition journal")
		}
	}

	tracker := opts.Tracker
	if tracker == nil {
		tracker = newLogTracker(logger)
	}

	runner := opts.Runner
	if runner == nil {
		runner, err = agent.NewCLIRunner(cfg.Agent, logger)
		if err != nil {
			return nil, errors.Wrap(err, "creating agent runner")
		}
	}

	var notifiers []dispatch.Notifier
	notifiers = append(notifiers, notify.NewLog(logger))
	if cfg.Slack.Token != "" {
		slackNotifier, err := notify.NewSlack(cfg.Slack, logger)
		if err != nil {
			return nil, errors.Wrap(err, "creating slack notifier")
		}
		notifiers = append(notifiers, slackNotifier)
	}

	prompts, err := prompt.NewBuilder(cfg.PromptDir)
	if err != nil {
		return nil, errors.Wrap(err, "loading prompt templates")
	}

	wrapper := agentrun.NewWrapper(runner, cfg.Watchdog.Resolve(), nil, logger)

	sessions := registry.New()
	if doc, err := st.Read(); err == nil {
		sessions.Hydrate(doc)
	} else {
		logger.Warn("session registry hydration failed", slog.Any("error", err))
	}

	var journalPort dispatch.Journal
	if jnl != nil {
		journalPort = jnl
	}

	engine, err := dispatch.New(dispatch.Options{
		Store:    st,
		Tracker:  tracker,
		Runner:   wrapper,
		Notifier: notify.NewMulti(notifiers...),
		Prompts:  prompts,
		Sessions: sessions,
		Journal:  journalPort,
		Logger:   logger,
		Config: dispatch.Config{
			MaxReworkAttempts: cfg.MaxReworkAttempts,
			CompleteStuck:     cfg.CompleteStuckDispatches,
			ArtifactsDir:      cfg.ArtifactsDir,
			WorkerAgentID:     cfg.WorkerAgent,
			AuditorAgentID:    cfg.AuditorAgent,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating dispatch engine")
	}

	var inFlight func(string) bool
	if tracked, ok := runner.(interface{ InFlight(string) bool }); ok {
		inFlight = tracked.InFlight
	}

	var monitorJournal monitor.Journal
	if jnl != nil {
		monitorJournal = jnl
	}

	mon := monitor.New(monitor.Options{
		Store:    st,
		Pipeline: engine,
		Notifier: notify.NewMulti(notifiers...),
		Journal:  monitorJournal,
		Logger:   logger,
		InFlight: inFlight,
		Config: monitor.Config{
			Tick:       cfg.MonitorTick.Std(),
			StaleAfter: cfg.StaleMaxAge.Std(),
			Retention:  cfg.CompletedRetention.Std(),
		},
	})

	d := &Daemon{
		cfg:     cfg,
		opts:    opts,
		logger:  logger.With(slog.String("component", "daemon")),
		store:   st,
		journal: jnl,
		engine:  engine,
		monitor: mon,
	}
	d.server = &http.Server{
		Addr:              cfg.Listen,
		Handler:           d.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return d, nil
}

// Engine exposes the dispatch engine for embedding hosts.
func (d *Daemon) Engine() *dispatch.Engine {
	return d.engine
}

// Start runs the monitor and the HTTP server until the context is
// cancelled or the server fails.
func (d *Daemon) Start(ctx context.Context) error {
	d.logger.Info("openclawd starting",
		slog.String("version", d.opts.Version),
		slog.String("listen", d.cfg.Listen),
		slog.String("state", d.store.Path()))

	monCtx, cancelMonitor := context.WithCancel(ctx)
	defer cancelMonitor()
	go d.monitor.Run(monCtx)

	errCh := make(chan error, 1)
	go func() {
		if err := d.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return errors.Wrap(err, "http server")
	}
}

// Shutdown stops the HTTP server and closes the journal.
func (d *Daemon) Shutdown(ctx context.Context) error {
	d.logger.Info("openclawd shutting down")

	var firstErr error
	if err := d.server.Shutdown(ctx); err != nil {
		firstErr = errors.Wrap(err, "stopping http server")
	}
	if d.journal != nil {
		if err := d.journal.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "closing journal")
		}
	}
	return firstErr
}
