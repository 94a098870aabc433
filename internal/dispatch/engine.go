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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/openclaw/openclaw/internal/dispatch/agentrun"
	"github.com/openclaw/openclaw/internal/dispatch/registry"
	"github.com/openclaw/openclaw/internal/dispatch/state"
	"github.com/openclaw/openclaw/pkg/errors"
)

// Default agent IDs used when the config leaves them empty.
const (
	DefaultWorkerAgentID  = "worker"
	DefaultAuditorAgentID = "auditor"
)

// DefaultMaxReworkAttempts bounds audit-fail rework cycles.
const DefaultMaxReworkAttempts = 2

// JournalEntry records one observable state change for the transition
// journal. Journal writes are best-effort and never affect dispatch state.
type JournalEntry struct {
	Identifier string
	From       state.Status
	To         state.Status
	Attempt    int
	Reason     string
}

// Journal is the optional transition journal port.
type Journal interface {
	Record(ctx context.Context, e JournalEntry) error
}

// Config carries engine tunables.
type Config struct {
	// MaxReworkAttempts is how many times a failed audit may send the
	// dispatch back to working. Zero disables rework entirely; nil
	// means the default of 2.
	MaxReworkAttempts *int

	// CompleteStuck, when true, also moves stuck dispatches to the
	// completed table with status failed. When false they stay active
	// as stuck for humans and the monitor to see. One policy for every
	// terminal-failure branch, decided at configuration time.
	CompleteStuck bool

	// ArtifactsDir is where worker outputs are persisted. Empty
	// disables artifact files.
	ArtifactsDir string

	// RunTimeout caps each agent run. Zero falls back to the watchdog
	// profile's max-total.
	RunTimeout time.Duration

	WorkerAgentID  string
	AuditorAgentID string
}

func (c Config) withDefaults() Config {
	result := c
	if result.MaxReworkAttempts == nil {
		budget := DefaultMaxReworkAttempts
		result.MaxReworkAttempts = &budget
	} else if *result.MaxReworkAttempts < 0 {
		budget := 0
		result.MaxReworkAttempts = &budget
	}
	if result.WorkerAgentID == "" {
		result.WorkerAgentID = DefaultWorkerAgentID
	}
	if result.AuditorAgentID == "" {
		result.AuditorAgentID = DefaultAuditorAgentID
	}
	return result
}

// Options wires the engine's ports.
type Options struct {
	Store    StateStore
	Tracker  IssueTracker
	Runner   *agentrun.Wrapper
	Notifier Notifier
	Prompts  PromptBuilder
	Sessions *registry.Registry
	Journal  Journal
	Logger   *slog.Logger
	Config   Config
}

// Engine owns the worker/audit/verdict/rework flow. One engine serves
// many concurrent dispatches; each Dispatch call runs one pipeline to
// its end synchronously.
type Engine struct {
	store    StateStore
	tracker  IssueTracker
	runner   *agentrun.Wrapper
	notifier Notifier
	prompts  PromptBuilder
	sessions *registry.Registry
	journal  Journal
	logger   *slog.Logger
	cfg      Config
}

// New creates the engine. Store, tracker, runner, and prompts are
// required; notifier, sessions, and journal may be nil.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("dispatch: store is required")
	}
	if opts.Tracker == nil {
		return nil, fmt.Errorf("dispatch: tracker is required")
	}
	if opts.Runner == nil {
		return nil, fmt.Errorf("dispatch: runner is required")
	}
	if opts.Prompts == nil {
		return nil, fmt.Errorf("dispatch: prompt builder is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = registry.New()
	}

	return &Engine{
		store:    opts.Store,
		tracker:  opts.Tracker,
		runner:   opts.Runner,
		notifier: opts.Notifier,
		prompts:  opts.Prompts,
		sessions: sessions,
		journal:  opts.Journal,
		logger:   logger.With(slog.String("component", "pipeline")),
		cfg:      opts.Config.withDefaults(),
	}, nil
}

// Sessions exposes the process-local session registry.
func (e *Engine) Sessions() *registry.Registry {
	return e.sessions
}

// Dispatch registers a new dispatch and runs its pipeline to a terminal
// state. The call is synchronous and long-running; callers that serve
// webhooks run it on its own goroutine.
func (e *Engine) Dispatch(ctx context.Context, draft *state.ActiveDispatch, issue Issue) error {
	identifier := issue.Identifier
	if identifier == "" {
		identifier = draft.IssueIdentifier
	}

	err := e.store.Mutate(func(doc *state.Document) error {
		return state.Register(doc, identifier, draft)
	})
	if err != nil {
		return errors.Wrapf(err, "registering dispatch %s", identifier)
	}
	dispatchesRegistered.Inc()
	e.logger.Info("dispatch registered",
		slog.String("issue", identifier),
		slog.String("tier", string(draft.Tier)))

	e.notify(ctx, Notification{
		Kind:       NotifyDispatch,
		Identifier: identifier,
		Title:      issue.Title,
		Status:     state.StatusDispatched,
	})

	return e.runWorker(ctx, identifier, &issue, 0, nil)
}

// runWorker executes one worker attempt. For attempt 0 it performs the
// dispatched -> working transition; rework attempts arrive already in
// working with their session key persisted by the verdict step.
func (e *Engine) runWorker(ctx context.Context, identifier string, issue *Issue, attempt int, gaps []string) error {
	sessionKey := WorkerSessionKey(identifier, attempt)
	logger := e.logger.With(slog.String("issue", identifier), slog.Int("attempt", attempt))

	if attempt == 0 {
		err := e.store.Mutate(func(doc *state.Document) error {
			if terr := state.Transition(doc, identifier, state.StatusDispatched, state.StatusWorking, &state.Patch{
				WorkerSessionKey: &sessionKey,
			}); terr != nil {
				return terr
			}
			state.RegisterSession(doc, sessionKey, state.SessionMapping{
				DispatchID: identifier,
				Phase:      state.PhaseWorker,
				Attempt:    attempt,
			})
			return nil
		})
		if err != nil {
			// A concurrent pipeline beat us here; abort outright.
			return errors.Wrapf(err, "starting worker for %s", identifier)
		}
		recordTransition(string(state.StatusDispatched), string(state.StatusWorking))
	}
	e.sessions.Register(sessionKey, state.SessionMapping{
		DispatchID: identifier,
		Phase:      state.PhaseWorker,
		Attempt:    attempt,
	})

	issue = e.resolveIssue(ctx, identifier, issue)
	e.notify(ctx, Notification{
		Kind:       NotifyWorking,
		Identifier: identifier,
		Title:      issue.Title,
		Status:     state.StatusWorking,
		Attempt:    attempt,
	})

	section := PromptWorker
	if len(gaps) > 0 {
		section = PromptRework
	}
	prompt, err := e.prompts.Render(section, e.promptVars(ctx, identifier, issue, attempt, gaps))
	if err != nil {
		logger.Error("worker prompt render failed", slog.Any("error", err))
		return e.escalate(ctx, identifier, issue, state.StatusWorking, state.ReasonWorkerFailed)
	}

	result := e.runner.Execute(ctx, agentrun.Request{
		AgentID:   e.cfg.WorkerAgentID,
		SessionID: sessionKey,
		Message:   prompt,
		Timeout:   e.cfg.RunTimeout,
	}, e.activitySink(ctx, sessionKey))

	if result.WatchdogKilled {
		watchdogKills.Inc()
		e.notify(ctx, Notification{
			Kind:       NotifyWatchdogKill,
			Identifier: identifier,
			Title:      issue.Title,
			Status:     state.StatusWorking,
			Attempt:    attempt,
		})
	}

	switch result.Kind {
	case agentrun.ResultKilled:
		logger.Warn("worker killed by watchdog on both attempts")
		return e.escalate(ctx, identifier, issue, state.StatusWorking, state.ReasonWatchdogKill)
	case agentrun.ResultFailure:
		logger.Warn("worker failed", slog.String("reason", result.Reason))
		return e.escalate(ctx, identifier, issue, state.StatusWorking, state.ReasonWorkerFailed)
	}

	e.persistArtifact(identifier, attempt, result.Output)

	// The audit is triggered by pipeline code, never by the worker.
	return e.TriggerAudit(ctx, identifier, issue, result.Output)
}

// TriggerAudit moves a dispatch into the audit phase and runs the
// auditor. Safe to call more than once per attempt: duplicate deliveries
// are absorbed by the processed-event guard. The monitor calls this with
// a nil issue and empty worker output to recover missed triggers.
func (e *Engine) TriggerAudit(ctx context.Context, identifier string, issue *Issue, workerOutput string) error {
	d, ok := e.activeDispatch(identifier)
	if !ok {
		return nil
	}
	attempt := d.Attempt
	auditKey := AuditSessionKey(identifier, attempt)
	logger := e.logger.With(slog.String("issue", identifier), slog.Int("attempt", attempt))

	duplicate := false
	err := e.store.Mutate(func(doc *state.Document) error {
		if !state.MarkEventProcessed(doc, auditTriggerEventKey(identifier, attempt)) {
			duplicate = true
			return nil
		}
		if terr := state.Transition(doc, identifier, state.StatusWorking, state.StatusAuditing, &state.Patch{
			AuditSessionKey: &auditKey,
		}); terr != nil {
			return terr
		}
		state.RegisterSession(doc, auditKey, state.SessionMapping{
			DispatchID: identifier,
			Phase:      state.PhaseAudit,
			Attempt:    attempt,
		})
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "starting audit for %s", identifier)
	}
	if duplicate {
		logger.Debug("audit trigger already processed, ignoring")
		return nil
	}
	recordTransition(string(state.StatusWorking), string(state.StatusAuditing))
	e.sessions.Register(auditKey, state.SessionMapping{
		DispatchID: identifier,
		Phase:      state.PhaseAudit,
		Attempt:    attempt,
	})
	e.recordJournal(ctx, JournalEntry{
		Identifier: identifier,
		From:       state.StatusWorking,
		To:         state.StatusAuditing,
		Attempt:    attempt,
	})

	issue = e.resolveIssue(ctx, identifier, issue)
	e.notify(ctx, Notification{
		Kind:       NotifyAuditing,
		Identifier: identifier,
		Title:      issue.Title,
		Status:     state.StatusAuditing,
		Attempt:    attempt,
	})

	// The auditor judges the worktree against the issue description;
	// the worker's own account of its work is deliberately not part of
	// the audit prompt.
	prompt, err := e.prompts.Render(PromptAudit, e.promptVars(ctx, identifier, issue, attempt, nil))
	if err != nil {
		logger.Error("audit prompt render failed", slog.Any("error", err))
		return e.escalate(ctx, identifier, issue, state.StatusAuditing, state.ReasonAuditFailed)
	}

	result := e.runner.Execute(ctx, agentrun.Request{
		AgentID:   e.cfg.AuditorAgentID,
		SessionID: auditKey,
		Message:   prompt,
		Timeout:   e.cfg.RunTimeout,
	}, e.activitySink(ctx, auditKey))

	if result.WatchdogKilled {
		watchdogKills.Inc()
		e.notify(ctx, Notification{
			Kind:       NotifyWatchdogKill,
			Identifier: identifier,
			Title:      issue.Title,
			Status:     state.StatusAuditing,
			Attempt:    attempt,
		})
	}

	if result.Kind == agentrun.ResultKilled {
		logger.Warn("auditor killed by watchdog on both attempts")
		return e.escalate(ctx, identifier, issue, state.StatusAuditing, state.ReasonWatchdogKill)
	}

	// A failed auditor run carries no verdict; its output degrades to
	// an unparsable verdict and takes the fail branch below.
	return e.ProcessVerdict(ctx, identifier, issue, result.Output)
}

// ProcessVerdict parses the auditor output and resolves the attempt:
// done on pass, rework while the budget lasts, stuck otherwise.
func (e *Engine) ProcessVerdict(ctx context.Context, identifier string, issue *Issue, output string) error {
	d, ok := e.activeDispatch(identifier)
	if !ok {
		return nil
	}
	attempt := d.Attempt
	logger := e.logger.With(slog.String("issue", identifier), slog.Int("attempt", attempt))

	verdict := ParseVerdict(output)
	switch {
	case verdict.Pass:
		verdicts.WithLabelValues("pass").Inc()
	case len(verdict.Gaps) == 1 && verdict.Gaps[0] == unparsableGap:
		verdicts.WithLabelValues("unparsable").Inc()
	default:
		verdicts.WithLabelValues("fail").Inc()
	}

	issue = e.resolveIssue(ctx, identifier, issue)

	if verdict.Pass {
		return e.resolvePass(ctx, identifier, issue, attempt, verdict, logger)
	}
	if attempt+1 <= *e.cfg.MaxReworkAttempts {
		return e.resolveRework(ctx, identifier, issue, attempt, verdict, logger)
	}
	return e.resolveStuck(ctx, identifier, issue, attempt, verdict, logger)
}

func (e *Engine) resolvePass(ctx context.Context, identifier string, issue *Issue, attempt int, verdict Verdict, logger *slog.Logger) error {
	duplicate := false
	err := e.store.Mutate(func(doc *state.Document) error {
		if !state.MarkEventProcessed(doc, verdictEventKey(identifier, attempt)) {
			duplicate = true
			return nil
		}
		if terr := state.Transition(doc, identifier, state.StatusAuditing, state.StatusDone, nil); terr != nil {
			return terr
		}
		return state.Complete(doc, identifier, state.Completion{
			Status:      state.StatusDone,
			CompletedAt: time.Now().UTC(),
			PRURL:       verdict.PRURL,
		})
	})
	if err != nil {
		return errors.Wrapf(err, "completing dispatch %s", identifier)
	}
	if duplicate {
		return nil
	}
	recordTransition(string(state.StatusAuditing), string(state.StatusDone))
	e.sessions.RemoveDispatch(identifier)
	e.recordJournal(ctx, JournalEntry{
		Identifier: identifier,
		From:       state.StatusAuditing,
		To:         state.StatusDone,
		Attempt:    attempt,
	})

	logger.Info("audit passed, dispatch done")
	e.postComment(ctx, issue, approvalComment(identifier, verdict))
	e.notify(ctx, Notification{
		Kind:       NotifyAuditPass,
		Identifier: identifier,
		Title:      issue.Title,
		Status:     state.StatusDone,
		Attempt:    attempt,
		Verdict:    &verdict,
	})
	return nil
}

func (e *Engine) resolveRework(ctx context.Context, identifier string, issue *Issue, attempt int, verdict Verdict, logger *slog.Logger) error {
	newAttempt := attempt + 1
	workerKey := WorkerSessionKey(identifier, newAttempt)
	clearAudit := ""

	duplicate := false
	err := e.store.Mutate(func(doc *state.Document) error {
		if !state.MarkEventProcessed(doc, verdictEventKey(identifier, attempt)) {
			duplicate = true
			return nil
		}
		if terr := state.Transition(doc, identifier, state.StatusAuditing, state.StatusWorking, &state.Patch{
			Attempt:          &newAttempt,
			AuditSessionKey:  &clearAudit,
			WorkerSessionKey: &workerKey,
		}); terr != nil {
			return terr
		}
		// Mappings for the finished attempt are dead; the new worker
		// session takes their place in the same locked operation.
		state.RemoveSession(doc, WorkerSessionKey(identifier, attempt))
		state.RemoveSession(doc, AuditSessionKey(identifier, attempt))
		state.RegisterSession(doc, workerKey, state.SessionMapping{
			DispatchID: identifier,
			Phase:      state.PhaseWorker,
			Attempt:    newAttempt,
		})
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "scheduling rework for %s", identifier)
	}
	if duplicate {
		return nil
	}
	recordTransition(string(state.StatusAuditing), string(state.StatusWorking))
	e.sessions.Remove(WorkerSessionKey(identifier, attempt))
	e.sessions.Remove(AuditSessionKey(identifier, attempt))
	e.recordJournal(ctx, JournalEntry{
		Identifier: identifier,
		From:       state.StatusAuditing,
		To:         state.StatusWorking,
		Attempt:    newAttempt,
		Reason:     "audit_fail",
	})

	logger.Info("audit failed, scheduling rework",
		slog.Int("next_attempt", newAttempt),
		slog.Int("gaps", len(verdict.Gaps)))
	e.notify(ctx, Notification{
		Kind:       NotifyAuditFail,
		Identifier: identifier,
		Title:      issue.Title,
		Status:     state.StatusWorking,
		Attempt:    newAttempt,
		Verdict:    &verdict,
	})

	return e.runWorker(ctx, identifier, issue, newAttempt, verdict.Gaps)
}

func (e *Engine) resolveStuck(ctx context.Context, identifier string, issue *Issue, attempt int, verdict Verdict, logger *slog.Logger) error {
	reason := state.ReasonAuditMaxAttempts

	duplicate := false
	err := e.store.Mutate(func(doc *state.Document) error {
		if !state.MarkEventProcessed(doc, verdictEventKey(identifier, attempt)) {
			duplicate = true
			return nil
		}
		if terr := state.Transition(doc, identifier, state.StatusAuditing, state.StatusStuck, &state.Patch{
			StuckReason: &reason,
		}); terr != nil {
			return terr
		}
		if e.cfg.CompleteStuck {
			return state.Complete(doc, identifier, state.Completion{
				Status:      state.StatusFailed,
				CompletedAt: time.Now().UTC(),
			})
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "escalating dispatch %s", identifier)
	}
	if duplicate {
		return nil
	}
	recordTransition(string(state.StatusAuditing), string(state.StatusStuck))
	escalations.WithLabelValues(reason).Inc()
	if e.cfg.CompleteStuck {
		e.sessions.RemoveDispatch(identifier)
	}
	e.recordJournal(ctx, JournalEntry{
		Identifier: identifier,
		From:       state.StatusAuditing,
		To:         state.StatusStuck,
		Attempt:    attempt,
		Reason:     reason,
	})

	logger.Warn("audit failed with rework budget exhausted, escalating")
	e.postComment(ctx, issue, escalationComment(identifier, reason, verdict.Gaps))
	e.notify(ctx, Notification{
		Kind:       NotifyEscalation,
		Identifier: identifier,
		Title:      issue.Title,
		Status:     state.StatusStuck,
		Attempt:    attempt,
		Reason:     reason,
		Verdict:    &verdict,
	})
	return nil
}

// escalate moves a dispatch from the given status to stuck, posts the
// escalation comment, and notifies. CAS failure means a concurrent
// transition already resolved the dispatch; that is logged and accepted.
func (e *Engine) escalate(ctx context.Context, identifier string, issue *Issue, from state.Status, reason string) error {
	err := e.store.Mutate(func(doc *state.Document) error {
		if terr := state.Transition(doc, identifier, from, state.StatusStuck, &state.Patch{
			StuckReason: &reason,
		}); terr != nil {
			return terr
		}
		if e.cfg.CompleteStuck {
			return state.Complete(doc, identifier, state.Completion{
				Status:      state.StatusFailed,
				CompletedAt: time.Now().UTC(),
			})
		}
		return nil
	})
	if err != nil {
		var te *state.TransitionError
		if errors.As(err, &te) {
			e.logger.Info("escalation lost race with concurrent transition",
				slog.String("issue", identifier), slog.Any("error", err))
			return nil
		}
		return errors.Wrapf(err, "escalating dispatch %s", identifier)
	}
	recordTransition(string(from), string(state.StatusStuck))
	escalations.WithLabelValues(reason).Inc()
	if e.cfg.CompleteStuck {
		e.sessions.RemoveDispatch(identifier)
	}
	e.recordJournal(ctx, JournalEntry{
		Identifier: identifier,
		From:       from,
		To:         state.StatusStuck,
		Reason:     reason,
	})

	issue = e.resolveIssue(ctx, identifier, issue)
	e.postComment(ctx, issue, escalationComment(identifier, reason, nil))
	e.notify(ctx, Notification{
		Kind:       NotifyEscalation,
		Identifier: identifier,
		Title:      issue.Title,
		Status:     state.StatusStuck,
		Reason:     reason,
	})
	return nil
}

// activeDispatch reads the current record for an identifier. A missing
// record usually means the dispatch completed concurrently.
func (e *Engine) activeDispatch(identifier string) (*state.ActiveDispatch, bool) {
	doc, err := e.store.Read()
	if err != nil {
		e.logger.Error("reading state failed", slog.String("issue", identifier), slog.Any("error", err))
		return nil, false
	}
	d, ok := doc.Dispatches.Active[identifier]
	if !ok {
		return nil, false
	}
	return d.Clone(), true
}

// resolveIssue fills in issue context from the tracker when the caller
// has none (rework after restart, monitor recovery). Tracker failures
// degrade to a minimal issue; the pipeline keeps going.
func (e *Engine) resolveIssue(ctx context.Context, identifier string, issue *Issue) *Issue {
	if issue != nil && issue.ID != "" {
		return issue
	}
	d, ok := e.activeDispatch(identifier)
	if !ok {
		return &Issue{Identifier: identifier}
	}
	fetched, err := e.tracker.FetchIssue(ctx, d.IssueID)
	if err != nil {
		e.logger.Warn("issue fetch failed, proceeding with minimal context",
			slog.String("issue", identifier), slog.Any("error", err))
		return &Issue{ID: d.IssueID, Identifier: identifier}
	}
	return fetched
}

func (e *Engine) promptVars(ctx context.Context, identifier string, issue *Issue, attempt int, gaps []string) PromptVars {
	worktree := ""
	tier := state.Tier("")
	if d, ok := e.activeDispatch(identifier); ok {
		worktree = d.WorktreePath
		tier = d.Tier
	}
	return PromptVars{
		Identifier:   identifier,
		Title:        issue.Title,
		Description:  issue.Description,
		WorktreePath: worktree,
		Tier:         tier,
		Attempt:      attempt,
		Gaps:         gaps,
	}
}

// activitySink forwards translated run activities to the tracker's
// session timeline. Tracker failures are logged only.
func (e *Engine) activitySink(ctx context.Context, sessionKey string) agentrun.ActivitySink {
	return func(activity agentrun.Activity) {
		if err := e.tracker.EmitActivity(ctx, sessionKey, activity); err != nil {
			e.logger.Debug("emit activity failed",
				slog.String("session_key", sessionKey), slog.Any("error", err))
		}
	}
}

// notify delivers a notification, swallowing channel failures.
func (e *Engine) notify(ctx context.Context, n Notification) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, n); err != nil {
		e.logger.Warn("notification failed",
			slog.String("kind", string(n.Kind)),
			slog.String("issue", n.Identifier),
			slog.Any("error", err))
	}
}

// postComment posts a comment to the issue, best-effort.
func (e *Engine) postComment(ctx context.Context, issue *Issue, markdown string) {
	if issue == nil || issue.ID == "" {
		return
	}
	if err := e.tracker.PostComment(ctx, issue.ID, markdown); err != nil {
		e.logger.Warn("posting comment failed",
			slog.String("issue", issue.Identifier), slog.Any("error", err))
	}
}

// persistArtifact writes the worker output to the artifacts directory.
// The content is opaque to the engine; failures are logged only.
func (e *Engine) persistArtifact(identifier string, attempt int, output string) {
	if e.cfg.ArtifactsDir == "" || output == "" {
		return
	}
	if err := os.MkdirAll(e.cfg.ArtifactsDir, 0700); err != nil {
		e.logger.Warn("creating artifacts dir failed", slog.Any("error", err))
		return
	}
	path := filepath.Join(e.cfg.ArtifactsDir, fmt.Sprintf("%s-worker-%d.md", identifier, attempt))
	if err := os.WriteFile(path, []byte(output), 0600); err != nil {
		e.logger.Warn("writing worker artifact failed",
			slog.String("path", path), slog.Any("error", err))
	}
}

func (e *Engine) recordJournal(ctx context.Context, entry JournalEntry) {
	if e.journal == nil {
		return
	}
	if err := e.journal.Record(ctx, entry); err != nil {
		e.logger.Debug("journal write failed",
			slog.String("issue", entry.Identifier), slog.Any("error", err))
	}
}

func approvalComment(identifier string, verdict Verdict) string {
	msg := fmt.Sprintf("✅ Audit passed for %s.", identifier)
	if len(verdict.Criteria) > 0 {
		msg += "\n\nVerified criteria:"
		for _, c := range verdict.Criteria {
			msg += fmt.Sprintf("\n- %s", c)
		}
	}
	if verdict.TestResults != "" {
		msg += fmt.Sprintf("\n\nTests: %s", verdict.TestResults)
	}
	return msg
}

func escalationComment(identifier, reason string, gaps []string) string {
	msg := fmt.Sprintf("🚨 %s needs human attention (%s).", identifier, reason)
	if len(gaps) > 0 {
		msg += "\n\nOutstanding gaps:"
		for _, g := range gaps {
			msg += fmt.Sprintf("\n- %s", g)
		}
	}
	return msg
}
