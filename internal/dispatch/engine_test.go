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
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/openclaw/internal/dispatch/agentrun"
	"github.com/openclaw/openclaw/internal/dispatch/state"
	"github.com/openclaw/openclaw/internal/dispatch/watchdog"
)

// memStore is an in-memory StateStore with copy-on-mutate semantics so
// an aborted mutation never leaks partial changes, mirroring the file
// store's behavior.
type memStore struct {
	mu  sync.Mutex
	doc *state.Document
}

func newMemStore() *memStore {
	return &memStore{doc: state.NewDocument()}
}

func cloneDoc(doc *state.Document) (*state.Document, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	clone := &state.Document{}
	if err := json.Unmarshal(raw, clone); err != nil {
		return nil, err
	}
	clone.EnsureTables()
	return clone, nil
}

func (s *memStore) Read() (*state.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneDoc(s.doc)
}

func (s *memStore) Mutate(fn func(doc *state.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone, err := cloneDoc(s.doc)
	if err != nil {
		return err
	}
	if err := fn(clone); err != nil {
		return err
	}
	s.doc = clone
	return nil
}

type fakeTracker struct {
	mu         sync.Mutex
	issue      Issue
	comments   []string
	activities []agentrun.Activity
}

func (f *fakeTracker) FetchIssue(ctx context.Context, issueID string) (*Issue, error) {
	issue := f.issue
	return &issue, nil
}

func (f *fakeTracker) PostComment(ctx context.Context, issueID, markdown string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments = append(f.comments, markdown)
	return nil
}

func (f *fakeTracker) EmitActivity(ctx context.Context, sessionID string, activity agentrun.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activities = append(f.activities, activity)
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	kinds []NotifyKind
}

func (f *fakeNotifier) Notify(ctx context.Context, n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, n.Kind)
	return nil
}

func (f *fakeNotifier) saw(kind NotifyKind) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range f.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

type staticPrompts struct {
	mu       sync.Mutex
	sections []PromptSection
}

func (p *staticPrompts) Render(section PromptSection, vars PromptVars) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sections = append(p.sections, section)
	return fmt.Sprintf("%s prompt for %s attempt %d", section, vars.Identifier, vars.Attempt), nil
}

// queueRunner plays back scripted results in call order. The pipeline is
// sequential, so order is deterministic: worker, audit, worker, audit...
type queueRunner struct {
	mu       sync.Mutex
	steps    []func(req agentrun.Request) (agentrun.Result, error)
	requests []agentrun.Request
	aborts   []string
}

func (r *queueRunner) Run(ctx context.Context, req agentrun.Request) (agentrun.Result, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	var step func(agentrun.Request) (agentrun.Result, error)
	if len(r.steps) > 0 {
		step = r.steps[0]
		r.steps = r.steps[1:]
	}
	r.mu.Unlock()

	if step == nil {
		return agentrun.Result{Kind: agentrun.ResultSuccess}, nil
	}
	return step(req)
}

func (r *queueRunner) Abort(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aborts = append(r.aborts, sessionID)
}

func (r *queueRunner) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func succeed(output string) func(agentrun.Request) (agentrun.Result, error) {
	return func(agentrun.Request) (agentrun.Result, error) {
		return agentrun.Result{Kind: agentrun.ResultSuccess, Output: output}, nil
	}
}

func fail(reason string) func(agentrun.Request) (agentrun.Result, error) {
	return func(agentrun.Request) (agentrun.Result, error) {
		return agentrun.Result{}, fmt.Errorf("%s", reason)
	}
}

const (
	passVerdict = `{"pass": true, "criteria": ["acceptance criteria met"], "prUrl": "https://example.com/pr/12"}`
	failVerdict = `{"pass": false, "gaps": ["no tests for the error path"]}`
)

func reworkBudget(n int) *int {
	return &n
}

type engineFixture struct {
	engine   *Engine
	store    *memStore
	tracker  *fakeTracker
	notifier *fakeNotifier
	prompts  *staticPrompts
}

func newEngineFixture(t *testing.T, runner agentrun.Runner, cfg Config) *engineFixture {
	t.Helper()

	store := newMemStore()
	tracker := &fakeTracker{issue: Issue{
		ID:          "iss-1",
		Identifier:  "OC-7",
		Title:       "Fix flaky retry loop",
		Description: "Retries give up too early.",
	}}
	notifier := &fakeNotifier{}
	prompts := &staticPrompts{}

	wrapper := agentrun.NewWrapper(runner, watchdog.Config{
		Inactivity:  25 * time.Millisecond,
		MaxTotal:    5 * time.Second,
		ToolTimeout: time.Second,
	}, nil, nil)

	engine, err := New(Options{
		Store:    store,
		Tracker:  tracker,
		Runner:   wrapper,
		Notifier: notifier,
		Prompts:  prompts,
		Config:   cfg,
	})
	require.NoError(t, err)

	return &engineFixture{
		engine:   engine,
		store:    store,
		tracker:  tracker,
		notifier: notifier,
		prompts:  prompts,
	}
}

func (f *engineFixture) dispatch(t *testing.T) error {
	t.Helper()
	return f.engine.Dispatch(context.Background(), &state.ActiveDispatch{
		IssueID:      "iss-1",
		Tier:         state.TierMedior,
		WorktreePath: "/tmp/worktrees/OC-7",
	}, f.tracker.issue)
}

func TestPipelineHappyPath(t *testing.T) {
	runner := &queueRunner{steps: []func(agentrun.Request) (agentrun.Result, error){
		succeed("implemented the fix"),
		succeed(passVerdict),
	}}
	f := newEngineFixture(t, runner, Config{})

	require.NoError(t, f.dispatch(t))

	doc, err := f.store.Read()
	require.NoError(t, err)
	assert.Empty(t, doc.Dispatches.Active)
	require.Contains(t, doc.Dispatches.Completed, "OC-7")
	done := doc.Dispatches.Completed["OC-7"]
	assert.Equal(t, state.StatusDone, done.Status)
	assert.Equal(t, 1, done.TotalAttempts)
	assert.Equal(t, "https://example.com/pr/12", done.PRURL)
	assert.Equal(t, state.TierMedior, done.Tier)

	assert.Empty(t, doc.SessionMap, "completion purges session mappings")
	assert.Contains(t, doc.ProcessedEvents, "audit-trigger:OC-7:0")
	assert.Contains(t, doc.ProcessedEvents, "verdict:OC-7:0")

	require.Equal(t, 2, runner.calls())
	assert.Equal(t, "worker", runner.requests[0].AgentID)
	assert.Equal(t, "linear-worker-OC-7-0", runner.requests[0].SessionID)
	assert.Equal(t, "auditor", runner.requests[1].AgentID)
	assert.Equal(t, "linear-audit-OC-7-0", runner.requests[1].SessionID)

	assert.True(t, f.notifier.saw(NotifyDispatch))
	assert.True(t, f.notifier.saw(NotifyWorking))
	assert.True(t, f.notifier.saw(NotifyAuditing))
	assert.True(t, f.notifier.saw(NotifyAuditPass))

	require.Len(t, f.tracker.comments, 1)
	assert.Contains(t, f.tracker.comments[0], "Audit passed")
}

func TestPipelineSingleRework(t *testing.T) {
	runner := &queueRunner{steps: []func(agentrun.Request) (agentrun.Result, error){
		succeed("first pass"),
		succeed(failVerdict),
		succeed("addressed the gaps"),
		succeed(passVerdict),
	}}
	f := newEngineFixture(t, runner, Config{})

	require.NoError(t, f.dispatch(t))

	doc, err := f.store.Read()
	require.NoError(t, err)
	require.Contains(t, doc.Dispatches.Completed, "OC-7")
	assert.Equal(t, 2, doc.Dispatches.Completed["OC-7"].TotalAttempts)

	require.Equal(t, 4, runner.calls())
	assert.Equal(t, "linear-worker-OC-7-1", runner.requests[2].SessionID)
	assert.Equal(t, "linear-audit-OC-7-1", runner.requests[3].SessionID)

	// The rework prompt carries the gaps section, not the fresh one.
	assert.Equal(t,
		[]PromptSection{PromptWorker, PromptAudit, PromptRework, PromptAudit},
		f.prompts.sections)

	assert.True(t, f.notifier.saw(NotifyAuditFail))
	assert.Contains(t, doc.ProcessedEvents, "verdict:OC-7:0")
	assert.Contains(t, doc.ProcessedEvents, "verdict:OC-7:1")
}

func TestPipelineEscalatesAfterReworkBudget(t *testing.T) {
	runner := &queueRunner{steps: []func(agentrun.Request) (agentrun.Result, error){
		succeed("first pass"),
		succeed(failVerdict),
		succeed("second pass"),
		succeed(failVerdict),
	}}
	f := newEngineFixture(t, runner, Config{MaxReworkAttempts: reworkBudget(1)})

	require.NoError(t, f.dispatch(t))

	doc, err := f.store.Read()
	require.NoError(t, err)
	require.Contains(t, doc.Dispatches.Active, "OC-7")
	d := doc.Dispatches.Active["OC-7"]
	assert.Equal(t, state.StatusStuck, d.Status)
	assert.Equal(t, state.ReasonAuditMaxAttempts, d.StuckReason)
	assert.Empty(t, doc.Dispatches.Completed, "stuck stays active by default")

	assert.True(t, f.notifier.saw(NotifyEscalation))
	require.NotEmpty(t, f.tracker.comments)
	last := f.tracker.comments[len(f.tracker.comments)-1]
	assert.Contains(t, last, "needs human attention")
	assert.Contains(t, last, "no tests for the error path")
}

func TestPipelineZeroReworkBudgetEscalatesImmediately(t *testing.T) {
	runner := &queueRunner{steps: []func(agentrun.Request) (agentrun.Result, error){
		succeed("first pass"),
		succeed(failVerdict),
	}}
	f := newEngineFixture(t, runner, Config{MaxReworkAttempts: reworkBudget(0)})

	require.NoError(t, f.dispatch(t))

	// An explicit zero budget means the first failed audit is terminal:
	// no rework runs at all.
	assert.Equal(t, 2, runner.calls())

	doc, err := f.store.Read()
	require.NoError(t, err)
	require.Contains(t, doc.Dispatches.Active, "OC-7")
	d := doc.Dispatches.Active["OC-7"]
	assert.Equal(t, state.StatusStuck, d.Status)
	assert.Equal(t, state.ReasonAuditMaxAttempts, d.StuckReason)
	assert.True(t, f.notifier.saw(NotifyEscalation))
	assert.False(t, f.notifier.saw(NotifyAuditFail))
}

func TestConfigNilReworkBudgetDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	require.NotNil(t, cfg.MaxReworkAttempts)
	assert.Equal(t, DefaultMaxReworkAttempts, *cfg.MaxReworkAttempts)

	zero := Config{MaxReworkAttempts: reworkBudget(0)}.withDefaults()
	require.NotNil(t, zero.MaxReworkAttempts)
	assert.Equal(t, 0, *zero.MaxReworkAttempts)
}

func TestPipelineCompleteStuckPolicy(t *testing.T) {
	runner := &queueRunner{steps: []func(agentrun.Request) (agentrun.Result, error){
		succeed("first pass"),
		succeed(failVerdict),
		succeed("second pass"),
		succeed(failVerdict),
	}}
	f := newEngineFixture(t, runner, Config{MaxReworkAttempts: reworkBudget(1), CompleteStuck: true})

	require.NoError(t, f.dispatch(t))

	doc, err := f.store.Read()
	require.NoError(t, err)
	assert.Empty(t, doc.Dispatches.Active)
	require.Contains(t, doc.Dispatches.Completed, "OC-7")
	assert.Equal(t, state.StatusFailed, doc.Dispatches.Completed["OC-7"].Status)
}

func TestPipelineWorkerFailureEscalates(t *testing.T) {
	runner := &queueRunner{steps: []func(agentrun.Request) (agentrun.Result, error){
		fail("agent backend unreachable"),
	}}
	f := newEngineFixture(t, runner, Config{})

	require.NoError(t, f.dispatch(t))

	doc, err := f.store.Read()
	require.NoError(t, err)
	require.Contains(t, doc.Dispatches.Active, "OC-7")
	d := doc.Dispatches.Active["OC-7"]
	assert.Equal(t, state.StatusStuck, d.Status)
	assert.Equal(t, state.ReasonWorkerFailed, d.StuckReason)

	assert.Equal(t, 1, runner.calls(), "non-watchdog failure is not retried")
	assert.True(t, f.notifier.saw(NotifyEscalation))
}

func TestPipelineAuditorFailureTakesFailBranch(t *testing.T) {
	runner := &queueRunner{steps: []func(agentrun.Request) (agentrun.Result, error){
		succeed("first pass"),
		fail("auditor backend crashed"),
		succeed("second pass"),
		succeed(passVerdict),
	}}
	f := newEngineFixture(t, runner, Config{})

	require.NoError(t, f.dispatch(t))

	// The crashed audit carries no readable verdict; the pipeline treats
	// it as a failed audit and reworks instead of wedging.
	doc, err := f.store.Read()
	require.NoError(t, err)
	require.Contains(t, doc.Dispatches.Completed, "OC-7")
	assert.Equal(t, 2, doc.Dispatches.Completed["OC-7"].TotalAttempts)
}

// failingPrompts renders normally except for one section.
type failingPrompts struct {
	inner  staticPrompts
	failOn PromptSection
}

func (p *failingPrompts) Render(section PromptSection, vars PromptVars) (string, error) {
	if section == p.failOn {
		return "", fmt.Errorf("template: %s: missing variable", section)
	}
	return p.inner.Render(section, vars)
}

func TestPipelineAuditPromptFailureEscalatesAsAuditFailed(t *testing.T) {
	runner := &queueRunner{steps: []func(agentrun.Request) (agentrun.Result, error){
		succeed("implemented"),
	}}

	store := newMemStore()
	tracker := &fakeTracker{issue: Issue{ID: "iss-1", Identifier: "OC-7", Title: "t"}}
	notifier := &fakeNotifier{}
	wrapper := agentrun.NewWrapper(runner, watchdog.Config{
		Inactivity: 25 * time.Millisecond,
		MaxTotal:   5 * time.Second,
	}, nil, nil)

	engine, err := New(Options{
		Store:    store,
		Tracker:  tracker,
		Runner:   wrapper,
		Notifier: notifier,
		Prompts:  &failingPrompts{failOn: PromptAudit},
	})
	require.NoError(t, err)

	require.NoError(t, engine.Dispatch(context.Background(), &state.ActiveDispatch{
		IssueID: "iss-1",
	}, tracker.issue))

	// The rework budget was never touched; the reason says what broke.
	doc, err := store.Read()
	require.NoError(t, err)
	require.Contains(t, doc.Dispatches.Active, "OC-7")
	d := doc.Dispatches.Active["OC-7"]
	assert.Equal(t, state.StatusStuck, d.Status)
	assert.Equal(t, state.ReasonAuditFailed, d.StuckReason)
	assert.Equal(t, 1, runner.calls(), "no audit run without a prompt")
}

// stallingAgent streams nothing and blocks until killed. Both wrapper
// attempts get watchdog-killed, which the pipeline escalates.
type stallingAgent struct {
	mu     sync.Mutex
	aborts []string
}

func (s *stallingAgent) Run(ctx context.Context, req agentrun.Request) (agentrun.Result, error) {
	<-ctx.Done()
	return agentrun.Result{}, ctx.Err()
}

func (s *stallingAgent) RunStreaming(ctx context.Context, req agentrun.Request, stream agentrun.StreamFunc) (agentrun.Result, error) {
	<-ctx.Done()
	return agentrun.Result{}, ctx.Err()
}

func (s *stallingAgent) Abort(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborts = append(s.aborts, sessionID)
}

func TestPipelineWatchdogKillEscalates(t *testing.T) {
	runner := &stallingAgent{}
	f := newEngineFixture(t, runner, Config{})

	require.NoError(t, f.dispatch(t))

	doc, err := f.store.Read()
	require.NoError(t, err)
	require.Contains(t, doc.Dispatches.Active, "OC-7")
	d := doc.Dispatches.Active["OC-7"]
	assert.Equal(t, state.StatusStuck, d.Status)
	assert.Equal(t, state.ReasonWatchdogKill, d.StuckReason)

	assert.True(t, f.notifier.saw(NotifyWatchdogKill))
	assert.True(t, f.notifier.saw(NotifyEscalation))

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Len(t, runner.aborts, 2, "one abort per killed attempt")
}

func TestTriggerAuditDuplicateIgnored(t *testing.T) {
	runner := &queueRunner{steps: []func(agentrun.Request) (agentrun.Result, error){
		succeed(passVerdict),
	}}
	f := newEngineFixture(t, runner, Config{})

	// Seed a dispatch already in working, as after a host restart.
	require.NoError(t, f.store.Mutate(func(doc *state.Document) error {
		if err := state.Register(doc, "OC-7", &state.ActiveDispatch{IssueID: "iss-1"}); err != nil {
			return err
		}
		key := WorkerSessionKey("OC-7", 0)
		if err := state.Transition(doc, "OC-7", state.StatusDispatched, state.StatusWorking, &state.Patch{
			WorkerSessionKey: &key,
		}); err != nil {
			return err
		}
		state.RegisterSession(doc, key, state.SessionMapping{DispatchID: "OC-7", Phase: state.PhaseWorker})
		return nil
	}))

	ctx := context.Background()
	require.NoError(t, f.engine.TriggerAudit(ctx, "OC-7", nil, "worker output"))
	calls := runner.calls()

	// Redelivery of the same attempt's trigger must not start anything;
	// the dispatch has in fact already completed.
	require.NoError(t, f.engine.TriggerAudit(ctx, "OC-7", nil, "worker output"))
	assert.Equal(t, calls, runner.calls())
}

func TestHandleAgentCompletionWorkerSuccess(t *testing.T) {
	runner := &queueRunner{steps: []func(agentrun.Request) (agentrun.Result, error){
		succeed(passVerdict),
	}}
	f := newEngineFixture(t, runner, Config{})

	require.NoError(t, f.store.Mutate(func(doc *state.Document) error {
		if err := state.Register(doc, "OC-7", &state.ActiveDispatch{IssueID: "iss-1"}); err != nil {
			return err
		}
		key := WorkerSessionKey("OC-7", 0)
		if err := state.Transition(doc, "OC-7", state.StatusDispatched, state.StatusWorking, &state.Patch{
			WorkerSessionKey: &key,
		}); err != nil {
			return err
		}
		state.RegisterSession(doc, key, state.SessionMapping{DispatchID: "OC-7", Phase: state.PhaseWorker})
		return nil
	}))

	err := f.engine.HandleAgentCompletion(context.Background(), WorkerSessionKey("OC-7", 0), "did the work", true)
	require.NoError(t, err)

	doc, err := f.store.Read()
	require.NoError(t, err)
	assert.Contains(t, doc.Dispatches.Completed, "OC-7")
}

func TestHandleAgentCompletionWorkerFailure(t *testing.T) {
	f := newEngineFixture(t, &queueRunner{}, Config{})

	require.NoError(t, f.store.Mutate(func(doc *state.Document) error {
		if err := state.Register(doc, "OC-7", &state.ActiveDispatch{IssueID: "iss-1"}); err != nil {
			return err
		}
		key := WorkerSessionKey("OC-7", 0)
		if err := state.Transition(doc, "OC-7", state.StatusDispatched, state.StatusWorking, &state.Patch{
			WorkerSessionKey: &key,
		}); err != nil {
			return err
		}
		state.RegisterSession(doc, key, state.SessionMapping{DispatchID: "OC-7", Phase: state.PhaseWorker})
		return nil
	}))

	err := f.engine.HandleAgentCompletion(context.Background(), WorkerSessionKey("OC-7", 0), "", false)
	require.NoError(t, err)

	doc, err := f.store.Read()
	require.NoError(t, err)
	require.Contains(t, doc.Dispatches.Active, "OC-7")
	assert.Equal(t, state.StatusStuck, doc.Dispatches.Active["OC-7"].Status)
	assert.Equal(t, state.ReasonWorkerFailed, doc.Dispatches.Active["OC-7"].StuckReason)
}

func TestHandleAgentCompletionAuditVerdict(t *testing.T) {
	f := newEngineFixture(t, &queueRunner{}, Config{})

	require.NoError(t, f.store.Mutate(func(doc *state.Document) error {
		if err := state.Register(doc, "OC-7", &state.ActiveDispatch{IssueID: "iss-1"}); err != nil {
			return err
		}
		workerKey := WorkerSessionKey("OC-7", 0)
		if err := state.Transition(doc, "OC-7", state.StatusDispatched, state.StatusWorking, &state.Patch{
			WorkerSessionKey: &workerKey,
		}); err != nil {
			return err
		}
		auditKey := AuditSessionKey("OC-7", 0)
		if err := state.Transition(doc, "OC-7", state.StatusWorking, state.StatusAuditing, &state.Patch{
			AuditSessionKey: &auditKey,
		}); err != nil {
			return err
		}
		state.RegisterSession(doc, auditKey, state.SessionMapping{DispatchID: "OC-7", Phase: state.PhaseAudit})
		return nil
	}))

	err := f.engine.HandleAgentCompletion(context.Background(), AuditSessionKey("OC-7", 0), passVerdict, true)
	require.NoError(t, err)

	doc, err := f.store.Read()
	require.NoError(t, err)
	require.Contains(t, doc.Dispatches.Completed, "OC-7")
	assert.Equal(t, state.StatusDone, doc.Dispatches.Completed["OC-7"].Status)
}

func TestHandleAgentCompletionUnknownSession(t *testing.T) {
	runner := &queueRunner{}
	f := newEngineFixture(t, runner, Config{})

	err := f.engine.HandleAgentCompletion(context.Background(), "linear-worker-NOPE-0", "output", true)
	require.NoError(t, err)
	assert.Zero(t, runner.calls())
}

func TestHandleAgentCompletionStaleAttempt(t *testing.T) {
	runner := &queueRunner{}
	f := newEngineFixture(t, runner, Config{})

	require.NoError(t, f.store.Mutate(func(doc *state.Document) error {
		if err := state.Register(doc, "OC-7", &state.ActiveDispatch{IssueID: "iss-1"}); err != nil {
			return err
		}
		// Dispatch is on attempt 1; the mapping is from attempt 0.
		one := 1
		key1 := WorkerSessionKey("OC-7", 1)
		if err := state.Transition(doc, "OC-7", state.StatusDispatched, state.StatusWorking, &state.Patch{
			Attempt:          &one,
			WorkerSessionKey: &key1,
		}); err != nil {
			return err
		}
		state.RegisterSession(doc, WorkerSessionKey("OC-7", 0), state.SessionMapping{
			DispatchID: "OC-7", Phase: state.PhaseWorker, Attempt: 0,
		})
		return nil
	}))

	err := f.engine.HandleAgentCompletion(context.Background(), WorkerSessionKey("OC-7", 0), "stale output", true)
	require.NoError(t, err)

	assert.Zero(t, runner.calls())
	doc, err := f.store.Read()
	require.NoError(t, err)
	assert.Equal(t, state.StatusWorking, doc.Dispatches.Active["OC-7"].Status)
}

func TestDispatchDuplicateIdentifierRejected(t *testing.T) {
	runner := &queueRunner{steps: []func(agentrun.Request) (agentrun.Result, error){
		succeed("work"),
		succeed(passVerdict),
	}}
	f := newEngineFixture(t, runner, Config{})

	require.NoError(t, f.store.Mutate(func(doc *state.Document) error {
		return state.Register(doc, "OC-7", &state.ActiveDispatch{IssueID: "iss-1"})
	}))

	err := f.dispatch(t)
	require.Error(t, err)
	assert.ErrorIs(t, err, state.ErrAlreadyActive)
	assert.Zero(t, runner.calls())
}
