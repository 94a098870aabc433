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

// Package agent runs coding agents as subprocesses. The agent CLI gets
// the prompt on stdin and produces its final answer on stdout; stderr is
// streamed into the log.
package agent

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/openclaw/openclaw/internal/dispatch/agentrun"
	"github.com/openclaw/openclaw/pkg/errors"
)

// CLIConfig describes how to invoke the agent binary.
type CLIConfig struct {
	// Command is the agent executable.
	Command string `yaml:"command"`

	// Args are passed before the generated flags.
	Args []string `yaml:"args"`
}

// CLIRunner executes agent runs as subprocesses. It implements
// agentrun.Runner and tracks live processes so runs can be aborted and
// the monitor can tell which sessions are still in flight.
type CLIRunner struct {
	cfg    CLIConfig
	logger *slog.Logger

	mu      sync.Mutex
	running map[string]*exec.Cmd
}

// NewCLIRunner creates a subprocess runner.
func NewCLIRunner(cfg CLIConfig, logger *slog.Logger) (*CLIRunner, error) {
	if cfg.Command == "" {
		return nil, errors.New("agent: command is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIRunner{
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "agent")),
		running: make(map[string]*exec.Cmd),
	}, nil
}

// Run implements agentrun.Runner.
func (r *CLIRunner) Run(ctx context.Context, req agentrun.Request) (agentrun.Result, error) {
	args := append(append([]string{}, r.cfg.Args...),
		"--agent", req.AgentID,
		"--session", req.SessionID,
	)
	cmd := exec.CommandContext(ctx, r.cfg.Command, args...)
	cmd.Stdin = bytes.NewReader([]byte(req.Message))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.mu.Lock()
	if _, exists := r.running[req.SessionID]; exists {
		r.mu.Unlock()
		return agentrun.Result{}, errors.New("agent: session already running: " + req.SessionID)
	}
	r.running[req.SessionID] = cmd
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.running, req.SessionID)
		r.mu.Unlock()
	}()

	r.logger.Debug("starting agent run",
		slog.String("session_key", req.SessionID),
		slog.String("agent", req.AgentID))

	err := cmd.Run()
	if stderr.Len() > 0 {
		r.logger.Debug("agent stderr",
			slog.String("session_key", req.SessionID),
			slog.String("stderr", stderr.String()))
	}
	if err != nil {
		return agentrun.Result{Output: stdout.String()},
			errors.Wrapf(err, "agent run %s", req.SessionID)
	}
	return agentrun.Result{Kind: agentrun.ResultSuccess, Output: stdout.String()}, nil
}

// Abort implements agentrun.Runner by killing the session's process.
func (r *CLIRunner) Abort(sessionID string) {
	r.mu.Lock()
	cmd := r.running[sessionID]
	r.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return
	}
	r.logger.Warn("aborting agent run", slog.String("session_key", sessionID))
	if err := cmd.Process.Kill(); err != nil {
		r.logger.Debug("kill failed", slog.String("session_key", sessionID), slog.Any("error", err))
	}
}

// InFlight reports whether a session currently has a live process.
func (r *CLIRunner) InFlight(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[sessionID]
	return ok
}
