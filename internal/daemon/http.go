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
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openclaw/openclaw/internal/dispatch"
	"github.com/openclaw/openclaw/internal/dispatch/state"
)

// dispatchRequest is the POST /v1/dispatches payload.
type dispatchRequest struct {
	IssueID      string `json:"issueId"`
	Identifier   string `json:"identifier"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Branch       string `json:"branch"`
	WorktreePath string `json:"worktreePath"`
	Tier         string `json:"tier"`
	Model        string `json:"model"`
	Project      string `json:"project"`
}

// completionRequest is the POST /v1/hooks/agent-complete payload.
type completionRequest struct {
	SessionKey string `json:"sessionKey"`
	Output     string `json:"output"`
	Success    bool   `json:"success"`
}

// Handler returns the daemon's HTTP mux.
func (d *Daemon) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", d.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /v1/dispatches", d.handleDispatch)
	mux.HandleFunc("GET /v1/dispatches", d.handleListDispatches)
	mux.HandleFunc("GET /v1/dispatches/{identifier}/history", d.handleHistory)
	mux.HandleFunc("POST /v1/hooks/agent-complete", d.handleAgentComplete)
	return mux
}

func (d *Daemon) handleHealth(w http.ResponseWriter, r *http.Request) {
	// The store is the only hard dependency; an unreadable state file
	// means the daemon cannot do anything useful.
	if _, err := d.store.Read(); err != nil {
		d.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	d.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": d.opts.Version,
	})
}

func (d *Daemon) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		d.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Identifier == "" || req.IssueID == "" {
		d.writeError(w, http.StatusBadRequest, "identifier and issueId are required")
		return
	}

	draft := &state.ActiveDispatch{
		IssueID:      req.IssueID,
		Branch:       req.Branch,
		WorktreePath: req.WorktreePath,
		Tier:         state.Tier(req.Tier),
		Model:        req.Model,
		Project:      req.Project,
	}
	issue := dispatch.Issue{
		ID:          req.IssueID,
		Identifier:  req.Identifier,
		Title:       req.Title,
		Description: req.Description,
	}

	// The pipeline runs for as long as the agents do; the request only
	// confirms registration.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 6*time.Hour)
		defer cancel()
		if err := d.engine.Dispatch(ctx, draft, issue); err != nil {
			d.logger.Error("dispatch pipeline failed",
				slog.String("issue", req.Identifier), slog.Any("error", err))
		}
	}()

	d.writeJSON(w, http.StatusAccepted, map[string]string{
		"identifier": req.Identifier,
		"status":     string(state.StatusDispatched),
	})
}

func (d *Daemon) handleListDispatches(w http.ResponseWriter, r *http.Request) {
	doc, err := d.store.Read()
	if err != nil {
		d.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	d.writeJSON(w, http.StatusOK, doc.Dispatches)
}

func (d *Daemon) handleHistory(w http.ResponseWriter, r *http.Request) {
	if d.journal == nil {
		d.writeError(w, http.StatusNotFound, "transition journal is not enabled")
		return
	}
	identifier := r.PathValue("identifier")

	entries, err := d.journal.History(r.Context(), identifier)
	if err != nil {
		d.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	d.writeJSON(w, http.StatusOK, map[string]any{
		"identifier": identifier,
		"history":    entries,
	})
}

func (d *Daemon) handleAgentComplete(w http.ResponseWriter, r *http.Request) {
	var req completionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		d.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionKey == "" {
		d.writeError(w, http.StatusBadRequest, "sessionKey is required")
		return
	}

	// Completion handling can itself run agents (rework, audit); detach
	// from the request like the dispatch path does.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 6*time.Hour)
		defer cancel()
		if err := d.engine.HandleAgentCompletion(ctx, req.SessionKey, req.Output, req.Success); err != nil {
			d.logger.Error("agent completion handling failed",
				slog.String("session_key", req.SessionKey), slog.Any("error", err))
		}
	}()

	w.WriteHeader(http.StatusAccepted)
}

func (d *Daemon) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		d.logger.Debug("writing response failed", slog.Any("error", err))
	}
}

func (d *Daemon) writeError(w http.ResponseWriter, status int, msg string) {
	d.writeJSON(w, status, map[string]string{"error": msg})
}
