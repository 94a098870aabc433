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

// Package registry holds the process-local view of in-flight agent
// sessions for tool lookups. The durable session map lives in the store;
// this mirror exists so tools can resolve a session without disk I/O.
package registry

import (
	"sync"

	"github.com/openclaw/openclaw/internal/dispatch/state"
)

// Registry is a process-local session map. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]state.SessionMapping
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{sessions: make(map[string]state.SessionMapping)}
}

// Hydrate replaces the registry contents with the session map of the
// given document. Called once at boot so sessions survive restarts.
func (r *Registry) Hydrate(doc *state.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions = make(map[string]state.SessionMapping, len(doc.SessionMap))
	for key, m := range doc.SessionMap {
		r.sessions[key] = m
	}
}

// Register records a session mapping.
func (r *Registry) Register(sessionKey string, mapping state.SessionMapping) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionKey] = mapping
}

// Lookup returns the mapping for a session key, if present.
func (r *Registry) Lookup(sessionKey string) (state.SessionMapping, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.sessions[sessionKey]
	return m, ok
}

// Remove drops a session mapping. Missing keys are a no-op.
func (r *Registry) Remove(sessionKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionKey)
}

// RemoveDispatch drops every mapping that points at the given dispatch.
func (r *Registry) RemoveDispatch(dispatchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, m := range r.sessions {
		if m.DispatchID == dispatchID {
			delete(r.sessions, key)
		}
	}
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
