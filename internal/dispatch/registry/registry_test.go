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

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/openclaw/internal/dispatch/state"
)

func TestRegistry_RoundTrip(t *testing.T) {
	r := New()
	r.Register("linear-worker-CT-1-0", state.SessionMapping{DispatchID: "CT-1", Phase: state.PhaseWorker})

	m, ok := r.Lookup("linear-worker-CT-1-0")
	require.True(t, ok)
	assert.Equal(t, "CT-1", m.DispatchID)

	r.Remove("linear-worker-CT-1-0")
	_, ok = r.Lookup("linear-worker-CT-1-0")
	assert.False(t, ok)
}

func TestRegistry_Hydrate(t *testing.T) {
	doc := state.NewDocument()
	state.RegisterSession(doc, "linear-worker-CT-1-0", state.SessionMapping{DispatchID: "CT-1", Phase: state.PhaseWorker})
	state.RegisterSession(doc, "linear-audit-CT-1-0", state.SessionMapping{DispatchID: "CT-1", Phase: state.PhaseAudit})

	r := New()
	r.Register("leftover", state.SessionMapping{DispatchID: "CT-9"})
	r.Hydrate(doc)

	assert.Equal(t, 2, r.Len())
	_, ok := r.Lookup("leftover")
	assert.False(t, ok)

	// Hydrate copies; later document edits must not leak in.
	state.RegisterSession(doc, "late", state.SessionMapping{DispatchID: "CT-2"})
	_, ok = r.Lookup("late")
	assert.False(t, ok)
}

func TestRegistry_RemoveDispatch(t *testing.T) {
	r := New()
	r.Register("w1", state.SessionMapping{DispatchID: "CT-1", Phase: state.PhaseWorker})
	r.Register("a1", state.SessionMapping{DispatchID: "CT-1", Phase: state.PhaseAudit})
	r.Register("w2", state.SessionMapping{DispatchID: "CT-2", Phase: state.PhaseWorker})

	r.RemoveDispatch("CT-1")
	assert.Equal(t, 1, r.Len())
	_, ok := r.Lookup("w2")
	assert.True(t, ok)
}
