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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchesRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "openclaw_dispatches_registered_total",
			Help: "Total dispatches registered with the pipeline",
		},
	)

	transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openclaw_dispatch_transitions_total",
			Help: "Total dispatch status transitions by from and to status",
		},
		[]string{"from", "to"},
	)

	verdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openclaw_audit_verdicts_total",
			Help: "Total audit verdicts by result (pass, fail, unparsable)",
		},
		[]string{"result"},
	)

	watchdogKills = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "openclaw_watchdog_kills_total",
			Help: "Total agent runs killed by the inactivity watchdog",
		},
	)

	escalations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openclaw_escalations_total",
			Help: "Total dispatches escalated to stuck by reason",
		},
		[]string{"reason"},
	)
)

func recordTransition(from, to string) {
	transitions.WithLabelValues(from, to).Inc()
}
