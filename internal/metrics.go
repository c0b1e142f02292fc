// Copyright 2025 Tetrate
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

package internal

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors exported by the authorizer.
type Metrics struct {
	Registry  *prometheus.Registry
	decisions *prometheus.CounterVec
	engine    prometheus.Histogram
}

// NewMetrics creates the authorizer collectors in a dedicated registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Authorization verdicts by envelope kind, outcome and status code.",
		}, []string{"kind", "outcome", "status"}),
		engine: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "authz_policy_engine_seconds",
			Help:    "Latency of the policy engine call.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	m.Registry.MustRegister(m.decisions, m.engine)
	return m
}

// ObserveVerdict counts a verdict. It is safe to call on a nil receiver.
func (m *Metrics) ObserveVerdict(kind, outcome string, status int) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(kind, outcome, statusLabel(status)).Inc()
}

// ObserveEngine records the latency of a policy engine call. It is safe to call on a nil receiver.
func (m *Metrics) ObserveEngine(d time.Duration) {
	if m == nil {
		return
	}
	m.engine.Observe(d.Seconds())
}

func statusLabel(status int) string {
	if status < 100 || status > 999 {
		return "unknown"
	}
	return strconv.Itoa(status)
}
