// Copyright 2026 Dolthub, Inc.
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

package nestedset

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	opLabel     = "op"
	resultLabel = "result"
)

// Metrics counts Service activity. A nil *Metrics records nothing.
type Metrics struct {
	mutations     *prometheus.CounterVec
	mutationDur   *prometheus.HistogramVec
	snapshotLoads prometheus.Counter
	snapshotRows  prometheus.Gauge
}

// NewMetrics creates the Service collectors and registers them with |reg|
// when it is not nil.
func NewMetrics(reg prometheus.Registerer, labels prometheus.Labels) (*Metrics, error) {
	m := &Metrics{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "nestedset_mutations_total",
			Help:        "Count of tree mutations by operation and result",
			ConstLabels: labels,
		}, []string{opLabel, resultLabel}),
		mutationDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "nestedset_mutation_duration_seconds",
			Help:        "Time spent in tree mutations, lock wait included",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{opLabel}),
		snapshotLoads: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "nestedset_snapshot_loads_total",
			Help:        "Count of snapshot reloads from the store",
			ConstLabels: labels,
		}),
		snapshotRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "nestedset_snapshot_rows",
			Help:        "Number of nodes in the most recently loaded snapshot",
			ConstLabels: labels,
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.mutations, m.mutationDur, m.snapshotLoads, m.snapshotRows} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

func (m *Metrics) observeMutation(op string, err error, d time.Duration) {
	if m == nil {
		return
	}

	result := "ok"
	switch {
	case err == nil:
	case IsNotFound(err):
		result = "not_found"
	case ErrInvalidArgument.Is(err), IsLogicError(err):
		result = "rejected"
	default:
		result = "error"
	}

	m.mutations.WithLabelValues(op, result).Inc()
	m.mutationDur.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) observeSnapshot(rows int) {
	if m == nil {
		return
	}
	m.snapshotLoads.Inc()
	m.snapshotRows.Set(float64(rows))
}
