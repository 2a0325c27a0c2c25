// Package storemetrics times and counts corpus store queries.
package storemetrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricLabels = []string{"query", "success"}

// Metrics holds the query collectors for one store implementation.
type Metrics struct {
	timer   *prometheus.HistogramVec
	counter *prometheus.CounterVec
}

// New registers the collectors for "subsystem" with the default registerer.
//
// It panics if called twice with the same subsystem, so stores call it once
// at package scope.
func New(subsystem string) *Metrics {
	return NewWith(prometheus.DefaultRegisterer, subsystem)
}

// NewWith is like [New] with an explicit registerer.
func NewWith(reg prometheus.Registerer, subsystem string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		timer: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "victims",
			Subsystem: subsystem,
			Name:      "query_duration_seconds",
			Help:      "Database query duration for noted query, including data read time.",
		}, metricLabels),
		counter: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "victims",
			Subsystem: subsystem,
			Name:      "query_total",
			Help:      "Database query count for noted query.",
		}, metricLabels),
	}
}

// Query returns a handle for timing one execution of the named query.
func (m *Metrics) Query(name string) *Query {
	return &Query{m: m, labels: prometheus.Labels{"query": name}}
}

// Query is a single timed execution.
type Query struct {
	m      *Metrics
	labels prometheus.Labels
	timer  *prometheus.Timer
}

// Start begins timing the query. The returned function records the outcome
// reported through "err" and must be called exactly once.
func (q *Query) Start(err *error) func() {
	q.timer = prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
		q.m.timer.With(q.labels).Observe(v)
	}))
	return func() {
		if q.timer == nil {
			return
		}
		q.labels["success"] = strconv.FormatBool(errors.Is(*err, nil))
		q.m.counter.With(q.labels).Inc()
		q.timer.ObserveDuration()
		q.timer = nil
	}
}
