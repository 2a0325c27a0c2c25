package postgres

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// Stat is the subset of [pgxpool.Stat] reported as metrics.
type stat interface {
	AcquireCount() int64
	AcquireDuration() time.Duration
	AcquiredConns() int32
	CanceledAcquireCount() int64
	ConstructingConns() int32
	EmptyAcquireCount() int64
	IdleConns() int32
	MaxConns() int32
	TotalConns() int32
}

var _ stat = (*pgxpool.Stat)(nil)

type poolMetric struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(stat) float64
}

// PoolCollector is a prometheus.Collector reporting connection pool
// statistics.
type poolCollector struct {
	name    string
	stat    func() stat
	metrics []poolMetric
}

func newPoolCollector(p *pgxpool.Pool, name string) *poolCollector {
	return newPoolCollectorFunc(func() stat { return p.Stat() }, name)
}

func newPoolCollectorFunc(fn func() stat, name string) *poolCollector {
	labels := []string{"application_name"}
	m := func(n, help string, kind prometheus.ValueType, v func(stat) float64) poolMetric {
		return poolMetric{
			desc:  prometheus.NewDesc(prometheus.BuildFQName("victims", "pgxpool", n), help, labels, nil),
			kind:  kind,
			value: v,
		}
	}
	return &poolCollector{
		name: name,
		stat: fn,
		metrics: []poolMetric{
			m("acquire_count", "Cumulative count of successful acquires from the pool.",
				prometheus.CounterValue, func(s stat) float64 { return float64(s.AcquireCount()) }),
			m("acquire_duration_seconds_total", "Total duration of all successful acquires from the pool.",
				prometheus.CounterValue, func(s stat) float64 { return s.AcquireDuration().Seconds() }),
			m("acquired_conns", "Number of currently acquired connections in the pool.",
				prometheus.GaugeValue, func(s stat) float64 { return float64(s.AcquiredConns()) }),
			m("canceled_acquire_count", "Cumulative count of acquires from the pool that were canceled by a context.",
				prometheus.CounterValue, func(s stat) float64 { return float64(s.CanceledAcquireCount()) }),
			m("constructing_conns", "Number of conns with construction in progress in the pool.",
				prometheus.GaugeValue, func(s stat) float64 { return float64(s.ConstructingConns()) }),
			m("empty_acquire", "Cumulative count of successful acquires that waited because the pool was empty.",
				prometheus.CounterValue, func(s stat) float64 { return float64(s.EmptyAcquireCount()) }),
			m("idle_conns", "Number of currently idle conns in the pool.",
				prometheus.GaugeValue, func(s stat) float64 { return float64(s.IdleConns()) }),
			m("max_conns", "Maximum size of the pool.",
				prometheus.GaugeValue, func(s stat) float64 { return float64(s.MaxConns()) }),
			m("total_conns", "Total number of resources currently in the pool.",
				prometheus.GaugeValue, func(s stat) float64 { return float64(s.TotalConns()) }),
		},
	}
}

// Describe implements prometheus.Collector.
func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

// Collect implements prometheus.Collector.
func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stat()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, m.value(s), c.name)
	}
}
