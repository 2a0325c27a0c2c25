package matcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	hashCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "victims",
			Subsystem: "matcher",
			Name:      "hash_total",
			Help:      "Total number of packages hashed for grouping.",
		},
		[]string{"success"},
	)
	lookupCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "victims",
			Subsystem: "matcher",
			Name:      "lookup_total",
			Help:      "Total number of corpus lookups issued.",
		},
		[]string{"success"},
	)
	lookupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "victims",
			Subsystem: "matcher",
			Name:      "lookup_duration_seconds",
			Help:      "Duration of corpus lookups.",
		},
		[]string{"success"},
	)
	matchCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "victims",
			Subsystem: "matcher",
			Name:      "match_total",
			Help:      "Total number of package and record pairs reported.",
		},
	)
)
