package query

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	hits        *prometheus.CounterVec
	misses      *prometheus.CounterVec
	fetches     *prometheus.CounterVec
	fetchErrors *prometheus.CounterVec
	entries     prometheus.Gauge
}

// newMetrics registers the cache collectors on reg. Several caches may share
// one registerer (one cache per session); they then share the collectors.
// A nil reg yields working but unregistered collectors.
func newMetrics(reg prometheus.Registerer) *metrics {
	counter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reliefboard",
			Subsystem: "query",
			Name:      name,
			Help:      help,
		}, []string{"endpoint"})
	}
	m := &metrics{
		hits:        counter("hits_total", "Reads answered from the cache."),
		misses:      counter("misses_total", "Reads that had to wait for a fetch."),
		fetches:     counter("fetches_total", "Fetch attempts issued, retries included."),
		fetchErrors: counter("fetch_errors_total", "Fetches that failed after retries."),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reliefboard",
			Subsystem: "query",
			Name:      "entries",
			Help:      "Live cache entries across all caches.",
		}),
	}
	if reg == nil {
		return m
	}
	m.hits = register(reg, m.hits)
	m.misses = register(reg, m.misses)
	m.fetches = register(reg, m.fetches)
	m.fetchErrors = register(reg, m.fetchErrors)
	m.entries = register(reg, m.entries)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}
