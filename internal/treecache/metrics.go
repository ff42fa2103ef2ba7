package treecache

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup results used as the "result" label.
const (
	lookupHit    = "hit"
	lookupMiss   = "miss"
	lookupBypass = "bypass"
	lookupForced = "forced"
)

// Stats is a point-in-time copy of the cache counters.
type Stats struct {
	Hits          int64
	Misses        int64
	Bypassed      int64
	Forced        int64
	Walks         int64
	WalkErrors    int64
	Invalidations int64
	Evictions     int64
}

// Metrics counts cache activity. Counters are exported to Prometheus and
// mirrored in atomics so Stats can be read without a registry.
type Metrics struct {
	lookups       *prometheus.CounterVec
	walks         prometheus.Counter
	walkErrors    prometheus.Counter
	invalidations prometheus.Counter
	evictions     prometheus.Counter
	walkDuration  prometheus.Histogram

	hits, misses, bypassed, forced atomic.Int64
	nWalks, nWalkErrors            atomic.Int64
	nInvalidations, nEvictions     atomic.Int64
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		lookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "treecache_lookups_total",
				Help: "Tree element requests by outcome (hit, miss, bypass, forced)",
			},
			[]string{"result"},
		),
		walks: f.NewCounter(
			prometheus.CounterOpts{
				Name: "treecache_walks_total",
				Help: "Full tree walks performed",
			},
		),
		walkErrors: f.NewCounter(
			prometheus.CounterOpts{
				Name: "treecache_walk_errors_total",
				Help: "Tree walks that failed",
			},
		),
		invalidations: f.NewCounter(
			prometheus.CounterOpts{
				Name: "treecache_invalidations_total",
				Help: "Full cache invalidations",
			},
		),
		evictions: f.NewCounter(
			prometheus.CounterOpts{
				Name: "treecache_evictions_total",
				Help: "Cached walk results reclaimed by the garbage collector",
			},
		),
		walkDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "treecache_walk_duration_seconds",
				Help:    "Time spent walking trees",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

func (m *Metrics) lookup(result string) {
	m.lookups.WithLabelValues(result).Inc()
	switch result {
	case lookupHit:
		m.hits.Add(1)
	case lookupMiss:
		m.misses.Add(1)
	case lookupBypass:
		m.bypassed.Add(1)
	case lookupForced:
		m.forced.Add(1)
	}
}

func (m *Metrics) walk(took time.Duration, err error) {
	m.walks.Inc()
	m.nWalks.Add(1)
	m.walkDuration.Observe(took.Seconds())
	if err != nil {
		m.walkErrors.Inc()
		m.nWalkErrors.Add(1)
	}
}

func (m *Metrics) invalidation() {
	m.invalidations.Inc()
	m.nInvalidations.Add(1)
}

func (m *Metrics) eviction() {
	m.evictions.Inc()
	m.nEvictions.Add(1)
}

// Stats returns the current counter values.
func (m *Metrics) Stats() Stats {
	return Stats{
		Hits:          m.hits.Load(),
		Misses:        m.misses.Load(),
		Bypassed:      m.bypassed.Load(),
		Forced:        m.forced.Load(),
		Walks:         m.nWalks.Load(),
		WalkErrors:    m.nWalkErrors.Load(),
		Invalidations: m.nInvalidations.Load(),
		Evictions:     m.nEvictions.Load(),
	}
}
