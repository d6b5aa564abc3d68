package cache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Miss reasons recorded on Metrics.Misses.
const (
	missAbsent   = "absent"
	missRead     = "read_error"
	missCorrupt  = "corrupt"
	missVersion  = "version"
	missLocation = "location"
	missZone     = "zone"
	missDate     = "date"
)

// Metrics are the Prometheus collectors updated by a Service.
// A nil *Metrics records nothing.
type Metrics struct {
	Hits             prometheus.Counter
	Misses           *prometheus.CounterVec
	Recomputes       prometheus.Counter
	RecomputeSeconds prometheus.Histogram
	StoreErrors      *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mawaqit_cache_hits_total",
			Help: "Prayer lookups served from a cached year.",
		}),
		Misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mawaqit_cache_misses_total",
			Help: "Prayer lookups that required a recompute, by reason.",
		}, []string{"reason"}),
		Recomputes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mawaqit_year_recomputes_total",
			Help: "Full-year prayer time computations.",
		}),
		RecomputeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mawaqit_year_recompute_seconds",
			Help:    "Time spent computing one year of prayer times.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mawaqit_store_errors_total",
			Help: "Failed store operations, by operation.",
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(m.Hits, m.Misses, m.Recomputes, m.RecomputeSeconds, m.StoreErrors)
	}
	return m
}

func (m *Metrics) hit() {
	if m != nil {
		m.Hits.Inc()
	}
}

func (m *Metrics) miss(reason string) {
	if m != nil {
		m.Misses.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) recomputed(d time.Duration) {
	if m != nil {
		m.Recomputes.Inc()
		m.RecomputeSeconds.Observe(d.Seconds())
	}
}

func (m *Metrics) storeError(op string) {
	if m != nil {
		m.StoreErrors.WithLabelValues(op).Inc()
	}
}
