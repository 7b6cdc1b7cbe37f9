// Package health tracks the outcome of the most recent cycle and
// exposes pipeline counters to Prometheus.
package health

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CycleStatus is a snapshot of the last completed cycle.
type CycleStatus struct {
	StartedAt  time.Time
	FinishedAt time.Time
	OK         bool
	Error      string
	New        int
	Updated    int
	Unchanged  int
	Delivered  int
	Failed     int
}

// Tracker records cycle outcomes. Safe for concurrent use.
type Tracker struct {
	mu   sync.RWMutex
	last CycleStatus
	seen bool

	cycles     *prometheus.CounterVec
	events     *prometheus.CounterVec
	deliveries *prometheus.CounterVec
	lastRun    prometheus.Gauge
	duration   prometheus.Histogram
}

// New creates a tracker and registers its collectors with reg.
func New(reg prometheus.Registerer) *Tracker {
	t := &Tracker{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portalwatch_cycles_total",
			Help: "Completed monitoring cycles by outcome.",
		}, []string{"outcome"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portalwatch_events_total",
			Help: "Events observed per cycle, by classification.",
		}, []string{"class"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portalwatch_deliveries_total",
			Help: "Per-channel delivery outcomes.",
		}, []string{"outcome"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portalwatch_last_cycle_timestamp_seconds",
			Help: "Unix time the last cycle finished.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "portalwatch_cycle_duration_seconds",
			Help:    "Wall time of a full cycle.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
	}
	if reg != nil {
		reg.MustRegister(t.cycles, t.events, t.deliveries, t.lastRun, t.duration)
	}
	return t
}

// Record stores the cycle snapshot and updates the exported counters.
func (t *Tracker) Record(status CycleStatus) {
	t.mu.Lock()
	t.last = status
	t.seen = true
	t.mu.Unlock()

	outcome := "ok"
	if !status.OK {
		outcome = "error"
	}
	t.cycles.WithLabelValues(outcome).Inc()
	t.events.WithLabelValues("new").Add(float64(status.New))
	t.events.WithLabelValues("updated").Add(float64(status.Updated))
	t.events.WithLabelValues("unchanged").Add(float64(status.Unchanged))
	t.deliveries.WithLabelValues("delivered").Add(float64(status.Delivered))
	t.deliveries.WithLabelValues("failed").Add(float64(status.Failed))
	t.lastRun.Set(float64(status.FinishedAt.Unix()))
	t.duration.Observe(status.FinishedAt.Sub(status.StartedAt).Seconds())
}

// Last returns the most recent cycle snapshot, if any cycle has run.
func (t *Tracker) Last() (CycleStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last, t.seen
}
