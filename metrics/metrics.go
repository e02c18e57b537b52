// Package metrics provides prometheus instrumentation for authorization
// decisions.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// SourceTag labels tag record lookups
	SourceTag = "tag"
	// SourceSettings labels settings lookups
	SourceSettings = "settings"
)

// Metrics holds the decision engine's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Decisions      *prometheus.CounterVec
	LookupDuration *prometheus.HistogramVec
	LookupErrors   *prometheus.CounterVec
	CacheFallbacks prometheus.Counter
}

// New creates the collectors and registers them with reg, which is usually
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chargeauth_decisions_total",
			Help: "Total authorization decisions by status and whether they started a transaction",
		}, []string{"status", "start"}),
		LookupDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chargeauth_lookup_duration_seconds",
			Help:    "Duration of tag and settings lookups",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"source"}),
		LookupErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chargeauth_lookup_errors_total",
			Help: "Total failed tag and settings lookups",
		}, []string{"source"}),
		CacheFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chargeauth_cache_fallbacks_total",
			Help: "Total decisions served from the local authorization cache because the backend was unavailable",
		}),
	}
	for _, c := range []prometheus.Collector{m.Decisions, m.LookupDuration, m.LookupErrors, m.CacheFallbacks} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// IncrementDecision records one decision outcome.
func (m *Metrics) IncrementDecision(status string, start bool) {
	if m != nil {
		m.Decisions.WithLabelValues(status, strconv.FormatBool(start)).Inc()
	}
}

// ObserveLookup records how long a lookup took and whether it failed. Call
// with time.Now() from before the lookup.
func (m *Metrics) ObserveLookup(source string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.LookupDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		m.LookupErrors.WithLabelValues(source).Inc()
	}
}

// IncrementCacheFallback records a decision answered from the local cache.
func (m *Metrics) IncrementCacheFallback() {
	if m != nil {
		m.CacheFallbacks.Inc()
	}
}
