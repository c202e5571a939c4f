// Package metrics defines the Prometheus instruments of the link finder.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "linkfinder"

// Metrics holds all instruments. A nil *Metrics records nothing.
type Metrics struct {
	FetchAttempts  *prometheus.CounterVec
	LadderFailures *prometheus.CounterVec
	CacheRefreshes *prometheus.CounterVec
	RejectedLinks  *prometheus.CounterVec
	Searches       *prometheus.CounterVec
	SearchDuration prometheus.Histogram
}

// New creates and registers the instruments on reg, or on the default
// registerer when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		FetchAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "fetcher",
				Name:      "attempts_total",
				Help:      "Upstream requests by ladder rung and HTTP status (0 for transport errors)",
			},
			[]string{"rung", "status"},
		),
		LadderFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "fetcher",
				Name:      "ladder_failures_total",
				Help:      "Fetches that exhausted every rung, by final status",
			},
			[]string{"status"},
		),
		CacheRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "cache",
				Name:      "refreshes_total",
				Help:      "Per-source cache refreshes by outcome",
			},
			[]string{"outcome"},
		),
		RejectedLinks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "links",
				Name:      "rejected_total",
				Help:      "Link candidates dropped by validation, by notation",
			},
			[]string{"format"},
		),
		Searches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "search",
				Name:      "requests_total",
				Help:      "Searches by response source (live, cache, empty)",
			},
			[]string{"source"},
		),
		SearchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "search",
				Name:      "duration_seconds",
				Help:      "End-to-end search latency",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			},
		),
	}
}

func (m *Metrics) FetchAttempt(rung string, status int) {
	if m == nil {
		return
	}
	m.FetchAttempts.WithLabelValues(rung, strconv.Itoa(status)).Inc()
}

func (m *Metrics) LadderFailure(status int) {
	if m == nil {
		return
	}
	m.LadderFailures.WithLabelValues(strconv.Itoa(status)).Inc()
}

func (m *Metrics) CacheRefresh(ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.CacheRefreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RejectedLink(format string) {
	if m == nil {
		return
	}
	m.RejectedLinks.WithLabelValues(format).Inc()
}

func (m *Metrics) Search(source string, took time.Duration) {
	if m == nil {
		return
	}
	m.Searches.WithLabelValues(source).Inc()
	m.SearchDuration.Observe(took.Seconds())
}
