// Package observability registers the Prometheus metrics exported on /metrics.
package observability

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"doordashboard/internal/cache"
	"doordashboard/internal/normalize"
)

const namespace = "doordashboard"

var (
	normalizationDefaults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "normalize",
		Name:      "defaults_total",
		Help:      "Values replaced by a default during normalization, by reason.",
	}, []string{"reason"})

	snapshotReloads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "snapshot",
		Name:      "reloads_total",
		Help:      "Snapshot reload attempts by outcome.",
	}, []string{"outcome"})

	snapshotReloadSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "snapshot",
		Name:      "reload_duration_seconds",
		Help:      "Time spent loading and normalizing the session store.",
		Buckets:   prometheus.DefBuckets,
	})

	snapshotSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "snapshot",
		Name:      "sessions",
		Help:      "Number of sessions in the current snapshot.",
	})

	snapshotLoadedAt = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "snapshot",
		Name:      "last_loaded_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful reload.",
	})

	storeWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "writes_total",
		Help:      "Session store mutations by operation and outcome.",
	}, []string{"operation", "outcome"})

	precomputeRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "precompute_runs_total",
		Help:      "Precompute runs by trigger and outcome.",
	}, []string{"trigger", "outcome"})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status class.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	securityEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "security_events_total",
		Help:      "Rate-limited and suspicious requests.",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(
		normalizationDefaults,
		snapshotReloads,
		snapshotReloadSeconds,
		snapshotSessions,
		snapshotLoadedAt,
		storeWrites,
		precomputeRuns,
		httpRequests,
		httpDuration,
		securityEvents,
	)
}

// NormalizationSink counts every diagnostic by reason.
func NormalizationSink() normalize.Sink {
	return normalize.SinkFunc(func(d normalize.Diagnostic) {
		normalizationDefaults.WithLabelValues(d.Reason).Inc()
	})
}

// ObserveReload is a cache.ReloadObserver.
func ObserveReload(snap *cache.Snapshot, took time.Duration, err error) {
	snapshotReloadSeconds.Observe(took.Seconds())
	switch {
	case errors.Is(err, cache.ErrReloadTimeout):
		snapshotReloads.WithLabelValues("timeout").Inc()
		return
	case err != nil:
		snapshotReloads.WithLabelValues("store_unavailable").Inc()
		normalizationDefaults.WithLabelValues(normalize.ReasonStoreUnavailable).Inc()
	default:
		snapshotReloads.WithLabelValues("ok").Inc()
		snapshotLoadedAt.Set(float64(snap.LoadedAt.Unix()))
	}
	if snap != nil {
		snapshotSessions.Set(float64(len(snap.Sessions)))
	}
}

// RecordWrite counts a store mutation. outcome is "ok" or an error category.
func RecordWrite(operation, outcome string) {
	storeWrites.WithLabelValues(operation, outcome).Inc()
}

// RecordPrecompute counts a worker run.
func RecordPrecompute(trigger string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	precomputeRuns.WithLabelValues(trigger, outcome).Inc()
}

// ObserveHTTP records one served request. route is the mux pattern, not the
// raw path, so label cardinality stays bounded.
func ObserveHTTP(method, route string, status int, took time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status/100)+"xx").Inc()
	httpDuration.WithLabelValues(route).Observe(took.Seconds())
}

// RecordRateLimited counts a request rejected by the rate limiter.
func RecordRateLimited() {
	securityEvents.WithLabelValues("rate_limited").Inc()
}

// RecordSuspicious counts a request flagged by the security detector.
func RecordSuspicious() {
	securityEvents.WithLabelValues("suspicious").Inc()
}
