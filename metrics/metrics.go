package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for provider calls and per-user checks
const (
	OutcomeSuccess     = "success"
	OutcomeNotFound    = "not_found"
	OutcomeUnavailable = "unavailable"
	OutcomeQuota       = "quota_exhausted"
	OutcomeSkipped     = "skipped"
	OutcomeError       = "error"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	providerCalls   *prometheus.CounterVec
	providerLatency prometheus.Observer
	userChecks      *prometheus.CounterVec
	pointsAwarded   prometheus.Counter
	quotaUsed       prometheus.Gauge
	quotaRemaining  prometheus.Gauge
	tickDuration    *prometheus.HistogramVec
	ticksSkipped    *prometheus.CounterVec
}

// New creates and registers all collectors on a fresh registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	providerCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "weatherbot_provider_calls_total",
		Help: "Weather provider HTTP calls by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})
	providerLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "weatherbot_provider_call_duration_seconds",
		Help:    "Weather provider HTTP call latency.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})
	userChecks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "weatherbot_user_checks_total",
		Help: "Per-user weather checks by outcome.",
	}, []string{"outcome"})
	pointsAwarded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "weatherbot_points_awarded_total",
		Help: "Points awarded across all users.",
	})
	quotaUsed := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "weatherbot_quota_used",
		Help: "Provider calls made today.",
	})
	quotaRemaining := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "weatherbot_quota_remaining",
		Help: "Provider calls left today.",
	})
	tickDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "weatherbot_tick_duration_seconds",
		Help:    "Scheduler tick duration by tick kind.",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800},
	}, []string{"tick"})
	ticksSkipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "weatherbot_ticks_skipped_total",
		Help: "Scheduler ticks skipped by reason.",
	}, []string{"tick", "reason"})

	registry.MustRegister(
		providerCalls,
		providerLatency,
		userChecks,
		pointsAwarded,
		quotaUsed,
		quotaRemaining,
		tickDuration,
		ticksSkipped,
	)

	return &Metrics{
		registry:        registry,
		providerCalls:   providerCalls,
		providerLatency: providerLatency,
		userChecks:      userChecks,
		pointsAwarded:   pointsAwarded,
		quotaUsed:       quotaUsed,
		quotaRemaining:  quotaRemaining,
		tickDuration:    tickDuration,
		ticksSkipped:    ticksSkipped,
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveProviderCall(endpoint, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(endpoint, outcome).Inc()
	m.providerLatency.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveUserCheck(outcome string) {
	if m == nil {
		return
	}
	m.userChecks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddPoints(points int) {
	if m == nil || points <= 0 {
		return
	}
	m.pointsAwarded.Add(float64(points))
}

func (m *Metrics) SetQuota(used, remaining int) {
	if m == nil {
		return
	}
	m.quotaUsed.Set(float64(used))
	m.quotaRemaining.Set(float64(remaining))
}

func (m *Metrics) ObserveTick(tick string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.WithLabelValues(tick).Observe(elapsed.Seconds())
}

func (m *Metrics) TickSkipped(tick, reason string) {
	if m == nil {
		return
	}
	m.ticksSkipped.WithLabelValues(tick, reason).Inc()
}

// Serve exposes /metrics on addr until the server is closed
func (m *Metrics) Serve(addr string) (*http.Server, <-chan error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	return server, errCh
}
