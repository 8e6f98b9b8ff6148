package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openfroyo/stattweaks/pkg/engine"
)

// Metrics provides Prometheus metrics for the runtime. It implements
// engine.Observer.
type Metrics struct {
	config MetricsConfig

	// Patch metrics
	patchAttempts  *prometheus.CounterVec
	patchesApplied *prometheus.CounterVec

	// Compensation metrics
	refunds      prometheus.Counter
	refundAmount prometheus.Counter

	// Runtime metrics
	phase        *prometheus.GaugeVec
	tickDuration prometheus.Histogram

	// Item grant metrics
	itemGrants *prometheus.CounterVec

	// Run metrics
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec

	errorsByClass *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// No-op instance; every recorder checks for nil vectors.
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.TickBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		patchAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "patch_attempts_total",
				Help:      "Total number of patch attempts by outcome",
			},
			[]string{"patch", "result"},
		),
		patchesApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "patches_applied_total",
				Help:      "Total number of patches that reached the applied state",
			},
			[]string{"patch"},
		),

		refunds: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refunds_total",
				Help:      "Total number of compensation refunds",
			},
		),
		refundAmount: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refund_amount_total",
				Help:      "Sum of refunded quantity",
			},
		),

		phase: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "runtime_phase",
				Help:      "Current runtime phase (1 for the active phase, 0 otherwise)",
			},
			[]string{"phase"},
		),
		tickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tick_duration_seconds",
				Help:      "Duration of a runtime tick in seconds",
				Buckets:   buckets,
			},
		),

		itemGrants: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "item_grants_total",
				Help:      "Item grant outcomes",
			},
			[]string{"result"},
		),

		runsStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_started_total",
				Help:      "Total number of runs started",
			},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of runs completed",
			},
			[]string{"status"},
		),

		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of recovered errors by error class",
			},
			[]string{"class"},
		),
	}

	registry.MustRegister(
		m.patchAttempts,
		m.patchesApplied,
		m.refunds,
		m.refundAmount,
		m.phase,
		m.tickDuration,
		m.itemGrants,
		m.runsStarted,
		m.runsCompleted,
		m.errorsByClass,
	)

	return m, nil
}

// ObservePatchAttempt records one attempt of a patch.
func (m *Metrics) ObservePatchAttempt(patchID string, applied bool) {
	if m.patchAttempts == nil {
		return
	}
	result := "unresolved"
	if applied {
		result = "applied"
	}
	m.patchAttempts.WithLabelValues(patchID, result).Inc()
}

// ObservePatchApplied records a patch reaching the applied state.
func (m *Metrics) ObservePatchApplied(patchID string) {
	if m.patchesApplied == nil {
		return
	}
	m.patchesApplied.WithLabelValues(patchID).Inc()
}

// ObserveRefund records a compensation refund.
func (m *Metrics) ObserveRefund(amount float64) {
	if m.refunds == nil {
		return
	}
	m.refunds.Inc()
	m.refundAmount.Add(amount)
}

// ObservePhase marks phase as the only active phase.
func (m *Metrics) ObservePhase(phase string) {
	if m.phase == nil {
		return
	}
	for _, p := range engine.Phases {
		v := 0.0
		if string(p) == phase {
			v = 1.0
		}
		m.phase.WithLabelValues(string(p)).Set(v)
	}
}

// ObserveError records a recovered error by class.
func (m *Metrics) ObserveError(class string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(class).Inc()
}

// ObserveTick records the duration of one tick.
func (m *Metrics) ObserveTick(d time.Duration) {
	if m.tickDuration == nil {
		return
	}
	m.tickDuration.Observe(d.Seconds())
}

// RecordItemGrant records the outcome of the item grant.
func (m *Metrics) RecordItemGrant(result string) {
	if m.itemGrants == nil {
		return
	}
	m.itemGrants.WithLabelValues(result).Inc()
}

// RecordRunStarted increments the counter for started runs.
func (m *Metrics) RecordRunStarted() {
	if m.runsStarted == nil {
		return
	}
	m.runsStarted.Inc()
}

// RecordRunCompleted records a finished run by status.
func (m *Metrics) RecordRunCompleted(status string) {
	if m.runsCompleted == nil {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
}

// Snapshot flattens the registry into name{label=value,...} keys.
func (m *Metrics) Snapshot() (map[string]float64, error) {
	out := make(map[string]float64)
	if m.registry == nil {
		return out, nil
	}
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			key := mf.GetName()
			if labels := metric.GetLabel(); len(labels) > 0 {
				pairs := make([]string, 0, len(labels))
				for _, lp := range labels {
					pairs = append(pairs, lp.GetName()+"="+lp.GetValue())
				}
				key += "{" + strings.Join(pairs, ",") + "}"
			}
			switch {
			case metric.GetCounter() != nil:
				out[key] = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				out[key] = metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				out[key] = float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	return out, nil
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Serve exposes the metrics endpoint until ctx is cancelled. It returns
// immediately when metrics are disabled or no listen address is set.
func (m *Metrics) Serve(ctx context.Context, logger *Logger) error {
	if !m.config.Enabled || m.config.ListenAddress == "" {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	ln, err := net.Listen("tcp", m.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.Infof("Serving metrics on %s%s", ln.Addr(), path)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Metrics server stopped")
		}
	}()

	return nil
}

var _ engine.Observer = (*Metrics)(nil)
