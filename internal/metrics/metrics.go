// Package metrics exposes evaluation counters and latency on a private
// Prometheus registry.
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Evaluation results.
const (
	ResultOK      = "ok"
	ResultNoData  = "no_data"
	ResultFailed  = "failed"
	ResultTimeout = "timeout"
)

// Metrics holds all Prometheus metrics for the sentinel.
type Metrics struct {
	Registry *prometheus.Registry

	Evaluations        *prometheus.CounterVec // labels: result
	Actions            *prometheus.CounterVec // labels: action
	Events             *prometheus.CounterVec // labels: kind
	NotifyFailures     prometheus.Counter
	EvaluationDuration prometheus.Histogram
	LastCycle          prometheus.Gauge // unix seconds of the last finished cycle
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_evaluations_total",
			Help: "Instrument evaluations by result",
		}, []string{"result"}),
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_actions_total",
			Help: "Scored actions by type",
		}, []string{"action"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_events_total",
			Help: "Position events by kind",
		}, []string{"kind"}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_notify_failures_total",
			Help: "Notifications that failed after retries",
		}),
		EvaluationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_evaluation_duration_seconds",
			Help:    "Wall time of one instrument evaluation",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		LastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_last_cycle_timestamp_seconds",
			Help: "Unix time of the last completed polling cycle",
		}),
	}
	m.Registry.MustRegister(
		m.Evaluations,
		m.Actions,
		m.Events,
		m.NotifyFailures,
		m.EvaluationDuration,
		m.LastCycle,
	)
	return m
}

// ObserveEvaluation records one evaluation outcome and its duration.
func (m *Metrics) ObserveEvaluation(result string, d time.Duration) {
	m.Evaluations.WithLabelValues(result).Inc()
	m.EvaluationDuration.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Health tracks liveness for /healthz.
type Health struct {
	mu        sync.RWMutex
	startedAt time.Time
	lastCycle time.Time
	staleAge  time.Duration
}

// NewHealth reports degraded when no cycle finished within staleAge.
func NewHealth(staleAge time.Duration) *Health {
	return &Health{startedAt: time.Now(), staleAge: staleAge}
}

// CycleDone marks a finished polling cycle.
func (h *Health) CycleDone(t time.Time) {
	h.mu.Lock()
	h.lastCycle = t
	h.mu.Unlock()
}

// ServeHTTP handles the /healthz endpoint.
func (h *Health) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status, code := "healthy", http.StatusOK
	ref := h.lastCycle
	if ref.IsZero() {
		ref = h.startedAt
	}
	if h.staleAge > 0 && time.Since(ref) > h.staleAge {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	last := ""
	if !h.lastCycle.IsZero() {
		last = h.lastCycle.Format(time.RFC3339)
	}
	body := struct {
		Status    string `json:"status"`
		Uptime    string `json:"uptime"`
		LastCycle string `json:"last_cycle"`
	}{
		Status:    status,
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		LastCycle: last,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewServer creates a metrics and health server.
func NewServer(addr string, m *Metrics, health *Health, logger *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/healthz", health)
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start listens in the background.
func (s *Server) Start() {
	go func() {
		s.logger.Info("metrics server listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
