package metrics

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, m *Metrics, name, label, value string) float64 {
	t.Helper()
	families, err := m.Registry.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			if hasLabel(metric, label, value) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func hasLabel(m *dto.Metric, name, value string) bool {
	if name == "" {
		return true
	}
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.ObserveEvaluation(ResultOK, 120*time.Millisecond)
	m.ObserveEvaluation(ResultOK, 80*time.Millisecond)
	m.ObserveEvaluation(ResultFailed, time.Second)
	m.Actions.WithLabelValues("BUY").Inc()
	m.Events.WithLabelValues("take_profit").Inc()
	m.NotifyFailures.Inc()

	assert.Equal(t, 2.0, counterValue(t, m, "sentinel_evaluations_total", "result", ResultOK))
	assert.Equal(t, 1.0, counterValue(t, m, "sentinel_evaluations_total", "result", ResultFailed))
	assert.Equal(t, 1.0, counterValue(t, m, "sentinel_actions_total", "action", "BUY"))
	assert.Equal(t, 1.0, counterValue(t, m, "sentinel_notify_failures_total", "", ""))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveEvaluation(ResultNoData, time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body), `sentinel_evaluations_total{result="no_data"} 1`)
	assert.Contains(t, string(body), "sentinel_evaluation_duration_seconds_count 1")
}

func TestHealth(t *testing.T) {
	h := NewHealth(time.Minute)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	h.CycleDone(time.Now().Add(-2 * time.Minute))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "degraded", body["status"])
	assert.NotEmpty(t, body["last_cycle"])
}
