package prometheus

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
)

func newTestCollector(t *testing.T) MetricsCollector {
	t.Helper()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test", Subsystem: "unit"}, logging.NewNopLogger())
	require.NoError(t, err)
	return c
}

func scrapeMetrics(t *testing.T, collector MetricsCollector) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	collector.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestNewMetricsCollector_RequiresNamespace(t *testing.T) {
	_, err := NewMetricsCollector(CollectorConfig{}, nil)
	assert.Error(t, err)
}

func TestRegisterCounter_ExposedOnScrape(t *testing.T) {
	c := newTestCollector(t)
	vec := c.RegisterCounter("loans_total", "help", "status")
	vec.WithLabelValues("active").Add(3)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_loans_total{status="active"} 3`)
}

func TestRegister_SameNameIsIdempotent(t *testing.T) {
	c := newTestCollector(t)
	a := c.RegisterGauge("in_flight", "help", "kind")
	b := c.RegisterGauge("in_flight", "help", "kind")

	a.WithLabelValues("settlement").Set(2)
	b.WithLabelValues("settlement").Inc()

	assert.Contains(t, scrapeMetrics(t, c), `test_unit_in_flight{kind="settlement"} 3`)
}

func TestRegister_TypeMismatchFallsBackToNoop(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("dup", "help")
	h := c.RegisterHistogram("dup", "help", nil)

	assert.NotPanics(t, func() { h.WithLabelValues().Observe(1) })
}

func TestRegister_ConflictingLabelsFallsBackToNoop(t *testing.T) {
	c := newTestCollector(t)
	raw := prometheus.NewCounter(prometheus.CounterOpts{Namespace: "test", Subsystem: "unit", Name: "clash", Help: "h"})
	c.MustRegister(raw)

	vec := c.RegisterCounter("clash", "h", "label")
	assert.NotPanics(t, func() { vec.WithLabelValues("x").Inc() })
	assert.True(t, c.Unregister(raw))
}

func TestTimer_ObserveDuration(t *testing.T) {
	c := newTestCollector(t)
	h := c.RegisterHistogram("op_seconds", "help", []float64{1}, "op")

	timer := NewTimer(h.WithLabelValues("sweep"))
	time.Sleep(time.Millisecond)
	d := timer.ObserveDuration()

	assert.Greater(t, d, time.Duration(0))
	assert.Contains(t, scrapeMetrics(t, c), `test_unit_op_seconds_count{op="sweep"} 1`)
}

//Personal.AI order the ending
