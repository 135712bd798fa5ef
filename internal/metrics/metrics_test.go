package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observe(t *testing.T) {
	m := New()

	m.ObserveAnswer("fallback", "answered")
	m.ObserveAnswer("fallback", "answered")
	m.ObserveStage("retrieve", 120*time.Millisecond)
	m.ObserveCollaborator("judge", "timeout", time.Second)
	m.ObserveQuality("primary", 28)
	m.ObserveDegradation("embedding_unavailable")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.answersTotal.WithLabelValues("fallback", "answered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.collaboratorCalls.WithLabelValues("judge", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.degradationsTotal.WithLabelValues("embedding_unavailable")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.stageDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(m.qualityTotal))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveAnswer("direct", "answered")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rr.Code)
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `lawrag_answers_total{outcome="answered",path="direct"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveAnswer("direct", "answered")
		m.ObserveStage("retrieve", time.Second)
		m.ObserveCollaborator("judge", "ok", time.Second)
		m.ObserveQuality("primary", 30)
		m.ObserveDegradation("rerank_unavailable")
	})
	assert.Nil(t, m.Registry())

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rr.Code)
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.ObserveDegradation("x")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.degradationsTotal.WithLabelValues("x")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.degradationsTotal.WithLabelValues("x")))
}
