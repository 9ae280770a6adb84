package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCommand(t *testing.T) {
	m := New()

	m.ObserveCommand("wired", "on", "ACK", 20*time.Millisecond)
	m.ObserveCommand("wired", "on", "ACK", 0)
	m.ObserveCommand("pwm", "on", "REJECTED", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("wired", "on", "ACK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("pwm", "on", "REJECTED")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.driverDuration))
}

func TestTimerFired(t *testing.T) {
	m := New()
	m.TimerFired(false)
	m.TimerFired(true)
	m.TimerFired(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.timersFired.WithLabelValues("off")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.timersFired.WithLabelValues("superseded")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveCommand("wired", "on", "ACK", time.Second)
	m.ObserveQueueWait(time.Second)
	m.TimerFired(true)
	m.PublishFailed("kafka")
	m.RegisterStatusGauge(func() map[string]int { return nil })

	h := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	assert.NotNil(t, m.WrapHandler("x", h))
}

func TestHandlerExportsStatusGauge(t *testing.T) {
	m := New()
	m.RegisterStatusGauge(func() map[string]int {
		return map[string]int{"ON": 2, "OFF": 1}
	})

	wrapped := m.WrapHandler("state", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/state", nil))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `mycodo_outputs{status="ON"} 2`), body)
	assert.True(t, strings.Contains(body, `mycodo_http_requests_total{route="state",status="204"} 1`), body)
}
