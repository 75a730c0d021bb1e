package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveProviderCall("weather", OutcomeSuccess, time.Second)
		m.ObserveUserCheck(OutcomeSuccess)
		m.AddPoints(5)
		m.SetQuota(1, 2)
		m.ObserveTick("hourly", time.Second)
		m.TickSkipped("hourly", "in_flight")
	})
	assert.Nil(t, m.Registry())
}

func TestMetrics_RecordsValues(t *testing.T) {
	m := New()

	m.ObserveUserCheck(OutcomeSuccess)
	m.ObserveUserCheck(OutcomeSuccess)
	m.ObserveUserCheck(OutcomeQuota)
	m.AddPoints(4)
	m.AddPoints(0)
	m.AddPoints(3)
	m.SetQuota(990, 10)
	m.TickSkipped("hourly", "in_flight")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.userChecks.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.userChecks.WithLabelValues(OutcomeQuota)))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.pointsAwarded))
	assert.Equal(t, 990.0, testutil.ToFloat64(m.quotaUsed))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.quotaRemaining))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ticksSkipped.WithLabelValues("hourly", "in_flight")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.AddPoints(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "weatherbot_points_awarded_total 2"))
}
