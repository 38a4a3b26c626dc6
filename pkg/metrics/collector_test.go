package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()

	c.ObserveProbe(PhaseTick, false)
	c.ObserveProbe(PhaseTick, false)
	c.ObserveProbe(PhaseVerify, true)
	c.ObserveLogin(ResultSuccess)
	c.ObserveLogin(ResultRejected)
	c.ObserveLogout(ResultError)
	c.SetRunning(true)
	c.MarkRestored(time.Unix(1700000000, 0))

	assert.InDelta(t, 2, testutil.ToFloat64(c.probes.WithLabelValues(PhaseTick, "false")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.probes.WithLabelValues(PhaseVerify, "true")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.logins.WithLabelValues(ResultSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.logins.WithLabelValues(ResultRejected)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.logouts.WithLabelValues(ResultError)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.running), 0)
	assert.InDelta(t, 1700000000, testutil.ToFloat64(c.lastRestored), 0)

	c.SetRunning(false)
	assert.InDelta(t, 0, testutil.ToFloat64(c.running), 0)
}

func TestCollectorHandler(t *testing.T) {
	c := NewCollector()
	c.ObserveLogin(ResultNoConfig)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `portalwatch_login_attempts_total{result="empty_credentials"} 1`)
}

func TestNopSatisfiesRecorder(_ *testing.T) {
	var r Recorder = Nop{}

	r.ObserveProbe(PhaseTick, true)
	r.MarkRestored(time.Now())
}
