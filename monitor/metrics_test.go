package monitor

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollectorsRegisterCleanly(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	for _, c := range Collectors() {
		require.NoError(t, reg.Register(c))
	}

	RecordPollAttempt("not_found")
	_, err := reg.Gather()
	require.NoError(t, err)
}

func TestInitPrometheusMonitoringIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, InitPrometheusMonitoring(reg))
	require.NoError(t, InitPrometheusMonitoring(reg))
}

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(pollAttempts.WithLabelValues("ready"))
	RecordPollAttempt("ready")
	require.InDelta(t, before+1, testutil.ToFloat64(pollAttempts.WithLabelValues("ready")), 1e-9)

	before = testutil.ToFloat64(jobsTerminal.WithLabelValues("timed_out"))
	RecordJobTerminal("timed_out", 3*time.Second)
	require.InDelta(t, before+1, testutil.ToFloat64(jobsTerminal.WithLabelValues("timed_out")), 1e-9)

	before = testutil.ToFloat64(jobsSubmitted.WithLabelValues("ok"))
	RecordJobSubmitted("ok")
	require.InDelta(t, before+1, testutil.ToFloat64(jobsSubmitted.WithLabelValues("ok")), 1e-9)

	before = testutil.ToFloat64(httpRequests.WithLabelValues("/v1/questions", http.MethodPost, "200"))
	RecordHTTPRequest("/v1/questions", http.MethodPost, http.StatusOK, 20*time.Millisecond)
	require.InDelta(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("/v1/questions", http.MethodPost, "200")), 1e-9)
}
