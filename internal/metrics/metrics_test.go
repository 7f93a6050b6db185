package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webenv/internal/envconfig"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	m, err := NewMetrics(envconfig.MetricsConfig{Enabled: true, Path: "/metrics"})
	require.NoError(t, err)
	return m
}

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	// two instances must not collide on registration
	a := newTestMetrics(t)
	b := newTestMetrics(t)

	a.IncReloads("success")
	assert.Equal(t, 1.0, testutil.ToFloat64(a.reloads.WithLabelValues("success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.reloads.WithLabelValues("success")))
}

func TestMetrics_Counters(t *testing.T) {
	m := newTestMetrics(t)

	m.IncScriptRequests("js", "ok")
	m.IncScriptRequests("js", "ok")
	m.IncScriptRequests("json", "not_modified")
	m.IncCacheHits("script")
	m.IncCacheMisses("token")
	m.IncTokenVerifications("failure")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.scriptRequests.WithLabelValues("js", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scriptRequests.WithLabelValues("json", "not_modified")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheHits.WithLabelValues("script")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheMisses.WithLabelValues("token")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tokenVerifications.WithLabelValues("failure")))
}

func TestMetrics_Gauges(t *testing.T) {
	m := newTestMetrics(t)

	m.SetMissingFields(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.missingFields))

	m.SetFirebaseStatus(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.firebaseStatus))
	m.SetFirebaseStatus(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.firebaseStatus))
}

func TestMetrics_Handler(t *testing.T) {
	m := newTestMetrics(t)
	m.ObserveHTTPRequest("/env-config.js", http.StatusOK, 5*time.Millisecond)
	m.ObserveRenderDuration(time.Millisecond)
	m.ObserveVerifyDuration(10 * time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `webenv_http_requests_total{code="200",route="/env-config.js"} 1`)
	assert.Contains(t, string(body), "webenv_script_render_duration_seconds_count 1")
	assert.Contains(t, string(body), "webenv_token_verify_duration_seconds_count 1")
}

func TestMetrics_CustomNamespace(t *testing.T) {
	m, err := NewMetrics(envconfig.MetricsConfig{Namespace: "frontend"})
	require.NoError(t, err)
	m.SetMissingFields(1)

	n, err := testutil.GatherAndCount(m.Registry(), "frontend_config_missing_fields")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNop(t *testing.T) {
	var m envconfig.Metrics = Nop{}
	assert.NotPanics(t, func() {
		m.IncReloads("success")
		m.ObserveHTTPRequest("/", 200, time.Second)
		m.SetFirebaseStatus(true)
	})
}
