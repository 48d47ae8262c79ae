package cloudmetrics

import (
	"testing"

	"github.com/buildquote/matchline/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRecorderFallsBackToDefaultOrg(t *testing.T) {
	registry := prometheus.NewRegistry()
	rec := &recorder{metrics: newMetrics(registry), defaultOrgID: "7001"}

	rec.RecordMatchRun("")
	rec.RecordMatchDecision("  ", "AUTO_ACCEPTED")

	assert.Equal(t, float64(1), testutil.ToFloat64(rec.metrics.matchRuns.WithLabelValues("7001")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.metrics.matchDecisions.WithLabelValues("7001", "AUTO_ACCEPTED")))
}

func TestNewPusherOnlySpeaksRemoteWrite(t *testing.T) {
	cfg := config.Config{Mode: config.ModeCloud}
	cfg.Cloud.Metrics = config.CloudMetricsConfig{
		Enabled:  true,
		Exporter: "prometheus_pushgateway",
		Endpoint: "http://metrics.example.com/api/v1/write",
	}
	assert.Nil(t, NewPusher(cfg, zap.NewNop()))

	cfg.Cloud.Metrics.Exporter = "prometheus_remote_write"
	assert.NotNil(t, NewPusher(cfg, zap.NewNop()))

	cfg.Cloud.Metrics.Endpoint = "not a url"
	assert.Nil(t, NewPusher(cfg, zap.NewNop()))
}

func TestBuildRemoteWriteSeriesSortsLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newMetrics(registry)
	m.matchDecisions.WithLabelValues("7001", "MANUAL_REVIEW").Inc()

	families, err := registry.Gather()
	require.NoError(t, err)

	series := buildRemoteWriteSeries(families, 1700000000000)
	require.NotEmpty(t, series)

	var found bool
	for _, ts := range series {
		for i := 1; i < len(ts.Labels); i++ {
			assert.Less(t, ts.Labels[i-1].Name, ts.Labels[i].Name)
		}
		if ts.Labels[0].Name == "__name__" && ts.Labels[0].Value == "matchline_cloud_match_decisions_total" {
			found = true
			assert.Equal(t, float64(1), ts.Samples[0].Value)
		}
	}
	assert.True(t, found)
}
