package cloudmetrics

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/buildquote/matchline/internal/config"
	obstracing "github.com/buildquote/matchline/internal/observability/tracing"
	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/prometheus/prompb"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/protoadapt"
)

// The managed intake speaks Prometheus remote_write only.
const (
	exporterRemoteWrite = "prometheus_remote_write"
	pushTimeout         = 5 * time.Second
)

// Pusher sends accounting metrics from a self-hosted deployment to the
// managed endpoint. Implementations must not start background goroutines
// or expose /metrics.
type Pusher interface {
	Push(ctx context.Context, registry *prometheus.Registry) error
}

// NewPusher builds a pusher from config. Misconfiguration is logged and
// returns nil so a broken export never blocks matching.
func NewPusher(cfg config.Config, logger *zap.Logger) Pusher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.IsCloud() || !cfg.Cloud.Metrics.Enabled {
		return nil
	}

	exporter := strings.ToLower(strings.TrimSpace(cfg.Cloud.Metrics.Exporter))
	if exporter != exporterRemoteWrite {
		logger.Warn("cloud metrics disabled: unsupported exporter", zap.String("exporter", exporter))
		return nil
	}
	endpoint := strings.TrimSpace(cfg.Cloud.Metrics.Endpoint)
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		logger.Warn("cloud metrics disabled: bad endpoint", zap.Error(err))
		return nil
	}

	return &remoteWritePusher{
		endpoint:  endpoint,
		authToken: strings.TrimSpace(cfg.Cloud.Metrics.AuthToken),
		client:    obstracing.WrapHTTPClient(&http.Client{Timeout: pushTimeout}),
	}
}

type remoteWritePusher struct {
	endpoint  string
	authToken string
	client    *http.Client
}

// Push snapshots the registry and ships it as one snappy-compressed
// remote_write request. An empty registry is a no-op, not an error.
func (p *remoteWritePusher) Push(ctx context.Context, registry *prometheus.Registry) error {
	if p == nil || registry == nil {
		return nil
	}

	families, err := registry.Gather()
	if err != nil {
		return err
	}
	series := buildRemoteWriteSeries(families, time.Now().UnixMilli())
	if len(series) == 0 {
		return nil
	}

	body, err := encodeWriteRequest(series)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-protobuf")
	req.Header.Set("Content-Encoding", "snappy")
	req.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")
	if p.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.authToken)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("remote write returned %s", resp.Status)
	}
	return nil
}

func encodeWriteRequest(series []prompb.TimeSeries) ([]byte, error) {
	payload, err := proto.Marshal(protoadapt.MessageV2Of(&prompb.WriteRequest{Timeseries: series}))
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, payload), nil
}

// buildRemoteWriteSeries flattens counter and gauge families into one sample
// per series, all stamped with the same push timestamp. Labels are sorted as
// remote_write requires.
func buildRemoteWriteSeries(families []*dto.MetricFamily, timestampMs int64) []prompb.TimeSeries {
	var series []prompb.TimeSeries
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			var value float64
			switch {
			case family.GetType() == dto.MetricType_COUNTER && metric.GetCounter() != nil:
				value = metric.GetCounter().GetValue()
			case family.GetType() == dto.MetricType_GAUGE && metric.GetGauge() != nil:
				value = metric.GetGauge().GetValue()
			default:
				continue
			}

			labels := []prompb.Label{{Name: "__name__", Value: family.GetName()}}
			for _, label := range metric.GetLabel() {
				labels = append(labels, prompb.Label{Name: label.GetName(), Value: label.GetValue()})
			}
			sort.Slice(labels, func(i, j int) bool { return labels[i].Name < labels[j].Name })

			series = append(series, prompb.TimeSeries{
				Labels:  labels,
				Samples: []prompb.Sample{{Value: value, Timestamp: timestampMs}},
			})
		}
	}
	return series
}
