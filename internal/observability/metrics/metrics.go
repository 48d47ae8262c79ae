package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	matchRuns        metric.Int64Counter
	matchDecisions   metric.Int64Counter
	fastPathHits     metric.Int64Counter
	mappingConflicts metric.Int64Counter
	classifications  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "matchline"
	}
	meter := provider.Meter(name)

	matchRuns, err := meter.Int64Counter("matchline_match_runs_total")
	if err != nil {
		return nil, err
	}
	matchDecisions, err := meter.Int64Counter("matchline_match_decisions_total")
	if err != nil {
		return nil, err
	}
	fastPathHits, err := meter.Int64Counter("matchline_fast_path_hits_total")
	if err != nil {
		return nil, err
	}
	mappingConflicts, err := meter.Int64Counter("matchline_mapping_conflicts_total")
	if err != nil {
		return nil, err
	}
	classifications, err := meter.Int64Counter("matchline_classifications_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		matchRuns:        matchRuns,
		matchDecisions:   matchDecisions,
		fastPathHits:     fastPathHits,
		mappingConflicts: mappingConflicts,
		classifications:  classifications,
	}, nil
}

// RecordMatchRun increments the match run counter.
func (m *Metrics) RecordMatchRun(ctx context.Context, orgID string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("org_id", strings.TrimSpace(orgID)))
	m.matchRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordMatchDecision increments decision counts by routed outcome.
func (m *Metrics) RecordMatchDecision(ctx context.Context, decision string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("decision", strings.TrimSpace(decision)))
	m.matchDecisions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordFastPathHit increments mapping memory fast path hits.
func (m *Metrics) RecordFastPathHit(ctx context.Context, orgID string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("org_id", strings.TrimSpace(orgID)))
	m.fastPathHits.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordMappingConflict increments concurrent mapping write conflicts.
func (m *Metrics) RecordMappingConflict(ctx context.Context, orgID string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("org_id", strings.TrimSpace(orgID)))
	m.mappingConflicts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordClassification increments classification counts by resolving source.
func (m *Metrics) RecordClassification(ctx context.Context, source string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("source", strings.TrimSpace(source)))
	m.classifications.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"org_id":      {},
	"endpoint":    {},
	"status_code": {},
	"decision":    {},
	"source":      {},
	"reason":      {},
	"flag_code":   {},
	"resource":    {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
