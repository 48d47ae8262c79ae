package cloudmetrics

import (
	"context"

	"go.uber.org/zap"

	"github.com/prometheus/client_golang/prometheus"
)

// CloudMetrics owns the export registry and the pusher. Construction
// installs a recorder so the package-level Record* helpers start
// counting against this instance.
type CloudMetrics struct {
	registry *prometheus.Registry
	pusher   Pusher
	metrics  *metrics
	logger   *zap.Logger
}

// New builds a CloudMetrics on its own registry. A nil registry gets a
// fresh one. The defaultOrgID fills the org label when a call site has
// no organization in scope.
func New(registry *prometheus.Registry, pusher Pusher, defaultOrgID string, logger *zap.Logger) *CloudMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := newMetrics(registry)
	setRecorder(&recorder{
		metrics:      m,
		defaultOrgID: defaultOrgID,
	})

	return &CloudMetrics{
		registry: registry,
		pusher:   pusher,
		metrics:  m,
		logger:   logger,
	}
}

// Push exports the current registry state. A nil pusher is a no-op.
func (c *CloudMetrics) Push(ctx context.Context) error {
	if c == nil || c.pusher == nil {
		return nil
	}
	return c.pusher.Push(ctx, c.registry)
}

// SetMemoryUsage records process memory obtained from the OS.
func (c *CloudMetrics) SetMemoryUsage(bytes uint64) {
	if c == nil || c.metrics == nil {
		return
	}
	c.metrics.memoryUsage.Set(float64(bytes))
}

// SetOrganizationsTotal records the number of organizations with
// mapping memory rows.
func (c *CloudMetrics) SetOrganizationsTotal(count int64) {
	if c == nil || c.metrics == nil {
		return
	}
	if count < 0 {
		count = 0
	}
	c.metrics.orgsTotal.Set(float64(count))
}
