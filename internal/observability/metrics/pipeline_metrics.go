package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	PipelineReasonDeadlineExceeded     = "deadline_exceeded"
	PipelineReasonDBLockTimeout        = "db_lock_timeout"
	PipelineReasonSerializationFailure = "serialization_failure"
	PipelineReasonUniqueViolation      = "unique_violation"
	PipelineReasonUnknown              = "unknown"
)

const (
	PipelineStageClassify   = "classify"
	PipelineStageCandidates = "candidates"
	PipelineStageRank       = "rank"
	PipelineStageFlags      = "flags"
	PipelineStageRoute      = "route"
	PipelineStagePersist    = "persist"
)

const (
	LockResourceMappingWrite = "mapping_write"
)

// PipelineMetrics captures match pipeline health signals.
type PipelineMetrics struct {
	runs             prometheus.Counter
	runDuration      prometheus.Observer
	itemsProcessed   *prometheus.CounterVec
	itemTimeouts     prometheus.Counter
	fastPathHits     prometheus.Counter
	pipelineErrors   *prometheus.CounterVec
	mappingConflicts prometheus.Counter
	lockWait         *prometheus.HistogramVec

	decisionCounts   map[string]prometheus.Counter
	lockWaitObserver map[string]prometheus.Observer
}

var (
	pipelineMetricsOnce sync.Once
	pipelineMetrics     *PipelineMetrics
)

// Pipeline returns the singleton pipeline metrics registry.
func Pipeline() *PipelineMetrics {
	return PipelineWithConfig(Config{})
}

// PipelineWithConfig returns the singleton pipeline metrics registry using config labels.
func PipelineWithConfig(cfg Config) *PipelineMetrics {
	pipelineMetricsOnce.Do(func() {
		pipelineMetrics = newPipelineMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return pipelineMetrics
}

// ResetPipelineMetricsForTest resets the pipeline metrics singleton for tests.
func ResetPipelineMetricsForTest() {
	pipelineMetricsOnce = sync.Once{}
	pipelineMetrics = nil
}

func newPipelineMetrics(registerer prometheus.Registerer, cfg Config) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "matchline"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	runs := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "matchline_pipeline_runs_total",
		Help:        "Match runs started.",
		ConstLabels: constLabels,
	})
	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "matchline_pipeline_run_duration_seconds",
		Help:        "Match run latency across the full batch.",
		Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		ConstLabels: constLabels,
	})
	itemsProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "matchline_pipeline_items_total",
		Help:        "Items processed by routed decision.",
		ConstLabels: constLabels,
	}, []string{"decision"})
	itemTimeouts := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "matchline_pipeline_item_timeouts_total",
		Help:        "Items routed to manual review after a per-item deadline.",
		ConstLabels: constLabels,
	})
	fastPathHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "matchline_pipeline_fast_path_total",
		Help:        "Items resolved from the mapping memory without re-matching.",
		ConstLabels: constLabels,
	})
	pipelineErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "matchline_pipeline_errors_total",
		Help:        "Pipeline errors by stage and low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"stage", "reason"})
	mappingConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "matchline_mapping_write_conflicts_total",
		Help:        "Mapping writes that lost the single-active-row race and retried.",
		ConstLabels: constLabels,
	})
	lockWait := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "matchline_mapping_lock_wait_seconds",
		Help:        "Time spent waiting on the per-key mapping write lock.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		ConstLabels: constLabels,
	}, []string{"resource"})

	registerer.MustRegister(
		runs,
		runDuration,
		itemsProcessed,
		itemTimeouts,
		fastPathHits,
		pipelineErrors,
		mappingConflicts,
		lockWait,
	)

	decisionCounts := map[string]prometheus.Counter{}
	for _, decision := range []string{"AUTO_ACCEPTED", "MANUAL_REVIEW", "REJECTED"} {
		decisionCounts[decision] = itemsProcessed.WithLabelValues(decision)
	}

	lockWaitObserver := map[string]prometheus.Observer{
		LockResourceMappingWrite: lockWait.WithLabelValues(LockResourceMappingWrite),
	}

	return &PipelineMetrics{
		runs:             runs,
		runDuration:      runDuration,
		itemsProcessed:   itemsProcessed,
		itemTimeouts:     itemTimeouts,
		fastPathHits:     fastPathHits,
		pipelineErrors:   pipelineErrors,
		mappingConflicts: mappingConflicts,
		lockWait:         lockWait,
		decisionCounts:   decisionCounts,
		lockWaitObserver: lockWaitObserver,
	}
}

// IncRun increments the match run counter.
func (m *PipelineMetrics) IncRun() {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.Inc()
}

// ObserveRunDuration records match run latency in seconds.
func (m *PipelineMetrics) ObserveRunDuration(duration time.Duration) {
	if m == nil || m.runDuration == nil {
		return
	}
	m.runDuration.Observe(duration.Seconds())
}

// IncItemDecision increments the processed item counter for a routed decision.
func (m *PipelineMetrics) IncItemDecision(decision string) {
	if m == nil || m.itemsProcessed == nil {
		return
	}
	if counter, ok := m.decisionCounts[decision]; ok {
		counter.Inc()
		return
	}
	m.itemsProcessed.WithLabelValues(decision).Inc()
}

// IncItemTimeout increments the per-item deadline counter.
func (m *PipelineMetrics) IncItemTimeout() {
	if m == nil || m.itemTimeouts == nil {
		return
	}
	m.itemTimeouts.Inc()
}

// IncFastPathHit increments the mapping memory fast path counter.
func (m *PipelineMetrics) IncFastPathHit() {
	if m == nil || m.fastPathHits == nil {
		return
	}
	m.fastPathHits.Inc()
}

// IncPipelineError increments pipeline errors with classification.
func (m *PipelineMetrics) IncPipelineError(stage string, err error) {
	if m == nil || err == nil || m.pipelineErrors == nil {
		return
	}
	m.pipelineErrors.WithLabelValues(stage, ClassifyPipelineReason(err)).Inc()
}

// IncMappingConflict increments the mapping write conflict counter.
func (m *PipelineMetrics) IncMappingConflict() {
	if m == nil || m.mappingConflicts == nil {
		return
	}
	m.mappingConflicts.Inc()
}

// ObserveLockWait records wait time on the mapping write lock.
func (m *PipelineMetrics) ObserveLockWait(resource string, duration time.Duration) {
	if m == nil || m.lockWait == nil {
		return
	}
	if observer, ok := m.lockWaitObserver[resource]; ok {
		observer.Observe(duration.Seconds())
		return
	}
	m.lockWait.WithLabelValues(resource).Observe(duration.Seconds())
}

// ClassifyPipelineReason maps pipeline errors to low-cardinality reasons.
func ClassifyPipelineReason(err error) string {
	if err == nil {
		return PipelineReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return PipelineReasonDeadlineExceeded
	}
	if hasPGCode(err, "55P03") {
		return PipelineReasonDBLockTimeout
	}
	if hasPGCode(err, "40001") {
		return PipelineReasonSerializationFailure
	}
	if isUniqueViolation(err) {
		return PipelineReasonUniqueViolation
	}
	return PipelineReasonUnknown
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return hasPGCode(err, "23505")
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
