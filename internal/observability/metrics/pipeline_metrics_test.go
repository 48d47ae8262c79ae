package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

func TestClassifyPipelineReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "deadline",
			err:  context.DeadlineExceeded,
			want: PipelineReasonDeadlineExceeded,
		},
		{
			name: "db_lock_timeout",
			err:  &pgconn.PgError{Code: "55P03"},
			want: PipelineReasonDBLockTimeout,
		},
		{
			name: "serialization_failure",
			err:  &pgconn.PgError{Code: "40001"},
			want: PipelineReasonSerializationFailure,
		},
		{
			name: "unique_violation",
			err:  gorm.ErrDuplicatedKey,
			want: PipelineReasonUniqueViolation,
		},
		{
			name: "unknown",
			err:  errors.New("boom"),
			want: PipelineReasonUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyPipelineReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestIncItemDecision(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newPipelineMetrics(registry, Config{
		ServiceName: "matchline",
		Environment: "test",
	})

	metrics.IncItemDecision("AUTO_ACCEPTED")
	metrics.IncItemDecision("AUTO_ACCEPTED")
	metrics.IncItemDecision("REJECTED")

	got := testutil.ToFloat64(metrics.itemsProcessed.WithLabelValues("AUTO_ACCEPTED"))
	if got != 2 {
		t.Fatalf("expected 2 auto accepted items, got %v", got)
	}
	got = testutil.ToFloat64(metrics.itemsProcessed.WithLabelValues("REJECTED"))
	if got != 1 {
		t.Fatalf("expected 1 rejected item, got %v", got)
	}
}

func TestIncPipelineErrorClassifies(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newPipelineMetrics(registry, Config{
		ServiceName: "matchline",
		Environment: "test",
	})

	metrics.IncPipelineError(PipelineStagePersist, gorm.ErrDuplicatedKey)

	got := testutil.ToFloat64(metrics.pipelineErrors.WithLabelValues(PipelineStagePersist, PipelineReasonUniqueViolation))
	if got != 1 {
		t.Fatalf("expected 1 unique violation error, got %v", got)
	}
}
