package cloudmetrics

import (
	"strings"
	"sync"
)

type Recorder interface {
	RecordMatchRun(orgID string)
	RecordMatchDecision(orgID, decision string)
	UpdateActiveMappings(orgID string, count int)
	RecordEngineError(orgID, operation string)
}

type recorder struct {
	metrics      *metrics
	defaultOrgID string
}

type noopRecorder struct{}

func (noopRecorder) RecordMatchRun(string)              {}
func (noopRecorder) RecordMatchDecision(string, string) {}
func (noopRecorder) UpdateActiveMappings(string, int)   {}
func (noopRecorder) RecordEngineError(string, string)   {}

var (
	activeRecorder Recorder = noopRecorder{}
	recorderMu     sync.RWMutex
)

func setRecorder(rec Recorder) {
	if rec == nil {
		return
	}
	recorderMu.Lock()
	activeRecorder = rec
	recorderMu.Unlock()
}

func RecordMatchRun(orgID string) {
	recorderMu.RLock()
	rec := activeRecorder
	recorderMu.RUnlock()
	rec.RecordMatchRun(orgID)
}

func RecordMatchDecision(orgID, decision string) {
	recorderMu.RLock()
	rec := activeRecorder
	recorderMu.RUnlock()
	rec.RecordMatchDecision(orgID, decision)
}

func UpdateActiveMappings(orgID string, count int) {
	recorderMu.RLock()
	rec := activeRecorder
	recorderMu.RUnlock()
	rec.UpdateActiveMappings(orgID, count)
}

func RecordEngineError(orgID, operation string) {
	recorderMu.RLock()
	rec := activeRecorder
	recorderMu.RUnlock()
	rec.RecordEngineError(orgID, operation)
}

func (r *recorder) RecordMatchRun(orgID string) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.matchRuns.WithLabelValues(r.normalizeOrg(orgID)).Inc()
}

func (r *recorder) RecordMatchDecision(orgID, decision string) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.matchDecisions.WithLabelValues(r.normalizeOrg(orgID), normalizeLabel(decision)).Inc()
}

func (r *recorder) UpdateActiveMappings(orgID string, count int) {
	if r == nil || r.metrics == nil {
		return
	}
	if count < 0 {
		count = 0
	}
	r.metrics.activeMappings.WithLabelValues(r.normalizeOrg(orgID)).Set(float64(count))
}

func (r *recorder) RecordEngineError(orgID, operation string) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.engineErrors.WithLabelValues(r.normalizeOrg(orgID), normalizeLabel(operation)).Inc()
}

func (r *recorder) normalizeOrg(orgID string) string {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		orgID = strings.TrimSpace(r.defaultOrgID)
	}
	if orgID == "" {
		return "unknown"
	}
	return orgID
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
