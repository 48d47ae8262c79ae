// Package cloudmetrics exports anonymous usage accounting from self-hosted
// deployments to a managed metrics endpoint. It runs on its own registry so
// the /metrics scrape surface stays untouched, and every failure path is
// log-and-continue: a broken export must never block matching.
package cloudmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	matchRuns      *prometheus.CounterVec
	matchDecisions *prometheus.CounterVec
	activeMappings *prometheus.GaugeVec
	engineErrors   *prometheus.CounterVec
	memoryUsage    prometheus.Gauge
	orgsTotal      prometheus.Gauge
}

func newMetrics(registry *prometheus.Registry) *metrics {
	m := &metrics{
		matchRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matchline_cloud_match_runs_total",
			Help: "Match runs executed, by organization.",
		}, []string{"org_id"}),
		matchDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matchline_cloud_match_decisions_total",
			Help: "Match decisions recorded, by organization and outcome.",
		}, []string{"org_id", "decision"}),
		activeMappings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "matchline_cloud_active_mappings",
			Help: "Currently active mapping memory rows, by organization.",
		}, []string{"org_id"}),
		engineErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matchline_cloud_engine_errors_total",
			Help: "Engine errors, by organization and operation.",
		}, []string{"org_id", "operation"}),
		memoryUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "matchline_cloud_memory_bytes",
			Help: "Process memory obtained from the OS.",
		}),
		orgsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "matchline_cloud_organizations_total",
			Help: "Distinct organizations with mapping memory rows.",
		}),
	}

	if registry != nil {
		registry.MustRegister(
			m.matchRuns,
			m.matchDecisions,
			m.activeMappings,
			m.engineErrors,
			m.memoryUsage,
			m.orgsTotal,
		)
	}
	return m
}
