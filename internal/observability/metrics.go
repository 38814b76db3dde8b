package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes engine counters through a dedicated registry.
type Metrics struct {
	Registry *prometheus.Registry

	TicksTotal          prometheus.Counter
	TickDuration        prometheus.Histogram
	RuleMatchesTotal    prometheus.Counter
	FiringsTotal        prometheus.Counter
	RulesSkippedTotal   prometheus.Counter
	VersionConflicts    prometheus.Counter
	NotifyFailuresTotal prometheus.Counter
	ManualTransitions   *prometheus.CounterVec
	RequestsTotal       *prometheus.CounterVec
	RequestErrorsTotal  *prometheus.CounterVec
}

// NewMetrics registers and returns the engine metric set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		Registry: registry,
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "escalation_ticks_total",
			Help: "Completed evaluation ticks.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "escalation_tick_duration_seconds",
			Help:    "Duration of evaluation ticks.",
			Buckets: prometheus.DefBuckets,
		}),
		RuleMatchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "escalation_rule_matches_total",
			Help: "Rule/ticket matches produced by the evaluator.",
		}),
		FiringsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "escalation_firings_total",
			Help: "Committed rule firings.",
		}),
		RulesSkippedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "escalation_rules_skipped_total",
			Help: "Rules skipped within a tick due to evaluation errors.",
		}),
		VersionConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "escalation_version_conflicts_total",
			Help: "Matches dropped because the ticket changed concurrently.",
		}),
		NotifyFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "escalation_notification_failures_total",
			Help: "Notification requests that could not be enqueued.",
		}),
		ManualTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escalation_manual_transitions_total",
			Help: "Manual status transitions by target status.",
		}, []string{"target"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by path, method and status.",
		}, []string{"path", "method", "status"}),
		RequestErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_request_errors_total",
			Help: "HTTP request errors by path, method and error code.",
		}, []string{"path", "method", "code"}),
	}

	registry.MustRegister(
		m.TicksTotal,
		m.TickDuration,
		m.RuleMatchesTotal,
		m.FiringsTotal,
		m.RulesSkippedTotal,
		m.VersionConflicts,
		m.NotifyFailuresTotal,
		m.ManualTransitions,
		m.RequestsTotal,
		m.RequestErrorsTotal,
	)
	return m
}
