package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics exposes counters/histograms for the conversation decision engine.
type EngineMetrics struct {
	decisionsTotal    *prometheus.CounterVec
	ambiguityTotal    *prometheus.CounterVec
	rulesTriggered    *prometheus.CounterVec
	escalationsTotal  *prometheus.CounterVec
	turnLatency       *prometheus.HistogramVec
	flowsStartedTotal *prometheus.CounterVec
}

func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hostr",
			Subsystem: "engine",
			Name:      "decisions_total",
			Help:      "Total flow decisions by action",
		}, []string{"action"}),
		ambiguityTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hostr",
			Subsystem: "engine",
			Name:      "ambiguity_detected_total",
			Help:      "Total ambiguity detections by type",
		}, []string{"type"}),
		rulesTriggered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hostr",
			Subsystem: "engine",
			Name:      "rules_triggered_total",
			Help:      "Total business rules triggered by severity",
		}, []string{"severity"}),
		escalationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hostr",
			Subsystem: "engine",
			Name:      "escalations_total",
			Help:      "Total human escalations by source",
		}, []string{"source"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hostr",
			Subsystem: "engine",
			Name:      "turn_latency_seconds",
			Help:      "Latency of one decision turn",
			Buckets:   prometheus.DefBuckets,
		}, []string{"has_flow"}),
		flowsStartedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hostr",
			Subsystem: "engine",
			Name:      "flows_started_total",
			Help:      "Total conversation flows started by type",
		}, []string{"flow_type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.decisionsTotal,
		m.ambiguityTotal,
		m.rulesTriggered,
		m.escalationsTotal,
		m.turnLatency,
		m.flowsStartedTotal,
	)
	return m
}

func (m *EngineMetrics) ObserveDecision(action string) {
	if m == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(action).Inc()
}

func (m *EngineMetrics) ObserveAmbiguity(ambiguityType string) {
	if m == nil {
		return
	}
	m.ambiguityTotal.WithLabelValues(ambiguityType).Inc()
}

func (m *EngineMetrics) ObserveRuleTriggered(severity string) {
	if m == nil {
		return
	}
	m.rulesTriggered.WithLabelValues(severity).Inc()
}

func (m *EngineMetrics) ObserveEscalation(source string) {
	if m == nil {
		return
	}
	m.escalationsTotal.WithLabelValues(source).Inc()
}

func (m *EngineMetrics) ObserveTurnLatency(hasFlow bool, seconds float64) {
	if m == nil {
		return
	}
	label := "false"
	if hasFlow {
		label = "true"
	}
	m.turnLatency.WithLabelValues(label).Observe(seconds)
}

func (m *EngineMetrics) ObserveFlowStarted(flowType string) {
	if m == nil {
		return
	}
	m.flowsStartedTotal.WithLabelValues(flowType).Inc()
}
