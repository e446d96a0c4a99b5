package telemetry

import "github.com/prometheus/client_golang/prometheus/testutil"

func (m *Metrics) PropagationCount(role, outcome string) float64 {
	return testutil.ToFloat64(m.propagations.WithLabelValues(role, outcome))
}

func (m *Metrics) CacheLookupCount(result string) float64 {
	return testutil.ToFloat64(m.cacheLookups.WithLabelValues(result))
}

func (m *Metrics) AlertCount(role string) float64 {
	return testutil.ToFloat64(m.alerts.WithLabelValues(role))
}

func (m *Metrics) ReconcileScanned() float64 {
	return testutil.ToFloat64(m.reconcileScanned)
}

// SpanCount returns how many spans with name and status were observed.
func (m *Metrics) SpanCount(name, status string) int {
	families, err := m.registry.Gather()
	if err != nil {
		return 0
	}
	for _, mf := range families {
		if mf.GetName() != "concord_span_duration_seconds" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["name"] == name && labels["status"] == status {
				return int(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	return 0
}
