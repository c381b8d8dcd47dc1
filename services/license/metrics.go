package license

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts access decisions and license mutations. A nil *Metrics
// records nothing.
type Metrics struct {
	decisions *prometheus.CounterVec
	mutations *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chwone",
			Subsystem: "license",
			Name:      "access_decisions_total",
			Help:      "Tool access decisions by tool and reason.",
		}, []string{"tool", "granted", "reason"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chwone",
			Subsystem: "license",
			Name:      "mutations_total",
			Help:      "Committed license changes by change type.",
		}, []string{"change_type"}),
	}

	for _, c := range []prometheus.Collector{m.decisions, m.mutations} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) decision(a ToolAccess) {
	if m == nil {
		return
	}
	granted := "false"
	if a.HasAccess {
		granted = "true"
	}
	m.decisions.WithLabelValues(string(a.Tool), granted, a.Reason).Inc()
}

func (m *Metrics) mutation(c ChangeType) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(string(c)).Inc()
}
