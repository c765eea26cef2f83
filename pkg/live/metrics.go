package live

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	records    *prometheus.CounterVec
	heartbeats prometheus.Counter
	faults     *prometheus.CounterVec
	reconnects prometheus.Counter
	state      prometheus.Gauge
}

// newMetrics registers the session collectors with reg. A nil reg keeps
// them unregistered.
func newMetrics(reg prometheus.Registerer, dataset string) *metrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"dataset": dataset}

	return &metrics{
		records: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dbn", Subsystem: "live", Name: "records_total",
			Help:        "Records delivered to the record callback.",
			ConstLabels: labels,
		}, []string{"rtype"}),
		heartbeats: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dbn", Subsystem: "live", Name: "heartbeats_total",
			Help:        "Gateway heartbeats consumed.",
			ConstLabels: labels,
		}),
		faults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dbn", Subsystem: "live", Name: "faults_total",
			Help:        "Faults raised in the session goroutine.",
			ConstLabels: labels,
		}, []string{"action"}),
		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dbn", Subsystem: "live", Name: "reconnects_total",
			Help:        "Connections opened after the first one.",
			ConstLabels: labels,
		}),
		state: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "dbn", Subsystem: "live", Name: "state",
			Help:        "Current session state.",
			ConstLabels: labels,
		}),
	}
}
