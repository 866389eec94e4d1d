package qfragile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Exporter mirrors step results into Prometheus collectors.
type Exporter struct {
	coherence    prometheus.Gauge
	entanglement prometheus.Gauge
	fidelity     prometheus.Gauge
	degradation  prometheus.Gauge
	gateIndex    prometheus.Gauge
	steps        *prometheus.CounterVec
	events       *prometheus.CounterVec
}

// NewExporter registers the simulation collectors on reg.
func NewExporter(reg prometheus.Registerer) *Exporter {
	factory := promauto.With(reg)

	return &Exporter{
		coherence: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "qfragile",
			Name:      "coherence",
			Help:      "Mean qubit coherence after the last step.",
		}),
		entanglement: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "qfragile",
			Name:      "entanglement",
			Help:      "Entanglement score after the last step.",
		}),
		fidelity: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "qfragile",
			Name:      "gate_fidelity",
			Help:      "Mean fidelity over the recent gate window.",
		}),
		degradation: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "qfragile",
			Name:      "packet_degradation",
			Help:      "Accumulated packet degradation.",
		}),
		gateIndex: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "qfragile",
			Name:      "gate_index",
			Help:      "Index of the next gate to execute.",
		}),
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qfragile",
			Name:      "steps_total",
			Help:      "Executed steps by primary event.",
		}, []string{"event"}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qfragile",
			Name:      "events_total",
			Help:      "Logged simulation events by type.",
		}, []string{"type"}),
	}
}

/*
Observe records one step result. Terminal results update the gauges but do not
count as steps. Events are counted from the log entries of the step just taken.
*/
func (ex *Exporter) Observe(res *StepResult) {
	if res == nil {
		return
	}

	ex.coherence.Set(res.Metrics.Coherence)
	ex.entanglement.Set(res.Metrics.Entanglement)
	ex.fidelity.Set(res.Metrics.GateFidelity)
	ex.gateIndex.Set(float64(res.State.CurrentGateIndex))
	if res.State.Packet != nil {
		ex.degradation.Set(res.State.Packet.DegradationLevel)
	}

	if res.Event == nil {
		return
	}
	ex.steps.WithLabelValues(string(res.Event.Type)).Inc()

	for _, ev := range res.State.Events {
		if ev.Step == res.Event.Step {
			ex.events.WithLabelValues(string(ev.Type)).Inc()
		}
	}
}
