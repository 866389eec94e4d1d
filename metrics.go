package qfragile

import (
	"gonum.org/v1/gonum/stat"
)

// Metrics are the three scalars shown on the dashboard, each in [0,1].
type Metrics struct {
	Coherence    float64 `msgpack:"coherence"`
	Entanglement float64 `msgpack:"entanglement"`
	GateFidelity float64 `msgpack:"gate_fidelity"`
}

// InitialMetrics is what a freshly initialized register reports.
func InitialMetrics(qubitCount int) Metrics {
	return NewMetricsCalculator(1).Calculate(NewQubits(qubitCount))
}

/*
MetricsCalculator keeps a trailing window of gate fidelities and derives the
metrics from a register. Calculate is a pure read; only Record changes it.
*/
type MetricsCalculator struct {
	fidelities []float64
	windowSize int
}

// NewMetricsCalculator returns a calculator averaging the last windowSize gates.
func NewMetricsCalculator(windowSize int) *MetricsCalculator {
	if windowSize < 1 {
		windowSize = DefaultFidelityWindow
	}
	return &MetricsCalculator{
		fidelities: make([]float64, 0, windowSize),
		windowSize: windowSize,
	}
}

// Record adds a gate fidelity, evicting the oldest once the window is full.
func (mc *MetricsCalculator) Record(fidelity float64) {
	mc.fidelities = append(mc.fidelities, clamp01(fidelity))
	if len(mc.fidelities) > mc.windowSize {
		mc.fidelities = mc.fidelities[1:]
	}
}

// Clear forgets every recorded fidelity.
func (mc *MetricsCalculator) Clear() {
	mc.fidelities = mc.fidelities[:0]
}

// Calculate derives the metrics for qubits.
func (mc *MetricsCalculator) Calculate(qubits []Qubit) Metrics {
	return Metrics{
		Coherence:    meanCoherence(qubits),
		Entanglement: entanglementScore(qubits),
		GateFidelity: mc.gateFidelity(),
	}
}

func (mc *MetricsCalculator) gateFidelity() float64 {
	if len(mc.fidelities) == 0 {
		return 1
	}
	return clamp01(stat.Mean(mc.fidelities, nil))
}

func meanCoherence(qubits []Qubit) float64 {
	if len(qubits) == 0 {
		return 0
	}
	values := make([]float64, len(qubits))
	for i, q := range qubits {
		values[i] = q.Coherence
	}
	return clamp01(stat.Mean(values, nil))
}

/*
entanglementScore is the share of possible pairs that are linked, weighted by
their mean strength.
*/
func entanglementScore(qubits []Qubit) float64 {
	n := len(qubits)
	if n < 2 {
		return 0
	}
	pairs := links(qubits)
	if len(pairs) == 0 {
		return 0
	}

	strengths := make([]float64, len(pairs))
	for i, l := range pairs {
		strengths[i] = l.Strength
	}
	maxLinks := float64(n*(n-1)) / 2
	return clamp01(float64(len(pairs)) / maxLinks * stat.Mean(strengths, nil))
}
