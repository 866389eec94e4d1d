package qfragile

import (
	"fmt"
	"math"
	"slices"
)

/*
Qubit is one simulated quantum bit. It carries no amplitudes, only the three
observable quantities the visualization cares about: how much it is in
superposition, how coherent it still is, and who it is entangled with.
*/
type Qubit struct {
	ID                 string         `msgpack:"id"`
	Index              int            `msgpack:"index"`
	SuperpositionLevel float64        `msgpack:"superposition_level"`
	Coherence          float64        `msgpack:"coherence"`
	Entanglements      []Entanglement `msgpack:"entanglements"`
}

// NewQubit returns a fully coherent qubit in a definite state.
func NewQubit(index int) Qubit {
	return Qubit{
		ID:        qubitID(index),
		Index:     index,
		Coherence: 1,
	}
}

// NewQubits creates the register for a circuit of the given width.
func NewQubits(count int) []Qubit {
	qubits := make([]Qubit, count)
	for i := range qubits {
		qubits[i] = NewQubit(i)
	}
	return qubits
}

func qubitID(index int) string {
	return fmt.Sprintf("q%d", index)
}

// Clone returns a deep copy; the entanglement slice is never shared.
func (q Qubit) Clone() Qubit {
	q.Entanglements = slices.Clone(q.Entanglements)
	return q
}

// IsCollapsed reports whether the qubit is in the post-measurement state.
func (q Qubit) IsCollapsed() bool {
	return q.SuperpositionLevel == 0 && q.Coherence == 0 && len(q.Entanglements) == 0
}

func cloneQubits(qubits []Qubit) []Qubit {
	out := make([]Qubit, len(qubits))
	for i, q := range qubits {
		out[i] = q.Clone()
	}
	return out
}

// clamp01 keeps a level inside [0,1]; NaN collapses to 0.
func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
