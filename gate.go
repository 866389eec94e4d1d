package qfragile

import (
	"fmt"

	"github.com/google/uuid"
)

// GateType identifies a gate kind.
type GateType string

const (
	GateHadamard GateType = "hadamard"
	GateCNOT     GateType = "cnot"
	GatePhase    GateType = "phase"
	GateIdentity GateType = "identity"
	GateMeasure  GateType = "measure"
)

/*
gateProfile fixes how badly each gate can go wrong. The error ceiling grows with
the number of qubits a gate touches: Identity < Phase < Hadamard < CNOT. The
corruption weight turns an actual error into packet damage.
*/
type gateProfile struct {
	errorCeiling     float64
	corruption       CorruptionType
	corruptionWeight float64
}

var gateProfiles = map[GateType]gateProfile{
	GateIdentity: {errorCeiling: 0.1, corruption: CorruptionFade, corruptionWeight: 0.05},
	GatePhase:    {errorCeiling: 0.2, corruption: CorruptionColorShift, corruptionWeight: 0.15},
	GateHadamard: {errorCeiling: 0.3, corruption: CorruptionBlur, corruptionWeight: 0.2},
	GateCNOT:     {errorCeiling: 0.5, corruption: CorruptionPixelate, corruptionWeight: 0.3},
	GateMeasure:  {errorCeiling: 0, corruption: CorruptionPixelate, corruptionWeight: 0},
}

// MeasureCorruptionIntensity is the fixed pixelation a measurement leaves behind.
const MeasureCorruptionIntensity = 0.5

// ErrorCeiling is the largest actual error a gate of this type can produce.
func (t GateType) ErrorCeiling() float64 {
	return gateProfiles[t].errorCeiling
}

// Valid reports whether t is a known gate type.
func (t GateType) Valid() bool {
	_, ok := gateProfiles[t]
	return ok
}

// minQubits is how many distinct qubits the gate must reference.
func (t GateType) minQubits() int {
	if t == GateCNOT {
		return 2
	}
	return 1
}

/*
GateDefinition is a gate as authored by the user. For CNOT the control may be given
in ControlQubits or as the first of two TargetQubits. A nil ErrorProbability takes
the configured gate error probability.
*/
type GateDefinition struct {
	ID               string   `mapstructure:"id" msgpack:"id"`
	Type             GateType `mapstructure:"type" msgpack:"type"`
	TargetQubits     []int    `mapstructure:"target_qubits" msgpack:"target_qubits"`
	ControlQubits    []int    `mapstructure:"control_qubits" msgpack:"control_qubits"`
	ErrorProbability *float64 `mapstructure:"error_probability" msgpack:"error_probability"`
}

// Gate is a validated, positioned gate. Gates do not change once a circuit is built.
type Gate struct {
	ID               string   `msgpack:"id"`
	Type             GateType `msgpack:"type"`
	TargetQubits     []int    `msgpack:"target_qubits"`
	ControlQubits    []int    `msgpack:"control_qubits"`
	Position         int      `msgpack:"position"`
	ErrorProbability float64  `msgpack:"error_probability"`
}

// Hadamard puts each target into superposition.
func Hadamard(targets ...int) GateDefinition {
	return GateDefinition{Type: GateHadamard, TargetQubits: targets}
}

// CNOT entangles control with target.
func CNOT(control, target int) GateDefinition {
	return GateDefinition{Type: GateCNOT, TargetQubits: []int{target}, ControlQubits: []int{control}}
}

// Phase shifts the phase of each target.
func Phase(targets ...int) GateDefinition {
	return GateDefinition{Type: GatePhase, TargetQubits: targets}
}

// Identity does nothing, imperfectly.
func Identity(targets ...int) GateDefinition {
	return GateDefinition{Type: GateIdentity, TargetQubits: targets}
}

// Measure collapses each target.
func Measure(targets ...int) GateDefinition {
	return GateDefinition{Type: GateMeasure, TargetQubits: targets}
}

// WithErrorProbability overrides the configured error probability for this gate.
func (d GateDefinition) WithErrorProbability(p float64) GateDefinition {
	d.ErrorProbability = &p
	return d
}

// qubits returns every index the gate references, controls first.
func (g Gate) qubits() []int {
	out := make([]int, 0, len(g.ControlQubits)+len(g.TargetQubits))
	out = append(out, g.ControlQubits...)
	return append(out, g.TargetQubits...)
}

// controlTarget resolves the CNOT pair.
func (g Gate) controlTarget() (int, int) {
	if len(g.ControlQubits) > 0 {
		return g.ControlQubits[0], g.TargetQubits[0]
	}
	return g.TargetQubits[0], g.TargetQubits[1]
}

/*
buildCircuit validates the definitions against the register width and freezes
them into positioned gates. Any bad reference rejects the whole circuit.
*/
func buildCircuit(defs []GateDefinition, qubitCount int, defaultErrorProbability float64) ([]Gate, error) {
	gates := make([]Gate, 0, len(defs))

	for pos, def := range defs {
		if !def.Type.Valid() {
			return nil, fmt.Errorf("%w: gate %d has unknown type %q", ErrInvalidCircuit, pos, def.Type)
		}

		gate := Gate{
			ID:               def.ID,
			Type:             def.Type,
			TargetQubits:     append([]int(nil), def.TargetQubits...),
			ControlQubits:    append([]int(nil), def.ControlQubits...),
			Position:         pos,
			ErrorProbability: defaultErrorProbability,
		}
		if gate.ID == "" {
			gate.ID = uuid.NewString()
		}
		if def.ErrorProbability != nil {
			p := *def.ErrorProbability
			if !(p >= 0 && p <= 1) {
				return nil, fmt.Errorf("%w: gate %d error probability %v outside [0,1]", ErrInvalidCircuit, pos, p)
			}
			gate.ErrorProbability = p
		}

		if err := validateGateQubits(gate, qubitCount); err != nil {
			return nil, err
		}
		gates = append(gates, gate)
	}

	return gates, nil
}

func validateGateQubits(g Gate, qubitCount int) error {
	if len(g.TargetQubits) == 0 {
		return fmt.Errorf("%w: %s gate %d has no target qubits", ErrInvalidCircuit, g.Type, g.Position)
	}

	seen := make(map[int]bool)
	for _, q := range g.qubits() {
		if q < 0 || q >= qubitCount {
			return fmt.Errorf("%w: %s gate %d references qubit %d, register has %d", ErrInvalidCircuit, g.Type, g.Position, q, qubitCount)
		}
		if seen[q] {
			return fmt.Errorf("%w: %s gate %d references qubit %d twice", ErrInvalidCircuit, g.Type, g.Position, q)
		}
		seen[q] = true
	}

	if len(seen) < g.Type.minQubits() {
		return fmt.Errorf("%w: %s gate %d needs %d qubits", ErrInvalidCircuit, g.Type, g.Position, g.Type.minQubits())
	}
	if g.Type == GateCNOT {
		switch {
		case len(g.ControlQubits) > 1, len(g.ControlQubits) == 1 && len(g.TargetQubits) != 1:
			return fmt.Errorf("%w: cnot gate %d needs exactly one control and one target", ErrInvalidCircuit, g.Position)
		case len(g.ControlQubits) == 0 && len(g.TargetQubits) != 2:
			return fmt.Errorf("%w: cnot gate %d needs exactly two qubits", ErrInvalidCircuit, g.Position)
		}
	}
	return nil
}
