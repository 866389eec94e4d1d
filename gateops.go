package qfragile

import (
	"fmt"
	"time"
)

// HadamardSuperpositionStep is how far one Hadamard pushes a qubit into superposition.
const HadamardSuperpositionStep = 0.5

// GateInput is everything a gate operation reads. None of it is modified.
type GateInput struct {
	Gate   Gate
	Packet *Packet
	Qubits []Qubit
	Random Random
	Images *ImageProcessor
}

/*
GateResult is the outcome of a single gate application. Packet and Qubits are
fresh values; the first entry of Events is the one that best describes the gate.
*/
type GateResult struct {
	Gate        Gate
	Packet      *Packet
	Qubits      []Qubit
	Fidelity    float64
	ActualError float64
	Corruption  *Corruption
	Events      []Event
	Effects     []VisualUpdate
}

/*
ApplyGate runs one gate against a copy of the register and packet. A gate that
references a qubit missing from the register means the circuit and register have
drifted apart; that is reported as ErrEngineFault rather than skipped.
*/
func ApplyGate(in GateInput) (*GateResult, error) {
	if in.Packet == nil || in.Packet.Image == nil {
		return nil, fmt.Errorf("%w: gate %s applied without a packet", ErrEngineFault, in.Gate.ID)
	}
	if in.Random == nil || in.Images == nil {
		return nil, fmt.Errorf("%w: gate %s applied without random source or image processor", ErrEngineFault, in.Gate.ID)
	}
	for _, q := range in.Gate.qubits() {
		if q < 0 || q >= len(in.Qubits) {
			return nil, fmt.Errorf("%w: %s gate %s references missing qubit %d", ErrEngineFault, in.Gate.Type, in.Gate.ID, q)
		}
	}

	res := &GateResult{
		Gate:     in.Gate,
		Packet:   in.Packet,
		Qubits:   cloneQubits(in.Qubits),
		Fidelity: 1,
		Effects: []VisualUpdate{{
			Type:     VisualGateActivate,
			TargetID: in.Gate.ID,
			Properties: map[string]any{
				"type":     string(in.Gate.Type),
				"position": in.Gate.Position,
			},
			Duration: 300 * time.Millisecond,
		}},
	}

	switch in.Gate.Type {
	case GateHadamard:
		applyHadamard(in, res)
	case GateCNOT:
		applyCNOT(in, res)
	case GatePhase:
		applyPhase(in, res)
	case GateIdentity:
		applyIdentity(in, res)
	case GateMeasure:
		applyMeasure(in, res)
	default:
		return nil, fmt.Errorf("%w: unknown gate type %q", ErrEngineFault, in.Gate.Type)
	}

	return res, nil
}

// sampleError draws the actual error of one application, bounded by the gate's ceiling.
func sampleError(rng Random, probability, ceiling float64) float64 {
	if chance(rng, probability) {
		return rng.Float64() * ceiling
	}
	return 0
}

// noisyGate samples the error and damages the packet by the gate's profile.
func noisyGate(in GateInput, res *GateResult) {
	profile := gateProfiles[in.Gate.Type]
	res.ActualError = sampleError(in.Random, in.Gate.ErrorProbability, profile.errorCeiling)
	res.Fidelity = clamp01(1 - res.ActualError)

	intensity := res.ActualError * profile.corruptionWeight
	if intensity > 0 {
		corrupt(in, res, profile.corruption, intensity, intensity)
	}
}

func corrupt(in GateInput, res *GateResult, t CorruptionType, intensity, degradeBy float64) {
	c := Corruption{
		Type:      t,
		Intensity: intensity,
		Source:    string(in.Gate.Type),
		Timestamp: time.Now(),
	}
	img := in.Images.ApplyCorruption(res.Packet.Image, c, in.Random)
	res.Packet = res.Packet.degrade(img, c, degradeBy)
	res.Corruption = &c
	res.Effects = append(res.Effects, VisualUpdate{
		Type:     VisualPacketDegrade,
		TargetID: res.Packet.ID,
		Properties: map[string]any{
			"corruption":  string(t),
			"intensity":   intensity,
			"degradation": res.Packet.DegradationLevel,
		},
		Duration: 500 * time.Millisecond,
	})
}

func qubitUpdate(q Qubit) VisualUpdate {
	return VisualUpdate{
		Type:     VisualQubitStateChange,
		TargetID: q.ID,
		Properties: map[string]any{
			"superposition": q.SuperpositionLevel,
			"coherence":     q.Coherence,
		},
		Duration: 400 * time.Millisecond,
	}
}

func applyHadamard(in GateInput, res *GateResult) {
	var entered []string
	for _, idx := range in.Gate.TargetQubits {
		q := &res.Qubits[idx]
		if q.SuperpositionLevel == 0 {
			entered = append(entered, q.ID)
		}
		q.SuperpositionLevel = clamp01(q.SuperpositionLevel + HadamardSuperpositionStep)
		res.Effects = append(res.Effects, qubitUpdate(*q))
	}

	noisyGate(in, res)

	if len(entered) > 0 {
		res.Events = append(res.Events, newEvent(EventSuperpositionEntered, in.Gate.Position, in.Gate.ID, entered, map[string]any{
			"fidelity": res.Fidelity,
		}))
	}
	res.Events = append(res.Events, gateEvent(in.Gate, res))
}

func applyCNOT(in GateInput, res *GateResult) {
	control, target := in.Gate.controlTarget()
	formed := entangle(res.Qubits, control, target, CNOTEntanglementStrength)

	a, b := res.Qubits[control].ID, res.Qubits[target].ID
	res.Effects = append(res.Effects, VisualUpdate{
		Type:     VisualEntanglementShow,
		TargetID: a + "-" + b,
		Properties: map[string]any{
			"from":     a,
			"to":       b,
			"strength": CNOTEntanglementStrength,
		},
		Duration: 600 * time.Millisecond,
	})

	noisyGate(in, res)

	if formed {
		res.Events = append(res.Events, newEvent(EventEntanglementFormed, in.Gate.Position, in.Gate.ID, []string{a, b}, map[string]any{
			"strength": CNOTEntanglementStrength,
			"fidelity": res.Fidelity,
		}))
	}
	res.Events = append(res.Events, gateEvent(in.Gate, res))
}

// applyPhase changes nothing the renderer can show on the qubit itself.
func applyPhase(in GateInput, res *GateResult) {
	noisyGate(in, res)
	res.Events = append(res.Events, gateEvent(in.Gate, res))
}

func applyIdentity(in GateInput, res *GateResult) {
	noisyGate(in, res)
	res.Events = append(res.Events, gateEvent(in.Gate, res))
}

/*
applyMeasure collapses every target: no superposition, no coherence, no links.
A measurement is accurate by definition, so fidelity stays 1 and it adds no
degradation, but it always leaves a fixed pixelation on the packet.
*/
func applyMeasure(in GateInput, res *GateResult) {
	var measured, collapsed []string

	for _, idx := range in.Gate.TargetQubits {
		q := &res.Qubits[idx]
		measured = append(measured, q.ID)
		if q.SuperpositionLevel > 0 {
			collapsed = append(collapsed, q.ID)
		}

		for _, l := range disentangleAll(res.Qubits, idx) {
			res.Events = append(res.Events, newEvent(EventEntanglementBroken, in.Gate.Position, in.Gate.ID, []string{l.A, l.B}, map[string]any{
				"strength": l.Strength,
				"cause":    "measurement",
			}))
			res.Effects = append(res.Effects, VisualUpdate{
				Type:       VisualEntanglementHide,
				TargetID:   l.A + "-" + l.B,
				Properties: map[string]any{"from": l.A, "to": l.B},
				Duration:   300 * time.Millisecond,
			})
		}

		q.SuperpositionLevel = 0
		q.Coherence = 0
		res.Effects = append(res.Effects, VisualUpdate{
			Type:     VisualMeasurementCollapse,
			TargetID: q.ID,
			Properties: map[string]any{
				"superposition": 0.0,
				"coherence":     0.0,
			},
			Duration: 800 * time.Millisecond,
		})
	}

	corrupt(in, res, CorruptionPixelate, MeasureCorruptionIntensity, 0)

	primary := newEvent(EventMeasurementPerformed, in.Gate.Position, in.Gate.ID, measured, map[string]any{
		"fidelity": res.Fidelity,
	})
	res.Events = append([]Event{primary}, res.Events...)
	if len(collapsed) > 0 {
		res.Events = append(res.Events, newEvent(EventSuperpositionCollapsed, in.Gate.Position, in.Gate.ID, collapsed, nil))
	}
}

func gateEvent(g Gate, res *GateResult) Event {
	ids := make([]string, 0, len(g.qubits()))
	for _, idx := range g.qubits() {
		ids = append(ids, res.Qubits[idx].ID)
	}
	return newEvent(EventGateApplied, g.Position, g.ID, ids, map[string]any{
		"type":         string(g.Type),
		"fidelity":     res.Fidelity,
		"actual_error": res.ActualError,
	})
}
