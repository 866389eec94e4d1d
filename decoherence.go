package qfragile

import (
	"time"
)

const (
	// DecoherenceScale converts seconds × rate into coherence lost.
	DecoherenceScale = 0.1
	// DecoherenceSuperpositionFactor is the share of the loss taken from superposition.
	DecoherenceSuperpositionFactor = 0.5
	// DecoherenceFadeFactor converts the loss into packet fade intensity.
	DecoherenceFadeFactor = 2.0
)

/*
DecoherenceResult describes one tick of decoherence: how much was lost, how much
each qubit actually faded (after clamping), which links fell under the threshold,
and the fade applied to the packet.
*/
type DecoherenceResult struct {
	CoherenceLoss float64
	Fading        map[string]float64
	BrokenLinks   []Link
	Corruption    *Corruption
	Qubits        []Qubit
	Packet        *Packet
}

// DecoherenceEngine applies continuous, time-proportional degradation.
type DecoherenceEngine struct {
	images *ImageProcessor
}

// NewDecoherenceEngine returns an engine that renders packet fades through images.
func NewDecoherenceEngine(images *ImageProcessor) *DecoherenceEngine {
	return &DecoherenceEngine{images: images}
}

/*
Apply decays every qubit and link by deltaTime × rate × DecoherenceScale. Once
every qubit sits at zero coherence the call is a no-op, so repeated ticks at the
floor change nothing. Links at or under EntanglementThreshold are removed from
both partners in the same pass.
*/
func (de *DecoherenceEngine) Apply(qubits []Qubit, packet *Packet, deltaTime time.Duration, rate float64, rng Random) *DecoherenceResult {
	res := &DecoherenceResult{
		Fading: make(map[string]float64),
		Qubits: cloneQubits(qubits),
		Packet: packet,
	}

	loss := deltaTime.Seconds() * rate * DecoherenceScale
	if loss <= 0 || allDecohered(qubits) {
		return res
	}
	res.CoherenceLoss = loss

	for i := range res.Qubits {
		q := &res.Qubits[i]
		before := q.Coherence
		q.Coherence = clamp01(q.Coherence - loss)
		q.SuperpositionLevel = clamp01(q.SuperpositionLevel - loss*DecoherenceSuperpositionFactor)
		res.Fading[q.ID] = before - q.Coherence
	}

	res.BrokenLinks = decayLinks(res.Qubits, loss)

	if packet != nil && packet.Image != nil {
		c := Corruption{
			Type:      CorruptionFade,
			Intensity: clamp01(loss * DecoherenceFadeFactor),
			Source:    "decoherence",
			Timestamp: time.Now(),
		}
		img := de.images.ApplyCorruption(packet.Image, c, rng)
		res.Packet = packet.degrade(img, c, c.Intensity)
		res.Corruption = &c
	}

	return res
}

// decayLinks weakens each pair once and drops both halves together.
func decayLinks(qubits []Qubit, loss float64) []Link {
	var broken []Link

	for _, l := range links(qubits) {
		a, b := indexOfQubit(qubits, l.A), indexOfQubit(qubits, l.B)
		link, _ := qubits[a].EntangledWith(l.B)
		strength := link.Strength - loss*link.DecayRate

		if strength <= EntanglementThreshold {
			removeLink(&qubits[a], l.B)
			removeLink(&qubits[b], l.A)
			broken = append(broken, Link{A: l.A, B: l.B, Strength: max(strength, 0)})
			continue
		}
		setStrength(&qubits[a], l.B, strength)
		setStrength(&qubits[b], l.A, strength)
	}

	return broken
}

func setStrength(q *Qubit, partner string, strength float64) {
	for i := range q.Entanglements {
		if q.Entanglements[i].QubitID == partner {
			q.Entanglements[i].Strength = strength
		}
	}
}

func allDecohered(qubits []Qubit) bool {
	for _, q := range qubits {
		if q.Coherence > 0 {
			return false
		}
	}
	return true
}
