package qfragile

import (
	"math"
	"time"
)

const (
	// NoiseQubitProbability × intensity is the chance a qubit is disturbed.
	NoiseQubitProbability = 0.1
	// NoiseQubitMagnitude × intensity bounds the coherence a disturbance removes.
	NoiseQubitMagnitude = 0.2
	// NoisePacketProbability × intensity is the chance the packet is distorted.
	NoisePacketProbability = 0.05
	// NoisePacketMagnitude × intensity bounds the distortion strength.
	NoisePacketMagnitude = 0.1
	// MaxNoiseParticles is the particle count at intensity 1.
	MaxNoiseParticles = 50
)

// NoiseResult collects the disturbances of one noise pass.
type NoiseResult struct {
	Intensity    float64
	Disturbances map[string]float64
	Corruption   *Corruption
	Particles    []Particle
	Qubits       []Qubit
	Packet       *Packet
}

// Disturbed reports whether the pass touched a qubit or the packet.
func (nr *NoiseResult) Disturbed() bool {
	return len(nr.Disturbances) > 0 || nr.Corruption != nil
}

// NoiseGenerator applies stochastic, intensity-scaled disturbances.
type NoiseGenerator struct {
	images *ImageProcessor
}

// NewNoiseGenerator returns a generator that renders packet distortions through images.
func NewNoiseGenerator(images *ImageProcessor) *NoiseGenerator {
	return &NoiseGenerator{images: images}
}

/*
Apply disturbs each qubit with probability intensity × 0.1 by up to intensity × 0.2
coherence, and the packet with probability intensity × 0.05 by a blur or color
shift of up to intensity × 0.1. Both the chance and the size grow with intensity.
The particles are cosmetic and scale in count with intensity.
*/
func (ng *NoiseGenerator) Apply(qubits []Qubit, packet *Packet, intensity float64, rng Random) *NoiseResult {
	intensity = clamp01(intensity)
	res := &NoiseResult{
		Intensity:    intensity,
		Disturbances: make(map[string]float64),
		Qubits:       cloneQubits(qubits),
		Packet:       packet,
	}
	if intensity == 0 {
		return res
	}

	for i := range res.Qubits {
		q := &res.Qubits[i]
		if !chance(rng, intensity*NoiseQubitProbability) {
			continue
		}
		before := q.Coherence
		q.Coherence = clamp01(q.Coherence - rng.Float64()*intensity*NoiseQubitMagnitude)
		res.Disturbances[q.ID] = before - q.Coherence
	}

	if packet != nil && packet.Image != nil && chance(rng, intensity*NoisePacketProbability) {
		t := CorruptionBlur
		if rng.Float64() >= 0.5 {
			t = CorruptionColorShift
		}
		c := Corruption{
			Type:      t,
			Intensity: rng.Float64() * intensity * NoisePacketMagnitude,
			Source:    "noise",
			Timestamp: time.Now(),
		}
		img := ng.images.ApplyCorruption(packet.Image, c, rng)
		res.Packet = packet.degrade(img, c, c.Intensity)
		res.Corruption = &c
	}

	res.Particles = particles(intensity, rng)
	return res
}

func particles(intensity float64, rng Random) []Particle {
	count := int(math.Round(intensity * MaxNoiseParticles))
	out := make([]Particle, count)
	for i := range out {
		out[i] = Particle{
			Position: [3]float64{spread(rng), spread(rng), spread(rng)},
			Velocity: [3]float64{spread(rng) * intensity, spread(rng) * intensity, spread(rng) * intensity},
			Lifetime: time.Duration(500+rng.Float64()*1000) * time.Millisecond,
			Size:     0.02 + rng.Float64()*0.05*intensity,
		}
	}
	return out
}

// spread draws uniformly from [-1,1).
func spread(rng Random) float64 {
	return rng.Float64()*2 - 1
}
