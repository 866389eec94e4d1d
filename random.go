package qfragile

import (
	"math/rand/v2"
	"time"
)

/*
Random is the only source of chance in the simulation. Every probabilistic rule
(gate errors, noise, color shifts, particles) draws from it, so a seeded source
makes whole runs reproducible.
*/
type Random interface {
	Float64() float64
}

// NewRandom returns a PCG-backed source. A zero seed picks one from the clock.
func NewRandom(seed uint64) Random {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// chance reports whether a draw lands under p.
func chance(rng Random, p float64) bool {
	return rng.Float64() < p
}
