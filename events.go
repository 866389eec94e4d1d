package qfragile

import (
	"time"

	"github.com/google/uuid"
)

// EventType names what happened during a step.
type EventType string

const (
	EventGateApplied               EventType = "gate_applied"
	EventDecoherenceTick           EventType = "decoherence_tick"
	EventNoiseApplied              EventType = "noise_applied"
	EventEntanglementFormed        EventType = "entanglement_formed"
	EventEntanglementBroken        EventType = "entanglement_broken"
	EventSuperpositionEntered      EventType = "superposition_entered"
	EventSuperpositionCollapsed    EventType = "superposition_collapsed"
	EventMeasurementPerformed      EventType = "measurement_performed"
	EventCoherenceThresholdCrossed EventType = "coherence_threshold_crossed"
)

// Event is one entry of the simulation event log.
type Event struct {
	ID        string         `msgpack:"id"`
	Type      EventType      `msgpack:"type"`
	Timestamp time.Time      `msgpack:"timestamp"`
	Step      int            `msgpack:"step"`
	GateID    string         `msgpack:"gate_id,omitempty"`
	QubitIDs  []string       `msgpack:"qubit_ids,omitempty"`
	Data      map[string]any `msgpack:"data,omitempty"`
}

func newEvent(t EventType, step int, gateID string, qubitIDs []string, data map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now(),
		Step:      step,
		GateID:    gateID,
		QubitIDs:  qubitIDs,
		Data:      data,
	}
}

// VisualUpdateType tells the visualization layer which animation to play.
type VisualUpdateType string

const (
	VisualQubitStateChange    VisualUpdateType = "qubit_state_change"
	VisualPacketDegrade       VisualUpdateType = "packet_degrade"
	VisualGateActivate        VisualUpdateType = "gate_activate"
	VisualEntanglementShow    VisualUpdateType = "entanglement_show"
	VisualEntanglementHide    VisualUpdateType = "entanglement_hide"
	VisualMeasurementCollapse VisualUpdateType = "measurement_collapse"
	VisualNoiseParticles      VisualUpdateType = "noise_particles"
)

/*
VisualUpdate is an opaque instruction for the renderer: a target and a property
bag it knows how to interpret. Duration and Delay are hints only.
*/
type VisualUpdate struct {
	Type       VisualUpdateType `msgpack:"type"`
	TargetID   string           `msgpack:"target_id"`
	Properties map[string]any   `msgpack:"properties,omitempty"`
	Duration   time.Duration    `msgpack:"duration,omitempty"`
	Delay      time.Duration    `msgpack:"delay,omitempty"`
}

// Particle is a purely cosmetic noise sprite.
type Particle struct {
	Position [3]float64    `msgpack:"position"`
	Velocity [3]float64    `msgpack:"velocity"`
	Lifetime time.Duration `msgpack:"lifetime"`
	Size     float64       `msgpack:"size"`
}
