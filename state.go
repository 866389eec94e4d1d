package qfragile

import "time"

/*
Status is where the engine sits in its lifecycle:

	Idle -> Initialized -> Running <-> Paused -> Completed

Reset returns any status except Idle to Initialized. A fault parks the engine in
Faulted until Reset.
*/
type Status int

const (
	StatusIdle Status = iota
	StatusInitialized
	StatusRunning
	StatusPaused
	StatusCompleted
	StatusFaulted
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusInitialized:
		return "initialized"
	case StatusRunning:
		return "running"
	case StatusPaused:
		return "paused"
	case StatusCompleted:
		return "completed"
	case StatusFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// State is a full, detached snapshot of the simulation.
type State struct {
	Status           Status        `msgpack:"status"`
	Config           Config        `msgpack:"config"`
	Qubits           []Qubit       `msgpack:"qubits"`
	Packet           *Packet       `msgpack:"packet"`
	Circuit          []Gate        `msgpack:"circuit"`
	CurrentGateIndex int           `msgpack:"current_gate_index"`
	ElapsedTime      time.Duration `msgpack:"elapsed_time"`
	IsComplete       bool          `msgpack:"is_complete"`
	IsPaused         bool          `msgpack:"is_paused"`
	Events           []Event       `msgpack:"events"`
}

/*
StepResult is what one step hands to the store and the renderer. Event is the
step's headline; the full list of what happened is in State.Events. A terminal
result (asking for a step past the end) carries a nil Event.
*/
type StepResult struct {
	State         State          `msgpack:"state"`
	Event         *Event         `msgpack:"event"`
	Metrics       Metrics        `msgpack:"metrics"`
	VisualUpdates []VisualUpdate `msgpack:"visual_updates"`
	Particles     []Particle     `msgpack:"particles,omitempty"`
}
