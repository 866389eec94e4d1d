package qfragile

import (
	"fmt"
	"image"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/theapemachine/errnie"
)

// CoherenceThreshold is the level whose downward crossing is reported as an event.
const CoherenceThreshold = 0.5

/*
Engine is the simulation orchestrator. It owns the register, the packet and the
circuit, and is the only thing that ever replaces them: gate operations,
decoherence and noise are pure and hand back new values which the engine commits
at the end of a step.

One engine is one simulation. Callers hold the *Engine (or an Adapter over it)
and route every change through its methods. A step is never run concurrently
with another step; overlapping calls fail with ErrEngineBusy.
*/
type Engine struct {
	mu       sync.RWMutex
	stepping atomic.Bool
	running  atomic.Bool

	status     Status
	paused     bool
	suspended  bool
	resume     chan struct{}
	generation uint64
	fault      error

	config       Config
	rng          Random
	customRandom bool
	images       *ImageProcessor
	decoherence  *DecoherenceEngine
	noise        *NoiseGenerator
	calculator   *MetricsCalculator
	broadcast    *BroadcastGroup

	circuit     []Gate
	qubits      []Qubit
	packet      *Packet
	freshPacket *Packet
	index       int
	elapsed     time.Duration
	complete    bool
	metrics     Metrics
	events      []Event
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithRandom injects the random source, overriding any configured seed.
func WithRandom(rng Random) Option {
	return func(e *Engine) {
		e.rng = rng
		e.customRandom = rng != nil
	}
}

// WithBroadcastGroup publishes every step result through group.
func WithBroadcastGroup(group *BroadcastGroup) Option {
	return func(e *Engine) {
		e.broadcast = group
	}
}

// NewEngine returns an idle engine; call Initialize before anything else.
func NewEngine(opts ...Option) *Engine {
	resume := make(chan struct{})
	close(resume)

	e := &Engine{
		status:     StatusIdle,
		resume:     resume,
		calculator: NewMetricsCalculator(DefaultFidelityWindow),
		broadcast:  NewBroadcastGroup("engine", DefaultSubscriberBuffer),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

/*
Initialize validates cfg and prepares a fresh register. Any previous packet,
circuit and history are dropped. It is refused while a run is in progress.
*/
func (e *Engine) Initialize(cfg Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.midRun() || e.running.Load() {
		errnie.Warn("initialize refused: simulation in progress")
		return fmt.Errorf("%w: cannot initialize mid-run, reset first", ErrEngineNotReady)
	}

	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	e.config = cfg
	if !e.customRandom {
		e.rng = NewRandom(cfg.Seed)
	}
	e.images = NewImageProcessor(cfg.MaxImageBytes, cfg.MaxImageDimension)
	e.decoherence = NewDecoherenceEngine(e.images)
	e.noise = NewNoiseGenerator(e.images)
	e.calculator = NewMetricsCalculator(cfg.FidelityWindow)

	e.circuit = nil
	e.packet = nil
	e.freshPacket = nil
	e.clearRun()

	errnie.Info("simulation initialized - qubits %d, noise %.2f, decoherence %.2f, gate error %.2f",
		cfg.QubitCount, cfg.NoiseLevel, cfg.DecoherenceRate, cfg.GateErrorProbability)
	return nil
}

// LoadPacket decodes an uploaded image into the packet. It does not start the run.
func (e *Engine) LoadPacket(r io.Reader) error {
	return e.loadPacket(func(ip *ImageProcessor) (*Packet, error) {
		return ip.NewPacket(r)
	})
}

// LoadImage is LoadPacket for an image that is already decoded.
func (e *Engine) LoadImage(img image.Image) error {
	return e.loadPacket(func(ip *ImageProcessor) (*Packet, error) {
		return ip.NewPacketFromImage(img)
	})
}

func (e *Engine) loadPacket(create func(*ImageProcessor) (*Packet, error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status == StatusIdle {
		return fmt.Errorf("%w: initialize before loading a packet", ErrEngineNotReady)
	}
	if e.midRun() || e.stepping.Load() {
		return fmt.Errorf("%w: cannot replace the packet mid-run", ErrEngineNotReady)
	}

	packet, err := create(e.images)
	if err != nil {
		errnie.Warn("packet rejected: %v", err)
		return err
	}

	e.packet = packet
	e.freshPacket = packet.Clone()
	errnie.Info("packet loaded - %s %dx%d", packet.Format, packet.Width, packet.Height)
	return nil
}

/*
BuildCircuit validates defs against the register and replaces the circuit. It is
only accepted before the first step, or after Reset.
*/
func (e *Engine) BuildCircuit(defs []GateDefinition) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status == StatusIdle || e.status == StatusFaulted {
		return fmt.Errorf("%w: cannot build a circuit while %s", ErrEngineNotReady, e.status)
	}
	if e.index > 0 || e.complete || e.running.Load() {
		return fmt.Errorf("%w: circuit is frozen once execution starts, reset first", ErrEngineNotReady)
	}
	if len(defs) == 0 {
		return fmt.Errorf("%w: circuit has no gates", ErrInvalidCircuit)
	}

	gates, err := buildCircuit(defs, e.config.QubitCount, e.config.GateErrorProbability)
	if err != nil {
		errnie.Warn("circuit rejected: %v", err)
		return err
	}

	e.circuit = gates
	errnie.Info("circuit built - %d gates", len(gates))
	return nil
}

/*
Step executes the gate at the current index, then a decoherence tick, then a
noise pass, recomputes the metrics and advances. Past the last gate it marks the
run complete and returns a terminal result without touching anything.

While a Run is in flight Step is refused, unless the engine is paused: then it
single-steps, and the Run picks up after it once resumed.
*/
func (e *Engine) Step() (*StepResult, error) {
	if !e.stepping.CompareAndSwap(false, true) {
		return nil, ErrEngineBusy
	}
	defer e.stepping.Store(false)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running.Load() && !e.paused {
		return nil, fmt.Errorf("%w: run in progress, pause it to single-step", ErrEngineBusy)
	}
	return e.step()
}

/*
stepGeneration is the Run loop's step. It steps only if no Reset or Initialize
happened since gen, and not while paused. The returned state tells the loop what
to do when no step was taken.
*/
func (e *Engine) stepGeneration(gen uint64) (*StepResult, runState, error) {
	if !e.stepping.CompareAndSwap(false, true) {
		return nil, runStopped, ErrEngineBusy
	}
	defer e.stepping.Store(false)

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation {
		return nil, runStopped, nil
	}
	if e.paused {
		return nil, runPaused, nil
	}
	res, err := e.step()
	return res, runStepped, err
}

func (e *Engine) step() (*StepResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	if e.index >= len(e.circuit) {
		e.complete = true
		e.status = StatusCompleted
		result := &StepResult{
			State:   e.snapshot(),
			Metrics: e.metrics,
		}
		e.broadcast.Send(result)
		return result, nil
	}

	gate := e.circuit[e.index]
	before := cloneQubits(e.qubits)

	gateRes, err := ApplyGate(GateInput{
		Gate:   gate,
		Packet: e.packet,
		Qubits: e.qubits,
		Random: e.rng,
		Images: e.images,
	})
	if err != nil {
		return nil, e.faultWith(err)
	}
	if len(gateRes.Qubits) != len(e.qubits) {
		return nil, e.faultWith(fmt.Errorf("%w: gate %s changed register width", ErrEngineFault, gate.ID))
	}
	e.calculator.Record(gateRes.Fidelity)

	dec := e.decoherence.Apply(gateRes.Qubits, gateRes.Packet, e.config.TickDuration, e.config.DecoherenceRate, e.rng)
	noise := e.noise.Apply(dec.Qubits, dec.Packet, e.config.NoiseLevel, e.rng)

	events := append([]Event(nil), gateRes.Events...)
	updates := append([]VisualUpdate(nil), gateRes.Effects...)
	events, updates = e.decoherenceEvents(events, updates, dec)
	events, updates = e.noiseEvents(events, updates, noise)
	events = e.thresholdEvents(events, before, noise.Qubits)

	e.qubits = noise.Qubits
	e.packet = noise.Packet
	e.elapsed += e.config.TickDuration
	e.index++
	e.metrics = e.calculator.Calculate(e.qubits)
	e.events = append(e.events, events...)

	switch {
	case e.index >= len(e.circuit):
		e.complete = true
		e.status = StatusCompleted
		errnie.Info("simulation complete - coherence %.3f, entanglement %.3f, fidelity %.3f",
			e.metrics.Coherence, e.metrics.Entanglement, e.metrics.GateFidelity)
	case e.paused:
		e.status = StatusPaused
	default:
		e.status = StatusRunning
	}

	primary := events[0]
	result := &StepResult{
		State:         e.snapshot(),
		Event:         &primary,
		Metrics:       e.metrics,
		VisualUpdates: updates,
		Particles:     noise.Particles,
	}

	errnie.Debug("step %d %s - fidelity %.3f, degradation %.3f",
		gate.Position, gate.Type, gateRes.Fidelity, e.packet.DegradationLevel)

	e.broadcast.Send(result)
	return result, nil
}

func (e *Engine) decoherenceEvents(events []Event, updates []VisualUpdate, dec *DecoherenceResult) ([]Event, []VisualUpdate) {
	if dec.CoherenceLoss == 0 {
		return events, updates
	}

	step := e.index
	events = append(events, newEvent(EventDecoherenceTick, step, "", nil, map[string]any{
		"coherence_loss": dec.CoherenceLoss,
	}))

	for _, q := range dec.Qubits {
		if dec.Fading[q.ID] > 0 {
			u := qubitUpdate(q)
			u.Properties["fading"] = dec.Fading[q.ID]
			updates = append(updates, u)
		}
	}

	for _, l := range dec.BrokenLinks {
		events = append(events, newEvent(EventEntanglementBroken, step, "", []string{l.A, l.B}, map[string]any{
			"strength": l.Strength,
			"cause":    "decoherence",
		}))
		updates = append(updates, VisualUpdate{
			Type:       VisualEntanglementHide,
			TargetID:   l.A + "-" + l.B,
			Properties: map[string]any{"from": l.A, "to": l.B},
			Duration:   300 * time.Millisecond,
		})
	}

	if dec.Corruption != nil {
		updates = append(updates, packetUpdate(dec.Packet, *dec.Corruption))
	}
	return events, updates
}

func (e *Engine) noiseEvents(events []Event, updates []VisualUpdate, noise *NoiseResult) ([]Event, []VisualUpdate) {
	if noise.Disturbed() {
		disturbed := make([]string, 0, len(noise.Disturbances))
		for _, q := range noise.Qubits {
			if _, ok := noise.Disturbances[q.ID]; ok {
				disturbed = append(disturbed, q.ID)
				updates = append(updates, qubitUpdate(q))
			}
		}
		data := map[string]any{"intensity": noise.Intensity}
		if noise.Corruption != nil {
			data["corruption"] = string(noise.Corruption.Type)
			updates = append(updates, packetUpdate(noise.Packet, *noise.Corruption))
		}
		events = append(events, newEvent(EventNoiseApplied, e.index, "", disturbed, data))
	}

	if len(noise.Particles) > 0 {
		updates = append(updates, VisualUpdate{
			Type:       VisualNoiseParticles,
			TargetID:   "noise",
			Properties: map[string]any{"count": len(noise.Particles), "intensity": noise.Intensity},
			Duration:   time.Second,
		})
	}
	return events, updates
}

// thresholdEvents reports qubits that fell from at or above CoherenceThreshold to below it.
func (e *Engine) thresholdEvents(events []Event, before, after []Qubit) []Event {
	var crossed []string
	for i := range after {
		if before[i].Coherence >= CoherenceThreshold && after[i].Coherence < CoherenceThreshold {
			crossed = append(crossed, after[i].ID)
		}
	}
	if len(crossed) > 0 {
		events = append(events, newEvent(EventCoherenceThresholdCrossed, e.index, "", crossed, map[string]any{
			"threshold": CoherenceThreshold,
		}))
	}
	return events
}

func packetUpdate(p *Packet, c Corruption) VisualUpdate {
	return VisualUpdate{
		Type:     VisualPacketDegrade,
		TargetID: p.ID,
		Properties: map[string]any{
			"corruption":  string(c.Type),
			"intensity":   c.Intensity,
			"source":      c.Source,
			"degradation": p.DegradationLevel,
		},
		Duration: 500 * time.Millisecond,
	}
}

// Pause stops the Run loop at its next yield. State is kept as is.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status == StatusIdle {
		return fmt.Errorf("%w: nothing to pause", ErrEngineNotReady)
	}
	if e.paused {
		e.suspended = false
		return nil
	}

	e.paused = true
	e.resume = make(chan struct{})
	if e.status == StatusRunning || e.status == StatusInitialized {
		e.status = StatusPaused
	}
	errnie.Info("simulation paused at gate %d", e.index)
	return nil
}

// Resume lets a paused Run loop continue.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status == StatusIdle {
		return fmt.Errorf("%w: nothing to resume", ErrEngineNotReady)
	}
	if e.unpause() {
		errnie.Info("simulation resumed at gate %d", e.index)
	}
	return nil
}

// unpause reports whether the engine was paused.
func (e *Engine) unpause() bool {
	if !e.paused {
		return false
	}
	e.paused = false
	e.suspended = false
	close(e.resume)

	if e.status == StatusPaused {
		e.status = StatusRunning
		if e.index == 0 {
			e.status = StatusInitialized
		}
	}
	return true
}

/*
Reset rewinds to the state right after Initialize + LoadPacket + BuildCircuit:
fresh qubits, the packet as it was uploaded, cleared metrics and events, gate
index 0. Configuration and circuit survive so the same circuit can run again.
A seeded engine also reseeds, so the rerun repeats exactly.
*/
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status == StatusIdle {
		return fmt.Errorf("%w: initialize before reset", ErrEngineNotReady)
	}

	if !e.customRandom && e.config.Seed != 0 {
		e.rng = NewRandom(e.config.Seed)
	}
	e.packet = e.freshPacket.Clone()
	e.clearRun()

	errnie.Info("simulation reset - %d gates retained", len(e.circuit))
	return nil
}

// clearRun puts the run-specific state back to its starting values.
func (e *Engine) clearRun() {
	e.qubits = NewQubits(e.config.QubitCount)
	e.index = 0
	e.elapsed = 0
	e.complete = false
	e.events = nil
	e.fault = nil
	e.calculator.Clear()
	e.metrics = e.calculator.Calculate(e.qubits)
	e.unpause()
	e.status = StatusInitialized
	e.generation++
}

// GetState returns a detached snapshot of the simulation.
func (e *Engine) GetState() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot()
}

// GetMetrics returns the metrics as of the last step.
func (e *Engine) GetMetrics() Metrics {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.metrics
}

// Status reports the lifecycle status.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// Subscribe returns a channel receiving every subsequent step result.
func (e *Engine) Subscribe(subscriberID string, filters ...EventFilter) <-chan *StepResult {
	return e.broadcast.Subscribe(subscriberID, filters...)
}

// Unsubscribe closes a subscription opened with Subscribe.
func (e *Engine) Unsubscribe(subscriberID string) {
	e.broadcast.Unsubscribe(subscriberID)
}

// ready checks everything a step needs. Callers hold e.mu.
func (e *Engine) ready() error {
	switch {
	case e.status == StatusIdle:
		return fmt.Errorf("%w: initialize first", ErrEngineNotReady)
	case e.status == StatusFaulted:
		return fmt.Errorf("reset required: %w", e.fault)
	case e.packet == nil:
		return fmt.Errorf("%w: no packet loaded", ErrEngineNotReady)
	case len(e.circuit) == 0:
		return fmt.Errorf("%w: no circuit built", ErrEngineNotReady)
	}
	return nil
}

func (e *Engine) midRun() bool {
	return e.index > 0 && !e.complete
}

func (e *Engine) faultWith(err error) error {
	errnie.Error(err)
	e.status = StatusFaulted
	e.fault = err
	return err
}

func (e *Engine) snapshot() State {
	circuit := make([]Gate, len(e.circuit))
	for i, g := range e.circuit {
		g.TargetQubits = append([]int(nil), g.TargetQubits...)
		g.ControlQubits = append([]int(nil), g.ControlQubits...)
		circuit[i] = g
	}

	return State{
		Status:           e.status,
		Config:           e.config,
		Qubits:           cloneQubits(e.qubits),
		Packet:           e.packet.Clone(),
		Circuit:          circuit,
		CurrentGateIndex: e.index,
		ElapsedTime:      e.elapsed,
		IsComplete:       e.complete,
		IsPaused:         e.paused,
		Events:           append([]Event(nil), e.events...),
	}
}
