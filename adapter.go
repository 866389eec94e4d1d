package qfragile

import (
	"context"
	"io"
)

/*
Adapter is the surface a front end drives the simulation through. A local
adapter calls straight into an Engine; a remote one would carry the same calls
over a transport, which is why every method takes a context.
*/
type Adapter interface {
	Initialize(ctx context.Context, cfg Config) error
	LoadPacket(ctx context.Context, r io.Reader) error
	BuildCircuit(ctx context.Context, defs []GateDefinition) error
	ExecuteStep(ctx context.Context) (*StepResult, error)
	ExecuteAll(ctx context.Context) ([]*StepResult, error)
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Reset(ctx context.Context) error
	GetState(ctx context.Context) (State, error)
	GetMetrics(ctx context.Context) (Metrics, error)
}

// LocalAdapter runs the simulation in process.
type LocalAdapter struct {
	engine *Engine
}

// NewLocalAdapter wraps engine, or a new one when engine is nil.
func NewLocalAdapter(engine *Engine) *LocalAdapter {
	if engine == nil {
		engine = NewEngine()
	}
	return &LocalAdapter{engine: engine}
}

// Engine exposes the wrapped engine.
func (a *LocalAdapter) Engine() *Engine {
	return a.engine
}

func (a *LocalAdapter) Initialize(ctx context.Context, cfg Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.engine.Initialize(cfg)
}

func (a *LocalAdapter) LoadPacket(ctx context.Context, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.engine.LoadPacket(r)
}

func (a *LocalAdapter) BuildCircuit(ctx context.Context, defs []GateDefinition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.engine.BuildCircuit(defs)
}

func (a *LocalAdapter) ExecuteStep(ctx context.Context) (*StepResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.engine.Step()
}

func (a *LocalAdapter) ExecuteAll(ctx context.Context) ([]*StepResult, error) {
	return a.engine.ExecuteAll(ctx)
}

func (a *LocalAdapter) Pause(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.engine.Pause()
}

func (a *LocalAdapter) Resume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.engine.Resume()
}

func (a *LocalAdapter) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.engine.Reset()
}

func (a *LocalAdapter) GetState(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	return a.engine.GetState(), nil
}

func (a *LocalAdapter) GetMetrics(ctx context.Context) (Metrics, error) {
	if err := ctx.Err(); err != nil {
		return Metrics{}, err
	}
	return a.engine.GetMetrics(), nil
}

var _ Adapter = (*LocalAdapter)(nil)
