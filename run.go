package qfragile

import (
	"context"
	"fmt"
	"iter"

	"github.com/theapemachine/errnie"
	"golang.org/x/time/rate"
)

// TicksPerSecond is the Run pace at an animation speed of 1.
const TicksPerSecond = 20

type runState int

const (
	runStepped runState = iota
	runPaused
	runStopped
)

/*
Run steps through the rest of the circuit, yielding one result per step. The
sequence is lazy and finite. It waits while the engine is paused, and ends when
the circuit completes, when the engine is reset or re-initialized, when ctx is
done, or when the consumer stops ranging.

A run that stops short of the end leaves the engine paused; the next Run picks
up where it stopped. A run that is already complete yields nothing; Reset makes
it runnable again.
*/
func (e *Engine) Run(ctx context.Context) iter.Seq2[*StepResult, error] {
	return func(yield func(*StepResult, error) bool) {
		if !e.running.CompareAndSwap(false, true) {
			yield(nil, fmt.Errorf("%w: already running", ErrEngineBusy))
			return
		}
		defer e.running.Store(false)

		gen, speed, err := e.beginRun()
		if err != nil {
			yield(nil, err)
			return
		}
		defer e.endRun(gen)

		limiter := rate.NewLimiter(rate.Limit(TicksPerSecond*speed), 1)

		for {
			if err := e.waitWhilePaused(ctx); err != nil {
				yield(nil, err)
				return
			}
			if e.finished(gen) {
				return
			}
			if err := limiter.Wait(ctx); err != nil {
				yield(nil, err)
				return
			}

			res, state, err := e.stepGeneration(gen)
			if err != nil {
				yield(nil, err)
				return
			}
			switch state {
			case runPaused:
				continue
			case runStopped:
				errnie.Debug("run stopped by reset")
				return
			}
			if !yield(res, nil) {
				return
			}
			if res.State.IsComplete {
				return
			}
		}
	}
}

// ExecuteAll drains Run, collecting every result until completion or the first error.
func (e *Engine) ExecuteAll(ctx context.Context) ([]*StepResult, error) {
	var results []*StepResult
	for res, err := range e.Run(ctx) {
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (e *Engine) beginRun() (uint64, float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ready(); err != nil {
		return 0, 0, err
	}
	if e.suspended {
		e.unpause()
	}
	if e.status == StatusInitialized && !e.paused {
		e.status = StatusRunning
	}
	return e.generation, e.config.AnimationSpeed, nil
}

// endRun parks an unfinished run: paused when gates ran, initialized when none did.
func (e *Engine) endRun(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation || e.complete || e.paused || e.status != StatusRunning {
		return
	}
	if e.index == 0 {
		e.status = StatusInitialized
		return
	}

	e.paused = true
	e.suspended = true
	e.resume = make(chan struct{})
	e.status = StatusPaused
	errnie.Debug("run suspended at gate %d", e.index)
}

func (e *Engine) finished(gen uint64) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return gen != e.generation ||
		e.complete ||
		e.status == StatusFaulted ||
		e.index >= len(e.circuit)
}

func (e *Engine) waitWhilePaused(ctx context.Context) error {
	for {
		e.mu.RLock()
		paused, resume := e.paused, e.resume
		e.mu.RUnlock()

		if !paused {
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-resume:
		}
	}
}
