package qfragile

import (
	"errors"
	"fmt"
)

// Errors surfaced across the engine boundary. Everything except ErrEngineFault is
// recoverable by the caller; a fault stops the run until Reset is called.
var (
	ErrInvalidImageFormat   = errors.New("invalid image format")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrInvalidCircuit       = errors.New("invalid circuit")
	ErrEngineNotReady       = errors.New("engine not ready")
	ErrEngineFault          = errors.New("engine fault")
)

// ErrEngineBusy is returned when a step or run would overlap one already in flight.
var ErrEngineBusy = fmt.Errorf("%w: step already in progress", ErrEngineNotReady)
