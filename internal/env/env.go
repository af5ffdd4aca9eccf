package env

import (
	"context"
	"time"

	"github.com/slok/orq/internal/model"
)

// Observation is a snapshot of the environment with a freshly captured frame.
type Observation struct {
	Frame   model.Frame
	ArmPos  float64
	SimTime time.Duration
}

// Environment is the boundary to the physical or simulated world. It is
// exclusively owned by a single attempt at a time, implementations don't need
// to be safe for concurrent use.
type Environment interface {
	// Reset puts the environment in its initial state.
	Reset(ctx context.Context) (Observation, error)
	// Observe captures a frame of the current state without mutating it.
	Observe(ctx context.Context) (Observation, error)
	// Step advances the environment one control tick with the given arm delta.
	Step(ctx context.Context, dx float64) (Observation, error)
	// SafetyOK reports whether the arm is within safe bounds.
	SafetyOK() bool
	// Close releases the environment resources.
	Close() error
}
