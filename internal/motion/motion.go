package motion

import (
	"context"
	"fmt"
	"math"

	"github.com/slok/orq/internal/env"
	"github.com/slok/orq/internal/log"
	"github.com/slok/orq/internal/model"
)

// Termination reasons of a motion chunk execution.
const (
	TerminatedChunkComplete = "chunk_complete"
	TerminatedSafetyStop    = "safety_stop"
)

// Executor knows how to execute one motion action against the environment.
type Executor interface {
	Execute(ctx context.Context, action model.Action, params model.Params) (model.ExecutionReport, error)
}

// ChunkExecutorConfig is the configuration for the chunk executor.
type ChunkExecutorConfig struct {
	Environment env.Environment
	ControlHz   int
	Logger      log.Logger
}

func (c *ChunkExecutorConfig) defaults() error {
	if c.Environment == nil {
		return fmt.Errorf("environment is required")
	}
	if c.ControlHz <= 0 {
		c.ControlHz = 50
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "motion.ChunkExecutor"})
	return nil
}

// ChunkExecutor executes a motion action as a fixed-duration chunk of control
// steps at the configured control frequency, stopping early if the
// environment safety check trips.
type ChunkExecutor struct {
	env       env.Environment
	controlHz int
	logger    log.Logger
}

// NewChunkExecutor creates a new chunk executor.
func NewChunkExecutor(cfg ChunkExecutorConfig) (*ChunkExecutor, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &ChunkExecutor{
		env:       cfg.Environment,
		controlHz: cfg.ControlHz,
		logger:    cfg.Logger,
	}, nil
}

// Execute runs one motion chunk with the given action and params.
func (e *ChunkExecutor) Execute(ctx context.Context, action model.Action, params model.Params) (model.ExecutionReport, error) {
	var sign float64
	switch action {
	case model.ActionMoveRight:
		sign = 1
	case model.ActionMoveLeft:
		sign = -1
	default:
		return model.ExecutionReport{}, fmt.Errorf("unsupported action %q: %w", action, model.ErrNotValid)
	}

	dx := sign * math.Max(model.MinSpeed, math.Min(params.Speed, model.MaxSpeed))
	steps := int(math.Round(params.ChunkDuration.Seconds() * float64(e.controlHz)))
	if steps < 1 {
		steps = 1
	}

	report := model.ExecutionReport{
		TerminatedReason: TerminatedChunkComplete,
		CommandedDX:      dx,
	}

	for i := 0; i < steps; i++ {
		if _, err := e.env.Step(ctx, dx); err != nil {
			return report, fmt.Errorf("could not step environment: %w", err)
		}
		report.Steps++

		if !e.env.SafetyOK() {
			report.TerminatedReason = TerminatedSafetyStop
			e.logger.Warningf("Safety check tripped after %d steps, stopping motion chunk", report.Steps)
			break
		}
	}

	e.logger.Debugf("Executed %s chunk: %d steps, dx=%.3f, reason=%s", action, report.Steps, dx, report.TerminatedReason)

	return report, nil
}
