package model

import (
	"fmt"
	"time"
)

// Action is a motion primitive from the fixed action vocabulary.
type Action string

const (
	// ActionMoveLeft moves the arm towards the left limit.
	ActionMoveLeft Action = "move_left"
	// ActionMoveRight moves the arm towards the right limit.
	ActionMoveRight Action = "move_right"
)

// ParseAction parses an action identifier, rejecting anything outside the
// fixed vocabulary.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionMoveLeft:
		return ActionMoveLeft, nil
	case ActionMoveRight:
		return ActionMoveRight, nil
	}
	return "", fmt.Errorf("unknown action %q: %w", s, ErrNotValid)
}

// Motion parameter bounds. Adjustments outside these ranges are clamped.
const (
	MinSpeed         = 0.05
	MaxSpeed         = 1.2
	MinChunkDuration = 100 * time.Millisecond
	MaxChunkDuration = 800 * time.Millisecond
)

// Params are the motion parameters used by one attempt.
type Params struct {
	Target        string        // Motion target side ("left" or "right").
	Speed         float64       // Normalized arm speed.
	ChunkDuration time.Duration // Duration of one motion chunk.
}

// Adjustment is a partial update to Params proposed by the verifier.
// Nil fields mean "keep the current value".
type Adjustment struct {
	Speed         *float64
	ChunkDuration *time.Duration
}

// Apply returns the params for the next attempt: adjusted values when the
// verifier supplied them, unchanged otherwise. Adjusted values are clamped to
// the motion bounds.
func (p Params) Apply(adj *Adjustment) Params {
	if adj == nil {
		return p
	}

	next := p
	if adj.Speed != nil {
		next.Speed = clampFloat(*adj.Speed, MinSpeed, MaxSpeed)
	}
	if adj.ChunkDuration != nil {
		next.ChunkDuration = clampDuration(*adj.ChunkDuration, MinChunkDuration, MaxChunkDuration)
	}

	return next
}

// Validate validates the params.
func (p Params) Validate() error {
	if p.Target != "left" && p.Target != "right" {
		return fmt.Errorf("target must be left or right, got %q: %w", p.Target, ErrNotValid)
	}
	if p.Speed < MinSpeed || p.Speed > MaxSpeed {
		return fmt.Errorf("speed must be in [%v, %v], got %v: %w", MinSpeed, MaxSpeed, p.Speed, ErrNotValid)
	}
	if p.ChunkDuration < MinChunkDuration || p.ChunkDuration > MaxChunkDuration {
		return fmt.Errorf("chunk duration must be in [%v, %v], got %v: %w", MinChunkDuration, MaxChunkDuration, p.ChunkDuration, ErrNotValid)
	}
	return nil
}

// Subtask is one instruction-scoped unit of work that requires verified
// completion before the task advances. Read-only during execution.
type Subtask struct {
	Name            string
	Instruction     string
	SuccessCriteria string
	Params          Params // Initial params for the first attempt.
	MaxAttempts     int
}

// Validate validates the subtask definition.
func (s Subtask) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("subtask name is required: %w", ErrNotValid)
	}
	if s.Instruction == "" {
		return fmt.Errorf("subtask %q instruction is required: %w", s.Name, ErrNotValid)
	}
	if s.SuccessCriteria == "" {
		return fmt.Errorf("subtask %q success criteria is required: %w", s.Name, ErrNotValid)
	}
	if s.MaxAttempts < 1 {
		return fmt.Errorf("subtask %q max attempts must be >= 1, got %d: %w", s.Name, s.MaxAttempts, ErrNotValid)
	}
	if err := s.Params.Validate(); err != nil {
		return fmt.Errorf("subtask %q params: %w", s.Name, err)
	}
	return nil
}

// Task is an ordered sequence of subtasks. The declared order is the
// execution order. Immutable once loaded.
type Task struct {
	Name     string
	Subtasks []Subtask
}

// Validate validates the task definition.
func (t Task) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("task name is required: %w", ErrNotValid)
	}
	if len(t.Subtasks) == 0 {
		return fmt.Errorf("task %q needs at least one subtask: %w", t.Name, ErrNotValid)
	}

	seen := map[string]struct{}{}
	for _, st := range t.Subtasks {
		if err := st.Validate(); err != nil {
			return err
		}
		if _, ok := seen[st.Name]; ok {
			return fmt.Errorf("duplicated subtask name %q: %w", st.Name, ErrNotValid)
		}
		seen[st.Name] = struct{}{}
	}

	return nil
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampDuration(v, min, max time.Duration) time.Duration {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
