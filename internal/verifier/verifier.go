// Package verifier contains the completion verifier capability: the
// collaborator that judges from before/after frames whether a subtask goal
// was met.
package verifier

import (
	"context"

	"github.com/slok/orq/internal/model"
)

// CheckRequest is the input of a completion verifier call.
type CheckRequest struct {
	Before  model.Frame
	After   model.Frame
	Subtask model.Subtask
	Params  model.Params // Params used by the attempt being verified.
}

// Verifier judges subtask completion from a before/after frame pair. It is
// consulted once per attempt, after execution.
type Verifier interface {
	Check(ctx context.Context, req CheckRequest) (model.VerifierResult, error)
}
