// Package agent contains the decision agent capability: the collaborator that
// chooses one motion action per attempt.
package agent

import (
	"context"

	"github.com/slok/orq/internal/model"
)

// Decision is the agent action choice for one attempt.
type Decision struct {
	Action model.Action
	Reason string
}

// ActionRequest is the input of a decision agent call.
type ActionRequest struct {
	Subtask      model.Subtask
	AttemptIndex int // 1-based index of the attempt being decided.
	Params       model.Params
	History      []model.Attempt // Sealed attempts of the current subtask, oldest first.
}

// Agent chooses exactly one action from the fixed vocabulary. Implementations
// are stateless per call and are consulted once per attempt.
type Agent interface {
	ChooseAction(ctx context.Context, req ActionRequest) (Decision, error)
}
