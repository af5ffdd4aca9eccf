package rulebased

import (
	"context"
	"fmt"

	"github.com/slok/orq/internal/agent"
	"github.com/slok/orq/internal/log"
	"github.com/slok/orq/internal/model"
)

// AgentConfig is the configuration for the rule based agent.
type AgentConfig struct {
	Logger log.Logger
}

func (c *AgentConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "agent.RuleBased"})
	return nil
}

// Agent is a deterministic agent.Agent that picks the motion action from the
// subtask target param. Useful for simulation runs and as a fallback when no
// LLM backend is configured.
type Agent struct {
	logger log.Logger
}

// NewAgent creates a new rule based agent.
func NewAgent(cfg AgentConfig) (*Agent, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Agent{logger: cfg.Logger}, nil
}

// ChooseAction picks move_left or move_right from the attempt params target.
func (a *Agent) ChooseAction(ctx context.Context, req agent.ActionRequest) (agent.Decision, error) {
	if err := ctx.Err(); err != nil {
		return agent.Decision{}, err
	}

	if req.Params.Target == "left" {
		return agent.Decision{
			Action: model.ActionMoveLeft,
			Reason: "using target=left from subtask params",
		}, nil
	}

	return agent.Decision{
		Action: model.ActionMoveRight,
		Reason: "using target=right from subtask params",
	}, nil
}
