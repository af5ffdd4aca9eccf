// Package openai implements an agent.Agent backed by an OpenAI compatible
// chat completions API.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/slok/orq/internal/agent"
	"github.com/slok/orq/internal/log"
	"github.com/slok/orq/internal/model"
	"github.com/slok/orq/internal/openai"
)

// Only the last attempts are relevant context for the next decision.
const historyWindow = 4

const systemPrompt = "You are a ReAct-style orchestration agent for a robot arm. " +
	"You must choose exactly one tool action from: move_left, move_right. " +
	"Pick the action that best advances the current subtask instruction. " +
	"Return JSON only with keys: action, reason."

// AgentConfig is the configuration for the OpenAI backed agent.
type AgentConfig struct {
	Client *openai.Client
	Logger log.Logger
}

func (c *AgentConfig) defaults() error {
	if c.Client == nil {
		return fmt.Errorf("openai client is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "agent.OpenAI"})
	return nil
}

// Agent asks an LLM to choose the next motion action.
type Agent struct {
	client *openai.Client
	logger log.Logger
}

// NewAgent creates a new OpenAI backed agent.
func NewAgent(cfg AgentConfig) (*Agent, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Agent{
		client: cfg.Client,
		logger: cfg.Logger,
	}, nil
}

// ChooseAction asks the model for the next action and validates it against
// the fixed vocabulary. A response outside the vocabulary is an error.
func (a *Agent) ChooseAction(ctx context.Context, req agent.ActionRequest) (agent.Decision, error) {
	userPrompt, err := json.Marshal(a.promptPayload(req))
	if err != nil {
		return agent.Decision{}, fmt.Errorf("could not marshal prompt: %w", err)
	}

	content, err := a.client.Complete(ctx, openai.CompletionRequest{
		Messages: []openai.Message{
			openai.TextMessage("system", systemPrompt),
			openai.TextMessage("user", string(userPrompt)),
		},
		MaxTokens:  120,
		JSONOutput: true,
	})
	if err != nil {
		return agent.Decision{}, fmt.Errorf("agent completion failed: %w", err)
	}

	decision, err := parseDecision(content)
	if err != nil {
		return agent.Decision{}, fmt.Errorf("invalid agent response: %w", err)
	}

	a.logger.Debugf("Agent chose %s: %s", decision.Action, decision.Reason)

	return decision, nil
}

func (a *Agent) promptPayload(req agent.ActionRequest) map[string]any {
	history := req.History
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	historyPayload := make([]map[string]any, 0, len(history))
	for _, att := range history {
		historyPayload = append(historyPayload, map[string]any{
			"attempt_index":      att.Index,
			"last_action":        att.Action,
			"verifier_status":    att.Verifier.Status,
			"verifier_rationale": att.Verifier.Rationale,
		})
	}

	return map[string]any{
		"subtask": map[string]any{
			"name":             req.Subtask.Name,
			"instruction":      req.Subtask.Instruction,
			"success_criteria": req.Subtask.SuccessCriteria,
			"target":           req.Params.Target,
			"speed":            req.Params.Speed,
			"chunk_duration_s": req.Params.ChunkDuration.Seconds(),
		},
		"attempt_index":   req.AttemptIndex,
		"recent_history":  historyPayload,
		"allowed_actions": []model.Action{model.ActionMoveLeft, model.ActionMoveRight},
	}
}

func parseDecision(content string) (agent.Decision, error) {
	var raw struct {
		Action string `json:"action"`
		Reason string `json:"reason"`
	}

	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		// LLMs sometimes emit almost-JSON, try repairing before giving up.
		repaired, repairErr := jsonrepair.JSONRepair(content)
		if repairErr != nil {
			return agent.Decision{}, fmt.Errorf("could not unmarshal decision: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &raw); err != nil {
			return agent.Decision{}, fmt.Errorf("could not unmarshal repaired decision: %w", err)
		}
	}

	action, err := model.ParseAction(strings.ToLower(strings.TrimSpace(raw.Action)))
	if err != nil {
		return agent.Decision{}, err
	}

	reason := strings.TrimSpace(raw.Reason)
	if reason == "" {
		reason = "no reason provided"
	}

	return agent.Decision{Action: action, Reason: reason}, nil
}
