// Package openai implements a verifier.Verifier backed by an OpenAI
// compatible vision chat completions API.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"github.com/slok/orq/internal/log"
	"github.com/slok/orq/internal/model"
	"github.com/slok/orq/internal/openai"
	"github.com/slok/orq/internal/verifier"
)

const systemPrompt = "You are a strict visual verifier for robot arm subtasks. " +
	"You receive a BEFORE image and an AFTER image of the same scene, the subtask " +
	"instruction and its success criteria. Judge only from the images. " +
	"Return JSON only with keys: status (success|fail|uncertain), confidence (0..1), " +
	"failure_mode (string or null), adjustment (object with optional speed and " +
	"chunk_duration_s numbers, or null), rationale (string)."

// VerifierConfig is the configuration for the OpenAI backed verifier.
type VerifierConfig struct {
	Client *openai.Client
	Logger log.Logger
}

func (c *VerifierConfig) defaults() error {
	if c.Client == nil {
		return fmt.Errorf("openai client is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "verifier.OpenAI"})
	return nil
}

// Verifier asks a vision model whether the subtask success criteria are met.
type Verifier struct {
	client *openai.Client
	logger log.Logger
}

// NewVerifier creates a new OpenAI backed verifier.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Verifier{
		client: cfg.Client,
		logger: cfg.Logger,
	}, nil
}

// Check sends the before/after frames to the vision model and validates its
// structured judgement.
func (v *Verifier) Check(ctx context.Context, req verifier.CheckRequest) (model.VerifierResult, error) {
	if len(req.Before.PNG) == 0 || len(req.After.PNG) == 0 {
		return model.VerifierResult{
			Complete:    false,
			Status:      model.VerifierStatusUncertain,
			Confidence:  0.2,
			FailureMode: "missing_frames",
			Rationale:   "missing before/after frame for verification",
		}, nil
	}

	userPrompt, err := json.Marshal(map[string]any{
		"subtask": map[string]any{
			"name":             req.Subtask.Name,
			"instruction":      req.Subtask.Instruction,
			"success_criteria": req.Subtask.SuccessCriteria,
			"target":           req.Params.Target,
		},
	})
	if err != nil {
		return model.VerifierResult{}, fmt.Errorf("could not marshal prompt: %w", err)
	}

	content, err := v.client.Complete(ctx, openai.CompletionRequest{
		Messages: []openai.Message{
			openai.TextMessage("system", systemPrompt),
			{
				Role: "user",
				Content: []openai.Part{
					{Type: "text", Text: string(userPrompt)},
					{Type: "text", Text: "Image label: BEFORE."},
					{Type: "image_url", ImageURL: &openai.ImageURL{URL: frameDataURL(req.Before)}},
					{Type: "text", Text: "Image label: AFTER."},
					{Type: "image_url", ImageURL: &openai.ImageURL{URL: frameDataURL(req.After)}},
				},
			},
		},
		MaxTokens:  300,
		JSONOutput: true,
	})
	if err != nil {
		return model.VerifierResult{}, fmt.Errorf("verifier completion failed: %w", err)
	}

	result, err := parseResult(content)
	if err != nil {
		return model.VerifierResult{}, fmt.Errorf("invalid verifier response: %w", err)
	}

	v.logger.Debugf("Verifier judged %s (confidence=%.2f)", result.Status, result.Confidence)

	return result, nil
}

func frameDataURL(f model.Frame) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(f.PNG)
}

func parseResult(content string) (model.VerifierResult, error) {
	var raw struct {
		Status      string   `json:"status"`
		Confidence  *float64 `json:"confidence"`
		FailureMode string   `json:"failure_mode"`
		Adjustment  *struct {
			Speed          *float64 `json:"speed"`
			ChunkDurationS *float64 `json:"chunk_duration_s"`
		} `json:"adjustment"`
		Rationale string `json:"rationale"`
	}

	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(content)
		if repairErr != nil {
			return model.VerifierResult{}, fmt.Errorf("could not unmarshal result: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &raw); err != nil {
			return model.VerifierResult{}, fmt.Errorf("could not unmarshal repaired result: %w", err)
		}
	}

	var status model.VerifierStatus
	switch strings.ToLower(strings.TrimSpace(raw.Status)) {
	case "success":
		status = model.VerifierStatusSuccess
	case "fail":
		status = model.VerifierStatusFail
	case "uncertain":
		status = model.VerifierStatusUncertain
	default:
		return model.VerifierResult{}, fmt.Errorf("invalid status %q: %w", raw.Status, model.ErrNotValid)
	}

	if raw.Confidence == nil {
		return model.VerifierResult{}, fmt.Errorf("confidence is required: %w", model.ErrNotValid)
	}
	if *raw.Confidence < 0 || *raw.Confidence > 1 {
		return model.VerifierResult{}, fmt.Errorf("confidence out of range: %v: %w", *raw.Confidence, model.ErrNotValid)
	}

	var adj *model.Adjustment
	if raw.Adjustment != nil {
		adj = &model.Adjustment{Speed: raw.Adjustment.Speed}
		if raw.Adjustment.ChunkDurationS != nil {
			d := time.Duration(*raw.Adjustment.ChunkDurationS * float64(time.Second))
			adj.ChunkDuration = &d
		}
		if adj.Speed == nil && adj.ChunkDuration == nil {
			adj = nil
		}
	}

	return model.VerifierResult{
		Complete:    status == model.VerifierStatusSuccess,
		Status:      status,
		Confidence:  *raw.Confidence,
		FailureMode: raw.FailureMode,
		Adjustment:  adj,
		Rationale:   raw.Rationale,
	}, nil
}
