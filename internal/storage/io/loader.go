package io

import (
	"context"
	"fmt"
	"io/fs"
	"math"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/slok/orq/internal/model"
)

// Agent implementation selectors.
const (
	AgentTypeRuleBased = "rule_based"
	AgentTypeOpenAI    = "openai"
)

// Verifier implementation selectors.
const (
	VerifierTypeStub   = "stub"
	VerifierTypeOpenAI = "openai"
)

// RunSettings is everything in a task file besides the task itself: the
// environment shape and which collaborator implementations to wire in.
type RunSettings struct {
	HaltOnExhaustion bool
	Env              EnvSettings
	Agent            AgentSettings
	Verifier         VerifierSettings
	Collaborators    CollaboratorSettings
}

// EnvSettings configures the simulated environment.
type EnvSettings struct {
	ControlHz int
	ArmLimit  float64
}

// AgentSettings selects and configures the decision agent.
type AgentSettings struct {
	Type      string
	Model     string
	BaseURL   string
	APIKeyEnv string
}

// VerifierSettings selects and configures the completion verifier.
type VerifierSettings struct {
	Type             string
	CrossingMarginPx int
	Model            string
	BaseURL          string
	APIKeyEnv        string
}

// CollaboratorSettings bounds every agent and verifier call.
type CollaboratorSettings struct {
	MaxRetries int
	Timeout    time.Duration
}

// TaskYAMLRepository loads task configuration from YAML files.
type TaskYAMLRepository struct {
	fs fs.FS
}

// NewTaskYAMLRepository creates a new YAML task repository.
func NewTaskYAMLRepository(filesystem fs.FS) *TaskYAMLRepository {
	return &TaskYAMLRepository{fs: filesystem}
}

// GetTask loads a task file and returns the validated task plus its run
// settings.
func (r *TaskYAMLRepository) GetTask(ctx context.Context, path string) (model.Task, RunSettings, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return model.Task{}, RunSettings{}, fmt.Errorf("reading task file: %w", err)
	}

	if ctx.Err() != nil {
		return model.Task{}, RunSettings{}, ctx.Err()
	}

	var cfg taskFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return model.Task{}, RunSettings{}, fmt.Errorf("parsing YAML: %w", err)
	}
	cfg.defaults()

	if err := cfg.validate(); err != nil {
		return model.Task{}, RunSettings{}, fmt.Errorf("invalid configuration: %w", err)
	}

	task := cfg.Task.toModel()
	if err := task.Validate(); err != nil {
		return model.Task{}, RunSettings{}, fmt.Errorf("invalid task: %w", err)
	}

	return task, cfg.toSettings(), nil
}

// taskFile represents the YAML structure of a task file.
type taskFile struct {
	Task             taskConfig          `yaml:"task"`
	HaltOnExhaustion *bool               `yaml:"halt_on_exhaustion"`
	Env              envConfig           `yaml:"env"`
	Agent            agentConfig         `yaml:"agent"`
	Verifier         verifierConfig      `yaml:"verifier"`
	Collaborators    collaboratorsConfig `yaml:"collaborators"`
}

type taskConfig struct {
	Name     string          `yaml:"name"`
	Subtasks []subtaskConfig `yaml:"subtasks"`
}

type subtaskConfig struct {
	Name            string       `yaml:"name"`
	Instruction     string       `yaml:"instruction"`
	SuccessCriteria string       `yaml:"success_criteria"`
	MaxAttempts     int          `yaml:"max_attempts"`
	Params          paramsConfig `yaml:"params"`
}

type paramsConfig struct {
	Target         string  `yaml:"target"`
	Speed          float64 `yaml:"speed"`
	ChunkDurationS float64 `yaml:"chunk_duration_s"`
}

type envConfig struct {
	ControlHz int     `yaml:"control_hz"`
	ArmLimit  float64 `yaml:"arm_limit"`
}

type agentConfig struct {
	Type      string `yaml:"type"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

type verifierConfig struct {
	Type             string `yaml:"type"`
	CrossingMarginPx int    `yaml:"crossing_margin_px"`
	Model            string `yaml:"model"`
	BaseURL          string `yaml:"base_url"`
	APIKeyEnv        string `yaml:"api_key_env"`
}

type collaboratorsConfig struct {
	MaxRetries *int    `yaml:"max_retries"`
	TimeoutS   float64 `yaml:"timeout_s"`
}

func (c *taskFile) defaults() {
	for i := range c.Task.Subtasks {
		st := &c.Task.Subtasks[i]
		if st.MaxAttempts == 0 {
			st.MaxAttempts = 3
		}
		if st.Params.Speed == 0 {
			st.Params.Speed = 0.35
		}
		if st.Params.ChunkDurationS == 0 {
			st.Params.ChunkDurationS = 0.35
		}
	}

	if c.Env.ControlHz == 0 {
		c.Env.ControlHz = 50
	}
	if c.Env.ArmLimit == 0 {
		c.Env.ArmLimit = 1.0
	}

	if c.Agent.Type == "" {
		c.Agent.Type = AgentTypeRuleBased
	}
	if c.Verifier.Type == "" {
		c.Verifier.Type = VerifierTypeStub
	}
	if c.Verifier.CrossingMarginPx == 0 {
		c.Verifier.CrossingMarginPx = 4
	}
	if c.Agent.APIKeyEnv == "" {
		c.Agent.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Verifier.APIKeyEnv == "" {
		c.Verifier.APIKeyEnv = "OPENAI_API_KEY"
	}

	if c.Collaborators.MaxRetries == nil {
		retries := 2
		c.Collaborators.MaxRetries = &retries
	}
	if c.Collaborators.TimeoutS == 0 {
		c.Collaborators.TimeoutS = 30
	}
}

func (c taskFile) validate() error {
	switch c.Agent.Type {
	case AgentTypeRuleBased:
	case AgentTypeOpenAI:
		if c.Agent.Model == "" {
			return fmt.Errorf("agent model is required for the openai agent")
		}
	default:
		return fmt.Errorf("unknown agent type: %s", c.Agent.Type)
	}

	switch c.Verifier.Type {
	case VerifierTypeStub:
	case VerifierTypeOpenAI:
		if c.Verifier.Model == "" {
			return fmt.Errorf("verifier model is required for the openai verifier")
		}
	default:
		return fmt.Errorf("unknown verifier type: %s", c.Verifier.Type)
	}

	if *c.Collaborators.MaxRetries < 0 {
		return fmt.Errorf("collaborators max_retries must not be negative, got: %d", *c.Collaborators.MaxRetries)
	}
	if c.Collaborators.TimeoutS <= 0 {
		return fmt.Errorf("collaborators timeout_s must be positive, got: %v", c.Collaborators.TimeoutS)
	}
	if c.Env.ControlHz <= 0 {
		return fmt.Errorf("env control_hz must be positive, got: %d", c.Env.ControlHz)
	}
	if c.Env.ArmLimit <= 0 {
		return fmt.Errorf("env arm_limit must be positive, got: %v", c.Env.ArmLimit)
	}

	return nil
}

func (c taskConfig) toModel() model.Task {
	task := model.Task{Name: c.Name}
	for _, st := range c.Subtasks {
		task.Subtasks = append(task.Subtasks, model.Subtask{
			Name:            st.Name,
			Instruction:     st.Instruction,
			SuccessCriteria: st.SuccessCriteria,
			MaxAttempts:     st.MaxAttempts,
			Params: model.Params{
				Target:        st.Params.Target,
				Speed:         st.Params.Speed,
				ChunkDuration: secondsToDuration(st.Params.ChunkDurationS),
			},
		})
	}
	return task
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

func (c taskFile) toSettings() RunSettings {
	halt := true
	if c.HaltOnExhaustion != nil {
		halt = *c.HaltOnExhaustion
	}

	return RunSettings{
		HaltOnExhaustion: halt,
		Env: EnvSettings{
			ControlHz: c.Env.ControlHz,
			ArmLimit:  c.Env.ArmLimit,
		},
		Agent: AgentSettings{
			Type:      c.Agent.Type,
			Model:     c.Agent.Model,
			BaseURL:   c.Agent.BaseURL,
			APIKeyEnv: c.Agent.APIKeyEnv,
		},
		Verifier: VerifierSettings{
			Type:             c.Verifier.Type,
			CrossingMarginPx: c.Verifier.CrossingMarginPx,
			Model:            c.Verifier.Model,
			BaseURL:          c.Verifier.BaseURL,
			APIKeyEnv:        c.Verifier.APIKeyEnv,
		},
		Collaborators: CollaboratorSettings{
			MaxRetries: *c.Collaborators.MaxRetries,
			Timeout:    secondsToDuration(c.Collaborators.TimeoutS),
		},
	}
}
