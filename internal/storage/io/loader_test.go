package io

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/orq/internal/model"
)

func TestTaskYAMLRepository_GetTask(t *testing.T) {
	validTask := `task:
  name: line_crossing
  subtasks:
    - name: move_right
      instruction: Move the arm to the right until it crosses the line.
      success_criteria: The green marker is to the right of the white line.
      max_attempts: 3
      params:
        target: right
        speed: 0.35
        chunk_duration_s: 0.35
`

	tests := map[string]struct {
		fs          fstest.MapFS
		path        string
		expTask     model.Task
		expSettings RunSettings
		expErr      bool
		errMsg      string
	}{
		"Valid task with defaults should load successfully": {
			fs: fstest.MapFS{
				"task.yaml": &fstest.MapFile{Data: []byte(validTask)},
			},
			path: "task.yaml",
			expTask: model.Task{
				Name: "line_crossing",
				Subtasks: []model.Subtask{{
					Name:            "move_right",
					Instruction:     "Move the arm to the right until it crosses the line.",
					SuccessCriteria: "The green marker is to the right of the white line.",
					MaxAttempts:     3,
					Params: model.Params{
						Target:        "right",
						Speed:         0.35,
						ChunkDuration: 350 * time.Millisecond,
					},
				}},
			},
			expSettings: RunSettings{
				HaltOnExhaustion: true,
				Env:              EnvSettings{ControlHz: 50, ArmLimit: 1.0},
				Agent:            AgentSettings{Type: AgentTypeRuleBased, APIKeyEnv: "OPENAI_API_KEY"},
				Verifier:         VerifierSettings{Type: VerifierTypeStub, CrossingMarginPx: 4, APIKeyEnv: "OPENAI_API_KEY"},
				Collaborators:    CollaboratorSettings{MaxRetries: 2, Timeout: 30 * time.Second},
			},
		},

		"Explicit settings should override the defaults": {
			fs: fstest.MapFS{
				"task.yaml": &fstest.MapFile{Data: []byte(validTask + `halt_on_exhaustion: false
env:
  control_hz: 25
  arm_limit: 0.8
agent:
  type: openai
  model: gpt-4o-mini
  base_url: http://localhost:8080/v1
  api_key_env: MY_KEY
verifier:
  type: openai
  model: gpt-4o-mini
collaborators:
  max_retries: 0
  timeout_s: 5
`)},
			},
			path: "task.yaml",
			expTask: model.Task{
				Name: "line_crossing",
				Subtasks: []model.Subtask{{
					Name:            "move_right",
					Instruction:     "Move the arm to the right until it crosses the line.",
					SuccessCriteria: "The green marker is to the right of the white line.",
					MaxAttempts:     3,
					Params: model.Params{
						Target:        "right",
						Speed:         0.35,
						ChunkDuration: 350 * time.Millisecond,
					},
				}},
			},
			expSettings: RunSettings{
				HaltOnExhaustion: false,
				Env:              EnvSettings{ControlHz: 25, ArmLimit: 0.8},
				Agent:            AgentSettings{Type: AgentTypeOpenAI, Model: "gpt-4o-mini", BaseURL: "http://localhost:8080/v1", APIKeyEnv: "MY_KEY"},
				Verifier:         VerifierSettings{Type: VerifierTypeOpenAI, CrossingMarginPx: 4, Model: "gpt-4o-mini", APIKeyEnv: "OPENAI_API_KEY"},
				Collaborators:    CollaboratorSettings{MaxRetries: 0, Timeout: 5 * time.Second},
			},
		},

		"Missing file should return error": {
			fs:     fstest.MapFS{},
			path:   "nonexistent.yaml",
			expErr: true,
			errMsg: "reading task file",
		},

		"Invalid YAML should return error": {
			fs: fstest.MapFS{
				"task.yaml": &fstest.MapFile{Data: []byte("task: [broken")},
			},
			path:   "task.yaml",
			expErr: true,
			errMsg: "parsing YAML",
		},

		"Unknown agent type should return error": {
			fs: fstest.MapFS{
				"task.yaml": &fstest.MapFile{Data: []byte(validTask + `agent:
  type: psychic
`)},
			},
			path:   "task.yaml",
			expErr: true,
			errMsg: "unknown agent type",
		},

		"OpenAI agent without model should return error": {
			fs: fstest.MapFS{
				"task.yaml": &fstest.MapFile{Data: []byte(validTask + `agent:
  type: openai
`)},
			},
			path:   "task.yaml",
			expErr: true,
			errMsg: "agent model is required",
		},

		"Task without subtasks should return error": {
			fs: fstest.MapFS{
				"task.yaml": &fstest.MapFile{Data: []byte(`task:
  name: empty
`)},
			},
			path:   "task.yaml",
			expErr: true,
			errMsg: "invalid task",
		},

		"Out of range speed should return error": {
			fs: fstest.MapFS{
				"task.yaml": &fstest.MapFile{Data: []byte(`task:
  name: line_crossing
  subtasks:
    - name: move_right
      instruction: Move right.
      success_criteria: Crossed.
      params:
        target: right
        speed: 9.9
`)},
			},
			path:   "task.yaml",
			expErr: true,
			errMsg: "invalid task",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo := NewTaskYAMLRepository(test.fs)
			task, settings, err := repo.GetTask(context.Background(), test.path)

			if test.expErr {
				require.Error(t, err)
				if test.errMsg != "" {
					assert.Contains(t, err.Error(), test.errMsg)
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.expTask, task)
			assert.Equal(t, test.expSettings, settings)
		})
	}
}
