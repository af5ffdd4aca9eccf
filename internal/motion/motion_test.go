package motion_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/orq/internal/env"
	"github.com/slok/orq/internal/env/envmock"
	"github.com/slok/orq/internal/model"
	"github.com/slok/orq/internal/motion"
)

func TestNewChunkExecutor(t *testing.T) {
	tests := map[string]struct {
		config motion.ChunkExecutorConfig
		expErr bool
	}{
		"valid config should create executor": {
			config: motion.ChunkExecutorConfig{Environment: &envmock.MockEnvironment{}},
		},
		"missing environment should fail": {
			config: motion.ChunkExecutorConfig{},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ex, err := motion.NewChunkExecutor(test.config)

			if test.expErr {
				require.Error(t, err)
				require.Nil(t, ex)
			} else {
				require.NoError(t, err)
				require.NotNil(t, ex)
			}
		})
	}
}

func TestChunkExecutorExecute(t *testing.T) {
	tests := map[string]struct {
		mockEnv   func(m *envmock.MockEnvironment)
		action    model.Action
		params    model.Params
		expReport model.ExecutionReport
		expErr    bool
	}{
		"a full right chunk should step the env for the whole duration": {
			mockEnv: func(m *envmock.MockEnvironment) {
				m.On("Step", mock.Anything, 0.5).Times(10).Return(env.Observation{}, nil)
				m.On("SafetyOK").Times(10).Return(true)
			},
			action: model.ActionMoveRight,
			params: model.Params{Target: "right", Speed: 0.5, ChunkDuration: 200 * time.Millisecond},
			expReport: model.ExecutionReport{
				Steps:            10,
				TerminatedReason: motion.TerminatedChunkComplete,
				CommandedDX:      0.5,
			},
		},
		"a left action should command a negative delta": {
			mockEnv: func(m *envmock.MockEnvironment) {
				m.On("Step", mock.Anything, -0.35).Times(5).Return(env.Observation{}, nil)
				m.On("SafetyOK").Times(5).Return(true)
			},
			action: model.ActionMoveLeft,
			params: model.Params{Target: "left", Speed: 0.35, ChunkDuration: 100 * time.Millisecond},
			expReport: model.ExecutionReport{
				Steps:            5,
				TerminatedReason: motion.TerminatedChunkComplete,
				CommandedDX:      -0.35,
			},
		},
		"a tripped safety check should stop the chunk early": {
			mockEnv: func(m *envmock.MockEnvironment) {
				m.On("Step", mock.Anything, 1.2).Times(3).Return(env.Observation{}, nil)
				m.On("SafetyOK").Times(2).Return(true)
				m.On("SafetyOK").Once().Return(false)
			},
			action: model.ActionMoveRight,
			params: model.Params{Target: "right", Speed: 1.2, ChunkDuration: 200 * time.Millisecond},
			expReport: model.ExecutionReport{
				Steps:            3,
				TerminatedReason: motion.TerminatedSafetyStop,
				CommandedDX:      1.2,
			},
		},
		"a speed above the bound should be clamped": {
			mockEnv: func(m *envmock.MockEnvironment) {
				m.On("Step", mock.Anything, model.MaxSpeed).Times(5).Return(env.Observation{}, nil)
				m.On("SafetyOK").Times(5).Return(true)
			},
			action: model.ActionMoveRight,
			params: model.Params{Target: "right", Speed: 7.5, ChunkDuration: 100 * time.Millisecond},
			expReport: model.ExecutionReport{
				Steps:            5,
				TerminatedReason: motion.TerminatedChunkComplete,
				CommandedDX:      model.MaxSpeed,
			},
		},
		"an env step error should stop and return the error": {
			mockEnv: func(m *envmock.MockEnvironment) {
				m.On("Step", mock.Anything, 0.5).Once().Return(env.Observation{}, fmt.Errorf("boom"))
			},
			action: model.ActionMoveRight,
			params: model.Params{Target: "right", Speed: 0.5, ChunkDuration: 200 * time.Millisecond},
			expErr: true,
		},
		"an out of vocabulary action should fail without stepping": {
			mockEnv: func(m *envmock.MockEnvironment) {},
			action:  model.Action("move_up"),
			params:  model.Params{Target: "right", Speed: 0.5, ChunkDuration: 200 * time.Millisecond},
			expErr:  true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			menv := &envmock.MockEnvironment{}
			test.mockEnv(menv)

			ex, err := motion.NewChunkExecutor(motion.ChunkExecutorConfig{
				Environment: menv,
				ControlHz:   50,
			})
			require.NoError(t, err)

			report, err := ex.Execute(context.Background(), test.action, test.params)

			if test.expErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, test.expReport, report)
			}
			menv.AssertExpectations(t)
		})
	}
}
