package runsshow_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/orq/internal/app/runsshow"
	"github.com/slok/orq/internal/model"
	"github.com/slok/orq/internal/storage/storagemock"
)

type artifactReaderMock struct {
	mock.Mock
}

func (m *artifactReaderMock) ReadAttempts(ctx context.Context, runID string) ([]model.Attempt, error) {
	args := m.Called(ctx, runID)
	atts, _ := args.Get(0).([]model.Attempt)
	return atts, args.Error(1)
}

func TestServiceRun(t *testing.T) {
	run := &model.Run{ID: "run-1", TaskName: "line_crossing", Status: model.RunStatusSucceeded}

	tests := map[string]struct {
		mock   func(repo *storagemock.MockRunRepository)
		req    runsshow.Request
		expRun *model.Run
		expErr error
	}{
		"an existing run should be returned": {
			mock: func(repo *storagemock.MockRunRepository) {
				repo.On("GetRun", mock.Anything, "run-1").Return(run, nil)
			},
			req:    runsshow.Request{RunID: "run-1"},
			expRun: run,
		},

		"a missing run should return not found": {
			mock: func(repo *storagemock.MockRunRepository) {
				repo.On("GetRun", mock.Anything, "run-x").Return(nil, fmt.Errorf("run run-x: %w", model.ErrNotFound))
			},
			req:    runsshow.Request{RunID: "run-x"},
			expErr: model.ErrNotFound,
		},

		"an empty run ID should be rejected": {
			mock:   func(repo *storagemock.MockRunRepository) {},
			req:    runsshow.Request{},
			expErr: model.ErrNotValid,
		},

		"replaying from artifacts without a reader should be rejected": {
			mock:   func(repo *storagemock.MockRunRepository) {},
			req:    runsshow.Request{RunID: "run-1", FromArtifacts: true},
			expErr: model.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo := &storagemock.MockRunRepository{}
			test.mock(repo)

			svc, err := runsshow.NewService(runsshow.ServiceConfig{Repository: repo})
			require.NoError(t, err)

			got, err := svc.Run(context.Background(), test.req)

			if test.expErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, test.expErr))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.expRun, got)
		})
	}
}

func TestServiceRunFromArtifacts(t *testing.T) {
	attempts := []model.Attempt{
		{SubtaskName: "move_right", Index: 1, Verifier: model.VerifierResult{Status: model.VerifierStatusFail}},
		{SubtaskName: "move_right", Index: 2, Verifier: model.VerifierResult{Status: model.VerifierStatusSuccess, Complete: true}},
		{SubtaskName: "move_left", Index: 1, Verifier: model.VerifierResult{Status: model.VerifierStatusSuccess, Complete: true}},
	}

	tests := map[string]struct {
		mock   func(repo *storagemock.MockRunRepository, artifacts *artifactReaderMock)
		req    runsshow.Request
		expRun *model.Run
		expErr error
	}{
		"attempts should be regrouped under the indexed subtask results": {
			mock: func(repo *storagemock.MockRunRepository, artifacts *artifactReaderMock) {
				artifacts.On("ReadAttempts", mock.Anything, "run-1").Return(attempts, nil)
				repo.On("GetRun", mock.Anything, "run-1").Return(&model.Run{
					ID:       "run-1",
					TaskName: "line_crossing",
					Status:   model.RunStatusSucceeded,
					Subtasks: []model.SubtaskResult{
						{Name: "move_right", Status: model.SubtaskStatusCompleted},
						{Name: "move_left", Status: model.SubtaskStatusCompleted},
					},
				}, nil)
			},
			req: runsshow.Request{RunID: "run-1", FromArtifacts: true},
			expRun: &model.Run{
				ID:       "run-1",
				TaskName: "line_crossing",
				Status:   model.RunStatusSucceeded,
				Subtasks: []model.SubtaskResult{
					{Name: "move_right", Status: model.SubtaskStatusCompleted, Attempts: attempts[:2]},
					{Name: "move_left", Status: model.SubtaskStatusCompleted, Attempts: attempts[2:]},
				},
			},
		},

		"a run missing from the index should still replay its attempts": {
			mock: func(repo *storagemock.MockRunRepository, artifacts *artifactReaderMock) {
				artifacts.On("ReadAttempts", mock.Anything, "run-1").Return(attempts[:1], nil)
				repo.On("GetRun", mock.Anything, "run-1").Return(nil, fmt.Errorf("run run-1: %w", model.ErrNotFound))
			},
			req: runsshow.Request{RunID: "run-1", FromArtifacts: true},
			expRun: &model.Run{
				ID:     "run-1",
				Status: model.RunStatusRunning,
				Subtasks: []model.SubtaskResult{
					{Name: "move_right", Attempts: attempts[:1]},
				},
			},
		},

		"missing artifacts should return not found": {
			mock: func(repo *storagemock.MockRunRepository, artifacts *artifactReaderMock) {
				artifacts.On("ReadAttempts", mock.Anything, "run-x").Return(nil, fmt.Errorf("run run-x log: %w", model.ErrNotFound))
			},
			req:    runsshow.Request{RunID: "run-x", FromArtifacts: true},
			expErr: model.ErrNotFound,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo := &storagemock.MockRunRepository{}
			artifacts := &artifactReaderMock{}
			test.mock(repo, artifacts)

			svc, err := runsshow.NewService(runsshow.ServiceConfig{Repository: repo, Artifacts: artifacts})
			require.NoError(t, err)

			got, err := svc.Run(context.Background(), test.req)

			if test.expErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, test.expErr))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.expRun, got)
			repo.AssertExpectations(t)
			artifacts.AssertExpectations(t)
		})
	}
}
