package runsrm_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/orq/internal/app/runsrm"
	"github.com/slok/orq/internal/model"
	"github.com/slok/orq/internal/storage/storagemock"
)

type artifactRemoverMock struct {
	mock.Mock
}

func (m *artifactRemoverMock) RemoveRun(ctx context.Context, runID string) error {
	return m.Called(ctx, runID).Error(0)
}

func TestServiceRun(t *testing.T) {
	run := &model.Run{ID: "run-1", TaskName: "line_crossing", Status: model.RunStatusFailed}

	tests := map[string]struct {
		mock      func(repo *storagemock.MockRunRepository, artifacts *artifactRemoverMock)
		req       runsrm.Request
		artifacts bool
		expErr    error
	}{
		"an existing run should be removed": {
			mock: func(repo *storagemock.MockRunRepository, artifacts *artifactRemoverMock) {
				repo.On("GetRun", mock.Anything, "run-1").Return(run, nil)
				repo.On("DeleteRun", mock.Anything, "run-1").Return(nil)
			},
			req: runsrm.Request{RunID: "run-1"},
		},

		"artifacts should be removed alongside the index entry": {
			mock: func(repo *storagemock.MockRunRepository, artifacts *artifactRemoverMock) {
				repo.On("GetRun", mock.Anything, "run-1").Return(run, nil)
				repo.On("DeleteRun", mock.Anything, "run-1").Return(nil)
				artifacts.On("RemoveRun", mock.Anything, "run-1").Return(nil)
			},
			req:       runsrm.Request{RunID: "run-1"},
			artifacts: true,
		},

		"an artifact removal failure should not fail the removal": {
			mock: func(repo *storagemock.MockRunRepository, artifacts *artifactRemoverMock) {
				repo.On("GetRun", mock.Anything, "run-1").Return(run, nil)
				repo.On("DeleteRun", mock.Anything, "run-1").Return(nil)
				artifacts.On("RemoveRun", mock.Anything, "run-1").Return(fmt.Errorf("boom"))
			},
			req:       runsrm.Request{RunID: "run-1"},
			artifacts: true,
		},

		"a missing run should return not found": {
			mock: func(repo *storagemock.MockRunRepository, artifacts *artifactRemoverMock) {
				repo.On("GetRun", mock.Anything, "run-x").Return(nil, fmt.Errorf("run run-x: %w", model.ErrNotFound))
			},
			req:    runsrm.Request{RunID: "run-x"},
			expErr: model.ErrNotFound,
		},

		"an empty run ID should be rejected": {
			mock:   func(repo *storagemock.MockRunRepository, artifacts *artifactRemoverMock) {},
			req:    runsrm.Request{},
			expErr: model.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo := &storagemock.MockRunRepository{}
			artifacts := &artifactRemoverMock{}
			test.mock(repo, artifacts)

			cfg := runsrm.ServiceConfig{Repository: repo}
			if test.artifacts {
				cfg.Artifacts = artifacts
			}

			svc, err := runsrm.NewService(cfg)
			require.NoError(t, err)

			got, err := svc.Run(context.Background(), test.req)

			if test.expErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, test.expErr))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, run, got)
			repo.AssertExpectations(t)
			artifacts.AssertExpectations(t)
		})
	}
}
