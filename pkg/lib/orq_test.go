package lib_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/orq/pkg/lib"
)

// newTestClient creates a client with temp paths for test isolation.
func newTestClient(t *testing.T) *lib.Client {
	t.Helper()

	ctx := context.Background()

	client, err := lib.New(ctx, lib.Config{
		DBPath:  filepath.Join(t.TempDir(), "test.db"),
		DataDir: t.TempDir(),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

func testTask(maxAttempts int) lib.Task {
	return lib.Task{
		Name: "cross-the-line",
		Subtasks: []lib.Subtask{
			{
				Name:            "reach-right",
				Instruction:     "Move the arm marker past the center line to the right.",
				SuccessCriteria: "The marker is visibly right of the center line.",
				Params:          lib.Params{Target: "right", Speed: 0.5, ChunkDuration: 400 * time.Millisecond},
				MaxAttempts:     maxAttempts,
			},
		},
	}
}

func TestRunTask(t *testing.T) {
	tests := map[string]struct {
		task      lib.Task
		opts      *lib.RunTaskOpts
		expErr    bool
		expIs     error
		expStatus lib.RunStatus
		check     func(t *testing.T, run *lib.Run)
	}{
		"A valid task should run to completion in the simulation.": {
			task:      testTask(6),
			expStatus: lib.RunStatusSucceeded,
			check: func(t *testing.T, run *lib.Run) {
				require.Len(t, run.Subtasks, 1)
				st := run.Subtasks[0]
				assert.Equal(t, lib.SubtaskStatusCompleted, st.Status)
				require.NotEmpty(t, st.Attempts)

				last := st.Attempts[len(st.Attempts)-1]
				assert.True(t, last.Verifier.Complete)
				assert.Equal(t, lib.VerifierStatusSuccess, last.Verifier.Status)
				assert.NotEmpty(t, last.BeforeFrameRef)
				assert.NotEmpty(t, last.AfterFrameRef)
			},
		},

		"A task that cannot make progress should exhaust its attempt budget.": {
			task: lib.Task{
				Name: "crawl",
				Subtasks: []lib.Subtask{
					{
						Name:            "reach-right",
						Instruction:     "Move the arm marker past the center line to the right.",
						SuccessCriteria: "The marker is visibly right of the center line.",
						Params:          lib.Params{Target: "right", Speed: 0.05, ChunkDuration: 100 * time.Millisecond},
						MaxAttempts:     1,
					},
				},
			},
			expStatus: lib.RunStatusFailed,
			check: func(t *testing.T, run *lib.Run) {
				require.Len(t, run.Subtasks, 1)
				st := run.Subtasks[0]
				assert.Equal(t, lib.SubtaskStatusExhausted, st.Status)
				assert.Len(t, st.Attempts, 1)
			},
		},

		"An invalid task should fail with a not valid error.": {
			task:   lib.Task{Name: ""},
			expErr: true,
			expIs:  lib.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t)

			run, err := client.RunTask(context.Background(), test.task, test.opts)

			if test.expErr {
				require.Error(t, err)
				if test.expIs != nil {
					assert.ErrorIs(t, err, test.expIs)
				}
				return
			}

			require.NoError(t, err)
			require.NotNil(t, run)
			assert.NotEmpty(t, run.ID)
			assert.Equal(t, test.expStatus, run.Status)
			require.NotNil(t, run.FinishedAt)

			if test.check != nil {
				test.check(t, run)
			}
		})
	}
}

func TestRunTaskConcurrent(t *testing.T) {
	// One client, several runs at once: the shared stores must keep every
	// run's records and frames apart.
	ctx := context.Background()
	client := newTestClient(t)

	const workers = 8
	var wg sync.WaitGroup
	results := make([]*lib.Run, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = client.RunTask(ctx, testTask(6), nil)
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		assert.Equal(t, lib.RunStatusSucceeded, results[i].Status)
		assert.False(t, seen[results[i].ID])
		seen[results[i].ID] = true
	}

	runs, err := client.ListRuns(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, runs, workers)

	// Full histories stayed per-run.
	for id := range seen {
		full, err := client.GetRun(ctx, id)
		require.NoError(t, err)
		require.Len(t, full.Subtasks, 1)
		for _, att := range full.Subtasks[0].Attempts {
			assert.Contains(t, att.BeforeFrameRef, id)
			assert.Contains(t, att.AfterFrameRef, id)
		}
	}
}

func TestRunRecords(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	run, err := client.RunTask(ctx, testTask(6), nil)
	require.NoError(t, err)

	// Listed runs are shallow.
	runs, err := client.ListRuns(ctx, nil)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Empty(t, runs[0].Subtasks)

	// Status filter.
	failed := lib.RunStatusFailed
	runs, err = client.ListRuns(ctx, &lib.ListRunsOpts{Status: &failed})
	require.NoError(t, err)
	assert.Empty(t, runs)

	// Full run carries the attempt history.
	full, err := client.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, full.Subtasks, 1)
	assert.NotEmpty(t, full.Subtasks[0].Attempts)

	// Remove and check it is gone.
	err = client.RemoveRun(ctx, run.ID)
	require.NoError(t, err)

	_, err = client.GetRun(ctx, run.ID)
	assert.ErrorIs(t, err, lib.ErrNotFound)

	err = client.RemoveRun(ctx, run.ID)
	assert.ErrorIs(t, err, lib.ErrNotFound)
}
