package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/orq/internal/model"
	"github.com/slok/orq/internal/storage/memory"
)

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	store, err := memory.NewStore(memory.StoreConfig{})
	require.NoError(t, err)
	return store
}

func runFixture(id string, createdAt time.Time) model.Run {
	return model.Run{
		ID:        id,
		TaskName:  "line_crossing",
		Status:    model.RunStatusRunning,
		CreatedAt: createdAt,
	}
}

func attemptFixture(subtask string, index int) model.Attempt {
	return model.Attempt{
		SubtaskName: subtask,
		Index:       index,
		Action:      model.ActionMoveRight,
		Params:      model.Params{Target: "right", Speed: 0.35, ChunkDuration: 350 * time.Millisecond},
		Verifier:    model.VerifierResult{Status: model.VerifierStatusFail, Confidence: 0.78},
	}
}

func TestStoreRunLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	now := time.Now().UTC()
	run := runFixture("run-1", now)

	require.NoError(t, store.Begin(ctx, run))
	require.NoError(t, store.AppendAttempt(ctx, run.ID, attemptFixture("move_right", 1)))

	finishedAt := now.Add(5 * time.Second)
	run.Status = model.RunStatusSucceeded
	run.FinishedAt = &finishedAt
	run.Subtasks = []model.SubtaskResult{{
		Name:     "move_right",
		Status:   model.SubtaskStatusCompleted,
		Attempts: []model.Attempt{attemptFixture("move_right", 1)},
	}}
	require.NoError(t, store.End(ctx, run))

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSucceeded, got.Status)
	require.Len(t, got.Subtasks, 1)
	assert.Len(t, got.Subtasks[0].Attempts, 1)
}

func TestStoreGetRunRebuildsUnfinishedRun(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	run := runFixture("run-1", time.Now().UTC())

	require.NoError(t, store.Begin(ctx, run))
	require.NoError(t, store.AppendAttempt(ctx, run.ID, attemptFixture("move_right", 1)))
	require.NoError(t, store.AppendAttempt(ctx, run.ID, attemptFixture("move_right", 2)))
	require.NoError(t, store.EndSubtask(ctx, run.ID, model.SubtaskResult{
		Name:   "move_right",
		Status: model.SubtaskStatusCompleted,
	}))
	require.NoError(t, store.AppendAttempt(ctx, run.ID, attemptFixture("move_left", 1)))

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusRunning, got.Status)
	require.Len(t, got.Subtasks, 2)
	assert.Equal(t, "move_right", got.Subtasks[0].Name)
	assert.Equal(t, model.SubtaskStatusCompleted, got.Subtasks[0].Status)
	assert.Len(t, got.Subtasks[0].Attempts, 2)
	assert.Equal(t, "move_left", got.Subtasks[1].Name)
	assert.Len(t, got.Subtasks[1].Attempts, 1)
}

func TestStoreListRunsOrder(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	now := time.Now().UTC()

	require.NoError(t, store.Begin(ctx, runFixture("run-1", now)))
	require.NoError(t, store.Begin(ctx, runFixture("run-2", now.Add(1*time.Minute))))

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)

	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, "run-1", runs[1].ID)
}

func TestStoreErrors(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	run := runFixture("run-1", time.Now().UTC())

	require.NoError(t, store.Begin(ctx, run))

	err := store.Begin(ctx, run)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrAlreadyExists))

	err = store.AppendAttempt(ctx, "unknown", attemptFixture("move_right", 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNotFound))

	err = store.End(ctx, runFixture("unknown", time.Now().UTC()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNotFound))

	require.NoError(t, store.DeleteRun(ctx, run.ID))
	err = store.DeleteRun(ctx, run.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNotFound))

	_, err = store.GetRun(ctx, run.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}
