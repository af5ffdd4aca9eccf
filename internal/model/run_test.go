package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/orq/internal/model"
)

func TestRunAttempts(t *testing.T) {
	run := model.Run{
		ID: "01JTESTRUN",
		Subtasks: []model.SubtaskResult{
			{
				Name:   "move_right",
				Status: model.SubtaskStatusCompleted,
				Attempts: []model.Attempt{
					{SubtaskName: "move_right", Index: 1},
					{SubtaskName: "move_right", Index: 2},
				},
			},
			{
				Name:   "move_left",
				Status: model.SubtaskStatusExhausted,
				Attempts: []model.Attempt{
					{SubtaskName: "move_left", Index: 1},
				},
			},
		},
	}

	attempts := run.Attempts()

	// Attempts keep subtask declaration order without interleaving.
	assert.Len(t, attempts, 3)
	assert.Equal(t, "move_right", attempts[0].SubtaskName)
	assert.Equal(t, 1, attempts[0].Index)
	assert.Equal(t, "move_right", attempts[1].SubtaskName)
	assert.Equal(t, 2, attempts[1].Index)
	assert.Equal(t, "move_left", attempts[2].SubtaskName)
	assert.Equal(t, 1, attempts[2].Index)
}

func TestCountByStatus(t *testing.T) {
	results := []model.SubtaskResult{
		{Status: model.SubtaskStatusCompleted},
		{Status: model.SubtaskStatusExhausted},
		{Status: model.SubtaskStatusCompleted},
	}

	completed, exhausted := model.CountByStatus(results)

	assert.Equal(t, 2, completed)
	assert.Equal(t, 1, exhausted)
}
