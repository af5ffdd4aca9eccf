package printer_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/orq/internal/model"
	"github.com/slok/orq/internal/printer"
)

func runFixture() model.Run {
	createdAt := time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)
	finishedAt := createdAt.Add(12 * time.Second)
	return model.Run{
		ID:         "01234567890ABCDEFGHIJKLMNOP",
		TaskName:   "line_crossing",
		Status:     model.RunStatusSucceeded,
		CreatedAt:  createdAt,
		FinishedAt: &finishedAt,
		Subtasks: []model.SubtaskResult{{
			Name:   "move_right",
			Status: model.SubtaskStatusCompleted,
			Attempts: []model.Attempt{{
				SubtaskName: "move_right",
				Index:       1,
				Action:      model.ActionMoveRight,
				Reason:      "target is to the right",
				Params:      model.Params{Target: "right", Speed: 0.35, ChunkDuration: 350 * time.Millisecond},
				Verifier: model.VerifierResult{
					Complete:   true,
					Status:     model.VerifierStatusSuccess,
					Confidence: 0.92,
					Rationale:  "crossed",
				},
			}},
		}},
	}
}

func TestTablePrinterPrintRun(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintRun(runFixture())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "ID:        01234567890ABCDEFGHIJKLMNOP")
	assert.Contains(t, out, "Task:      line_crossing")
	assert.Contains(t, out, "Status:    succeeded")
	assert.Contains(t, out, "Subtask move_right: completed")
	assert.Contains(t, out, "move_right")
	assert.Contains(t, out, "success")
}

func TestTablePrinterPrintRunList(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintRunList([]model.Run{runFixture()})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "TASK")
	assert.Contains(t, out, "line_crossing")
}

func TestTablePrinterPrintRunListEmpty(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintRunList(nil)
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestJSONPrinterPrintRun(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	err := p.PrintRun(runFixture())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"id": "01234567890ABCDEFGHIJKLMNOP"`)
	assert.Contains(t, out, `"task_name": "line_crossing"`)
	assert.Contains(t, out, `"status": "succeeded"`)
	assert.Contains(t, out, `"verdict_status": "success"`)
	assert.Contains(t, out, `"chunk_duration_s": 0.35`)
}

func TestJSONPrinterPrintRunList(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	err := p.PrintRunList([]model.Run{runFixture()})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"task_name": "line_crossing"`)
}

func TestPrintMessage(t *testing.T) {
	var tableBuf, jsonBuf bytes.Buffer

	require.NoError(t, printer.NewTablePrinter(&tableBuf).PrintMessage("removed"))
	require.NoError(t, printer.NewJSONPrinter(&jsonBuf).PrintMessage("removed"))

	assert.Equal(t, "removed\n", tableBuf.String())
	assert.Contains(t, jsonBuf.String(), `"message": "removed"`)
}
