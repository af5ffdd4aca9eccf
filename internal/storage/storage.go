package storage

import (
	"context"
	"fmt"

	"github.com/slok/orq/internal/model"
)

// RunLog is the append-only destination of run records. Every sealed attempt
// is appended incrementally, implementations must make each appended record
// durable before returning so a mid-run crash preserves all sealed attempts.
type RunLog interface {
	// Begin opens the log destination for one run.
	Begin(ctx context.Context, run model.Run) error
	// AppendAttempt appends one sealed attempt. Sealed attempts are never
	// revised afterwards.
	AppendAttempt(ctx context.Context, runID string, attempt model.Attempt) error
	// EndSubtask records the terminal outcome of one subtask as soon as it
	// is known, without waiting for the run to end.
	EndSubtask(ctx context.Context, runID string, result model.SubtaskResult) error
	// End records the final run outcome and closes the run destination.
	End(ctx context.Context, run model.Run) error
}

// FrameStore persists captured frame artifacts and returns a reference that
// can be stored in attempt records. Frames are scoped by run ID so concurrent
// runs never mix artifacts.
type FrameStore interface {
	SaveFrame(ctx context.Context, runID, subtaskName string, attemptIndex int, slot model.FrameSlot, frame model.Frame) (ref string, err error)
}

// RunRepository is the read side of persisted runs.
type RunRepository interface {
	// ListRuns returns all runs without their attempt history.
	ListRuns(ctx context.Context) ([]model.Run, error)
	// GetRun returns one run with its full attempt history.
	GetRun(ctx context.Context, id string) (*model.Run, error)
	// DeleteRun removes a run and its attempt history.
	DeleteRun(ctx context.Context, id string) error
}

// MultiRunLog fans out every write sequentially to multiple run logs (e.g.
// JSONL artifacts plus the SQLite index). A failure on any destination fails
// the write.
type MultiRunLog struct {
	logs []RunLog
}

// NewMultiRunLog creates a run log that writes to all the received logs.
func NewMultiRunLog(logs ...RunLog) *MultiRunLog {
	return &MultiRunLog{logs: logs}
}

func (m *MultiRunLog) Begin(ctx context.Context, run model.Run) error {
	for _, l := range m.logs {
		if err := l.Begin(ctx, run); err != nil {
			return fmt.Errorf("could not begin run log: %w", err)
		}
	}
	return nil
}

func (m *MultiRunLog) AppendAttempt(ctx context.Context, runID string, attempt model.Attempt) error {
	for _, l := range m.logs {
		if err := l.AppendAttempt(ctx, runID, attempt); err != nil {
			return fmt.Errorf("could not append attempt: %w", err)
		}
	}
	return nil
}

func (m *MultiRunLog) EndSubtask(ctx context.Context, runID string, result model.SubtaskResult) error {
	for _, l := range m.logs {
		if err := l.EndSubtask(ctx, runID, result); err != nil {
			return fmt.Errorf("could not end subtask: %w", err)
		}
	}
	return nil
}

func (m *MultiRunLog) End(ctx context.Context, run model.Run) error {
	for _, l := range m.logs {
		if err := l.End(ctx, run); err != nil {
			return fmt.Errorf("could not end run log: %w", err)
		}
	}
	return nil
}
