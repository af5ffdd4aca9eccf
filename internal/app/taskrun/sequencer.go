package taskrun

import (
	"context"
	"fmt"

	"github.com/slok/orq/internal/log"
	"github.com/slok/orq/internal/model"
)

const annotationCancelled = "cancelled"

// runSubtask drives the attempt cycle of one subtask until it completes, its
// attempt budget is exhausted or the run is cancelled. Every attempt is
// sealed in the run log before the next one starts. The returned error is
// fatal for the whole run (only run log failures are).
func (s *Service) runSubtask(ctx context.Context, runID string, subtask model.Subtask) (model.SubtaskResult, error) {
	logger := s.logger.WithValues(log.Kv{"subtask": subtask.Name})
	logger.Infof("Subtask started (max %d attempts)", subtask.MaxAttempts)

	result := model.SubtaskResult{Name: subtask.Name}
	params := subtask.Params

	for index := 1; index <= subtask.MaxAttempts; index++ {
		// The stop signal is honored between attempts, never mid-attempt.
		if ctx.Err() != nil {
			logger.Warningf("Run cancelled, sealing subtask as exhausted")
			result.Status = model.SubtaskStatusExhausted
			result.Annotation = annotationCancelled
			return result, nil
		}

		attempt := s.runAttempt(ctx, runID, subtask, index, params, result.Attempts)

		if err := s.runLog.AppendAttempt(ctx, runID, attempt); err != nil {
			return model.SubtaskResult{}, fmt.Errorf("could not record attempt: %w", err)
		}
		result.Attempts = append(result.Attempts, attempt)

		if attempt.Verifier.Complete {
			logger.Infof("Subtask completed on attempt %d", index)
			result.Status = model.SubtaskStatusCompleted
			return result, nil
		}

		logger.Debugf("Attempt %d not complete: %s (%s)", index, attempt.Verifier.Status, attempt.Verifier.FailureMode)

		// Verifier adjustments carry forward into the next attempt exactly,
		// untouched fields keep their previous value.
		params = params.Apply(attempt.Verifier.Adjustment)
	}

	logger.Warningf("Subtask exhausted after %d attempts", subtask.MaxAttempts)
	result.Status = model.SubtaskStatusExhausted
	return result, nil
}
