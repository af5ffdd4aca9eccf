package taskrun

import (
	"context"

	"github.com/slok/orq/internal/agent"
	"github.com/slok/orq/internal/log"
	"github.com/slok/orq/internal/model"
	"github.com/slok/orq/internal/verifier"
)

// Failure modes recorded when a collaborator breaks an attempt.
const (
	failureModeAgent     = "agent_error"
	failureModeExecution = "execution_error"
	failureModeVerifier  = "verifier_error"
)

// runAttempt executes one full attempt cycle: before frame, agent decision,
// motion execution, after frame, verification. It never fails the run, a
// broken collaborator is recorded in the sealed attempt instead.
func (s *Service) runAttempt(ctx context.Context, runID string, subtask model.Subtask, index int, params model.Params, history []model.Attempt) model.Attempt {
	logger := s.logger.WithValues(log.Kv{"subtask": subtask.Name, "attempt": index})

	attempt := model.Attempt{
		SubtaskName: subtask.Name,
		Index:       index,
		Params:      params,
		StartedAt:   s.now(),
	}

	before := s.captureFrame(ctx, runID, subtask.Name, index, model.FrameSlotBefore, &attempt.BeforeFrameRef)

	decision, err := s.chooseAction(ctx, subtask, index, params, history)
	if err != nil {
		logger.Errorf("Agent failed after retries: %s", err)
		return s.seal(attempt, failureModeAgent, err)
	}
	attempt.Action = decision.Action
	attempt.Reason = decision.Reason
	logger.Debugf("Agent chose %s: %s", decision.Action, decision.Reason)

	report, err := s.executor.Execute(ctx, decision.Action, params)
	attempt.Execution = report
	if err != nil {
		logger.Errorf("Execution failed: %s", err)
		return s.seal(attempt, failureModeExecution, err)
	}

	after := s.captureFrame(ctx, runID, subtask.Name, index, model.FrameSlotAfter, &attempt.AfterFrameRef)

	verdict, err := s.checkCompletion(ctx, verifier.CheckRequest{
		Before:  before,
		After:   after,
		Subtask: subtask,
		Params:  params,
	})
	if err != nil {
		logger.Errorf("Verifier failed after retries: %s", err)
		return s.seal(attempt, failureModeVerifier, err)
	}

	attempt.Verifier = verdict
	attempt.FinishedAt = s.now()

	return attempt
}

// seal closes an attempt whose collaborator broke terminally. The attempt is
// recorded as a non-completing error verdict so the sequencer keeps counting
// it against the budget.
func (s *Service) seal(attempt model.Attempt, failureMode string, cause error) model.Attempt {
	attempt.Verifier = model.VerifierResult{
		Complete:    false,
		Status:      model.VerifierStatusError,
		FailureMode: failureMode,
		Rationale:   cause.Error(),
	}
	attempt.FinishedAt = s.now()
	return attempt
}

// captureFrame observes the environment and stores the frame artifact. A
// capture failure degrades the attempt (the verifier sees a missing frame)
// instead of breaking it.
func (s *Service) captureFrame(ctx context.Context, runID, subtaskName string, index int, slot model.FrameSlot, ref *string) model.Frame {
	obs, err := s.environment.Observe(ctx)
	if err != nil {
		s.logger.Warningf("Could not capture %s frame: %s", slot, err)
		return model.Frame{}
	}

	frameRef, err := s.frameStore.SaveFrame(ctx, runID, subtaskName, index, slot, obs.Frame)
	if err != nil {
		s.logger.Warningf("Could not store %s frame: %s", slot, err)
	} else {
		*ref = frameRef
	}

	return obs.Frame
}

// chooseAction asks the agent for the next action, retrying bounded times on
// call failures and on actions outside the action vocabulary.
func (s *Service) chooseAction(ctx context.Context, subtask model.Subtask, index int, params model.Params, history []model.Attempt) (agent.Decision, error) {
	var decision agent.Decision

	err := s.withRetry(ctx, "agent", func(callCtx context.Context) error {
		d, err := s.agent.ChooseAction(callCtx, agent.ActionRequest{
			Subtask:      subtask,
			AttemptIndex: index,
			Params:       params,
			History:      history,
		})
		if err != nil {
			return err
		}
		if _, err := model.ParseAction(string(d.Action)); err != nil {
			return err
		}
		decision = d
		return nil
	})

	return decision, err
}

// checkCompletion asks the verifier for a verdict, retrying bounded times on
// call failures.
func (s *Service) checkCompletion(ctx context.Context, req verifier.CheckRequest) (model.VerifierResult, error) {
	var verdict model.VerifierResult

	err := s.withRetry(ctx, "verifier", func(callCtx context.Context) error {
		v, err := s.verifier.Check(callCtx, req)
		if err != nil {
			return err
		}
		verdict = v
		return nil
	})

	return verdict, err
}

// withRetry runs a collaborator call with the per-call timeout, retrying up
// to the configured bound. A cancelled run stops the retries immediately.
func (s *Service) withRetry(ctx context.Context, name string, call func(context.Context) error) error {
	var err error
	for try := 0; ; try++ {
		callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
		err = call(callCtx)
		cancel()

		if err == nil || try >= s.maxRetries || ctx.Err() != nil {
			return err
		}
		s.logger.Warningf("Retrying %s call (%d/%d): %s", name, try+1, s.maxRetries, err)
	}
}
