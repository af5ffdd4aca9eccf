package lib

import (
	"context"
	"fmt"

	"github.com/slok/orq/internal/agent/rulebased"
	"github.com/slok/orq/internal/app/runslist"
	"github.com/slok/orq/internal/app/runsrm"
	"github.com/slok/orq/internal/app/runsshow"
	"github.com/slok/orq/internal/app/taskrun"
	"github.com/slok/orq/internal/env/arm1d"
	"github.com/slok/orq/internal/motion"
	"github.com/slok/orq/internal/storage"
	"github.com/slok/orq/internal/verifier/stub"
)

// RunTaskOpts are the options for [Client.RunTask].
type RunTaskOpts struct {
	// HaltOnExhaustion stops the run at the first subtask that exhausts its
	// attempt budget. Remaining subtasks are not executed.
	// Default: true.
	HaltOnExhaustion *bool
}

// RunTask executes a task against the in-process simulated environment with
// the deterministic rule-based agent and the frame-inspecting verifier.
//
// The run blocks until the task finishes, the first subtask exhausts its
// attempts (with halt on exhaustion enabled), or the context is cancelled.
// Pass nil opts for defaults.
//
// Returns [ErrNotValid] if the task definition is invalid.
func (c *Client) RunTask(ctx context.Context, task Task, opts *RunTaskOpts) (*Run, error) {
	environment, err := arm1d.NewEnvironment(arm1d.EnvironmentConfig{
		ControlHz: c.controlHz,
		ArmLimit:  c.armLimit,
		Logger:    c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create environment: %w", err)
	}
	defer environment.Close()

	executor, err := motion.NewChunkExecutor(motion.ChunkExecutorConfig{
		Environment: environment,
		ControlHz:   c.controlHz,
		Logger:      c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create executor: %w", err)
	}

	ag, err := rulebased.NewAgent(rulebased.AgentConfig{Logger: c.logger})
	if err != nil {
		return nil, fmt.Errorf("could not create agent: %w", err)
	}

	vf, err := stub.NewVerifier(stub.VerifierConfig{
		CrossingMarginPx: c.crossingMarginPx,
		Logger:           c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create verifier: %w", err)
	}

	svc, err := taskrun.NewService(taskrun.ServiceConfig{
		Environment:            environment,
		Agent:                  ag,
		Verifier:               vf,
		Executor:               executor,
		RunLog:                 storage.NewMultiRunLog(c.artifacts, c.index),
		FrameStore:             c.artifacts,
		MaxCollaboratorRetries: c.maxRetries,
		CallTimeout:            c.callTimeout,
		Logger:                 c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	halt := true
	if opts != nil && opts.HaltOnExhaustion != nil {
		halt = *opts.HaltOnExhaustion
	}

	run, err := svc.Run(ctx, taskrun.RunOptions{
		Task:             toInternalTask(task),
		HaltOnExhaustion: halt,
	})
	if err != nil {
		return nil, mapError(err)
	}

	result := fromInternalRun(*run)
	return &result, nil
}

// ListRunsOpts are the options for [Client.ListRuns].
type ListRunsOpts struct {
	// Status filters the listing to runs with this status. Nil lists all runs.
	Status *RunStatus
}

// ListRuns lists recorded runs, newest first. The returned runs are shallow:
// they carry no subtask results or attempts, use [Client.GetRun] for those.
// Pass nil opts for defaults.
func (c *Client) ListRuns(ctx context.Context, opts *ListRunsOpts) ([]Run, error) {
	svc, err := runslist.NewService(runslist.ServiceConfig{
		Repository: c.index,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	runs, err := svc.Run(ctx, runslist.Request{
		StatusFilter: toInternalStatusFilter(opts),
	})
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalRunList(runs), nil
}

// GetRun retrieves a run with its full subtask and attempt history.
//
// Runs that crashed mid-execution are reconstructed from the sealed attempt
// records, so the history is available even without a terminal run state.
//
// Returns [ErrNotFound] if the run does not exist.
func (c *Client) GetRun(ctx context.Context, runID string) (*Run, error) {
	svc, err := runsshow.NewService(runsshow.ServiceConfig{
		Repository: c.index,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	run, err := svc.Run(ctx, runsshow.Request{RunID: runID})
	if err != nil {
		return nil, mapError(err)
	}

	result := fromInternalRun(*run)
	return &result, nil
}

// RemoveRun removes a run from the index together with its artifact
// directory (step logs and frames).
//
// Returns [ErrNotFound] if the run does not exist.
func (c *Client) RemoveRun(ctx context.Context, runID string) error {
	svc, err := runsrm.NewService(runsrm.ServiceConfig{
		Repository: c.index,
		Artifacts:  c.artifacts,
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	_, err = svc.Run(ctx, runsrm.Request{RunID: runID})
	if err != nil {
		return mapError(err)
	}

	return nil
}
