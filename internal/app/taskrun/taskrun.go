// Package taskrun implements the task orchestration loop: it walks the
// subtasks of a task in order, runs bounded attempt cycles against the
// environment with the agent and verifier collaborators, and records every
// sealed attempt in the run log before moving on.
package taskrun

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/orq/internal/agent"
	"github.com/slok/orq/internal/env"
	"github.com/slok/orq/internal/log"
	"github.com/slok/orq/internal/model"
	"github.com/slok/orq/internal/motion"
	"github.com/slok/orq/internal/storage"
	"github.com/slok/orq/internal/verifier"
)

// ServiceConfig is the configuration for the task run service.
type ServiceConfig struct {
	Environment env.Environment
	Agent       agent.Agent
	Verifier    verifier.Verifier
	Executor    motion.Executor
	RunLog      storage.RunLog
	FrameStore  storage.FrameStore

	// MaxCollaboratorRetries is how many times a failed agent or verifier
	// call is retried before the attempt is sealed with an error result.
	MaxCollaboratorRetries int
	// CallTimeout bounds every single agent and verifier call.
	CallTimeout time.Duration

	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Environment == nil {
		return fmt.Errorf("environment is required")
	}
	if c.Agent == nil {
		return fmt.Errorf("agent is required")
	}
	if c.Verifier == nil {
		return fmt.Errorf("verifier is required")
	}
	if c.Executor == nil {
		return fmt.Errorf("executor is required")
	}
	if c.RunLog == nil {
		return fmt.Errorf("run log is required")
	}
	if c.FrameStore == nil {
		return fmt.Errorf("frame store is required")
	}
	if c.MaxCollaboratorRetries < 0 {
		return fmt.Errorf("max collaborator retries must not be negative")
	}
	if c.CallTimeout == 0 {
		c.CallTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.TaskRun"})
	return nil
}

// Service orchestrates a full task run.
type Service struct {
	environment env.Environment
	agent       agent.Agent
	verifier    verifier.Verifier
	executor    motion.Executor
	runLog      storage.RunLog
	frameStore  storage.FrameStore
	maxRetries  int
	callTimeout time.Duration
	logger      log.Logger

	now func() time.Time
}

// NewService creates a new task run service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		environment: cfg.Environment,
		agent:       cfg.Agent,
		verifier:    cfg.Verifier,
		executor:    cfg.Executor,
		runLog:      cfg.RunLog,
		frameStore:  cfg.FrameStore,
		maxRetries:  cfg.MaxCollaboratorRetries,
		callTimeout: cfg.CallTimeout,
		logger:      cfg.Logger,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// RunOptions are the options for running a task.
type RunOptions struct {
	Task model.Task
	// HaltOnExhaustion stops the run at the first exhausted subtask instead
	// of continuing with the remaining ones.
	HaltOnExhaustion bool
}

// Run executes a task from start to finish and returns the finished run.
//
// A run log failure is fatal: the record on disk must never silently diverge
// from what actually happened. Collaborator failures are not, they are
// recorded in the attempt they broke.
func (s *Service) Run(ctx context.Context, opts RunOptions) (*model.Run, error) {
	if err := opts.Task.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task: %w", err)
	}

	run := model.Run{
		ID:               ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String(),
		TaskName:         opts.Task.Name,
		Status:           model.RunStatusRunning,
		HaltOnExhaustion: opts.HaltOnExhaustion,
		CreatedAt:        s.now(),
	}

	if err := s.runLog.Begin(ctx, run); err != nil {
		return nil, fmt.Errorf("could not begin run log: %w", err)
	}

	s.logger.Infof("Run %s started: task %q (%d subtasks)", run.ID, run.TaskName, len(opts.Task.Subtasks))

	if _, err := s.environment.Reset(ctx); err != nil {
		return nil, s.abort(ctx, run, fmt.Errorf("could not reset environment: %w", err))
	}

	halted := false
	for _, subtask := range opts.Task.Subtasks {
		if halted {
			break
		}

		result, err := s.runSubtask(ctx, run.ID, subtask)
		if err != nil {
			return nil, s.abort(ctx, run, err)
		}

		if err := s.runLog.EndSubtask(ctx, run.ID, result); err != nil {
			return nil, s.abort(ctx, run, fmt.Errorf("could not record subtask result: %w", err))
		}

		run.Subtasks = append(run.Subtasks, result)

		if result.Status == model.SubtaskStatusExhausted {
			// Cancellation always stops the run, the policy flag only
			// decides for ordinary exhaustion.
			if run.HaltOnExhaustion || result.Annotation == annotationCancelled {
				halted = true
			}
		}
	}

	completed, exhausted := model.CountByStatus(run.Subtasks)
	run.Status = model.RunStatusSucceeded
	if exhausted > 0 || completed < len(opts.Task.Subtasks) {
		run.Status = model.RunStatusFailed
	}
	finishedAt := s.now()
	run.FinishedAt = &finishedAt

	if err := s.runLog.End(ctx, run); err != nil {
		return nil, fmt.Errorf("could not end run log: %w", err)
	}

	s.logger.Infof("Run %s finished: %s (%d completed, %d exhausted)", run.ID, run.Status, completed, exhausted)

	return &run, nil
}

// abort finishes the run as failed after a fatal error, keeping whatever was
// already recorded.
func (s *Service) abort(ctx context.Context, run model.Run, cause error) error {
	run.Status = model.RunStatusFailed
	finishedAt := s.now()
	run.FinishedAt = &finishedAt

	if err := s.runLog.End(ctx, run); err != nil {
		s.logger.Errorf("Could not end run log after fatal error: %s", err)
	}

	return cause
}
