package runsshow

import (
	"context"
	"errors"
	"fmt"

	"github.com/slok/orq/internal/log"
	"github.com/slok/orq/internal/model"
	"github.com/slok/orq/internal/storage"
)

// ArtifactReader replays the sealed attempts of a run from its artifact
// directory (the crash-safe steps file).
type ArtifactReader interface {
	ReadAttempts(ctx context.Context, runID string) ([]model.Attempt, error)
}

// ServiceConfig is the configuration for the runs show service.
type ServiceConfig struct {
	Repository storage.RunRepository
	// Artifacts is optional, when set the run history can be replayed from
	// the artifact directory instead of the index.
	Artifacts ArtifactReader
	Logger    log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Service shows a single recorded run with its full attempt history.
type Service struct {
	repo      storage.RunRepository
	artifacts ArtifactReader
	logger    log.Logger
}

// NewService creates a new runs show service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:      cfg.Repository,
		artifacts: cfg.Artifacts,
		logger:    cfg.Logger,
	}, nil
}

// Request represents the show request parameters.
type Request struct {
	// RunID is the ID of the run to show.
	RunID string
	// FromArtifacts replays the attempt history from the artifact steps file
	// instead of the index. Useful when the index is lost or damaged, the
	// steps file is the crash-safe source of truth.
	FromArtifacts bool
}

// Run retrieves a run by ID.
func (s *Service) Run(ctx context.Context, req Request) (*model.Run, error) {
	if req.RunID == "" {
		return nil, fmt.Errorf("run ID is required: %w", model.ErrNotValid)
	}

	if req.FromArtifacts {
		return s.runFromArtifacts(ctx, req.RunID)
	}

	s.logger.Debugf("getting run: %s", req.RunID)

	run, err := s.repo.GetRun(ctx, req.RunID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("run not found: %s: %w", req.RunID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not get run: %w", err)
	}

	return run, nil
}

// runFromArtifacts rebuilds the run history from the sealed attempt stream.
// Index metadata is merged in when available, a run missing from the index
// still shows its recorded attempts.
func (s *Service) runFromArtifacts(ctx context.Context, runID string) (*model.Run, error) {
	if s.artifacts == nil {
		return nil, fmt.Errorf("no artifact reader configured: %w", model.ErrNotValid)
	}

	s.logger.Debugf("replaying run from artifacts: %s", runID)

	attempts, err := s.artifacts.ReadAttempts(ctx, runID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("run artifacts not found: %s: %w", runID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not read run artifacts: %w", err)
	}

	run := &model.Run{ID: runID, Status: model.RunStatusRunning}
	if indexed, err := s.repo.GetRun(ctx, runID); err == nil {
		run = indexed
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("could not get run: %w", err)
	}

	run.Subtasks = regroupAttempts(run.Subtasks, attempts)

	return run, nil
}

// regroupAttempts rebuilds the per-subtask history from the attempt stream,
// keeping the terminal statuses of already known subtask results and
// synthesizing a result for subtasks only present in the stream.
func regroupAttempts(results []model.SubtaskResult, attempts []model.Attempt) []model.SubtaskResult {
	grouped := make([]model.SubtaskResult, len(results))
	byName := map[string]int{}
	for i, r := range results {
		r.Attempts = nil
		grouped[i] = r
		byName[r.Name] = i
	}

	for _, att := range attempts {
		i, ok := byName[att.SubtaskName]
		if !ok {
			grouped = append(grouped, model.SubtaskResult{Name: att.SubtaskName})
			i = len(grouped) - 1
			byName[att.SubtaskName] = i
		}
		grouped[i].Attempts = append(grouped[i].Attempts, att)
	}

	return grouped
}
