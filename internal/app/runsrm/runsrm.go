package runsrm

import (
	"context"
	"errors"
	"fmt"

	"github.com/slok/orq/internal/log"
	"github.com/slok/orq/internal/model"
	"github.com/slok/orq/internal/storage"
)

// ArtifactRemover removes the on-disk artifacts of a run (frames, step log).
type ArtifactRemover interface {
	RemoveRun(ctx context.Context, runID string) error
}

// ServiceConfig is the configuration for the runs remove service.
type ServiceConfig struct {
	Repository storage.RunRepository
	// Artifacts is optional, when set the run's artifact directory is
	// removed alongside the index entry.
	Artifacts ArtifactRemover
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

// Service removes recorded runs.
type Service struct {
	repo      storage.RunRepository
	artifacts ArtifactRemover
	logger    log.Logger
}

// NewService creates a new runs remove service.
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

// Request represents the remove request parameters.
type Request struct {
	// RunID is the ID of the run to remove.
	RunID string
}

// Run removes a run by ID, including its artifacts when an artifact remover
// is configured.
func (s *Service) Run(ctx context.Context, req Request) (*model.Run, error) {
	if req.RunID == "" {
		return nil, fmt.Errorf("run ID is required: %w", model.ErrNotValid)
	}

	s.logger.Debugf("removing run: %s", req.RunID)

	run, err := s.repo.GetRun(ctx, req.RunID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("run not found: %s: %w", req.RunID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not get run: %w", err)
	}

	if err := s.repo.DeleteRun(ctx, run.ID); err != nil {
		return nil, fmt.Errorf("could not delete run: %w", err)
	}

	if s.artifacts != nil {
		// Artifact removal is best effort, the index entry is already gone.
		if err := s.artifacts.RemoveRun(ctx, run.ID); err != nil {
			s.logger.Warningf("Could not remove run artifacts: %s", err)
		}
	}

	s.logger.Infof("Removed run: %s", run.ID)
	return run, nil
}
