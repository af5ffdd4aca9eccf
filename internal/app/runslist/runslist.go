package runslist

import (
	"context"
	"fmt"

	"github.com/slok/orq/internal/log"
	"github.com/slok/orq/internal/model"
	"github.com/slok/orq/internal/storage"
)

// ServiceConfig is the configuration for the runs list service.
type ServiceConfig struct {
	Repository storage.RunRepository
	Logger     log.Logger
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

// Service lists recorded runs with optional filtering.
type Service struct {
	repo   storage.RunRepository
	logger log.Logger
}

// NewService creates a new runs list service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the list request parameters.
type Request struct {
	// StatusFilter is an optional filter to only show runs with this status.
	StatusFilter *model.RunStatus
}

// Run lists all recorded runs, optionally filtered by status.
func (s *Service) Run(ctx context.Context, req Request) ([]model.Run, error) {
	s.logger.Debugf("listing runs with filter: %v", req.StatusFilter)

	runs, err := s.repo.ListRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list runs: %w", err)
	}

	if req.StatusFilter != nil {
		filtered := make([]model.Run, 0, len(runs))
		for _, run := range runs {
			if run.Status == *req.StatusFilter {
				filtered = append(filtered, run)
			}
		}
		runs = filtered
	}

	s.logger.Debugf("found %d runs", len(runs))
	return runs, nil
}
