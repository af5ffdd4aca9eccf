package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/slok/orq/internal/log"
	"github.com/slok/orq/internal/model"
)

// StoreConfig is the configuration for the memory store.
type StoreConfig struct {
	Logger log.Logger
}

func (c *StoreConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Store is an in-memory implementation of storage.RunLog and
// storage.RunRepository. Attempts are kept as an ordered stream per run so
// unfinished runs can be inspected the same way as persisted ones.
type Store struct {
	runs     map[string]model.Run
	attempts map[string][]model.Attempt
	results  map[string][]model.SubtaskResult
	mu       sync.RWMutex
	logger   log.Logger
}

// NewStore creates a new memory store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Store{
		runs:     make(map[string]model.Run),
		attempts: make(map[string][]model.Attempt),
		results:  make(map[string][]model.SubtaskResult),
		logger:   cfg.Logger,
	}, nil
}

// Begin records the start of a run.
func (s *Store) Begin(ctx context.Context, run model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; ok {
		return fmt.Errorf("run %s: %w", run.ID, model.ErrAlreadyExists)
	}

	s.runs[run.ID] = run
	s.logger.Debugf("Started run log: %s", run.ID)

	return nil
}

// AppendAttempt records a sealed attempt.
func (s *Store) AppendAttempt(ctx context.Context, runID string, attempt model.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[runID]; !ok {
		return fmt.Errorf("run %s: %w", runID, model.ErrNotFound)
	}

	s.attempts[runID] = append(s.attempts[runID], attempt)

	return nil
}

// EndSubtask records the terminal outcome of one subtask.
func (s *Store) EndSubtask(ctx context.Context, runID string, result model.SubtaskResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[runID]; !ok {
		return fmt.Errorf("run %s: %w", runID, model.ErrNotFound)
	}

	s.results[runID] = append(s.results[runID], result)

	return nil
}

// End records the final state of a run.
func (s *Store) End(ctx context.Context, run model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; !ok {
		return fmt.Errorf("run %s: %w", run.ID, model.ErrNotFound)
	}

	s.runs[run.ID] = run
	s.logger.Debugf("Finished run log: %s (%s)", run.ID, run.Status)

	return nil
}

// ListRuns returns all runs, most recent first, without their attempts.
func (s *Store) ListRuns(ctx context.Context) ([]model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.Run, 0, len(s.runs))
	for _, run := range s.runs {
		run.Subtasks = nil
		runs = append(runs, run)
	}

	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].ID > runs[j].ID
	})

	return runs, nil
}

// GetRun retrieves a run by ID with all its subtask results and attempts.
func (s *Store) GetRun(ctx context.Context, id string) (*model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", id, model.ErrNotFound)
	}

	// A run that never ended has no final results, rebuild them from the
	// sealed subtask outcomes and the attempt stream.
	if len(run.Subtasks) == 0 {
		run.Subtasks = groupAttempts(s.results[id], s.attempts[id])
	}

	runCopy := run
	return &runCopy, nil
}

// DeleteRun deletes a run and all its attempts.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[id]; !ok {
		return fmt.Errorf("run %s: %w", id, model.ErrNotFound)
	}

	delete(s.runs, id)
	delete(s.attempts, id)
	delete(s.results, id)
	s.logger.Debugf("Deleted run: %s", id)

	return nil
}

func groupAttempts(results []model.SubtaskResult, attempts []model.Attempt) []model.SubtaskResult {
	results = append([]model.SubtaskResult(nil), results...)
	index := map[string]int{}
	for i, r := range results {
		index[r.Name] = i
		results[i].Attempts = nil
	}

	for _, a := range attempts {
		i, ok := index[a.SubtaskName]
		if !ok {
			results = append(results, model.SubtaskResult{Name: a.SubtaskName})
			i = len(results) - 1
			index[a.SubtaskName] = i
		}
		results[i].Attempts = append(results[i].Attempts, a)
	}

	return results
}
