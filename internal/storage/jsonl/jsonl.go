// Package jsonl implements the crash-safe artifact store of a run: an
// append-only steps.jsonl file with one record per sealed attempt, plus the
// before/after PNG frames, all under a per-run directory.
package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/slok/orq/internal/log"
	"github.com/slok/orq/internal/model"
)

// StoreConfig is the configuration for the JSONL store.
type StoreConfig struct {
	// RootDir is the base directory, runs are stored under <RootDir>/<run-id>/.
	RootDir string
	Logger  log.Logger
}

func (c *StoreConfig) defaults() error {
	if c.RootDir == "" {
		return fmt.Errorf("root dir is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.JSONL"})
	return nil
}

// Store is a storage.RunLog and storage.FrameStore over a per-run directory.
// Safe for concurrent use, several runs can be open at once.
type Store struct {
	rootDir string
	logger  log.Logger

	// mu guards the open handles map.
	mu sync.Mutex
	// Open steps.jsonl handles by run ID.
	steps map[string]*os.File
}

// NewStore creates a new JSONL store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Store{
		rootDir: cfg.RootDir,
		logger:  cfg.Logger,
		steps:   map[string]*os.File{},
	}, nil
}

// RunDir returns the directory of a run.
func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.rootDir, runID)
}

// StepsPath returns the steps.jsonl path of a run.
func (s *Store) StepsPath(runID string) string {
	return filepath.Join(s.RunDir(runID), "steps.jsonl")
}

// Begin creates the run directory and opens the steps file.
func (s *Store) Begin(ctx context.Context, run model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.steps[run.ID]; ok {
		return fmt.Errorf("run %s log: %w", run.ID, model.ErrAlreadyExists)
	}

	runDir := s.RunDir(run.ID)
	if err := os.MkdirAll(filepath.Join(runDir, "frames"), 0755); err != nil {
		return fmt.Errorf("could not create run directory: %w", err)
	}

	f, err := os.OpenFile(s.StepsPath(run.ID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("could not open steps file: %w", err)
	}

	s.steps[run.ID] = f
	s.logger.Infof("Run log opened at %s", runDir)

	return nil
}

// AppendAttempt appends one attempt record and syncs the file so the record
// survives a crash before the next attempt starts.
func (s *Store) AppendAttempt(ctx context.Context, runID string, attempt model.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.steps[runID]
	if !ok {
		return fmt.Errorf("run %s log: %w", runID, model.ErrNotFound)
	}

	data, err := json.Marshal(mapAttemptToRecord(runID, attempt))
	if err != nil {
		return fmt.Errorf("could not marshal attempt record: %w", err)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("could not write attempt record: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("could not sync steps file: %w", err)
	}

	return nil
}

// EndSubtask appends the terminal subtask outcome to the subtasks.jsonl
// file, so a crashed run still shows which subtasks already finished.
func (s *Store) EndSubtask(ctx context.Context, runID string, result model.SubtaskResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.steps[runID]; !ok {
		return fmt.Errorf("run %s log: %w", runID, model.ErrNotFound)
	}

	data, err := json.Marshal(subtaskSummary{
		Name:       result.Name,
		Status:     string(result.Status),
		Annotation: result.Annotation,
		Attempts:   len(result.Attempts),
	})
	if err != nil {
		return fmt.Errorf("could not marshal subtask record: %w", err)
	}

	path := filepath.Join(s.RunDir(runID), "subtasks.jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("could not open subtasks file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("could not write subtask record: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("could not sync subtasks file: %w", err)
	}

	return nil
}

// End writes the final run summary and closes the steps file.
func (s *Store) End(ctx context.Context, run model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.steps[run.ID]
	if !ok {
		return fmt.Errorf("run %s log: %w", run.ID, model.ErrNotFound)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("could not close steps file: %w", err)
	}
	delete(s.steps, run.ID)

	data, err := json.MarshalIndent(mapRunToSummary(run), "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal run summary: %w", err)
	}
	summaryPath := filepath.Join(s.RunDir(run.ID), "run.json")
	if err := os.WriteFile(summaryPath, data, 0644); err != nil {
		return fmt.Errorf("could not write run summary: %w", err)
	}

	return nil
}

// SaveFrame stores a frame PNG under the run directory and returns its path.
func (s *Store) SaveFrame(ctx context.Context, runID, subtaskName string, attemptIndex int, slot model.FrameSlot, frame model.Frame) (string, error) {
	s.mu.Lock()
	_, ok := s.steps[runID]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("run %s log: %w", runID, model.ErrNotFound)
	}

	dir := filepath.Join(s.RunDir(runID), "frames", subtaskName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("could not create frames directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("attempt_%d_%s.png", attemptIndex, slot))
	if err := os.WriteFile(path, frame.PNG, 0644); err != nil {
		return "", fmt.Errorf("could not write frame: %w", err)
	}

	return path, nil
}

// RemoveRun deletes the whole artifact directory of a run.
func (s *Store) RemoveRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	if f, ok := s.steps[runID]; ok {
		_ = f.Close()
		delete(s.steps, runID)
	}
	s.mu.Unlock()

	if err := os.RemoveAll(s.RunDir(runID)); err != nil {
		return fmt.Errorf("could not remove run directory: %w", err)
	}

	return nil
}

// ReadAttempts replays the sealed attempts of a run from its steps file. A
// truncated trailing line (crash during a write) is ignored, every fully
// written record before it is returned.
func (s *Store) ReadAttempts(ctx context.Context, runID string) ([]model.Attempt, error) {
	f, err := os.Open(s.StepsPath(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("run %s steps: %w", runID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not open steps file: %w", err)
	}
	defer f.Close()

	var attempts []model.Attempt
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		var rec attemptRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			// Partial trailing record from an interrupted write.
			s.logger.Warningf("Ignoring partial record in %s", s.StepsPath(runID))
			break
		}
		attempts = append(attempts, mapRecordToAttempt(rec))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not read steps file: %w", err)
	}

	return attempts, nil
}

type attemptRecord struct {
	RunID          string          `json:"run_id"`
	SubtaskName    string          `json:"subtask_name"`
	AttemptIndex   int             `json:"attempt_index"`
	Action         string          `json:"action"`
	Reason         string          `json:"reason"`
	Params         paramsRecord    `json:"params"`
	BeforeFrameRef string          `json:"before_frame"`
	AfterFrameRef  string          `json:"after_frame"`
	Execution      executionRecord `json:"execution"`
	Verifier       verifierRecord  `json:"verifier"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     time.Time       `json:"finished_at"`
}

type paramsRecord struct {
	Target         string  `json:"target"`
	Speed          float64 `json:"speed"`
	ChunkDurationS float64 `json:"chunk_duration_s"`
}

type executionRecord struct {
	Steps            int     `json:"steps"`
	TerminatedReason string  `json:"terminated_reason"`
	CommandedDX      float64 `json:"commanded_dx"`
}

type verifierRecord struct {
	Complete       bool     `json:"complete"`
	Status         string   `json:"status"`
	Confidence     float64  `json:"confidence"`
	FailureMode    string   `json:"failure_mode,omitempty"`
	AdjSpeed       *float64 `json:"adjustment_speed,omitempty"`
	AdjChunkDurS   *float64 `json:"adjustment_chunk_duration_s,omitempty"`
	Rationale      string   `json:"rationale"`
}

type runSummary struct {
	ID               string             `json:"id"`
	TaskName         string             `json:"task_name"`
	Status           string             `json:"status"`
	HaltOnExhaustion bool               `json:"halt_on_exhaustion"`
	CreatedAt        time.Time          `json:"created_at"`
	FinishedAt       *time.Time         `json:"finished_at,omitempty"`
	Subtasks         []subtaskSummary   `json:"subtasks"`
}

type subtaskSummary struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Annotation string `json:"annotation,omitempty"`
	Attempts   int    `json:"attempts"`
}

func mapAttemptToRecord(runID string, a model.Attempt) attemptRecord {
	rec := attemptRecord{
		RunID:          runID,
		SubtaskName:    a.SubtaskName,
		AttemptIndex:   a.Index,
		Action:         string(a.Action),
		Reason:         a.Reason,
		Params: paramsRecord{
			Target:         a.Params.Target,
			Speed:          a.Params.Speed,
			ChunkDurationS: a.Params.ChunkDuration.Seconds(),
		},
		BeforeFrameRef: a.BeforeFrameRef,
		AfterFrameRef:  a.AfterFrameRef,
		Execution: executionRecord{
			Steps:            a.Execution.Steps,
			TerminatedReason: a.Execution.TerminatedReason,
			CommandedDX:      a.Execution.CommandedDX,
		},
		Verifier: verifierRecord{
			Complete:    a.Verifier.Complete,
			Status:      string(a.Verifier.Status),
			Confidence:  a.Verifier.Confidence,
			FailureMode: a.Verifier.FailureMode,
			Rationale:   a.Verifier.Rationale,
		},
		StartedAt:  a.StartedAt,
		FinishedAt: a.FinishedAt,
	}

	if adj := a.Verifier.Adjustment; adj != nil {
		rec.Verifier.AdjSpeed = adj.Speed
		if adj.ChunkDuration != nil {
			s := adj.ChunkDuration.Seconds()
			rec.Verifier.AdjChunkDurS = &s
		}
	}

	return rec
}

// secondsToDuration rounds to the nearest nanosecond so durations survive the
// float seconds representation used on disk.
func secondsToDuration(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

func mapRecordToAttempt(rec attemptRecord) model.Attempt {
	a := model.Attempt{
		SubtaskName:  rec.SubtaskName,
		Index:        rec.AttemptIndex,
		Action:       model.Action(rec.Action),
		Reason:       rec.Reason,
		Params: model.Params{
			Target:        rec.Params.Target,
			Speed:         rec.Params.Speed,
			ChunkDuration: secondsToDuration(rec.Params.ChunkDurationS),
		},
		BeforeFrameRef: rec.BeforeFrameRef,
		AfterFrameRef:  rec.AfterFrameRef,
		Execution: model.ExecutionReport{
			Steps:            rec.Execution.Steps,
			TerminatedReason: rec.Execution.TerminatedReason,
			CommandedDX:      rec.Execution.CommandedDX,
		},
		Verifier: model.VerifierResult{
			Complete:    rec.Verifier.Complete,
			Status:      model.VerifierStatus(rec.Verifier.Status),
			Confidence:  rec.Verifier.Confidence,
			FailureMode: rec.Verifier.FailureMode,
			Rationale:   rec.Verifier.Rationale,
		},
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
	}

	if rec.Verifier.AdjSpeed != nil || rec.Verifier.AdjChunkDurS != nil {
		adj := &model.Adjustment{Speed: rec.Verifier.AdjSpeed}
		if rec.Verifier.AdjChunkDurS != nil {
			d := secondsToDuration(*rec.Verifier.AdjChunkDurS)
			adj.ChunkDuration = &d
		}
		a.Verifier.Adjustment = adj
	}

	return a
}

func mapRunToSummary(run model.Run) runSummary {
	summary := runSummary{
		ID:               run.ID,
		TaskName:         run.TaskName,
		Status:           string(run.Status),
		HaltOnExhaustion: run.HaltOnExhaustion,
		CreatedAt:        run.CreatedAt,
		FinishedAt:       run.FinishedAt,
	}
	for _, st := range run.Subtasks {
		summary.Subtasks = append(summary.Subtasks, subtaskSummary{
			Name:       st.Name,
			Status:     string(st.Status),
			Annotation: st.Annotation,
			Attempts:   len(st.Attempts),
		})
	}
	return summary
}
