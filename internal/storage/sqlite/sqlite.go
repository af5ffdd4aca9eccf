package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/slok/orq/internal/log"
	"github.com/slok/orq/internal/model"
	"github.com/slok/orq/internal/storage/sqlite/migrations"
)

// StoreConfig is the configuration for the SQLite store.
type StoreConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *StoreConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Store is a SQLite implementation of storage.RunLog and storage.RunRepository.
//
// Attempts are inserted one row per sealed attempt, so a run that crashed
// mid-flight can still be inspected later: GetRun reconstructs the subtask
// groups from the attempt rows when no final results were written.
type Store struct {
	db     *sql.DB
	logger log.Logger
}

// NewStore creates a new SQLite store and runs pending migrations.
func NewStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(db, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("SQLite store initialized at %s", cfg.DBPath)

	return &Store{db: db, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// Begin records the start of a run.
func (s *Store) Begin(ctx context.Context, run model.Run) error {
	query := `
		INSERT INTO runs (id, task_name, status, halt_on_exhaustion, created_at, finished_at)
		VALUES (?, ?, ?, ?, ?, NULL)
	`

	halt := 0
	if run.HaltOnExhaustion {
		halt = 1
	}

	_, err := s.db.ExecContext(ctx, query, run.ID, run.TaskName, run.Status, halt, run.CreatedAt.UnixMilli())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: runs.") {
			return fmt.Errorf("run %s: %w", run.ID, model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert run: %w", err)
	}

	s.logger.Debugf("Started run log: %s", run.ID)
	return nil
}

// AppendAttempt records a sealed attempt. The insert is committed before
// returning, so every recorded attempt survives a later crash.
func (s *Store) AppendAttempt(ctx context.Context, runID string, attempt model.Attempt) error {
	query := `
		INSERT INTO attempts (
			run_id, subtask_name, attempt_index, action, reason,
			target, speed, chunk_duration_ms,
			before_frame, after_frame,
			exec_steps, exec_terminated_reason, exec_commanded_dx,
			verifier_complete, verifier_status, verifier_confidence, verifier_failure_mode,
			adjustment_speed, adjustment_chunk_duration_ms, verifier_rationale,
			started_at, finished_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	complete := 0
	if attempt.Verifier.Complete {
		complete = 1
	}

	var adjSpeed *float64
	var adjChunkMS *int64
	if adj := attempt.Verifier.Adjustment; adj != nil {
		adjSpeed = adj.Speed
		if adj.ChunkDuration != nil {
			ms := adj.ChunkDuration.Milliseconds()
			adjChunkMS = &ms
		}
	}

	_, err := s.db.ExecContext(
		ctx,
		query,
		runID,
		attempt.SubtaskName,
		attempt.Index,
		attempt.Action,
		attempt.Reason,
		attempt.Params.Target,
		attempt.Params.Speed,
		attempt.Params.ChunkDuration.Milliseconds(),
		attempt.BeforeFrameRef,
		attempt.AfterFrameRef,
		attempt.Execution.Steps,
		attempt.Execution.TerminatedReason,
		attempt.Execution.CommandedDX,
		complete,
		attempt.Verifier.Status,
		attempt.Verifier.Confidence,
		attempt.Verifier.FailureMode,
		adjSpeed,
		adjChunkMS,
		attempt.Verifier.Rationale,
		attempt.StartedAt.UnixMilli(),
		attempt.FinishedAt.UnixMilli(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: attempts.") {
			return fmt.Errorf("attempt %s/%d of run %s: %w", attempt.SubtaskName, attempt.Index, runID, model.ErrAlreadyExists)
		}
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return fmt.Errorf("run %s: %w", runID, model.ErrNotFound)
		}
		return fmt.Errorf("could not insert attempt: %w", err)
	}

	return nil
}

// EndSubtask records the terminal outcome of a subtask as soon as it is
// known, so a run that crashes later still shows the finished subtasks.
func (s *Store) EndSubtask(ctx context.Context, runID string, result model.SubtaskResult) error {
	var nextPos int
	query := `SELECT COALESCE(MAX(position), -1) + 1 FROM subtask_results WHERE run_id = ?`
	if err := s.db.QueryRowContext(ctx, query, runID).Scan(&nextPos); err != nil {
		return fmt.Errorf("could not get next position: %w", err)
	}

	insertQuery := `
		INSERT INTO subtask_results (run_id, position, name, status, annotation)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, insertQuery, runID, nextPos, result.Name, result.Status, result.Annotation)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return fmt.Errorf("run %s: %w", runID, model.ErrNotFound)
		}
		return fmt.Errorf("could not insert subtask result: %w", err)
	}

	return nil
}

// End records the final state of a run.
func (s *Store) End(ctx context.Context, run model.Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // Rollback is safe to call after Commit

	var finishedAt *int64
	if run.FinishedAt != nil {
		ms := run.FinishedAt.UnixMilli()
		finishedAt = &ms
	}

	result, err := tx.ExecContext(ctx, `UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`,
		run.Status, finishedAt, run.ID)
	if err != nil {
		return fmt.Errorf("could not update run: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run %s: %w", run.ID, model.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM subtask_results WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("could not clear subtask results: %w", err)
	}

	insertQuery := `
		INSERT INTO subtask_results (run_id, position, name, status, annotation)
		VALUES (?, ?, ?, ?, ?)
	`
	for i, st := range run.Subtasks {
		if _, err := tx.ExecContext(ctx, insertQuery, run.ID, i, st.Name, st.Status, st.Annotation); err != nil {
			return fmt.Errorf("could not insert subtask result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	s.logger.Debugf("Finished run log: %s (%s)", run.ID, run.Status)
	return nil
}

// ListRuns returns all runs, most recent first, without their attempts.
func (s *Store) ListRuns(ctx context.Context) ([]model.Run, error) {
	query := `
		SELECT id, task_name, status, halt_on_exhaustion, created_at, finished_at
		FROM runs
		ORDER BY created_at DESC, id DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("could not query runs: %w", err)
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return runs, nil
}

// GetRun retrieves a run by ID with all its subtask results and attempts.
func (s *Store) GetRun(ctx context.Context, id string) (*model.Run, error) {
	query := `
		SELECT id, task_name, status, halt_on_exhaustion, created_at, finished_at
		FROM runs
		WHERE id = ?
	`

	run, err := scanRun(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query run: %w", err)
	}

	results, err := s.listSubtaskResults(ctx, id)
	if err != nil {
		return nil, err
	}

	attempts, err := s.listAttempts(ctx, id)
	if err != nil {
		return nil, err
	}

	run.Subtasks = groupAttempts(results, attempts)

	return &run, nil
}

// DeleteRun deletes a run and all its subtask results and attempts.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("could not delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run %s: %w", id, model.ErrNotFound)
	}

	s.logger.Debugf("Deleted run: %s", id)
	return nil
}

func (s *Store) listSubtaskResults(ctx context.Context, runID string) ([]model.SubtaskResult, error) {
	query := `
		SELECT name, status, annotation
		FROM subtask_results
		WHERE run_id = ?
		ORDER BY position
	`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("could not query subtask results: %w", err)
	}
	defer rows.Close()

	var results []model.SubtaskResult
	for rows.Next() {
		var r model.SubtaskResult
		var status string
		if err := rows.Scan(&r.Name, &status, &r.Annotation); err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		r.Status = model.SubtaskStatus(status)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return results, nil
}

func (s *Store) listAttempts(ctx context.Context, runID string) ([]model.Attempt, error) {
	// rowid preserves insertion order, which is the execution order.
	query := `
		SELECT
			subtask_name, attempt_index, action, reason,
			target, speed, chunk_duration_ms,
			before_frame, after_frame,
			exec_steps, exec_terminated_reason, exec_commanded_dx,
			verifier_complete, verifier_status, verifier_confidence, verifier_failure_mode,
			adjustment_speed, adjustment_chunk_duration_ms, verifier_rationale,
			started_at, finished_at
		FROM attempts
		WHERE run_id = ?
		ORDER BY rowid
	`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("could not query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return attempts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (model.Run, error) {
	var run model.Run
	var status string
	var halt int
	var createdAt int64
	var finishedAt sql.NullInt64

	err := sc.Scan(&run.ID, &run.TaskName, &status, &halt, &createdAt, &finishedAt)
	if err != nil {
		return model.Run{}, err
	}

	run.Status = model.RunStatus(status)
	run.HaltOnExhaustion = halt != 0
	run.CreatedAt = timeFromUnixMilli(createdAt)
	if finishedAt.Valid {
		t := timeFromUnixMilli(finishedAt.Int64)
		run.FinishedAt = &t
	}

	return run, nil
}

func scanAttempt(sc scanner) (model.Attempt, error) {
	var a model.Attempt
	var action, status string
	var chunkMS, startedAt, finishedAt int64
	var complete int
	var adjSpeed sql.NullFloat64
	var adjChunkMS sql.NullInt64

	err := sc.Scan(
		&a.SubtaskName, &a.Index, &action, &a.Reason,
		&a.Params.Target, &a.Params.Speed, &chunkMS,
		&a.BeforeFrameRef, &a.AfterFrameRef,
		&a.Execution.Steps, &a.Execution.TerminatedReason, &a.Execution.CommandedDX,
		&complete, &status, &a.Verifier.Confidence, &a.Verifier.FailureMode,
		&adjSpeed, &adjChunkMS, &a.Verifier.Rationale,
		&startedAt, &finishedAt,
	)
	if err != nil {
		return model.Attempt{}, err
	}

	a.Action = model.Action(action)
	a.Params.ChunkDuration = time.Duration(chunkMS) * time.Millisecond
	a.Verifier.Complete = complete != 0
	a.Verifier.Status = model.VerifierStatus(status)
	a.StartedAt = timeFromUnixMilli(startedAt)
	a.FinishedAt = timeFromUnixMilli(finishedAt)

	if adjSpeed.Valid || adjChunkMS.Valid {
		adj := &model.Adjustment{}
		if adjSpeed.Valid {
			v := adjSpeed.Float64
			adj.Speed = &v
		}
		if adjChunkMS.Valid {
			d := time.Duration(adjChunkMS.Int64) * time.Millisecond
			adj.ChunkDuration = &d
		}
		a.Verifier.Adjustment = adj
	}

	return a, nil
}

// groupAttempts attaches attempts to their subtask results. When a run
// crashed before its final results were written there are no result rows, so
// the groups are rebuilt from the attempt stream itself.
func groupAttempts(results []model.SubtaskResult, attempts []model.Attempt) []model.SubtaskResult {
	index := map[string]int{}
	for i, r := range results {
		index[r.Name] = i
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

func timeFromUnixMilli(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
