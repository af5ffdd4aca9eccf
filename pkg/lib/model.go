package lib

import (
	"errors"
	"time"

	"github.com/slok/orq/internal/model"
)

// SDK error sentinels, check them with [errors.Is].
var (
	// ErrNotFound is returned when a resource does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrAlreadyExists is returned when a resource with the same ID already exists.
	ErrAlreadyExists = errors.New("resource already exists")
	// ErrNotValid is returned on invalid input or operations.
	ErrNotValid = errors.New("not valid")
)

// RunStatus represents the state of a whole task run.
type RunStatus string

const (
	// RunStatusRunning indicates the run is in progress.
	RunStatusRunning RunStatus = "running"
	// RunStatusSucceeded indicates every subtask completed.
	RunStatusSucceeded RunStatus = "succeeded"
	// RunStatusFailed indicates at least one subtask exhausted its attempts.
	RunStatusFailed RunStatus = "failed"
)

// SubtaskStatus represents the terminal state of a subtask.
type SubtaskStatus string

const (
	// SubtaskStatusCompleted indicates the verifier judged the subtask done.
	SubtaskStatusCompleted SubtaskStatus = "completed"
	// SubtaskStatusExhausted indicates the attempt budget ran out without completion.
	SubtaskStatusExhausted SubtaskStatus = "exhausted"
)

// VerifierStatus is the judgement of the completion verifier for one attempt.
type VerifierStatus string

const (
	// VerifierStatusSuccess indicates the success criteria were met.
	VerifierStatusSuccess VerifierStatus = "success"
	// VerifierStatusFail indicates the success criteria were not met.
	VerifierStatusFail VerifierStatus = "fail"
	// VerifierStatusUncertain indicates the verifier could not judge the frames.
	VerifierStatusUncertain VerifierStatus = "uncertain"
	// VerifierStatusError indicates a collaborator call failed and the attempt
	// was recorded as failed without a real verification.
	VerifierStatusError VerifierStatus = "error"
)

// Task is an ordered sequence of subtasks. The declared order is the
// execution order.
type Task struct {
	// Name identifies the task in the run records.
	Name string
	// Subtasks are executed in declared order.
	Subtasks []Subtask
}

// Subtask is one instruction-scoped unit of work that requires verified
// completion before the task advances.
type Subtask struct {
	// Name identifies the subtask within the task.
	Name string
	// Instruction is the natural language instruction for the decision agent.
	Instruction string
	// SuccessCriteria is the natural language criteria for the verifier.
	SuccessCriteria string
	// Params are the initial motion params for the first attempt.
	Params Params
	// MaxAttempts is the attempt budget. Must be >= 1.
	MaxAttempts int
}

// Params are the motion parameters used by one attempt.
type Params struct {
	// Target is the motion target side ("left" or "right").
	Target string
	// Speed is the normalized arm speed, in [0.05, 1.2].
	Speed float64
	// ChunkDuration is the duration of one motion chunk, in [100ms, 800ms].
	ChunkDuration time.Duration
}

// Adjustment is a partial update to Params proposed by the verifier.
// Nil fields mean "keep the current value".
type Adjustment struct {
	Speed         *float64
	ChunkDuration *time.Duration
}

// Run is the record of one task execution returned by the SDK.
//
// This is a read-only snapshot. Use [Client.GetRun] to get the latest state.
type Run struct {
	// ID is the unique identifier (ULID) assigned when the run starts.
	ID string
	// TaskName is the name of the executed task.
	TaskName string
	// Status is the run outcome.
	Status RunStatus
	// HaltOnExhaustion is whether the run stopped at the first exhausted subtask.
	HaltOnExhaustion bool
	// CreatedAt is when the run started.
	CreatedAt time.Time
	// FinishedAt is when the run ended. Nil for runs that are still in
	// progress or that crashed before ending.
	FinishedAt *time.Time
	// Subtasks are the per-subtask outcomes in execution order.
	Subtasks []SubtaskResult
}

// SubtaskResult is the terminal outcome of one subtask, with its full sealed
// attempt history.
type SubtaskResult struct {
	Name       string
	Status     SubtaskStatus
	Annotation string
	Attempts   []Attempt
}

// Attempt is one sealed choose-action, execute, verify cycle within a subtask.
type Attempt struct {
	SubtaskName    string
	Index          int
	Action         string
	Reason         string
	Params         Params
	BeforeFrameRef string
	AfterFrameRef  string
	Execution      ExecutionReport
	Verifier       VerifierResult
	StartedAt      time.Time
	FinishedAt     time.Time
}

// ExecutionReport summarizes one motion execution.
type ExecutionReport struct {
	Steps            int
	TerminatedReason string
	CommandedDX      float64
}

// VerifierResult is the verifier judgement for one attempt.
type VerifierResult struct {
	Complete    bool
	Status      VerifierStatus
	Confidence  float64
	FailureMode string
	Adjustment  *Adjustment
	Rationale   string
}

// --- Conversion helpers ---

func toInternalTask(t Task) model.Task {
	subtasks := make([]model.Subtask, len(t.Subtasks))
	for i, st := range t.Subtasks {
		subtasks[i] = model.Subtask{
			Name:            st.Name,
			Instruction:     st.Instruction,
			SuccessCriteria: st.SuccessCriteria,
			Params: model.Params{
				Target:        st.Params.Target,
				Speed:         st.Params.Speed,
				ChunkDuration: st.Params.ChunkDuration,
			},
			MaxAttempts: st.MaxAttempts,
		}
	}

	return model.Task{Name: t.Name, Subtasks: subtasks}
}

func fromInternalRun(r model.Run) Run {
	run := Run{
		ID:               r.ID,
		TaskName:         r.TaskName,
		Status:           RunStatus(r.Status),
		HaltOnExhaustion: r.HaltOnExhaustion,
		CreatedAt:        r.CreatedAt,
		FinishedAt:       r.FinishedAt,
	}

	for _, st := range r.Subtasks {
		run.Subtasks = append(run.Subtasks, fromInternalSubtaskResult(st))
	}

	return run
}

func fromInternalRunList(rs []model.Run) []Run {
	result := make([]Run, len(rs))
	for i, r := range rs {
		result[i] = fromInternalRun(r)
	}
	return result
}

func fromInternalSubtaskResult(r model.SubtaskResult) SubtaskResult {
	result := SubtaskResult{
		Name:       r.Name,
		Status:     SubtaskStatus(r.Status),
		Annotation: r.Annotation,
	}

	for _, att := range r.Attempts {
		result.Attempts = append(result.Attempts, fromInternalAttempt(att))
	}

	return result
}

func fromInternalAttempt(a model.Attempt) Attempt {
	att := Attempt{
		SubtaskName: a.SubtaskName,
		Index:       a.Index,
		Action:      string(a.Action),
		Reason:      a.Reason,
		Params: Params{
			Target:        a.Params.Target,
			Speed:         a.Params.Speed,
			ChunkDuration: a.Params.ChunkDuration,
		},
		BeforeFrameRef: a.BeforeFrameRef,
		AfterFrameRef:  a.AfterFrameRef,
		Execution: ExecutionReport{
			Steps:            a.Execution.Steps,
			TerminatedReason: a.Execution.TerminatedReason,
			CommandedDX:      a.Execution.CommandedDX,
		},
		Verifier: VerifierResult{
			Complete:    a.Verifier.Complete,
			Status:      VerifierStatus(a.Verifier.Status),
			Confidence:  a.Verifier.Confidence,
			FailureMode: a.Verifier.FailureMode,
			Rationale:   a.Verifier.Rationale,
		},
		StartedAt:  a.StartedAt,
		FinishedAt: a.FinishedAt,
	}

	if a.Verifier.Adjustment != nil {
		att.Verifier.Adjustment = &Adjustment{
			Speed:         a.Verifier.Adjustment.Speed,
			ChunkDuration: a.Verifier.Adjustment.ChunkDuration,
		}
	}

	return att
}

func toInternalStatusFilter(opts *ListRunsOpts) *model.RunStatus {
	if opts == nil || opts.Status == nil {
		return nil
	}
	s := model.RunStatus(*opts.Status)
	return &s
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case isInternalError(err, model.ErrNotFound):
		return joinErrors(err, ErrNotFound)
	case isInternalError(err, model.ErrAlreadyExists):
		return joinErrors(err, ErrAlreadyExists)
	case isInternalError(err, model.ErrNotValid):
		return joinErrors(err, ErrNotValid)
	default:
		return err
	}
}

func isInternalError(err, target error) bool {
	for {
		if err == target {
			return true
		}
		unwrapped := unwrapSingle(err)
		if unwrapped == nil {
			return false
		}
		err = unwrapped
	}
}

func unwrapSingle(err error) error {
	u, ok := err.(interface{ Unwrap() error })
	if !ok {
		return nil
	}
	return u.Unwrap()
}

func joinErrors(original, sentinel error) error {
	return &mappedError{original: original, sentinel: sentinel}
}

type mappedError struct {
	original error
	sentinel error
}

func (e *mappedError) Error() string { return e.original.Error() }

func (e *mappedError) Is(target error) bool {
	return target == e.sentinel
}

func (e *mappedError) Unwrap() error { return e.original }
