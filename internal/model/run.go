package model

import (
	"time"
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

// SubtaskStatus represents the terminal state of a subtask. These are the
// only two terminal states a subtask can reach.
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

// FrameSlot identifies the position of a captured frame within an attempt.
type FrameSlot string

const (
	// FrameSlotBefore is the frame captured before motion execution.
	FrameSlotBefore FrameSlot = "before"
	// FrameSlotAfter is the frame captured after motion execution.
	FrameSlotAfter FrameSlot = "after"
)

// Frame is an opaque image artifact captured from the environment.
type Frame struct {
	PNG    []byte
	Width  int
	Height int
}

// VerifierResult is the verifier judgement for one attempt.
type VerifierResult struct {
	Complete    bool
	Status      VerifierStatus
	Confidence  float64
	FailureMode string
	Adjustment  *Adjustment // Nil when the verifier proposes no change.
	Rationale   string
}

// ExecutionReport summarizes one motion execution.
type ExecutionReport struct {
	Steps            int
	TerminatedReason string
	CommandedDX      float64
}

// Attempt is one choose-action -> execute -> capture -> verify cycle within a
// subtask. Never mutated after being sealed and appended to the run log.
type Attempt struct {
	SubtaskName    string
	Index          int // 1-based, strictly increasing per subtask.
	Action         Action
	Reason         string // Decision agent rationale for the chosen action.
	Params         Params // Params used by this attempt.
	BeforeFrameRef string
	AfterFrameRef  string
	Execution      ExecutionReport
	Verifier       VerifierResult
	StartedAt      time.Time
	FinishedAt     time.Time
}

// SubtaskResult is the terminal outcome of one subtask, with its full sealed
// attempt history.
type SubtaskResult struct {
	Name       string
	Status     SubtaskStatus
	Annotation string // Extra terminal-state context (e.g. "cancelled").
	Attempts   []Attempt
}

// Run is the record of one task execution: the ordered sealed attempts across
// all subtasks plus each subtask's terminal outcome.
type Run struct {
	ID               string // ULID.
	TaskName         string
	Status           RunStatus
	HaltOnExhaustion bool
	CreatedAt        time.Time
	FinishedAt       *time.Time
	Subtasks         []SubtaskResult
}

// Attempts returns every sealed attempt of the run in execution order.
func (r Run) Attempts() []Attempt {
	var attempts []Attempt
	for _, st := range r.Subtasks {
		attempts = append(attempts, st.Attempts...)
	}
	return attempts
}

// CountByStatus counts subtask results by terminal status.
func CountByStatus(results []SubtaskResult) (completed, exhausted int) {
	for _, r := range results {
		switch r.Status {
		case SubtaskStatusCompleted:
			completed++
		case SubtaskStatusExhausted:
			exhausted++
		}
	}
	return
}
