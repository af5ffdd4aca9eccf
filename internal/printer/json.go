package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/orq/internal/model"
)

// JSONPrinter prints run information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// listItem represents a run in the list output (subset of fields).
type listItem struct {
	ID         string     `json:"id"`
	TaskName   string     `json:"task_name"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// runOutput represents the full run output.
type runOutput struct {
	ID         string          `json:"id"`
	TaskName   string          `json:"task_name"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Subtasks   []subtaskOutput `json:"subtasks"`
}

type subtaskOutput struct {
	Name       string          `json:"name"`
	Status     string          `json:"status"`
	Annotation string          `json:"annotation,omitempty"`
	Attempts   []attemptOutput `json:"attempts"`
}

type attemptOutput struct {
	Index          int     `json:"index"`
	Action         string  `json:"action"`
	Reason         string  `json:"reason,omitempty"`
	Speed          float64 `json:"speed"`
	ChunkDurationS float64 `json:"chunk_duration_s"`
	VerdictStatus  string  `json:"verdict_status"`
	Confidence     float64 `json:"confidence"`
	FailureMode    string  `json:"failure_mode,omitempty"`
	Rationale      string  `json:"rationale,omitempty"`
	BeforeFrame    string  `json:"before_frame,omitempty"`
	AfterFrame     string  `json:"after_frame,omitempty"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintRunList prints runs in JSON format with a subset of fields.
func (j *JSONPrinter) PrintRunList(runs []model.Run) error {
	items := make([]listItem, len(runs))
	for i, r := range runs {
		items[i] = listItem{
			ID:         r.ID,
			TaskName:   r.TaskName,
			Status:     string(r.Status),
			CreatedAt:  r.CreatedAt.UTC(),
			FinishedAt: utcTimePtr(r.FinishedAt),
		}
	}

	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

// PrintRun prints one run with its full history in JSON format.
func (j *JSONPrinter) PrintRun(run model.Run) error {
	output := runOutput{
		ID:         run.ID,
		TaskName:   run.TaskName,
		Status:     string(run.Status),
		CreatedAt:  run.CreatedAt.UTC(),
		FinishedAt: utcTimePtr(run.FinishedAt),
		Subtasks:   []subtaskOutput{},
	}

	for _, st := range run.Subtasks {
		sub := subtaskOutput{
			Name:       st.Name,
			Status:     string(st.Status),
			Annotation: st.Annotation,
			Attempts:   []attemptOutput{},
		}
		for _, a := range st.Attempts {
			sub.Attempts = append(sub.Attempts, attemptOutput{
				Index:          a.Index,
				Action:         string(a.Action),
				Reason:         a.Reason,
				Speed:          a.Params.Speed,
				ChunkDurationS: a.Params.ChunkDuration.Seconds(),
				VerdictStatus:  string(a.Verifier.Status),
				Confidence:     a.Verifier.Confidence,
				FailureMode:    a.Verifier.FailureMode,
				Rationale:      a.Verifier.Rationale,
				BeforeFrame:    a.BeforeFrameRef,
				AfterFrame:     a.AfterFrameRef,
			})
		}
		output.Subtasks = append(output.Subtasks, sub)
	}

	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	output := messageOutput{Message: msg}
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

func utcTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
