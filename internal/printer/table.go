package printer

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/slok/orq/internal/model"
)

// TablePrinter prints run information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintRunList prints runs in a table format.
func (t *TablePrinter) PrintRunList(runs []model.Run) error {
	if len(runs) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tTASK\tSTATUS\tCREATED")

	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.TaskName, r.Status, TimeAgo(r.CreatedAt))
	}

	return nil
}

// PrintRun prints one run with its full subtask and attempt history.
func (t *TablePrinter) PrintRun(run model.Run) error {
	fmt.Fprintf(t.writer, "ID:        %s\n", run.ID)
	fmt.Fprintf(t.writer, "Task:      %s\n", run.TaskName)
	fmt.Fprintf(t.writer, "Status:    %s\n", run.Status)
	fmt.Fprintf(t.writer, "Created:   %s\n", FormatTimestamp(run.CreatedAt))
	if run.FinishedAt != nil {
		fmt.Fprintf(t.writer, "Finished:  %s\n", FormatTimestamp(*run.FinishedAt))
	}

	for _, st := range run.Subtasks {
		fmt.Fprintf(t.writer, "\nSubtask %s: %s", st.Name, st.Status)
		if st.Annotation != "" {
			fmt.Fprintf(t.writer, " (%s)", st.Annotation)
		}
		fmt.Fprintln(t.writer)

		if len(st.Attempts) == 0 {
			continue
		}

		tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  #\tACTION\tSPEED\tCHUNK\tVERDICT\tCONF\tDETAIL")
		for _, a := range st.Attempts {
			detail := a.Verifier.FailureMode
			if detail == "" {
				detail = a.Verifier.Rationale
			}
			fmt.Fprintf(tw, "  %d\t%s\t%.2f\t%s\t%s\t%.2f\t%s\n",
				a.Index,
				a.Action,
				a.Params.Speed,
				a.Params.ChunkDuration,
				a.Verifier.Status,
				a.Verifier.Confidence,
				detail,
			)
		}
		tw.Flush()
	}

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}
