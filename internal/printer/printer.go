package printer

import "github.com/slok/orq/internal/model"

// Printer knows how to print run information in different formats.
type Printer interface {
	PrintRunList(runs []model.Run) error
	PrintRun(run model.Run) error
	PrintMessage(msg string) error
}
