package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/orq/internal/app/runslist"
	"github.com/slok/orq/internal/model"
	"github.com/slok/orq/internal/printer"
	"github.com/slok/orq/internal/storage/sqlite"
)

type RunsListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	statusFilter string
	format       string
}

// NewRunsListCommand returns the runs list command.
func NewRunsListCommand(rootCmd *RootCommand, runsCmd *kingpin.CmdClause) *RunsListCommand {
	c := &RunsListCommand{rootCmd: rootCmd}

	c.Cmd = runsCmd.Command("list", "List all recorded runs.")
	c.Cmd.Flag("status", "Filter by status (running, succeeded, failed).").StringVar(&c.statusFilter)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c RunsListCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunsListCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	// Parse status filter if provided.
	var statusFilter *model.RunStatus
	if c.statusFilter != "" {
		status := model.RunStatus(strings.ToLower(c.statusFilter))
		// Validate status value.
		switch status {
		case model.RunStatusRunning, model.RunStatusSucceeded, model.RunStatusFailed:
			statusFilter = &status
		default:
			return fmt.Errorf("invalid status filter: %s (must be: running, succeeded, failed)", c.statusFilter)
		}
	}

	// Initialize storage (SQLite).
	repo, err := sqlite.NewStore(ctx, sqlite.StoreConfig{
		DBPath: c.rootCmd.DBPath,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create store: %w", err)
	}
	defer repo.Close()

	// Create list service.
	svc, err := runslist.NewService(runslist.ServiceConfig{
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	// Execute list.
	runs, err := svc.Run(ctx, runslist.Request{
		StatusFilter: statusFilter,
	})
	if err != nil {
		return fmt.Errorf("could not list runs: %w", err)
	}

	// Print output.
	var p printer.Printer
	switch c.format {
	case "json":
		p = printer.NewJSONPrinter(c.rootCmd.Stdout)
	default: // table
		p = printer.NewTablePrinter(c.rootCmd.Stdout)
	}

	if err := p.PrintRunList(runs); err != nil {
		return fmt.Errorf("could not print list: %w", err)
	}

	return nil
}
