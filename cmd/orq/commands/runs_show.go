package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/orq/internal/app/runsshow"
	"github.com/slok/orq/internal/printer"
	"github.com/slok/orq/internal/storage/jsonl"
	"github.com/slok/orq/internal/storage/sqlite"
)

type RunsShowCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	runID         string
	format        string
	fromArtifacts bool
}

// NewRunsShowCommand returns the runs show command.
func NewRunsShowCommand(rootCmd *RootCommand, runsCmd *kingpin.CmdClause) *RunsShowCommand {
	c := &RunsShowCommand{rootCmd: rootCmd}

	c.Cmd = runsCmd.Command("show", "Show a run with its subtasks and attempts.")
	c.Cmd.Arg("run-id", "ID of the run to show.").Required().StringVar(&c.runID)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")
	c.Cmd.Flag("from-artifacts", "Replay the attempt history from the run artifact directory instead of the index.").BoolVar(&c.fromArtifacts)

	return c
}

func (c RunsShowCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunsShowCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	// Initialize storage (SQLite).
	repo, err := sqlite.NewStore(ctx, sqlite.StoreConfig{
		DBPath: c.rootCmd.DBPath,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create store: %w", err)
	}
	defer repo.Close()

	// Storage for run artifacts (step files and frames).
	artifacts, err := jsonl.NewStore(jsonl.StoreConfig{
		RootDir: c.rootCmd.DataDir,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("could not create artifact store: %w", err)
	}

	// Create show service.
	svc, err := runsshow.NewService(runsshow.ServiceConfig{
		Repository: repo,
		Artifacts:  artifacts,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	// Execute show.
	run, err := svc.Run(ctx, runsshow.Request{RunID: c.runID, FromArtifacts: c.fromArtifacts})
	if err != nil {
		return fmt.Errorf("could not show run: %w", err)
	}

	// Print output.
	var p printer.Printer
	switch c.format {
	case "json":
		p = printer.NewJSONPrinter(c.rootCmd.Stdout)
	default: // table
		p = printer.NewTablePrinter(c.rootCmd.Stdout)
	}

	if err := p.PrintRun(*run); err != nil {
		return fmt.Errorf("could not print run: %w", err)
	}

	return nil
}
