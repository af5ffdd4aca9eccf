package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/orq/internal/app/runsrm"
	"github.com/slok/orq/internal/printer"
	"github.com/slok/orq/internal/storage/jsonl"
	"github.com/slok/orq/internal/storage/sqlite"
)

type RunsRmCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	runID string
}

// NewRunsRmCommand returns the runs rm command.
func NewRunsRmCommand(rootCmd *RootCommand, runsCmd *kingpin.CmdClause) *RunsRmCommand {
	c := &RunsRmCommand{rootCmd: rootCmd}

	c.Cmd = runsCmd.Command("rm", "Remove a run and its artifacts.")
	c.Cmd.Arg("run-id", "ID of the run to remove.").Required().StringVar(&c.runID)

	return c
}

func (c RunsRmCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunsRmCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	// Initialize storage (SQLite index and artifact directory).
	repo, err := sqlite.NewStore(ctx, sqlite.StoreConfig{
		DBPath: c.rootCmd.DBPath,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create store: %w", err)
	}
	defer repo.Close()

	artifacts, err := jsonl.NewStore(jsonl.StoreConfig{
		RootDir: c.rootCmd.DataDir,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("could not create artifact store: %w", err)
	}

	// Create remove service.
	svc, err := runsrm.NewService(runsrm.ServiceConfig{
		Repository: repo,
		Artifacts:  artifacts,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	// Execute remove.
	run, err := svc.Run(ctx, runsrm.Request{RunID: c.runID})
	if err != nil {
		return fmt.Errorf("could not remove run: %w", err)
	}

	p := printer.NewTablePrinter(c.rootCmd.Stdout)
	if err := p.PrintMessage(fmt.Sprintf("Run %s removed.", run.ID)); err != nil {
		return fmt.Errorf("could not print message: %w", err)
	}

	return nil
}
