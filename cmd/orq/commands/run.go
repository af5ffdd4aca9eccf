package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/orq/internal/agent"
	agentopenai "github.com/slok/orq/internal/agent/openai"
	"github.com/slok/orq/internal/agent/rulebased"
	"github.com/slok/orq/internal/app/taskrun"
	"github.com/slok/orq/internal/env/arm1d"
	"github.com/slok/orq/internal/log"
	"github.com/slok/orq/internal/model"
	"github.com/slok/orq/internal/motion"
	"github.com/slok/orq/internal/openai"
	"github.com/slok/orq/internal/printer"
	"github.com/slok/orq/internal/storage"
	"github.com/slok/orq/internal/storage/io"
	"github.com/slok/orq/internal/storage/jsonl"
	"github.com/slok/orq/internal/storage/sqlite"
	"github.com/slok/orq/internal/verifier"
	verifieropenai "github.com/slok/orq/internal/verifier/openai"
	"github.com/slok/orq/internal/verifier/stub"
)

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	taskFile       string
	format         string
	continueOnFail bool
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Run a task from a YAML task file.")
	c.Cmd.Arg("task-file", "Path to the task YAML file.").Required().StringVar(&c.taskFile)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")
	c.Cmd.Flag("continue-on-exhaustion", "Keep running remaining subtasks after one exhausts its attempts.").BoolVar(&c.continueOnFail)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	// Load the task file.
	taskPath := c.taskFile
	if !filepath.IsAbs(taskPath) {
		absPath, err := filepath.Abs(taskPath)
		if err != nil {
			return fmt.Errorf("could not resolve task file path: %w", err)
		}
		taskPath = absPath
	}

	taskRepo := io.NewTaskYAMLRepository(os.DirFS("/"))
	task, settings, err := taskRepo.GetTask(ctx, taskPath[1:])
	if err != nil {
		return fmt.Errorf("could not load task: %w", err)
	}

	// Initialize the simulated environment.
	environment, err := arm1d.NewEnvironment(arm1d.EnvironmentConfig{
		ControlHz: settings.Env.ControlHz,
		ArmLimit:  settings.Env.ArmLimit,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("could not create environment: %w", err)
	}
	defer environment.Close()

	executor, err := motion.NewChunkExecutor(motion.ChunkExecutorConfig{
		Environment: environment,
		ControlHz:   settings.Env.ControlHz,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("could not create executor: %w", err)
	}

	// Initialize collaborators.
	ag, err := newAgent(settings, logger)
	if err != nil {
		return fmt.Errorf("could not create agent: %w", err)
	}

	vf, err := newVerifier(settings, logger)
	if err != nil {
		return fmt.Errorf("could not create verifier: %w", err)
	}

	// Initialize storage (artifact directory plus SQLite index).
	artifacts, err := jsonl.NewStore(jsonl.StoreConfig{
		RootDir: c.rootCmd.DataDir,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("could not create artifact store: %w", err)
	}

	index, err := sqlite.NewStore(ctx, sqlite.StoreConfig{
		DBPath: c.rootCmd.DBPath,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create store: %w", err)
	}
	defer index.Close()

	// Create run service.
	svc, err := taskrun.NewService(taskrun.ServiceConfig{
		Environment:            environment,
		Agent:                  ag,
		Verifier:               vf,
		Executor:               executor,
		RunLog:                 storage.NewMultiRunLog(artifacts, index),
		FrameStore:             artifacts,
		MaxCollaboratorRetries: settings.Collaborators.MaxRetries,
		CallTimeout:            settings.Collaborators.Timeout,
		Logger:                 logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	halt := settings.HaltOnExhaustion
	if c.continueOnFail {
		halt = false
	}

	// Execute the run.
	run, err := svc.Run(ctx, taskrun.RunOptions{
		Task:             task,
		HaltOnExhaustion: halt,
	})
	if err != nil {
		return fmt.Errorf("could not run task: %w", err)
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

	if run.Status != model.RunStatusSucceeded {
		return fmt.Errorf("run %s finished with status %s", run.ID, run.Status)
	}

	return nil
}

func newAgent(settings io.RunSettings, logger log.Logger) (agent.Agent, error) {
	switch settings.Agent.Type {
	case io.AgentTypeRuleBased:
		return rulebased.NewAgent(rulebased.AgentConfig{Logger: logger})
	case io.AgentTypeOpenAI:
		client, err := openai.NewClient(openai.ClientConfig{
			BaseURL: settings.Agent.BaseURL,
			APIKey:  os.Getenv(settings.Agent.APIKeyEnv),
			Model:   settings.Agent.Model,
			Timeout: settings.Collaborators.Timeout,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create openai client: %w", err)
		}
		return agentopenai.NewAgent(agentopenai.AgentConfig{Client: client, Logger: logger})
	default:
		return nil, fmt.Errorf("unknown agent type: %s", settings.Agent.Type)
	}
}

func newVerifier(settings io.RunSettings, logger log.Logger) (verifier.Verifier, error) {
	switch settings.Verifier.Type {
	case io.VerifierTypeStub:
		return stub.NewVerifier(stub.VerifierConfig{
			CrossingMarginPx: settings.Verifier.CrossingMarginPx,
			Logger:           logger,
		})
	case io.VerifierTypeOpenAI:
		client, err := openai.NewClient(openai.ClientConfig{
			BaseURL: settings.Verifier.BaseURL,
			APIKey:  os.Getenv(settings.Verifier.APIKeyEnv),
			Model:   settings.Verifier.Model,
			Timeout: settings.Collaborators.Timeout,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create openai client: %w", err)
		}
		return verifieropenai.NewVerifier(verifieropenai.VerifierConfig{Client: client, Logger: logger})
	default:
		return nil, fmt.Errorf("unknown verifier type: %s", settings.Verifier.Type)
	}
}
