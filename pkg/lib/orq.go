package lib

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/slok/orq/internal/log"
	"github.com/slok/orq/internal/storage/jsonl"
	"github.com/slok/orq/internal/storage/sqlite"
)

const (
	defaultDataDir = ".orq"
	defaultDBFile  = "orq.db"
)

// Config configures the SDK client.
//
// All fields are optional and have sensible defaults. At minimum, an empty
// Config{} will use ~/.orq/orq.db as the run index and ~/.orq/runs for run
// artifacts, with an in-process simulated environment and deterministic
// collaborators.
type Config struct {
	// DBPath is the SQLite run index path.
	// Default: ~/.orq/orq.db.
	DBPath string

	// DataDir is the base directory for run artifacts (step logs and frames).
	// Default: ~/.orq/runs.
	DataDir string

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger

	// ControlHz is the environment control loop frequency.
	// Default: 50.
	ControlHz int

	// ArmLimit is the arm position bound of the simulated environment.
	// Default: 1.0.
	ArmLimit float64

	// CrossingMarginPx is how many pixels past the center line the marker
	// must be for the verifier to judge a crossing.
	// Default: 4.
	CrossingMarginPx int

	// MaxCollaboratorRetries is how many times a failed agent or verifier
	// call is retried before the attempt is sealed with an error result.
	// Default: 0 (no retries).
	MaxCollaboratorRetries int

	// CallTimeout bounds every single agent and verifier call.
	// Default: 30s.
	CallTimeout time.Duration
}

func (c *Config) defaults() error {
	if c.DBPath == "" || c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("could not get user home dir: %w", err)
		}
		if c.DBPath == "" {
			c.DBPath = filepath.Join(home, defaultDataDir, defaultDBFile)
		}
		if c.DataDir == "" {
			c.DataDir = filepath.Join(home, defaultDataDir, "runs")
		}
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Client is the main SDK entry point for running tasks and inspecting run
// records programmatically.
//
// Create a Client with [New] and release its resources with [Client.Close].
// A Client is safe for concurrent use.
type Client struct {
	index     *sqlite.Store
	artifacts *jsonl.Store
	logger    log.Logger

	controlHz        int
	armLimit         float64
	crossingMarginPx int
	maxRetries       int
	callTimeout      time.Duration

	closeFn func() error
}

// New creates a new SDK client backed by a SQLite run index and a directory
// of run artifacts.
//
// The caller must call [Client.Close] when done to release the database
// connection. Typically used with defer:
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	index, err := sqlite.NewStore(ctx, sqlite.StoreConfig{
		DBPath: cfg.DBPath,
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create run index: %w", err)
	}

	artifacts, err := jsonl.NewStore(jsonl.StoreConfig{
		RootDir: cfg.DataDir,
		Logger:  cfg.Logger,
	})
	if err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("could not create artifact store: %w", err)
	}

	return &Client{
		index:            index,
		artifacts:        artifacts,
		logger:           cfg.Logger,
		controlHz:        cfg.ControlHz,
		armLimit:         cfg.ArmLimit,
		crossingMarginPx: cfg.CrossingMarginPx,
		maxRetries:       cfg.MaxCollaboratorRetries,
		callTimeout:      cfg.CallTimeout,
		closeFn:          index.Close,
	}, nil
}

// Close releases resources held by the client, including the database connection.
// After Close returns, the client must not be used.
func (c *Client) Close() error {
	if c.closeFn != nil {
		return c.closeFn()
	}
	return nil
}
