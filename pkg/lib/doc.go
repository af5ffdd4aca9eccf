// Package lib provides a Go SDK for running orq tasks programmatically.
//
// This package allows applications to execute embodied tasks and inspect
// their run records without shelling out to the orq CLI binary. It is useful
// for scripting, automation, and building tools on top of orq.
//
// # Quick Start
//
// Create a client, run a task, and inspect the result:
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	run, err := client.RunTask(ctx, lib.Task{
//	    Name: "cross-the-line",
//	    Subtasks: []lib.Subtask{
//	        {
//	            Name:            "reach-right",
//	            Instruction:     "Move the arm marker past the center line to the right.",
//	            SuccessCriteria: "The marker is visibly right of the center line.",
//	            Params:          lib.Params{Target: "right", Speed: 0.4, ChunkDuration: 300 * time.Millisecond},
//	            MaxAttempts:     5,
//	        },
//	    },
//	}, nil)
//
//	fmt.Println(run.ID, run.Status)
//
// # Run Records
//
// Every run is recorded in a SQLite index plus an artifact directory holding
// the append-only attempt log and the captured frames. List and inspect them:
//
//	runs, _ := client.ListRuns(ctx, nil)
//	full, _ := client.GetRun(ctx, runs[0].ID)
//	client.RemoveRun(ctx, runs[0].ID)
//
// Attempt records are sealed and durable as soon as each attempt finishes, so
// [Client.GetRun] reconstructs the history of runs that crashed mid-execution.
//
// # Collaborators
//
// The SDK runs tasks against the in-process simulated environment with the
// deterministic rule-based agent and the frame-inspecting stub verifier. For
// LLM-backed collaborators use the orq CLI with a task file.
//
// # Error Handling
//
// All methods return errors that can be inspected with [errors.Is]:
//
//   - [ErrNotFound]: Run does not exist.
//   - [ErrAlreadyExists]: Run with the same ID is already recorded.
//   - [ErrNotValid]: Invalid task definition or request.
//
// # Testing
//
// Use temporary paths to write tests without touching the user's run records:
//
//	client, _ := lib.New(ctx, lib.Config{
//	    DBPath:  filepath.Join(t.TempDir(), "test.db"),
//	    DataDir: t.TempDir(),
//	})
//	defer client.Close()
//
// # Thread Safety
//
// A [Client] is safe for concurrent use from multiple goroutines. The run
// index uses SQLite with WAL mode, and the environment and collaborators are
// created per-run.
package lib
