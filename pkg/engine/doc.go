// Package engine drives runs through their lifecycle.
//
// # States
//
//	CREATED -> BUILT -> RUNNING -> COMPLETED | ERROR | STOPPED
//
// Build asks the run's Runtime to merge the executable, task and run specs
// and moves the run to BUILT. Run executes it. For local runs the engine
// owns the RUNNING transition and records ERROR when the Runtime fails; for
// remote runs the backend owns the state and the engine only merges the
// rest of the returned status.
//
// # Tasks
//
// NewTask is an upsert keyed by (executable, action): repeating the same
// request updates the existing task instead of creating a second one.
//
// # Local execution
//
// RunFunction performs Build and Run for local runs on a Detacher, a single
// worker goroutine, and blocks until they finish.
//
// # Usage
//
//	store := entities.NewStore(client.NewLocalClient())
//	runtimes := runtime.NewRegistry()
//	_ = runtimes.Register("python", myRuntime)
//
//	eng := engine.New(store, runtimes)
//	defer eng.Close()
//
//	run, err := eng.RunFunction(ctx, fn, engine.RunOptions{Action: "job", LocalExecution: true})
package engine
