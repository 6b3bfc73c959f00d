// Package runtime defines the plugin contract between the execution engine
// and the code that actually computes a run.
//
// A Runtime turns an executable, a task and a run into a merged run spec
// (Build) and then into a status (Run). Runtimes are selected by kind
// through a Registry. Optional behaviour is declared by implementing the
// capability interfaces Stopper and InputResolver.
package runtime

import (
	"context"

	"github.com/digitalhub/dhsdk/pkg/entity"
)

// Runtime builds and executes runs of one executable kind.
type Runtime interface {
	// Build returns the run spec obtained by layering executable, task and
	// run specs. Later layers win.
	Build(ctx context.Context, executable, task, run *entity.Entity) (map[string]any, error)

	// Run executes a built run and returns the status to merge into it.
	// The status usually carries "state".
	Run(ctx context.Context, run *entity.Entity) (map[string]any, error)
}

// Stopper is implemented by runtimes that can interrupt a local run.
type Stopper interface {
	Stop(ctx context.Context, run *entity.Entity) error
}

// InputResolver is implemented by runtimes that consume spec.inputs. When
// ResolvesInputs returns true the engine materializes input keys before
// calling Run and passes them through the context.
type InputResolver interface {
	ResolvesInputs() bool
}

// Capabilities summarizes the optional interfaces a runtime implements.
type Capabilities struct {
	Stop   bool
	Inputs bool
}

// CapabilitiesOf inspects rt.
func CapabilitiesOf(rt Runtime) Capabilities {
	var caps Capabilities
	if _, ok := rt.(Stopper); ok {
		caps.Stop = true
	}
	if r, ok := rt.(InputResolver); ok {
		caps.Inputs = r.ResolvesInputs()
	}
	return caps
}

type inputsKey struct{}

// WithInputs attaches resolved inputs to ctx.
func WithInputs(ctx context.Context, inputs map[string]map[string]any) context.Context {
	return context.WithValue(ctx, inputsKey{}, inputs)
}

// InputsFromContext returns the inputs resolved for the current run. ok is
// false when the engine resolved none.
func InputsFromContext(ctx context.Context) (inputs map[string]map[string]any, ok bool) {
	inputs, ok = ctx.Value(inputsKey{}).(map[string]map[string]any)
	return inputs, ok
}
