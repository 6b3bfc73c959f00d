package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/digitalhub/dhsdk/pkg/entities"
	"github.com/digitalhub/dhsdk/pkg/entity"
	"github.com/digitalhub/dhsdk/pkg/runtime"
	"github.com/digitalhub/dhsdk/pkg/telemetry"
)

// DefaultPollInterval is the delay between two polls in Wait.
const DefaultPollInterval = 5 * time.Second

// Run spec fields written and read by the engine.
const (
	SpecTask           = "task"
	SpecLocalExecution = "local_execution"
	SpecInputs         = "inputs"
)

// EntityLookup resolves the executable and task a run points at.
type EntityLookup interface {
	ReadExecutable(ctx context.Context, key string) (*entity.Entity, error)
	ReadTask(ctx context.Context, key string) (*entity.Entity, error)
}

// Engine drives tasks and runs through their lifecycle.
type Engine struct {
	store        *entities.Store
	lookup       EntityLookup
	runtimes     *runtime.Registry
	detacher     *Detacher
	pollInterval time.Duration
	tel          *telemetry.Telemetry
	log          *telemetry.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLookup replaces the store as the source of executables and tasks.
func WithLookup(l EntityLookup) Option {
	return func(e *Engine) { e.lookup = l }
}

// WithPollInterval sets the delay between polls in Wait.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) { e.pollInterval = d }
}

// WithTelemetry attaches logging, tracing and metrics.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(e *Engine) { e.tel = tel }
}

// New creates an engine persisting through store and resolving runtimes
// from runtimes.
func New(store *entities.Store, runtimes *runtime.Registry, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		lookup:       store,
		runtimes:     runtimes,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.tel = telemetry.OrNop(e.tel)
	e.log = e.tel.Logger.NewComponentLogger("engine")
	e.detacher = NewDetacher()
	return e
}

// Close stops the local execution worker.
func (e *Engine) Close() {
	e.detacher.Close()
}

// RunOptions configure RunFunction.
type RunOptions struct {
	// Action is the task kind, e.g. "job".
	Action string

	// LocalExecution runs Build and Run in process.
	LocalExecution bool

	// TaskSpec is layered into the task.
	TaskSpec map[string]any

	// RunSpec is layered into the run.
	RunSpec map[string]any

	// User is recorded as the creator of the task and run.
	User string
}

// NewTask returns the task of kind action for the executable at
// executableKey, updating it with spec when it already exists.
func (e *Engine) NewTask(ctx context.Context, project, executableKey, action string, spec map[string]any) (*entity.Entity, error) {
	op := e.tel.StartOperation(ctx, "engine.new_task", attribute.String("task.kind", action))
	task, err := e.newTask(op.Ctx, project, executableKey, action, spec, "")
	op.End(err)
	return task, err
}

func (e *Engine) newTask(ctx context.Context, project, executableKey, action string, spec map[string]any, user string) (*entity.Entity, error) {
	if action == "" {
		return nil, entity.NewMissingFieldError(entity.TypeTask, "kind")
	}
	parts, err := entity.ParseKey(executableKey)
	if err != nil {
		return nil, err
	}
	if !parts.Type.IsExecutable() {
		return nil, entity.NewUnsupportedError(parts.Type, parts.Kind, "run")
	}
	field := parts.Type.Singular()

	taskSpec := runtime.MergeSpecs(spec, map[string]any{field: executableKey})
	existing, err := e.store.List(ctx, entity.TypeTask, project, url.Values{
		field:  {executableKey},
		"kind": {action},
	})
	if err != nil {
		return nil, &RunError{Step: StepTask, Err: err}
	}

	if len(existing) > 0 {
		task := existing[0]
		task.Spec = taskSpec
		updated, err := e.store.Update(ctx, task)
		if err != nil {
			return nil, &RunError{Step: StepTask, Err: err}
		}
		e.log.WithEntity(string(entity.TypeTask), task.ID).Debug("task reused")
		return updated, nil
	}

	task, err := entities.TaskFromParameters(entities.Parameters{
		Project: project,
		Kind:    action,
		Spec:    taskSpec,
		User:    user,
	})
	if err != nil {
		return nil, err
	}
	created, err := e.store.Create(ctx, task)
	if err != nil {
		return nil, &RunError{Step: StepTask, Err: err}
	}
	e.log.WithEntity(string(entity.TypeTask), created.ID).Debug("task created")
	return created, nil
}

// NewRun creates a CREATED run of executable through task.
func (e *Engine) NewRun(ctx context.Context, executable, task *entity.Entity, opts RunOptions) (*entity.Entity, error) {
	execKey := executableKey(executable)
	spec := runtime.MergeSpecs(opts.RunSpec, map[string]any{
		SpecTask:                   entity.KeyOf(task),
		executable.Type.Singular(): execKey,
		SpecLocalExecution:         opts.LocalExecution,
	})

	run, err := entities.RunFromParameters(entities.Parameters{
		Project: executable.Project,
		Kind:    runtime.RunKind(executable.Kind),
		Spec:    spec,
		User:    opts.User,
	})
	if err != nil {
		return nil, err
	}
	created, err := e.store.Create(ctx, run)
	if err != nil {
		return nil, &RunError{RunID: run.ID, Kind: run.Kind, Step: StepTask, Err: err}
	}
	e.tel.Metrics.RecordRunTransition(created.Kind, string(entity.StateCreated))
	e.log.WithRunID(created.ID).Debug("run created")
	return created, nil
}

// RunFunction upserts the task for opts.Action, creates a run and builds
// it. Local runs are then executed on the detacher while the caller waits;
// remote runs are left to the backend.
func (e *Engine) RunFunction(ctx context.Context, executable *entity.Entity, opts RunOptions) (*entity.Entity, error) {
	if !executable.Type.IsExecutable() {
		return nil, entity.NewUnsupportedError(executable.Type, executable.Kind, "run")
	}

	op := e.tel.StartOperation(ctx, "engine.run_function",
		attribute.String("executable.key", executableKey(executable)),
		attribute.Bool("run.local", opts.LocalExecution),
	)
	ctx = op.Ctx

	task, err := e.newTask(ctx, executable.Project, executableKey(executable), opts.Action, opts.TaskSpec, opts.User)
	if err != nil {
		op.End(err)
		return nil, err
	}
	run, err := e.NewRun(ctx, executable, task, opts)
	if err != nil {
		op.End(err)
		return nil, err
	}

	if opts.LocalExecution {
		err = e.detacher.Do(ctx, func(ctx context.Context) error {
			if err := e.Build(ctx, run); err != nil {
				return err
			}
			return e.Run(ctx, run)
		})
	} else {
		err = e.Build(ctx, run)
	}
	op.End(err)
	return run, err
}

// Build merges the executable, task and run specs through the run's
// runtime and persists the run as BUILT.
func (e *Engine) Build(ctx context.Context, run *entity.Entity) (err error) {
	ctx, span := e.tel.Tracer.StartRunSpan(ctx, string(StepBuild), run.ID)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	rt, ok := e.runtimes.Lookup(run.Kind)
	if !ok {
		return e.fail(run, StepBuild, entity.NewUnsupportedError(entity.TypeRun, run.Kind, "build"))
	}
	if !entity.ValidTransition(run.State(), entity.StateBuilt) {
		return e.fail(run, StepBuild, entity.NewStateMismatchError(run.ID, entity.StateCreated, run.State()))
	}

	taskKey := run.SpecString(SpecTask)
	if taskKey == "" {
		return e.fail(run, StepBuild, entity.NewNotTrackedError(entity.TypeTask, run.ID))
	}
	execKey := runExecutableKey(run)
	if execKey == "" {
		return e.fail(run, StepBuild, entity.NewNotTrackedError(entity.TypeFunction, run.ID))
	}

	executable, err := e.lookup.ReadExecutable(ctx, execKey)
	if err != nil {
		return e.fail(run, StepBuild, err)
	}
	task, err := e.lookup.ReadTask(ctx, taskKey)
	if err != nil {
		return e.fail(run, StepBuild, err)
	}

	spec, err := rt.Build(ctx, executable, task, run)
	e.tel.Metrics.RecordRuntimeCall(runtime.ExecutableKind(run.Kind), string(StepBuild), err)
	if err != nil {
		return e.fail(run, StepBuild, err)
	}
	run.Spec = runtime.MergeSpecs(executable.Spec, task.Spec, run.Spec, spec)

	e.setState(run, entity.StateBuilt)
	if err := e.persist(ctx, run); err != nil {
		return e.fail(run, StepBuild, err)
	}
	return nil
}

// Run executes a built run. A local run must be BUILT and passes through
// RUNNING. When the runtime fails, a local run is persisted as ERROR and a
// remote run keeps its server-owned state; the message is recorded either
// way and the runtime error is returned joined with any persistence error.
func (e *Engine) Run(ctx context.Context, run *entity.Entity) (err error) {
	ctx, span := e.tel.Tracer.StartRunSpan(ctx, string(StepRun), run.ID)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()
	log := e.log.WithRunID(run.ID)

	if err := e.store.Refresh(ctx, run); err != nil {
		return e.fail(run, StepRun, err)
	}
	rt, ok := e.runtimes.Lookup(run.Kind)
	if !ok {
		return e.fail(run, StepRun, entity.NewUnsupportedError(entity.TypeRun, run.Kind, "run"))
	}
	local := isLocal(run)

	if local {
		if run.State() != entity.StateBuilt {
			return e.fail(run, StepRun, entity.NewStateMismatchError(run.ID, entity.StateBuilt, run.State()))
		}
		e.setState(run, entity.StateRunning)
		if err := e.persist(ctx, run); err != nil {
			return e.fail(run, StepRun, err)
		}
	}

	if runtime.CapabilitiesOf(rt).Inputs {
		ctx = runtime.WithInputs(ctx, e.resolveInputs(ctx, run))
	}

	status, runErr := rt.Run(ctx, run)
	e.tel.Metrics.RecordRuntimeCall(runtime.ExecutableKind(run.Kind), string(StepRun), runErr)

	status = maps.Clone(status)
	state, _ := status["state"].(string)
	delete(status, "state")
	if runErr == nil && local && state != "" {
		if verr := entity.State(state).Validate(); verr != nil {
			runErr = fmt.Errorf("runtime returned an %w", verr)
		}
	}

	if runErr != nil {
		if err := e.store.Refresh(ctx, run); err != nil {
			log.WithError(err).Warn("failed to refresh run after runtime error")
		}
		if local {
			e.setState(run, entity.StateError)
		}
		run.SetMessage(runErr.Error())
		persistErr := e.persist(ctx, run)
		log.WithError(runErr).Error("run failed")
		return e.fail(run, StepRun, errors.Join(runErr, persistErr))
	}

	if err := e.store.Refresh(ctx, run); err != nil {
		return e.fail(run, StepRun, err)
	}

	if local {
		if state == "" {
			state = string(entity.StateCompleted)
		}
		if !entity.ValidTransition(run.State(), entity.State(state)) {
			log.Warnf("runtime reported unexpected transition %s -> %s", run.State(), state)
		}
	}
	if run.Status == nil {
		run.Status = make(map[string]any)
	}
	for k, v := range status {
		run.Status[k] = v
	}
	if local {
		e.setState(run, entity.State(state))
	}

	if err := e.persist(ctx, run); err != nil {
		return e.fail(run, StepRun, err)
	}
	log.Infof("run finished in state %s", run.State())
	return nil
}

// Wait polls run until it reaches a terminal state or ctx ends.
func (e *Engine) Wait(ctx context.Context, run *entity.Entity) error {
	for {
		if err := e.store.Refresh(ctx, run); err != nil {
			return e.fail(run, StepWait, err)
		}
		if run.State().IsTerminal() {
			return nil
		}

		select {
		case <-ctx.Done():
			return e.fail(run, StepWait, ctx.Err())
		case <-time.After(e.pollInterval):
		}
	}
}

// Stop stops run. Remote runs are stopped by the backend. Local runs are
// stopped through the runtime when one is registered for the run's kind and
// it implements runtime.Stopper; otherwise Stop does nothing.
func (e *Engine) Stop(ctx context.Context, run *entity.Entity) error {
	if !isLocal(run) {
		if err := e.store.StopRun(ctx, run); err != nil {
			return e.fail(run, StepStop, err)
		}
		if err := e.store.Refresh(ctx, run); err != nil {
			return e.fail(run, StepStop, err)
		}
		return nil
	}

	rt, _ := e.runtimes.Lookup(run.Kind)
	stopper, ok := rt.(runtime.Stopper)
	if !ok {
		e.log.WithRunID(run.ID).Debug("runtime cannot stop runs, ignoring")
		return nil
	}
	if err := stopper.Stop(ctx, run); err != nil {
		return e.fail(run, StepStop, err)
	}
	if err := e.store.Refresh(ctx, run); err != nil {
		return e.fail(run, StepStop, err)
	}
	if !run.State().IsTerminal() {
		e.setState(run, entity.StateStopped)
		if err := e.persist(ctx, run); err != nil {
			return e.fail(run, StepStop, err)
		}
	}
	return nil
}

// Logs returns the logs of run: status.logs for local runs, the backend
// log endpoint otherwise.
func (e *Engine) Logs(ctx context.Context, run *entity.Entity) ([]map[string]any, error) {
	if !isLocal(run) {
		return e.store.RunLogs(ctx, run)
	}
	raw, _ := run.Status["logs"].([]any)
	logs := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case map[string]any:
			logs = append(logs, v)
		case string:
			logs = append(logs, map[string]any{"content": v})
		}
	}
	return logs, nil
}

// resolveInputs materializes every spec.inputs value that is an entity key.
// Failures are logged and skipped.
func (e *Engine) resolveInputs(ctx context.Context, run *entity.Entity) map[string]map[string]any {
	resolved := make(map[string]map[string]any)
	inputs, _ := run.Spec[SpecInputs].(map[string]any)
	for name, v := range inputs {
		key, ok := v.(string)
		if !ok || !entity.IsKey(key) {
			continue
		}
		parts, err := entity.ParseKey(key)
		if err != nil {
			e.log.WithError(err).Warnf("skipping input %s", name)
			continue
		}
		obj, err := e.store.Get(ctx, parts.Type, parts.Project, key)
		if err != nil {
			e.log.WithError(err).Warnf("skipping input %s", name)
			continue
		}
		m, err := obj.ToMap()
		if err != nil {
			continue
		}
		resolved[name] = m
	}
	return resolved
}

func (e *Engine) setState(run *entity.Entity, s entity.State) {
	from := run.State()
	run.SetState(s)
	e.tel.Metrics.RecordRunTransition(run.Kind, string(s))
	e.log.WithRunID(run.ID).Zerolog().Debug().
		Str("from", string(from)).
		Str("to", string(s)).
		Msg("run transition")
}

func (e *Engine) persist(ctx context.Context, run *entity.Entity) error {
	return e.store.Save(ctx, run, true)
}

func (e *Engine) fail(run *entity.Entity, step Step, err error) error {
	if err == nil {
		return nil
	}
	return &RunError{RunID: run.ID, Kind: run.Kind, Step: step, Err: err}
}

func isLocal(run *entity.Entity) bool {
	v, _ := run.Spec[SpecLocalExecution].(bool)
	return v
}

func runExecutableKey(run *entity.Entity) string {
	if k := run.SpecString(entity.TypeFunction.Singular()); k != "" {
		return k
	}
	return run.SpecString(entity.TypeWorkflow.Singular())
}

func executableKey(e *entity.Entity) string {
	if e.Key != "" {
		return e.Key
	}
	return entity.KeyOf(e)
}

// String describes the engine configuration.
func (e *Engine) String() string {
	return fmt.Sprintf("engine(runtimes=%v, poll=%s, local=%v)", e.runtimes.Kinds(), e.pollInterval, e.store.IsLocal())
}
