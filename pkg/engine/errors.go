package engine

import (
	"errors"
	"fmt"
)

// Step names the lifecycle call that failed.
type Step string

const (
	StepTask  Step = "task"
	StepBuild Step = "build"
	StepRun   Step = "run"
	StepStop  Step = "stop"
	StepWait  Step = "wait"
)

// RunError reports a lifecycle failure of one run.
type RunError struct {
	// RunID is the id of the failed run.
	RunID string

	// Kind is the run kind.
	Kind string

	// Step is the lifecycle call that failed.
	Step Step

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.RunID == "" {
		return fmt.Sprintf("[%s] %s", e.Step, e.unwrapMessage())
	}
	return fmt.Sprintf("[%s] run %s (%s): %s", e.Step, e.RunID, e.Kind, e.unwrapMessage())
}

func (e *RunError) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap returns the underlying error.
func (e *RunError) Unwrap() error {
	return e.Err
}

// StepOf returns the failed step recorded in err, or "".
func StepOf(err error) Step {
	var e *RunError
	if errors.As(err, &e) {
		return e.Step
	}
	return ""
}
