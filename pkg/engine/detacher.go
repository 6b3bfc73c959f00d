package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrDetacherClosed is returned by Do after Close.
var ErrDetacherClosed = errors.New("detacher is closed")

type job struct {
	ctx    context.Context
	fn     func(context.Context) error
	result chan error
}

// Detacher runs functions on one dedicated worker goroutine while the caller
// waits. Jobs run one at a time in submission order.
type Detacher struct {
	jobs chan job
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewDetacher starts the worker.
func NewDetacher() *Detacher {
	d := &Detacher{
		jobs: make(chan job),
		done: make(chan struct{}),
	}
	d.wg.Add(1)
	go d.work()
	return d
}

func (d *Detacher) work() {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			return
		case j := <-d.jobs:
			j.result <- safeCall(j.ctx, j.fn)
		}
	}
}

// safeCall runs fn, turning a panic into an error.
func safeCall(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detached job panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// Do runs fn on the worker and returns its error. It returns early with the
// context error if ctx ends first; fn then still completes on the worker.
func (d *Detacher) Do(ctx context.Context, fn func(context.Context) error) error {
	j := job{ctx: ctx, fn: fn, result: make(chan error, 1)}
	select {
	case <-d.done:
		return ErrDetacherClosed
	case <-ctx.Done():
		return ctx.Err()
	case d.jobs <- j:
	}

	select {
	case err := <-j.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the worker after the running job, if any, finishes.
func (d *Detacher) Close() {
	d.once.Do(func() { close(d.done) })
	d.wg.Wait()
}
