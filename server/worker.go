package server

import (
	"errors"
	"fmt"

	"github.com/chazu/rtl/rtl"
)

// ErrWorkerStopped is returned by Do once the worker has been stopped.
var ErrWorkerStopped = errors.New("worker stopped")

// workRequest is a unit of work to be executed on the worker goroutine.
type workRequest struct {
	fn   func(*rtl.Runtime) (any, error)
	done chan workResult
}

type workResult struct {
	value any
	err   error
}

// Worker serializes all instance access through a single goroutine.
// Instances carry no locks of their own; construction, calls, reference
// counting and destruction from gRPC handlers must go through the worker.
type Worker struct {
	rt       *rtl.Runtime
	requests chan workRequest
	quit     chan struct{}
}

// NewWorker creates a Worker and starts the processing goroutine.
func NewWorker(rt *rtl.Runtime) *Worker {
	w := &Worker{
		rt:       rt,
		requests: make(chan workRequest, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn, turning a panic into an error.
func (w *Worker) execute(fn func(*rtl.Runtime) (any, error)) (result workResult) {
	defer func() {
		if r := recover(); r != nil {
			result = workResult{err: fmt.Errorf("%v", r)}
		}
	}()
	value, err := fn(w.rt)
	return workResult{value: value, err: err}
}

// Do submits fn for execution on the worker goroutine and blocks until it
// completes. After Stop it returns ErrWorkerStopped; work already queued
// but not yet picked up is abandoned.
func (w *Worker) Do(fn func(*rtl.Runtime) (any, error)) (any, error) {
	req := workRequest{
		fn:   fn,
		done: make(chan workResult, 1),
	}
	select {
	case <-w.quit:
		return nil, ErrWorkerStopped
	default:
	}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
	select {
	case result := <-req.done:
		return result.value, result.err
	case <-w.quit:
		select {
		case result := <-req.done:
			return result.value, result.err
		default:
			return nil, ErrWorkerStopped
		}
	}
}

// Stop shuts down the worker goroutine.
func (w *Worker) Stop() {
	close(w.quit)
}

// Runtime returns the underlying runtime, for reads of the registries,
// which are safe from any goroutine.
func (w *Worker) Runtime() *rtl.Runtime {
	return w.rt
}
