// Package dispatcher implements C6: a fixed-size worker pool that executes
// a batch of tool calls in parallel and returns results in input order.
// Grounded on original_source/core/tool_dispatcher.cpp.
package dispatcher

import (
	"context"
	"encoding/json"

	"golang.org/x/sync/errgroup"

	"github.com/hsaliak/goclaw-core/internal/cancel"
	"github.com/hsaliak/goclaw-core/internal/errs"
)

// Call is one tool invocation submitted to the Dispatcher.
type Call struct {
	ID   string
	Name string
	Args json.RawMessage
}

// Result is the outcome of one dispatched Call.
type Result struct {
	ID       string
	Output   string
	Err      error
	Cancelled bool
}

// Executor is the capability the Dispatcher invokes for each call. The
// concrete implementation lives in internal/toolexec; declared here as an
// interface to avoid a dependency cycle (Executor itself does not need to
// know about the Dispatcher).
type Executor interface {
	Execute(name string, argsJSON json.RawMessage, cancellation *cancel.Request) (string, error)
}

// Dispatcher runs a fixed-size pool of worker goroutines, bounding
// concurrent tool execution to its configured size.
type Dispatcher struct {
	executor Executor
	workers  int
}

// New returns a Dispatcher with the given worker count (default 4 if <= 0,
// per spec §4.6).
func New(executor Executor, workers int) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	return &Dispatcher{executor: executor, workers: workers}
}

// Dispatch blocks until every call in calls has completed (successfully,
// errored, or observed cancellation), returning results in the same order
// as calls.
func (d *Dispatcher) Dispatch(calls []Call, cancellation *cancel.Request) []Result {
	results := make([]Result, len(calls))

	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(d.workers)

	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = d.runOne(call, cancellation)
			return nil
		})
	}

	_ = g.Wait()
	return results
}

func (d *Dispatcher) runOne(call Call, cancellation *cancel.Request) Result {
	if cancellation != nil && cancellation.IsCancelled() {
		return Result{ID: call.ID, Cancelled: true, Err: errs.New(errs.Cancelled, "dispatch cancelled before execution")}
	}

	output, err := d.executor.Execute(call.Name, call.Args, cancellation)
	return Result{ID: call.ID, Output: output, Err: err}
}
