// Package workpool runs the embarrassingly parallel stages of the
// reconstruction: batched transforms, depth-filter slices and rotation bands.
//
// Work is submitted as a batch of tasks; the returned Batch is the barrier
// the caller waits on before touching any memory the tasks wrote. Two
// executors implement the same interface: a persistent goroutine Pool and
// a Sequential executor that runs everything inline on the caller.
package workpool

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by batches submitted to a closed pool.
	ErrClosed = errors.New("workpool: executor closed")

	// ErrTaskPanic wraps a panic recovered from a task.
	ErrTaskPanic = errors.New("workpool: task panicked")
)

// Task is a unit of work. A non-nil error fails the whole batch.
type Task func() error

// Batch is the barrier for a group of tasks submitted together.
type Batch interface {
	// Wait blocks until every task of the batch has finished and returns
	// the first error any of them reported.
	Wait() error
}

// Executor accepts batches of independent tasks.
type Executor interface {
	// Submit schedules tasks and returns without waiting for them.
	Submit(tasks ...Task) Batch

	// Workers returns the number of tasks that may run at the same time.
	Workers() int

	// Close releases the executor. Outstanding batches must be waited
	// on before Close is called.
	Close()
}

// Range is a half-open interval [Start, End) of indices.
type Range struct {
	Start, End int
}

// Len returns the number of indices covered by the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Split divides [0, n) into at most parts contiguous, non-empty ranges of
// near equal size. It returns nil when n <= 0.
func Split(n, parts int) []Range {
	if n <= 0 {
		return nil
	}
	if parts < 1 {
		parts = 1
	}
	parts = min(parts, n)
	chunk := (n + parts - 1) / parts

	ranges := make([]Range, 0, parts)
	for start := 0; start < n; start += chunk {
		ranges = append(ranges, Range{Start: start, End: min(start+chunk, n)})
	}
	return ranges
}

// run executes a task, turning a panic into an error.
func run(t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
	}()
	return t()
}
