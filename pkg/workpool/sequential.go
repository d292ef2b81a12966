package workpool

// Sequential runs every task inline on the submitting goroutine, in
// submission order. It produces the same results as Pool and is used when
// a single worker is requested or parallel execution is disabled.
type Sequential struct{}

type doneBatch struct {
	err error
}

func (d doneBatch) Wait() error {
	return d.err
}

// Submit runs the tasks immediately and stops at the first error.
func (Sequential) Submit(tasks ...Task) Batch {
	for _, t := range tasks {
		if err := run(t); err != nil {
			return doneBatch{err: err}
		}
	}
	return doneBatch{}
}

// Workers always returns 1.
func (Sequential) Workers() int {
	return 1
}

// Close is a no-op.
func (Sequential) Close() {}
