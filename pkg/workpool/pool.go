package workpool

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool is a persistent worker pool. Workers are spawned once at creation
// and reused for every batch until Close is called.
type Pool struct {
	numWorkers int
	workC      chan workItem
	feeders    sync.WaitGroup
	closeOnce  sync.Once
	closed     atomic.Bool
}

type workItem struct {
	task  Task
	batch *batch
}

// batch collects completion and the first error of a group of tasks.
type batch struct {
	wg  sync.WaitGroup
	mu  sync.Mutex
	err error
}

func (b *batch) record(err error) {
	if err == nil {
		return
	}
	b.mu.Lock()
	if b.err == nil {
		b.err = err
	}
	b.mu.Unlock()
}

func (b *batch) Wait() error {
	b.wg.Wait()
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// New creates a pool with numWorkers persistent workers.
// If numWorkers <= 0, GOMAXPROCS is used.
func New(numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}

	p := &Pool{
		numWorkers: numWorkers,
		workC:      make(chan workItem, numWorkers*2),
	}
	for range numWorkers {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	for item := range p.workC {
		item.batch.record(run(item.task))
		item.batch.wg.Done()
	}
}

// Workers returns the number of workers in the pool.
func (p *Pool) Workers() int {
	return p.numWorkers
}

// Submit queues tasks on the pool. Queueing happens on a feeder goroutine
// so the caller can prepare the next batch while this one runs.
func (p *Pool) Submit(tasks ...Task) Batch {
	b := &batch{}
	if len(tasks) == 0 {
		return b
	}
	if p.closed.Load() {
		b.record(ErrClosed)
		return b
	}

	b.wg.Add(len(tasks))
	p.feeders.Add(1)
	go func() {
		defer p.feeders.Done()
		for _, t := range tasks {
			p.workC <- workItem{task: t, batch: b}
		}
	}()
	return b
}

// Close shuts the pool down once all queued tasks have been handed to a
// worker. Calling Close multiple times is safe.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		p.feeders.Wait()
		close(p.workC)
	})
}
