package jobs

import "sync"

// Dispatcher bounds how many process_job goroutines may run at once
// across different jobs. Chunk processing within one job is never
// fanned out by this type; it gates job-level concurrency only.
type Dispatcher struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

// NewDispatcher builds a Dispatcher allowing up to maxConcurrent jobs to
// run at once. A non-positive value disables the bound (unlimited).
func NewDispatcher(maxConcurrent int) *Dispatcher {
	if maxConcurrent <= 0 {
		return &Dispatcher{}
	}

	return &Dispatcher{sem: make(chan struct{}, maxConcurrent)}
}

// Dispatch runs fn on a new goroutine, blocking only long enough to
// acquire a concurrency slot when the dispatcher is bounded.
func (d *Dispatcher) Dispatch(fn func()) {
	d.wg.Add(1)

	go func() {
		defer d.wg.Done()

		if d.sem != nil {
			d.sem <- struct{}{}
			defer func() { <-d.sem }()
		}

		fn()
	}()
}

// Wait blocks until every dispatched job has returned. Used by tests and
// graceful shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
