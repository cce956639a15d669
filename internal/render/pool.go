package render

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrPoolClosed is returned when work is submitted to a closed pool.
var ErrPoolClosed = errors.New("render: worker pool closed")

// WorkerPool runs submitted functions on a fixed set of goroutines.
//
// Hand-off is synchronous: there is no queue. Submit blocks until an idle
// worker takes the function, so the backlog can never grow beyond the
// number of workers.
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	work chan func()

	// done signals workers to stop.
	done chan struct{}

	wg      sync.WaitGroup
	running atomic.Bool
}

// NewWorkerPool starts a pool with the given number of workers.
// A count below 1 is treated as 1.
func NewWorkerPool(workers int) *WorkerPool {
	workers = max(workers, 1)
	p := &WorkerPool{
		work: make(chan func()),
		done: make(chan struct{}),
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}
	return p
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		case fn := <-p.work:
			fn()
		}
	}
}

// Submit hands fn to an idle worker, waiting for one if all are busy.
func (p *WorkerPool) Submit(fn func()) error {
	if fn == nil {
		return nil
	}
	if !p.running.Load() {
		return ErrPoolClosed
	}
	select {
	case p.work <- fn:
		return nil
	case <-p.done:
		return ErrPoolClosed
	}
}

// Close stops the workers after their current function returns.
// Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}
