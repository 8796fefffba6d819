// Package parallel runs per-pixel CPU shader work across goroutines.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool is a fixed set of goroutines that execute row bands of a
// full-screen pass.
//
// Work is handed out through a single shared queue; ExecuteAll blocks until
// every submitted item has run, so the pool never reorders passes: a pass
// finishes completely before the next one is dispatched.
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	workers int
	queue   chan func()
	wg      sync.WaitGroup
	running atomic.Bool
	closeMu sync.RWMutex
}

// NewWorkerPool creates a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := &WorkerPool{
		workers: workers,
		queue:   make(chan func(), workers*4),
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
	for work := range p.queue {
		work()
	}
}

// ExecuteAll runs every item and waits for all of them to complete.
// On a closed pool the items run on the calling goroutine.
func (p *WorkerPool) ExecuteAll(work []func()) {
	if len(work) == 0 {
		return
	}
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	if !p.running.Load() || len(work) == 1 {
		for _, fn := range work {
			fn()
		}
		return
	}

	var done sync.WaitGroup
	done.Add(len(work))
	for _, fn := range work {
		p.queue <- func() {
			defer done.Done()
			fn()
		}
	}
	done.Wait()
}

// Close stops the workers after queued work drains.
// Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	p.closeMu.Lock()
	close(p.queue)
	p.closeMu.Unlock()
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning returns true if the pool is still accepting work.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}
