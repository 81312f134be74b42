// Package pool provides the bounded worker pools a planning session runs its
// scan resolutions and prefetches on.
package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned when submitting to a closed pool.
var ErrClosed = errors.New("worker pool closed")

// WorkerPool runs submitted tasks on between min and max goroutines.
// The min core workers live until Close; extra workers are started while no
// worker is idle and exit after keepAlive without work.
type WorkerPool struct {
	minWorkers int
	maxWorkers int
	keepAlive  time.Duration

	workCh   chan func()
	stopCh   chan struct{}
	wg       sync.WaitGroup
	workers  atomic.Int32
	idle     atomic.Int32
	closed   atomic.Bool
	submitMu sync.RWMutex
}

// New creates a pool. minWorkers is raised to 1 and maxWorkers to minWorkers
// when smaller.
func New(minWorkers, maxWorkers int, keepAlive time.Duration) *WorkerPool {
	minWorkers = max(minWorkers, 1)
	maxWorkers = max(maxWorkers, minWorkers)

	p := &WorkerPool{
		minWorkers: minWorkers,
		maxWorkers: maxWorkers,
		keepAlive:  keepAlive,
		workCh:     make(chan func(), maxWorkers*2),
		stopCh:     make(chan struct{}),
	}

	p.wg.Add(minWorkers)
	p.workers.Store(int32(minWorkers))
	for i := 0; i < minWorkers; i++ {
		go p.worker(true)
	}

	return p
}

// NewFixed creates a pool with exactly n workers, at least 1.
func NewFixed(n int) *WorkerPool {
	return New(n, n, 0)
}

func (p *WorkerPool) worker(core bool) {
	defer p.wg.Done()

	var timer *time.Timer
	if !core {
		timer = time.NewTimer(p.keepAlive)
		defer timer.Stop()
	}

	for {
		p.idle.Add(1)
		if core {
			task, ok := <-p.workCh
			p.idle.Add(-1)
			if !ok {
				return
			}
			task()
			continue
		}

		timer.Reset(p.keepAlive)
		select {
		case task, ok := <-p.workCh:
			p.idle.Add(-1)
			if !ok {
				p.workers.Add(-1)
				return
			}
			task()
		case <-timer.C:
			p.idle.Add(-1)
			p.workers.Add(-1)
			return
		}
	}
}

// Submit enqueues task, blocking while the queue is full.
//
// It fails with ErrClosed once the pool is closed and with ctx.Err() when ctx
// ends before the task is queued.
func (p *WorkerPool) Submit(ctx context.Context, task func()) error {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()

	if p.closed.Load() {
		return ErrClosed
	}

	select {
	case p.workCh <- task:
	case <-p.stopCh:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	if p.idle.Load() == 0 {
		p.grow()
	}
	return nil
}

func (p *WorkerPool) grow() {
	for {
		n := p.workers.Load()
		if int(n) >= p.maxWorkers {
			return
		}
		if p.workers.CompareAndSwap(n, n+1) {
			p.wg.Add(1)
			go p.worker(false)
			return
		}
	}
}

// Workers returns the number of live workers.
func (p *WorkerPool) Workers() int { return int(p.workers.Load()) }

// Close stops accepting tasks, runs the queued ones and waits for all
// workers. It is idempotent.
func (p *WorkerPool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}

	p.submitMu.Lock()
	close(p.stopCh)
	close(p.workCh)
	p.submitMu.Unlock()

	p.wg.Wait()
}
