package session

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// WorkerPool runs CPU-bound analysis off the connection read loops. It is
// shared by every session in the process. Submit never blocks; a task that
// does not fit in the queue is dropped.
type WorkerPool struct {
	tasks chan func()
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	dropped atomic.Int64
}

func NewWorkerPool(workers, queue int) *WorkerPool {
	if workers <= 0 {
		workers = 4
	}
	if queue <= 0 {
		queue = 32
	}
	p := &WorkerPool{tasks: make(chan func(), queue)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Submit queues task. It returns false when the queue is full or the pool is
// closed.
func (p *WorkerPool) Submit(task func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.tasks <- task:
		return true
	default:
		p.dropped.Add(1)
		return false
	}
}

// Dropped counts tasks rejected because the queue was full.
func (p *WorkerPool) Dropped() int64 { return p.dropped.Load() }

// Close stops accepting tasks and waits for queued ones to finish.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(task)
	}
}

func (p *WorkerPool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("worker_task_panic", "panic", r)
		}
	}()
	task()
}
