package parallel

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool is a pool of goroutines for kernel compilation.
//
// Each worker owns a queue and steals from the others when its own queue is
// empty, so one slow compile does not hold back the rest.
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	workers    int
	workQueues []chan *Task

	// submitMu orders submissions against Close so nothing is queued after
	// the workers have drained.
	submitMu sync.RWMutex
	done     chan struct{}
	wg       sync.WaitGroup
	running  atomic.Bool
}

// NewWorkerPool creates a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	queueSize := max(workers*4, 8)

	p := &WorkerPool{
		workers:    workers,
		workQueues: make([]chan *Task, workers),
		done:       make(chan struct{}),
	}
	for i := range workers {
		p.workQueues[i] = make(chan *Task, queueSize)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	myQueue := p.workQueues[id]
	for {
		select {
		case <-p.done:
			p.drainQueue(myQueue)
			return
		case t := <-myQueue:
			t.run()
		default:
			if stolen := p.steal(id); stolen != nil {
				stolen.run()
				continue
			}
			select {
			case <-p.done:
				p.drainQueue(myQueue)
				return
			case t := <-myQueue:
				t.run()
			}
		}
	}
}

// drainQueue runs what is left in a queue after Close. Jobs still see their
// own context and usually return early when the owner cancelled them.
func (p *WorkerPool) drainQueue(queue chan *Task) {
	for {
		select {
		case t := <-queue:
			t.run()
		default:
			return
		}
	}
}

func (p *WorkerPool) steal(myID int) *Task {
	for i := range p.workers {
		if i == myID {
			continue
		}
		select {
		case t := <-p.workQueues[i]:
			return t
		default:
		}
	}
	return nil
}

// Go schedules fn and returns its handle. fn receives a context that is
// cancelled by Task.Cancel or by ctx. On a closed pool the task finishes
// immediately with ErrPoolClosed.
func (p *WorkerPool) Go(ctx context.Context, fn func(ctx context.Context) error) *Task {
	t := newTask(ctx, fn)

	p.submitMu.RLock()
	defer p.submitMu.RUnlock()
	if !p.running.Load() {
		t.finish(ErrPoolClosed)
		return t
	}

	// Shortest queue first.
	minIdx, minLen := 0, len(p.workQueues[0])
	for i := 1; i < p.workers; i++ {
		if l := len(p.workQueues[i]); l < minLen {
			minIdx, minLen = i, l
		}
	}
	p.workQueues[minIdx] <- t
	return t
}

// Close stops accepting work, runs what is queued and waits for the workers
// to exit. Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	p.submitMu.Lock()
	if !p.running.CompareAndSwap(true, false) {
		p.submitMu.Unlock()
		return
	}
	close(p.done)
	p.submitMu.Unlock()

	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int { return p.workers }

// IsRunning returns true if the pool is still accepting work.
func (p *WorkerPool) IsRunning() bool { return p.running.Load() }

// QueuedWork returns the approximate number of queued tasks.
func (p *WorkerPool) QueuedWork() int {
	total := 0
	for _, q := range p.workQueues {
		total += len(q)
	}
	return total
}
