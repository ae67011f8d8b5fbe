// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package parallel

import (
	"sync"
	"sync/atomic"
)

// SerialQueue runs enqueued commands one at a time, in FIFO order, on a
// single consumer goroutine. The queue is unbounded so a command may enqueue
// further commands without blocking.
type SerialQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	cmds   []func()
	closed bool
	exited chan struct{}

	executed atomic.Uint64
}

// NewSerialQueue starts the consumer goroutine.
func NewSerialQueue() *SerialQueue {
	q := &SerialQueue{exited: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.consume()
	return q
}

func (q *SerialQueue) consume() {
	defer close(q.exited)
	for {
		q.mu.Lock()
		for len(q.cmds) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.cmds) == 0 {
			q.mu.Unlock()
			return
		}
		fn := q.cmds[0]
		q.cmds[0] = nil
		q.cmds = q.cmds[1:]
		q.mu.Unlock()

		fn()
		q.executed.Add(1)
	}
}

// Enqueue schedules fn. After Close the consumer is gone and fn runs on the
// calling goroutine instead.
func (q *SerialQueue) Enqueue(fn func()) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		fn()
		q.executed.Add(1)
		return
	}
	q.cmds = append(q.cmds, fn)
	q.mu.Unlock()
	q.cond.Signal()
}

// Flush blocks until every command enqueued before the call has run.
// It must not be called from a command.
func (q *SerialQueue) Flush() {
	done := make(chan struct{})
	q.Enqueue(func() { close(done) })
	<-done
}

// Close runs the remaining commands and stops the consumer.
// Close is safe to call multiple times.
func (q *SerialQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
	<-q.exited
}

// Executed returns the number of commands run so far.
func (q *SerialQueue) Executed() uint64 { return q.executed.Load() }
