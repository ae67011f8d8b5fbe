// Package parallel runs kernel compile jobs on a work-stealing goroutine pool
// and serializes commands onto a single consumer goroutine.
//
// [WorkerPool.Go] returns a [Task] handle that can be cancelled and awaited.
// [SerialQueue] executes enqueued functions one at a time in FIFO order and is
// the default deferred-release path for published render proxies.
package parallel
