package parallel

import (
	"context"
	"errors"
	"sync"
)

// ErrPoolClosed is reported by tasks submitted to a closed pool.
var ErrPoolClosed = errors.New("parallel: pool closed")

// Task is the single-shot completion handle of a job submitted to a
// WorkerPool. The zero value is not usable.
type Task struct {
	ctx    context.Context
	cancel context.CancelFunc
	fn     func(ctx context.Context) error

	once sync.Once
	done chan struct{}
	err  error
}

func newTask(ctx context.Context, fn func(context.Context) error) *Task {
	ctx, cancel := context.WithCancel(ctx)
	return &Task{ctx: ctx, cancel: cancel, fn: fn, done: make(chan struct{})}
}

// run executes the job unless the task was cancelled while queued.
func (t *Task) run() {
	if err := t.ctx.Err(); err != nil {
		t.finish(err)
		return
	}
	t.finish(t.fn(t.ctx))
}

func (t *Task) finish(err error) {
	t.once.Do(func() {
		t.err = err
		t.cancel()
		close(t.done)
	})
}

// Cancel requests cancellation. A queued job is skipped; a running job sees
// its context cancelled.
func (t *Task) Cancel() { t.cancel() }

// Done is closed when the task has finished or was skipped.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finishes and returns its error.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// Err returns the task error, or nil while the task is still pending.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// WaitAll waits for every non-nil task.
func WaitAll(tasks ...*Task) {
	for _, t := range tasks {
		if t != nil {
			<-t.done
		}
	}
}
