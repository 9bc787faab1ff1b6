// Package worker runs background jobs on a bounded queue with a fixed pool
// of workers. Each job gets its own cancellable context, keyed so a caller
// can stop it later.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/utils"
)

var (
	ErrQueueFull = errors.New("job queue is full")
	ErrStopped   = errors.New("job queue is stopped")
	ErrDuplicate = errors.New("job already queued or running")
)

type Job func(ctx context.Context) error

type task struct {
	key string
	ctx context.Context
	fn  Job
}

// Hooks observe job lifecycle; any may be nil.
type Hooks struct {
	Started  func(key string)
	Finished func(key string, err error, elapsed time.Duration)
}

type Queue struct {
	tasks   chan task
	workers int
	logger  *utils.Logger
	hooks   Hooks

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	base    context.Context
	stopAll context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

func NewQueue(capacity, workers int, logger *utils.Logger, hooks Hooks) *Queue {
	if workers < 1 {
		workers = 1
	}
	base, cancel := context.WithCancel(context.Background())
	q := &Queue{
		tasks:   make(chan task, capacity),
		workers: workers,
		logger:  logger,
		hooks:   hooks,
		cancels: make(map[string]context.CancelFunc),
		base:    base,
		stopAll: cancel,
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	return q
}

// Submit queues fn under key without blocking. A key can only have one
// queued or running job at a time.
func (q *Queue) Submit(key string, fn Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return ErrStopped
	}
	if _, busy := q.cancels[key]; busy {
		return fmt.Errorf("%w: %s", ErrDuplicate, key)
	}

	ctx, cancel := context.WithCancel(q.base)
	select {
	case q.tasks <- task{key: key, ctx: ctx, fn: fn}:
		q.cancels[key] = cancel
		return nil
	default:
		cancel()
		return ErrQueueFull
	}
}

// Cancel stops the job registered under key. It reports whether one was
// queued or running.
func (q *Queue) Cancel(key string) bool {
	q.mu.Lock()
	cancel, ok := q.cancels[key]
	q.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Running reports whether a job is queued or running under key.
func (q *Queue) Running(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.cancels[key]
	return ok
}

func (q *Queue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.cancels)
}

// Stop refuses new jobs and waits for queued ones to finish. When ctx ends
// first, running jobs are cancelled.
func (q *Queue) Stop(ctx context.Context) {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.tasks)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		q.stopAll()
		<-done
	}
	q.stopAll()
}

func (q *Queue) work() {
	defer q.wg.Done()
	for t := range q.tasks {
		q.run(t)
	}
}

func (q *Queue) run(t task) {
	start := time.Now()
	var err error

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			q.logger.Error("Job panicked", "job", t.key, "panic", r)
		}

		q.mu.Lock()
		if cancel, ok := q.cancels[t.key]; ok {
			cancel()
			delete(q.cancels, t.key)
		}
		q.mu.Unlock()

		if q.hooks.Finished != nil {
			q.hooks.Finished(t.key, err, time.Since(start))
		}
		q.logger.Debug("Job finished", "job", t.key, "duration_ms", time.Since(start).Milliseconds(), "error", err)
	}()

	if q.hooks.Started != nil {
		q.hooks.Started(t.key)
	}
	err = t.fn(t.ctx)
}
