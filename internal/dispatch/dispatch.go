// Package dispatch runs fire-and-forget side effects on a small fixed pool of
// workers fed by a bounded queue.
package dispatch

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Job is a unit of background work. The context is not tied to any request.
type Job func(ctx context.Context)

type task struct {
	name string
	job  Job
}

// Runner owns the worker goroutines. Submit never blocks the caller.
type Runner struct {
	log   logrus.FieldLogger
	queue chan task
	group *errgroup.Group
	ctx   context.Context

	mu     sync.RWMutex
	closed bool
}

// NewRunner starts workers goroutines draining a queue of queueSize jobs.
func NewRunner(workers, queueSize int, log logrus.FieldLogger) *Runner {
	g, ctx := errgroup.WithContext(context.Background())
	r := &Runner{
		log:   log,
		queue: make(chan task, queueSize),
		group: g,
		ctx:   ctx,
	}
	for range max(workers, 1) {
		g.Go(r.work)
	}
	return r
}

func (r *Runner) work() error {
	for t := range r.queue {
		r.run(t)
	}
	return nil
}

func (r *Runner) run(t task) {
	defer func() {
		if p := recover(); p != nil {
			r.log.WithFields(logrus.Fields{"job": t.name, "panic": p}).Error("background job panicked")
		}
	}()
	t.job(r.ctx)
}

// Submit enqueues job. It reports false, and logs, when the queue is full or
// the runner is closed; the job is then dropped.
func (r *Runner) Submit(name string, job Job) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.log.WithField("job", name).Warn("dispatch closed, job dropped")
		return false
	}
	select {
	case r.queue <- task{name: name, job: job}:
		return true
	default:
		r.log.WithField("job", name).Warn("dispatch queue full, job dropped")
		return false
	}
}

// Close stops accepting jobs and waits for queued ones to finish, or for ctx
// to end.
func (r *Runner) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- r.group.Wait() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
