package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// ErrDispatcherBusy is returned by Submit when the queue is full or the
// dispatcher has shut down. Callers must route the rejection into the job's
// failure path so the job is never silently lost.
var ErrDispatcherBusy = errors.New("orchestrator: dispatcher queue full or closed")

// Task is one background job execution bound to its job id.
type Task struct {
	JobID string
	Run   func(ctx context.Context)
}

// Dispatcher is a fixed-size worker pool for background jobs. It supervises
// each task: panics are recovered and reported through the error callback
// instead of killing the worker.
type Dispatcher struct {
	queue   chan Task
	onError func(jobID string, err error)

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewDispatcher starts `workers` workers with a queue holding up to
// `queueDepth` pending jobs. onError receives supervision failures (panics);
// it may be nil.
func NewDispatcher(workers, queueDepth int, onError func(jobID string, err error)) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if queueDepth <= 0 {
		queueDepth = workers * 2
	}
	d := &Dispatcher{
		queue:   make(chan Task, queueDepth),
		onError: onError,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	log.Infof("dispatcher: started %d workers (queue depth %d)", workers, queueDepth)
	return d
}

// Submit hands a task to the pool without blocking. A full queue rejects the
// task with ErrDispatcherBusy rather than stalling the caller's request.
func (d *Dispatcher) Submit(task Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherBusy
	}
	select {
	case d.queue <- task:
		return nil
	default:
		return ErrDispatcherBusy
	}
}

// Shutdown stops accepting tasks and waits for in-flight jobs to finish or
// the context to expire.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for task := range d.queue {
		d.runSupervised(task)
	}
}

func (d *Dispatcher) runSupervised(task Task) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("job_id", task.JobID).Errorf("background task panicked: %v", r)
			if d.onError != nil {
				d.onError(task.JobID, fmt.Errorf("background task panicked: %v", r))
			}
		}
	}()
	// Background jobs outlive the request that started them; they run under
	// their own root context and are cancelled only by process shutdown.
	task.Run(context.Background())
}
