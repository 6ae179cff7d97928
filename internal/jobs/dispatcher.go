// Package jobs runs transcription work asynchronously so the HTTP surface can
// return a job ID immediately and let clients poll for completion.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ErrQueueFull is returned by Submit instead of blocking the caller.
var ErrQueueFull = errors.New("jobs: queue is full")

// ErrStopped is returned by Submit once Stop has begun; late requests during
// shutdown are rejected instead of panicking on the closed queue.
var ErrStopped = errors.New("jobs: dispatcher stopped")

// Job is the pollable record of one unit of work. Result holds whatever the
// work function returned; callers know the concrete type they submitted.
type Job struct {
	ID          string      `json:"id"`
	Status      Status      `json:"status"`
	Result      interface{} `json:"result,omitempty"`
	Error       string      `json:"error,omitempty"`
	SubmittedAt time.Time   `json:"submitted_at"`
	FinishedAt  *time.Time  `json:"finished_at,omitempty"`
}

type Work func(ctx context.Context) (interface{}, error)

type task struct {
	id   string
	work Work
}

// Dispatcher owns a fixed worker pool draining a bounded queue.
type Dispatcher struct {
	queue chan task
	log   *logrus.Entry

	mu      sync.RWMutex
	jobs    map[string]*Job
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDispatcher(workers, queueSize int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		queue:  make(chan task, queueSize),
		log:    logrus.WithField("component", "jobs"),
		jobs:   map[string]*Job{},
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for t := range d.queue {
		d.setStatus(t.id, StatusRunning, nil, "")
		result, err := t.work(d.ctx)
		if err != nil {
			d.log.WithField("job", t.id).WithError(err).Warn("job failed")
			d.setStatus(t.id, StatusFailed, nil, err.Error())
			continue
		}
		d.setStatus(t.id, StatusSucceeded, result, "")
	}
}

func (d *Dispatcher) setStatus(id string, status Status, result interface{}, errMsg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	j, ok := d.jobs[id]
	if !ok {
		return
	}
	j.Status = status
	if result != nil {
		j.Result = result
	}
	j.Error = errMsg
	if status == StatusSucceeded || status == StatusFailed {
		now := time.Now().UTC()
		j.FinishedAt = &now
	}
}

// Submit queues work and returns its job ID. A full queue is reported
// immediately; the API never blocks on it. The send happens under the same
// lock Stop takes before closing the queue, so a racing Submit either lands
// before the close or sees stopped.
func (d *Dispatcher) Submit(work Work) (string, error) {
	id := uuid.New().String()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return "", ErrStopped
	}
	d.jobs[id] = &Job{ID: id, Status: StatusPending, SubmittedAt: time.Now().UTC()}

	select {
	case d.queue <- task{id: id, work: work}:
		return id, nil
	default:
		delete(d.jobs, id)
		return "", ErrQueueFull
	}
}

// Status returns a snapshot of the job record.
func (d *Dispatcher) Status(id string) (Job, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	j, ok := d.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// Stop drains queued work and waits for the workers to finish. Safe to call
// more than once.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	d.cancel()
}
