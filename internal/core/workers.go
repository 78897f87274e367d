package core

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// writeJob is one durable write scheduled off the caller's goroutine.
type writeJob struct {
	operation string
	run       func() error
}

// writeQueue is a bounded fire-and-forget queue with a small worker pool.
// When the queue is full, Enqueue drops the job and reports it rather than
// blocking the caller.
type writeQueue struct {
	jobs    chan writeJob
	stop    chan struct{}
	workers sync.WaitGroup
	pending sync.WaitGroup

	onError func(operation string, err error)
	onDrop  func()

	dropped int64
	dropMu  sync.Mutex
}

// newWriteQueue starts a queue with the given capacity and worker count.
func newWriteQueue(capacity, workers int, onError func(string, error), onDrop func()) *writeQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	if workers <= 0 {
		workers = 1
	}

	q := &writeQueue{
		jobs:    make(chan writeJob, capacity),
		stop:    make(chan struct{}),
		onError: onError,
		onDrop:  onDrop,
	}
	for i := 0; i < workers; i++ {
		q.workers.Add(1)
		go q.worker()
	}
	return q
}

// Enqueue schedules a job, dropping it when the queue is full.
func (q *writeQueue) Enqueue(operation string, run func() error) {
	q.pending.Add(1)
	select {
	case q.jobs <- writeJob{operation: operation, run: run}:
	default:
		q.pending.Done()
		q.onDrop()

		q.dropMu.Lock()
		q.dropped++
		n := q.dropped
		q.dropMu.Unlock()
		log.Printf("[core] WARNING: write queue full, dropped %s job (total dropped: %d)", operation, n)
	}
}

func (q *writeQueue) worker() {
	defer q.workers.Done()
	for {
		select {
		case <-q.stop:
			// Drain whatever is already queued before exiting.
			for {
				select {
				case job := <-q.jobs:
					q.execute(job)
				default:
					return
				}
			}
		case job := <-q.jobs:
			q.execute(job)
		}
	}
}

// execute runs one job, converting panics into errors so a broken write can
// never take a worker down.
func (q *writeQueue) execute(job writeJob) {
	defer q.pending.Done()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic in %s: %v", job.operation, r)
			}
		}()
		return job.run()
	}()

	if err != nil {
		q.onError(job.operation, err)
	}
}

// Wait blocks until every enqueued job has finished.
func (q *writeQueue) Wait() {
	q.pending.Wait()
}

// Close stops the workers, allowing in-flight jobs up to the grace period
// to finish. It is safe to call only once.
func (q *writeQueue) Close(grace time.Duration) {
	close(q.stop)

	done := make(chan struct{})
	go func() {
		q.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		log.Printf("[core] WARNING: write workers did not drain within %v", grace)
	}
}
