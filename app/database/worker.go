package database

import (
	"log/slog"
	"sync"
	"time"
)

type job struct {
	name       string
	run        func() error
	completion func(error)
}

// Worker is the storage worker context: a single goroutine draining a FIFO
// job queue. Jobs never run concurrently and always run to completion; there
// is no cancellation and no retry, a failed job simply produces no state
// change before its completion fires.
type Worker struct {
	jobs chan job
	wg   sync.WaitGroup
}

func NewWorker(queueSize int) *Worker {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Worker{
		jobs: make(chan job, queueSize),
	}
}

func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for j := range w.jobs {
			w.execute(j)
		}
	}()
}

// Stop closes the queue and waits for every queued job to finish. No job may
// be submitted after Stop.
func (w *Worker) Stop() {
	close(w.jobs)
	w.wg.Wait()
}

// Async queues a job and returns immediately. The optional completion is
// invoked on the worker goroutine after the job finishes.
func (w *Worker) Async(name string, run func() error, completion func(error)) {
	w.jobs <- job{name: name, run: run, completion: completion}
}

// Sync queues a job and blocks the caller until it has run.
func (w *Worker) Sync(name string, run func() error) error {
	errCh := make(chan error, 1)
	w.Async(name, run, func(err error) {
		errCh <- err
	})
	return <-errCh
}

func (w *Worker) execute(j job) {
	started := time.Now()
	err := j.run()
	if err != nil {
		slog.Error("Storage job failed", "job", j.name, "duration", time.Since(started), "error", err)
	} else {
		slog.Debug("Storage job finished", "job", j.name, "duration", time.Since(started))
	}
	if j.completion != nil {
		j.completion(err)
	}
}
