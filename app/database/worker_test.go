package database

import (
	"errors"
	"testing"

	"go.uber.org/goleak"
)

func TestWorker_StartStopLeaksNothing(t *testing.T) {
	defer goleak.VerifyNone(t)

	worker := NewWorker(8)
	worker.Start()
	worker.Async("noop", func() error { return nil }, nil)
	worker.Stop()
}

func TestWorker_JobsRunInOrder(t *testing.T) {
	worker := NewWorker(8)
	worker.Start()

	var order []int
	for i := 1; i <= 5; i++ {
		i := i
		worker.Async("ordered", func() error {
			order = append(order, i)
			return nil
		}, nil)
	}
	worker.Stop()

	if len(order) != 5 {
		t.Fatalf("Expected 5 jobs to run, got %d", len(order))
	}
	for i, got := range order {
		if got != i+1 {
			t.Fatalf("Expected FIFO order, got %v", order)
		}
	}
}

func TestWorker_SyncReturnsJobError(t *testing.T) {
	worker := NewWorker(8)
	worker.Start()
	defer worker.Stop()

	boom := errors.New("boom")
	if err := worker.Sync("failing", func() error { return boom }); !errors.Is(err, boom) {
		t.Errorf("Expected the job error, got %v", err)
	}
	if err := worker.Sync("fine", func() error { return nil }); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestWorker_CompletionReceivesError(t *testing.T) {
	worker := NewWorker(8)
	worker.Start()

	boom := errors.New("boom")
	results := make(chan error, 2)
	worker.Async("failing", func() error { return boom }, func(err error) { results <- err })
	worker.Async("fine", func() error { return nil }, func(err error) { results <- err })
	worker.Stop()

	if err := <-results; !errors.Is(err, boom) {
		t.Errorf("Expected the job error in the completion, got %v", err)
	}
	if err := <-results; err != nil {
		t.Errorf("Expected a nil error in the completion, got %v", err)
	}
}

func TestWorker_StopDrainsQueuedJobs(t *testing.T) {
	worker := NewWorker(16)
	worker.Start()

	ran := 0
	for i := 0; i < 10; i++ {
		worker.Async("queued", func() error {
			ran++
			return nil
		}, nil)
	}
	worker.Stop()

	if ran != 10 {
		t.Errorf("Expected every queued job to run before Stop returns, got %d", ran)
	}
}

func TestNewWorker_DefaultQueueSize(t *testing.T) {
	worker := NewWorker(0)
	if cap(worker.jobs) != 256 {
		t.Errorf("Expected the default queue size, got %d", cap(worker.jobs))
	}
}
