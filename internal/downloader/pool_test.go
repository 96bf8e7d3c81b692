package downloader

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"picharvest/pkg/logger"
)

type mockProcessor struct {
	delay   time.Duration
	err     error
	calls   int32
	running int32
	peak    int32
}

func (m *mockProcessor) Process(ctx context.Context, job Job) Result {
	atomic.AddInt32(&m.calls, 1)
	n := atomic.AddInt32(&m.running, 1)
	defer atomic.AddInt32(&m.running, -1)
	for {
		p := atomic.LoadInt32(&m.peak)
		if n <= p || atomic.CompareAndSwapInt32(&m.peak, p, n) {
			break
		}
	}

	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return Result{Outcome: OutcomeFailed, Error: m.err}
	}
	return Result{Outcome: OutcomeSaved, Path: job.ImageURL + ".jpg"}
}

func makeJobs(n int) []Job {
	jobs := make([]Job, n)
	for i := range jobs {
		jobs[i] = Job{ImageURL: fmt.Sprintf("https://example.com/photo%d", i), SourceURLID: int64(i % 3)}
	}
	return jobs
}

func TestWorkerPoolBasicFunctionality(t *testing.T) {
	proc := &mockProcessor{delay: 10 * time.Millisecond}
	pool := NewWorkerPool(3, proc, logger.NewNopLogger())
	pool.Start()
	defer pool.Stop()

	jobs := makeJobs(10)
	results, err := pool.Process(context.Background(), jobs)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if len(results) != len(jobs) {
		t.Fatalf("Expected %d results, got %d", len(jobs), len(results))
	}
	for i, r := range results {
		if r.Job.ImageURL != jobs[i].ImageURL {
			t.Errorf("Result %d out of order: %s", i, r.Job.ImageURL)
		}
		if r.Outcome != OutcomeSaved {
			t.Errorf("Result %d: expected saved, got %s", i, r.Outcome)
		}
		if r.Duration <= 0 {
			t.Errorf("Result %d: duration not recorded", i)
		}
	}
	if got := atomic.LoadInt32(&proc.calls); got != 10 {
		t.Errorf("Expected 10 calls, got %d", got)
	}
}

func TestWorkerPoolWithErrors(t *testing.T) {
	proc := &mockProcessor{err: errors.New("download error")}
	pool := NewWorkerPool(2, proc, nil)
	pool.Start()
	defer pool.Stop()

	results, err := pool.Process(context.Background(), makeJobs(5))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	for _, r := range results {
		if r.Outcome != OutcomeFailed || r.Error == nil {
			t.Errorf("Expected failed result with error, got %s / %v", r.Outcome, r.Error)
		}
	}
}

func TestWorkerPoolConcurrencyBound(t *testing.T) {
	proc := &mockProcessor{delay: 50 * time.Millisecond}
	pool := NewWorkerPool(4, proc, nil)
	pool.Start()
	defer pool.Stop()

	start := time.Now()
	if _, err := pool.Process(context.Background(), makeJobs(8)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	elapsed := time.Since(start)

	if peak := atomic.LoadInt32(&proc.peak); peak > 4 {
		t.Errorf("Expected at most 4 concurrent jobs, saw %d", peak)
	}
	// 8 jobs on 4 workers is two rounds, not eight
	if elapsed > 300*time.Millisecond {
		t.Errorf("Jobs did not run concurrently, took %v", elapsed)
	}
}

func TestWorkerPoolBatchesDoNotMix(t *testing.T) {
	pool := NewWorkerPool(2, &mockProcessor{delay: 5 * time.Millisecond}, nil)
	pool.Start()
	defer pool.Stop()

	done := make(chan []Result, 2)
	for b := 0; b < 2; b++ {
		jobs := makeJobs(4)
		for i := range jobs {
			jobs[i].Query = fmt.Sprintf("batch-%d", b)
		}
		go func() {
			r, _ := pool.Process(context.Background(), jobs)
			done <- r
		}()
	}

	for i := 0; i < 2; i++ {
		results := <-done
		if len(results) != 4 {
			t.Fatalf("Expected 4 results, got %d", len(results))
		}
		for _, r := range results {
			if r.Job.Query != results[0].Job.Query {
				t.Errorf("Batch got a foreign result: %s vs %s", r.Job.Query, results[0].Job.Query)
			}
		}
	}
}

func TestWorkerPoolCancelledContextSkips(t *testing.T) {
	proc := &mockProcessor{}
	pool := NewWorkerPool(1, proc, nil)
	pool.Start()
	defer pool.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := pool.Process(ctx, makeJobs(3))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	for _, r := range results {
		if r.Outcome != OutcomeSkipped {
			t.Errorf("Expected skipped, got %s", r.Outcome)
		}
	}
	if got := atomic.LoadInt32(&proc.calls); got != 0 {
		t.Errorf("Expected no processing after cancel, got %d calls", got)
	}
}

func TestWorkerPoolStopped(t *testing.T) {
	pool := NewWorkerPool(1, &mockProcessor{}, nil)
	if _, err := pool.Process(context.Background(), makeJobs(1)); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("Expected ErrPoolStopped before Start, got %v", err)
	}

	pool.Start()
	pool.Stop()
	pool.Stop()
	if _, err := pool.Process(context.Background(), makeJobs(1)); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("Expected ErrPoolStopped after Stop, got %v", err)
	}
	if pool.Size() != 1 {
		t.Errorf("Expected size 1, got %d", pool.Size())
	}
}

func TestProcessorFunc(t *testing.T) {
	f := ProcessorFunc(func(_ context.Context, job Job) Result {
		return Result{Outcome: OutcomeRejected}
	})
	if r := f.Process(context.Background(), Job{}); r.Outcome != OutcomeRejected {
		t.Errorf("Expected rejected, got %s", r.Outcome)
	}
}
