package downloader

import (
	"context"
	"errors"
	"sync"
	"time"

	"picharvest/pkg/logger"
)

// ErrPoolStopped is returned by Process after Stop
var ErrPoolStopped = errors.New("worker pool is stopped")

// Job is one candidate image found on a referrer page
type Job struct {
	ImageURL    string
	SourceURLID int64
	PageURL     string
	Query       string
}

// Outcome is the terminal state of a Job
type Outcome string

const (
	OutcomeSaved     Outcome = "saved"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// Result reports what happened to a Job
type Result struct {
	Job         Job
	Outcome     Outcome
	Path        string
	Fingerprint string
	Size        int
	Score       float64
	Error       error
	Duration    time.Duration
}

// Processor handles a single job from fetch to commit
type Processor interface {
	Process(ctx context.Context, job Job) Result
}

// ProcessorFunc adapts a function to Processor
type ProcessorFunc func(ctx context.Context, job Job) Result

func (f ProcessorFunc) Process(ctx context.Context, job Job) Result { return f(ctx, job) }

type task struct {
	ctx   context.Context
	job   Job
	index int
	reply chan<- indexed
}

type indexed struct {
	index  int
	result Result
}

// WorkerPool runs jobs on a fixed number of long-lived workers. Each Process
// call waits for its own jobs only, so batches never overlap.
type WorkerPool struct {
	numWorkers int
	processor  Processor
	jobQueue   chan task
	wg         sync.WaitGroup
	logger     logger.Logger

	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(numWorkers int, p Processor, log logger.Logger) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &WorkerPool{
		numWorkers: numWorkers,
		processor:  p,
		jobQueue:   make(chan task, numWorkers*2),
		logger:     log,
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (wp *WorkerPool) Start() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.started || wp.stopped {
		return
	}
	wp.started = true

	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})
	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop lets queued jobs finish and shuts the workers down
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.jobQueue)
	wp.mu.Unlock()

	wp.wg.Wait()
	wp.logger.Debug("Worker pool stopped")
}

// Process runs jobs and returns their results in input order.
// Jobs not yet queued when ctx ends come back as skipped.
func (wp *WorkerPool) Process(ctx context.Context, jobs []Job) ([]Result, error) {
	wp.mu.RLock()
	if wp.stopped || !wp.started {
		wp.mu.RUnlock()
		return nil, ErrPoolStopped
	}

	results := make([]Result, len(jobs))
	reply := make(chan indexed, len(jobs))
	submitted := 0

submit:
	for i, job := range jobs {
		select {
		case wp.jobQueue <- task{ctx: ctx, job: job, index: i, reply: reply}:
			submitted++
		case <-ctx.Done():
			for j := i; j < len(jobs); j++ {
				results[j] = Result{Job: jobs[j], Outcome: OutcomeSkipped, Error: ctx.Err()}
			}
			break submit
		}
	}
	wp.mu.RUnlock()

	for n := 0; n < submitted; n++ {
		r := <-reply
		results[r.index] = r.result
	}
	return results, nil
}

// Size returns the number of workers
func (wp *WorkerPool) Size() int {
	return wp.numWorkers
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for t := range wp.jobQueue {
		var r Result
		if err := t.ctx.Err(); err != nil {
			r = Result{Job: t.job, Outcome: OutcomeSkipped, Error: err}
		} else {
			start := time.Now()
			r = wp.processor.Process(t.ctx, t.job)
			r.Job = t.job
			r.Duration = time.Since(start)
		}

		wp.logger.DebugWithFields("Worker finished job", map[string]interface{}{
			"worker_id": id,
			"image_url": t.job.ImageURL,
			"outcome":   string(r.Outcome),
			"duration":  r.Duration,
		})
		t.reply <- indexed{index: t.index, result: r}
	}
}
