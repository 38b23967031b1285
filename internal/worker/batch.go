package worker

import "context"

// JobFunc adapts a plain function to Job
type JobFunc func(ctx context.Context) Result

// Execute calls f
func (f JobFunc) Execute(ctx context.Context) Result {
	return f(ctx)
}

// BatchProcessor runs a finite set of jobs on a pool sized for the batch
type BatchProcessor struct {
	concurrency int
}

// NewBatchProcessor creates a processor. Zero concurrency runs every job at once.
func NewBatchProcessor(concurrency int) *BatchProcessor {
	if concurrency < 0 {
		concurrency = 0
	}
	return &BatchProcessor{concurrency: concurrency}
}

// Width returns the number of workers used for n jobs
func (b *BatchProcessor) Width(n int) int {
	if b.concurrency == 0 || b.concurrency > n {
		return n
	}
	return b.concurrency
}

// Run executes jobs and returns their results in completion order. Jobs
// that never ran because ctx was cancelled produce no result.
func (b *BatchProcessor) Run(ctx context.Context, jobs []Job) []Result {
	if len(jobs) == 0 {
		return []Result{}
	}

	pool := NewPool(ctx, b.Width(len(jobs)))
	pool.Start()

	for _, job := range jobs {
		if !pool.Submit(job) {
			break
		}
	}

	return pool.Wait()
}
