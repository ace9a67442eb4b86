// Package worker drains the job queue with a fixed-size pool, bounding how
// many recording jobs run outbound network chains at once.
package worker

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/aura-crm/meetsync/pkg/queue"
)

// JobProcessor executes one job.
type JobProcessor interface {
	Process(ctx context.Context, job *queue.Job) error
}

// Pool runs count workers against the queue.
type Pool struct {
	queue     *queue.Queue
	processor JobProcessor
	count     int
	logger    *zap.Logger
}

// NewPool creates a worker pool. count <= 0 defaults to 1.
func NewPool(q *queue.Queue, processor JobProcessor, count int, logger *zap.Logger) *Pool {
	if count <= 0 {
		count = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{queue: q, processor: processor, count: count, logger: logger}
}

// Run blocks until ctx is cancelled and all workers have returned. Jobs in
// flight run to completion; there is no mid-job cancellation beyond ctx
// reaching the job's own network calls.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.count; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.runWorker(ctx, id)
		}(i)
	}
	wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	for {
		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			return
		}
		p.logger.Debug("processing job",
			zap.Int("worker", id),
			zap.String("job_id", job.ID),
			zap.String("type", string(job.Type)),
		)
		// Top-level guard: every job error ends here. The webhook response
		// was sent long ago, so the logs are the only failure channel.
		if err := p.safeProcess(ctx, job); err != nil {
			p.logger.Error("job failed",
				zap.String("job_id", job.ID),
				zap.String("type", string(job.Type)),
				zap.Error(err),
			)
		}
	}
}

func (p *Pool) safeProcess(ctx context.Context, job *queue.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return p.processor.Process(ctx, job)
}
