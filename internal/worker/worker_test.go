package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aura-crm/meetsync/pkg/queue"
)

type countingProcessor struct {
	processed atomic.Int32
	err       error
	panicMsg  string
}

func (p *countingProcessor) Process(_ context.Context, _ *queue.Job) error {
	p.processed.Add(1)
	if p.panicMsg != "" {
		panic(p.panicMsg)
	}
	return p.err
}

func TestPoolDrainsQueue(t *testing.T) {
	q := queue.NewQueue(8, nil)
	proc := &countingProcessor{}
	pool := NewPool(q, proc, 2, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { pool.Run(ctx); close(done) }()

	for i := 0; i < 5; i++ {
		if err := q.EnqueueRecordingSync(ctx, queue.RecordingSyncPayload{MeetingID: "m"}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	deadline := time.After(2 * time.Second)
	for proc.processed.Load() < 5 {
		select {
		case <-deadline:
			t.Fatalf("processed %d of 5 jobs", proc.processed.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool did not stop on cancel")
	}
}

func TestPoolSurvivesJobErrors(t *testing.T) {
	q := queue.NewQueue(4, nil)
	proc := &countingProcessor{err: errors.New("boom")}
	pool := NewPool(q, proc, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pool.Run(ctx)

	for i := 0; i < 3; i++ {
		if err := q.EnqueueRecordingSync(ctx, queue.RecordingSyncPayload{}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	deadline := time.After(2 * time.Second)
	for proc.processed.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("worker stopped after error; processed %d of 3", proc.processed.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestPoolRecoversFromPanics(t *testing.T) {
	q := queue.NewQueue(4, nil)
	proc := &countingProcessor{panicMsg: "job exploded"}
	pool := NewPool(q, proc, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pool.Run(ctx)

	for i := 0; i < 2; i++ {
		if err := q.EnqueueRecordingSync(ctx, queue.RecordingSyncPayload{}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	deadline := time.After(2 * time.Second)
	for proc.processed.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("worker died on panic; processed %d of 2", proc.processed.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}
