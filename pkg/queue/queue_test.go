package queue

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEnqueueRejectsAtCapacity(t *testing.T) {
	q := NewQueue(1, nil)
	ctx := context.Background()

	if err := q.EnqueueRecordingSync(ctx, RecordingSyncPayload{MeetingID: "1"}); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	err := q.EnqueueRecordingSync(ctx, RecordingSyncPayload{MeetingID: "2"})
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("second enqueue err = %v, want ErrQueueFull", err)
	}
	if q.Len() != 1 {
		t.Fatalf("len = %d, want 1", q.Len())
	}
}

func TestDequeueReturnsEnvelope(t *testing.T) {
	q := NewQueue(2, nil)
	ctx := context.Background()
	if err := q.EnqueueRecordingSync(ctx, RecordingSyncPayload{MeetingID: "42", DownloadToken: "tok"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	job, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if job.Type != JobTypeRecordingSync {
		t.Fatalf("type = %s", job.Type)
	}
	if job.ID == "" || job.CreatedAt.IsZero() {
		t.Fatalf("envelope incomplete: %+v", job)
	}
}

func TestDequeueHonorsContext(t *testing.T) {
	q := NewQueue(1, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}
