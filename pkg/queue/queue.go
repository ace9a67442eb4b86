package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultCapacity is the queue bound when none is configured.
	DefaultCapacity = 64
)

// ErrQueueFull is returned when the queue is at capacity. Callers log and
// reject rather than block, so a webhook burst cannot pile up unbounded
// outbound-network jobs.
var ErrQueueFull = errors.New("job queue full")

// JobType identifies the job kind.
type JobType string

const (
	JobTypeRecordingSync JobType = "recording_sync"
)

// RecordingFile is one downloadable entry from the provider's file list.
type RecordingFile struct {
	FileType      string `json:"file_type"`
	FileExtension string `json:"file_extension"`
	RecordingType string `json:"recording_type"`
	DownloadURL   string `json:"download_url"`
}

// RecordingSyncPayload is the payload for recording sync jobs. It is the
// immutable reference a background job works from; nothing mutates it after
// enqueue.
type RecordingSyncPayload struct {
	MeetingID       string          `json:"meeting_id"`
	MeetingUUID     string          `json:"meeting_uuid"`
	Topic           string          `json:"topic"`
	HostEmail       string          `json:"host_email"`
	RegistrantEmail string          `json:"registrant_email"`
	DurationSeconds int             `json:"duration_seconds"`
	DownloadToken   string          `json:"download_token"`
	Files           []RecordingFile `json:"files"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue is a bounded in-memory job queue. Enqueue rejects at capacity;
// Dequeue blocks until a job is available or the context is cancelled.
type Queue struct {
	jobs   chan Job
	logger *zap.Logger
}

// NewQueue creates a queue with the given capacity (<=0 uses DefaultCapacity).
func NewQueue(capacity int, logger *zap.Logger) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{jobs: make(chan Job, capacity), logger: logger}
}

// EnqueueRecordingSync enqueues a recording sync job, failing fast with
// ErrQueueFull at capacity.
func (q *Queue) EnqueueRecordingSync(ctx context.Context, payload RecordingSyncPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      JobTypeRecordingSync,
		Payload:   body,
		CreatedAt: time.Now(),
	}
	select {
	case q.jobs <- job:
	default:
		return ErrQueueFull
	}
	q.logger.Debug("enqueued recording sync job",
		zap.String("job_id", job.ID),
		zap.String("meeting_id", payload.MeetingID),
	)
	return nil
}

// Dequeue blocks until a job is available or ctx is done.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case job := <-q.jobs:
		return &job, nil
	}
}

// Len reports the number of queued jobs.
func (q *Queue) Len() int {
	return len(q.jobs)
}
