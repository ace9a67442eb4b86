// Package pipeline runs the background job chain for one finished
// recording: download, transcribe/summarize, resolve the contact, publish
// the note. Each job is strictly sequential and owns its temp file.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/aura-crm/meetsync/internal/contacts"
	"github.com/aura-crm/meetsync/internal/crm"
	"github.com/aura-crm/meetsync/internal/fetcher"
	"github.com/aura-crm/meetsync/pkg/queue"
)

// notePrefix marks pipeline-written notes in the contact timeline.
const notePrefix = "*** Meeting Analysis ***\n\n"

// RecordingFetcher downloads the recording to a local temp file.
type RecordingFetcher interface {
	Fetch(ctx context.Context, meetingID string, files []fetcher.File, downloadToken string) (string, error)
}

// Transcriber turns a local media file into summary text.
type Transcriber interface {
	Transcribe(ctx context.Context, assetPath string) (string, error)
}

// ContactResolver maps meeting signals onto a CRM contact, nil on miss.
type ContactResolver interface {
	Resolve(ctx context.Context, sig contacts.Signals) *contacts.Match
}

// NotePublisher writes the note onto the resolved contact.
type NotePublisher interface {
	CreateNote(ctx context.Context, contactID, body string) error
}

// Processor executes recording sync jobs.
type Processor struct {
	fetcher     RecordingFetcher
	transcriber Transcriber
	resolver    ContactResolver
	publisher   NotePublisher
	logger      *zap.Logger
}

// NewProcessor creates a recording sync processor.
func NewProcessor(f RecordingFetcher, t Transcriber, r ContactResolver, p NotePublisher, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{fetcher: f, transcriber: t, resolver: r, publisher: p, logger: logger}
}

// Process executes one job. The temp media file is removed unconditionally
// at job end; the remote upload handle is released by the transcriber
// independently of that cleanup. Errors are returned for the worker to log,
// never retried.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeRecordingSync {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.RecordingSyncPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	files := make([]fetcher.File, 0, len(payload.Files))
	for _, f := range payload.Files {
		files = append(files, fetcher.File{
			FileType:      f.FileType,
			FileExtension: f.FileExtension,
			RecordingType: f.RecordingType,
			DownloadURL:   f.DownloadURL,
		})
	}

	assetPath, err := p.fetcher.Fetch(ctx, payload.MeetingID, files, payload.DownloadToken)
	if err != nil {
		return fmt.Errorf("fetch recording: %w", err)
	}
	defer func() {
		if err := os.Remove(assetPath); err != nil && !os.IsNotExist(err) {
			p.logger.Warn("remove temp recording failed", zap.String("path", assetPath), zap.Error(err))
		}
	}()

	summary, err := p.transcriber.Transcribe(ctx, assetPath)
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}

	match := p.resolver.Resolve(ctx, contacts.Signals{
		MeetingID:       payload.MeetingID,
		MeetingUUID:     payload.MeetingUUID,
		RegistrantEmail: payload.RegistrantEmail,
		HostEmail:       payload.HostEmail,
		SummaryText:     summary,
	})
	if match == nil {
		// A miss is a valid terminal outcome. The analysis is retained in
		// the logs so a human can file it manually.
		p.logger.Warn("no contact matched for meeting",
			zap.String("meeting_id", payload.MeetingID),
			zap.String("meeting_uuid", payload.MeetingUUID),
			zap.String("analysis", summary),
		)
		return nil
	}

	if err := p.publisher.CreateNote(ctx, match.ContactID, notePrefix+summary); err != nil {
		if errors.Is(err, crm.ErrUnauthorized) {
			p.logger.Error("crm credential expired, note not written",
				zap.String("contact_id", match.ContactID))
		} else {
			p.logger.Error("note publish failed",
				zap.String("contact_id", match.ContactID), zap.Error(err))
		}
		p.logger.Info("analysis retained after publish failure",
			zap.String("meeting_id", payload.MeetingID),
			zap.String("analysis", summary),
		)
		return fmt.Errorf("publish note: %w", err)
	}

	p.logger.Info("meeting analysis published",
		zap.String("meeting_id", payload.MeetingID),
		zap.String("contact_id", match.ContactID),
	)
	return nil
}
