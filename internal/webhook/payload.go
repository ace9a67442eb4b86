package webhook

// Zoom webhook event names this service reacts to.
const (
	EventURLValidation      = "endpoint.url_validation"
	EventRecordingCompleted = "recording.completed"
)

// Event is the outer envelope of a Zoom webhook delivery.
type Event struct {
	Event         string       `json:"event"`
	EventTS       int64        `json:"event_ts"`
	DownloadToken string       `json:"download_token"`
	Payload       EventPayload `json:"payload"`
}

// EventPayload carries the event-specific body. PlainToken is only present on
// url_validation events; Object only on meeting/recording events.
type EventPayload struct {
	AccountID  string          `json:"account_id"`
	PlainToken string          `json:"plainToken"`
	Object     RecordingObject `json:"object"`
}

// RecordingObject describes the finished meeting and its recording files.
type RecordingObject struct {
	ID              int64           `json:"id"`
	UUID            string          `json:"uuid"`
	Topic           string          `json:"topic"`
	HostEmail       string          `json:"host_email"`
	RegistrantEmail string          `json:"registrant_email"`
	Duration        int             `json:"duration"`
	RecordingFiles  []RecordingFile `json:"recording_files"`
}

// RecordingFile is one downloadable entry in the recording file list.
type RecordingFile struct {
	ID            string `json:"id"`
	FileType      string `json:"file_type"`
	FileExtension string `json:"file_extension"`
	RecordingType string `json:"recording_type"`
	DownloadURL   string `json:"download_url"`
	FileSize      int64  `json:"file_size"`
}
