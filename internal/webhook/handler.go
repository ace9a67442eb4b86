package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-crm/meetsync/config"
	"github.com/aura-crm/meetsync/pkg/queue"
	"github.com/aura-crm/meetsync/pkg/response"
)

// Zoom delivery signature headers.
const (
	headerSignature = "x-zm-signature"
	headerTimestamp = "x-zm-request-timestamp"
)

// RecordingEnqueuer schedules recording sync jobs.
type RecordingEnqueuer interface {
	EnqueueRecordingSync(ctx context.Context, payload queue.RecordingSyncPayload) error
}

// Handler routes inbound Zoom webhook events: answers url_validation
// handshakes synchronously, enqueues recording.completed processing, and
// acknowledges everything else. No synchronous work happens on the
// recording path; Zoom enforces a short response-time budget.
type Handler struct {
	enqueuer RecordingEnqueuer
	webhook  config.WebhookConfig
	policy   config.PipelineConfig
	logger   *zap.Logger
}

// NewHandler creates a webhook handler.
func NewHandler(enqueuer RecordingEnqueuer, webhook config.WebhookConfig, policy config.PipelineConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{enqueuer: enqueuer, webhook: webhook, policy: policy, logger: logger}
}

// HandleEvent handles POST /webhooks/zoom. Internal failures after routing
// still answer 200 so the provider does not retry-storm a logic bug.
func (h *Handler) HandleEvent(c *gin.Context) {
	rawBody, err := c.GetRawData()
	if err != nil {
		h.logger.Error("read webhook body", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "error"})
		return
	}

	if h.webhook.Secret != "" {
		provided := c.GetHeader(headerSignature)
		timestamp := c.GetHeader(headerTimestamp)
		if !VerifyRequestSignature(timestamp, string(rawBody), h.webhook.Secret, provided) {
			h.logger.Warn("webhook signature mismatch",
				zap.String("client_ip", c.ClientIP()),
				zap.Bool("enforced", h.webhook.EnforceSignature),
			)
			if h.webhook.EnforceSignature {
				response.Unauthorized(c, "invalid webhook signature")
				return
			}
		}
	}

	var event Event
	if err := json.Unmarshal(rawBody, &event); err != nil {
		h.logger.Error("malformed webhook payload", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "error"})
		return
	}

	switch event.Event {
	case EventURLValidation:
		h.handleValidation(c, event)
	case EventRecordingCompleted:
		h.handleRecordingCompleted(c, event)
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	}
}

func (h *Handler) handleValidation(c *gin.Context, event Event) {
	plainToken := event.Payload.PlainToken
	if plainToken == "" {
		response.BadRequest(c, "plainToken required")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"plainToken":     plainToken,
		"encryptedToken": ComputeHandshakeDigest(plainToken, h.webhook.Secret),
	})
}

func (h *Handler) handleRecordingCompleted(c *gin.Context, event Event) {
	obj := event.Payload.Object
	meetingID := strconv.FormatInt(obj.ID, 10)

	if obj.Duration < h.policy.MinRecordingSeconds {
		h.logger.Info("recording below minimum duration, skipping",
			zap.String("meeting_id", meetingID),
			zap.Int("duration_seconds", obj.Duration),
			zap.Int("minimum_seconds", h.policy.MinRecordingSeconds),
		)
		c.JSON(http.StatusOK, gin.H{"status": "skipped"})
		return
	}

	// Operator test meetings never generate CRM notes.
	if h.policy.IsExcludedEmail(obj.HostEmail) || h.policy.IsExcludedEmail(obj.RegistrantEmail) {
		h.logger.Info("recording from excluded email, skipping",
			zap.String("meeting_id", meetingID),
			zap.String("host_email", obj.HostEmail),
		)
		c.JSON(http.StatusOK, gin.H{"status": "skipped"})
		return
	}

	files := make([]queue.RecordingFile, 0, len(obj.RecordingFiles))
	for _, f := range obj.RecordingFiles {
		files = append(files, queue.RecordingFile{
			FileType:      f.FileType,
			FileExtension: f.FileExtension,
			RecordingType: f.RecordingType,
			DownloadURL:   f.DownloadURL,
		})
	}

	payload := queue.RecordingSyncPayload{
		MeetingID:       meetingID,
		MeetingUUID:     obj.UUID,
		Topic:           obj.Topic,
		HostEmail:       obj.HostEmail,
		RegistrantEmail: obj.RegistrantEmail,
		DurationSeconds: obj.Duration,
		DownloadToken:   event.DownloadToken,
		Files:           files,
	}
	if err := h.enqueuer.EnqueueRecordingSync(c.Request.Context(), payload); err != nil {
		h.logger.Error("enqueue recording sync failed",
			zap.Error(err),
			zap.String("meeting_id", meetingID),
		)
		c.JSON(http.StatusOK, gin.H{"status": "error"})
		return
	}

	h.logger.Info("recording sync queued",
		zap.String("meeting_id", meetingID),
		zap.String("meeting_uuid", obj.UUID),
		zap.Int("duration_seconds", obj.Duration),
	)
	c.JSON(http.StatusOK, gin.H{"status": "queued"})
}
