// Package transcribe uploads recording audio to the Gemini Files API and
// requests a structured meeting summary from a generation model.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aura-crm/meetsync/config"
)

var (
	// ErrProcessingFailed means the service reported a FAILED state for the
	// uploaded media.
	ErrProcessingFailed = errors.New("media processing failed")
	// ErrPollDeadline means the media never left PROCESSING within the
	// configured deadline.
	ErrPollDeadline = errors.New("media processing deadline exceeded")
	// ErrGenerationEmpty means generation returned no usable text, either
	// safety-filtered or empty. Reported, not retried.
	ErrGenerationEmpty = errors.New("generation returned no text")
)

// File states reported by the Files API.
const (
	stateProcessing = "PROCESSING"
	stateActive     = "ACTIVE"
	stateFailed     = "FAILED"
)

// modelFamilyKeywords drives fallback selection when the preferred model has
// drifted out of the service's model list. First keyword hit wins.
var modelFamilyKeywords = []string{"flash"}

// analysisPrompt asks for the summary in the detected spoken language, not a
// fixed one, plus a short note suitable for a CRM timeline.
const analysisPrompt = `Listen to this meeting recording and detect the spoken language.
Respond entirely in that detected language, with these sections:
1. Summary: what was discussed and decided.
2. Action Plan: a structured list of next steps with owners where stated.
3. CRM Note: a short note suitable for a contact timeline.
If a client or customer is named, include a line formatted exactly as
"Client Name: <name>".`

// UploadedFile is the service-side handle for uploaded media. It must be
// released with Delete regardless of generation outcome.
type UploadedFile struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	State    string `json:"state"`
}

// Client calls the Gemini v1beta REST API.
type Client struct {
	baseURL         string
	apiKey          string
	model           string
	pollInterval    time.Duration
	pollDeadline    time.Duration
	settleDelay     time.Duration
	generateTimeout time.Duration
	httpClient      *http.Client
	logger          *zap.Logger
}

// NewClient creates a Gemini client from config.
func NewClient(cfg config.GeminiConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL:         strings.TrimRight(cfg.APIBase, "/"),
		apiKey:          cfg.APIKey,
		model:           cfg.Model,
		pollInterval:    cfg.PollInterval,
		pollDeadline:    cfg.PollDeadline,
		settleDelay:     cfg.SettleDelay,
		generateTimeout: cfg.GenerateTimeout,
		httpClient:      &http.Client{},
		logger:          logger,
	}
	if c.model == "" {
		c.model = "gemini-1.5-flash"
	}
	if c.pollInterval <= 0 {
		c.pollInterval = 5 * time.Second
	}
	if c.pollDeadline <= 0 {
		c.pollDeadline = 10 * time.Minute
	}
	if c.generateTimeout <= 0 {
		c.generateTimeout = 10 * time.Minute
	}
	return c
}

// Transcribe runs the full analysis chain for one media file: upload, wait
// until the service indexes it, pick a model, generate the summary, and
// release the remote handle whatever happened.
func (c *Client) Transcribe(ctx context.Context, assetPath string) (string, error) {
	uploaded, err := c.Upload(ctx, assetPath)
	if err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}
	defer c.Delete(context.WithoutCancel(ctx), uploaded)

	if err := c.WaitUntilActive(ctx, uploaded); err != nil {
		return "", err
	}

	model := c.ResolveModel(ctx)
	text, err := c.Generate(ctx, model, uploaded)
	if err != nil {
		return "", err
	}
	return text, nil
}

// Upload pushes the media file through the resumable upload protocol and
// returns the remote handle, usually still in PROCESSING state.
func (c *Client) Upload(ctx context.Context, assetPath string) (*UploadedFile, error) {
	in, err := os.Open(assetPath)
	if err != nil {
		return nil, fmt.Errorf("open media: %w", err)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat media: %w", err)
	}
	mimeType := mimeTypeForFile(assetPath)

	// Step 1: start the upload session; the target URL comes back in a header.
	meta, _ := json.Marshal(map[string]any{
		"file": map[string]any{"display_name": filepath.Base(assetPath)},
	})
	startURL := fmt.Sprintf("%s/upload/v1beta/files?key=%s", c.baseURL, c.apiKey)
	startReq, err := http.NewRequestWithContext(ctx, http.MethodPost, startURL, bytes.NewReader(meta))
	if err != nil {
		return nil, fmt.Errorf("create upload start request: %w", err)
	}
	startReq.Header.Set("X-Goog-Upload-Protocol", "resumable")
	startReq.Header.Set("X-Goog-Upload-Command", "start")
	startReq.Header.Set("X-Goog-Upload-Header-Content-Length", fmt.Sprint(info.Size()))
	startReq.Header.Set("X-Goog-Upload-Header-Content-Type", mimeType)
	startReq.Header.Set("Content-Type", "application/json")

	startResp, err := c.httpClient.Do(startReq)
	if err != nil {
		return nil, fmt.Errorf("upload start: %w", err)
	}
	io.Copy(io.Discard, startResp.Body)
	startResp.Body.Close()
	if startResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upload start status %d", startResp.StatusCode)
	}
	sessionURL := startResp.Header.Get("X-Goog-Upload-URL")
	if sessionURL == "" {
		return nil, fmt.Errorf("upload start returned no session url")
	}

	// Step 2: send the bytes and finalize in one shot.
	upReq, err := http.NewRequestWithContext(ctx, http.MethodPost, sessionURL, in)
	if err != nil {
		return nil, fmt.Errorf("create upload request: %w", err)
	}
	upReq.ContentLength = info.Size()
	upReq.Header.Set("X-Goog-Upload-Command", "upload, finalize")
	upReq.Header.Set("X-Goog-Upload-Offset", "0")

	upResp, err := c.httpClient.Do(upReq)
	if err != nil {
		return nil, fmt.Errorf("upload bytes: %w", err)
	}
	defer upResp.Body.Close()
	if upResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upload status %d", upResp.StatusCode)
	}

	var out struct {
		File UploadedFile `json:"file"`
	}
	if err := json.NewDecoder(upResp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	if out.File.Name == "" {
		return nil, fmt.Errorf("upload response missing file name")
	}
	if out.File.MimeType == "" {
		out.File.MimeType = mimeType
	}
	c.logger.Info("media uploaded",
		zap.String("file", out.File.Name),
		zap.String("state", out.File.State),
		zap.Int64("bytes", info.Size()),
	)
	return &out.File, nil
}

// WaitUntilActive polls the file state until ACTIVE, failing on FAILED or on
// the configured deadline. After ACTIVE it holds for the settle delay; the
// service occasionally rejects generation against freshly indexed media.
func (c *Client) WaitUntilActive(ctx context.Context, file *UploadedFile) error {
	deadline := time.Now().Add(c.pollDeadline)
	for {
		switch file.State {
		case stateActive:
			if c.settleDelay > 0 {
				if err := sleepCtx(ctx, c.settleDelay); err != nil {
					return err
				}
			}
			return nil
		case stateFailed:
			return fmt.Errorf("file %s: %w", file.Name, ErrProcessingFailed)
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("file %s still %s after %s: %w", file.Name, file.State, c.pollDeadline, ErrPollDeadline)
		}
		if err := sleepCtx(ctx, c.pollInterval); err != nil {
			return err
		}

		current, err := c.getFile(ctx, file.Name)
		if err != nil {
			return err
		}
		file.State = current.State
		if current.URI != "" {
			file.URI = current.URI
		}
	}
}

func (c *Client) getFile(ctx context.Context, name string) (*UploadedFile, error) {
	endpoint := fmt.Sprintf("%s/v1beta/%s?key=%s", c.baseURL, name, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create file request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get file status %d", resp.StatusCode)
	}
	var file UploadedFile
	if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode file: %w", err)
	}
	return &file, nil
}

// ResolveModel validates the preferred model against the service's model
// list. When the preferred name has drifted away, the first listed model
// matching a family keyword substitutes; list failures keep the preference.
func (c *Client) ResolveModel(ctx context.Context) string {
	endpoint := fmt.Sprintf("%s/v1beta/models?key=%s", c.baseURL, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return c.model
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("model list unavailable, keeping preferred model",
			zap.String("model", c.model), zap.Error(err))
		return c.model
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("model list status, keeping preferred model",
			zap.String("model", c.model), zap.Int("status", resp.StatusCode))
		return c.model
	}

	var out struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return c.model
	}
	names := make([]string, 0, len(out.Models))
	for _, m := range out.Models {
		names = append(names, strings.TrimPrefix(m.Name, "models/"))
	}

	if chosen := pickModel(c.model, names); chosen != "" {
		if chosen != c.model {
			c.logger.Warn("preferred model unavailable, substituting",
				zap.String("preferred", c.model), zap.String("substitute", chosen))
		}
		return chosen
	}
	return c.model
}

// pickModel returns preferred when listed, else the first listed name
// containing a known family keyword, else "".
func pickModel(preferred string, listed []string) string {
	for _, name := range listed {
		if name == preferred {
			return preferred
		}
	}
	for _, kw := range modelFamilyKeywords {
		for _, name := range listed {
			if strings.Contains(name, kw) {
				return name
			}
		}
	}
	return ""
}

type generateRequest struct {
	Contents []struct {
		Parts []map[string]any `json:"parts"`
	} `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate issues one generation request against the uploaded media.
func (c *Client) Generate(ctx context.Context, model string, file *UploadedFile) (string, error) {
	var body generateRequest
	body.Contents = append(body.Contents, struct {
		Parts []map[string]any `json:"parts"`
	}{
		Parts: []map[string]any{
			{"text": analysisPrompt},
			{"file_data": map[string]string{
				"mime_type": file.MimeType,
				"file_uri":  file.URI,
			}},
		},
	})
	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.generateTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	defer resp.Body.Close()

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generate status %d: %s", resp.StatusCode, out.Error.Message)
	}
	if out.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("blocked (%s): %w", out.PromptFeedback.BlockReason, ErrGenerationEmpty)
	}

	var text strings.Builder
	for _, cand := range out.Candidates {
		for _, part := range cand.Content.Parts {
			text.WriteString(part.Text)
		}
	}
	result := strings.TrimSpace(text.String())
	if result == "" {
		return "", ErrGenerationEmpty
	}
	c.logger.Info("analysis generated",
		zap.String("model", model),
		zap.Int("chars", len(result)),
	)
	return result, nil
}

// Delete releases the remote upload handle. Failures are logged and
// swallowed; storage accumulation is the only stake.
func (c *Client) Delete(ctx context.Context, file *UploadedFile) {
	if file == nil || file.Name == "" {
		return
	}
	endpoint := fmt.Sprintf("%s/v1beta/%s?key=%s", c.baseURL, file.Name, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		c.logger.Warn("create delete request failed", zap.String("file", file.Name), zap.Error(err))
		return
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("release uploaded media failed", zap.String("file", file.Name), zap.Error(err))
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		c.logger.Warn("release uploaded media status", zap.String("file", file.Name), zap.Int("status", resp.StatusCode))
	}
}

func mimeTypeForFile(path string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "m4a":
		return "audio/mp4"
	case "mp4":
		return "video/mp4"
	case "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
