// Package fetcher downloads a meeting recording to a local temporary file.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNoDownloadableFile means the recording file list held no usable entry.
	ErrNoDownloadableFile = errors.New("no downloadable recording file")
	// ErrEmptyRecording means the download produced markup or an implausibly
	// small body instead of media, typically an HTML login or error page.
	ErrEmptyRecording = errors.New("downloaded recording is not media")
)

const (
	// minPlausibleBytes is the size floor below which a download is treated
	// as an error page rather than audio.
	minPlausibleBytes = 512
	copyChunkSize     = 32 * 1024
)

// File is one candidate entry from the provider's recording file list.
type File struct {
	FileType      string
	FileExtension string
	RecordingType string
	DownloadURL   string
}

// Fetcher streams recordings into tempDir.
type Fetcher struct {
	tempDir    string
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a Fetcher. Empty tempDir uses os.TempDir().
func New(tempDir string, logger *zap.Logger) *Fetcher {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		tempDir:    tempDir,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		logger:     logger,
	}
}

// SelectFile picks the preferred entry: an audio-only or M4A file, else the
// first MP4, else the first entry present.
func SelectFile(files []File) (File, bool) {
	for _, f := range files {
		if f.RecordingType == "audio_only" || strings.EqualFold(f.FileType, "M4A") {
			return f, true
		}
	}
	for _, f := range files {
		if strings.EqualFold(f.FileType, "MP4") {
			return f, true
		}
	}
	if len(files) > 0 {
		return files[0], true
	}
	return File{}, false
}

// Fetch downloads the preferred recording file, authenticating with the
// download token as an access_token query parameter, and returns the path of
// a fully written temp file. The caller owns the file and must remove it.
func (f *Fetcher) Fetch(ctx context.Context, meetingID string, files []File, downloadToken string) (string, error) {
	sel, ok := SelectFile(files)
	if !ok || sel.DownloadURL == "" {
		return "", ErrNoDownloadableFile
	}

	u, err := url.Parse(sel.DownloadURL)
	if err != nil {
		return "", fmt.Errorf("parse download url: %w", err)
	}
	q := u.Query()
	q.Set("access_token", downloadToken)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create download request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download status: %d", resp.StatusCode)
	}

	// A markup content type is the strongest signal the host served a login
	// or error page; check it before touching the body.
	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/html") || strings.Contains(contentType, "text/plain") {
		return "", fmt.Errorf("content type %q: %w", contentType, ErrEmptyRecording)
	}

	ext := strings.ToLower(sel.FileExtension)
	if ext == "" {
		ext = "m4a"
	}
	path := filepath.Join(f.tempDir, fmt.Sprintf("recording_%s_%d.%s", meetingID, time.Now().UnixNano(), ext))

	written, err := f.writeFile(path, resp.Body)
	if err != nil {
		return "", err
	}
	if written < minPlausibleBytes {
		_ = os.Remove(path)
		return "", fmt.Errorf("downloaded %d bytes: %w", written, ErrEmptyRecording)
	}

	f.logger.Info("recording downloaded",
		zap.String("meeting_id", meetingID),
		zap.String("path", path),
		zap.Int64("bytes", written),
	)
	return path, nil
}

// writeFile streams body to path in fixed-size chunks and never leaves a
// partial file behind on failure.
func (f *Fetcher) writeFile(path string, body io.Reader) (int64, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	buf := make([]byte, copyChunkSize)
	written, err := io.CopyBuffer(out, body, buf)
	if err != nil {
		out.Close()
		_ = os.Remove(path)
		return 0, fmt.Errorf("write temp file: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(path)
		return 0, fmt.Errorf("close temp file: %w", err)
	}
	return written, nil
}
