package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
// It is constructed once at process start and passed into components;
// nothing reads the environment after Load returns.
type Config struct {
	Server   ServerConfig
	Webhook  WebhookConfig
	Zoom     ZoomConfig
	Gemini   GeminiConfig
	CRM      CRMConfig
	Pipeline PipelineConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
}

// WebhookConfig holds the Zoom webhook shared secret and enforcement policy.
type WebhookConfig struct {
	Secret string
	// EnforceSignature rejects requests whose x-zm-signature does not verify.
	// When false, mismatches are logged and processing continues.
	EnforceSignature bool
}

// ZoomConfig holds server-to-server OAuth credentials for the Zoom API.
// All three credential fields must be set for participant lookups; otherwise
// that resolution strategy is skipped.
type ZoomConfig struct {
	AccountID    string
	ClientID     string
	ClientSecret string
	APIBase      string // e.g. https://api.zoom.us/v2
	OAuthBase    string // e.g. https://zoom.us
}

// GeminiConfig holds Gemini API settings for transcription and summarization.
type GeminiConfig struct {
	APIKey          string
	APIBase         string
	Model           string
	PollInterval    time.Duration
	PollDeadline    time.Duration
	SettleDelay     time.Duration
	GenerateTimeout time.Duration
}

// CRMConfig holds GoHighLevel API settings.
type CRMConfig struct {
	APIKey            string
	LocationID        string
	APIBase           string
	AppointmentWindow time.Duration // half-width of the calendar scan window
}

// PipelineConfig holds recording-processing policy.
type PipelineConfig struct {
	MinRecordingSeconds int
	ExcludedEmails      []string
	TempDir             string // empty = os.TempDir()
	QueueCapacity       int
	WorkerCount         int
}

// IsExcludedEmail reports whether email is on the exclusion list
// (case-insensitive). Blank emails are never excluded.
func (c PipelineConfig) IsExcludedEmail(email string) bool {
	if email == "" {
		return false
	}
	for _, e := range c.ExcludedEmails {
		if strings.EqualFold(e, email) {
			return true
		}
	}
	return false
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	windowHours := getEnvInt("CRM_APPOINTMENT_WINDOW_HOURS", 12)

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		Webhook: WebhookConfig{
			Secret:           getEnv("ZOOM_WEBHOOK_SECRET", ""),
			EnforceSignature: getEnvBool("WEBHOOK_ENFORCE_SIGNATURE", true),
		},
		Zoom: ZoomConfig{
			AccountID:    getEnv("ZOOM_ACCOUNT_ID", ""),
			ClientID:     getEnv("ZOOM_CLIENT_ID", ""),
			ClientSecret: getEnv("ZOOM_CLIENT_SECRET", ""),
			APIBase:      getEnv("ZOOM_API_BASE", "https://api.zoom.us/v2"),
			OAuthBase:    getEnv("ZOOM_OAUTH_BASE", "https://zoom.us"),
		},
		Gemini: GeminiConfig{
			APIKey:          getEnv("GEMINI_API_KEY", ""),
			APIBase:         getEnv("GEMINI_API_BASE", "https://generativelanguage.googleapis.com"),
			Model:           getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
			PollInterval:    getEnvDuration("GEMINI_POLL_INTERVAL", 5*time.Second),
			PollDeadline:    getEnvDuration("GEMINI_POLL_DEADLINE", 10*time.Minute),
			SettleDelay:     getEnvDuration("GEMINI_SETTLE_DELAY", 10*time.Second),
			GenerateTimeout: getEnvDuration("GEMINI_GENERATE_TIMEOUT", 10*time.Minute),
		},
		CRM: CRMConfig{
			APIKey:            getEnv("GHL_API_KEY", ""),
			LocationID:        getEnv("GHL_LOCATION_ID", ""),
			APIBase:           getEnv("GHL_API_BASE", "https://services.leadconnectorhq.com"),
			AppointmentWindow: time.Duration(windowHours) * time.Hour,
		},
		Pipeline: PipelineConfig{
			MinRecordingSeconds: getEnvInt("MIN_RECORDING_SECONDS", 120),
			ExcludedEmails:      splitTrim(getEnv("EXCLUDED_EMAILS", ""), ","),
			TempDir:             getEnv("TEMP_DIR", ""),
			QueueCapacity:       getEnvInt("QUEUE_CAPACITY", 64),
			WorkerCount:         getEnvInt("WORKER_COUNT", 4),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
