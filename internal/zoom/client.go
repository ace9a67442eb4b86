// Package zoom calls the Zoom REST API with server-to-server OAuth
// credentials. It backs the highest-confidence contact resolution strategy:
// participant emails reported by the meeting platform itself.
package zoom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aura-crm/meetsync/config"
)

// Client talks to the Zoom API. The zero credentials case is valid; callers
// check Configured before use.
type Client struct {
	apiBase      string
	oauthBase    string
	accountID    string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	logger       *zap.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a Zoom API client from config.
func NewClient(cfg config.ZoomConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiBase:      strings.TrimRight(cfg.APIBase, "/"),
		oauthBase:    strings.TrimRight(cfg.OAuthBase, "/"),
		accountID:    cfg.AccountID,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
	}
}

// Configured reports whether server-to-server credentials are present.
func (c *Client) Configured() bool {
	return c.accountID != "" && c.clientID != "" && c.clientSecret != ""
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a cached access token, exchanging account credentials when
// the cache is empty or within a minute of expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && time.Until(c.tokenExpiry) > time.Minute {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "account_credentials")
	form.Set("account_id", c.accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.oauthBase+"/oauth/token?"+form.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("token exchange status %d: %s", resp.StatusCode, string(body))
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token exchange returned empty access_token")
	}
	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

type participantsResponse struct {
	Participants []struct {
		Name      string `json:"name"`
		UserEmail string `json:"user_email"`
	} `json:"participants"`
}

// ParticipantEmails returns the distinct, non-empty participant emails of a
// past meeting, in report order.
func (c *Client) ParticipantEmails(ctx context.Context, meetingUUID string) ([]string, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/past_meetings/%s/participants?page_size=300", c.apiBase, encodeMeetingUUID(meetingUUID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create participants request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch participants: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("participants status %d: %s", resp.StatusCode, string(body))
	}

	var out participantsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode participants: %w", err)
	}

	seen := make(map[string]struct{}, len(out.Participants))
	emails := make([]string, 0, len(out.Participants))
	for _, p := range out.Participants {
		email := strings.TrimSpace(p.UserEmail)
		if email == "" {
			continue
		}
		key := strings.ToLower(email)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		emails = append(emails, email)
	}
	return emails, nil
}

// encodeMeetingUUID path-encodes a meeting UUID. UUIDs starting with "/" or
// containing "//" must be double-encoded per the Zoom API docs.
func encodeMeetingUUID(uuid string) string {
	if strings.HasPrefix(uuid, "/") || strings.Contains(uuid, "//") {
		return url.QueryEscape(url.QueryEscape(uuid))
	}
	return url.PathEscape(uuid)
}
