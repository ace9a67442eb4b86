// Package crm calls the GoHighLevel REST API: contact search, calendar
// events, and note creation.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aura-crm/meetsync/config"
)

var (
	// ErrUnauthorized means the API key was rejected, typically expired.
	ErrUnauthorized = errors.New("crm credential rejected")
	// ErrNoteTooShort rejects trivially short note bodies before any remote
	// call, so empty analyses never pollute a contact's history.
	ErrNoteTooShort = errors.New("note body too short")
)

const (
	apiVersion    = "2021-07-28"
	minNoteLength = 10
)

// Contact is a CRM contact search result.
type Contact struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"contactName"`
}

// CalendarEvent is one appointment entry. Video-call links live in the
// free-text fields, not a structured column.
type CalendarEvent struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Address   string `json:"address"`
	Notes     string `json:"notes"`
	ContactID string `json:"contactId"`
}

// Client talks to the GoHighLevel API for one location.
type Client struct {
	baseURL    string
	apiKey     string
	locationID string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a CRM client from config.
func NewClient(cfg config.CRMConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.APIBase, "/"),
		apiKey:     cfg.APIKey,
		locationID: cfg.LocationID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Version", apiVersion)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

// SearchContacts looks contacts up by a free query (email or name).
func (c *Client) SearchContacts(ctx context.Context, query string) ([]Contact, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("locationId", c.locationID)
	endpoint := c.baseURL + "/contacts/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create contact search request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("contact search: %w", err)
	}
	defer resp.Body.Close()
	if err := c.checkStatus(resp, "contact search"); err != nil {
		return nil, err
	}

	var out struct {
		Contacts []Contact `json:"contacts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode contact search: %w", err)
	}
	return out.Contacts, nil
}

// CalendarEvents lists appointments for the location between from and to.
func (c *Client) CalendarEvents(ctx context.Context, from, to time.Time) ([]CalendarEvent, error) {
	params := url.Values{}
	params.Set("locationId", c.locationID)
	params.Set("startTime", strconv.FormatInt(from.UnixMilli(), 10))
	params.Set("endTime", strconv.FormatInt(to.UnixMilli(), 10))
	endpoint := c.baseURL + "/calendars/events?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create calendar request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar events: %w", err)
	}
	defer resp.Body.Close()
	if err := c.checkStatus(resp, "calendar events"); err != nil {
		return nil, err
	}

	var out struct {
		Events []CalendarEvent `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode calendar events: %w", err)
	}
	return out.Events, nil
}

// CreateNote writes a note onto a contact. Bodies under the minimum length
// are rejected locally without a remote call.
func (c *Client) CreateNote(ctx context.Context, contactID, body string) error {
	if len(strings.TrimSpace(body)) < minNoteLength {
		return ErrNoteTooShort
	}

	raw, err := json.Marshal(map[string]string{"body": body})
	if err != nil {
		return fmt.Errorf("marshal note: %w", err)
	}
	endpoint := fmt.Sprintf("%s/contacts/%s/notes", c.baseURL, url.PathEscape(contactID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create note request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("create note: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		c.logger.Info("note created", zap.String("contact_id", contactID))
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("create note: %w", ErrUnauthorized)
	}
	text, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return fmt.Errorf("create note status %d: %s", resp.StatusCode, string(text))
}

func (c *Client) checkStatus(resp *http.Response, op string) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}
	text, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return fmt.Errorf("%s status %d: %s", op, resp.StatusCode, string(text))
}
