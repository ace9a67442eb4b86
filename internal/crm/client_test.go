package crm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aura-crm/meetsync/config"
)

func newTestClient(srvURL string) *Client {
	return NewClient(config.CRMConfig{
		APIKey:     "test-api-key",
		LocationID: "loc-1",
		APIBase:    srvURL,
	}, nil)
}

func TestSearchContacts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/contacts/search" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-api-key" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Version"); got != apiVersion {
			t.Errorf("Version = %q", got)
		}
		if got := r.URL.Query().Get("locationId"); got != "loc-1" {
			t.Errorf("locationId = %q", got)
		}
		if got := r.URL.Query().Get("query"); got != "jane@example.com" {
			t.Errorf("query = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"contacts": []map[string]string{
			{"id": "c-1", "email": "jane@example.com", "contactName": "Jane Doe"},
		}})
	}))
	defer srv.Close()

	contacts, err := newTestClient(srv.URL).SearchContacts(context.Background(), "jane@example.com")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(contacts) != 1 || contacts[0].ID != "c-1" || contacts[0].Name != "Jane Doe" {
		t.Fatalf("contacts = %+v", contacts)
	}
}

func TestSearchContactsUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).SearchContacts(context.Background(), "x")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestCalendarEventsWindowParams(t *testing.T) {
	from := time.UnixMilli(1700000000000)
	to := from.Add(24 * time.Hour)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/calendars/events" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("startTime"); got != strconv.FormatInt(from.UnixMilli(), 10) {
			t.Errorf("startTime = %q", got)
		}
		if got := r.URL.Query().Get("endTime"); got != strconv.FormatInt(to.UnixMilli(), 10) {
			t.Errorf("endTime = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"events": []map[string]string{
			{"id": "ev-1", "title": "Zoom 832 1111 2222", "contactId": "c-9"},
		}})
	}))
	defer srv.Close()

	events, err := newTestClient(srv.URL).CalendarEvents(context.Background(), from, to)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 1 || events[0].ContactID != "c-9" {
		t.Fatalf("events = %+v", events)
	}
}

func TestCreateNote(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/contacts/c-1/notes" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var payload map[string]string
		json.NewDecoder(r.Body).Decode(&payload)
		gotBody = payload["body"]
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).CreateNote(context.Background(), "c-1", "meeting analysis text")
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	if gotBody != "meeting analysis text" {
		t.Fatalf("body = %q", gotBody)
	}
}

func TestCreateNoteRejectsShortBodyLocally(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).CreateNote(context.Background(), "c-1", "  hi  ")
	if !errors.Is(err, ErrNoteTooShort) {
		t.Fatalf("err = %v, want ErrNoteTooShort", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("remote called %d times for a short note", calls.Load())
	}
}

func TestCreateNoteUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).CreateNote(context.Background(), "c-1", "meeting analysis text")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestCreateNoteGenericFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).CreateNote(context.Background(), "c-1", "meeting analysis text")
	if err == nil || errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want generic failure", err)
	}
}
