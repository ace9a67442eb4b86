package zoom

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/aura-crm/meetsync/config"
)

func TestParticipantEmails(t *testing.T) {
	var tokenCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			http.Error(w, "bad credentials", http.StatusUnauthorized)
			return
		}
		if got := r.URL.Query().Get("grant_type"); got != "account_credentials" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.URL.Query().Get("account_id"); got != "acct-1" {
			t.Errorf("account_id = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-abc", "expires_in": 3600})
	})
	mux.HandleFunc("/past_meetings/uuid123/participants", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-abc" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"participants": []map[string]string{
			{"name": "Jane", "user_email": "jane@example.com"},
			{"name": "Anon", "user_email": ""},
			{"name": "Jane again", "user_email": "JANE@example.com"},
			{"name": "Bob", "user_email": "bob@example.com"},
		}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(config.ZoomConfig{
		AccountID:    "acct-1",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		APIBase:      srv.URL,
		OAuthBase:    srv.URL,
	}, nil)
	if !c.Configured() {
		t.Fatal("client should report configured")
	}

	emails, err := c.ParticipantEmails(context.Background(), "uuid123")
	if err != nil {
		t.Fatalf("participants: %v", err)
	}
	want := []string{"jane@example.com", "bob@example.com"}
	if len(emails) != len(want) {
		t.Fatalf("emails = %v, want %v", emails, want)
	}
	for i := range want {
		if emails[i] != want[i] {
			t.Fatalf("emails = %v, want %v", emails, want)
		}
	}

	// Second call reuses the cached token.
	if _, err := c.ParticipantEmails(context.Background(), "uuid123"); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if tokenCalls.Load() != 1 {
		t.Fatalf("token exchanged %d times, want 1", tokenCalls.Load())
	}
}

func TestConfigured(t *testing.T) {
	c := NewClient(config.ZoomConfig{AccountID: "a"}, nil)
	if c.Configured() {
		t.Fatal("partial credentials reported as configured")
	}
}

func TestEncodeMeetingUUID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"abc123", "abc123"},
		{"/starts-with-slash", "%252Fstarts-with-slash"},
		{"has//double", "has%252F%252Fdouble"},
	}
	for _, tc := range cases {
		if got := encodeMeetingUUID(tc.in); got != tc.want {
			t.Errorf("encodeMeetingUUID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
