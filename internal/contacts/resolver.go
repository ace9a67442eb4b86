// Package contacts maps a finished meeting onto a CRM contact. Resolution is
// a strict waterfall over every identifying clue available; the first
// strategy that yields a match wins and no match at all is a valid outcome.
package contacts

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aura-crm/meetsync/internal/crm"
)

// Signals bundles the identifying clues for one meeting.
type Signals struct {
	MeetingID       string
	MeetingUUID     string
	RegistrantEmail string
	HostEmail       string
	SummaryText     string
}

// Match is a resolved CRM contact.
type Match struct {
	ContactID string
}

// ParticipantSource reports participant emails from the meeting platform.
type ParticipantSource interface {
	Configured() bool
	ParticipantEmails(ctx context.Context, meetingUUID string) ([]string, error)
}

// Directory is the CRM lookup surface the resolver needs.
type Directory interface {
	SearchContacts(ctx context.Context, query string) ([]crm.Contact, error)
	CalendarEvents(ctx context.Context, from, to time.Time) ([]crm.CalendarEvent, error)
}

// Resolver runs the waterfall. Lookup errors are logged and treated as
// misses for that strategy; they never abort the remaining strategies.
type Resolver struct {
	participants ParticipantSource
	directory    Directory
	window       time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// NewResolver creates a resolver. participants may be nil when the platform
// API is not configured; window is the half-width of the appointment scan.
func NewResolver(participants ParticipantSource, directory Directory, window time.Duration, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if window <= 0 {
		window = 12 * time.Hour
	}
	return &Resolver{
		participants: participants,
		directory:    directory,
		window:       window,
		logger:       logger,
		now:          time.Now,
	}
}

// Resolve returns the matched contact or nil. Strategy order is absolute:
//  1. participant emails from the platform's own report
//  2. registrant/host email from the webhook payload
//  3. appointment free-text scan for the meeting ID
//  4. (within 1-2) meeting-ID disambiguation of multi-contact email hits
//  5. "Client Name:" line extracted from the summary
func (r *Resolver) Resolve(ctx context.Context, sig Signals) *Match {
	if r.participants != nil && r.participants.Configured() && sig.MeetingUUID != "" {
		emails, err := r.participants.ParticipantEmails(ctx, sig.MeetingUUID)
		if err != nil {
			r.logger.Warn("participant report lookup failed",
				zap.String("meeting_uuid", sig.MeetingUUID), zap.Error(err))
		}
		for _, email := range emails {
			if m := r.lookupByEmail(ctx, email, sig.MeetingID); m != nil {
				r.logger.Info("contact resolved via participant email",
					zap.String("contact_id", m.ContactID))
				return m
			}
		}
	}

	for _, email := range []string{sig.RegistrantEmail, sig.HostEmail} {
		if email == "" {
			continue
		}
		if m := r.lookupByEmail(ctx, email, sig.MeetingID); m != nil {
			r.logger.Info("contact resolved via webhook email",
				zap.String("contact_id", m.ContactID))
			return m
		}
	}

	if m := r.lookupByAppointment(ctx, sig.MeetingID); m != nil {
		r.logger.Info("contact resolved via appointment scan",
			zap.String("contact_id", m.ContactID))
		return m
	}

	if name := extractClientName(sig.SummaryText); name != "" {
		if m := r.lookupByName(ctx, name, sig.MeetingID); m != nil {
			r.logger.Info("contact resolved via extracted name",
				zap.String("contact_id", m.ContactID), zap.String("name", name))
			return m
		}
	}

	return nil
}

// lookupByEmail searches the CRM for an email. Multiple hits are
// disambiguated against the appointment scan when the meeting ID allows;
// otherwise the first hit wins (documented arbitrary tie-break).
func (r *Resolver) lookupByEmail(ctx context.Context, email, meetingID string) *Match {
	contacts, err := r.directory.SearchContacts(ctx, email)
	if err != nil {
		r.logger.Warn("contact search failed", zap.String("query", email), zap.Error(err))
		return nil
	}
	return r.pickContact(ctx, contacts, meetingID)
}

func (r *Resolver) lookupByName(ctx context.Context, name, meetingID string) *Match {
	contacts, err := r.directory.SearchContacts(ctx, name)
	if err != nil {
		r.logger.Warn("contact search failed", zap.String("query", name), zap.Error(err))
		return nil
	}
	return r.pickContact(ctx, contacts, meetingID)
}

func (r *Resolver) pickContact(ctx context.Context, contacts []crm.Contact, meetingID string) *Match {
	switch len(contacts) {
	case 0:
		return nil
	case 1:
		return &Match{ContactID: contacts[0].ID}
	}
	if appt := r.lookupByAppointment(ctx, meetingID); appt != nil {
		for _, contact := range contacts {
			if contact.ID == appt.ContactID {
				return appt
			}
		}
	}
	return &Match{ContactID: contacts[0].ID}
}

// lookupByAppointment scans calendar entries within the window around now
// for one whose free-text fields contain the meeting ID.
func (r *Resolver) lookupByAppointment(ctx context.Context, meetingID string) *Match {
	if meetingID == "" {
		return nil
	}
	now := r.now()
	events, err := r.directory.CalendarEvents(ctx, now.Add(-r.window), now.Add(r.window))
	if err != nil {
		r.logger.Warn("calendar scan failed", zap.Error(err))
		return nil
	}
	for _, ev := range events {
		if ev.ContactID == "" {
			continue
		}
		if matchesMeetingID(ev.Title, meetingID) ||
			matchesMeetingID(ev.Address, meetingID) ||
			matchesMeetingID(ev.Notes, meetingID) {
			return &Match{ContactID: ev.ContactID}
		}
	}
	return nil
}
