package queue

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/space-reservation/internal/model"
)

// ContactLookup resolves a user's contact details.  A nil contact with a
// nil error means the user is unknown.
type ContactLookup interface {
	GetContact(ctx context.Context, userID uint64) (*model.UserContact, error)
}

// Delivery channels a notification can go out on.
const (
	ChannelEmail = "email"
	ChannelInApp = "in_app"
)

// Channels returns the channels an event of type t reaches for a user
// with prefs.  Reminders additionally require the reminders opt-in.
func Channels(prefs model.NotificationPreferences, t EventType) []string {
	if t == EventReminder && !prefs.Reminders {
		return nil
	}
	var out []string
	if prefs.Email {
		out = append(out, ChannelEmail)
	}
	if prefs.InApp {
		out = append(out, ChannelInApp)
	}
	return out
}

// LogSink records deliveries as structured log lines.  It stands in for
// an email or push gateway.
type LogSink struct {
	contacts ContactLookup
	log      *zap.Logger
}

func NewLogSink(contacts ContactLookup, log *zap.Logger) *LogSink {
	return &LogSink{contacts: contacts, log: log}
}

// Handle is a Handler.  Unknown users and opted-out users are skipped
// without error so the message is acknowledged.
func (s *LogSink) Handle(ctx context.Context, ev ReservationEvent) error {
	contact, err := s.contacts.GetContact(ctx, ev.UserID)
	if err != nil {
		return fmt.Errorf("lookup user %d: %w", ev.UserID, err)
	}
	if contact == nil {
		s.log.Warn("notification skipped: unknown user",
			zap.String("event_id", ev.EventID), zap.Uint64("user_id", ev.UserID))
		return nil
	}
	channels := Channels(contact.Preferences, ev.Type)
	if len(channels) == 0 {
		s.log.Info("notification skipped: user opted out",
			zap.String("event_id", ev.EventID), zap.String("type", string(ev.Type)), zap.Uint64("user_id", ev.UserID))
		return nil
	}
	s.log.Info("notification delivered",
		zap.String("event_id", ev.EventID),
		zap.String("type", string(ev.Type)),
		zap.Uint64("reservation_id", ev.ReservationID),
		zap.String("code", ev.ConfirmationCode),
		zap.String("email", contact.Email),
		zap.Strings("channels", channels),
		zap.String("starts_at", ev.StartsAt),
		zap.String("reason", ev.CancellationReason),
	)
	return nil
}
