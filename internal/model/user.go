package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// UserContact is the subset of a user record the notification worker
// needs.  Identity and authentication live outside this service.
type UserContact struct {
	ID          uint64                  // users.id
	Email       string                  // users.email
	Name        string                  // users.name
	Preferences NotificationPreferences // users.notification_preferences
}

// NotificationPreferences is the typed form of the notification settings
// column.  Legacy rows hold either a JSON object or a JSON string that
// itself contains an object; Scan accepts both so nothing downstream has
// to re-interpret the raw value.
type NotificationPreferences struct {
	Email     bool `json:"email"`
	InApp     bool `json:"in_app"`
	Reminders bool `json:"reminders"`
}

// DefaultNotificationPreferences enables every channel.
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{Email: true, InApp: true, Reminders: true}
}

// Scan implements sql.Scanner.
func (p *NotificationPreferences) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = DefaultNotificationPreferences()
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("notification preferences: unsupported type %T", src)
	}
	return p.UnmarshalJSON(raw)
}

// UnmarshalJSON accepts an object or a string holding an encoded object.
// Missing keys keep their default (enabled).
func (p *NotificationPreferences) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		*p = DefaultNotificationPreferences()
		return nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return fmt.Errorf("notification preferences: %w", err)
		}
		return p.UnmarshalJSON([]byte(inner))
	}
	type plain NotificationPreferences
	out := plain(DefaultNotificationPreferences())
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("notification preferences: %w", err)
	}
	*p = NotificationPreferences(out)
	return nil
}

// Value implements driver.Valuer; the canonical stored form is an object.
func (p NotificationPreferences) Value() (driver.Value, error) {
	type plain NotificationPreferences
	return json.Marshal(plain(p))
}
