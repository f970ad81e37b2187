// Package queue defines the reservation events exchanged over RabbitMQ and
// the publisher and consumer that move them.
package queue

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/space-reservation/internal/model"
)

// EventType names what happened to a reservation.
type EventType string

const (
	EventCreated   EventType = "reservation.created"
	EventCancelled EventType = "reservation.cancelled"
	EventReminder  EventType = "reservation.reminder"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventCreated, EventCancelled, EventReminder:
		return true
	}
	return false
}

// ReservationEvent is published after a reservation change commits and
// when a reminder is due.  It carries enough for consumers to notify the
// user without reading the primary database.
type ReservationEvent struct {
	EventID            string    `json:"event_id"`
	Type               EventType `json:"type"`
	ReservationID      uint64    `json:"reservation_id"`
	SpaceID            uint64    `json:"space_id"`
	UserID             uint64    `json:"user_id"`
	ConfirmationCode   string    `json:"confirmation_code"`
	Status             string    `json:"status"`
	StartsAt           string    `json:"starts_at"`
	EndsAt             string    `json:"ends_at"`
	CancellationReason string    `json:"cancellation_reason,omitempty"`
	OccurredAt         string    `json:"occurred_at"`
}

// NewEvent builds an event for r with a fresh event ID.
func NewEvent(t EventType, r model.Reservation, at time.Time) ReservationEvent {
	ev := ReservationEvent{
		EventID:          uuid.NewString(),
		Type:             t,
		ReservationID:    r.ID,
		SpaceID:          r.SpaceID,
		UserID:           r.UserID,
		ConfirmationCode: r.ConfirmationCode,
		Status:           string(r.Status),
		StartsAt:         r.StartAt.UTC().Format(time.RFC3339),
		EndsAt:           r.EndAt.UTC().Format(time.RFC3339),
		OccurredAt:       at.UTC().Format(time.RFC3339),
	}
	if r.CancellationReason != nil {
		ev.CancellationReason = string(*r.CancellationReason)
	}
	return ev
}

// Validate rejects events a consumer cannot act on.
func (e ReservationEvent) Validate() error {
	switch {
	case e.EventID == "":
		return errors.New("event_id is required")
	case !e.Type.Valid():
		return errors.New("unknown event type " + string(e.Type))
	case e.ReservationID == 0:
		return errors.New("reservation_id is required")
	case e.UserID == 0:
		return errors.New("user_id is required")
	}
	if _, err := time.Parse(time.RFC3339, e.StartsAt); err != nil {
		return errors.New("starts_at must be RFC 3339")
	}
	return nil
}
