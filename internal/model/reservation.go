package model

import "time"

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	StatusConfirmed ReservationStatus = "CONFIRMED"
	StatusCancelled ReservationStatus = "CANCELLED"
	StatusCompleted ReservationStatus = "COMPLETED"
	StatusNoShow    ReservationStatus = "NO_SHOW"
)

// CancellationReason records why a reservation was cancelled.
type CancellationReason string

const (
	ReasonUserRequested    CancellationReason = "USER_REQUESTED"
	ReasonAdministrative   CancellationReason = "ADMINISTRATIVE"
	ReasonSpaceMaintenance CancellationReason = "SPACE_MAINTENANCE"
)

// Valid reports whether r is one of the known reasons.
func (r CancellationReason) Valid() bool {
	switch r {
	case ReasonUserRequested, ReasonAdministrative, ReasonSpaceMaintenance:
		return true
	}
	return false
}

// Reservation is a claim on a space for [StartAt, EndAt) by a user.
// Reservations are never deleted; cancellation is a status change.
//
// Fields:
//  ID                 – primary key identifier.
//  SpaceID            – reserved space.
//  UserID             – user who made the reservation.
//  StartAt, EndAt     – absolute instants, stored in UTC.
//  AttendeeCount      – number of attendees, nil when not supplied.
//  Status             – CONFIRMED, CANCELLED, COMPLETED or NO_SHOW.
//  ConfirmationCode   – unique user-facing code.
//  CancellationReason – set only when Status is CANCELLED.
//  CancelledAt        – when the cancellation was committed.
//  ReminderSent       – flips false to true once, never back.
type Reservation struct {
	ID                 uint64              // reservations.id
	SpaceID            uint64              // reservations.space_id
	UserID             uint64              // reservations.user_id
	StartAt            time.Time           // reservations.start_at
	EndAt              time.Time           // reservations.end_at
	AttendeeCount      *int                // reservations.attendee_count (nullable)
	Status             ReservationStatus   // reservations.status
	ConfirmationCode   string              // reservations.confirmation_code
	CancellationReason *CancellationReason // reservations.cancellation_reason (nullable)
	CancelledAt        *time.Time          // reservations.cancelled_at (nullable)
	ReminderSent       bool                // reservations.reminder_sent
	CreatedAt          time.Time           // reservations.created_at
	UpdatedAt          time.Time           // reservations.updated_at
}

// Overlaps reports whether the reservation's interval intersects
// [start, end).  Touching intervals do not overlap.
func (r Reservation) Overlaps(start, end time.Time) bool {
	return r.StartAt.Before(end) && r.EndAt.After(start)
}

// Blocks reports whether the reservation holds its slot, i.e. it is
// confirmed and overlaps [start, end).
func (r Reservation) Blocks(start, end time.Time) bool {
	return r.Status == StatusConfirmed && r.Overlaps(start, end)
}
