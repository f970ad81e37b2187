package engine

import (
	"context"
	"time"

	"github.com/iliyamo/space-reservation/internal/model"
)

// Store is the storage handle threaded through every engine operation.
// Lookups that find nothing return (nil, nil).
type Store interface {
	BeginTx(ctx context.Context) (Tx, error)

	GetSpace(ctx context.Context, id uint64) (*model.Space, error)
	GetReservation(ctx context.Context, id uint64) (*model.Reservation, error)
	// ListReservations returns confirmed reservations of the space that
	// overlap [from, to).
	ListReservations(ctx context.Context, spaceID uint64, from, to time.Time) ([]model.Reservation, error)
	// FindNeedingReminder returns confirmed reservations with the
	// reminder flag unset and a start in (from, to].
	FindNeedingReminder(ctx context.Context, from, to time.Time) ([]model.Reservation, error)
	// MarkReminderSent sets the reminder flag; found is false when the
	// reservation does not exist.
	MarkReminderSent(ctx context.Context, id uint64) (found bool, err error)
}

// Tx is one storage transaction.  Locks taken through it are held until
// Commit or Rollback.  Rollback after Commit is a no-op.
type Tx interface {
	Commit() error
	Rollback() error

	// LockSpace loads the space row with an exclusive lock.
	LockSpace(ctx context.Context, id uint64) (*model.Space, error)
	UpdateSpaceStatus(ctx context.Context, id uint64, status model.SpaceStatus) error

	// LockUser serialises concurrent create calls of one user.
	LockUser(ctx context.Context, userID uint64) error
	// CountActiveByUser counts the user's confirmed reservations that
	// start after now.
	CountActiveByUser(ctx context.Context, userID uint64, now time.Time) (int, error)
	// FindUserOverlaps returns the user's confirmed reservations that
	// overlap [start, end), on any space.
	FindUserOverlaps(ctx context.Context, userID uint64, start, end time.Time) ([]model.Reservation, error)
	// LockSpaceOverlaps returns the space's confirmed reservations that
	// overlap [start, end) and locks them exclusively.
	LockSpaceOverlaps(ctx context.Context, spaceID uint64, start, end time.Time) ([]model.Reservation, error)

	ConfirmationCodeExists(ctx context.Context, code string) (bool, error)
	// InsertReservation stores r and fills its ID and timestamps.
	InsertReservation(ctx context.Context, r *model.Reservation) error

	GetReservationForUpdate(ctx context.Context, id uint64) (*model.Reservation, error)
	CancelReservation(ctx context.Context, id uint64, reason model.CancellationReason, at time.Time) error
	// ListUpcomingBySpaceForUpdate returns the space's confirmed
	// reservations starting after now, locked.
	ListUpcomingBySpaceForUpdate(ctx context.Context, spaceID uint64, now time.Time) ([]model.Reservation, error)
}
