// Package policy holds the reservation status state machine and the
// rules that decide whether a cancellation may proceed.
package policy

import (
	"fmt"
	"time"

	"github.com/iliyamo/space-reservation/internal/apperror"
	"github.com/iliyamo/space-reservation/internal/model"
)

// transitions lists the allowed status changes.  Every terminal status
// is reached from CONFIRMED only.
var transitions = map[model.ReservationStatus][]model.ReservationStatus{
	model.StatusConfirmed: {model.StatusCancelled, model.StatusCompleted, model.StatusNoShow},
}

// CanTransition reports whether a reservation may move from one status to
// another.
func CanTransition(from, to model.ReservationStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Actor is the identity requesting a cancellation.  Elevated is decided by
// the authorization layer before the engine is called.
type Actor struct {
	UserID   uint64
	Elevated bool
}

// Cancellation enforces ownership, status and grace-period rules.
type Cancellation struct {
	// GracePeriod is the minimum lead time before start for a
	// user-requested cancellation.  A lead time equal to GracePeriod is
	// allowed; anything shorter is rejected.
	GracePeriod time.Duration
}

// Check returns nil when actor may cancel r for reason at now.
// Administrative and maintenance cancellations skip the past-start and
// grace-period guards; only elevated actors may use them.
func (c Cancellation) Check(r model.Reservation, actor Actor, reason model.CancellationReason, now time.Time) error {
	if !reason.Valid() {
		return apperror.Validation(fmt.Sprintf("Unknown cancellation reason %q", reason))
	}
	if r.UserID != actor.UserID && !actor.Elevated {
		return apperror.Unauthorized("You can only cancel your own bookings")
	}
	if reason != model.ReasonUserRequested && !actor.Elevated {
		return apperror.Unauthorized("Only administrators may cancel with this reason")
	}
	if !CanTransition(r.Status, model.StatusCancelled) {
		return apperror.Validation("Only confirmed bookings may be cancelled")
	}
	if reason != model.ReasonUserRequested {
		return nil
	}
	if r.StartAt.Before(now) {
		return apperror.Validation("Cannot cancel past bookings")
	}
	if lead := r.StartAt.Sub(now); lead < c.GracePeriod {
		return apperror.Validation(fmt.Sprintf("Bookings can only be cancelled at least %s before they start", formatLead(c.GracePeriod)))
	}
	return nil
}

func formatLead(d time.Duration) string {
	if d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return fmt.Sprintf("%d minutes", int(d/time.Minute))
}

// MassCancellationReason maps a space status change to the reason stamped
// on the reservations it cancels.  ok is false when the new status does
// not cancel anything.
func MassCancellationReason(to model.SpaceStatus) (reason model.CancellationReason, ok bool) {
	switch to {
	case model.SpaceMaintenance:
		return model.ReasonSpaceMaintenance, true
	case model.SpaceDeleted:
		return model.ReasonAdministrative, true
	}
	return "", false
}
