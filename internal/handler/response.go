package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/space-reservation/internal/apperror"
	"github.com/iliyamo/space-reservation/internal/model"
)

type reservationResponse struct {
	ID                 uint64     `json:"id"`
	SpaceID            uint64     `json:"space_id"`
	UserID             uint64     `json:"user_id"`
	StartTime          time.Time  `json:"start_time"`
	EndTime            time.Time  `json:"end_time"`
	AttendeeCount      *int       `json:"attendee_count,omitempty"`
	Status             string     `json:"status"`
	ConfirmationCode   string     `json:"confirmation_code"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

func toReservationResponse(r model.Reservation) reservationResponse {
	out := reservationResponse{
		ID:               r.ID,
		SpaceID:          r.SpaceID,
		UserID:           r.UserID,
		StartTime:        r.StartAt.UTC(),
		EndTime:          r.EndAt.UTC(),
		AttendeeCount:    r.AttendeeCount,
		Status:           string(r.Status),
		ConfirmationCode: r.ConfirmationCode,
		CancelledAt:      r.CancelledAt,
		CreatedAt:        r.CreatedAt.UTC(),
	}
	if r.CancellationReason != nil {
		reason := string(*r.CancellationReason)
		out.CancellationReason = &reason
	}
	return out
}

func toReservationResponses(rs []model.Reservation) []reservationResponse {
	out := make([]reservationResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, toReservationResponse(r))
	}
	return out
}

type spaceResponse struct {
	ID           uint64  `json:"id"`
	Name         string  `json:"name"`
	Capacity     uint32  `json:"capacity"`
	Status       string  `json:"status"`
	WeekdayHours *string `json:"weekday_hours"` // "HH:MM-HH:MM", null when closed
	WeekendHours *string `json:"weekend_hours"`
}

func hoursLabel(r *model.ClockRange) *string {
	if r == nil {
		return nil
	}
	s := r.String()
	return &s
}

func toSpaceResponse(s model.Space) spaceResponse {
	return spaceResponse{
		ID:           s.ID,
		Name:         s.Name,
		Capacity:     s.Capacity,
		Status:       string(s.Status),
		WeekdayHours: hoursLabel(s.Hours.Weekday),
		WeekendHours: hoursLabel(s.Hours.Weekend),
	}
}

// bindAndValidate decodes the request into dst and runs the registered
// validator over it.  Failures come back as Validation errors.
func bindAndValidate(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return apperror.Validation("Invalid request body")
	}
	if err := c.Validate(dst); err != nil {
		return apperror.ValidationList(fieldErrors(err))
	}
	return nil
}
