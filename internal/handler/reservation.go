package handler

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/space-reservation/internal/apperror"
	"github.com/iliyamo/space-reservation/internal/engine"
	"github.com/iliyamo/space-reservation/internal/eligibility"
	"github.com/iliyamo/space-reservation/internal/model"
	"github.com/iliyamo/space-reservation/internal/policy"
)

// ReservationHandler serves the customer reservation endpoints.
type ReservationHandler struct {
	Engine *engine.Engine
}

// NewReservationHandler panics on a nil engine; routes are useless
// without it.
func NewReservationHandler(e *engine.Engine) *ReservationHandler {
	if e == nil {
		panic("reservation handler: nil engine")
	}
	return &ReservationHandler{Engine: e}
}

// decodeRequest reads the loosely typed booking request.  Only a body
// that is not a JSON object fails here; mistyped fields surface later as
// rule violations.
func decodeRequest(c echo.Context) (eligibility.Request, error) {
	var req eligibility.Request
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return req, apperror.Validation("Invalid request body")
	}
	return req, nil
}

// Validate handles POST /v1/reservations/validate.  It always answers
// 200 with {valid, errors} so clients can show every violation at once.
func (h *ReservationHandler) Validate(c echo.Context) error {
	req, err := decodeRequest(c)
	if err != nil {
		return c.JSON(http.StatusOK, eligibility.Result{Valid: false, Errors: []string{apperror.MessageOf(err)}})
	}
	return c.JSON(http.StatusOK, h.Engine.Validate(req))
}

// Create handles POST /v1/reservations.
func (h *ReservationHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	req, err := decodeRequest(c)
	if err != nil {
		return writeError(c, err)
	}
	r, err := h.Engine.CreateReservation(c.Request().Context(), uid, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toReservationResponse(*r))
}

// Get handles GET /v1/reservations/:id.  Only the owner or an admin may
// read a reservation.
func (h *ReservationHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	r, err := h.Engine.GetReservation(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	if r.UserID != uid && !isAdmin(c) {
		return writeError(c, apperror.Unauthorized("You can only view your own bookings"))
	}
	return c.JSON(http.StatusOK, toReservationResponse(*r))
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"omitempty,oneof=USER_REQUESTED ADMINISTRATIVE SPACE_MAINTENANCE"`
}

// Cancel handles POST /v1/reservations/:id/cancel.  The reason defaults
// to USER_REQUESTED.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var body cancelRequest
	if err := bindAndValidate(c, &body); err != nil {
		return writeError(c, err)
	}
	reason := model.ReasonUserRequested
	if body.Reason != "" {
		reason = model.CancellationReason(body.Reason)
	}

	actor := policy.Actor{UserID: uid, Elevated: isAdmin(c)}
	r, err := h.Engine.CancelReservation(c.Request().Context(), id, actor, reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toReservationResponse(*r))
}
