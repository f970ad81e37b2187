package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/space-reservation/internal/engine"
	"github.com/iliyamo/space-reservation/internal/model"
)

// SpaceHandler serves slot availability and the admin status endpoint.
type SpaceHandler struct {
	Engine *engine.Engine
}

func NewSpaceHandler(e *engine.Engine) *SpaceHandler {
	if e == nil {
		panic("space handler: nil engine")
	}
	return &SpaceHandler{Engine: e}
}

type slotsQuery struct {
	Start string `query:"start" validate:"required,datetime=2006-01-02"`
	End   string `query:"end" validate:"omitempty,datetime=2006-01-02"`
}

// Slots handles GET /v1/spaces/:id/slots?start=YYYY-MM-DD[&end=YYYY-MM-DD].
// A missing end returns the single start day.
func (h *SpaceHandler) Slots(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid space id"})
	}
	var q slotsQuery
	if err := bindAndValidate(c, &q); err != nil {
		return writeError(c, err)
	}
	if q.End == "" {
		q.End = q.Start
	}
	days, err := h.Engine.ComputeRange(c.Request().Context(), id, q.Start, q.End)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"space_id": id, "days": days})
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=AVAILABLE MAINTENANCE DELETED"`
}

// SetStatus handles PUT /v1/admin/spaces/:id/status.  The response lists
// every reservation the change cancelled.
func (h *SpaceHandler) SetStatus(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid space id"})
	}
	var body statusRequest
	if err := bindAndValidate(c, &body); err != nil {
		return writeError(c, err)
	}
	change, err := h.Engine.SetSpaceStatus(c.Request().Context(), id, model.SpaceStatus(body.Status))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"space":     toSpaceResponse(change.Space),
		"cancelled": toReservationResponses(change.Cancelled),
	})
}
