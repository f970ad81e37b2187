package handler // handler defines http handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/space-reservation/internal/apperror"
	"github.com/iliyamo/space-reservation/internal/middleware"
)

// getUserID extracts the user_id stored by the JWT middleware.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		if t > 0 {
			return t, nil
		}
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// isAdmin reports whether the caller holds the elevated role.
func isAdmin(c echo.Context) bool {
	role, _ := c.Get("role").(string)
	return role == middleware.RoleAdmin
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// statusFor maps an engine error kind to an HTTP status.
func statusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindConflict:
		return http.StatusConflict
	case apperror.KindLimitExceeded:
		return http.StatusTooManyRequests
	case apperror.KindUnauthorized:
		return http.StatusForbidden
	case apperror.KindTransient:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error": ..., "details": [...]}.  Storage
// details never reach the client.
func writeError(c echo.Context, err error) error {
	kind := apperror.KindOf(err)
	body := echo.Map{"error": apperror.MessageOf(err)}
	var ae *apperror.Error
	if errors.As(err, &ae) && len(ae.Details) > 0 {
		body["details"] = ae.Details
	}
	if kind == apperror.KindTransient || kind == apperror.KindUnknown {
		c.Logger().Errorf("request failed: %v", err)
	}
	if apperror.Is(err, apperror.KindTransient) {
		c.Response().Header().Set("Retry-After", "1")
	}
	return c.JSON(statusFor(kind), body)
}
