package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/space-reservation/internal/handler"
	"github.com/iliyamo/space-reservation/internal/middleware"
)

// RegisterRoutes registers the unauthenticated probes.  checks feed the
// readiness endpoint; liveness never touches dependencies.
func RegisterRoutes(e *echo.Echo, checks map[string]handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(checks))
}

// RegisterSpaces exposes slot availability.  It is public so clients can
// browse before signing in; limiter applies per IP.
func RegisterSpaces(e *echo.Echo, s *handler.SpaceHandler, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/spaces", limiter)
	g.GET("/:id/slots", s.Slots)
}

// RegisterReservations registers the customer reservation endpoints.
// Every route needs a valid access token with the USER or ADMIN role.
// The limiter runs after authentication so it can key on the user.
func RegisterReservations(e *echo.Echo, r *handler.ReservationHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/reservations")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(middleware.RoleUser, middleware.RoleAdmin))
	g.Use(limiter)

	g.POST("/validate", r.Validate)
	g.POST("", r.Create)
	g.GET("/:id", r.Get)
	g.POST("/:id/cancel", r.Cancel)
}

// RegisterAdmin registers facility administration routes, restricted to
// the ADMIN role.
func RegisterAdmin(e *echo.Echo, s *handler.SpaceHandler, jwtSecret string) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(middleware.RoleAdmin))

	g.PUT("/spaces/:id/status", s.SetStatus)
}
