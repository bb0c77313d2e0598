package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/practice-booking/internal/handler"
)

// RegisterRoutes registers the operational endpoints: liveness,
// readiness against the store, and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterPublic registers unauthenticated reads.  The catalogue and
// slot listings go through the response cache; the confirmation page
// does not, since its status changes with the booking.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/session-types", p.ListSessionTypes, cache)
	e.GET("/v1/slots", p.ListSlots, cache)
	e.GET("/v1/bookings/confirm/:token", p.GetByConfirmationToken)
}
