package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/practice-booking/internal/handler"
	"github.com/iliyamo/practice-booking/internal/middleware"
	"github.com/iliyamo/practice-booking/internal/utils"
)

// RegisterClient registers client-scoped endpoints under /v1.  All routes
// require a valid JWT with the CLIENT role; the token subject is the
// client id.  Writes pass through the rate limiter.
func RegisterClient(e *echo.Echo, h *handler.ClientHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleClient),
	)
	g.POST("/bookings", h.CreateBooking, limit)
	g.GET("/my-bookings", h.ListBookings)
	g.GET("/bookings/:id", h.GetBooking)
	g.POST("/bookings/:id/cancel", h.CancelBooking, limit)
	g.POST("/bookings/:id/reschedule", h.RescheduleBooking, limit)

	g.GET("/credits", h.GetCredits)
	g.GET("/credits/transactions", h.ListCreditTransactions)
}
