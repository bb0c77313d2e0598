package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/practice-booking/internal/handler"
	"github.com/iliyamo/practice-booking/internal/middleware"
	"github.com/iliyamo/practice-booking/internal/utils"
)

// RegisterAdmin registers practice-side endpoints under /v1/admin.
// All routes require a valid JWT and the ADMIN role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleAdmin),
	)

	// ---- Bookings ----
	g.GET("/bookings/:id", h.GetBooking)
	g.POST("/bookings/:id/cancel", h.CancelBooking)
	g.POST("/bookings/:id/reschedule", h.RescheduleBooking)
	g.PUT("/bookings/:id/policy-override", h.SetPolicyOverride)
	g.PUT("/bookings/:id/outcome", h.MarkOutcome)

	// ---- Clients ----
	g.GET("/clients/:id/bookings", h.ListClientBookings)
	g.GET("/clients/:id/credits", h.ClientCredits)
	g.POST("/clients/:id/credits", h.GrantCredits)
}
