package handler // declare the package name; contains HTTP handlers

import (
    "context"
    "database/sql"
    "net/http"
    "time"

    "github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Health is a liveness endpoint used by load balancers and monitoring
// systems.  It returns a plain text "ok" with an HTTP 200 status code.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}

// Ready reports 503 until the store answers a ping.
func Ready(db *sql.DB) echo.HandlerFunc {
    return func(c echo.Context) error {
        ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
        defer cancel()
        if err := db.PingContext(ctx); err != nil {
            return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
        }
        return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
    }
}
