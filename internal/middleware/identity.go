package middleware

// identity.go holds the context keys written by JWTAuth and the helpers
// handlers and the rate limiter use to read them back.

import (
    "errors"
    "strconv"

    "github.com/labstack/echo/v4"
)

const (
    keyUserID = "user_id"
    keyRole   = "role"
)

// ErrNoIdentity is returned when a request carries no usable subject.
var ErrNoIdentity = errors.New("no authenticated subject in context")

// ClientID returns the authenticated subject as a numeric id.
func ClientID(c echo.Context) (uint64, error) {
    s, ok := c.Get(keyUserID).(string)
    if !ok || s == "" {
        return 0, ErrNoIdentity
    }
    id, err := strconv.ParseUint(s, 10, 64)
    if err != nil || id == 0 {
        return 0, ErrNoIdentity
    }
    return id, nil
}

// Role returns the role claim, or "" for anonymous requests.
func Role(c echo.Context) string {
    r, _ := c.Get(keyRole).(string)
    return r
}

// userID returns the subject for keying purposes, "guest" when absent.
func userID(c echo.Context) string {
    if s, ok := c.Get(keyUserID).(string); ok && s != "" {
        return s
    }
    return "guest"
}
