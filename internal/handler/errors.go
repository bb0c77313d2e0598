package handler

import (
    "errors"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/practice-booking/internal/booking"
)

// statusFor maps engine failure kinds to HTTP statuses.
var statusFor = map[booking.Kind]int{
    booking.KindValidation:         http.StatusBadRequest,
    booking.KindSlotUnavailable:    http.StatusConflict,
    booking.KindPolicyViolation:    http.StatusUnprocessableEntity,
    booking.KindInsufficientCredit: http.StatusPaymentRequired,
    booking.KindNotFound:           http.StatusNotFound,
    booking.KindForbidden:          http.StatusForbidden,
}

// respondError writes err as a JSON body.  Typed engine failures carry
// their kind, reason and message; anything else is logged and reported
// as a 500 without details.
func respondError(c echo.Context, log *zap.Logger, err error) error {
    var be *booking.Error
    if errors.As(err, &be) {
        body := echo.Map{"error": string(be.Kind), "message": be.Message}
        if be.Reason != "" {
            body["reason"] = be.Reason
        }
        status, ok := statusFor[be.Kind]
        if !ok {
            status = http.StatusBadRequest
        }
        return c.JSON(status, body)
    }
    log.Error("request failed",
        zap.String("method", c.Request().Method),
        zap.String("path", c.Path()),
        zap.Error(err))
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error"})
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    return id, err == nil && id > 0
}

func badRequest(c echo.Context, msg string) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"error": string(booking.KindValidation), "message": msg})
}
