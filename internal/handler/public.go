package handler

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/practice-booking/internal/booking"
    "github.com/iliyamo/practice-booking/internal/model"
)

// PublicHandler serves the unauthenticated catalogue, slot and
// confirmation reads.
type PublicHandler struct {
    Engine *booking.Engine
    Log    *zap.Logger
}

// NewPublicHandler panics when engine is nil.
func NewPublicHandler(engine *booking.Engine, log *zap.Logger) *PublicHandler {
    if engine == nil {
        panic("nil engine passed to NewPublicHandler")
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &PublicHandler{Engine: engine, Log: log}
}

// ListSessionTypes handles GET /v1/session-types.
func (h *PublicHandler) ListSessionTypes(c echo.Context) error {
    return c.JSON(http.StatusOK, echo.Map{"session_types": h.Engine.SessionTypes()})
}

// ListSlots handles GET /v1/slots?date=YYYY-MM-DD&session_type=id.
func (h *PublicHandler) ListSlots(c echo.Context) error {
    date := strings.TrimSpace(c.QueryParam("date"))
    st := strings.TrimSpace(c.QueryParam("session_type"))
    if date == "" || st == "" {
        return badRequest(c, "date and session_type are required")
    }
    slots, err := h.Engine.ListSlots(c.Request().Context(), date, st)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    if slots == nil {
        slots = []model.Slot{}
    }
    return c.JSON(http.StatusOK, echo.Map{
        "date":         date,
        "session_type": st,
        "timezone":     h.Engine.Policy().Location.String(),
        "slots":        slots,
    })
}

// confirmationView is the subset of a booking shown to whoever holds the
// confirmation token.
type confirmationView struct {
    SessionType string              `json:"session_type"`
    Date        string              `json:"date"`
    StartTime   string              `json:"start_time"`
    EndTime     string              `json:"end_time"`
    Status      model.BookingStatus `json:"status"`
    MeetingURL  *string             `json:"meeting_url,omitempty"`
}

// GetByConfirmationToken handles GET /v1/bookings/confirm/:token.
func (h *PublicHandler) GetByConfirmationToken(c echo.Context) error {
    b, err := h.Engine.GetByConfirmationToken(c.Request().Context(), c.Param("token"))
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, confirmationView{
        SessionType: b.SessionType,
        Date:        b.Date,
        StartTime:   b.StartTime,
        EndTime:     b.EndTime,
        Status:      b.Status,
        MeetingURL:  b.MeetingURL,
    })
}
