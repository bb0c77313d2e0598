package handler

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/practice-booking/internal/booking"
    "github.com/iliyamo/practice-booking/internal/model"
)

// AdminHandler serves the practice-side routes.  Admin actions bypass
// the ownership check but not the cancellation and reschedule policy,
// unless the booking carries a policy override.
type AdminHandler struct {
    Engine *booking.Engine
    Log    *zap.Logger
}

// NewAdminHandler panics when engine is nil.
func NewAdminHandler(engine *booking.Engine, log *zap.Logger) *AdminHandler {
    if engine == nil {
        panic("nil engine passed to NewAdminHandler")
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &AdminHandler{Engine: engine, Log: log}
}

// GetBooking handles GET /v1/admin/bookings/:id.
func (h *AdminHandler) GetBooking(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid booking id")
    }
    b, err := h.Engine.Get(c.Request().Context(), id, model.ActorAdmin, 0)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, b)
}

// CancelBooking handles POST /v1/admin/bookings/:id/cancel.
func (h *AdminHandler) CancelBooking(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid booking id")
    }
    var body cancelBody
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    res, err := h.Engine.Cancel(c.Request().Context(), booking.CancelInput{
        BookingID: id,
        Actor:     model.ActorAdmin,
        Reason:    body.Reason,
    })
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, res)
}

// RescheduleBooking handles POST /v1/admin/bookings/:id/reschedule.
func (h *AdminHandler) RescheduleBooking(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid booking id")
    }
    var in booking.RescheduleInput
    if err := c.Bind(&in); err != nil {
        return badRequest(c, "invalid request body")
    }
    in.BookingID, in.Actor, in.ClientID = id, model.ActorAdmin, 0
    b, err := h.Engine.Reschedule(c.Request().Context(), in)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, b)
}

// SetPolicyOverride handles PUT /v1/admin/bookings/:id/policy-override
// with body {"override": true|false}.
func (h *AdminHandler) SetPolicyOverride(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid booking id")
    }
    var body struct {
        Override *bool `json:"override"`
    }
    if err := c.Bind(&body); err != nil || body.Override == nil {
        return badRequest(c, "override must be true or false")
    }
    b, err := h.Engine.SetPolicyOverride(c.Request().Context(), id, *body.Override)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, b)
}

// MarkOutcome handles PUT /v1/admin/bookings/:id/outcome with body
// {"status": "completed"|"no_show"}.
func (h *AdminHandler) MarkOutcome(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid booking id")
    }
    var body struct {
        Status string `json:"status"`
    }
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    status := model.BookingStatus(strings.ToLower(strings.TrimSpace(body.Status)))
    b, err := h.Engine.MarkOutcome(c.Request().Context(), id, status)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, b)
}

// GrantCredits handles POST /v1/admin/clients/:id/credits with body
// {"credits": n, "reason": "..."}.
func (h *AdminHandler) GrantCredits(c echo.Context) error {
    clientID, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid client id")
    }
    var body struct {
        Credits int    `json:"credits"`
        Reason  string `json:"reason"`
    }
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    cb, err := h.Engine.GrantCredits(c.Request().Context(), clientID, body.Credits, body.Reason)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusCreated, cb)
}

// ClientCredits handles GET /v1/admin/clients/:id/credits: balance,
// ledger and the consistency check in one response.
func (h *AdminHandler) ClientCredits(c echo.Context) error {
    clientID, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid client id")
    }
    ctx := c.Request().Context()
    check, err := h.Engine.Verify(ctx, clientID)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    txs, err := h.Engine.Transactions(ctx, clientID)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    if txs == nil {
        txs = []model.CreditTransaction{}
    }
    return c.JSON(http.StatusOK, echo.Map{
        "client_id":    clientID,
        "balance":      check.Balance,
        "ledger_sum":   check.LedgerSum,
        "consistent":   check.OK,
        "transactions": txs,
    })
}

// ListClientBookings handles GET /v1/admin/clients/:id/bookings.
func (h *AdminHandler) ListClientBookings(c echo.Context) error {
    clientID, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid client id")
    }
    items, err := h.Engine.ListByClient(c.Request().Context(), clientID)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    if items == nil {
        items = []model.Booking{}
    }
    return c.JSON(http.StatusOK, echo.Map{"bookings": items})
}
