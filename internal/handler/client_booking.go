package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/practice-booking/internal/booking"
    "github.com/iliyamo/practice-booking/internal/middleware"
    "github.com/iliyamo/practice-booking/internal/model"
)

// ClientHandler serves the routes of an authenticated client.  The
// client id always comes from the token subject, never from the body.
type ClientHandler struct {
    Engine *booking.Engine
    Log    *zap.Logger
}

// NewClientHandler panics when engine is nil.
func NewClientHandler(engine *booking.Engine, log *zap.Logger) *ClientHandler {
    if engine == nil {
        panic("nil engine passed to NewClientHandler")
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &ClientHandler{Engine: engine, Log: log}
}

func unauthorized(c echo.Context) error {
    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

// CreateBooking handles POST /v1/bookings.
func (h *ClientHandler) CreateBooking(c echo.Context) error {
    clientID, err := middleware.ClientID(c)
    if err != nil {
        return unauthorized(c)
    }
    var in booking.CreateInput
    if err := c.Bind(&in); err != nil {
        return badRequest(c, "invalid request body")
    }
    in.ClientID = clientID
    b, err := h.Engine.Create(c.Request().Context(), in)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusCreated, b)
}

// ListBookings handles GET /v1/my-bookings.
func (h *ClientHandler) ListBookings(c echo.Context) error {
    clientID, err := middleware.ClientID(c)
    if err != nil {
        return unauthorized(c)
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

// GetBooking handles GET /v1/bookings/:id.
func (h *ClientHandler) GetBooking(c echo.Context) error {
    clientID, err := middleware.ClientID(c)
    if err != nil {
        return unauthorized(c)
    }
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid booking id")
    }
    b, err := h.Engine.Get(c.Request().Context(), id, model.ActorClient, clientID)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, b)
}

type cancelBody struct {
    Reason string `json:"reason"`
}

// CancelBooking handles POST /v1/bookings/:id/cancel.  The body is
// optional.
func (h *ClientHandler) CancelBooking(c echo.Context) error {
    clientID, err := middleware.ClientID(c)
    if err != nil {
        return unauthorized(c)
    }
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
        Actor:     model.ActorClient,
        ClientID:  clientID,
        Reason:    body.Reason,
    })
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, res)
}

// RescheduleBooking handles POST /v1/bookings/:id/reschedule.
func (h *ClientHandler) RescheduleBooking(c echo.Context) error {
    clientID, err := middleware.ClientID(c)
    if err != nil {
        return unauthorized(c)
    }
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid booking id")
    }
    var in booking.RescheduleInput
    if err := c.Bind(&in); err != nil {
        return badRequest(c, "invalid request body")
    }
    in.BookingID, in.Actor, in.ClientID = id, model.ActorClient, clientID
    b, err := h.Engine.Reschedule(c.Request().Context(), in)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, b)
}

// GetCredits handles GET /v1/credits.
func (h *ClientHandler) GetCredits(c echo.Context) error {
    clientID, err := middleware.ClientID(c)
    if err != nil {
        return unauthorized(c)
    }
    cb, err := h.Engine.Balance(c.Request().Context(), clientID)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, cb)
}

// ListCreditTransactions handles GET /v1/credits/transactions.
func (h *ClientHandler) ListCreditTransactions(c echo.Context) error {
    clientID, err := middleware.ClientID(c)
    if err != nil {
        return unauthorized(c)
    }
    txs, err := h.Engine.Transactions(c.Request().Context(), clientID)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    if txs == nil {
        txs = []model.CreditTransaction{}
    }
    return c.JSON(http.StatusOK, echo.Map{"transactions": txs})
}
