package booking

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/practice-booking/internal/availability"
	"github.com/iliyamo/practice-booking/internal/metrics"
	"github.com/iliyamo/practice-booking/internal/model"
	"github.com/iliyamo/practice-booking/internal/repository"
)

// CreateInput is a validated booking request.
type CreateInput struct {
	SessionType string `json:"session_type"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	ClientID    uint64 `json:"-"`
	UseCredit   bool   `json:"use_credit"`
	Currency    string `json:"currency,omitempty"`
}

// Create books a slot for a client.
//
// The slot is re-validated against freshly computed availability first,
// so most conflicts fail before a credit is touched.  The booking insert
// and the optional credit debit then commit together; a concurrent
// writer that took the same slot makes the insert fail on the slot key,
// which is reported as a slot-unavailable error.  Calendar and
// notification side effects run after the commit and cannot fail the
// call.
func (e *Engine) Create(ctx context.Context, in CreateInput) (*model.Booking, error) {
	b, err := e.create(ctx, in)
	if err != nil {
		return nil, reject("create", err)
	}
	return b, nil
}

func (e *Engine) create(ctx context.Context, in CreateInput) (*model.Booking, error) {
	st, ok := e.types.Get(in.SessionType)
	if !ok {
		return nil, validation("unknown session type %q", in.SessionType)
	}
	if in.ClientID == 0 {
		return nil, validation("client id is required")
	}
	startMin, err := e.parseSlotInput(in.Date, in.StartTime)
	if err != nil {
		return nil, err
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = e.policy.Currency
	}
	price, ok := st.Price(currency)
	if !ok {
		return nil, validation("session type %q has no price in %s", st.ID, currency)
	}

	client, err := e.clients.GetByID(ctx, in.ClientID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("client")
	}
	if err != nil {
		return nil, err
	}

	if st.IsFree {
		used, err := e.bookings.HasBookedType(ctx, client.ID, st.ID)
		if err != nil {
			return nil, err
		}
		if used {
			return nil, violation("free_session_already_used", "a free session of this type was already booked")
		}
	}

	slots, err := e.slots(ctx, in.Date, st.DurationMinutes, 0)
	if err != nil {
		return nil, err
	}
	slot, ok := availability.Find(slots, in.StartTime)
	if !ok {
		return nil, slotUnavailable(nil)
	}

	useCredit := in.UseCredit && !st.IsFree
	rec := &repository.BookingRecord{
		Booking: model.Booking{
			SessionType:       st.ID,
			Date:              in.Date,
			StartTime:         slot.Start,
			EndTime:           model.FormatClock(startMin + st.DurationMinutes),
			DurationMinutes:   st.DurationMinutes,
			Status:            model.StatusConfirmed,
			ClientID:          client.ID,
			PriceCents:        price,
			Currency:          currency,
			PaidWithCredit:    useCredit,
			ConfirmationToken: uuid.NewString(),
		},
		SlotKey: e.slotKey(in.Date, slot.Start),
	}
	if st.IsFree {
		key := freeClaimKey(client.ID, st.ID)
		rec.FreeClaimKey = &key
	}

	tx, err := e.bookings.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	now := e.now()
	if err := e.bookings.CreateTx(ctx, tx, rec, now); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// release the connection before the follow-up read
			_ = tx.Rollback()
			committed = true
			return nil, e.duplicateOnCreate(ctx, st.IsFree, client.ID, st.ID, err)
		}
		return nil, err
	}
	b := &rec.Booking
	if useCredit {
		reason := "booking " + strconv.FormatUint(b.ID, 10)
		if err := e.credits.DeductTx(ctx, tx, client.ID, b.ID, reason, now); err != nil {
			if errors.Is(err, repository.ErrInsufficientCredit) {
				return nil, &Error{Kind: KindInsufficientCredit, Message: "no session credit left", Cause: err}
			}
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	metrics.BookingsCreated.WithLabelValues(st.ID, strconv.FormatBool(useCredit)).Inc()
	if useCredit {
		metrics.CreditMovements.WithLabelValues(string(model.CreditDeduct)).Inc()
	}
	e.log.Info("booking created",
		zap.Uint64("booking_id", b.ID),
		zap.Uint64("client_id", client.ID),
		zap.String("session_type", st.ID),
		zap.String("date", b.Date),
		zap.String("start", b.StartTime),
		zap.Bool("paid_with_credit", useCredit))

	var tasks postCommit
	e.attachEvent(&tasks, client, b)
	e.notify(&tasks, TemplateBookingConfirmed, client, b, nil)
	tasks.run(ctx, e.log, e.timeout, b.ID)
	return b, nil
}

// duplicateOnCreate tells a lost free-session race from a lost slot race.
// The transaction has been rolled back, so the lookup runs on its own.
func (e *Engine) duplicateOnCreate(ctx context.Context, free bool, clientID uint64, typeID string, cause error) error {
	if free {
		used, err := e.bookings.HasBookedType(ctx, clientID, typeID)
		if err == nil && used {
			return violation("free_session_already_used", "a free session of this type was already booked")
		}
	}
	return slotUnavailable(cause)
}
