package booking

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/practice-booking/internal/availability"
	"github.com/iliyamo/practice-booking/internal/metrics"
	"github.com/iliyamo/practice-booking/internal/model"
	"github.com/iliyamo/practice-booking/internal/policy"
	"github.com/iliyamo/practice-booking/internal/repository"
)

// RescheduleInput moves a booking to a new slot.  NewEndTime is optional;
// when given it must match the booking's duration.
type RescheduleInput struct {
	BookingID    uint64      `json:"-"`
	Actor        model.Actor `json:"-"`
	ClientID     uint64      `json:"-"`
	NewDate      string      `json:"date"`
	NewStartTime string      `json:"start_time"`
	NewEndTime   string      `json:"end_time,omitempty"`
}

// Reschedule moves a confirmed booking in place.  Status is unchanged;
// the first-ever slot is kept in the original fields, the count goes up
// and the calendar event is replaced after commit.  The booking being
// moved does not block its own neighbourhood when the new slot is
// computed.
func (e *Engine) Reschedule(ctx context.Context, in RescheduleInput) (*model.Booking, error) {
	b, err := e.reschedule(ctx, in)
	if err != nil {
		return nil, reject("reschedule", err)
	}
	return b, nil
}

func (e *Engine) reschedule(ctx context.Context, in RescheduleInput) (*model.Booking, error) {
	if in.Actor == "" {
		in.Actor = model.ActorClient
	}
	startMin, err := e.parseSlotInput(in.NewDate, in.NewStartTime)
	if err != nil {
		return nil, err
	}
	current, err := e.load(ctx, in.BookingID, in.Actor, in.ClientID)
	if err != nil {
		return nil, err
	}
	newEnd := model.FormatClock(startMin + current.DurationMinutes)
	if in.NewEndTime != "" && in.NewEndTime != newEnd {
		return nil, validation("end time must be %s for a %d minute session", newEnd, current.DurationMinutes)
	}
	if in.NewDate == current.Date && in.NewStartTime == current.StartTime {
		return nil, validation("booking is already at %s %s", in.NewDate, in.NewStartTime)
	}

	// Cheap pre-check; the decision is repeated inside the transaction.
	free := e.isFree(current)
	if d, err := policy.EvaluateReschedule(e.policy, current, free, e.now()); err != nil {
		return nil, err
	} else if !d.Allowed {
		return nil, violation(d.Reason, "booking cannot be rescheduled")
	}

	slots, err := e.slots(ctx, in.NewDate, current.DurationMinutes, current.ID)
	if err != nil {
		return nil, err
	}
	if _, ok := availability.Find(slots, in.NewStartTime); !ok {
		return nil, slotUnavailable(nil)
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

	b, err := e.bookings.GetByIDTx(ctx, tx, in.BookingID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	d, err := policy.EvaluateReschedule(e.policy, b, free, now)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, violation(d.Reason, "booking cannot be rescheduled")
	}
	err = e.bookings.RescheduleTx(ctx, tx, repository.Reschedule{
		BookingID:     b.ID,
		ExpectedCount: b.RescheduleCount,
		Date:          in.NewDate,
		StartTime:     in.NewStartTime,
		EndTime:       newEnd,
		SlotKey:       e.slotKey(in.NewDate, in.NewStartTime),
		At:            now,
	})
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return nil, slotUnavailable(err)
	case errors.Is(err, repository.ErrConflict):
		return nil, violation("booking_modified_concurrently", "booking was changed by another request")
	case err != nil:
		return nil, err
	}
	updated, err := e.bookings.GetByIDTx(ctx, tx, b.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	metrics.Reschedules.Inc()
	e.log.Info("booking rescheduled",
		zap.Uint64("booking_id", b.ID),
		zap.String("actor", string(in.Actor)),
		zap.String("from", b.Date+" "+b.StartTime),
		zap.String("to", updated.Date+" "+updated.StartTime),
		zap.Int("reschedule_count", updated.RescheduleCount))

	client := e.clientFor(ctx, updated.ClientID)
	var tasks postCommit
	e.dropEvent(&tasks, b.CalendarEventID)
	e.attachEvent(&tasks, client, updated)
	e.notify(&tasks, TemplateBookingRescheduled, client, updated, map[string]any{
		"previous_date":       b.Date,
		"previous_start_time": b.StartTime,
	})
	tasks.run(ctx, e.log, e.timeout, b.ID)
	return updated, nil
}
