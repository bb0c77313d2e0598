package booking

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/practice-booking/internal/model"
	"github.com/iliyamo/practice-booking/internal/repository"
)

// Get returns a booking.  Clients may only read their own bookings.
func (e *Engine) Get(ctx context.Context, id uint64, actor model.Actor, clientID uint64) (*model.Booking, error) {
	return e.load(ctx, id, actor, clientID)
}

// GetByConfirmationToken resolves the opaque token sent in notifications.
func (e *Engine) GetByConfirmationToken(ctx context.Context, token string) (*model.Booking, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, validation("confirmation token is required")
	}
	b, err := e.bookings.GetByToken(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("booking")
	}
	return b, err
}

// ListByClient returns every booking of a client, newest first.
func (e *Engine) ListByClient(ctx context.Context, clientID uint64) ([]model.Booking, error) {
	return e.bookings.ListByClient(ctx, clientID)
}

// SetPolicyOverride grants or withdraws admin leniency on one booking.
func (e *Engine) SetPolicyOverride(ctx context.Context, id uint64, override bool) (*model.Booking, error) {
	if _, err := e.load(ctx, id, model.ActorAdmin, 0); err != nil {
		return nil, err
	}
	if err := e.bookings.SetPolicyOverride(ctx, id, override, e.now()); err != nil {
		return nil, err
	}
	e.log.Info("policy override changed", zap.Uint64("booking_id", id), zap.Bool("override", override))
	return e.bookings.GetByID(ctx, id)
}

// MarkOutcome closes a confirmed booking as completed or no_show once
// its session has ended.
func (e *Engine) MarkOutcome(ctx context.Context, id uint64, status model.BookingStatus) (*model.Booking, error) {
	b, err := e.markOutcome(ctx, id, status)
	if err != nil {
		return nil, reject("outcome", err)
	}
	return b, nil
}

func (e *Engine) markOutcome(ctx context.Context, id uint64, status model.BookingStatus) (*model.Booking, error) {
	if status != model.StatusCompleted && status != model.StatusNoShow {
		return nil, validation("outcome must be %q or %q", model.StatusCompleted, model.StatusNoShow)
	}
	b, err := e.load(ctx, id, model.ActorAdmin, 0)
	if err != nil {
		return nil, err
	}
	if b.Status != model.StatusConfirmed {
		return nil, violation("booking_not_active", "only confirmed bookings can be closed")
	}
	end, err := b.EndsAt(e.policy.Location)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if now.Before(end) {
		return nil, violation("session_not_finished", "the session has not ended yet")
	}
	err = e.bookings.MarkOutcome(ctx, id, status, now)
	if errors.Is(err, repository.ErrConflict) {
		return nil, violation("booking_not_active", "booking was changed by another request")
	}
	if err != nil {
		return nil, err
	}
	e.log.Info("booking closed", zap.Uint64("booking_id", id), zap.String("status", string(status)))
	return e.bookings.GetByID(ctx, id)
}
