package booking

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/practice-booking/internal/metrics"
	"github.com/iliyamo/practice-booking/internal/model"
	"github.com/iliyamo/practice-booking/internal/policy"
	"github.com/iliyamo/practice-booking/internal/repository"
)

// CancelInput identifies the booking to cancel and who asks.  ClientID
// is checked against the booking owner when Actor is a client.
type CancelInput struct {
	BookingID uint64
	Actor     model.Actor
	ClientID  uint64
	Reason    string
}

// CancelResult reports what the cancellation cost.
type CancelResult struct {
	Booking        *model.Booking    `json:"booking"`
	Type           policy.CancelType `json:"type"`
	Reason         string            `json:"reason,omitempty"`
	CreditRefunded bool              `json:"credit_refunded"`
}

// Cancel cancels a confirmed booking.  The decision is made on the row
// read inside the transaction that writes the status change and the
// ledger entry, and the status update is guarded on the booking still
// being confirmed, so a booking is cancelled, refunded or forfeited at
// most once.
func (e *Engine) Cancel(ctx context.Context, in CancelInput) (*CancelResult, error) {
	res, err := e.cancel(ctx, in)
	if err != nil {
		return nil, reject("cancel", err)
	}
	return res, nil
}

func (e *Engine) cancel(ctx context.Context, in CancelInput) (*CancelResult, error) {
	if in.Actor == "" {
		in.Actor = model.ActorClient
	}
	if _, err := e.load(ctx, in.BookingID, in.Actor, in.ClientID); err != nil {
		return nil, err
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
	decision, err := policy.EvaluateCancel(e.policy, b, e.isFree(b), now)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, violation(decision.Reason, "booking cannot be cancelled")
	}

	refund := b.PaidWithCredit && !decision.Charged()
	var reason *string
	if r := strings.TrimSpace(in.Reason); r != "" {
		reason = &r
	}
	err = e.bookings.CancelTx(ctx, tx, repository.Cancellation{
		BookingID:      b.ID,
		At:             now,
		By:             in.Actor,
		Reason:         reason,
		IsLateCancel:   decision.Charged(),
		CreditRefunded: refund,
	})
	if errors.Is(err, repository.ErrConflict) {
		return nil, violation(policy.ReasonAlreadyTerminal, "booking was changed concurrently")
	}
	if err != nil {
		return nil, err
	}

	var movement model.CreditReason
	if b.PaidWithCredit {
		note := "cancellation (" + string(decision.Type) + ")"
		if refund {
			movement = model.CreditRefund
			err = e.credits.RefundTx(ctx, tx, b.ClientID, b.ID, note, now)
		} else {
			movement = model.CreditForfeit
			err = e.credits.ForfeitTx(ctx, tx, b.ClientID, b.ID, note, now)
		}
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, violation(policy.ReasonAlreadyTerminal, "credit for this booking was already settled")
		}
		if err != nil {
			return nil, err
		}
	}

	updated, err := e.bookings.GetByIDTx(ctx, tx, b.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	metrics.Cancellations.WithLabelValues(string(decision.Type)).Inc()
	if movement != "" {
		metrics.CreditMovements.WithLabelValues(string(movement)).Inc()
	}
	e.log.Info("booking cancelled",
		zap.Uint64("booking_id", b.ID),
		zap.String("actor", string(in.Actor)),
		zap.String("type", string(decision.Type)),
		zap.Bool("credit_refunded", refund))

	client := e.clientFor(ctx, updated.ClientID)
	var tasks postCommit
	e.dropEvent(&tasks, b.CalendarEventID)
	e.notify(&tasks, TemplateBookingCancelled, client, updated, map[string]any{
		"cancel_type":     string(decision.Type),
		"credit_refunded": refund,
		"cancelled_by":    string(in.Actor),
	})
	tasks.run(ctx, e.log, e.timeout, b.ID)

	return &CancelResult{
		Booking:        updated,
		Type:           decision.Type,
		Reason:         decision.Reason,
		CreditRefunded: refund,
	}, nil
}
