// Package policy decides whether a booking may be cancelled or
// rescheduled and what the cancellation costs.  Functions here are pure:
// they read the booking and the clock and never touch storage.
package policy

import (
	"fmt"
	"time"

	"github.com/iliyamo/practice-booking/internal/config"
	"github.com/iliyamo/practice-booking/internal/model"
)

// CancelType classifies a cancellation.
type CancelType string

const (
	CancelBlocked   CancelType = "blocked"
	CancelAntiAbuse CancelType = "anti_abuse"
	CancelLate      CancelType = "late"
	CancelNormal    CancelType = "normal"
)

// Decision reasons, returned to callers as stable machine-readable codes.
const (
	ReasonAlreadyTerminal    = "booking_already_terminal"
	ReasonRescheduledLate    = "reschedule_used_to_avoid_late_cancellation"
	ReasonInsideCancelNotice = "inside_cancellation_notice_window"
	ReasonBookingNotActive   = "booking_not_active"
	ReasonMaxReschedules     = "max_reschedules_reached"
	ReasonInsideReschedule   = "inside_reschedule_notice_window"
)

// CancelDecision is the outcome of EvaluateCancel.
type CancelDecision struct {
	Allowed bool       `json:"allowed"`
	Type    CancelType `json:"type"`
	Reason  string     `json:"reason,omitempty"`
}

// Charged reports whether the client loses the session: the credit (if
// any) is forfeited and the cancellation is recorded as late.
func (d CancelDecision) Charged() bool {
	return d.Type == CancelLate || d.Type == CancelAntiAbuse
}

// RescheduleDecision is the outcome of EvaluateReschedule.
type RescheduleDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// EvaluateCancel applies the cancellation rules in priority order:
//
//  1. a booking that is no longer confirmed is blocked;
//  2. policy override and free session types are always normal;
//  3. anti_abuse when the booking was rescheduled at a moment its
//     first-ever slot was already inside the cancellation notice window;
//  4. late when the current start is inside the notice window;
//  5. normal otherwise.
func EvaluateCancel(p config.Policy, b *model.Booking, free bool, now time.Time) (CancelDecision, error) {
	if b.Status != model.StatusConfirmed {
		return CancelDecision{Allowed: false, Type: CancelBlocked, Reason: ReasonAlreadyTerminal}, nil
	}
	if b.PolicyOverride || free {
		return CancelDecision{Allowed: true, Type: CancelNormal}, nil
	}
	notice := time.Duration(p.CancelNoticeHours) * time.Hour

	if dodged, err := rescheduledInsideNotice(p, b, notice); err != nil {
		return CancelDecision{}, err
	} else if dodged {
		return CancelDecision{Allowed: true, Type: CancelAntiAbuse, Reason: ReasonRescheduledLate}, nil
	}

	start, err := b.StartsAt(p.Location)
	if err != nil {
		return CancelDecision{}, fmt.Errorf("booking %d start: %w", b.ID, err)
	}
	if start.Sub(now) < notice {
		return CancelDecision{Allowed: true, Type: CancelLate, Reason: ReasonInsideCancelNotice}, nil
	}
	return CancelDecision{Allowed: true, Type: CancelNormal}, nil
}

// rescheduledInsideNotice reports whether the reschedule that gave up the
// first-ever slot happened while that slot was still ahead but closer
// than notice.  A slot that had already passed was not inside the window.
func rescheduledInsideNotice(p config.Policy, b *model.Booking, notice time.Duration) (bool, error) {
	at := b.FirstRescheduledAt
	if at == nil {
		at = b.RescheduledAt
	}
	if at == nil {
		return false, nil
	}
	original, ok, err := b.OriginalStartsAt(p.Location)
	if err != nil {
		return false, fmt.Errorf("booking %d original slot: %w", b.ID, err)
	}
	if !ok {
		return false, nil
	}
	lead := original.Sub(*at)
	return lead >= 0 && lead < notice, nil
}

// EvaluateReschedule allows a reschedule of a confirmed booking while the
// reschedule count is below the maximum and, for paid sessions, the
// current start is at least the reschedule notice away.  Policy override
// lifts both limits.
func EvaluateReschedule(p config.Policy, b *model.Booking, free bool, now time.Time) (RescheduleDecision, error) {
	if b.Status != model.StatusConfirmed {
		return RescheduleDecision{Reason: ReasonBookingNotActive}, nil
	}
	if b.PolicyOverride {
		return RescheduleDecision{Allowed: true}, nil
	}
	if b.RescheduleCount >= p.MaxReschedules {
		return RescheduleDecision{Reason: ReasonMaxReschedules}, nil
	}
	if free {
		return RescheduleDecision{Allowed: true}, nil
	}
	start, err := b.StartsAt(p.Location)
	if err != nil {
		return RescheduleDecision{}, fmt.Errorf("booking %d start: %w", b.ID, err)
	}
	if start.Sub(now) < time.Duration(p.RescheduleNoticeHours)*time.Hour {
		return RescheduleDecision{Reason: ReasonInsideReschedule}, nil
	}
	return RescheduleDecision{Allowed: true}, nil
}
