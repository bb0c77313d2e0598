package model

import "time"

// BookingStatus is the lifecycle state of a booking.  Bookings start in
// CONFIRMED; CANCELLED, COMPLETED and NO_SHOW are terminal.
type BookingStatus string

const (
    StatusPending   BookingStatus = "pending"
    StatusConfirmed BookingStatus = "confirmed"
    StatusCancelled BookingStatus = "cancelled"
    StatusCompleted BookingStatus = "completed"
    StatusNoShow    BookingStatus = "no_show"
)

// Terminal reports whether no further transition is possible from s.
func (s BookingStatus) Terminal() bool {
    switch s {
    case StatusCancelled, StatusCompleted, StatusNoShow:
        return true
    }
    return false
}

// Actor identifies who performed a cancellation.
type Actor string

const (
    ActorClient Actor = "client"
    ActorAdmin  Actor = "admin"
    ActorSystem Actor = "system"
)

// Booking represents one reserved session with the therapist.  It maps
// to a row in the `bookings` table.  Dates and times are wall-clock
// values in the practice timezone: Date is "YYYY-MM-DD", StartTime and
// EndTime are "HH:MM".
//
// Fields:
//  ID                 – primary key identifier.
//  SessionType        – identifier of the booked session type.
//  Date               – session date.
//  StartTime/EndTime  – session start and end.
//  DurationMinutes    – copied from the session type at creation.
//  Status             – lifecycle state.
//  ClientID           – client who owns the booking.
//  PriceCents/Currency– price copied at creation (0 for free types).
//  PaidWithCredit     – a ledger debit backs this booking.
//  ConfirmationToken  – opaque token for unauthenticated lookups.
//  CalendarEventID    – external event id (nil when sync failed).
//  MeetingURL         – external meeting link (nil when sync failed).
//  RescheduleCount    – number of successful reschedules.
//  OriginalDate/Time  – first-ever slot, set on the first reschedule only.
//  FirstRescheduledAt – time of the first reschedule, when the original
//                       slot was given up.
//  RescheduledAt      – time of the latest reschedule.
//  CancelledAt/By     – cancellation timestamp and actor.
//  CancellationReason – free text supplied on cancellation.
//  IsLateCancel       – cancellation was charged (late or anti-abuse).
//  CreditRefunded     – the backing credit was returned to the client.
//  PolicyOverride     – admin leniency for this booking only.
type Booking struct {
    ID                 uint64        `json:"id"`
    SessionType        string        `json:"session_type"`
    Date               string        `json:"date"`
    StartTime          string        `json:"start_time"`
    EndTime            string        `json:"end_time"`
    DurationMinutes    int           `json:"duration_minutes"`
    Status             BookingStatus `json:"status"`
    ClientID           uint64        `json:"client_id"`
    PriceCents         int64         `json:"price_cents"`
    Currency           string        `json:"currency"`
    PaidWithCredit     bool          `json:"paid_with_credit"`
    ConfirmationToken  string        `json:"confirmation_token,omitempty"`
    CalendarEventID    *string       `json:"calendar_event_id,omitempty"`
    MeetingURL         *string       `json:"meeting_url,omitempty"`
    RescheduleCount    int           `json:"reschedule_count"`
    OriginalDate       *string       `json:"original_date,omitempty"`
    OriginalStartTime  *string       `json:"original_start_time,omitempty"`
    FirstRescheduledAt *time.Time    `json:"first_rescheduled_at,omitempty"`
    RescheduledAt      *time.Time    `json:"rescheduled_at,omitempty"`
    CancelledAt        *time.Time    `json:"cancelled_at,omitempty"`
    CancelledBy        *Actor        `json:"cancelled_by,omitempty"`
    CancellationReason *string       `json:"cancellation_reason,omitempty"`
    IsLateCancel       bool          `json:"is_late_cancel"`
    CreditRefunded     bool          `json:"credit_refunded"`
    PolicyOverride     bool          `json:"policy_override"`
    CreatedAt          time.Time     `json:"created_at"`
    UpdatedAt          time.Time     `json:"updated_at"`
}

// StartsAt resolves the booking's start into an absolute instant in loc.
func (b *Booking) StartsAt(loc *time.Location) (time.Time, error) {
    return ParseWallClock(b.Date, b.StartTime, loc)
}

// EndsAt resolves the booking's end into an absolute instant in loc.
func (b *Booking) EndsAt(loc *time.Location) (time.Time, error) {
    return ParseWallClock(b.Date, b.EndTime, loc)
}

// OriginalStartsAt returns the first-ever scheduled start.  ok is false
// when the booking has never been rescheduled.
func (b *Booking) OriginalStartsAt(loc *time.Location) (t time.Time, ok bool, err error) {
    if b.OriginalDate == nil || b.OriginalStartTime == nil {
        return time.Time{}, false, nil
    }
    t, err = ParseWallClock(*b.OriginalDate, *b.OriginalStartTime, loc)
    return t, err == nil, err
}
