package booking

import (
	"context"
	"time"

	"github.com/iliyamo/practice-booking/internal/model"
)

// CalendarSync is the therapist's external calendar.  Every call is best
// effort: the engine logs failures and carries on.
type CalendarSync interface {
	CreateEvent(ctx context.Context, ev EventRequest) (EventInfo, error)
	CancelEvent(ctx context.Context, eventID string) error
	BusyIntervals(ctx context.Context, from, to time.Time) ([]model.Interval, error)
}

// EventRequest describes a calendar event for one booking.
type EventRequest struct {
	BookingID     uint64
	Subject       string
	Start         time.Time
	End           time.Time
	AttendeeEmail string
	AttendeeName  string
}

// EventInfo is what the calendar returns for a created event.  Either
// field may be empty.
type EventInfo struct {
	EventID    string
	MeetingURL string
}

// Notification templates.
const (
	TemplateBookingConfirmed   = "booking_confirmed"
	TemplateBookingCancelled   = "booking_cancelled"
	TemplateBookingRescheduled = "booking_rescheduled"
)

// Notification is one message for the surrounding mailer.  Rendering the
// template is the dispatcher's business.
type Notification struct {
	Template  string         `json:"template"`
	Recipient string         `json:"recipient"`
	BookingID uint64         `json:"booking_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// Dispatcher sends notifications.  Fire-and-forget from the engine's
// point of view.
type Dispatcher interface {
	Send(ctx context.Context, n Notification) error
}
