package calendar

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/practice-booking/internal/booking"
	"github.com/iliyamo/practice-booking/internal/model"
)

// Nop stands in when no calendar is configured.  Bookings get no meeting
// link and no external busy time is reported.
type Nop struct {
	Log *zap.Logger
}

func (n Nop) CreateEvent(_ context.Context, ev booking.EventRequest) (booking.EventInfo, error) {
	if n.Log != nil {
		n.Log.Debug("calendar disabled, skipping event", zap.Uint64("booking_id", ev.BookingID))
	}
	return booking.EventInfo{}, nil
}

func (Nop) CancelEvent(context.Context, string) error { return nil }

func (Nop) BusyIntervals(context.Context, time.Time, time.Time) ([]model.Interval, error) {
	return nil, nil
}
