package publisher

import (
    "context"

    "go.uber.org/zap"

    "github.com/iliyamo/practice-booking/internal/booking"
)

// LogDispatcher writes notifications to the application log.  Used when
// no broker is configured.
type LogDispatcher struct {
    Log *zap.Logger
}

func (d LogDispatcher) Send(_ context.Context, n booking.Notification) error {
    d.Log.Info("notification",
        zap.String("template", n.Template),
        zap.String("recipient", n.Recipient),
        zap.Uint64("booking_id", n.BookingID),
        zap.Any("data", n.Data))
    return nil
}
