// Package queue defines message payloads exchanged over the message broker.
package queue

// NotificationEvent is published for every booking notification.  It
// carries everything the mailer needs to render the template without
// querying the booking database.
type NotificationEvent struct {
    Template   string         `json:"template"`
    Recipient  string         `json:"recipient"`
    BookingID  uint64         `json:"booking_id"`
    Data       map[string]any `json:"data,omitempty"`
    OccurredAt string         `json:"occurred_at"`
}
