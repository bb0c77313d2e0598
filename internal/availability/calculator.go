// Package availability computes the bookable slots of a day.
//
// The calculation is pure: callers load the occupying bookings and the
// calendar's busy intervals and pass them in together with the clock.
// Slots are recomputed on every booking attempt, so nothing here caches.
package availability

import (
	"fmt"
	"time"

	"github.com/iliyamo/practice-booking/internal/config"
	"github.com/iliyamo/practice-booking/internal/model"
)

// Input describes one availability query.
type Input struct {
	Date            string           // "YYYY-MM-DD" in the practice timezone
	DurationMinutes int              // length of the requested session
	Now             time.Time        // reference clock
	Bookings        []model.Booking  // bookings occupying the date (cancelled excluded)
	Busy            []model.Interval // busy intervals reported by the calendar
}

// Calculate returns the ordered, non-overlapping slots of in.Date that
// can hold a session of in.DurationMinutes under policy p.
//
// Free time starts as the weekday's business window.  Existing bookings
// and busy intervals are removed after being widened by the buffer, and
// everything before now + minimum notice is removed.  A date beyond the
// advance-booking horizon yields no slots.  Slot starts are aligned to
// the granularity, counted from midnight, and a slot is offered only if
// it fits entirely before closing.
func Calculate(p config.Policy, in Input) ([]model.Slot, error) {
	if in.DurationMinutes <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %d", in.DurationMinutes)
	}
	loc := p.Location
	day, err := model.ParseDate(in.Date, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", in.Date, err)
	}
	now := in.Now.In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	if day.Before(today) || day.After(today.AddDate(0, 0, p.MaxAdvanceDays)) {
		return []model.Slot{}, nil
	}
	win, open := p.Hours[day.Weekday()]
	if !open {
		return []model.Slot{}, nil
	}

	at := func(minutes int) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), 0, minutes, 0, 0, loc)
	}
	buffer := time.Duration(p.BufferMinutes) * time.Minute

	busy := make([]model.Interval, 0, len(in.Bookings)+len(in.Busy)+1)
	for i := range in.Bookings {
		b := &in.Bookings[i]
		if b.Status == model.StatusCancelled {
			continue
		}
		start, err := b.StartsAt(loc)
		if err != nil {
			return nil, fmt.Errorf("booking %d: %w", b.ID, err)
		}
		end, err := b.EndsAt(loc)
		if err != nil {
			return nil, fmt.Errorf("booking %d: %w", b.ID, err)
		}
		busy = append(busy, expand(model.Interval{Start: start, End: end}, buffer))
	}
	for _, iv := range in.Busy {
		busy = append(busy, expand(iv, buffer))
	}
	notice := now.Add(time.Duration(p.MinNoticeHours) * time.Hour)
	busy = append(busy, model.Interval{Start: at(0), End: notice})

	free := subtract([]model.Interval{{Start: at(win.Open), End: at(win.Close)}}, busy)

	slots := make([]model.Slot, 0)
	g := p.GranularityMinutes
	first := (win.Open + g - 1) / g * g
	for m := first; m+in.DurationMinutes <= win.Close; m += g {
		start := at(m)
		end := start.Add(time.Duration(in.DurationMinutes) * time.Minute)
		if covers(free, start, end) {
			slots = append(slots, model.Slot{
				Start: model.FormatClock(m),
				End:   model.FormatClock(m + in.DurationMinutes),
			})
		}
	}
	return slots, nil
}

// Find returns the slot starting at start ("HH:MM"), if offered.
func Find(slots []model.Slot, start string) (model.Slot, bool) {
	for _, s := range slots {
		if s.Start == start {
			return s, true
		}
	}
	return model.Slot{}, false
}
