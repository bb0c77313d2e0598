package model

import "time"

// Slot is a bookable window on a given date, as "HH:MM" wall-clock
// values in the practice timezone.
type Slot struct {
    Start string `json:"start"`
    End   string `json:"end"`
}

// Interval is a half-open span of absolute time [Start, End).
type Interval struct {
    Start time.Time `json:"start"`
    End   time.Time `json:"end"`
}
