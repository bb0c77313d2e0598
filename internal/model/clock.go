package model

import (
    "fmt"
    "time"
)

// Layouts used for the wall-clock columns of the bookings table.
const (
    DateLayout = "2006-01-02"
    TimeLayout = "15:04"
)

// ParseDate parses a "YYYY-MM-DD" date as midnight in loc.
func ParseDate(date string, loc *time.Location) (time.Time, error) {
    return time.ParseInLocation(DateLayout, date, loc)
}

// ParseClock parses "HH:MM" into minutes after midnight.
func ParseClock(hhmm string) (int, error) {
    t, err := time.Parse(TimeLayout, hhmm)
    if err != nil {
        return 0, fmt.Errorf("invalid time %q: %w", hhmm, err)
    }
    return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes after midnight as "HH:MM".
func FormatClock(minutes int) string {
    return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseWallClock combines a date and an "HH:MM" time in loc.
func ParseWallClock(date, hhmm string, loc *time.Location) (time.Time, error) {
    return time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+hhmm, loc)
}
