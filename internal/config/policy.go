package config

import (
    "fmt"
    "os"
    "sort"
    "strings"
    "time"
    _ "time/tzdata" // practice timezones resolve without host zoneinfo

    "github.com/iliyamo/practice-booking/internal/model"
)

// Window is an opening interval expressed in minutes after midnight.
type Window struct {
    Open  int
    Close int
}

// BusinessHours maps each weekday to its opening window.  A missing
// weekday means the practice is closed that day.
type BusinessHours map[time.Weekday]Window

// Policy carries every value the availability calculator and policy
// evaluator depend on.  It is built once at startup and passed by value;
// nothing in the engine reads the environment directly.
type Policy struct {
    CancelNoticeHours     int            // CANCEL_NOTICE_HOURS
    RescheduleNoticeHours int            // RESCHEDULE_NOTICE_HOURS
    MaxReschedules        int            // MAX_RESCHEDULES
    MaxAdvanceDays        int            // BOOKING_MAX_ADVANCE_DAYS
    MinNoticeHours        int            // BOOKING_MIN_NOTICE_HOURS
    BufferMinutes         int            // BOOKING_BUFFER_MINUTES
    GranularityMinutes    int            // SLOT_GRANULARITY_MINUTES
    Location              *time.Location // PRACTICE_TIMEZONE
    Hours                 BusinessHours  // BUSINESS_HOURS
    Resource              string         // PRACTICE_RESOURCE, the bookable calendar (one therapist)
    Currency              string         // PRACTICE_CURRENCY, used when a booking names none
}

// DefaultPolicy is a weekday 09:00-17:00 practice with a 24 hour notice
// window for both cancellations and reschedules.
func DefaultPolicy() Policy {
    weekdays := BusinessHours{}
    for d := time.Monday; d <= time.Friday; d++ {
        weekdays[d] = Window{Open: 9 * 60, Close: 17 * 60}
    }
    return Policy{
        CancelNoticeHours:     24,
        RescheduleNoticeHours: 24,
        MaxReschedules:        2,
        MaxAdvanceDays:        60,
        MinNoticeHours:        12,
        BufferMinutes:         15,
        GranularityMinutes:    30,
        Location:              time.UTC,
        Hours:                 weekdays,
        Resource:              "therapist",
        Currency:              "EUR",
    }
}

// LoadPolicy builds the Policy from defaults, then the optional practice
// file named by PRACTICE_CONFIG_FILE, then individual environment
// variables.  Later sources win.  The session types declared in the
// practice file (if any) are returned alongside.
func LoadPolicy() (Policy, []model.SessionType, error) {
    p := DefaultPolicy()
    var types []model.SessionType

    if path := os.Getenv("PRACTICE_CONFIG_FILE"); path != "" {
        pf, err := LoadPracticeFile(path)
        if err != nil {
            return Policy{}, nil, err
        }
        if err := pf.apply(&p); err != nil {
            return Policy{}, nil, err
        }
        types = pf.SessionTypes
    }

    p.CancelNoticeHours = envInt("CANCEL_NOTICE_HOURS", p.CancelNoticeHours)
    p.RescheduleNoticeHours = envInt("RESCHEDULE_NOTICE_HOURS", p.RescheduleNoticeHours)
    p.MaxReschedules = envInt("MAX_RESCHEDULES", p.MaxReschedules)
    p.MaxAdvanceDays = envInt("BOOKING_MAX_ADVANCE_DAYS", p.MaxAdvanceDays)
    p.MinNoticeHours = envInt("BOOKING_MIN_NOTICE_HOURS", p.MinNoticeHours)
    p.BufferMinutes = envInt("BOOKING_BUFFER_MINUTES", p.BufferMinutes)
    p.GranularityMinutes = envInt("SLOT_GRANULARITY_MINUTES", p.GranularityMinutes)
    p.Resource = envStr("PRACTICE_RESOURCE", p.Resource)
    p.Currency = strings.ToUpper(envStr("PRACTICE_CURRENCY", p.Currency))

    if tz := os.Getenv("PRACTICE_TIMEZONE"); tz != "" {
        loc, err := time.LoadLocation(tz)
        if err != nil {
            return Policy{}, nil, fmt.Errorf("PRACTICE_TIMEZONE: %w", err)
        }
        p.Location = loc
    }
    if raw := os.Getenv("BUSINESS_HOURS"); raw != "" {
        hours, err := ParseBusinessHours(raw)
        if err != nil {
            return Policy{}, nil, fmt.Errorf("BUSINESS_HOURS: %w", err)
        }
        p.Hours = hours
    }
    if err := p.Validate(); err != nil {
        return Policy{}, nil, err
    }
    return p, types, nil
}

// Validate rejects policies the calculator cannot work with.
func (p Policy) Validate() error {
    switch {
    case p.GranularityMinutes <= 0:
        return fmt.Errorf("slot granularity must be positive, got %d", p.GranularityMinutes)
    case p.BufferMinutes < 0:
        return fmt.Errorf("buffer must not be negative, got %d", p.BufferMinutes)
    case p.MaxReschedules < 0:
        return fmt.Errorf("max reschedules must not be negative, got %d", p.MaxReschedules)
    case p.MaxAdvanceDays < 0, p.MinNoticeHours < 0, p.CancelNoticeHours < 0, p.RescheduleNoticeHours < 0:
        return fmt.Errorf("notice and advance windows must not be negative")
    case p.Location == nil:
        return fmt.Errorf("practice timezone is required")
    case p.Resource == "":
        return fmt.Errorf("practice resource must not be empty")
    }
    for d, w := range p.Hours {
        if w.Open >= w.Close {
            return fmt.Errorf("business hours for %s close before they open", d)
        }
    }
    return nil
}

var weekdayNames = map[string]time.Weekday{
    "sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
    "thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// ParseBusinessHours parses a table such as
//
//	mon-fri=09:00-17:00;sat=10:00-13:00;sun=closed
//
// Entries are separated by ';' or ','.  A day range ("mon-fri") applies
// the same window to every day in it.  "closed" removes the day.
func ParseBusinessHours(raw string) (BusinessHours, error) {
    hours := BusinessHours{}
    entries := strings.FieldsFunc(raw, func(r rune) bool { return r == ';' || r == ',' })
    for _, entry := range entries {
        entry = strings.TrimSpace(entry)
        if entry == "" {
            continue
        }
        days, span, ok := strings.Cut(entry, "=")
        if !ok {
            return nil, fmt.Errorf("entry %q: expected day=HH:MM-HH:MM", entry)
        }
        weekdays, err := parseDays(strings.ToLower(strings.TrimSpace(days)))
        if err != nil {
            return nil, err
        }
        span = strings.TrimSpace(span)
        if strings.EqualFold(span, "closed") {
            for _, d := range weekdays {
                delete(hours, d)
            }
            continue
        }
        w, err := parseWindow(span)
        if err != nil {
            return nil, fmt.Errorf("entry %q: %w", entry, err)
        }
        for _, d := range weekdays {
            hours[d] = w
        }
    }
    return hours, nil
}

func parseDays(s string) ([]time.Weekday, error) {
    from, to, isRange := strings.Cut(s, "-")
    first, ok := weekdayNames[from]
    if !ok {
        return nil, fmt.Errorf("unknown weekday %q", from)
    }
    if !isRange {
        return []time.Weekday{first}, nil
    }
    last, ok := weekdayNames[to]
    if !ok {
        return nil, fmt.Errorf("unknown weekday %q", to)
    }
    var out []time.Weekday
    for d := first; ; d = (d + 1) % 7 {
        out = append(out, d)
        if d == last {
            break
        }
    }
    return out, nil
}

func parseWindow(s string) (Window, error) {
    open, closeAt, ok := strings.Cut(s, "-")
    if !ok {
        return Window{}, fmt.Errorf("expected HH:MM-HH:MM, got %q", s)
    }
    o, err := model.ParseClock(strings.TrimSpace(open))
    if err != nil {
        return Window{}, err
    }
    c, err := model.ParseClock(strings.TrimSpace(closeAt))
    if err != nil {
        return Window{}, err
    }
    if o >= c {
        return Window{}, fmt.Errorf("window %q closes before it opens", s)
    }
    return Window{Open: o, Close: c}, nil
}

// String renders the table in the format accepted by ParseBusinessHours.
func (h BusinessHours) String() string {
    days := make([]int, 0, len(h))
    for d := range h {
        days = append(days, int(d))
    }
    sort.Ints(days)
    parts := make([]string, 0, len(days))
    for _, d := range days {
        w := h[time.Weekday(d)]
        name := strings.ToLower(time.Weekday(d).String()[:3])
        parts = append(parts, fmt.Sprintf("%s=%s-%s", name, model.FormatClock(w.Open), model.FormatClock(w.Close)))
    }
    return strings.Join(parts, ";")
}
