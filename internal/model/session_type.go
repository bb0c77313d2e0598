package model

// SessionType describes one bookable kind of session.  Session types
// are configuration, not rows: bookings copy the duration and price they
// were created with.
type SessionType struct {
    ID              string           `json:"id" toml:"id"`
    Label           string           `json:"label" toml:"label"`
    DurationMinutes int              `json:"duration_minutes" toml:"duration_minutes"`
    IsFree          bool             `json:"is_free" toml:"is_free"`
    Prices          map[string]int64 `json:"prices,omitempty" toml:"prices"` // currency -> minor units
}

// Price returns the price in minor units for currency.  Free types
// always cost 0.
func (s SessionType) Price(currency string) (int64, bool) {
    if s.IsFree {
        return 0, true
    }
    p, ok := s.Prices[currency]
    return p, ok
}
