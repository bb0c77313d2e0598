// Package sessiontype holds the static catalogue of bookable session kinds.
package sessiontype

import (
	"fmt"
	"sort"
	"strings"

	"github.com/iliyamo/practice-booking/internal/model"
)

// Defaults is the catalogue used when the practice file declares none.
func Defaults() []model.SessionType {
	return []model.SessionType{
		{ID: "free_consultation", Label: "Free consultation", DurationMinutes: 20, IsFree: true},
		{ID: "individual", Label: "Individual session", DurationMinutes: 60,
			Prices: map[string]int64{"EUR": 9000, "GBP": 8000}},
		{ID: "extended", Label: "Extended session", DurationMinutes: 90,
			Prices: map[string]int64{"EUR": 13000, "GBP": 11500}},
	}
}

// Registry is an immutable lookup of session types by id.
type Registry struct {
	byID  map[string]model.SessionType
	order []string
}

// New validates types and builds a Registry.  An empty list falls back to
// Defaults.
func New(types []model.SessionType) (*Registry, error) {
	if len(types) == 0 {
		types = Defaults()
	}
	r := &Registry{byID: make(map[string]model.SessionType, len(types))}
	for _, t := range types {
		t.ID = strings.TrimSpace(t.ID)
		switch {
		case t.ID == "":
			return nil, fmt.Errorf("session type without id")
		case t.DurationMinutes <= 0:
			return nil, fmt.Errorf("session type %q: duration must be positive", t.ID)
		case !t.IsFree && len(t.Prices) == 0:
			return nil, fmt.Errorf("session type %q: paid type needs at least one price", t.ID)
		}
		if _, dup := r.byID[t.ID]; dup {
			return nil, fmt.Errorf("session type %q declared twice", t.ID)
		}
		prices := make(map[string]int64, len(t.Prices))
		for cur, amount := range t.Prices {
			if amount < 0 {
				return nil, fmt.Errorf("session type %q: negative price for %s", t.ID, cur)
			}
			prices[strings.ToUpper(cur)] = amount
		}
		t.Prices = prices
		if t.Label == "" {
			t.Label = t.ID
		}
		r.byID[t.ID] = t
		r.order = append(r.order, t.ID)
	}
	return r, nil
}

// Get returns the session type with the given id.
func (r *Registry) Get(id string) (model.SessionType, bool) {
	t, ok := r.byID[id]
	return t, ok
}

// List returns every session type, shortest first.
func (r *Registry) List() []model.SessionType {
	out := make([]model.SessionType, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DurationMinutes < out[j].DurationMinutes })
	return out
}
