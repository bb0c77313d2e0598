package config

import (
    "fmt"
    "strings"
    "time"

    "github.com/BurntSushi/toml"

    "github.com/iliyamo/practice-booking/internal/model"
)

// PracticeFile is the optional TOML file describing the practice:
//
//	timezone = "Europe/London"
//	currency = "GBP"
//	business_hours = "mon-thu=09:00-18:00;fri=09:00-13:00"
//
//	[[session_types]]
//	id = "individual"
//	label = "Individual session"
//	duration_minutes = 60
//	prices = { EUR = 9000, GBP = 8000 }
type PracticeFile struct {
    Timezone      string              `toml:"timezone"`
    Currency      string              `toml:"currency"`
    BusinessHours string              `toml:"business_hours"`
    SessionTypes  []model.SessionType `toml:"session_types"`
}

// LoadPracticeFile decodes the practice file at path.  Unknown keys are
// reported so that typos do not silently fall back to defaults.
func LoadPracticeFile(path string) (PracticeFile, error) {
    var pf PracticeFile
    md, err := toml.DecodeFile(path, &pf)
    if err != nil {
        return PracticeFile{}, fmt.Errorf("practice file %s: %w", path, err)
    }
    if undecoded := md.Undecoded(); len(undecoded) > 0 {
        return PracticeFile{}, fmt.Errorf("practice file %s: unknown keys %v", path, undecoded)
    }
    return pf, nil
}

func (pf PracticeFile) apply(p *Policy) error {
    if pf.Timezone != "" {
        loc, err := time.LoadLocation(pf.Timezone)
        if err != nil {
            return fmt.Errorf("practice timezone: %w", err)
        }
        p.Location = loc
    }
    if pf.Currency != "" {
        p.Currency = strings.ToUpper(pf.Currency)
    }
    if pf.BusinessHours != "" {
        hours, err := ParseBusinessHours(pf.BusinessHours)
        if err != nil {
            return fmt.Errorf("practice business_hours: %w", err)
        }
        p.Hours = hours
    }
    return nil
}
