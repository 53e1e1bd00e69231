package calendar

import (
	"fmt"
	"time"

	// Embedded zone database so legacy names resolve on minimal images.
	_ "time/tzdata"
)

// DefaultTimezone is the zone controllers normalize to unless configured otherwise.
const DefaultTimezone = "US/Eastern"

// legacyZones maps the old US/* names onto their canonical IANA entries.
var legacyZones = map[string]string{
	"US/Eastern":  "America/New_York",
	"US/Central":  "America/Chicago",
	"US/Mountain": "America/Denver",
	"US/Pacific":  "America/Los_Angeles",
}

// LoadLocation resolves a zone name. An empty name means DefaultTimezone.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimezone
	}
	if canonical, ok := legacyZones[name]; ok {
		name = canonical
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", name, err)
	}
	return loc, nil
}

// MustLoadLocation is LoadLocation for zone names known at compile time.
func MustLoadLocation(name string) *time.Location {
	loc, err := LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// DateOf returns midnight of t's calendar date as seen in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// AddDays moves a date by n calendar days. The result stays at midnight across DST shifts.
func AddDays(date time.Time, n int) time.Time {
	return date.AddDate(0, 0, n)
}

// DayKey formats a date as YYYY-MM-DD.
func DayKey(date time.Time) string {
	return date.Format("2006-01-02")
}
