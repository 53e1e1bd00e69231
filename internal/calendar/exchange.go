package calendar

import (
	"fmt"
	"strings"
	"time"
)

// Exchange describes how to generate the session list of one venue.
type Exchange struct {
	Code       string
	Name       string
	Timezone   string
	Open       TimeOfDay
	Close      TimeOfDay
	EarlyClose TimeOfDay
	Holidays   func(year int) []time.Time
	HalfDays   func(year int) []time.Time
}

var exchanges = map[string]Exchange{
	"XNYS": {
		Code:       "XNYS",
		Name:       "New York Stock Exchange",
		Timezone:   "America/New_York",
		Open:       Clock(9, 30),
		Close:      Clock(16, 0),
		EarlyClose: Clock(13, 0),
		Holidays:   usHolidays,
		HalfDays:   usEarlyCloses,
	},
	"XNAS": {
		Code:       "XNAS",
		Name:       "NASDAQ",
		Timezone:   "America/New_York",
		Open:       Clock(9, 30),
		Close:      Clock(16, 0),
		EarlyClose: Clock(13, 0),
		Holidays:   usHolidays,
		HalfDays:   usEarlyCloses,
	},
}

var exchangeAliases = map[string]string{
	"NYSE":     "XNYS",
	"NEW YORK": "XNYS",
	"NASDAQ":   "XNAS",
}

// LookupExchange resolves an exchange code or common name.
func LookupExchange(name string) (Exchange, error) {
	key := strings.ToUpper(strings.TrimSpace(name))
	if code, ok := exchangeAliases[key]; ok {
		key = code
	}
	ex, ok := exchanges[key]
	if !ok {
		return Exchange{}, fmt.Errorf("unknown exchange %q", name)
	}
	return ex, nil
}

// NewExchangeCalendar generates every session of the exchange from Jan 1 of
// fromYear to Dec 31 of toYear: weekdays minus holidays, with half days closing early.
func NewExchangeCalendar(name string, fromYear, toYear int) (*TradingCalendar, error) {
	ex, err := LookupExchange(name)
	if err != nil {
		return nil, err
	}
	if fromYear > toYear {
		return nil, fmt.Errorf("calendar years out of order: %d > %d", fromYear, toYear)
	}
	loc, err := LoadLocation(ex.Timezone)
	if err != nil {
		return nil, err
	}

	closed := make(map[string]bool)
	half := make(map[string]bool)
	// Observed holidays can spill across a year boundary.
	for y := fromYear - 1; y <= toYear+1; y++ {
		for _, h := range ex.Holidays(y) {
			closed[DayKey(h)] = true
		}
		if ex.HalfDays != nil {
			for _, h := range ex.HalfDays(y) {
				half[DayKey(h)] = true
			}
		}
	}

	var sessions []Session
	end := time.Date(toYear, time.December, 31, 0, 0, 0, 0, loc)
	for d := time.Date(fromYear, time.January, 1, 0, 0, 0, 0, loc); !d.After(end); d = AddDays(d, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		key := DayKey(d)
		if closed[key] {
			continue
		}
		closeAt := ex.Close
		if half[key] {
			closeAt = ex.EarlyClose
		}
		sessions = append(sessions, Session{Date: d, Open: ex.Open.On(d), Close: closeAt.On(d)})
	}
	return NewTradingCalendar(ex.Code, loc, sessions)
}
