// Package calendar supplies the two notions of "period" a trigger window can be
// spaced by: exchange trading sessions, indexed in order, and plain calendar days
// with a fixed intraday window.
package calendar

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// ErrSessionOutOfRange is returned when a lookup falls outside the known sessions.
var ErrSessionOutOfRange = errors.New("session out of range")

// Session is one trading day with its published open and close instants.
type Session struct {
	Index int
	Date  time.Time // midnight in the exchange zone
	Open  time.Time
	Close time.Time
}

// Sessions is the calendar capability a trading-day controller depends on.
type Sessions interface {
	// Lookup returns the session on t's date, or the first session after it.
	// The bool reports whether t's date is itself a session.
	Lookup(t time.Time) (Session, bool, error)
	// At returns the session at index i.
	At(i int) (Session, error)
}

// TradingCalendar is an ordered, immutable sequence of sessions.
type TradingCalendar struct {
	name     string
	loc      *time.Location
	sessions []Session
}

// NewTradingCalendar builds a calendar from an explicit session list. Dates must be
// strictly ascending and every session must close after it opens.
func NewTradingCalendar(name string, loc *time.Location, sessions []Session) (*TradingCalendar, error) {
	if loc == nil {
		return nil, errors.New("calendar location is required")
	}
	if len(sessions) == 0 {
		return nil, errors.New("calendar has no sessions")
	}
	out := make([]Session, len(sessions))
	for i, s := range sessions {
		s.Index = i
		s.Date = DateOf(s.Date, loc)
		s.Open = s.Open.In(loc)
		s.Close = s.Close.In(loc)
		if !s.Open.Before(s.Close) {
			return nil, fmt.Errorf("session %s: close %s is not after open %s",
				DayKey(s.Date), s.Close.Format(time.Kitchen), s.Open.Format(time.Kitchen))
		}
		if i > 0 && !out[i-1].Date.Before(s.Date) {
			return nil, fmt.Errorf("session %s is not after %s", DayKey(s.Date), DayKey(out[i-1].Date))
		}
		out[i] = s
	}
	return &TradingCalendar{name: name, loc: loc, sessions: out}, nil
}

// Name identifies the calendar, usually an exchange code.
func (c *TradingCalendar) Name() string { return c.name }

// Location is the exchange zone sessions are expressed in.
func (c *TradingCalendar) Location() *time.Location { return c.loc }

// Len returns the number of known sessions.
func (c *TradingCalendar) Len() int { return len(c.sessions) }

// Lookup implements Sessions with a binary search over session dates.
func (c *TradingCalendar) Lookup(t time.Time) (Session, bool, error) {
	date := DateOf(t, c.loc)
	i, found := slices.BinarySearchFunc(c.sessions, date, func(s Session, d time.Time) int {
		return s.Date.Compare(d)
	})
	if i == len(c.sessions) {
		last := c.sessions[len(c.sessions)-1]
		return Session{}, false, fmt.Errorf("%w: %s is after the last %s session %s",
			ErrSessionOutOfRange, DayKey(date), c.name, DayKey(last.Date))
	}
	return c.sessions[i], found, nil
}

// At implements Sessions.
func (c *TradingCalendar) At(i int) (Session, error) {
	if i < 0 || i >= len(c.sessions) {
		return Session{}, fmt.Errorf("%w: index %d, %s knows %d sessions",
			ErrSessionOutOfRange, i, c.name, len(c.sessions))
	}
	return c.sessions[i], nil
}

// Daily applies one intraday window to every calendar date, whether or not the
// market trades that day.
type Daily struct {
	Open     TimeOfDay
	Close    TimeOfDay
	Location *time.Location
}

// NewDaily validates that the window closes after it opens.
func NewDaily(open, close TimeOfDay, loc *time.Location) (Daily, error) {
	if loc == nil {
		return Daily{}, errors.New("daily window location is required")
	}
	if !open.Before(close) {
		return Daily{}, fmt.Errorf("close %s is not after open %s", close, open)
	}
	return Daily{Open: open, Close: close, Location: loc}, nil
}

// Date returns t's calendar date in the window's zone.
func (d Daily) Date(t time.Time) time.Time {
	return DateOf(t, d.Location)
}

// Bounds returns the open and close instants on date.
func (d Daily) Bounds(date time.Time) (open, close time.Time) {
	day := DateOf(date, d.Location)
	return d.Open.On(day), d.Close.On(day)
}
