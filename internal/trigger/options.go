package trigger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"MarketTrigger/internal/calendar"
)

var (
	// ErrInvalidConfig wraps every construction-time validation failure.
	ErrInvalidConfig = errors.New("invalid trigger config")
	// ErrNoDecision is returned by Evaluate when no decision function was configured.
	ErrNoDecision = errors.New("no decision function")
)

// Mode selects what one period means.
type Mode int

const (
	// CalendarDays spaces windows by plain dates with a fixed intraday window.
	CalendarDays Mode = iota + 1
	// TradingDays spaces windows by exchange sessions using their published hours.
	TradingDays
)

func (m Mode) String() string {
	switch m {
	case CalendarDays:
		return "calendar_days"
	case TradingDays:
		return "trading_days"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode accepts "calendar_days" or "trading_days" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "calendar_days", "calendar":
		return CalendarDays, nil
	case "trading_days", "trading":
		return TradingDays, nil
	}
	return 0, fmt.Errorf("%w: unknown calendar mode %q", ErrInvalidConfig, s)
}

// DecisionFunc decides whether the gated action happened. It receives the extra
// arguments passed to Evaluate unchanged.
type DecisionFunc func(args ...any) (bool, error)

// Option configures a Controller.
type Option func(*settings)

type settings struct {
	name      string
	period    int
	maxHits   int
	mode      Mode
	open      calendar.TimeOfDay
	close     calendar.TimeOfDay
	loc       *time.Location
	startDate time.Time
	sessions  calendar.Sessions
	decision  DecisionFunc
	observer  func(Event)
	log       zerolog.Logger
}

func defaults() settings {
	return settings{
		name:      "trigger",
		period:    1,
		maxHits:   1,
		mode:      CalendarDays,
		open:      calendar.Clock(9, 31),
		close:     calendar.Clock(15, 29),
		startDate: time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC),
		log:       zerolog.Nop(),
	}
}

func (s *settings) validate() error {
	if s.period < 1 {
		return fmt.Errorf("%w: period must be >= 1, got %d", ErrInvalidConfig, s.period)
	}
	if s.maxHits < 1 {
		return fmt.Errorf("%w: max hits per window must be >= 1, got %d", ErrInvalidConfig, s.maxHits)
	}
	if s.loc == nil {
		return fmt.Errorf("%w: timezone is required", ErrInvalidConfig)
	}
	switch s.mode {
	case CalendarDays:
		if !s.open.Before(s.close) {
			return fmt.Errorf("%w: close %s is not after open %s", ErrInvalidConfig, s.close, s.open)
		}
	case TradingDays:
		if s.sessions == nil {
			return fmt.Errorf("%w: trading_days mode needs a session calendar", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown calendar mode %v", ErrInvalidConfig, s.mode)
	}
	return nil
}

// WithName labels the controller in logs and events.
func WithName(name string) Option {
	return func(s *settings) { s.name = name }
}

// WithPeriod sets how many periods separate consecutive windows. Default 1.
func WithPeriod(n int) Option {
	return func(s *settings) { s.period = n }
}

// WithMaxHits sets the fire budget of one window. Default 1.
func WithMaxHits(n int) Option {
	return func(s *settings) { s.maxHits = n }
}

// WithMode selects CalendarDays (default) or TradingDays.
func WithMode(m Mode) Option {
	return func(s *settings) { s.mode = m }
}

// WithWindow sets the intraday window used in CalendarDays mode. Default 09:31–15:29.
func WithWindow(open, close calendar.TimeOfDay) Option {
	return func(s *settings) {
		s.open = open
		s.close = close
	}
}

// WithLocation sets the zone every tick is normalized to. Default US/Eastern.
func WithLocation(loc *time.Location) Option {
	return func(s *settings) { s.loc = loc }
}

// WithStartDate sets the first date firing is permitted in CalendarDays mode. Only
// the calendar day of date is used; its clock and zone are ignored.
func WithStartDate(date time.Time) Option {
	return func(s *settings) { s.startDate = date }
}

// WithCalendar supplies the session calendar required by TradingDays mode.
func WithCalendar(sessions calendar.Sessions) Option {
	return func(s *settings) { s.sessions = sessions }
}

// WithDecision sets the decision used by Evaluate.
func WithDecision(fn DecisionFunc) Option {
	return func(s *settings) { s.decision = fn }
}

// WithObserver registers a callback for fires and resets. It runs while the
// controller is locked and must not call back into it.
func WithObserver(fn func(Event)) Option {
	return func(s *settings) { s.observer = fn }
}

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *settings) { s.log = l }
}
