package trigger

import (
	"fmt"
	"sync"
	"time"

	"MarketTrigger/internal/calendar"
)

// EventKind distinguishes controller events.
type EventKind string

const (
	EventFire  EventKind = "FIRE"
	EventReset EventKind = "RESET"
)

// ResetReason says which boundary ended a window.
type ResetReason string

const (
	ResetExhausted ResetReason = "exhausted"
	ResetClosed    ResetReason = "closed"
)

// Event is delivered to the observer after the state change is applied.
type Event struct {
	Controller string
	Kind       EventKind
	Reason     ResetReason // empty for fires
	At         time.Time
	State      State
}

// State is a read-only snapshot of the scheduling bookkeeping.
type State struct {
	Mode          Mode
	Initialized   bool
	Period        int
	MaxHits       int
	RemainingHits int
	// NextEligible is the first date of the current or upcoming window.
	NextEligible time.Time
	// NextIndex is the session index of NextEligible (TradingDays only).
	NextIndex   int
	WindowOpen  time.Time
	WindowClose time.Time
}

// Controller owns the window state of one gated behavior. Evaluate calls on one
// controller are serialized; separate controllers are independent.
type Controller struct {
	mu    sync.Mutex
	cfg   settings
	daily calendar.Daily

	initialized   bool
	remainingHits int
	nextEligible  time.Time
	nextIndex     int
	windowOpen    time.Time
	windowClose   time.Time
}

// New validates the options and builds a controller. In CalendarDays mode the
// first window starts on the start date; in TradingDays mode it is opened lazily
// by the first Evaluate.
func New(opts ...Option) (*Controller, error) {
	cfg := defaults()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.loc == nil {
		loc, err := calendar.LoadLocation(calendar.DefaultTimezone)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		cfg.loc = loc
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &Controller{cfg: cfg, remainingHits: cfg.maxHits}
	if cfg.mode == CalendarDays {
		daily, err := calendar.NewDaily(cfg.open, cfg.close, cfg.loc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		c.daily = daily
		y, m, d := cfg.startDate.Date()
		c.openDate(time.Date(y, m, d, 0, 0, 0, 0, cfg.loc))
		c.initialized = true
	}
	return c, nil
}

// Name returns the controller label.
func (c *Controller) Name() string { return c.cfg.name }

// Location returns the zone ticks are normalized to.
func (c *Controller) Location() *time.Location { return c.cfg.loc }

// Evaluate runs the configured decision if the window permits it.
func (c *Controller) Evaluate(now time.Time, args ...any) (bool, error) {
	if c.cfg.decision == nil {
		return false, ErrNoDecision
	}
	return c.EvaluateWith(now, c.cfg.decision, args...)
}

// EvaluateWith gates fn at instant now and forwards args to it.
//
// It returns false without calling fn while the window is closed, before its
// open instant, at or after its close instant, or once the budget is spent.
// Errors from fn are returned unchanged and leave the state untouched. A session
// lookup failure while resetting after a successful fire is returned together with
// true: the action did happen, but the next window could not be scheduled.
func (c *Controller) EvaluateWith(now time.Time, fn DecisionFunc, args ...any) (bool, error) {
	if fn == nil {
		return false, ErrNoDecision
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now = now.In(c.cfg.loc)

	var ready bool
	var err error
	if c.cfg.mode == TradingDays {
		ready, err = c.gateSession(now)
	} else {
		ready, err = c.gateDay(now)
	}
	if err != nil || !ready {
		return false, err
	}
	if c.remainingHits <= 0 {
		return false, nil
	}

	decision, err := fn(args...)
	if err != nil {
		return false, err
	}
	if !decision {
		return false, nil
	}

	c.remainingHits--
	c.emit(Event{Kind: EventFire, At: now})
	if c.remainingHits <= 0 {
		if err := c.reset(now, ResetExhausted); err != nil {
			return true, err
		}
	}
	return true, nil
}

// gateSession handles window initialization and the intraday gate for TradingDays.
func (c *Controller) gateSession(now time.Time) (bool, error) {
	if !c.initialized {
		s, _, err := c.cfg.sessions.Lookup(now)
		if err != nil {
			return false, fmt.Errorf("open first window: %w", err)
		}
		c.openSession(s)
		c.initialized = true
		c.cfg.log.Debug().
			Str("controller", c.cfg.name).
			Str("session", calendar.DayKey(s.Date)).
			Int("index", s.Index).
			Msg("first window opened")
	}
	if now.Before(c.windowOpen) {
		return false, nil
	}
	if !now.Before(c.windowClose) {
		return false, c.reset(now, ResetClosed)
	}
	return true, nil
}

// gateDay handles the date and intraday gates for CalendarDays. A window that saw
// no close tick carries over to later dates with that date's bounds.
func (c *Controller) gateDay(now time.Time) (bool, error) {
	today := c.daily.Date(now)
	if today.Before(c.nextEligible) {
		return false, nil
	}
	open, close := c.daily.Bounds(today)
	if now.Before(open) {
		return false, nil
	}
	if !now.Before(close) {
		return false, c.reset(now, ResetClosed)
	}
	return true, nil
}

// reset starts the next window period periods after now's date and restores the budget.
func (c *Controller) reset(now time.Time, reason ResetReason) error {
	if c.cfg.mode == TradingDays {
		cur, _, err := c.cfg.sessions.Lookup(now)
		if err != nil {
			return fmt.Errorf("locate current session: %w", err)
		}
		next, err := c.cfg.sessions.At(cur.Index + c.cfg.period)
		if err != nil {
			return fmt.Errorf("advance %d sessions from %s: %w", c.cfg.period, calendar.DayKey(cur.Date), err)
		}
		c.openSession(next)
	} else {
		c.openDate(calendar.AddDays(c.daily.Date(now), c.cfg.period))
	}
	c.remainingHits = c.cfg.maxHits

	c.cfg.log.Debug().
		Str("controller", c.cfg.name).
		Str("reason", string(reason)).
		Str("next", calendar.DayKey(c.nextEligible)).
		Msg("window reset")
	c.emit(Event{Kind: EventReset, Reason: reason, At: now})
	return nil
}

func (c *Controller) openSession(s calendar.Session) {
	c.nextEligible = s.Date
	c.nextIndex = s.Index
	c.windowOpen = s.Open.In(c.cfg.loc)
	c.windowClose = s.Close.In(c.cfg.loc)
}

func (c *Controller) openDate(date time.Time) {
	c.nextEligible = date
	c.windowOpen, c.windowClose = c.daily.Bounds(date)
}

func (c *Controller) emit(e Event) {
	if c.cfg.observer == nil {
		return
	}
	e.Controller = c.cfg.name
	e.State = c.snapshot()
	c.cfg.observer(e)
}

// State returns a snapshot of the current bookkeeping.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *Controller) snapshot() State {
	return State{
		Mode:          c.cfg.mode,
		Initialized:   c.initialized,
		Period:        c.cfg.period,
		MaxHits:       c.cfg.maxHits,
		RemainingHits: c.remainingHits,
		NextEligible:  c.nextEligible,
		NextIndex:     c.nextIndex,
		WindowOpen:    c.windowOpen,
		WindowClose:   c.windowClose,
	}
}
