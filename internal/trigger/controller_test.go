package trigger

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketTrigger/internal/calendar"
)

// countingDecision returns a decision stub that records how often it ran.
func countingDecision(result bool) (DecisionFunc, *int) {
	calls := 0
	return func(_ ...any) (bool, error) {
		calls++
		return result, nil
	}, &calls
}

func eastern(t *testing.T) *time.Location {
	t.Helper()
	loc, err := calendar.LoadLocation("US/Eastern")
	require.NoError(t, err)
	return loc
}

func xnys2024(t *testing.T) *calendar.TradingCalendar {
	t.Helper()
	cal, err := calendar.NewExchangeCalendar("XNYS", 2024, 2024)
	require.NoError(t, err)
	return cal
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cal := xnys2024(t)
	tests := []struct {
		name string
		opts []Option
	}{
		{name: "zero period", opts: []Option{WithPeriod(0)}},
		{name: "negative max hits", opts: []Option{WithMaxHits(-1)}},
		{name: "unknown mode", opts: []Option{WithMode(Mode(42))}},
		{name: "inverted window", opts: []Option{WithWindow(calendar.Clock(16, 0), calendar.Clock(9, 30))}},
		{name: "trading days without calendar", opts: []Option{WithMode(TradingDays)}},
		{name: "trading days bad period", opts: []Option{WithMode(TradingDays), WithCalendar(cal), WithPeriod(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.opts...)
			assert.Nil(t, c)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	st := c.State()
	assert.Equal(t, CalendarDays, st.Mode)
	assert.True(t, st.Initialized)
	assert.Equal(t, 1, st.Period)
	assert.Equal(t, 1, st.MaxHits)
	assert.Equal(t, 1, st.RemainingHits)
	assert.Equal(t, "America/New_York", c.Location().String())
	assert.Equal(t, 1900, st.NextEligible.Year())
	assert.Equal(t, "09:31", st.WindowOpen.Format("15:04"))
	assert.Equal(t, "15:29", st.WindowClose.Format("15:04"))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("TRADING_DAYS")
	require.NoError(t, err)
	assert.Equal(t, TradingDays, m)

	m, err = ParseMode("calendar_days")
	require.NoError(t, err)
	assert.Equal(t, CalendarDays, m)

	_, err = ParseMode("fortnights")
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestEvaluate_CalendarDaysScenario(t *testing.T) {
	loc := eastern(t)
	decide, calls := countingDecision(true)
	c, err := New(WithPeriod(1), WithMaxHits(1), WithLocation(loc), WithDecision(decide))
	require.NoError(t, err)

	day1 := func(h, m int) time.Time { return time.Date(2024, 3, 4, h, m, 0, 0, loc) }
	day2 := func(h, m int) time.Time { return time.Date(2024, 3, 5, h, m, 0, 0, loc) }

	before := c.State()
	ok, err := c.Evaluate(day1(9, 0))
	require.NoError(t, err)
	assert.False(t, ok, "pre-open tick must not fire")
	assert.Equal(t, 0, *calls)
	assert.Equal(t, before, c.State())

	ok, err = c.Evaluate(day1(10, 0))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, *calls)
	st := c.State()
	assert.Equal(t, 1, st.RemainingHits)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, loc), st.NextEligible)
	assert.Equal(t, day2(9, 31), st.WindowOpen)
	assert.Equal(t, day2(15, 29), st.WindowClose)

	ok, err = c.Evaluate(day1(10, 0))
	require.NoError(t, err)
	assert.False(t, ok, "window already used today")
	assert.Equal(t, 1, *calls)

	ok, err = c.Evaluate(day2(9, 0))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, *calls)

	ok, err = c.Evaluate(day2(10, 0))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, *calls)
}

func TestEvaluate_TradingDaysScenario(t *testing.T) {
	cal := xnys2024(t)
	decide, calls := countingDecision(true)
	c, err := New(WithMode(TradingDays), WithCalendar(cal), WithPeriod(20), WithDecision(decide))
	require.NoError(t, err)
	assert.False(t, c.State().Initialized)

	at := func(i int) time.Time {
		s, err := cal.At(i)
		require.NoError(t, err)
		return s.Open.Add(time.Hour)
	}

	ok, err := c.Evaluate(at(5))
	require.NoError(t, err)
	assert.True(t, ok)
	st := c.State()
	assert.True(t, st.Initialized)
	assert.Equal(t, 25, st.NextIndex)
	assert.Equal(t, 1, st.RemainingHits)

	for i := 6; i <= 24; i++ {
		ok, err := c.Evaluate(at(i))
		require.NoError(t, err)
		assert.False(t, ok, "session %d", i)
	}
	assert.Equal(t, 1, *calls, "decision must not run between windows")
	assert.Equal(t, st, c.State())

	ok, err = c.Evaluate(at(25))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 45, c.State().NextIndex)
}

func TestEvaluate_GateBeforeInvoke(t *testing.T) {
	cal := xnys2024(t)
	decide, calls := countingDecision(true)
	c, err := New(WithMode(TradingDays), WithCalendar(cal), WithDecision(decide))
	require.NoError(t, err)

	s, err := cal.At(10)
	require.NoError(t, err)

	// Lazily opens the window on the first call, then rejects pre-open ticks.
	ok, err := c.Evaluate(s.Open.Add(-time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)
	first := c.State()
	assert.Equal(t, 10, first.NextIndex)

	for i := 0; i < 5; i++ {
		ok, err := c.Evaluate(s.Open.Add(-time.Duration(i+1) * time.Minute))
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, 0, *calls)
	assert.Equal(t, first, c.State(), "rejected ticks must not mutate state")
}

func TestEvaluate_LazyInitOnNonTradingDay(t *testing.T) {
	cal := xnys2024(t)
	decide, calls := countingDecision(true)
	c, err := New(WithMode(TradingDays), WithCalendar(cal), WithDecision(decide))
	require.NoError(t, err)

	saturday := time.Date(2024, 1, 6, 11, 0, 0, 0, cal.Location())
	ok, err := c.Evaluate(saturday)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, *calls)
	assert.Equal(t, "2024-01-08", calendar.DayKey(c.State().NextEligible))
}

func TestEvaluate_TradingCloseForcesReset(t *testing.T) {
	cal := xnys2024(t)
	decide, calls := countingDecision(false)
	var events []Event
	c, err := New(
		WithMode(TradingDays), WithCalendar(cal), WithPeriod(3), WithMaxHits(2),
		WithDecision(decide), WithObserver(func(e Event) { events = append(events, e) }),
	)
	require.NoError(t, err)

	s, err := cal.At(40)
	require.NoError(t, err)

	ok, err := c.Evaluate(s.Open.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, *calls)

	ok, err = c.Evaluate(s.Close)
	require.NoError(t, err)
	assert.False(t, ok, "tick at close is gated out")
	assert.Equal(t, 1, *calls)

	st := c.State()
	assert.Equal(t, 43, st.NextIndex)
	assert.Equal(t, 2, st.RemainingHits)
	next, err := cal.At(43)
	require.NoError(t, err)
	assert.True(t, next.Open.Equal(st.WindowOpen))
	assert.True(t, next.Close.Equal(st.WindowClose))

	require.Len(t, events, 1)
	assert.Equal(t, EventReset, events[0].Kind)
	assert.Equal(t, ResetClosed, events[0].Reason)
}

func TestEvaluate_CalendarCloseForcesReset(t *testing.T) {
	loc := eastern(t)
	decide, calls := countingDecision(true)
	c, err := New(WithPeriod(2), WithMaxHits(3), WithLocation(loc), WithDecision(decide))
	require.NoError(t, err)

	closeAt := time.Date(2024, 3, 4, 15, 29, 0, 0, loc)
	ok, err := c.Evaluate(closeAt)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, *calls)

	st := c.State()
	assert.Equal(t, time.Date(2024, 3, 6, 0, 0, 0, 0, loc), st.NextEligible)
	assert.Equal(t, 3, st.RemainingHits)

	ok, err = c.Evaluate(time.Date(2024, 3, 5, 10, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, *calls)
}

func TestEvaluate_BudgetExhaustionResets(t *testing.T) {
	loc := eastern(t)
	decide, _ := countingDecision(true)
	var events []Event
	c, err := New(WithMaxHits(3), WithPeriod(5), WithLocation(loc), WithDecision(decide),
		WithObserver(func(e Event) { events = append(events, e) }))
	require.NoError(t, err)

	remaining := []int{}
	tick := time.Date(2024, 3, 4, 10, 0, 0, 0, loc)
	for i := 0; i < 3; i++ {
		ok, err := c.Evaluate(tick.Add(time.Duration(i) * time.Minute))
		require.NoError(t, err)
		assert.True(t, ok)
		remaining = append(remaining, c.State().RemainingHits)
	}
	assert.Equal(t, []int{2, 1, 3}, remaining)
	assert.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, loc), c.State().NextEligible)

	ok, err := c.Evaluate(tick.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	kinds := make([]EventKind, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []EventKind{EventFire, EventFire, EventFire, EventReset}, kinds)
	assert.Equal(t, ResetExhausted, events[3].Reason)
	assert.Equal(t, 3, events[3].State.RemainingHits)
}

func TestEvaluate_StartDateAndCarryOver(t *testing.T) {
	loc := eastern(t)
	decide, calls := countingDecision(true)
	start := time.Date(2024, 3, 6, 0, 0, 0, 0, loc)
	c, err := New(WithStartDate(start), WithPeriod(10), WithLocation(loc), WithDecision(decide))
	require.NoError(t, err)

	before := c.State()
	ok, err := c.Evaluate(time.Date(2024, 3, 5, 12, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, *calls)
	assert.Equal(t, before, c.State(), "rejection before the start date leaves state untouched")

	// No tick reached the close on the start date, so the window is still open a day later.
	ok, err = c.Evaluate(time.Date(2024, 3, 7, 12, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, *calls)
	assert.Equal(t, time.Date(2024, 3, 17, 0, 0, 0, 0, loc), c.State().NextEligible)
}

func TestEvaluate_NormalizesTimezone(t *testing.T) {
	loc := eastern(t)
	decide, calls := countingDecision(true)
	c, err := New(WithLocation(loc), WithDecision(decide))
	require.NoError(t, err)

	// 14:00 UTC is 09:00 EST: before the 09:31 open.
	ok, err := c.Evaluate(time.Date(2024, 3, 4, 14, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, ok)

	// 15:00 UTC is 10:00 EST.
	ok, err = c.Evaluate(time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, *calls)
}

func TestEvaluate_DecisionErrorPropagatesWithoutMutation(t *testing.T) {
	loc := eastern(t)
	boom := errors.New("broker unavailable")
	c, err := New(WithLocation(loc))
	require.NoError(t, err)

	before := c.State()
	ok, err := c.EvaluateWith(time.Date(2024, 3, 4, 10, 0, 0, 0, loc), func(_ ...any) (bool, error) {
		return true, boom
	})
	assert.False(t, ok)
	assert.Same(t, boom, err)
	assert.Equal(t, before, c.State())
}

func TestEvaluate_ForwardsArgumentsPerCall(t *testing.T) {
	loc := eastern(t)
	c, err := New(WithLocation(loc))
	require.NoError(t, err)

	now := time.Date(2024, 3, 4, 11, 15, 0, 0, loc)
	_, err = c.Evaluate(now)
	assert.True(t, errors.Is(err, ErrNoDecision))

	var got []any
	ok, err := c.EvaluateWith(now, func(args ...any) (bool, error) {
		got = args
		return true, nil
	}, now, "SPY", 3)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []any{now, "SPY", 3}, got)
}

func TestEvaluate_SessionOutOfRange(t *testing.T) {
	loc := eastern(t)
	day := func(d int) calendar.Session {
		date := time.Date(2024, 3, d, 0, 0, 0, 0, loc)
		return calendar.Session{Date: date, Open: calendar.Clock(9, 30).On(date), Close: calendar.Clock(16, 0).On(date)}
	}
	cal, err := calendar.NewTradingCalendar("tiny", loc, []calendar.Session{day(4), day(5), day(6)})
	require.NoError(t, err)

	decide, _ := countingDecision(true)
	c, err := New(WithMode(TradingDays), WithCalendar(cal), WithPeriod(5), WithDecision(decide))
	require.NoError(t, err)

	ok, err := c.Evaluate(time.Date(2024, 3, 4, 10, 0, 0, 0, loc))
	assert.True(t, ok, "the fire itself happened")
	assert.True(t, errors.Is(err, calendar.ErrSessionOutOfRange))

	// Budget stays spent: later ticks neither fire nor wrap around.
	ok, err = c.Evaluate(time.Date(2024, 3, 4, 11, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.Evaluate(time.Date(2024, 3, 9, 10, 0, 0, 0, loc))
	assert.True(t, errors.Is(err, calendar.ErrSessionOutOfRange))
}

func TestEvaluate_SerializedAcrossGoroutines(t *testing.T) {
	loc := eastern(t)
	var calls atomic.Int32
	c, err := New(WithLocation(loc), WithMaxHits(5), WithDecision(func(_ ...any) (bool, error) {
		calls.Add(1)
		return true, nil
	}))
	require.NoError(t, err)

	now := time.Date(2024, 3, 4, 12, 0, 0, 0, loc)
	var fired atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := c.Evaluate(now); err == nil && ok {
				fired.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), fired.Load())
	assert.Equal(t, int32(5), calls.Load())
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, loc), c.State().NextEligible)
}
