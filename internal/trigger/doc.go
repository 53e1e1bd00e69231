// Package trigger gates a caller-supplied decision function behind periodic
// trigger windows.
//
// A Controller permits at most a fixed number of successful fires per window,
// spaces windows a fixed number of periods apart and only lets the decision run
// inside the window's intraday open/close interval. A period is either one plain
// calendar day (CalendarDays) or one exchange session (TradingDays).
//
// Life cycle of one controller:
//
//	Uninitialized -> WindowClosed <-> WindowOpen -> Exhausted|Expired -> WindowClosed
//
// A window resets exactly once, when its budget reaches zero or when a tick lands at
// or after its close instant. A reset moves the next eligible date period periods past
// the current date and restores the full budget.
package trigger
