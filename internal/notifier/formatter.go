package notifier

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"MarketTrigger/internal/model"
	"MarketTrigger/internal/trigger"
)

const dateTime = "2006-01-02 15:04 MST"

// FormatTrigger formats a fire or reset record.
func FormatTrigger(rec *model.TriggerRecord) string {
	var b strings.Builder
	switch rec.Kind {
	case model.TriggerFire:
		fmt.Fprintf(&b, "🔔 <b>%s fired</b> | %s\n", html.EscapeString(rec.Controller), rec.At.Format(dateTime))
		fmt.Fprintf(&b, "Remaining hits: %d\n", rec.RemainingHits)
	default:
		fmt.Fprintf(&b, "🔁 <b>%s reset</b> (%s) | %s\n", html.EscapeString(rec.Controller), rec.Reason, rec.At.Format(dateTime))
		fmt.Fprintf(&b, "Next window: %s\n", rec.NextEligible.Format("2006-01-02"))
	}
	if !rec.WindowOpen.IsZero() {
		fmt.Fprintf(&b, "Window: %s - %s\n", rec.WindowOpen.Format("15:04"), rec.WindowClose.Format("15:04"))
	}
	return b.String()
}

// FormatAllocation formats a rebalance decision with its commission.
func FormatAllocation(a *model.Allocation, orders int, commission float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>Rebalance</b> | %s\n\n", a.DecidedAt.Format(dateTime))
	fmt.Fprintf(&b, "Confidence: %+.3f\n", a.Confidence)
	fmt.Fprintf(&b, "Bulls: %.2f | Bears: %.2f\n", a.BullPct, a.BearPct)

	symbols := make([]string, 0, len(a.Weights))
	for s := range a.Weights {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	for _, s := range symbols {
		fmt.Fprintf(&b, "  %s: %.3f\n", s, a.Weights[s])
	}
	fmt.Fprintf(&b, "\nOrders: %d | Commission: $%.2f\n", orders, commission)
	return b.String()
}

// FormatAccount formats a margin snapshot.
func FormatAccount(s *model.AccountSnapshot) string {
	var b strings.Builder
	b.WriteString("💼 <b>Account</b>\n\n")
	fmt.Fprintf(&b, "Portfolio value: $%.2f\n", s.PortfolioValue)
	fmt.Fprintf(&b, "Margin requirement: $%.2f\n", s.Requirement)
	fmt.Fprintf(&b, "Remaining margin: $%.2f\n", s.RemainingMargin)
	fmt.Fprintf(&b, "Initial margin: $%.0f\n", s.InitialMargin)
	fmt.Fprintf(&b, "Leverage: %.2fx\n", s.Leverage)
	fmt.Fprintf(&b, "Commission: last $%.2f, total $%.2f\n", s.LastCommission, s.TotalCommission)
	fmt.Fprintf(&b, "Updated: %s\n", s.TakenAt.Format(dateTime))
	return b.String()
}

// FormatStatus formats the window state of a controller.
func FormatStatus(name string, st trigger.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⏱ <b>%s</b> (%s)\n\n", html.EscapeString(name), st.Mode)
	if !st.Initialized {
		b.WriteString("Waiting for the first session.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Period: %d | Hits: %d/%d\n", st.Period, st.RemainingHits, st.MaxHits)
	fmt.Fprintf(&b, "Next eligible: %s\n", st.NextEligible.Format("2006-01-02"))
	fmt.Fprintf(&b, "Window: %s - %s\n", st.WindowOpen.Format("15:04"), st.WindowClose.Format(dateTime))
	return b.String()
}

// FormatHistory lists recent trigger records, newest first.
func FormatHistory(name string, recs []model.TriggerRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📜 <b>%s history</b>\n\n", html.EscapeString(name))
	if len(recs) == 0 {
		b.WriteString("No events recorded.\n")
		return b.String()
	}
	for _, r := range recs {
		fmt.Fprintf(&b, "%s %s", r.At.Format(dateTime), r.Kind)
		if r.Reason != "" {
			fmt.Fprintf(&b, " (%s)", r.Reason)
		}
		fmt.Fprintf(&b, " next %s\n", r.NextEligible.Format("2006-01-02"))
	}
	return b.String()
}

// FormatHalted reports that scheduling stopped on an error.
func FormatHalted(name string, err error) string {
	return fmt.Sprintf("⛔ <b>%s halted</b>\n%s", html.EscapeString(name), html.EscapeString(err.Error()))
}

// FormatError formats a job failure.
func FormatError(job string, err error) string {
	return fmt.Sprintf("⚠️ <b>%s failed</b>\n%s", job, html.EscapeString(err.Error()))
}
