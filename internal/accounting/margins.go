// Package accounting computes the margin, leverage and commission figures the
// driver reports alongside each trigger. Every function is stateless over the
// portfolio snapshot it is given.
package accounting

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"MarketTrigger/internal/model"
)

const (
	// DayTraderInitialMargin is the pattern-day-trader equity minimum.
	DayTraderInitialMargin = 25000.0
	// StandardInitialMargin is the regular margin account minimum.
	StandardInitialMargin = 2000.0
)

// ErrNoEquity is returned when leverage is requested for a portfolio worth <= 0.
var ErrNoEquity = errors.New("portfolio value is not positive")

// PositionRequirement returns the maintenance requirement of one position.
// Longs need 25% of market value. Shorts under $5 need the greater of $2.50 per
// share or 100% of value; shorts at $5 or more need the greater of $5 per share
// or 30% of value.
func PositionRequirement(p model.Position) float64 {
	if p.Amount >= 0 {
		return 0.25 * p.Amount * p.LastSalePrice
	}
	shares := math.Abs(p.Amount)
	value := shares * p.LastSalePrice
	if p.LastSalePrice < 5 {
		return math.Max(2.5*shares, value)
	}
	return math.Max(5*shares, 0.3*value)
}

// LongShortValues sums long market value and the absolute short market value.
func LongShortValues(p *model.Portfolio) (longs, shorts float64) {
	for _, pos := range p.Positions {
		v := pos.Value()
		switch {
		case v > 0:
			longs += v
		case v < 0:
			shorts += math.Abs(v)
		}
	}
	return longs, shorts
}

// Leverage is gross exposure divided by portfolio value.
func Leverage(p *model.Portfolio) (float64, error) {
	equity := p.PortfolioValue()
	if equity <= 0 {
		return 0, fmt.Errorf("%w: %.2f", ErrNoEquity, equity)
	}
	longs, shorts := LongShortValues(p)
	return (longs + shorts) / equity, nil
}

// Margins is the requirement breakdown of a portfolio.
type Margins struct {
	InitialMargin   float64
	PositionMargins map[string]float64
	Requirement     float64
	RemainingMargin float64
	Leverage        float64
}

// NewMargins computes per-position requirements for symbols (every held position
// when symbols is empty), the total requirement, remaining margin and leverage.
func NewMargins(p *model.Portfolio, symbols []string, dayTrader bool) (*Margins, error) {
	lev, err := Leverage(p)
	if err != nil {
		return nil, err
	}
	if len(symbols) == 0 {
		for sym := range p.Positions {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)
	}

	m := &Margins{
		InitialMargin:   StandardInitialMargin,
		PositionMargins: make(map[string]float64, len(symbols)),
		Leverage:        lev,
	}
	if dayTrader {
		m.InitialMargin = DayTraderInitialMargin
	}
	reqs := make([]float64, 0, len(symbols))
	for _, sym := range symbols {
		r := PositionRequirement(p.Position(sym))
		m.PositionMargins[sym] = r
		reqs = append(reqs, r)
	}
	m.Requirement = floats.Sum(reqs)
	m.RemainingMargin = p.PortfolioValue() - m.Requirement
	return m, nil
}

// Symbols returns the symbols with a computed requirement, sorted.
func (m *Margins) Symbols() []string {
	out := make([]string, 0, len(m.PositionMargins))
	for sym := range m.PositionMargins {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
