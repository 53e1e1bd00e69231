package strategy

import (
	"errors"
	"fmt"
	"math"
	"time"

	"MarketTrigger/internal/calendar"
	"MarketTrigger/internal/model"
)

// Params configures the bears/bulls allocation.
type Params struct {
	Leverage float64
	// AllowAdditionalLeverage lets confidence push bulls up to Leverage+1.
	AllowAdditionalLeverage bool
	Bulls                   []string
	Bears                   []string
}

// Validate checks that both baskets are populated and leverage is positive.
func (p Params) Validate() error {
	if p.Leverage <= 0 {
		return fmt.Errorf("leverage must be positive, got %.2f", p.Leverage)
	}
	if len(p.Bulls) == 0 || len(p.Bears) == 0 {
		return errors.New("bull and bear baskets must both be non-empty")
	}
	return nil
}

var eastern = calendar.MustLoadLocation("America/New_York")

// EntryWindow is the intraday entry rule: fire between 11:00 and 11:30 New York time.
func EntryWindow(now time.Time) bool {
	t := now.In(eastern)
	return t.Hour() == 11 && t.Minute() <= 30
}

// EntryDecision adapts EntryWindow to a trigger decision. It expects the tick
// time as its first argument.
func EntryDecision(args ...any) (bool, error) {
	if len(args) == 0 {
		return false, errors.New("entry decision needs the tick time")
	}
	now, ok := args[0].(time.Time)
	if !ok {
		return false, fmt.Errorf("entry decision: want time.Time, got %T", args[0])
	}
	return EntryWindow(now), nil
}

// Allocate splits the account between the bull and bear baskets. The bull share
// is the base leverage plus confidence; bears get whatever leverage is left and
// are never shorted. Each basket is evenly weighted.
func Allocate(confidence float64, p Params, now time.Time) (*model.Allocation, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	bulls := p.Leverage + confidence
	if !p.AllowAdditionalLeverage {
		bulls = math.Min(bulls, p.Leverage)
	}
	bears := math.Max(0, p.Leverage-bulls)

	weights := make(map[string]float64, len(p.Bulls)+len(p.Bears))
	perBull := bulls / float64(len(p.Bulls))
	for _, sym := range p.Bulls {
		weights[sym] += perBull
	}
	perBear := bears / float64(len(p.Bears))
	for _, sym := range p.Bears {
		weights[sym] += perBear
	}

	return &model.Allocation{
		Confidence: confidence,
		BullPct:    bulls,
		BearPct:    bears,
		Weights:    weights,
		DecidedAt:  now,
	}, nil
}
