package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"MarketTrigger/internal/calculator"
	"MarketTrigger/internal/model"
)

// MockFetcher returns fixed series for development and testing. Codes without
// a series get a flat line at Price.
type MockFetcher struct {
	Price  float64
	Series map[string]model.PriceSeries
	Err    error
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchCloses(_ context.Context, codes []string, days int) (map[string]model.PriceSeries, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	out := make(map[string]model.PriceSeries, len(codes))
	for _, c := range codes {
		if s, ok := m.Series[c]; ok {
			out[c] = s
			continue
		}
		out[c] = flatSeries(c, m.Price, days)
	}
	return out, nil
}

func flatSeries(code string, price float64, days int) model.PriceSeries {
	s := model.PriceSeries{Symbol: code}
	start := time.Now().AddDate(0, 0, -days)
	for i := 0; i < days; i++ {
		s.Dates = append(s.Dates, start.AddDate(0, 0, i))
		s.Closes = append(s.Closes, price)
	}
	return s
}

// MarketData is what the rebalance job needs from one collection.
type MarketData struct {
	// Returns is the mean daily return of the bull basket, oldest first.
	Returns []float64
	// Prices holds the latest close of every requested symbol.
	Prices      map[string]float64
	CollectedAt time.Time
}

// Collector maps symbols to dataset codes and turns closes into returns.
type Collector struct {
	Fetcher Fetcher
	Codes   map[string]string
	Days    int
	log     zerolog.Logger
}

// NewCollector creates a new Collector. Symbols missing from codes are
// requested under their own name.
func NewCollector(fetcher Fetcher, codes map[string]string, days int, log zerolog.Logger) *Collector {
	return &Collector{Fetcher: fetcher, Codes: codes, Days: days, log: log}
}

func (c *Collector) code(symbol string) string {
	if code, ok := c.Codes[symbol]; ok && code != "" {
		return code
	}
	return symbol
}

// Collect fetches closes for bulls and others, averages the bulls' daily
// returns and reports the latest price per symbol.
func (c *Collector) Collect(ctx context.Context, bulls, others []string) (*MarketData, error) {
	symbols := make([]string, 0, len(bulls)+len(others))
	seen := make(map[string]bool, cap(symbols))
	for _, s := range append(append([]string{}, bulls...), others...) {
		if !seen[s] {
			seen[s] = true
			symbols = append(symbols, s)
		}
	}
	codes := make([]string, len(symbols))
	for i, s := range symbols {
		codes[i] = c.code(s)
	}

	series, err := c.Fetcher.FetchCloses(ctx, codes, c.Days)
	if err != nil {
		return nil, fmt.Errorf("fetch closes: %w", err)
	}

	data := &MarketData{Prices: make(map[string]float64, len(symbols)), CollectedAt: time.Now()}
	for _, s := range symbols {
		ser, ok := series[c.code(s)]
		if !ok || ser.Len() == 0 {
			return nil, fmt.Errorf("no closes for %s", s)
		}
		data.Prices[s] = ser.Closes[ser.Len()-1]
	}

	bullSeries := make([]model.PriceSeries, len(bulls))
	for i, s := range bulls {
		bullSeries[i] = series[c.code(s)]
	}
	aligned, err := alignCloses(bullSeries)
	if err != nil {
		return nil, err
	}
	rets := make([][]float64, 0, len(bulls))
	for i, closes := range aligned {
		r, err := calculator.PctChange(closes)
		if err != nil {
			return nil, fmt.Errorf("returns for %s: %w", bulls[i], err)
		}
		rets = append(rets, r)
	}
	if data.Returns, err = calculator.MeanAcross(rets); err != nil {
		return nil, fmt.Errorf("mean returns: %w", err)
	}

	c.log.Debug().
		Str("fetcher", c.Fetcher.Name()).
		Int("symbols", len(symbols)).
		Int("returns", len(data.Returns)).
		Msg("market data collected")
	return data, nil
}

// alignCloses keeps only the dates every series has a close for, so the i-th
// return of each series spans the same two days. Series must be sorted by date.
func alignCloses(series []model.PriceSeries) ([][]float64, error) {
	if len(series) == 0 {
		return nil, errors.New("no series to align")
	}
	seen := make(map[string]int)
	for _, s := range series {
		for _, d := range s.Dates {
			seen[d.Format("2006-01-02")]++
		}
	}

	var common []string
	for _, d := range series[0].Dates {
		if k := d.Format("2006-01-02"); seen[k] == len(series) {
			common = append(common, k)
		}
	}
	if len(common) < 2 {
		return nil, fmt.Errorf("only %d dates shared by all series", len(common))
	}

	out := make([][]float64, len(series))
	for i, s := range series {
		byDate := make(map[string]float64, s.Len())
		for j, d := range s.Dates {
			byDate[d.Format("2006-01-02")] = s.Closes[j]
		}
		closes := make([]float64, len(common))
		for j, k := range common {
			closes[j] = byDate[k]
		}
		out[i] = closes
	}
	return out, nil
}
