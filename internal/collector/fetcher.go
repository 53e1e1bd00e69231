package collector

import (
	"context"

	"MarketTrigger/internal/model"
)

// Fetcher loads daily close series keyed by dataset code.
type Fetcher interface {
	FetchCloses(ctx context.Context, codes []string, days int) (map[string]model.PriceSeries, error)
	Name() string
}
