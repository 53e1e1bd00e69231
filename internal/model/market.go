package model

import "time"

// PriceSeries holds daily closes for one dataset column.
type PriceSeries struct {
	Symbol string
	Dates  []time.Time
	Closes []float64
}

// Len returns the number of observations.
func (p PriceSeries) Len() int { return len(p.Closes) }
