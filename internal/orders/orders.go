// Package orders turns portfolio weights into whole-share order quantities.
package orders

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrLengthMismatch is returned when vectors do not line up element for element.
var ErrLengthMismatch = errors.New("vector length mismatch")

// TargetsFromWeights converts weights into target share counts: floor(w*funds/price).
// Fractional shares are not allowed.
func TargetsFromWeights(weights, prices []float64, funds float64) ([]float64, error) {
	if len(weights) != len(prices) {
		return nil, fmt.Errorf("%w: %d weights, %d prices", ErrLengthMismatch, len(weights), len(prices))
	}
	targets := make([]float64, len(weights))
	floats.ScaleTo(targets, funds, weights)
	for i, p := range prices {
		if p <= 0 {
			return nil, fmt.Errorf("price %d is not positive: %v", i, p)
		}
		targets[i] = math.Floor(targets[i] / p)
	}
	return targets, nil
}

// OrdersFromTargets returns the share deltas that move current to targets.
func OrdersFromTargets(targets, current []float64) ([]float64, error) {
	if len(targets) != len(current) {
		return nil, fmt.Errorf("%w: %d targets, %d positions", ErrLengthMismatch, len(targets), len(current))
	}
	out := make([]float64, len(targets))
	floats.SubTo(out, targets, current)
	return out, nil
}

// OrdersFromWeights combines TargetsFromWeights and OrdersFromTargets.
func OrdersFromWeights(weights, current, prices []float64, funds float64) ([]float64, error) {
	targets, err := TargetsFromWeights(weights, prices, funds)
	if err != nil {
		return nil, err
	}
	return OrdersFromTargets(targets, current)
}
