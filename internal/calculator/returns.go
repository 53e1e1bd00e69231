package calculator

import (
	"errors"

	"gonum.org/v1/gonum/floats"
)

// PctChange returns day-over-day returns. The result is one shorter than closes.
func PctChange(closes []float64) ([]float64, error) {
	if len(closes) < 2 {
		return nil, errors.New("not enough closes for returns")
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			return nil, errors.New("zero close in series")
		}
		out = append(out, closes[i]/closes[i-1]-1)
	}
	return out, nil
}

// MeanAcross averages equally long series element by element.
func MeanAcross(series [][]float64) ([]float64, error) {
	if len(series) == 0 {
		return nil, errors.New("no series provided")
	}
	n := len(series[0])
	out := make([]float64, n)
	for _, s := range series {
		if len(s) != n {
			return nil, errors.New("series lengths differ")
		}
		floats.Add(out, s)
	}
	floats.Scale(1/float64(len(series)), out)
	return out, nil
}

// ReturnsConfidence scores a return series in [-1, 1]. Each trailing window of the
// last i returns, for i in 1..n-1, adds 1/n when its sum is positive and subtracts
// 1/n when it is negative.
func ReturnsConfidence(returns []float64) (float64, error) {
	n := len(returns)
	if n == 0 {
		return 0, errors.New("no returns provided")
	}
	step := 1.0 / float64(n)
	var signal float64
	for i := 1; i < n; i++ {
		r := floats.Sum(returns[n-i:])
		switch {
		case r > 0:
			signal += step
		case r < 0:
			signal -= step
		}
	}
	return signal, nil
}
