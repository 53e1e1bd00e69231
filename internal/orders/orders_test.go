package orders

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetsFromWeights(t *testing.T) {
	got, err := TargetsFromWeights([]float64{0.5, 0.25, 0.25}, []float64{33, 10, 400}, 10000)
	require.NoError(t, err)
	// 5000/33 = 151.5, 2500/10 = 250, 2500/400 = 6.25
	assert.Equal(t, []float64{151, 250, 6}, got)

	// Negative weights floor away from zero, matching floor division.
	short, err := TargetsFromWeights([]float64{-0.1}, []float64{30}, 1000)
	require.NoError(t, err)
	assert.Equal(t, []float64{-4}, short)
}

func TestOrdersFromWeights(t *testing.T) {
	got, err := OrdersFromWeights([]float64{0.5, 0.5}, []float64{100, 0}, []float64{10, 20}, 4000)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 100}, got)
}

func TestOrders_Errors(t *testing.T) {
	_, err := TargetsFromWeights([]float64{1}, []float64{1, 2}, 10)
	assert.True(t, errors.Is(err, ErrLengthMismatch))

	_, err = OrdersFromTargets([]float64{1, 2}, []float64{1})
	assert.True(t, errors.Is(err, ErrLengthMismatch))

	_, err = TargetsFromWeights([]float64{1}, []float64{0}, 10)
	assert.Error(t, err)
}
