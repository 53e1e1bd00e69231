package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func params() Params {
	return Params{
		Leverage:                1.0,
		AllowAdditionalLeverage: true,
		Bulls:                   []string{"XLB", "XLE", "XLF", "XLI"},
		Bears:                   []string{"TLT", "SHY"},
	}
}

func TestEntryWindow(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{name: "window start", at: time.Date(2024, 3, 4, 11, 0, 0, 0, ny), want: true},
		{name: "window end minute", at: time.Date(2024, 3, 4, 11, 30, 59, 0, ny), want: true},
		{name: "after window", at: time.Date(2024, 3, 4, 11, 31, 0, 0, ny), want: false},
		{name: "morning", at: time.Date(2024, 3, 4, 10, 59, 0, 0, ny), want: false},
		{name: "utc input", at: time.Date(2024, 3, 4, 16, 15, 0, 0, time.UTC), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EntryWindow(tt.at))
		})
	}
}

func TestEntryDecision(t *testing.T) {
	ok, err := EntryDecision(time.Date(2024, 3, 4, 16, 15, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = EntryDecision()
	assert.Error(t, err)
	_, err = EntryDecision("11:15")
	assert.Error(t, err)
}

func TestAllocate_PositiveConfidence(t *testing.T) {
	a, err := Allocate(0.4, params(), time.Time{})
	require.NoError(t, err)
	assert.InDelta(t, 1.4, a.BullPct, 1e-12)
	assert.Zero(t, a.BearPct)
	assert.InDelta(t, 0.35, a.Weights["XLB"], 1e-12)
	assert.Zero(t, a.Weights["TLT"])
}

func TestAllocate_CappedWithoutAdditionalLeverage(t *testing.T) {
	p := params()
	p.AllowAdditionalLeverage = false
	a, err := Allocate(0.4, p, time.Time{})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, a.BullPct, 1e-12)
	assert.Zero(t, a.BearPct)
}

func TestAllocate_NegativeConfidenceFundsBears(t *testing.T) {
	a, err := Allocate(-0.5, params(), time.Time{})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, a.BullPct, 1e-12)
	assert.InDelta(t, 0.5, a.BearPct, 1e-12)
	assert.InDelta(t, 0.125, a.Weights["XLF"], 1e-12)
	assert.InDelta(t, 0.25, a.Weights["SHY"], 1e-12)

	var sum float64
	for _, w := range a.Weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
}

func TestAllocate_InvalidParams(t *testing.T) {
	p := params()
	p.Bears = nil
	_, err := Allocate(0, p, time.Time{})
	assert.Error(t, err)

	p = params()
	p.Leverage = 0
	_, err = Allocate(0, p, time.Time{})
	assert.Error(t, err)
}
