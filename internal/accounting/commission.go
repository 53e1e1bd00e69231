package accounting

import (
	"sync"

	"MarketTrigger/internal/model"
)

// OrderLookup reports an order's commission once the execution side knows it.
type OrderLookup interface {
	Commission(id model.OrderID) (float64, bool)
}

// CommissionTracker accumulates commissions of submitted orders. Orders whose
// commission is not yet known stay pending and are retried on the next Update.
type CommissionTracker struct {
	mu      sync.Mutex
	lookup  OrderLookup
	pending map[model.OrderID]struct{}
	last    float64
	total   float64
}

// NewCommissionTracker starts with zero totals.
func NewCommissionTracker(lookup OrderLookup) *CommissionTracker {
	return &CommissionTracker{lookup: lookup, pending: make(map[model.OrderID]struct{})}
}

// Update adds ids to the pending set, settles every pending order with a known
// commission and returns the amount settled by this call.
func (t *CommissionTracker) Update(ids ...model.OrderID) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, id := range ids {
		t.pending[id] = struct{}{}
	}
	var settled float64
	for id := range t.pending {
		c, ok := t.lookup.Commission(id)
		if !ok {
			continue
		}
		settled += c
		delete(t.pending, id)
	}
	if settled > 0 {
		t.last = settled
	}
	t.total += settled
	return settled
}

// Last is the most recent non-zero settlement.
func (t *CommissionTracker) Last() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Total is the sum of every settlement.
func (t *CommissionTracker) Total() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Pending counts orders still waiting for a commission.
func (t *CommissionTracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
