// Package portfolio is a file-backed paper account standing in for the
// execution environment: it holds positions, fills rebalance orders at the
// supplied prices and reports their commissions.
package portfolio

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"MarketTrigger/internal/model"
	"MarketTrigger/internal/orders"
)

// maxOrderHistory bounds the orders kept in the state file.
const maxOrderHistory = 500

// Fees is a per-share commission schedule with a minimum per order.
type Fees struct {
	PerShare     float64
	MinTradeCost float64
}

// For returns the commission of an order for shares shares.
func (f Fees) For(shares float64) float64 {
	return math.Max(f.MinTradeCost, f.PerShare*math.Abs(shares))
}

// Manager owns the paper account with concurrency safety.
type Manager struct {
	mu       sync.Mutex
	state    *State
	filePath string
	fees     Fees
	log      zerolog.Logger
}

// NewManager loads the account from filePath or starts one with initialCash.
func NewManager(filePath string, initialCash float64, fees Fees, log zerolog.Logger) (*Manager, error) {
	state, err := LoadState(filePath)
	if err != nil {
		return nil, fmt.Errorf("load portfolio state: %w", err)
	}
	if state == nil {
		state = &State{Cash: initialCash, Positions: make(map[string]*model.Position)}
	}
	m := &Manager{state: state, filePath: filePath, fees: fees, log: log}
	if err := m.save(); err != nil {
		return nil, err
	}
	return m, nil
}

// Snapshot returns a copy of the account as a read-only portfolio view.
func (m *Manager) Snapshot() *model.Portfolio {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

func (m *Manager) snapshot() *model.Portfolio {
	p := &model.Portfolio{
		Cash:      m.state.Cash,
		Positions: make(map[string]*model.Position, len(m.state.Positions)),
		UpdatedAt: m.state.UpdatedAt,
	}
	for sym, pos := range m.state.Positions {
		cp := *pos
		p.Positions[sym] = &cp
	}
	return p
}

func (m *Manager) mark(prices map[string]float64) {
	for sym, px := range prices {
		if pos, ok := m.state.Positions[sym]; ok {
			pos.LastSalePrice = px
		}
	}
}

// Rebalance moves the account to weights of its current value, filling every
// order at prices. It returns the ids of the orders placed.
func (m *Manager) Rebalance(weights, prices map[string]float64, now time.Time) ([]model.OrderID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.mark(prices)

	symbols := make([]string, 0, len(weights))
	for sym := range weights {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	w := make([]float64, len(symbols))
	px := make([]float64, len(symbols))
	cur := make([]float64, len(symbols))
	for i, sym := range symbols {
		p, ok := prices[sym]
		if !ok {
			return nil, fmt.Errorf("no price for %s", sym)
		}
		w[i] = weights[sym]
		px[i] = p
		if pos, ok := m.state.Positions[sym]; ok {
			cur[i] = pos.Amount
		}
	}

	funds := m.snapshot().PortfolioValue()
	deltas, err := orders.OrdersFromWeights(w, cur, px, funds)
	if err != nil {
		return nil, fmt.Errorf("size orders: %w", err)
	}

	var ids []model.OrderID
	for i, sym := range symbols {
		if deltas[i] == 0 {
			continue
		}
		o := model.Order{
			ID:         model.OrderID(uuid.NewString()),
			Symbol:     sym,
			Amount:     deltas[i],
			Price:      px[i],
			Commission: m.fees.For(deltas[i]),
			FilledAt:   now,
		}
		m.fill(o)
		ids = append(ids, o.ID)
		m.log.Info().
			Str("symbol", sym).
			Float64("shares", o.Amount).
			Float64("price", o.Price).
			Float64("commission", o.Commission).
			Msg("paper order filled")
	}

	if err := m.save(); err != nil {
		m.log.Error().Err(err).Msg("failed to save portfolio state")
	}
	return ids, nil
}

func (m *Manager) fill(o model.Order) {
	pos, ok := m.state.Positions[o.Symbol]
	if !ok {
		pos = &model.Position{Symbol: o.Symbol}
		m.state.Positions[o.Symbol] = pos
	}
	pos.Amount += o.Amount
	pos.LastSalePrice = o.Price
	if pos.Amount == 0 {
		delete(m.state.Positions, o.Symbol)
	}
	m.state.Cash -= o.Amount*o.Price + o.Commission

	m.state.Orders = append(m.state.Orders, o)
	if len(m.state.Orders) > maxOrderHistory {
		m.state.Orders = m.state.Orders[len(m.state.Orders)-maxOrderHistory:]
	}
}

// Commission reports the commission of a filled order. It satisfies
// accounting.OrderLookup.
func (m *Manager) Commission(id model.OrderID) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.state.Orders) - 1; i >= 0; i-- {
		if m.state.Orders[i].ID == id {
			return m.state.Orders[i].Commission, true
		}
	}
	return 0, false
}

func (m *Manager) save() error {
	return SaveState(m.filePath, m.state)
}
