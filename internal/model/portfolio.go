package model

import "time"

// Position is a signed share count and the last traded price.
type Position struct {
	Symbol        string  `json:"symbol"`
	Amount        float64 `json:"amount"`
	LastSalePrice float64 `json:"last_sale_price"`
}

// Value is the signed market value of the position.
func (p Position) Value() float64 {
	return p.Amount * p.LastSalePrice
}

// Portfolio is the read-only account view used by accounting.
type Portfolio struct {
	Cash      float64              `json:"cash"`
	Positions map[string]*Position `json:"positions"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// PortfolioValue is cash plus the signed value of every position.
func (p *Portfolio) PortfolioValue() float64 {
	total := p.Cash
	for _, pos := range p.Positions {
		total += pos.Value()
	}
	return total
}

// Position returns the position for symbol, or a flat one.
func (p *Portfolio) Position(symbol string) Position {
	if pos, ok := p.Positions[symbol]; ok && pos != nil {
		return *pos
	}
	return Position{Symbol: symbol}
}

// OrderID identifies one order placed with the execution environment.
type OrderID string

// Order is a filled paper order.
type Order struct {
	ID         OrderID   `json:"id"`
	Symbol     string    `json:"symbol"`
	Amount     float64   `json:"amount"`
	Price      float64   `json:"price"`
	Commission float64   `json:"commission"`
	FilledAt   time.Time `json:"filled_at"`
}
