package model

import "time"

// TriggerKind mirrors the controller event that produced a record.
type TriggerKind string

const (
	TriggerFire  TriggerKind = "FIRE"
	TriggerReset TriggerKind = "RESET"
)

// TriggerRecord is the persisted form of one controller event.
type TriggerRecord struct {
	ID            string
	Controller    string
	Kind          TriggerKind
	Reason        string
	At            time.Time
	RemainingHits int
	NextEligible  time.Time
	WindowOpen    time.Time
	WindowClose   time.Time
}

// Allocation is the result of one bears/bulls rebalance decision.
type Allocation struct {
	Confidence float64
	BullPct    float64
	BearPct    float64
	Weights    map[string]float64
	DecidedAt  time.Time
}

// AccountSnapshot summarizes margin, leverage and commissions at one instant.
type AccountSnapshot struct {
	PortfolioValue  float64
	Requirement     float64
	RemainingMargin float64
	InitialMargin   float64
	Leverage        float64
	LastCommission  float64
	TotalCommission float64
	TakenAt         time.Time
}
