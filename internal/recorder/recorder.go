package recorder

import "MarketTrigger/internal/model"

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordTrigger(rec *model.TriggerRecord) error
	RecordAllocation(a *model.Allocation) error
	RecordAccount(snap *model.AccountSnapshot) error
	RecentTriggers(controller string, limit int) ([]model.TriggerRecord, error)
	Close() error
}
