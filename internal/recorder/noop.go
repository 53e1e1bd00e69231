package recorder

import "MarketTrigger/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordTrigger(_ *model.TriggerRecord) error { return nil }
func (n *NoopRecorder) RecordAllocation(_ *model.Allocation) error { return nil }
func (n *NoopRecorder) RecordAccount(_ *model.AccountSnapshot) error { return nil }
func (n *NoopRecorder) Close() error { return nil }
func (n *NoopRecorder) RecentTriggers(_ string, _ int) ([]model.TriggerRecord, error) {
	return nil, nil
}
