package scheduler

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"MarketTrigger/internal/metrics"
	"MarketTrigger/internal/model"
	"MarketTrigger/internal/recorder"
	"MarketTrigger/internal/trigger"
)

// Journal is a trigger observer. It persists every event, updates metrics and
// buffers the records until the tick that produced them drains the buffer.
type Journal struct {
	rec     recorder.Recorder
	metrics *metrics.Metrics
	log     zerolog.Logger

	mu      sync.Mutex
	pending []model.TriggerRecord
}

// NewJournal creates a Journal. metrics may be nil.
func NewJournal(rec recorder.Recorder, m *metrics.Metrics, log zerolog.Logger) *Journal {
	return &Journal{rec: rec, metrics: m, log: log}
}

// Observe runs under the controller lock and must stay short.
func (j *Journal) Observe(e trigger.Event) {
	r := model.TriggerRecord{
		ID:            uuid.NewString(),
		Controller:    e.Controller,
		Kind:          model.TriggerKind(e.Kind),
		Reason:        string(e.Reason),
		At:            e.At,
		RemainingHits: e.State.RemainingHits,
		NextEligible:  e.State.NextEligible,
		WindowOpen:    e.State.WindowOpen,
		WindowClose:   e.State.WindowClose,
	}
	if err := j.rec.RecordTrigger(&r); err != nil {
		j.log.Error().Err(err).Str("kind", string(r.Kind)).Msg("record trigger event")
	}
	if j.metrics != nil {
		j.metrics.ObserveEvent(e)
	}

	j.mu.Lock()
	j.pending = append(j.pending, r)
	j.mu.Unlock()
}

// Drain returns and clears the buffered records, oldest first.
func (j *Journal) Drain() []model.TriggerRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := j.pending
	j.pending = nil
	return out
}
