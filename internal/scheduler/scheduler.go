package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"MarketTrigger/internal/accounting"
	"MarketTrigger/internal/calculator"
	"MarketTrigger/internal/calendar"
	"MarketTrigger/internal/collector"
	"MarketTrigger/internal/metrics"
	"MarketTrigger/internal/model"
	"MarketTrigger/internal/notifier"
	"MarketTrigger/internal/portfolio"
	"MarketTrigger/internal/recorder"
	"MarketTrigger/internal/strategy"
	"MarketTrigger/internal/trigger"
)

const historyLimit = 10

// MarketSource supplies returns and prices for a rebalance.
type MarketSource interface {
	Collect(ctx context.Context, bulls, others []string) (*collector.MarketData, error)
}

// Sender delivers notifications.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Deps bundles the collaborators of a Scheduler. Metrics may be nil.
type Deps struct {
	Trigger     *trigger.Controller
	Journal     *Journal
	Collector   MarketSource
	Portfolio   *portfolio.Manager
	Commissions *accounting.CommissionTracker
	Notifier    Sender
	Recorder    recorder.Recorder
	Metrics     *metrics.Metrics
	Params      strategy.Params
	DayTrader   bool
}

// Scheduler drives the controller from cron and runs the rebalance it gates.
type Scheduler struct {
	Deps
	Cron *cron.Cron
	Ctx  context.Context

	log zerolog.Logger
	now func() time.Time

	// tickMu keeps ticks from overlapping so each drains only its own events.
	tickMu sync.Mutex

	mu     sync.Mutex
	tickID cron.EntryID
	halted error
}

// NewScheduler creates a new Scheduler. Cron specs are read in the controller's
// zone, not the host's.
func NewScheduler(ctx context.Context, deps Deps, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		Deps: deps,
		Cron: cron.New(cron.WithSeconds(), cron.WithLocation(deps.Trigger.Location())),
		Ctx:  ctx,
		log:  log.With().Str("component", "scheduler").Str("controller", deps.Trigger.Name()).Logger(),
		now:  time.Now,
	}
}

// RegisterAll registers the tick and report jobs.
func (s *Scheduler) RegisterAll(tickCron, reportCron string) error {
	id, err := s.Cron.AddFunc(tickCron, s.Tick)
	if err != nil {
		return fmt.Errorf("register tick task: %w", err)
	}
	s.mu.Lock()
	s.tickID = id
	s.mu.Unlock()

	if _, err := s.Cron.AddFunc(reportCron, s.Report); err != nil {
		return fmt.Errorf("register report task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// Halted returns the error that stopped ticking, if any.
func (s *Scheduler) Halted() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted
}

// Tick evaluates the controller once with the current time as the decision's
// argument, and rebalances when it fires.
func (s *Scheduler) Tick() {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	if s.Halted() != nil {
		return
	}
	now := s.now()
	fired, err := s.Trigger.Evaluate(now, now)
	if s.Metrics != nil {
		s.Metrics.ObserveEvaluation(s.Trigger.Name(), fired, err)
	}

	for _, r := range s.Journal.Drain() {
		if r.Kind == model.TriggerReset {
			s.trySend(notifier.FormatTrigger(&r))
		}
	}

	if fired {
		s.log.Info().Time("at", now).Msg("trigger fired, rebalancing")
		if rerr := s.rebalance(now); rerr != nil {
			s.log.Error().Err(rerr).Msg("rebalance failed")
			s.trySend(notifier.FormatError("rebalance", rerr))
		}
	}

	switch {
	case err == nil:
	case errors.Is(err, calendar.ErrSessionOutOfRange):
		s.halt(err)
	default:
		s.log.Error().Err(err).Msg("evaluate trigger")
	}
}

// halt removes the tick job; the report job keeps running.
func (s *Scheduler) halt(err error) {
	s.mu.Lock()
	s.halted = err
	id := s.tickID
	s.mu.Unlock()

	if id != 0 {
		s.Cron.Remove(id)
	}
	s.log.Error().Err(err).Msg("session calendar exhausted, scheduling halted")
	s.trySend(notifier.FormatHalted(s.Trigger.Name(), err))
}

func (s *Scheduler) rebalance(now time.Time) error {
	data, err := s.Collector.Collect(s.Ctx, s.Params.Bulls, s.Params.Bears)
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}
	confidence, err := calculator.ReturnsConfidence(data.Returns)
	if err != nil {
		return fmt.Errorf("confidence: %w", err)
	}
	alloc, err := strategy.Allocate(confidence, s.Params, now)
	if err != nil {
		return fmt.Errorf("allocate: %w", err)
	}
	ids, err := s.Portfolio.Rebalance(alloc.Weights, data.Prices, now)
	if err != nil {
		return fmt.Errorf("rebalance: %w", err)
	}
	commission := s.Commissions.Update(ids...)

	if err := s.Recorder.RecordAllocation(alloc); err != nil {
		s.log.Error().Err(err).Msg("record allocation")
	}
	s.log.Info().
		Float64("confidence", confidence).
		Float64("bulls", alloc.BullPct).
		Float64("bears", alloc.BearPct).
		Int("orders", len(ids)).
		Float64("commission", commission).
		Msg("rebalance complete")
	s.trySend(notifier.FormatAllocation(alloc, len(ids), commission))
	return nil
}

// Report takes a margin and leverage snapshot, records and sends it.
func (s *Scheduler) Report() {
	snap, err := s.account()
	if err != nil {
		s.log.Warn().Err(err).Msg("account report skipped")
		return
	}
	if err := s.Recorder.RecordAccount(snap); err != nil {
		s.log.Error().Err(err).Msg("record account")
	}
	if s.Metrics != nil {
		s.Metrics.ObserveAccount(snap)
	}
	s.trySend(notifier.FormatAccount(snap))
}

func (s *Scheduler) account() (*model.AccountSnapshot, error) {
	p := s.Portfolio.Snapshot()
	m, err := accounting.NewMargins(p, nil, s.DayTrader)
	if err != nil {
		return nil, err
	}
	return &model.AccountSnapshot{
		PortfolioValue:  p.PortfolioValue(),
		Requirement:     m.Requirement,
		RemainingMargin: m.RemainingMargin,
		InitialMargin:   m.InitialMargin,
		Leverage:        m.Leverage,
		LastCommission:  s.Commissions.Last(),
		TotalCommission: s.Commissions.Total(),
		TakenAt:         s.now(),
	}, nil
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	var cmd string
	if f := strings.Fields(command); len(f) > 0 {
		cmd = strings.ToLower(f[0])
	}
	switch cmd {
	case "/status":
		reply := notifier.FormatStatus(s.Trigger.Name(), s.Trigger.State())
		if err := s.Halted(); err != nil {
			reply += "\n" + notifier.FormatHalted(s.Trigger.Name(), err)
		}
		return reply
	case "/history":
		recs, err := s.Recorder.RecentTriggers(s.Trigger.Name(), historyLimit)
		if err != nil {
			return notifier.FormatError("history", err)
		}
		return notifier.FormatHistory(s.Trigger.Name(), recs)
	case "/account":
		snap, err := s.account()
		if err != nil {
			return notifier.FormatError("account", err)
		}
		return notifier.FormatAccount(snap)
	default:
		return "Commands:\n• /status trigger window\n• /history recent fires and resets\n• /account margin and leverage"
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.log.Error().Err(err).Msg("send notification")
	}
}
