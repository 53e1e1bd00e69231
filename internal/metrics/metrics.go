// Package metrics exposes trigger and account gauges to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"MarketTrigger/internal/model"
	"MarketTrigger/internal/trigger"
)

// Evaluation results.
const (
	ResultFire  = "fire"
	ResultSkip  = "skip"
	ResultError = "error"
)

// Metrics owns a private registry so tests and multiple bots do not collide.
type Metrics struct {
	reg *prometheus.Registry

	evaluations *prometheus.CounterVec
	fires       *prometheus.CounterVec
	resets      *prometheus.CounterVec
	remaining   *prometheus.GaugeVec
	leverage    prometheus.Gauge
	requirement prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trigger_evaluations_total", Help: "Evaluate calls by outcome",
		}, []string{"controller", "result"}),
		fires: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trigger_fires_total", Help: "Accepted decisions",
		}, []string{"controller"}),
		resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trigger_resets_total", Help: "Window resets by reason",
		}, []string{"controller", "reason"}),
		remaining: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trigger_remaining_hits", Help: "Hits left in the current window",
		}, []string{"controller"}),
		leverage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "account_leverage", Help: "Gross leverage of the paper account",
		}),
		requirement: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "account_margin_requirement", Help: "Maintenance margin requirement in dollars",
		}),
	}
	m.reg.MustRegister(m.evaluations, m.fires, m.resets, m.remaining, m.leverage, m.requirement)
	return m
}

// Registry exposes the gatherer, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// ObserveEvaluation counts one Evaluate outcome.
func (m *Metrics) ObserveEvaluation(controller string, fired bool, err error) {
	result := ResultSkip
	switch {
	case err != nil:
		result = ResultError
	case fired:
		result = ResultFire
	}
	m.evaluations.WithLabelValues(controller, result).Inc()
}

// ObserveEvent is a trigger observer.
func (m *Metrics) ObserveEvent(e trigger.Event) {
	switch e.Kind {
	case trigger.EventFire:
		m.fires.WithLabelValues(e.Controller).Inc()
	case trigger.EventReset:
		m.resets.WithLabelValues(e.Controller, string(e.Reason)).Inc()
	}
	m.remaining.WithLabelValues(e.Controller).Set(float64(e.State.RemainingHits))
}

// ObserveAccount publishes the latest margin snapshot.
func (m *Metrics) ObserveAccount(s *model.AccountSnapshot) {
	m.leverage.Set(s.Leverage)
	m.requirement.Set(s.Requirement)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Serve runs the /metrics endpoint until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("metrics server shutdown")
		}
	}()

	log.Info().Str("addr", addr).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
