package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/urfave/cli"

	"MarketTrigger/internal/accounting"
	"MarketTrigger/internal/collector"
	"MarketTrigger/internal/config"
	"MarketTrigger/internal/logger"
	"MarketTrigger/internal/metrics"
	"MarketTrigger/internal/notifier"
	"MarketTrigger/internal/portfolio"
	"MarketTrigger/internal/recorder"
	"MarketTrigger/internal/scheduler"
	"MarketTrigger/internal/strategy"
	"MarketTrigger/internal/trigger"
)

var (
	cfgPath    string
	runOnStart bool
)

var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name:        "config, c",
		Usage:       "path of the YAML config file",
		EnvVar:      "CONFIG_PATH",
		Value:       "configs/config.yaml",
		Destination: &cfgPath,
	},
	cli.BoolFlag{
		Name:        "run-on-start",
		Usage:       "evaluate the trigger once right after startup",
		EnvVar:      "RUN_ON_START",
		Destination: &runOnStart,
	},
}

func main() {
	app := cli.App{
		Name:      "market-trigger",
		Usage:     "Periodic rebalance bot gated by a trading-calendar trigger.",
		UsageText: "market-trigger [global options] <command>",
		Flags:     globalFlags,
		Commands: []cli.Command{
			{
				Name:   "run",
				Usage:  "start the scheduler, Telegram polling and metrics server",
				Action: run,
			},
			{
				Name:   "status",
				Usage:  "print the trigger and calendar configuration",
				Action: status,
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "market-trigger: %s\n", err)
		os.Exit(1)
	}
}

func run(_ *cli.Context) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	logger.SetGlobalLogger(log)
	log.Info().Str("config", cfgPath).Msg("MarketTrigger starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Data source
	fetcher := collector.NewQuandlFetcher(cfg.DataSource.BaseURL, cfg.DataSource.AuthToken, cfg.Proxy)
	col := collector.NewCollector(fetcher, cfg.DataSource.Codes, cfg.DataSource.HistoryDays, log)
	log.Info().Str("fetcher", fetcher.Name()).Msg("data source ready")

	// Paper account
	pm, err := portfolio.NewManager(cfg.Portfolio.StateFile, cfg.Portfolio.InitialCash,
		portfolio.Fees{PerShare: cfg.Portfolio.PerShare, MinTradeCost: cfg.Portfolio.MinTradeCost}, log)
	if err != nil {
		return fmt.Errorf("init portfolio: %w", err)
	}

	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)

	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	m := metrics.New()
	if cfg.Metrics.Listen != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Listen, log); err != nil {
				log.Error().Err(err).Msg("metrics server")
			}
		}()
	}

	journal := scheduler.NewJournal(rec, m, log)
	ctrl, err := buildTrigger(cfg, log,
		trigger.WithDecision(strategy.EntryDecision),
		trigger.WithObserver(journal.Observe),
	)
	if err != nil {
		return err
	}

	sched := scheduler.NewScheduler(ctx, scheduler.Deps{
		Trigger:     ctrl,
		Journal:     journal,
		Collector:   col,
		Portfolio:   pm,
		Commissions: accounting.NewCommissionTracker(pm),
		Notifier:    tn,
		Recorder:    rec,
		Metrics:     m,
		Params: strategy.Params{
			Leverage:                cfg.Strategy.Leverage,
			AllowAdditionalLeverage: cfg.Strategy.AllowAdditionalLeverage,
			Bulls:                   cfg.Strategy.Bulls,
			Bears:                   cfg.Strategy.Bears,
		},
		DayTrader: cfg.Strategy.DayTrader,
	}, log)
	if err := sched.RegisterAll(cfg.Schedule.TickCron, cfg.Schedule.ReportCron); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}
	if runOnStart {
		log.Info().Msg("run-on-start enabled, evaluating trigger now")
		sched.Tick()
	}
	sched.Start()
	defer sched.Stop()

	go tn.StartPolling(ctx, sched.HandleCommand)
	log.Info().Msg("telegram polling started")

	log.Info().Msg("MarketTrigger is running, press Ctrl+C to stop")
	<-ctx.Done()
	log.Info().Msg("shutdown signal received, stopping")
	return nil
}

func buildTrigger(cfg *config.Config, log zerolog.Logger, extra ...trigger.Option) (*trigger.Controller, error) {
	opts, err := cfg.TriggerOptions()
	if err != nil {
		return nil, fmt.Errorf("trigger options: %w", err)
	}
	opts = append(opts, trigger.WithLogger(log))
	ctrl, err := trigger.New(append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("build trigger: %w", err)
	}
	return ctrl, nil
}

func status(_ *cli.Context) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctrl, err := buildTrigger(cfg, zerolog.Nop())
	if err != nil {
		return err
	}

	st := ctrl.State()
	fmt.Printf("controller:  %s\n", ctrl.Name())
	fmt.Printf("mode:        %s\n", st.Mode)
	fmt.Printf("period:      %d\n", st.Period)
	fmt.Printf("max hits:    %d\n", st.MaxHits)
	fmt.Printf("timezone:    %s\n", ctrl.Location())
	if st.Mode == trigger.TradingDays {
		fmt.Printf("calendar:    %s %d-%d\n", cfg.Calendar.Exchange, cfg.Calendar.FromYear, cfg.Calendar.ToYear)
	} else {
		fmt.Printf("window:      %s-%s\n", cfg.Trigger.Open, cfg.Trigger.Close)
		fmt.Printf("next window: %s\n", st.NextEligible.Format("2006-01-02"))
	}
	fmt.Printf("tick cron:   %s\n", cfg.Schedule.TickCron)
	fmt.Printf("report cron: %s\n", cfg.Schedule.ReportCron)
	return nil
}
