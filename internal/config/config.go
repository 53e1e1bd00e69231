package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"MarketTrigger/internal/calendar"
	"MarketTrigger/internal/trigger"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	DataSource struct {
		BaseURL     string            `yaml:"base_url"`
		AuthToken   string            `yaml:"auth_token"`
		Codes       map[string]string `yaml:"codes"` // symbol -> dataset code
		HistoryDays int               `yaml:"history_days"`
	} `yaml:"data_source"`
	Trigger struct {
		Name      string `yaml:"name"`
		Mode      string `yaml:"mode"`
		Period    int    `yaml:"period"`
		MaxHits   int    `yaml:"max_hits"`
		Open      string `yaml:"open"`
		Close     string `yaml:"close"`
		Timezone  string `yaml:"timezone"`
		StartDate string `yaml:"start_date"`
	} `yaml:"trigger"`
	Calendar struct {
		Exchange string `yaml:"exchange"`
		FromYear int    `yaml:"from_year"`
		ToYear   int    `yaml:"to_year"`
	} `yaml:"calendar"`
	Schedule struct {
		TickCron   string `yaml:"tick_cron"`
		ReportCron string `yaml:"report_cron"`
	} `yaml:"schedule"`
	Strategy struct {
		Leverage                float64  `yaml:"leverage"`
		AllowAdditionalLeverage bool     `yaml:"allow_additional_leverage"`
		Bulls                   []string `yaml:"bulls"`
		Bears                   []string `yaml:"bears"`
		DayTrader               bool     `yaml:"day_trader"`
	} `yaml:"strategy"`
	Portfolio struct {
		InitialCash  float64 `yaml:"initial_cash"`
		StateFile    string  `yaml:"state_file"`
		PerShare     float64 `yaml:"per_share"`
		MinTradeCost float64 `yaml:"min_trade_cost"`
	} `yaml:"portfolio"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Metrics struct {
		Listen string `yaml:"listen"`
	} `yaml:"metrics"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads .env and the YAML file, then applies environment variable overrides.
// A missing file of either kind is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("QUANDL_BASE_URL"); v != "" {
		cfg.DataSource.BaseURL = v
	}
	if v := os.Getenv("QUANDL_AUTH_TOKEN"); v != "" {
		cfg.DataSource.AuthToken = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("TRIGGER_MODE"); v != "" {
		cfg.Trigger.Mode = v
	}
	if v := os.Getenv("TRIGGER_PERIOD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("TRIGGER_PERIOD: %w", err)
		}
		cfg.Trigger.Period = n
	}
	if v := os.Getenv("CRON_TICK"); v != "" {
		cfg.Schedule.TickCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("METRICS_LISTEN"); v != "" {
		cfg.Metrics.Listen = v
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataSource.HistoryDays == 0 {
		c.DataSource.HistoryDays = 20
	}
	if c.Trigger.Name == "" {
		c.Trigger.Name = "rebalance"
	}
	if c.Trigger.Mode == "" {
		c.Trigger.Mode = trigger.TradingDays.String()
	}
	if c.Trigger.Period == 0 {
		c.Trigger.Period = 20
	}
	if c.Trigger.MaxHits == 0 {
		c.Trigger.MaxHits = 1
	}
	if c.Trigger.Open == "" {
		c.Trigger.Open = "09:31"
	}
	if c.Trigger.Close == "" {
		c.Trigger.Close = "15:29"
	}
	if c.Calendar.Exchange == "" {
		c.Calendar.Exchange = "XNYS"
	}
	if c.Calendar.FromYear == 0 {
		c.Calendar.FromYear = time.Now().Year() - 1
	}
	if c.Calendar.ToYear == 0 {
		c.Calendar.ToYear = c.Calendar.FromYear + 5
	}
	if c.Schedule.TickCron == "" {
		c.Schedule.TickCron = "0 * 9-16 * * 1-5"
	}
	if c.Schedule.ReportCron == "" {
		c.Schedule.ReportCron = "0 0 17 * * 1-5"
	}
	if c.Strategy.Leverage == 0 {
		c.Strategy.Leverage = 1
	}
	if len(c.Strategy.Bulls) == 0 {
		c.Strategy.Bulls = []string{"XLY", "XLF", "XLK", "XLE", "XLV", "XLI", "XLP", "XLB", "XLU"}
	}
	if len(c.Strategy.Bears) == 0 {
		c.Strategy.Bears = []string{"TLT", "SHY"}
	}
	if c.Portfolio.InitialCash == 0 {
		c.Portfolio.InitialCash = 100000
	}
	if c.Portfolio.StateFile == "" {
		c.Portfolio.StateFile = "data/portfolio_state.json"
	}
	if c.Portfolio.PerShare == 0 {
		c.Portfolio.PerShare = 0.01
	}
	if c.Portfolio.MinTradeCost == 0 {
		c.Portfolio.MinTradeCost = 1.0
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/market_trigger.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return errors.New("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == "" {
		return errors.New("telegram.chat_id is required")
	}
	if _, err := trigger.ParseMode(c.Trigger.Mode); err != nil {
		return fmt.Errorf("trigger.mode: %w", err)
	}
	if c.Trigger.Period < 1 {
		return fmt.Errorf("trigger.period must be >= 1, got %d", c.Trigger.Period)
	}
	if c.Trigger.MaxHits < 1 {
		return fmt.Errorf("trigger.max_hits must be >= 1, got %d", c.Trigger.MaxHits)
	}
	if c.Calendar.ToYear < c.Calendar.FromYear {
		return fmt.Errorf("calendar.to_year %d is before from_year %d", c.Calendar.ToYear, c.Calendar.FromYear)
	}
	if c.DataSource.HistoryDays < 2 {
		return errors.New("data_source.history_days must be at least 2")
	}
	if c.Strategy.Leverage <= 0 {
		return errors.New("strategy.leverage must be positive")
	}
	if c.Portfolio.InitialCash <= 0 {
		return errors.New("portfolio.initial_cash must be positive")
	}
	return nil
}

// TriggerOptions converts the trigger and calendar sections into controller
// options. Decision, observer and logger are left to the caller.
func (c *Config) TriggerOptions() ([]trigger.Option, error) {
	mode, err := trigger.ParseMode(c.Trigger.Mode)
	if err != nil {
		return nil, err
	}
	opts := []trigger.Option{
		trigger.WithName(c.Trigger.Name),
		trigger.WithMode(mode),
		trigger.WithPeriod(c.Trigger.Period),
		trigger.WithMaxHits(c.Trigger.MaxHits),
	}

	tz := c.Trigger.Timezone
	switch mode {
	case trigger.TradingDays:
		cal, err := calendar.NewExchangeCalendar(c.Calendar.Exchange, c.Calendar.FromYear, c.Calendar.ToYear)
		if err != nil {
			return nil, fmt.Errorf("build calendar: %w", err)
		}
		opts = append(opts, trigger.WithCalendar(cal))
		if tz == "" {
			tz = cal.Location().String()
		}
	case trigger.CalendarDays:
		open, err := calendar.ParseTimeOfDay(c.Trigger.Open)
		if err != nil {
			return nil, fmt.Errorf("trigger.open: %w", err)
		}
		closeAt, err := calendar.ParseTimeOfDay(c.Trigger.Close)
		if err != nil {
			return nil, fmt.Errorf("trigger.close: %w", err)
		}
		opts = append(opts, trigger.WithWindow(open, closeAt))
		if c.Trigger.StartDate != "" {
			d, err := time.Parse("2006-01-02", c.Trigger.StartDate)
			if err != nil {
				return nil, fmt.Errorf("trigger.start_date: %w", err)
			}
			opts = append(opts, trigger.WithStartDate(d))
		}
	}

	if tz == "" {
		tz = calendar.DefaultTimezone
	}
	loc, err := calendar.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("trigger.timezone: %w", err)
	}
	return append(opts, trigger.WithLocation(loc)), nil
}
