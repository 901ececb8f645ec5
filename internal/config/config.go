package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"SignalSentinel/internal/calculator"
	"SignalSentinel/internal/collector"
	"SignalSentinel/internal/dca"
	"SignalSentinel/internal/logger"
	"SignalSentinel/internal/model"
	"SignalSentinel/internal/position"
	"SignalSentinel/internal/retry"
	"SignalSentinel/internal/strategy"
	"SignalSentinel/internal/valuation"
)

// State backends.
const (
	BackendBadger = "badger"
	BackendRedis  = "redis"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// Config holds all application configuration.
type Config struct {
	Instruments []string `yaml:"instruments"`

	Feed struct {
		Provider  string        `yaml:"provider"` // yahoo | mock
		Interval  string        `yaml:"interval"`
		Lookback  string        `yaml:"lookback"`
		Timeout   time.Duration `yaml:"timeout"`
		MockPrice float64       `yaml:"mock_price"`
	} `yaml:"feed"`

	Schedule struct {
		PollInterval      time.Duration `yaml:"poll_interval"`
		ValuationCron     string        `yaml:"valuation_cron"`
		InstrumentTimeout time.Duration `yaml:"instrument_timeout"`
		NotifyTimeout     time.Duration `yaml:"notify_timeout"`
		ShutdownGrace     time.Duration `yaml:"shutdown_grace"`
	} `yaml:"schedule"`

	Indicators struct {
		RSIPeriod       int     `yaml:"rsi_period"`
		BollingerPeriod int     `yaml:"bollinger_period"`
		BollingerMult   float64 `yaml:"bollinger_mult"`
		MACDFast        int     `yaml:"macd_fast"`
		MACDSlow        int     `yaml:"macd_slow"`
		MACDSignal      int     `yaml:"macd_signal"`
	} `yaml:"indicators"`

	Scoring struct {
		Weight        int     `yaml:"weight"`
		RSIOversold   float64 `yaml:"rsi_oversold"`
		RSIOverbought float64 `yaml:"rsi_overbought"`
		Strong        int     `yaml:"strong"`
		Weak          int     `yaml:"weak"`
	} `yaml:"scoring"`

	Position struct {
		BuyCooldown  time.Duration `yaml:"buy_cooldown"`
		SellCooldown time.Duration `yaml:"sell_cooldown"`
		TakeProfit   float64       `yaml:"take_profit"`
		StopLoss     float64       `yaml:"stop_loss"`
	} `yaml:"position"`

	Valuation struct {
		Enabled    bool   `yaml:"enabled"`
		Instrument string `yaml:"instrument"`
		Lookback   string `yaml:"lookback"`
		AvgWindow  int    `yaml:"avg_window"`
		FitWindow  int    `yaml:"fit_window"`
	} `yaml:"valuation"`

	DCA struct {
		Enabled         bool          `yaml:"enabled"`
		Lookback        string        `yaml:"lookback"`
		Interval        string        `yaml:"interval"`
		FixedAmount     float64       `yaml:"fixed_amount"`
		IncreasedAmount float64       `yaml:"increased_amount"`
		Cooldown        time.Duration `yaml:"cooldown"`
	} `yaml:"dca"`

	Retry struct {
		MaxAttempts int           `yaml:"max_attempts"`
		Delay       time.Duration `yaml:"delay"`
	} `yaml:"retry"`

	State struct {
		Backend string `yaml:"backend"`
		Path    string `yaml:"path"`
		Redis   struct {
			Addr      string `yaml:"addr"`
			Password  string `yaml:"password"`
			DB        int    `yaml:"db"`
			KeyPrefix string `yaml:"key_prefix"`
		} `yaml:"redis"`
	} `yaml:"state"`

	Telegram struct {
		Enabled  bool   `yaml:"enabled"`
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
		Polling  bool   `yaml:"polling"`
	} `yaml:"telegram"`

	Kafka struct {
		Brokers  []string `yaml:"brokers"`
		Topic    string   `yaml:"topic"`
		ClientID string   `yaml:"client_id"`
	} `yaml:"kafka"`

	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`

	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`

	Log logger.Config `yaml:"log"`

	Proxy string `yaml:"proxy"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{
		Instruments: []string{"NFLX", "COIN", "TQQQ", "SQQQ", "TSLA", "NVDA", "BTC-USD", "ETH-USD"},
	}

	cfg.Feed.Provider = "yahoo"
	cfg.Feed.Interval = "15m"
	cfg.Feed.Lookback = "10d"
	cfg.Feed.Timeout = 30 * time.Second
	cfg.Feed.MockPrice = 100

	cfg.Schedule.PollInterval = 5 * time.Minute
	cfg.Schedule.ValuationCron = "0 0 9 * * *"
	cfg.Schedule.InstrumentTimeout = 60 * time.Second
	cfg.Schedule.NotifyTimeout = 30 * time.Second
	cfg.Schedule.ShutdownGrace = 30 * time.Second

	ip := calculator.DefaultParams()
	cfg.Indicators.RSIPeriod = ip.RSIPeriod
	cfg.Indicators.BollingerPeriod = ip.BollingerPeriod
	cfg.Indicators.BollingerMult = ip.BollingerMult
	cfg.Indicators.MACDFast = ip.MACDFast
	cfg.Indicators.MACDSlow = ip.MACDSlow
	cfg.Indicators.MACDSignal = ip.MACDSignal

	th := strategy.DefaultThresholds()
	cfg.Scoring.Weight = th.Weight
	cfg.Scoring.RSIOversold = th.RSIOversold
	cfg.Scoring.RSIOverbought = th.RSIOverbought
	cfg.Scoring.Strong = th.Strong
	cfg.Scoring.Weak = th.Weak

	pr := position.DefaultRules()
	cfg.Position.BuyCooldown = pr.BuyCooldown
	cfg.Position.SellCooldown = pr.SellCooldown
	cfg.Position.TakeProfit = pr.TakeProfit
	cfg.Position.StopLoss = pr.StopLoss

	vp := valuation.DefaultParams()
	cfg.Valuation.Enabled = true
	cfg.Valuation.Instrument = "BTC-USD"
	cfg.Valuation.Lookback = "2y"
	cfg.Valuation.AvgWindow = vp.AvgWindow
	cfg.Valuation.FitWindow = vp.FitWindow

	do := dca.DefaultOptions()
	cfg.DCA.Enabled = true
	cfg.DCA.Lookback = "3mo"
	cfg.DCA.Interval = "1d"
	cfg.DCA.FixedAmount = do.FixedAmount
	cfg.DCA.IncreasedAmount = do.IncreasedAmount
	cfg.DCA.Cooldown = do.Cooldown

	cfg.Retry.MaxAttempts = 3
	cfg.Retry.Delay = 2 * time.Second

	cfg.State.Backend = BackendBadger
	cfg.State.Path = "data/positions"
	cfg.State.Redis.Addr = "localhost:6379"
	cfg.State.Redis.KeyPrefix = "sentinel:position"

	cfg.Telegram.Polling = true

	cfg.Kafka.Topic = "sentinel.events"
	cfg.Kafka.ClientID = "signal-sentinel"

	cfg.Database.SQLitePath = "data/signal_sentinel.db"

	cfg.Log = logger.Config{
		Level:      "info",
		Output:     "console",
		File:       "logs/sentinel.log",
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     30,
	}
	return cfg
}

// Load reads config from a YAML file over the defaults, then applies
// environment variable overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		cfg.Telegram.Enabled = true
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("INSTRUMENTS"); v != "" {
		c.Instruments = splitList(v, strings.ToUpper)
	}
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("POLL_INTERVAL: %w", err)
		}
		c.Schedule.PollInterval = d
	}
	if v := os.Getenv("STATE_BACKEND"); v != "" {
		c.State.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("STATE_PATH"); v != "" {
		c.State.Path = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.State.Redis.Addr = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v, nil)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	return nil
}

func splitList(s string, norm func(string) string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p == "" {
			continue
		}
		if norm != nil {
			p = norm(p)
		}
		out = append(out, p)
	}
	return out
}

// Validate checks that all required fields are set and consistent.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if len(c.Instruments) == 0 {
		add("instruments must not be empty")
	}
	seen := make(map[string]bool, len(c.Instruments))
	for _, inst := range c.Instruments {
		if seen[inst] {
			add("instrument %s listed twice", inst)
		}
		seen[inst] = true
	}

	switch c.Feed.Provider {
	case "yahoo", "mock":
	default:
		add("feed.provider %q unknown", c.Feed.Provider)
	}
	for name, v := range map[string]string{
		"feed.interval": c.Feed.Interval,
		"feed.lookback": c.Feed.Lookback,
	} {
		if _, err := collector.Span(v); err != nil {
			add("%s: %v", name, err)
		}
	}
	if c.Schedule.PollInterval <= 0 {
		add("schedule.poll_interval must be positive")
	}
	if c.Schedule.InstrumentTimeout <= 0 {
		add("schedule.instrument_timeout must be positive")
	}
	if c.Schedule.NotifyTimeout <= 0 {
		add("schedule.notify_timeout must be positive")
	}

	ip := c.IndicatorParams()
	if ip.RSIPeriod <= 0 || ip.BollingerPeriod <= 0 || ip.MACDFast <= 0 || ip.MACDSlow <= 0 || ip.MACDSignal <= 0 {
		add("indicator windows must be positive")
	}
	if ip.MACDFast >= ip.MACDSlow {
		add("indicators.macd_fast (%d) must be < macd_slow (%d)", ip.MACDFast, ip.MACDSlow)
	}
	if ip.BollingerMult <= 0 {
		add("indicators.bollinger_mult must be positive")
	}

	th := c.Thresholds()
	if th.Weight <= 0 {
		add("scoring.weight must be positive")
	}
	if th.RSIOversold >= th.RSIOverbought {
		add("scoring.rsi_oversold must be below rsi_overbought")
	}

	if err := c.PositionRules().Validate(); err != nil {
		add("position: %v", err)
	}

	if c.Valuation.Enabled {
		if c.Valuation.Instrument == "" {
			add("valuation.instrument is required")
		}
		if c.Valuation.AvgWindow <= 0 || c.Valuation.FitWindow <= 0 {
			add("valuation windows must be positive")
		}
	}

	if c.Retry.MaxAttempts < 1 {
		add("retry.max_attempts must be >= 1")
	}
	if c.Retry.Delay < 0 {
		add("retry.delay must be >= 0")
	}

	switch c.State.Backend {
	case BackendBadger, BackendFile:
		if c.State.Path == "" {
			add("state.path is required for the %s backend", c.State.Backend)
		}
	case BackendRedis:
		if c.State.Redis.Addr == "" {
			add("state.redis.addr is required")
		}
	case BackendMemory:
	default:
		add("state.backend %q unknown", c.State.Backend)
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			add("telegram.bot_token is required")
		}
		if c.Telegram.ChatID == "" {
			add("telegram.chat_id is required")
		}
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		add("kafka.topic is required when brokers are set")
	}

	return errors.Join(errs...)
}

// IndicatorParams returns the indicator windows.
func (c *Config) IndicatorParams() calculator.Params {
	return calculator.Params{
		RSIPeriod:       c.Indicators.RSIPeriod,
		BollingerPeriod: c.Indicators.BollingerPeriod,
		BollingerMult:   c.Indicators.BollingerMult,
		MACDFast:        c.Indicators.MACDFast,
		MACDSlow:        c.Indicators.MACDSlow,
		MACDSignal:      c.Indicators.MACDSignal,
	}
}

// Thresholds returns the scoring thresholds.
func (c *Config) Thresholds() strategy.Thresholds {
	return strategy.Thresholds{
		Weight:        c.Scoring.Weight,
		RSIOversold:   c.Scoring.RSIOversold,
		RSIOverbought: c.Scoring.RSIOverbought,
		Strong:        c.Scoring.Strong,
		Weak:          c.Scoring.Weak,
	}
}

// PositionRules returns cooldowns and exit thresholds.
func (c *Config) PositionRules() position.Rules {
	return position.Rules{
		BuyCooldown:  c.Position.BuyCooldown,
		SellCooldown: c.Position.SellCooldown,
		TakeProfit:   c.Position.TakeProfit,
		StopLoss:     c.Position.StopLoss,
	}
}

// ValuationParams returns the valuation windows.
func (c *Config) ValuationParams() valuation.Params {
	return valuation.Params{AvgWindow: c.Valuation.AvgWindow, FitWindow: c.Valuation.FitWindow}
}

// DCAOptions returns the reminder planner options.
func (c *Config) DCAOptions() dca.Options {
	return dca.Options{
		Instrument:      c.Valuation.Instrument,
		FixedAmount:     c.DCA.FixedAmount,
		IncreasedAmount: c.DCA.IncreasedAmount,
		Cooldown:        c.DCA.Cooldown,
	}
}

// CollectorOptions returns the default fetch window.
func (c *Config) CollectorOptions() collector.Options {
	return collector.Options{
		Lookback: c.Feed.Lookback,
		Interval: c.Feed.Interval,
		Timeout:  c.Feed.Timeout,
	}
}

// RetryPolicy returns the shared policy. Only transient failures are retried.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.Retry.MaxAttempts,
		Delay:       c.Retry.Delay,
		Retryable:   []error{model.ErrTransient},
	}
}
