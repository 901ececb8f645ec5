package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"SignalSentinel/internal/collector"
	"SignalSentinel/internal/config"
	"SignalSentinel/internal/dca"
	"SignalSentinel/internal/logger"
	"SignalSentinel/internal/metrics"
	"SignalSentinel/internal/notifier"
	"SignalSentinel/internal/position"
	"SignalSentinel/internal/recorder"
	"SignalSentinel/internal/scheduler"
)

func main() {
	cfgPath := flag.String("config", "", "path to config.yaml (default $CONFIG_PATH or configs/config.yaml)")
	flag.Parse()

	// .env is optional; real environment variables win.
	envErr := godotenv.Load()

	path := *cfgPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log)
	defer log.Sync() //nolint:errcheck
	if envErr != nil {
		log.Debug("no .env loaded", zap.Error(envErr))
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("SignalSentinel stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	log.Info("SignalSentinel starting", zap.Strings("instruments", cfg.Instruments))
	policy := cfg.RetryPolicy()

	store, err := openStore(cfg, log)
	if err != nil {
		return fmt.Errorf("open position store: %w", err)
	}
	defer store.Close()
	log.Info("position store ready", zap.String("backend", cfg.State.Backend))

	machine := position.NewMachine(store, cfg.PositionRules(), policy, log.Named("position"))

	var fetcher collector.Fetcher
	switch cfg.Feed.Provider {
	case "mock":
		fetcher = &collector.MockFetcher{Price: cfg.Feed.MockPrice}
	default:
		fetcher = collector.NewYahooFetcher(cfg.Proxy)
	}
	log.Info("data source", zap.String("provider", fetcher.Name()))
	col := collector.NewCollector(fetcher, cfg.CollectorOptions(), policy, log.Named("collector"))

	var (
		sinks    notifier.Multi
		telegram *notifier.TelegramNotifier
	)
	if cfg.Telegram.Enabled {
		telegram = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, policy, log.Named("telegram"))
		sinks = append(sinks, telegram)
	}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := notifier.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.ClientID)
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		sink := notifier.NewKafkaSink(producer, cfg.Kafka.Topic, log.Named("kafka"))
		defer sink.Close()
		sinks = append(sinks, sink)
	}
	if len(sinks) == 0 {
		log.Warn("no notification channel configured, alerts go to the log")
		sinks = append(sinks, notifier.LogNotifier{Logger: log.Named("alerts")})
	}

	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log.Named("recorder"))
		if err != nil {
			log.Warn("init sqlite recorder failed, using noop", zap.Error(err))
		} else {
			rec = sr
			defer sr.Close()
		}
	}

	m := metrics.New()
	health := metrics.NewHealth(3 * cfg.Schedule.PollInterval)
	var srv *metrics.Server
	if cfg.Metrics.Addr != "" {
		srv = metrics.NewServer(cfg.Metrics.Addr, m, health, log.Named("metrics"))
		srv.Start()
	}

	opts := scheduler.Options{
		Instruments:       cfg.Instruments,
		PollInterval:      cfg.Schedule.PollInterval,
		InstrumentTimeout: cfg.Schedule.InstrumentTimeout,
		NotifyTimeout:     cfg.Schedule.NotifyTimeout,
		ValuationCron:     cfg.Schedule.ValuationCron,
		Indicators:        cfg.IndicatorParams(),
		Thresholds:        cfg.Thresholds(),
	}
	opts.Valuation.Enabled = cfg.Valuation.Enabled
	opts.Valuation.Instrument = cfg.Valuation.Instrument
	opts.Valuation.Lookback = cfg.Valuation.Lookback
	opts.Valuation.Params = cfg.ValuationParams()
	opts.DCA.Enabled = cfg.DCA.Enabled
	opts.DCA.Lookback = cfg.DCA.Lookback
	opts.DCA.Interval = cfg.DCA.Interval

	var planner *dca.Planner
	if cfg.DCA.Enabled {
		planner = dca.NewPlanner(cfg.DCAOptions())
	}

	sched, err := scheduler.New(opts, scheduler.Deps{
		Source:   col,
		Machine:  machine,
		Notifier: sinks,
		Recorder: rec,
		Planner:  planner,
		Metrics:  m,
		Health:   health,
		Logger:   log.Named("scheduler"),
	})
	if err != nil {
		return err
	}
	if err := sched.Start(); err != nil {
		return err
	}

	if telegram != nil && cfg.Telegram.Polling {
		go telegram.StartPolling(sched.Context(), sched.HandleCommand)
		log.Info("telegram polling started")
	}

	log.Info("SignalSentinel is running, press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	log.Info("shutdown signal received", zap.String("signal", sig.String()))
	sched.Stop(cfg.Schedule.ShutdownGrace)

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Stop(ctx); err != nil {
			log.Warn("metrics server shutdown", zap.Error(err))
		}
	}
	log.Info("SignalSentinel stopped")
	return nil
}

func openStore(cfg *config.Config, log *zap.Logger) (position.Store, error) {
	switch cfg.State.Backend {
	case config.BackendRedis:
		r := cfg.State.Redis
		return position.NewRedisStore(position.RedisConfig{
			Addr: r.Addr, Password: r.Password, DB: r.DB, KeyPrefix: r.KeyPrefix,
		})
	case config.BackendFile:
		return position.NewFileStore(cfg.State.Path, log.Named("position"))
	case config.BackendMemory:
		return position.NewMemoryStore(), nil
	default:
		return position.NewBadgerStore(cfg.State.Path)
	}
}
