// Package scheduler drives the polling loop: one evaluation per instrument
// per cycle, the daily valuation report and the DCA reminder.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"SignalSentinel/internal/calculator"
	"SignalSentinel/internal/dca"
	"SignalSentinel/internal/logger"
	"SignalSentinel/internal/metrics"
	"SignalSentinel/internal/model"
	"SignalSentinel/internal/notifier"
	"SignalSentinel/internal/position"
	"SignalSentinel/internal/recorder"
	"SignalSentinel/internal/strategy"
	"SignalSentinel/internal/valuation"
)

// Source provides price series. *collector.Collector implements it.
type Source interface {
	Collect(ctx context.Context, instrument string) (model.PriceSeries, error)
	CollectWindow(ctx context.Context, instrument, lookback, interval string) (model.PriceSeries, error)
}

// Options configures the loop.
type Options struct {
	Instruments       []string
	PollInterval      time.Duration
	InstrumentTimeout time.Duration
	NotifyTimeout     time.Duration
	ValuationCron     string

	Indicators calculator.Params
	Thresholds strategy.Thresholds

	Valuation struct {
		Enabled    bool
		Instrument string
		Lookback   string
		Params     valuation.Params
	}
	DCA struct {
		Enabled  bool
		Lookback string
		Interval string
	}
}

// Deps are the collaborators. Recorder, Notifier, Metrics and Health are optional.
type Deps struct {
	Source   Source
	Machine  *position.Machine
	Notifier notifier.Notifier
	Recorder recorder.Recorder
	Planner  *dca.Planner
	Metrics  *metrics.Metrics
	Health   *metrics.Health
	Logger   *zap.Logger
}

// Result is the outcome of one instrument evaluation.
type Result struct {
	Instrument string
	Snapshot   model.IndicatorSnapshot
	Decision   model.Decision
	Events     []model.Event
	Err        error
}

// Scheduler manages the polling and report jobs.
type Scheduler struct {
	opts Options
	deps Deps
	log  *zap.Logger
	now  func() time.Time

	locks *keyedLock
	cron  *cron.Cron
	// tracks jobs started outside cron, i.e. the first cycle
	inflight sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.RWMutex
	last map[string]Result
}

// New creates a Scheduler. Jobs run under a base context that Stop cancels.
func New(opts Options, deps Deps) (*Scheduler, error) {
	if deps.Source == nil || deps.Machine == nil {
		return nil, errors.New("scheduler: source and machine are required")
	}
	if len(opts.Instruments) == 0 {
		return nil, errors.New("scheduler: no instruments")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Notifier == nil {
		deps.Notifier = notifier.LogNotifier{Logger: deps.Logger}
	}
	if deps.Recorder == nil {
		deps.Recorder = recorder.NewNoopRecorder()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 30 * time.Second
	}
	if opts.InstrumentTimeout <= 0 {
		opts.InstrumentTimeout = time.Minute
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 15 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	cl := logger.Cron(deps.Logger)
	return &Scheduler{
		opts:   opts,
		deps:   deps,
		log:    deps.Logger,
		now:    time.Now,
		locks:  newKeyedLock(),
		cron:   cron.New(cron.WithSeconds(), cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		ctx:    ctx,
		cancel: cancel,
		last:   make(map[string]Result),
	}, nil
}

// Start registers the jobs, starts cron and runs the first cycle right away.
func (s *Scheduler) Start() error {
	cycleID, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.opts.PollInterval), func() { s.RunCycle(s.ctx) })
	if err != nil {
		return fmt.Errorf("register polling job: %w", err)
	}
	if s.opts.Valuation.Enabled {
		if _, err := s.cron.AddFunc(s.opts.ValuationCron, func() {
			if _, _, err := s.RunValuation(s.ctx); err != nil {
				s.log.Error("valuation report failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("register valuation job: %w", err)
		}
	}

	s.cron.Start()
	s.log.Info("scheduler started",
		zap.Strings("instruments", s.opts.Instruments),
		zap.Duration("poll_interval", s.opts.PollInterval))

	// The wrapped job carries the skip-if-running chain.
	job := s.cron.Entry(cycleID).WrappedJob
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		job.Run()
	}()
	return nil
}

// Stop stops scheduling and waits up to grace for running jobs. Jobs still
// running after that are cancelled; store writes are atomic so an aborted
// evaluation leaves the previous state in place.
func (s *Scheduler) Stop(grace time.Duration) {
	cronDone := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("scheduler stopped")
	case <-time.After(grace):
		s.log.Warn("grace period elapsed, cancelling in-flight evaluations", zap.Duration("grace", grace))
		s.cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			s.log.Error("jobs did not stop after cancellation")
		}
	}
	s.cancel()
}

// Context is the base context of scheduled jobs. It is cancelled by Stop.
func (s *Scheduler) Context() context.Context { return s.ctx }

// RunCycle evaluates every instrument concurrently. A failure, timeout or
// panic in one instrument never affects the others.
func (s *Scheduler) RunCycle(ctx context.Context) []Result {
	start := s.now()
	results := make([]Result, len(s.opts.Instruments))

	var wg sync.WaitGroup
	for i, inst := range s.opts.Instruments {
		wg.Add(1)
		go func(i int, inst string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("evaluation panicked", zap.String("instrument", inst), zap.Any("panic", r))
					results[i] = Result{Instrument: inst, Err: fmt.Errorf("panic: %v", r)}
				}
			}()
			results[i] = s.evaluateWithTimeout(ctx, inst)
		}(i, inst)
	}
	wg.Wait()

	if s.opts.DCA.Enabled && s.deps.Planner != nil {
		if _, err := s.RunDCA(ctx); err != nil {
			s.log.Warn("dca check failed", zap.Error(err))
		}
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	end := s.now()
	s.deps.Metrics.LastCycle.Set(float64(end.Unix()))
	if s.deps.Health != nil {
		s.deps.Health.CycleDone(end)
	}
	s.log.Info("cycle finished",
		zap.Int("instruments", len(results)),
		zap.Int("failed", failed),
		zap.Duration("took", end.Sub(start)))
	return results
}

func (s *Scheduler) evaluateWithTimeout(ctx context.Context, instrument string) Result {
	ctx, cancel := context.WithTimeout(ctx, s.opts.InstrumentTimeout)
	defer cancel()

	start := time.Now()
	res := s.Evaluate(ctx, instrument)

	outcome := metrics.ResultOK
	switch {
	case res.Err == nil:
	case errors.Is(res.Err, context.DeadlineExceeded):
		outcome = metrics.ResultTimeout
	case errors.Is(res.Err, model.ErrInsufficientData), errors.Is(res.Err, model.ErrNoData):
		outcome = metrics.ResultNoData
	default:
		outcome = metrics.ResultFailed
	}
	s.deps.Metrics.ObserveEvaluation(outcome, time.Since(start))

	if res.Err != nil {
		lvl := s.log.Error
		if outcome == metrics.ResultNoData {
			lvl = s.log.Warn
		}
		lvl("evaluation failed", zap.String("instrument", instrument), zap.String("result", outcome), zap.Error(res.Err))
	}
	return res
}

// Evaluate runs one unit of work for instrument: fetch, score, step the
// position and deliver the resulting events. It holds the instrument's
// lock for the whole unit.
func (s *Scheduler) Evaluate(ctx context.Context, instrument string) Result {
	res := Result{Instrument: instrument}

	unlock, err := s.locks.Lock(ctx, instrument)
	if err != nil {
		res.Err = err
		return res
	}
	defer unlock()

	series, err := s.deps.Source.Collect(ctx, instrument)
	if err != nil {
		res.Err = err
		return res
	}
	snap, err := calculator.Snapshot(series, s.opts.Indicators)
	if err != nil {
		res.Err = fmt.Errorf("%s: %w", instrument, err)
		return res
	}
	res.Snapshot = snap
	res.Decision = strategy.Evaluate(snap, s.opts.Thresholds)
	s.deps.Metrics.Actions.WithLabelValues(string(res.Decision.Action)).Inc()
	s.log.Info(notifier.FormatDecision(instrument, snap, res.Decision))

	now := s.now()
	if err := s.deps.Recorder.RecordSignal(ctx, recorder.SignalRecord{
		Instrument: instrument, At: now, Snapshot: snap, Decision: res.Decision,
	}); err != nil {
		s.log.Warn("record signal", zap.String("instrument", instrument), zap.Error(err))
	}

	events, err := s.deps.Machine.Step(ctx, instrument, res.Decision.Action, snap.Close, now)
	if err != nil {
		res.Err = err
		s.remember(res)
		return res
	}
	res.Events = events
	s.remember(res)

	for _, e := range events {
		s.deliver(ctx, e)
	}
	return res
}

// deliver sends and records an event that is already persisted. It runs
// detached from cancellation so a shutdown does not drop the alert.
func (s *Scheduler) deliver(ctx context.Context, e model.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.NotifyTimeout)
	defer cancel()

	s.deps.Metrics.Events.WithLabelValues(string(e.Kind)).Inc()
	if err := s.deps.Notifier.Notify(ctx, notifier.Message{Text: notifier.FormatEvent(e), Event: &e}); err != nil {
		s.deps.Metrics.NotifyFailures.Inc()
		s.log.Error("notify event", zap.String("event_id", e.ID), zap.String("instrument", e.Instrument), zap.Error(err))
	}
	if err := s.deps.Recorder.RecordEvent(ctx, e); err != nil {
		s.log.Warn("record event", zap.String("event_id", e.ID), zap.Error(err))
	}
}

func (s *Scheduler) remember(res Result) {
	s.mu.Lock()
	s.last[res.Instrument] = res
	s.mu.Unlock()
}

// Last returns the most recent scored result for instrument.
func (s *Scheduler) Last(instrument string) (Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.last[instrument]
	return r, ok
}

// RunValuation computes and sends the valuation report.
func (s *Scheduler) RunValuation(ctx context.Context) (model.ValuationSnapshot, valuation.Band, error) {
	v := s.opts.Valuation
	series, err := s.deps.Source.CollectWindow(ctx, v.Instrument, v.Lookback, "1d")
	if err != nil {
		return model.ValuationSnapshot{}, valuation.Band{}, err
	}
	snap, err := valuation.Evaluate(series.Closes(), v.Params)
	if err != nil {
		return model.ValuationSnapshot{}, valuation.Band{}, fmt.Errorf("valuation %s: %w", v.Instrument, err)
	}
	band := valuation.Classify(snap.ValuationRatio)
	now := s.now()

	s.log.Info("valuation computed",
		zap.String("instrument", v.Instrument),
		zap.Float64("ratio", snap.ValuationRatio),
		zap.String("zone", string(band.Zone)))

	msg := notifier.Message{Text: notifier.FormatValuation(v.Instrument, snap, band, now)}
	if err := s.deps.Notifier.Notify(ctx, msg); err != nil {
		s.deps.Metrics.NotifyFailures.Inc()
		s.log.Error("notify valuation", zap.Error(err))
	}
	if err := s.deps.Recorder.RecordValuation(ctx, recorder.ValuationRecord{
		Instrument: v.Instrument, At: now, Snapshot: snap, Zone: string(band.Zone),
	}); err != nil {
		s.log.Warn("record valuation", zap.Error(err))
	}
	return snap, band, nil
}

// RunDCA scores the valuation instrument on the DCA window and sends a
// reminder when the planner says one is due.
func (s *Scheduler) RunDCA(ctx context.Context) (model.DCAReminder, error) {
	p := s.deps.Planner
	series, err := s.deps.Source.CollectWindow(ctx, p.Instrument(), s.opts.DCA.Lookback, s.opts.DCA.Interval)
	if err != nil {
		return model.DCAReminder{}, err
	}
	snap, err := calculator.Snapshot(series, s.opts.Indicators)
	if err != nil {
		return model.DCAReminder{}, fmt.Errorf("dca %s: %w", p.Instrument(), err)
	}
	decision := strategy.Evaluate(snap, s.opts.Thresholds)

	reminder, ok := p.Plan(decision.Action, snap.Close, s.now())
	if !ok {
		return model.DCAReminder{}, nil
	}
	if err := s.deps.Notifier.Notify(ctx, notifier.Message{Text: notifier.FormatDCA(reminder)}); err != nil {
		s.deps.Metrics.NotifyFailures.Inc()
		s.log.Error("notify dca", zap.Error(err))
	}
	if err := s.deps.Recorder.RecordDCA(ctx, reminder); err != nil {
		s.log.Warn("record dca", zap.Error(err))
	}
	return reminder, nil
}
