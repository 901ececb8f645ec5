package collector

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"SignalSentinel/internal/model"
	"SignalSentinel/internal/retry"
)

// Options selects the default window and per-attempt deadline.
type Options struct {
	Lookback string
	Interval string
	Timeout  time.Duration
}

// Collector fetches price series through a retry policy.
type Collector struct {
	fetcher Fetcher
	opts    Options
	policy  retry.Policy
	logger  *zap.Logger
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, opts Options, policy retry.Policy, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		fetcher: fetcher,
		opts:    opts,
		policy:  policy.With("fetch", logger),
		logger:  logger,
	}
}

// Collect fetches the configured window for instrument.
func (c *Collector) Collect(ctx context.Context, instrument string) (model.PriceSeries, error) {
	return c.CollectWindow(ctx, instrument, c.opts.Lookback, c.opts.Interval)
}

// CollectWindow fetches an explicit window. An empty series is ErrNoData.
func (c *Collector) CollectWindow(ctx context.Context, instrument, lookback, interval string) (model.PriceSeries, error) {
	series, err := retry.Do(ctx, c.policy, func(ctx context.Context) (model.PriceSeries, error) {
		if c.opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
			defer cancel()
		}
		return c.fetcher.Fetch(ctx, instrument, lookback, interval)
	})
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("collect %s via %s: %w", instrument, c.fetcher.Name(), err)
	}
	if series.Len() == 0 {
		return model.PriceSeries{}, fmt.Errorf("collect %s: %w", instrument, model.ErrNoData)
	}
	c.logger.Debug("series collected",
		zap.String("instrument", instrument),
		zap.String("interval", interval),
		zap.Int("bars", series.Len()))
	return series, nil
}
