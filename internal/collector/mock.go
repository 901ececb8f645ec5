package collector

import (
	"context"
	"math"
	"time"

	"SignalSentinel/internal/model"
)

// MockFetcher returns a deterministic oscillating series for development
// and tests. Set Bars to return a fixed series instead.
type MockFetcher struct {
	Price float64
	Bars  []model.OHLCV
	Err   error
	Now   func() time.Time
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) Fetch(_ context.Context, instrument, lookback, interval string) (model.PriceSeries, error) {
	if m.Err != nil {
		return model.PriceSeries{}, m.Err
	}
	now := time.Now()
	if m.Now != nil {
		now = m.Now()
	}
	series := model.PriceSeries{Instrument: instrument, Interval: interval, FetchedAt: now}
	if m.Bars != nil {
		series.Bars = m.Bars
		return series, nil
	}

	span, err := Span(lookback)
	if err != nil {
		return model.PriceSeries{}, err
	}
	step, err := Span(interval)
	if err != nil {
		return model.PriceSeries{}, err
	}
	series.Bars = generateMockBars(m.Price, int(span/step), step, now)
	return series, nil
}

func generateMockBars(basePrice float64, count int, step time.Duration, end time.Time) []model.OHLCV {
	bars := make([]model.OHLCV, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + 0.03*math.Sin(float64(i)/6) + float64(i-count/2)*0.0005)
		bars[i] = model.OHLCV{
			Time:   end.Add(-time.Duration(count-i) * step),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}
