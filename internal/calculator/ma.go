package calculator

import (
	"errors"
	"fmt"
	"math"

	"SignalSentinel/internal/model"
)

var errPeriod = errors.New("period must be positive")

// SMA computes the simple moving average of the last period values.
func SMA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errPeriod
	}
	if len(values) < period {
		return 0, fmt.Errorf("sma(%d) over %d values: %w", period, len(values), model.ErrInsufficientData)
	}
	window := values[len(values)-period:]
	if !finite(window) {
		return 0, fmt.Errorf("sma(%d): non-finite value in window: %w", period, model.ErrInsufficientData)
	}
	sum := 0.0
	for _, v := range window {
		sum += v
	}
	return sum / float64(period), nil
}

// StdDev computes the population standard deviation of the last period values.
func StdDev(values []float64, period int) (float64, error) {
	mean, err := SMA(values, period)
	if err != nil {
		return 0, err
	}
	var ss float64
	for _, v := range values[len(values)-period:] {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(period)), nil
}

// EMASeries returns the exponential moving average aligned with values.
// The average is seeded with the SMA of the first period values, so
// entries before index period-1 are zero and must be ignored; start is
// the first meaningful index.
func EMASeries(values []float64, period int) (ema []float64, start int, err error) {
	if period <= 0 {
		return nil, 0, errPeriod
	}
	if len(values) < period {
		return nil, 0, fmt.Errorf("ema(%d) over %d values: %w", period, len(values), model.ErrInsufficientData)
	}
	if !finite(values) {
		return nil, 0, fmt.Errorf("ema(%d): non-finite value: %w", period, model.ErrInsufficientData)
	}

	k := 2.0 / float64(period+1)
	ema = make([]float64, len(values))
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	start = period - 1
	ema[start] = sum / float64(period)
	for i := period; i < len(values); i++ {
		ema[i] = values[i]*k + ema[i-1]*(1-k)
	}
	return ema, start, nil
}

// Closes extracts closing prices from bars.
func Closes(bars []model.OHLCV) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

func finite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
