// Package valuation estimates long-horizon fair value from a log-linear
// trend fit and combines it with a trailing average cost into a single ratio.
package valuation

import (
	"fmt"
	"math"

	"SignalSentinel/internal/model"
)

// Params are the window sizes of the valuation model.
type Params struct {
	AvgWindow int // trailing average cost window, e.g. 200 daily closes
	FitWindow int // log-linear regression window, e.g. 365 daily closes
}

// DefaultParams returns the 200/365 daily windows.
func DefaultParams() Params {
	return Params{AvgWindow: 200, FitWindow: 365}
}

// FitLogLinear fits log(price) = a + b·t by ordinary least squares with
// t = 0..n-1. Every price must be positive.
func FitLogLinear(prices []float64) (intercept, slope float64, err error) {
	n := len(prices)
	if n < 2 {
		return 0, 0, fmt.Errorf("log-linear fit over %d points: %w", n, model.ErrInsufficientData)
	}
	var sumT, sumY float64
	ys := make([]float64, n)
	for i, p := range prices {
		if !(p > 0) || math.IsInf(p, 0) {
			return 0, 0, fmt.Errorf("log-linear fit: price %v at %d: %w", p, i, model.ErrInsufficientData)
		}
		ys[i] = math.Log(p)
		sumT += float64(i)
		sumY += ys[i]
	}
	meanT := sumT / float64(n)
	meanY := sumY / float64(n)

	var sxy, sxx float64
	for i, y := range ys {
		dt := float64(i) - meanT
		sxy += dt * (y - meanY)
		sxx += dt * dt
	}
	slope = sxy / sxx
	intercept = meanY - slope*meanT
	return intercept, slope, nil
}

// Evaluate computes the valuation snapshot at the last usable close.
// Non-positive and non-finite closes are discarded first; at least
// max(AvgWindow, FitWindow) usable closes must remain.
func Evaluate(closes []float64, p Params) (model.ValuationSnapshot, error) {
	if p.AvgWindow <= 0 || p.FitWindow <= 1 {
		return model.ValuationSnapshot{}, fmt.Errorf("valuation windows %d/%d: %w", p.AvgWindow, p.FitWindow, model.ErrMalformedInput)
	}

	valid := make([]float64, 0, len(closes))
	for _, c := range closes {
		if c > 0 && !math.IsInf(c, 0) {
			valid = append(valid, c)
		}
	}
	need := max(p.AvgWindow, p.FitWindow)
	if len(valid) < need {
		return model.ValuationSnapshot{}, fmt.Errorf("valuation needs %d positive closes, have %d: %w",
			need, len(valid), model.ErrInsufficientData)
	}

	a, b, err := FitLogLinear(valid[len(valid)-p.FitWindow:])
	if err != nil {
		return model.ValuationSnapshot{}, err
	}
	// Evaluated at the last observed index, not forecast past it.
	fair := math.Exp(a + b*float64(p.FitWindow-1))

	var sum float64
	for _, c := range valid[len(valid)-p.AvgWindow:] {
		sum += c
	}
	avgCost := sum / float64(p.AvgWindow)

	price := valid[len(valid)-1]
	return model.ValuationSnapshot{
		CurrentPrice:        price,
		TrailingAverageCost: avgCost,
		FairValueEstimate:   fair,
		ValuationRatio:      (price / avgCost) * (price / fair),
	}, nil
}
