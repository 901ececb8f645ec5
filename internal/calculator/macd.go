package calculator

import (
	"errors"
	"fmt"

	"SignalSentinel/internal/model"
)

// MACDValue is the MACD line and its signal line at the last close.
type MACDValue struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACDMinLength is the number of closes MACD needs to produce a signal value.
func MACDMinLength(fast, slow, signal int) int { return slow + signal - 1 }

// MACD computes EMA(fast) - EMA(slow) and its EMA(signal).
func MACD(closes []float64, fast, slow, signal int) (MACDValue, error) {
	if fast <= 0 || slow <= 0 || signal <= 0 {
		return MACDValue{}, errPeriod
	}
	if fast >= slow {
		return MACDValue{}, errors.New("macd fast period must be shorter than slow period")
	}
	if need := MACDMinLength(fast, slow, signal); len(closes) < need {
		return MACDValue{}, fmt.Errorf("macd(%d,%d,%d) needs %d closes, have %d: %w",
			fast, slow, signal, need, len(closes), model.ErrInsufficientData)
	}

	fastEMA, _, err := EMASeries(closes, fast)
	if err != nil {
		return MACDValue{}, err
	}
	slowEMA, start, err := EMASeries(closes, slow)
	if err != nil {
		return MACDValue{}, err
	}

	line := make([]float64, 0, len(closes)-start)
	for i := start; i < len(closes); i++ {
		line = append(line, fastEMA[i]-slowEMA[i])
	}
	sig, _, err := EMASeries(line, signal)
	if err != nil {
		return MACDValue{}, err
	}

	m := line[len(line)-1]
	s := sig[len(sig)-1]
	return MACDValue{MACD: m, Signal: s, Histogram: m - s}, nil
}
