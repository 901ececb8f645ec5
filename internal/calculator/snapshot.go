package calculator

import (
	"fmt"

	"SignalSentinel/internal/model"
)

// Params are the indicator window sizes.
type Params struct {
	RSIPeriod       int
	BollingerPeriod int
	BollingerMult   float64
	MACDFast        int
	MACDSlow        int
	MACDSignal      int
}

// DefaultParams returns RSI 14, Bollinger 20/2 and MACD 12/26/9.
func DefaultParams() Params {
	return Params{
		RSIPeriod:       14,
		BollingerPeriod: 20,
		BollingerMult:   2,
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
	}
}

// MinLength is the shortest series for which Snapshot can succeed.
func (p Params) MinLength() int {
	n := p.RSIPeriod + 1
	if p.BollingerPeriod > n {
		n = p.BollingerPeriod
	}
	if m := MACDMinLength(p.MACDFast, p.MACDSlow, p.MACDSignal); m > n {
		n = m
	}
	return n
}

// Snapshot computes RSI, Bollinger Bands and MACD at the last bar.
// It fails with model.ErrInsufficientData if any indicator is not ready.
func Snapshot(series model.PriceSeries, p Params) (model.IndicatorSnapshot, error) {
	closes := series.Closes()
	if len(closes) == 0 {
		return model.IndicatorSnapshot{}, fmt.Errorf("%s: empty series: %w", series.Instrument, model.ErrInsufficientData)
	}

	rsi, err := RSI(closes, p.RSIPeriod)
	if err != nil {
		return model.IndicatorSnapshot{}, fmt.Errorf("%s: %w", series.Instrument, err)
	}
	bands, err := Bollinger(closes, p.BollingerPeriod, p.BollingerMult)
	if err != nil {
		return model.IndicatorSnapshot{}, fmt.Errorf("%s: bollinger: %w", series.Instrument, err)
	}
	macd, err := MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
	if err != nil {
		return model.IndicatorSnapshot{}, fmt.Errorf("%s: %w", series.Instrument, err)
	}

	return model.IndicatorSnapshot{
		Close:      closes[len(closes)-1],
		RSI:        rsi,
		MACD:       macd.MACD,
		MACDSignal: macd.Signal,
		BBLower:    bands.Lower,
		BBUpper:    bands.Upper,
	}, nil
}
