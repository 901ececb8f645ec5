package calculator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalSentinel/internal/model"
)

func series(closes ...float64) model.PriceSeries {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = model.OHLCV{Time: start.Add(time.Duration(i) * 15 * time.Minute), Open: c, High: c, Low: c, Close: c}
	}
	return model.PriceSeries{Instrument: "TEST", Interval: "15m", Bars: bars}
}

func linear(n int, from, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = from + float64(i)*step
	}
	return out
}

func TestSMA(t *testing.T) {
	v, err := SMA([]float64{1, 2, 3, 4, 5}, 3)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, v, 1e-12)

	_, err = SMA([]float64{1, 2}, 3)
	assert.ErrorIs(t, err, model.ErrInsufficientData)

	_, err = SMA([]float64{1, 2, 3}, 0)
	assert.Error(t, err)
}

func TestSMA_NaNInWindow(t *testing.T) {
	_, err := SMA([]float64{1, math.NaN(), 3}, 3)
	assert.ErrorIs(t, err, model.ErrInsufficientData)
}

func TestStdDev_Population(t *testing.T) {
	v, err := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 8)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, v, 1e-12)
}

func TestEMASeries_SeededWithSMA(t *testing.T) {
	ema, start, err := EMASeries([]float64{1, 2, 3, 4, 5}, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, start)
	assert.InDelta(t, 2.0, ema[2], 1e-12)
	assert.InDelta(t, 3.0, ema[3], 1e-12)
	assert.InDelta(t, 4.0, ema[4], 1e-12)
}

func TestRSI_KnownValue(t *testing.T) {
	v, err := RSI([]float64{10, 11, 10, 12}, 2)
	require.NoError(t, err)
	assert.InDelta(t, 100-100.0/6.0, v, 1e-9)
}

func TestRSI_Extremes(t *testing.T) {
	up, err := RSI(linear(30, 100, 1), 14)
	require.NoError(t, err)
	assert.Equal(t, 100.0, up)

	down, err := RSI(linear(30, 100, -1), 14)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, down, 1e-9)

	flat, err := RSI(linear(30, 100, 0), 14)
	require.NoError(t, err)
	assert.Equal(t, 50.0, flat)
}

func TestRSI_NeedsPeriodPlusOne(t *testing.T) {
	_, err := RSI(linear(14, 100, 1), 14)
	assert.ErrorIs(t, err, model.ErrInsufficientData)

	_, err = RSI(linear(15, 100, 1), 14)
	assert.NoError(t, err)
}

func TestBollinger(t *testing.T) {
	b, err := Bollinger(linear(20, 50, 0), 20, 2)
	require.NoError(t, err)
	assert.Equal(t, Bands{Middle: 50, Upper: 50, Lower: 50}, b)

	b, err = Bollinger([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 8, 2)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, b.Middle, 1e-12)
	assert.InDelta(t, 9.0, b.Upper, 1e-12)
	assert.InDelta(t, 1.0, b.Lower, 1e-12)

	_, err = Bollinger(linear(19, 50, 1), 20, 2)
	assert.ErrorIs(t, err, model.ErrInsufficientData)
}

func TestMACD(t *testing.T) {
	flat, err := MACD(linear(40, 100, 0), 12, 26, 9)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, flat.MACD, 1e-9)
	assert.InDelta(t, 0.0, flat.Signal, 1e-9)

	rising, err := MACD(linear(60, 100, 1), 12, 26, 9)
	require.NoError(t, err)
	assert.Greater(t, rising.MACD, 0.0)
	assert.InDelta(t, rising.MACD-rising.Signal, rising.Histogram, 1e-12)

	_, err = MACD(linear(33, 100, 1), 12, 26, 9)
	assert.ErrorIs(t, err, model.ErrInsufficientData)

	_, err = MACD(linear(34, 100, 1), 12, 26, 9)
	assert.NoError(t, err)

	_, err = MACD(linear(60, 100, 1), 26, 12, 9)
	assert.Error(t, err)
}

func TestSnapshot(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 34, p.MinLength())

	closes := linear(p.MinLength(), 100, 0.5)
	snap, err := Snapshot(series(closes...), p)
	require.NoError(t, err)
	assert.Equal(t, closes[len(closes)-1], snap.Close)
	assert.Equal(t, 100.0, snap.RSI)
	assert.Greater(t, snap.BBUpper, snap.BBLower)
	assert.Greater(t, snap.MACD, 0.0)
}

func TestSnapshot_InsufficientData(t *testing.T) {
	p := DefaultParams()
	for _, n := range []int{0, 1, 14, 20, p.MinLength() - 1} {
		_, err := Snapshot(series(linear(n, 100, 1)...), p)
		assert.ErrorIs(t, err, model.ErrInsufficientData, "length %d", n)
	}
}
