package strategy

import (
	"fmt"

	"SignalSentinel/internal/model"
)

// Thresholds parameterise scoring and decision.
type Thresholds struct {
	Weight        int     // score added by each firing signal
	RSIOversold   float64 // buy when RSI is strictly below
	RSIOverbought float64 // sell when RSI is strictly above
	Strong        int     // strong tier, ignores the opposing score
	Weak          int     // weak tier, requires the opposing score to be zero
}

// DefaultThresholds returns weight 2, RSI 30/70, strong ≥5 and weak ≥4.
// With a weight of 2 the strong tier effectively needs all three signals.
func DefaultThresholds() Thresholds {
	return Thresholds{Weight: 2, RSIOversold: 30, RSIOverbought: 70, Strong: 5, Weak: 4}
}

// Scores are the summed buy and sell contributions for one snapshot.
type Scores struct {
	Buy     int
	Sell    int
	Signals []string
}

type factor struct {
	name  string
	fires func(s model.IndicatorSnapshot, th Thresholds) bool
}

var buyFactors = []factor{
	{"close below lower band", func(s model.IndicatorSnapshot, _ Thresholds) bool { return s.Close < s.BBLower }},
	{"rsi oversold", func(s model.IndicatorSnapshot, th Thresholds) bool { return s.RSI < th.RSIOversold }},
	{"macd above signal", func(s model.IndicatorSnapshot, _ Thresholds) bool { return s.MACD > s.MACDSignal }},
}

var sellFactors = []factor{
	{"close above upper band", func(s model.IndicatorSnapshot, _ Thresholds) bool { return s.Close > s.BBUpper }},
	{"rsi overbought", func(s model.IndicatorSnapshot, th Thresholds) bool { return s.RSI > th.RSIOverbought }},
	{"macd below signal", func(s model.IndicatorSnapshot, _ Thresholds) bool { return s.MACD < s.MACDSignal }},
}

// Score sums the weighted buy and sell signals of a snapshot.
func Score(s model.IndicatorSnapshot, th Thresholds) Scores {
	var sc Scores
	for _, f := range buyFactors {
		if f.fires(s, th) {
			sc.Buy += th.Weight
			sc.Signals = append(sc.Signals, fmt.Sprintf("+buy: %s", f.name))
		}
	}
	for _, f := range sellFactors {
		if f.fires(s, th) {
			sc.Sell += th.Weight
			sc.Signals = append(sc.Signals, fmt.Sprintf("+sell: %s", f.name))
		}
	}
	return sc
}
