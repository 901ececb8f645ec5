package model

// IndicatorSnapshot holds the indicator values at the last bar of a series.
type IndicatorSnapshot struct {
	Close      float64 `json:"close"`
	RSI        float64 `json:"rsi"`
	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	BBLower    float64 `json:"bb_lower"`
	BBUpper    float64 `json:"bb_upper"`
}

// ValuationSnapshot is the long-horizon valuation of one instrument.
type ValuationSnapshot struct {
	CurrentPrice        float64 `json:"current_price"`
	TrailingAverageCost float64 `json:"trailing_average_cost"`
	FairValueEstimate   float64 `json:"fair_value_estimate"`
	ValuationRatio      float64 `json:"valuation_ratio"`
}
