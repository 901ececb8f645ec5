package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionState is the persisted per-instrument record.
// An invalid EntryPrice means the instrument is flat.
type PositionState struct {
	EntryPrice   decimal.NullDecimal `json:"entry_price"`
	LastBuyTime  *int64              `json:"last_buy_time"`
	LastSellTime *int64              `json:"last_sell_time"`
}

// Open reports whether a position is tracked.
func (p PositionState) Open() bool { return p.EntryPrice.Valid }

// Entry returns the entry price as a float, 0 when flat.
func (p PositionState) Entry() float64 {
	if !p.EntryPrice.Valid {
		return 0
	}
	f, _ := p.EntryPrice.Decimal.Float64()
	return f
}

// Epoch converts t to a nullable epoch-seconds value.
func Epoch(t time.Time) *int64 {
	s := t.Unix()
	return &s
}

// SinceEpoch returns now minus the stored timestamp. ok is false when unset.
func SinceEpoch(ts *int64, now time.Time) (d time.Duration, ok bool) {
	if ts == nil {
		return 0, false
	}
	return now.Sub(time.Unix(*ts, 0)), true
}
