package model

import "time"

// Action is the discrete output of the scoring engine.
type Action string

const (
	ActionHold       Action = "HOLD"
	ActionBuy        Action = "BUY"
	ActionBuyStrong  Action = "BUY_STRONG"
	ActionSell       Action = "SELL"
	ActionSellStrong Action = "SELL_STRONG"
)

// IsBuy reports whether the action is BUY or BUY_STRONG.
func (a Action) IsBuy() bool { return a == ActionBuy || a == ActionBuyStrong }

// IsSell reports whether the action is SELL or SELL_STRONG.
func (a Action) IsSell() bool { return a == ActionSell || a == ActionSellStrong }

// Decision is a scored action together with the scores that produced it.
type Decision struct {
	Action    Action
	BuyScore  int
	SellScore int
	Signals   []string
}

// EventKind classifies a position transition.
type EventKind string

const (
	EventBuy        EventKind = "BUY"
	EventSell       EventKind = "SELL"
	EventTakeProfit EventKind = "TAKE_PROFIT"
	EventStopLoss   EventKind = "STOP_LOSS"
)

// Event is an outbound notification intent produced by a position transition.
type Event struct {
	ID         string    `json:"id"`
	Instrument string    `json:"instrument"`
	Kind       EventKind `json:"kind"`
	Action     Action    `json:"action"`
	Price      float64   `json:"price"`
	EntryPrice float64   `json:"entry_price,omitempty"`
	Change     float64   `json:"change,omitempty"` // fractional, 0.05 = +5%
	Reason     string    `json:"reason"`
	At         time.Time `json:"at"`
}

// DCAReminder is a periodic fixed-investment suggestion for the valuation instrument.
type DCAReminder struct {
	Instrument string
	Action     Action
	Price      float64
	Amount     float64
	At         time.Time
}
