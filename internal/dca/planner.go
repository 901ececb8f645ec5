// Package dca plans periodic fixed-investment reminders for a long-horizon
// instrument.
package dca

import (
	"sync"
	"time"

	"SignalSentinel/internal/model"
)

// Options configures the planner.
type Options struct {
	Instrument      string
	FixedAmount     float64
	IncreasedAmount float64
	Cooldown        time.Duration
}

// DefaultOptions returns 100 / 150 amounts on BTC-USD with a 30 minute cooldown.
func DefaultOptions() Options {
	return Options{
		Instrument:      "BTC-USD",
		FixedAmount:     100,
		IncreasedAmount: 150,
		Cooldown:        30 * time.Minute,
	}
}

// Planner turns decisions into reminders. A reminder is due when the
// recommendation changes or the cooldown has elapsed since the last one.
type Planner struct {
	opts Options

	mu         sync.Mutex
	lastAction model.Action
	lastAt     time.Time
}

// NewPlanner creates a Planner with no history.
func NewPlanner(opts Options) *Planner {
	return &Planner{opts: opts}
}

// Recommend maps a scored action to the DCA recommendation and amount.
// Only strong signals change the plan.
func (p *Planner) Recommend(action model.Action) (model.Action, float64) {
	switch action {
	case model.ActionBuyStrong:
		return model.ActionBuyStrong, p.opts.IncreasedAmount
	case model.ActionSellStrong:
		return model.ActionSellStrong, 0
	default:
		return model.ActionHold, p.opts.FixedAmount
	}
}

// Plan returns a reminder when one is due. A due recommendation with a zero
// amount is recorded as sent but not returned.
func (p *Planner) Plan(action model.Action, price float64, now time.Time) (model.DCAReminder, bool) {
	rec, amount := p.Recommend(action)

	p.mu.Lock()
	defer p.mu.Unlock()

	due := p.lastAt.IsZero() || rec != p.lastAction || now.Sub(p.lastAt) > p.opts.Cooldown
	if !due {
		return model.DCAReminder{}, false
	}
	p.lastAction, p.lastAt = rec, now
	if amount <= 0 {
		return model.DCAReminder{}, false
	}
	return model.DCAReminder{
		Instrument: p.opts.Instrument,
		Action:     rec,
		Price:      price,
		Amount:     amount,
		At:         now,
	}, true
}

// Instrument returns the planned instrument.
func (p *Planner) Instrument() string { return p.opts.Instrument }
