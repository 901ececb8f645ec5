package position

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"SignalSentinel/internal/model"
	"SignalSentinel/internal/retry"
)

// Rules holds the exit thresholds and cooldowns.
type Rules struct {
	BuyCooldown  time.Duration
	SellCooldown time.Duration
	TakeProfit   float64 // fractional gain, e.g. 0.05
	StopLoss     float64 // fractional loss, negative, e.g. -0.03
}

// DefaultRules returns 15-minute cooldowns, +5% take-profit and -3% stop-loss.
func DefaultRules() Rules {
	return Rules{
		BuyCooldown:  900 * time.Second,
		SellCooldown: 900 * time.Second,
		TakeProfit:   0.05,
		StopLoss:     -0.03,
	}
}

// Validate checks that the thresholds bracket zero and cooldowns are non-negative.
func (r Rules) Validate() error {
	if r.TakeProfit <= 0 {
		return fmt.Errorf("take profit must be > 0, got %v", r.TakeProfit)
	}
	if r.StopLoss >= 0 {
		return fmt.Errorf("stop loss must be < 0, got %v", r.StopLoss)
	}
	if r.BuyCooldown < 0 || r.SellCooldown < 0 {
		return errors.New("cooldowns must be >= 0")
	}
	return nil
}

// Machine applies scored actions to persisted position state.
//
// Step is not safe for concurrent use on the same instrument; callers
// serialize per key.
type Machine struct {
	store  Store
	rules  Rules
	policy retry.Policy
	logger *zap.Logger
	newID  func() string
}

// NewMachine creates a Machine. Loads and saves go through policy.
func NewMachine(store Store, rules Rules, policy retry.Policy, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		store:  store,
		rules:  rules,
		policy: policy.With("position-store", logger),
		logger: logger,
		newID:  uuid.NewString,
	}
}

// Step evaluates one price observation for instrument.
//
// Exits are checked first against the stored entry price. The action is
// then applied if its cooldown has elapsed, so a take-profit and a fresh
// buy may both fire in one step. The state is saved once when anything
// changed; events are only returned after that save succeeds.
func (m *Machine) Step(ctx context.Context, instrument string, action model.Action, price float64, now time.Time) ([]model.Event, error) {
	if price <= 0 {
		return nil, fmt.Errorf("%s: price %v: %w", instrument, price, model.ErrMalformedInput)
	}

	state, err := m.load(ctx, instrument)
	if err != nil {
		return nil, err
	}

	current := decimal.NewFromFloat(price)
	var events []model.Event

	if state.Open() {
		entry := state.EntryPrice.Decimal
		change := current.Sub(entry).Div(entry)
		switch {
		case change.GreaterThanOrEqual(decimal.NewFromFloat(m.rules.TakeProfit)):
			events = append(events, m.event(instrument, model.EventTakeProfit, action, current, entry, change, now,
				fmt.Sprintf("take profit %s (target %s)", pct(change), pct(decimal.NewFromFloat(m.rules.TakeProfit)))))
			state.EntryPrice = decimal.NullDecimal{}
		case change.LessThanOrEqual(decimal.NewFromFloat(m.rules.StopLoss)):
			events = append(events, m.event(instrument, model.EventStopLoss, action, current, entry, change, now,
				fmt.Sprintf("stop loss %s (limit %s)", pct(change), pct(decimal.NewFromFloat(m.rules.StopLoss)))))
			state.EntryPrice = decimal.NullDecimal{}
		}
	}

	switch {
	case action.IsBuy() && cooldownElapsed(state.LastBuyTime, m.rules.BuyCooldown, now):
		state.EntryPrice = decimal.NewNullDecimal(current)
		state.LastBuyTime = model.Epoch(now)
		events = append(events, m.event(instrument, model.EventBuy, action, current, decimal.Zero, decimal.Zero, now,
			fmt.Sprintf("%s signal, entry set at %s", action, current)))
	case action.IsSell() && cooldownElapsed(state.LastSellTime, m.rules.SellCooldown, now):
		entry, change := decimal.Zero, decimal.Zero
		reason := fmt.Sprintf("%s signal, no open position", action)
		if state.Open() {
			entry = state.EntryPrice.Decimal
			change = current.Sub(entry).Div(entry)
			reason = fmt.Sprintf("%s signal, closed at %s", action, pct(change))
		}
		state.EntryPrice = decimal.NullDecimal{}
		state.LastSellTime = model.Epoch(now)
		events = append(events, m.event(instrument, model.EventSell, action, current, entry, change, now, reason))
	}

	if len(events) == 0 {
		return nil, nil
	}

	err = retry.Run(ctx, m.policy, func(ctx context.Context) error {
		return m.store.Save(ctx, instrument, state)
	})
	if err != nil {
		return nil, fmt.Errorf("save %s: %w", instrument, err)
	}

	for _, e := range events {
		m.logger.Info("position event",
			zap.String("instrument", instrument),
			zap.String("kind", string(e.Kind)),
			zap.String("action", string(e.Action)),
			zap.Float64("price", e.Price),
			zap.String("event_id", e.ID))
	}
	return events, nil
}

// State returns the stored state for instrument, or Flat when absent.
func (m *Machine) State(ctx context.Context, instrument string) (model.PositionState, error) {
	return m.load(ctx, instrument)
}

// Positions lists every stored record.
func (m *Machine) Positions(ctx context.Context) (map[string]model.PositionState, error) {
	return retry.Do(ctx, m.policy, m.store.List)
}

// Reset deletes the record of instrument.
func (m *Machine) Reset(ctx context.Context, instrument string) error {
	return retry.Run(ctx, m.policy, func(ctx context.Context) error {
		return m.store.Clear(ctx, instrument)
	})
}

// load treats an undecodable record as Flat.
func (m *Machine) load(ctx context.Context, instrument string) (model.PositionState, error) {
	state, err := retry.Do(ctx, m.policy, func(ctx context.Context) (model.PositionState, error) {
		s, _, err := m.store.Load(ctx, instrument)
		return s, err
	})
	if errors.Is(err, model.ErrInvalidState) {
		m.logger.Warn("invalid position record, treating as flat",
			zap.String("instrument", instrument), zap.Error(err))
		return model.PositionState{}, nil
	}
	if err != nil {
		return model.PositionState{}, fmt.Errorf("load %s: %w", instrument, err)
	}
	return state, nil
}

func (m *Machine) event(instrument string, kind model.EventKind, action model.Action, price, entry, change decimal.Decimal, now time.Time, reason string) model.Event {
	p, _ := price.Float64()
	e, _ := entry.Float64()
	c, _ := change.Float64()
	return model.Event{
		ID:         m.newID(),
		Instrument: instrument,
		Kind:       kind,
		Action:     action,
		Price:      p,
		EntryPrice: e,
		Change:     c,
		Reason:     reason,
		At:         now,
	}
}

func cooldownElapsed(last *int64, cooldown time.Duration, now time.Time) bool {
	since, ok := model.SinceEpoch(last, now)
	return !ok || since > cooldown
}

func pct(d decimal.Decimal) string {
	s := d.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
	if d.IsPositive() {
		s = "+" + s
	}
	return s
}
