package dca

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalSentinel/internal/model"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func TestPlanner_FirstReminder(t *testing.T) {
	p := NewPlanner(DefaultOptions())

	r, ok := p.Plan(model.ActionBuy, 60000, t0)
	require.True(t, ok)
	assert.Equal(t, model.ActionHold, r.Action)
	assert.Equal(t, 100.0, r.Amount)
	assert.Equal(t, "BTC-USD", r.Instrument)
	assert.Equal(t, 60000.0, r.Price)
}

func TestPlanner_StrongBuyIncreasesAmount(t *testing.T) {
	p := NewPlanner(DefaultOptions())
	r, ok := p.Plan(model.ActionBuyStrong, 50000, t0)
	require.True(t, ok)
	assert.Equal(t, 150.0, r.Amount)
}

func TestPlanner_Cooldown(t *testing.T) {
	p := NewPlanner(DefaultOptions())

	_, ok := p.Plan(model.ActionHold, 1, t0)
	require.True(t, ok)

	_, ok = p.Plan(model.ActionHold, 1, t0.Add(10*time.Minute))
	assert.False(t, ok, "same recommendation inside cooldown")

	_, ok = p.Plan(model.ActionBuyStrong, 1, t0.Add(11*time.Minute))
	assert.True(t, ok, "changed recommendation bypasses cooldown")

	_, ok = p.Plan(model.ActionBuyStrong, 1, t0.Add(41*time.Minute))
	assert.False(t, ok, "exactly 30 minutes is not elapsed")

	_, ok = p.Plan(model.ActionBuyStrong, 1, t0.Add(41*time.Minute+time.Second))
	assert.True(t, ok)
}

func TestPlanner_StrongSellSuppressesButUpdatesState(t *testing.T) {
	p := NewPlanner(DefaultOptions())

	_, ok := p.Plan(model.ActionSellStrong, 1, t0)
	assert.False(t, ok)

	// The suppressed recommendation still starts the cooldown.
	_, ok = p.Plan(model.ActionSellStrong, 1, t0.Add(5*time.Minute))
	assert.False(t, ok)

	r, ok := p.Plan(model.ActionSell, 1, t0.Add(6*time.Minute))
	require.True(t, ok)
	assert.Equal(t, model.ActionHold, r.Action)
}

func TestPlanner_Recommend(t *testing.T) {
	p := NewPlanner(Options{FixedAmount: 10, IncreasedAmount: 20})
	tests := []struct {
		in     model.Action
		want   model.Action
		amount float64
	}{
		{model.ActionBuyStrong, model.ActionBuyStrong, 20},
		{model.ActionBuy, model.ActionHold, 10},
		{model.ActionHold, model.ActionHold, 10},
		{model.ActionSell, model.ActionHold, 10},
		{model.ActionSellStrong, model.ActionSellStrong, 0},
	}
	for _, tt := range tests {
		got, amount := p.Recommend(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.amount, amount, tt.in)
	}
}
