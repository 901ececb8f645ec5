package recorder

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalSentinel/internal/model"
)

var at = time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

func openTestRecorder(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func count(t *testing.T, r *SQLiteRecorder, table string) int {
	t.Helper()
	var n int
	require.NoError(t, r.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestSQLiteRecorder_RecordSignal(t *testing.T) {
	r := openTestRecorder(t)
	ctx := context.Background()

	err := r.RecordSignal(ctx, SignalRecord{
		Instrument: "NVDA",
		At:         at,
		Snapshot:   model.IndicatorSnapshot{Close: 120, RSI: 28, MACD: 0.4, MACDSignal: 0.2, BBLower: 121, BBUpper: 130},
		Decision:   model.Decision{Action: model.ActionBuyStrong, BuyScore: 6, Signals: []string{"rsi_oversold", "below_lower_band", "macd_above_signal"}},
	})
	require.NoError(t, err)

	var action, signals string
	var buy int
	require.NoError(t, r.db.QueryRow(`SELECT action, buy_score, signals FROM signal_history WHERE instrument = ?`, "NVDA").
		Scan(&action, &buy, &signals))
	assert.Equal(t, "BUY_STRONG", action)
	assert.Equal(t, 6, buy)
	assert.Equal(t, "rsi_oversold,below_lower_band,macd_above_signal", signals)
}

func TestSQLiteRecorder_RecordEventIsIdempotent(t *testing.T) {
	r := openTestRecorder(t)
	ctx := context.Background()

	evt := model.Event{ID: "e-1", Instrument: "NFLX", Kind: model.EventTakeProfit, Action: model.ActionHold, Price: 106, EntryPrice: 100, Change: 0.06, At: at}
	require.NoError(t, r.RecordEvent(ctx, evt))
	require.NoError(t, r.RecordEvent(ctx, evt))
	evt.ID = "e-2"
	require.NoError(t, r.RecordEvent(ctx, evt))

	assert.Equal(t, 2, count(t, r, "position_events"))
}

func TestSQLiteRecorder_RecordValuationAndDCA(t *testing.T) {
	r := openTestRecorder(t)
	ctx := context.Background()

	require.NoError(t, r.RecordValuation(ctx, ValuationRecord{
		Instrument: "BTC-USD",
		At:         at,
		Snapshot:   model.ValuationSnapshot{CurrentPrice: 60000, TrailingAverageCost: 50000, FairValueEstimate: 70000, ValuationRatio: 0.857},
		Zone:       "accumulate",
	}))
	require.NoError(t, r.RecordDCA(ctx, model.DCAReminder{Instrument: "BTC-USD", Action: model.ActionHold, Price: 60000, Amount: 100, At: at}))

	var zone string
	var ratio float64
	require.NoError(t, r.db.QueryRow(`SELECT zone, ratio FROM valuation_snapshots`).Scan(&zone, &ratio))
	assert.Equal(t, "accumulate", zone)
	assert.InDelta(t, 0.857, ratio, 1e-9)
	assert.Equal(t, 1, count(t, r, "dca_reminders"))
}

func TestSQLiteRecorder_ReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	r, err := NewSQLiteRecorder(path, nil)
	require.NoError(t, err)
	require.NoError(t, r.RecordEvent(ctx, model.Event{ID: "e-1", Instrument: "COIN", Kind: model.EventBuy, At: at}))
	require.NoError(t, r.Close())

	r, err = NewSQLiteRecorder(path, nil)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 1, count(t, r, "position_events"))
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	assert.NoError(t, r.RecordEvent(context.Background(), model.Event{}))
	assert.NoError(t, r.Close())
}
