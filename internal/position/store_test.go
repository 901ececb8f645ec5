package position

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"SignalSentinel/internal/model"
)

// exerciseStore runs the shared contract against a fresh store.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, found, err := s.Load(ctx, "NVDA")
	require.NoError(t, err)
	assert.False(t, found)

	open := openAt(101.25, time.Hour)
	require.NoError(t, s.Save(ctx, "NVDA", open))
	require.NoError(t, s.Save(ctx, "BTC-USD", model.PositionState{LastSellTime: model.Epoch(t0)}))

	got, found, err := s.Load(ctx, "NVDA")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 101.25, got.Entry())
	assert.Equal(t, *open.LastBuyTime, *got.LastBuyTime)
	assert.Nil(t, got.LastSellTime)

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.False(t, all["BTC-USD"].Open())

	require.NoError(t, s.Clear(ctx, "NVDA"))
	_, found, err = s.Load(ctx, "NVDA")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestBadgerStore(t *testing.T) {
	s, err := NewBadgerStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestBadgerStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewBadgerStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "TSLA", openAt(250, time.Minute)))
	require.NoError(t, s.Close())

	s, err = NewBadgerStore(dir)
	require.NoError(t, err)
	defer s.Close()
	got, found, err := s.Load(ctx, "TSLA")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 250.0, got.Entry())
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "positions.json"), nil)
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "positions.json")
	ctx := context.Background()

	s, err := NewFileStore(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "COIN", openAt(180, time.Minute)))

	s2, err := NewFileStore(path, nil)
	require.NoError(t, err)
	got, found, err := s2.Load(ctx, "COIN")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 180.0, got.Entry())

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFileStore_CorruptRecordIsInvalidState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.json")
	doc := `{
  "NVDA": {"entry_price": "-4", "last_buy_time": 1700000000, "last_sell_time": null},
  "TSLA": {"entry_price": "250.5", "last_buy_time": 1700000000, "last_sell_time": null}
}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	core, logs := observer.New(zap.WarnLevel)
	s, err := NewFileStore(path, zap.New(core))
	require.NoError(t, err)

	_, found, err := s.Load(context.Background(), "NVDA")
	assert.True(t, found)
	assert.ErrorIs(t, err, model.ErrInvalidState)

	got, _, err := s.Load(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.Equal(t, 250.5, got.Entry())

	all, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)

	skipped := logs.FilterMessage("skipping unreadable position record").All()
	require.Len(t, skipped, 1)
	assert.Equal(t, "NVDA", skipped[0].ContextMap()["instrument"])
}

func TestFileStore_UnreadableDocumentStartsFlat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))
	ctx := context.Background()

	core, logs := observer.New(zap.WarnLevel)
	s, err := NewFileStore(path, zap.New(core))
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("position document unreadable, starting flat").Len())

	kept, err := os.ReadFile(path + ".corrupt")
	require.NoError(t, err)
	assert.Equal(t, "{broken", string(kept))

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	m := newTestMachine(t, s)
	events, err := m.Step(ctx, "NVDA", model.ActionBuy, 100, t0)
	require.NoError(t, err)
	require.Len(t, events, 1)

	s2, err := NewFileStore(path, nil)
	require.NoError(t, err)
	got, found, err := s2.Load(ctx, "NVDA")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 100.0, got.Entry())
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	s, err := NewRedisStore(RedisConfig{Addr: addr, KeyPrefix: "sentinel-test:" + t.Name()})
	require.NoError(t, err)
	defer s.Close()
	t.Cleanup(func() {
		_ = s.Clear(context.Background(), "NVDA")
		_ = s.Clear(context.Background(), "BTC-USD")
	})
	exerciseStore(t, s)
}

func TestDecodeState_NullEntry(t *testing.T) {
	st, err := decodeState("ETH-USD", []byte(`{"entry_price":null,"last_buy_time":null,"last_sell_time":1700000000}`))
	require.NoError(t, err)
	assert.False(t, st.Open())
	require.NotNil(t, st.LastSellTime)
	assert.EqualValues(t, 1700000000, *st.LastSellTime)
}
