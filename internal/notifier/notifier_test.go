package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"SignalSentinel/internal/model"
	"SignalSentinel/internal/retry"
	"SignalSentinel/internal/valuation"
)

func testPolicy() retry.Policy {
	p := retry.DefaultPolicy(time.Second)
	p.Sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

func newTestTelegram(url string) *TelegramNotifier {
	tg := NewTelegramNotifier("TOKEN", "42", "", testPolicy(), nil)
	tg.BaseURL = url
	return tg
}

var sampleEvent = model.Event{
	ID:         "0b6d7a3e-1111-4c4c-9d9d-000000000001",
	Instrument: "NFLX",
	Kind:       model.EventTakeProfit,
	Action:     model.ActionHold,
	Price:      106,
	EntryPrice: 100,
	Change:     0.06,
	Reason:     "take profit +6.00% (target +5.00%)",
	At:         time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC),
}

func TestTelegram_SendMessage(t *testing.T) {
	var gotPath string
	var payload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	err := newTestTelegram(srv.URL).Notify(context.Background(), Message{Text: "<b>hi</b>"})
	require.NoError(t, err)
	assert.Equal(t, "/botTOKEN/sendMessage", gotPath)
	assert.Equal(t, "42", payload["chat_id"])
	assert.Equal(t, "<b>hi</b>", payload["text"])
	assert.Equal(t, "HTML", payload["parse_mode"])
}

func TestTelegram_SendPhotoWithCaption(t *testing.T) {
	var paths []string
	var caption, chatID string
	var photo []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		caption = r.FormValue("caption")
		chatID = r.FormValue("chat_id")
		f, _, err := r.FormFile("photo")
		require.NoError(t, err)
		photo, _ = io.ReadAll(f)
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	img := []byte("\x89PNG fake")
	err := newTestTelegram(srv.URL).Notify(context.Background(), Message{Text: "chart", Image: img})
	require.NoError(t, err)
	assert.Equal(t, []string{"/botTOKEN/sendPhoto"}, paths)
	assert.Equal(t, "chart", caption)
	assert.Equal(t, "42", chatID)
	assert.Equal(t, img, photo)
}

func TestTelegram_LongTextSentSeparately(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	err := newTestTelegram(srv.URL).Notify(context.Background(), Message{Text: strings.Repeat("x", captionLimit+1), Image: []byte("png")})
	require.NoError(t, err)
	assert.Equal(t, []string{"/botTOKEN/sendMessage", "/botTOKEN/sendPhoto"}, paths)
}

func TestTelegram_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	require.NoError(t, newTestTelegram(srv.URL).Notify(context.Background(), Message{Text: "x"}))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestTelegram_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"ok":false,"description":"Bad Request: chat not found"}`)
	}))
	defer srv.Close()

	err := newTestTelegram(srv.URL).Notify(context.Background(), Message{Text: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrMalformedInput)
	assert.Contains(t, err.Error(), "chat not found")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestTelegram_PollingDispatchesCommands(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu      sync.Mutex
		offsets []string
		reply   map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			mu.Lock()
			offsets = append(offsets, r.URL.Query().Get("offset"))
			first := len(offsets) == 1
			mu.Unlock()
			if first {
				fmt.Fprint(w, `{"ok":true,"result":[{"update_id":7,"message":{"text":" /help "}},{"update_id":8}]}`)
				return
			}
			fmt.Fprint(w, `{"ok":true,"result":[]}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			mu.Lock()
			_ = json.NewDecoder(r.Body).Decode(&reply)
			mu.Unlock()
			fmt.Fprint(w, `{"ok":true}`)
			cancel()
		}
	}))
	defer srv.Close()

	var got []string
	done := make(chan struct{})
	go func() {
		newTestTelegram(srv.URL).StartPolling(ctx, func(_ context.Context, cmd string) string {
			got = append(got, cmd)
			return "pong"
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/help"}, got)
	assert.Equal(t, "pong", reply["text"])
	assert.Equal(t, "0", offsets[0])
}

func TestKafkaSink_PublishesEvent(t *testing.T) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(pm *sarama.ProducerMessage) error {
		if pm.Topic != "sentinel.events" {
			return fmt.Errorf("topic %q", pm.Topic)
		}
		key, _ := pm.Key.Encode()
		if string(key) != "NFLX" {
			return fmt.Errorf("key %q", key)
		}
		value, _ := pm.Value.Encode()
		var e model.Event
		if err := json.Unmarshal(value, &e); err != nil {
			return err
		}
		if e.ID != sampleEvent.ID || e.Kind != model.EventTakeProfit {
			return fmt.Errorf("unexpected event %+v", e)
		}
		return nil
	})

	sink := NewKafkaSink(producer, "sentinel.events", zap.NewNop())
	ev := sampleEvent
	require.NoError(t, sink.Notify(context.Background(), Message{Text: "ignored", Event: &ev}))
	require.NoError(t, sink.Notify(context.Background(), Message{Text: "no event"}))
	require.NoError(t, sink.Close())
}

func TestKafkaSink_PropagatesFailure(t *testing.T) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	sink := NewKafkaSink(producer, "sentinel.events", nil)
	ev := sampleEvent
	err := sink.Notify(context.Background(), Message{Event: &ev})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, sink.Close())
}

type recordingNotifier struct {
	msgs []Message
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, msg Message) error {
	r.msgs = append(r.msgs, msg)
	return r.err
}

func TestMulti_DeliversToAllAndJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	a := &recordingNotifier{err: boom}
	b := &recordingNotifier{}

	err := Multi{a, b, LogNotifier{Logger: zap.NewNop()}}.Notify(context.Background(), Message{Text: "x"})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, a.msgs, 1)
	assert.Len(t, b.msgs, 1)

	assert.NoError(t, Multi{b}.Notify(context.Background(), Message{Text: "y"}))
}

func TestFormatEvent(t *testing.T) {
	out := FormatEvent(sampleEvent)
	assert.Contains(t, out, "NFLX Take Profit")
	assert.Contains(t, out, "+6.00%")
	assert.Contains(t, out, "Price: 106.00")
	assert.Contains(t, out, "Entry: 100.00")
	assert.Contains(t, out, "2025-03-10 14:30 UTC")

	buy := model.Event{Instrument: "A&B", Kind: model.EventBuy, Action: model.ActionBuyStrong, Price: 1, At: sampleEvent.At}
	out = FormatEvent(buy)
	assert.Contains(t, out, "A&amp;B Buy signal triggered")
	assert.Contains(t, out, "Action: BUY_STRONG")
	assert.NotContains(t, out, "Entry:")
}

func TestFormatValuation(t *testing.T) {
	v := model.ValuationSnapshot{CurrentPrice: 61234.5, TrailingAverageCost: 50000, FairValueEstimate: 70000, ValuationRatio: 0.8747}
	out := FormatValuation("BTC-USD", v, valuation.Classify(v.ValuationRatio), time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	assert.Contains(t, out, "$61,234.50")
	assert.Contains(t, out, "0.8747")
	assert.Contains(t, out, "accumulate")
	assert.Contains(t, out, "2025-03-10")
}

func TestFormatPositions(t *testing.T) {
	buy := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC).Unix()
	out := FormatPositions(map[string]model.PositionState{
		"TSLA": {},
		"NVDA": {EntryPrice: decimal.NewNullDecimal(decimal.RequireFromString("120.5")), LastBuyTime: &buy},
	})
	assert.Contains(t, out, "<pre>")
	assert.Contains(t, out, "120.50")
	assert.Contains(t, out, "03-10 14:30")
	assert.Less(t, strings.Index(out, "NVDA"), strings.Index(out, "TSLA"))

	assert.Equal(t, "📦 No positions tracked", FormatPositions(nil))
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "$0.50", money(0.5))
	assert.Equal(t, "$999.00", money(999))
	assert.Equal(t, "$1,000.00", money(1000))
	assert.Equal(t, "$1,234,567.89", money(1234567.891))
	assert.Equal(t, "-$1,500.00", money(-1500))
}

func TestFormatDCA(t *testing.T) {
	out := FormatDCA(model.DCAReminder{Instrument: "BTC-USD", Action: model.ActionBuyStrong, Price: 60000, Amount: 150})
	assert.Contains(t, out, "$150.00")
	assert.Contains(t, out, "BUY_STRONG")
}
