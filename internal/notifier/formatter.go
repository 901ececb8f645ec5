package notifier

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"SignalSentinel/internal/model"
	"SignalSentinel/internal/valuation"
)

var eventIcons = map[model.EventKind]string{
	model.EventBuy:        "📥",
	model.EventSell:       "📤",
	model.EventTakeProfit: "🎯",
	model.EventStopLoss:   "⚠️",
}

// FormatEvent formats a position transition as a chat alert.
func FormatEvent(e model.Event) string {
	var b strings.Builder
	name := html.EscapeString(e.Instrument)

	switch e.Kind {
	case model.EventTakeProfit:
		fmt.Fprintf(&b, "%s <b>%s Take Profit</b> %+.2f%%\n", eventIcons[e.Kind], name, e.Change*100)
	case model.EventStopLoss:
		fmt.Fprintf(&b, "%s <b>%s Stop Loss</b> %+.2f%%\n", eventIcons[e.Kind], name, e.Change*100)
	case model.EventBuy:
		fmt.Fprintf(&b, "%s <b>%s Buy signal triggered</b>\n", eventIcons[e.Kind], name)
	case model.EventSell:
		fmt.Fprintf(&b, "%s <b>%s Sell signal triggered</b>\n", eventIcons[e.Kind], name)
	default:
		fmt.Fprintf(&b, "<b>%s %s</b>\n", name, html.EscapeString(string(e.Kind)))
	}

	fmt.Fprintf(&b, "Price: %.2f\n", e.Price)
	if e.EntryPrice > 0 {
		fmt.Fprintf(&b, "Entry: %.2f\n", e.EntryPrice)
	}
	fmt.Fprintf(&b, "Action: %s\n", e.Action)
	if e.Reason != "" {
		fmt.Fprintf(&b, "<i>%s</i>\n", html.EscapeString(e.Reason))
	}
	fmt.Fprintf(&b, "%s", e.At.UTC().Format("2006-01-02 15:04 MST"))
	return b.String()
}

// FormatDecision summarises one scoring pass for logs and /status replies.
func FormatDecision(instrument string, snap model.IndicatorSnapshot, d model.Decision) string {
	return fmt.Sprintf("%s price %.2f | RSI %.1f | MACD %.3f/%.3f | BB %.2f-%.2f | buy %d sell %d -> %s",
		instrument, snap.Close, snap.RSI, snap.MACD, snap.MACDSignal, snap.BBLower, snap.BBUpper,
		d.BuyScore, d.SellScore, d.Action)
}

// FormatValuation formats the daily valuation report.
func FormatValuation(instrument string, v model.ValuationSnapshot, band valuation.Band, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📅 <b>%s valuation</b> | %s\n\n", html.EscapeString(instrument), at.Format("2006-01-02"))
	fmt.Fprintf(&b, "💰 Current price: %s\n", money(v.CurrentPrice))
	fmt.Fprintf(&b, "📊 Trailing average cost: %s\n", money(v.TrailingAverageCost))
	fmt.Fprintf(&b, "📈 Trend fair value: %s\n", money(v.FairValueEstimate))
	fmt.Fprintf(&b, "🔢 Valuation ratio: %.4f\n", v.ValuationRatio)
	fmt.Fprintf(&b, "📌 Zone: <b>%s</b>\n", html.EscapeString(band.Label))
	fmt.Fprintf(&b, "%s", html.EscapeString(band.Advice))
	return b.String()
}

// FormatDCA formats a fixed-investment reminder.
func FormatDCA(r model.DCAReminder) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🪙 <b>%s fixed investment reminder</b>\n", html.EscapeString(r.Instrument))
	fmt.Fprintf(&b, "Current price: %s\n", money(r.Price))
	fmt.Fprintf(&b, "Recommendation: %s\n", r.Action)
	fmt.Fprintf(&b, "Planned amount: %s", money(r.Amount))
	return b.String()
}

// FormatPositions renders the stored positions as a monospace table.
func FormatPositions(states map[string]model.PositionState) string {
	if len(states) == 0 {
		return "📦 No positions tracked"
	}

	names := make([]string, 0, len(states))
	for k := range states {
		names = append(names, k)
	}
	sort.Strings(names)

	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"Instrument", "State", "Entry", "Last buy", "Last sell"})
	for _, name := range names {
		st := states[name]
		state, entry := "flat", "-"
		if st.Open() {
			state = "open"
			entry = st.EntryPrice.Decimal.StringFixed(2)
		}
		tw.AppendRow(table.Row{name, state, entry, stamp(st.LastBuyTime), stamp(st.LastSellTime)})
	}
	tw.SetStyle(table.StyleLight)

	return "📦 <b>Positions</b>\n<pre>" + html.EscapeString(tw.Render()) + "</pre>"
}

// FormatHelp lists the supported commands.
func FormatHelp() string {
	return strings.Join([]string{
		"<b>Commands</b>",
		"/positions - tracked positions",
		"/valuation - run the valuation report now",
		"/status SYMBOL - latest indicator scores",
		"/clear SYMBOL - forget the stored position",
		"/help - this message",
	}, "\n")
}

func stamp(ts *int64) string {
	if ts == nil {
		return "-"
	}
	return time.Unix(*ts, 0).UTC().Format("01-02 15:04")
}

// money formats v with thousands separators, e.g. $61,234.50.
func money(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac := s[:len(s)-3], s[len(s)-3:]

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := "$" + b.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}
