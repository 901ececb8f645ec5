package collector

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"SignalSentinel/internal/model"
)

// Fetcher retrieves a price series for one instrument.
//
// lookback and interval use the provider notation ("10d", "15m", "1y").
// Bars are returned in ascending time order.
type Fetcher interface {
	Fetch(ctx context.Context, instrument, lookback, interval string) (model.PriceSeries, error)
	Name() string
}

var spanUnits = []struct {
	suffix string
	unit   time.Duration
}{
	// Longer suffixes first so "mo" is not read as "m".
	{"wk", 7 * 24 * time.Hour},
	{"mo", 30 * 24 * time.Hour},
	{"m", time.Minute},
	{"h", time.Hour},
	{"d", 24 * time.Hour},
	{"y", 365 * 24 * time.Hour},
}

// Span parses a provider period such as "15m", "10d", "1wk", "3mo" or "2y".
func Span(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	for _, u := range spanUnits {
		if !strings.HasSuffix(s, u.suffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(s, u.suffix))
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid period %q: %w", s, model.ErrMalformedInput)
		}
		return time.Duration(n) * u.unit, nil
	}
	return 0, fmt.Errorf("invalid period %q: %w", s, model.ErrMalformedInput)
}
