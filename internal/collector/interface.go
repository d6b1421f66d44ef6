package collector

import (
	"context"
	"time"

	"github.com/newthinker/swingsim/internal/core"
)

// Config holds market data source configuration
type Config struct {
	Source string
	// Ticker is used when the daily data does not name one.
	Ticker       string
	DailyPath    string
	IntradayPath string
	// Start and End bound remote fetches. File sources ignore them.
	Start    time.Time
	End      time.Time
	Interval string
	Extra    map[string]any
}

// DailySeries is a loaded daily history with the ticker it belongs to.
type DailySeries struct {
	Ticker string
	Bars   []core.DailyBar
}

// Provider loads the full daily and intraday history of one ticker. Bars are
// returned sorted by time; windowing is left to the caller so indicators can
// warm up on earlier history.
type Provider interface {
	Name() string
	LoadDaily(ctx context.Context) (*DailySeries, error)
	// LoadIntraday may return an empty slice when no intraday data exists.
	LoadIntraday(ctx context.Context) ([]core.IntradayBar, error)
}

// Factory builds a provider from configuration.
type Factory func(cfg Config) (Provider, error)

// FilterDaily returns the bars dated on or after from, and the index of the
// first kept bar in the input.
func FilterDaily(bars []core.DailyBar, from time.Time) ([]core.DailyBar, int) {
	if from.IsZero() {
		return bars, 0
	}
	start := core.Day(from)
	for i, b := range bars {
		if !core.Day(b.Date).Before(start) {
			return bars[i:], i
		}
	}
	return nil, len(bars)
}

// FilterIntraday returns the bars timestamped on or after from.
func FilterIntraday(bars []core.IntradayBar, from time.Time) []core.IntradayBar {
	if from.IsZero() {
		return bars
	}
	out := make([]core.IntradayBar, 0, len(bars))
	for _, b := range bars {
		if !b.Time.Before(from) {
			out = append(out, b)
		}
	}
	return out
}
