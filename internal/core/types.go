package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyBar is one session of the daily series.
type DailyBar struct {
	Date   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
	// IndexReturn is the benchmark return for the window, as a fraction. Optional.
	IndexReturn *float64
}

// IntradayBar is a single intraday candle, e.g. 30 minutes.
type IntradayBar struct {
	Time   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}

// Day truncates t to its calendar date in t's own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DayKey formats the calendar date of t as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// IsValid checks the OHLC relationship of a daily bar.
func (b DailyBar) IsValid() bool {
	return !b.Date.IsZero() && b.Open.IsPositive() && b.High.GreaterThanOrEqual(b.Low)
}
