package backtest

import (
	"github.com/newthinker/swingsim/internal/core"
	"github.com/shopspring/decimal"
)

// stopFill returns the execution price when bar touches stop. An open at or
// below the stop fills at the open; otherwise a low strictly below the stop
// fills at the stop.
func stopFill(bar core.IntradayBar, stop decimal.Decimal) (decimal.Decimal, bool) {
	switch {
	case bar.Open.LessThanOrEqual(stop):
		return bar.Open, true
	case bar.Low.LessThan(stop):
		return stop, true
	}
	return decimal.Zero, false
}

// targetFill mirrors stopFill on the upside.
func targetFill(bar core.IntradayBar, target decimal.Decimal) (decimal.Decimal, bool) {
	switch {
	case bar.Open.GreaterThanOrEqual(target):
		return bar.Open, true
	case bar.High.GreaterThan(target):
		return target, true
	}
	return decimal.Zero, false
}

// exitFill applies stop then target in order and returns the first fill.
func exitFill(bar core.IntradayBar, stop, target decimal.Decimal) (decimal.Decimal, bool) {
	if px, ok := stopFill(bar, stop); ok {
		return px, true
	}
	return targetFill(bar, target)
}
