package strategy

import (
	"fmt"
	"math"

	"github.com/newthinker/swingsim/internal/indicator"
	"github.com/shopspring/decimal"
)

var prevCloseFloor = decimal.RequireFromString("0.985")

// Names of the built-in entry conditions.
const (
	CondSMA5Over10        = "sma_5_10"
	CondHighAboveAvg      = "high_avg"
	CondEMA50AboveAvg     = "ema_50_avg"
	CondPrevCloseVsOpen   = "prev_close_ge_open"
	CondEMA100BelowClose  = "ema_100_prev_close"
	CondRSIBand           = "rsi"
	CondMACDRising        = "macd"
	condPriceAboveEMAStem = "ema_"
)

// DefaultConditions is the enabled rule set the strategy ships with.
var DefaultConditions = []string{
	CondSMA5Over10,
	CondEMA50AboveAvg,
	CondHighAboveAvg,
	CondPrevCloseVsOpen,
	CondEMA100BelowClose,
}

// PriceAboveEMAName returns the name of the open-above-EMA-n condition.
func PriceAboveEMAName(n int) string {
	return fmt.Sprintf("%s%d", condPriceAboveEMAStem, n)
}

// Builtin returns every built-in condition in display order.
func Builtin() []Condition {
	conds := []Condition{
		NewCondition(CondSMA5Over10, "SMA 5 above SMA 10 on the prior bar", sma5Over10),
		NewCondition(CondHighAboveAvg, "prior high above the average high of the last 10 bars", highAboveAvg),
		NewCondition(CondEMA50AboveAvg, "prior EMA 50 above its average over the last 11 bars", ema50AboveAvg),
		NewCondition(CondPrevCloseVsOpen, "prior close at least 98.5% of prior open", prevCloseVsOpen),
		NewCondition(CondEMA100BelowClose, "prior EMA 100 at most 99% of prior close", ema100BelowClose),
		NewCondition(CondRSIBand, "RSI strictly between 40 and 70", rsiBand),
		NewCondition(CondMACDRising, "MACD histogram rising over the last two bars", macdRising),
	}
	for _, n := range []int{10, 20, 50, 100, 200} {
		conds = append(conds, priceAboveEMA(n))
	}
	return conds
}

func sma5Over10(in Input) (bool, error) {
	if in.Index < 1 {
		return false, nil
	}
	fast, err := in.Indicator(indicator.SMAField(5), in.Index-1)
	if err != nil {
		return false, err
	}
	slow, err := in.Indicator(indicator.SMAField(10), in.Index-1)
	if err != nil {
		return false, err
	}
	return fast > slow, nil
}

func highAboveAvg(in Input) (bool, error) {
	const window = 10
	if in.Index < window {
		return false, nil
	}
	sum := decimal.Zero
	for i := in.Index - window; i < in.Index; i++ {
		bar, err := in.Bar(i)
		if err != nil {
			return false, err
		}
		sum = sum.Add(bar.High)
	}
	prev, err := in.Bar(in.Index - 1)
	if err != nil {
		return false, err
	}
	// high*n > sum avoids rounding the average
	return prev.High.Mul(decimal.NewFromInt(window)).GreaterThan(sum), nil
}

func ema50AboveAvg(in Input) (bool, error) {
	const window = 11
	if in.Index < window {
		return false, nil
	}
	field := indicator.EMAField(50)
	var sum float64
	for i := in.Index - window; i < in.Index; i++ {
		v, err := in.Indicator(field, i)
		if err != nil {
			return false, err
		}
		sum += v
	}
	prev, err := in.Indicator(field, in.Index-1)
	if err != nil {
		return false, err
	}
	return prev > sum/window, nil
}

func prevCloseVsOpen(in Input) (bool, error) {
	if in.Index < 1 {
		return false, nil
	}
	prev, err := in.Bar(in.Index - 1)
	if err != nil {
		return false, err
	}
	return prev.Close.GreaterThanOrEqual(prev.Open.Mul(prevCloseFloor)), nil
}

func ema100BelowClose(in Input) (bool, error) {
	if in.Index < 1 {
		return false, nil
	}
	ema, err := in.Indicator(indicator.EMAField(100), in.Index-1)
	if err != nil {
		return false, err
	}
	prev, err := in.Bar(in.Index - 1)
	if err != nil {
		return false, err
	}
	return ema <= 0.99*prev.Close.InexactFloat64(), nil
}

func rsiBand(in Input) (bool, error) {
	rsi, err := in.Indicator(indicator.FieldRSI, in.Index)
	if err != nil {
		return false, err
	}
	return rsi > 40 && rsi < 70, nil
}

func macdRising(in Input) (bool, error) {
	if in.Index < 2 {
		return false, nil
	}
	older, err := in.Indicator(indicator.FieldMACDHistogram, in.Index-2)
	if err != nil {
		return false, err
	}
	newer, err := in.Indicator(indicator.FieldMACDHistogram, in.Index-1)
	if err != nil {
		return false, err
	}
	return older < newer, nil
}

func priceAboveEMA(n int) Condition {
	field := indicator.EMAField(n)
	return NewCondition(PriceAboveEMAName(n), fmt.Sprintf("open above EMA %d", n), func(in Input) (bool, error) {
		ema, err := in.Indicator(field, in.Index)
		if err != nil {
			return false, err
		}
		price, err := in.EntryPrice()
		if err != nil {
			return false, err
		}
		if math.IsNaN(ema) {
			return false, nil
		}
		return price.InexactFloat64() > ema, nil
	})
}
