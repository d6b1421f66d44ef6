package backtest_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/newthinker/swingsim/internal/backtest"
	"github.com/newthinker/swingsim/internal/broker"
	"github.com/newthinker/swingsim/internal/core"
	"github.com/newthinker/swingsim/internal/indicator"
	"github.com/newthinker/swingsim/internal/strategy"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
}

func at(m time.Month, d, hour, minute int) time.Time {
	return time.Date(2024, m, d, hour, minute, 0, 0, time.UTC)
}

func dbar(date time.Time, open, high, low, close string) core.DailyBar {
	return core.DailyBar{Date: date, Open: dec(open), High: dec(high), Low: dec(low), Close: dec(close), Volume: 1000}
}

func ibar(ts time.Time, open, high, low, close string) core.IntradayBar {
	return core.IntradayBar{Time: ts, Open: dec(open), High: dec(high), Low: dec(low), Close: dec(close), Volume: 100}
}

// enterOn passes only at the given bar indices.
func enterOn(indices ...int) strategy.Condition {
	set := make(map[int]bool, len(indices))
	for _, i := range indices {
		set[i] = true
	}
	return strategy.NewCondition("enter_on", "test", func(in strategy.Input) (bool, error) {
		return set[in.Index], nil
	})
}

func run(t *testing.T, p broker.Params, cond strategy.Condition, daily []core.DailyBar, intraday []core.IntradayBar) *backtest.Result {
	t.Helper()
	var conds []strategy.Condition
	if cond != nil {
		conds = []strategy.Condition{cond}
	}
	e, err := backtest.NewEngine(p, "VRT", strategy.NewGate(p, conds), nil)
	require.NoError(t, err)
	res, err := e.Run(daily, indicator.NewFrame(len(daily)), intraday)
	require.NoError(t, err)
	return res
}

func TestEngine_GapDownStopScenario(t *testing.T) {
	daily := []core.DailyBar{
		dbar(day(1, 2), "100", "101", "99", "100"),
		dbar(day(1, 3), "90", "91", "88", "89"),
	}
	intraday := []core.IntradayBar{
		ibar(at(1, 3, 9, 30), "90", "91", "88", "89"),
	}

	res := run(t, broker.DefaultParams(), enterOn(0), daily, intraday)

	require.Len(t, res.Positions, 1)
	pos := res.Positions[0]
	assert.Equal(t, int64(50), pos.ShareCount)
	assert.True(t, pos.FirstStopLoss.Equal(dec("96")))
	assert.True(t, pos.FirstProfitTarget.Equal(dec("115")))
	assert.Equal(t, broker.CloseStopLoss, pos.CloseReason)
	assert.True(t, pos.ClosePrice.Equal(dec("90")), "gap fill at the open, got %s", pos.ClosePrice)
	assert.Equal(t, int64(50), pos.RemainingShareCount)
	assert.Equal(t, at(1, 3, 9, 30), pos.CloseDate)

	trade := res.Trades[0]
	assert.True(t, trade.Profit.Equal(dec("-500")), "profit %s", trade.Profit)
	assert.InDelta(t, -10.0, trade.Return, 1e-9)
	assert.False(t, trade.Win)
	assert.Equal(t, 1, trade.HoldDays)
	assert.True(t, trade.Commission.Equal(dec("2")))

	// 15000 + 1000 contribution - 5000 + 4500
	assert.True(t, res.Capital.Liquidity.Equal(dec("15500")), "liquidity %s", res.Capital.Liquidity)
	assert.True(t, res.Capital.TotalContributions.Equal(dec("16000")))
	assert.Equal(t, 1, res.Counters.StopLosses)
	assert.Equal(t, 1, res.Stats.LosingTrades)
}

func TestEngine_PartialSaleThenProfitTarget(t *testing.T) {
	daily := []core.DailyBar{
		dbar(day(1, 2), "100", "101", "99", "100"),
		dbar(day(1, 3), "110", "140", "99", "135"),
		dbar(day(1, 4), "135", "136", "134", "135"),
	}
	intraday := []core.IntradayBar{
		// partial at 115; the rest of the bar stays inside the second levels
		ibar(at(1, 3, 9, 30), "110", "118", "111", "117"),
		ibar(at(1, 3, 10, 0), "133", "134", "132", "133"),
	}

	res := run(t, broker.DefaultParams(), enterOn(0), daily, intraday)

	pos := res.Positions[0]
	require.True(t, pos.PartialSaleDone)
	assert.True(t, pos.PartialSalePrice.Equal(dec("115")))
	assert.Equal(t, int64(15), pos.PartialSaleShareCount)
	assert.Equal(t, int64(35), pos.RemainingShareCount)
	assert.Equal(t, int64(50), pos.PartialSaleShareCount+pos.RemainingShareCount)
	assert.True(t, pos.SecondStopLoss.Equal(dec("110.4")))
	assert.True(t, pos.SecondProfitTarget.Equal(dec("132.25")))

	assert.Equal(t, broker.CloseProfitTarget, pos.CloseReason)
	assert.True(t, pos.ClosePrice.Equal(dec("133")), "gap above target fills at open, got %s", pos.ClosePrice)
	assert.Equal(t, at(1, 3, 10, 0), pos.CloseDate)

	// 15*115 + 35*133 - 5000
	assert.True(t, res.Trades[0].Profit.Equal(dec("1380")), "profit %s", res.Trades[0].Profit)
	assert.True(t, res.Trades[0].Win)

	last := pos.Adjustments[len(pos.Adjustments)-1]
	assert.Equal(t, broker.StagePartial, last.Stage)
	assert.Equal(t, day(1, 3), last.Date, "adjustments are dated by session")
}

func TestEngine_PartialAndStopInSameBar(t *testing.T) {
	daily := []core.DailyBar{
		dbar(day(1, 2), "100", "101", "99", "100"),
		dbar(day(1, 3), "116", "117", "105", "110"),
	}
	intraday := []core.IntradayBar{
		ibar(at(1, 3, 9, 30), "116", "117", "105", "110"),
	}

	res := run(t, broker.DefaultParams(), enterOn(0), daily, intraday)

	pos := res.Positions[0]
	require.True(t, pos.PartialSaleDone)
	assert.True(t, pos.PartialSalePrice.Equal(dec("116")), "gap above target fills at open, got %s", pos.PartialSalePrice)
	assert.True(t, pos.SecondStopLoss.Equal(dec("110.4")), "second levels come from the target, got %s", pos.SecondStopLoss)

	assert.Equal(t, broker.CloseStopLoss, pos.CloseReason)
	assert.True(t, pos.ClosePrice.Equal(dec("110.4")), "got %s", pos.ClosePrice)
	assert.Equal(t, at(1, 3, 9, 30), pos.CloseDate)
	assert.Equal(t, pos.PartialSaleDate, pos.CloseDate)
	assert.Equal(t, 1, res.Counters.PartialSales)
	assert.Equal(t, 1, res.Counters.StopLosses)
	assert.Equal(t, 0, res.Counters.EndOfRun)

	// 15*116 + 35*110.4 - 5000
	assert.True(t, res.Trades[0].Profit.Equal(dec("604")), "profit %s", res.Trades[0].Profit)
}

func TestEngine_PostPartialStop(t *testing.T) {
	daily := []core.DailyBar{
		dbar(day(1, 2), "100", "101", "99", "100"),
		dbar(day(1, 3), "113", "116", "110", "111"),
	}
	intraday := []core.IntradayBar{
		ibar(at(1, 3, 9, 30), "113", "116", "112", "115"),
		ibar(at(1, 3, 10, 0), "112", "113", "110", "111"),
	}

	res := run(t, broker.DefaultParams(), enterOn(0), daily, intraday)

	pos := res.Positions[0]
	assert.Equal(t, at(1, 3, 9, 30), pos.PartialSaleDate)
	assert.Equal(t, broker.CloseStopLoss, pos.CloseReason)
	assert.True(t, pos.ClosePrice.Equal(dec("110.4")), "limit fill at the second stop, got %s", pos.ClosePrice)
	assert.Equal(t, at(1, 3, 10, 0), pos.CloseDate)
	assert.True(t, res.Trades[0].Win, "partial above entry counts as a win")
}

func TestEngine_EndOfRunLiquidation(t *testing.T) {
	daily := []core.DailyBar{
		dbar(day(1, 2), "100", "101", "99", "100"),
		dbar(day(1, 3), "101", "102", "100", "102"),
	}

	res := run(t, broker.DefaultParams(), enterOn(0), daily, nil)

	pos := res.Positions[0]
	assert.Equal(t, broker.CloseEndOfRun, pos.CloseReason)
	assert.True(t, pos.ClosePrice.Equal(dec("102")))
	assert.Equal(t, day(1, 3), pos.CloseDate)
	assert.Equal(t, pos.ShareCount, pos.RemainingShareCount)
	assert.Equal(t, 1, res.Counters.EndOfRun)
	assert.True(t, res.Capital.Liquidity.Equal(dec("16100")))
}

func TestEngine_RatchetAcrossEntries(t *testing.T) {
	daily := []core.DailyBar{
		dbar(day(1, 2), "100", "101", "99", "100"),
		dbar(day(1, 3), "110", "111", "109", "110"),
		dbar(day(1, 4), "110", "111", "109", "110"),
	}
	intraday := []core.IntradayBar{
		// stops both positions at the shared 105.6 level
		ibar(at(1, 4, 9, 30), "106", "107", "105", "105.5"),
	}

	res := run(t, broker.DefaultParams(), enterOn(0, 1), daily, intraday)

	require.Len(t, res.Positions, 2)
	for _, pos := range res.Positions {
		assert.Equal(t, broker.CloseStopLoss, pos.CloseReason)
		assert.True(t, pos.ClosePrice.Equal(dec("105.6")), "key %d closed at %s", pos.Key, pos.ClosePrice)
	}
	assert.True(t, res.Trades[0].Win, "first position was stopped above its entry")
}

func TestEngine_MonthlyContributionOncePerMonth(t *testing.T) {
	daily := []core.DailyBar{
		dbar(day(1, 2), "100", "101", "99", "100"),
		dbar(day(1, 3), "100", "101", "99", "100"),
		dbar(day(2, 1), "100", "101", "99", "100"),
	}

	res := run(t, broker.DefaultParams(), enterOn(), daily, nil)

	assert.Equal(t, 2, res.Counters.Contributions)
	assert.True(t, res.Capital.Liquidity.Equal(dec("17000")))
	assert.True(t, res.Capital.TotalContributions.Equal(dec("17000")))
	assert.Equal(t, "2024-02", res.Capital.LastContribution)
}

func TestEngine_SameDateBarIsSkipped(t *testing.T) {
	daily := []core.DailyBar{
		dbar(day(1, 2), "100", "101", "99", "100"),
		dbar(day(1, 2), "100", "101", "99", "100"),
	}

	res := run(t, broker.DefaultParams(), nil, daily, nil)

	assert.Len(t, res.Positions, 1)
	assert.Equal(t, 1, res.Counters.SkippedDays)
	assert.Equal(t, 1, res.Counters.Days)
}

func TestEngine_ZeroSharesMeansNoTrade(t *testing.T) {
	daily := []core.DailyBar{dbar(day(1, 2), "15000", "15001", "14999", "15000")}

	res := run(t, broker.DefaultParams(), nil, daily, nil)

	assert.Empty(t, res.Positions)
	assert.Equal(t, 1, res.Counters.Rejections[backtest.RejectZeroShares])
}

func TestEngine_InsufficientLiquiditySkipsEntry(t *testing.T) {
	p := broker.DefaultParams()
	p.MaxRiskPct = dec("10")
	p.MaxTradeCost = dec("1000000")
	daily := []core.DailyBar{dbar(day(1, 2), "100", "101", "99", "100")}

	res := run(t, p, nil, daily, nil)

	assert.Empty(t, res.Positions)
	assert.Equal(t, 1, res.Counters.Insufficient)
	assert.True(t, res.Capital.Liquidity.Equal(dec("16000")))
}

func TestEngine_GateRejections(t *testing.T) {
	daily := []core.DailyBar{
		dbar(day(1, 2), "100", "101", "99", "100"),
		dbar(day(1, 3), "100", "101", "99", "100"),
	}

	res := run(t, broker.DefaultParams(), enterOn(), daily, nil)

	assert.Equal(t, 2, res.Counters.Rejections["enter_on"])
	assert.Equal(t, []string{"enter_on"}, res.Conditions)
}

func TestEngine_InputErrors(t *testing.T) {
	p := broker.DefaultParams()
	newEngine := func() *backtest.Engine {
		e, err := backtest.NewEngine(p, "VRT", strategy.NewGate(p, nil), nil)
		require.NoError(t, err)
		return e
	}

	_, err := newEngine().Run(nil, indicator.NewFrame(0), nil)
	assert.ErrorIs(t, err, core.ErrNoData)

	unordered := []core.DailyBar{
		dbar(day(1, 3), "100", "101", "99", "100"),
		dbar(day(1, 2), "100", "101", "99", "100"),
	}
	_, err = newEngine().Run(unordered, indicator.NewFrame(2), nil)
	assert.ErrorIs(t, err, core.ErrUnorderedData)

	_, err = newEngine().Run(unordered[:1], indicator.NewFrame(5), nil)
	assert.ErrorIs(t, err, core.ErrMalformedInput)

	bad := p
	bad.StopLossPct = decimal.Zero
	_, err = backtest.NewEngine(bad, "VRT", strategy.NewGate(p, nil), nil)
	assert.ErrorIs(t, err, core.ErrInvalidParameters)
}

func TestEngine_MissingIndicatorAbortsRun(t *testing.T) {
	p := broker.DefaultParams()
	conds, err := strategy.NewRegistry().Select([]string{strategy.CondRSIBand})
	require.NoError(t, err)
	e, err := backtest.NewEngine(p, "VRT", strategy.NewGate(p, conds), nil)
	require.NoError(t, err)

	_, err = e.Run([]core.DailyBar{dbar(day(1, 2), "100", "101", "99", "100")}, indicator.NewFrame(1), nil)
	assert.ErrorIs(t, err, core.ErrMissingField)
}

// randomSeries builds a wandering daily series with four intraday bars a day.
func randomSeries(rng *rand.Rand, days int) ([]core.DailyBar, []core.IntradayBar) {
	var daily []core.DailyBar
	var intraday []core.IntradayBar
	price := 100.0
	date := day(1, 1)
	for len(daily) < days {
		date = date.AddDate(0, 0, 1)
		if date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
			continue
		}
		open := price
		hi, lo := open, open
		for k := 0; k < 4; k++ {
			o := price
			c := o * (1 + (rng.Float64()-0.5)*0.08)
			h := max(o, c) * (1 + rng.Float64()*0.02)
			l := min(o, c) * (1 - rng.Float64()*0.02)
			intraday = append(intraday, core.IntradayBar{
				Time:  date.Add(time.Duration(9*60+30+30*k) * time.Minute),
				Open:  decimal.NewFromFloat(o).Round(2),
				High:  decimal.NewFromFloat(h).Round(2),
				Low:   decimal.NewFromFloat(l).Round(2),
				Close: decimal.NewFromFloat(c).Round(2),
			})
			hi, lo, price = max(hi, h), min(lo, l), c
		}
		daily = append(daily, core.DailyBar{
			Date:  date,
			Open:  decimal.NewFromFloat(open).Round(2),
			High:  decimal.NewFromFloat(hi).Round(2),
			Low:   decimal.NewFromFloat(lo).Round(2),
			Close: decimal.NewFromFloat(price).Round(2),
		})
	}
	return daily, intraday
}

func TestEngine_CapitalAndShareConservation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 20; trial++ {
		daily, intraday := randomSeries(rng, 90)
		every := strategy.NewCondition("coin", "test", func(in strategy.Input) (bool, error) {
			return in.Index%3 == 0, nil
		})

		res := run(t, broker.DefaultParams(), every, daily, intraday)

		expected := res.Capital.TotalContributions
		for _, pos := range res.Positions {
			require.False(t, pos.IsOpen(), "key %d left open", pos.Key)
			expected = expected.Sub(pos.EntryCost()).Add(pos.PartialProceeds()).Add(pos.FinalProceeds())
			if pos.PartialSaleDone {
				assert.Equal(t, pos.ShareCount, pos.PartialSaleShareCount+pos.RemainingShareCount)
			}
			for i := 1; i < len(pos.Adjustments); i++ {
				prev, cur := pos.Adjustments[i-1], pos.Adjustments[i]
				assert.False(t, cur.StopLoss.LessThan(prev.StopLoss), "key %d stop loosened", pos.Key)
				assert.False(t, cur.ProfitTarget.LessThan(prev.ProfitTarget), "key %d target lowered", pos.Key)
			}
		}
		assert.True(t, res.Capital.Liquidity.Equal(expected),
			"trial %d: liquidity %s, expected %s", trial, res.Capital.Liquidity, expected)
	}
}
