package backtest

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/newthinker/swingsim/internal/broker"
	"github.com/newthinker/swingsim/internal/core"
	"github.com/newthinker/swingsim/internal/indicator"
	"github.com/newthinker/swingsim/internal/logger"
	"github.com/newthinker/swingsim/internal/strategy"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Rejection reason for an entry whose risk budget buys no whole share.
const RejectZeroShares = "zero_shares"

// Engine replays one ticker's daily and intraday series against the entry
// gate and the position ledger. An Engine runs once; it is not safe for
// concurrent use.
type Engine struct {
	params  broker.Params
	ticker  string
	gate    *strategy.Gate
	sizer   broker.Sizer
	capital *broker.Capital
	ledger  *broker.Ledger
	logger  *zap.Logger

	counters    Counters
	lastAttempt time.Time
	attempted   bool
	ran         bool
}

// NewEngine creates an engine for ticker. Params are validated here so a
// bad configuration fails before any bar is read.
func NewEngine(p broker.Params, ticker string, gate *strategy.Gate, log *zap.Logger) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if gate == nil {
		return nil, core.Errorf(core.ErrInvalidParameters, "entry gate is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		params:   p,
		ticker:   ticker,
		gate:     gate,
		sizer:    broker.NewSizer(p),
		capital:  broker.NewCapital(p.StartingCapital, p.MonthlyContribution),
		ledger:   broker.NewLedger(p),
		logger:   log,
		counters: Counters{Rejections: make(map[string]int)},
	}, nil
}

// Ledger exposes the position ledger for inspection.
func (e *Engine) Ledger() *broker.Ledger { return e.ledger }

// Capital exposes the capital ledger for inspection.
func (e *Engine) Capital() *broker.Capital { return e.capital }

// Run simulates the daily series bar by bar. frame must be aligned with
// daily by index. Intraday bars are grouped by calendar date and replayed in
// time order after each day's entry step. Remaining positions are liquidated
// at the last daily close.
func (e *Engine) Run(daily []core.DailyBar, frame *indicator.Frame, intraday []core.IntradayBar) (*Result, error) {
	if e.ran {
		return nil, errors.New("engine already ran")
	}
	e.ran = true

	if err := validateDaily(daily); err != nil {
		return nil, err
	}
	if frame == nil || frame.Len() != len(daily) {
		n := -1
		if frame != nil {
			n = frame.Len()
		}
		return nil, core.Errorf(core.ErrMalformedInput, "indicator frame has %d bars, daily series has %d", n, len(daily))
	}

	sessions := groupIntraday(intraday)

	for i, bar := range daily {
		if e.capital.DepositMonthly(bar.Date) {
			e.counters.Contributions++
			e.logger.Debug("monthly contribution",
				zap.String("date", core.DayKey(bar.Date)),
				logger.Money("liquidity", e.capital.Liquidity()),
			)
		}

		// one entry attempt per calendar date
		if e.attempted && core.SameDay(e.lastAttempt, bar.Date) {
			e.counters.SkippedDays++
			continue
		}
		e.counters.Days++

		in := strategy.Input{Index: i, Daily: daily, Frame: frame}
		if err := e.tryEnter(in, bar); err != nil {
			return nil, err
		}

		for _, ib := range sessions[core.DayKey(bar.Date)] {
			e.counters.IntradayBars++
			if err := e.replay(ib, bar.Date); err != nil {
				return nil, err
			}
		}

		e.lastAttempt = bar.Date
		e.attempted = true
	}

	if err := e.settle(daily[len(daily)-1]); err != nil {
		return nil, err
	}

	return e.result(daily), nil
}

func (e *Engine) tryEnter(in strategy.Input, bar core.DailyBar) error {
	decision, err := e.gate.Evaluate(in, e.capital.Liquidity())
	if err != nil {
		return fmt.Errorf("evaluating entry on %s: %w", core.DayKey(bar.Date), err)
	}
	if !decision.Enter {
		e.counters.Rejections[decision.RejectedBy]++
		return nil
	}

	shares, cost, err := e.sizer.Size(e.capital.Liquidity(), decision.Price)
	if err != nil {
		return fmt.Errorf("sizing entry on %s: %w", core.DayKey(bar.Date), err)
	}
	if shares == 0 {
		e.counters.ZeroShare++
		e.counters.Rejections[RejectZeroShares]++
		return nil
	}

	if err := e.capital.Withdraw(cost); err != nil {
		if errors.Is(err, core.ErrInsufficientLiquidity) {
			e.counters.Insufficient++
			e.logger.Warn("entry skipped",
				zap.String("date", core.DayKey(bar.Date)),
				logger.Money("cost", cost),
				logger.Money("liquidity", e.capital.Liquidity()),
				zap.Error(err),
			)
			return nil
		}
		return err
	}

	pos := e.ledger.Open(e.ticker, bar.Date, decision.Price, shares)
	e.counters.Entries++
	e.logger.Debug("position opened",
		zap.Int("key", pos.Key),
		zap.String("date", core.DayKey(bar.Date)),
		logger.Price("price", decision.Price),
		zap.Int64("shares", shares),
		logger.Price("stop_loss", pos.AdjustedStopLoss),
		logger.Price("profit_target", pos.AdjustedProfitTarget),
	)
	return nil
}

// replay applies one intraday bar to every open position of the ticker. A
// partial sale is re-checked against the new levels within the same bar.
func (e *Engine) replay(bar core.IntradayBar, day time.Time) error {
	for _, pos := range e.ledger.OpenPositions() {
		if pos.Ticker != e.ticker || !pos.IsOpen() {
			continue
		}
		if err := e.step(pos, bar, day); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) step(pos *broker.Position, bar core.IntradayBar, day time.Time) error {
	if !pos.PartialSaleDone {
		if px, ok := stopFill(bar, pos.AdjustedStopLoss); ok {
			return e.close(pos, broker.CloseStopLoss, bar.Time, px)
		}
		px, ok := targetFill(bar, pos.AdjustedProfitTarget)
		if !ok {
			return nil
		}
		if err := e.partial(pos, bar.Time, px, day); err != nil {
			return err
		}
	}

	px, ok := exitFill(bar, pos.AdjustedStopLoss, pos.AdjustedProfitTarget)
	if !ok {
		return nil
	}
	reason := broker.CloseProfitTarget
	if px.LessThanOrEqual(pos.AdjustedStopLoss) {
		reason = broker.CloseStopLoss
	}
	return e.close(pos, reason, bar.Time, px)
}

func (e *Engine) partial(pos *broker.Position, when time.Time, px decimal.Decimal, day time.Time) error {
	sold, err := e.ledger.PartialSale(pos.Key, when, px, day)
	if err != nil {
		return err
	}
	e.capital.Deposit(px.Mul(decimal.NewFromInt(sold)))
	e.counters.PartialSales++
	e.logger.Debug("partial sale",
		zap.Int("key", pos.Key),
		zap.Time("time", when),
		logger.Price("price", px),
		zap.Int64("shares", sold),
		logger.Price("stop_loss", pos.AdjustedStopLoss),
		logger.Price("profit_target", pos.AdjustedProfitTarget),
	)
	return nil
}

func (e *Engine) close(pos *broker.Position, reason broker.CloseReason, when time.Time, px decimal.Decimal) error {
	sold, err := e.ledger.Close(pos.Key, reason, when, px)
	if err != nil {
		return err
	}
	e.capital.Deposit(px.Mul(decimal.NewFromInt(sold)))
	switch reason {
	case broker.CloseStopLoss:
		e.counters.StopLosses++
	case broker.CloseProfitTarget:
		e.counters.ProfitTargets++
	case broker.CloseEndOfRun:
		e.counters.EndOfRun++
	}
	e.logger.Debug("position closed",
		zap.Int("key", pos.Key),
		zap.String("reason", string(reason)),
		zap.Time("time", when),
		logger.Price("price", px),
		zap.Int64("shares", sold),
	)
	return nil
}

func (e *Engine) result(daily []core.DailyBar) *Result {
	positions := e.ledger.All()
	trades := make([]Trade, 0, len(positions))
	for _, p := range positions {
		trades = append(trades, NewTrade(p))
	}

	names := make([]string, 0)
	for _, c := range e.gate.Conditions() {
		names = append(names, c.Name())
	}

	return &Result{
		Ticker:     e.ticker,
		StartDate:  daily[0].Date,
		EndDate:    daily[len(daily)-1].Date,
		Params:     e.params,
		Conditions: names,
		Positions:  positions,
		Trades:     trades,
		Capital:    e.capital.State(),
		Counters:   e.counters,
		Stats:      CalculateStats(trades, e.capital, daily),
	}
}

// validateDaily requires a non-empty series in non-decreasing date order.
// Repeated dates are allowed and skipped by the one-attempt-per-day guard.
func validateDaily(daily []core.DailyBar) error {
	if len(daily) == 0 {
		return core.Errorf(core.ErrNoData, "daily series is empty")
	}
	for i, bar := range daily {
		if !bar.IsValid() {
			return core.Errorf(core.ErrMalformedInput, "daily bar %d (%s) has invalid prices", i, core.DayKey(bar.Date))
		}
		if i > 0 && core.Day(bar.Date).Before(core.Day(daily[i-1].Date)) {
			return core.Errorf(core.ErrUnorderedData, "daily bar %d (%s) precedes %s",
				i, core.DayKey(bar.Date), core.DayKey(daily[i-1].Date))
		}
	}
	return nil
}

// groupIntraday buckets bars by calendar date and sorts each bucket by time.
func groupIntraday(bars []core.IntradayBar) map[string][]core.IntradayBar {
	sessions := make(map[string][]core.IntradayBar)
	for _, b := range bars {
		k := core.DayKey(b.Time)
		sessions[k] = append(sessions[k], b)
	}
	for _, s := range sessions {
		sort.SliceStable(s, func(i, j int) bool { return s[i].Time.Before(s[j].Time) })
	}
	return sessions
}
