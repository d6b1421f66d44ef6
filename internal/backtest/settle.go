package backtest

import (
	"math"

	"github.com/newthinker/swingsim/internal/broker"
	"github.com/newthinker/swingsim/internal/core"
	"github.com/shopspring/decimal"
)

// settle force-closes every open position at the close of last.
func (e *Engine) settle(last core.DailyBar) error {
	for _, pos := range e.ledger.OpenPositions() {
		if err := e.close(pos, broker.CloseEndOfRun, last.Date, last.Close); err != nil {
			return err
		}
	}
	return nil
}

// NewTrade derives the settled view of a closed position. Open positions
// yield a trade with zero proceeds and no exit.
func NewTrade(p *broker.Position) Trade {
	cost := p.EntryCost()
	proceeds := p.PartialProceeds().Add(p.FinalProceeds())

	t := Trade{
		Key:         p.Key,
		Ticker:      p.Ticker,
		EntryDate:   p.EntryDate,
		EntryPrice:  p.EntryPrice,
		Shares:      p.ShareCount,
		ExitDate:    p.CloseDate,
		ExitPrice:   p.ClosePrice,
		CloseReason: p.CloseReason,
		Cost:        cost,
		Proceeds:    proceeds,
		Commission:  broker.PositionCommission(p),
	}
	if p.PartialSaleDone {
		t.PartialShares = p.PartialSaleShareCount
		t.PartialPrice = p.PartialSalePrice
	}
	if !p.IsOpen() {
		t.ExitShares = p.RemainingShareCount
		t.Profit = proceeds.Sub(cost)
		if cost.IsPositive() {
			t.Return = t.Profit.Div(cost).Mul(decimal.NewFromInt(100)).InexactFloat64()
		}
		t.HoldDays = holdDays(p)
		t.Win = (p.PartialSaleDone && p.PartialSalePrice.GreaterThan(p.EntryPrice)) ||
			p.ClosePrice.GreaterThan(p.EntryPrice)
	}
	return t
}

// holdDays is the whole number of days between entry and close.
func holdDays(p *broker.Position) int {
	return int(math.Floor(p.CloseDate.Sub(p.EntryDate).Hours() / 24))
}
