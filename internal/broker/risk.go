package broker

import (
	"github.com/newthinker/swingsim/internal/core"
	"github.com/shopspring/decimal"
)

// Sizer converts a risk budget into a whole-share quantity.
type Sizer struct {
	maxRiskPct   decimal.Decimal
	stopLossPct  decimal.Decimal
	maxTradeCost decimal.Decimal
}

// NewSizer creates a Sizer from the run parameters.
func NewSizer(p Params) Sizer {
	return Sizer{
		maxRiskPct:   p.MaxRiskPct,
		stopLossPct:  p.StopLossPct,
		maxTradeCost: p.MaxTradeCost,
	}
}

// Size returns the share count and cash cost of an entry at entryPrice.
//
// The risk budget is liquidity * maxRisk%. Shares are the budget divided by
// the per-share loss at the stop, floored. When the resulting cost exceeds
// the trade cap the quantity is recomputed from the cap. A zero share count
// means no trade.
func (s Sizer) Size(liquidity, entryPrice decimal.Decimal) (int64, decimal.Decimal, error) {
	if !s.maxRiskPct.IsPositive() || !s.stopLossPct.IsPositive() || !entryPrice.IsPositive() {
		return 0, decimal.Zero, core.Errorf(core.ErrInvalidParameters,
			"max_risk=%s stop_loss=%s entry_price=%s", s.maxRiskPct, s.stopLossPct, entryPrice)
	}

	riskAmount := liquidity.Mul(s.maxRiskPct).Div(hundred)
	perShareRisk := entryPrice.Mul(s.stopLossPct).Div(hundred)

	shares := riskAmount.Div(perShareRisk).Floor().IntPart()
	if shares < 0 {
		shares = 0
	}
	cost := entryPrice.Mul(decimal.NewFromInt(shares))

	if cost.GreaterThan(s.maxTradeCost) {
		shares = s.maxTradeCost.Div(entryPrice).Floor().IntPart()
		cost = entryPrice.Mul(decimal.NewFromInt(shares))
	}

	return shares, cost, nil
}

// BuyingPower is the notional the risk budget can control at the stop
// distance: liquidity * maxRisk% / stopLoss%.
func (s Sizer) BuyingPower(liquidity decimal.Decimal) decimal.Decimal {
	if !s.stopLossPct.IsPositive() {
		return decimal.Zero
	}
	return liquidity.Mul(s.maxRiskPct).Div(s.stopLossPct)
}
