// Package broker models the simulated brokerage account: cash, positions,
// sizing and the fee schedule.
package broker

import (
	"fmt"
	"time"

	"github.com/newthinker/swingsim/internal/core"
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Params is the immutable strategy configuration for one run.
// Percentages are expressed in percent, e.g. 4 for 4%.
type Params struct {
	// StartingCapital is the cash available before the first bar.
	StartingCapital decimal.Decimal `json:"starting_capital" yaml:"starting_capital"`
	// MonthlyContribution is credited once per calendar month.
	MonthlyContribution decimal.Decimal `json:"monthly_contribution" yaml:"monthly_contribution"`
	// StopLossPct is the first stop-loss distance below entry.
	StopLossPct decimal.Decimal `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	// ProfitTargetPct is the first profit-target distance above entry.
	ProfitTargetPct decimal.Decimal `json:"profit_target_pct" yaml:"profit_target_pct"`
	// MaxRiskPct is the share of liquidity put at risk per trade.
	MaxRiskPct decimal.Decimal `json:"max_risk_pct" yaml:"max_risk_pct"`
	// MaxTradeCost caps the cash cost of a single entry.
	MaxTradeCost decimal.Decimal `json:"max_trade_cost" yaml:"max_trade_cost"`
	// PartialSalePct is the share of a position sold at the first profit target.
	PartialSalePct decimal.Decimal `json:"partial_sale_pct" yaml:"partial_sale_pct"`
}

// DefaultParams returns the parameter set the strategy was tuned with.
func DefaultParams() Params {
	return Params{
		StartingCapital:     decimal.NewFromInt(15000),
		MonthlyContribution: decimal.NewFromInt(1000),
		StopLossPct:         decimal.NewFromInt(4),
		ProfitTargetPct:     decimal.NewFromInt(15),
		MaxRiskPct:          decimal.RequireFromString("1.5"),
		MaxTradeCost:        decimal.NewFromInt(5000),
		PartialSalePct:      decimal.NewFromInt(30),
	}
}

// Validate rejects parameter sets the engine cannot run with.
func (p Params) Validate() error {
	switch {
	case p.StartingCapital.IsNegative():
		return core.Errorf(core.ErrInvalidParameters, "starting capital cannot be negative, got %s", p.StartingCapital)
	case p.MonthlyContribution.IsNegative():
		return core.Errorf(core.ErrInvalidParameters, "monthly contribution cannot be negative, got %s", p.MonthlyContribution)
	case !p.StopLossPct.IsPositive() || p.StopLossPct.GreaterThanOrEqual(hundred):
		return core.Errorf(core.ErrInvalidParameters, "stop loss must be in (0, 100), got %s", p.StopLossPct)
	case !p.ProfitTargetPct.IsPositive():
		return core.Errorf(core.ErrInvalidParameters, "profit target must be positive, got %s", p.ProfitTargetPct)
	case !p.MaxRiskPct.IsPositive():
		return core.Errorf(core.ErrInvalidParameters, "max risk must be positive, got %s", p.MaxRiskPct)
	case !p.MaxTradeCost.IsPositive():
		return core.Errorf(core.ErrInvalidParameters, "max trade cost must be positive, got %s", p.MaxTradeCost)
	case p.PartialSalePct.IsNegative() || p.PartialSalePct.GreaterThan(hundred):
		return core.Errorf(core.ErrInvalidParameters, "partial sale must be in [0, 100], got %s", p.PartialSalePct)
	}
	return nil
}

// StopBelow returns price lowered by the stop-loss percentage.
func (p Params) StopBelow(price decimal.Decimal) decimal.Decimal {
	return price.Mul(one.Sub(p.StopLossPct.Div(hundred)))
}

// TargetAbove returns price raised by the profit-target percentage.
func (p Params) TargetAbove(price decimal.Decimal) decimal.Decimal {
	return price.Mul(one.Add(p.ProfitTargetPct.Div(hundred)))
}

// CloseReason records why a position left the open set.
type CloseReason string

const (
	// CloseNone marks a position that is still open.
	CloseNone CloseReason = ""
	// CloseStopLoss is a fill at or below the adjusted stop.
	CloseStopLoss CloseReason = "stop_loss"
	// CloseProfitTarget is a fill above the stop after the partial sale.
	CloseProfitTarget CloseReason = "profit_target"
	// CloseEndOfRun is the forced liquidation at the last daily close.
	CloseEndOfRun CloseReason = "end_of_run"
)

// Stage tags an adjustment with the life-cycle phase of its position.
type Stage string

const (
	// StageEntry is any adjustment before the partial sale.
	StageEntry Stage = "entry"
	// StagePartial is any adjustment after the partial sale.
	StagePartial Stage = "partial"
)

// Adjustment is one ratchet log record.
type Adjustment struct {
	Date         time.Time       `json:"date" yaml:"date"`
	StopLoss     decimal.Decimal `json:"stop_loss" yaml:"stop_loss"`
	ProfitTarget decimal.Decimal `json:"profit_target" yaml:"profit_target"`
	Stage        Stage           `json:"stage" yaml:"stage"`
}

// String implements fmt.Stringer.
func (a Adjustment) String() string {
	return fmt.Sprintf("%s %s SL=%s PT=%s", core.DayKey(a.Date), a.Stage, a.StopLoss.StringFixed(2), a.ProfitTarget.StringFixed(2))
}
