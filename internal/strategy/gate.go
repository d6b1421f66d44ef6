package strategy

import (
	"fmt"

	"github.com/newthinker/swingsim/internal/broker"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MinBuyingPower is the smallest risk-adjusted notional that allows an entry.
var MinBuyingPower = decimal.NewFromInt(1000)

// Rejection reasons reported by the gate besides condition names.
const (
	RejectAffordability = "affordability"
	RejectBuyingPower   = "buying_power"
)

// Decision is the outcome of one gate evaluation.
type Decision struct {
	Enter bool
	// Price is the entry price (the bar's open) when Enter is true.
	Price decimal.Decimal
	// RejectedBy names the first check that failed.
	RejectedBy string
}

// Gate decides whether to enter at a bar's open.
type Gate struct {
	sizer      broker.Sizer
	conditions []Condition
	logger     *zap.Logger
}

// NewGate creates a gate evaluating conditions in the given order.
func NewGate(p broker.Params, conditions []Condition, logger ...*zap.Logger) *Gate {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Gate{
		sizer:      broker.NewSizer(p),
		conditions: append([]Condition(nil), conditions...),
		logger:     l,
	}
}

// Conditions returns the enabled conditions in evaluation order.
func (g *Gate) Conditions() []Condition {
	return append([]Condition(nil), g.conditions...)
}

// Evaluate runs, in order and stopping at the first failure: affordability
// (liquidity covers one share at the open), the risk-adjusted buying power
// floor, then every enabled condition.
func (g *Gate) Evaluate(in Input, liquidity decimal.Decimal) (Decision, error) {
	price, err := in.EntryPrice()
	if err != nil {
		return Decision{}, err
	}

	if liquidity.LessThan(price) {
		return Decision{RejectedBy: RejectAffordability}, nil
	}
	if g.sizer.BuyingPower(liquidity).LessThan(MinBuyingPower) {
		return Decision{RejectedBy: RejectBuyingPower}, nil
	}

	for _, c := range g.conditions {
		ok, err := c.Check(in)
		if err != nil {
			return Decision{}, fmt.Errorf("condition %s at bar %d: %w", c.Name(), in.Index, err)
		}
		if !ok {
			g.logger.Debug("entry condition failed",
				zap.String("condition", c.Name()),
				zap.Int("bar", in.Index),
			)
			return Decision{RejectedBy: c.Name()}, nil
		}
	}

	return Decision{Enter: true, Price: price}, nil
}
