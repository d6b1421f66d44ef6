package broker

import (
	"time"

	"github.com/newthinker/swingsim/internal/core"
	"github.com/shopspring/decimal"
)

type period struct {
	year  int
	month time.Month
}

// Capital is the cash ledger of a run. It is owned by the simulation loop
// and is not safe for concurrent use.
type Capital struct {
	monthly       decimal.Decimal
	liquidity     decimal.Decimal
	contributions decimal.Decimal
	lastPeriod    *period
}

// CapitalState is a read-only snapshot of the ledger.
type CapitalState struct {
	Liquidity          decimal.Decimal `json:"liquidity" yaml:"liquidity"`
	TotalContributions decimal.Decimal `json:"total_contributions" yaml:"total_contributions"`
	LastContribution   string          `json:"last_contribution,omitempty" yaml:"last_contribution,omitempty"`
}

// NewCapital creates a ledger holding the starting capital. The starting
// capital counts as the first contribution.
func NewCapital(starting, monthly decimal.Decimal) *Capital {
	return &Capital{
		monthly:       monthly,
		liquidity:     starting,
		contributions: starting,
	}
}

// DepositMonthly credits the monthly contribution the first time a date from
// a new (year, month) is seen. It reports whether a credit was made.
func (c *Capital) DepositMonthly(date time.Time) bool {
	p := period{year: date.Year(), month: date.Month()}
	if c.lastPeriod != nil && *c.lastPeriod == p {
		return false
	}
	c.liquidity = c.liquidity.Add(c.monthly)
	c.contributions = c.contributions.Add(c.monthly)
	c.lastPeriod = &p
	return true
}

// Withdraw removes amount from liquidity.
func (c *Capital) Withdraw(amount decimal.Decimal) error {
	if amount.GreaterThan(c.liquidity) {
		return core.Errorf(core.ErrInsufficientLiquidity, "need %s, have %s", amount.StringFixed(2), c.liquidity.StringFixed(2))
	}
	c.liquidity = c.liquidity.Sub(amount)
	return nil
}

// Deposit adds sale proceeds to liquidity.
func (c *Capital) Deposit(amount decimal.Decimal) {
	c.liquidity = c.liquidity.Add(amount)
}

func (c *Capital) Liquidity() decimal.Decimal {
	return c.liquidity
}

func (c *Capital) TotalContributions() decimal.Decimal {
	return c.contributions
}

// State returns a snapshot of the ledger.
func (c *Capital) State() CapitalState {
	s := CapitalState{
		Liquidity:          c.liquidity,
		TotalContributions: c.contributions,
	}
	if c.lastPeriod != nil {
		s.LastContribution = time.Date(c.lastPeriod.year, c.lastPeriod.month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
	}
	return s
}
