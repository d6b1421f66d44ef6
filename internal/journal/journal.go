// Package journal persists finished simulation runs and their trades.
package journal

import (
	"context"
	"time"

	"github.com/newthinker/swingsim/internal/backtest"
	"github.com/shopspring/decimal"
)

// Run is the journal row of one simulation.
type Run struct {
	RunID              string
	Ticker             string
	RecordedAt         time.Time
	StartDate          time.Time
	EndDate            time.Time
	Conditions         []string
	FinalLiquidity     decimal.Decimal
	TotalContributions decimal.Decimal
	TotalProfit        decimal.Decimal
	TotalReturn        float64
	TotalTrades        int
	WinRate            float64
}

// Journal records runs.
type Journal interface {
	RecordRun(ctx context.Context, res *backtest.Result) error
	Close() error
}
