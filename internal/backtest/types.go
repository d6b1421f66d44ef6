package backtest

import (
	"time"

	"github.com/newthinker/swingsim/internal/broker"
	"github.com/newthinker/swingsim/internal/core"
	"github.com/newthinker/swingsim/internal/indicator"
	"github.com/shopspring/decimal"
)

// Result holds the complete output of one simulation run
type Result struct {
	RunID     string
	Ticker    string
	StartDate time.Time
	EndDate   time.Time
	Params    broker.Params
	// Conditions are the enabled entry rules in evaluation order.
	Conditions []string
	Positions  []*broker.Position
	Trades     []Trade
	Capital    broker.CapitalState
	Counters   Counters
	Stats      Stats
	// Series is the full loaded daily history, warm-up bars included, and
	// Indicators is aligned with it.
	Series     []core.DailyBar
	Indicators *indicator.Frame
}

// Counters tallies what happened during the daily loop.
type Counters struct {
	Days          int
	SkippedDays   int
	IntradayBars  int
	Entries       int
	ZeroShare     int
	Insufficient  int
	PartialSales  int
	StopLosses    int
	ProfitTargets int
	EndOfRun      int
	Contributions int
	// Rejections counts failed entry attempts by the check that failed.
	Rejections map[string]int
}

// Trade is the settled view of one position.
type Trade struct {
	Key           int                `json:"key" yaml:"key"`
	Ticker        string             `json:"ticker" yaml:"ticker"`
	EntryDate     time.Time          `json:"entry_date" yaml:"entry_date"`
	EntryPrice    decimal.Decimal    `json:"entry_price" yaml:"entry_price"`
	Shares        int64              `json:"shares" yaml:"shares"`
	PartialShares int64              `json:"partial_shares" yaml:"partial_shares"`
	PartialPrice  decimal.Decimal    `json:"partial_price" yaml:"partial_price"`
	ExitDate      time.Time          `json:"exit_date" yaml:"exit_date"`
	ExitPrice     decimal.Decimal    `json:"exit_price" yaml:"exit_price"`
	ExitShares    int64              `json:"exit_shares" yaml:"exit_shares"`
	CloseReason   broker.CloseReason `json:"close_reason" yaml:"close_reason"`
	Cost          decimal.Decimal    `json:"cost" yaml:"cost"`
	Proceeds      decimal.Decimal    `json:"proceeds" yaml:"proceeds"`
	Profit        decimal.Decimal    `json:"profit" yaml:"profit"`
	Commission    decimal.Decimal    `json:"commission" yaml:"commission"`
	Return        float64            `json:"return_pct" yaml:"return_pct"` // Percentage return on cost
	HoldDays      int                `json:"hold_days" yaml:"hold_days"`
	Win           bool               `json:"win" yaml:"win"`
}

// Stats holds performance statistics
type Stats struct {
	TotalTrades   int     `json:"total_trades" yaml:"total_trades"`
	WinningTrades int     `json:"winning_trades" yaml:"winning_trades"`
	LosingTrades  int     `json:"losing_trades" yaml:"losing_trades"`
	WinRate       float64 `json:"win_rate" yaml:"win_rate"` // Percentage of winning trades

	TotalProfit decimal.Decimal `json:"total_profit" yaml:"total_profit"`
	// TotalReturn is liquidity over total contributions minus one, in percent.
	TotalReturn     float64         `json:"total_return" yaml:"total_return"`
	AverageWin      float64         `json:"average_win" yaml:"average_win"`
	AverageLoss     float64         `json:"average_loss" yaml:"average_loss"`
	AverageHoldDays float64         `json:"average_hold_days" yaml:"average_hold_days"`
	Commissions     decimal.Decimal `json:"commissions" yaml:"commissions"`
	// ReturnAfterCommissions deducts Commissions from liquidity before
	// computing TotalReturn.
	ReturnAfterCommissions float64         `json:"return_after_commissions" yaml:"return_after_commissions"`
	MaxDrawdown            float64         `json:"max_drawdown" yaml:"max_drawdown"` // Largest peak-to-trough decline over the trade sequence
	SharpeRatio            float64         `json:"sharpe_ratio" yaml:"sharpe_ratio"` // Risk-adjusted per-trade return (annualized)
	FinalLiquidity         decimal.Decimal `json:"final_liquidity" yaml:"final_liquidity"`
	TotalContributions     decimal.Decimal `json:"total_contributions" yaml:"total_contributions"`
	TickerStart            decimal.Decimal `json:"ticker_start" yaml:"ticker_start"`
	TickerEnd              decimal.Decimal `json:"ticker_end" yaml:"ticker_end"`
	TickerReturn           float64         `json:"ticker_return" yaml:"ticker_return"`
	// IndexReturn is the benchmark return carried by the first bar, in percent.
	IndexReturn *float64 `json:"index_return,omitempty" yaml:"index_return,omitempty"`
}

// IsWin returns true if the trade was profitable
func (t Trade) IsWin() bool {
	return t.Win
}

// IsClosed returns true if the trade has an exit
func (t Trade) IsClosed() bool {
	return t.CloseReason != broker.CloseNone
}
