// Package report renders simulation results as text summaries and exports
// them as JSON, YAML or CSV.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/newthinker/swingsim/internal/backtest"
	"github.com/newthinker/swingsim/internal/broker"
	"github.com/shopspring/decimal"
)

const (
	dateLayout     = "02/01/2006"
	datetimeLayout = "02/01/2006 15:04"
	rule           = "--------------------------------------------------"
)

func usd(d decimal.Decimal) string { return "$" + d.StringFixed(2) }

func stamp(t time.Time, layout string) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Format(layout)
}

// WriteTradeSummary writes the life of every position: entry, entry-stage
// adjustments, partial sale, partial-stage adjustments, exit and return.
func WriteTradeSummary(w io.Writer, positions []*broker.Position) error {
	var b strings.Builder
	b.WriteString("\nTrade Summary:\n")
	b.WriteString(rule + "\n")

	for _, p := range positions {
		fmt.Fprintf(&b, "Entry %s @ %s | SL @ %s | PT @ %s | Size: %d shares | Position: %s\n",
			stamp(p.EntryDate, dateLayout), usd(p.EntryPrice), usd(p.FirstStopLoss), usd(p.FirstProfitTarget),
			p.ShareCount, usd(p.EntryCost()))
		writeAdjustments(&b, p, broker.StageEntry)

		if p.PartialSaleDone {
			fmt.Fprintf(&b, "First profit target hit on %s @ %s | SL @ %s | PT @ %s | Shares sold: %d | Total Sale: %s\n",
				stamp(p.PartialSaleDate, datetimeLayout), usd(p.PartialSalePrice),
				usd(p.SecondStopLoss), usd(p.SecondProfitTarget),
				p.PartialSaleShareCount, usd(p.PartialProceeds()))
			writeAdjustments(&b, p, broker.StagePartial)
		}

		if p.IsOpen() {
			fmt.Fprintf(&b, "Still open | Shares held: %d\n", p.OpenShares())
		} else {
			fmt.Fprintf(&b, "%s hit on %s @ %s | Shares sold: %d | Total Sale: %s.\n",
				reasonLabel(p.CloseReason), stamp(p.CloseDate, datetimeLayout), usd(p.ClosePrice),
				p.RemainingShareCount, usd(p.FinalProceeds()))
			t := backtest.NewTrade(p)
			fmt.Fprintf(&b, "Total Return: %.2f%% (%s).\n", t.Return, usd(t.Profit))
		}
		b.WriteString(rule + "\n")
	}

	b.WriteString("End of Trade Summary\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func writeAdjustments(b *strings.Builder, p *broker.Position, stage broker.Stage) {
	for _, a := range p.Adjustments {
		if a.Stage != stage {
			continue
		}
		fmt.Fprintf(b, "Adjusted targets on %s | SL @ %s | PT @ %s\n",
			stamp(a.Date, dateLayout), usd(a.StopLoss), usd(a.ProfitTarget))
	}
}

func reasonLabel(r broker.CloseReason) string {
	switch r {
	case broker.CloseStopLoss:
		return "Stop loss"
	case broker.CloseProfitTarget:
		return "Profit target"
	default:
		return "End of Simulation"
	}
}

// WriteFinalSummary writes the aggregate statistics of a run.
func WriteFinalSummary(w io.Writer, res *backtest.Result) error {
	s := res.Stats
	index := "N/A"
	if s.IndexReturn != nil {
		index = fmt.Sprintf("%.2f%%", *s.IndexReturn)
	}

	var b strings.Builder
	b.WriteString("\nFinal Summary:\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Total Profit/Loss: %s  | Total Return: %.2f%%  | Total Capital: %s | Total Contributions: %s\n",
		usd(s.TotalProfit), s.TotalReturn, usd(s.FinalLiquidity), usd(s.TotalContributions))
	fmt.Fprintf(&b, "Total Trades Executed: %d | Winning Trades: %d | Losing Trades: %d | Win Rate: %.2f%%\n",
		s.TotalTrades, s.WinningTrades, s.LosingTrades, s.WinRate)
	fmt.Fprintf(&b, "Average Position Hold Time: %.1f days | Average win: %.2f%% | Average loss: %.2f%%\n",
		s.AverageHoldDays, s.AverageWin, s.AverageLoss)
	fmt.Fprintf(&b, "Commissions: %s | Return After Commissions: %.2f%%\n",
		usd(s.Commissions), s.ReturnAfterCommissions)
	fmt.Fprintf(&b, "Ticker Traded: %s\n", res.Ticker)
	fmt.Fprintf(&b, "%s Performance: %s -> %s (%.2f%%). S&P Return: %s.\n",
		res.Ticker, usd(s.TickerStart), usd(s.TickerEnd), s.TickerReturn, index)
	b.WriteString(rule + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}
