package backtest

import (
	"math"

	"github.com/newthinker/swingsim/internal/broker"
	"github.com/newthinker/swingsim/internal/core"
	"github.com/shopspring/decimal"
)

// CalculateStats computes performance statistics from trades, the final
// capital state and the simulated daily series.
func CalculateStats(trades []Trade, capital *broker.Capital, daily []core.DailyBar) Stats {
	s := Stats{
		TotalProfit:        decimal.Zero,
		Commissions:        decimal.Zero,
		FinalLiquidity:     capital.Liquidity(),
		TotalContributions: capital.TotalContributions(),
	}

	var wins, losses, returns []float64
	var holdTotal int
	for _, t := range trades {
		if !t.IsClosed() {
			continue
		}
		s.TotalTrades++
		s.TotalProfit = s.TotalProfit.Add(t.Profit)
		s.Commissions = s.Commissions.Add(t.Commission)
		holdTotal += t.HoldDays
		returns = append(returns, t.Return/100)
		if t.IsWin() {
			wins = append(wins, t.Return)
		} else {
			losses = append(losses, t.Return)
		}
	}

	s.WinningTrades = len(wins)
	s.LosingTrades = len(losses)
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
		s.AverageHoldDays = float64(holdTotal) / float64(s.TotalTrades)
	}
	s.AverageWin = mean(wins)
	s.AverageLoss = mean(losses)

	s.TotalReturn = returnOn(s.FinalLiquidity, s.TotalContributions)
	s.ReturnAfterCommissions = returnOn(s.FinalLiquidity.Sub(s.Commissions), s.TotalContributions)

	s.MaxDrawdown = calculateMaxDrawdown(returns) * 100
	s.SharpeRatio = calculateSharpeRatio(returns)

	if len(daily) > 0 {
		s.TickerStart = daily[0].Close
		s.TickerEnd = daily[len(daily)-1].Close
		s.TickerReturn = returnOn(s.TickerEnd, s.TickerStart)
		if r := daily[0].IndexReturn; r != nil {
			pct := *r * 100
			s.IndexReturn = &pct
		}
	}

	return s
}

// returnOn is (value/base - 1) in percent, zero when base is zero.
func returnOn(value, base decimal.Decimal) float64 {
	if base.IsZero() {
		return 0
	}
	return value.Div(base).Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// calculateMaxDrawdown finds the largest peak-to-trough decline
func calculateMaxDrawdown(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	var maxDD float64
	var peak float64
	cumulative := 1.0

	for _, r := range returns {
		cumulative *= (1 + r)
		if cumulative > peak {
			peak = cumulative
		}
		if peak > 0 {
			dd := (peak - cumulative) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	return maxDD
}

// calculateSharpeRatio computes risk-adjusted return over per-trade returns.
// Assumes risk-free rate of 0
func calculateSharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	m := mean(returns)

	var variance float64
	for _, r := range returns {
		variance += (r - m) * (r - m)
	}
	stdDev := math.Sqrt(variance / float64(len(returns)-1))

	if stdDev == 0 {
		return 0
	}

	// Annualize (assuming ~252 trading days)
	return (m * 252) / (stdDev * math.Sqrt(252))
}
