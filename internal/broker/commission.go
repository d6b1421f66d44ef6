package broker

import "github.com/shopspring/decimal"

// Tiered per-share fee schedule.
var (
	CommissionPerShare = decimal.RequireFromString("0.005")
	CommissionMinimum  = decimal.NewFromInt(1)
	CommissionMaxRate  = decimal.RequireFromString("0.01")
)

// Commission returns the fee for one order leg: shares * 0.005, at least 1.00,
// at most 1% of the leg's value. The cap is applied after the floor, so tiny
// orders pay the cap.
func Commission(shares int64, price decimal.Decimal) decimal.Decimal {
	if shares <= 0 {
		return decimal.Zero
	}
	qty := decimal.NewFromInt(shares)
	fee := decimal.Max(qty.Mul(CommissionPerShare), CommissionMinimum)
	return decimal.Min(fee, qty.Mul(price).Mul(CommissionMaxRate))
}

// PositionCommission sums the entry, partial and final legs of p.
func PositionCommission(p *Position) decimal.Decimal {
	total := Commission(p.ShareCount, p.EntryPrice)
	if p.PartialSaleDone {
		total = total.Add(Commission(p.PartialSaleShareCount, p.PartialSalePrice))
	}
	if !p.IsOpen() {
		total = total.Add(Commission(p.RemainingShareCount, p.ClosePrice))
	}
	return total
}
