/*
tiers.go - Marginal tier payout calculation

PURPOSE:
  Computes a bracket payout from a credited amount and a tier table. Each
  tier's rate applies only to the slice of the amount falling inside that
  tier - marginal/bracket semantics, never flat-rate-on-total.

ALGORITHM:
  Tiers are re-sorted ascending by lower bound (defensive, even when the
  caller's order is wrong). For each tier:
    effectiveStart = max(tier.From, amountAlreadyProcessed)
    effectiveEnd   = min(tier.To ?? +inf, amount)
  A positive slice (effectiveEnd - effectiveStart) is credited at the
  tier's rate: percentage of the slice when IsPercentage, literal per-unit
  multiplier otherwise. Iteration stops once the full amount is processed
  or the amount no longer reaches the next tier's start. The summed payout
  is rounded to the calculator's monetary precision.

EXAMPLE:
  Tiers (0,25000,3%), (25000,125000,7%), (125000,inf,10%) and amount
  200000 pay 25000*0.03 + 100000*0.07 + 75000*0.10 = 15250.00.
*/
package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// TieredPayoutCalculator computes marginal payouts at an explicit
// precision. Rounding is a parameter here, not ambient state.
type TieredPayoutCalculator struct {
	Rounding Rounding
}

// MarginalPayout returns the bracket payout for amount over the tier
// table, rounded to the configured monetary precision. Non-positive
// amounts pay zero.
func (c TieredPayoutCalculator) MarginalPayout(amount decimal.Decimal, tiers []PayoutTier) decimal.Decimal {
	if amount.LessThanOrEqual(decimal.Zero) || len(tiers) == 0 {
		return decimal.Zero
	}

	sorted := make([]PayoutTier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].From.LessThan(sorted[j].From)
	})

	total := decimal.Zero
	processed := decimal.Zero

	for _, tier := range sorted {
		if amount.LessThanOrEqual(tier.From) {
			break
		}

		start := decimal.Max(tier.From, processed)
		end := amount
		if tier.To != nil && tier.To.LessThan(end) {
			end = *tier.To
		}
		if end.GreaterThan(start) {
			slice := end.Sub(start)
			if tier.IsPercentage {
				total = total.Add(slice.Mul(tier.Rate).Div(hundred))
			} else {
				total = total.Add(slice.Mul(tier.Rate))
			}
			processed = end
		}
		if processed.GreaterThanOrEqual(amount) {
			break
		}
	}
	return total.Round(c.Rounding.MoneyPlaces)
}
