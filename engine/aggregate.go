package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AGENT AGGREGATION - group processed records and sum credited amounts
// =============================================================================

// AgentTotals is one agent's processed records and their summed credited
// amount. Excluded records are in Records but contribute zero to the sum.
type AgentTotals struct {
	AgentID             string
	Records             []ProcessedRecord
	TotalCreditedAmount decimal.Decimal
}

// AggregateByAgent groups processed records by their resolved agent
// identity. Records with a missing or empty agent id are dropped from
// payout processing entirely: no payout, no logs. That is a deliberate
// drop, not an error.
func AggregateByAgent(processed []ProcessedRecord) map[string]*AgentTotals {
	totals := make(map[string]*AgentTotals)
	for _, pr := range processed {
		if pr.AgentID == "" {
			continue
		}
		t, ok := totals[pr.AgentID]
		if !ok {
			t = &AgentTotals{AgentID: pr.AgentID, TotalCreditedAmount: decimal.Zero}
			totals[pr.AgentID] = t
		}
		t.Records = append(t.Records, pr)
		t.TotalCreditedAmount = t.TotalCreditedAmount.Add(pr.AdjustedAmount)
	}
	return totals
}
