/*
split.go - Hierarchical credit distribution

PURPOSE:
  Allocates percentages of an agent's base payout to the managers holding
  the roles named by the scheme's credit splits. Distribution is additive
  bookkeeping of where credit flows; the agent's own recorded payout is
  never reduced.

BEHAVIOR:
  - Splits with a non-positive percentage or a missing role are skipped
    with a warning.
  - A split whose manager resolves gets a CreditDistributionEntry keyed by
    the manager plus a CreditSplit success log against the source agent.
  - A split whose manager does not resolve logs a CreditSplit failure
    entry; nothing is distributed.
  - When splits are configured but the hierarchy dataset is absent or
    empty, one explanatory log entry is emitted per agent and no splits
    are attempted.

SEE ALSO:
  - hierarchy.go: Manager resolution
*/
package engine

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CreditAllocation pairs a distribution entry with the manager it targets.
type CreditAllocation struct {
	ManagerID string
	Entry     CreditDistributionEntry
}

// CreditSplitDistributor allocates split percentages of base payouts.
type CreditSplitDistributor struct {
	scheme    *SchemeDefinition
	hierarchy []HierarchyRecord
	rounding  Rounding
	logger    *Logger
}

func NewCreditSplitDistributor(scheme *SchemeDefinition, hierarchy []HierarchyRecord, rounding Rounding, logger *Logger) *CreditSplitDistributor {
	return &CreditSplitDistributor{scheme: scheme, hierarchy: hierarchy, rounding: rounding, logger: logger}
}

// Distribute resolves every configured split for one agent's base payout.
// Callers invoke it only for positive payouts.
func (d *CreditSplitDistributor) Distribute(agentID string, basePayout decimal.Decimal, schemeStart, runAsOf DateOnly) ([]CreditAllocation, []RuleLogEntry) {
	if len(d.scheme.CreditSplits) == 0 {
		return nil, nil
	}

	if len(d.hierarchy) == 0 {
		return nil, []RuleLogEntry{{
			RuleType:  RuleCreditSplit,
			AgentID:   agentID,
			Message:   "credit splits configured but no hierarchy data supplied; no distributions made",
			Timestamp: time.Now().UTC(),
		}}
	}

	var allocations []CreditAllocation
	var logs []RuleLogEntry

	for _, split := range d.scheme.CreditSplits {
		role := strings.TrimSpace(split.Role)
		if role == "" || split.Percentage.LessThanOrEqual(decimal.Zero) {
			d.logger.Warnf("split", "skipping credit split %s: missing role or non-positive percentage", split.ID)
			continue
		}

		manager, found := FindManager(agentID, role, d.hierarchy, schemeStart, runAsOf)
		if !found {
			logs = append(logs, RuleLogEntry{
				RuleType: RuleCreditSplit,
				RuleID:   split.ID,
				AgentID:  agentID,
				Message:  "no valid manager found for role " + role + "; split not distributed",
				Details: map[string]string{
					"role":       role,
					"percentage": d.rounding.Rate(split.Percentage),
				},
				Timestamp: time.Now().UTC(),
			})
			continue
		}

		splitAmount := basePayout.Mul(split.Percentage).Div(hundred)
		allocations = append(allocations, CreditAllocation{
			ManagerID: manager,
			Entry: CreditDistributionEntry{
				FromAgent:           agentID,
				Role:                role,
				Amount:              d.rounding.Money(splitAmount),
				SplitRuleID:         split.ID,
				BasePayoutFromAgent: d.rounding.Money(basePayout),
				PercentageApplied:   d.rounding.Rate(split.Percentage),
				Timestamp:           time.Now().UTC(),
			},
		})
		logs = append(logs, RuleLogEntry{
			RuleType: RuleCreditSplit,
			RuleID:   split.ID,
			AgentID:  agentID,
			Message:  "credited " + d.rounding.Money(splitAmount) + " to manager " + manager + " (" + role + ")",
			Details: map[string]string{
				"manager":    manager,
				"role":       role,
				"percentage": d.rounding.Rate(split.Percentage),
				"amount":     d.rounding.Money(splitAmount),
			},
			Timestamp: time.Now().UTC(),
		})
	}
	return allocations, logs
}
