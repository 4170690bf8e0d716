/*
hierarchy.go - Time-bounded manager resolution

PURPOSE:
  Finds a valid manager for an agent at a hierarchy role as of a run.
  A hierarchy record is a candidate when its agent matches exactly
  (trimmed) and its level matches the role case-insensitively. The
  candidate is valid when its window [reportsFrom, reportsToEnd] overlaps
  the run window [schemeStart, runAsOf]:

      reportsFrom <= runAsOf  AND  reportsToEnd >= schemeStart

  Resolution order for overlapping duplicate windows is input order,
  first valid match wins. Records with unparseable dates or an empty
  manager id are skipped.
*/
package engine

import (
	"strings"
)

// FindManager returns the manager id of the first hierarchy record valid
// for the agent/role over the run window, or false when none exists.
func FindManager(agentID, role string, records []HierarchyRecord, schemeStart, runAsOf DateOnly) (string, bool) {
	agent := strings.TrimSpace(agentID)
	wantRole := strings.TrimSpace(role)

	for _, rec := range records {
		if strings.TrimSpace(rec.AgentID) != agent {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(rec.Level), wantRole) {
			continue
		}

		from, err := ParseDate(strings.TrimSpace(rec.ReportsFrom))
		if err != nil {
			continue
		}
		end, err := ParseDate(strings.TrimSpace(rec.ReportsToEnd))
		if err != nil {
			continue
		}
		if from.After(runAsOf) || end.Before(schemeStart) {
			continue // window does not overlap the run
		}

		manager := strings.TrimSpace(rec.ManagerID)
		if manager == "" {
			continue
		}
		return manager, true
	}
	return "", false
}
