/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	data for testing and demos. Each scenario saves a scheme and uploads
	the datasets it references, so a run can be executed immediately.

AVAILABLE SCENARIOS:

	agent-incentive:  Tiered payout with adjustments, exclusions and credit splits
	flat-commission:  Single unbounded tier, no hierarchy

HOW SCENARIOS WORK:
 1. Save the scheme document through the factory (validated like any upload)
 2. Upload the CSV datasets the scheme references
 3. The caller executes POST /api/runs against the returned scheme id

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "agent-incentive"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Add its scheme JSON and CSVs to the loaders map

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
  - factory/scheme.go: Scheme JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/warp/incentive-engine/ingest"
	"github.com/warp/incentive-engine/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "agent-incentive",
		Name:        "Agent Incentive",
		Description: "Tiered payout with delivery adjustment, cancellation exclusion and manager credit splits",
	},
	{
		ID:          "flat-commission",
		Name:        "Flat Commission",
		Description: "Single unbounded 5% tier, no qualification gate, no hierarchy",
	},
}

type scenarioData struct {
	schemeJSON string
	datasets   map[string]string // dataset name -> CSV content
}

var scenarioLoaders = map[string]scenarioData{
	"agent-incentive": {
		schemeJSON: `{
			"name": "Demo Agent Incentive",
			"effective_from": "2024-01-01",
			"effective_to": "2024-12-31",
			"base_mapping": {
				"source_file": "sales",
				"agent_field": "AgentID",
				"amount_field": "Premium",
				"transaction_date_field": "SaleDate"
			},
			"kpi_config": {
				"qualification_fields": [
					{"name": "TotalPremium", "source_field": "Premium", "data_type": "Number",
					 "evaluation_level": "Agent", "aggregation": "Sum", "source_file": "sales"}
				],
				"adjustment_fields": [
					{"name": "DeliveryStat", "source_field": "Delivery", "data_type": "String",
					 "evaluation_level": "PerRecord", "source_file": "sales"}
				],
				"exclusion_fields": [
					{"name": "PolicyStatus", "source_field": "Status", "data_type": "String",
					 "evaluation_level": "PerRecord", "source_file": "sales"}
				]
			},
			"qualification_rules": [
				{"id": "q-min-premium", "field": "TotalPremium", "operator": ">=", "value": "70000"}
			],
			"exclusion_rules": [
				{"id": "e-cancelled", "field": "PolicyStatus", "operator": "=", "value": "cancelled", "reason": "policy cancelled"}
			],
			"adjustment_rules": [
				{"id": "a-full-delivery", "field": "DeliveryStat", "operator": "CONTAINS", "value": "Fully",
				 "target": "Rate", "adjustment_type": "percentage", "adjustment_value": 200}
			],
			"credit_splits": [
				{"id": "s-l1", "role": "L1", "percentage": 90},
				{"id": "s-l2", "role": "L2", "percentage": 10}
			],
			"payout_tiers": [
				{"from": 0, "to": 25000, "rate": 3},
				{"from": 25000, "to": 125000, "rate": 7},
				{"from": 125000, "rate": 10}
			],
			"credit_hierarchy_file": "hierarchy"
		}`,
		datasets: map[string]string{
			"sales": "AgentID,Premium,SaleDate,Delivery,Status\n" +
				"101,50000,2024-03-10,Fully Delivered,active\n" +
				"101,30000,2024-06-20,Partial,active\n" +
				"102,90000,2024-04-05,Fully Delivered,active\n" +
				"102,15000,2024-05-11,Partial,cancelled\n" +
				"103,20000,2024-07-01,Partial,active\n",
			"hierarchy": "AgentID,Level,ManagerID,ReportsFrom,ReportsToEnd\n" +
				"101,L1,M-201,2024-01-01,2024-12-31\n" +
				"101,L2,M-301,2024-01-01,2024-12-31\n" +
				"102,L1,M-202,2024-01-01,2024-12-31\n",
		},
	},
	"flat-commission": {
		schemeJSON: `{
			"name": "Demo Flat Commission",
			"effective_from": "2024-01-01",
			"base_mapping": {
				"source_file": "orders",
				"agent_field": "Rep",
				"amount_field": "OrderValue",
				"transaction_date_field": "OrderDate"
			},
			"payout_tiers": [
				{"from": 0, "rate": 5}
			]
		}`,
		datasets: map[string]string{
			"orders": "Rep,OrderValue,OrderDate\n" +
				"r-1,1200,2024-02-01\n" +
				"r-1,800,2024-02-15\n" +
				"r-2,4000,2024-03-03\n",
		},
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario saves a predefined scheme and uploads its datasets,
// returning the stored scheme so the caller can execute a run against it.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	data, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown scenario: "+req.ScenarioID, nil)
		return
	}

	schemeDTO, err := h.loadScenario(r.Context(), data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusCreated, schemeDTO)
}

func (h *Handler) loadScenario(ctx context.Context, data scenarioData) (*SchemeDTO, error) {
	scheme, err := h.SchemeFactory.ParseScheme(data.schemeJSON)
	if err != nil {
		return nil, err
	}

	for name, csvData := range data.datasets {
		records, _, err := ingest.ParseCSV(name, []byte(csvData))
		if err != nil {
			return nil, err
		}
		if err := h.Store.SaveDataset(ctx, sqlite.DatasetRecord{
			ID:        uuid.New().String(),
			Name:      name,
			Rows:      records,
			CreatedAt: time.Now(),
		}); err != nil {
			return nil, err
		}
	}

	rec := sqlite.SchemeRecord{
		ID:         uuid.New().String(),
		Name:       scheme.Name,
		ConfigJSON: data.schemeJSON,
		CreatedAt:  time.Now(),
	}
	if err := h.Store.SaveScheme(ctx, rec); err != nil {
		return nil, err
	}

	dto := toSchemeDTO(rec)
	return &dto, nil
}
