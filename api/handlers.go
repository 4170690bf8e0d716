/*
handlers.go - HTTP API handlers for the incentive engine

PURPOSE:
  Exposes the incentive engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Schemes:
    GET    /api/schemes                List stored schemes
    POST   /api/schemes                Create scheme from JSON
    GET    /api/schemes/{id}           Get scheme document

  Datasets:
    GET    /api/datasets               List uploaded datasets
    POST   /api/datasets/{name}        Upload CSV dataset (body = raw CSV)

  Runs:
    GET    /api/runs                   List runs
    POST   /api/runs                   Execute a scheme against stored datasets
    GET    /api/runs/{id}              Get run result
    GET    /api/runs/{id}/logs         Get flattened audit entries

  Scenarios:
    GET    /api/scenarios              List demo scenarios
    POST   /api/scenarios/load         Load a demo scenario

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (factory, ingest, engine, store)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, bad scheme config
  - 404: Resource not found
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/factory"
	"github.com/warp/incentive-engine/ingest"
	"github.com/warp/incentive-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store         *sqlite.Store
	SchemeFactory *factory.SchemeFactory
	Logger        *engine.Logger

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, logger *engine.Logger) *Handler {
	return &Handler{
		Store:         store,
		SchemeFactory: factory.NewSchemeFactory(),
		Logger:        logger,
	}
}

// =============================================================================
// SCHEME HANDLERS
// =============================================================================

// ListSchemes returns all stored schemes.
func (h *Handler) ListSchemes(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListSchemes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list schemes", err)
		return
	}

	dtos := make([]SchemeDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, toSchemeDTO(rec))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateScheme stores a new scheme. The request body is the scheme
// document itself; it must pass factory validation before being saved.
func (h *Handler) CreateScheme(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	scheme, err := h.SchemeFactory.ParseScheme(string(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid scheme", err)
		return
	}

	rec := sqlite.SchemeRecord{
		ID:         uuid.New().String(),
		Name:       scheme.Name,
		ConfigJSON: string(body),
		CreatedAt:  time.Now(),
	}
	if err := h.Store.SaveScheme(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save scheme", err)
		return
	}

	writeJSON(w, http.StatusCreated, toSchemeDTO(rec))
}

// GetScheme returns one scheme document.
func (h *Handler) GetScheme(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.Store.GetScheme(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get scheme", err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "Scheme not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toSchemeDTO(*rec))
}

// =============================================================================
// DATASET HANDLERS
// =============================================================================

// ListDatasets returns metadata for all uploaded datasets.
func (h *Handler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	infos, err := h.Store.ListDatasets(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list datasets", err)
		return
	}

	dtos := make([]DatasetDTO, 0, len(infos))
	for _, info := range infos {
		dtos = append(dtos, DatasetDTO{
			ID:        info.ID,
			Name:      info.Name,
			RowCount:  info.RowCount,
			CreatedAt: info.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UploadDataset parses a raw CSV body into records and stores them under
// the dataset name from the URL. Re-uploading a name replaces it.
func (h *Handler) UploadDataset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "Dataset name is required", nil)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	records, warnings, err := ingest.ParseCSV(name, body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse CSV", err)
		return
	}

	rec := sqlite.DatasetRecord{
		ID:        uuid.New().String(),
		Name:      name,
		Rows:      records,
		CreatedAt: time.Now(),
	}
	if err := h.Store.SaveDataset(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save dataset", err)
		return
	}

	writeJSON(w, http.StatusCreated, UploadDatasetResponse{
		Dataset: DatasetDTO{
			ID:        rec.ID,
			Name:      rec.Name,
			RowCount:  len(rec.Rows),
			CreatedAt: rec.CreatedAt.Format(time.RFC3339),
		},
		Warnings: warnings,
	})
}

// =============================================================================
// RUN HANDLERS
// =============================================================================

// ListRuns returns metadata for all runs, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	infos, err := h.Store.ListRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	dtos := make([]RunSummaryDTO, 0, len(infos))
	for _, info := range infos {
		dtos = append(dtos, RunSummaryDTO{
			ID:        info.ID,
			SchemeID:  info.SchemeID,
			AsOfDate:  info.AsOfDate,
			CreatedAt: info.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ExecuteRun loads a stored scheme and every dataset it references,
// computes the run, and persists the result append-only.
func (h *Handler) ExecuteRun(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRunRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.SchemeID == "" || req.AsOfDate == "" {
		writeError(w, http.StatusBadRequest, "scheme_id and as_of_date are required", nil)
		return
	}

	ctx := r.Context()

	schemeRec, err := h.Store.GetScheme(ctx, req.SchemeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get scheme", err)
		return
	}
	if schemeRec == nil {
		writeError(w, http.StatusNotFound, "Scheme not found", nil)
		return
	}

	scheme, err := h.SchemeFactory.ParseScheme(schemeRec.ConfigJSON)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Stored scheme is invalid", err)
		return
	}

	input := engine.RunInput{
		Scheme:   scheme,
		Datasets: make(map[string][]engine.Record),
		AsOfDate: req.AsOfDate,
	}

	for _, name := range datasetNames(scheme) {
		ds, err := h.Store.GetDatasetByName(ctx, name)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load dataset "+name, err)
			return
		}
		if ds == nil {
			writeError(w, http.StatusBadRequest, "Dataset not uploaded: "+name, engine.ErrMissingDataset)
			return
		}
		input.Datasets[name] = ds.Rows
	}

	if scheme.CreditHierarchyFile != "" {
		ds, err := h.Store.GetDatasetByName(ctx, scheme.CreditHierarchyFile)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load hierarchy dataset", err)
			return
		}
		if ds != nil {
			input.Hierarchy = ingest.HierarchyFromRecords(ds.Rows)
		}
	}

	result, err := engine.New(h.Logger).Run(input)
	if err != nil {
		status := http.StatusInternalServerError
		if engine.IsConfigError(err) || errors.Is(err, engine.ErrBadDate) || errors.Is(err, engine.ErrMissingDataset) {
			status = http.StatusBadRequest
		}
		writeError(w, status, "Run failed", err)
		return
	}

	runRec := sqlite.RunRecord{
		ID:        uuid.New().String(),
		SchemeID:  req.SchemeID,
		AsOfDate:  req.AsOfDate,
		Result:    result,
		CreatedAt: time.Now(),
	}
	if err := h.Store.SaveRun(ctx, runRec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save run", err)
		return
	}

	writeJSON(w, http.StatusCreated, toRunDTO(runRec))
}

// GetRun returns one run with its full result.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.Store.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get run", err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "Run not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(*rec))
}

// GetRunLogs returns the flattened audit entries of a run.
func (h *Handler) GetRunLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.Store.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get run", err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "Run not found", nil)
		return
	}

	logs, err := h.Store.GetRunLogs(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get run logs", err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// datasetNames collects the base datasets a scheme reads: the base
// mapping's source plus every KPI mapping source. The hierarchy dataset
// is handled separately because it is optional.
func datasetNames(scheme *engine.SchemeDefinition) []string {
	seen := map[string]bool{}
	var names []string
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		names = append(names, name)
	}

	add(scheme.BaseMapping.SourceFile)
	sections := [][]engine.FieldMapping{
		scheme.KPIConfig.BaseData,
		scheme.KPIConfig.QualificationFields,
		scheme.KPIConfig.AdjustmentFields,
		scheme.KPIConfig.ExclusionFields,
		scheme.KPIConfig.CreditFields,
	}
	for _, section := range sections {
		for _, fm := range section {
			add(fm.SourceFile)
		}
	}
	return names
}

func toSchemeDTO(rec sqlite.SchemeRecord) SchemeDTO {
	return SchemeDTO{
		ID:        rec.ID,
		Name:      rec.Name,
		Config:    []byte(rec.ConfigJSON),
		CreatedAt: rec.CreatedAt.Format(time.RFC3339),
	}
}

func toRunDTO(rec sqlite.RunRecord) RunDTO {
	return RunDTO{
		ID:        rec.ID,
		SchemeID:  rec.SchemeID,
		AsOfDate:  rec.AsOfDate,
		CreatedAt: rec.CreatedAt.Format(time.RFC3339),
		Result:    rec.Result,
	}
}
