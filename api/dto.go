/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/scheme.go: SchemeJSON type
*/
package api

import (
	"encoding/json"

	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/ingest"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// SchemeDTO represents a stored scheme in API responses. Config carries
// the scheme document exactly as it was authored.
type SchemeDTO struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Config    json.RawMessage `json:"config"`
	CreatedAt string          `json:"created_at,omitempty"`
}

// DatasetDTO represents an uploaded dataset in listings.
type DatasetDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	RowCount  int    `json:"row_count"`
	CreatedAt string `json:"created_at,omitempty"`
}

// UploadDatasetResponse reports the outcome of a dataset upload,
// including the non-fatal parse warnings.
type UploadDatasetResponse struct {
	Dataset  DatasetDTO            `json:"dataset"`
	Warnings []ingest.ParseWarning `json:"warnings,omitempty"`
}

// ExecuteRunRequest asks for a scheme to be computed against the stored
// datasets it references.
type ExecuteRunRequest struct {
	SchemeID string `json:"scheme_id"`
	AsOfDate string `json:"as_of_date"`
}

// RunDTO is a full run: metadata plus the result document.
type RunDTO struct {
	ID        string            `json:"id"`
	SchemeID  string            `json:"scheme_id"`
	AsOfDate  string            `json:"as_of_date"`
	CreatedAt string            `json:"created_at,omitempty"`
	Result    *engine.RunResult `json:"result"`
}

// RunSummaryDTO is the result-less listing form of a run.
type RunSummaryDTO struct {
	ID        string `json:"id"`
	SchemeID  string `json:"scheme_id"`
	AsOfDate  string `json:"as_of_date"`
	CreatedAt string `json:"created_at,omitempty"`
}

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
