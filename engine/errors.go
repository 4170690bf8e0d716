/*
errors.go - Centralized error types for the payout engine

PURPOSE:
  All fatal error types in one place. The engine has a strict two-tier
  failure policy: configuration problems abort the run with one of these
  errors before any processing begins; everything that goes wrong inside a
  record or rule degrades gracefully to a warning or log entry instead.

ERROR CATEGORIES:
  1. Scheme errors   - missing scheme, incomplete base mapping
  2. Date errors     - unparseable run or scheme dates
  3. Dataset errors  - missing base dataset

USAGE:
  if errors.Is(err, engine.ErrMissingBaseMapping) { ... }

SEE ALSO:
  - run.go: The only place fatal errors are raised
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMissingScheme is returned when a run is started without a scheme.
	ErrMissingScheme = errors.New("scheme definition is required")

	// ErrMissingBaseMapping is returned when baseMapping lacks one of its
	// four required fields.
	ErrMissingBaseMapping = errors.New("incomplete base mapping")

	// ErrBadDate is returned when the run as-of date or the scheme
	// effective-from date is not a valid YYYY-MM-DD calendar date.
	ErrBadDate = errors.New("invalid calendar date")

	// ErrMissingDataset is returned when the base dataset named by the
	// scheme is absent from the run input.
	ErrMissingDataset = errors.New("base dataset not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry the offending field
// =============================================================================

// ConfigError identifies the configuration field that failed validation.
type ConfigError struct {
	Field  string
	Value  string
	Reason error
}

func (e *ConfigError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid configuration: %s=%q: %v", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid configuration: %s: %v", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Reason }

// IsConfigError reports whether err is any fatal configuration error.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrMissingScheme) ||
		errors.Is(err, ErrMissingBaseMapping) ||
		errors.Is(err, ErrBadDate) ||
		errors.Is(err, ErrMissingDataset)
}
