/*
errors.go - Centralized error types for the pricing engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers (API handlers, the sales service) map these onto transport
  status codes.

ERROR CATEGORIES:
  1. Input errors - bad or missing numeric/identifier input (abort)
  2. Configuration errors - a stored rule is malformed (skip + warn)
  3. Lookup errors - referenced unit/user does not exist (abort)
  4. Dependency errors - rule store or context provider unreachable
     (propagated unchanged; retry policy belongs to the caller)

USAGE:
  if errors.Is(err, pricing.ErrNotFound) {
      writeError(w, http.StatusNotFound, ...)
  }
*/
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidInput is returned for bad caller input, e.g. a negative
	// base amount. The whole evaluation aborts; no partial results.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfiguration marks a malformed stored rule. Individual
	// rules are recovered locally (skipped with a warning); this sentinel
	// is exposed for callers that validate rules at admin time.
	ErrInvalidConfiguration = errors.New("invalid rule configuration")

	// ErrNotFound is returned when a referenced unit or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDependencyFailure wraps failures of the rule store or context
	// provider. The engine does not retry.
	ErrDependencyFailure = errors.New("dependency failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidInputError provides details about a rejected input value.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// NegativeBaseAmountError is the concrete InvalidInput for baseAmount < 0.
type NegativeBaseAmountError struct {
	BaseAmount decimal.Decimal
}

func (e *NegativeBaseAmountError) Error() string {
	return fmt.Sprintf("invalid input: base amount must be non-negative, got %s", e.BaseAmount)
}

func (e *NegativeBaseAmountError) Unwrap() error { return ErrInvalidInput }

// RuleConfigurationError provides details about a malformed rule. Evaluate
// converts these into envelope warnings; admin-time validation returns them.
type RuleConfigurationError struct {
	RuleID RuleID
	Code   string
	Reason string
}

func (e *RuleConfigurationError) Error() string {
	return fmt.Sprintf("rule %s: %s", e.RuleID, e.Reason)
}

func (e *RuleConfigurationError) Unwrap() error { return ErrInvalidConfiguration }

// NotFoundError identifies which referenced record is missing.
type NotFoundError struct {
	Kind string // "unit", "user", "rule"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrInvalidConfiguration)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
