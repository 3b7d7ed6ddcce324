/*
errors.go - Centralized error types for the commission engine

PURPOSE:
  All error types in one place for consistency and discoverability.

ERROR TAXONOMY (matters here more than usual):
  1. Validation-absent cases (unknown coupon, missing order, missing
     commission on an event path) are NOT errors. They represent benign
     out-of-order or partial event delivery and the engine reports them as
     no-ops. Nothing in this file covers them.
  2. Resource-not-found on explicit id-based operations (resolve an
     adjustment by unknown id, withdrawal request by unknown id) is a typed
     "not found" outcome, never fatal to a batch.
  3. Invariant violations (negative amounts, rounding mismatches) are
     prevented by construction - clamping and rounding at every mutation -
     rather than detected after the fact.

USAGE:
  if errors.Is(err, commission.ErrAdjustmentNotFound) { ... }

SEE ALSO:
  - adjustment.go, settlement.go: produce these errors
  - api/handlers.go: maps them to HTTP status codes
*/
package commission

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrOrderNotFound is returned by explicit id-based order lookups.
	ErrOrderNotFound = errors.New("order not found")

	// ErrCommissionNotFound is returned by explicit id-based commission lookups.
	ErrCommissionNotFound = errors.New("commission not found")

	// ErrBalanceNotFound is returned when reading a balance that was never
	// touched. Mutation paths never return this; they create lazily.
	ErrBalanceNotFound = errors.New("balance not found")

	// ErrAdjustmentNotFound is returned when resolving an unknown adjustment id.
	ErrAdjustmentNotFound = errors.New("adjustment not found")

	// ErrAssignmentNotFound is returned by explicit tier assignment lookups.
	ErrAssignmentNotFound = errors.New("tier assignment not found")

	// ErrCampaignNotFound is returned when a referenced campaign is unknown
	// to the directory on an explicit operation.
	ErrCampaignNotFound = errors.New("campaign not found")

	// ErrSettlementInFlight is returned when a settlement run is requested
	// while another run is still executing. Settlement never runs
	// concurrently with itself.
	ErrSettlementInFlight = errors.New("settlement run already in flight")
)

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrCommissionNotFound) ||
		errors.Is(err, ErrBalanceNotFound) ||
		errors.Is(err, ErrAdjustmentNotFound) ||
		errors.Is(err, ErrAssignmentNotFound) ||
		errors.Is(err, ErrCampaignNotFound)
}

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// NotFoundError carries the id that failed to resolve.
type NotFoundError struct {
	Kind string
	ID   string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return e.Err }
