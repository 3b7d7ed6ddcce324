/*
Package withdrawal implements the withdrawal request, decision and payment
workflow on top of the commission ledger's balance API.

PURPOSE:
  Influencers withdraw confirmed commission earnings. This package owns the
  request lifecycle (pending -> approved/rejected -> paid), brand minimum
  policies, the payment record, and the decision log. It never touches
  balance buckets directly: every movement goes through the ledger's
  pending/paid mutations, which are the single recompute path for the
  available balance.

LIFECYCLE:
  Request     reserves the amount (pending bucket), requires an approved
              influencer with a campaign for the brand, amount within the
              available balance and above the brand minimum
  Decide      approve keeps the reservation; reject releases it (floored
              at zero)
  RecordPayment moves pending -> withdrawn, auto-approving a still-pending
              request first, and resolves any applied adjustments as
              recovered

SEE ALSO:
  - commission/ledger.go: the balance mutations used here
  - commission/adjustment.go: adjustment resolution on payment
*/
package withdrawal

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REQUESTS
// =============================================================================

// Status is the lifecycle state of a withdrawal request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusPaid     Status = "paid"
)

// DecisionEntry is one entry in a request's append-only decision log.
type DecisionEntry struct {
	Status  Status
	ActedBy string
	ActedAt time.Time
	Notes   string
}

// Request is a withdrawal request against an influencer's available balance.
type Request struct {
	ID               string
	TenantID         string
	InfluencerID     string
	BrandID          string
	BrandName        string
	RequestedAmount  decimal.Decimal
	Currency         string
	Status           Status
	RequestedAt      time.Time
	ProcessedBy      string
	ProcessedAt      *time.Time
	Notes            string
	PaymentReference string
	DecisionLog      []DecisionEntry
	ReconciliationIDs []string
}

// =============================================================================
// PAYMENTS
// =============================================================================

// Payment records one disbursement against an approved request.
type Payment struct {
	ID                   string
	TenantID             string
	InfluencerID         string
	WithdrawalRequestID  string
	Amount               decimal.Decimal
	Currency             string
	PaymentDate          time.Time
	Method               string
	Reference            string
	TaxWithheld          *decimal.Decimal
	ProcessedBy          string
	CreatedAt            time.Time
	ReconciliationID     string
	AppliedAdjustmentIDs []string
}

// =============================================================================
// BRAND POLICY
// =============================================================================

// BrandPolicy configures per-brand withdrawal constraints.
type BrandPolicy struct {
	BrandID       string
	BrandName     string
	MinimumAmount decimal.Decimal
	Currency      string
}
