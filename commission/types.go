/*
Package commission provides the core commission ledger and settlement engine.

PURPOSE:
  This package contains the domain types and algorithms for computing
  per-influencer commission earnings from a stream of e-commerce order
  lifecycle events. It derives commission state, aggregates balance deltas,
  resolves tiered commission rates over a trailing sales window, runs batch
  settlement, and applies reconciliation-driven balance adjustments.

KEY CONCEPTS IN THIS FILE (types.go):
  - Order / OrderItem: Latest known state of each commerce order
  - CommissionRecord: One commission per order, with an append-only audit trail
  - InfluencerBalance: Aggregated balance buckets per (tenant, influencer)
  - TierAssignment / TierSnapshot: Sliding-window tier resolution state
  - WithdrawalAdjustment: Deficit-capped corrective balance entry
  - ReconciliationRecord: Immutable trigger input for the adjustment engine

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal and rounds to 2 decimals on every
     mutation, so repeated add/subtract never drifts
  2. Append-only history: Audit trails and tier history are never rewritten
  3. Closed enums: CommissionState, OrderStatus and OrderEventType are
     string-typed enums matched exhaustively at each transition site
  4. Idempotent recomputation: State is a pure function of the incoming
     event, never of the previous commission state

SEE ALSO:
  - engine.go: Commission state machine (order event registration)
  - ledger.go: Balance delta application
  - tier.go: Tier assignment tracking and evaluation
  - settlement.go: Periodic batch settlement
  - adjustment.go: Reconciliation-driven adjustments
*/
package commission

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY HELPERS
// =============================================================================

// round2 rounds a monetary value to 2 decimal places. Every bucket mutation
// rounds immediately; there is no deferred rounding anywhere in the engine.
func round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// Money constructs a decimal amount from a float. Test and seed convenience.
func Money(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

// =============================================================================
// ORDERS
// =============================================================================

// OrderStatus is the commerce platform's view of an order.
type OrderStatus string

const (
	OrderCreated  OrderStatus = "created"
	OrderPaid     OrderStatus = "paid"
	OrderInvoiced OrderStatus = "invoiced"
	OrderShipped  OrderStatus = "shipped"
	OrderCanceled OrderStatus = "canceled"
	OrderReturned OrderStatus = "returned"
)

// OrderEventType identifies the lifecycle event that triggered registration.
type OrderEventType string

const (
	EventOrderCreated  OrderEventType = "order-created"
	EventOrderPaid     OrderEventType = "order-paid"
	EventOrderCanceled OrderEventType = "order-canceled"
)

// OrderItem is a single line item on an order.
type OrderItem struct {
	SKUID        string
	SKURef       string
	Quantity     int
	Price        decimal.Decimal
	Discount     decimal.Decimal
	TaxAmount    decimal.Decimal
	CategoryID   string
	CategoryName string
}

// Order holds the latest known state of a commerce order. Orders are upserted
// by id on every event registration and never deleted.
type Order struct {
	ID             string
	TenantID       string
	Status         OrderStatus
	TotalAmount    decimal.Decimal
	Currency       string
	ShippingAmount decimal.Decimal
	TaxAmount      decimal.Decimal

	// EligibleAmount is derived from campaign scope rules (see eligible.go)
	// and persisted so downstream consumers do not recompute it.
	EligibleAmount decimal.Decimal

	DiscountCodeID string
	InfluencerID   string
	CampaignID     string
	Items          []OrderItem
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// =============================================================================
// COMMISSIONS
// =============================================================================

// CommissionState is the settlement state of a commission.
type CommissionState string

const (
	StateEstimated CommissionState = "ESTIMATED"
	StateConfirmed CommissionState = "CONFIRMED"
	StateReverted  CommissionState = "REVERTED"
)

// AuditEntry records one commission state change. Audit trails are
// append-only: every state change appends exactly one entry, even when the
// target state equals the previous state (replayed events are visible in the
// trail by design).
type AuditEntry struct {
	ID            string
	CommissionID  string
	PreviousState *CommissionState // nil on the first transition
	NextState     CommissionState
	ChangedAt     time.Time
	TriggeredBy   string
	Context       string
}

// CommissionRecord is the commission derived for a single order (1:1, keyed
// by OrderID). Created on the first relevant order event, updated in place
// thereafter, never deleted.
//
// INVARIANT: CommissionAmount == round2(EligibleAmount * CommissionRate / 100).
type CommissionRecord struct {
	ID           string
	TenantID     string
	OrderID      string
	InfluencerID string
	CampaignID   string
	State        CommissionState

	GrossAmount      decimal.Decimal
	EligibleAmount   decimal.Decimal
	CommissionRate   decimal.Decimal
	CommissionAmount decimal.Decimal

	TierLevel int
	TierName  string

	CalculatedAt time.Time
	ConfirmedAt  *time.Time
	RevertedAt   *time.Time
	Reason       string

	Metadata   map[string]any
	AuditTrail []AuditEntry
}

// =============================================================================
// BALANCES
// =============================================================================

// InfluencerBalance aggregates all commission state deltas and withdrawal
// movements for one (tenant, influencer) pair. Created lazily on first touch,
// never deleted.
//
// INVARIANT: AvailableForWithdrawal ==
// round2(ConfirmedAmount - WithdrawnAmount - PendingWithdrawalAmount),
// recomputed after every mutation. AdjustmentAmount tracks the current sum of
// unresolved pending adjustments for visibility; it does not enter the
// available formula (a negative available value is the signal that an
// adjustment is owed).
type InfluencerBalance struct {
	InfluencerID            string
	TenantID                string
	EstimatedAmount         decimal.Decimal
	ConfirmedAmount         decimal.Decimal
	RevertedAmount          decimal.Decimal
	PendingWithdrawalAmount decimal.Decimal
	WithdrawnAmount         decimal.Decimal
	AdjustmentAmount        decimal.Decimal
	AvailableForWithdrawal  decimal.Decimal
	LastCalculatedAt        time.Time
}

// =============================================================================
// TIERS
// =============================================================================

// TierSnapshot is a named commission-rate bracket.
type TierSnapshot struct {
	Name                    string
	Level                   int
	CommissionPercent       decimal.Decimal
	ThresholdConfirmedSales decimal.Decimal
}

// TierHistoryRecord is one entry in the append-only tier assignment history.
// Each entry is closed (EffectiveTo, final WindowEnd/SalesVolume) when the
// tier changes; closed windows are never retroactively corrected.
type TierHistoryRecord struct {
	ID             string
	InfluencerID   string
	CampaignID     string
	TierLevel      int
	TierName       string
	CommissionRate decimal.Decimal
	EffectiveFrom  time.Time
	EffectiveTo    *time.Time
	Reason         string
	TriggeredBy    string
	WindowStart    time.Time
	WindowEnd      time.Time
	SalesVolume    decimal.Decimal
}

// TierAssignment tracks the current tier for one (campaign, influencer) pair.
// Created lazily on first campaign assignment, seeded to the lowest-threshold
// tier (or a synthetic base tier when the campaign defines none).
type TierAssignment struct {
	TenantID             string
	CampaignID           string
	InfluencerID         string
	EvaluationPeriodDays int
	CurrentTier          TierSnapshot
	CurrentWindowStart   time.Time
	LastEvaluationAt     time.Time
	History              []TierHistoryRecord
}

// TierRef is the compact tier reference reported in evaluation results.
type TierRef struct {
	Name           string
	Level          int
	CommissionRate decimal.Decimal
}

// TierEvaluationResult reports the outcome of one assignment evaluation.
type TierEvaluationResult struct {
	InfluencerID string
	CampaignID   string
	PreviousTier TierRef
	NewTier      TierRef
	Changed      bool
	SalesVolume  decimal.Decimal
	WindowStart  time.Time
	WindowEnd    time.Time
	TriggeredBy  string
}

// =============================================================================
// SETTLEMENT
// =============================================================================

// SettlementTransition records one commission examined by a settlement run.
type SettlementTransition struct {
	CommissionID     string
	OrderID          string
	PreviousState    CommissionState
	NextState        CommissionState
	InfluencerID     string
	CampaignID       string
	CommissionAmount decimal.Decimal
	EffectiveAt      time.Time
	Reason           string
}

// SettlementSummary is the outcome of one settlement run.
type SettlementSummary struct {
	EvaluationDate    time.Time
	WaitingPeriodDays int
	Confirmed         []SettlementTransition
	Reverted          []SettlementTransition
	Pending           []SettlementTransition
}

// =============================================================================
// ADJUSTMENTS & RECONCILIATION
// =============================================================================

// AdjustmentType classifies the discrepancy that produced an adjustment.
type AdjustmentType string

const (
	AdjustmentStatusMismatch AdjustmentType = "status_mismatch"
	AdjustmentMissingInVtex  AdjustmentType = "missing_in_vtex"
	AdjustmentManual         AdjustmentType = "manual"
)

// AdjustmentStatus is the lifecycle state of an adjustment.
type AdjustmentStatus string

const (
	AdjustmentPending  AdjustmentStatus = "pending"
	AdjustmentResolved AdjustmentStatus = "resolved"
)

// AdjustmentResolutionType records how a pending adjustment was settled.
type AdjustmentResolutionType string

const (
	ResolutionRecovered  AdjustmentResolutionType = "recovered"
	ResolutionWrittenOff AdjustmentResolutionType = "written_off"
)

// WithdrawalAdjustment is a corrective balance entry created when external
// reconciliation detects that the local ledger overstates an influencer's
// available balance. At most one pending adjustment exists per order; once
// resolved, a new discrepancy for the same order creates a new adjustment.
type WithdrawalAdjustment struct {
	ID                  string
	TenantID            string
	InfluencerID        string
	CampaignID          string
	BrandID             string
	OrderID             string
	Amount              decimal.Decimal
	Currency            string
	Type                AdjustmentType
	Status              AdjustmentStatus
	Reason              string
	ReconciliationID    string
	Notes               string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	ResolvedAt          *time.Time
	ResolvedBy          string
	ResolutionType      AdjustmentResolutionType
	ResolvedByPaymentID string
}

// ReconciliationType identifies the cadence of a reconciliation run.
type ReconciliationType string

const (
	ReconciliationDaily       ReconciliationType = "daily"
	ReconciliationFortnightly ReconciliationType = "fortnightly"
	ReconciliationAdhoc       ReconciliationType = "adhoc"
)

// ReconciliationRecord is an immutable append-only log entry produced by an
// external reconciliation job comparing local orders against the commerce
// platform. It is the trigger input for the AdjustmentEngine.
type ReconciliationRecord struct {
	ID                 string
	TenantID           string
	RunDate            time.Time
	Type               ReconciliationType
	DiscrepanciesFound int
	ReportURL          string
	Summary            map[string]any
	Alerts             []string
	CreatedAt          time.Time
}

// =============================================================================
// EXTERNAL DIRECTORY - Campaign / discount-code / influencer lookups
// =============================================================================

// CommissionBasis selects whether tax enters the eligible amount.
type CommissionBasis string

const (
	BasisPreTax  CommissionBasis = "pre_tax"
	BasisPostTax CommissionBasis = "post_tax"
)

// ScopeType selects how campaign eligibility filters line items.
type ScopeType string

const (
	ScopeSKU      ScopeType = "sku"
	ScopeCategory ScopeType = "category"
)

// CampaignConfig is the read-only campaign configuration the engine consumes.
type CampaignConfig struct {
	ID                       string
	TenantID                 string
	BrandID                  string
	BrandName                string
	Name                     string
	Status                   string
	StartDate                time.Time
	CommissionBase           decimal.Decimal
	CommissionBasis          CommissionBasis
	EligibleScopeType        ScopeType
	EligibleScopeValues      []string
	TierEvaluationPeriodDays int
	Tiers                    []TierSnapshot
}

// DiscountCode maps an affiliate coupon code to its campaign and influencer.
type DiscountCode struct {
	ID           string
	TenantID     string
	Code         string
	CampaignID   string
	InfluencerID string
	Status       string
}

// InfluencerStatus is the approval state of an influencer.
type InfluencerStatus string

const (
	InfluencerPending  InfluencerStatus = "pending"
	InfluencerApproved InfluencerStatus = "approved"
	InfluencerRejected InfluencerStatus = "rejected"
)

// Influencer is the read-only influencer view the engine consumes.
type Influencer struct {
	ID                  string
	Name                string
	Email               string
	Status              InfluencerStatus
	AssignedCampaignIDs []string
}

// Directory provides read-only lookups into externally owned registries.
// The registry package supplies the standard implementation.
type Directory interface {
	// FindDiscountByCode resolves a coupon code (case-insensitive).
	FindDiscountByCode(code string) (DiscountCode, bool)

	// Campaign returns the campaign configuration by id.
	Campaign(id string) (CampaignConfig, bool)

	// Influencer returns the influencer by id.
	Influencer(id string) (Influencer, bool)
}
