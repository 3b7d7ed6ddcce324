/*
store.go - Persistence interfaces for the commission engine

PURPOSE:
  Defines the interface between the engine and its storage. Each entity type
  gets one exclusively-owned collection keyed by id; secondary indexes
  (code -> discount, order -> pending adjustment) are maintained by the store
  alongside the primary collection, not derived on each read.

KEY INTERFACES:
  OrderStore:       Idempotent order upsert keyed by order id
  CommissionStore:  One commission per order id, plus the global audit log
  BalanceStore:     One balance per (tenant, influencer)
  TierStore:        Tier assignments plus the append-only history log
  AdjustmentStore:  Adjustments plus the order -> pending adjustment index
  ReconciliationLog: Append-only reconciliation records
  Store:            All of the above, composed

APPEND-ONLY CONTRACTS:
  Audit entries, tier history and reconciliation records are append-only.
  There are no update or delete methods for them. Ever.

IMPLEMENTATIONS:
  - commission/store/memory.go: In-memory, for tests and the dev server
  - store/sqlite/sqlite.go:     SQLite persistence

SEE ALSO:
  - engine.go, ledger.go, tier.go, settlement.go, adjustment.go: consumers
*/
package commission

import "context"

// =============================================================================
// ORDER STORE
// =============================================================================

// OrderStore holds the latest known state of each order.
type OrderStore interface {
	// SaveOrder upserts an order by id. Orders are never deleted.
	SaveOrder(ctx context.Context, order Order) error

	// GetOrder returns the order, or ErrOrderNotFound.
	GetOrder(ctx context.Context, id string) (Order, error)

	// ListOrders returns all orders. Read-only snapshot.
	ListOrders(ctx context.Context) ([]Order, error)
}

// =============================================================================
// COMMISSION STORE
// =============================================================================

// CommissionStore holds commission records keyed by order id (1:1) and the
// global append-only audit log.
type CommissionStore interface {
	// SaveCommission upserts the commission for its order id.
	SaveCommission(ctx context.Context, record CommissionRecord) error

	// GetCommission returns the commission for an order id, or
	// ErrCommissionNotFound.
	GetCommission(ctx context.Context, orderID string) (CommissionRecord, error)

	// ListCommissions returns all commissions. Read-only snapshot.
	ListCommissions(ctx context.Context) ([]CommissionRecord, error)

	// AppendAudit appends one entry to the global audit log. Append-only.
	AppendAudit(ctx context.Context, entry AuditEntry) error

	// ListAudit returns the global audit log in append order.
	ListAudit(ctx context.Context) ([]AuditEntry, error)
}

// =============================================================================
// BALANCE STORE
// =============================================================================

// BalanceStore holds one balance per (tenant, influencer). Callers serialize
// read-modify-write per key; the store only guarantees map safety.
type BalanceStore interface {
	// SaveBalance upserts a balance.
	SaveBalance(ctx context.Context, balance InfluencerBalance) error

	// GetBalance returns the balance, or ErrBalanceNotFound.
	GetBalance(ctx context.Context, tenantID, influencerID string) (InfluencerBalance, error)

	// ListBalances returns all balances. Read-only snapshot.
	ListBalances(ctx context.Context) ([]InfluencerBalance, error)
}

// =============================================================================
// TIER STORE
// =============================================================================

// TierHistoryFilter narrows tier history queries.
type TierHistoryFilter struct {
	CampaignID   string
	InfluencerID string
}

// TierStore holds tier assignments keyed by (campaign, influencer) and the
// append-only tier history log.
type TierStore interface {
	// SaveAssignment upserts a tier assignment.
	SaveAssignment(ctx context.Context, assignment TierAssignment) error

	// GetAssignment returns the assignment, or ErrAssignmentNotFound.
	GetAssignment(ctx context.Context, campaignID, influencerID string) (TierAssignment, error)

	// ListAssignments returns all assignments. Read-only snapshot.
	ListAssignments(ctx context.Context) ([]TierAssignment, error)

	// AppendTierHistory appends one record to the global history log.
	AppendTierHistory(ctx context.Context, record TierHistoryRecord) error

	// ListTierHistory returns history records matching the filter, in
	// append order. Records already closed are returned as stored; closed
	// windows are never corrected retroactively.
	ListTierHistory(ctx context.Context, filter TierHistoryFilter) ([]TierHistoryRecord, error)
}

// =============================================================================
// ADJUSTMENT STORE
// =============================================================================

// AdjustmentFilter narrows adjustment queries.
type AdjustmentFilter struct {
	InfluencerID string
	TenantID     string
	Status       []AdjustmentStatus
}

// AdjustmentStore holds withdrawal adjustments plus the order -> pending
// adjustment index (at most one pending adjustment per order).
type AdjustmentStore interface {
	// SaveAdjustment upserts an adjustment and maintains the order index:
	// a pending adjustment is indexed by its order id, a resolved one is
	// unindexed.
	SaveAdjustment(ctx context.Context, adjustment WithdrawalAdjustment) error

	// GetAdjustment returns the adjustment, or ErrAdjustmentNotFound.
	GetAdjustment(ctx context.Context, id string) (WithdrawalAdjustment, error)

	// GetPendingAdjustmentByOrder returns the pending adjustment indexed
	// for an order, or ErrAdjustmentNotFound.
	GetPendingAdjustmentByOrder(ctx context.Context, orderID string) (WithdrawalAdjustment, error)

	// ListAdjustments returns adjustments matching the filter.
	ListAdjustments(ctx context.Context, filter AdjustmentFilter) ([]WithdrawalAdjustment, error)
}

// =============================================================================
// RECONCILIATION LOG
// =============================================================================

// ReconciliationLog stores reconciliation records. Append-only.
type ReconciliationLog interface {
	AppendReconciliation(ctx context.Context, record ReconciliationRecord) error
	ListReconciliations(ctx context.Context) ([]ReconciliationRecord, error)
}

// =============================================================================
// COMPOSED STORE
// =============================================================================

// Store is the full persistence surface the engine components share.
type Store interface {
	OrderStore
	CommissionStore
	BalanceStore
	TierStore
	AdjustmentStore
	ReconciliationLog
}
