/*
adjustment.go - Reconciliation-driven balance adjustments

PURPOSE:
  Consumes reconciliation reports, detects discrepancy classes, and creates
  or resolves deficit-capped balance adjustments. Adjustments never mutate
  commission state; they only track what is owed back and refresh the
  balance's visible pending-adjustment total.

DEFICIT CAP (money is never created from nothing):
  deficit = max(0, -availableForWithdrawal - currentPendingAdjustmentTotal)
  amount  = round2(min(deficit, commission.commissionAmount))

  No adjustment is created unless the balance is actually short, and the
  existing pending total already counts against the deficit, so repeated
  reconciliation runs never double-book the same shortfall.

ONE PENDING PER ORDER:
  A pending adjustment is indexed by order id. A new discrepancy for an
  order with a pending adjustment updates it in place; once resolved, the
  next discrepancy creates a fresh adjustment.

SEE ALSO:
  - ledger.go: SetAdjustmentTotal (visible total refresh)
  - withdrawal package: resolves adjustments as recovered on payment
*/
package commission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ADJUSTMENT ENGINE
// =============================================================================

// AdjustmentEngine creates and resolves withdrawal adjustments.
type AdjustmentEngine struct {
	store  Store
	ledger *BalanceLedger
	dir    Directory
	now    func() time.Time
}

// NewAdjustmentEngine wires the adjustment engine.
func NewAdjustmentEngine(store Store, ledger *BalanceLedger, dir Directory) *AdjustmentEngine {
	return &AdjustmentEngine{store: store, ledger: ledger, dir: dir, now: time.Now}
}

// WithClock overrides the engine clock. Tests only.
func (a *AdjustmentEngine) WithClock(now func() time.Time) *AdjustmentEngine {
	a.now = now
	return a
}

// OnReconciliation inspects a reconciliation record's summary for the
// statusMismatch and missingInVtex discrepancy arrays and creates one
// adjustment attempt per resolvable order id. Unresolvable entries are
// skipped; the rest of the report is still processed.
func (a *AdjustmentEngine) OnReconciliation(ctx context.Context, record ReconciliationRecord) error {
	details := resolveReconciliationDetails(record.Summary)
	if details == nil {
		return nil
	}

	for _, entry := range extractReconciliationEntries(details, "statusMismatch") {
		orderID := resolveReconciliationOrderID(entry)
		if orderID == "" {
			continue
		}

		reason := "reconciliation detected a status divergence"
		if vtexStatus := extractReconciliationString(entry, "vtex"); vtexStatus != "" {
			reason = fmt.Sprintf("reconciliation detected a status divergence, platform status %q", vtexStatus)
		}

		if _, err := a.CreateAdjustmentForOrder(ctx, CreateAdjustmentInput{
			OrderID:          orderID,
			Reason:           reason,
			Type:             AdjustmentStatusMismatch,
			ReconciliationID: record.ID,
		}); err != nil {
			return err
		}
	}

	for _, entry := range extractReconciliationEntries(details, "missingInVtex") {
		orderID := resolveReconciliationOrderID(entry)
		if orderID == "" {
			continue
		}

		if _, err := a.CreateAdjustmentForOrder(ctx, CreateAdjustmentInput{
			OrderID:          orderID,
			Reason:           "order exists locally but is missing on the commerce platform",
			Type:             AdjustmentMissingInVtex,
			ReconciliationID: record.ID,
		}); err != nil {
			return err
		}
	}

	return nil
}

// CreateAdjustmentInput parameterizes one adjustment attempt.
type CreateAdjustmentInput struct {
	OrderID          string
	Reason           string
	Type             AdjustmentType
	ReconciliationID string
}

// CreateAdjustmentForOrder creates (or refreshes) the deficit-capped pending
// adjustment for an order. A nil result with a nil error is a no-op: unknown
// order, missing commission, or no actual deficit.
func (a *AdjustmentEngine) CreateAdjustmentForOrder(ctx context.Context, input CreateAdjustmentInput) (*WithdrawalAdjustment, error) {
	if input.OrderID == "" {
		return nil, nil
	}

	// At most one pending adjustment per order: refresh it in place.
	if existing, err := a.store.GetPendingAdjustmentByOrder(ctx, input.OrderID); err == nil {
		existing.Reason = input.Reason
		if input.ReconciliationID != "" {
			existing.ReconciliationID = input.ReconciliationID
		}
		existing.UpdatedAt = a.now()
		if err := a.store.SaveAdjustment(ctx, existing); err != nil {
			return nil, err
		}
		return &existing, nil
	} else if !IsNotFound(err) {
		return nil, err
	}

	order, err := a.store.GetOrder(ctx, input.OrderID)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	commission, err := a.store.GetCommission(ctx, order.ID)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	balance, err := a.ledger.Ensure(ctx, commission.TenantID, commission.InfluencerID)
	if err != nil {
		return nil, err
	}

	pendingTotal, err := a.pendingAdjustmentTotal(ctx, commission.InfluencerID, commission.TenantID)
	if err != nil {
		return nil, err
	}

	// Deficit-capped: only cover what the balance is actually short, and
	// never more than this order's commission.
	deficit := balance.AvailableForWithdrawal.Neg().Sub(pendingTotal)
	if !deficit.IsPositive() {
		return nil, nil
	}

	amount := round2(decimal.Min(deficit, commission.CommissionAmount))
	if !amount.IsPositive() {
		return nil, nil
	}

	now := a.now()
	adjustment := WithdrawalAdjustment{
		ID:               uuid.NewString(),
		TenantID:         commission.TenantID,
		InfluencerID:     commission.InfluencerID,
		CampaignID:       order.CampaignID,
		OrderID:          order.ID,
		Amount:           amount,
		Currency:         order.Currency,
		Type:             input.Type,
		Status:           AdjustmentPending,
		Reason:           input.Reason,
		ReconciliationID: input.ReconciliationID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if campaign, ok := a.dir.Campaign(order.CampaignID); ok {
		adjustment.BrandID = campaign.BrandID
	}

	if err := a.store.SaveAdjustment(ctx, adjustment); err != nil {
		return nil, err
	}
	if err := a.refreshBalanceAdjustments(ctx, adjustment.InfluencerID, adjustment.TenantID); err != nil {
		return nil, err
	}
	return &adjustment, nil
}

// ResolveInput parameterizes adjustment resolution.
type ResolveInput struct {
	ResolvedBy     string
	ResolutionType AdjustmentResolutionType
	PaymentID      string
	Notes          string
}

// Resolve marks an adjustment resolved and refreshes the influencer's
// pending-adjustment total. Resolving an already-resolved adjustment is an
// idempotent no-op returning the stored record. An unknown id returns
// ErrAdjustmentNotFound.
func (a *AdjustmentEngine) Resolve(ctx context.Context, id string, input ResolveInput) (WithdrawalAdjustment, error) {
	adjustment, err := a.store.GetAdjustment(ctx, id)
	if err != nil {
		return WithdrawalAdjustment{}, err
	}

	if adjustment.Status == AdjustmentResolved {
		return adjustment, nil
	}

	now := a.now()
	adjustment.Status = AdjustmentResolved
	adjustment.ResolvedAt = &now
	adjustment.ResolvedBy = input.ResolvedBy
	adjustment.ResolutionType = input.ResolutionType
	if input.PaymentID != "" {
		adjustment.ResolvedByPaymentID = input.PaymentID
	}
	if input.Notes != "" {
		adjustment.Notes = input.Notes
	}
	adjustment.UpdatedAt = now

	if err := a.store.SaveAdjustment(ctx, adjustment); err != nil {
		return WithdrawalAdjustment{}, err
	}
	if err := a.refreshBalanceAdjustments(ctx, adjustment.InfluencerID, adjustment.TenantID); err != nil {
		return WithdrawalAdjustment{}, err
	}
	return adjustment, nil
}

// =============================================================================
// INTERNALS
// =============================================================================

func (a *AdjustmentEngine) pendingAdjustmentTotal(ctx context.Context, influencerID, tenantID string) (decimal.Decimal, error) {
	pending, err := a.store.ListAdjustments(ctx, AdjustmentFilter{
		InfluencerID: influencerID,
		TenantID:     tenantID,
		Status:       []AdjustmentStatus{AdjustmentPending},
	})
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, adj := range pending {
		total = total.Add(adj.Amount)
	}
	return round2(total), nil
}

func (a *AdjustmentEngine) refreshBalanceAdjustments(ctx context.Context, influencerID, tenantID string) error {
	total, err := a.pendingAdjustmentTotal(ctx, influencerID, tenantID)
	if err != nil {
		return err
	}
	return a.ledger.SetAdjustmentTotal(ctx, tenantID, influencerID, total)
}

// resolveReconciliationDetails tolerates the three shapes reconciliation
// jobs produce: {details: {...}}, {discrepancies: {...}}, or the arrays
// directly on the summary.
func resolveReconciliationDetails(summary map[string]any) map[string]any {
	if summary == nil {
		return nil
	}
	for _, key := range []string{"details", "discrepancies"} {
		if nested, ok := summary[key].(map[string]any); ok {
			return nested
		}
	}
	return summary
}

func extractReconciliationEntries(details map[string]any, key string) []map[string]any {
	raw, ok := details[key].([]any)
	if !ok {
		return nil
	}

	var entries []map[string]any
	for _, item := range raw {
		if entry, ok := item.(map[string]any); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

func resolveReconciliationOrderID(entry map[string]any) string {
	for _, key := range []string{"orderId", "id"} {
		if v := extractReconciliationString(entry, key); v != "" {
			return v
		}
	}
	return ""
}

func extractReconciliationString(entry map[string]any, key string) string {
	if v, ok := entry[key].(string); ok && len(v) > 0 {
		return v
	}
	return ""
}
