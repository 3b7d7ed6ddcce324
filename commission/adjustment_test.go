package commission_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/commission-engine/commission"
)

func newAdjustmentRig(t *testing.T) (*testRig, *commission.AdjustmentEngine) {
	t.Helper()
	rig := newTestRig(t)
	engine := commission.NewAdjustmentEngine(rig.store, rig.ledger, rig.dir).
		WithClock(func() time.Time { return rig.clock })
	return rig, engine
}

// overdrawnBalance confirms a commission of the given amount, withdraws the
// withdrawal total, then reverts the commission. Available ends negative.
func overdrawnBalance(t *testing.T, rig *testRig, orderID string, commissionVolume int64, withdrawn float64) {
	t.Helper()
	ctx := context.Background()

	eligible := decimal.NewFromInt(commissionVolume)
	paid := orderEvent(orderID, commission.EventOrderPaid, commission.OrderPaid, commissionVolume)
	paid.EligibleAmount = &eligible
	_, err := rig.engine.RegisterOrderEvent(ctx, paid)
	require.NoError(t, err)

	require.NoError(t, rig.ledger.AddPendingWithdrawal(ctx, "brand-1", "inf-1", money(withdrawn)))
	require.NoError(t, rig.ledger.RecordWithdrawalPaid(ctx, "brand-1", "inf-1", money(withdrawn)))

	canceled := orderEvent(orderID, commission.EventOrderCanceled, commission.OrderCanceled, commissionVolume)
	canceled.EligibleAmount = &eligible
	_, err = rig.engine.RegisterOrderEvent(ctx, canceled)
	require.NoError(t, err)
}

// =============================================================================
// DEFICIT CAP TESTS
// =============================================================================

func TestCreateAdjustment_CappedAtDeficit(t *testing.T) {
	// GIVEN: A 25000 commission reverted after only 20000 was withdrawn
	//        (available is -20000)
	// WHEN: Creating an adjustment for the order
	// THEN: The adjustment is 20000 - the shortfall - not the full 25000

	rig, adjustments := newAdjustmentRig(t)
	ctx := context.Background()

	overdrawnBalance(t, rig, "ord-1", 250000, 20000) // 10% of 250000 = 25000 commission

	balance, err := rig.ledger.Balance(ctx, "brand-1", "inf-1")
	require.NoError(t, err)
	require.True(t, balance.AvailableForWithdrawal.Equal(money(-20000)),
		"precondition: available must be -20000, got %s", balance.AvailableForWithdrawal)

	adjustment, err := adjustments.CreateAdjustmentForOrder(ctx, commission.CreateAdjustmentInput{
		OrderID: "ord-1",
		Reason:  "reverted after payout",
		Type:    commission.AdjustmentStatusMismatch,
	})
	require.NoError(t, err)
	require.NotNil(t, adjustment)

	assert.True(t, adjustment.Amount.Equal(money(20000)),
		"expected 20000 (deficit), got %s", adjustment.Amount)
	assert.Equal(t, commission.AdjustmentPending, adjustment.Status)
}

func TestCreateAdjustment_NoDeficit_NoOp(t *testing.T) {
	// GIVEN: A healthy balance (nothing withdrawn)
	// WHEN: Creating an adjustment for a reverted order
	// THEN: No adjustment is created - money is never clawed from nothing

	rig, adjustments := newAdjustmentRig(t)
	ctx := context.Background()

	eligible := decimal.NewFromInt(250000)
	paid := orderEvent("ord-1", commission.EventOrderPaid, commission.OrderPaid, 250000)
	paid.EligibleAmount = &eligible
	_, err := rig.engine.RegisterOrderEvent(ctx, paid)
	require.NoError(t, err)
	canceled := orderEvent("ord-1", commission.EventOrderCanceled, commission.OrderCanceled, 250000)
	canceled.EligibleAmount = &eligible
	_, err = rig.engine.RegisterOrderEvent(ctx, canceled)
	require.NoError(t, err)

	adjustment, err := adjustments.CreateAdjustmentForOrder(ctx, commission.CreateAdjustmentInput{
		OrderID: "ord-1",
		Type:    commission.AdjustmentStatusMismatch,
	})
	require.NoError(t, err)
	assert.Nil(t, adjustment)
}

func TestCreateAdjustment_ExistingPendingCountsAgainstDeficit(t *testing.T) {
	// GIVEN: A pending adjustment already covering the shortfall
	// WHEN: A second reconciliation reports a different order
	// THEN: No second adjustment is created - the pending total already
	//       accounts for the deficit

	rig, adjustments := newAdjustmentRig(t)
	ctx := context.Background()

	overdrawnBalance(t, rig, "ord-1", 250000, 20000)

	first, err := adjustments.CreateAdjustmentForOrder(ctx, commission.CreateAdjustmentInput{
		OrderID: "ord-1",
		Type:    commission.AdjustmentStatusMismatch,
	})
	require.NoError(t, err)
	require.NotNil(t, first)

	// Another reverted-after-payout order for the same influencer.
	eligible := decimal.NewFromInt(100000)
	paid := orderEvent("ord-2", commission.EventOrderPaid, commission.OrderPaid, 100000)
	paid.EligibleAmount = &eligible
	_, err = rig.engine.RegisterOrderEvent(ctx, paid)
	require.NoError(t, err)
	canceled := orderEvent("ord-2", commission.EventOrderCanceled, commission.OrderCanceled, 100000)
	canceled.EligibleAmount = &eligible
	_, err = rig.engine.RegisterOrderEvent(ctx, canceled)
	require.NoError(t, err)

	second, err := adjustments.CreateAdjustmentForOrder(ctx, commission.CreateAdjustmentInput{
		OrderID: "ord-2",
		Type:    commission.AdjustmentStatusMismatch,
	})
	require.NoError(t, err)
	assert.Nil(t, second, "pending total already covers the deficit")
}

// =============================================================================
// ONE PENDING PER ORDER TESTS
// =============================================================================

func TestCreateAdjustment_RepeatForOrder_RefreshesInPlace(t *testing.T) {
	// GIVEN: A pending adjustment for an order
	// WHEN: A later reconciliation flags the same order again
	// THEN: The existing adjustment is refreshed, not duplicated

	rig, adjustments := newAdjustmentRig(t)
	ctx := context.Background()

	overdrawnBalance(t, rig, "ord-1", 250000, 20000)

	first, err := adjustments.CreateAdjustmentForOrder(ctx, commission.CreateAdjustmentInput{
		OrderID: "ord-1",
		Reason:  "initial",
		Type:    commission.AdjustmentStatusMismatch,
	})
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := adjustments.CreateAdjustmentForOrder(ctx, commission.CreateAdjustmentInput{
		OrderID:          "ord-1",
		Reason:           "flagged again",
		Type:             commission.AdjustmentStatusMismatch,
		ReconciliationID: "rec-2",
	})
	require.NoError(t, err)
	require.NotNil(t, second)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "flagged again", second.Reason)
	assert.Equal(t, "rec-2", second.ReconciliationID)

	all, err := rig.store.ListAdjustments(ctx, commission.AdjustmentFilter{InfluencerID: "inf-1"})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

// =============================================================================
// RESOLUTION TESTS
// =============================================================================

func TestResolveAdjustment_RefreshesPendingTotal(t *testing.T) {
	// GIVEN: A pending adjustment reflected in the balance's visible total
	// WHEN: Resolving it as written off
	// THEN: The visible pending-adjustment total returns to zero

	rig, adjustments := newAdjustmentRig(t)
	ctx := context.Background()

	overdrawnBalance(t, rig, "ord-1", 250000, 20000)
	created, err := adjustments.CreateAdjustmentForOrder(ctx, commission.CreateAdjustmentInput{
		OrderID: "ord-1",
		Type:    commission.AdjustmentStatusMismatch,
	})
	require.NoError(t, err)
	require.NotNil(t, created)

	balance, err := rig.ledger.Balance(ctx, "brand-1", "inf-1")
	require.NoError(t, err)
	assert.True(t, balance.AdjustmentAmount.Equal(money(20000)))

	resolved, err := adjustments.Resolve(ctx, created.ID, commission.ResolveInput{
		ResolvedBy:     "ops",
		ResolutionType: commission.ResolutionWrittenOff,
	})
	require.NoError(t, err)
	assert.Equal(t, commission.AdjustmentResolved, resolved.Status)
	assert.Equal(t, commission.ResolutionWrittenOff, resolved.ResolutionType)

	balance, err = rig.ledger.Balance(ctx, "brand-1", "inf-1")
	require.NoError(t, err)
	assert.True(t, balance.AdjustmentAmount.IsZero())
}

func TestResolveAdjustment_AlreadyResolved_NoOp(t *testing.T) {
	// GIVEN: A resolved adjustment
	// WHEN: Resolving again with different inputs
	// THEN: The stored record is returned unchanged

	rig, adjustments := newAdjustmentRig(t)
	ctx := context.Background()

	overdrawnBalance(t, rig, "ord-1", 250000, 20000)
	created, err := adjustments.CreateAdjustmentForOrder(ctx, commission.CreateAdjustmentInput{
		OrderID: "ord-1",
		Type:    commission.AdjustmentStatusMismatch,
	})
	require.NoError(t, err)
	require.NotNil(t, created)

	first, err := adjustments.Resolve(ctx, created.ID, commission.ResolveInput{
		ResolvedBy:     "ops",
		ResolutionType: commission.ResolutionWrittenOff,
	})
	require.NoError(t, err)

	second, err := adjustments.Resolve(ctx, created.ID, commission.ResolveInput{
		ResolvedBy:     "someone-else",
		ResolutionType: commission.ResolutionRecovered,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ResolvedBy, second.ResolvedBy)
	assert.Equal(t, first.ResolutionType, second.ResolutionType)
}

func TestResolveAdjustment_Unknown_ReturnsNotFound(t *testing.T) {
	_, adjustments := newAdjustmentRig(t)

	_, err := adjustments.Resolve(context.Background(), "nope", commission.ResolveInput{})
	assert.True(t, commission.IsNotFound(err))
}

// =============================================================================
// RECONCILIATION INTAKE TESTS
// =============================================================================

func TestOnReconciliation_ParsesDiscrepancyArrays(t *testing.T) {
	// GIVEN: A reconciliation summary with statusMismatch and missingInVtex
	//        arrays nested under "details"
	// WHEN: Feeding it to the adjustment engine
	// THEN: One adjustment per resolvable order id; malformed entries skipped

	rig, adjustments := newAdjustmentRig(t)
	ctx := context.Background()

	overdrawnBalance(t, rig, "ord-1", 250000, 20000)

	record := commission.ReconciliationRecord{
		ID:       "rec-1",
		TenantID: "brand-1",
		Type:     commission.ReconciliationDaily,
		Summary: map[string]any{
			"details": map[string]any{
				"statusMismatch": []any{
					map[string]any{"orderId": "ord-1", "vtex": "canceled"},
					map[string]any{"note": "no order id here"},
				},
				"missingInVtex": []any{
					map[string]any{"id": "ord-unknown"},
				},
			},
		},
	}

	require.NoError(t, adjustments.OnReconciliation(ctx, record))

	all, err := rig.store.ListAdjustments(ctx, commission.AdjustmentFilter{InfluencerID: "inf-1"})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "ord-1", all[0].OrderID)
	assert.Equal(t, commission.AdjustmentStatusMismatch, all[0].Type)
	assert.Equal(t, "rec-1", all[0].ReconciliationID)
	assert.Contains(t, all[0].Reason, "canceled")
}
