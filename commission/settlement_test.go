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

// registerEstimated registers an order whose commission stays ESTIMATED while
// the order itself already reached the given status. This is the shape
// settlement confirms: the platform marked the order settled but only the
// batch run may promote the commission.
func registerEstimated(t *testing.T, rig *testRig, orderID string, status commission.OrderStatus, volume int64) {
	t.Helper()
	eligible := decimal.NewFromInt(volume)
	event := orderEvent(orderID, commission.EventOrderCreated, status, volume)
	event.EligibleAmount = &eligible
	result, err := rig.engine.RegisterOrderEvent(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, commission.StateEstimated, result.Commission.State)
}

// =============================================================================
// WAITING PERIOD TESTS
// =============================================================================

func TestSettlement_WaitingPeriodNotElapsed_StaysPending(t *testing.T) {
	// GIVEN: An estimated commission on a paid order, 10 days old
	// WHEN: Running settlement with a 15-day waiting period
	// THEN: Nothing is confirmed; the commission is reported pending

	rig := newTestRig(t)
	ctx := context.Background()
	settler := commission.NewSettler(rig.store, rig.engine)

	registerEstimated(t, rig, "ord-1", commission.OrderPaid, 150000)

	summary, err := settler.Run(ctx, commission.SettlementInput{
		EvaluationDate:    rig.clock.AddDate(0, 0, 10),
		WaitingPeriodDays: 15,
	})
	require.NoError(t, err)

	assert.Empty(t, summary.Confirmed)
	require.Len(t, summary.Pending, 1)
	assert.Equal(t, "waiting-period", summary.Pending[0].Reason)

	record, err := rig.store.GetCommission(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, commission.StateEstimated, record.State)
}

func TestSettlement_WaitingPeriodElapsed_Confirms(t *testing.T) {
	// GIVEN: An estimated commission on a paid order, 16 days old
	// WHEN: Running settlement with a 15-day waiting period
	// THEN: The commission is confirmed and the balance moves buckets

	rig := newTestRig(t)
	ctx := context.Background()
	settler := commission.NewSettler(rig.store, rig.engine)

	registerEstimated(t, rig, "ord-1", commission.OrderPaid, 150000)

	evaluationDate := rig.clock.AddDate(0, 0, 16)
	summary, err := settler.Run(ctx, commission.SettlementInput{
		EvaluationDate:    evaluationDate,
		WaitingPeriodDays: 15,
	})
	require.NoError(t, err)

	require.Len(t, summary.Confirmed, 1)
	assert.Equal(t, "waiting-period-met", summary.Confirmed[0].Reason)

	record, err := rig.store.GetCommission(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, commission.StateConfirmed, record.State)
	require.NotNil(t, record.ConfirmedAt)
	assert.True(t, record.ConfirmedAt.Equal(evaluationDate))

	balance, err := rig.ledger.Balance(ctx, "brand-1", "inf-1")
	require.NoError(t, err)
	assert.True(t, balance.ConfirmedAmount.Equal(money(15000)))
	assert.True(t, balance.EstimatedAmount.IsZero())
}

func TestSettlement_CreatedOrder_NeverConfirms(t *testing.T) {
	// GIVEN: An estimated commission whose order never left "created"
	// WHEN: Running settlement far in the future
	// THEN: It stays pending - only settled order statuses confirm

	rig := newTestRig(t)
	ctx := context.Background()
	settler := commission.NewSettler(rig.store, rig.engine)

	registerEstimated(t, rig, "ord-1", commission.OrderCreated, 150000)

	summary, err := settler.Run(ctx, commission.SettlementInput{
		EvaluationDate: rig.clock.AddDate(0, 0, 60),
	})
	require.NoError(t, err)

	assert.Empty(t, summary.Confirmed)
	require.Len(t, summary.Pending, 1)
}

// =============================================================================
// REVERSION AND IDEMPOTENCE TESTS
// =============================================================================

func TestSettlement_ConfirmedCommission_CanceledOrder_Reverts(t *testing.T) {
	// GIVEN: A confirmed commission whose order was canceled out-of-band
	// WHEN: Running settlement
	// THEN: The commission reverts and the confirmed bucket drains

	rig := newTestRig(t)
	ctx := context.Background()
	settler := commission.NewSettler(rig.store, rig.engine)

	eligible := decimal.NewFromInt(150000)
	paid := orderEvent("ord-1", commission.EventOrderPaid, commission.OrderPaid, 150000)
	paid.EligibleAmount = &eligible
	_, err := rig.engine.RegisterOrderEvent(ctx, paid)
	require.NoError(t, err)

	// The platform canceled the order without delivering a webhook.
	order, err := rig.store.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	order.Status = commission.OrderCanceled
	require.NoError(t, rig.store.SaveOrder(ctx, order))

	summary, err := settler.Run(ctx, commission.SettlementInput{EvaluationDate: rig.clock.AddDate(0, 0, 1)})
	require.NoError(t, err)

	require.Len(t, summary.Reverted, 1)
	assert.Equal(t, "order-canceled", summary.Reverted[0].Reason)

	balance, err := rig.ledger.Balance(ctx, "brand-1", "inf-1")
	require.NoError(t, err)
	assert.True(t, balance.ConfirmedAmount.IsZero())
	assert.True(t, balance.RevertedAmount.Equal(money(15000)))
}

func TestSettlement_SecondRun_IsIdempotent(t *testing.T) {
	// GIVEN: A settlement run that confirmed one commission
	// WHEN: Running again with the same inputs
	// THEN: Nothing transitions and the balance is unchanged

	rig := newTestRig(t)
	ctx := context.Background()
	settler := commission.NewSettler(rig.store, rig.engine)

	registerEstimated(t, rig, "ord-1", commission.OrderPaid, 150000)
	input := commission.SettlementInput{
		EvaluationDate:    rig.clock.AddDate(0, 0, 20),
		WaitingPeriodDays: 15,
	}

	first, err := settler.Run(ctx, input)
	require.NoError(t, err)
	require.Len(t, first.Confirmed, 1)

	second, err := settler.Run(ctx, input)
	require.NoError(t, err)
	assert.Empty(t, second.Confirmed)
	assert.Empty(t, second.Reverted)

	balance, err := rig.ledger.Balance(ctx, "brand-1", "inf-1")
	require.NoError(t, err)
	assert.True(t, balance.ConfirmedAmount.Equal(money(15000)))
}

func TestSettlement_RevertedCommission_IsTerminal(t *testing.T) {
	// GIVEN: A reverted commission
	// WHEN: Running settlement even though the order looks settled
	// THEN: The commission does not leave REVERTED

	rig := newTestRig(t)
	ctx := context.Background()
	settler := commission.NewSettler(rig.store, rig.engine)

	eligible := decimal.NewFromInt(150000)
	canceled := orderEvent("ord-1", commission.EventOrderCanceled, commission.OrderCanceled, 150000)
	canceled.EligibleAmount = &eligible
	_, err := rig.engine.RegisterOrderEvent(ctx, canceled)
	require.NoError(t, err)

	order, err := rig.store.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	order.Status = commission.OrderPaid
	order.UpdatedAt = rig.clock.AddDate(0, 0, -30)
	require.NoError(t, rig.store.SaveOrder(ctx, order))

	summary, err := settler.Run(ctx, commission.SettlementInput{EvaluationDate: rig.clock})
	require.NoError(t, err)
	assert.Empty(t, summary.Confirmed)

	record, err := rig.store.GetCommission(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, commission.StateReverted, record.State)
}

func TestSettlement_AuditTrailRecordsRun(t *testing.T) {
	// GIVEN: A settlement confirmation
	// WHEN: Inspecting the commission afterwards
	// THEN: The audit entry names the settlement context and metadata carries
	//       the run timestamp

	rig := newTestRig(t)
	ctx := context.Background()
	settler := commission.NewSettler(rig.store, rig.engine)

	registerEstimated(t, rig, "ord-1", commission.OrderPaid, 150000)

	evaluationDate := rig.clock.AddDate(0, 0, 20)
	_, err := settler.Run(ctx, commission.SettlementInput{
		EvaluationDate: evaluationDate,
		TriggeredBy:    "test-run",
	})
	require.NoError(t, err)

	record, err := rig.store.GetCommission(ctx, "ord-1")
	require.NoError(t, err)
	require.Len(t, record.AuditTrail, 2)

	last := record.AuditTrail[len(record.AuditTrail)-1]
	assert.Equal(t, "settlement:auto", last.Context)
	assert.Equal(t, "test-run", last.TriggeredBy)
	assert.Equal(t, evaluationDate.Format(time.RFC3339), record.Metadata["settlementRunAt"])
}
