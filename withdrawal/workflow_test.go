package withdrawal_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/commission-engine/commission"
	commstore "github.com/warp/commission-engine/commission/store"
	"github.com/warp/commission-engine/withdrawal"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fakeDirectory struct {
	campaigns   map[string]commission.CampaignConfig
	influencers map[string]commission.Influencer
}

func (d *fakeDirectory) FindDiscountByCode(string) (commission.DiscountCode, bool) {
	return commission.DiscountCode{}, false
}

func (d *fakeDirectory) Campaign(id string) (commission.CampaignConfig, bool) {
	c, ok := d.campaigns[id]
	return c, ok
}

func (d *fakeDirectory) Influencer(id string) (commission.Influencer, bool) {
	i, ok := d.influencers[id]
	return i, ok
}

type workflowRig struct {
	workflow    *withdrawal.Workflow
	payouts     *withdrawal.Memory
	store       *commstore.Memory
	ledger      *commission.BalanceLedger
	adjustments *commission.AdjustmentEngine
	dir         *fakeDirectory
	clock       time.Time
}

func newWorkflowRig(t *testing.T) *workflowRig {
	t.Helper()

	dir := &fakeDirectory{
		campaigns: map[string]commission.CampaignConfig{
			"camp-1": {ID: "camp-1", TenantID: "brand-1", BrandID: "brand-1", BrandName: "Aurora", Name: "Launch"},
		},
		influencers: map[string]commission.Influencer{
			"inf-1": {ID: "inf-1", Name: "Maria", Status: commission.InfluencerApproved, AssignedCampaignIDs: []string{"camp-1"}},
			"inf-2": {ID: "inf-2", Name: "Pending Pablo", Status: commission.InfluencerPending},
		},
	}

	rig := &workflowRig{
		payouts: withdrawal.NewMemory(),
		dir:     dir,
		clock:   time.Date(2026, time.February, 1, 9, 0, 0, 0, time.UTC),
	}
	now := func() time.Time { return rig.clock }

	rig.store = commstore.NewMemory()
	rig.ledger = commission.NewBalanceLedger(rig.store).WithClock(now)
	rig.adjustments = commission.NewAdjustmentEngine(rig.store, rig.ledger, dir).WithClock(now)
	rig.workflow = withdrawal.NewWorkflow(rig.payouts, rig.ledger, rig.adjustments, dir).WithClock(now)
	rig.workflow.Tenant = "brand-1"
	return rig
}

// fund confirms the given amount into inf-1's balance.
func (r *workflowRig) fund(t *testing.T, amount float64) {
	t.Helper()
	err := r.ledger.ApplyTransition(context.Background(), nil, commission.CommissionRecord{
		ID:               "c-fund",
		TenantID:         "brand-1",
		InfluencerID:     "inf-1",
		State:            commission.StateConfirmed,
		CommissionAmount: decimal.NewFromFloat(amount),
	})
	require.NoError(t, err)
}

// =============================================================================
// REQUEST VALIDATION TESTS
// =============================================================================

func TestRequest_ReservesAmount(t *testing.T) {
	// GIVEN: 50000 available
	// WHEN: Requesting a 30000 withdrawal
	// THEN: The request is pending and 30000 moves to the pending bucket

	rig := newWorkflowRig(t)
	ctx := context.Background()
	rig.fund(t, 50000)

	request, err := rig.workflow.Request(ctx, withdrawal.RequestInput{
		InfluencerID: "inf-1",
		BrandID:      "brand-1",
		Amount:       decimal.NewFromInt(30000),
	})
	require.NoError(t, err)
	assert.Equal(t, withdrawal.StatusPending, request.Status)

	balance, err := rig.ledger.Balance(ctx, "brand-1", "inf-1")
	require.NoError(t, err)
	assert.True(t, balance.PendingWithdrawalAmount.Equal(decimal.NewFromInt(30000)))
	assert.True(t, balance.AvailableForWithdrawal.Equal(decimal.NewFromInt(20000)))
}

func TestRequest_RejectsUnapprovedInfluencer(t *testing.T) {
	rig := newWorkflowRig(t)

	_, err := rig.workflow.Request(context.Background(), withdrawal.RequestInput{
		InfluencerID: "inf-2",
		BrandID:      "brand-1",
		Amount:       decimal.NewFromInt(1000),
	})
	assert.ErrorIs(t, err, withdrawal.ErrInfluencerNotApproved)
}

func TestRequest_RejectsBrandWithoutCampaign(t *testing.T) {
	rig := newWorkflowRig(t)
	rig.fund(t, 50000)

	_, err := rig.workflow.Request(context.Background(), withdrawal.RequestInput{
		InfluencerID: "inf-1",
		BrandID:      "brand-other",
		Amount:       decimal.NewFromInt(1000),
	})
	assert.ErrorIs(t, err, withdrawal.ErrNoCampaignForBrand)
}

func TestRequest_RejectsAmountOverAvailable(t *testing.T) {
	rig := newWorkflowRig(t)
	rig.fund(t, 10000)

	_, err := rig.workflow.Request(context.Background(), withdrawal.RequestInput{
		InfluencerID: "inf-1",
		BrandID:      "brand-1",
		Amount:       decimal.NewFromInt(10001),
	})
	assert.ErrorIs(t, err, withdrawal.ErrExceedsAvailable)
}

func TestRequest_RejectsBelowBrandMinimum(t *testing.T) {
	// GIVEN: A brand minimum of 100000 and only 50000 available
	// WHEN: Requesting any amount
	// THEN: The request is rejected on the minimum, not the amount

	rig := newWorkflowRig(t)
	ctx := context.Background()
	rig.fund(t, 50000)

	require.NoError(t, rig.payouts.SaveBrandPolicy(ctx, withdrawal.BrandPolicy{
		BrandID:       "brand-1",
		BrandName:     "Aurora",
		MinimumAmount: decimal.NewFromInt(100000),
		Currency:      "COP",
	}))

	_, err := rig.workflow.Request(ctx, withdrawal.RequestInput{
		InfluencerID: "inf-1",
		BrandID:      "brand-1",
		Amount:       decimal.NewFromInt(10000),
	})
	assert.ErrorIs(t, err, withdrawal.ErrBelowBrandMinimum)
}

func TestRequest_RejectsNonPositiveAmount(t *testing.T) {
	rig := newWorkflowRig(t)
	rig.fund(t, 50000)

	_, err := rig.workflow.Request(context.Background(), withdrawal.RequestInput{
		InfluencerID: "inf-1",
		BrandID:      "brand-1",
		Amount:       decimal.Zero,
	})
	assert.ErrorIs(t, err, withdrawal.ErrAmountNotPositive)
}

// =============================================================================
// DECISION TESTS
// =============================================================================

func TestDecide_Reject_ReleasesReservation(t *testing.T) {
	// GIVEN: A pending request reserving 30000
	// WHEN: Rejecting it
	// THEN: The reservation returns to the available pool

	rig := newWorkflowRig(t)
	ctx := context.Background()
	rig.fund(t, 50000)

	request, err := rig.workflow.Request(ctx, withdrawal.RequestInput{
		InfluencerID: "inf-1", BrandID: "brand-1", Amount: decimal.NewFromInt(30000),
	})
	require.NoError(t, err)

	decided, err := rig.workflow.Decide(ctx, request.ID, withdrawal.DecideInput{
		Status:      withdrawal.StatusRejected,
		ProcessedBy: "ops",
		Notes:       "bank details invalid",
	})
	require.NoError(t, err)
	assert.Equal(t, withdrawal.StatusRejected, decided.Status)
	require.Len(t, decided.DecisionLog, 1)

	balance, err := rig.ledger.Balance(ctx, "brand-1", "inf-1")
	require.NoError(t, err)
	assert.True(t, balance.PendingWithdrawalAmount.IsZero())
	assert.True(t, balance.AvailableForWithdrawal.Equal(decimal.NewFromInt(50000)))
}

func TestDecide_NonPending_IsIdempotentNoOp(t *testing.T) {
	rig := newWorkflowRig(t)
	ctx := context.Background()
	rig.fund(t, 50000)

	request, err := rig.workflow.Request(ctx, withdrawal.RequestInput{
		InfluencerID: "inf-1", BrandID: "brand-1", Amount: decimal.NewFromInt(30000),
	})
	require.NoError(t, err)

	_, err = rig.workflow.Decide(ctx, request.ID, withdrawal.DecideInput{Status: withdrawal.StatusApproved, ProcessedBy: "ops"})
	require.NoError(t, err)

	again, err := rig.workflow.Decide(ctx, request.ID, withdrawal.DecideInput{Status: withdrawal.StatusRejected, ProcessedBy: "ops"})
	require.NoError(t, err)
	assert.Equal(t, withdrawal.StatusApproved, again.Status)
	assert.Len(t, again.DecisionLog, 1)
}

// =============================================================================
// PAYMENT TESTS
// =============================================================================

func TestRecordPayment_MovesPendingToWithdrawn(t *testing.T) {
	// GIVEN: An approved 30000 request
	// WHEN: Recording the payment
	// THEN: Pending drains, withdrawn grows, request is paid

	rig := newWorkflowRig(t)
	ctx := context.Background()
	rig.fund(t, 50000)

	request, err := rig.workflow.Request(ctx, withdrawal.RequestInput{
		InfluencerID: "inf-1", BrandID: "brand-1", Amount: decimal.NewFromInt(30000),
	})
	require.NoError(t, err)
	_, err = rig.workflow.Decide(ctx, request.ID, withdrawal.DecideInput{Status: withdrawal.StatusApproved, ProcessedBy: "ops"})
	require.NoError(t, err)

	payment, err := rig.workflow.RecordPayment(ctx, withdrawal.PaymentInput{
		WithdrawalID: request.ID,
		Amount:       decimal.NewFromInt(30000),
		PaymentDate:  rig.clock,
		Method:       "bank-transfer",
		Reference:    "TRX-1",
		ProcessedBy:  "ops",
	})
	require.NoError(t, err)
	assert.True(t, payment.Amount.Equal(decimal.NewFromInt(30000)))

	stored, err := rig.payouts.GetRequest(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, withdrawal.StatusPaid, stored.Status)

	balance, err := rig.ledger.Balance(ctx, "brand-1", "inf-1")
	require.NoError(t, err)
	assert.True(t, balance.PendingWithdrawalAmount.IsZero())
	assert.True(t, balance.WithdrawnAmount.Equal(decimal.NewFromInt(30000)))
	assert.True(t, balance.AvailableForWithdrawal.Equal(decimal.NewFromInt(20000)))
}

func TestRecordPayment_PendingRequest_AutoApproves(t *testing.T) {
	// GIVEN: A still-pending request
	// WHEN: Recording a payment directly
	// THEN: The request is approved first, then paid - two decision entries

	rig := newWorkflowRig(t)
	ctx := context.Background()
	rig.fund(t, 50000)

	request, err := rig.workflow.Request(ctx, withdrawal.RequestInput{
		InfluencerID: "inf-1", BrandID: "brand-1", Amount: decimal.NewFromInt(30000),
	})
	require.NoError(t, err)

	_, err = rig.workflow.RecordPayment(ctx, withdrawal.PaymentInput{
		WithdrawalID: request.ID,
		Amount:       decimal.NewFromInt(30000),
		PaymentDate:  rig.clock,
		Method:       "bank-transfer",
		ProcessedBy:  "ops",
	})
	require.NoError(t, err)

	stored, err := rig.payouts.GetRequest(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, withdrawal.StatusPaid, stored.Status)
	require.Len(t, stored.DecisionLog, 2)
	assert.Equal(t, withdrawal.StatusApproved, stored.DecisionLog[0].Status)
	assert.Equal(t, withdrawal.StatusPaid, stored.DecisionLog[1].Status)
}

func TestRecordPayment_RejectedRequest_Errors(t *testing.T) {
	rig := newWorkflowRig(t)
	ctx := context.Background()
	rig.fund(t, 50000)

	request, err := rig.workflow.Request(ctx, withdrawal.RequestInput{
		InfluencerID: "inf-1", BrandID: "brand-1", Amount: decimal.NewFromInt(30000),
	})
	require.NoError(t, err)
	_, err = rig.workflow.Decide(ctx, request.ID, withdrawal.DecideInput{Status: withdrawal.StatusRejected, ProcessedBy: "ops"})
	require.NoError(t, err)

	_, err = rig.workflow.RecordPayment(ctx, withdrawal.PaymentInput{
		WithdrawalID: request.ID,
		Amount:       decimal.NewFromInt(30000),
		PaymentDate:  rig.clock,
	})
	assert.ErrorIs(t, err, withdrawal.ErrRequestRejected)
}

func TestRecordPayment_AmountOutsideTolerance_Errors(t *testing.T) {
	// GIVEN: An approved 30000 request
	// WHEN: Recording 30000.02 (tolerance is 0.01)
	// THEN: The payment is refused

	rig := newWorkflowRig(t)
	ctx := context.Background()
	rig.fund(t, 50000)

	request, err := rig.workflow.Request(ctx, withdrawal.RequestInput{
		InfluencerID: "inf-1", BrandID: "brand-1", Amount: decimal.NewFromInt(30000),
	})
	require.NoError(t, err)
	_, err = rig.workflow.Decide(ctx, request.ID, withdrawal.DecideInput{Status: withdrawal.StatusApproved, ProcessedBy: "ops"})
	require.NoError(t, err)

	_, err = rig.workflow.RecordPayment(ctx, withdrawal.PaymentInput{
		WithdrawalID: request.ID,
		Amount:       decimal.NewFromFloat(30000.02),
		PaymentDate:  rig.clock,
	})
	assert.ErrorIs(t, err, withdrawal.ErrAmountMismatch)

	// One cent off is absorbed.
	_, err = rig.workflow.RecordPayment(ctx, withdrawal.PaymentInput{
		WithdrawalID: request.ID,
		Amount:       decimal.NewFromFloat(30000.01),
		PaymentDate:  rig.clock,
	})
	assert.NoError(t, err)
}

func TestRecordPayment_ResolvesAdjustmentsAsRecovered(t *testing.T) {
	// GIVEN: A pending adjustment for the influencer
	// WHEN: Recording a payment that applies it
	// THEN: The adjustment resolves as recovered, linked to the payment;
	//       unknown adjustment ids are skipped without failing the payment

	rig := newWorkflowRig(t)
	ctx := context.Background()
	rig.fund(t, 50000)

	// A pending adjustment saved directly against the shared store.
	adjustment := commission.WithdrawalAdjustment{
		ID:           "adj-1",
		TenantID:     "brand-1",
		InfluencerID: "inf-1",
		OrderID:      "ord-x",
		Amount:       decimal.NewFromInt(5000),
		Type:         commission.AdjustmentStatusMismatch,
		Status:       commission.AdjustmentPending,
		CreatedAt:    rig.clock,
		UpdatedAt:    rig.clock,
	}
	require.NoError(t, rig.store.SaveAdjustment(ctx, adjustment))

	request, err := rig.workflow.Request(ctx, withdrawal.RequestInput{
		InfluencerID: "inf-1", BrandID: "brand-1", Amount: decimal.NewFromInt(20000),
	})
	require.NoError(t, err)

	payment, err := rig.workflow.RecordPayment(ctx, withdrawal.PaymentInput{
		WithdrawalID:  request.ID,
		Amount:        decimal.NewFromInt(20000),
		PaymentDate:   rig.clock,
		ProcessedBy:   "ops",
		AdjustmentIDs: []string{"adj-1", "adj-1", "adj-missing"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"adj-1"}, payment.AppliedAdjustmentIDs)

	resolved, err := rig.store.GetAdjustment(ctx, "adj-1")
	require.NoError(t, err)
	assert.Equal(t, commission.AdjustmentResolved, resolved.Status)
	assert.Equal(t, commission.ResolutionRecovered, resolved.ResolutionType)
	assert.Equal(t, payment.ID, resolved.ResolvedByPaymentID)
}
