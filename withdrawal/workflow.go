/*
workflow.go - Withdrawal request, decision and payment processing

SEE package doc in types.go for the lifecycle overview.
*/
package withdrawal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/commission"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrRequestNotFound       = errors.New("withdrawal request not found")
	ErrPaymentNotFound       = errors.New("payment not found")
	ErrInfluencerNotFound    = errors.New("influencer not found")
	ErrInfluencerNotApproved = errors.New("influencer is not approved for withdrawals")
	ErrNoCampaignForBrand    = errors.New("influencer has no campaign for this brand")
	ErrAmountNotPositive     = errors.New("requested amount must be positive")
	ErrBelowBrandMinimum     = errors.New("available balance below the brand's withdrawal minimum")
	ErrExceedsAvailable      = errors.New("requested amount exceeds the available balance")
	ErrRequestRejected       = errors.New("cannot record a payment for a rejected request")
	ErrRequestNotApproved    = errors.New("request must be approved before recording a payment")
	ErrAmountMismatch        = errors.New("payment amount must match the approved request")
)

// paymentAmountTolerance absorbs rounding on externally entered amounts.
var paymentAmountTolerance = decimal.NewFromFloat(0.01)

// =============================================================================
// WORKFLOW
// =============================================================================

// Workflow processes withdrawal requests against the commission ledger.
type Workflow struct {
	store       Store
	ledger      *commission.BalanceLedger
	adjustments *commission.AdjustmentEngine
	dir         commission.Directory
	now         func() time.Time

	// Tenant assigned to requests when the caller does not specify one.
	Tenant string
}

// NewWorkflow wires the withdrawal workflow.
func NewWorkflow(store Store, ledger *commission.BalanceLedger, adjustments *commission.AdjustmentEngine, dir commission.Directory) *Workflow {
	return &Workflow{
		store:       store,
		ledger:      ledger,
		adjustments: adjustments,
		dir:         dir,
		now:         time.Now,
		Tenant:      commission.DefaultTenant,
	}
}

// WithClock overrides the workflow clock. Tests only.
func (w *Workflow) WithClock(now func() time.Time) *Workflow {
	w.now = now
	return w
}

// RequestInput parameterizes a new withdrawal request.
type RequestInput struct {
	TenantID          string
	InfluencerID      string
	BrandID           string
	Amount            decimal.Decimal
	Notes             string
	InitiatedBy       string
	ReconciliationIDs []string
}

// Request validates and opens a withdrawal request, reserving the amount in
// the influencer's pending bucket.
func (w *Workflow) Request(ctx context.Context, input RequestInput) (Request, error) {
	tenantID := input.TenantID
	if tenantID == "" {
		tenantID = w.Tenant
	}

	influencer, ok := w.dir.Influencer(input.InfluencerID)
	if !ok {
		return Request{}, ErrInfluencerNotFound
	}
	if influencer.Status != commission.InfluencerApproved {
		return Request{}, ErrInfluencerNotApproved
	}

	policy, err := w.store.BrandPolicy(ctx, input.BrandID)
	if err != nil {
		return Request{}, err
	}

	if !w.influencerAssignedToBrand(influencer, policy.BrandID) {
		return Request{}, ErrNoCampaignForBrand
	}

	amount := input.Amount.Round(2)
	if !amount.IsPositive() {
		return Request{}, ErrAmountNotPositive
	}

	balance, err := w.ledger.Ensure(ctx, tenantID, influencer.ID)
	if err != nil {
		return Request{}, err
	}
	if balance.AvailableForWithdrawal.LessThan(policy.MinimumAmount) {
		return Request{}, ErrBelowBrandMinimum
	}
	if amount.GreaterThan(balance.AvailableForWithdrawal) {
		return Request{}, ErrExceedsAvailable
	}

	now := w.now()
	request := Request{
		ID:                uuid.NewString(),
		TenantID:          tenantID,
		InfluencerID:      influencer.ID,
		BrandID:           policy.BrandID,
		BrandName:         policy.BrandName,
		RequestedAmount:   amount,
		Currency:          policy.Currency,
		Status:            StatusPending,
		RequestedAt:       now,
		Notes:             input.Notes,
		DecisionLog:       []DecisionEntry{},
		ReconciliationIDs: append([]string{}, input.ReconciliationIDs...),
	}

	if err := w.store.SaveRequest(ctx, request); err != nil {
		return Request{}, err
	}
	if err := w.ledger.AddPendingWithdrawal(ctx, tenantID, influencer.ID, amount); err != nil {
		return Request{}, err
	}
	return request, nil
}

// DecideInput parameterizes an approval or rejection.
type DecideInput struct {
	Status           Status // StatusApproved or StatusRejected
	ProcessedBy      string
	Notes            string
	PaymentReference string
}

// Decide approves or rejects a pending request. Deciding a non-pending
// request is an idempotent no-op returning the stored record. Rejection
// releases the reserved amount.
func (w *Workflow) Decide(ctx context.Context, requestID string, input DecideInput) (Request, error) {
	request, err := w.store.GetRequest(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	if request.Status != StatusPending {
		return request, nil
	}

	now := w.now()
	request.Status = input.Status
	request.ProcessedBy = input.ProcessedBy
	request.ProcessedAt = &now
	if input.Notes != "" {
		request.Notes = input.Notes
	}
	if input.PaymentReference != "" {
		request.PaymentReference = input.PaymentReference
	}
	request.DecisionLog = append(request.DecisionLog, DecisionEntry{
		Status:  input.Status,
		ActedBy: input.ProcessedBy,
		ActedAt: now,
		Notes:   input.Notes,
	})

	if err := w.store.SaveRequest(ctx, request); err != nil {
		return Request{}, err
	}

	if input.Status == StatusRejected {
		if err := w.ledger.ReleasePendingWithdrawal(ctx, request.TenantID, request.InfluencerID, request.RequestedAmount); err != nil {
			return Request{}, err
		}
	}
	return request, nil
}

// PaymentInput parameterizes a payment record.
type PaymentInput struct {
	WithdrawalID     string
	Amount           decimal.Decimal
	PaymentDate      time.Time
	Method           string
	Reference        string
	TaxWithheld      *decimal.Decimal
	ProcessedBy      string
	ReconciliationID string
	AdjustmentIDs    []string
}

// RecordPayment disburses an approved request: moves the amount from the
// pending bucket to withdrawn, marks the request paid, and resolves any
// applied adjustments as recovered. A still-pending request is approved
// automatically first.
func (w *Workflow) RecordPayment(ctx context.Context, input PaymentInput) (Payment, error) {
	request, err := w.store.GetRequest(ctx, input.WithdrawalID)
	if err != nil {
		return Payment{}, err
	}

	if request.Status == StatusRejected {
		return Payment{}, ErrRequestRejected
	}
	if request.Status == StatusPending {
		request, err = w.Decide(ctx, request.ID, DecideInput{
			Status:           StatusApproved,
			ProcessedBy:      input.ProcessedBy,
			Notes:            "auto-approved before payment",
			PaymentReference: input.Reference,
		})
		if err != nil {
			return Payment{}, err
		}
	}
	if request.Status != StatusApproved {
		return Payment{}, ErrRequestNotApproved
	}

	amount := input.Amount.Round(2)
	if amount.Sub(request.RequestedAmount).Abs().GreaterThan(paymentAmountTolerance) {
		return Payment{}, ErrAmountMismatch
	}

	now := w.now()
	payment := Payment{
		ID:                  uuid.NewString(),
		TenantID:            request.TenantID,
		InfluencerID:        request.InfluencerID,
		WithdrawalRequestID: request.ID,
		Amount:              amount,
		Currency:            request.Currency,
		PaymentDate:         input.PaymentDate,
		Method:              input.Method,
		Reference:           input.Reference,
		ProcessedBy:         input.ProcessedBy,
		CreatedAt:           now,
		ReconciliationID:    input.ReconciliationID,
	}
	if input.TaxWithheld != nil {
		withheld := input.TaxWithheld.Round(2)
		payment.TaxWithheld = &withheld
	}

	if err := w.ledger.RecordWithdrawalPaid(ctx, request.TenantID, request.InfluencerID, amount); err != nil {
		return Payment{}, err
	}

	request.Status = StatusPaid
	request.ProcessedBy = input.ProcessedBy
	request.ProcessedAt = &now
	if input.Reference != "" {
		request.PaymentReference = input.Reference
	}
	request.DecisionLog = append(request.DecisionLog, DecisionEntry{
		Status:  StatusPaid,
		ActedBy: input.ProcessedBy,
		ActedAt: now,
		Notes:   "payment recorded via " + input.Method,
	})
	if input.ReconciliationID != "" && !containsString(request.ReconciliationIDs, input.ReconciliationID) {
		request.ReconciliationIDs = append(request.ReconciliationIDs, input.ReconciliationID)
	}
	if err := w.store.SaveRequest(ctx, request); err != nil {
		return Payment{}, err
	}

	// Resolve applied adjustments as recovered. Unknown ids are skipped,
	// not fatal: the payment already went through.
	applied := make([]string, 0, len(input.AdjustmentIDs))
	seen := make(map[string]bool)
	for _, adjustmentID := range input.AdjustmentIDs {
		if adjustmentID == "" || seen[adjustmentID] {
			continue
		}
		seen[adjustmentID] = true

		resolved, err := w.adjustments.Resolve(ctx, adjustmentID, commission.ResolveInput{
			ResolvedBy:     input.ProcessedBy,
			ResolutionType: commission.ResolutionRecovered,
			PaymentID:      payment.ID,
		})
		if err != nil {
			if commission.IsNotFound(err) {
				continue
			}
			return Payment{}, err
		}
		applied = append(applied, resolved.ID)
	}
	payment.AppliedAdjustmentIDs = applied

	if err := w.store.SavePayment(ctx, payment); err != nil {
		return Payment{}, err
	}
	return payment, nil
}

func (w *Workflow) influencerAssignedToBrand(influencer commission.Influencer, brandID string) bool {
	for _, campaignID := range influencer.AssignedCampaignIDs {
		if campaign, ok := w.dir.Campaign(campaignID); ok && campaign.BrandID == brandID {
			return true
		}
	}
	return false
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
