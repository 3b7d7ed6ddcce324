/*
engine.go - Commission state machine

PURPOSE:
  Registers order lifecycle events: upserts the order, derives or updates the
  commission record for it, appends one audit entry, and hands the transition
  pair to the balance ledger. This is the only write path into balances from
  order events.

STATE DERIVATION:
  order-paid     -> CONFIRMED
  order-canceled -> REVERTED
  anything else  -> ESTIMATED

  The target state is a pure function of the incoming event type, not of the
  previous commission state. Redelivering the same event recomputes the same
  target state (idempotent in effect) but still appends one audit entry per
  call - replays stay visible in the trail.

ACTOR RESOLUTION:
  The coupon code on the event supplies campaign and influencer. When a
  repeat event arrives without a coupon (a cancellation webhook usually
  doesn't carry one), the previously stored order's campaign/influencer are
  reused. An order with no resolvable influencer/campaign is persisted but
  produces no commission - a no-op, not an error.

SEE ALSO:
  - eligible.go: eligible amount computation
  - tier.go: current tier resolution
  - ledger.go: balance delta application
*/
package commission

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultTenant is used when an event cannot be attributed to a tenant
// through its discount code.
const DefaultTenant = "default"

// =============================================================================
// ORDER EVENTS
// =============================================================================

// OrderEvent is the normalized inbound order lifecycle event.
type OrderEvent struct {
	OrderID        string
	EventType      OrderEventType
	Status         OrderStatus
	TotalAmount    decimal.Decimal
	Currency       string
	CouponCode     string
	Items          []OrderItem
	ShippingAmount *decimal.Decimal
	TaxAmount      *decimal.Decimal

	// EligibleAmount overrides the computed eligible amount when set.
	EligibleAmount *decimal.Decimal

	IncludeShippingInEligible bool
}

// RegisterResult reports the persisted order and the commission derived for
// it. Commission is nil when the order has no resolvable influencer/campaign.
type RegisterResult struct {
	Order      Order
	Commission *CommissionRecord
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine is the commission state machine.
type Engine struct {
	store  Store
	dir    Directory
	tiers  *TierTracker
	ledger *BalanceLedger
	locks  *keyedMutex
	now    func() time.Time

	// Tenant assigned to orders whose coupon is unknown.
	Tenant string
}

// NewEngine wires the state machine over its collaborators.
func NewEngine(store Store, dir Directory, tiers *TierTracker, ledger *BalanceLedger) *Engine {
	return &Engine{
		store:  store,
		dir:    dir,
		tiers:  tiers,
		ledger: ledger,
		locks:  newKeyedMutex(),
		now:    time.Now,
		Tenant: DefaultTenant,
	}
}

// WithClock overrides the engine clock. Tests only.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// RegisterOrderEvent processes one order lifecycle event. The commission
// read-modify-write is serialized per order id; balance application is
// serialized per influencer key inside the ledger.
func (e *Engine) RegisterOrderEvent(ctx context.Context, event OrderEvent) (RegisterResult, error) {
	unlock := e.locks.Lock(event.OrderID)
	defer unlock()

	discount, hasDiscount := DiscountCode{}, false
	if event.CouponCode != "" {
		discount, hasDiscount = e.dir.FindDiscountByCode(event.CouponCode)
	}

	tenantID := e.Tenant
	if hasDiscount {
		tenantID = discount.TenantID
	}

	previousOrder, err := e.store.GetOrder(ctx, event.OrderID)
	hasPrevious := err == nil
	if err != nil && !IsNotFound(err) {
		return RegisterResult{}, err
	}

	campaignID := discount.CampaignID
	influencerID := discount.InfluencerID
	if campaignID == "" && hasPrevious {
		campaignID = previousOrder.CampaignID
	}
	if influencerID == "" && hasPrevious {
		influencerID = previousOrder.InfluencerID
	}

	campaign, hasCampaign := CampaignConfig{}, false
	if campaignID != "" {
		campaign, hasCampaign = e.dir.Campaign(campaignID)
	}
	_, hasInfluencer := Influencer{}, false
	if influencerID != "" {
		_, hasInfluencer = e.dir.Influencer(influencerID)
	}

	now := e.now()

	var campaignRef *CampaignConfig
	if hasCampaign {
		campaignRef = &campaign
	}

	eligibleAmount := decimal.Zero
	if event.EligibleAmount != nil {
		eligibleAmount = *event.EligibleAmount
	} else {
		eligibleAmount = CalculateEligibleAmount(EligibleAmountInput{
			Campaign:        campaignRef,
			Items:           event.Items,
			TaxAmount:       deref(event.TaxAmount),
			ShippingAmount:  deref(event.ShippingAmount),
			IncludeShipping: event.IncludeShippingInEligible,
		})
	}

	order := e.upsertOrder(previousOrder, hasPrevious, event, discount, hasDiscount, tenantID, influencerID, campaignID, eligibleAmount, now)
	if err := e.store.SaveOrder(ctx, order); err != nil {
		return RegisterResult{}, err
	}

	// No resolvable influencer or campaign: persist the order, skip the
	// commission. Benign partial delivery, not an error.
	if order.InfluencerID == "" || order.CampaignID == "" || !hasCampaign || !hasInfluencer {
		return RegisterResult{Order: order}, nil
	}

	commission, err := e.applyCommission(ctx, order, campaign, event.EventType, event.IncludeShippingInEligible, now)
	if err != nil {
		return RegisterResult{}, err
	}
	return RegisterResult{Order: order, Commission: commission}, nil
}

func (e *Engine) upsertOrder(previous Order, hasPrevious bool, event OrderEvent, discount DiscountCode, hasDiscount bool, tenantID, influencerID, campaignID string, eligibleAmount decimal.Decimal, now time.Time) Order {
	if hasPrevious {
		order := previous
		order.Status = event.Status
		order.TotalAmount = event.TotalAmount
		order.Currency = event.Currency
		order.Items = event.Items
		if event.ShippingAmount != nil {
			order.ShippingAmount = *event.ShippingAmount
		}
		if event.TaxAmount != nil {
			order.TaxAmount = *event.TaxAmount
		}
		order.EligibleAmount = eligibleAmount
		order.UpdatedAt = now
		return order
	}

	order := Order{
		ID:             event.OrderID,
		TenantID:       tenantID,
		Status:         event.Status,
		TotalAmount:    event.TotalAmount,
		Currency:       event.Currency,
		ShippingAmount: deref(event.ShippingAmount),
		TaxAmount:      deref(event.TaxAmount),
		EligibleAmount: eligibleAmount,
		InfluencerID:   influencerID,
		CampaignID:     campaignID,
		Items:          event.Items,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if hasDiscount {
		order.DiscountCodeID = discount.ID
	}
	return order
}

func (e *Engine) applyCommission(ctx context.Context, order Order, campaign CampaignConfig, eventType OrderEventType, includeShipping bool, now time.Time) (*CommissionRecord, error) {
	var previous *CommissionRecord
	if existing, err := e.store.GetCommission(ctx, order.ID); err == nil {
		previous = &existing
	} else if !IsNotFound(err) {
		return nil, err
	}

	nextState := resolveCommissionState(eventType)

	tier, err := e.tiers.ResolveCurrentTier(ctx, campaign, order.InfluencerID)
	if err != nil {
		return nil, err
	}

	// The tracker always yields a tier (the base tier carries the campaign's
	// flat rate), so the rate comes straight off the snapshot.
	rate := tier.CommissionPercent

	commissionAmount := round2(order.EligibleAmount.Mul(rate).Div(decimal.NewFromInt(100)))

	commissionID := uuid.NewString()
	if previous != nil {
		commissionID = previous.ID
	}

	var previousState *CommissionState
	if previous != nil {
		s := previous.State
		previousState = &s
	}

	audit := AuditEntry{
		ID:            uuid.NewString(),
		CommissionID:  commissionID,
		PreviousState: previousState,
		NextState:     nextState,
		ChangedAt:     now,
		TriggeredBy:   "system",
		Context:       "event:" + string(eventType),
	}

	metadata := map[string]any{}
	if previous != nil {
		for k, v := range previous.Metadata {
			metadata[k] = v
		}
	}
	metadata["tierThreshold"] = tier.ThresholdConfirmedSales.InexactFloat64()
	metadata["eventType"] = string(eventType)
	metadata["includeShipping"] = includeShipping

	record := CommissionRecord{
		ID:               commissionID,
		TenantID:         order.TenantID,
		OrderID:          order.ID,
		InfluencerID:     order.InfluencerID,
		CampaignID:       order.CampaignID,
		State:            nextState,
		GrossAmount:      order.TotalAmount,
		EligibleAmount:   order.EligibleAmount,
		CommissionRate:   rate,
		CommissionAmount: commissionAmount,
		TierLevel:        tier.Level,
		TierName:         tier.Name,
		CalculatedAt:     now,
		Metadata:         metadata,
	}

	if previous != nil {
		record.ConfirmedAt = previous.ConfirmedAt
		record.RevertedAt = previous.RevertedAt
		record.Reason = previous.Reason
		record.AuditTrail = append(record.AuditTrail, previous.AuditTrail...)
	}
	record.AuditTrail = append(record.AuditTrail, audit)

	// ConfirmedAt is set only on CONFIRMED and cleared on ESTIMATED;
	// RevertedAt mirrors the same rule for REVERTED.
	switch nextState {
	case StateConfirmed:
		record.ConfirmedAt = &now
	case StateReverted:
		record.RevertedAt = &now
		record.Reason = "order-canceled"
	case StateEstimated:
		record.ConfirmedAt = nil
		record.RevertedAt = nil
	}

	if err := e.persistTransition(ctx, previous, record, audit); err != nil {
		return nil, err
	}
	return &record, nil
}

// persistTransition saves the commission, appends the audit entry, and routes
// the transition pair through the balance ledger. Settlement shares this path.
func (e *Engine) persistTransition(ctx context.Context, previous *CommissionRecord, current CommissionRecord, audit AuditEntry) error {
	if err := e.store.SaveCommission(ctx, current); err != nil {
		return err
	}
	if err := e.store.AppendAudit(ctx, audit); err != nil {
		return err
	}
	return e.ledger.ApplyTransition(ctx, previous, current)
}

// resolveCommissionState derives the target state from the event type alone.
func resolveCommissionState(eventType OrderEventType) CommissionState {
	switch eventType {
	case EventOrderPaid:
		return StateConfirmed
	case EventOrderCanceled:
		return StateReverted
	case EventOrderCreated:
		return StateEstimated
	default:
		return StateEstimated
	}
}

func deref(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
