/*
settlement.go - Periodic batch settlement

PURPOSE:
  Scans every commission on record and promotes or demotes its state once
  the waiting period has elapsed and the order status supports it:

  ESTIMATED -> CONFIRMED  when the order is paid/invoiced/shipped, was last
                          updated on or before (evaluationDate - waiting
                          period), and is not canceled/returned
  CONFIRMED -> REVERTED   when the order is canceled or returned
  REVERTED               terminal; never touched again

  Everything else is reported as pending with a reason. The scan is
  idempotent: re-running with the same evaluation date produces no further
  transitions because the guards no longer hold.

CONCURRENCY:
  A run never overlaps with another run (single in-flight, guarded by a
  TryLock). It may run concurrently with individual order events; each
  commission's read-modify-write is serialized per order id and each balance
  write per influencer key, same as the event path.

SEE ALSO:
  - engine.go: shares the persist path (commission + audit + ledger)
  - api/scheduler.go: runs settlement on a ticker
*/
package commission

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultWaitingPeriodDays applies when a run does not specify one.
const DefaultWaitingPeriodDays = 15

// =============================================================================
// SETTLER
// =============================================================================

// SettlementInput parameterizes one run. Zero values select the defaults:
// now, 15 days, "system".
type SettlementInput struct {
	EvaluationDate    time.Time
	WaitingPeriodDays int
	TriggeredBy       string
}

// Settler runs batch settlement over the commission set.
type Settler struct {
	store  Store
	engine *Engine
	mu     sync.Mutex
	now    func() time.Time
}

// NewSettler creates a settler sharing the engine's persist path.
func NewSettler(store Store, engine *Engine) *Settler {
	return &Settler{store: store, engine: engine, now: time.Now}
}

// WithClock overrides the settler clock. Tests only.
func (s *Settler) WithClock(now func() time.Time) *Settler {
	s.now = now
	return s
}

// Run executes one settlement pass. Returns ErrSettlementInFlight when
// another pass is still executing.
func (s *Settler) Run(ctx context.Context, input SettlementInput) (SettlementSummary, error) {
	if !s.mu.TryLock() {
		return SettlementSummary{}, ErrSettlementInFlight
	}
	defer s.mu.Unlock()

	evaluationDate := input.EvaluationDate
	if evaluationDate.IsZero() {
		evaluationDate = s.now()
	}
	waitingPeriodDays := input.WaitingPeriodDays
	if waitingPeriodDays <= 0 {
		waitingPeriodDays = DefaultWaitingPeriodDays
	}
	triggeredBy := input.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = "system"
	}

	thresholdDate := evaluationDate.AddDate(0, 0, -waitingPeriodDays)

	summary := SettlementSummary{
		EvaluationDate:    evaluationDate,
		WaitingPeriodDays: waitingPeriodDays,
		Confirmed:         []SettlementTransition{},
		Reverted:          []SettlementTransition{},
		Pending:           []SettlementTransition{},
	}

	snapshot, err := s.store.ListCommissions(ctx)
	if err != nil {
		return SettlementSummary{}, err
	}

	for _, commission := range snapshot {
		order, err := s.store.GetOrder(ctx, commission.OrderID)
		if err != nil {
			if IsNotFound(err) {
				// The order vanished: report, keep scanning. Not fatal
				// to the batch.
				summary.Pending = append(summary.Pending, transition(commission, commission.State, evaluationDate, "order-missing"))
				continue
			}
			return SettlementSummary{}, err
		}

		switch commission.State {
		case StateEstimated:
			if shouldConfirm(order, thresholdDate) {
				if _, err := s.transitionCommission(ctx, commission, StateConfirmed, evaluationDate, triggeredBy, "settlement:auto", ""); err != nil {
					return SettlementSummary{}, err
				}
				summary.Confirmed = append(summary.Confirmed, transition(commission, StateConfirmed, evaluationDate, "waiting-period-met"))
				continue
			}
			reason := "status-" + string(order.Status)
			if order.Status == OrderCreated || order.Status == OrderPaid {
				reason = "waiting-period"
			}
			summary.Pending = append(summary.Pending, transition(commission, commission.State, evaluationDate, reason))

		case StateConfirmed:
			if order.Status == OrderCanceled || order.Status == OrderReturned {
				reason := "order-" + string(order.Status)
				if _, err := s.transitionCommission(ctx, commission, StateReverted, evaluationDate, triggeredBy, "settlement:"+string(order.Status), reason); err != nil {
					return SettlementSummary{}, err
				}
				summary.Reverted = append(summary.Reverted, transition(commission, StateReverted, evaluationDate, reason))
			}

		case StateReverted:
			// Terminal for settlement purposes.
		}
	}

	return summary, nil
}

// transitionCommission applies one settlement state change through the same
// persist path order events use (commission + audit entry + balance ledger).
func (s *Settler) transitionCommission(ctx context.Context, commission CommissionRecord, nextState CommissionState, evaluationDate time.Time, triggeredBy, auditContext string, reason string) (CommissionRecord, error) {
	// Re-read under the order lock so a concurrent event is not clobbered.
	unlock := s.engine.locks.Lock(commission.OrderID)
	defer unlock()

	current, err := s.store.GetCommission(ctx, commission.OrderID)
	if err != nil {
		return CommissionRecord{}, err
	}
	if current.State != commission.State {
		// An event raced us and already moved the state; the guards no
		// longer apply to this snapshot entry.
		return current, nil
	}

	previous := current
	previousState := current.State

	audit := AuditEntry{
		ID:            uuid.NewString(),
		CommissionID:  current.ID,
		PreviousState: &previousState,
		NextState:     nextState,
		ChangedAt:     evaluationDate,
		TriggeredBy:   triggeredBy,
		Context:       auditContext,
	}

	current.State = nextState
	switch nextState {
	case StateConfirmed:
		current.ConfirmedAt = &evaluationDate
	case StateReverted:
		current.RevertedAt = &evaluationDate
		current.Reason = reason
	}

	metadata := map[string]any{}
	for k, v := range previous.Metadata {
		metadata[k] = v
	}
	metadata["settlementRunAt"] = evaluationDate.Format(time.RFC3339)
	metadata["settlementTriggeredBy"] = triggeredBy
	current.Metadata = metadata

	trail := make([]AuditEntry, 0, len(previous.AuditTrail)+1)
	trail = append(trail, previous.AuditTrail...)
	current.AuditTrail = append(trail, audit)

	if err := s.engine.persistTransition(ctx, &previous, current, audit); err != nil {
		return CommissionRecord{}, err
	}
	return current, nil
}

// shouldConfirm holds when the waiting period elapsed for a settled order.
func shouldConfirm(order Order, thresholdDate time.Time) bool {
	if order.Status == OrderCanceled || order.Status == OrderReturned {
		return false
	}
	switch order.Status {
	case OrderPaid, OrderInvoiced, OrderShipped:
	default:
		return false
	}
	return !order.UpdatedAt.After(thresholdDate)
}

func transition(c CommissionRecord, next CommissionState, at time.Time, reason string) SettlementTransition {
	return SettlementTransition{
		CommissionID:     c.ID,
		OrderID:          c.OrderID,
		PreviousState:    c.State,
		NextState:        next,
		InfluencerID:     c.InfluencerID,
		CampaignID:       c.CampaignID,
		CommissionAmount: c.CommissionAmount,
		EffectiveAt:      at,
		Reason:           reason,
	}
}
