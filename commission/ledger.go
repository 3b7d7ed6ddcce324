/*
ledger.go - Balance ledger: delta application and withdrawal movements

PURPOSE:
  Aggregates all commission state deltas and withdrawal movements into one
  balance record per (tenant, influencer). This is the ONLY write path into
  balances; the state machine, settlement, adjustments and the withdrawal
  workflow all route through it.

DELTA-BASED DESIGN:
  ApplyTransition subtracts the previous commission amount from the bucket
  named after the previous state, then adds the current amount to the bucket
  named after the current state. A commission moving
  ESTIMATED -> CONFIRMED -> REVERTED always nets to the correct final bucket
  contents regardless of how many times it transitioned, because each
  transition is a paired subtract/add against the exact amount it previously
  contributed.

ROUNDING:
  Every bucket mutation rounds to 2 decimals immediately. Repeated
  add/subtract on monetary amounts must not drift.

SERIALIZATION:
  All mutations for one balance key acquire that key's mutex. Concurrent
  order events for the same influencer never interleave their
  read-modify-write; different influencers proceed in parallel.

SINGLE RECOMPUTE PATH:
  There is exactly one code path that writes AvailableForWithdrawal:
  recalculateLocked. Every mutation ends with it.

SEE ALSO:
  - engine.go: produces the (previous, current) transition pairs
  - withdrawal package: pending/paid movements
  - adjustment.go: pending adjustment total refresh
*/
package commission

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BALANCE LEDGER
// =============================================================================

// BalanceLedger owns all mutations of influencer balances.
type BalanceLedger struct {
	store BalanceStore
	locks *keyedMutex
	now   func() time.Time
}

// NewBalanceLedger creates a ledger over the given balance store.
func NewBalanceLedger(store BalanceStore) *BalanceLedger {
	return &BalanceLedger{
		store: store,
		locks: newKeyedMutex(),
		now:   time.Now,
	}
}

// WithClock overrides the ledger clock. Tests only.
func (l *BalanceLedger) WithClock(now func() time.Time) *BalanceLedger {
	l.now = now
	return l
}

// ApplyTransition applies one commission state transition to the influencer's
// balance. previous is nil for the first transition of a commission.
func (l *BalanceLedger) ApplyTransition(ctx context.Context, previous *CommissionRecord, current CommissionRecord) error {
	unlock := l.locks.Lock(balanceKey(current.TenantID, current.InfluencerID))
	defer unlock()

	balance, err := l.ensureLocked(ctx, current.TenantID, current.InfluencerID)
	if err != nil {
		return err
	}

	if previous != nil {
		applyBucketDelta(&balance, previous.State, previous.CommissionAmount.Neg())
	}
	applyBucketDelta(&balance, current.State, current.CommissionAmount)

	l.recalculateLocked(&balance)
	return l.store.SaveBalance(ctx, balance)
}

// AddPendingWithdrawal reserves an amount for a pending withdrawal request.
func (l *BalanceLedger) AddPendingWithdrawal(ctx context.Context, tenantID, influencerID string, amount decimal.Decimal) error {
	return l.mutate(ctx, tenantID, influencerID, func(b *InfluencerBalance) {
		b.PendingWithdrawalAmount = round2(b.PendingWithdrawalAmount.Add(amount))
	})
}

// ReleasePendingWithdrawal returns a rejected request's amount to the
// available pool. Floored at zero.
func (l *BalanceLedger) ReleasePendingWithdrawal(ctx context.Context, tenantID, influencerID string, amount decimal.Decimal) error {
	return l.mutate(ctx, tenantID, influencerID, func(b *InfluencerBalance) {
		b.PendingWithdrawalAmount = round2(floorZero(b.PendingWithdrawalAmount.Sub(amount)))
	})
}

// RecordWithdrawalPaid moves a paid amount from pending to withdrawn.
// The pending side is floored at zero.
func (l *BalanceLedger) RecordWithdrawalPaid(ctx context.Context, tenantID, influencerID string, amount decimal.Decimal) error {
	return l.mutate(ctx, tenantID, influencerID, func(b *InfluencerBalance) {
		b.PendingWithdrawalAmount = round2(floorZero(b.PendingWithdrawalAmount.Sub(amount)))
		b.WithdrawnAmount = round2(b.WithdrawnAmount.Add(amount))
	})
}

// SetAdjustmentTotal refreshes the visible sum of unresolved pending
// adjustments. The total does not enter the available formula.
func (l *BalanceLedger) SetAdjustmentTotal(ctx context.Context, tenantID, influencerID string, total decimal.Decimal) error {
	return l.mutate(ctx, tenantID, influencerID, func(b *InfluencerBalance) {
		b.AdjustmentAmount = round2(total)
	})
}

// Ensure returns the balance for the key, creating a zeroed record on first
// touch. Used by campaign assignment so balances exist before any event.
func (l *BalanceLedger) Ensure(ctx context.Context, tenantID, influencerID string) (InfluencerBalance, error) {
	unlock := l.locks.Lock(balanceKey(tenantID, influencerID))
	defer unlock()
	return l.ensureLocked(ctx, tenantID, influencerID)
}

// Balance reads a balance without creating it.
func (l *BalanceLedger) Balance(ctx context.Context, tenantID, influencerID string) (InfluencerBalance, error) {
	return l.store.GetBalance(ctx, tenantID, influencerID)
}

// =============================================================================
// INTERNALS
// =============================================================================

// mutate runs fn under the key's lock and recomputes the available balance.
// Every withdrawal-side mutation funnels through here so there is a single
// recompute path.
func (l *BalanceLedger) mutate(ctx context.Context, tenantID, influencerID string, fn func(*InfluencerBalance)) error {
	unlock := l.locks.Lock(balanceKey(tenantID, influencerID))
	defer unlock()

	balance, err := l.ensureLocked(ctx, tenantID, influencerID)
	if err != nil {
		return err
	}

	fn(&balance)
	l.recalculateLocked(&balance)
	return l.store.SaveBalance(ctx, balance)
}

func (l *BalanceLedger) ensureLocked(ctx context.Context, tenantID, influencerID string) (InfluencerBalance, error) {
	balance, err := l.store.GetBalance(ctx, tenantID, influencerID)
	if err == nil {
		return balance, nil
	}
	if !IsNotFound(err) {
		return InfluencerBalance{}, err
	}

	balance = InfluencerBalance{
		InfluencerID:            influencerID,
		TenantID:                tenantID,
		EstimatedAmount:         decimal.Zero,
		ConfirmedAmount:         decimal.Zero,
		RevertedAmount:          decimal.Zero,
		PendingWithdrawalAmount: decimal.Zero,
		WithdrawnAmount:         decimal.Zero,
		AdjustmentAmount:        decimal.Zero,
		AvailableForWithdrawal:  decimal.Zero,
		LastCalculatedAt:        l.now(),
	}
	if err := l.store.SaveBalance(ctx, balance); err != nil {
		return InfluencerBalance{}, err
	}
	return balance, nil
}

// recalculateLocked is the only writer of AvailableForWithdrawal.
func (l *BalanceLedger) recalculateLocked(b *InfluencerBalance) {
	b.AvailableForWithdrawal = round2(
		b.ConfirmedAmount.Sub(b.WithdrawnAmount).Sub(b.PendingWithdrawalAmount),
	)
	b.LastCalculatedAt = l.now()
}

func applyBucketDelta(b *InfluencerBalance, state CommissionState, delta decimal.Decimal) {
	switch state {
	case StateEstimated:
		b.EstimatedAmount = round2(b.EstimatedAmount.Add(delta))
	case StateConfirmed:
		b.ConfirmedAmount = round2(b.ConfirmedAmount.Add(delta))
	case StateReverted:
		b.RevertedAmount = round2(b.RevertedAmount.Add(delta))
	}
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
