// Package store provides commission.Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/commission-engine/commission"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (tests/dev)
// =============================================================================

// Memory keeps one exclusively-owned map per entity type plus the secondary
// indexes the engine relies on (order -> pending adjustment). The RWMutex
// guarantees map safety only; per-key write serialization is owned by the
// engine and ledger.
type Memory struct {
	mu sync.RWMutex

	orders      map[string]commission.Order
	commissions map[string]commission.CommissionRecord // keyed by order id
	audit       []commission.AuditEntry

	balances map[balanceKey]commission.InfluencerBalance

	assignments map[assignmentKey]commission.TierAssignment
	tierHistory []commission.TierHistoryRecord

	adjustments        map[string]commission.WithdrawalAdjustment
	pendingAdjByOrder  map[string]string // order id -> pending adjustment id
	reconciliationLogs []commission.ReconciliationRecord
}

type balanceKey struct {
	TenantID     string
	InfluencerID string
}

type assignmentKey struct {
	CampaignID   string
	InfluencerID string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		orders:            make(map[string]commission.Order),
		commissions:       make(map[string]commission.CommissionRecord),
		balances:          make(map[balanceKey]commission.InfluencerBalance),
		assignments:       make(map[assignmentKey]commission.TierAssignment),
		adjustments:       make(map[string]commission.WithdrawalAdjustment),
		pendingAdjByOrder: make(map[string]string),
	}
}

var _ commission.Store = (*Memory)(nil)

// =============================================================================
// ORDERS
// =============================================================================

func (m *Memory) SaveOrder(_ context.Context, order commission.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = order
	return nil
}

func (m *Memory) GetOrder(_ context.Context, id string) (commission.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[id]
	if !ok {
		return commission.Order{}, commission.ErrOrderNotFound
	}
	return order, nil
}

func (m *Memory) ListOrders(_ context.Context) ([]commission.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]commission.Order, 0, len(m.orders))
	for _, order := range m.orders {
		result = append(result, order)
	}
	return result, nil
}

// =============================================================================
// COMMISSIONS
// =============================================================================

func (m *Memory) SaveCommission(_ context.Context, record commission.CommissionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commissions[record.OrderID] = record
	return nil
}

func (m *Memory) GetCommission(_ context.Context, orderID string) (commission.CommissionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.commissions[orderID]
	if !ok {
		return commission.CommissionRecord{}, commission.ErrCommissionNotFound
	}
	return record, nil
}

func (m *Memory) ListCommissions(_ context.Context) ([]commission.CommissionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]commission.CommissionRecord, 0, len(m.commissions))
	for _, record := range m.commissions {
		result = append(result, record)
	}
	return result, nil
}

func (m *Memory) AppendAudit(_ context.Context, entry commission.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

func (m *Memory) ListAudit(_ context.Context) ([]commission.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]commission.AuditEntry, len(m.audit))
	copy(result, m.audit)
	return result, nil
}

// =============================================================================
// BALANCES
// =============================================================================

func (m *Memory) SaveBalance(_ context.Context, balance commission.InfluencerBalance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[balanceKey{TenantID: balance.TenantID, InfluencerID: balance.InfluencerID}] = balance
	return nil
}

func (m *Memory) GetBalance(_ context.Context, tenantID, influencerID string) (commission.InfluencerBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	balance, ok := m.balances[balanceKey{TenantID: tenantID, InfluencerID: influencerID}]
	if !ok {
		return commission.InfluencerBalance{}, commission.ErrBalanceNotFound
	}
	return balance, nil
}

func (m *Memory) ListBalances(_ context.Context) ([]commission.InfluencerBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]commission.InfluencerBalance, 0, len(m.balances))
	for _, balance := range m.balances {
		result = append(result, balance)
	}
	return result, nil
}

// =============================================================================
// TIERS
// =============================================================================

func (m *Memory) SaveAssignment(_ context.Context, assignment commission.TierAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[assignmentKey{CampaignID: assignment.CampaignID, InfluencerID: assignment.InfluencerID}] = assignment
	return nil
}

func (m *Memory) GetAssignment(_ context.Context, campaignID, influencerID string) (commission.TierAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	assignment, ok := m.assignments[assignmentKey{CampaignID: campaignID, InfluencerID: influencerID}]
	if !ok {
		return commission.TierAssignment{}, commission.ErrAssignmentNotFound
	}
	return assignment, nil
}

func (m *Memory) ListAssignments(_ context.Context) ([]commission.TierAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]commission.TierAssignment, 0, len(m.assignments))
	for _, assignment := range m.assignments {
		result = append(result, assignment)
	}
	return result, nil
}

func (m *Memory) AppendTierHistory(_ context.Context, record commission.TierHistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Upsert by id: closing or refreshing the trailing entry rewrites the
	// same row instead of duplicating it.
	for i := range m.tierHistory {
		if m.tierHistory[i].ID == record.ID {
			m.tierHistory[i] = record
			return nil
		}
	}
	m.tierHistory = append(m.tierHistory, record)
	return nil
}

func (m *Memory) ListTierHistory(_ context.Context, filter commission.TierHistoryFilter) ([]commission.TierHistoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []commission.TierHistoryRecord
	for _, record := range m.tierHistory {
		if filter.CampaignID != "" && record.CampaignID != filter.CampaignID {
			continue
		}
		if filter.InfluencerID != "" && record.InfluencerID != filter.InfluencerID {
			continue
		}
		result = append(result, record)
	}
	return result, nil
}

// =============================================================================
// ADJUSTMENTS
// =============================================================================

func (m *Memory) SaveAdjustment(_ context.Context, adjustment commission.WithdrawalAdjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.adjustments[adjustment.ID] = adjustment

	// Maintain the order index: pending adjustments are reachable by order
	// id, resolved ones are not.
	if adjustment.Status == commission.AdjustmentPending {
		m.pendingAdjByOrder[adjustment.OrderID] = adjustment.ID
	} else if m.pendingAdjByOrder[adjustment.OrderID] == adjustment.ID {
		delete(m.pendingAdjByOrder, adjustment.OrderID)
	}
	return nil
}

func (m *Memory) GetAdjustment(_ context.Context, id string) (commission.WithdrawalAdjustment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	adjustment, ok := m.adjustments[id]
	if !ok {
		return commission.WithdrawalAdjustment{}, commission.ErrAdjustmentNotFound
	}
	return adjustment, nil
}

func (m *Memory) GetPendingAdjustmentByOrder(_ context.Context, orderID string) (commission.WithdrawalAdjustment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.pendingAdjByOrder[orderID]
	if !ok {
		return commission.WithdrawalAdjustment{}, commission.ErrAdjustmentNotFound
	}
	adjustment, ok := m.adjustments[id]
	if !ok || adjustment.Status != commission.AdjustmentPending {
		return commission.WithdrawalAdjustment{}, commission.ErrAdjustmentNotFound
	}
	return adjustment, nil
}

func (m *Memory) ListAdjustments(_ context.Context, filter commission.AdjustmentFilter) ([]commission.WithdrawalAdjustment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []commission.WithdrawalAdjustment
	for _, adjustment := range m.adjustments {
		if filter.InfluencerID != "" && adjustment.InfluencerID != filter.InfluencerID {
			continue
		}
		if filter.TenantID != "" && adjustment.TenantID != filter.TenantID {
			continue
		}
		if len(filter.Status) > 0 && !containsStatus(filter.Status, adjustment.Status) {
			continue
		}
		result = append(result, adjustment)
	}
	return result, nil
}

func containsStatus(statuses []commission.AdjustmentStatus, target commission.AdjustmentStatus) bool {
	for _, s := range statuses {
		if s == target {
			return true
		}
	}
	return false
}

// =============================================================================
// RECONCILIATIONS
// =============================================================================

func (m *Memory) AppendReconciliation(_ context.Context, record commission.ReconciliationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconciliationLogs = append(m.reconciliationLogs, record)
	return nil
}

func (m *Memory) ListReconciliations(_ context.Context) ([]commission.ReconciliationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]commission.ReconciliationRecord, len(m.reconciliationLogs))
	copy(result, m.reconciliationLogs)
	return result, nil
}
