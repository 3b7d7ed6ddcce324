package withdrawal

import (
	"context"
	"sort"
	"sync"
)

// =============================================================================
// STORE - Persistence for requests, payments and brand policies
// =============================================================================

// RequestFilter narrows request queries.
type RequestFilter struct {
	InfluencerID string
	BrandID      string
	Status       []Status
}

// Store persists the withdrawal workflow's entities.
type Store interface {
	SaveRequest(ctx context.Context, request Request) error
	GetRequest(ctx context.Context, id string) (Request, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]Request, error)

	SavePayment(ctx context.Context, payment Payment) error
	GetPayment(ctx context.Context, id string) (Payment, error)
	ListPayments(ctx context.Context, influencerID string) ([]Payment, error)

	// BrandPolicy returns the configured policy, or a permissive zero
	// default for unconfigured brands.
	BrandPolicy(ctx context.Context, brandID string) (BrandPolicy, error)
	SaveBrandPolicy(ctx context.Context, policy BrandPolicy) error
}

// =============================================================================
// MEMORY STORE
// =============================================================================

// Memory is the in-memory Store.
type Memory struct {
	mu       sync.RWMutex
	requests map[string]Request
	payments map[string]Payment
	policies map[string]BrandPolicy
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		requests: make(map[string]Request),
		payments: make(map[string]Payment),
		policies: make(map[string]BrandPolicy),
	}
}

var _ Store = (*Memory)(nil)

func (m *Memory) SaveRequest(_ context.Context, request Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[request.ID] = request
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id string) (Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	request, ok := m.requests[id]
	if !ok {
		return Request{}, ErrRequestNotFound
	}
	return request, nil
}

func (m *Memory) ListRequests(_ context.Context, filter RequestFilter) ([]Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Request
	for _, request := range m.requests {
		if filter.InfluencerID != "" && request.InfluencerID != filter.InfluencerID {
			continue
		}
		if filter.BrandID != "" && request.BrandID != filter.BrandID {
			continue
		}
		if len(filter.Status) > 0 && !containsStatus(filter.Status, request.Status) {
			continue
		}
		result = append(result, request)
	}

	// Newest first, matching how operators review the queue.
	sort.Slice(result, func(i, j int) bool {
		return result[i].RequestedAt.After(result[j].RequestedAt)
	})
	return result, nil
}

func (m *Memory) SavePayment(_ context.Context, payment Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[payment.ID] = payment
	return nil
}

func (m *Memory) GetPayment(_ context.Context, id string) (Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payment, ok := m.payments[id]
	if !ok {
		return Payment{}, ErrPaymentNotFound
	}
	return payment, nil
}

func (m *Memory) ListPayments(_ context.Context, influencerID string) ([]Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Payment
	for _, payment := range m.payments {
		if influencerID != "" && payment.InfluencerID != influencerID {
			continue
		}
		result = append(result, payment)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].PaymentDate.After(result[j].PaymentDate)
	})
	return result, nil
}

func (m *Memory) BrandPolicy(_ context.Context, brandID string) (BrandPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if policy, ok := m.policies[brandID]; ok {
		return policy, nil
	}
	// Unconfigured brands get a permissive default.
	return BrandPolicy{BrandID: brandID, BrandName: brandID, Currency: "COP"}, nil
}

func (m *Memory) SaveBrandPolicy(_ context.Context, policy BrandPolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[policy.BrandID] = policy
	return nil
}

func containsStatus(statuses []Status, target Status) bool {
	for _, s := range statuses {
		if s == target {
			return true
		}
	}
	return false
}
