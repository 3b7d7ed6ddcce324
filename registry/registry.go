/*
Package registry holds the campaign, influencer and discount-code registries.

PURPOSE:
  The commission engine treats these as externally owned, read-only lookups
  (commission.Directory). This package is the standard implementation: it
  owns the mutable collections, the code -> discount secondary index, and
  the assignment flow that seeds balances and tier assignments on first
  campaign assignment.

DESIGN:
  - One exclusively-owned map per entity, plus an explicit index map for
    coupon codes (maintained on write, not derived per read)
  - Assignment is the lazy-initialization trigger: assigning an influencer
    to a campaign ensures their balance and tier assignment exist before
    any order event arrives

SEE ALSO:
  - commission/types.go: Directory interface and entity views
*/
package registry

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/warp/commission-engine/commission"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrCampaignNotFound   = errors.New("campaign not found")
	ErrInfluencerNotFound = errors.New("influencer not found")
	ErrCodeNotFound       = errors.New("discount code not found")
	ErrCodeExists         = errors.New("discount code already exists")
)

// =============================================================================
// REGISTRY
// =============================================================================

// ledgerSeeder and tierSeeder receive assignment events so balances and tier
// assignments exist before the first order event. The commission ledger and
// tier tracker satisfy them.
type ledgerSeeder interface {
	Ensure(ctx context.Context, tenantID, influencerID string) (commission.InfluencerBalance, error)
}

type tierSeeder interface {
	EnsureAssignment(ctx context.Context, campaign commission.CampaignConfig, influencerID string) (commission.TierAssignment, error)
}

// Registry implements commission.Directory over in-memory collections.
type Registry struct {
	mu sync.RWMutex

	campaigns   map[string]commission.CampaignConfig
	influencers map[string]commission.Influencer
	codes       map[string]commission.DiscountCode
	codesByCode map[string]string // upper-cased code -> id

	ledger ledgerSeeder
	tiers  tierSeeder
}

// New creates an empty registry. ledger and tiers may be nil in tests that
// don't exercise assignment seeding.
func New(ledger ledgerSeeder, tiers tierSeeder) *Registry {
	return &Registry{
		campaigns:   make(map[string]commission.CampaignConfig),
		influencers: make(map[string]commission.Influencer),
		codes:       make(map[string]commission.DiscountCode),
		codesByCode: make(map[string]string),
		ledger:      ledger,
		tiers:       tiers,
	}
}

var _ commission.Directory = (*Registry)(nil)

// BindTiers attaches the tier seeder after construction. The tier tracker
// needs the registry as its directory, so one of the two must bind late.
func (r *Registry) BindTiers(tiers tierSeeder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tiers = tiers
}

// =============================================================================
// DIRECTORY (read side, consumed by the engine)
// =============================================================================

func (r *Registry) FindDiscountByCode(code string) (commission.DiscountCode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.codesByCode[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return commission.DiscountCode{}, false
	}
	discount, ok := r.codes[id]
	return discount, ok
}

func (r *Registry) Campaign(id string) (commission.CampaignConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	campaign, ok := r.campaigns[id]
	return campaign, ok
}

func (r *Registry) Influencer(id string) (commission.Influencer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	influencer, ok := r.influencers[id]
	return influencer, ok
}

// =============================================================================
// CAMPAIGNS
// =============================================================================

// SaveCampaign upserts a campaign configuration.
func (r *Registry) SaveCampaign(campaign commission.CampaignConfig) commission.CampaignConfig {
	if campaign.ID == "" {
		campaign.ID = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.campaigns[campaign.ID] = campaign
	return campaign
}

// ListCampaigns returns all campaigns.
func (r *Registry) ListCampaigns() []commission.CampaignConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]commission.CampaignConfig, 0, len(r.campaigns))
	for _, c := range r.campaigns {
		result = append(result, c)
	}
	return result
}

// =============================================================================
// INFLUENCERS
// =============================================================================

// SaveInfluencer upserts an influencer. New influencers default to pending.
func (r *Registry) SaveInfluencer(influencer commission.Influencer) commission.Influencer {
	if influencer.ID == "" {
		influencer.ID = uuid.NewString()
	}
	if influencer.Status == "" {
		influencer.Status = commission.InfluencerPending
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.influencers[influencer.ID] = influencer
	return influencer
}

// UpdateInfluencerStatus moves an influencer through the approval flow.
func (r *Registry) UpdateInfluencerStatus(id string, status commission.InfluencerStatus) (commission.Influencer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	influencer, ok := r.influencers[id]
	if !ok {
		return commission.Influencer{}, ErrInfluencerNotFound
	}
	influencer.Status = status
	r.influencers[id] = influencer
	return influencer, nil
}

// ListInfluencers returns all influencers.
func (r *Registry) ListInfluencers() []commission.Influencer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]commission.Influencer, 0, len(r.influencers))
	for _, i := range r.influencers {
		result = append(result, i)
	}
	return result
}

// AssignInfluencerToCampaign links the pair and seeds the influencer's
// balance and tier assignment so they exist before any order event.
func (r *Registry) AssignInfluencerToCampaign(ctx context.Context, influencerID, campaignID string) error {
	r.mu.Lock()
	influencer, iok := r.influencers[influencerID]
	campaign, cok := r.campaigns[campaignID]
	if !iok {
		r.mu.Unlock()
		return ErrInfluencerNotFound
	}
	if !cok {
		r.mu.Unlock()
		return ErrCampaignNotFound
	}

	if !containsString(influencer.AssignedCampaignIDs, campaignID) {
		influencer.AssignedCampaignIDs = append(influencer.AssignedCampaignIDs, campaignID)
		r.influencers[influencerID] = influencer
	}
	r.mu.Unlock()

	if r.ledger != nil {
		if _, err := r.ledger.Ensure(ctx, campaign.TenantID, influencerID); err != nil {
			return err
		}
	}
	if r.tiers != nil {
		if _, err := r.tiers.EnsureAssignment(ctx, campaign, influencerID); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// DISCOUNT CODES
// =============================================================================

// GenerateCode composes and registers a coupon code for an influencer on a
// campaign: PREFIX-<campaign fragment><influencer fragment>.
func (r *Registry) GenerateCode(prefix, campaignID, influencerID string) (commission.DiscountCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	campaign, ok := r.campaigns[campaignID]
	if !ok {
		return commission.DiscountCode{}, ErrCampaignNotFound
	}
	if _, ok := r.influencers[influencerID]; !ok {
		return commission.DiscountCode{}, ErrInfluencerNotFound
	}

	code := composeCode(prefix, campaignID, influencerID)
	if _, exists := r.codesByCode[code]; exists {
		return commission.DiscountCode{}, ErrCodeExists
	}

	status := "pending"
	if campaign.Status == "active" {
		status = "active"
	}

	discount := commission.DiscountCode{
		ID:           uuid.NewString(),
		TenantID:     campaign.TenantID,
		Code:         code,
		CampaignID:   campaignID,
		InfluencerID: influencerID,
		Status:       status,
	}
	r.codes[discount.ID] = discount
	r.codesByCode[code] = discount.ID
	return discount, nil
}

// SaveCode registers an externally minted code (seed data, imports).
func (r *Registry) SaveCode(discount commission.DiscountCode) (commission.DiscountCode, error) {
	if discount.ID == "" {
		discount.ID = uuid.NewString()
	}
	normalized := strings.ToUpper(strings.TrimSpace(discount.Code))

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.codesByCode[normalized]; ok && existing != discount.ID {
		return commission.DiscountCode{}, ErrCodeExists
	}
	discount.Code = normalized
	r.codes[discount.ID] = discount
	r.codesByCode[normalized] = discount.ID
	return discount, nil
}

// ListCodes returns all discount codes.
func (r *Registry) ListCodes() []commission.DiscountCode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]commission.DiscountCode, 0, len(r.codes))
	for _, c := range r.codes {
		result = append(result, c)
	}
	return result
}

// =============================================================================
// HELPERS
// =============================================================================

func composeCode(prefix, campaignID, influencerID string) string {
	return strings.ToUpper(prefix) + "-" + idFragment(campaignID) + idFragment(influencerID)
}

// idFragment takes the first 4 characters of the id's leading segment.
func idFragment(id string) string {
	head := strings.SplitN(id, "-", 2)[0]
	if len(head) > 4 {
		head = head[:4]
	}
	return strings.ToUpper(head)
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
