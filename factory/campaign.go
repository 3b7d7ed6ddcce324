/*
Package factory provides JSON to Go campaign conversion.

PURPOSE:
  Converts JSON campaign definitions into commission.CampaignConfig objects.
  This enables campaign configuration without code changes - brand operators
  can define campaigns in JSON, and the factory creates the proper Go structs.

WHY JSON?
  - Non-developers can modify campaigns
  - Easy integration with admin UI
  - Version control for campaign definitions
  - Database storage of campaign configs

JSON SCHEMA:
  {
    "id": "camp-summer",
    "tenant_id": "brand-aurora",
    "brand_id": "brand-aurora",
    "name": "Summer Launch",
    "commission_base": 10,
    "commission_basis": "pre_tax",
    "eligible_scope": {"type": "category", "values": ["skincare"]},
    "tiers": [
      {"name": "Starter", "level": 1, "commission_percent": 10, "threshold_confirmed_sales": 0},
      {"name": "Elite", "level": 2, "commission_percent": 15, "threshold_confirmed_sales": 2000000}
    ],
    "tier_evaluation_period_days": 30
  }

KEY FEATURES:
  - Validates JSON structure and tier ordering
  - Sets sensible defaults (active status, pre-tax basis, 30-day window)
  - Round-trips configs back to JSON for storage

USAGE:
  factory := NewCampaignFactory()

  // From JSON string
  campaign, err := factory.ParseCampaign(jsonString)

  // From preset (recommended for demos)
  jsonStr := factory.FlatRateCampaignJSON("camp-1", "brand-x", "Launch", 10)
  campaign, err := factory.ParseCampaign(jsonStr)

  // Use in system
  registry.SaveCampaign(campaign)

SEE ALSO:
  - commission/types.go: CampaignConfig type definition
  - registry/registry.go: Campaign storage
*/
package factory

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/commission"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// CampaignJSON is the JSON representation of a campaign.
type CampaignJSON struct {
	ID                       string     `json:"id"`
	TenantID                 string     `json:"tenant_id,omitempty"`
	BrandID                  string     `json:"brand_id,omitempty"`
	BrandName                string     `json:"brand_name,omitempty"`
	Name                     string     `json:"name"`
	Status                   string     `json:"status,omitempty"`
	StartDate                string     `json:"start_date,omitempty"` // YYYY-MM-DD
	CommissionBase           float64    `json:"commission_base"`
	CommissionBasis          string     `json:"commission_basis,omitempty"` // pre_tax, post_tax
	EligibleScope            *ScopeJSON `json:"eligible_scope,omitempty"`
	Tiers                    []TierJSON `json:"tiers,omitempty"`
	TierEvaluationPeriodDays int        `json:"tier_evaluation_period_days,omitempty"`
}

// ScopeJSON restricts eligibility to specific SKUs or categories.
type ScopeJSON struct {
	Type   string   `json:"type"` // sku, category
	Values []string `json:"values"`
}

// TierJSON represents one commission-rate bracket.
type TierJSON struct {
	Name               string  `json:"name"`
	Level              int     `json:"level"`
	CommissionPercent  float64 `json:"commission_percent"`
	ThresholdConfirmed float64 `json:"threshold_confirmed_sales"`
}

// =============================================================================
// CAMPAIGN FACTORY
// =============================================================================

// CampaignFactory converts JSON campaigns to Go structs.
type CampaignFactory struct{}

// NewCampaignFactory creates a new campaign factory.
func NewCampaignFactory() *CampaignFactory {
	return &CampaignFactory{}
}

// ParseCampaign parses a JSON string into a CampaignConfig.
func (f *CampaignFactory) ParseCampaign(jsonStr string) (commission.CampaignConfig, error) {
	var cj CampaignJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return commission.CampaignConfig{}, fmt.Errorf("failed to parse campaign JSON: %w", err)
	}
	return f.FromJSON(cj)
}

// ParseCampaigns parses a JSON array of campaigns.
func (f *CampaignFactory) ParseCampaigns(jsonStr string) ([]commission.CampaignConfig, error) {
	var cjs []CampaignJSON
	if err := json.Unmarshal([]byte(jsonStr), &cjs); err != nil {
		return nil, fmt.Errorf("failed to parse campaigns JSON: %w", err)
	}

	campaigns := make([]commission.CampaignConfig, 0, len(cjs))
	for i, cj := range cjs {
		campaign, err := f.FromJSON(cj)
		if err != nil {
			return nil, fmt.Errorf("campaign %d: %w", i, err)
		}
		campaigns = append(campaigns, campaign)
	}
	return campaigns, nil
}

// FromJSON converts CampaignJSON to commission.CampaignConfig.
func (f *CampaignFactory) FromJSON(cj CampaignJSON) (commission.CampaignConfig, error) {
	if cj.ID == "" {
		return commission.CampaignConfig{}, fmt.Errorf("campaign requires an id")
	}
	if cj.Name == "" {
		return commission.CampaignConfig{}, fmt.Errorf("campaign %s requires a name", cj.ID)
	}
	if cj.CommissionBase < 0 || cj.CommissionBase > 100 {
		return commission.CampaignConfig{}, fmt.Errorf("campaign %s: commission_base must be between 0 and 100", cj.ID)
	}

	campaign := commission.CampaignConfig{
		ID:                       cj.ID,
		TenantID:                 cj.TenantID,
		BrandID:                  cj.BrandID,
		BrandName:                cj.BrandName,
		Name:                     cj.Name,
		Status:                   cj.Status,
		CommissionBase:           decimal.NewFromFloat(cj.CommissionBase),
		CommissionBasis:          parseBasis(cj.CommissionBasis),
		TierEvaluationPeriodDays: cj.TierEvaluationPeriodDays,
	}
	if campaign.TenantID == "" {
		campaign.TenantID = commission.DefaultTenant
	}
	if campaign.Status == "" {
		campaign.Status = "active"
	}
	if campaign.TierEvaluationPeriodDays <= 0 {
		campaign.TierEvaluationPeriodDays = 30
	}

	if cj.StartDate != "" {
		startDate, err := time.Parse("2006-01-02", cj.StartDate)
		if err != nil {
			return commission.CampaignConfig{}, fmt.Errorf("campaign %s: invalid start_date format: %w", cj.ID, err)
		}
		campaign.StartDate = startDate
	}

	if cj.EligibleScope != nil {
		scopeType, err := parseScopeType(cj.EligibleScope.Type)
		if err != nil {
			return commission.CampaignConfig{}, fmt.Errorf("campaign %s: %w", cj.ID, err)
		}
		campaign.EligibleScopeType = scopeType
		campaign.EligibleScopeValues = append([]string{}, cj.EligibleScope.Values...)
	}

	tiers, err := parseTiers(cj.Tiers)
	if err != nil {
		return commission.CampaignConfig{}, fmt.Errorf("campaign %s: %w", cj.ID, err)
	}
	campaign.Tiers = tiers

	return campaign, nil
}

// ToJSON converts a CampaignConfig to CampaignJSON.
func (f *CampaignFactory) ToJSON(campaign commission.CampaignConfig) CampaignJSON {
	cj := CampaignJSON{
		ID:                       campaign.ID,
		TenantID:                 campaign.TenantID,
		BrandID:                  campaign.BrandID,
		BrandName:                campaign.BrandName,
		Name:                     campaign.Name,
		Status:                   campaign.Status,
		CommissionBase:           campaign.CommissionBase.InexactFloat64(),
		CommissionBasis:          string(campaign.CommissionBasis),
		TierEvaluationPeriodDays: campaign.TierEvaluationPeriodDays,
	}
	if !campaign.StartDate.IsZero() {
		cj.StartDate = campaign.StartDate.Format("2006-01-02")
	}
	if campaign.EligibleScopeType != "" {
		cj.EligibleScope = &ScopeJSON{
			Type:   string(campaign.EligibleScopeType),
			Values: append([]string{}, campaign.EligibleScopeValues...),
		}
	}
	for _, tier := range campaign.Tiers {
		cj.Tiers = append(cj.Tiers, TierJSON{
			Name:               tier.Name,
			Level:              tier.Level,
			CommissionPercent:  tier.CommissionPercent.InexactFloat64(),
			ThresholdConfirmed: tier.ThresholdConfirmedSales.InexactFloat64(),
		})
	}
	return cj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseBasis(s string) commission.CommissionBasis {
	switch s {
	case "post_tax":
		return commission.BasisPostTax
	default:
		return commission.BasisPreTax
	}
}

func parseScopeType(s string) (commission.ScopeType, error) {
	switch s {
	case "sku":
		return commission.ScopeSKU, nil
	case "category":
		return commission.ScopeCategory, nil
	default:
		return "", fmt.Errorf("unknown eligible_scope type: %s", s)
	}
}

// parseTiers validates and normalizes the tier ladder: levels unique,
// thresholds non-decreasing with level, sorted by level ascending.
func parseTiers(tjs []TierJSON) ([]commission.TierSnapshot, error) {
	if len(tjs) == 0 {
		return nil, nil
	}

	tiers := make([]commission.TierSnapshot, len(tjs))
	seen := make(map[int]bool)
	for i, tj := range tjs {
		if tj.CommissionPercent < 0 || tj.CommissionPercent > 100 {
			return nil, fmt.Errorf("tier %q: commission_percent must be between 0 and 100", tj.Name)
		}
		if tj.ThresholdConfirmed < 0 {
			return nil, fmt.Errorf("tier %q: threshold_confirmed_sales must not be negative", tj.Name)
		}
		if seen[tj.Level] {
			return nil, fmt.Errorf("duplicate tier level %d", tj.Level)
		}
		seen[tj.Level] = true

		tiers[i] = commission.TierSnapshot{
			Name:                    tj.Name,
			Level:                   tj.Level,
			CommissionPercent:       decimal.NewFromFloat(tj.CommissionPercent),
			ThresholdConfirmedSales: decimal.NewFromFloat(tj.ThresholdConfirmed),
		}
	}

	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Level < tiers[j].Level })

	for i := 1; i < len(tiers); i++ {
		if tiers[i].ThresholdConfirmedSales.LessThan(tiers[i-1].ThresholdConfirmedSales) {
			return nil, fmt.Errorf("tier %q: threshold lower than previous tier", tiers[i].Name)
		}
	}
	return tiers, nil
}

// =============================================================================
// PRESET CAMPAIGNS
// =============================================================================

// FlatRateCampaignJSON builds a single-rate campaign definition.
func (f *CampaignFactory) FlatRateCampaignJSON(id, brandID, name string, ratePercent float64) string {
	cj := CampaignJSON{
		ID:             id,
		TenantID:       brandID,
		BrandID:        brandID,
		Name:           name,
		CommissionBase: ratePercent,
	}
	b, _ := json.Marshal(cj)
	return string(b)
}

// TieredCampaignJSON builds a three-tier campaign definition with the given
// base rate and volume thresholds.
func (f *CampaignFactory) TieredCampaignJSON(id, brandID, name string, baseRate float64, midThreshold, topThreshold float64) string {
	cj := CampaignJSON{
		ID:             id,
		TenantID:       brandID,
		BrandID:        brandID,
		Name:           name,
		CommissionBase: baseRate,
		Tiers: []TierJSON{
			{Name: "Base", Level: 1, CommissionPercent: baseRate, ThresholdConfirmed: 0},
			{Name: "Mid", Level: 2, CommissionPercent: baseRate + 2, ThresholdConfirmed: midThreshold},
			{Name: "Top", Level: 3, CommissionPercent: baseRate + 5, ThresholdConfirmed: topThreshold},
		},
		TierEvaluationPeriodDays: 30,
	}
	b, _ := json.Marshal(cj)
	return string(b)
}
