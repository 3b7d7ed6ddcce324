package factory_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/factory"
)

// =============================================================================
// PARSING TESTS
// =============================================================================

func TestParseCampaign_FullDefinition(t *testing.T) {
	// GIVEN: A complete JSON campaign with scope and tiers
	// WHEN: Parsing it
	// THEN: Every field lands on the config, tiers sorted by level

	f := factory.NewCampaignFactory()

	campaign, err := f.ParseCampaign(`{
		"id": "camp-summer",
		"tenant_id": "brand-aurora",
		"brand_id": "brand-aurora",
		"name": "Summer Launch",
		"status": "active",
		"start_date": "2026-06-01",
		"commission_base": 10,
		"commission_basis": "post_tax",
		"eligible_scope": {"type": "category", "values": ["skincare", "makeup"]},
		"tiers": [
			{"name": "Elite", "level": 2, "commission_percent": 15, "threshold_confirmed_sales": 2000000},
			{"name": "Starter", "level": 1, "commission_percent": 10, "threshold_confirmed_sales": 0}
		],
		"tier_evaluation_period_days": 45
	}`)
	require.NoError(t, err)

	assert.Equal(t, "camp-summer", campaign.ID)
	assert.Equal(t, "brand-aurora", campaign.TenantID)
	assert.True(t, campaign.CommissionBase.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, commission.BasisPostTax, campaign.CommissionBasis)
	assert.Equal(t, commission.ScopeCategory, campaign.EligibleScopeType)
	assert.Equal(t, []string{"skincare", "makeup"}, campaign.EligibleScopeValues)
	assert.Equal(t, 45, campaign.TierEvaluationPeriodDays)
	assert.Equal(t, "2026-06-01", campaign.StartDate.Format("2006-01-02"))

	require.Len(t, campaign.Tiers, 2)
	assert.Equal(t, "Starter", campaign.Tiers[0].Name)
	assert.Equal(t, "Elite", campaign.Tiers[1].Name)
}

func TestParseCampaign_AppliesDefaults(t *testing.T) {
	// GIVEN: A minimal definition with only id, name and rate
	// WHEN: Parsing it
	// THEN: Tenant, status, basis and evaluation window get defaults

	f := factory.NewCampaignFactory()

	campaign, err := f.ParseCampaign(`{"id": "camp-1", "name": "Launch", "commission_base": 8}`)
	require.NoError(t, err)

	assert.Equal(t, commission.DefaultTenant, campaign.TenantID)
	assert.Equal(t, "active", campaign.Status)
	assert.Equal(t, commission.BasisPreTax, campaign.CommissionBasis)
	assert.Equal(t, 30, campaign.TierEvaluationPeriodDays)
	assert.Empty(t, campaign.Tiers)
}

func TestParseCampaigns_ArrayReportsFailingIndex(t *testing.T) {
	f := factory.NewCampaignFactory()

	campaigns, err := f.ParseCampaigns(`[
		{"id": "camp-1", "name": "A", "commission_base": 5},
		{"id": "camp-2", "name": "B", "commission_base": 12}
	]`)
	require.NoError(t, err)
	assert.Len(t, campaigns, 2)

	_, err = f.ParseCampaigns(`[
		{"id": "camp-1", "name": "A", "commission_base": 5},
		{"id": "camp-2", "commission_base": 12}
	]`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "campaign 1")
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestFromJSON_ValidationFailures(t *testing.T) {
	f := factory.NewCampaignFactory()

	cases := []struct {
		name string
		json string
	}{
		{"missing id", `{"name": "Launch", "commission_base": 10}`},
		{"missing name", `{"id": "camp-1", "commission_base": 10}`},
		{"rate above 100", `{"id": "camp-1", "name": "Launch", "commission_base": 120}`},
		{"negative rate", `{"id": "camp-1", "name": "Launch", "commission_base": -1}`},
		{"bad start date", `{"id": "camp-1", "name": "Launch", "commission_base": 10, "start_date": "June 1"}`},
		{"unknown scope type", `{"id": "camp-1", "name": "Launch", "commission_base": 10, "eligible_scope": {"type": "brand"}}`},
		{"duplicate tier level", `{"id": "camp-1", "name": "Launch", "commission_base": 10, "tiers": [
			{"name": "A", "level": 1, "commission_percent": 10},
			{"name": "B", "level": 1, "commission_percent": 12}
		]}`},
		{"decreasing threshold", `{"id": "camp-1", "name": "Launch", "commission_base": 10, "tiers": [
			{"name": "A", "level": 1, "commission_percent": 10, "threshold_confirmed_sales": 500000},
			{"name": "B", "level": 2, "commission_percent": 12, "threshold_confirmed_sales": 100}
		]}`},
		{"tier rate above 100", `{"id": "camp-1", "name": "Launch", "commission_base": 10, "tiers": [
			{"name": "A", "level": 1, "commission_percent": 101}
		]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.ParseCampaign(tc.json)
			assert.Error(t, err)
		})
	}
}

// =============================================================================
// ROUND-TRIP AND PRESET TESTS
// =============================================================================

func TestToJSON_RoundTrip(t *testing.T) {
	// GIVEN: A parsed tiered campaign
	// WHEN: Converting back to JSON and parsing again
	// THEN: The second config matches the first

	f := factory.NewCampaignFactory()

	first, err := f.ParseCampaign(f.TieredCampaignJSON("camp-1", "brand-x", "Tiered", 10, 500000, 2000000))
	require.NoError(t, err)

	cj := f.ToJSON(first)
	second, err := f.FromJSON(cj)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.CommissionBase.Equal(second.CommissionBase))
	require.Len(t, second.Tiers, 3)
	for i := range first.Tiers {
		assert.True(t, first.Tiers[i].ThresholdConfirmedSales.Equal(second.Tiers[i].ThresholdConfirmedSales))
		assert.True(t, first.Tiers[i].CommissionPercent.Equal(second.Tiers[i].CommissionPercent))
	}
}

func TestFlatRateCampaignJSON_Parses(t *testing.T) {
	f := factory.NewCampaignFactory()

	campaign, err := f.ParseCampaign(f.FlatRateCampaignJSON("camp-flat", "brand-x", "Flat", 7.5))
	require.NoError(t, err)

	assert.Equal(t, "camp-flat", campaign.ID)
	assert.Equal(t, "brand-x", campaign.BrandID)
	assert.True(t, campaign.CommissionBase.Equal(decimal.NewFromFloat(7.5)))
	assert.Empty(t, campaign.Tiers)
}

func TestTieredCampaignJSON_LadderShape(t *testing.T) {
	f := factory.NewCampaignFactory()

	campaign, err := f.ParseCampaign(f.TieredCampaignJSON("camp-t", "brand-x", "Tiered", 10, 500000, 2000000))
	require.NoError(t, err)

	require.Len(t, campaign.Tiers, 3)
	assert.True(t, campaign.Tiers[0].ThresholdConfirmedSales.IsZero())
	assert.True(t, campaign.Tiers[1].CommissionPercent.Equal(decimal.NewFromInt(12)))
	assert.True(t, campaign.Tiers[2].CommissionPercent.Equal(decimal.NewFromInt(15)))
}
