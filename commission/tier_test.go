package commission_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/commission/store"
)

// tieredCampaign installs a three-tier ladder on the rig's campaign:
// 10% from 0, 12% from 500000, 15% from 2000000 confirmed sales.
func tieredCampaign(rig *testRig) {
	campaign := rig.dir.campaigns["camp-1"]
	campaign.Tiers = []commission.TierSnapshot{
		{Name: "Starter", Level: 1, CommissionPercent: decimal.NewFromInt(10), ThresholdConfirmedSales: decimal.Zero},
		{Name: "Rising", Level: 2, CommissionPercent: decimal.NewFromInt(12), ThresholdConfirmedSales: decimal.NewFromInt(500000)},
		{Name: "Elite", Level: 3, CommissionPercent: decimal.NewFromInt(15), ThresholdConfirmedSales: decimal.NewFromInt(2000000)},
	}
	rig.dir.campaigns["camp-1"] = campaign
}

// confirmSales registers paid orders totaling the given eligible volume.
func confirmSales(t *testing.T, rig *testRig, orderID string, volume int64) {
	t.Helper()
	eligible := decimal.NewFromInt(volume)
	event := orderEvent(orderID, commission.EventOrderPaid, commission.OrderPaid, volume)
	event.EligibleAmount = &eligible
	_, err := rig.engine.RegisterOrderEvent(context.Background(), event)
	require.NoError(t, err)
}

// =============================================================================
// TIER SEEDING TESTS
// =============================================================================

func TestEnsureAssignment_NoTiers_SeedsBaseRate(t *testing.T) {
	// GIVEN: A campaign without a tier ladder
	// WHEN: The assignment is created on first touch
	// THEN: A synthetic level-0 tier carries the campaign's flat rate

	rig := newTestRig(t)
	ctx := context.Background()

	assignment, err := rig.tiers.EnsureAssignment(ctx, rig.dir.campaigns["camp-1"], "inf-1")
	require.NoError(t, err)

	assert.Equal(t, 0, assignment.CurrentTier.Level)
	assert.True(t, assignment.CurrentTier.CommissionPercent.Equal(money(10)))
	require.Len(t, assignment.History, 1)
	assert.Equal(t, "initial-tier", assignment.History[0].Reason)
}

func TestEnsureAssignment_WithTiers_SeedsLowestThreshold(t *testing.T) {
	// GIVEN: A tiered campaign
	// WHEN: The assignment is created
	// THEN: The lowest-threshold tier is seeded

	rig := newTestRig(t)
	tieredCampaign(rig)

	assignment, err := rig.tiers.EnsureAssignment(context.Background(), rig.dir.campaigns["camp-1"], "inf-1")
	require.NoError(t, err)

	assert.Equal(t, 1, assignment.CurrentTier.Level)
	assert.Equal(t, "Starter", assignment.CurrentTier.Name)
}

// =============================================================================
// EVALUATION TESTS
// =============================================================================

func TestEvaluate_FloorSelection_PromotesOnThreshold(t *testing.T) {
	// GIVEN: 600000 in confirmed sales inside the window
	// WHEN: Evaluating tiers
	// THEN: The influencer lands on Rising (12%), not Elite - floor selection

	rig := newTestRig(t)
	tieredCampaign(rig)
	ctx := context.Background()

	confirmSales(t, rig, "ord-1", 350000)
	confirmSales(t, rig, "ord-2", 250000)

	rig.advance(24 * time.Hour)
	results, err := rig.tiers.Evaluate(ctx, rig.clock, "test")
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.True(t, results[0].Changed)
	assert.Equal(t, 2, results[0].NewTier.Level)
	assert.True(t, results[0].SalesVolume.Equal(money(600000)))
}

func TestEvaluate_BelowAllThresholds_StaysOnLowestTier(t *testing.T) {
	// GIVEN: Confirmed sales below every non-zero threshold
	// WHEN: Evaluating
	// THEN: The lowest tier remains and no history row is appended

	rig := newTestRig(t)
	tieredCampaign(rig)
	ctx := context.Background()

	confirmSales(t, rig, "ord-1", 100000)

	rig.advance(24 * time.Hour)
	results, err := rig.tiers.Evaluate(ctx, rig.clock, "test")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Changed)
	assert.Equal(t, 1, results[0].NewTier.Level)

	history, err := rig.store.ListTierHistory(ctx, commission.TierHistoryFilter{InfluencerID: "inf-1"})
	require.NoError(t, err)
	assert.Len(t, history, 1) // Seed entry only
}

func TestEvaluate_TierChange_ClosesHistoryAndAppliesNewRate(t *testing.T) {
	// GIVEN: A promotion to the 12% tier
	// WHEN: The next 150000 order arrives
	// THEN: The previous history entry is closed and the commission uses 12%
	//       (18000, not 15000)

	rig := newTestRig(t)
	tieredCampaign(rig)
	ctx := context.Background()

	confirmSales(t, rig, "ord-1", 600000)

	rig.advance(24 * time.Hour)
	_, err := rig.tiers.Evaluate(ctx, rig.clock, "test")
	require.NoError(t, err)

	assignment, err := rig.store.GetAssignment(ctx, "camp-1", "inf-1")
	require.NoError(t, err)
	require.Len(t, assignment.History, 2)
	assert.NotNil(t, assignment.History[0].EffectiveTo, "previous entry should be closed")
	assert.Nil(t, assignment.History[1].EffectiveTo, "current entry stays open")

	// The closure must also land on the queryable history log, not just the
	// assignment's in-memory copy.
	history, err := rig.store.ListTierHistory(ctx, commission.TierHistoryFilter{CampaignID: "camp-1", InfluencerID: "inf-1"})
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.NotNil(t, history[0].EffectiveTo, "closed entry must be closed on the log too")
	assert.True(t, history[0].SalesVolume.Equal(money(600000)))
	assert.True(t, history[0].WindowEnd.Equal(rig.clock))
	assert.Nil(t, history[1].EffectiveTo)

	confirmSales(t, rig, "ord-next", 150000)
	record, err := rig.store.GetCommission(ctx, "ord-next")
	require.NoError(t, err)
	assert.True(t, record.CommissionRate.Equal(money(12)))
	assert.True(t, record.CommissionAmount.Equal(money(18000)),
		"expected 18000 at 12%%, got %s", record.CommissionAmount)
}

func TestEvaluate_WindowsNeverOverlap(t *testing.T) {
	// GIVEN: Sales confirmed before the first evaluation
	// WHEN: A second evaluation runs with no new sales
	// THEN: The old sales do not count again - the window advanced

	rig := newTestRig(t)
	tieredCampaign(rig)
	ctx := context.Background()

	confirmSales(t, rig, "ord-1", 600000)

	rig.advance(24 * time.Hour)
	first, err := rig.tiers.Evaluate(ctx, rig.clock, "test")
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.True(t, first[0].SalesVolume.Equal(money(600000)))

	rig.advance(24 * time.Hour)
	second, err := rig.tiers.Evaluate(ctx, rig.clock, "test")
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.True(t, second[0].SalesVolume.IsZero(),
		"previous window's sales must not be recounted, got %s", second[0].SalesVolume)

	// No sales in the new window: demoted back to the lowest tier.
	assert.True(t, second[0].Changed)
	assert.Equal(t, 1, second[0].NewTier.Level)
}

func TestEvaluate_NoChange_RefreshesTrailingLogEntry(t *testing.T) {
	// GIVEN: Sales below every promotion threshold
	// WHEN: Evaluating with no tier change
	// THEN: The trailing log entry's window fields are refreshed in place

	rig := newTestRig(t)
	tieredCampaign(rig)
	ctx := context.Background()

	confirmSales(t, rig, "ord-1", 100000)

	rig.advance(24 * time.Hour)
	_, err := rig.tiers.Evaluate(ctx, rig.clock, "test")
	require.NoError(t, err)

	history, err := rig.store.ListTierHistory(ctx, commission.TierHistoryFilter{InfluencerID: "inf-1"})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].EffectiveTo)
	assert.True(t, history[0].WindowEnd.Equal(rig.clock))
	assert.True(t, history[0].SalesVolume.Equal(money(100000)))
}

// staleAssignmentStore serves one pre-captured assignments listing, then
// falls through to the live store. Mimics an Evaluate racing another run.
type staleAssignmentStore struct {
	*store.Memory
	stale []commission.TierAssignment
}

func (s *staleAssignmentStore) ListAssignments(ctx context.Context) ([]commission.TierAssignment, error) {
	if s.stale != nil {
		snapshot := s.stale
		s.stale = nil
		return snapshot, nil
	}
	return s.Memory.ListAssignments(ctx)
}

func TestEvaluate_StaleListing_ReReadsUnderLock(t *testing.T) {
	// GIVEN: An assignments listing captured before another evaluation ran
	// WHEN: Evaluate proceeds from that stale listing at a later date
	// THEN: The fresh window start is used, so the earlier window's sales
	//       are not counted a second time

	mem := store.NewMemory()
	st := &staleAssignmentStore{Memory: mem}

	dir := newFakeDirectory()
	dir.campaigns["camp-1"] = commission.CampaignConfig{
		ID: "camp-1", TenantID: "brand-1", BrandID: "brand-1",
		Name: "Launch", Status: "active",
		CommissionBase: decimal.NewFromInt(10),
		Tiers: []commission.TierSnapshot{
			{Name: "Starter", Level: 1, CommissionPercent: decimal.NewFromInt(10), ThresholdConfirmedSales: decimal.Zero},
			{Name: "Rising", Level: 2, CommissionPercent: decimal.NewFromInt(12), ThresholdConfirmedSales: decimal.NewFromInt(500000)},
		},
	}

	clock := time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC)
	tiers := commission.NewTierTracker(st, dir).WithClock(func() time.Time { return clock })
	ctx := context.Background()

	_, err := tiers.EnsureAssignment(ctx, dir.campaigns["camp-1"], "inf-1")
	require.NoError(t, err)

	confirmedAt := clock.Add(time.Hour)
	require.NoError(t, mem.SaveCommission(ctx, commission.CommissionRecord{
		ID: "comm-1", OrderID: "ord-1", TenantID: "brand-1",
		InfluencerID: "inf-1", CampaignID: "camp-1",
		State: commission.StateConfirmed, ConfirmedAt: &confirmedAt,
		EligibleAmount: decimal.NewFromInt(600000),
	}))

	stale, err := mem.ListAssignments(ctx)
	require.NoError(t, err)

	first, err := tiers.Evaluate(ctx, clock.Add(24*time.Hour), "test")
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.True(t, first[0].SalesVolume.Equal(money(600000)))

	// Replay the pre-evaluation listing at a later date.
	st.stale = stale
	second, err := tiers.Evaluate(ctx, clock.Add(48*time.Hour), "test")
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.True(t, second[0].SalesVolume.IsZero(),
		"sales from the already-evaluated window must not be recounted, got %s", second[0].SalesVolume)
	assert.True(t, second[0].WindowStart.Equal(clock.Add(24*time.Hour)))

	// Seed, promotion, demotion. No duplicate rows from the replay.
	history, err := mem.ListTierHistory(ctx, commission.TierHistoryFilter{InfluencerID: "inf-1"})
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestEvaluate_RepeatedAtSameInstant_IsSkipped(t *testing.T) {
	// GIVEN: An evaluation that already ran at a given instant
	// WHEN: A second evaluation runs with the same date
	// THEN: It produces no result and appends no history row

	rig := newTestRig(t)
	tieredCampaign(rig)
	ctx := context.Background()

	confirmSales(t, rig, "ord-1", 600000)

	rig.advance(24 * time.Hour)
	first, err := rig.tiers.Evaluate(ctx, rig.clock, "test")
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := rig.tiers.Evaluate(ctx, rig.clock, "test")
	require.NoError(t, err)
	assert.Empty(t, second)

	history, err := rig.store.ListTierHistory(ctx, commission.TierHistoryFilter{InfluencerID: "inf-1"})
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestEvaluate_OutOfOrderEvaluation_OnlyAdvancesMarkers(t *testing.T) {
	// GIVEN: An assignment whose window starts now
	// WHEN: Evaluating with a date before the window start
	// THEN: No result is produced and the markers move to the given date

	rig := newTestRig(t)
	ctx := context.Background()

	_, err := rig.tiers.EnsureAssignment(ctx, rig.dir.campaigns["camp-1"], "inf-1")
	require.NoError(t, err)

	past := rig.clock.Add(-48 * time.Hour)
	results, err := rig.tiers.Evaluate(ctx, past, "test")
	require.NoError(t, err)
	assert.Empty(t, results)

	assignment, err := rig.store.GetAssignment(ctx, "camp-1", "inf-1")
	require.NoError(t, err)
	assert.True(t, assignment.CurrentWindowStart.Equal(past))
}
