/*
tier.go - Tier assignment tracking and sliding-window evaluation

PURPOSE:
  Resolves the commission tier for each (campaign, influencer) pair as a
  deterministic function of confirmed sales in a trailing window. Assignments
  are created lazily on first touch, seeded to the lowest-threshold tier (or
  a synthetic level-0 base tier using the campaign's flat commission base
  when no tiers are configured).

EVALUATION:
  For each tracked assignment:
  1. Window is [currentWindowStart, evaluationDate]. An out-of-order
     evaluation (window end before start) only advances the markers.
  2. Sales volume = sum of eligibleAmount over CONFIRMED commissions whose
     confirmedAt falls inside the window, inclusive both ends.
  3. Tier selection walks tiers ascending by threshold and keeps the last
     tier whose threshold is <= sales volume (floor selection); the lowest
     tier remains selected when nothing qualifies.
  4. A level change closes the current history entry and opens a new one;
     a no-op evaluation only refreshes the trailing windowEnd/salesVolume.
     Both are written back to the history log, which is the queryable
     surface; assignments do not always hydrate History.
  5. The window start always advances to the evaluation date, so windows
     never overlap across evaluations by construction. Each assignment is
     re-read under its key lock, so a concurrent evaluation cannot proceed
     from a window another run already consumed.

KNOWN LIMITATION:
  Closed history entries store salesVolume as measured at evaluation time.
  A commission confirmed inside a closed window and reverted later does not
  correct that entry. Retroactive window correction is not a goal.

SEE ALSO:
  - engine.go: reads the current tier on every order event
  - api/scheduler.go: runs Evaluate on a ticker
*/
package commission

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// defaultEvaluationPeriodDays applies when the campaign does not configure
// a tier evaluation period.
const defaultEvaluationPeriodDays = 15

// =============================================================================
// TIER TRACKER
// =============================================================================

// TierTracker owns tier assignments and their evaluation.
type TierTracker struct {
	store Store
	dir   Directory
	locks *keyedMutex
	now   func() time.Time
}

// NewTierTracker creates a tracker over the given store and directory.
func NewTierTracker(store Store, dir Directory) *TierTracker {
	return &TierTracker{
		store: store,
		dir:   dir,
		locks: newKeyedMutex(),
		now:   time.Now,
	}
}

// WithClock overrides the tracker clock. Tests only.
func (t *TierTracker) WithClock(now func() time.Time) *TierTracker {
	t.now = now
	return t
}

// ResolveCurrentTier returns the influencer's current tier for a campaign,
// lazily creating the assignment on first touch.
func (t *TierTracker) ResolveCurrentTier(ctx context.Context, campaign CampaignConfig, influencerID string) (TierSnapshot, error) {
	assignment, err := t.EnsureAssignment(ctx, campaign, influencerID)
	if err != nil {
		return TierSnapshot{}, err
	}
	return assignment.CurrentTier, nil
}

// EnsureAssignment returns the assignment for (campaign, influencer),
// creating and seeding it when absent.
func (t *TierTracker) EnsureAssignment(ctx context.Context, campaign CampaignConfig, influencerID string) (TierAssignment, error) {
	unlock := t.locks.Lock(assignmentKey(campaign.ID, influencerID))
	defer unlock()

	assignment, err := t.store.GetAssignment(ctx, campaign.ID, influencerID)
	if err == nil {
		return assignment, nil
	}
	if !IsNotFound(err) {
		return TierAssignment{}, err
	}

	now := t.now()
	seed := defaultTierSnapshot(campaign)

	windowStart := campaign.StartDate
	if windowStart.IsZero() {
		windowStart = now
	}

	history := TierHistoryRecord{
		ID:             uuid.NewString(),
		InfluencerID:   influencerID,
		CampaignID:     campaign.ID,
		TierLevel:      seed.Level,
		TierName:       seed.Name,
		CommissionRate: seed.CommissionPercent,
		EffectiveFrom:  now,
		Reason:         "initial-tier",
		TriggeredBy:    "system",
		WindowStart:    windowStart,
		WindowEnd:      now,
		SalesVolume:    decimal.Zero,
	}

	periodDays := campaign.TierEvaluationPeriodDays
	if periodDays <= 0 {
		periodDays = defaultEvaluationPeriodDays
	}

	assignment = TierAssignment{
		TenantID:             campaign.TenantID,
		CampaignID:           campaign.ID,
		InfluencerID:         influencerID,
		EvaluationPeriodDays: periodDays,
		CurrentTier:          seed,
		CurrentWindowStart:   now,
		LastEvaluationAt:     now,
		History:              []TierHistoryRecord{history},
	}

	if err := t.store.SaveAssignment(ctx, assignment); err != nil {
		return TierAssignment{}, err
	}
	if err := t.store.AppendTierHistory(ctx, history); err != nil {
		return TierAssignment{}, err
	}
	return assignment, nil
}

// Evaluate re-resolves the tier of every tracked assignment against the
// trailing confirmed-sales window ending at evaluationDate.
func (t *TierTracker) Evaluate(ctx context.Context, evaluationDate time.Time, triggeredBy string) ([]TierEvaluationResult, error) {
	if evaluationDate.IsZero() {
		evaluationDate = t.now()
	}
	if triggeredBy == "" {
		triggeredBy = "system"
	}

	assignments, err := t.store.ListAssignments(ctx)
	if err != nil {
		return nil, err
	}

	var results []TierEvaluationResult
	for _, assignment := range assignments {
		campaign, ok := t.dir.Campaign(assignment.CampaignID)
		if !ok {
			continue
		}

		result, evaluated, err := t.evaluateOne(ctx, assignment, campaign, evaluationDate, triggeredBy)
		if err != nil {
			return nil, err
		}
		if evaluated {
			results = append(results, result)
		}
	}
	return results, nil
}

func (t *TierTracker) evaluateOne(ctx context.Context, assignment TierAssignment, campaign CampaignConfig, evaluationDate time.Time, triggeredBy string) (TierEvaluationResult, bool, error) {
	unlock := t.locks.Lock(assignmentKey(assignment.CampaignID, assignment.InfluencerID))
	defer unlock()

	// Re-read under the lock: the listing in Evaluate is a snapshot, and a
	// concurrent run may have advanced this assignment's window since.
	current, err := t.store.GetAssignment(ctx, assignment.CampaignID, assignment.InfluencerID)
	if err != nil {
		if IsNotFound(err) {
			return TierEvaluationResult{}, false, nil
		}
		return TierEvaluationResult{}, false, err
	}
	assignment = current

	// Already evaluated at this instant; re-running would count boundary
	// commissions twice.
	if assignment.LastEvaluationAt.Equal(evaluationDate) {
		return TierEvaluationResult{}, false, nil
	}

	windowStart := assignment.CurrentWindowStart
	windowEnd := evaluationDate

	// Clock skew or out-of-order evaluation: advance the markers and skip.
	if windowEnd.Before(windowStart) {
		assignment.CurrentWindowStart = evaluationDate
		assignment.LastEvaluationAt = evaluationDate
		if err := t.store.SaveAssignment(ctx, assignment); err != nil {
			return TierEvaluationResult{}, false, err
		}
		return TierEvaluationResult{}, false, nil
	}

	salesVolume, err := t.confirmedSalesVolume(ctx, assignment.InfluencerID, assignment.CampaignID, windowStart, windowEnd)
	if err != nil {
		return TierEvaluationResult{}, false, err
	}

	previousTier := assignment.CurrentTier
	nextTier := resolveTierForSales(campaign, salesVolume)
	changed := nextTier.Level != previousTier.Level

	// The trailing log entry is the open one. The log, not the assignment's
	// History copy, is what ListTierHistory serves, so closures and window
	// refreshes must be written through to it.
	trailing, err := t.trailingHistory(ctx, assignment.CampaignID, assignment.InfluencerID)
	if err != nil {
		return TierEvaluationResult{}, false, err
	}

	if changed {
		if trailing != nil {
			end := evaluationDate
			trailing.EffectiveTo = &end
			trailing.WindowEnd = windowEnd
			trailing.SalesVolume = salesVolume
			if err := t.store.AppendTierHistory(ctx, *trailing); err != nil {
				return TierEvaluationResult{}, false, err
			}
			if n := len(assignment.History); n > 0 {
				assignment.History[n-1] = *trailing
			}
		}

		record := TierHistoryRecord{
			ID:             uuid.NewString(),
			InfluencerID:   assignment.InfluencerID,
			CampaignID:     assignment.CampaignID,
			TierLevel:      nextTier.Level,
			TierName:       nextTier.Name,
			CommissionRate: nextTier.CommissionPercent,
			EffectiveFrom:  evaluationDate,
			Reason:         "tier-evaluation",
			TriggeredBy:    triggeredBy,
			WindowStart:    windowStart,
			WindowEnd:      windowEnd,
			SalesVolume:    salesVolume,
		}
		assignment.History = append(assignment.History, record)
		assignment.CurrentTier = nextTier

		if err := t.store.AppendTierHistory(ctx, record); err != nil {
			return TierEvaluationResult{}, false, err
		}
	} else if trailing != nil {
		// No tier change: refresh the trailing entry, no new history row.
		trailing.WindowEnd = windowEnd
		trailing.SalesVolume = salesVolume
		if err := t.store.AppendTierHistory(ctx, *trailing); err != nil {
			return TierEvaluationResult{}, false, err
		}
		if n := len(assignment.History); n > 0 {
			assignment.History[n-1] = *trailing
		}
	}

	// Windows never overlap: the next window starts where this one ended.
	assignment.CurrentWindowStart = evaluationDate
	assignment.LastEvaluationAt = evaluationDate

	if err := t.store.SaveAssignment(ctx, assignment); err != nil {
		return TierEvaluationResult{}, false, err
	}

	return TierEvaluationResult{
		InfluencerID: assignment.InfluencerID,
		CampaignID:   assignment.CampaignID,
		PreviousTier: TierRef{Name: previousTier.Name, Level: previousTier.Level, CommissionRate: previousTier.CommissionPercent},
		NewTier:      TierRef{Name: assignment.CurrentTier.Name, Level: assignment.CurrentTier.Level, CommissionRate: assignment.CurrentTier.CommissionPercent},
		Changed:      changed,
		SalesVolume:  salesVolume,
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
		TriggeredBy:  triggeredBy,
	}, true, nil
}

// trailingHistory returns the newest history record for the pair, nil when
// the log has none.
func (t *TierTracker) trailingHistory(ctx context.Context, campaignID, influencerID string) (*TierHistoryRecord, error) {
	trail, err := t.store.ListTierHistory(ctx, TierHistoryFilter{CampaignID: campaignID, InfluencerID: influencerID})
	if err != nil {
		return nil, err
	}
	if len(trail) == 0 {
		return nil, nil
	}
	record := trail[len(trail)-1]
	return &record, nil
}

// confirmedSalesVolume sums eligibleAmount over CONFIRMED commissions for
// the pair whose confirmedAt lies in [windowStart, windowEnd], inclusive.
func (t *TierTracker) confirmedSalesVolume(ctx context.Context, influencerID, campaignID string, windowStart, windowEnd time.Time) (decimal.Decimal, error) {
	commissions, err := t.store.ListCommissions(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, c := range commissions {
		if c.InfluencerID != influencerID || c.CampaignID != campaignID {
			continue
		}
		if c.State != StateConfirmed || c.ConfirmedAt == nil {
			continue
		}
		if c.ConfirmedAt.Before(windowStart) || c.ConfirmedAt.After(windowEnd) {
			continue
		}
		total = total.Add(c.EligibleAmount)
	}
	return round2(total), nil
}

// =============================================================================
// TIER SELECTION
// =============================================================================

// defaultTierSnapshot seeds a new assignment: the lowest-threshold tier, or
// a synthetic base tier on the campaign's flat rate when none are configured.
func defaultTierSnapshot(campaign CampaignConfig) TierSnapshot {
	if len(campaign.Tiers) == 0 {
		return TierSnapshot{
			Name:                    "Base",
			Level:                   0,
			CommissionPercent:       campaign.CommissionBase,
			ThresholdConfirmedSales: decimal.Zero,
		}
	}
	return sortedTiers(campaign)[0]
}

// resolveTierForSales selects the highest tier whose threshold the sales
// volume meets. Walks ascending; the running selection is only overwritten
// while the volume still meets the next threshold.
func resolveTierForSales(campaign CampaignConfig, salesVolume decimal.Decimal) TierSnapshot {
	if len(campaign.Tiers) == 0 {
		return defaultTierSnapshot(campaign)
	}

	tiers := sortedTiers(campaign)
	selected := tiers[0]
	for _, tier := range tiers {
		if salesVolume.GreaterThanOrEqual(tier.ThresholdConfirmedSales) {
			selected = tier
		} else {
			break
		}
	}
	return selected
}

func sortedTiers(campaign CampaignConfig) []TierSnapshot {
	tiers := make([]TierSnapshot, len(campaign.Tiers))
	copy(tiers, campaign.Tiers)
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].ThresholdConfirmedSales.LessThan(tiers[j].ThresholdConfirmedSales)
	})
	return tiers
}
