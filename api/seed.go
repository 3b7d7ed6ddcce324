/*
seed.go - Demo dataset loader

PURPOSE:
  Loads a small but realistic demo dataset so the API is explorable
  immediately after startup: one tiered campaign, approved influencers with
  coupon codes, and a handful of orders in different lifecycle states.

USAGE:
  Enabled with the -seed flag on the server binary. Intended for local
  development and demos, never production.

SEE ALSO:
  - cmd/server/main.go: Startup wiring
  - registry/registry.go: Campaign and influencer storage
*/
package api

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/registry"
)

// SeedDemoData loads the demo campaign, influencers, codes and orders.
// Idempotent per process start: fixed ids mean re-running overwrites rather
// than duplicates.
func SeedDemoData(ctx context.Context, reg *registry.Registry, engine *commission.Engine) error {
	campaign := reg.SaveCampaign(commission.CampaignConfig{
		ID:              "camp-demo",
		TenantID:        "brand-aurora",
		BrandID:         "brand-aurora",
		BrandName:       "Aurora Cosmetics",
		Name:            "Aurora Summer Launch",
		Status:          "active",
		StartDate:       time.Now().AddDate(0, -2, 0),
		CommissionBase:  decimal.NewFromInt(10),
		CommissionBasis: commission.BasisPreTax,
		Tiers: []commission.TierSnapshot{
			{Name: "Starter", Level: 1, CommissionPercent: decimal.NewFromInt(10), ThresholdConfirmedSales: decimal.Zero},
			{Name: "Rising", Level: 2, CommissionPercent: decimal.NewFromInt(12), ThresholdConfirmedSales: decimal.NewFromInt(500000)},
			{Name: "Elite", Level: 3, CommissionPercent: decimal.NewFromInt(15), ThresholdConfirmedSales: decimal.NewFromInt(2000000)},
		},
		TierEvaluationPeriodDays: 30,
	})

	influencers := []commission.Influencer{
		{ID: "inf-maria", Name: "Maria Lopez", Email: "maria@example.com", Status: commission.InfluencerApproved},
		{ID: "inf-carla", Name: "Carla Gomez", Email: "carla@example.com", Status: commission.InfluencerApproved},
		{ID: "inf-david", Name: "David Rios", Email: "david@example.com", Status: commission.InfluencerPending},
	}
	for _, influencer := range influencers {
		reg.SaveInfluencer(influencer)
		if influencer.Status != commission.InfluencerApproved {
			continue
		}
		if err := reg.AssignInfluencerToCampaign(ctx, influencer.ID, campaign.ID); err != nil {
			return fmt.Errorf("seed: assign %s: %w", influencer.ID, err)
		}
	}

	codes := []commission.DiscountCode{
		{ID: "code-maria", TenantID: campaign.TenantID, Code: "AURORA-MARIA", CampaignID: campaign.ID, InfluencerID: "inf-maria", Status: "active"},
		{ID: "code-carla", TenantID: campaign.TenantID, Code: "AURORA-CARLA", CampaignID: campaign.ID, InfluencerID: "inf-carla", Status: "active"},
	}
	for _, code := range codes {
		if _, err := reg.SaveCode(code); err != nil {
			return fmt.Errorf("seed: code %s: %w", code.Code, err)
		}
	}

	// A spread of order states: two paid (confirmable after the waiting
	// period), one created (estimated), one canceled (reverted).
	events := []commission.OrderEvent{
		{
			OrderID:     "ord-1001",
			EventType:   commission.EventOrderCreated,
			Status:      commission.OrderCreated,
			TotalAmount: decimal.NewFromInt(150000),
			Currency:    "COP",
			CouponCode:  "AURORA-MARIA",
		},
		{
			OrderID:     "ord-1001",
			EventType:   commission.EventOrderPaid,
			Status:      commission.OrderPaid,
			TotalAmount: decimal.NewFromInt(150000),
			Currency:    "COP",
			CouponCode:  "AURORA-MARIA",
		},
		{
			OrderID:     "ord-1002",
			EventType:   commission.EventOrderPaid,
			Status:      commission.OrderPaid,
			TotalAmount: decimal.NewFromInt(320000),
			Currency:    "COP",
			CouponCode:  "AURORA-CARLA",
		},
		{
			OrderID:     "ord-1003",
			EventType:   commission.EventOrderCreated,
			Status:      commission.OrderCreated,
			TotalAmount: decimal.NewFromInt(89000),
			Currency:    "COP",
			CouponCode:  "AURORA-MARIA",
		},
		{
			OrderID:     "ord-1004",
			EventType:   commission.EventOrderCreated,
			Status:      commission.OrderCreated,
			TotalAmount: decimal.NewFromInt(210000),
			Currency:    "COP",
			CouponCode:  "AURORA-CARLA",
		},
		{
			OrderID:     "ord-1004",
			EventType:   commission.EventOrderCanceled,
			Status:      commission.OrderCanceled,
			TotalAmount: decimal.NewFromInt(210000),
			Currency:    "COP",
			CouponCode:  "AURORA-CARLA",
		},
	}
	for _, event := range events {
		if _, err := engine.RegisterOrderEvent(ctx, event); err != nil {
			return fmt.Errorf("seed: order event %s/%s: %w", event.OrderID, event.EventType, err)
		}
	}

	log.Printf("[Seed] Loaded demo data: 1 campaign, %d influencers, %d codes, %d order events",
		len(influencers), len(codes), len(events))
	return nil
}
