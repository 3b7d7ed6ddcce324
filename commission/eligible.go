/*
eligible.go - Eligible amount computation

PURPOSE:
  Computes the portion of an order's value that counts toward commission,
  after applying campaign scope filters and tax/shipping inclusion rules.
  This is a pure function of campaign config and line items; the engine
  persists the result on the order so downstream consumers never recompute.

ALGORITHM:
  1. Filter items to the campaign's eligible scope (sku or category match;
     no configured scope values means everything is eligible; no campaign
     at all means everything is eligible)
  2. Sum price*quantity - discount over eligible items
  3. post_tax basis adds the order tax amount
  4. includeShipping adds the shipping amount
  5. Clamp at zero - the eligible amount is never negative

SEE ALSO:
  - engine.go: caller (unless the event supplies an override)
*/
package commission

import "github.com/shopspring/decimal"

// EligibleAmountInput carries everything the computation needs.
type EligibleAmountInput struct {
	Campaign        *CampaignConfig
	Items           []OrderItem
	TaxAmount       decimal.Decimal
	ShippingAmount  decimal.Decimal
	IncludeShipping bool
}

// CalculateEligibleAmount computes the commissionable portion of an order.
func CalculateEligibleAmount(in EligibleAmountInput) decimal.Decimal {
	subtotal := decimal.Zero
	for _, item := range in.Items {
		if !itemEligible(in.Campaign, item) {
			continue
		}
		line := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))).Sub(item.Discount)
		subtotal = subtotal.Add(line)
	}

	total := subtotal
	if in.Campaign != nil && in.Campaign.CommissionBasis == BasisPostTax {
		total = total.Add(in.TaxAmount)
	}
	if in.IncludeShipping {
		total = total.Add(in.ShippingAmount)
	}

	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

func itemEligible(campaign *CampaignConfig, item OrderItem) bool {
	if campaign == nil {
		return true
	}
	if len(campaign.EligibleScopeValues) == 0 {
		return true
	}

	if campaign.EligibleScopeType == ScopeSKU {
		return containsString(campaign.EligibleScopeValues, item.SKUID)
	}

	// Category scope: either id or name may match.
	if item.CategoryID != "" && containsString(campaign.EligibleScopeValues, item.CategoryID) {
		return true
	}
	if item.CategoryName != "" && containsString(campaign.EligibleScopeValues, item.CategoryName) {
		return true
	}
	return false
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
