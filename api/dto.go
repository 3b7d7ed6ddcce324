/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Internal amounts are decimal.Decimal; the API speaks float64 via
  InexactFloat64(). All amounts are already rounded to 2 decimals at every
  mutation site, so the float conversion is presentation-only.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/withdrawal"
)

// =============================================================================
// ORDER EVENTS
// =============================================================================

// OrderItemDTO is one line item on an inbound order event.
type OrderItemDTO struct {
	SKUID        string  `json:"sku_id"`
	SKURef       string  `json:"sku_ref,omitempty"`
	Quantity     int     `json:"quantity"`
	Price        float64 `json:"price"`
	Discount     float64 `json:"discount,omitempty"`
	TaxAmount    float64 `json:"tax_amount,omitempty"`
	CategoryID   string  `json:"category_id,omitempty"`
	CategoryName string  `json:"category_name,omitempty"`
}

// OrderEventRequest is the webhook payload for an order lifecycle event.
type OrderEventRequest struct {
	OrderID         string         `json:"order_id"`
	EventType       string         `json:"event_type"`
	Status          string         `json:"status"`
	TotalAmount     float64        `json:"total_amount"`
	Currency        string         `json:"currency,omitempty"`
	CouponCode      string         `json:"coupon_code,omitempty"`
	Items           []OrderItemDTO `json:"items,omitempty"`
	ShippingAmount  *float64       `json:"shipping_amount,omitempty"`
	TaxAmount       *float64       `json:"tax_amount,omitempty"`
	EligibleAmount  *float64       `json:"eligible_amount,omitempty"`
	IncludeShipping bool           `json:"include_shipping,omitempty"`
}

// OrderDTO represents an order in API responses.
type OrderDTO struct {
	ID             string  `json:"id"`
	TenantID       string  `json:"tenant_id"`
	Status         string  `json:"status"`
	TotalAmount    float64 `json:"total_amount"`
	Currency       string  `json:"currency,omitempty"`
	EligibleAmount float64 `json:"eligible_amount"`
	InfluencerID   string  `json:"influencer_id,omitempty"`
	CampaignID     string  `json:"campaign_id,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

// RegisterResultDTO reports the outcome of an order event registration.
type RegisterResultDTO struct {
	Order      OrderDTO       `json:"order"`
	Commission *CommissionDTO `json:"commission,omitempty"`
}

// =============================================================================
// COMMISSIONS
// =============================================================================

// CommissionDTO represents a commission record in API responses.
type CommissionDTO struct {
	ID               string  `json:"id"`
	OrderID          string  `json:"order_id"`
	TenantID         string  `json:"tenant_id"`
	InfluencerID     string  `json:"influencer_id"`
	CampaignID       string  `json:"campaign_id"`
	State            string  `json:"state"`
	GrossAmount      float64 `json:"gross_amount"`
	EligibleAmount   float64 `json:"eligible_amount"`
	CommissionRate   float64 `json:"commission_rate"`
	CommissionAmount float64 `json:"commission_amount"`
	TierLevel        int     `json:"tier_level"`
	TierName         string  `json:"tier_name,omitempty"`
	CalculatedAt     string  `json:"calculated_at"`
	ConfirmedAt      *string `json:"confirmed_at,omitempty"`
	RevertedAt       *string `json:"reverted_at,omitempty"`
	Reason           string  `json:"reason,omitempty"`
}

// AuditEntryDTO is one entry of the commission audit trail.
type AuditEntryDTO struct {
	ID            string  `json:"id"`
	CommissionID  string  `json:"commission_id"`
	PreviousState *string `json:"previous_state,omitempty"`
	NextState     string  `json:"next_state"`
	ChangedAt     string  `json:"changed_at"`
	TriggeredBy   string  `json:"triggered_by,omitempty"`
	Context       string  `json:"context,omitempty"`
}

// CommissionSummaryDTO aggregates commissions per state.
type CommissionSummaryDTO struct {
	TotalCount      int     `json:"total_count"`
	EstimatedCount  int     `json:"estimated_count"`
	ConfirmedCount  int     `json:"confirmed_count"`
	RevertedCount   int     `json:"reverted_count"`
	EstimatedAmount float64 `json:"estimated_amount"`
	ConfirmedAmount float64 `json:"confirmed_amount"`
	RevertedAmount  float64 `json:"reverted_amount"`
}

// =============================================================================
// BALANCES
// =============================================================================

// BalanceDTO represents an influencer balance.
type BalanceDTO struct {
	InfluencerID            string  `json:"influencer_id"`
	TenantID                string  `json:"tenant_id"`
	EstimatedAmount         float64 `json:"estimated_amount"`
	ConfirmedAmount         float64 `json:"confirmed_amount"`
	RevertedAmount          float64 `json:"reverted_amount"`
	PendingWithdrawalAmount float64 `json:"pending_withdrawal_amount"`
	WithdrawnAmount         float64 `json:"withdrawn_amount"`
	AdjustmentAmount        float64 `json:"adjustment_amount"`
	AvailableForWithdrawal  float64 `json:"available_for_withdrawal"`
	LastCalculatedAt        string  `json:"last_calculated_at"`
}

// =============================================================================
// SETTLEMENT
// =============================================================================

// RunSettlementRequest parameterizes a manual settlement run.
type RunSettlementRequest struct {
	EvaluationDate    string `json:"evaluation_date,omitempty"`
	WaitingPeriodDays int    `json:"waiting_period_days,omitempty"`
	TriggeredBy       string `json:"triggered_by,omitempty"`
}

// SettlementTransitionDTO is one commission examined by a run.
type SettlementTransitionDTO struct {
	CommissionID     string  `json:"commission_id"`
	OrderID          string  `json:"order_id"`
	PreviousState    string  `json:"previous_state"`
	NextState        string  `json:"next_state"`
	InfluencerID     string  `json:"influencer_id"`
	CommissionAmount float64 `json:"commission_amount"`
	Reason           string  `json:"reason"`
}

// SettlementSummaryDTO is the outcome of a settlement run.
type SettlementSummaryDTO struct {
	EvaluationDate    string                    `json:"evaluation_date"`
	WaitingPeriodDays int                       `json:"waiting_period_days"`
	Confirmed         []SettlementTransitionDTO `json:"confirmed"`
	Reverted          []SettlementTransitionDTO `json:"reverted"`
	Pending           []SettlementTransitionDTO `json:"pending"`
}

// =============================================================================
// TIERS
// =============================================================================

// TierDTO is a commission-rate bracket.
type TierDTO struct {
	Name               string  `json:"name"`
	Level              int     `json:"level"`
	CommissionPercent  float64 `json:"commission_percent"`
	ThresholdConfirmed float64 `json:"threshold_confirmed_sales"`
}

// TierEvaluationResultDTO reports one assignment evaluation.
type TierEvaluationResultDTO struct {
	InfluencerID string  `json:"influencer_id"`
	CampaignID   string  `json:"campaign_id"`
	PreviousTier string  `json:"previous_tier"`
	NewTier      string  `json:"new_tier"`
	Changed      bool    `json:"changed"`
	SalesVolume  float64 `json:"sales_volume"`
	WindowStart  string  `json:"window_start"`
	WindowEnd    string  `json:"window_end"`
}

// TierHistoryDTO is one entry of the tier assignment history.
type TierHistoryDTO struct {
	ID             string  `json:"id"`
	InfluencerID   string  `json:"influencer_id"`
	CampaignID     string  `json:"campaign_id"`
	TierLevel      int     `json:"tier_level"`
	TierName       string  `json:"tier_name"`
	CommissionRate float64 `json:"commission_rate"`
	EffectiveFrom  string  `json:"effective_from"`
	EffectiveTo    *string `json:"effective_to,omitempty"`
	Reason         string  `json:"reason,omitempty"`
	SalesVolume    float64 `json:"sales_volume"`
}

// =============================================================================
// ADJUSTMENTS & RECONCILIATION
// =============================================================================

// AdjustmentDTO represents a withdrawal adjustment.
type AdjustmentDTO struct {
	ID             string  `json:"id"`
	InfluencerID   string  `json:"influencer_id"`
	OrderID        string  `json:"order_id"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency,omitempty"`
	Type           string  `json:"type"`
	Status         string  `json:"status"`
	Reason         string  `json:"reason,omitempty"`
	CreatedAt      string  `json:"created_at"`
	ResolvedAt     *string `json:"resolved_at,omitempty"`
	ResolutionType string  `json:"resolution_type,omitempty"`
}

// ResolveAdjustmentRequest resolves a pending adjustment.
type ResolveAdjustmentRequest struct {
	ResolvedBy     string `json:"resolved_by"`
	ResolutionType string `json:"resolution_type"`
	PaymentID      string `json:"payment_id,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

// ReconciliationRequest is the intake payload from an external
// reconciliation job.
type ReconciliationRequest struct {
	TenantID           string         `json:"tenant_id,omitempty"`
	RunDate            string         `json:"run_date,omitempty"`
	Type               string         `json:"type,omitempty"`
	DiscrepanciesFound int            `json:"discrepancies_found"`
	ReportURL          string         `json:"report_url,omitempty"`
	Summary            map[string]any `json:"summary,omitempty"`
	Alerts             []string       `json:"alerts,omitempty"`
}

// ReconciliationDTO represents a stored reconciliation record.
type ReconciliationDTO struct {
	ID                 string         `json:"id"`
	TenantID           string         `json:"tenant_id"`
	RunDate            string         `json:"run_date"`
	Type               string         `json:"type"`
	DiscrepanciesFound int            `json:"discrepancies_found"`
	ReportURL          string         `json:"report_url,omitempty"`
	Summary            map[string]any `json:"summary,omitempty"`
	Alerts             []string       `json:"alerts,omitempty"`
	CreatedAt          string         `json:"created_at"`
}

// =============================================================================
// WITHDRAWALS
// =============================================================================

// WithdrawalRequestDTO represents a withdrawal request.
type WithdrawalRequestDTO struct {
	ID              string  `json:"id"`
	InfluencerID    string  `json:"influencer_id"`
	BrandID         string  `json:"brand_id"`
	BrandName       string  `json:"brand_name,omitempty"`
	RequestedAmount float64 `json:"requested_amount"`
	Currency        string  `json:"currency,omitempty"`
	Status          string  `json:"status"`
	RequestedAt     string  `json:"requested_at"`
	ProcessedBy     string  `json:"processed_by,omitempty"`
	ProcessedAt     *string `json:"processed_at,omitempty"`
	Notes           string  `json:"notes,omitempty"`
}

// CreateWithdrawalRequest opens a withdrawal request.
type CreateWithdrawalRequest struct {
	InfluencerID string  `json:"influencer_id"`
	BrandID      string  `json:"brand_id"`
	Amount       float64 `json:"amount"`
	Notes        string  `json:"notes,omitempty"`
	InitiatedBy  string  `json:"initiated_by,omitempty"`
}

// DecideWithdrawalRequest approves or rejects a request.
type DecideWithdrawalRequest struct {
	Decision         string `json:"decision"` // "approve" or "reject"
	ProcessedBy      string `json:"processed_by"`
	Notes            string `json:"notes,omitempty"`
	PaymentReference string `json:"payment_reference,omitempty"`
}

// RecordPaymentRequest records a disbursement against a request.
type RecordPaymentRequest struct {
	Amount           float64  `json:"amount"`
	PaymentDate      string   `json:"payment_date,omitempty"`
	Method           string   `json:"method,omitempty"`
	Reference        string   `json:"reference,omitempty"`
	TaxWithheld      *float64 `json:"tax_withheld,omitempty"`
	ProcessedBy      string   `json:"processed_by"`
	ReconciliationID string   `json:"reconciliation_id,omitempty"`
	AdjustmentIDs    []string `json:"adjustment_ids,omitempty"`
}

// PaymentDTO represents a recorded payment.
type PaymentDTO struct {
	ID                   string   `json:"id"`
	WithdrawalRequestID  string   `json:"withdrawal_request_id"`
	InfluencerID         string   `json:"influencer_id"`
	Amount               float64  `json:"amount"`
	Currency             string   `json:"currency,omitempty"`
	PaymentDate          string   `json:"payment_date"`
	Method               string   `json:"method,omitempty"`
	Reference            string   `json:"reference,omitempty"`
	TaxWithheld          *float64 `json:"tax_withheld,omitempty"`
	AppliedAdjustmentIDs []string `json:"applied_adjustment_ids,omitempty"`
	CreatedAt            string   `json:"created_at"`
}

// =============================================================================
// REGISTRY
// =============================================================================

// CampaignRequest creates or updates a campaign.
type CampaignRequest struct {
	ID                       string    `json:"id,omitempty"`
	TenantID                 string    `json:"tenant_id,omitempty"`
	BrandID                  string    `json:"brand_id,omitempty"`
	BrandName                string    `json:"brand_name,omitempty"`
	Name                     string    `json:"name"`
	Status                   string    `json:"status,omitempty"`
	StartDate                string    `json:"start_date,omitempty"`
	CommissionBase           float64   `json:"commission_base"`
	CommissionBasis          string    `json:"commission_basis,omitempty"`
	EligibleScopeType        string    `json:"eligible_scope_type,omitempty"`
	EligibleScopeValues      []string  `json:"eligible_scope_values,omitempty"`
	TierEvaluationPeriodDays int       `json:"tier_evaluation_period_days,omitempty"`
	Tiers                    []TierDTO `json:"tiers,omitempty"`
}

// CampaignDTO represents a campaign in API responses.
type CampaignDTO struct {
	ID                  string    `json:"id"`
	TenantID            string    `json:"tenant_id"`
	BrandID             string    `json:"brand_id,omitempty"`
	Name                string    `json:"name"`
	Status              string    `json:"status"`
	StartDate           string    `json:"start_date,omitempty"`
	CommissionBase      float64   `json:"commission_base"`
	CommissionBasis     string    `json:"commission_basis"`
	EligibleScopeType   string    `json:"eligible_scope_type,omitempty"`
	EligibleScopeValues []string  `json:"eligible_scope_values,omitempty"`
	Tiers               []TierDTO `json:"tiers,omitempty"`
}

// InfluencerRequest creates or updates an influencer.
type InfluencerRequest struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Status string `json:"status,omitempty"`
}

// InfluencerDTO represents an influencer in API responses.
type InfluencerDTO struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Email               string   `json:"email,omitempty"`
	Status              string   `json:"status"`
	AssignedCampaignIDs []string `json:"assigned_campaign_ids,omitempty"`
}

// GenerateCodeRequest mints a coupon code for an influencer on a campaign.
type GenerateCodeRequest struct {
	Prefix       string `json:"prefix"`
	CampaignID   string `json:"campaign_id"`
	InfluencerID string `json:"influencer_id"`
}

// DiscountCodeDTO represents a coupon code.
type DiscountCodeDTO struct {
	ID           string `json:"id"`
	Code         string `json:"code"`
	CampaignID   string `json:"campaign_id"`
	InfluencerID string `json:"influencer_id"`
	Status       string `json:"status"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toOrderDTO(o commission.Order) OrderDTO {
	return OrderDTO{
		ID:             o.ID,
		TenantID:       o.TenantID,
		Status:         string(o.Status),
		TotalAmount:    o.TotalAmount.InexactFloat64(),
		Currency:       o.Currency,
		EligibleAmount: o.EligibleAmount.InexactFloat64(),
		InfluencerID:   o.InfluencerID,
		CampaignID:     o.CampaignID,
		CreatedAt:      o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      o.UpdatedAt.Format(time.RFC3339),
	}
}

func toCommissionDTO(c commission.CommissionRecord) CommissionDTO {
	return CommissionDTO{
		ID:               c.ID,
		OrderID:          c.OrderID,
		TenantID:         c.TenantID,
		InfluencerID:     c.InfluencerID,
		CampaignID:       c.CampaignID,
		State:            string(c.State),
		GrossAmount:      c.GrossAmount.InexactFloat64(),
		EligibleAmount:   c.EligibleAmount.InexactFloat64(),
		CommissionRate:   c.CommissionRate.InexactFloat64(),
		CommissionAmount: c.CommissionAmount.InexactFloat64(),
		TierLevel:        c.TierLevel,
		TierName:         c.TierName,
		CalculatedAt:     c.CalculatedAt.Format(time.RFC3339),
		ConfirmedAt:      formatTimePtr(c.ConfirmedAt),
		RevertedAt:       formatTimePtr(c.RevertedAt),
		Reason:           c.Reason,
	}
}

func toAuditEntryDTO(e commission.AuditEntry) AuditEntryDTO {
	dto := AuditEntryDTO{
		ID:           e.ID,
		CommissionID: e.CommissionID,
		NextState:    string(e.NextState),
		ChangedAt:    e.ChangedAt.Format(time.RFC3339),
		TriggeredBy:  e.TriggeredBy,
		Context:      e.Context,
	}
	if e.PreviousState != nil {
		v := string(*e.PreviousState)
		dto.PreviousState = &v
	}
	return dto
}

func toBalanceDTO(b commission.InfluencerBalance) BalanceDTO {
	return BalanceDTO{
		InfluencerID:            b.InfluencerID,
		TenantID:                b.TenantID,
		EstimatedAmount:         b.EstimatedAmount.InexactFloat64(),
		ConfirmedAmount:         b.ConfirmedAmount.InexactFloat64(),
		RevertedAmount:          b.RevertedAmount.InexactFloat64(),
		PendingWithdrawalAmount: b.PendingWithdrawalAmount.InexactFloat64(),
		WithdrawnAmount:         b.WithdrawnAmount.InexactFloat64(),
		AdjustmentAmount:        b.AdjustmentAmount.InexactFloat64(),
		AvailableForWithdrawal:  b.AvailableForWithdrawal.InexactFloat64(),
		LastCalculatedAt:        b.LastCalculatedAt.Format(time.RFC3339),
	}
}

func toSettlementSummaryDTO(s commission.SettlementSummary) SettlementSummaryDTO {
	return SettlementSummaryDTO{
		EvaluationDate:    s.EvaluationDate.Format(time.RFC3339),
		WaitingPeriodDays: s.WaitingPeriodDays,
		Confirmed:         toSettlementTransitionDTOs(s.Confirmed),
		Reverted:          toSettlementTransitionDTOs(s.Reverted),
		Pending:           toSettlementTransitionDTOs(s.Pending),
	}
}

func toSettlementTransitionDTOs(transitions []commission.SettlementTransition) []SettlementTransitionDTO {
	dtos := make([]SettlementTransitionDTO, len(transitions))
	for i, t := range transitions {
		dtos[i] = SettlementTransitionDTO{
			CommissionID:     t.CommissionID,
			OrderID:          t.OrderID,
			PreviousState:    string(t.PreviousState),
			NextState:        string(t.NextState),
			InfluencerID:     t.InfluencerID,
			CommissionAmount: t.CommissionAmount.InexactFloat64(),
			Reason:           t.Reason,
		}
	}
	return dtos
}

func toAdjustmentDTO(a commission.WithdrawalAdjustment) AdjustmentDTO {
	return AdjustmentDTO{
		ID:             a.ID,
		InfluencerID:   a.InfluencerID,
		OrderID:        a.OrderID,
		Amount:         a.Amount.InexactFloat64(),
		Currency:       a.Currency,
		Type:           string(a.Type),
		Status:         string(a.Status),
		Reason:         a.Reason,
		CreatedAt:      a.CreatedAt.Format(time.RFC3339),
		ResolvedAt:     formatTimePtr(a.ResolvedAt),
		ResolutionType: string(a.ResolutionType),
	}
}

func toReconciliationDTO(r commission.ReconciliationRecord) ReconciliationDTO {
	return ReconciliationDTO{
		ID:                 r.ID,
		TenantID:           r.TenantID,
		RunDate:            r.RunDate.Format(time.RFC3339),
		Type:               string(r.Type),
		DiscrepanciesFound: r.DiscrepanciesFound,
		ReportURL:          r.ReportURL,
		Summary:            r.Summary,
		Alerts:             r.Alerts,
		CreatedAt:          r.CreatedAt.Format(time.RFC3339),
	}
}

func toWithdrawalRequestDTO(r withdrawal.Request) WithdrawalRequestDTO {
	return WithdrawalRequestDTO{
		ID:              r.ID,
		InfluencerID:    r.InfluencerID,
		BrandID:         r.BrandID,
		BrandName:       r.BrandName,
		RequestedAmount: r.RequestedAmount.InexactFloat64(),
		Currency:        r.Currency,
		Status:          string(r.Status),
		RequestedAt:     r.RequestedAt.Format(time.RFC3339),
		ProcessedBy:     r.ProcessedBy,
		ProcessedAt:     formatTimePtr(r.ProcessedAt),
		Notes:           r.Notes,
	}
}

func toPaymentDTO(p withdrawal.Payment) PaymentDTO {
	dto := PaymentDTO{
		ID:                   p.ID,
		WithdrawalRequestID:  p.WithdrawalRequestID,
		InfluencerID:         p.InfluencerID,
		Amount:               p.Amount.InexactFloat64(),
		Currency:             p.Currency,
		PaymentDate:          p.PaymentDate.Format(time.RFC3339),
		Method:               p.Method,
		Reference:            p.Reference,
		AppliedAdjustmentIDs: p.AppliedAdjustmentIDs,
		CreatedAt:            p.CreatedAt.Format(time.RFC3339),
	}
	if p.TaxWithheld != nil {
		v := p.TaxWithheld.InexactFloat64()
		dto.TaxWithheld = &v
	}
	return dto
}

func toCampaignDTO(c commission.CampaignConfig) CampaignDTO {
	dto := CampaignDTO{
		ID:                  c.ID,
		TenantID:            c.TenantID,
		BrandID:             c.BrandID,
		Name:                c.Name,
		Status:              c.Status,
		CommissionBase:      c.CommissionBase.InexactFloat64(),
		CommissionBasis:     string(c.CommissionBasis),
		EligibleScopeType:   string(c.EligibleScopeType),
		EligibleScopeValues: c.EligibleScopeValues,
		Tiers:               toTierDTOs(c.Tiers),
	}
	if !c.StartDate.IsZero() {
		dto.StartDate = c.StartDate.Format(time.RFC3339)
	}
	return dto
}

func toTierDTOs(tiers []commission.TierSnapshot) []TierDTO {
	if len(tiers) == 0 {
		return nil
	}
	dtos := make([]TierDTO, len(tiers))
	for i, t := range tiers {
		dtos[i] = TierDTO{
			Name:               t.Name,
			Level:              t.Level,
			CommissionPercent:  t.CommissionPercent.InexactFloat64(),
			ThresholdConfirmed: t.ThresholdConfirmedSales.InexactFloat64(),
		}
	}
	return dtos
}

func fromTierDTOs(dtos []TierDTO) []commission.TierSnapshot {
	if len(dtos) == 0 {
		return nil
	}
	tiers := make([]commission.TierSnapshot, len(dtos))
	for i, d := range dtos {
		tiers[i] = commission.TierSnapshot{
			Name:                    d.Name,
			Level:                   d.Level,
			CommissionPercent:       decimal.NewFromFloat(d.CommissionPercent),
			ThresholdConfirmedSales: decimal.NewFromFloat(d.ThresholdConfirmed),
		}
	}
	return tiers
}

func toInfluencerDTO(i commission.Influencer) InfluencerDTO {
	return InfluencerDTO{
		ID:                  i.ID,
		Name:                i.Name,
		Email:               i.Email,
		Status:              string(i.Status),
		AssignedCampaignIDs: i.AssignedCampaignIDs,
	}
}

func toDiscountCodeDTO(c commission.DiscountCode) DiscountCodeDTO {
	return DiscountCodeDTO{
		ID:           c.ID,
		Code:         c.Code,
		CampaignID:   c.CampaignID,
		InfluencerID: c.InfluencerID,
		Status:       c.Status,
	}
}

func toTierHistoryDTO(r commission.TierHistoryRecord) TierHistoryDTO {
	return TierHistoryDTO{
		ID:             r.ID,
		InfluencerID:   r.InfluencerID,
		CampaignID:     r.CampaignID,
		TierLevel:      r.TierLevel,
		TierName:       r.TierName,
		CommissionRate: r.CommissionRate.InexactFloat64(),
		EffectiveFrom:  r.EffectiveFrom.Format(time.RFC3339),
		EffectiveTo:    formatTimePtr(r.EffectiveTo),
		Reason:         r.Reason,
		SalesVolume:    r.SalesVolume.InexactFloat64(),
	}
}

func toTierEvaluationDTO(r commission.TierEvaluationResult) TierEvaluationResultDTO {
	return TierEvaluationResultDTO{
		InfluencerID: r.InfluencerID,
		CampaignID:   r.CampaignID,
		PreviousTier: r.PreviousTier.Name,
		NewTier:      r.NewTier.Name,
		Changed:      r.Changed,
		SalesVolume:  r.SalesVolume.InexactFloat64(),
		WindowStart:  r.WindowStart.Format(time.RFC3339),
		WindowEnd:    r.WindowEnd.Format(time.RFC3339),
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.Format(time.RFC3339)
	return &v
}
