/*
handlers.go - HTTP API handlers for the commission engine

PURPOSE:
  Exposes the commission engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Webhooks:
    POST   /api/webhooks/orders          Register an order lifecycle event

  Commissions:
    GET    /api/commissions              List commissions
    GET    /api/commissions/summary      Aggregate counts and amounts per state
    GET    /api/commissions/{orderID}    Commission for one order
    GET    /api/commissions/{orderID}/audit  Audit trail for one commission
    GET    /api/audit                    Global audit log

  Balances:
    GET    /api/balances                 List balances
    GET    /api/balances/{influencerID}  Balance for one influencer

  Settlement & tiers:
    POST   /api/settlement/run           Run batch settlement
    POST   /api/tiers/evaluate           Run tier evaluation
    GET    /api/tiers/history            Tier assignment history

  Reconciliation & adjustments:
    POST   /api/reconciliations          Reconciliation report intake
    GET    /api/reconciliations          List reconciliation records
    GET    /api/adjustments              List adjustments
    POST   /api/adjustments              Manual adjustment for an order
    POST   /api/adjustments/{id}/resolve Resolve a pending adjustment

  Withdrawals:
    POST   /api/withdrawals              Open a withdrawal request
    GET    /api/withdrawals              List withdrawal requests
    POST   /api/withdrawals/{id}/decision Approve or reject
    POST   /api/withdrawals/{id}/payments Record a payment
    GET    /api/payments                 List payments

  Registry:
    GET/POST /api/campaigns              Campaigns
    GET/POST /api/influencers            Influencers (+status, +assign)
    GET      /api/codes                  Discount codes
    POST     /api/codes/generate         Mint a coupon code

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (settlement already running)
  - 422: Domain rule rejected the operation
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - seed.go: Demo data loader
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/registry"
	"github.com/warp/commission-engine/withdrawal"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       commission.Store
	Engine      *commission.Engine
	Settler     *commission.Settler
	Tiers       *commission.TierTracker
	Ledger      *commission.BalanceLedger
	Adjustments *commission.AdjustmentEngine
	Registry    *registry.Registry
	Withdrawals *withdrawal.Workflow
	Payouts     withdrawal.Store
}

// NewHandler creates a handler over a fully wired engine.
func NewHandler(store commission.Store, engine *commission.Engine, settler *commission.Settler,
	tiers *commission.TierTracker, ledger *commission.BalanceLedger,
	adjustments *commission.AdjustmentEngine, reg *registry.Registry,
	workflow *withdrawal.Workflow, payouts withdrawal.Store) *Handler {
	return &Handler{
		Store:       store,
		Engine:      engine,
		Settler:     settler,
		Tiers:       tiers,
		Ledger:      ledger,
		Adjustments: adjustments,
		Registry:    reg,
		Withdrawals: workflow,
		Payouts:     payouts,
	}
}

// =============================================================================
// WEBHOOK HANDLERS
// =============================================================================

// RegisterOrderEvent ingests one order lifecycle event.
func (h *Handler) RegisterOrderEvent(w http.ResponseWriter, r *http.Request) {
	var req OrderEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.OrderID == "" {
		writeError(w, http.StatusBadRequest, "order_id is required", nil)
		return
	}

	event := commission.OrderEvent{
		OrderID:                   req.OrderID,
		EventType:                 commission.OrderEventType(req.EventType),
		Status:                    commission.OrderStatus(req.Status),
		TotalAmount:               decimal.NewFromFloat(req.TotalAmount),
		Currency:                  req.Currency,
		CouponCode:                req.CouponCode,
		Items:                     fromOrderItemDTOs(req.Items),
		ShippingAmount:            floatToDecimalPtr(req.ShippingAmount),
		TaxAmount:                 floatToDecimalPtr(req.TaxAmount),
		EligibleAmount:            floatToDecimalPtr(req.EligibleAmount),
		IncludeShippingInEligible: req.IncludeShipping,
	}

	result, err := h.Engine.RegisterOrderEvent(r.Context(), event)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to register order event", err)
		return
	}

	dto := RegisterResultDTO{Order: toOrderDTO(result.Order)}
	if result.Commission != nil {
		c := toCommissionDTO(*result.Commission)
		dto.Commission = &c
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetOrder returns a single order.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.Store.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if commission.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Order not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(order))
}

// ListOrders returns all orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Store.ListOrders(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list orders", err)
		return
	}

	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.Before(orders[j].CreatedAt) })
	dtos := make([]OrderDTO, len(orders))
	for i, o := range orders {
		dtos[i] = toOrderDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// COMMISSION HANDLERS
// =============================================================================

// ListCommissions returns commissions, optionally filtered by influencer or state.
func (h *Handler) ListCommissions(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListCommissions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list commissions", err)
		return
	}

	influencerID := r.URL.Query().Get("influencer_id")
	state := r.URL.Query().Get("state")

	var dtos []CommissionDTO
	for _, c := range records {
		if influencerID != "" && c.InfluencerID != influencerID {
			continue
		}
		if state != "" && string(c.State) != state {
			continue
		}
		dtos = append(dtos, toCommissionDTO(c))
	}
	sort.Slice(dtos, func(i, j int) bool { return dtos[i].CalculatedAt < dtos[j].CalculatedAt })
	writeJSON(w, http.StatusOK, dtos)
}

// GetCommission returns the commission for one order.
func (h *Handler) GetCommission(w http.ResponseWriter, r *http.Request) {
	record, err := h.Store.GetCommission(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		if commission.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Commission not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get commission", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommissionDTO(record))
}

// GetCommissionAudit returns the audit trail for one commission.
func (h *Handler) GetCommissionAudit(w http.ResponseWriter, r *http.Request) {
	record, err := h.Store.GetCommission(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		if commission.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Commission not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get commission", err)
		return
	}

	dtos := make([]AuditEntryDTO, len(record.AuditTrail))
	for i, e := range record.AuditTrail {
		dtos[i] = toAuditEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListAudit returns the global audit log in append order.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Store.ListAudit(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list audit log", err)
		return
	}

	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toAuditEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCommissionSummary aggregates counts and amounts per state.
func (h *Handler) GetCommissionSummary(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListCommissions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list commissions", err)
		return
	}

	var summary CommissionSummaryDTO
	estimated, confirmed, reverted := decimal.Zero, decimal.Zero, decimal.Zero
	for _, c := range records {
		summary.TotalCount++
		switch c.State {
		case commission.StateEstimated:
			summary.EstimatedCount++
			estimated = estimated.Add(c.CommissionAmount)
		case commission.StateConfirmed:
			summary.ConfirmedCount++
			confirmed = confirmed.Add(c.CommissionAmount)
		case commission.StateReverted:
			summary.RevertedCount++
			reverted = reverted.Add(c.CommissionAmount)
		}
	}
	summary.EstimatedAmount = estimated.Round(2).InexactFloat64()
	summary.ConfirmedAmount = confirmed.Round(2).InexactFloat64()
	summary.RevertedAmount = reverted.Round(2).InexactFloat64()
	writeJSON(w, http.StatusOK, summary)
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// ListBalances returns all balances.
func (h *Handler) ListBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.Store.ListBalances(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list balances", err)
		return
	}

	sort.Slice(balances, func(i, j int) bool { return balances[i].InfluencerID < balances[j].InfluencerID })
	dtos := make([]BalanceDTO, len(balances))
	for i, b := range balances {
		dtos[i] = toBalanceDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetBalance returns the balance for one influencer.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	influencerID := chi.URLParam(r, "influencerID")
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		tenantID = h.Engine.Tenant
	}

	balance, err := h.Ledger.Balance(r.Context(), tenantID, influencerID)
	if err != nil {
		if commission.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Balance not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(balance))
}

// =============================================================================
// SETTLEMENT & TIER HANDLERS
// =============================================================================

// RunSettlement executes one settlement pass.
func (h *Handler) RunSettlement(w http.ResponseWriter, r *http.Request) {
	var req RunSettlementRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req) // Empty body selects all defaults
	}

	input := commission.SettlementInput{
		WaitingPeriodDays: req.WaitingPeriodDays,
		TriggeredBy:       req.TriggeredBy,
	}
	if req.EvaluationDate != "" {
		t, err := time.Parse(time.RFC3339, req.EvaluationDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid evaluation_date (use RFC3339)", err)
			return
		}
		input.EvaluationDate = t
	}

	summary, err := h.Settler.Run(r.Context(), input)
	if err != nil {
		if errors.Is(err, commission.ErrSettlementInFlight) {
			writeError(w, http.StatusConflict, "A settlement run is already in progress", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Settlement run failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementSummaryDTO(summary))
}

// EvaluateTiers runs tier evaluation across all assignments.
func (h *Handler) EvaluateTiers(w http.ResponseWriter, r *http.Request) {
	triggeredBy := r.URL.Query().Get("triggered_by")
	if triggeredBy == "" {
		triggeredBy = "manual"
	}

	results, err := h.Tiers.Evaluate(r.Context(), time.Now(), triggeredBy)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Tier evaluation failed", err)
		return
	}

	dtos := make([]TierEvaluationResultDTO, len(results))
	for i, res := range results {
		dtos[i] = toTierEvaluationDTO(res)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListTierHistory returns tier history, optionally filtered.
func (h *Handler) ListTierHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListTierHistory(r.Context(), commission.TierHistoryFilter{
		CampaignID:   r.URL.Query().Get("campaign_id"),
		InfluencerID: r.URL.Query().Get("influencer_id"),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list tier history", err)
		return
	}

	dtos := make([]TierHistoryDTO, len(records))
	for i, rec := range records {
		dtos[i] = toTierHistoryDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RECONCILIATION & ADJUSTMENT HANDLERS
// =============================================================================

// IntakeReconciliation stores a reconciliation report and feeds it to the
// adjustment engine.
func (h *Handler) IntakeReconciliation(w http.ResponseWriter, r *http.Request) {
	var req ReconciliationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	record := commission.ReconciliationRecord{
		ID:                 uuid.NewString(),
		TenantID:           req.TenantID,
		RunDate:            time.Now(),
		Type:               commission.ReconciliationType(req.Type),
		DiscrepanciesFound: req.DiscrepanciesFound,
		ReportURL:          req.ReportURL,
		Summary:            req.Summary,
		Alerts:             req.Alerts,
		CreatedAt:          time.Now(),
	}
	if record.TenantID == "" {
		record.TenantID = h.Engine.Tenant
	}
	if record.Type == "" {
		record.Type = commission.ReconciliationAdhoc
	}
	if req.RunDate != "" {
		t, err := time.Parse(time.RFC3339, req.RunDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid run_date (use RFC3339)", err)
			return
		}
		record.RunDate = t
	}

	ctx := r.Context()
	if err := h.Store.AppendReconciliation(ctx, record); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store reconciliation", err)
		return
	}
	if err := h.Adjustments.OnReconciliation(ctx, record); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to process reconciliation", err)
		return
	}
	writeJSON(w, http.StatusCreated, toReconciliationDTO(record))
}

// ListReconciliations returns stored reconciliation records.
func (h *Handler) ListReconciliations(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListReconciliations(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list reconciliations", err)
		return
	}

	dtos := make([]ReconciliationDTO, len(records))
	for i, rec := range records {
		dtos[i] = toReconciliationDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListAdjustments returns adjustments, optionally filtered.
func (h *Handler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	filter := commission.AdjustmentFilter{
		InfluencerID: r.URL.Query().Get("influencer_id"),
		TenantID:     r.URL.Query().Get("tenant_id"),
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = []commission.AdjustmentStatus{commission.AdjustmentStatus(status)}
	}

	adjustments, err := h.Store.ListAdjustments(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list adjustments", err)
		return
	}

	dtos := make([]AdjustmentDTO, len(adjustments))
	for i, a := range adjustments {
		dtos[i] = toAdjustmentDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAdjustment creates a manual adjustment for an order.
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID string `json:"order_id"`
		Reason  string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.OrderID == "" {
		writeError(w, http.StatusBadRequest, "order_id is required", nil)
		return
	}

	adjustment, err := h.Adjustments.CreateAdjustmentForOrder(r.Context(), commission.CreateAdjustmentInput{
		OrderID: req.OrderID,
		Reason:  req.Reason,
		Type:    commission.AdjustmentManual,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create adjustment", err)
		return
	}
	if adjustment == nil {
		// No deficit, unknown order, or no commission: nothing to adjust.
		writeJSON(w, http.StatusOK, map[string]string{"result": "no-adjustment-needed"})
		return
	}
	writeJSON(w, http.StatusCreated, toAdjustmentDTO(*adjustment))
}

// ResolveAdjustment resolves a pending adjustment.
func (h *Handler) ResolveAdjustment(w http.ResponseWriter, r *http.Request) {
	var req ResolveAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	resolutionType := commission.AdjustmentResolutionType(req.ResolutionType)
	if resolutionType == "" {
		resolutionType = commission.ResolutionWrittenOff
	}

	adjustment, err := h.Adjustments.Resolve(r.Context(), chi.URLParam(r, "id"), commission.ResolveInput{
		ResolvedBy:     req.ResolvedBy,
		ResolutionType: resolutionType,
		PaymentID:      req.PaymentID,
		Notes:          req.Notes,
	})
	if err != nil {
		if commission.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Adjustment not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to resolve adjustment", err)
		return
	}
	writeJSON(w, http.StatusOK, toAdjustmentDTO(adjustment))
}

// =============================================================================
// WITHDRAWAL HANDLERS
// =============================================================================

// CreateWithdrawal opens a withdrawal request.
func (h *Handler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req CreateWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	request, err := h.Withdrawals.Request(r.Context(), withdrawal.RequestInput{
		InfluencerID: req.InfluencerID,
		BrandID:      req.BrandID,
		Amount:       decimal.NewFromFloat(req.Amount),
		Notes:        req.Notes,
		InitiatedBy:  req.InitiatedBy,
	})
	if err != nil {
		writeWithdrawalError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWithdrawalRequestDTO(request))
}

// ListWithdrawals returns withdrawal requests, optionally filtered.
func (h *Handler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	filter := withdrawal.RequestFilter{
		InfluencerID: r.URL.Query().Get("influencer_id"),
		BrandID:      r.URL.Query().Get("brand_id"),
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = []withdrawal.Status{withdrawal.Status(status)}
	}

	requests, err := h.Payouts.ListRequests(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list withdrawals", err)
		return
	}

	dtos := make([]WithdrawalRequestDTO, len(requests))
	for i, req := range requests {
		dtos[i] = toWithdrawalRequestDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetWithdrawal returns one withdrawal request.
func (h *Handler) GetWithdrawal(w http.ResponseWriter, r *http.Request) {
	request, err := h.Payouts.GetRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, withdrawal.ErrRequestNotFound) {
			writeError(w, http.StatusNotFound, "Withdrawal request not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get withdrawal", err)
		return
	}
	writeJSON(w, http.StatusOK, toWithdrawalRequestDTO(request))
}

// DecideWithdrawal approves or rejects a pending request.
func (h *Handler) DecideWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req DecideWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var status withdrawal.Status
	switch req.Decision {
	case "approve":
		status = withdrawal.StatusApproved
	case "reject":
		status = withdrawal.StatusRejected
	default:
		writeError(w, http.StatusBadRequest, "decision must be 'approve' or 'reject'", nil)
		return
	}

	request, err := h.Withdrawals.Decide(r.Context(), chi.URLParam(r, "id"), withdrawal.DecideInput{
		Status:           status,
		ProcessedBy:      req.ProcessedBy,
		Notes:            req.Notes,
		PaymentReference: req.PaymentReference,
	})
	if err != nil {
		writeWithdrawalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWithdrawalRequestDTO(request))
}

// RecordWithdrawalPayment records a payment against a request.
func (h *Handler) RecordWithdrawalPayment(w http.ResponseWriter, r *http.Request) {
	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	paymentDate := time.Now()
	if req.PaymentDate != "" {
		t, err := time.Parse(time.RFC3339, req.PaymentDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid payment_date (use RFC3339)", err)
			return
		}
		paymentDate = t
	}

	payment, err := h.Withdrawals.RecordPayment(r.Context(), withdrawal.PaymentInput{
		WithdrawalID:     chi.URLParam(r, "id"),
		Amount:           decimal.NewFromFloat(req.Amount),
		PaymentDate:      paymentDate,
		Method:           req.Method,
		Reference:        req.Reference,
		TaxWithheld:      floatToDecimalPtr(req.TaxWithheld),
		ProcessedBy:      req.ProcessedBy,
		ReconciliationID: req.ReconciliationID,
		AdjustmentIDs:    req.AdjustmentIDs,
	})
	if err != nil {
		writeWithdrawalError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentDTO(payment))
}

// ListPayments returns recorded payments.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.Payouts.ListPayments(r.Context(), r.URL.Query().Get("influencer_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}

	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// REGISTRY HANDLERS
// =============================================================================

// ListCampaigns returns all campaigns.
func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns := h.Registry.ListCampaigns()
	sort.Slice(campaigns, func(i, j int) bool { return campaigns[i].Name < campaigns[j].Name })

	dtos := make([]CampaignDTO, len(campaigns))
	for i, c := range campaigns {
		dtos[i] = toCampaignDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveCampaign creates or updates a campaign.
func (h *Handler) SaveCampaign(w http.ResponseWriter, r *http.Request) {
	var req CampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	campaign := commission.CampaignConfig{
		ID:                       req.ID,
		TenantID:                 req.TenantID,
		BrandID:                  req.BrandID,
		BrandName:                req.BrandName,
		Name:                     req.Name,
		Status:                   req.Status,
		CommissionBase:           decimal.NewFromFloat(req.CommissionBase),
		CommissionBasis:          commission.CommissionBasis(req.CommissionBasis),
		EligibleScopeType:        commission.ScopeType(req.EligibleScopeType),
		EligibleScopeValues:      req.EligibleScopeValues,
		TierEvaluationPeriodDays: req.TierEvaluationPeriodDays,
		Tiers:                    fromTierDTOs(req.Tiers),
	}
	if campaign.TenantID == "" {
		campaign.TenantID = h.Engine.Tenant
	}
	if campaign.Status == "" {
		campaign.Status = "active"
	}
	if campaign.CommissionBasis == "" {
		campaign.CommissionBasis = commission.BasisPreTax
	}
	if req.StartDate != "" {
		t, err := time.Parse(time.RFC3339, req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start_date (use RFC3339)", err)
			return
		}
		campaign.StartDate = t
	}

	saved := h.Registry.SaveCampaign(campaign)
	writeJSON(w, http.StatusCreated, toCampaignDTO(saved))
}

// ListInfluencers returns all influencers.
func (h *Handler) ListInfluencers(w http.ResponseWriter, r *http.Request) {
	influencers := h.Registry.ListInfluencers()
	sort.Slice(influencers, func(i, j int) bool { return influencers[i].Name < influencers[j].Name })

	dtos := make([]InfluencerDTO, len(influencers))
	for i, inf := range influencers {
		dtos[i] = toInfluencerDTO(inf)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveInfluencer creates or updates an influencer.
func (h *Handler) SaveInfluencer(w http.ResponseWriter, r *http.Request) {
	var req InfluencerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	saved := h.Registry.SaveInfluencer(commission.Influencer{
		ID:     req.ID,
		Name:   req.Name,
		Email:  req.Email,
		Status: commission.InfluencerStatus(req.Status),
	})
	writeJSON(w, http.StatusCreated, toInfluencerDTO(saved))
}

// UpdateInfluencerStatus moves an influencer through the approval flow.
func (h *Handler) UpdateInfluencerStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	switch commission.InfluencerStatus(req.Status) {
	case commission.InfluencerPending, commission.InfluencerApproved, commission.InfluencerRejected:
	default:
		writeError(w, http.StatusBadRequest, "status must be pending, approved or rejected", nil)
		return
	}

	influencer, err := h.Registry.UpdateInfluencerStatus(chi.URLParam(r, "id"), commission.InfluencerStatus(req.Status))
	if err != nil {
		writeError(w, http.StatusNotFound, "Influencer not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toInfluencerDTO(influencer))
}

// AssignInfluencer links an influencer to a campaign and seeds their balance
// and tier assignment.
func (h *Handler) AssignInfluencer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CampaignID string `json:"campaign_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	influencerID := chi.URLParam(r, "id")
	if err := h.Registry.AssignInfluencerToCampaign(r.Context(), influencerID, req.CampaignID); err != nil {
		switch {
		case errors.Is(err, registry.ErrInfluencerNotFound):
			writeError(w, http.StatusNotFound, "Influencer not found", nil)
		case errors.Is(err, registry.ErrCampaignNotFound):
			writeError(w, http.StatusNotFound, "Campaign not found", nil)
		default:
			writeError(w, http.StatusInternalServerError, "Failed to assign influencer", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "assigned"})
}

// ListCodes returns all discount codes.
func (h *Handler) ListCodes(w http.ResponseWriter, r *http.Request) {
	codes := h.Registry.ListCodes()
	sort.Slice(codes, func(i, j int) bool { return codes[i].Code < codes[j].Code })

	dtos := make([]DiscountCodeDTO, len(codes))
	for i, c := range codes {
		dtos[i] = toDiscountCodeDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GenerateCode mints a coupon code for an influencer on a campaign.
func (h *Handler) GenerateCode(w http.ResponseWriter, r *http.Request) {
	var req GenerateCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Prefix == "" || req.CampaignID == "" || req.InfluencerID == "" {
		writeError(w, http.StatusBadRequest, "prefix, campaign_id and influencer_id are required", nil)
		return
	}

	code, err := h.Registry.GenerateCode(req.Prefix, req.CampaignID, req.InfluencerID)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrCampaignNotFound), errors.Is(err, registry.ErrInfluencerNotFound):
			writeError(w, http.StatusNotFound, err.Error(), nil)
		case errors.Is(err, registry.ErrCodeExists):
			writeError(w, http.StatusConflict, "Code already exists", nil)
		default:
			writeError(w, http.StatusInternalServerError, "Failed to generate code", err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, toDiscountCodeDTO(code))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := errorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeWithdrawalError maps workflow errors to HTTP statuses.
func writeWithdrawalError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, withdrawal.ErrRequestNotFound):
		writeError(w, http.StatusNotFound, "Withdrawal request not found", nil)
	case errors.Is(err, withdrawal.ErrInfluencerNotFound):
		writeError(w, http.StatusNotFound, "Influencer not found", nil)
	case errors.Is(err, withdrawal.ErrInfluencerNotApproved),
		errors.Is(err, withdrawal.ErrNoCampaignForBrand),
		errors.Is(err, withdrawal.ErrBelowBrandMinimum),
		errors.Is(err, withdrawal.ErrExceedsAvailable),
		errors.Is(err, withdrawal.ErrRequestRejected),
		errors.Is(err, withdrawal.ErrRequestNotApproved),
		errors.Is(err, withdrawal.ErrAmountMismatch):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), nil)
	case errors.Is(err, withdrawal.ErrAmountNotPositive):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "Withdrawal operation failed", err)
	}
}

func fromOrderItemDTOs(items []OrderItemDTO) []commission.OrderItem {
	if len(items) == 0 {
		return nil
	}
	result := make([]commission.OrderItem, len(items))
	for i, item := range items {
		result[i] = commission.OrderItem{
			SKUID:        item.SKUID,
			SKURef:       item.SKURef,
			Quantity:     item.Quantity,
			Price:        decimal.NewFromFloat(item.Price),
			Discount:     decimal.NewFromFloat(item.Discount),
			TaxAmount:    decimal.NewFromFloat(item.TaxAmount),
			CategoryID:   item.CategoryID,
			CategoryName: item.CategoryName,
		}
	}
	return result
}

func floatToDecimalPtr(v *float64) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d := decimal.NewFromFloat(*v)
	return &d
}
