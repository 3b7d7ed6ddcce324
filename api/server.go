/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for dashboards

ROUTE GROUPS:
  /api/webhooks/*         Order event intake
  /api/orders/*           Order queries
  /api/commissions/*      Commission records, summary, audit
  /api/balances/*         Influencer balances
  /api/settlement/*       Batch settlement
  /api/tiers/*            Tier evaluation and history
  /api/reconciliations/*  Reconciliation intake and log
  /api/adjustments/*      Withdrawal adjustments
  /api/withdrawals/*      Withdrawal requests and payments
  /api/campaigns/*        Campaign registry
  /api/influencers/*      Influencer registry
  /api/codes/*            Discount codes

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Webhook intake
		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/orders", h.RegisterOrderEvent)
		})

		// Order routes
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Get("/{id}", h.GetOrder)
		})

		// Commission routes
		r.Route("/commissions", func(r chi.Router) {
			r.Get("/", h.ListCommissions)
			r.Get("/summary", h.GetCommissionSummary)
			r.Get("/{orderID}", h.GetCommission)
			r.Get("/{orderID}/audit", h.GetCommissionAudit)
		})
		r.Get("/audit", h.ListAudit)

		// Balance routes
		r.Route("/balances", func(r chi.Router) {
			r.Get("/", h.ListBalances)
			r.Get("/{influencerID}", h.GetBalance)
		})

		// Settlement routes
		r.Route("/settlement", func(r chi.Router) {
			r.Post("/run", h.RunSettlement)
		})

		// Tier routes
		r.Route("/tiers", func(r chi.Router) {
			r.Post("/evaluate", h.EvaluateTiers)
			r.Get("/history", h.ListTierHistory)
		})

		// Reconciliation routes
		r.Route("/reconciliations", func(r chi.Router) {
			r.Get("/", h.ListReconciliations)
			r.Post("/", h.IntakeReconciliation)
		})

		// Adjustment routes
		r.Route("/adjustments", func(r chi.Router) {
			r.Get("/", h.ListAdjustments)
			r.Post("/", h.CreateAdjustment)
			r.Post("/{id}/resolve", h.ResolveAdjustment)
		})

		// Withdrawal routes
		r.Route("/withdrawals", func(r chi.Router) {
			r.Get("/", h.ListWithdrawals)
			r.Post("/", h.CreateWithdrawal)
			r.Get("/{id}", h.GetWithdrawal)
			r.Post("/{id}/decision", h.DecideWithdrawal)
			r.Post("/{id}/payments", h.RecordWithdrawalPayment)
		})
		r.Get("/payments", h.ListPayments)

		// Registry routes
		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", h.ListCampaigns)
			r.Post("/", h.SaveCampaign)
		})
		r.Route("/influencers", func(r chi.Router) {
			r.Get("/", h.ListInfluencers)
			r.Post("/", h.SaveInfluencer)
			r.Post("/{id}/status", h.UpdateInfluencerStatus)
			r.Post("/{id}/assign", h.AssignInfluencer)
		})
		r.Route("/codes", func(r chi.Router) {
			r.Get("/", h.ListCodes)
			r.Post("/generate", h.GenerateCode)
		})
	})

	return r
}
