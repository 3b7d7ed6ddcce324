/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Warp Commission Engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Wire the commission engine (ledger, tiers, settlement, adjustments)
  4. Configure HTTP router and scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port              HTTP server port (default: 8080)
  -db                SQLite database path (default: commissions.db)
                     Use ":memory:" for in-memory database
  -settle-interval   How often the scheduler runs settlement (default: 1h)
  -waiting-days      Settlement waiting period in days (default: 15)
  -campaigns         Path to a JSON file of campaign definitions to load
  -seed              Load demo data on startup (default: false)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the settlement scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/commissions.db"

  # Run with in-memory database and demo data
  ./server -db=":memory:" -seed

  # Settle every 10 minutes with a 7-day waiting period
  ./server -settle-interval=10m -waiting-days=7

ENVIRONMENT:
  No environment variables currently. All config via flags.
  Future: DATABASE_URL, PORT, LOG_LEVEL

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/commission-engine/api"
	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/factory"
	"github.com/warp/commission-engine/registry"
	"github.com/warp/commission-engine/store/sqlite"
	"github.com/warp/commission-engine/withdrawal"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "commissions.db", "SQLite database path")
	settleInterval := flag.Duration("settle-interval", time.Hour, "Settlement scheduler interval")
	waitingDays := flag.Int("waiting-days", commission.DefaultWaitingPeriodDays, "Settlement waiting period in days")
	campaignsPath := flag.String("campaigns", "", "Path to a JSON file of campaign definitions")
	seed := flag.Bool("seed", false, "Load demo data on startup")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Wire the engine. The tier tracker needs the registry as its campaign
	// directory, so the registry binds it after construction.
	ledger := commission.NewBalanceLedger(store)
	reg := registry.New(ledger, nil)
	tiers := commission.NewTierTracker(store, reg)
	reg.BindTiers(tiers)
	engine := commission.NewEngine(store, reg, tiers, ledger)
	settler := commission.NewSettler(store, engine)
	adjustments := commission.NewAdjustmentEngine(store, ledger, reg)

	payouts := withdrawal.NewMemory()
	workflow := withdrawal.NewWorkflow(payouts, ledger, adjustments, reg)

	// Initialize handler
	handler := api.NewHandler(store, engine, settler, tiers, ledger, adjustments, reg, workflow, payouts)

	if *campaignsPath != "" {
		data, err := os.ReadFile(*campaignsPath)
		if err != nil {
			log.Fatalf("Failed to read campaigns file: %v", err)
		}
		campaigns, err := factory.NewCampaignFactory().ParseCampaigns(string(data))
		if err != nil {
			log.Fatalf("Failed to parse campaigns file: %v", err)
		}
		for _, campaign := range campaigns {
			reg.SaveCampaign(campaign)
		}
		log.Printf("Loaded %d campaigns from %s", len(campaigns), *campaignsPath)
	}

	if *seed {
		if err := api.SeedDemoData(context.Background(), reg, engine); err != nil {
			log.Printf("Warning: Failed to seed demo data: %v", err)
		}
	}

	// Scheduler
	scheduler := api.NewSettlementScheduler(settler, tiers)
	scheduler.CheckInterval = *settleInterval
	scheduler.WaitingPeriodDays = *waitingDays
	scheduler.Start()

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
