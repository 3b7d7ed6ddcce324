/*
scheduler.go - Automated settlement and tier evaluation scheduler

PURPOSE:
  Periodically runs batch settlement (confirming commissions whose waiting
  period has elapsed) and tier evaluation (adjusting commission rates from
  trailing sales volume).

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Settlement is idempotent: commissions already settled are skipped
  - An overlapping manual run is tolerated: the settler refuses a second
    in-flight pass and the scheduler simply retries next tick
  - Tier evaluation runs after settlement so newly confirmed sales count
    toward the trailing window

CONFIGURATION:
  - CheckInterval: How often to run (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewSettlementScheduler(settler, tiers)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunSettlement endpoint (manual settlement)
  - commission/settlement.go: Settler
  - commission/tier.go: TierTracker
*/
package api

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/warp/commission-engine/commission"
)

// SettlementScheduler handles automated settlement and tier evaluation.
type SettlementScheduler struct {
	Settler       *commission.Settler
	Tiers         *commission.TierTracker
	CheckInterval time.Duration
	Enabled       bool

	// WaitingPeriodDays overrides the settlement default when positive.
	WaitingPeriodDays int

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSettlementScheduler creates a new scheduler.
func NewSettlementScheduler(settler *commission.Settler, tiers *commission.TierTracker) *SettlementScheduler {
	return &SettlementScheduler{
		Settler:       settler,
		Tiers:         tiers,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (ss *SettlementScheduler) Start() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if !ss.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ss.ticker = time.NewTicker(ss.CheckInterval)
	ss.wg.Add(1)

	go ss.run()

	log.Printf("[Scheduler] Started with check interval: %v", ss.CheckInterval)
}

// Stop stops the scheduler.
func (ss *SettlementScheduler) Stop() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.ticker != nil {
		ss.ticker.Stop()
		close(ss.stop)
		ss.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (ss *SettlementScheduler) run() {
	defer ss.wg.Done()

	// Run immediately on start
	ss.checkAndProcess()

	for {
		select {
		case <-ss.ticker.C:
			ss.checkAndProcess()
		case <-ss.stop:
			return
		}
	}
}

func (ss *SettlementScheduler) checkAndProcess() {
	ctx := context.Background()
	now := time.Now()

	log.Printf("[Scheduler] Running settlement at %v", now)

	summary, err := ss.Settler.Run(ctx, commission.SettlementInput{
		EvaluationDate:    now,
		WaitingPeriodDays: ss.WaitingPeriodDays,
		TriggeredBy:       "scheduler",
	})
	if err != nil {
		if errors.Is(err, commission.ErrSettlementInFlight) {
			log.Println("[Scheduler] Settlement already running, will retry next tick")
			return
		}
		log.Printf("[Scheduler] Settlement error: %v", err)
		return
	}

	if len(summary.Confirmed) > 0 || len(summary.Reverted) > 0 {
		log.Printf("[Scheduler] Settlement completed: %d confirmed, %d reverted, %d still pending",
			len(summary.Confirmed), len(summary.Reverted), len(summary.Pending))
	}

	results, err := ss.Tiers.Evaluate(ctx, now, "scheduler")
	if err != nil {
		log.Printf("[Scheduler] Tier evaluation error: %v", err)
		return
	}

	changed := 0
	for _, res := range results {
		if res.Changed {
			changed++
		}
	}
	if changed > 0 {
		log.Printf("[Scheduler] Tier evaluation completed: %d of %d assignments changed tier",
			changed, len(results))
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (ss *SettlementScheduler) RunNow() {
	ss.checkAndProcess()
}

// GetNextRunTime returns when the next scheduled check will occur.
func (ss *SettlementScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(ss.CheckInterval)
}
