/*
Package sqlite provides a SQLite-backed implementation of commission.Store.

PURPOSE:
  Persists every entity the commission engine owns: orders, commissions with
  their audit log, influencer balances, tier assignments with their history,
  withdrawal adjustments and reconciliation records. In production, the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  The audit, tier history and reconciliation tables are insert-only:
  - No UPDATE statements on commission_audit
  - No UPDATE statements on tier_history
  - No UPDATE statements on reconciliations
  Append order is preserved by the implicit rowid.

KEY TABLES:
  orders:            Latest known state of each commerce order (items as JSON)
  commissions:       One row per order id, metadata and embedded trail as JSON
  commission_audit:  Global append-only audit log
  balances:          One row per (tenant, influencer)
  tier_assignments:  Current tier per (campaign, influencer)
  tier_history:      Append-only tier change log
  adjustments:       Withdrawal adjustments; partial unique index enforces at
                     most one pending adjustment per order
  reconciliations:   Append-only reconciliation run records

DECIMALS:
  Monetary values are stored as TEXT via decimal.String() and parsed back
  with decimal.NewFromString. No floats touch the database.

CONCURRENCY:
  Uses sync.RWMutex for connection-level safety. Per-key write serialization
  is owned by the engine and ledger, not the store.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/commissions.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - commission/store.go: Interface definitions
  - commission/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/commission"
)

// Store implements commission.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ commission.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Orders (latest state, upserted by id)
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		status TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		currency TEXT,
		shipping_amount TEXT NOT NULL,
		tax_amount TEXT NOT NULL,
		eligible_amount TEXT NOT NULL,
		discount_code_id TEXT,
		influencer_id TEXT,
		campaign_id TEXT,
		items_json TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_orders_influencer
		ON orders(influencer_id);
	CREATE INDEX IF NOT EXISTS idx_orders_status
		ON orders(status);

	-- Commissions (one per order id)
	CREATE TABLE IF NOT EXISTS commissions (
		order_id TEXT PRIMARY KEY,
		id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		influencer_id TEXT NOT NULL,
		campaign_id TEXT NOT NULL,
		state TEXT NOT NULL,
		gross_amount TEXT NOT NULL,
		eligible_amount TEXT NOT NULL,
		commission_rate TEXT NOT NULL,
		commission_amount TEXT NOT NULL,
		tier_level INTEGER NOT NULL DEFAULT 0,
		tier_name TEXT,
		calculated_at TEXT NOT NULL,
		confirmed_at TEXT,
		reverted_at TEXT,
		reason TEXT,
		metadata_json TEXT,
		audit_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_commissions_influencer
		ON commissions(influencer_id);
	CREATE INDEX IF NOT EXISTS idx_commissions_state
		ON commissions(state);

	-- Global audit log (append-only, rowid preserves append order)
	CREATE TABLE IF NOT EXISTS commission_audit (
		id TEXT PRIMARY KEY,
		commission_id TEXT NOT NULL,
		previous_state TEXT,
		next_state TEXT NOT NULL,
		changed_at TEXT NOT NULL,
		triggered_by TEXT,
		context TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_commission
		ON commission_audit(commission_id);

	-- Balances (one per tenant+influencer)
	CREATE TABLE IF NOT EXISTS balances (
		tenant_id TEXT NOT NULL,
		influencer_id TEXT NOT NULL,
		estimated_amount TEXT NOT NULL,
		confirmed_amount TEXT NOT NULL,
		reverted_amount TEXT NOT NULL,
		pending_withdrawal_amount TEXT NOT NULL,
		withdrawn_amount TEXT NOT NULL,
		adjustment_amount TEXT NOT NULL,
		available_for_withdrawal TEXT NOT NULL,
		last_calculated_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, influencer_id)
	);

	-- Tier assignments (one per campaign+influencer)
	CREATE TABLE IF NOT EXISTS tier_assignments (
		campaign_id TEXT NOT NULL,
		influencer_id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		evaluation_period_days INTEGER NOT NULL,
		tier_name TEXT,
		tier_level INTEGER NOT NULL DEFAULT 0,
		tier_percent TEXT NOT NULL,
		tier_threshold TEXT NOT NULL,
		current_window_start TEXT NOT NULL,
		last_evaluation_at TEXT NOT NULL,
		PRIMARY KEY (campaign_id, influencer_id)
	);

	-- Tier history (append-only, rowid preserves append order)
	CREATE TABLE IF NOT EXISTS tier_history (
		id TEXT PRIMARY KEY,
		influencer_id TEXT NOT NULL,
		campaign_id TEXT NOT NULL,
		tier_level INTEGER NOT NULL DEFAULT 0,
		tier_name TEXT,
		commission_rate TEXT NOT NULL,
		effective_from TEXT NOT NULL,
		effective_to TEXT,
		reason TEXT,
		triggered_by TEXT,
		window_start TEXT NOT NULL,
		window_end TEXT NOT NULL,
		sales_volume TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tier_history_pair
		ON tier_history(campaign_id, influencer_id);

	-- Adjustments
	CREATE TABLE IF NOT EXISTS adjustments (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		influencer_id TEXT NOT NULL,
		campaign_id TEXT,
		brand_id TEXT,
		order_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT,
		reconciliation_id TEXT,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		resolved_at TEXT,
		resolved_by TEXT,
		resolution_type TEXT,
		resolved_by_payment_id TEXT
	);

	-- CRITICAL: at most one pending adjustment per order
	CREATE UNIQUE INDEX IF NOT EXISTS idx_adjustments_pending_order
		ON adjustments(order_id) WHERE status = 'pending';
	CREATE INDEX IF NOT EXISTS idx_adjustments_influencer
		ON adjustments(influencer_id, tenant_id);

	-- Reconciliations (append-only)
	CREATE TABLE IF NOT EXISTS reconciliations (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		run_date TEXT NOT NULL,
		type TEXT NOT NULL,
		discrepancies_found INTEGER NOT NULL DEFAULT 0,
		report_url TEXT,
		summary_json TEXT,
		alerts_json TEXT,
		created_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ORDER STORE (commission.OrderStore interface)
// =============================================================================

// SaveOrder upserts an order by id.
func (s *Store) SaveOrder(ctx context.Context, order commission.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	itemsJSON, _ := json.Marshal(order.Items)

	query := `
		INSERT INTO orders
		(id, tenant_id, status, total_amount, currency, shipping_amount, tax_amount,
		 eligible_amount, discount_code_id, influencer_id, campaign_id, items_json,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			total_amount = excluded.total_amount,
			currency = excluded.currency,
			shipping_amount = excluded.shipping_amount,
			tax_amount = excluded.tax_amount,
			eligible_amount = excluded.eligible_amount,
			discount_code_id = excluded.discount_code_id,
			influencer_id = excluded.influencer_id,
			campaign_id = excluded.campaign_id,
			items_json = excluded.items_json,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		order.ID,
		order.TenantID,
		string(order.Status),
		order.TotalAmount.String(),
		order.Currency,
		order.ShippingAmount.String(),
		order.TaxAmount.String(),
		order.EligibleAmount.String(),
		order.DiscountCodeID,
		order.InfluencerID,
		order.CampaignID,
		string(itemsJSON),
		order.CreatedAt.Format(time.RFC3339),
		order.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

// GetOrder returns an order by id.
func (s *Store) GetOrder(ctx context.Context, id string) (commission.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, orderSelect+" WHERE id = ?", id)
	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return commission.Order{}, commission.ErrOrderNotFound
	}
	return order, err
}

// ListOrders returns all orders.
func (s *Store) ListOrders(ctx context.Context) ([]commission.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, orderSelect+" ORDER BY created_at ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []commission.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

const orderSelect = `
	SELECT id, tenant_id, status, total_amount, currency, shipping_amount, tax_amount,
	       eligible_amount, discount_code_id, influencer_id, campaign_id, items_json,
	       created_at, updated_at
	FROM orders`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (commission.Order, error) {
	var (
		order                                                 commission.Order
		status                                                string
		totalAmount, shippingAmount, taxAmount, eligibleAmount string
		currency, discountCodeID, influencerID, campaignID    sql.NullString
		itemsJSON                                             sql.NullString
		createdAt, updatedAt                                  string
	)

	err := row.Scan(
		&order.ID, &order.TenantID, &status, &totalAmount, &currency,
		&shippingAmount, &taxAmount, &eligibleAmount,
		&discountCodeID, &influencerID, &campaignID, &itemsJSON,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return order, err
	}

	order.Status = commission.OrderStatus(status)
	order.TotalAmount = parseDecimal(totalAmount)
	order.Currency = currency.String
	order.ShippingAmount = parseDecimal(shippingAmount)
	order.TaxAmount = parseDecimal(taxAmount)
	order.EligibleAmount = parseDecimal(eligibleAmount)
	order.DiscountCodeID = discountCodeID.String
	order.InfluencerID = influencerID.String
	order.CampaignID = campaignID.String
	order.CreatedAt = parseTime(createdAt)
	order.UpdatedAt = parseTime(updatedAt)

	if itemsJSON.Valid && itemsJSON.String != "" {
		json.Unmarshal([]byte(itemsJSON.String), &order.Items)
	}
	return order, nil
}

// =============================================================================
// COMMISSION STORE (commission.CommissionStore interface)
// =============================================================================

// SaveCommission upserts the commission for its order id.
func (s *Store) SaveCommission(ctx context.Context, record commission.CommissionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	metadataJSON, _ := json.Marshal(record.Metadata)
	auditJSON, _ := json.Marshal(record.AuditTrail)

	query := `
		INSERT INTO commissions
		(order_id, id, tenant_id, influencer_id, campaign_id, state,
		 gross_amount, eligible_amount, commission_rate, commission_amount,
		 tier_level, tier_name, calculated_at, confirmed_at, reverted_at,
		 reason, metadata_json, audit_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(order_id) DO UPDATE SET
			state = excluded.state,
			gross_amount = excluded.gross_amount,
			eligible_amount = excluded.eligible_amount,
			commission_rate = excluded.commission_rate,
			commission_amount = excluded.commission_amount,
			tier_level = excluded.tier_level,
			tier_name = excluded.tier_name,
			calculated_at = excluded.calculated_at,
			confirmed_at = excluded.confirmed_at,
			reverted_at = excluded.reverted_at,
			reason = excluded.reason,
			metadata_json = excluded.metadata_json,
			audit_json = excluded.audit_json
	`

	_, err := s.db.ExecContext(ctx, query,
		record.OrderID,
		record.ID,
		record.TenantID,
		record.InfluencerID,
		record.CampaignID,
		string(record.State),
		record.GrossAmount.String(),
		record.EligibleAmount.String(),
		record.CommissionRate.String(),
		record.CommissionAmount.String(),
		record.TierLevel,
		record.TierName,
		record.CalculatedAt.Format(time.RFC3339),
		nullTime(record.ConfirmedAt),
		nullTime(record.RevertedAt),
		record.Reason,
		string(metadataJSON),
		string(auditJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save commission: %w", err)
	}
	return nil
}

// GetCommission returns the commission for an order id.
func (s *Store) GetCommission(ctx context.Context, orderID string) (commission.CommissionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, commissionSelect+" WHERE order_id = ?", orderID)
	record, err := scanCommission(row)
	if err == sql.ErrNoRows {
		return commission.CommissionRecord{}, commission.ErrCommissionNotFound
	}
	return record, err
}

// ListCommissions returns all commissions.
func (s *Store) ListCommissions(ctx context.Context) ([]commission.CommissionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, commissionSelect+" ORDER BY calculated_at ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []commission.CommissionRecord
	for rows.Next() {
		record, err := scanCommission(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

const commissionSelect = `
	SELECT order_id, id, tenant_id, influencer_id, campaign_id, state,
	       gross_amount, eligible_amount, commission_rate, commission_amount,
	       tier_level, tier_name, calculated_at, confirmed_at, reverted_at,
	       reason, metadata_json, audit_json
	FROM commissions`

func scanCommission(row rowScanner) (commission.CommissionRecord, error) {
	var (
		record                                   commission.CommissionRecord
		state                                    string
		gross, eligible, rate, amount            string
		tierName, reason                         sql.NullString
		calculatedAt                             string
		confirmedAt, revertedAt                  sql.NullString
		metadataJSON, auditJSON                  sql.NullString
	)

	err := row.Scan(
		&record.OrderID, &record.ID, &record.TenantID, &record.InfluencerID,
		&record.CampaignID, &state, &gross, &eligible, &rate, &amount,
		&record.TierLevel, &tierName, &calculatedAt, &confirmedAt, &revertedAt,
		&reason, &metadataJSON, &auditJSON,
	)
	if err != nil {
		return record, err
	}

	record.State = commission.CommissionState(state)
	record.GrossAmount = parseDecimal(gross)
	record.EligibleAmount = parseDecimal(eligible)
	record.CommissionRate = parseDecimal(rate)
	record.CommissionAmount = parseDecimal(amount)
	record.TierName = tierName.String
	record.Reason = reason.String
	record.CalculatedAt = parseTime(calculatedAt)
	record.ConfirmedAt = parseNullTime(confirmedAt)
	record.RevertedAt = parseNullTime(revertedAt)

	if metadataJSON.Valid && metadataJSON.String != "" {
		json.Unmarshal([]byte(metadataJSON.String), &record.Metadata)
	}
	if auditJSON.Valid && auditJSON.String != "" {
		json.Unmarshal([]byte(auditJSON.String), &record.AuditTrail)
	}
	return record, nil
}

// AppendAudit appends one entry to the global audit log.
func (s *Store) AppendAudit(ctx context.Context, entry commission.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var previous *string
	if entry.PreviousState != nil {
		v := string(*entry.PreviousState)
		previous = &v
	}

	query := `
		INSERT INTO commission_audit
		(id, commission_id, previous_state, next_state, changed_at, triggered_by, context)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.CommissionID,
		previous,
		string(entry.NextState),
		entry.ChangedAt.Format(time.RFC3339),
		entry.TriggeredBy,
		entry.Context,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ListAudit returns the global audit log in append order.
func (s *Store) ListAudit(ctx context.Context) ([]commission.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, commission_id, previous_state, next_state, changed_at, triggered_by, context
		FROM commission_audit
		ORDER BY rowid ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []commission.AuditEntry
	for rows.Next() {
		var (
			entry                 commission.AuditEntry
			previous              sql.NullString
			nextState, changedAt  string
			triggeredBy, auditCtx sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.CommissionID, &previous, &nextState,
			&changedAt, &triggeredBy, &auditCtx); err != nil {
			return nil, err
		}

		if previous.Valid {
			state := commission.CommissionState(previous.String)
			entry.PreviousState = &state
		}
		entry.NextState = commission.CommissionState(nextState)
		entry.ChangedAt = parseTime(changedAt)
		entry.TriggeredBy = triggeredBy.String
		entry.Context = auditCtx.String
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// =============================================================================
// BALANCE STORE (commission.BalanceStore interface)
// =============================================================================

// SaveBalance upserts a balance.
func (s *Store) SaveBalance(ctx context.Context, balance commission.InfluencerBalance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO balances
		(tenant_id, influencer_id, estimated_amount, confirmed_amount, reverted_amount,
		 pending_withdrawal_amount, withdrawn_amount, adjustment_amount,
		 available_for_withdrawal, last_calculated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, influencer_id) DO UPDATE SET
			estimated_amount = excluded.estimated_amount,
			confirmed_amount = excluded.confirmed_amount,
			reverted_amount = excluded.reverted_amount,
			pending_withdrawal_amount = excluded.pending_withdrawal_amount,
			withdrawn_amount = excluded.withdrawn_amount,
			adjustment_amount = excluded.adjustment_amount,
			available_for_withdrawal = excluded.available_for_withdrawal,
			last_calculated_at = excluded.last_calculated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		balance.TenantID,
		balance.InfluencerID,
		balance.EstimatedAmount.String(),
		balance.ConfirmedAmount.String(),
		balance.RevertedAmount.String(),
		balance.PendingWithdrawalAmount.String(),
		balance.WithdrawnAmount.String(),
		balance.AdjustmentAmount.String(),
		balance.AvailableForWithdrawal.String(),
		balance.LastCalculatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}
	return nil
}

// GetBalance returns the balance for a (tenant, influencer) pair.
func (s *Store) GetBalance(ctx context.Context, tenantID, influencerID string) (commission.InfluencerBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, balanceSelect+" WHERE tenant_id = ? AND influencer_id = ?",
		tenantID, influencerID)
	balance, err := scanBalance(row)
	if err == sql.ErrNoRows {
		return commission.InfluencerBalance{}, commission.ErrBalanceNotFound
	}
	return balance, err
}

// ListBalances returns all balances.
func (s *Store) ListBalances(ctx context.Context) ([]commission.InfluencerBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, balanceSelect+" ORDER BY influencer_id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []commission.InfluencerBalance
	for rows.Next() {
		balance, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		balances = append(balances, balance)
	}
	return balances, rows.Err()
}

const balanceSelect = `
	SELECT tenant_id, influencer_id, estimated_amount, confirmed_amount, reverted_amount,
	       pending_withdrawal_amount, withdrawn_amount, adjustment_amount,
	       available_for_withdrawal, last_calculated_at
	FROM balances`

func scanBalance(row rowScanner) (commission.InfluencerBalance, error) {
	var (
		balance                                             commission.InfluencerBalance
		estimated, confirmed, reverted, pending, withdrawn  string
		adjustment, available                               string
		lastCalculatedAt                                    string
	)

	err := row.Scan(
		&balance.TenantID, &balance.InfluencerID,
		&estimated, &confirmed, &reverted, &pending, &withdrawn,
		&adjustment, &available, &lastCalculatedAt,
	)
	if err != nil {
		return balance, err
	}

	balance.EstimatedAmount = parseDecimal(estimated)
	balance.ConfirmedAmount = parseDecimal(confirmed)
	balance.RevertedAmount = parseDecimal(reverted)
	balance.PendingWithdrawalAmount = parseDecimal(pending)
	balance.WithdrawnAmount = parseDecimal(withdrawn)
	balance.AdjustmentAmount = parseDecimal(adjustment)
	balance.AvailableForWithdrawal = parseDecimal(available)
	balance.LastCalculatedAt = parseTime(lastCalculatedAt)
	return balance, nil
}

// =============================================================================
// TIER STORE (commission.TierStore interface)
// =============================================================================

// SaveAssignment upserts a tier assignment.
func (s *Store) SaveAssignment(ctx context.Context, assignment commission.TierAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO tier_assignments
		(campaign_id, influencer_id, tenant_id, evaluation_period_days,
		 tier_name, tier_level, tier_percent, tier_threshold,
		 current_window_start, last_evaluation_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(campaign_id, influencer_id) DO UPDATE SET
			tenant_id = excluded.tenant_id,
			evaluation_period_days = excluded.evaluation_period_days,
			tier_name = excluded.tier_name,
			tier_level = excluded.tier_level,
			tier_percent = excluded.tier_percent,
			tier_threshold = excluded.tier_threshold,
			current_window_start = excluded.current_window_start,
			last_evaluation_at = excluded.last_evaluation_at
	`

	_, err := s.db.ExecContext(ctx, query,
		assignment.CampaignID,
		assignment.InfluencerID,
		assignment.TenantID,
		assignment.EvaluationPeriodDays,
		assignment.CurrentTier.Name,
		assignment.CurrentTier.Level,
		assignment.CurrentTier.CommissionPercent.String(),
		assignment.CurrentTier.ThresholdConfirmedSales.String(),
		assignment.CurrentWindowStart.Format(time.RFC3339),
		assignment.LastEvaluationAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save tier assignment: %w", err)
	}
	return nil
}

// GetAssignment returns the assignment for a (campaign, influencer) pair.
// History is not hydrated; use ListTierHistory for the full trail.
func (s *Store) GetAssignment(ctx context.Context, campaignID, influencerID string) (commission.TierAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, assignmentSelect+" WHERE campaign_id = ? AND influencer_id = ?",
		campaignID, influencerID)
	assignment, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return commission.TierAssignment{}, commission.ErrAssignmentNotFound
	}
	return assignment, err
}

// ListAssignments returns all tier assignments.
func (s *Store) ListAssignments(ctx context.Context) ([]commission.TierAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, assignmentSelect+" ORDER BY campaign_id, influencer_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []commission.TierAssignment
	for rows.Next() {
		assignment, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, assignment)
	}
	return assignments, rows.Err()
}

const assignmentSelect = `
	SELECT campaign_id, influencer_id, tenant_id, evaluation_period_days,
	       tier_name, tier_level, tier_percent, tier_threshold,
	       current_window_start, last_evaluation_at
	FROM tier_assignments`

func scanAssignment(row rowScanner) (commission.TierAssignment, error) {
	var (
		assignment                        commission.TierAssignment
		tierName                          sql.NullString
		tierPercent, tierThreshold        string
		windowStart, lastEvaluationAt     string
	)

	err := row.Scan(
		&assignment.CampaignID, &assignment.InfluencerID, &assignment.TenantID,
		&assignment.EvaluationPeriodDays,
		&tierName, &assignment.CurrentTier.Level, &tierPercent, &tierThreshold,
		&windowStart, &lastEvaluationAt,
	)
	if err != nil {
		return assignment, err
	}

	assignment.CurrentTier.Name = tierName.String
	assignment.CurrentTier.CommissionPercent = parseDecimal(tierPercent)
	assignment.CurrentTier.ThresholdConfirmedSales = parseDecimal(tierThreshold)
	assignment.CurrentWindowStart = parseTime(windowStart)
	assignment.LastEvaluationAt = parseTime(lastEvaluationAt)
	return assignment, nil
}

// AppendTierHistory appends one record to the global history log.
func (s *Store) AppendTierHistory(ctx context.Context, record commission.TierHistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO tier_history
		(id, influencer_id, campaign_id, tier_level, tier_name, commission_rate,
		 effective_from, effective_to, reason, triggered_by,
		 window_start, window_end, sales_volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			effective_to = excluded.effective_to,
			window_end = excluded.window_end,
			sales_volume = excluded.sales_volume
	`

	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.InfluencerID,
		record.CampaignID,
		record.TierLevel,
		record.TierName,
		record.CommissionRate.String(),
		record.EffectiveFrom.Format(time.RFC3339),
		nullTime(record.EffectiveTo),
		record.Reason,
		record.TriggeredBy,
		record.WindowStart.Format(time.RFC3339),
		record.WindowEnd.Format(time.RFC3339),
		record.SalesVolume.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to append tier history: %w", err)
	}
	return nil
}

// ListTierHistory returns history records matching the filter, in append order.
func (s *Store) ListTierHistory(ctx context.Context, filter commission.TierHistoryFilter) ([]commission.TierHistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, influencer_id, campaign_id, tier_level, tier_name, commission_rate,
		       effective_from, effective_to, reason, triggered_by,
		       window_start, window_end, sales_volume
		FROM tier_history
	`
	var (
		conditions []string
		args       []any
	)
	if filter.CampaignID != "" {
		conditions = append(conditions, "campaign_id = ?")
		args = append(args, filter.CampaignID)
	}
	if filter.InfluencerID != "" {
		conditions = append(conditions, "influencer_id = ?")
		args = append(args, filter.InfluencerID)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY rowid ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []commission.TierHistoryRecord
	for rows.Next() {
		var (
			record                       commission.TierHistoryRecord
			tierName, reason, triggered  sql.NullString
			rate, salesVolume            string
			effectiveFrom                string
			effectiveTo                  sql.NullString
			windowStart, windowEnd       string
		)
		if err := rows.Scan(&record.ID, &record.InfluencerID, &record.CampaignID,
			&record.TierLevel, &tierName, &rate, &effectiveFrom, &effectiveTo,
			&reason, &triggered, &windowStart, &windowEnd, &salesVolume); err != nil {
			return nil, err
		}

		record.TierName = tierName.String
		record.CommissionRate = parseDecimal(rate)
		record.EffectiveFrom = parseTime(effectiveFrom)
		record.EffectiveTo = parseNullTime(effectiveTo)
		record.Reason = reason.String
		record.TriggeredBy = triggered.String
		record.WindowStart = parseTime(windowStart)
		record.WindowEnd = parseTime(windowEnd)
		record.SalesVolume = parseDecimal(salesVolume)
		records = append(records, record)
	}
	return records, rows.Err()
}

// =============================================================================
// ADJUSTMENT STORE (commission.AdjustmentStore interface)
// =============================================================================

// SaveAdjustment upserts an adjustment. The partial unique index keeps the
// one-pending-per-order contract; the engine refreshes the existing pending
// adjustment in place before ever inserting a second one.
func (s *Store) SaveAdjustment(ctx context.Context, adjustment commission.WithdrawalAdjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO adjustments
		(id, tenant_id, influencer_id, campaign_id, brand_id, order_id,
		 amount, currency, type, status, reason, reconciliation_id, notes,
		 created_at, updated_at, resolved_at, resolved_by, resolution_type,
		 resolved_by_payment_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			status = excluded.status,
			reason = excluded.reason,
			reconciliation_id = excluded.reconciliation_id,
			notes = excluded.notes,
			updated_at = excluded.updated_at,
			resolved_at = excluded.resolved_at,
			resolved_by = excluded.resolved_by,
			resolution_type = excluded.resolution_type,
			resolved_by_payment_id = excluded.resolved_by_payment_id
	`

	_, err := s.db.ExecContext(ctx, query,
		adjustment.ID,
		adjustment.TenantID,
		adjustment.InfluencerID,
		adjustment.CampaignID,
		adjustment.BrandID,
		adjustment.OrderID,
		adjustment.Amount.String(),
		adjustment.Currency,
		string(adjustment.Type),
		string(adjustment.Status),
		adjustment.Reason,
		adjustment.ReconciliationID,
		adjustment.Notes,
		adjustment.CreatedAt.Format(time.RFC3339),
		adjustment.UpdatedAt.Format(time.RFC3339),
		nullTime(adjustment.ResolvedAt),
		adjustment.ResolvedBy,
		string(adjustment.ResolutionType),
		adjustment.ResolvedByPaymentID,
	)
	if err != nil {
		return fmt.Errorf("failed to save adjustment: %w", err)
	}
	return nil
}

// GetAdjustment returns an adjustment by id.
func (s *Store) GetAdjustment(ctx context.Context, id string) (commission.WithdrawalAdjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, adjustmentSelect+" WHERE id = ?", id)
	adjustment, err := scanAdjustment(row)
	if err == sql.ErrNoRows {
		return commission.WithdrawalAdjustment{}, commission.ErrAdjustmentNotFound
	}
	return adjustment, err
}

// GetPendingAdjustmentByOrder returns the pending adjustment for an order.
func (s *Store) GetPendingAdjustmentByOrder(ctx context.Context, orderID string) (commission.WithdrawalAdjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		adjustmentSelect+" WHERE order_id = ? AND status = 'pending'", orderID)
	adjustment, err := scanAdjustment(row)
	if err == sql.ErrNoRows {
		return commission.WithdrawalAdjustment{}, commission.ErrAdjustmentNotFound
	}
	return adjustment, err
}

// ListAdjustments returns adjustments matching the filter.
func (s *Store) ListAdjustments(ctx context.Context, filter commission.AdjustmentFilter) ([]commission.WithdrawalAdjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := adjustmentSelect
	var (
		conditions []string
		args       []any
	)
	if filter.InfluencerID != "" {
		conditions = append(conditions, "influencer_id = ?")
		args = append(args, filter.InfluencerID)
	}
	if filter.TenantID != "" {
		conditions = append(conditions, "tenant_id = ?")
		args = append(args, filter.TenantID)
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		conditions = append(conditions, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var adjustments []commission.WithdrawalAdjustment
	for rows.Next() {
		adjustment, err := scanAdjustment(rows)
		if err != nil {
			return nil, err
		}
		adjustments = append(adjustments, adjustment)
	}
	return adjustments, rows.Err()
}

const adjustmentSelect = `
	SELECT id, tenant_id, influencer_id, campaign_id, brand_id, order_id,
	       amount, currency, type, status, reason, reconciliation_id, notes,
	       created_at, updated_at, resolved_at, resolved_by, resolution_type,
	       resolved_by_payment_id
	FROM adjustments`

func scanAdjustment(row rowScanner) (commission.WithdrawalAdjustment, error) {
	var (
		adjustment                                    commission.WithdrawalAdjustment
		campaignID, brandID, currency                 sql.NullString
		amount, adjType, status                       string
		reason, reconciliationID, notes               sql.NullString
		createdAt, updatedAt                          string
		resolvedAt                                    sql.NullString
		resolvedBy, resolutionType, resolvedPaymentID sql.NullString
	)

	err := row.Scan(
		&adjustment.ID, &adjustment.TenantID, &adjustment.InfluencerID,
		&campaignID, &brandID, &adjustment.OrderID,
		&amount, &currency, &adjType, &status,
		&reason, &reconciliationID, &notes,
		&createdAt, &updatedAt, &resolvedAt,
		&resolvedBy, &resolutionType, &resolvedPaymentID,
	)
	if err != nil {
		return adjustment, err
	}

	adjustment.CampaignID = campaignID.String
	adjustment.BrandID = brandID.String
	adjustment.Amount = parseDecimal(amount)
	adjustment.Currency = currency.String
	adjustment.Type = commission.AdjustmentType(adjType)
	adjustment.Status = commission.AdjustmentStatus(status)
	adjustment.Reason = reason.String
	adjustment.ReconciliationID = reconciliationID.String
	adjustment.Notes = notes.String
	adjustment.CreatedAt = parseTime(createdAt)
	adjustment.UpdatedAt = parseTime(updatedAt)
	adjustment.ResolvedAt = parseNullTime(resolvedAt)
	adjustment.ResolvedBy = resolvedBy.String
	adjustment.ResolutionType = commission.AdjustmentResolutionType(resolutionType.String)
	adjustment.ResolvedByPaymentID = resolvedPaymentID.String
	return adjustment, nil
}

// =============================================================================
// RECONCILIATION LOG (commission.ReconciliationLog interface)
// =============================================================================

// AppendReconciliation appends one reconciliation record.
func (s *Store) AppendReconciliation(ctx context.Context, record commission.ReconciliationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	summaryJSON, _ := json.Marshal(record.Summary)
	alertsJSON, _ := json.Marshal(record.Alerts)

	query := `
		INSERT INTO reconciliations
		(id, tenant_id, run_date, type, discrepancies_found, report_url,
		 summary_json, alerts_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.TenantID,
		record.RunDate.Format(time.RFC3339),
		string(record.Type),
		record.DiscrepanciesFound,
		record.ReportURL,
		string(summaryJSON),
		string(alertsJSON),
		record.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append reconciliation: %w", err)
	}
	return nil
}

// ListReconciliations returns all reconciliation records in append order.
func (s *Store) ListReconciliations(ctx context.Context) ([]commission.ReconciliationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, tenant_id, run_date, type, discrepancies_found, report_url,
		       summary_json, alerts_json, created_at
		FROM reconciliations
		ORDER BY rowid ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []commission.ReconciliationRecord
	for rows.Next() {
		var (
			record                  commission.ReconciliationRecord
			runDate, createdAt      string
			recType                 string
			reportURL               sql.NullString
			summaryJSON, alertsJSON sql.NullString
		)
		if err := rows.Scan(&record.ID, &record.TenantID, &runDate, &recType,
			&record.DiscrepanciesFound, &reportURL, &summaryJSON, &alertsJSON,
			&createdAt); err != nil {
			return nil, err
		}

		record.RunDate = parseTime(runDate)
		record.Type = commission.ReconciliationType(recType)
		record.ReportURL = reportURL.String
		record.CreatedAt = parseTime(createdAt)
		if summaryJSON.Valid && summaryJSON.String != "" {
			json.Unmarshal([]byte(summaryJSON.String), &record.Summary)
		}
		if alertsJSON.Valid && alertsJSON.String != "" {
			json.Unmarshal([]byte(alertsJSON.String), &record.Alerts)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"orders", "commissions", "commission_audit", "balances",
		"tier_assignments", "tier_history", "adjustments", "reconciliations",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func parseDecimal(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseTime(v string) time.Time {
	t, _ := time.Parse(time.RFC3339, v)
	return t
}

func parseNullTime(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.Format(time.RFC3339)
	return &v
}
