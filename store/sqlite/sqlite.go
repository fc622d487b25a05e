/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all persistence interfaces (pricing.RuleStore,
  sales.ContextProvider, sales.SaleStore) using SQLite. In production, the
  same patterns apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  pricing.RuleStore:     Calculation rule administration and snapshots
  sales.ContextProvider: Unit and user lookups for context resolution
  sales.SaleStore:       Finalized sale records with frozen breakdowns

KEY TABLES:
  calculation_rules: Configured commissions, taxes, discounts and fees
  units:             Sellable real-estate units
  users:             Salesperson / sales manager identities
  sales:             Finalized sales with denormalized totals + breakdown JSON

DECIMAL STORAGE:
  All monetary and percentage values are stored as TEXT and parsed back
  through shopspring/decimal. Storing REAL would reintroduce the float
  drift the engine exists to avoid.

BREAKDOWN FREEZING:
  sales.breakdown_json holds the complete evaluation captured at
  finalization. Rule edits after the fact never change a closed sale.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/brokerage.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := sales.NewService(store, store, store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - pricing/store.go: RuleStore interface
  - pricing/store/memory.go: In-memory implementation for testing
  - sales/types.go: ContextProvider and SaleStore interfaces
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/brokerage-engine/pricing"
	"github.com/warp/brokerage-engine/sales"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

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
	-- Calculation rules (the configurable pricing table)
	CREATE TABLE IF NOT EXISTS calculation_rules (
		id TEXT PRIMARY KEY,
		name_ar TEXT,
		name_en TEXT,
		rule_type TEXT NOT NULL,
		calculation_type TEXT NOT NULL,
		value TEXT NOT NULL,
		applies_to TEXT NOT NULL,
		unit_type_filter TEXT,
		role TEXT,
		order_index INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		description_ar TEXT,
		description_en TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Hot path: active rule snapshot per entity category, in canonical order
	CREATE INDEX IF NOT EXISTS idx_rules_active_applies
		ON calculation_rules(is_active, applies_to, order_index, id);

	-- Units
	CREATE TABLE IF NOT EXISTS units (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		unit_type TEXT NOT NULL,
		address TEXT,
		area_sqm TEXT,
		price TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'available',
		description_ar TEXT,
		description_en TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_units_status
		ON units(status);

	-- Users (salespeople and sales managers)
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		role TEXT,
		created_at TEXT NOT NULL
	);

	-- Sales (finalized, with denormalized totals and the frozen breakdown)
	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		unit_id TEXT NOT NULL,
		client_name TEXT NOT NULL,
		sale_date TEXT NOT NULL,
		sale_price TEXT NOT NULL,
		salesperson_id TEXT NOT NULL,
		sales_manager_id TEXT,
		company_commission TEXT NOT NULL,
		salesperson_commission TEXT NOT NULL,
		sales_manager_commission TEXT NOT NULL,
		total_taxes TEXT NOT NULL,
		total_fees TEXT NOT NULL,
		total_discounts TEXT NOT NULL,
		net_company_revenue TEXT NOT NULL,
		breakdown_json TEXT,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sales_unit
		ON sales(unit_id);
	CREATE INDEX IF NOT EXISTS idx_sales_salesperson
		ON sales(salesperson_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RULE STORE (pricing.RuleStore interface)
// =============================================================================

const ruleColumns = `id, name_ar, name_en, rule_type, calculation_type, value,
	applies_to, unit_type_filter, role, order_index, is_active,
	description_ar, description_en`

// ActiveRules returns active rules for an entity category in canonical order.
// Rules with applies_to = 'all' are included for every category.
func (s *Store) ActiveRules(ctx context.Context, appliesTo pricing.EntityType) ([]pricing.CalculationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + ruleColumns + `
		FROM calculation_rules
		WHERE is_active = TRUE AND (applies_to = ? OR applies_to = ?)
		ORDER BY order_index ASC, id ASC
	`

	return s.queryRules(ctx, query, appliesTo, pricing.AppliesToAll)
}

// ListRules returns all rules (active and inactive) for admin views.
func (s *Store) ListRules(ctx context.Context) ([]pricing.CalculationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + ruleColumns + `
		FROM calculation_rules
		ORDER BY order_index ASC, id ASC
	`

	return s.queryRules(ctx, query)
}

// GetRule retrieves a rule by ID, or nil if it does not exist.
func (s *Store) GetRule(ctx context.Context, id pricing.RuleID) (*pricing.CalculationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules, err := s.queryRules(ctx,
		`SELECT `+ruleColumns+` FROM calculation_rules WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, nil
	}
	return &rules[0], nil
}

// SaveRule inserts or updates a rule.
func (s *Store) SaveRule(ctx context.Context, rule pricing.CalculationRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	filterJSON, _ := json.Marshal(rule.UnitTypeFilter)

	query := `
		INSERT INTO calculation_rules
		(id, name_ar, name_en, rule_type, calculation_type, value, applies_to,
		 unit_type_filter, role, order_index, is_active, description_ar, description_en,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name_ar = excluded.name_ar,
			name_en = excluded.name_en,
			rule_type = excluded.rule_type,
			calculation_type = excluded.calculation_type,
			value = excluded.value,
			applies_to = excluded.applies_to,
			unit_type_filter = excluded.unit_type_filter,
			role = excluded.role,
			order_index = excluded.order_index,
			is_active = excluded.is_active,
			description_ar = excluded.description_ar,
			description_en = excluded.description_en,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query,
		rule.ID, rule.Name.AR, rule.Name.EN,
		rule.RuleType, rule.CalculationType, rule.Value.String(),
		rule.AppliesTo, string(filterJSON), rule.Role,
		rule.OrderIndex, rule.IsActive,
		rule.Description.AR, rule.Description.EN,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}
	return nil
}

// DeleteRule removes a rule.
func (s *Store) DeleteRule(ctx context.Context, id pricing.RuleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM calculation_rules WHERE id = ?", id)
	return err
}

// CountRules returns the number of stored rules.
func (s *Store) CountRules(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM calculation_rules").Scan(&count)
	return count, err
}

func (s *Store) queryRules(ctx context.Context, query string, args ...any) ([]pricing.CalculationRule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []pricing.CalculationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

func scanRule(rows *sql.Rows) (pricing.CalculationRule, error) {
	var (
		rule       pricing.CalculationRule
		nameAR     sql.NullString
		nameEN     sql.NullString
		value      string
		filterJSON sql.NullString
		role       sql.NullString
		descAR     sql.NullString
		descEN     sql.NullString
	)

	err := rows.Scan(
		&rule.ID, &nameAR, &nameEN, &rule.RuleType, &rule.CalculationType,
		&value, &rule.AppliesTo, &filterJSON, &role, &rule.OrderIndex,
		&rule.IsActive, &descAR, &descEN,
	)
	if err != nil {
		return rule, fmt.Errorf("failed to scan rule: %w", err)
	}

	rule.Name = pricing.LocalizedText{AR: nameAR.String, EN: nameEN.String}
	rule.Description = pricing.LocalizedText{AR: descAR.String, EN: descEN.String}
	rule.Value = pricing.MustParseDecimal(value)
	rule.Role = pricing.CommissionRole(role.String)

	if filterJSON.Valid && filterJSON.String != "" && filterJSON.String != "null" {
		json.Unmarshal([]byte(filterJSON.String), &rule.UnitTypeFilter)
	}

	return rule, nil
}

// =============================================================================
// UNIT STORE (sales.ContextProvider - units)
// =============================================================================

// SaveUnit inserts or updates a unit.
func (s *Store) SaveUnit(ctx context.Context, unit sales.Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO units (id, code, unit_type, address, area_sqm, price, status,
			description_ar, description_en, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code,
			unit_type = excluded.unit_type,
			address = excluded.address,
			area_sqm = excluded.area_sqm,
			price = excluded.price,
			status = excluded.status,
			description_ar = excluded.description_ar,
			description_en = excluded.description_en
	`

	createdAt := unit.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, query,
		unit.ID, unit.Code, unit.Type, unit.Address,
		unit.AreaSqm.String(), unit.Price.String(), unit.Status,
		unit.Description.AR, unit.Description.EN,
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save unit: %w", err)
	}
	return nil
}

// GetUnit retrieves a unit by ID, or nil if it does not exist.
func (s *Store) GetUnit(ctx context.Context, id pricing.UnitID) (*sales.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	units, err := s.queryUnits(ctx,
		`SELECT id, code, unit_type, address, area_sqm, price, status,
			description_ar, description_en, created_at
		 FROM units WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, nil
	}
	return &units[0], nil
}

// ListUnits returns all units ordered by code.
func (s *Store) ListUnits(ctx context.Context) ([]sales.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryUnits(ctx,
		`SELECT id, code, unit_type, address, area_sqm, price, status,
			description_ar, description_en, created_at
		 FROM units ORDER BY code ASC`)
}

func (s *Store) queryUnits(ctx context.Context, query string, args ...any) ([]sales.Unit, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
	}
	defer rows.Close()

	var units []sales.Unit
	for rows.Next() {
		var (
			unit      sales.Unit
			address   sql.NullString
			areaSqm   sql.NullString
			price     string
			descAR    sql.NullString
			descEN    sql.NullString
			createdAt string
		)

		if err := rows.Scan(&unit.ID, &unit.Code, &unit.Type, &address,
			&areaSqm, &price, &unit.Status, &descAR, &descEN, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}

		unit.Address = address.String
		unit.AreaSqm = pricing.MustParseDecimal(areaSqm.String)
		unit.Price = pricing.MustParseDecimal(price)
		unit.Description = pricing.LocalizedText{AR: descAR.String, EN: descEN.String}
		unit.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

		units = append(units, unit)
	}

	return units, rows.Err()
}

// =============================================================================
// USER STORE (sales.ContextProvider - users)
// =============================================================================

// SaveUser inserts or updates a user.
func (s *Store) SaveUser(ctx context.Context, user sales.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO users (id, name, role, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			role = excluded.role
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.Name, user.Role,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetUser retrieves a user by ID, or nil if it does not exist.
func (s *Store) GetUser(ctx context.Context, id pricing.UserID) (*sales.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var user sales.User
	var role sql.NullString

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, role FROM users WHERE id = ?", id,
	).Scan(&user.ID, &user.Name, &role)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	user.Role = role.String
	return &user, nil
}

// ListUsers returns all users ordered by name.
func (s *Store) ListUsers(ctx context.Context) ([]sales.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, role FROM users ORDER BY name ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []sales.User
	for rows.Next() {
		var user sales.User
		var role sql.NullString
		if err := rows.Scan(&user.ID, &user.Name, &role); err != nil {
			return nil, err
		}
		user.Role = role.String
		users = append(users, user)
	}
	return users, rows.Err()
}

// =============================================================================
// SALE STORE (sales.SaleStore interface)
// =============================================================================

// SaveSale persists a finalized sale with its frozen breakdown and marks
// the unit sold in the same transaction. Either both rows land or neither
// does.
func (s *Store) SaveSale(ctx context.Context, sale sales.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var breakdownJSON []byte
	if sale.Breakdown != nil {
		var err error
		breakdownJSON, err = json.Marshal(sale.Breakdown)
		if err != nil {
			return fmt.Errorf("failed to encode breakdown: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO sales
		(id, unit_id, client_name, sale_date, sale_price, salesperson_id, sales_manager_id,
		 company_commission, salesperson_commission, sales_manager_commission,
		 total_taxes, total_fees, total_discounts, net_company_revenue,
		 breakdown_json, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if _, err := tx.ExecContext(ctx, query,
		sale.ID, sale.UnitID, sale.ClientName,
		sale.SaleDate.Format(time.RFC3339), sale.SalePrice.String(),
		sale.SalespersonID, nullString(string(sale.SalesManagerID)),
		sale.CompanyCommission.String(),
		sale.SalespersonCommission.String(),
		sale.SalesManagerCommission.String(),
		sale.TotalTaxes.String(),
		sale.TotalFees.String(),
		sale.TotalDiscounts.String(),
		sale.NetCompanyRevenue.String(),
		string(breakdownJSON), sale.Notes,
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("failed to save sale: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE units SET status = ? WHERE id = ?", sales.UnitSold, sale.UnitID)
	if err != nil {
		return fmt.Errorf("failed to mark unit sold: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &pricing.NotFoundError{Kind: "unit", ID: string(sale.UnitID)}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sale: %w", err)
	}
	return nil
}

// GetSale retrieves a sale by ID, or nil if it does not exist.
func (s *Store) GetSale(ctx context.Context, id string) (*sales.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.querySales(ctx,
		saleSelect+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// ListSales returns all sales, newest first.
func (s *Store) ListSales(ctx context.Context) ([]sales.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.querySales(ctx, saleSelect+" ORDER BY created_at DESC")
}

const saleSelect = `
	SELECT id, unit_id, client_name, sale_date, sale_price, salesperson_id, sales_manager_id,
		company_commission, salesperson_commission, sales_manager_commission,
		total_taxes, total_fees, total_discounts, net_company_revenue,
		breakdown_json, notes, created_at
	FROM sales`

func (s *Store) querySales(ctx context.Context, query string, args ...any) ([]sales.Sale, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	var records []sales.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, sale)
	}

	return records, rows.Err()
}

func scanSale(rows *sql.Rows) (sales.Sale, error) {
	var (
		sale           sales.Sale
		saleDate       string
		salePrice      string
		salesManagerID sql.NullString
		companyComm    string
		spComm         string
		smComm         string
		taxes          string
		fees           string
		discounts      string
		net            string
		breakdownJSON  sql.NullString
		notes          sql.NullString
		createdAt      string
	)

	err := rows.Scan(
		&sale.ID, &sale.UnitID, &sale.ClientName, &saleDate, &salePrice,
		&sale.SalespersonID, &salesManagerID,
		&companyComm, &spComm, &smComm, &taxes, &fees, &discounts, &net,
		&breakdownJSON, &notes, &createdAt,
	)
	if err != nil {
		return sale, fmt.Errorf("failed to scan sale: %w", err)
	}

	sale.SaleDate, _ = time.Parse(time.RFC3339, saleDate)
	sale.SalePrice = pricing.MustParseDecimal(salePrice)
	sale.SalesManagerID = pricing.UserID(salesManagerID.String)
	sale.CompanyCommission = pricing.Money{Value: pricing.MustParseDecimal(companyComm)}
	sale.SalespersonCommission = pricing.Money{Value: pricing.MustParseDecimal(spComm)}
	sale.SalesManagerCommission = pricing.Money{Value: pricing.MustParseDecimal(smComm)}
	sale.TotalTaxes = pricing.Money{Value: pricing.MustParseDecimal(taxes)}
	sale.TotalFees = pricing.Money{Value: pricing.MustParseDecimal(fees)}
	sale.TotalDiscounts = pricing.Money{Value: pricing.MustParseDecimal(discounts)}
	sale.NetCompanyRevenue = pricing.Money{Value: pricing.MustParseDecimal(net)}
	sale.Notes = notes.String
	sale.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	if breakdownJSON.Valid && breakdownJSON.String != "" {
		var breakdown pricing.Evaluation
		if err := json.Unmarshal([]byte(breakdownJSON.String), &breakdown); err == nil {
			sale.Breakdown = &breakdown
		}
	}

	return sale, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"sales", "units", "users", "calculation_rules"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
