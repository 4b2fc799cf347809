// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/procureos/harrier/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveMatchRequest stores or updates an RFQ.
func (r *SQLRepository) SaveMatchRequest(ctx context.Context, req *domain.MatchRequest) error {
	if req.ID == "" {
		return fmt.Errorf("%w: request ID is required", ErrInvalidInput)
	}

	certs, _ := json.Marshal(req.Certs)

	query := `
		INSERT INTO rfqs (
			id, rfq_number, buyer_id, spec_version, ingredient, grade,
			assay_min, form, certifications, quantity_kg, target_price,
			max_budget, status, matched_seller_count, match_completed_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			rfq_number = excluded.rfq_number,
			spec_version = excluded.spec_version,
			ingredient = excluded.ingredient,
			grade = excluded.grade,
			assay_min = excluded.assay_min,
			form = excluded.form,
			certifications = excluded.certifications,
			quantity_kg = excluded.quantity_kg,
			target_price = excluded.target_price,
			max_budget = excluded.max_budget,
			status = excluded.status,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		req.ID, req.RFQNumber, req.BuyerID, req.SpecVersion,
		req.Ingredient, req.Grade,
		nullFloat(req.AssayMin), req.Form, string(certs),
		req.QuantityKG, nullFloat(req.TargetPrice), nullFloat(req.MaxBudget),
		string(req.Status), req.MatchedSellerCount, nullTime(req.MatchCompletedAt),
		req.CreatedAt, req.UpdatedAt,
	)
	return err
}

// GetMatchRequest retrieves an RFQ by ID.
func (r *SQLRepository) GetMatchRequest(ctx context.Context, requestID string) (*domain.MatchRequest, error) {
	query := `
		SELECT id, rfq_number, buyer_id, spec_version, ingredient, grade,
			   assay_min, form, certifications, quantity_kg, target_price,
			   max_budget, status, matched_seller_count, match_completed_at,
			   created_at, updated_at
		FROM rfqs
		WHERE id = ?
	`

	var req domain.MatchRequest
	var grade, form, certs sql.NullString
	var assayMin, targetPrice, maxBudget sql.NullFloat64
	var completedAt sql.NullTime
	var status string

	err := r.db.QueryRowContext(ctx, r.rebind(query), requestID).Scan(
		&req.ID, &req.RFQNumber, &req.BuyerID, &req.SpecVersion,
		&req.Ingredient, &grade,
		&assayMin, &form, &certs,
		&req.QuantityKG, &targetPrice, &maxBudget,
		&status, &req.MatchedSellerCount, &completedAt,
		&req.CreatedAt, &req.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrRequestNotFound, requestID)
	}
	if err != nil {
		return nil, err
	}

	req.Grade = grade.String
	req.Form = form.String
	req.AssayMin = floatPtr(assayMin)
	req.TargetPrice = floatPtr(targetPrice)
	req.MaxBudget = floatPtr(maxBudget)
	req.Status = domain.RequestStatus(status)
	req.MatchCompletedAt = timePtr(completedAt)
	if certs.String != "" {
		json.Unmarshal([]byte(certs.String), &req.Certs)
	}

	return &req, nil
}

// UpdateRequestStatus transitions an RFQ's lifecycle status.
func (r *SQLRepository) UpdateRequestStatus(ctx context.Context, requestID string, status domain.RequestStatus) error {
	query := `
		UPDATE rfqs
		SET status = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), string(status), time.Now().UTC(), requestID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", domain.ErrRequestNotFound, requestID)
	}

	return nil
}

// MarkRequestMatched records run completion on the RFQ.
func (r *SQLRepository) MarkRequestMatched(ctx context.Context, requestID string, sellerCount int, completedAt time.Time) error {
	query := `
		UPDATE rfqs
		SET status = ?, matched_seller_count = ?, match_completed_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		string(domain.RequestStatusMatched), sellerCount, completedAt, time.Now().UTC(), requestID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", domain.ErrRequestNotFound, requestID)
	}

	return nil
}

// SaveCandidate stores or updates a SKU.
func (r *SQLRepository) SaveCandidate(ctx context.Context, c *domain.Candidate) error {
	if c.ID == "" {
		return fmt.Errorf("%w: candidate ID is required", ErrInvalidInput)
	}

	certs, _ := json.Marshal(c.Certs)

	active := 0
	if c.Active {
		active = 1
	}

	query := `
		INSERT INTO skus (
			id, seller_id, sku_code, ingredient, botanical_name, cas_number,
			grade, assay_min, assay_max, form, base_price, currency, moq_kg,
			certifications, active, lead_time_days, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			seller_id = excluded.seller_id,
			sku_code = excluded.sku_code,
			ingredient = excluded.ingredient,
			botanical_name = excluded.botanical_name,
			cas_number = excluded.cas_number,
			grade = excluded.grade,
			assay_min = excluded.assay_min,
			assay_max = excluded.assay_max,
			form = excluded.form,
			base_price = excluded.base_price,
			currency = excluded.currency,
			moq_kg = excluded.moq_kg,
			certifications = excluded.certifications,
			active = excluded.active,
			lead_time_days = excluded.lead_time_days,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		c.ID, c.SellerID, c.SKUCode, c.Ingredient, c.BotanicalName, c.CASNumber,
		c.Grade, nullFloat(c.AssayMin), nullFloat(c.AssayMax), c.Form,
		nullFloat(c.BasePrice), c.Currency, nullFloat(c.MOQKG),
		string(certs), active, nullInt(c.LeadTimeDays),
		c.CreatedAt, c.UpdatedAt,
	)
	return err
}

// GetCandidate retrieves a SKU by ID.
func (r *SQLRepository) GetCandidate(ctx context.Context, candidateID string) (*domain.Candidate, error) {
	query := `
		SELECT id, seller_id, sku_code, ingredient, botanical_name, cas_number,
			   grade, assay_min, assay_max, form, base_price, currency, moq_kg,
			   certifications, active, lead_time_days, created_at, updated_at
		FROM skus
		WHERE id = ?
	`

	c, err := scanCandidate(r.db.QueryRowContext(ctx, r.rebind(query), candidateID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// FindActiveCandidates retrieves the active SKUs for an ingredient,
// narrowed by grade when one is given. Ingredient matching is a
// case-insensitive substring match, so a request for "ashwagandha" also
// finds SKUs cataloged as "ashwagandha extract".
func (r *SQLRepository) FindActiveCandidates(ctx context.Context, ingredient, grade string) ([]*domain.Candidate, error) {
	query := `
		SELECT id, seller_id, sku_code, ingredient, botanical_name, cas_number,
			   grade, assay_min, assay_max, form, base_price, currency, moq_kg,
			   certifications, active, lead_time_days, created_at, updated_at
		FROM skus
		WHERE active = 1 AND LOWER(ingredient) LIKE '%' || LOWER(?) || '%'
	`
	args := []any{ingredient}

	if grade != "" {
		query += ` AND grade = ?`
		args = append(args, grade)
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []*domain.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}

	return candidates, rows.Err()
}

// SaveCounterparty stores or updates a seller company.
func (r *SQLRepository) SaveCounterparty(ctx context.Context, cp *domain.Counterparty) error {
	if cp.ID == "" {
		return fmt.Errorf("%w: counterparty ID is required", ErrInvalidInput)
	}

	certs, _ := json.Marshal(cp.Certs)

	verified := 0
	if cp.Verified {
		verified = 1
	}

	query := `
		INSERT INTO companies (
			id, name, country, rating, on_time_rate, certifications,
			verified, total_transactions, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			country = excluded.country,
			rating = excluded.rating,
			on_time_rate = excluded.on_time_rate,
			certifications = excluded.certifications,
			verified = excluded.verified,
			total_transactions = excluded.total_transactions,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		cp.ID, cp.Name, cp.Country, cp.Rating, cp.OnTimeRate,
		string(certs), verified, cp.TotalTransactions,
		cp.CreatedAt, cp.UpdatedAt,
	)
	return err
}

// GetCounterparty retrieves a seller company. Returns nil, nil when the
// counterparty is unknown; extractors degrade to neutral scores.
func (r *SQLRepository) GetCounterparty(ctx context.Context, counterpartyID string) (*domain.Counterparty, error) {
	query := `
		SELECT id, name, country, rating, on_time_rate, certifications,
			   verified, total_transactions, created_at, updated_at
		FROM companies
		WHERE id = ?
	`

	var cp domain.Counterparty
	var country, certs sql.NullString
	var verified int

	err := r.db.QueryRowContext(ctx, r.rebind(query), counterpartyID).Scan(
		&cp.ID, &cp.Name, &country, &cp.Rating, &cp.OnTimeRate,
		&certs, &verified, &cp.TotalTransactions,
		&cp.CreatedAt, &cp.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cp.Country = country.String
	cp.Verified = verified == 1
	if certs.String != "" {
		json.Unmarshal([]byte(certs.String), &cp.Certs)
	}

	return &cp, nil
}

// SaveScreenRule stores a screening rule version.
func (r *SQLRepository) SaveScreenRule(ctx context.Context, rule *domain.ScreenRule) error {
	if rule.ID == "" {
		return fmt.Errorf("%w: rule ID is required", ErrInvalidInput)
	}

	buyerID := rule.BuyerID
	if buyerID == "" {
		buyerID = domain.GlobalBuyerID
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO screen_rules (
			id, buyer_id, name, description, version, expression, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, buyer_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, buyerID, rule.Name, rule.Description,
		rule.Version, rule.Expression, enabled,
		now, now,
	)
	return err
}

// GetScreenRule retrieves the latest enabled version of a rule.
func (r *SQLRepository) GetScreenRule(ctx context.Context, ruleID string) (*domain.ScreenRule, error) {
	query := `
		SELECT id, buyer_id, name, description, version, expression, enabled, created_at, updated_at
		FROM screen_rules
		WHERE id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var rule domain.ScreenRule
	var description sql.NullString
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), ruleID).Scan(
		&rule.ID, &rule.BuyerID, &rule.Name, &description,
		&rule.Version, &rule.Expression, &enabled,
		&rule.CreatedAt, &rule.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rule.Description = description.String
	rule.Enabled = enabled == 1

	return &rule, nil
}

// ListScreenRules retrieves enabled rules for a buyer, including global
// rules. An empty buyer ID lists every enabled rule.
func (r *SQLRepository) ListScreenRules(ctx context.Context, buyerID string) ([]*domain.ScreenRule, error) {
	query := `
		SELECT id, buyer_id, name, description, version, expression, enabled, created_at, updated_at
		FROM screen_rules
		WHERE enabled = 1
	`
	args := []any{}

	if buyerID != "" {
		query += ` AND (buyer_id = ? OR buyer_id = ?)`
		args = append(args, buyerID, domain.GlobalBuyerID)
	}
	query += ` ORDER BY name`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.ScreenRule
	for rows.Next() {
		var rule domain.ScreenRule
		var description sql.NullString
		var enabled int

		if err := rows.Scan(
			&rule.ID, &rule.BuyerID, &rule.Name, &description,
			&rule.Version, &rule.Expression, &enabled,
			&rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, err
		}

		rule.Description = description.String
		rule.Enabled = enabled == 1
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// SaveMatchResults replaces the result set for a request in one
// transaction. A rerun supersedes cleanly: readers never observe a mix of
// old and new ranks.
func (r *SQLRepository) SaveMatchResults(ctx context.Context, requestID string, results []*domain.MatchResult) error {
	if requestID == "" {
		return fmt.Errorf("%w: request ID is required", ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM rfq_matches WHERE request_id = ?`), requestID); err != nil {
		return err
	}

	insert := r.rebind(`
		INSERT INTO rfq_matches (
			id, request_id, candidate_id, seller_id, score, "rank",
			features, reasons, recommended_price, auto_bid_eligible,
			engine_version, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	for _, m := range results {
		features, _ := json.Marshal(m.Features)
		reasons, _ := json.Marshal(m.Reasons)

		eligible := 0
		if m.AutoBidEligible {
			eligible = 1
		}

		if _, err := tx.ExecContext(ctx, insert,
			m.ID, requestID, m.CandidateID, m.SellerID, m.Score, m.Rank,
			string(features), string(reasons), m.RecommendedPrice, eligible,
			m.EngineVersion, m.CreatedAt,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListMatchResults retrieves the ranked results for a request, filtered by
// minimum score. A limit of 0 or less means no limit.
func (r *SQLRepository) ListMatchResults(ctx context.Context, requestID string, minScore float64, limit int) ([]*domain.MatchResult, error) {
	query := `
		SELECT id, request_id, candidate_id, seller_id, score, "rank",
			   features, reasons, recommended_price, auto_bid_eligible,
			   engine_version, created_at
		FROM rfq_matches
		WHERE request_id = ? AND score >= ?
		ORDER BY "rank"
	`
	args := []any{requestID, minScore}

	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.MatchResult
	for rows.Next() {
		var m domain.MatchResult
		var features, reasons string
		var eligible int

		if err := rows.Scan(
			&m.ID, &m.RequestID, &m.CandidateID, &m.SellerID, &m.Score, &m.Rank,
			&features, &reasons, &m.RecommendedPrice, &eligible,
			&m.EngineVersion, &m.CreatedAt,
		); err != nil {
			return nil, err
		}

		m.AutoBidEligible = eligible == 1
		json.Unmarshal([]byte(features), &m.Features)
		json.Unmarshal([]byte(reasons), &m.Reasons)
		results = append(results, &m)
	}

	return results, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandidate(row rowScanner) (*domain.Candidate, error) {
	var c domain.Candidate
	var botanicalName, casNumber, grade, form, currency, certs sql.NullString
	var assayMin, assayMax, basePrice, moq sql.NullFloat64
	var leadTime sql.NullInt64
	var active int

	if err := row.Scan(
		&c.ID, &c.SellerID, &c.SKUCode, &c.Ingredient, &botanicalName, &casNumber,
		&grade, &assayMin, &assayMax, &form, &basePrice, &currency, &moq,
		&certs, &active, &leadTime, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}

	c.BotanicalName = botanicalName.String
	c.CASNumber = casNumber.String
	c.Grade = grade.String
	c.Form = form.String
	c.Currency = currency.String
	c.AssayMin = floatPtr(assayMin)
	c.AssayMax = floatPtr(assayMax)
	c.BasePrice = floatPtr(basePrice)
	c.MOQKG = floatPtr(moq)
	c.Active = active == 1
	c.LeadTimeDays = intPtr(leadTime)
	if certs.String != "" {
		json.Unmarshal([]byte(certs.String), &c.Certs)
	}

	return &c, nil
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	v := n.Time
	return &v
}
