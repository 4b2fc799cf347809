package repository

// Schema definitions for Harrier's database.
// Compatible with both SQLite and PostgreSQL.

const schemaRFQs = `
CREATE TABLE IF NOT EXISTS rfqs (
    id TEXT PRIMARY KEY,
    rfq_number TEXT NOT NULL,
    buyer_id TEXT NOT NULL,
    spec_version INTEGER NOT NULL DEFAULT 1,
    ingredient TEXT NOT NULL,
    grade TEXT,
    assay_min REAL,
    form TEXT,
    certifications TEXT,
    quantity_kg REAL NOT NULL,
    target_price REAL,
    max_budget REAL,
    status TEXT NOT NULL,
    matched_seller_count INTEGER NOT NULL DEFAULT 0,
    match_completed_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rfqs_buyer ON rfqs(buyer_id);
CREATE INDEX IF NOT EXISTS idx_rfqs_status ON rfqs(status);
`

const schemaSKUs = `
CREATE TABLE IF NOT EXISTS skus (
    id TEXT PRIMARY KEY,
    seller_id TEXT NOT NULL,
    sku_code TEXT NOT NULL,
    ingredient TEXT NOT NULL,
    botanical_name TEXT,
    cas_number TEXT,
    grade TEXT,
    assay_min REAL,
    assay_max REAL,
    form TEXT,
    base_price REAL,
    currency TEXT,
    moq_kg REAL,
    certifications TEXT,
    active INTEGER NOT NULL DEFAULT 1,
    lead_time_days INTEGER,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_skus_seller ON skus(seller_id);
CREATE INDEX IF NOT EXISTS idx_skus_ingredient ON skus(ingredient, active);
`

const schemaCompanies = `
CREATE TABLE IF NOT EXISTS companies (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    country TEXT,
    rating REAL NOT NULL DEFAULT 0,
    on_time_rate REAL NOT NULL DEFAULT 0,
    certifications TEXT,
    verified INTEGER NOT NULL DEFAULT 0,
    total_transactions INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaScreenRules = `
CREATE TABLE IF NOT EXISTS screen_rules (
    id TEXT NOT NULL,
    buyer_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, buyer_id, version)
);

CREATE INDEX IF NOT EXISTS idx_screen_rules_buyer ON screen_rules(buyer_id);
CREATE INDEX IF NOT EXISTS idx_screen_rules_enabled ON screen_rules(buyer_id, enabled);
`

// rank is quoted: reserved in PostgreSQL.
const schemaRFQMatches = `
CREATE TABLE IF NOT EXISTS rfq_matches (
    id TEXT PRIMARY KEY,
    request_id TEXT NOT NULL,
    candidate_id TEXT NOT NULL,
    seller_id TEXT NOT NULL,
    score REAL NOT NULL,
    "rank" INTEGER NOT NULL,
    features TEXT NOT NULL,
    reasons TEXT NOT NULL,
    recommended_price REAL NOT NULL,
    auto_bid_eligible INTEGER NOT NULL DEFAULT 0,
    engine_version TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rfq_matches_request ON rfq_matches(request_id);
CREATE INDEX IF NOT EXISTS idx_rfq_matches_score ON rfq_matches(request_id, score);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaRFQs,
		schemaSKUs,
		schemaCompanies,
		schemaScreenRules,
		schemaRFQMatches,
	}
}
