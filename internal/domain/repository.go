// Package domain defines the core interfaces and types for Harrier.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence. It doubles as the
// engine's catalog lookup (FindActiveCandidates), counterparty lookup and
// result sink; the engine only sees the narrow Catalog/Directory/ResultSink
// views below.
type Repository interface {
	// Match request operations
	SaveMatchRequest(ctx context.Context, req *MatchRequest) error
	GetMatchRequest(ctx context.Context, requestID string) (*MatchRequest, error)
	UpdateRequestStatus(ctx context.Context, requestID string, status RequestStatus) error
	MarkRequestMatched(ctx context.Context, requestID string, sellerCount int, completedAt time.Time) error

	// Catalog operations
	SaveCandidate(ctx context.Context, c *Candidate) error
	GetCandidate(ctx context.Context, candidateID string) (*Candidate, error)
	FindActiveCandidates(ctx context.Context, ingredient, grade string) ([]*Candidate, error)

	// Counterparty operations
	SaveCounterparty(ctx context.Context, cp *Counterparty) error
	GetCounterparty(ctx context.Context, counterpartyID string) (*Counterparty, error)

	// Screening rule operations
	SaveScreenRule(ctx context.Context, rule *ScreenRule) error
	GetScreenRule(ctx context.Context, ruleID string) (*ScreenRule, error)
	ListScreenRules(ctx context.Context, buyerID string) ([]*ScreenRule, error)

	// Match results. SaveMatchResults is atomic per request: it replaces
	// any previous result set for the request in one transaction.
	SaveMatchResults(ctx context.Context, requestID string, results []*MatchResult) error
	ListMatchResults(ctx context.Context, requestID string, minScore float64, limit int) ([]*MatchResult, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// Catalog is the engine's read-only view of seller offerings.
type Catalog interface {
	FindActiveCandidates(ctx context.Context, ingredient, grade string) ([]*Candidate, error)
}

// Directory is the engine's read-only view of counterparties. A nil
// Counterparty with nil error means the counterparty is unknown; the
// extractors degrade to neutral scores.
type Directory interface {
	GetCounterparty(ctx context.Context, counterpartyID string) (*Counterparty, error)
}

// ResultSink persists a completed result set. Must be atomic per request ID
// so overlapping runs cannot interleave ranks.
type ResultSink interface {
	SaveMatchResults(ctx context.Context, requestID string, results []*MatchResult) error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
