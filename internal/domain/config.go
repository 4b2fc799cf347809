package domain

import (
	"fmt"
	"math"
	"runtime"
	"time"
)

// Config holds the complete Harrier configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier"`

	// Scoring parameters (weights, thresholds, guardrails)
	Scoring ScoringConfig `json:"scoring"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// FeatureWeights is the versioned weight vector combining the five
// sub-scores into a match score. Treated as configuration, not a literal,
// so weights can be retuned without a code change.
type FeatureWeights struct {
	Version              string  `json:"version"`
	SpecMatch            float64 `json:"specMatch"`
	PriceCompetitiveness float64 `json:"priceCompetitiveness"`
	ComplianceScore      float64 `json:"complianceScore"`
	DeliveryScore        float64 `json:"deliveryScore"`
	QualityHistory       float64 `json:"qualityHistory"`
}

// Sum returns the total weight. A valid vector sums to 1.0, which bounds
// the combined score to [0,1].
func (w FeatureWeights) Sum() float64 {
	return w.SpecMatch + w.PriceCompetitiveness + w.ComplianceScore + w.DeliveryScore + w.QualityHistory
}

// DefaultWeights returns the v1 production weight vector.
func DefaultWeights() FeatureWeights {
	return FeatureWeights{
		Version:              "v1",
		SpecMatch:            0.40,
		PriceCompetitiveness: 0.20,
		ComplianceScore:      0.20,
		DeliveryScore:        0.10,
		QualityHistory:       0.10,
	}
}

// ScoringConfig holds the matching thresholds and guardrails.
type ScoringConfig struct {
	Weights FeatureWeights `json:"weights"`

	// MinScore drops results below this threshold from the output.
	MinScore float64 `json:"minScore"`

	// AutoBidScore is the minimum match score for auto-bid eligibility.
	AutoBidScore float64 `json:"autoBidScore"`

	// AutoBidMargin is the minimum margin over base price enforced for
	// auto-bids, as a fraction (0.10 = 10%). One consistent constant
	// per deployment.
	AutoBidMargin float64 `json:"autoBidMargin"`

	// MaxWorkers bounds concurrent per-candidate scoring.
	MaxWorkers int `json:"maxWorkers"`

	// MatchTTL is how long the cached projection lives.
	MatchTTL time.Duration `json:"matchTtl"`
}

// weightTolerance absorbs float accumulation when checking the sum.
const weightTolerance = 1e-9

// Validate fails fast on a configuration the engine must not run with.
func (c ScoringConfig) Validate() error {
	if math.Abs(c.Weights.Sum()-1.0) > weightTolerance {
		return fmt.Errorf("%w: feature weights sum to %v, want 1.0", ErrInvalidConfig, c.Weights.Sum())
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		return fmt.Errorf("%w: min score %v outside [0,1]", ErrInvalidConfig, c.MinScore)
	}
	if c.AutoBidScore < 0 || c.AutoBidScore > 1 {
		return fmt.Errorf("%w: auto-bid score %v outside [0,1]", ErrInvalidConfig, c.AutoBidScore)
	}
	if c.AutoBidMargin < 0 || c.AutoBidMargin > 1 {
		return fmt.Errorf("%w: auto-bid margin %v outside [0,1]", ErrInvalidConfig, c.AutoBidMargin)
	}
	if c.MaxWorkers < 0 {
		return fmt.Errorf("%w: max workers %d is negative", ErrInvalidConfig, c.MaxWorkers)
	}
	return nil
}

// DefaultScoring returns the production scoring parameters.
func DefaultScoring() ScoringConfig {
	return ScoringConfig{
		Weights:       DefaultWeights(),
		MinScore:      0.6,
		AutoBidScore:  0.85,
		AutoBidMargin: 0.10,
		MaxWorkers:    runtime.NumCPU(),
		MatchTTL:      time.Hour,
	}
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"

	// TierEnterprise includes multi-node, SSO, etc.
	TierEnterprise Tier = "enterprise"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier:    TierCommunity,
		Scoring: DefaultScoring(),
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./harrier.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
			MatchTTL:     time.Hour,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "harrier",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "harrier",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       5 * time.Minute,
		MatchTTL:       time.Hour,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
