package domain

import (
	"math"
	"time"
)

// FeatureScores holds the five independent sub-scores, each in [0,1].
// Computed per (request, candidate) pair and persisted only as part of
// a MatchResult.
type FeatureScores struct {
	SpecMatch            float64 `json:"specMatch"`
	PriceCompetitiveness float64 `json:"priceCompetitiveness"`
	ComplianceScore      float64 `json:"complianceScore"`
	DeliveryScore        float64 `json:"deliveryScore"`
	QualityHistory       float64 `json:"qualityHistory"`
}

// MatchResult is one ranked match record. Created once per run, never
// mutated; re-running the match supersedes the previous set.
type MatchResult struct {
	ID          string `json:"id"`
	RequestID   string `json:"requestId"`
	CandidateID string `json:"candidateId"`
	SellerID    string `json:"sellerId"`

	// Score is in [0,1] at 4 decimal precision. Rank is 1-based and
	// dense; ties break on candidate ID so repeated runs over the same
	// snapshot produce identical output.
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`

	Features FeatureScores `json:"features"`
	Reasons  []string      `json:"reasons"`

	RecommendedPrice float64 `json:"recommendedPriceUsd"`
	AutoBidEligible  bool    `json:"autoBidEligible"`

	EngineVersion string    `json:"engineVersion"`
	CreatedAt     time.Time `json:"createdAt"`
}

// MatchSummary is the lightweight projection cached per request.
type MatchSummary struct {
	CandidateID string  `json:"candidateId"`
	SellerID    string  `json:"sellerId"`
	Score       float64 `json:"score"`
	Rank        int     `json:"rank"`
}

// Summary projects a result for caching.
func (m *MatchResult) Summary() MatchSummary {
	return MatchSummary{
		CandidateID: m.CandidateID,
		SellerID:    m.SellerID,
		Score:       m.Score,
		Rank:        m.Rank,
	}
}

// RoundScore rounds a score to the 4 decimal places stored and ranked on.
func RoundScore(s float64) float64 {
	return math.Round(s*10000) / 10000
}
