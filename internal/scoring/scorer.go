package scoring

import (
	"fmt"
	"math"

	"github.com/procureos/harrier/internal/domain"
)

// EngineVersion is stamped on every MatchResult for audit trails.
const EngineVersion = "harrier-1.0"

// Scorer combines the five feature scores into one match score using a
// versioned weight vector. Deterministic, no side effects.
type Scorer struct {
	weights domain.FeatureWeights
}

// NewScorer creates a scorer. The weight vector must sum to 1.0 so the
// combined score stays inside [0,1].
func NewScorer(weights domain.FeatureWeights) (*Scorer, error) {
	if math.Abs(weights.Sum()-1.0) > 1e-9 {
		return nil, fmt.Errorf("%w: weights %q sum to %v, want 1.0", domain.ErrInvalidConfig, weights.Version, weights.Sum())
	}
	return &Scorer{weights: weights}, nil
}

// WeightsVersion reports the weight vector version in use.
func (s *Scorer) WeightsVersion() string {
	return s.weights.Version
}

// Features computes the five sub-scores for one candidate. The counterparty
// may be nil; extractors degrade to neutral defaults.
func (s *Scorer) Features(req *domain.MatchRequest, c *domain.Candidate, cp *domain.Counterparty) domain.FeatureScores {
	return domain.FeatureScores{
		SpecMatch:            SpecMatch(req, c),
		PriceCompetitiveness: PriceCompetitiveness(req, c),
		ComplianceScore:      Compliance(req, c, cp),
		DeliveryScore:        Delivery(c, cp),
		QualityHistory:       QualityHistory(cp),
	}
}

// Combine collapses feature scores into the weighted match score, rounded
// to the 4 decimal places that get persisted and ranked on.
func (s *Scorer) Combine(f domain.FeatureScores) float64 {
	score := f.SpecMatch*s.weights.SpecMatch +
		f.PriceCompetitiveness*s.weights.PriceCompetitiveness +
		f.ComplianceScore*s.weights.ComplianceScore +
		f.DeliveryScore*s.weights.DeliveryScore +
		f.QualityHistory*s.weights.QualityHistory
	return domain.RoundScore(score)
}
