package scoring

import (
	"fmt"

	"github.com/procureos/harrier/internal/domain"
)

// Explain renders feature scores and raw attribute deltas into an ordered
// list of short human-readable reasons. The leading symbol tags polarity:
// "✓" positive, "~" neutral, "⚠" caution. Advisory text only; never an
// input to any scoring decision.
func Explain(f domain.FeatureScores, req *domain.MatchRequest, c *domain.Candidate, cp *domain.Counterparty) []string {
	reasons := make([]string, 0, 7)

	switch {
	case f.SpecMatch >= 0.95:
		reasons = append(reasons, "✓ Exact specification match")
	case f.SpecMatch >= 0.8:
		reasons = append(reasons, "✓ Very good specification match")
	default:
		reasons = append(reasons, "~ Partial specification match")
	}

	switch {
	case f.ComplianceScore >= 0.95:
		reasons = append(reasons, "✓ All required certifications met")
	case f.ComplianceScore >= 0.7:
		reasons = append(reasons, "~ Most certifications met")
	default:
		reasons = append(reasons, "⚠ Missing some certifications")
	}

	if priceKnown(req.TargetPrice) && priceKnown(c.BasePrice) {
		savingsPct := (*req.TargetPrice - *c.BasePrice) / *req.TargetPrice * 100
		switch {
		case savingsPct > 10:
			reasons = append(reasons, fmt.Sprintf("✓ %.0f%% below target price ($%.2f/kg)", savingsPct, *c.BasePrice))
		case savingsPct > 0:
			reasons = append(reasons, fmt.Sprintf("✓ %.0f%% below target price", savingsPct))
		default:
			reasons = append(reasons, "~ At or above target price")
		}
	}

	if c.LeadTimeDays != nil && *c.LeadTimeDays <= 21 {
		reasons = append(reasons, "✓ Fast delivery capability")
	}

	if cp != nil {
		if cp.Rating >= 4.5 {
			reasons = append(reasons, fmt.Sprintf("✓ %.1f★ supplier rating", cp.Rating))
		}
		if cp.OnTimeRate >= 95 {
			reasons = append(reasons, fmt.Sprintf("✓ %.0f%% on-time delivery", cp.OnTimeRate))
		}
	}

	return reasons
}
