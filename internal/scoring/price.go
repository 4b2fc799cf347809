package scoring

// Confidence-tiered markup over base price. The markup decreases as match
// confidence rises: a strong match converts at a thinner margin.
const (
	markupStrong  = 1.05 // score >= 0.90
	markupGood    = 1.10 // score >= 0.80
	markupGuarded = 1.15 // everything else
	strongMatch   = 0.90
	goodMatch     = 0.80
)

// RecommendPrice derives the suggested unit price for a candidate. With no
// base price it falls back to the buyer's target, then to zero.
func RecommendPrice(base, target *float64, score float64) float64 {
	if !priceKnown(base) {
		if priceKnown(target) {
			return *target
		}
		return 0
	}

	switch {
	case score >= strongMatch:
		return *base * markupStrong
	case score >= goodMatch:
		return *base * markupGood
	default:
		return *base * markupGuarded
	}
}

// Gate decides auto-bid eligibility from the match score and the margin of
// the recommended price over base.
type Gate struct {
	// MinScore is the minimum match score for an automated bid.
	MinScore float64

	// MinMargin is the floor margin over base price, as a fraction.
	// Enforced even when the tiered markup would produce less.
	MinMargin float64
}

// marginTolerance absorbs float error in the base*(1+margin) product so an
// exact floor margin passes the gate.
const marginTolerance = 1e-9

// Eligible reports whether the candidate qualifies for a fully automated
// bid. A candidate without a base price is never eligible, whatever the
// score: margin cannot be established against an unknown floor.
func (g Gate) Eligible(score, recommendedPrice float64, base *float64) bool {
	if !priceKnown(base) {
		return false
	}
	return score >= g.MinScore && recommendedPrice >= *base*(1+g.MinMargin)-marginTolerance
}
