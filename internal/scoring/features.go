// Package scoring computes the per-candidate feature scores, the combined
// match score, the price recommendation and the auto-bid gate for one
// (request, candidate, counterparty) triple. Everything here is pure:
// identical inputs always produce identical output, which the engine relies
// on for caching and reproducible audit trails.
package scoring

import (
	"strings"

	"github.com/procureos/harrier/internal/domain"
)

// premiumGrades score partial credit when offered against a lesser
// grade requirement.
var premiumGrades = map[string]bool{
	"USP":                  true,
	"Pharmaceutical Grade": true,
}

// assaySlack is how far below the requested minimum assay a candidate may
// fall and still earn partial credit.
const assaySlack = 0.95

// SpecMatch averages per-attribute matches over only the attributes the
// request specifies. A request specifying nothing scores a neutral 0.5:
// absence of signal is not a disqualification.
func SpecMatch(req *domain.MatchRequest, c *domain.Candidate) float64 {
	var score float64
	var checks int

	if req.Grade != "" {
		checks++
		switch {
		case c.Grade == req.Grade:
			score += 1.0
		case premiumGrades[c.Grade]:
			// Over-qualified: premium grade against a lesser requirement.
			score += 0.8
		}
	}

	if req.AssayMin != nil {
		checks++
		if c.AssayMin != nil {
			switch {
			case *c.AssayMin >= *req.AssayMin:
				score += 1.0
			case *c.AssayMin >= *req.AssayMin*assaySlack:
				score += 0.8
			}
		}
	}

	if req.Form != "" {
		checks++
		if c.Form != "" && strings.EqualFold(c.Form, req.Form) {
			score += 1.0
		}
	}

	if checks == 0 {
		return 0.5
	}
	return score / float64(checks)
}

// PriceCompetitiveness rewards underbidding more steeply than it punishes
// overbidding, within floor/ceiling clamps. Neutral 0.5 when either side
// lacks a price.
func PriceCompetitiveness(req *domain.MatchRequest, c *domain.Candidate) float64 {
	if !priceKnown(req.TargetPrice) || !priceKnown(c.BasePrice) {
		return 0.5
	}

	target := *req.TargetPrice
	base := *c.BasePrice

	if base <= target {
		savings := (target - base) / target
		return min(1.0, 0.7+savings*3)
	}

	excess := (base - target) / target
	return max(0.0, 0.5-excess*2)
}

// Compliance returns the fraction of required certifications present in the
// union of candidate-level and counterparty-level certification sets.
// Vacuously 1.0 when the request requires none.
func Compliance(req *domain.MatchRequest, c *domain.Candidate, cp *domain.Counterparty) float64 {
	if len(req.Certs) == 0 {
		return 1.0
	}

	held := make(map[string]bool, len(c.Certs))
	for _, cert := range c.Certs {
		held[cert] = true
	}
	if cp != nil {
		for _, cert := range cp.Certs {
			held[cert] = true
		}
	}

	matched := 0
	for _, cert := range req.Certs {
		if held[cert] {
			matched++
		}
	}
	return float64(matched) / float64(len(req.Certs))
}

// Delivery starts from a 0.5 base, adds credit for short lead times and a
// share of the counterparty's on-time rate, clamped to 1.0.
func Delivery(c *domain.Candidate, cp *domain.Counterparty) float64 {
	score := 0.5

	if c.LeadTimeDays != nil {
		switch {
		case *c.LeadTimeDays <= 21:
			score += 0.3
		case *c.LeadTimeDays <= 30:
			score += 0.2
		}
	}

	if cp != nil {
		score += cp.OnTimeRate / 100 * 0.2
	}

	return min(1.0, score)
}

// QualityHistory maps the counterparty rating onto [0,1]; neutral 0.5 when
// the counterparty is unknown.
func QualityHistory(cp *domain.Counterparty) float64 {
	if cp == nil {
		return 0.5
	}
	return cp.Rating / 5.0
}

func priceKnown(p *float64) bool {
	return p != nil && *p > 0
}
