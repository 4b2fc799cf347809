package scoring

import (
	"strings"
	"testing"

	"github.com/procureos/harrier/internal/domain"
)

func TestExplain(t *testing.T) {
	req := &domain.MatchRequest{
		Grade:       "USP",
		TargetPrice: fp(45),
		Certs:       []string{"GMP"},
	}
	cand := &domain.Candidate{
		Grade:        "USP",
		BasePrice:    fp(36),
		Certs:        []string{"GMP"},
		LeadTimeDays: ip(14),
	}
	cp := &domain.Counterparty{Rating: 4.9, OnTimeRate: 98}

	f := domain.FeatureScores{
		SpecMatch:            1.0,
		PriceCompetitiveness: 1.0,
		ComplianceScore:      1.0,
		DeliveryScore:        0.996,
		QualityHistory:       0.98,
	}

	reasons := Explain(f, req, cand, cp)

	want := []string{
		"✓ Exact specification match",
		"✓ All required certifications met",
		"✓ 20% below target price ($36.00/kg)",
		"✓ Fast delivery capability",
		"✓ 4.9★ supplier rating",
		"✓ 98% on-time delivery",
	}
	if len(reasons) != len(want) {
		t.Fatalf("got %d reasons %v, want %d", len(reasons), reasons, len(want))
	}
	for i, w := range want {
		if reasons[i] != w {
			t.Errorf("reason[%d] = %q, want %q", i, reasons[i], w)
		}
	}
}

func TestExplainThresholds(t *testing.T) {
	req := &domain.MatchRequest{}
	cand := &domain.Candidate{}

	tests := []struct {
		name     string
		features domain.FeatureScores
		contains string
	}{
		{"VeryGoodSpec", domain.FeatureScores{SpecMatch: 0.85, ComplianceScore: 1}, "Very good specification match"},
		{"PartialSpec", domain.FeatureScores{SpecMatch: 0.5, ComplianceScore: 1}, "Partial specification match"},
		{"MostCerts", domain.FeatureScores{SpecMatch: 1, ComplianceScore: 0.75}, "Most certifications met"},
		{"MissingCerts", domain.FeatureScores{SpecMatch: 1, ComplianceScore: 0.5}, "⚠ Missing some certifications"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reasons := Explain(tt.features, req, cand, nil)
			found := false
			for _, r := range reasons {
				if strings.Contains(r, tt.contains) {
					found = true
				}
			}
			if !found {
				t.Errorf("reasons %v missing %q", reasons, tt.contains)
			}
		})
	}
}

func TestExplainPricePhrasing(t *testing.T) {
	f := domain.FeatureScores{SpecMatch: 1, ComplianceScore: 1}

	t.Run("ModestSavingsOmitPrice", func(t *testing.T) {
		req := &domain.MatchRequest{TargetPrice: fp(100)}
		cand := &domain.Candidate{BasePrice: fp(95)}
		reasons := Explain(f, req, cand, nil)
		if !contains(reasons, "✓ 5% below target price") {
			t.Errorf("reasons %v missing modest-savings line", reasons)
		}
	})

	t.Run("AtOrAboveTarget", func(t *testing.T) {
		req := &domain.MatchRequest{TargetPrice: fp(100)}
		cand := &domain.Candidate{BasePrice: fp(100)}
		reasons := Explain(f, req, cand, nil)
		if !contains(reasons, "~ At or above target price") {
			t.Errorf("reasons %v missing at-or-above line", reasons)
		}
	})

	t.Run("NoPricesNoPriceLine", func(t *testing.T) {
		reasons := Explain(f, &domain.MatchRequest{}, &domain.Candidate{}, nil)
		for _, r := range reasons {
			if strings.Contains(r, "target price") {
				t.Errorf("unexpected price line %q with no prices known", r)
			}
		}
	})
}

func contains(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}
