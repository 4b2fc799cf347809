// Package catalog provides the read-only candidate snapshot for one
// matching run.
package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/procureos/harrier/internal/domain"
)

// Snapshot is one consistent read of the catalog taken at filtering time.
// The engine scores against this snapshot only, so a run never sees read
// skew from concurrent catalog updates.
type Snapshot struct {
	Candidates     []*domain.Candidate
	Counterparties map[string]*domain.Counterparty
}

// Counterparty returns the owning counterparty for a candidate, or nil if
// unknown. Extractors degrade to neutral scores on nil.
func (s *Snapshot) Counterparty(c *domain.Candidate) *domain.Counterparty {
	return s.Counterparties[c.SellerID]
}

// Service loads catalog snapshots.
type Service struct {
	catalog   domain.Catalog
	directory domain.Directory
}

// NewService creates a snapshot service.
func NewService(catalog domain.Catalog, directory domain.Directory) *Service {
	return &Service{
		catalog:   catalog,
		directory: directory,
	}
}

// Load fetches the active candidates matching the request's ingredient
// (narrowed by grade when the request specifies one) plus their
// counterparties. A counterparty lookup failure is logged and degraded to
// unknown rather than failing the snapshot.
func (s *Service) Load(ctx context.Context, req *domain.MatchRequest) (*Snapshot, error) {
	candidates, err := s.catalog.FindActiveCandidates(ctx, req.Ingredient, req.Grade)
	if err != nil {
		return nil, fmt.Errorf("finding active candidates: %w", err)
	}

	snap := &Snapshot{
		Candidates:     candidates,
		Counterparties: make(map[string]*domain.Counterparty),
	}

	for _, c := range candidates {
		if c.SellerID == "" {
			continue
		}
		if _, seen := snap.Counterparties[c.SellerID]; seen {
			continue
		}

		cp, err := s.directory.GetCounterparty(ctx, c.SellerID)
		if err != nil {
			slog.Warn("counterparty lookup failed",
				"seller_id", c.SellerID,
				"error", err,
			)
			continue
		}
		if cp != nil {
			snap.Counterparties[c.SellerID] = cp
		}
	}

	return snap, nil
}
