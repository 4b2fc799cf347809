package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/procureos/harrier/internal/domain"
)

type stubCatalog struct {
	candidates []*domain.Candidate
	err        error
}

func (s *stubCatalog) FindActiveCandidates(_ context.Context, _, _ string) ([]*domain.Candidate, error) {
	return s.candidates, s.err
}

type stubDirectory struct {
	counterparties map[string]*domain.Counterparty
	errors         map[string]error
	calls          int
}

func (s *stubDirectory) GetCounterparty(_ context.Context, id string) (*domain.Counterparty, error) {
	s.calls++
	if err := s.errors[id]; err != nil {
		return nil, err
	}
	return s.counterparties[id], nil
}

func TestSnapshotLoad(t *testing.T) {
	cat := &stubCatalog{candidates: []*domain.Candidate{
		{ID: "c-1", SellerID: "seller-1"},
		{ID: "c-2", SellerID: "seller-1"},
		{ID: "c-3", SellerID: "seller-2"},
		{ID: "c-4", SellerID: ""},
	}}
	dir := &stubDirectory{counterparties: map[string]*domain.Counterparty{
		"seller-1": {ID: "seller-1", Name: "Alpha"},
		"seller-2": {ID: "seller-2", Name: "Beta"},
	}}

	snap, err := NewService(cat, dir).Load(context.Background(), &domain.MatchRequest{Ingredient: "curcumin"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(snap.Candidates) != 4 {
		t.Errorf("candidates = %d, want 4", len(snap.Candidates))
	}
	if len(snap.Counterparties) != 2 {
		t.Errorf("counterparties = %d, want 2", len(snap.Counterparties))
	}
	// One lookup per distinct seller, none for the missing seller ID.
	if dir.calls != 2 {
		t.Errorf("directory lookups = %d, want 2", dir.calls)
	}

	if cp := snap.Counterparty(snap.Candidates[0]); cp == nil || cp.Name != "Alpha" {
		t.Errorf("counterparty for c-1 = %+v, want Alpha", cp)
	}
	if cp := snap.Counterparty(snap.Candidates[3]); cp != nil {
		t.Errorf("expected nil counterparty for empty seller, got %+v", cp)
	}
}

func TestSnapshotLoadCatalogError(t *testing.T) {
	cat := &stubCatalog{err: errors.New("connection refused")}

	_, err := NewService(cat, &stubDirectory{}).Load(context.Background(), &domain.MatchRequest{})
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestSnapshotLoadDirectoryFailureDegrades(t *testing.T) {
	cat := &stubCatalog{candidates: []*domain.Candidate{
		{ID: "c-1", SellerID: "seller-1"},
		{ID: "c-2", SellerID: "seller-2"},
	}}
	dir := &stubDirectory{
		counterparties: map[string]*domain.Counterparty{
			"seller-2": {ID: "seller-2", Name: "Beta"},
		},
		errors: map[string]error{"seller-1": errors.New("timeout")},
	}

	snap, err := NewService(cat, dir).Load(context.Background(), &domain.MatchRequest{})
	if err != nil {
		t.Fatalf("a counterparty lookup failure must not fail the snapshot: %v", err)
	}
	if len(snap.Counterparties) != 1 {
		t.Errorf("counterparties = %d, want 1", len(snap.Counterparties))
	}
	if snap.Counterparty(snap.Candidates[0]) != nil {
		t.Error("failed lookup should read as unknown counterparty")
	}
}
