package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/procureos/harrier/internal/catalog"
	"github.com/procureos/harrier/internal/domain"
	"github.com/procureos/harrier/internal/match"
	"github.com/procureos/harrier/internal/repository"
	"github.com/procureos/harrier/internal/screen"
)

func fp(v float64) *float64 { return &v }

func ip(v int) *int { return &v }

// createTestServer wires a server against a real SQLite repository and an
// empty screening engine.
func createTestServer(t *testing.T) (*Server, domain.Repository) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "harrier-api-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	screens, err := screen.NewEngine()
	if err != nil {
		t.Fatalf("screen.NewEngine failed: %v", err)
	}

	engine, err := match.NewEngine(repo, catalog.NewService(repo, repo), screens, domain.DefaultScoring(), nil, nil)
	if err != nil {
		t.Fatalf("match.NewEngine failed: %v", err)
	}

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	return NewServer(cfg, repo, nil, nil, engine, screens, "test-v1"), repo
}

func doJSON(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

// seedCatalog saves one well-matched candidate and its seller.
func seedCatalog(t *testing.T, repo domain.Repository) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := repo.SaveCandidate(ctx, &domain.Candidate{
		ID:           "sku-api",
		SellerID:     "seller-api",
		SKUCode:      "ASH-USP",
		Ingredient:   "ashwagandha extract",
		Grade:        "USP",
		Form:         "powder",
		BasePrice:    fp(36.0),
		Active:       true,
		LeadTimeDays: ip(14),
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		t.Fatalf("SaveCandidate failed: %v", err)
	}
	if err := repo.SaveCounterparty(ctx, &domain.Counterparty{
		ID:         "seller-api",
		Name:       "API Botanicals",
		Rating:     4.8,
		OnTimeRate: 97,
		Verified:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		t.Fatalf("SaveCounterparty failed: %v", err)
	}
}

func TestRFQEndpoints(t *testing.T) {
	server, _ := createTestServer(t)

	t.Run("CreateAndGet", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/rfqs", domain.RFQRequest{
			BuyerID:     "buyer-1",
			Ingredient:  "ashwagandha extract",
			Grade:       "USP",
			QuantityKG:  200,
			TargetPrice: fp(40.0),
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		var created domain.MatchRequest
		if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if created.ID == "" {
			t.Error("expected generated id")
		}
		if created.RFQNumber == "" {
			t.Error("expected generated rfqNumber")
		}
		if created.Status != domain.RequestStatusDraft {
			t.Errorf("expected status draft, got %s", created.Status)
		}
		if created.SpecVersion != domain.CurrentSpecVersion {
			t.Errorf("expected spec version %d, got %d", domain.CurrentSpecVersion, created.SpecVersion)
		}

		rr = doJSON(t, server, http.MethodGet, "/rfqs/"+created.ID, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var fetched domain.MatchRequest
		if err := json.Unmarshal(rr.Body.Bytes(), &fetched); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if fetched.ID != created.ID || fetched.BuyerID != "buyer-1" {
			t.Errorf("fetched rfq does not match created: %+v", fetched)
		}
		if fetched.TargetPrice == nil || *fetched.TargetPrice != 40.0 {
			t.Errorf("expected target price 40.0, got %v", fetched.TargetPrice)
		}
	})

	t.Run("AutoPublish", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/rfqs", domain.RFQRequest{
			BuyerID:     "buyer-1",
			Ingredient:  "turmeric extract",
			QuantityKG:  100,
			AutoPublish: true,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		var created domain.MatchRequest
		if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if created.Status != domain.RequestStatusPublished {
			t.Errorf("expected status published, got %s", created.Status)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/rfqs", bytes.NewBufferString("not-json"))
		req.Header.Set("Content-Type", "application/json")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("MissingBuyer", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/rfqs", domain.RFQRequest{
			Ingredient: "ashwagandha extract",
			QuantityKG: 200,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("NonPositiveQuantity", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/rfqs", domain.RFQRequest{
			BuyerID:    "buyer-1",
			Ingredient: "ashwagandha extract",
			QuantityKG: 0,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/rfqs/no-such-rfq", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})
}

func TestMatchEndpoints(t *testing.T) {
	server, repo := createTestServer(t)
	seedCatalog(t, repo)

	createRFQ := func(t *testing.T) string {
		t.Helper()
		rr := doJSON(t, server, http.MethodPost, "/rfqs", domain.RFQRequest{
			BuyerID:     "buyer-1",
			Ingredient:  "ashwagandha extract",
			Grade:       "USP",
			QuantityKG:  200,
			TargetPrice: fp(40.0),
			AutoPublish: true,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}
		var created domain.MatchRequest
		if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		return created.ID
	}

	t.Run("SynchronousRun", func(t *testing.T) {
		requestID := createRFQ(t)

		rr := doJSON(t, server, http.MethodPost, "/rfqs/"+requestID+"/match?wait=true", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp MatchRunResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.MatchCount != 1 {
			t.Fatalf("expected 1 match, got %d", resp.MatchCount)
		}
		m := resp.Matches[0]
		if m.CandidateID != "sku-api" || m.SellerID != "seller-api" {
			t.Errorf("unexpected match: %+v", m)
		}
		if m.Rank != 1 {
			t.Errorf("expected rank 1, got %d", m.Rank)
		}
		if m.Score < 0.6 {
			t.Errorf("expected score >= 0.6, got %v", m.Score)
		}
		if resp.Metadata.Version != "test-v1" {
			t.Errorf("expected version test-v1, got %s", resp.Metadata.Version)
		}

		// Request is marked matched after the run.
		rr = doJSON(t, server, http.MethodGet, "/rfqs/"+requestID, nil)
		var fetched domain.MatchRequest
		if err := json.Unmarshal(rr.Body.Bytes(), &fetched); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if fetched.Status != domain.RequestStatusMatched {
			t.Errorf("expected status matched, got %s", fetched.Status)
		}
		if fetched.MatchedSellerCount != 1 {
			t.Errorf("expected 1 matched seller, got %d", fetched.MatchedSellerCount)
		}
	})

	t.Run("AsynchronousRun", func(t *testing.T) {
		requestID := createRFQ(t)

		rr := doJSON(t, server, http.MethodPost, "/rfqs/"+requestID+"/match", nil)
		if rr.Code != http.StatusAccepted {
			t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
		}

		// Poll until the detached run persists results.
		deadline := time.Now().Add(5 * time.Second)
		for {
			results, err := repo.ListMatchResults(context.Background(), requestID, 0, 0)
			if err != nil {
				t.Fatalf("ListMatchResults failed: %v", err)
			}
			if len(results) == 1 {
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("timed out waiting for async match results")
			}
			time.Sleep(20 * time.Millisecond)
		}
	})

	t.Run("ListMatches", func(t *testing.T) {
		requestID := createRFQ(t)

		rr := doJSON(t, server, http.MethodPost, "/rfqs/"+requestID+"/match?wait=true", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		rr = doJSON(t, server, http.MethodGet, "/rfqs/"+requestID+"/matches", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var listing struct {
			RequestID string                `json:"requestId"`
			Matches   []*domain.MatchResult `json:"matches"`
			Count     int                   `json:"count"`
			Source    string                `json:"source"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &listing); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if listing.Count != 1 || len(listing.Matches) != 1 {
			t.Fatalf("expected 1 match, got %d", listing.Count)
		}
		if listing.Source != "database" {
			t.Errorf("expected source database, got %s", listing.Source)
		}

		// A min_score above the match filters it out. The seeded fixture
		// scores about 0.9954, so filter above that.
		rr = doJSON(t, server, http.MethodGet, "/rfqs/"+requestID+"/matches?min_score=0.999", nil)
		if err := json.Unmarshal(rr.Body.Bytes(), &listing); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if listing.Count != 0 {
			t.Errorf("expected 0 matches above 0.999, got %d", listing.Count)
		}
	})

	t.Run("InvalidQueryParams", func(t *testing.T) {
		requestID := createRFQ(t)

		rr := doJSON(t, server, http.MethodGet, "/rfqs/"+requestID+"/matches?min_score=two", nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400 for bad min_score, got %d", rr.Code)
		}

		rr = doJSON(t, server, http.MethodGet, "/rfqs/"+requestID+"/matches?limit=-1", nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400 for bad limit, got %d", rr.Code)
		}
	})

	t.Run("UnknownRFQ", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/rfqs/no-such-rfq/match?wait=true", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d: %s", rr.Code, rr.Body.String())
		}
	})
}

func TestCatalogEndpoints(t *testing.T) {
	server, _ := createTestServer(t)

	t.Run("CreateAndGetSKU", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/skus", &domain.Candidate{
			SellerID:   "seller-1",
			SKUCode:    "TUR-95",
			Ingredient: "turmeric extract",
			BasePrice:  fp(22.0),
			Active:     true,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		var created domain.Candidate
		if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if created.ID == "" {
			t.Error("expected generated id")
		}

		rr = doJSON(t, server, http.MethodGet, "/skus/"+created.ID, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("SKUMissingSeller", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/skus", &domain.Candidate{
			Ingredient: "turmeric extract",
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("SKUNotFound", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/skus/no-such-sku", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("CreateAndGetCompany", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/companies", &domain.Counterparty{
			Name:       "Verdant Extracts",
			Rating:     4.5,
			OnTimeRate: 95,
			Verified:   true,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		var created domain.Counterparty
		if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if created.ID == "" {
			t.Error("expected generated id")
		}

		rr = doJSON(t, server, http.MethodGet, "/companies/"+created.ID, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("CompanyInvalidRating", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/companies", &domain.Counterparty{
			Name:   "Bad Rating Co",
			Rating: 7,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("CompanyNotFound", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/companies/no-such-company", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})
}

func TestScreenRuleEndpoints(t *testing.T) {
	server, _ := createTestServer(t)

	t.Run("CreateListReload", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/screen-rules", CreateScreenRuleRequest{
			ID:         "no-long-lead",
			Name:       "Exclude long lead times",
			Expression: "lead_time_days > 45",
			Enabled:    true,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		rr = doJSON(t, server, http.MethodGet, "/screen-rules", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		var listing struct {
			Rules []*domain.ScreenRule `json:"rules"`
			Count int                  `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &listing); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if listing.Count != 1 {
			t.Fatalf("expected 1 rule, got %d", listing.Count)
		}
		if listing.Rules[0].BuyerID != domain.GlobalBuyerID {
			t.Errorf("expected global buyer id, got %s", listing.Rules[0].BuyerID)
		}

		rr = doJSON(t, server, http.MethodGet, "/screen-rules/no-long-lead", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		rr = doJSON(t, server, http.MethodPost, "/screen-rules/reload", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var reload struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &reload); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if reload.Count != 1 {
			t.Errorf("expected 1 reloaded rule, got %d", reload.Count)
		}
		if server.Handler().screens.RulesCount() != 1 {
			t.Errorf("expected 1 rule loaded in engine, got %d", server.Handler().screens.RulesCount())
		}
	})

	t.Run("InvalidExpression", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/screen-rules", CreateScreenRuleRequest{
			ID:         "broken",
			Name:       "Broken rule",
			Expression: "lead_time_days >",
			Enabled:    true,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("MissingFields", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/screen-rules", CreateScreenRuleRequest{
			ID: "only-id",
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("RuleNotFound", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/screen-rules/no-such-rule", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})
}

func TestHealthEndpoints(t *testing.T) {
	server, _ := createTestServer(t)

	t.Run("Health", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/health", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		var resp map[string]string
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp["status"] != "healthy" {
			t.Errorf("expected healthy, got %s", resp["status"])
		}
		if resp["version"] != "test-v1" {
			t.Errorf("expected version test-v1, got %s", resp["version"])
		}
	})

	t.Run("Ready", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/ready", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("RequestIDHeader", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/health", nil)
		if rr.Header().Get(RequestIDHeader) == "" {
			t.Error("expected X-Request-ID header in response")
		}
	})
}
