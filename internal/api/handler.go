package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/procureos/harrier/internal/domain"
	"github.com/procureos/harrier/internal/match"
	"github.com/procureos/harrier/internal/screen"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	engine  *match.Engine
	screens *screen.Engine
	version string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *match.Engine, screens *screen.Engine, version string) *Handler {
	return &Handler{
		repo:    repo,
		cache:   cache,
		bus:     bus,
		engine:  engine,
		screens: screens,
		version: version,
	}
}

// CreateRFQ handles POST /rfqs requests.
func (h *Handler) CreateRFQ(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body domain.RFQRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	// Validate required fields
	if body.BuyerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "buyerId is required",
		})
		return
	}
	if body.Ingredient == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "ingredient is required",
		})
		return
	}
	if body.QuantityKG <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "quantityKg must be positive",
		})
		return
	}
	if body.TargetPrice != nil && *body.TargetPrice <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "targetPriceUsd must be positive when set",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	req := body.ToMatchRequest()
	req.ID = uuid.New().String()
	req.RFQNumber = "RFQ-" + strings.ToUpper(req.ID[:8])

	if err := h.repo.SaveMatchRequest(ctx, req); err != nil {
		slog.Error("failed to save rfq", "id", req.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save rfq",
		})
		return
	}

	slog.Info("rfq created", "id", req.ID, "rfq_number", req.RFQNumber, "buyer_id", req.BuyerID)
	writeJSON(w, http.StatusCreated, req)
}

// GetRFQ retrieves a match request by ID.
func (h *Handler) GetRFQ(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi.URLParam(r, "id")

	if requestID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rfq id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	req, err := h.repo.GetMatchRequest(ctx, requestID)
	if err != nil {
		if !errors.Is(err, domain.ErrRequestNotFound) {
			slog.Error("failed to get rfq", "id", requestID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "rfq not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, req)
}

// MatchRunResponse is the response for a synchronous POST /rfqs/{id}/match.
type MatchRunResponse struct {
	RequestID  string                `json:"requestId"`
	MatchCount int                   `json:"matchCount"`
	Matches    []*domain.MatchResult `json:"matches"`
	Metadata   struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// RunMatch handles POST /rfqs/{id}/match requests. By default the run is
// asynchronous and the response is 202; with ?wait=true the handler blocks
// until the run finishes and returns the ranked matches.
func (h *Handler) RunMatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	requestID := chi.URLParam(r, "id")

	if requestID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rfq id is required",
		})
		return
	}

	if h.engine == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "match engine not available",
		})
		return
	}

	job := h.engine.Submit(ctx, requestID)

	if r.URL.Query().Get("wait") != "true" {
		writeJSON(w, http.StatusAccepted, map[string]string{
			"requestId": requestID,
			"status":    string(domain.RequestStatusMatching),
		})
		return
	}

	results, err := job.Wait(ctx)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, domain.ErrRequestNotFound):
			status = http.StatusNotFound
		case errors.Is(err, domain.ErrCatalogUnavailable):
			status = http.StatusServiceUnavailable
		}
		if status == http.StatusInternalServerError {
			slog.Error("match run failed", "request_id", requestID, "error", err)
		}
		writeJSON(w, status, map[string]string{
			"error": err.Error(),
		})
		return
	}

	resp := MatchRunResponse{
		RequestID:  requestID,
		MatchCount: len(results),
		Matches:    results,
	}
	resp.Metadata.TraceID = GetTraceID(ctx)
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// ListMatches handles GET /rfqs/{id}/matches. Unfiltered requests are served
// from the cached projection when possible; filtered requests always hit the
// repository.
func (h *Handler) ListMatches(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi.URLParam(r, "id")

	if requestID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rfq id is required",
		})
		return
	}

	var minScore float64
	if raw := r.URL.Query().Get("min_score"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "min_score must be a number in [0,1]",
			})
			return
		}
		minScore = v
	}

	var limit int
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a positive integer",
			})
			return
		}
		limit = v
	}

	// Fast path: the cached summary projection for unfiltered reads.
	if minScore == 0 && limit == 0 && h.cache != nil {
		summaries, err := h.cache.GetMatches(ctx, requestID)
		if err != nil {
			slog.Warn("match cache read failed", "request_id", requestID, "error", err)
		} else if summaries != nil {
			writeJSON(w, http.StatusOK, map[string]any{
				"requestId": requestID,
				"matches":   summaries,
				"count":     len(summaries),
				"source":    "cache",
			})
			return
		}
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	results, err := h.repo.ListMatchResults(ctx, requestID, minScore, limit)
	if err != nil {
		slog.Error("failed to list matches", "request_id", requestID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list matches",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"requestId": requestID,
		"matches":   results,
		"count":     len(results),
		"source":    "database",
	})
}

// CreateSKU handles POST /skus requests.
func (h *Handler) CreateSKU(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var c domain.Candidate
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if c.SellerID == "" || c.Ingredient == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "sellerId and ingredient are required",
		})
		return
	}
	if c.BasePrice != nil && *c.BasePrice <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "basePriceUsd must be positive when set",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	if err := h.repo.SaveCandidate(ctx, &c); err != nil {
		slog.Error("failed to save sku", "id", c.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save sku",
		})
		return
	}

	slog.Info("sku created", "id", c.ID, "seller_id", c.SellerID, "ingredient", c.Ingredient)
	writeJSON(w, http.StatusCreated, &c)
}

// GetSKU retrieves a catalog candidate by ID.
func (h *Handler) GetSKU(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	candidateID := chi.URLParam(r, "id")

	if candidateID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "sku id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	c, err := h.repo.GetCandidate(ctx, candidateID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "sku not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// CreateCompany handles POST /companies requests.
func (h *Handler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var cp domain.Counterparty
	if err := json.NewDecoder(r.Body).Decode(&cp); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if cp.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "name is required",
		})
		return
	}
	if cp.Rating < 0 || cp.Rating > 5 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rating must be between 0 and 5",
		})
		return
	}
	if cp.OnTimeRate < 0 || cp.OnTimeRate > 100 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "onTimeDeliveryRate must be between 0 and 100",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now

	if err := h.repo.SaveCounterparty(ctx, &cp); err != nil {
		slog.Error("failed to save company", "id", cp.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save company",
		})
		return
	}

	slog.Info("company created", "id", cp.ID, "name", cp.Name)
	writeJSON(w, http.StatusCreated, &cp)
}

// GetCompany retrieves a counterparty by ID.
func (h *Handler) GetCompany(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	counterpartyID := chi.URLParam(r, "id")

	if counterpartyID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "company id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	cp, err := h.repo.GetCounterparty(ctx, counterpartyID)
	if err != nil {
		slog.Error("failed to get company", "id", counterpartyID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get company",
		})
		return
	}
	if cp == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "company not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, cp)
}

// ListScreenRules returns screening rules from the repository. An optional
// buyer_id query narrows the listing to that buyer plus global rules.
func (h *Handler) ListScreenRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	buyerID := r.URL.Query().Get("buyer_id")
	rules, err := h.repo.ListScreenRules(ctx, buyerID)
	if err != nil {
		slog.Error("failed to list screen rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list screen rules",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rules":  rules,
		"count":  len(rules),
		"source": "database",
	})
}

// GetScreenRule retrieves a screening rule by ID.
func (h *Handler) GetScreenRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	rule, err := h.repo.GetScreenRule(ctx, ruleID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "screen rule not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// CreateScreenRuleRequest is the request body for creating a screening rule.
type CreateScreenRuleRequest struct {
	ID          string `json:"id"`
	BuyerID     string `json:"buyerId,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Enabled     bool   `json:"enabled"`
}

// CreateScreenRule creates a new screening rule and saves it to the database.
// Rules without a buyerId are global and apply to every buyer's runs. After
// saving, call POST /screen-rules/reload to hot-reload into the engine.
func (h *Handler) CreateScreenRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateScreenRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	buyerID := req.BuyerID
	if buyerID == "" {
		buyerID = domain.GlobalBuyerID
	}

	rule := &domain.ScreenRule{
		ID:          req.ID,
		BuyerID:     buyerID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Enabled:     req.Enabled,
	}

	// Validate the CEL expression before persisting
	if h.screens != nil {
		if err := h.screens.ValidateRule(rule); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid CEL expression: " + err.Error(),
			})
			return
		}
	}

	if h.repo != nil {
		if err := h.repo.SaveScreenRule(ctx, rule); err != nil {
			slog.Error("failed to save screen rule", "id", rule.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save screen rule",
			})
			return
		}
	}

	slog.Info("screen rule created", "id", rule.ID, "name", rule.Name, "buyer_id", rule.BuyerID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"rule":    rule,
		"message": "Screen rule created. Call POST /screen-rules/reload to apply changes.",
	})
}

// ReloadScreenRules reloads all enabled screening rules from the database
// into the engine. This enables hot-reloading without server restart.
func (h *Handler) ReloadScreenRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if h.screens == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "screening engine not available",
		})
		return
	}

	// An empty buyer ID lists every enabled rule.
	dbRules, err := h.repo.ListScreenRules(ctx, "")
	if err != nil {
		slog.Error("failed to list screen rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load screen rules from database",
		})
		return
	}

	if err := h.screens.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload screen rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload screen rules: " + err.Error(),
		})
		return
	}

	slog.Info("screen rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "screen rules reloaded successfully",
		"count":   len(dbRules),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
