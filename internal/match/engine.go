// Package match orchestrates a full matching run: load the request, snapshot
// the catalog, screen and score candidates in parallel, rank the survivors
// and persist the result set.
package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/procureos/harrier/internal/catalog"
	"github.com/procureos/harrier/internal/domain"
	"github.com/procureos/harrier/internal/scoring"
	"github.com/procureos/harrier/internal/screen"
)

// Store is the slice of the repository the engine needs: the request record
// and the result sink. Satisfied by domain.Repository.
type Store interface {
	GetMatchRequest(ctx context.Context, requestID string) (*domain.MatchRequest, error)
	UpdateRequestStatus(ctx context.Context, requestID string, status domain.RequestStatus) error
	MarkRequestMatched(ctx context.Context, requestID string, sellerCount int, completedAt time.Time) error
	SaveMatchResults(ctx context.Context, requestID string, results []*domain.MatchResult) error
}

// Engine runs matching end to end. Cache and bus are optional collaborators;
// both are best-effort and never fail a run. The store is the source of
// truth for results.
type Engine struct {
	repo      Store
	snapshots *catalog.Service
	screen    *screen.Engine
	scorer    *scoring.Scorer
	gate      scoring.Gate
	cache     domain.Cache
	bus       domain.EventBus

	minScore   float64
	maxWorkers int
	matchTTL   time.Duration

	mu       sync.Mutex
	inflight map[string]*Job
}

// NewEngine creates a matching engine. The screening engine, cache and bus
// may be nil; matching degrades to score-only, uncached, silent operation.
func NewEngine(repo Store, snapshots *catalog.Service, screenEngine *screen.Engine, cfg domain.ScoringConfig, cache domain.Cache, bus domain.EventBus) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	scorer, err := scoring.NewScorer(cfg.Weights)
	if err != nil {
		return nil, err
	}

	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}

	return &Engine{
		repo:      repo,
		snapshots: snapshots,
		screen:    screenEngine,
		scorer:    scorer,
		gate: scoring.Gate{
			MinScore:  cfg.AutoBidScore,
			MinMargin: cfg.AutoBidMargin,
		},
		cache:      cache,
		bus:        bus,
		minScore:   cfg.MinScore,
		maxWorkers: maxWorkers,
		matchTTL:   cfg.MatchTTL,
		inflight:   make(map[string]*Job),
	}, nil
}

// Match runs matching for a request synchronously and returns the ranked
// results. An empty result set is a valid outcome, not an error. Run
// outcomes are published to the bus after the results are durable.
func (e *Engine) Match(ctx context.Context, requestID string) ([]*domain.MatchResult, error) {
	start := time.Now()

	results, err := e.run(ctx, requestID)
	if err != nil {
		e.publishFailed(ctx, requestID, err)
		return nil, err
	}

	e.publishCompleted(ctx, requestID, results, time.Since(start))
	return results, nil
}

// run executes the pipeline. Stages: load, snapshot, score, rank, persist.
func (e *Engine) run(ctx context.Context, requestID string) ([]*domain.MatchResult, error) {
	req, err := e.repo.GetMatchRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, domain.ErrRequestNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: loading request %s: %w", domain.ErrCatalogUnavailable, requestID, err)
	}
	if req.Status == domain.RequestStatusCancelled {
		return nil, fmt.Errorf("request %s is cancelled", requestID)
	}

	// Status transition is bookkeeping, not a run precondition.
	if err := e.repo.UpdateRequestStatus(ctx, requestID, domain.RequestStatusMatching); err != nil {
		slog.Warn("failed to mark request matching",
			"request_id", requestID,
			"error", err,
		)
	}

	snap, err := e.snapshots.Load(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, err)
	}

	matched, err := e.scoreAll(ctx, req, snap)
	if err != nil {
		return nil, err
	}

	// Rank by score descending; ties break on candidate ID so reruns over
	// the same snapshot produce identical output.
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Score != matched[j].Score {
			return matched[i].Score > matched[j].Score
		}
		return matched[i].CandidateID < matched[j].CandidateID
	})
	for i, m := range matched {
		m.Rank = i + 1
	}

	if err := e.persist(ctx, req, matched); err != nil {
		return nil, err
	}

	e.cacheProjection(ctx, requestID, matched)

	slog.Info("match run completed",
		"request_id", requestID,
		"candidates", len(snap.Candidates),
		"matches", len(matched),
		"engine_version", scoring.EngineVersion,
	)

	return matched, nil
}

// scoreAll fans candidate scoring out over a bounded worker pool. Results
// keep snapshot order until ranking; nil slots are candidates that were
// screened out, scored below threshold or skipped as malformed.
func (e *Engine) scoreAll(ctx context.Context, req *domain.MatchRequest, snap *catalog.Snapshot) ([]*domain.MatchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]*domain.MatchResult, len(snap.Candidates))
	var wg sync.WaitGroup

	sem := make(chan struct{}, e.maxWorkers)

	for i, c := range snap.Candidates {
		wg.Add(1)
		go func(idx int, c *domain.Candidate) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			results[idx] = e.scoreCandidate(req, c, snap.Counterparty(c))
		}(i, c)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matched := make([]*domain.MatchResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

// scoreCandidate evaluates one candidate. A nil return means the candidate
// is out: screened, below threshold or malformed. A malformed candidate is
// logged and skipped so one bad record never aborts the run.
func (e *Engine) scoreCandidate(req *domain.MatchRequest, c *domain.Candidate, cp *domain.Counterparty) (res *domain.MatchResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("candidate scoring panicked",
				"request_id", req.ID,
				"candidate_id", c.ID,
				"panic", r,
			)
			res = nil
		}
	}()

	if c.ID == "" || c.SellerID == "" {
		slog.Warn("skipping malformed candidate",
			"request_id", req.ID,
			"candidate_id", c.ID,
			"seller_id", c.SellerID,
		)
		return nil
	}

	if e.screen != nil {
		if excluded, ruleID := e.screen.Excluded(req, c, cp); excluded {
			slog.Debug("candidate screened out",
				"request_id", req.ID,
				"candidate_id", c.ID,
				"rule_id", ruleID,
			)
			return nil
		}
	}

	features := e.scorer.Features(req, c, cp)
	score := e.scorer.Combine(features)
	if score < e.minScore {
		return nil
	}

	recommended := scoring.RecommendPrice(c.BasePrice, req.TargetPrice, score)

	return &domain.MatchResult{
		ID:               uuid.New().String(),
		RequestID:        req.ID,
		CandidateID:      c.ID,
		SellerID:         c.SellerID,
		Score:            score,
		Features:         features,
		Reasons:          scoring.Explain(features, req, c, cp),
		RecommendedPrice: recommended,
		AutoBidEligible:  e.gate.Eligible(score, recommended, c.BasePrice),
		EngineVersion:    scoring.EngineVersion,
		CreatedAt:        time.Now().UTC(),
	}
}

// persist writes the ranked set atomically, superseding any previous run,
// then marks the request matched. An empty set still supersedes: stale
// results from an earlier run must not survive a rerun.
func (e *Engine) persist(ctx context.Context, req *domain.MatchRequest, matched []*domain.MatchResult) error {
	if err := e.repo.SaveMatchResults(ctx, req.ID, matched); err != nil {
		return fmt.Errorf("%w: saving results for request %s: %w", domain.ErrPersistence, req.ID, err)
	}

	sellers := make(map[string]struct{}, len(matched))
	for _, m := range matched {
		sellers[m.SellerID] = struct{}{}
	}

	if err := e.repo.MarkRequestMatched(ctx, req.ID, len(sellers), time.Now().UTC()); err != nil {
		return fmt.Errorf("%w: marking request %s matched: %w", domain.ErrPersistence, req.ID, err)
	}

	return nil
}

// cacheProjection writes the ranked summary projection. Cache failures are
// logged, never surfaced: the repository already holds the results.
func (e *Engine) cacheProjection(ctx context.Context, requestID string, matched []*domain.MatchResult) {
	if e.cache == nil {
		return
	}

	summaries := make([]domain.MatchSummary, len(matched))
	for i, m := range matched {
		summaries[i] = m.Summary()
	}

	if err := e.cache.PutMatches(ctx, requestID, summaries, e.matchTTL); err != nil {
		slog.Warn("failed to cache match projection",
			"request_id", requestID,
			"error", err,
		)
	}
}

// MatchCompletedEvent is the payload published on a successful run.
type MatchCompletedEvent struct {
	RequestID     string  `json:"requestId"`
	MatchCount    int     `json:"matchCount"`
	TopScore      float64 `json:"topScore,omitempty"`
	EngineVersion string  `json:"engineVersion"`
	DurationMs    int64   `json:"durationMs"`
}

// MatchFailedEvent is the payload published on a failed run.
type MatchFailedEvent struct {
	RequestID string `json:"requestId"`
	Error     string `json:"error"`
}

func (e *Engine) publishCompleted(ctx context.Context, requestID string, results []*domain.MatchResult, elapsed time.Duration) {
	if e.bus == nil {
		return
	}

	event := MatchCompletedEvent{
		RequestID:     requestID,
		MatchCount:    len(results),
		EngineVersion: scoring.EngineVersion,
		DurationMs:    elapsed.Milliseconds(),
	}
	if len(results) > 0 {
		event.TopScore = results[0].Score
	}

	payload, _ := json.Marshal(event)
	if err := e.bus.Publish(ctx, domain.TopicMatchCompleted, payload); err != nil {
		slog.Warn("failed to publish match completed",
			"request_id", requestID,
			"error", err,
		)
	}
}

func (e *Engine) publishFailed(ctx context.Context, requestID string, runErr error) {
	if e.bus == nil {
		return
	}

	payload, _ := json.Marshal(MatchFailedEvent{
		RequestID: requestID,
		Error:     runErr.Error(),
	})
	if err := e.bus.Publish(ctx, domain.TopicMatchFailed, payload); err != nil {
		slog.Warn("failed to publish match failed",
			"request_id", requestID,
			"error", err,
		)
	}
}
