// Package screen provides the CEL-Go based candidate screening engine.
// Screening runs between candidate filtering and scoring: a rule that
// evaluates true excludes the candidate from the run.
package screen

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/procureos/harrier/internal/domain"
)

// Engine holds compiled screening rules.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.ScreenRule
	Program cel.Program
}

// NewEngine creates a new screening engine.
func NewEngine() (*Engine, error) {
	// CEL environment over request, candidate and counterparty attributes.
	env, err := cel.NewEnv(
		cel.Variable("request", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("candidate", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("ingredient", cel.StringType),
		cel.Variable("grade", cel.StringType),
		cel.Variable("form", cel.StringType),
		cel.Variable("base_price", cel.DoubleType),
		cel.Variable("lead_time_days", cel.IntType),
		cel.Variable("moq_kg", cel.DoubleType),
		cel.Variable("quantity_kg", cel.DoubleType),
		cel.Variable("target_price", cel.DoubleType),
		cel.Variable("seller_rating", cel.DoubleType),
		cel.Variable("on_time_rate", cel.DoubleType),
		cel.Variable("seller_verified", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
	}, nil
}

// ValidateRule compiles and validates a rule without mutating loaded rules.
func (e *Engine) ValidateRule(cfg *domain.ScreenRule) error {
	if cfg == nil {
		return fmt.Errorf("screen rule is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.ScreenRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled
	return nil
}

// LoadRules compiles and loads the enabled rules.
func (e *Engine) LoadRules(configs []*domain.ScreenRule) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules clears all existing rules and loads new ones.
// This enables hot-reloading of rules from the database.
func (e *Engine) ReloadRules(configs []*domain.ScreenRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules
	return nil
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// Excluded reports whether any loaded rule excludes the candidate, and the
// ID of the first rule that fired. Rules whose applicability (buyer ID)
// doesn't match the request are skipped; a rule that errors at evaluation
// time is skipped too, so a broken rule fails open rather than emptying
// every run.
func (e *Engine) Excluded(req *domain.MatchRequest, c *domain.Candidate, cp *domain.Counterparty) (bool, string) {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return false, ""
	}

	activation := buildActivation(req, c, cp)

	for _, rule := range rules {
		if rule.Config.BuyerID != "" && rule.Config.BuyerID != domain.GlobalBuyerID && rule.Config.BuyerID != req.BuyerID {
			continue
		}

		out, _, err := rule.Program.Eval(activation)
		if err != nil {
			slog.Warn("screen rule evaluation failed",
				"rule_id", rule.Config.ID,
				"candidate_id", c.ID,
				"error", err,
			)
			continue
		}

		if b, ok := out.(types.Bool); ok && bool(b) {
			return true, rule.Config.ID
		}
	}

	return false, ""
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(cfg *domain.ScreenRule) (*CompiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile screen rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("screen rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for screen rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}

// buildActivation flattens the triple into CEL variables. Unknown optional
// attributes become zero values, never errors.
func buildActivation(req *domain.MatchRequest, c *domain.Candidate, cp *domain.Counterparty) map[string]any {
	var basePrice, moq, target float64
	var leadTime int
	if c.BasePrice != nil {
		basePrice = *c.BasePrice
	}
	if c.MOQKG != nil {
		moq = *c.MOQKG
	}
	if c.LeadTimeDays != nil {
		leadTime = *c.LeadTimeDays
	}
	if req.TargetPrice != nil {
		target = *req.TargetPrice
	}

	var rating, onTime float64
	var verified bool
	if cp != nil {
		rating = cp.Rating
		onTime = cp.OnTimeRate
		verified = cp.Verified
	}

	return map[string]any{
		"request": map[string]any{
			"id":          req.ID,
			"buyer_id":    req.BuyerID,
			"ingredient":  req.Ingredient,
			"grade":       req.Grade,
			"form":        req.Form,
			"quantity_kg": req.QuantityKG,
		},
		"candidate": map[string]any{
			"id":         c.ID,
			"seller_id":  c.SellerID,
			"sku_code":   c.SKUCode,
			"ingredient": c.Ingredient,
			"grade":      c.Grade,
			"form":       c.Form,
		},
		"ingredient":      c.Ingredient,
		"grade":           c.Grade,
		"form":            c.Form,
		"base_price":      basePrice,
		"lead_time_days":  leadTime,
		"moq_kg":          moq,
		"quantity_kg":     req.QuantityKG,
		"target_price":    target,
		"seller_rating":   rating,
		"on_time_rate":    onTime,
		"seller_verified": verified,
	}
}
