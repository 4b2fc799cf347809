// Harrier - RFQ to SKU matching for the ingredient marketplace.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/procureos/harrier/internal/api"
	"github.com/procureos/harrier/internal/bus"
	"github.com/procureos/harrier/internal/cache"
	"github.com/procureos/harrier/internal/catalog"
	"github.com/procureos/harrier/internal/domain"
	"github.com/procureos/harrier/internal/match"
	"github.com/procureos/harrier/internal/repository"
	"github.com/procureos/harrier/internal/screen"
	"github.com/procureos/harrier/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("HARRIER_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting harrier",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("HARRIER_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	// Scoring parameters are fatal when invalid; a bad weight vector
	// must never rank live RFQs.
	if err := cfg.Scoring.Validate(); err != nil {
		slog.Error("invalid scoring configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"weights_version", cfg.Scoring.Weights.Version,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Screening Engine
	screens, err := screen.NewEngine()
	if err != nil {
		slog.Error("failed to initialize screening engine", "error", err)
		os.Exit(1)
	}

	// Load screening rules from database (no hardcoded defaults - configure via API)
	if err := loadScreenRulesFromDatabase(ctx, repo, screens); err != nil {
		slog.Error("failed to load screen rules", "error", err)
		os.Exit(1)
	}
	slog.Info("screening engine initialized", "rules_count", screens.RulesCount())

	// Initialize Match Engine
	snapshots := catalog.NewService(repo, repo)
	engine, err := match.NewEngine(repo, snapshots, screens, cfg.Scoring, cacheImpl, busImpl)
	if err != nil {
		slog.Error("failed to initialize match engine", "error", err)
		os.Exit(1)
	}
	slog.Info("match engine initialized",
		"min_score", cfg.Scoring.MinScore,
		"auto_bid_score", cfg.Scoring.AutoBidScore,
		"max_workers", cfg.Scoring.MaxWorkers,
	)

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("HARRIER_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, engine)

		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "topic", domain.TopicMatchRequested)
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, engine, screens, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("harrier is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("harrier shutdown complete")
}

// loadScreenRulesFromDatabase loads screening rules from the database into
// the engine. All rules must be configured via POST /screen-rules - no
// hardcoded defaults.
func loadScreenRulesFromDatabase(ctx context.Context, repo domain.Repository, screens *screen.Engine) error {
	dbRules, err := repo.ListScreenRules(ctx, "")
	if err != nil {
		slog.Warn("failed to list screen rules from database", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(dbRules) > 0 {
		slog.Info("loading screen rules from database", "count", len(dbRules))
		return screens.LoadRules(dbRules)
	}

	slog.Info("no screen rules in database - configure via POST /screen-rules API")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               HARRIER                     ║")
	fmt.Println("  ║      RFQ to SKU Matching Engine           ║")
	fmt.Println("  ║      Every request, best offers.          ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /rfqs                 - Create an RFQ")
	fmt.Println("    GET  /rfqs/{id}            - Get RFQ by ID")
	fmt.Println("    POST /rfqs/{id}/match      - Run matching (?wait=true for sync)")
	fmt.Println("    GET  /rfqs/{id}/matches    - List ranked matches")
	fmt.Println("    POST /skus                 - Create a catalog SKU")
	fmt.Println("    GET  /skus/{id}            - Get SKU by ID")
	fmt.Println("    POST /companies            - Create a company")
	fmt.Println("    GET  /companies/{id}       - Get company by ID")
	fmt.Println("    GET  /screen-rules         - List screening rules")
	fmt.Println("    POST /screen-rules         - Create a screening rule")
	fmt.Println("    POST /screen-rules/reload  - Hot-reload screening rules")
	fmt.Println("    GET  /health               - Health check")
	fmt.Println()
}
