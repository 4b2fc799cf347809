// Benchmark tool for load-testing Harrier's matching pipeline.
//
// Usage:
//
//	go run cmd/benchmark/main.go -url http://localhost:8080 -skus 500 -rfqs 200
//
// This tool:
//  1. Seeds a synthetic catalog (companies + SKUs) through the API
//  2. Creates RFQs spread across the seeded ingredients
//  3. Runs synchronous match requests with concurrent workers
//  4. Reports throughput, latency and match-rate statistics
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// ingredientSpec is one synthetic ingredient family used for seeding.
type ingredientSpec struct {
	Name  string
	Grade string
	Form  string
	Price float64
}

var ingredients = []ingredientSpec{
	{"ashwagandha extract", "USP", "powder", 38.0},
	{"turmeric extract", "USP", "powder", 24.0},
	{"green tea extract", "EP", "powder", 30.0},
	{"magnesium glycinate", "USP", "granule", 12.5},
	{"spirulina", "FCC", "powder", 18.0},
	{"bacopa monnieri extract", "USP", "powder", 42.0},
	{"elderberry extract", "EP", "liquid", 27.5},
	{"l-theanine", "USP", "powder", 55.0},
}

var certPool = []string{"Organic", "GMP", "Kosher", "Halal", "Non-GMO"}

// RFQResponse is the subset of the create-RFQ response the tool needs.
type RFQResponse struct {
	ID         string `json:"id"`
	Ingredient string `json:"ingredient"`
}

// MatchResponse is the subset of the sync match response the tool needs.
type MatchResponse struct {
	RequestID  string `json:"requestId"`
	MatchCount int    `json:"matchCount"`
	Matches    []struct {
		Score           float64 `json:"score"`
		AutoBidEligible bool    `json:"autoBidEligible"`
	} `json:"matches"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TotalRuns      int64
	TotalErrors    int64
	TotalMatches   int64
	EmptyRuns      int64
	AutoBids       int64
	TotalLatencyMs int64
	MaxLatencyMs   int64
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Harrier base URL")
	skuCount := flag.Int("skus", 500, "Number of SKUs to seed")
	rfqCount := flag.Int("rfqs", 200, "Number of RFQs to create and match")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	seed := flag.Int64("seed", 42, "Random seed for synthetic data")
	verbose := flag.Bool("verbose", false, "Print each match result")
	flag.Parse()

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║           HARRIER BENCHMARK - Matching Throughput             ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nHarrier URL: %s\n", *baseURL)
	fmt.Printf("SKUs:        %d\n", *skuCount)
	fmt.Printf("RFQs:        %d\n", *rfqCount)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Seed:        %d\n", *seed)
	fmt.Println()

	// Check Harrier is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Harrier not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Harrier is running:")
		fmt.Println("  go run cmd/harrier/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Harrier is healthy")

	rng := rand.New(rand.NewSource(*seed))
	client := &http.Client{Timeout: 30 * time.Second}

	// Seed catalog
	fmt.Printf("\nSeeding %d SKUs across %d ingredients...\n", *skuCount, len(ingredients))
	if err := seedCatalog(client, *baseURL, *skuCount, rng); err != nil {
		fmt.Printf("ERROR: Failed to seed catalog: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Catalog seeded")

	// Create RFQs
	fmt.Printf("\nCreating %d RFQs...\n", *rfqCount)
	rfqs, err := createRFQs(client, *baseURL, *rfqCount, rng)
	if err != nil {
		fmt.Printf("ERROR: Failed to create RFQs: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Created %d RFQs\n", len(rfqs))

	// Run benchmark
	fmt.Printf("\nRunning matches with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(rfqs, *baseURL, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func postJSON(client *http.Client, url string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	resp, err := client.Post(url, "application/json", &buf)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func seedCatalog(client *http.Client, baseURL string, skuCount int, rng *rand.Rand) error {
	// One company per ~10 SKUs, reused round-robin.
	companyCount := skuCount/10 + 1
	companyIDs := make([]string, 0, companyCount)

	for i := 0; i < companyCount; i++ {
		company := map[string]any{
			"id":                 fmt.Sprintf("bench-seller-%03d", i),
			"name":               fmt.Sprintf("Bench Botanicals %03d", i),
			"rating":             3.0 + rng.Float64()*2.0,
			"onTimeDeliveryRate": 70 + rng.Float64()*30,
			"verified":           rng.Intn(4) > 0,
		}
		if err := postJSON(client, baseURL+"/companies", company, nil); err != nil {
			return fmt.Errorf("seeding company %d: %w", i, err)
		}
		companyIDs = append(companyIDs, company["id"].(string))
	}

	for i := 0; i < skuCount; i++ {
		spec := ingredients[i%len(ingredients)]
		// Spread prices +-20% around the family's base price.
		price := spec.Price * (0.8 + rng.Float64()*0.4)

		certs := []string{}
		for _, c := range certPool {
			if rng.Intn(3) == 0 {
				certs = append(certs, c)
			}
		}

		sku := map[string]any{
			"id":             fmt.Sprintf("bench-sku-%05d", i),
			"sellerId":       companyIDs[i%len(companyIDs)],
			"skuCode":        fmt.Sprintf("BNCH-%05d", i),
			"ingredient":     spec.Name,
			"grade":          spec.Grade,
			"form":           spec.Form,
			"basePriceUsd":   price,
			"moqKg":          float64(10 * (1 + rng.Intn(10))),
			"leadTimeDays":   7 + rng.Intn(40),
			"certifications": certs,
			"active":         true,
		}
		if err := postJSON(client, baseURL+"/skus", sku, nil); err != nil {
			return fmt.Errorf("seeding sku %d: %w", i, err)
		}
	}

	return nil
}

func createRFQs(client *http.Client, baseURL string, rfqCount int, rng *rand.Rand) ([]RFQResponse, error) {
	rfqs := make([]RFQResponse, 0, rfqCount)

	for i := 0; i < rfqCount; i++ {
		spec := ingredients[i%len(ingredients)]
		target := spec.Price * (0.95 + rng.Float64()*0.2)

		body := map[string]any{
			"buyerId":        fmt.Sprintf("bench-buyer-%03d", i%20),
			"ingredient":     spec.Name,
			"grade":          spec.Grade,
			"form":           spec.Form,
			"quantityKg":     float64(50 * (1 + rng.Intn(20))),
			"targetPriceUsd": target,
			"autoPublish":    true,
		}

		var rfq RFQResponse
		if err := postJSON(client, baseURL+"/rfqs", body, &rfq); err != nil {
			return nil, fmt.Errorf("creating rfq %d: %w", i, err)
		}
		rfqs = append(rfqs, rfq)
	}

	return rfqs, nil
}

func runBenchmark(rfqs []RFQResponse, baseURL string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan RFQResponse, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 60 * time.Second}

			for rfq := range work {
				start := time.Now()
				var resp MatchResponse
				err := postJSON(client, baseURL+"/rfqs/"+rfq.ID+"/match?wait=true", nil, &resp)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.TotalRuns, 1)
				atomic.AddInt64(&metrics.TotalLatencyMs, elapsed)
				for {
					prev := atomic.LoadInt64(&metrics.MaxLatencyMs)
					if elapsed <= prev || atomic.CompareAndSwapInt64(&metrics.MaxLatencyMs, prev, elapsed) {
						break
					}
				}

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", rfq.ID, err)
					}
					continue
				}

				atomic.AddInt64(&metrics.TotalMatches, int64(resp.MatchCount))
				if resp.MatchCount == 0 {
					atomic.AddInt64(&metrics.EmptyRuns, 1)
				}
				for _, m := range resp.Matches {
					if m.AutoBidEligible {
						atomic.AddInt64(&metrics.AutoBids, 1)
					}
				}

				if verbose {
					fmt.Printf("%s (%s): %d matches in %dms\n", rfq.ID, rfq.Ingredient, resp.MatchCount, elapsed)
				}
			}
		}()
	}

	for _, rfq := range rfqs {
		work <- rfq
	}
	close(work)
	wg.Wait()

	return metrics
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                         RESULTS                               ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("Duration:       %s\n", duration.Round(time.Millisecond))
	fmt.Printf("Match runs:     %d\n", m.TotalRuns)
	fmt.Printf("Errors:         %d\n", m.TotalErrors)
	fmt.Println()

	ok := m.TotalRuns - m.TotalErrors
	if ok > 0 {
		fmt.Printf("Throughput:     %.1f runs/sec\n", float64(m.TotalRuns)/duration.Seconds())
		fmt.Printf("Avg latency:    %.1f ms\n", float64(m.TotalLatencyMs)/float64(m.TotalRuns))
		fmt.Printf("Max latency:    %d ms\n", m.MaxLatencyMs)
		fmt.Println()
		fmt.Printf("Total matches:  %d (%.1f per run)\n", m.TotalMatches, float64(m.TotalMatches)/float64(ok))
		fmt.Printf("Empty runs:     %d (%.1f%%)\n", m.EmptyRuns, 100*float64(m.EmptyRuns)/float64(ok))
		fmt.Printf("Auto-bid ready: %d\n", m.AutoBids)
	}
	fmt.Println()
}
