package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"dialogue/config"
	"dialogue/internal/adapter/embedding"
	"dialogue/internal/adapter/retriever"
	"dialogue/internal/adapter/store"
	"dialogue/internal/domain"
	"dialogue/internal/port"
)

func main() {
	dir := flag.String("dir", ".", "Directory holding .dialogue/")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of results")
	runs := flag.Int("n", 20, "Number of timed search runs")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir . -q \"query\"")
		fmt.Println("\nReports:")
		fmt.Println("  1. Store contents (count, embedding space)")
		fmt.Println("  2. Similarity of the top matches to the query")
		fmt.Println("  3. Full-scan search latency over n runs")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	st, err := openStore(cfg, *dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedder init failed: %v\n", err)
		os.Exit(1)
	}

	info, err := st.Info(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading store info: %v\n", err)
		os.Exit(1)
	}
	if check := store.CheckMigration(info, domain.StoreInfo{Model: embedder.ModelName(), Dimension: embedder.Dimension()}); check.NeedsReembed {
		fmt.Fprintf(os.Stderr, "Store needs re-embedding: %s\n", check.Reason)
		os.Exit(1)
	}

	count, _ := st.Count(ctx)
	if count == 0 {
		fmt.Fprintln(os.Stderr, "No conversations stored - run 'dialogue save' or 'dialogue import' first")
		os.Exit(1)
	}

	fmt.Println("CONVERSATION SEARCH BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Conversations stored: %d\n", count)
	fmt.Printf("Model: %s (%s)\n", embedder.ModelName(), cfg.Embedding.Provider)
	fmt.Printf("Dimension: %d\n", embedder.Dimension())
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	searcher := retriever.NewSemanticRetriever(st, embedder, nil)
	results, err := searcher.Search(ctx, *query, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	if len(results) == 0 {
		fmt.Println("No results.")
		return
	}

	fmt.Printf("Top %d matches:\n\n", len(results))

	totalScore := 0.0
	for i, r := range results {
		c := r.Conversation
		preview := []rune(strings.ReplaceAll(c.Dialogue, "\n", " "))
		if len(preview) > 150 {
			preview = append(preview[:150], []rune("...")...)
		}
		totalScore += r.Score

		fmt.Printf("%d. [%s %.3f] #%d %s & %s\n", i+1, rating(r.Score), r.Score, c.ID, c.CharacterAName, c.CharacterBName)
		fmt.Printf("   %s\n\n", string(preview))
	}

	latencies := make([]time.Duration, 0, *runs)
	for i := 0; i < *runs; i++ {
		start := time.Now()
		if _, err := searcher.Search(ctx, *query, *topK); err != nil {
			fmt.Fprintf(os.Stderr, "Search error on run %d: %v\n", i+1, err)
			os.Exit(1)
		}
		latencies = append(latencies, time.Since(start))
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	avgScore := totalScore / float64(len(results))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average similarity: %.3f\n", avgScore)
	fmt.Printf("  Top-1 similarity:   %.3f\n", results[0].Score)
	if len(latencies) > 0 {
		fmt.Printf("LATENCY (%d runs, embedding included):\n", len(latencies))
		fmt.Printf("  p50: %v\n", latencies[len(latencies)/2])
		fmt.Printf("  p95: %v\n", latencies[len(latencies)*95/100])
		fmt.Printf("  max: %v\n", latencies[len(latencies)-1])
	}
}

func rating(score float64) string {
	switch {
	case score > 0.7:
		return "HIGH"
	case score > 0.5:
		return "GOOD"
	case score > 0.3:
		return "OK"
	default:
		return "LOW"
	}
}

func openStore(cfg *config.Config, dir string) (port.ConversationStore, error) {
	path := config.StorePath(dir, cfg)
	switch cfg.Store.Backend {
	case "bolt", "":
		return store.NewBoltStore(path)
	case "sqlite":
		return store.NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("benchmark needs a persistent store, got backend %q", cfg.Store.Backend)
	}
}
