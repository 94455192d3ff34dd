// Command profiler loads a dataset into an in-process index, runs its query
// set several times with profiling enabled, and prints latency, phase and
// ranking quality summaries.
//
// Usage:
//
//	go run ./cmd/profiler -dataset configs/profiler/sample.yaml [-runs 3] [-k 5]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "optional config file for tokenizer and pool settings")
	datasetPath := flag.String("dataset", "configs/profiler/sample.yaml", "YAML dataset with documents and queries")
	runs := flag.Int("runs", 3, "times each query is executed")
	k := flag.Int("k", 5, "results considered when scoring ranking quality")
	profileMinQuality := flag.Float64("profile-min-quality", 0.01, "quality threshold for timing runs")
	evalMinQuality := flag.Float64("eval-min-quality", 0.05, "quality threshold for ranking evaluation")
	flag.Parse()
	if *runs < 1 {
		*runs = 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.Storage.Backend = "memory"
	logger.Setup("warn", "text")

	ds, err := dataset.Load(*datasetPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx := context.Background()
	engine, err := indexer.NewFromConfig(cfg, nil, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create index: %v\n", err)
		os.Exit(1)
	}
	loadStart := time.Now()
	for _, doc := range ds.Documents {
		if _, err := engine.Upsert(ctx, indexer.Document{ID: doc.ID, Text: doc.Text}); err != nil {
			slog.Error("indexing failed", "doc_id", doc.ID, "error", err)
			os.Exit(1)
		}
	}
	fmt.Printf("Indexed %d documents in %s\n", len(ds.Documents), time.Since(loadStart).Round(time.Microsecond))
	fmt.Printf("Queries: %d, runs: %d\n\n", len(ds.Queries), *runs)

	exec := executor.New(engine.Tokenizer(), engine.Index(), executor.WithPoolSize(cfg.Search.CandidatePoolSize))

	profiles := make([]*executor.Profile, 0, len(ds.Queries)*(*runs))
	wallTimes := make([]time.Duration, 0, cap(profiles))
	for i := 0; i < *runs; i++ {
		for _, q := range ds.Queries {
			start := time.Now()
			_, prof, err := exec.Profile(ctx, q.Query, *profileMinQuality)
			wallTimes = append(wallTimes, time.Since(start))
			if err != nil {
				slog.Error("query failed", "query", q.Query, "error", err)
				os.Exit(1)
			}
			profiles = append(profiles, prof)
		}
	}
	printTimingReport(os.Stdout, profiles, wallTimes)

	evals := make([]Evaluation, 0, len(ds.Queries))
	for _, q := range ds.Queries {
		if len(q.Expected) == 0 {
			continue
		}
		results, err := exec.Query(ctx, q.Query, *evalMinQuality)
		if err != nil {
			slog.Error("query failed", "query", q.Query, "error", err)
			os.Exit(1)
		}
		ids := make([]string, len(results))
		for i, r := range results {
			ids[i] = r.ID
		}
		evals = append(evals, evaluate(q.Query, q.Expected, ids, *k))
	}
	printQualityReport(os.Stdout, evals, *k)
}
