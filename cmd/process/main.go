// Command process triggers one extraction pass (and optionally the cleanup
// and rollup jobs) by hand. Useful when debugging a stuck session without
// waiting for the worker's next tick.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/dataX-ai/fitness-pal/internal/config"
	"github.com/dataX-ai/fitness-pal/internal/dashboard"
	"github.com/dataX-ai/fitness-pal/internal/nlp"
	"github.com/dataX-ai/fitness-pal/internal/persistence/postgres"
	"github.com/dataX-ai/fitness-pal/internal/workout"
)

func main() {
	runCleanup := flag.Bool("cleanup", false, "also purge stale incomplete sessions")
	runRollup := flag.Bool("rollup", false, "also recompute dashboard rollups")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall deadline")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	sessions := postgres.NewSessionRepository(pool)

	extractor := nlp.NewClient(nlp.Config{
		BaseURL: cfg.NLPBaseURL,
		APIKey:  cfg.NLPAPIKey,
		Model:   cfg.NLPModel,
		Timeout: cfg.NLPTimeout,
	})

	calculator := workout.NewCalculator(workout.DefaultMetricsTable())
	processor := workout.NewProcessor(sessions, extractor, calculator, cfg.PendingWindow, cfg.WorkerConcurrency)

	summary, err := processor.Run(ctx)
	if err != nil {
		log.Fatalf("extraction pass failed: %v", err)
	}
	log.Printf("extraction: scanned=%d succeeded=%d failed=%d skipped=%d",
		summary.Scanned, summary.Succeeded, summary.Failed, summary.Skipped)

	if *runCleanup {
		cleaner := workout.NewCleaner(sessions, cfg.SessionRetention, cfg.CleanupBatchSize)
		deleted, err := cleaner.Run(ctx)
		if err != nil {
			log.Fatalf("cleanup failed: %v", err)
		}
		log.Printf("cleanup: deleted=%d", deleted)
	}

	if *runRollup {
		roller := dashboard.NewRoller(postgres.NewDashboardRepository(pool))
		users, err := roller.Run(ctx)
		if err != nil {
			log.Fatalf("rollup failed: %v", err)
		}
		log.Printf("rollup: users=%d", users)
	}
}
