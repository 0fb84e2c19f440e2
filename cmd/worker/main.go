package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dataX-ai/fitness-pal/internal/config"
	"github.com/dataX-ai/fitness-pal/internal/dashboard"
	"github.com/dataX-ai/fitness-pal/internal/nlp"
	"github.com/dataX-ai/fitness-pal/internal/observability"
	"github.com/dataX-ai/fitness-pal/internal/persistence/postgres"
	"github.com/dataX-ai/fitness-pal/internal/scheduler"
	"github.com/dataX-ai/fitness-pal/internal/summary"
	"github.com/dataX-ai/fitness-pal/internal/transport/whatsapp"
	"github.com/dataX-ai/fitness-pal/internal/workout"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	repo := postgres.NewRepository(pool)
	sessions := postgres.NewSessionRepository(pool)
	dashboards := postgres.NewDashboardRepository(pool)
	summaries := postgres.NewSummaryRepository(pool)

	extractor := nlp.NewClient(nlp.Config{
		BaseURL: cfg.NLPBaseURL,
		APIKey:  cfg.NLPAPIKey,
		Model:   cfg.NLPModel,
		Timeout: cfg.NLPTimeout,
	})

	calculator := workout.NewCalculator(workout.DefaultMetricsTable())
	processor := workout.NewProcessor(sessions, extractor, calculator, cfg.PendingWindow, cfg.WorkerConcurrency)
	cleaner := workout.NewCleaner(sessions, cfg.SessionRetention, cfg.CleanupBatchSize)
	roller := dashboard.NewRoller(dashboards)

	messenger := whatsapp.NewClient(whatsapp.Config{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		Sender:     cfg.TwilioSenderNumber,
	}, repo)
	recaps := summary.NewSender(summaries, messenger, cfg.QuotaTimezone)

	sched := scheduler.New(pool)

	mustAdd := func(name string, interval time.Duration, lockKey int64, run func(ctx context.Context) error) {
		if err := sched.AddLockedJob(name, interval, lockKey, run); err != nil {
			log.Fatalf("failed to register %s: %v", name, err)
		}
	}

	mustAdd("extraction", cfg.ExtractionInterval, postgres.LockExtractionPass, func(ctx context.Context) error {
		summary, err := processor.Run(ctx)
		if err != nil {
			return err
		}
		observability.RecordExtractionPass(summary.Succeeded, summary.Failed, summary.Skipped, time.Now())
		return nil
	})

	mustAdd("session-cleanup", cfg.CleanupInterval, postgres.LockSessionCleanup, func(ctx context.Context) error {
		deleted, err := cleaner.Run(ctx)
		observability.RecordStaleSessionsDeleted(deleted)
		return err
	})

	mustAdd("dashboard-rollup", cfg.RollupInterval, postgres.LockDashboardRoll, func(ctx context.Context) error {
		users, err := roller.Run(ctx)
		if err != nil {
			return err
		}
		observability.RecordRollup(users)
		return nil
	})

	mustAddSpec := func(name, spec string, lockKey int64, run func(ctx context.Context) error) {
		if err := sched.AddLockedJobSpec(name, spec, lockKey, run); err != nil {
			log.Fatalf("failed to register %s: %v", name, err)
		}
	}

	mustAddSpec("daily-summary", cfg.DailySummaryCron, postgres.LockDailySummary, func(ctx context.Context) error {
		sent, err := recaps.SendDaily(ctx)
		if err != nil {
			return err
		}
		observability.RecordRecapsSent("daily", sent)
		return nil
	})

	mustAddSpec("weekly-summary", cfg.WeeklySummaryCron, postgres.LockWeeklySummary, func(ctx context.Context) error {
		sent, err := recaps.SendWeekly(ctx)
		if err != nil {
			return err
		}
		observability.RecordRecapsSent("weekly", sent)
		return nil
	})

	metricsSrv := &http.Server{Addr: ":9091", Handler: promhttp.Handler()}
	go func() {
		log.Printf("worker metrics listening on %s", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	sched.Start()
	log.Println("worker started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("worker shutdown requested")
	cancel()

	<-sched.Stop().Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}
}
