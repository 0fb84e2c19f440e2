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

	"github.com/dataX-ai/fitness-pal/internal/api"
	"github.com/dataX-ai/fitness-pal/internal/auth"
	"github.com/dataX-ai/fitness-pal/internal/config"
	"github.com/dataX-ai/fitness-pal/internal/dashboard"
	"github.com/dataX-ai/fitness-pal/internal/nlp"
	"github.com/dataX-ai/fitness-pal/internal/onboarding"
	"github.com/dataX-ai/fitness-pal/internal/outbox"
	"github.com/dataX-ai/fitness-pal/internal/persistence/postgres"
	httptransport "github.com/dataX-ai/fitness-pal/internal/transport/http"
	"github.com/dataX-ai/fitness-pal/internal/transport/whatsapp"
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
	payments := postgres.NewPaymentRepository(pool)
	dashboards := postgres.NewDashboardRepository(pool)

	extractor := nlp.NewClient(nlp.Config{
		BaseURL: cfg.NLPBaseURL,
		APIKey:  cfg.NLPAPIKey,
		Model:   cfg.NLPModel,
		Timeout: cfg.NLPTimeout,
	})

	quota := onboarding.NewQuota(repo, cfg.MaxFreeMessagesPerDay, cfg.QuotaTimezone)
	machine := onboarding.NewMachine(repo, sessions, extractor, quota, cfg.SessionWindow)

	notifier := whatsapp.NewClient(whatsapp.Config{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		Sender:     cfg.TwilioSenderNumber,
	}, repo)

	producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
	defer producer.Close()
	dispatcher := outbox.NewDispatcher(pool, producer, 5*time.Second, 100)
	go dispatcher.Start(ctx)

	handler := api.NewHandler(machine, repo, payments, notifier, dashboard.NewService(dashboards), api.Config{
		PaymentWebhookSecret: cfg.PaymentWebhookSecret,
		PaymentOKTemplate:    cfg.PaymentOKTemplate,
		PaymentFailTemplate:  cfg.PaymentFailTemplate,
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	dashMux := http.NewServeMux()
	handler.RegisterDashboardRoutes(dashMux)
	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	mux.Handle("/v1/", authMiddleware.Wrap(dashMux))

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, mux)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("fitness-pal api listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	log.Println("api shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	dispatcher.Wait()
}
