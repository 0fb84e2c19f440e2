// Command token mints a dashboard bearer token for a user, for sharing
// dashboard links and for poking the read API during development.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/dataX-ai/fitness-pal/internal/auth"
	"github.com/dataX-ai/fitness-pal/internal/config"
	"github.com/dataX-ai/fitness-pal/internal/domain"
	"github.com/dataX-ai/fitness-pal/internal/persistence/postgres"
)

func main() {
	userID := flag.String("user", "", "user ID to issue the token for")
	phone := flag.String("phone", "", "messaging address to look the user up by, instead of -user")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *userID == "" && *phone == "" {
		log.Fatal("one of -user or -phone is required")
	}

	_ = godotenv.Load()
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := postgres.NewRepository(pool)

	var user domain.User
	if *userID != "" {
		user, err = repo.GetUserByID(ctx, *userID)
	} else {
		user, err = repo.GetUserByPhone(ctx, *phone)
	}
	if err != nil {
		log.Fatalf("failed to resolve user: %v", err)
	}

	token, err := auth.Sign(user.ID, *ttl, auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	if err != nil {
		log.Fatalf("failed to sign token: %v", err)
	}
	fmt.Println(token)
}
