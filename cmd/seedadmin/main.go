// Command seedadmin assigns the founder tier to an existing account. There is
// no self-service path to a tier, so the first admin is created here.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"formu/internal/domain"
	"formu/internal/infra"
	"formu/internal/sqlinline"
)

func main() {
	var (
		usernameFlag string
		tierFlag     string
	)

	flag.StringVar(&usernameFlag, "username", "", "username of the account to promote")
	flag.StringVar(&tierFlag, "tier", string(domain.TierFounder), "tier to assign (founder, time_master, spark_partner)")
	flag.Parse()

	_ = godotenv.Load()

	username := strings.TrimSpace(usernameFlag)
	if username == "" {
		exitWithError(errors.New("-username is required"))
	}
	tier, err := domain.ParseTier(strings.TrimSpace(strings.ToLower(tierFlag)))
	if err != nil {
		exitWithError(fmt.Errorf("unsupported tier %q", tierFlag))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "seedadmin").Logger()
	runner := infra.NewSQLRunner(pool, logger)

	updateCtx, cancelUpdate := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelUpdate()

	row := runner.QueryRow(updateCtx, sqlinline.QAssignTierByUsername, username, string(tier))
	var id, updatedUsername, assigned string
	if err := row.Scan(&id, &updatedUsername, &assigned); err != nil {
		exitWithError(fmt.Errorf("failed to assign tier: %w", err))
	}

	cfg := domain.ConfigForTier(domain.Tier(assigned))
	fmt.Printf("User %s (%s) assigned tier %s (%s)\n", id, updatedUsername, assigned, cfg.DisplayName)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
