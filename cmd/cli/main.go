package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	postgresRepo "github.com/sbms/trading/internal/adapter/repository/postgres"
	"github.com/sbms/trading/internal/infrastructure/auth"
	"github.com/sbms/trading/internal/infrastructure/config"
	"github.com/sbms/trading/internal/infrastructure/logger"
	"github.com/sbms/trading/internal/infrastructure/postgres"
)

var migrationsPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "trading-cli",
		Short: "Trading service admin tool",
		Long:  `A command line interface for operating the trading service: migrations, outbox inspection and local token minting.`,
	}

	rootCmd.PersistentFlags().StringVar(&migrationsPath, "migrations", "migrations", "Path to the migrations directory")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migrations",
	}
	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, log, err := load()
				if err != nil {
					return err
				}
				return postgres.RunMigrations(cfg.DatabaseURL, migrationsPath, log)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, log, err := load()
				if err != nil {
					return err
				}
				return postgres.RunMigrationsDown(cfg.DatabaseURL, migrationsPath, log)
			},
		},
	)
	rootCmd.AddCommand(migrateCmd)

	outboxCmd := &cobra.Command{
		Use:   "outbox",
		Short: "Outbox inspection",
	}
	var pendingLimit int
	pendingCmd := &cobra.Command{
		Use:   "pending",
		Short: "List undelivered side-effect events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listPending(cmd.Context(), pendingLimit)
		},
	}
	pendingCmd.Flags().IntVar(&pendingLimit, "limit", 50, "Maximum number of events to list")
	outboxCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(outboxCmd)

	var tokenBusiness, tokenEmail string
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a JWT for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return mintToken(tokenBusiness, tokenEmail)
		},
	}
	tokenCmd.Flags().StringVar(&tokenBusiness, "business", "", "Business id (uuid) to scope the token to")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "dev@localhost", "Email claim")
	tokenCmd.MarkFlagRequired("business")
	rootCmd.AddCommand(tokenCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func load() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger.New(logger.Config{Level: cfg.LogLevel, Format: "console"}), nil
}

func listPending(ctx context.Context, limit int) error {
	cfg, _, err := load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, 2, 1)
	if err != nil {
		return err
	}
	defer pool.Close()

	events, err := postgresRepo.NewOutboxRepository(pool).GetUnpublished(ctx, limit)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		fmt.Println("no pending events")
		return nil
	}

	fmt.Printf("%d pending event(s)\n", len(events))
	for _, e := range events {
		fmt.Printf("%s  txn=%d  effect=%s  attempts=%d  created=%s\n",
			e.ID, e.TransactionID, e.EffectType, e.Attempts, e.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

func mintToken(business, email string) error {
	cfg, _, err := load()
	if err != nil {
		return err
	}

	businessID, err := uuid.Parse(business)
	if err != nil {
		return fmt.Errorf("invalid business id: %w", err)
	}

	token, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration).Generate(businessID, email)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}
