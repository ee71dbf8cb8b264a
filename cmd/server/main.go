package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sbms/trading/internal/adapter/client"
	httpAdapter "github.com/sbms/trading/internal/adapter/http"
	"github.com/sbms/trading/internal/adapter/http/handler"
	postgresRepo "github.com/sbms/trading/internal/adapter/repository/postgres"
	redisRepo "github.com/sbms/trading/internal/adapter/repository/redis"
	"github.com/sbms/trading/internal/infrastructure/auth"
	"github.com/sbms/trading/internal/infrastructure/config"
	"github.com/sbms/trading/internal/infrastructure/dispatcher"
	"github.com/sbms/trading/internal/infrastructure/logger"
	"github.com/sbms/trading/internal/infrastructure/metrics"
	"github.com/sbms/trading/internal/infrastructure/postgres"
	"github.com/sbms/trading/internal/infrastructure/redis"
	"github.com/sbms/trading/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	m := metrics.New()

	// Repositories and engine wiring
	txManager := postgresRepo.NewTxManager(pool)
	productRepo := postgresRepo.NewProductRepository(pool)
	txnRepo := postgresRepo.NewTransactionRepository(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)
	idGen := postgresRepo.NewULIDGenerator()
	retrier := postgresRepo.NewRetrier(log)

	engine := usecase.NewTransactionUseCase(txManager, productRepo, txnRepo, outboxRepo, idGen, retrier)
	queries := usecase.NewTransactionQueryUseCase(txnRepo)

	// Downstream clients and the outbox dispatcher
	partyClient := client.NewPartyLedgerClient(cfg.PartyServiceURL, cfg.ClientTimeout)
	offerClient := client.NewOfferServiceClient(cfg.PromoServiceURL, cfg.ClientTimeout)

	dispatcherCtx, stopDispatcher := context.WithCancel(ctx)
	defer stopDispatcher()

	d := dispatcher.New(dispatcher.Config{
		OutboxRepo:  outboxRepo,
		Parties:     partyClient,
		Offers:      offerClient,
		Logger:      log,
		Metrics:     m,
		BatchSize:   cfg.OutboxBatchSize,
		Interval:    cfg.OutboxInterval,
		MaxAttempts: cfg.OutboxMaxAttempts,
		Retention:   cfg.OutboxRetention,
	})
	go func() {
		if err := d.Start(dispatcherCtx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("dispatcher stopped")
		}
	}()

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		TransactionHandler: handler.NewTransactionHandler(engine, queries),
		HealthHandler:      handler.NewHealthHandler(pool, redisClient),
		JWTManager:         jwtManager,
		IdempotencyStore:   idempotencyStore,
		IdempotencyTTL:     cfg.IdempotencyTTL,
		Logger:             log,
		Metrics:            m,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")
	stopDispatcher()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
